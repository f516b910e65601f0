package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
)

// CookieName is the name of the session cookie.
const CookieName = "session"

// Manager issues session cookies and resolves them back into sessions.
// The cookie carries an HS256 token whose ID claim is the session id.
type Manager struct {
	store  Store
	secret []byte
	ttl    time.Duration
	secure bool
}

func NewManager(store Store, secret string, ttl time.Duration, secure bool) *Manager {
	return &Manager{
		store:  store,
		secret: []byte(secret),
		ttl:    ttl,
		secure: secure,
	}
}

// Create stores a new session for the given identity and sets its cookie on w.
// The ID and CreatedAt of s are assigned here.
func (m *Manager) Create(ctx context.Context, w http.ResponseWriter, s Session) (Session, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return Session{}, err
	}
	now := time.Now().UTC()
	s.ID = id.String()
	s.CreatedAt = now

	token, err := m.sign(s.ID, now)
	if err != nil {
		return Session{}, err
	}
	if err := m.store.Save(ctx, s, m.ttl); err != nil {
		return Session{}, err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  now.Add(m.ttl),
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return s, nil
}

// Current returns the session the request's cookie refers to. A missing,
// tampered or expired cookie yields ErrInvalidToken; a valid cookie whose
// session is gone yields ErrNotFound.
func (m *Manager) Current(r *http.Request) (Session, error) {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return Session{}, ErrInvalidToken
	}

	id, err := m.parse(c.Value)
	if err != nil {
		return Session{}, err
	}

	return m.store.Load(r.Context(), id)
}

// Destroy deletes the request's session from the store and expires its cookie.
// The cookie is cleared even when the session cannot be resolved.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})

	c, err := r.Cookie(CookieName)
	if err != nil {
		return nil
	}
	id, err := m.parse(c.Value)
	if err != nil {
		return err
	}
	return m.store.Delete(ctx, id)
}

func (m *Manager) sign(id string, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:        id,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

func (m *Manager) parse(token string) (string, error) {
	var claims jwt.RegisteredClaims
	t, err := jwt.ParseWithClaims(token, &claims,
		func(t *jwt.Token) (any, error) {
			return m.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !t.Valid || claims.ID == "" {
		return "", errors.Join(ErrInvalidToken, err)
	}
	return claims.ID, nil
}
