// Package api serves the link-sharing web interface.
package api

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	"linkshare/pkg/censor"
	"linkshare/pkg/logger"
	"linkshare/pkg/session"
	"linkshare/pkg/storage"
)

// Messages shown to the user.
const (
	msgEmailTaken       = "Email already registered"
	msgBadCredentials   = "Invalid email or password"
	msgInternal         = "Internal server error"
	msgPostNotFound     = "Post not found"
	msgAlreadyLiked     = "You have already liked this post"
	msgAlreadyDisliked  = "You have already disliked this post"
	msgCommentLimit     = "Maximum comment limit reached"
	msgFetchPosts       = "Error fetching posts"
	msgPostDescription  = "Error posting description"
	msgTitleForbidden   = "Title contains forbidden words"
	msgCommentForbidden = "Comment contains forbidden words"
)

// lockStripes is the number of mutexes serializing post updates in process.
const lockStripes = 64

type API struct {
	ServiceName string

	r          *mux.Router
	db         storage.Storage
	sessions   *session.Manager
	censor     censor.Checker
	kw         logger.MessageWriter
	categories []string

	views        *template.Template
	validate     *validator.Validate
	passwordCost int
	dummyHash    []byte

	postLocks [lockStripes]sync.Mutex
}

// Options holds the optional collaborators of the API.
type Options struct {
	ServiceName string
	// Censor moderates titles and comments when set.
	Censor censor.Checker
	// KafkaWriter receives a log entry per request when set.
	KafkaWriter logger.MessageWriter
	// Categories are suggested on the dashboard.
	Categories []string
	// PasswordCost is the bcrypt cost, bcrypt.DefaultCost when zero.
	PasswordCost int
}

func New(db storage.Storage, sessions *session.Manager, opts Options) (*API, error) {
	views, err := parseViews()
	if err != nil {
		return nil, err
	}

	cost := opts.PasswordCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	// Compared against when the user does not exist, so that unknown emails
	// take as long as wrong passwords.
	dummyHash, err := bcrypt.GenerateFromPassword([]byte("linkshare-dummy-password"), cost)
	if err != nil {
		return nil, err
	}

	categories := make([]string, 0, len(opts.Categories))
	for _, c := range opts.Categories {
		if c = storage.NormalizeCategory(c); c != "" {
			categories = append(categories, c)
		}
	}

	api := API{
		ServiceName:  opts.ServiceName,
		r:            mux.NewRouter(),
		db:           db,
		sessions:     sessions,
		censor:       opts.Censor,
		kw:           opts.KafkaWriter,
		categories:   categories,
		views:        views,
		validate:     newValidator(),
		passwordCost: cost,
		dummyHash:    dummyHash,
	}
	api.endpoints()

	return &api, nil
}

func (api *API) Router() *mux.Router {
	return api.r
}

func (api *API) endpoints() {
	api.r.Use(api.requestIDMiddleware)
	if api.kw != nil {
		api.r.Use(api.loggingMiddleware(api.kw))
	}
	api.r.Use(api.recoverMiddleware)

	api.r.HandleFunc("/", api.rootHandler).Methods(http.MethodGet)

	api.r.HandleFunc("/register", api.registerPageHandler).Methods(http.MethodGet)
	api.r.HandleFunc("/register", api.registerHandler).Methods(http.MethodPost)
	api.r.HandleFunc("/login", api.loginPageHandler).Methods(http.MethodGet)
	api.r.HandleFunc("/login", api.loginHandler).Methods(http.MethodPost)
	api.r.HandleFunc("/logout", api.logoutHandler).Methods(http.MethodGet)

	api.r.HandleFunc("/search", api.searchHandler).Methods(http.MethodGet)

	api.r.Handle("/dashboard", api.requireSession(api.dashboardHandler)).Methods(http.MethodGet)
	api.r.Handle("/post-description", api.requireSession(api.submitPostHandler)).Methods(http.MethodPost)
	api.r.Handle("/post-link", api.requireSession(api.submitPostHandler)).Methods(http.MethodPost)
	api.r.Handle("/like-post/{id}", api.requireSession(api.likeHandler)).Methods(http.MethodGet)
	api.r.Handle("/dislike-post/{id}", api.requireSession(api.dislikeHandler)).Methods(http.MethodGet)
	api.r.Handle("/comment/{id}", api.requireSession(api.commentHandler)).Methods(http.MethodPost)
}

func (api *API) rootHandler(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

// banned asks the configured censor about text. Without a censor nothing is banned.
func (api *API) banned(ctx context.Context, text string) (bool, error) {
	if api.censor == nil {
		return false, nil
	}
	return api.censor.Banned(censor.WithRequestID(ctx, GetRequestID(ctx)), text)
}

// postID parses the {id} route variable.
func postID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.FromString(mux.Vars(r)["id"])
	if err != nil {
		return uuid.Nil, errors.Join(storage.ErrPostNotFound, err)
	}
	return id, nil
}

// GetRequestID extracts the request ID from the context.
// It returns the request ID as a string if present, otherwise returns an empty string.
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(RequestIDKey).(string); ok {
		return v
	}
	return ""
}

// shorten truncates a string to 6 characters if it is longer than 6, appends '...' at the end,
// otherwise it returns the string unchanged.
func shorten(s string) string {
	if len(s) > 6 {
		return s[:6] + "..."
	}
	return s
}
