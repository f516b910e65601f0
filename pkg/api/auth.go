package api

import (
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"linkshare/pkg/session"
	"linkshare/pkg/storage"
)

func (api *API) registerPageHandler(w http.ResponseWriter, r *http.Request) {
	api.render(w, http.StatusOK, viewLoginRegister, loginRegisterData{})
}

func (api *API) loginPageHandler(w http.ResponseWriter, r *http.Request) {
	api.render(w, http.StatusOK, viewLoginRegister, loginRegisterData{})
}

func (api *API) registerHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))

	req, err := parseRegister(r)
	if err != nil {
		log.Debugf("[registerHandler][%s] failed to parse form: %v", sID, err)
		api.render(w, http.StatusBadRequest, viewLoginRegister, loginRegisterData{Error: "Invalid request"})
		return
	}
	if err := api.validate.Struct(req); err != nil {
		log.Debugf("[registerHandler][%s] invalid registration: %v", sID, err)
		api.render(w, http.StatusBadRequest, viewLoginRegister, loginRegisterData{Error: validationMessage(err)})
		return
	}

	_, err = api.db.UserByEmail(r.Context(), req.Email)
	if err == nil {
		log.Debugf("[registerHandler][%s] email already registered", sID)
		api.render(w, http.StatusOK, viewLoginRegister, loginRegisterData{Error: msgEmailTaken})
		return
	}
	if !errors.Is(err, storage.ErrUserNotFound) {
		log.Errorf("[registerHandler][%s] UserByEmail() returned error: %v", sID, err)
		api.render(w, http.StatusInternalServerError, viewLoginRegister, loginRegisterData{Error: msgInternal})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), api.passwordCost)
	if err != nil {
		log.Errorf("[registerHandler][%s] failed to hash password: %v", sID, err)
		api.render(w, http.StatusInternalServerError, viewLoginRegister, loginRegisterData{Error: msgInternal})
		return
	}

	user, err := api.db.CreateUser(r.Context(), storage.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
	})
	if errors.Is(err, storage.ErrEmailTaken) {
		log.Debugf("[registerHandler][%s] email registered concurrently", sID)
		api.render(w, http.StatusOK, viewLoginRegister, loginRegisterData{Error: msgEmailTaken})
		return
	}
	if err != nil {
		log.Errorf("[registerHandler][%s] CreateUser() returned error: %v", sID, err)
		api.render(w, http.StatusInternalServerError, viewLoginRegister, loginRegisterData{Error: msgInternal})
		return
	}

	log.Infof("[registerHandler][%s] user %v registered", sID, user.ID)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (api *API) loginHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))

	req, err := parseLogin(r)
	if err != nil {
		log.Debugf("[loginHandler][%s] failed to parse form: %v", sID, err)
		api.render(w, http.StatusBadRequest, viewLoginRegister, loginRegisterData{Error: "Invalid request"})
		return
	}
	if err := api.validate.Struct(req); err != nil {
		log.Debugf("[loginHandler][%s] invalid login: %v", sID, err)
		api.render(w, http.StatusBadRequest, viewLoginRegister, loginRegisterData{Error: validationMessage(err)})
		return
	}

	user, err := api.db.UserByEmail(r.Context(), req.Email)
	if err != nil && !errors.Is(err, storage.ErrUserNotFound) {
		log.Errorf("[loginHandler][%s] UserByEmail() returned error: %v", sID, err)
		api.render(w, http.StatusInternalServerError, viewLoginRegister, loginRegisterData{Error: msgInternal})
		return
	}

	hash := []byte(user.PasswordHash)
	if err != nil {
		hash = api.dummyHash
	}
	if cmpErr := bcrypt.CompareHashAndPassword(hash, []byte(req.Password)); cmpErr != nil || err != nil {
		log.Debugf("[loginHandler][%s] invalid credentials", sID)
		api.render(w, http.StatusOK, viewLoginRegister, loginRegisterData{Error: msgBadCredentials})
		return
	}

	_, err = api.sessions.Create(r.Context(), w, session.Session{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
	})
	if err != nil {
		log.Errorf("[loginHandler][%s] failed to create session: %v", sID, err)
		api.render(w, http.StatusInternalServerError, viewLoginRegister, loginRegisterData{Error: msgInternal})
		return
	}

	log.Debugf("[loginHandler][%s] user %v logged in", sID, user.ID)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (api *API) logoutHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))

	if err := api.sessions.Destroy(r.Context(), w, r); err != nil {
		log.Warnf("[logoutHandler][%s] failed to destroy session: %v", sID, err)
	}

	http.Redirect(w, r, "/login", http.StatusFound)
}
