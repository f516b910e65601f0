package censor

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

// Service exposes a Checker over HTTP for Remote clients.
type Service struct {
	r *mux.Router
	c Checker
}

func NewService(c Checker) *Service {
	s := Service{r: mux.NewRouter(), c: c}
	s.r.HandleFunc("/check", s.checkHandler).Methods(http.MethodPost)
	return &s
}

func (s *Service) Router() *mux.Router {
	return s.r
}

func (s *Service) checkHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(r.Header.Get("X-Request-Id"))

	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Debugf("[checkHandler][%s] failed to decode request body: %v", sID, err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	banned, err := s.c.Banned(r.Context(), req.Text)
	if err != nil {
		log.Errorf("[checkHandler][%s] check failed: %v", sID, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if banned {
		log.Debugf("[checkHandler][%s] text rejected", sID)
		w.WriteHeader(http.StatusUnprocessableEntity)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// shorten truncates a string to 6 characters if it is longer than 6, appends '...' at the end,
// otherwise it returns the string unchanged.
func shorten(s string) string {
	if len(s) > 6 {
		return s[:6] + "..."
	}
	return s
}
