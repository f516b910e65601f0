package api

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gofrs/uuid"
	log "github.com/sirupsen/logrus"

	"linkshare/pkg/logger"
	"linkshare/pkg/session"
)

type ctxKeyRequestID struct{}

var RequestIDKey = ctxKeyRequestID{}

type ctxKeyRequestInfo struct{}

// requestInfo is filled by inner middleware for the request log.
type requestInfo struct {
	userID string
}

func (api *API) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			id, err := uuid.NewV4()
			if err != nil {
				log.Errorf("[requestIDMiddleware] failed to generate request ID for %v: %v", r.RemoteAddr, err)
				http.Error(w, msgInternal, http.StatusInternalServerError)
				return
			}
			reqID = id.String()
		}

		w.Header().Set("X-Request-Id", reqID)
		ctx := context.WithValue(r.Context(), RequestIDKey, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (api *API) loggingMiddleware(kWriter logger.MessageWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lw := logger.New(w)
			info := &requestInfo{}
			r = r.WithContext(context.WithValue(r.Context(), ctxKeyRequestInfo{}, info))

			defer func() {
				entry := logger.Entry{
					Timestamp:  time.Now().UTC(),
					IP:         getClientIP(r),
					StatusCode: lw.Status(),
					RequestID:  GetRequestID(r.Context()),
					UserID:     info.userID,
					Method:     r.Method,
					Path:       r.URL.Path,
					Bytes:      lw.Size(),
					Duration:   time.Since(start).Seconds(),
					Service:    api.ServiceName,
				}

				go func() {
					ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
					defer cancel()
					if err := logger.Ship(ctx, kWriter, entry); err != nil {
						log.Errorf("[loggingMiddleware] failed to write log to Kafka: %v", err)
						return
					}
					log.Debugf("[loggingMiddleware] log entry sent to Kafka request_id:%s", entry.RequestID)
				}()
			}()

			next.ServeHTTP(lw, r)
		})
	}
}

func (api *API) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lw := logger.New(w)
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			log.Errorf("[recoverMiddleware][%s] panic serving %s %s: %v\n%s",
				shorten(GetRequestID(r.Context())), r.Method, r.URL.Path, rec, debug.Stack())
			if !lw.Written() {
				http.Error(lw, msgInternal, http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(lw, r)
	})
}

// requireSession resolves the session of the request into its context and
// sends visitors without a valid session to the login page.
func (api *API) requireSession(h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sID := shorten(GetRequestID(r.Context()))

		s, err := api.sessions.Current(r)
		if err != nil {
			if !errors.Is(err, session.ErrInvalidToken) && !errors.Is(err, session.ErrNotFound) {
				log.Errorf("[requireSession][%s] failed to load session: %v", sID, err)
				http.Error(w, msgInternal, http.StatusInternalServerError)
				return
			}
			log.Debugf("[requireSession][%s] no valid session: %v", sID, err)
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}

		if info, ok := r.Context().Value(ctxKeyRequestInfo{}).(*requestInfo); ok {
			info.userID = s.UserID.String()
		}
		h(w, r.WithContext(session.NewContext(r.Context(), s)))
	})
}

func getClientIP(r *http.Request) string {
	ip := r.Header.Get("X-Forwarded-For")
	if ip == "" {
		ip = r.RemoteAddr
	}

	return ip
}
