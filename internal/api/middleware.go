package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hamzaabbasi123-ab/olivegrrove/internal/auth"
	"github.com/hamzaabbasi123-ab/olivegrrove/internal/session"
)

const requestIDHeader = "X-Request-Id"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, reqID)

		ctx := s.logg.WithRequestID(r.Context(), reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := s.logg.WithFields(r.Context(), map[string]any{
			"method": r.Method,
			"path":   r.URL.Path,
		})

		rec := &statusRecorder{ResponseWriter: w}
		start := time.Now()

		s.logg.Debug(ctx, "request.start")

		next.ServeHTTP(rec, r.WithContext(ctx))

		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		duration := time.Since(start)

		var route string
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			route = rctx.RoutePattern()
		}
		s.metrics.ObserveRequest(r.Method, route, strconv.Itoa(rec.status), duration)

		ctx = s.logg.WithFields(ctx, map[string]any{
			"status":      rec.status,
			"duration_ms": duration.Milliseconds(),
		})
		s.logg.Info(ctx, "request.complete")
	})
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				err := fmt.Errorf("panic: %v", rec)
				s.logg.Error(r.Context(), "panic.recovered", err)
				s.respondError(w, r, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// loadSession attaches the cookie session and, when it carries an identity,
// the reloaded user row.
func (s *Server) loadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		sess, err := s.sessions.Load(r)
		if err != nil {
			s.logg.Error(ctx, "session.load_failed", err)
			s.respondError(w, r, http.StatusServiceUnavailable, "session store unavailable")
			return
		}
		ctx = withSession(ctx, sess)

		if sess.IsAuthenticated() {
			user, err := s.auth.Resolve(ctx, sess.UserID())
			switch {
			case err == nil:
				ctx = WithIdentity(ctx, user)
				ctx = s.logg.WithUserID(ctx, user.ID)
			case errors.Is(err, auth.ErrUnauthenticated):
				sess.Logout()
			default:
				s.logg.Error(ctx, "session.resolve_failed", err)
				s.respondError(w, r, http.StatusInternalServerError, "internal server error")
				return
			}
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAuth sends anonymous requests to the login page, remembering where
// they were going.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if IdentityFromContext(r.Context()) == nil {
			sess := sessionFromContext(r.Context())
			sess.AddFlash(session.FlashInfo, "Please log in to access this page.")
			s.redirect(w, r, "/login?next="+url.QueryEscape(r.URL.RequestURI()))
			return
		}
		next.ServeHTTP(w, r)
	})
}
