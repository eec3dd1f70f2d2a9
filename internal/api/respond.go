package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/hamzaabbasi123-ab/olivegrrove/internal/models"
	"github.com/hamzaabbasi123-ab/olivegrrove/internal/session"
)

// pageView is the model a template would receive.
type pageView struct {
	Page    string          `json:"page"`
	User    *models.User    `json:"user,omitempty"`
	Flashes []session.Flash `json:"flashes"`
	Data    any             `json:"data,omitempty"`
}

// render pops pending flashes into the page model and writes it.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, page string, data any) {
	sess := sessionFromContext(r.Context())
	view := pageView{
		Page:    page,
		User:    IdentityFromContext(r.Context()),
		Flashes: sess.PopFlashes(),
		Data:    data,
	}

	if err := s.sessions.Save(r.Context(), w, sess); err != nil {
		s.logg.Error(r.Context(), "session.save_failed", err)
	}

	s.respondJSON(w, r, status, view)
}

// redirect persists the session before answering with 302.
func (s *Server) redirect(w http.ResponseWriter, r *http.Request, target string) {
	sess := sessionFromContext(r.Context())
	if err := s.sessions.Save(r.Context(), w, sess); err != nil {
		s.logg.Error(r.Context(), "session.save_failed", err)
		s.respondError(w, r, http.StatusServiceUnavailable, "session store unavailable")
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// safeNext accepts only local absolute paths as post-login destinations.
// Browsers drop tabs and newlines from Location and treat backslashes as
// slashes, so any of those could turn a path into a host.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return "/"
	}
	for _, c := range next {
		if c < 0x20 || c == 0x7f || c == '\\' {
			return "/"
		}
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "/"
	}
	return next
}

func (s *Server) respondJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logg.Error(r.Context(), "response.encode_failed", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	s.respondJSON(w, r, status, map[string]string{"error": message})
}
