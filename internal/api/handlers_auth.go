package api

import (
	"errors"
	"net/http"

	"github.com/hamzaabbasi123-ab/olivegrrove/internal/auth"
	"github.com/hamzaabbasi123-ab/olivegrrove/internal/database"
	"github.com/hamzaabbasi123-ab/olivegrrove/internal/metrics"
	"github.com/hamzaabbasi123-ab/olivegrrove/internal/session"
)

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if IdentityFromContext(r.Context()) != nil {
		s.redirect(w, r, "/")
		return
	}
	s.render(w, r, http.StatusOK, "login", map[string]string{"next": r.URL.Query().Get("next")})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if IdentityFromContext(ctx) != nil {
		s.redirect(w, r, "/")
		return
	}
	sess := sessionFromContext(ctx)

	form, err := parseLoginForm(r)
	if err != nil {
		s.metrics.IncLogin(metrics.OutcomeInvalid)
		sess.AddFlash(session.FlashDanger, validationMessage(err))
		s.render(w, r, http.StatusBadRequest, "login", nil)
		return
	}

	user, err := s.auth.Authenticate(ctx, form.Username, form.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.metrics.IncLogin(metrics.OutcomeInvalid)
			sess.AddFlash(session.FlashDanger, "Invalid username or password")
			s.render(w, r, http.StatusOK, "login", nil)
			return
		}
		s.metrics.IncLogin(metrics.OutcomeFailure)
		s.logg.Error(ctx, "auth.login_failed", err)
		s.respondError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	s.metrics.IncLogin(metrics.OutcomeSuccess)
	sess.Login(user.ID)
	sess.AddFlash(session.FlashSuccess, "Login successful!")

	next := r.URL.Query().Get("next")
	if next == "" {
		next = r.PostForm.Get("next")
	}
	s.redirect(w, r, safeNext(next))
}

func (s *Server) handleSignupPage(w http.ResponseWriter, r *http.Request) {
	if IdentityFromContext(r.Context()) != nil {
		s.redirect(w, r, "/")
		return
	}
	s.render(w, r, http.StatusOK, "signup", nil)
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if IdentityFromContext(ctx) != nil {
		s.redirect(w, r, "/")
		return
	}
	sess := sessionFromContext(ctx)

	form, err := parseSignupForm(r)
	if err != nil {
		s.metrics.IncSignup(metrics.OutcomeInvalid)
		sess.AddFlash(session.FlashDanger, validationMessage(err))
		s.render(w, r, http.StatusBadRequest, "signup", nil)
		return
	}

	_, err = s.auth.Signup(ctx, form.Username, form.Email, form.Password)
	switch {
	case err == nil:
		s.metrics.IncSignup(metrics.OutcomeSuccess)
		sess.AddFlash(session.FlashSuccess, "Account created successfully! Please login.")
		s.redirect(w, r, "/login")
	case errors.Is(err, database.ErrDuplicateUsername):
		s.metrics.IncSignup(metrics.OutcomeInvalid)
		sess.AddFlash(session.FlashDanger, "Username already exists")
		s.render(w, r, http.StatusOK, "signup", nil)
	case errors.Is(err, database.ErrDuplicateEmail):
		s.metrics.IncSignup(metrics.OutcomeInvalid)
		sess.AddFlash(session.FlashDanger, "Email already exists")
		s.render(w, r, http.StatusOK, "signup", nil)
	default:
		s.metrics.IncSignup(metrics.OutcomeFailure)
		s.logg.Error(ctx, "auth.signup_failed", err)
		s.respondError(w, r, http.StatusInternalServerError, "internal server error")
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	sess.Logout()
	sess.AddFlash(session.FlashInfo, "You have been logged out")
	s.redirect(w, r, "/")
}
