package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/hamzaabbasi123-ab/olivegrrove/internal/config"
)

var ErrNotFound = errors.New("session not found")

// Store persists session data by id.
type Store interface {
	Get(ctx context.Context, id string) (*Data, error)
	Set(ctx context.Context, id string, data *Data, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

// Manager binds stored sessions to a cookie.
type Manager struct {
	store      Store
	cookieName string
	ttl        time.Duration
	secure     bool
}

func NewManager(store Store, cfg config.SessionConfig) *Manager {
	return &Manager{
		store:      store,
		cookieName: cfg.CookieName,
		ttl:        cfg.TTL,
		secure:     cfg.Secure,
	}
}

// Load returns the session named by the request cookie, or a fresh empty
// session when there is no cookie or the stored session expired.
func (m *Manager) Load(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil || cookie.Value == "" {
		return &Session{}, nil
	}

	data, err := m.store.Get(r.Context(), cookie.Value)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return &Session{}, nil
		}
		return nil, err
	}

	return &Session{id: cookie.Value, data: *data}, nil
}

// Save persists pending changes and refreshes the cookie. It must run before
// the response headers are written.
func (m *Manager) Save(ctx context.Context, w http.ResponseWriter, s *Session) error {
	if !s.dirty {
		return nil
	}

	if s.regenerate && s.id != "" {
		s.staleID = s.id
		s.id = ""
	}
	if s.staleID != "" {
		if err := m.store.Delete(ctx, s.staleID); err != nil {
			return err
		}
		s.staleID = ""
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}

	if err := m.store.Set(ctx, s.id, &s.data, m.ttl); err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    s.id,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})

	s.dirty = false
	s.regenerate = false
	return nil
}
