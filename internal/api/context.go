package api

import (
	"context"

	"github.com/hamzaabbasi123-ab/olivegrrove/internal/models"
	"github.com/hamzaabbasi123-ab/olivegrrove/internal/session"
)

type contextKey string

const (
	ctxSession  contextKey = "session"
	ctxIdentity contextKey = "identity"
)

func withSession(ctx context.Context, sess *session.Session) context.Context {
	return context.WithValue(ctx, ctxSession, sess)
}

// sessionFromContext never returns nil; routes outside loadSession get a
// throwaway session.
func sessionFromContext(ctx context.Context) *session.Session {
	if sess, ok := ctx.Value(ctxSession).(*session.Session); ok && sess != nil {
		return sess
	}
	return &session.Session{}
}

// WithIdentity binds the authenticated user to the request context.
func WithIdentity(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, ctxIdentity, user)
}

// IdentityFromContext returns the authenticated user, or nil.
func IdentityFromContext(ctx context.Context) *models.User {
	if user, ok := ctx.Value(ctxIdentity).(*models.User); ok {
		return user
	}
	return nil
}
