package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hamzaabbasi123-ab/olivegrrove/internal/database"
	"github.com/hamzaabbasi123-ab/olivegrrove/internal/models"
	"github.com/hamzaabbasi123-ab/olivegrrove/internal/security"
	"github.com/hamzaabbasi123-ab/olivegrrove/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUnauthenticated    = errors.New("authentication required")
)

// Service creates and authenticates user accounts.
type Service struct {
	db         *sql.DB
	bcryptCost int
}

func NewService(db *sql.DB, bcryptCost int) *Service {
	return &Service{db: db, bcryptCost: bcryptCost}
}

// Signup creates an account. Username is checked before email, matching the
// order in which conflicts are reported to the user.
func (s *Service) Signup(ctx context.Context, username, email, password string) (*models.User, error) {
	taken, err := store.UsernameExists(ctx, s.db, username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, database.ErrDuplicateUsername
	}

	taken, err = store.EmailExists(ctx, s.db, email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, database.ErrDuplicateEmail
	}

	hash, err := security.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	// A concurrent signup can still win the race; CreateUser maps the
	// resulting unique violation to the same duplicate errors.
	return store.CreateUser(ctx, s.db, username, email, hash)
}

// Authenticate returns the user when the credentials match. Unknown usernames
// and wrong passwords both yield ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := store.GetUserByUsername(ctx, s.db, username)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// Resolve loads the identity bound to a session. A session pointing at a
// deleted account is treated as unauthenticated.
func (s *Service) Resolve(ctx context.Context, userID int64) (*models.User, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	user, err := store.GetUser(ctx, s.db, userID)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	return user, nil
}
