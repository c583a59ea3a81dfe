package auth

import (
	"context"
	"errors"
	"time"

	"academic-vault/internal/model"
)

var (
	// ErrInvalidCredentials is returned by SignIn for an unknown email or a wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrInvalidToken is returned for malformed, expired or revoked tokens.
	ErrInvalidToken = errors.New("invalid or expired token")

	// ErrEmailTaken is returned by SignUp when the email is already registered.
	ErrEmailTaken = errors.New("email already registered")
)

// AccountStore persists sign-in accounts.
type AccountStore interface {
	// CreateAccount inserts a new account.
	CreateAccount(ctx context.Context, account *model.Account) error

	// GetAccount returns an account by id, or nil if not found.
	GetAccount(ctx context.Context, id string) (*model.Account, error)

	// GetAccountByEmail returns an account by email, or nil if not found.
	GetAccountByEmail(ctx context.Context, email string) (*model.Account, error)

	// MarkEmailVerified records the verification time. Verifying twice is not an error.
	MarkEmailVerified(ctx context.Context, id string, at time.Time) error
}

// ProfileStore persists user profiles.
type ProfileStore interface {
	GetProfile(ctx context.Context, id string) (*model.UserProfile, error)
	CreateProfile(ctx context.Context, profile *model.UserProfile) error
	UpdateProfile(ctx context.Context, profile *model.UserProfile) error
}

// Session is a server-side record of one sign-in.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Guest     bool      `json:"guest,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionStore keeps sign-in sessions so they can be revoked before their
// token expires.
type SessionStore interface {
	// Save stores a session until its ExpiresAt.
	Save(ctx context.Context, session *Session) error

	// Get returns a live session, or nil if it does not exist or has expired.
	Get(ctx context.Context, id string) (*Session, error)

	// Delete removes a session. Deleting a missing session is not an error.
	Delete(ctx context.Context, id string) error

	Close() error
}
