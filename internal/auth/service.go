package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"academic-vault/internal/av"
	"academic-vault/internal/model"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// Store is the records backend used by Service.
type Store interface {
	AccountStore
	ProfileStore
}

// Service signs users up and in and turns session tokens into identities.
//
// Session tokens are HS256 JWTs. When a SessionStore is configured every
// token is also backed by a stored session, so SignOut revokes it; without
// one tokens are valid until they expire.
type Service struct {
	store    Store
	sessions SessionStore
	tokens   *tokens
	ttl      time.Duration
	cost     int
	logger   av.Logger
	clock    av.Clock
	idgen    av.IDGenerator
}

// Option configures a Service.
type Option func(*Service)

// WithPasswordCost sets the bcrypt cost used for new passwords.
func WithPasswordCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

// NewService creates a Service. sessions may be nil for stateless tokens.
func NewService(store Store, sessions SessionStore, secret string, ttl time.Duration, logger av.Logger, clock av.Clock, idgen av.IDGenerator, opts ...Option) (*Service, error) {
	if logger == nil {
		logger = av.NewNopLogger()
	}
	if clock == nil {
		clock = av.RealClock{}
	}
	if idgen == nil {
		idgen = av.UUIDGenerator{}
	}
	t, err := newTokens(secret, clock.Now)
	if err != nil {
		return nil, err
	}
	s := &Service{
		store:    store,
		sessions: sessions,
		tokens:   t,
		ttl:      ttl,
		cost:     bcrypt.DefaultCost,
		logger:   logger,
		clock:    clock,
		idgen:    idgen,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SignUp creates an unverified account with a Student profile and returns the
// email verification token.
func (s *Service) SignUp(ctx context.Context, email, password, displayName string) (string, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return "", err
	}
	if len(password) < MinPasswordLength {
		return "", fmt.Errorf("%w: password must be at least %d characters", av.ErrValidation, MinPasswordLength)
	}

	existing, err := s.store.GetAccountByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("looking up account: %w", err)
	}
	if existing != nil {
		return "", ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	account := &model.Account{
		ID:           s.idgen.New(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.clock.Now(),
	}
	if err := s.store.CreateAccount(ctx, account); err != nil {
		return "", fmt.Errorf("creating account: %w", err)
	}

	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = email
	}
	profile := &model.UserProfile{ID: account.ID, DisplayName: displayName, Role: model.RoleStudent}
	if err := s.store.CreateProfile(ctx, profile); err != nil {
		return "", fmt.Errorf("creating profile: %w", err)
	}

	token, _, err := s.tokens.issue(audienceVerify, "", account.ID, verificationTTL, claims{Email: email})
	if err != nil {
		return "", err
	}
	s.logger.Info("account created", "user_id", account.ID)
	return token, nil
}

// VerifyEmail marks the account named by a verification token as verified.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	c, err := s.tokens.parse(audienceVerify, token)
	if err != nil {
		return err
	}
	account, err := s.store.GetAccount(ctx, c.Subject)
	if err != nil {
		return fmt.Errorf("looking up account: %w", err)
	}
	if account == nil || account.Email != c.Email {
		return fmt.Errorf("%w: unknown account", ErrInvalidToken)
	}
	if err := s.store.MarkEmailVerified(ctx, account.ID, s.clock.Now()); err != nil {
		return fmt.Errorf("verifying email: %w", err)
	}
	s.logger.Info("email verified", "user_id", account.ID)
	return nil
}

// SignIn checks the password and returns a session token.
func (s *Service) SignIn(ctx context.Context, email, password string) (string, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return "", ErrInvalidCredentials
	}
	account, err := s.store.GetAccountByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("looking up account: %w", err)
	}
	if account == nil {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("checking password: %w", err)
	}
	return s.startSession(ctx, account.ID, claims{Email: account.Email})
}

// SignInGuest creates a Guest profile and returns a session token for it.
func (s *Service) SignInGuest(ctx context.Context) (string, error) {
	profile := &model.UserProfile{
		ID:          "guest-" + s.idgen.New(),
		DisplayName: "Guest",
		Role:        model.RoleGuest,
	}
	if err := s.store.CreateProfile(ctx, profile); err != nil {
		return "", fmt.Errorf("creating guest profile: %w", err)
	}
	return s.startSession(ctx, profile.ID, claims{Guest: true})
}

func (s *Service) startSession(ctx context.Context, userID string, c claims) (string, error) {
	id := s.idgen.New()
	token, expires, err := s.tokens.issue(audienceSession, id, userID, s.ttl, c)
	if err != nil {
		return "", err
	}
	if s.sessions != nil {
		session := &Session{ID: id, UserID: userID, Guest: c.Guest, ExpiresAt: expires}
		if err := s.sessions.Save(ctx, session); err != nil {
			return "", fmt.Errorf("saving session: %w", err)
		}
	}
	s.logger.Info("signed in", "user_id", userID, "guest", c.Guest)
	return token, nil
}

// SignOut revokes a session token. Expired or unknown tokens are ignored.
func (s *Service) SignOut(ctx context.Context, token string) error {
	c, err := s.tokens.parse(audienceSession, token)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			return nil
		}
		return err
	}
	if s.sessions == nil {
		return nil
	}
	if err := s.sessions.Delete(ctx, c.ID); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	s.logger.Info("signed out", "user_id", c.Subject)
	return nil
}

// Session returns the identity behind a session token.
func (s *Service) Session(ctx context.Context, token string) (*av.Identity, error) {
	c, err := s.tokens.parse(audienceSession, token)
	if err != nil {
		return nil, err
	}
	if s.sessions != nil {
		session, err := s.sessions.Get(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("getting session: %w", err)
		}
		if session == nil || session.UserID != c.Subject {
			return nil, fmt.Errorf("%w: session revoked", ErrInvalidToken)
		}
	}

	if c.Guest {
		profile, err := s.store.GetProfile(ctx, c.Subject)
		if err != nil {
			return nil, fmt.Errorf("getting profile: %w", err)
		}
		if profile == nil {
			return nil, fmt.Errorf("%w: unknown guest", ErrInvalidToken)
		}
		return &av.Identity{UserID: c.Subject, Profile: profile}, nil
	}

	account, err := s.store.GetAccount(ctx, c.Subject)
	if err != nil {
		return nil, fmt.Errorf("looking up account: %w", err)
	}
	if account == nil {
		return nil, fmt.Errorf("%w: unknown account", ErrInvalidToken)
	}
	profile, err := s.Profile(ctx, account)
	if err != nil {
		return nil, err
	}
	return &av.Identity{
		UserID:        account.ID,
		Email:         account.Email,
		EmailVerified: account.EmailVerifiedAt != nil,
		Profile:       profile,
	}, nil
}

// Profile returns the profile of an account, creating a Student profile
// named after the email address when none exists.
func (s *Service) Profile(ctx context.Context, account *model.Account) (*model.UserProfile, error) {
	profile, err := s.store.GetProfile(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("getting profile: %w", err)
	}
	if profile != nil {
		return profile, nil
	}

	s.logger.Info("profile not found, creating one", "user_id", account.ID)
	profile = &model.UserProfile{ID: account.ID, DisplayName: account.Email, Role: model.RoleStudent}
	if err := s.store.CreateProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("creating profile: %w", err)
	}
	return profile, nil
}

// UpdateSettings stores new settings on the identity's profile.
func (s *Service) UpdateSettings(ctx context.Context, identity *av.Identity, settings model.UserSettings) (*model.UserProfile, error) {
	if identity == nil || identity.Profile == nil {
		return nil, fmt.Errorf("%w: sign in to change settings", av.ErrPermission)
	}
	profile := *identity.Profile
	profile.Settings = settings
	if err := s.store.UpdateProfile(ctx, &profile); err != nil {
		return nil, fmt.Errorf("updating settings: %w", err)
	}
	identity.Profile = &profile
	return &profile, nil
}

// SetRole changes the role of the account registered under email. It is an
// operator action and performs no identity check.
func (s *Service) SetRole(ctx context.Context, email string, role model.Role) (*model.UserProfile, error) {
	switch role {
	case model.RoleAdmin, model.RoleStudent:
	default:
		return nil, fmt.Errorf("%w: role %q cannot be assigned", av.ErrValidation, role)
	}
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	account, err := s.store.GetAccountByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("looking up account: %w", err)
	}
	if account == nil {
		return nil, fmt.Errorf("%w: no account for %s", av.ErrNotFound, email)
	}
	profile, err := s.Profile(ctx, account)
	if err != nil {
		return nil, err
	}
	updated := *profile
	updated.Role = role
	if err := s.store.UpdateProfile(ctx, &updated); err != nil {
		return nil, fmt.Errorf("updating role: %w", err)
	}
	s.logger.Info("role changed", "user_id", account.ID, "role", role)
	return &updated, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: invalid email address %q", av.ErrValidation, email)
	}
	return email, nil
}
