package auth_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"academic-vault/internal/auth"
	"academic-vault/internal/av"
	"academic-vault/internal/database"
	"academic-vault/internal/model"
	"academic-vault/internal/testutil"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type authFixture struct {
	svc      *auth.Service
	db       *database.MemoryDatabase
	sessions *auth.MemorySessionStore
	clock    *testutil.StubClock
}

func newMemoryStore() *database.MemoryDatabase {
	return database.NewMemoryDatabase()
}

func newAuthFixture(t *testing.T, stateless bool) *authFixture {
	t.Helper()
	db := newMemoryStore()
	clock := testutil.FixedClock()
	fx := &authFixture{db: db, clock: clock}

	var sessions auth.SessionStore
	if !stateless {
		fx.sessions = auth.NewMemorySessionStore(clock)
		sessions = fx.sessions
	}
	svc, err := auth.NewService(db, sessions, testSecret, time.Hour, nil, clock, testutil.NewStubIDGenerator(),
		auth.WithPasswordCost(bcrypt.MinCost))
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	fx.svc = svc
	return fx
}

func (fx *authFixture) signUp(t *testing.T, email string) string {
	t.Helper()
	token, err := fx.svc.SignUp(context.Background(), email, "correct horse", "Ada")
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	return token
}

func TestNewService_RejectsShortSecret(t *testing.T) {
	_, err := auth.NewService(database.NewMemoryDatabase(), nil, "short", time.Hour, nil, nil, nil)
	if err == nil {
		t.Fatal("NewService() expected error for short secret")
	}
}

func TestService_SignUp(t *testing.T) {
	ctx := context.Background()

	t.Run("creates unverified student", func(t *testing.T) {
		fx := newAuthFixture(t, false)
		fx.signUp(t, "  Ada@Example.EDU ")

		account, err := fx.db.GetAccountByEmail(ctx, "ada@example.edu")
		if err != nil || account == nil {
			t.Fatalf("GetAccountByEmail() = %v, %v", account, err)
		}
		if account.EmailVerifiedAt != nil {
			t.Error("new account should not be verified")
		}
		if account.PasswordHash == "correct horse" {
			t.Error("password stored in plain text")
		}
		profile, _ := fx.db.GetProfile(ctx, account.ID)
		if profile == nil || profile.Role != model.RoleStudent || profile.DisplayName != "Ada" {
			t.Errorf("profile = %+v, want Student named Ada", profile)
		}
	})

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{name: "invalid email", email: "not-an-email", password: "correct horse", wantErr: av.ErrValidation},
		{name: "short password", email: "bob@example.edu", password: "short", wantErr: av.ErrValidation},
		{name: "taken email", email: "ADA@example.edu", password: "correct horse", wantErr: auth.ErrEmailTaken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newAuthFixture(t, false)
			fx.signUp(t, "ada@example.edu")
			_, err := fx.svc.SignUp(ctx, tt.email, tt.password, "")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("SignUp() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestService_VerifyEmail(t *testing.T) {
	ctx := context.Background()

	t.Run("verifies account", func(t *testing.T) {
		fx := newAuthFixture(t, false)
		verify := fx.signUp(t, "ada@example.edu")
		if err := fx.svc.VerifyEmail(ctx, verify); err != nil {
			t.Fatalf("VerifyEmail() error = %v", err)
		}
		// Verifying twice is fine.
		if err := fx.svc.VerifyEmail(ctx, verify); err != nil {
			t.Fatalf("second VerifyEmail() error = %v", err)
		}

		token, err := fx.svc.SignIn(ctx, "ada@example.edu", "correct horse")
		if err != nil {
			t.Fatalf("SignIn() error = %v", err)
		}
		id, err := fx.svc.Session(ctx, token)
		if err != nil {
			t.Fatalf("Session() error = %v", err)
		}
		if !id.EmailVerified {
			t.Error("EmailVerified = false after verification")
		}
		if err := id.CanUpload(); err != nil {
			t.Errorf("CanUpload() error = %v", err)
		}
	})

	t.Run("session token is not a verification token", func(t *testing.T) {
		fx := newAuthFixture(t, false)
		fx.signUp(t, "ada@example.edu")
		token, err := fx.svc.SignIn(ctx, "ada@example.edu", "correct horse")
		if err != nil {
			t.Fatalf("SignIn() error = %v", err)
		}
		if err := fx.svc.VerifyEmail(ctx, token); !errors.Is(err, auth.ErrInvalidToken) {
			t.Errorf("VerifyEmail() error = %v, want ErrInvalidToken", err)
		}
	})

	t.Run("expired token", func(t *testing.T) {
		fx := newAuthFixture(t, false)
		verify := fx.signUp(t, "ada@example.edu")
		fx.clock.Advance(72 * time.Hour)
		if err := fx.svc.VerifyEmail(ctx, verify); !errors.Is(err, auth.ErrInvalidToken) {
			t.Errorf("VerifyEmail() error = %v, want ErrInvalidToken", err)
		}
	})
}

func TestService_SignIn(t *testing.T) {
	ctx := context.Background()
	fx := newAuthFixture(t, false)
	fx.signUp(t, "ada@example.edu")

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{name: "wrong password", email: "ada@example.edu", password: "wrong horse"},
		{name: "unknown email", email: "eve@example.edu", password: "correct horse"},
		{name: "malformed email", email: "@@", password: "correct horse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := fx.svc.SignIn(ctx, tt.email, tt.password); !errors.Is(err, auth.ErrInvalidCredentials) {
				t.Errorf("SignIn() error = %v, want ErrInvalidCredentials", err)
			}
		})
	}

	t.Run("unverified session", func(t *testing.T) {
		token, err := fx.svc.SignIn(ctx, "ADA@example.edu", "correct horse")
		if err != nil {
			t.Fatalf("SignIn() error = %v", err)
		}
		id, err := fx.svc.Session(ctx, token)
		if err != nil {
			t.Fatalf("Session() error = %v", err)
		}
		if id.Email != "ada@example.edu" || id.EmailVerified {
			t.Errorf("identity = %+v", id)
		}
		if !errors.Is(id.CanUpload(), av.ErrPermission) {
			t.Error("unverified identity should not upload")
		}
	})
}

func TestService_Session(t *testing.T) {
	ctx := context.Background()

	t.Run("sign out revokes", func(t *testing.T) {
		fx := newAuthFixture(t, false)
		fx.signUp(t, "ada@example.edu")
		token, _ := fx.svc.SignIn(ctx, "ada@example.edu", "correct horse")

		if err := fx.svc.SignOut(ctx, token); err != nil {
			t.Fatalf("SignOut() error = %v", err)
		}
		if _, err := fx.svc.Session(ctx, token); !errors.Is(err, auth.ErrInvalidToken) {
			t.Errorf("Session() error = %v, want ErrInvalidToken", err)
		}
		if err := fx.svc.SignOut(ctx, token); err != nil {
			t.Errorf("second SignOut() error = %v", err)
		}
	})

	t.Run("stateless tokens survive sign out", func(t *testing.T) {
		fx := newAuthFixture(t, true)
		fx.signUp(t, "ada@example.edu")
		token, _ := fx.svc.SignIn(ctx, "ada@example.edu", "correct horse")
		if err := fx.svc.SignOut(ctx, token); err != nil {
			t.Fatalf("SignOut() error = %v", err)
		}
		if _, err := fx.svc.Session(ctx, token); err != nil {
			t.Errorf("Session() error = %v", err)
		}
	})

	t.Run("expired", func(t *testing.T) {
		fx := newAuthFixture(t, false)
		fx.signUp(t, "ada@example.edu")
		token, _ := fx.svc.SignIn(ctx, "ada@example.edu", "correct horse")
		fx.clock.Advance(2 * time.Hour)
		if _, err := fx.svc.Session(ctx, token); !errors.Is(err, auth.ErrInvalidToken) {
			t.Errorf("Session() error = %v, want ErrInvalidToken", err)
		}
	})

	t.Run("tampered", func(t *testing.T) {
		fx := newAuthFixture(t, false)
		fx.signUp(t, "ada@example.edu")
		token, _ := fx.svc.SignIn(ctx, "ada@example.edu", "correct horse")
		tampered := token[:len(token)-2] + "xx"
		if strings.HasSuffix(token, "xx") {
			tampered = token[:len(token)-2] + "yy"
		}
		if _, err := fx.svc.Session(ctx, tampered); !errors.Is(err, auth.ErrInvalidToken) {
			t.Errorf("Session() error = %v, want ErrInvalidToken", err)
		}
	})

	t.Run("other secret", func(t *testing.T) {
		fx := newAuthFixture(t, true)
		fx.signUp(t, "ada@example.edu")
		token, _ := fx.svc.SignIn(ctx, "ada@example.edu", "correct horse")

		other, err := auth.NewService(fx.db, nil, strings.Repeat("z", 32), time.Hour, nil, fx.clock, nil)
		if err != nil {
			t.Fatalf("NewService() error = %v", err)
		}
		if _, err := other.Session(ctx, token); !errors.Is(err, auth.ErrInvalidToken) {
			t.Errorf("Session() error = %v, want ErrInvalidToken", err)
		}
	})

	t.Run("missing profile is created", func(t *testing.T) {
		fx := newAuthFixture(t, false)
		account := &model.Account{ID: "legacy", Email: "old@example.edu", CreatedAt: fx.clock.Now()}
		hash, _ := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
		account.PasswordHash = string(hash)
		if err := fx.db.CreateAccount(ctx, account); err != nil {
			t.Fatalf("CreateAccount() error = %v", err)
		}
		token, err := fx.svc.SignIn(ctx, "old@example.edu", "correct horse")
		if err != nil {
			t.Fatalf("SignIn() error = %v", err)
		}
		id, err := fx.svc.Session(ctx, token)
		if err != nil {
			t.Fatalf("Session() error = %v", err)
		}
		if id.Profile == nil || id.Profile.Role != model.RoleStudent || id.Profile.DisplayName != "old@example.edu" {
			t.Errorf("Profile = %+v", id.Profile)
		}
		stored, _ := fx.db.GetProfile(ctx, "legacy")
		if stored == nil {
			t.Error("profile was not stored")
		}
	})
}

func TestService_SignInGuest(t *testing.T) {
	ctx := context.Background()
	fx := newAuthFixture(t, false)

	token, err := fx.svc.SignInGuest(ctx)
	if err != nil {
		t.Fatalf("SignInGuest() error = %v", err)
	}
	id, err := fx.svc.Session(ctx, token)
	if err != nil {
		t.Fatalf("Session() error = %v", err)
	}
	if id.Role() != model.RoleGuest {
		t.Errorf("Role() = %q, want Guest", id.Role())
	}
	if !strings.HasPrefix(id.UserID, "guest-") {
		t.Errorf("UserID = %q, want guest- prefix", id.UserID)
	}
	if !errors.Is(id.CanUpload(), av.ErrPermission) {
		t.Error("guests should not upload")
	}
}

func TestService_UpdateSettings(t *testing.T) {
	ctx := context.Background()
	fx := newAuthFixture(t, false)
	fx.signUp(t, "ada@example.edu")
	token, _ := fx.svc.SignIn(ctx, "ada@example.edu", "correct horse")
	id, err := fx.svc.Session(ctx, token)
	if err != nil {
		t.Fatalf("Session() error = %v", err)
	}

	if _, err := fx.svc.UpdateSettings(ctx, id, model.UserSettings{SidebarCollapsed: true}); err != nil {
		t.Fatalf("UpdateSettings() error = %v", err)
	}
	stored, _ := fx.db.GetProfile(ctx, id.UserID)
	if !stored.Settings.SidebarCollapsed {
		t.Error("SidebarCollapsed not persisted")
	}
	if !id.Profile.Settings.SidebarCollapsed {
		t.Error("identity profile not updated")
	}

	if _, err := fx.svc.UpdateSettings(ctx, nil, model.UserSettings{}); !errors.Is(err, av.ErrPermission) {
		t.Errorf("UpdateSettings(nil) error = %v, want ErrPermission", err)
	}
}

func TestService_SetRole(t *testing.T) {
	ctx := context.Background()
	fx := newAuthFixture(t, false)
	fx.signUp(t, "ada@example.edu")

	profile, err := fx.svc.SetRole(ctx, "ADA@example.edu", model.RoleAdmin)
	if err != nil {
		t.Fatalf("SetRole() error = %v", err)
	}
	if profile.Role != model.RoleAdmin {
		t.Errorf("Role = %q, want Admin", profile.Role)
	}

	token, err := fx.svc.SignIn(ctx, "ada@example.edu", "correct horse")
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	id, err := fx.svc.Session(ctx, token)
	if err != nil {
		t.Fatalf("Session() error = %v", err)
	}
	if !id.IsAdmin() {
		t.Error("IsAdmin() = false after SetRole(Admin)")
	}

	tests := []struct {
		name  string
		email string
		role  model.Role
		want  error
	}{
		{name: "guest role", email: "ada@example.edu", role: model.RoleGuest, want: av.ErrValidation},
		{name: "unknown account", email: "bob@example.edu", role: model.RoleAdmin, want: av.ErrNotFound},
		{name: "bad email", email: "nope", role: model.RoleAdmin, want: av.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := fx.svc.SetRole(ctx, tt.email, tt.role); !errors.Is(err, tt.want) {
				t.Errorf("SetRole() error = %v, want %v", err, tt.want)
			}
		})
	}
}
