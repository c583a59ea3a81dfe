package av

import (
	"fmt"

	"academic-vault/internal/model"
)

// Identity is the authenticated principal of a session.
type Identity struct {
	UserID        string
	Email         string
	EmailVerified bool
	Profile       *model.UserProfile
}

// Role returns the profile role, treating a missing profile as a guest.
func (id *Identity) Role() model.Role {
	if id == nil || id.Profile == nil {
		return model.RoleGuest
	}
	return id.Profile.Role
}

// IsAdmin reports whether the identity carries the Admin role.
func (id *Identity) IsAdmin() bool {
	return id.Role() == model.RoleAdmin
}

// CanUpload returns ErrPermission for guests and unverified email addresses.
func (id *Identity) CanUpload() error {
	if id == nil || id.UserID == "" {
		return fmt.Errorf("%w: sign in to upload files", ErrPermission)
	}
	if id.Role() == model.RoleGuest {
		return fmt.Errorf("%w: guests cannot upload files", ErrPermission)
	}
	if !id.EmailVerified {
		return fmt.Errorf("%w: verify your email address before uploading files", ErrPermission)
	}
	return nil
}
