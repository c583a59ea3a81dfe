package testutil

import (
	"academic-vault/internal/av"
	"academic-vault/internal/model"
)

// StudentIdentity returns a verified student session for userID.
func StudentIdentity(userID string) *av.Identity {
	return identity(userID, model.RoleStudent, true)
}

// AdminIdentity returns a verified admin session for userID.
func AdminIdentity(userID string) *av.Identity {
	return identity(userID, model.RoleAdmin, true)
}

// GuestIdentity returns a guest session for userID.
func GuestIdentity(userID string) *av.Identity {
	return identity(userID, model.RoleGuest, false)
}

// UnverifiedIdentity returns a student session whose email is not yet verified.
func UnverifiedIdentity(userID string) *av.Identity {
	return identity(userID, model.RoleStudent, false)
}

func identity(userID string, role model.Role, verified bool) *av.Identity {
	email := ""
	if role != model.RoleGuest {
		email = userID + "@example.edu"
	}
	return &av.Identity{
		UserID:        userID,
		Email:         email,
		EmailVerified: verified,
		Profile:       &model.UserProfile{ID: userID, DisplayName: userID, Role: role},
	}
}
