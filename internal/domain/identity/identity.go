package identity

import (
	"errors"
	"strings"
	"time"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// ParseRole maps arbitrary input to a known role, defaulting closed to "user".
func ParseRole(raw string) Role {
	if Role(strings.ToLower(strings.TrimSpace(raw))) == RoleAdmin {
		return RoleAdmin
	}
	return RoleUser
}

// Identity is a resolved user profile. Email is immutable after creation,
// there is no email-change flow.
type Identity struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"` // never expose hash in JSON
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

var (
	ErrNotFound   = errors.New("identity not found")
	ErrEmailTaken = errors.New("email already in use")
)

type UpdateProfileRequest struct {
	Name string `json:"name" binding:"required,min=1,max=120"`
}

type ChangeRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=admin user"`
}

// NameFromEmail derives a display name from the local part of an email
// address. Used when auto-provisioning a profile for a credential that
// has no profile row yet.
func NameFromEmail(email string) string {
	local, _, found := strings.Cut(email, "@")

	if !found || local == "" {
		return email
	}

	return local
}
