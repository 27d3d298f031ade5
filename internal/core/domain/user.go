package domain

import "time"

const (
	RoleStandard = "standard"
	RoleElevated = "elevated"
	RoleAdmin    = "admin"
)

// ValidRole reports whether role is one of the fixed role set.
func ValidRole(role string) bool {
	return role == RoleStandard || role == RoleElevated || role == RoleAdmin
}

// User models an account in the studio. Accounts are created unapproved and
// must be activated by an admin before any provider-backed operation runs.
type User struct {
	ID           string `json:"id" bson:"_id,omitempty"`
	Username     string `json:"username" bson:"username"`
	Email        string `json:"email,omitempty" bson:"email,omitempty"`
	PasswordHash string `json:"-" bson:"password_hash"`
	Role         string `json:"role" bson:"role"`
	Approved     bool   `json:"approved" bson:"approved"`
	// ExpiresAt zero means the account never expires.
	ExpiresAt    time.Time `json:"expires_at,omitempty" bson:"expires_at,omitempty"`
	TokenBalance int64     `json:"token_balance" bson:"token_balance"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" bson:"updated_at"`
	LastLoginAt  time.Time `json:"last_login_at,omitempty" bson:"last_login_at,omitempty"`
}

// Expired reports whether the account has passed its expiration timestamp.
func (u *User) Expired(now time.Time) bool {
	return !u.ExpiresAt.IsZero() && now.After(u.ExpiresAt)
}

// Active reports whether the account may invoke provider-backed operations.
func (u *User) Active(now time.Time) bool {
	return u.Approved && !u.Expired(now)
}
