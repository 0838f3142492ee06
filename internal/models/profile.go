package models

import (
	"strings"
	"time"
)

// Profile is an account visible to the messaging service.
type Profile struct {
	ID          string    `db:"id" json:"id"`
	Email       string    `db:"email" json:"email"`
	DisplayName string    `db:"display_name" json:"display_name"`
	Role        string    `db:"role" json:"role"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// FallbackDisplayName is used when a profile has no display name set:
// the local part of the email, then a generic label.
func (p Profile) FallbackDisplayName() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	if at := strings.Index(p.Email, "@"); at > 0 {
		return p.Email[:at]
	}
	return "Member"
}
