package domain

import (
	"errors"
	"time"
)

// User is an end user of a tenant organization. Rows are only visible inside a transaction scoped to OrgID.
type User struct {
	ID        string
	OrgID     string
	Email     string
	Name      string
	Status    UserStatus
	CreatedAt time.Time
}

type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusDisabled UserStatus = "disabled"
)

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.OrgID == "" {
		return errors.New("org is required")
	}
	if u.Email == "" {
		return errors.New("email is required")
	}
	if u.Status == "" {
		u.Status = UserStatusActive
	}
	return nil
}
