package domain

import (
	"errors"
	"time"
)

// Operator is an internal staff member. Role names an entry in the roles table; its capabilities
// decide what the operator may do.
type Operator struct {
	ID        string
	Email     string
	Name      string
	HomeOrgID string
	Role      string
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Status string

const (
	StatusActive   Status = "active"
	StatusDisabled Status = "disabled"
)

// IsActive reports whether the operator may act at all.
func (o *Operator) IsActive() bool {
	return o.Status == StatusActive
}

// Validate validates the operator for persistence. Returns an error describing the first validation failure.
func (o *Operator) Validate() error {
	switch {
	case o.ID == "":
		return errors.New("id is required")
	case o.Email == "":
		return errors.New("email is required")
	case o.HomeOrgID == "":
		return errors.New("home org is required")
	case o.Role == "":
		return errors.New("role is required")
	}
	if o.Status == "" {
		o.Status = StatusActive
	}
	return nil
}
