package domain

import (
	"errors"
	"time"
)

// Org is a tenant organization. Operators belong to a home org; impersonation targets another.
type Org struct {
	ID        string
	Name      string
	Status    OrgStatus
	CreatedAt time.Time
}

type OrgStatus string

const (
	OrgStatusActive    OrgStatus = "active"
	OrgStatusSuspended OrgStatus = "suspended"
)

// Validate validates the organization for persistence. Returns an error describing the first validation failure.
func (o *Org) Validate() error {
	if o.ID == "" {
		return errors.New("id is required")
	}
	if o.Name == "" {
		return errors.New("name is required")
	}
	if o.Status == "" {
		o.Status = OrgStatusActive
	}
	if o.Status != OrgStatusActive && o.Status != OrgStatusSuspended {
		return errors.New("status must be active or suspended")
	}
	return nil
}
