package domain

import (
	"math"
	"time"
)

// MaxSessionDuration is the fixed lifetime of an impersonation session. Sessions cannot be extended.
const MaxSessionDuration = 4 * time.Hour

// MinReasonLength is the minimum length of the justification recorded on a session.
const MinReasonLength = 10

// State is the derived lifecycle state of a session. Only ended is ever persisted; expired is computed.
type State string

const (
	StateActive  State = "active"
	StateEnded   State = "ended"
	StateExpired State = "expired"
)

// Session is a time-boxed grant that lets an operator act inside another organization.
type Session struct {
	ID                   string
	OperatorUserID       string
	OperatorRole         string // snapshot taken at start; never re-derived
	TargetOrganizationID string
	Reason               string
	TicketID             string // optional external reference
	StartedAt            time.Time
	ExpiresAt            time.Time
	EndedAt              *time.Time // nil while not ended; set once
	IPAddress            string
	UserAgent            string
}

// IsActive reports whether the session grants access at now: not ended and now before ExpiresAt.
func (s *Session) IsActive(now time.Time) bool {
	return IsActive(s.EndedAt, s.ExpiresAt, now)
}

// State returns the derived state at now. Ended takes precedence over expired.
func (s *Session) State(now time.Time) State {
	switch {
	case s.EndedAt != nil:
		return StateEnded
	case !now.Before(s.ExpiresAt):
		return StateExpired
	default:
		return StateActive
	}
}

// RemainingSeconds returns whole seconds of access left at now, 0 when ended or expired.
func (s *Session) RemainingSeconds(now time.Time) int64 {
	if s.EndedAt != nil {
		return 0
	}
	return s.Context().RemainingSeconds(now)
}

// Context returns the SessionContext for the session, as handed to downstream consumers.
func (s *Session) Context() *SessionContext {
	return &SessionContext{
		SessionID:            s.ID,
		OperatorUserID:       s.OperatorUserID,
		OperatorRole:         s.OperatorRole,
		TargetOrganizationID: s.TargetOrganizationID,
		Reason:               s.Reason,
		TicketID:             s.TicketID,
		ExpiresAt:            s.ExpiresAt,
	}
}

// IsActive is the activity predicate shared by every validity check.
func IsActive(endedAt *time.Time, expiresAt, now time.Time) bool {
	return endedAt == nil && now.Before(expiresAt)
}

// SessionContext is the resolved view of an active session attached to a request.
type SessionContext struct {
	SessionID            string
	OperatorUserID       string
	OperatorRole         string
	TargetOrganizationID string
	Reason               string
	TicketID             string
	ExpiresAt            time.Time
}

// Expired reports whether the context's expiry has passed at now.
func (c *SessionContext) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// RemainingSeconds returns whole seconds until expiry, rounded up, and 0 once expired.
func (c *SessionContext) RemainingSeconds(now time.Time) int64 {
	d := c.ExpiresAt.Sub(now)
	if d <= 0 {
		return 0
	}
	return int64(math.Ceil(d.Seconds()))
}
