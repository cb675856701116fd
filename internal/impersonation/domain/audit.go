package domain

import "time"

// Well-known audit actions written by the engine itself. Collaborators may log any other action code.
const (
	ActionSessionStarted    = "SESSION_STARTED"
	ActionSessionEnded      = "SESSION_ENDED"
	ActionViewTenantDetails = "VIEW_TENANT_DETAILS"
	ActionViewTenantUsers   = "VIEW_TENANT_USERS"
	ActionRequestCompleted  = "REQUEST_COMPLETED"
)

// AuditEntry is one append-only record of an action taken under a session.
// Sequence, PrevHash and Hash chain the entries of a session together; see Seal and VerifyChain.
type AuditEntry struct {
	ID         string
	SessionID  string
	Sequence   int64
	Action     string
	EntityType string
	EntityID   string
	Details    map[string]any
	CreatedAt  time.Time
	PrevHash   string
	Hash       string
}

// TimeRange bounds an audit query on CreatedAt as [From, To). Zero values are open ends.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls in the range.
func (r *TimeRange) Contains(t time.Time) bool {
	if r == nil {
		return true
	}
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && !t.Before(r.To) {
		return false
	}
	return true
}
