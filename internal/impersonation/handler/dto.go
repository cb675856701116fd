package handler

import (
	"time"

	"casedesk/backend/internal/impersonation/domain"
	"casedesk/backend/internal/impersonation/service"
)

type startRequest struct {
	TargetOrganizationID string `json:"target_organization_id"`
	Reason               string `json:"reason"`
	TicketID             string `json:"ticket_id,omitempty"`
}

type startResponse struct {
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type endRequest struct {
	Notes string `json:"notes,omitempty"`
}

type sessionResponse struct {
	ID                   string     `json:"id"`
	OperatorUserID       string     `json:"operator_user_id"`
	OperatorRole         string     `json:"operator_role"`
	TargetOrganizationID string     `json:"target_organization_id"`
	Reason               string     `json:"reason"`
	TicketID             string     `json:"ticket_id,omitempty"`
	StartedAt            time.Time  `json:"started_at"`
	ExpiresAt            time.Time  `json:"expires_at"`
	EndedAt              *time.Time `json:"ended_at,omitempty"`
	State                string     `json:"state"`
	RemainingSeconds     int64      `json:"remaining_seconds"`
}

func toSession(s *domain.Session, now time.Time) sessionResponse {
	return sessionResponse{
		ID:                   s.ID,
		OperatorUserID:       s.OperatorUserID,
		OperatorRole:         s.OperatorRole,
		TargetOrganizationID: s.TargetOrganizationID,
		Reason:               s.Reason,
		TicketID:             s.TicketID,
		StartedAt:            s.StartedAt,
		ExpiresAt:            s.ExpiresAt,
		EndedAt:              s.EndedAt,
		State:                string(s.State(now)),
		RemainingSeconds:     s.RemainingSeconds(now),
	}
}

type currentResponse struct {
	SessionID            string    `json:"session_id"`
	OperatorUserID       string    `json:"operator_user_id"`
	OperatorRole         string    `json:"operator_role"`
	TargetOrganizationID string    `json:"target_organization_id"`
	Reason               string    `json:"reason"`
	TicketID             string    `json:"ticket_id,omitempty"`
	ExpiresAt            time.Time `json:"expires_at"`
	RemainingSeconds     int64     `json:"remaining_seconds"`
}

type auditEntryResponse struct {
	ID         string         `json:"id"`
	SessionID  string         `json:"session_id"`
	Sequence   int64          `json:"sequence"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type,omitempty"`
	EntityID   string         `json:"entity_id,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	PrevHash   string         `json:"prev_hash"`
	Hash       string         `json:"hash"`
}

func toEntries(list []*domain.AuditEntry) []auditEntryResponse {
	out := make([]auditEntryResponse, len(list))
	for i, e := range list {
		out[i] = auditEntryResponse{
			ID:         e.ID,
			SessionID:  e.SessionID,
			Sequence:   e.Sequence,
			Action:     e.Action,
			EntityType: e.EntityType,
			EntityID:   e.EntityID,
			Details:    e.Details,
			CreatedAt:  e.CreatedAt,
			PrevHash:   e.PrevHash,
			Hash:       e.Hash,
		}
	}
	return out
}

type chainResponse struct {
	SessionID      string `json:"session_id"`
	Entries        int    `json:"entries"`
	Valid          bool   `json:"valid"`
	BrokenSequence int64  `json:"broken_sequence,omitempty"`
	BrokenEntryID  string `json:"broken_entry_id,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

func toChain(r *service.ChainReport) chainResponse {
	out := chainResponse{SessionID: r.SessionID, Entries: r.Entries, Valid: r.Valid}
	if r.Broken != nil {
		out.BrokenSequence = r.Broken.Sequence
		out.BrokenEntryID = r.Broken.EntryID
		out.Reason = r.Broken.Reason
	}
	return out
}
