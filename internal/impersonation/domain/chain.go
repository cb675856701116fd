package domain

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"
)

// ErrChainBroken is returned (wrapped in *ChainError) when a session's audit trail fails verification.
var ErrChainBroken = errors.New("audit chain broken")

// ChainError describes the first entry at which verification failed.
type ChainError struct {
	Sequence int64
	EntryID  string
	Reason   string
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("audit chain broken at sequence %d (entry %s): %s", e.Sequence, e.EntryID, e.Reason)
}

func (e *ChainError) Unwrap() error { return ErrChainBroken }

// chainRecord is the hashed form of an entry. Fields are fixed so the encoding is deterministic.
type chainRecord struct {
	ID         string          `json:"id"`
	SessionID  string          `json:"session_id"`
	Sequence   int64           `json:"sequence"`
	Action     string          `json:"action"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Details    json.RawMessage `json:"details"`
	CreatedAt  string          `json:"created_at"`
	PrevHash   string          `json:"prev_hash"`
}

// CanonicalDetails encodes details with sorted keys and literal numbers. The encoding is a fixed point:
// decoding it with UseNumber and encoding again yields the same bytes, so stored details re-hash identically.
// Empty or nil details encode to nil.
func CanonicalDetails(details map[string]any) ([]byte, error) {
	if len(details) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("encode details: %w", err)
	}
	normalized, err := DecodeDetails(raw)
	if err != nil {
		return nil, err
	}
	return json.Marshal(normalized)
}

// DecodeDetails decodes stored details keeping numbers as json.Number.
func DecodeDetails(raw []byte) (map[string]any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode details: %w", err)
	}
	return out, nil
}

// ComputeHash returns the hex blake2b-256 digest of the entry's chained fields.
func (e *AuditEntry) ComputeHash() (string, error) {
	details, err := CanonicalDetails(e.Details)
	if err != nil {
		return "", err
	}
	rec := chainRecord{
		ID:         e.ID,
		SessionID:  e.SessionID,
		Sequence:   e.Sequence,
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Details:    details,
		CreatedAt:  e.CreatedAt.UTC().Format(time.RFC3339Nano),
		PrevHash:   e.PrevHash,
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("encode chain record: %w", err)
	}
	sum := blake2b.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// Seal links e after prev (nil for the first entry of a session): it assigns Sequence and PrevHash,
// bumps CreatedAt so it is strictly after prev, truncates it to storage precision, and sets Hash.
func (e *AuditEntry) Seal(prev *AuditEntry) error {
	e.CreatedAt = e.CreatedAt.UTC().Truncate(time.Microsecond)
	if prev == nil {
		e.Sequence = 1
		e.PrevHash = ""
	} else {
		e.Sequence = prev.Sequence + 1
		e.PrevHash = prev.Hash
		if !e.CreatedAt.After(prev.CreatedAt) {
			e.CreatedAt = prev.CreatedAt.Add(time.Microsecond)
		}
	}
	h, err := e.ComputeHash()
	if err != nil {
		return err
	}
	e.Hash = h
	return nil
}

// VerifyChain checks entries of one session, in ascending sequence order, for gaps, reordering,
// broken links and altered content. It returns nil for an intact (or empty) trail.
func VerifyChain(entries []*AuditEntry) error {
	var prev *AuditEntry
	for _, e := range entries {
		want := int64(1)
		wantPrev := ""
		if prev != nil {
			want = prev.Sequence + 1
			wantPrev = prev.Hash
			if e.SessionID != prev.SessionID {
				return &ChainError{Sequence: e.Sequence, EntryID: e.ID, Reason: "entry belongs to another session"}
			}
			if !e.CreatedAt.After(prev.CreatedAt) {
				return &ChainError{Sequence: e.Sequence, EntryID: e.ID, Reason: "created_at not increasing"}
			}
		}
		if e.Sequence != want {
			return &ChainError{Sequence: e.Sequence, EntryID: e.ID, Reason: fmt.Sprintf("expected sequence %d", want)}
		}
		if e.PrevHash != wantPrev {
			return &ChainError{Sequence: e.Sequence, EntryID: e.ID, Reason: "prev_hash does not match previous entry"}
		}
		h, err := e.ComputeHash()
		if err != nil {
			return &ChainError{Sequence: e.Sequence, EntryID: e.ID, Reason: err.Error()}
		}
		if h != e.Hash {
			return &ChainError{Sequence: e.Sequence, EntryID: e.ID, Reason: "content hash mismatch"}
		}
		prev = e
	}
	return nil
}
