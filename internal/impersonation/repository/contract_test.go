package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casedesk/backend/internal/impersonation/domain"
)

type store interface {
	SessionRepository
	AuditRepository
	TxRunner
}

var base = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newSession(operator, org string, startedAt time.Time) *domain.Session {
	return &domain.Session{
		ID:                   uuid.NewString(),
		OperatorUserID:       operator,
		OperatorRole:         "support_agent",
		TargetOrganizationID: org,
		Reason:               "Investigating ticket #123",
		TicketID:             "T-123",
		StartedAt:            startedAt,
		ExpiresAt:            startedAt.Add(domain.MaxSessionDuration),
		IPAddress:            "10.0.0.1",
		UserAgent:            "test",
	}
}

func newEntry(sessionID, action string, at time.Time, details map[string]any) *domain.AuditEntry {
	return &domain.AuditEntry{ID: uuid.NewString(), SessionID: sessionID, Action: action, Details: details, CreatedAt: at}
}

// runStoreContract checks the behavior every store implementation must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) store) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		st := newStore(t)
		s := newSession("u1", "o2", base)
		require.NoError(t, st.Create(ctx, s))

		got, err := st.GetByID(ctx, s.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, s.OperatorRole, got.OperatorRole)
		assert.Equal(t, s.TicketID, got.TicketID)
		assert.True(t, got.ExpiresAt.Equal(s.ExpiresAt))
		assert.Nil(t, got.EndedAt)

		missing, err := st.GetByID(ctx, uuid.NewString())
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("end is compare and set", func(t *testing.T) {
		st := newStore(t)
		s := newSession("u1", "o2", base)
		require.NoError(t, st.Create(ctx, s))

		first := base.Add(time.Minute)
		require.NoError(t, st.End(ctx, s.ID, first))
		err := st.End(ctx, s.ID, base.Add(2*time.Minute))
		assert.ErrorIs(t, err, ErrAlreadyEnded)

		got, err := st.GetByID(ctx, s.ID)
		require.NoError(t, err)
		require.NotNil(t, got.EndedAt)
		assert.True(t, got.EndedAt.Equal(first), "ended_at = %v, want first end %v", got.EndedAt, first)

		assert.ErrorIs(t, st.End(ctx, uuid.NewString(), first), ErrNotFound)
	})

	t.Run("concurrent end has one winner", func(t *testing.T) {
		st := newStore(t)
		s := newSession("u1", "o2", base)
		require.NoError(t, st.Create(ctx, s))

		const n = 8
		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs <- st.End(ctx, s.ID, base.Add(time.Duration(i+1)*time.Second))
			}(i)
		}
		wg.Wait()
		close(errs)
		var ok, already int
		for err := range errs {
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrAlreadyEnded):
				already++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}
		assert.Equal(t, 1, ok)
		assert.Equal(t, n-1, already)
	})

	t.Run("list active by operator", func(t *testing.T) {
		st := newStore(t)
		op := uuid.NewString()
		older := newSession(op, "o2", base)
		newer := newSession(op, "o3", base.Add(time.Hour))
		ended := newSession(op, "o4", base.Add(30*time.Minute))
		expired := newSession(op, "o5", base.Add(-5*time.Hour))
		other := newSession("u2", "o2", base)
		for _, s := range []*domain.Session{older, newer, ended, expired, other} {
			require.NoError(t, st.Create(ctx, s))
		}
		require.NoError(t, st.End(ctx, ended.ID, base.Add(40*time.Minute)))

		got, err := st.ListActiveByOperator(ctx, op, base.Add(90*time.Minute))
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, newer.ID, got[0].ID)
		assert.Equal(t, older.ID, got[1].ID)
	})

	t.Run("append chains entries", func(t *testing.T) {
		st := newStore(t)
		s := newSession("u1", "o2", base)
		require.NoError(t, st.Create(ctx, s))

		for i, action := range []string{domain.ActionSessionStarted, "VIEW_CASE", domain.ActionSessionEnded} {
			// identical timestamps still produce strictly increasing created_at
			e := newEntry(s.ID, action, base, map[string]any{"i": i, "reason": "x"})
			require.NoError(t, st.Append(ctx, e))
			assert.Equal(t, int64(i+1), e.Sequence)
		}

		got, err := st.ListBySession(ctx, s.ID, 100)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, domain.ActionSessionStarted, got[0].Action)
		assert.Equal(t, domain.ActionSessionEnded, got[2].Action)
		assert.NoError(t, domain.VerifyChain(got))

		limited, err := st.ListBySession(ctx, s.ID, 2)
		require.NoError(t, err)
		assert.Len(t, limited, 2)

		all, err := st.ListBySession(ctx, s.ID, -1)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("append to unknown session", func(t *testing.T) {
		st := newStore(t)
		err := st.Append(ctx, newEntry(uuid.NewString(), "VIEW_CASE", base, nil))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("concurrent appends keep the chain intact", func(t *testing.T) {
		st := newStore(t)
		s := newSession("u1", "o2", base)
		require.NoError(t, st.Create(ctx, s))

		const n = 20
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				assert.NoError(t, st.Append(ctx, newEntry(s.ID, fmt.Sprintf("ACTION_%d", i), base, nil)))
			}(i)
		}
		wg.Wait()

		got, err := st.ListBySession(ctx, s.ID, 1000)
		require.NoError(t, err)
		assert.Len(t, got, n)
		assert.NoError(t, domain.VerifyChain(got))
	})

	t.Run("transaction rolls back on error", func(t *testing.T) {
		st := newStore(t)
		s := newSession("u1", "o2", base)
		boom := errors.New("boom")
		err := st.RunInTx(ctx, func(ctx context.Context) error {
			if err := st.Create(ctx, s); err != nil {
				return err
			}
			if err := st.Append(ctx, newEntry(s.ID, domain.ActionSessionStarted, base, nil)); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		got, err := st.GetByID(ctx, s.ID)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("end rolls back with its transaction", func(t *testing.T) {
		st := newStore(t)
		s := newSession("u1", "o2", base)
		require.NoError(t, st.Create(ctx, s))
		boom := errors.New("boom")
		err := st.RunInTx(ctx, func(ctx context.Context) error {
			if err := st.End(ctx, s.ID, base.Add(time.Minute)); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		got, err := st.GetByID(ctx, s.ID)
		require.NoError(t, err)
		assert.Nil(t, got.EndedAt)
	})

	t.Run("list by organization", func(t *testing.T) {
		st := newStore(t)
		org := uuid.NewString()
		a := newSession("u1", org, base)
		b := newSession("u2", org, base)
		c := newSession("u1", "o3", base)
		for _, s := range []*domain.Session{a, b, c} {
			require.NoError(t, st.Create(ctx, s))
		}
		require.NoError(t, st.Append(ctx, newEntry(a.ID, "A1", base.Add(1*time.Minute), nil)))
		require.NoError(t, st.Append(ctx, newEntry(b.ID, "B1", base.Add(2*time.Minute), nil)))
		require.NoError(t, st.Append(ctx, newEntry(a.ID, "A2", base.Add(3*time.Minute), nil)))
		require.NoError(t, st.Append(ctx, newEntry(c.ID, "C1", base.Add(2*time.Minute), nil)))

		all, err := st.ListByOrganization(ctx, org, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"A1", "B1", "A2"}, actions(all))

		window, err := st.ListByOrganization(ctx, org, &domain.TimeRange{From: base.Add(2 * time.Minute), To: base.Add(3 * time.Minute)})
		require.NoError(t, err)
		assert.Equal(t, []string{"B1"}, actions(window))
	})

	t.Run("details survive storage", func(t *testing.T) {
		st := newStore(t)
		s := newSession("u1", "o2", base)
		require.NoError(t, st.Create(ctx, s))
		e := newEntry(s.ID, "VIEW_CASE", base, map[string]any{"count": 3, "tags": []any{"a", "b"}, "nested": map[string]any{"ok": true}})
		require.NoError(t, st.Append(ctx, e))

		got, err := st.ListBySession(ctx, s.ID, 10)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "3", fmt.Sprint(got[0].Details["count"]))
		assert.Equal(t, e.Hash, got[0].Hash)
		assert.NoError(t, domain.VerifyChain(got))
	})
}

func actions(entries []*domain.AuditEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Action
	}
	return out
}
