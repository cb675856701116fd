package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func sealedTrail(t *testing.T, n int) []*AuditEntry {
	t.Helper()
	var prev *AuditEntry
	out := make([]*AuditEntry, 0, n)
	for i := 0; i < n; i++ {
		e := &AuditEntry{
			ID:         fmt.Sprintf("e-%d", i+1),
			SessionID:  "s-1",
			Action:     "VIEW_CASE",
			EntityType: "case",
			EntityID:   fmt.Sprintf("c-%d", i),
			Details:    map[string]any{"index": i, "note": "viewed"},
			CreatedAt:  t0.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, e.Seal(prev))
		out = append(out, e)
		prev = e
	}
	return out
}

func TestSeal_AssignsSequenceAndLinks(t *testing.T) {
	trail := sealedTrail(t, 3)
	assert.Equal(t, int64(1), trail[0].Sequence)
	assert.Empty(t, trail[0].PrevHash)
	for i := 1; i < len(trail); i++ {
		assert.Equal(t, int64(i+1), trail[i].Sequence)
		assert.Equal(t, trail[i-1].Hash, trail[i].PrevHash)
		assert.Len(t, trail[i].Hash, 64)
	}
	assert.NoError(t, VerifyChain(trail))
}

func TestSeal_BumpsNonIncreasingTimestamp(t *testing.T) {
	first := &AuditEntry{ID: "a", SessionID: "s", Action: ActionSessionStarted, CreatedAt: t0}
	require.NoError(t, first.Seal(nil))
	second := &AuditEntry{ID: "b", SessionID: "s", Action: ActionSessionEnded, CreatedAt: t0.Add(-time.Second)}
	require.NoError(t, second.Seal(first))
	assert.True(t, second.CreatedAt.Equal(t0.Add(time.Microsecond)), "created_at = %v", second.CreatedAt)

	third := &AuditEntry{ID: "c", SessionID: "s", Action: "X", CreatedAt: second.CreatedAt.Add(300 * time.Nanosecond)}
	require.NoError(t, third.Seal(second))
	assert.True(t, third.CreatedAt.After(second.CreatedAt))
	assert.NoError(t, VerifyChain([]*AuditEntry{first, second, third}))
}

func TestVerifyChain_DetectsTampering(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func([]*AuditEntry) []*AuditEntry
		wantSeq int64
	}{
		{"altered details", func(es []*AuditEntry) []*AuditEntry {
			es[1].Details["note"] = "edited"
			return es
		}, 2},
		{"altered action", func(es []*AuditEntry) []*AuditEntry {
			es[2].Action = "DELETE_CASE"
			return es
		}, 3},
		{"deleted entry", func(es []*AuditEntry) []*AuditEntry {
			return append(es[:1], es[2:]...)
		}, 3},
		{"reordered", func(es []*AuditEntry) []*AuditEntry {
			es[1], es[2] = es[2], es[1]
			return es
		}, 3},
		{"rewritten timestamp", func(es []*AuditEntry) []*AuditEntry {
			es[3].CreatedAt = es[3].CreatedAt.Add(time.Minute)
			return es
		}, 4},
		{"foreign session", func(es []*AuditEntry) []*AuditEntry {
			es[2].SessionID = "s-2"
			return es
		}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifyChain(tt.mutate(sealedTrail(t, 4)))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrChainBroken))
			var ce *ChainError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.wantSeq, ce.Sequence)
		})
	}
}

func TestVerifyChain_Empty(t *testing.T) {
	assert.NoError(t, VerifyChain(nil))
}

func TestCanonicalDetails_Empty(t *testing.T) {
	b, err := CanonicalDetails(nil)
	require.NoError(t, err)
	assert.Nil(t, b)
	b, err = CanonicalDetails(map[string]any{})
	require.NoError(t, err)
	assert.Nil(t, b)

	m, err := DecodeDetails([]byte("null"))
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestCanonicalDetails_SortedKeysAndLiteralNumbers(t *testing.T) {
	b, err := CanonicalDetails(map[string]any{"z": 1, "a": 2.5, "m": map[string]any{"y": true, "b": nil}})
	require.NoError(t, err)
	assert.Equal(t, `{"a":2.5,"m":{"b":null,"y":true},"z":1}`, string(b))
}

// A stored entry decoded from its canonical details hashes to the same value it was sealed with.
func TestCanonicalDetails_FixedPoint(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		details := genDetails().Draw(t, "details")
		first, err := CanonicalDetails(details)
		if err != nil {
			t.Fatalf("canonical: %v", err)
		}
		decoded, err := DecodeDetails(first)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		second, err := CanonicalDetails(decoded)
		if err != nil {
			t.Fatalf("canonical again: %v", err)
		}
		if string(first) != string(second) {
			t.Fatalf("not a fixed point:\n%s\n%s", first, second)
		}

		e := &AuditEntry{ID: "e", SessionID: "s", Action: "A", Details: details, CreatedAt: t0}
		if err := e.Seal(nil); err != nil {
			t.Fatalf("seal: %v", err)
		}
		stored := *e
		stored.Details = decoded
		if err := VerifyChain([]*AuditEntry{&stored}); err != nil {
			t.Fatalf("decoded entry fails verification: %v", err)
		}
	})
}

func genDetails() *rapid.Generator[map[string]any] {
	return rapid.Custom(func(t *rapid.T) map[string]any {
		n := rapid.IntRange(0, 6).Draw(t, "n")
		out := make(map[string]any, n)
		for i := 0; i < n; i++ {
			key := rapid.StringMatching(`[a-z_]{1,10}`).Draw(t, "key")
			switch rapid.IntRange(0, 4).Draw(t, "kind") {
			case 0:
				out[key] = rapid.String().Draw(t, "str")
			case 1:
				out[key] = rapid.Int64().Draw(t, "int")
			case 2:
				out[key] = rapid.Float64Range(-1e9, 1e9).Draw(t, "float")
			case 3:
				out[key] = rapid.Bool().Draw(t, "bool")
			default:
				out[key] = []any{rapid.StringMatching(`[A-Z]{0,4}`).Draw(t, "elem"), json.Number("42")}
			}
		}
		return out
	})
}
