package domain

import (
	"testing"
	"time"

	"pgregory.net/rapid"
)

func genOffset(label string) *rapid.Generator[time.Duration] {
	return rapid.Custom(func(t *rapid.T) time.Duration {
		return time.Duration(rapid.Int64Range(-int64(24*time.Hour), int64(24*time.Hour)).Draw(t, label))
	})
}

// An ended session is never active, whatever its expiry.
func TestIsActive_EndedNeverActive(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		expires := t0.Add(genOffset("expires").Draw(t, "expires"))
		ended := t0.Add(genOffset("ended").Draw(t, "ended"))
		now := t0.Add(genOffset("now").Draw(t, "now"))
		if IsActive(&ended, expires, now) {
			t.Fatalf("IsActive with endedAt set = true (expires %v, now %v)", expires, now)
		}
	})
}

// Past expiry a session is inactive, and it stays inactive for every later instant.
func TestIsActive_ExpiryIsTerminal(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		expires := t0.Add(genOffset("expires").Draw(t, "expires"))
		now := t0.Add(genOffset("now").Draw(t, "now"))
		later := now.Add(time.Duration(rapid.Int64Range(0, int64(48*time.Hour)).Draw(t, "later")))

		active := IsActive(nil, expires, now)
		if active != now.Before(expires) {
			t.Fatalf("IsActive(nil, %v, %v) = %v", expires, now, active)
		}
		if !active && IsActive(nil, expires, later) {
			t.Fatalf("inactive at %v but active again at %v", now, later)
		}
	})
}

// Evaluations with the same clock reading agree.
func TestIsActive_SameClockSameVerdict(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := newSession(nil)
		if rapid.Bool().Draw(t, "ended") {
			e := t0.Add(genOffset("ended").Draw(t, "ended_at"))
			s.EndedAt = &e
		}
		now := t0.Add(genOffset("now").Draw(t, "now"))
		first := s.IsActive(now)
		for i := 0; i < 3; i++ {
			if s.IsActive(now) != first {
				t.Fatal("IsActive changed between evaluations at the same instant")
			}
		}
		if first != (s.State(now) == StateActive) {
			t.Fatalf("IsActive = %v but State = %q", first, s.State(now))
		}
	})
}
