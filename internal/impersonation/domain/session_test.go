package domain

import (
	"testing"
	"time"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newSession(endedAt *time.Time) *Session {
	return &Session{
		ID:                   "s-1",
		OperatorUserID:       "u1",
		OperatorRole:         "support_agent",
		TargetOrganizationID: "o2",
		Reason:               "Investigating ticket #123",
		StartedAt:            t0,
		ExpiresAt:            t0.Add(MaxSessionDuration),
		EndedAt:              endedAt,
	}
}

func TestSession_State(t *testing.T) {
	ended := t0.Add(time.Minute)
	tests := []struct {
		name       string
		endedAt    *time.Time
		now        time.Time
		wantState  State
		wantActive bool
	}{
		{"fresh", nil, t0.Add(time.Second), StateActive, true},
		{"at start", nil, t0, StateActive, true},
		{"one nanosecond before expiry", nil, t0.Add(MaxSessionDuration - time.Nanosecond), StateActive, true},
		{"exactly at expiry", nil, t0.Add(MaxSessionDuration), StateExpired, false},
		{"after expiry", nil, t0.Add(5 * time.Hour), StateExpired, false},
		{"ended before expiry", &ended, t0.Add(2 * time.Minute), StateEnded, false},
		{"ended and expired", &ended, t0.Add(5 * time.Hour), StateEnded, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSession(tt.endedAt)
			if got := s.State(tt.now); got != tt.wantState {
				t.Errorf("State() = %q, want %q", got, tt.wantState)
			}
			if got := s.IsActive(tt.now); got != tt.wantActive {
				t.Errorf("IsActive() = %v, want %v", got, tt.wantActive)
			}
		})
	}
}

func TestSessionContext_RemainingSeconds(t *testing.T) {
	sc := newSession(nil).Context()
	exp := sc.ExpiresAt
	tests := []struct {
		name string
		now  time.Time
		want int64
	}{
		{"full duration", t0, int64(MaxSessionDuration / time.Second)},
		{"partial second rounds up", exp.Add(-1500 * time.Millisecond), 2},
		{"whole seconds", exp.Add(-10 * time.Second), 10},
		{"at expiry", exp, 0},
		{"after expiry", exp.Add(time.Hour), 0},
	}
	for _, tt := range tests {
		if got := sc.RemainingSeconds(tt.now); got != tt.want {
			t.Errorf("%s: RemainingSeconds = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestSession_RemainingSecondsZeroWhenEnded(t *testing.T) {
	ended := t0.Add(time.Minute)
	s := newSession(&ended)
	if got := s.RemainingSeconds(t0.Add(2 * time.Minute)); got != 0 {
		t.Errorf("RemainingSeconds = %d, want 0", got)
	}
}

func TestSession_Context(t *testing.T) {
	s := newSession(nil)
	s.TicketID = "T-9"
	sc := s.Context()
	if sc.SessionID != s.ID || sc.OperatorUserID != "u1" || sc.OperatorRole != "support_agent" ||
		sc.TargetOrganizationID != "o2" || sc.TicketID != "T-9" || !sc.ExpiresAt.Equal(s.ExpiresAt) {
		t.Errorf("Context() = %+v, does not mirror session", sc)
	}
	if sc.Expired(t0) {
		t.Error("Expired(t0) = true, want false")
	}
	if !sc.Expired(s.ExpiresAt) {
		t.Error("Expired(expiresAt) = false, want true")
	}
}

func TestTimeRange_Contains(t *testing.T) {
	from, to := t0, t0.Add(time.Hour)
	tests := []struct {
		name string
		r    *TimeRange
		at   time.Time
		want bool
	}{
		{"nil range", nil, t0.Add(-time.Hour), true},
		{"open range", &TimeRange{}, t0, true},
		{"from inclusive", &TimeRange{From: from}, from, true},
		{"before from", &TimeRange{From: from}, from.Add(-time.Nanosecond), false},
		{"to exclusive", &TimeRange{To: to}, to, false},
		{"inside", &TimeRange{From: from, To: to}, t0.Add(time.Minute), true},
	}
	for _, tt := range tests {
		if got := tt.r.Contains(tt.at); got != tt.want {
			t.Errorf("%s: Contains = %v, want %v", tt.name, got, tt.want)
		}
	}
}
