package session

import (
	"testing"
	"time"
)

func TestRecencyBookkeeping(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s := New()

	if !s.LastRequest().IsZero() || !s.LastEdit().IsZero() || !s.LastRejection().IsZero() {
		t.Fatal("fresh state should report zero times")
	}

	s.RecordRequest(base)
	s.RecordEdit(base.Add(time.Second))
	s.RecordRejection(base.Add(2 * time.Second))

	if got := s.LastRequest(); !got.Equal(base) {
		t.Errorf("LastRequest = %v, want %v", got, base)
	}
	if got := s.LastEdit(); !got.Equal(base.Add(time.Second)) {
		t.Errorf("LastEdit = %v, want %v", got, base.Add(time.Second))
	}
	if got := s.LastRejection(); !got.Equal(base.Add(2 * time.Second)) {
		t.Errorf("LastRejection = %v, want %v", got, base.Add(2*time.Second))
	}
}

func TestOutcomeTransitions(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s := New()

	if got := s.Outcome(base); got != OutcomeNone {
		t.Fatalf("initial outcome = %v, want none", got)
	}

	s.RecordShown(base)
	if got := s.Outcome(base); got != OutcomePending {
		t.Fatalf("after show outcome = %v, want pending", got)
	}

	s.ResolveOutcome(OutcomeAccepted)
	if !s.LastAccepted(base) {
		t.Fatal("accepted resolution should report LastAccepted")
	}

	s.RecordShown(base.Add(time.Minute))
	if s.LastAccepted(base.Add(time.Minute)) {
		t.Fatal("a newly shown suggestion must clear LastAccepted")
	}

	s.ResolveOutcome(OutcomeRejected)
	if got := s.Outcome(base.Add(time.Minute)); got != OutcomeRejected {
		t.Fatalf("outcome = %v, want rejected", got)
	}
}

func TestPendingExpiresToIgnored(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s := New()
	s.RecordShown(base)

	if got := s.Outcome(base.Add(PendingOutcomeTimeout)); got != OutcomePending {
		t.Fatalf("outcome at exactly the timeout = %v, want pending", got)
	}
	if got := s.Outcome(base.Add(PendingOutcomeTimeout + time.Millisecond)); got != OutcomeIgnored {
		t.Fatalf("outcome past the timeout = %v, want ignored", got)
	}

	// Expiry is sticky: a later resolve applies to the next suggestion,
	// not the expired one, only via RecordShown.
	if s.LastAccepted(base.Add(time.Hour)) {
		t.Fatal("expired suggestion must not count as accepted")
	}
}

func TestOutcomeStrings(t *testing.T) {
	cases := map[Outcome]string{
		OutcomeNone:     "none",
		OutcomePending:  "pending",
		OutcomeAccepted: "accepted",
		OutcomeRejected: "rejected",
		OutcomeIgnored:  "ignored",
		Outcome(99):     "unknown",
	}
	for o, want := range cases {
		if got := o.String(); got != want {
			t.Errorf("Outcome(%d).String() = %q, want %q", o, got, want)
		}
	}
}
