package domain

import (
	"errors"
	"testing"
)

func TestCanTransition_ValidEdges(t *testing.T) {
	cases := []struct {
		from, to MarketStatus
	}{
		{StatusUnpaidUnderCreation, StatusPaidUnderCreation},
		{StatusUnpaidUnderCreation, StatusPaymentPending},
		{StatusUnpaidUnderCreation, StatusInactive},
		{StatusPaymentPending, StatusPaidUnderCreation},
		{StatusPaymentPending, StatusUnpaidUnderCreation},
		{StatusPaidUnderCreation, StatusPaidQueue},
		{StatusPaidQueue, StatusPublished},
		{StatusPaidQueue, StatusPaidNeedsEditing},
		{StatusPaidQueue, StatusPaidNonPublication},
		{StatusPaidNonPublication, StatusPaidQueue},
		{StatusPublished, StatusPaidNeedsEditing},
		{StatusPublished, StatusInactive},
		{StatusPaidNeedsEditing, StatusPaidQueue},
		{StatusInactive, StatusPaidUnderCreation},
		{StatusInactive, StatusUnpaidUnderCreation},
	}
	for _, c := range cases {
		if !CanTransition(c.from, c.to) {
			t.Errorf("expected %s -> %s to be valid", c.from, c.to)
		}
	}
}

func TestCanTransition_InvalidEdges(t *testing.T) {
	cases := []struct {
		from, to MarketStatus
	}{
		{StatusUnpaidUnderCreation, StatusPublished},       // no skipping payment
		{StatusUnpaidUnderCreation, StatusPaidQueue},       // must pay first
		{StatusPaidUnderCreation, StatusPublished},         // must go through the queue
		{StatusPublished, StatusPaidQueue},                 // published leaves via edits
		{StatusPublished, StatusUnpaidUnderCreation},       // no un-paying
		{StatusInactive, StatusPublished},                  // revival lands under creation
		{StatusPaidNonPublication, StatusPublished},        // must resubmit
		{StatusPaymentPending, StatusPublished},            // pending payment publishes nothing
		{StatusPaidNeedsEditing, StatusPublished},          // edits go back through review
		{MarketStatus("bogus"), StatusPublished},           // unknown state
		{StatusPublished, MarketStatus("bogus")},           // unknown target
	}
	for _, c := range cases {
		if CanTransition(c.from, c.to) {
			t.Errorf("expected %s -> %s to be invalid", c.from, c.to)
		}
	}
}

func TestCanTransition_NoSelfLoops(t *testing.T) {
	for _, s := range AllStatuses {
		if CanTransition(s, s) {
			t.Errorf("self-transition allowed for %s", s)
		}
	}
}

func TestCheckTransition(t *testing.T) {
	if err := CheckTransition(StatusPaidQueue, StatusPublished); err != nil {
		t.Fatalf("valid edge returned error: %v", err)
	}
	err := CheckTransition(StatusPublished, StatusPaidQueue)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("want ErrInvalidTransition, got %v", err)
	}
	err = CheckTransition(MarketStatus("nope"), StatusPublished)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("want ErrValidation for unknown status, got %v", err)
	}
}

func TestIsPaidStatus(t *testing.T) {
	paid := map[MarketStatus]bool{
		StatusUnpaidUnderCreation: false,
		StatusPaymentPending:      false,
		StatusInactive:            false,
		StatusPaidUnderCreation:   true,
		StatusPaidQueue:           true,
		StatusPaidNonPublication:  true,
		StatusPublished:           true,
		StatusPaidNeedsEditing:    true,
	}
	for s, want := range paid {
		if got := IsPaidStatus(s); got != want {
			t.Errorf("IsPaidStatus(%s) = %v, want %v", s, got, want)
		}
	}
}

// Every valid edge must have an action verb, and no verb may exist for an
// edge outside the graph.
func TestActionVerbs_CoverGraphExactly(t *testing.T) {
	for _, from := range AllStatuses {
		for _, to := range AllStatuses {
			verb := ActionVerb(from, to)
			if CanTransition(from, to) && verb == "" {
				t.Errorf("edge %s -> %s has no action verb", from, to)
			}
			if !CanTransition(from, to) && verb != "" {
				t.Errorf("verb %q exists for invalid edge %s -> %s", verb, from, to)
			}
		}
	}
}

func TestValidTargets_ReturnsCopy(t *testing.T) {
	got := ValidTargets(StatusPaidQueue)
	if len(got) != 4 {
		t.Fatalf("expected 4 targets from %s, got %d", StatusPaidQueue, len(got))
	}
	got[0] = MarketStatus("tampered")
	if !CanTransition(StatusPaidQueue, StatusPublished) {
		t.Fatal("mutating the returned slice affected the graph")
	}
}

func TestIsRoutable(t *testing.T) {
	for _, s := range AllStatuses {
		want := s == StatusPublished
		if got := IsRoutable(s); got != want {
			t.Errorf("IsRoutable(%s) = %v, want %v", s, got, want)
		}
	}
}

func TestIsEditable(t *testing.T) {
	editable := map[MarketStatus]bool{
		StatusUnpaidUnderCreation: true,
		StatusPaidUnderCreation:   true,
		StatusPaidNeedsEditing:    true,
		StatusPaymentPending:      false,
		StatusPaidQueue:           false,
		StatusPaidNonPublication:  false,
		StatusPublished:           false,
		StatusInactive:            false,
	}
	for s, want := range editable {
		if got := IsEditable(s); got != want {
			t.Errorf("IsEditable(%s) = %v, want %v", s, got, want)
		}
	}
	if IsEditable(MarketStatus("bogus")) {
		t.Error("unknown status must not be editable")
	}
}

func TestIsPublishable(t *testing.T) {
	publishable := map[MarketStatus]bool{
		StatusPaidUnderCreation:   true,
		StatusPaidQueue:           true,
		StatusPaidNeedsEditing:    true,
		StatusPaidNonPublication:  true,
		StatusUnpaidUnderCreation: false,
		StatusPaymentPending:      false,
		StatusPublished:           false,
		StatusInactive:            false,
	}
	for s, want := range publishable {
		if got := IsPublishable(s); got != want {
			t.Errorf("IsPublishable(%s) = %v, want %v", s, got, want)
		}
	}
	if IsPublishable(MarketStatus("bogus")) {
		t.Error("unknown status must not be publishable")
	}
}

func TestAvailableActions_MatchTargets(t *testing.T) {
	for _, from := range AllStatuses {
		targets := ValidTargets(from)
		actions := AvailableActions(from)
		if len(actions) != len(targets) {
			t.Fatalf("%s: %d actions for %d targets", from, len(actions), len(targets))
		}
		for i, to := range targets {
			if actions[i] != ActionVerb(from, to) {
				t.Errorf("%s: action[%d] = %q, want %q for target %s",
					from, i, actions[i], ActionVerb(from, to), to)
			}
		}
	}
	if got := AvailableActions(MarketStatus("bogus")); len(got) != 0 {
		t.Errorf("unknown status has actions: %v", got)
	}
}
