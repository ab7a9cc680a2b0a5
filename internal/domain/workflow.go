package domain

import "fmt"

// transitions is the closed adjacency map of the market lifecycle. A status
// pair absent from this map is invalid; there is no wildcard edge. Any state
// may be shut down to inactive except inactive itself, which can only be
// revived.
var transitions = map[MarketStatus][]MarketStatus{
	StatusUnpaidUnderCreation: {StatusPaidUnderCreation, StatusPaymentPending, StatusInactive},
	StatusPaymentPending:      {StatusPaidUnderCreation, StatusUnpaidUnderCreation, StatusInactive},
	StatusPaidUnderCreation:   {StatusPaidQueue, StatusInactive},
	StatusPaidQueue:           {StatusPublished, StatusPaidNeedsEditing, StatusPaidNonPublication, StatusInactive},
	StatusPaidNonPublication:  {StatusPaidQueue, StatusInactive},
	StatusPublished:           {StatusPaidNeedsEditing, StatusInactive},
	StatusPaidNeedsEditing:    {StatusPaidQueue, StatusInactive},
	StatusInactive:            {StatusPaidUnderCreation, StatusUnpaidUnderCreation},
}

// actionVerbs names each valid edge for audit history and API responses.
var actionVerbs = map[MarketStatus]map[MarketStatus]string{
	StatusUnpaidUnderCreation: {
		StatusPaidUnderCreation: "mark_paid",
		StatusPaymentPending:    "start_payment",
		StatusInactive:          "deactivate",
	},
	StatusPaymentPending: {
		StatusPaidUnderCreation:   "confirm_payment",
		StatusUnpaidUnderCreation: "abandon_payment",
		StatusInactive:            "deactivate",
	},
	StatusPaidUnderCreation: {
		StatusPaidQueue: "submit_for_publication",
		StatusInactive:  "deactivate",
	},
	StatusPaidQueue: {
		StatusPublished:          "publish",
		StatusPaidNeedsEditing:   "request_edits",
		StatusPaidNonPublication: "withhold",
		StatusInactive:           "deactivate",
	},
	StatusPaidNonPublication: {
		StatusPaidQueue: "resubmit",
		StatusInactive:  "deactivate",
	},
	StatusPublished: {
		StatusPaidNeedsEditing: "unpublish_for_edits",
		StatusInactive:         "deactivate",
	},
	StatusPaidNeedsEditing: {
		StatusPaidQueue: "resubmit",
		StatusInactive:  "deactivate",
	},
	StatusInactive: {
		StatusPaidUnderCreation:   "reactivate_paid",
		StatusUnpaidUnderCreation: "reactivate_unpaid",
	},
}

// AllStatuses lists every market lifecycle state; used by validation and
// exhaustiveness tests.
var AllStatuses = []MarketStatus{
	StatusUnpaidUnderCreation,
	StatusPaidUnderCreation,
	StatusPaidQueue,
	StatusPaidNonPublication,
	StatusPublished,
	StatusPaidNeedsEditing,
	StatusInactive,
	StatusPaymentPending,
}

// IsValidStatus reports whether s is a recognised lifecycle state.
func IsValidStatus(s MarketStatus) bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether the edge from→to exists in the lifecycle
// graph. Self-transitions are never valid.
func CanTransition(from, to MarketStatus) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// ValidTargets returns the states reachable from the given state. The
// returned slice is a copy.
func ValidTargets(from MarketStatus) []MarketStatus {
	src := transitions[from]
	out := make([]MarketStatus, len(src))
	copy(out, src)
	return out
}

// ActionVerb names the edge from→to, e.g. "publish". Empty for invalid edges.
func ActionVerb(from, to MarketStatus) string {
	return actionVerbs[from][to]
}

// AvailableActions returns the action verbs available from the given state,
// in the same order as ValidTargets. Empty for unknown states.
func AvailableActions(from MarketStatus) []string {
	src := transitions[from]
	out := make([]string, 0, len(src))
	for _, to := range src {
		out = append(out, actionVerbs[from][to])
	}
	return out
}

// editableStatuses are the states in which the owner may change storefront
// content: while building it out, or after review pulled it back for edits.
var editableStatuses = map[MarketStatus]bool{
	StatusUnpaidUnderCreation: true,
	StatusPaidUnderCreation:   true,
	StatusPaidNeedsEditing:    true,
}

// publishableStatuses are the states inside the publication pipeline: the
// market is paid and either queued for review or one owner/admin action away
// from re-entering the queue.
var publishableStatuses = map[MarketStatus]bool{
	StatusPaidUnderCreation:  true,
	StatusPaidQueue:          true,
	StatusPaidNeedsEditing:   true,
	StatusPaidNonPublication: true,
}

// IsEditable reports whether the owner may edit content in this state.
func IsEditable(s MarketStatus) bool {
	return editableStatuses[s]
}

// IsPublishable reports whether the state can lead to publication without
// leaving the paid family.
func IsPublishable(s MarketStatus) bool {
	return publishableStatuses[s]
}

// CheckTransition validates the edge and returns ErrInvalidTransition,
// annotated with both endpoints, when it does not exist.
func CheckTransition(from, to MarketStatus) error {
	if !IsValidStatus(from) {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, from)
	}
	if !IsValidStatus(to) {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, to)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// IsPaidStatus reports whether the state implies a settled subscription.
// is_paid on the market row is kept in lockstep with this predicate on every
// transition.
func IsPaidStatus(s MarketStatus) bool {
	switch s {
	case StatusPaidUnderCreation, StatusPaidQueue, StatusPaidNonPublication,
		StatusPublished, StatusPaidNeedsEditing:
		return true
	}
	return false
}

// IsRoutable reports whether a market in this state should resolve on its
// hostname.
func IsRoutable(s MarketStatus) bool {
	return s == StatusPublished
}
