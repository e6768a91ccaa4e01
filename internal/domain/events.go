package domain

import (
	"time"
)

// EventKind identifies a notification emitted by an evaluation matrix.
type EventKind string

// Notification kinds. The engine only emits these as data on every
// committed state change; delivery to evaluators, dashboards, or message
// brokers is the host's concern.
const (
	// EventSubmissionAccepted fires after a vendor score is committed and
	// the results snapshot has been recomputed.
	EventSubmissionAccepted EventKind = "submission_accepted"

	// EventStateChanged fires on every matrix lifecycle transition.
	EventStateChanged EventKind = "state_changed"

	// EventConsensusNotReached fires when a recompute leaves at least one
	// vendor outside the consensus threshold.
	EventConsensusNotReached EventKind = "consensus_not_reached"
)

// Event is a notification payload emitted by an evaluation matrix.
type Event struct {
	// Kind identifies the notification type.
	Kind EventKind `json:"kind"`

	// MatrixID identifies the emitting matrix.
	MatrixID string `json:"matrix_id"`

	// VendorID and EvaluatorID scope submission events; both are empty
	// for matrix-level events.
	VendorID    string `json:"vendor_id,omitempty"`
	EvaluatorID string `json:"evaluator_id,omitempty"`

	// From and To carry the transition edge for state-change events.
	From MatrixStatus `json:"from,omitempty"`
	To   MatrixStatus `json:"to,omitempty"`

	// Variance carries the offending variance for consensus events.
	Variance float64 `json:"variance,omitempty"`

	// Timestamp records when the event was emitted.
	Timestamp time.Time `json:"timestamp"`
}
