package domain

// MatrixStatus represents the lifecycle state of an evaluation matrix.
type MatrixStatus string

// Matrix lifecycle states. Setup -> InProgress -> EvaluationComplete ->
// Review -> Final, with Cancelled reachable from any non-terminal state.
// Final and Cancelled are terminal.
const (
	// MatrixSetup is the initial state before any score is accepted.
	MatrixSetup MatrixStatus = "setup"

	// MatrixInProgress is entered automatically on the first accepted
	// submission.
	MatrixInProgress MatrixStatus = "in_progress"

	// MatrixEvaluationComplete is entered automatically once every
	// (vendor, evaluator) pair has a fully-scored submission, or manually
	// by the chair closing evaluation with gaps.
	MatrixEvaluationComplete MatrixStatus = "evaluation_complete"

	// MatrixReview is entered manually by an oversight reviewer.
	MatrixReview MatrixStatus = "review"

	// MatrixFinal seals all scores and the results snapshot. Terminal.
	MatrixFinal MatrixStatus = "final"

	// MatrixCancelled abandons the exercise with a recorded reason.
	// Terminal and irreversible.
	MatrixCancelled MatrixStatus = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s MatrixStatus) Terminal() bool {
	return s == MatrixFinal || s == MatrixCancelled
}

// matrixTransitions enumerates the legal forward edges of the state
// machine. Cancellation is handled separately since it is legal from any
// non-terminal state.
var matrixTransitions = map[MatrixStatus][]MatrixStatus{
	MatrixSetup:              {MatrixInProgress},
	MatrixInProgress:         {MatrixEvaluationComplete},
	MatrixEvaluationComplete: {MatrixReview},
	MatrixReview:             {MatrixFinal},
}

// CanTransition reports whether moving from s to target is legal.
func (s MatrixStatus) CanTransition(target MatrixStatus) bool {
	if target == MatrixCancelled {
		return !s.Terminal()
	}
	for _, next := range matrixTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// Role identifies the authorization level of a caller. Authentication is
// the host's concern; the engine only gates which actions each role may
// perform.
type Role string

// Caller roles recognized by the engine.
const (
	// RoleEvaluator may submit and resubmit vendor scores.
	RoleEvaluator Role = "evaluator"

	// RoleChair may close evaluation, review scores, and cancel.
	RoleChair Role = "chair"

	// RoleReviewer may begin oversight review and finalize.
	RoleReviewer Role = "reviewer"
)
