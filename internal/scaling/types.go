package scaling

// Action represents a scaling decision action.
type Action string

const (
	// ActionScaleUp indicates more workers should be added.
	ActionScaleUp Action = "scale_up"

	// ActionScaleDown indicates workers should be removed.
	ActionScaleDown Action = "scale_down"

	// ActionNone indicates no scaling change is needed.
	ActionNone Action = "none"
)

// String returns the string representation of the action.
func (a Action) String() string {
	return string(a)
}

// LoadStatus is a snapshot of engine load used for policy evaluation.
type LoadStatus struct {
	// Pending counts tasks that have not started yet.
	Pending int

	// Running counts tasks currently executing.
	Running int

	// Completed counts tasks that finished successfully.
	Completed int

	// Failed counts tasks that failed or were skipped.
	Failed int

	// Total is the overall task count.
	Total int
}

// Decision is the result of evaluating the scaling policy against the
// current load and worker count.
type Decision struct {
	// Action is the recommended scaling action.
	Action Action

	// Delta is the number of workers to add (positive) or remove
	// (negative). Zero when Action is ActionNone.
	Delta int

	// Target is the recommended pool size after applying Delta.
	Target int

	// Reason is a human-readable explanation of the decision.
	Reason string
}
