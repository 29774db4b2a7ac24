package workflow

// State represents a workflow state in the rendición approval lifecycle
type State string

const (
	StatePending        State = "PENDING"
	StateApprovedStage1 State = "APPROVED_STAGE1"
	StateRejectedStage1 State = "REJECTED_STAGE1"
	StateApprovedStage2 State = "APPROVED_STAGE2"
	StateRejectedFinal  State = "REJECTED_FINAL"
	StatePaid           State = "PAID"
)

var validStates = map[State]bool{
	StatePending:        true,
	StateApprovedStage1: true,
	StateRejectedStage1: true,
	StateApprovedStage2: true,
	StateRejectedFinal:  true,
	StatePaid:           true,
}

var terminalStates = map[State]bool{
	StateRejectedFinal: true,
	StatePaid:          true,
}

// IsTerminal returns true if the state admits no further transitions
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid workflow state
func (s State) IsValid() bool {
	return validStates[s]
}

// AllStates returns every valid state, in lifecycle order
func AllStates() []State {
	return []State{
		StatePending,
		StateApprovedStage1,
		StateRejectedStage1,
		StateApprovedStage2,
		StateRejectedFinal,
		StatePaid,
	}
}
