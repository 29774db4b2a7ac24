package workflow

// NewLifecycle builds the rendición approval state machine positioned at the
// given current state.
//
// The lifecycle is two approval stages followed by payment. A stage-1
// rejection is not final: the stage-2 approver can still approve or reject
// the request from REJECTED_STAGE1. Only REJECTED_FINAL and PAID are
// terminal.
func NewLifecycle(current State) StateMachine {
	builder := NewBuilder()

	builder.Configure(StatePending).
		Permit(TriggerApproveStage1, StateApprovedStage1).
		Permit(TriggerRejectStage1, StateRejectedStage1)

	builder.Configure(StateApprovedStage1).
		Permit(TriggerApproveStage2, StateApprovedStage2).
		Permit(TriggerRejectStage2, StateRejectedFinal)

	builder.Configure(StateRejectedStage1).
		Permit(TriggerApproveStage2, StateApprovedStage2).
		Permit(TriggerRejectStage2, StateRejectedFinal)

	builder.Configure(StateApprovedStage2).
		Permit(TriggerMarkPaid, StatePaid)

	return builder.Build(current)
}

// RoleFor returns the actor role allowed to fire the given trigger.
// Payment is recorded by the first-stage approver, matching the operational
// flow where the supervisor closes out approved requests.
func RoleFor(trigger Trigger) Role {
	switch trigger {
	case TriggerApproveStage1, TriggerRejectStage1, TriggerMarkPaid:
		return RoleApprover1
	case TriggerApproveStage2, TriggerRejectStage2:
		return RoleApprover2
	default:
		return RoleUnknown
	}
}
