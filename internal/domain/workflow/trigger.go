package workflow

// Trigger represents an event that can cause a state transition
type Trigger string

const (
	TriggerApproveStage1 Trigger = "APPROVE_STAGE1"
	TriggerRejectStage1  Trigger = "REJECT_STAGE1"
	TriggerApproveStage2 Trigger = "APPROVE_STAGE2"
	TriggerRejectStage2  Trigger = "REJECT_STAGE2"
	TriggerMarkPaid      Trigger = "MARK_PAID"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}

// AllTriggers returns every trigger the lifecycle recognizes
func AllTriggers() []Trigger {
	return []Trigger{
		TriggerApproveStage1,
		TriggerRejectStage1,
		TriggerApproveStage2,
		TriggerRejectStage2,
		TriggerMarkPaid,
	}
}
