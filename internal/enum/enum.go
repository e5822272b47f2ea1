package enum

// ── Group A: State machines (CHECK constrained in DB) ──

// Completed orders reopened more than once carry a counter suffix,
// e.g. "Completed 2". See service.CompletedLabel.
const (
	OrderStatusNew       = "New"
	OrderStatusActive    = "Active"
	OrderStatusCompleted = "Completed"
)

// ── Group C: Borderline (CHECK constrained in DB) ──

const (
	UserRoleAdmin      = "ADMIN"
	UserRoleSupervisor = "SUPERVISOR"
	UserRoleOperator   = "OPERATOR"
)

// ── Group B: Configurable labels (no DB constraint) ──

// Websocket event types pushed to a production line room.
const (
	EventOrderStarted   = "order.started"
	EventOrderStopped   = "order.stopped"
	EventOrderSplit     = "order.split"
	EventOrderReopened  = "order.reopened"
	EventOrderCorrected = "order.corrected"
)
