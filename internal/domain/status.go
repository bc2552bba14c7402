package domain

// TicketStatus enumerates lifecycle stages for tickets.
type TicketStatus string

const (
	TicketStatusOpen             TicketStatus = "open"
	TicketStatusInProgress       TicketStatus = "in_progress"
	TicketStatusWaitingForDevice TicketStatus = "waiting_for_device"
	TicketStatusRepairInProgress TicketStatus = "repair_in_progress"
	TicketStatusShippingBack     TicketStatus = "shipping_back"
	TicketStatusCompleted        TicketStatus = "completed"
)

// StatusOrder is the fixed display order of the lifecycle. It drives progress
// rendering only; transitions between any two stages are allowed.
var StatusOrder = []TicketStatus{
	TicketStatusOpen,
	TicketStatusInProgress,
	TicketStatusWaitingForDevice,
	TicketStatusRepairInProgress,
	TicketStatusShippingBack,
	TicketStatusCompleted,
}

// InitialStatus is assigned to every new ticket.
const InitialStatus = TicketStatusOpen

// Valid reports whether s is one of the six stages.
func (s TicketStatus) Valid() bool {
	return s.Index() >= 0
}

// Index returns the position of s in StatusOrder or -1.
func (s TicketStatus) Index() int {
	for i, stage := range StatusOrder {
		if stage == s {
			return i
		}
	}
	return -1
}

// IsActive reports whether s is one of the in-between stages counted as "in progress".
func (s TicketStatus) IsActive() bool {
	i := s.Index()
	return i > 0 && i < len(StatusOrder)-1
}

// StageState describes how a stage renders relative to the current status.
type StageState string

const (
	StageCompleted StageState = "completed"
	StageCurrent   StageState = "current"
	StagePending   StageState = "pending"
)

// TimelineStage is one node of the progress timeline.
type TimelineStage struct {
	Status TicketStatus
	State  StageState
}

// BuildTimeline derives the progress timeline for current. An unknown status
// renders as if it were the first stage and ok is false so the caller can log it.
func BuildTimeline(current TicketStatus) (stages []TimelineStage, ok bool) {
	idx := current.Index()
	ok = idx >= 0
	if !ok {
		idx = 0
	}
	stages = make([]TimelineStage, len(StatusOrder))
	for i, status := range StatusOrder {
		state := StagePending
		switch {
		case i < idx:
			state = StageCompleted
		case i == idx:
			state = StageCurrent
		}
		stages[i] = TimelineStage{Status: status, State: state}
	}
	return stages, ok
}
