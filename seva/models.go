package seva

import "time"

type Status string

const (
	StatusOpen       Status = "open"
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in_progress"
	StatusFulfilled  Status = "fulfilled"
	StatusCancelled  Status = "cancelled"
)

// CanTransition reports whether next is a legal successor. Fulfilled and
// cancelled are terminal.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusOpen:
		return next == StatusAssigned || next == StatusCancelled
	case StatusAssigned:
		return next == StatusInProgress || next == StatusCancelled
	case StatusInProgress:
		return next == StatusFulfilled
	default:
		return false
	}
}

// Request is a village's ask for seva. Open, assigned and in-progress
// requests count toward the block's activity level.
type Request struct {
	ID           int64
	VillageID    int64
	Description  string
	Status       Status
	RequestedBy  string
	AssignedTo   *string
	CancelReason *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CreateParams carries a new seva request.
type CreateParams struct {
	VillageID   int64  `json:"village_id"`
	Description string `json:"description"`
}

// Filters narrows List results.
type Filters struct {
	VillageID int64
	Status    Status
}
