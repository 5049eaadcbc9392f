package fieldworker

import "time"

// Status is the approval state of a field worker record.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// CanTransition reports whether moving from s to next is a legal transition.
// Pending is the only non-terminal state.
func (s Status) CanTransition(next Status) bool {
	if s != StatusPending {
		return false
	}
	return next == StatusApproved || next == StatusRejected
}

// FieldWorker mirrors the field_workers table. Phone is the de-duplication
// key across active records; DuplicateReason marks a submitter-acknowledged
// intentional duplicate and DuplicateOfPhone annotates which record it
// shadows (free text, not a validated foreign key).
type FieldWorker struct {
	ID               int64
	FullName         string
	Phone            string
	WhatsappPhone    string
	Address          string
	Designation      string
	VillageID        int64
	Block            string
	Status           Status
	SubmittedBy      string
	ApprovedBy       *string
	ApprovedAt       *time.Time
	RejectReason     *string
	DuplicateReason  *string
	DuplicateOfPhone *string
	Active           bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// SubmitRequest contains a coordinator's field-worker submission.
type SubmitRequest struct {
	FullName         string `json:"full_name"`
	Phone            string `json:"phone"`
	WhatsappPhone    string `json:"whatsapp_phone"`
	Address          string `json:"address"`
	Designation      string `json:"designation"`
	VillageID        *int64 `json:"village_id"`
	VillageName      string `json:"village_name"`
	Block            string `json:"block"`
	DuplicateReason  string `json:"duplicate_reason"`
	DuplicateOfPhone string `json:"duplicate_of_phone"`
}

// ListFilter narrows List results. When SubmittedBy is empty all records are
// returned; the service forces it for non-admin callers.
type ListFilter struct {
	SubmittedBy string
	Status      Status
	Block       string
}
