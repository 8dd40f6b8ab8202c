package models

// ApprovalStatus is one member's verdict on one proposal.
type ApprovalStatus string

const (
	StatusPending  ApprovalStatus = "PENDING"
	StatusApproved ApprovalStatus = "APPROVED"
	StatusRejected ApprovalStatus = "REJECTED"
)

// Decided reports whether the status is a terminal verdict. A decided status
// cannot be changed again from this client.
func (s ApprovalStatus) Decided() bool {
	return s == StatusApproved || s == StatusRejected
}

// Approval is the (user, proposal) status row returned by
// GET /api/proposal-approvals/{userId}/{proposalId}.
type Approval struct {
	Status ApprovalStatus `json:"status"`
}

// SetApprovalRequest is the payload for PUT /api/proposal-approvals/....
type SetApprovalRequest struct {
	Status ApprovalStatus `json:"status"`
}
