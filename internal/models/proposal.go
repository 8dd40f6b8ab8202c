package models

// Proposal is a trip proposed to a group. Immutable once created as far as
// this client is concerned; only its per-member approval status changes.
type Proposal struct {
	ID            int64   `json:"id"`
	PlaceName     string  `json:"placeName"`
	CostPerPerson float64 `json:"costPerPerson"`
	Description   string  `json:"description"`
	ProposedBy    User    `json:"proposedBy"`
	Group         Group   `json:"group"`
}

// CreateProposalRequest is the payload for POST /trip-proposals. The server
// expects the author and owning group as nested reference objects.
type CreateProposalRequest struct {
	PlaceName     string   `json:"placeName"`
	CostPerPerson float64  `json:"costPerPerson"`
	Description   string   `json:"description"`
	ProposedBy    UserRef  `json:"proposedBy"`
	Group         GroupRef `json:"group"`
}
