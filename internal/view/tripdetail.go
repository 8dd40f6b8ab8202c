package view

import (
	"context"
	"fmt"
	"sync"

	"github.com/tripcrew/tripcrew/internal/api"
	"github.com/tripcrew/tripcrew/internal/models"
)

// TripDetail is the detail view for one proposal, holding the current
// user's approval status and the status-transition operation.
type TripDetail struct {
	mu       sync.Mutex
	proposal models.Proposal
	status   models.ApprovalStatus
	userID   int64
	client   *api.Client
}

// LoadTrip loads the detail view for one proposal. The proposal fetch must
// succeed; a failed status fetch degrades to PENDING, mirroring the group
// listing's fallback.
func (c *Cache) LoadTrip(ctx context.Context, proposalID int64) (*TripDetail, error) {
	snap := c.Snapshot()
	if snap.Loading || snap.User == nil {
		return nil, ErrViewNotReady
	}

	proposal, err := c.client.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch proposal %d: %w", proposalID, err)
	}

	status := models.StatusPending
	approval, err := c.client.GetApproval(ctx, snap.User.ID, proposalID)
	if err != nil {
		c.logger.Debug("Approval status unavailable, defaulting to pending",
			"proposal_id", proposalID, "error", err)
	} else {
		status = approval.Status
	}

	return &TripDetail{
		proposal: *proposal,
		status:   status,
		userID:   snap.User.ID,
		client:   c.client,
	}, nil
}

// Proposal returns the proposal being viewed.
func (t *TripDetail) Proposal() models.Proposal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.proposal
}

// Status returns the current user's approval status for the proposal.
func (t *TripDetail) Status() models.ApprovalStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// SetStatus records the user's verdict. Only permitted while the local
// status is PENDING: once decided, the call is a no-op and no request is
// sent. The local status only changes after the server confirms the
// transition; there is no optimistic update.
func (t *TripDetail) SetStatus(ctx context.Context, status models.ApprovalStatus) error {
	if !status.Decided() {
		return fmt.Errorf("status must be %s or %s", models.StatusApproved, models.StatusRejected)
	}

	t.mu.Lock()
	if t.status.Decided() {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	approval, err := t.client.SetApproval(ctx, t.userID, t.proposal.ID, status)
	if err != nil {
		return fmt.Errorf("failed to update approval: %w", err)
	}

	t.mu.Lock()
	t.status = approval.Status
	t.mu.Unlock()
	return nil
}
