package view

import (
	"context"
	"fmt"
	"sync"

	"github.com/tripcrew/tripcrew/internal/models"
)

// ProposalWithStatus pairs a proposal with the current user's approval
// status for it.
type ProposalWithStatus struct {
	models.Proposal
	Status models.ApprovalStatus
}

// GroupDetail is everything the group page shows: the group itself, its
// member edges, and its proposals annotated with the current user's status.
type GroupDetail struct {
	Group     models.Group
	Members   []models.Membership
	Proposals []ProposalWithStatus
}

// LoadGroupDetail loads the detail view for one group. It requires a
// completed aggregate view (the current user id and the membership check
// come from it) and the group must appear in the user's group list; the
// server still enforces the real authorization.
//
// The member list and the proposal list are fetched concurrently and both
// must succeed. The per-proposal approval statuses are then fetched
// concurrently across proposals; unlike the aggregate refresh this fan-out
// tolerates per-item failure, degrading that entry to PENDING.
func (c *Cache) LoadGroupDetail(ctx context.Context, groupID int64) (*GroupDetail, error) {
	snap := c.Snapshot()
	if snap.Loading {
		return nil, ErrViewNotReady
	}
	if snap.User == nil {
		return nil, ErrViewNotReady
	}

	var group *models.Group
	for i := range snap.Groups {
		if snap.Groups[i].ID == groupID {
			group = &snap.Groups[i]
			break
		}
	}
	if group == nil {
		return nil, fmt.Errorf("%w: group %d", ErrNotMember, groupID)
	}

	var (
		members      []models.Membership
		membersErr   error
		proposals    []models.Proposal
		proposalsErr error
		wg           sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		members, membersErr = c.client.ListGroupMembers(ctx, groupID)
	}()
	go func() {
		defer wg.Done()
		proposals, proposalsErr = c.client.ListGroupProposals(ctx, groupID)
	}()
	wg.Wait()

	if membersErr != nil {
		return nil, fmt.Errorf("failed to list members of group %d: %w", groupID, membersErr)
	}
	if proposalsErr != nil {
		return nil, fmt.Errorf("failed to list proposals of group %d: %w", groupID, proposalsErr)
	}

	userID := snap.User.ID
	annotated := make([]ProposalWithStatus, len(proposals))
	wg.Add(len(proposals))
	for i := range proposals {
		go func(i int) {
			defer wg.Done()
			annotated[i] = ProposalWithStatus{Proposal: proposals[i], Status: models.StatusPending}
			approval, err := c.client.GetApproval(ctx, userID, proposals[i].ID)
			if err != nil {
				// Best-effort: a missing status row or a failed fetch shows
				// as PENDING instead of failing the whole listing.
				c.logger.Debug("Approval status unavailable, defaulting to pending",
					"proposal_id", proposals[i].ID, "error", err)
				return
			}
			annotated[i].Status = approval.Status
		}(i)
	}
	wg.Wait()

	return &GroupDetail{
		Group:     *group,
		Members:   members,
		Proposals: annotated,
	}, nil
}
