package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tripcrew/tripcrew/internal/models"
)

// Login exchanges credentials for the user identity. Depending on the
// deployment the response may also carry the token pair; the session store
// decides what to do with it.
func (c *Client) Login(ctx context.Context, username, password string) (*models.LoginResponse, error) {
	var resp models.LoginResponse
	req := models.LoginRequest{Username: username, Password: password}
	if err := c.do(ctx, http.MethodPost, "/users/login", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Signup creates a new account.
func (c *Client) Signup(ctx context.Context, req models.SignupRequest) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodPost, "/users", req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByUsername resolves the session user.
func (c *Client) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	path := "/users/username/" + url.PathEscape(username)
	if err := c.do(ctx, http.MethodGet, path, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListUserMemberships returns the membership edges for a user, one per group
// the user belongs to.
func (c *Client) ListUserMemberships(ctx context.Context, userID int64) ([]models.Membership, error) {
	var edges []models.Membership
	path := fmt.Sprintf("/api/user-groups/user/%d", userID)
	if err := c.do(ctx, http.MethodGet, path, nil, &edges); err != nil {
		return nil, err
	}
	return edges, nil
}

// ListGroupMembers returns the membership edges for a group, one per member.
func (c *Client) ListGroupMembers(ctx context.Context, groupID int64) ([]models.Membership, error) {
	var edges []models.Membership
	path := fmt.Sprintf("/api/user-groups/group/%d", groupID)
	if err := c.do(ctx, http.MethodGet, path, nil, &edges); err != nil {
		return nil, err
	}
	return edges, nil
}

// GetGroup fetches one group by id.
func (c *Client) GetGroup(ctx context.Context, groupID int64) (*models.Group, error) {
	var group models.Group
	path := fmt.Sprintf("/api/groups/%d", groupID)
	if err := c.do(ctx, http.MethodGet, path, nil, &group); err != nil {
		return nil, err
	}
	return &group, nil
}

// CreateGroup creates a new group. The server adds the creator as a member.
func (c *Client) CreateGroup(ctx context.Context, req models.CreateGroupRequest) (*models.Group, error) {
	var group models.Group
	if err := c.do(ctx, http.MethodPost, "/api/groups", req, &group); err != nil {
		return nil, err
	}
	return &group, nil
}

// RequestAddMember asks the server to add a user to a group.
func (c *Client) RequestAddMember(ctx context.Context, req models.AddMemberRequest) error {
	return c.do(ctx, http.MethodPost, "/api/user-groups/request", req, nil)
}

// ListUserProposals returns all proposals authored by the user.
func (c *Client) ListUserProposals(ctx context.Context, userID int64) ([]models.Proposal, error) {
	var proposals []models.Proposal
	path := fmt.Sprintf("/trip-proposals/user/%d", userID)
	if err := c.do(ctx, http.MethodGet, path, nil, &proposals); err != nil {
		return nil, err
	}
	return proposals, nil
}

// ListGroupProposals returns all proposals owned by the group.
func (c *Client) ListGroupProposals(ctx context.Context, groupID int64) ([]models.Proposal, error) {
	var proposals []models.Proposal
	path := fmt.Sprintf("/trip-proposals/group/%d", groupID)
	if err := c.do(ctx, http.MethodGet, path, nil, &proposals); err != nil {
		return nil, err
	}
	return proposals, nil
}

// GetProposal fetches one proposal by id.
func (c *Client) GetProposal(ctx context.Context, proposalID int64) (*models.Proposal, error) {
	var proposal models.Proposal
	path := fmt.Sprintf("/trip-proposals/%d", proposalID)
	if err := c.do(ctx, http.MethodGet, path, nil, &proposal); err != nil {
		return nil, err
	}
	return &proposal, nil
}

// CreateProposal submits a new trip proposal.
func (c *Client) CreateProposal(ctx context.Context, req models.CreateProposalRequest) (*models.Proposal, error) {
	var proposal models.Proposal
	if err := c.do(ctx, http.MethodPost, "/trip-proposals", req, &proposal); err != nil {
		return nil, err
	}
	return &proposal, nil
}

// GetApproval fetches one member's approval status for one proposal.
func (c *Client) GetApproval(ctx context.Context, userID, proposalID int64) (*models.Approval, error) {
	var approval models.Approval
	path := fmt.Sprintf("/api/proposal-approvals/%d/%d", userID, proposalID)
	if err := c.do(ctx, http.MethodGet, path, nil, &approval); err != nil {
		return nil, err
	}
	return &approval, nil
}

// SetApproval records a member's verdict on a proposal and returns the
// server-confirmed status.
func (c *Client) SetApproval(ctx context.Context, userID, proposalID int64, status models.ApprovalStatus) (*models.Approval, error) {
	var approval models.Approval
	path := fmt.Sprintf("/api/proposal-approvals/%d/%d", userID, proposalID)
	req := models.SetApprovalRequest{Status: status}
	if err := c.do(ctx, http.MethodPut, path, req, &approval); err != nil {
		return nil, err
	}
	// Some deployments answer the PUT with an empty body; in that case the
	// requested status is the confirmed one.
	if approval.Status == "" {
		approval.Status = status
	}
	return &approval, nil
}

// RefreshAccessToken exchanges the refresh token for a new access token.
// This call bypasses the bearer/renewal machinery in do: it is the renewal,
// so it must never recurse into it.
func (c *Client) RefreshAccessToken(ctx context.Context, refreshToken string) (string, error) {
	payload, err := json.Marshal(map[string]string{"refreshToken": refreshToken})
	if err != nil {
		return "", fmt.Errorf("failed to encode refresh request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/refresh", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &ServerError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var out struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("failed to decode refresh response: %w", err)
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("refresh response carried no access token")
	}
	return out.AccessToken, nil
}
