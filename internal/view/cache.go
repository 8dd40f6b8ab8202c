// Package view holds the denormalized client-side projection of the current
// user, their groups, and their trip proposals, plus the per-group and
// per-trip detail loaders that read from it.
package view

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tripcrew/tripcrew/internal/api"
	"github.com/tripcrew/tripcrew/internal/metrics"
	"github.com/tripcrew/tripcrew/internal/models"
)

var (
	// ErrViewNotReady indicates a detail loader ran before the aggregate
	// view finished its initial load.
	ErrViewNotReady = errors.New("aggregate view not loaded yet")

	// ErrNotMember indicates the requested group is not in the current
	// user's group list. Convenience check only; the server remains the
	// authority.
	ErrNotMember = errors.New("not a member of this group")
)

// Snapshot is one consistent generation of the aggregate view. User is nil
// when anonymous or after a failed refresh; Groups and Proposals always
// belong to the same refresh as User, never to an older one.
type Snapshot struct {
	User      *models.User
	Groups    []models.Group
	Proposals []models.Proposal
	Loading   bool
}

// Cache is the aggregate view cache. The view is rebuilt wholesale by
// Refresh and never incrementally patched; readers get copies via Snapshot.
type Cache struct {
	mu        sync.Mutex
	user      *models.User
	groups    []models.Group
	proposals []models.Proposal
	loading   bool
	epoch     uint64

	client *api.Client
	logger *slog.Logger
}

// NewCache creates an empty cache reading through the given adapter.
func NewCache(client *api.Client) *Cache {
	return &Cache{
		client: client,
		logger: slog.Default().With("component", "view"),
	}
}

// Refresh rebuilds the whole view for username:
//
//  1. resolve the user by username; on failure the view becomes empty and no
//     further step runs
//  2. resolve the user's membership edges
//  3. fetch every distinct group from step 2 concurrently; any single
//     failure fails the whole refresh (no partial group list)
//  4. fetch the user's proposals (no data dependency on step 3, so it runs
//     alongside the group fan-out)
//  5. publish user+groups+proposals as one atomic replacement
//
// A refresh that is superseded by a newer one before finishing leaves the
// view alone: its result is discarded, not merged. The loading flag is true
// from entry until the current generation reaches a terminal publish.
func (c *Cache) Refresh(ctx context.Context, username string) error {
	c.mu.Lock()
	c.epoch++
	gen := c.epoch
	c.loading = true
	c.mu.Unlock()

	start := time.Now()
	err := c.refresh(ctx, gen, username)

	result := "ok"
	if err != nil {
		if c.currentGen(gen) {
			result = "error"
		} else {
			result = "stale"
		}
	}
	metrics.ViewRefreshDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
	return err
}

func (c *Cache) refresh(ctx context.Context, gen uint64, username string) error {
	user, err := c.client.GetUserByUsername(ctx, username)
	if err != nil {
		c.publishEmpty(gen)
		return fmt.Errorf("failed to resolve user %q: %w", username, err)
	}

	edges, err := c.client.ListUserMemberships(ctx, user.ID)
	if err != nil {
		c.publishEmpty(gen)
		return fmt.Errorf("failed to list memberships: %w", err)
	}
	groupIDs := distinctGroupIDs(edges)

	// Group fan-out and the proposal fetch run together; the snapshot is
	// published only once every fetch has settled.
	groups := make([]models.Group, len(groupIDs))
	groupErrs := make([]error, len(groupIDs))
	var proposals []models.Proposal
	var proposalsErr error

	var wg sync.WaitGroup
	for i, id := range groupIDs {
		wg.Add(1)
		go func(i int, id int64) {
			defer wg.Done()
			g, err := c.client.GetGroup(ctx, id)
			if err != nil {
				groupErrs[i] = fmt.Errorf("failed to fetch group %d: %w", id, err)
				return
			}
			groups[i] = *g
		}(i, id)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		ps, err := c.client.ListUserProposals(ctx, user.ID)
		if err != nil {
			proposalsErr = fmt.Errorf("failed to list proposals: %w", err)
			return
		}
		proposals = ps
	}()
	wg.Wait()

	// All-or-nothing join: a partial group list is never accepted as the
	// steady state.
	for _, err := range groupErrs {
		if err != nil {
			c.publishEmpty(gen)
			return err
		}
	}
	if proposalsErr != nil {
		c.publishEmpty(gen)
		return proposalsErr
	}

	c.publish(gen, user, groups, proposals)
	return nil
}

// publish installs a completed snapshot, unless a newer refresh has started
// in the meantime; a stale result is dropped without touching the view.
func (c *Cache) publish(gen uint64, user *models.User, groups []models.Group, proposals []models.Proposal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.epoch {
		c.logger.Debug("Discarding superseded refresh", "generation", gen, "current", c.epoch)
		return
	}
	c.user = user
	c.groups = groups
	c.proposals = proposals
	c.loading = false
	c.logger.Info("View refreshed",
		"username", user.Username,
		"groups", len(groups),
		"proposals", len(proposals),
	)
}

// publishEmpty clears the view after a failed refresh so a stale identity is
// never shown next to data from another generation.
func (c *Cache) publishEmpty(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.epoch {
		return
	}
	c.user = nil
	c.groups = nil
	c.proposals = nil
	c.loading = false
}

func (c *Cache) currentGen(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen == c.epoch
}

// Snapshot returns a copy of the current view. While Loading is true the
// contents are not meaningful.
func (c *Cache) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{Loading: c.loading}
	if c.user != nil {
		u := *c.user
		snap.User = &u
	}
	snap.Groups = append([]models.Group(nil), c.groups...)
	snap.Proposals = append([]models.Proposal(nil), c.proposals...)
	return snap
}

// Loading reports whether a refresh is in flight.
func (c *Cache) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Reset empties the view and invalidates any in-flight refresh. Called on
// logout.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.user = nil
	c.groups = nil
	c.proposals = nil
	c.loading = false
}

// distinctGroupIDs extracts the group id set from membership edges,
// preserving first-seen order.
func distinctGroupIDs(edges []models.Membership) []int64 {
	seen := make(map[int64]bool, len(edges))
	var ids []int64
	for _, e := range edges {
		if !seen[e.Group.ID] {
			seen[e.Group.ID] = true
			ids = append(ids, e.Group.ID)
		}
	}
	return ids
}
