package view

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/tripcrew/tripcrew/internal/api"
	"github.com/tripcrew/tripcrew/internal/models"
)

// testBackend fakes the subset of the REST API the view layer consumes.
type testBackend struct {
	mu sync.Mutex

	users          map[string]models.User
	memberships    map[int64][]models.Membership // keyed by user id
	members        map[int64][]models.Membership // keyed by group id
	groups         map[int64]models.Group
	userProposals  map[int64][]models.Proposal
	groupProposals map[int64][]models.Proposal
	approvals      map[[2]int64]models.ApprovalStatus

	failUser     bool
	failGroup    map[int64]bool
	failApproval map[int64]bool
	failMembers  bool

	// groupGate, when non-nil, blocks every group fetch until closed;
	// groupEntered signals each blocked fetch.
	groupGate    chan struct{}
	groupEntered chan struct{}

	calls map[string]int
	puts  int
}

func newFixture() *testBackend {
	asha := models.User{ID: 7, Username: "asha", FullName: "Asha Rao", WalletAmount: 1200}
	goa := models.Group{ID: 10, Name: "Goa Crew", Description: "Beach trips"}
	hills := models.Group{ID: 20, Name: "Hill Hikers", Description: "Mountain weekends"}

	return &testBackend{
		users: map[string]models.User{"asha": asha},
		memberships: map[int64][]models.Membership{
			7: {
				{User: asha, Group: goa, Role: models.RoleAdmin},
				{User: asha, Group: hills, Role: models.RoleMember},
			},
		},
		members: map[int64][]models.Membership{
			10: {{User: asha, Group: goa, Role: models.RoleAdmin}},
		},
		groups: map[int64]models.Group{10: goa, 20: hills},
		userProposals: map[int64][]models.Proposal{
			7: {{ID: 100, PlaceName: "Palolem", CostPerPerson: 5000, ProposedBy: asha, Group: goa}},
		},
		groupProposals: map[int64][]models.Proposal{},
		approvals:      map[[2]int64]models.ApprovalStatus{},
		failGroup:      map[int64]bool{},
		failApproval:   map[int64]bool{},
		calls:          map[string]int{},
	}
}

func (b *testBackend) count(key string) {
	b.mu.Lock()
	b.calls[key]++
	b.mu.Unlock()
}

func (b *testBackend) callCount(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[key]
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func pathID(r *http.Request, name string) int64 {
	id, _ := strconv.ParseInt(r.PathValue(name), 10, 64)
	return id
}

func (b *testBackend) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /users/username/{username}", func(w http.ResponseWriter, r *http.Request) {
		b.count("user")
		if b.failUser {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		user, ok := b.users[r.PathValue("username")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, user)
	})

	mux.HandleFunc("GET /api/user-groups/user/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.count("memberships")
		writeJSON(w, b.memberships[pathID(r, "id")])
	})

	mux.HandleFunc("GET /api/user-groups/group/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.count("members")
		if b.failMembers {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeJSON(w, b.members[pathID(r, "id")])
	})

	mux.HandleFunc("GET /api/groups/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.count("group")
		b.mu.Lock()
		gate, entered := b.groupGate, b.groupEntered
		b.mu.Unlock()
		if gate != nil {
			entered <- struct{}{}
			<-gate
		}

		id := pathID(r, "id")
		if b.failGroup[id] {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		group, ok := b.groups[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, group)
	})

	mux.HandleFunc("POST /api/groups", func(w http.ResponseWriter, r *http.Request) {
		var req models.CreateGroupRequest
		json.NewDecoder(r.Body).Decode(&req)

		b.mu.Lock()
		group := models.Group{ID: int64(30 + len(b.groups)), Name: req.Name, Description: req.Description}
		b.groups[group.ID] = group
		// The server adds the creator as a member.
		asha := b.users["asha"]
		b.memberships[asha.ID] = append(b.memberships[asha.ID], models.Membership{
			User: asha, Group: group, Role: models.RoleAdmin,
		})
		b.mu.Unlock()
		writeJSON(w, group)
	})

	mux.HandleFunc("GET /trip-proposals/user/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.count("userProposals")
		writeJSON(w, b.userProposals[pathID(r, "id")])
	})

	mux.HandleFunc("GET /trip-proposals/group/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.count("groupProposals")
		writeJSON(w, b.groupProposals[pathID(r, "id")])
	})

	mux.HandleFunc("GET /trip-proposals/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.count("proposal")
		id := pathID(r, "id")
		for _, ps := range b.groupProposals {
			for _, p := range ps {
				if p.ID == id {
					writeJSON(w, p)
					return
				}
			}
		}
		for _, ps := range b.userProposals {
			for _, p := range ps {
				if p.ID == id {
					writeJSON(w, p)
					return
				}
			}
		}
		w.WriteHeader(http.StatusNotFound)
	})

	mux.HandleFunc("GET /api/proposal-approvals/{uid}/{pid}", func(w http.ResponseWriter, r *http.Request) {
		b.count("approval")
		pid := pathID(r, "pid")
		if b.failApproval[pid] {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		status, ok := b.approvals[[2]int64{pathID(r, "uid"), pid}]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, models.Approval{Status: status})
	})

	mux.HandleFunc("PUT /api/proposal-approvals/{uid}/{pid}", func(w http.ResponseWriter, r *http.Request) {
		var req models.SetApprovalRequest
		json.NewDecoder(r.Body).Decode(&req)

		b.mu.Lock()
		b.puts++
		b.approvals[[2]int64{pathID(r, "uid"), pathID(r, "pid")}] = req.Status
		b.mu.Unlock()
		writeJSON(w, models.Approval{Status: req.Status})
	})

	return mux
}

func newTestCache(t *testing.T, b *testBackend) (*Cache, *api.Client) {
	t.Helper()
	server := httptest.NewServer(b.handler())
	t.Cleanup(server.Close)

	client := api.New(server.URL, 2*time.Second, nil)
	return NewCache(client), client
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()

	t.Run("builds the full view", func(t *testing.T) {
		backend := newFixture()
		cache, _ := newTestCache(t, backend)

		if err := cache.Refresh(ctx, "asha"); err != nil {
			t.Fatalf("Refresh failed: %v", err)
		}

		snap := cache.Snapshot()
		if snap.Loading {
			t.Error("loading flag still set after refresh")
		}
		if snap.User == nil || snap.User.ID != 7 {
			t.Fatalf("user: got %+v", snap.User)
		}
		if len(snap.Groups) != 2 {
			t.Fatalf("groups: got %d, want 2", len(snap.Groups))
		}
		if snap.Groups[0].ID != 10 || snap.Groups[1].ID != 20 {
			t.Errorf("group order: got [%d %d], want membership order [10 20]",
				snap.Groups[0].ID, snap.Groups[1].ID)
		}
		if len(snap.Proposals) != 1 || snap.Proposals[0].PlaceName != "Palolem" {
			t.Errorf("proposals: got %+v", snap.Proposals)
		}
	})

	t.Run("one failed group fetch empties the view", func(t *testing.T) {
		backend := newFixture()
		backend.failGroup[20] = true
		cache, _ := newTestCache(t, backend)

		if err := cache.Refresh(ctx, "asha"); err == nil {
			t.Fatal("expected refresh to fail")
		}

		snap := cache.Snapshot()
		if snap.User != nil {
			t.Error("user should be cleared on failed refresh")
		}
		if len(snap.Groups) != 0 || len(snap.Proposals) != 0 {
			t.Errorf("expected empty view, got %d groups, %d proposals",
				len(snap.Groups), len(snap.Proposals))
		}
		if snap.Loading {
			t.Error("loading flag still set after failed refresh")
		}
	})

	t.Run("user resolution failure aborts before any fan-out", func(t *testing.T) {
		backend := newFixture()
		backend.failUser = true
		cache, _ := newTestCache(t, backend)

		if err := cache.Refresh(ctx, "asha"); err == nil {
			t.Fatal("expected refresh to fail")
		}
		if got := backend.callCount("memberships"); got != 0 {
			t.Errorf("memberships fetched %d times after user failure, want 0", got)
		}
		if got := backend.callCount("group"); got != 0 {
			t.Errorf("groups fetched %d times after user failure, want 0", got)
		}
	})

	t.Run("created group appears after the next refresh", func(t *testing.T) {
		backend := newFixture()
		cache, client := newTestCache(t, backend)

		if err := cache.Refresh(ctx, "asha"); err != nil {
			t.Fatalf("Refresh failed: %v", err)
		}

		group, err := client.CreateGroup(ctx, models.CreateGroupRequest{
			Name: "Desert Rats", Description: "Rann of Kutch",
		})
		if err != nil {
			t.Fatalf("CreateGroup failed: %v", err)
		}

		if err := cache.Refresh(ctx, "asha"); err != nil {
			t.Fatalf("second Refresh failed: %v", err)
		}

		snap := cache.Snapshot()
		found := false
		for _, g := range snap.Groups {
			if g.ID == group.ID && g.Name == "Desert Rats" {
				found = true
			}
		}
		if !found {
			t.Errorf("created group %d missing from refreshed view: %+v", group.ID, snap.Groups)
		}
	})

	t.Run("superseded refresh is discarded", func(t *testing.T) {
		backend := newFixture()
		backend.groupGate = make(chan struct{})
		backend.groupEntered = make(chan struct{}, 8)
		cache, _ := newTestCache(t, backend)

		done := make(chan error, 1)
		go func() { done <- cache.Refresh(ctx, "asha") }()

		// Wait until the stale refresh is inside the group fan-out, then
		// supersede it.
		<-backend.groupEntered
		cache.Reset()
		close(backend.groupGate)

		if err := <-done; err != nil {
			t.Fatalf("stale refresh returned error: %v", err)
		}

		snap := cache.Snapshot()
		if snap.User != nil || len(snap.Groups) != 0 || len(snap.Proposals) != 0 {
			t.Errorf("stale refresh leaked into the view: %+v", snap)
		}
		if snap.Loading {
			t.Error("stale refresh flipped the loading flag")
		}
	})
}
