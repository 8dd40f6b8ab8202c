package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/tripcrew/tripcrew/internal/api"
	"github.com/tripcrew/tripcrew/internal/config"
	"github.com/tripcrew/tripcrew/internal/models"
	"github.com/tripcrew/tripcrew/internal/notify"
	"github.com/tripcrew/tripcrew/internal/session"
	"github.com/tripcrew/tripcrew/internal/storage"
	"github.com/tripcrew/tripcrew/internal/view"
)

type app struct {
	cfg     *config.Config
	store   storage.Store
	client  *api.Client
	session *session.Session
	cache   *view.Cache
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "signup":
		return a.signup(ctx, args)
	case "login":
		return a.login(ctx, args)
	case "logout":
		return a.logout(ctx)
	case "dashboard":
		return a.dashboard(ctx)
	case "group":
		return a.group(ctx, args)
	case "trip":
		return a.trip(ctx, args)
	case "approve":
		return a.decide(ctx, args, models.StatusApproved)
	case "reject":
		return a.decide(ctx, args, models.StatusRejected)
	case "create-group":
		return a.createGroup(ctx, args)
	case "propose":
		return a.propose(ctx, args)
	case "add-member":
		return a.addMember(ctx, args)
	case "watch":
		return a.watch(ctx)
	case "notifications":
		return a.notifications(ctx)
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

// ensureView loads the aggregate view for the persisted session. Every read
// command goes through here so the view is always one consistent snapshot.
func (a *app) ensureView(ctx context.Context) error {
	username, ok := a.session.Bootstrap()
	if !ok {
		return errors.New("not logged in; run `tripcrew login` first")
	}
	return a.cache.Refresh(ctx, username)
}

func (a *app) signup(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("signup", flag.ExitOnError)
	fullName := fs.String("name", "", "Full name")
	username := fs.String("username", "", "Username")
	email := fs.String("email", "", "Email address")
	phone := fs.String("phone", "", "Phone number")
	password := fs.String("password", "", "Password")
	fs.Parse(args)

	if *fullName == "" || *username == "" || *email == "" || *phone == "" || *password == "" {
		return errors.New("all of -name, -username, -email, -phone, -password are required")
	}

	user, err := a.client.Signup(ctx, models.SignupRequest{
		FullName:    *fullName,
		Username:    *username,
		Email:       *email,
		PhoneNumber: *phone,
		Password:    *password,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Account created for %s (@%s). Run `tripcrew login` to get started.\n",
		user.FullName, user.Username)
	return nil
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	username := fs.String("username", "", "Username")
	password := fs.String("password", "", "Password")
	fs.Parse(args)

	if *username == "" || *password == "" {
		return errors.New("-username and -password are required")
	}

	if _, err := a.session.Login(ctx, *username, *password); err != nil {
		if api.IsStatus(err, 401) {
			return errors.New("invalid credentials, please try again")
		}
		return err
	}

	if err := a.cache.Refresh(ctx, *username); err != nil {
		return err
	}
	return a.printDashboard()
}

func (a *app) logout(ctx context.Context) error {
	if err := a.session.Logout(ctx); err != nil {
		return err
	}
	a.cache.Reset()
	fmt.Println("Logged out.")
	return nil
}

func (a *app) dashboard(ctx context.Context) error {
	if err := a.ensureView(ctx); err != nil {
		return err
	}
	return a.printDashboard()
}

func (a *app) printDashboard() error {
	snap := a.cache.Snapshot()
	if snap.User == nil {
		return errors.New("no user loaded")
	}

	fmt.Printf("Welcome, %s  (wallet: %.2f)\n\n", snap.User.Username, snap.User.WalletAmount)

	fmt.Println("Your groups:")
	if len(snap.Groups) == 0 {
		fmt.Println("  (none yet)")
	}
	for _, g := range snap.Groups {
		fmt.Printf("  [%d] %s — %s\n", g.ID, g.Name, g.Description)
	}

	fmt.Println("\nYour proposals:")
	if len(snap.Proposals) == 0 {
		fmt.Println("  (none yet)")
	}
	for _, p := range snap.Proposals {
		fmt.Printf("  [%d] %s (%.2f per person) in %s\n", p.ID, p.PlaceName, p.CostPerPerson, p.Group.Name)
	}
	return nil
}

func (a *app) group(ctx context.Context, args []string) error {
	groupID, err := idArg(args, "group id")
	if err != nil {
		return err
	}
	if err := a.ensureView(ctx); err != nil {
		return err
	}

	detail, err := a.cache.LoadGroupDetail(ctx, groupID)
	if err != nil {
		return err
	}

	fmt.Printf("%s\n%s\n\n", detail.Group.Name, detail.Group.Description)

	fmt.Println("Members:")
	for _, m := range detail.Members {
		fmt.Printf("  %s (@%s) — %s\n", m.User.FullName, m.User.Username, m.Role)
	}

	fmt.Println("\nTrip proposals:")
	if len(detail.Proposals) == 0 {
		fmt.Println("  (none yet)")
	}
	for _, p := range detail.Proposals {
		fmt.Printf("  [%d] %s (%.2f per person) — proposed by %s — your status: %s\n",
			p.ID, p.PlaceName, p.CostPerPerson, p.ProposedBy.FullName, p.Status)
	}
	return nil
}

func (a *app) trip(ctx context.Context, args []string) error {
	proposalID, err := idArg(args, "proposal id")
	if err != nil {
		return err
	}
	if err := a.ensureView(ctx); err != nil {
		return err
	}

	detail, err := a.cache.LoadTrip(ctx, proposalID)
	if err != nil {
		return err
	}

	p := detail.Proposal()
	fmt.Printf("%s\n%s\n", p.PlaceName, p.Description)
	fmt.Printf("Cost per person: %.2f\n", p.CostPerPerson)
	fmt.Printf("Proposed by: %s\n", p.ProposedBy.FullName)
	fmt.Printf("Your status: %s\n", detail.Status())
	if detail.Status() == models.StatusPending {
		fmt.Printf("Run `tripcrew approve %d` or `tripcrew reject %d` to vote.\n", p.ID, p.ID)
	}
	return nil
}

func (a *app) decide(ctx context.Context, args []string, status models.ApprovalStatus) error {
	proposalID, err := idArg(args, "proposal id")
	if err != nil {
		return err
	}
	if err := a.ensureView(ctx); err != nil {
		return err
	}

	detail, err := a.cache.LoadTrip(ctx, proposalID)
	if err != nil {
		return err
	}
	if detail.Status().Decided() {
		fmt.Printf("Already decided: your status is %s.\n", detail.Status())
		return nil
	}
	if err := detail.SetStatus(ctx, status); err != nil {
		return err
	}

	fmt.Printf("Your status for %q is now %s.\n", detail.Proposal().PlaceName, detail.Status())
	return nil
}

func (a *app) createGroup(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("create-group", flag.ExitOnError)
	name := fs.String("name", "", "Group name")
	description := fs.String("description", "", "Group description")
	fs.Parse(args)

	if *name == "" || *description == "" {
		return errors.New("-name and -description are required")
	}
	if err := a.ensureView(ctx); err != nil {
		return err
	}

	group, err := a.client.CreateGroup(ctx, models.CreateGroupRequest{
		Name:        *name,
		Description: *description,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Group %q created (id %d).\n", group.Name, group.ID)

	// Refresh so the dashboard reflects the new group.
	if err := a.cache.Refresh(ctx, a.session.Username()); err != nil {
		return err
	}
	return a.printDashboard()
}

func (a *app) propose(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("propose", flag.ExitOnError)
	place := fs.String("place", "", "Place name")
	cost := fs.Float64("cost", -1, "Cost per person")
	description := fs.String("description", "", "Trip description")
	groupID := fs.Int64("group", 0, "Group id")
	fs.Parse(args)

	if *place == "" || *description == "" || *groupID == 0 {
		return errors.New("-place, -description and -group are required")
	}
	if *cost < 0 {
		return errors.New("-cost is required and must be non-negative")
	}
	if err := a.ensureView(ctx); err != nil {
		return err
	}

	snap := a.cache.Snapshot()
	proposal, err := a.client.CreateProposal(ctx, models.CreateProposalRequest{
		PlaceName:     *place,
		CostPerPerson: *cost,
		Description:   *description,
		ProposedBy:    models.UserRef{ID: snap.User.ID},
		Group:         models.GroupRef{ID: *groupID},
	})
	if err != nil {
		return err
	}
	fmt.Printf("Trip %q proposed (id %d).\n", proposal.PlaceName, proposal.ID)

	if err := a.cache.Refresh(ctx, a.session.Username()); err != nil {
		return err
	}
	return nil
}

func (a *app) addMember(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("add-member", flag.ExitOnError)
	username := fs.String("username", "", "Username of the member to add")
	groupID := fs.Int64("group", 0, "Group id")
	role := fs.String("role", models.RoleMember, "Role for the new member")
	fs.Parse(args)

	if *username == "" || *groupID == 0 {
		return errors.New("-username and -group are required")
	}
	if err := a.ensureView(ctx); err != nil {
		return err
	}

	err := a.client.RequestAddMember(ctx, models.AddMemberRequest{
		Username: *username,
		GroupID:  *groupID,
		Role:     *role,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Requested to add @%s to group %d as %s.\n", *username, *groupID, *role)
	return nil
}

func (a *app) watch(ctx context.Context) error {
	if err := a.ensureView(ctx); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	listener := notify.NewListener(
		a.cfg.Realtime.URL,
		a.session.AccessToken,
		a.store,
		func(n models.Notification) {
			fmt.Printf("[%s] %s\n", n.Type, n.Message)
		},
		a.cfg.Realtime.ReconnectInitial,
		a.cfg.Realtime.ReconnectMax,
	)

	fmt.Println("Watching for notifications. Press Ctrl-C to stop.")
	err := listener.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *app) notifications(ctx context.Context) error {
	notifications, err := a.store.ListNotifications(ctx, 50)
	if err != nil {
		return err
	}
	if len(notifications) == 0 {
		fmt.Println("No notifications received yet.")
		return nil
	}
	for _, n := range notifications {
		fmt.Printf("[%s] %s\n", n.Type, n.Message)
	}
	return nil
}

func idArg(args []string, name string) (int64, error) {
	if len(args) < 1 {
		return 0, fmt.Errorf("%s argument required", name)
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, args[0])
	}
	return id, nil
}
