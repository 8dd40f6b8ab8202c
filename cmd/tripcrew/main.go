package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tripcrew/tripcrew/internal/api"
	"github.com/tripcrew/tripcrew/internal/config"
	"github.com/tripcrew/tripcrew/internal/session"
	"github.com/tripcrew/tripcrew/internal/storage/sqlite"
	"github.com/tripcrew/tripcrew/internal/view"
	"github.com/tripcrew/tripcrew/pkg/logging"
)

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: tripcrew <command> [options]

Commands:
  signup         Create a new account
  login          Log in and load your dashboard
  logout         Clear the local session
  dashboard      Show your groups and proposals
  group          Show one group: members, proposals, your statuses
  trip           Show one trip proposal and your status
  approve        Approve a trip proposal
  reject         Reject a trip proposal
  create-group   Create a new group
  propose        Propose a trip to one of your groups
  add-member     Request adding a member to a group
  watch          Stream realtime notifications
  notifications  Show recently received notifications`)
}

func main() {
	logging.Setup()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	command, args := os.Args[1], os.Args[2:]

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	store, err := sqlite.New(cfg.State.Path)
	if err != nil {
		slog.Error("Failed to open state store", "path", cfg.State.Path, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()

	client := api.New(cfg.Server.BaseURL, cfg.Server.Timeout, nil)
	sess, err := session.New(ctx, client, store)
	if err != nil {
		slog.Error("Failed to initialize session", "error", err)
		os.Exit(1)
	}
	client.SetCredentials(sess)

	cache := view.NewCache(client)

	if cfg.Metrics.Addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			slog.Info("Metrics listening", "addr", cfg.Metrics.Addr)
			if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
	}

	a := &app{
		cfg:     cfg,
		store:   store,
		client:  client,
		session: sess,
		cache:   cache,
	}

	if err := a.run(ctx, command, args); err != nil {
		if errors.Is(err, api.ErrSessionExpired) || errors.Is(err, session.ErrRefreshInvalid) {
			fmt.Fprintln(os.Stderr, "Session expired. Please run `tripcrew login` again.")
			os.Exit(1)
		}
		slog.Error("Command failed", "command", command, "error", err)
		os.Exit(1)
	}
}
