package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"fdss/internal/config"
	"fdss/internal/event"
	"fdss/internal/identity"
	"fdss/internal/logger"
	"fdss/internal/loop"
	"fdss/internal/profile"
	"fdss/internal/session"
	"fdss/internal/storage"
	"fdss/internal/system"
	"fdss/internal/workers"

	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.Load()
	appLog := logger.New(cfg)

	runtimeCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kv, err := storage.Open(runtimeCtx, cfg, appLog)
	if err != nil {
		log.Fatalf("FATAL: failed to open session backend: %v", err)
	}
	defer kv.Close()

	store := session.NewStore(kv, appLog)
	lp := loop.New(appLog)
	bus := event.New(appLog)
	client := identity.NewClient(cfg.IdentityAPIURL, store, cfg.ClientID, appLog,
		identity.WithUserAgent(system.NewReader(appLog).UserAgent()))

	appLog.Info("fdss client: starting...", "identity_api", cfg.IdentityAPIURL, "client_id", cfg.ClientID)

	g, gCtx := errgroup.WithContext(runtimeCtx)
	gCtx, quit := context.WithCancel(gCtx)
	defer quit()

	a := &app{
		ctx:      gCtx,
		cfg:      cfg,
		log:      appLog,
		loop:     lp,
		bus:      bus,
		store:    store,
		identity: client,
		guard:    profile.NewGuard(store, bus, lp.Clock(), appLog),
		out:      os.Stdout,
	}
	a.subscribe()

	// Event loop
	g.Go(func() error {
		if err := lp.Run(gCtx); err != nil && gCtx.Err() == nil {
			return err
		}
		return nil
	})

	// Session expiry
	workers.NewManager(appLog, workers.NewScheduler(appLog), &workers.ManagerServices{
		Sessions: store,
		Loop:     lp,
		Bus:      bus,
	}, cfg.SessionCheckInterval).Start(gCtx)

	// Identity events
	if cfg.IdentityEventsURL != "" {
		listener := identity.NewListener(cfg.IdentityEventsURL, store, lp, bus, cfg.ClientID, appLog)
		g.Go(func() error {
			return listener.Run(gCtx)
		})
	}

	// Terminal
	g.Go(func() error {
		defer quit()
		return repl(gCtx, a, os.Stdin)
	})

	if err := g.Wait(); err != nil {
		appLog.Error("client stopped with error", "error", err)
		os.Exit(1)
	}

	appLog.Info("fdss client stopped")
}

func repl(ctx context.Context, a *app, in io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	next := func() (string, bool) {
		select {
		case <-ctx.Done():
			return "", false
		case line, ok := <-lines:
			return line, ok
		}
	}

	fmt.Fprint(a.out, help)
	a.loop.Do(func() { a.navigate(event.RouteProfile) })

	for {
		line, ok := next()
		if !ok {
			return nil
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		cmd, args := strings.ToLower(fields[0]), fields[1:]

		switch cmd {
		case "quit", "exit":
			return nil
		case "help":
			fmt.Fprint(a.out, help)
		case "logout":
			fmt.Fprintf(a.out, "%s [y/N] ", profile.LogoutPrompt)
			answer, ok := next()
			if !ok {
				return nil
			}
			confirmed := strings.EqualFold(strings.TrimSpace(answer), "y")
			a.loop.Do(func() { a.logout(confirmed) })
		default:
			a.loop.Do(func() { a.handle(cmd, args) })
		}
	}
}
