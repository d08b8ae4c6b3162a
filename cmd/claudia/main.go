// Command claudia is the CLI front door: a development harness that wires
// config, the sqlite persistence collaborator, the Session Manager and
// its auto-responder and health sweeper together, then drives them from a
// line-oriented REPL. It stands in for the eventual host UI and command
// dispatcher during development and owns no orchestration logic of its
// own.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dairui1/claudia/internal/autoresponder"
	"github.com/dairui1/claudia/internal/config"
	"github.com/dairui1/claudia/internal/eventbus"
	"github.com/dairui1/claudia/internal/manager"
	"github.com/dairui1/claudia/internal/process"
	"github.com/dairui1/claudia/internal/reaper"
	"github.com/dairui1/claudia/internal/store"
	"github.com/dairui1/claudia/internal/tracing"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("claudia", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	cfgPath := fs.String("config", "", "path to claudia.yaml")
	logLevelStr := fs.String("log-level", "", "log level: debug, info, warn, error (overrides config/env)")
	repoPath := fs.String("repo", "", "path to the git repository sessions are isolated from (required)")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 1
	}
	if *logLevelStr != "" {
		cfg.LogLevel = *logLevelStr
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))

	if *repoPath == "" {
		fmt.Fprintln(os.Stderr, "claudia: --repo is required (the git repository to isolate sessions from)")
		return 1
	}

	st, err := store.New(cfg.DBPath)
	if err != nil {
		logger.Error("open store", "error", err)
		return 1
	}
	defer st.Close()

	tp, err := tracing.New(context.Background(), cfg.OTLPEndpoint, "claudia")
	if err != nil {
		logger.Error("build tracer provider", "error", err)
		return 1
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Warn("shut down tracer provider", "error", err)
		}
	}()

	mgr := manager.New(manager.Options{
		RepoPath:               *repoPath,
		MaxConcurrentSessions:  cfg.MaxConcurrentSessions,
		DefaultBranchPrefix:    cfg.DefaultBranchPrefix,
		DefaultMaxOutputBuffer: cfg.DefaultMaxOutputBuffer,
		Persist:                st,
		IsolatorFactory:        manager.NewIsolatorFactory(),
		Spawner:                manager.NewSpawnerAdapter(process.NewSpawner(cfg.AssistantBin, logger)),
		Logger:                 logger,
		Tracer:                 tp.Tracer(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweeper := reaper.New(mgr, time.Duration(cfg.HealthSweep.IntervalSeconds)*time.Second, logger)
	go sweeper.Run(ctx)

	if cfg.AutoResponder.Enabled {
		responder := autoresponder.New(time.Duration(cfg.AutoResponder.PollIntervalSeconds)*time.Second, logger)
		go responder.Run(ctx, mgr)
	}

	sub := mgr.Subscribe()
	defer sub.Close()
	go streamEvents(ctx, sub)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down: terminating all sessions")
		for _, info := range mgr.ListActive(ctx) {
			if err := mgr.Terminate(ctx, info.ID); err != nil {
				logger.Warn("terminate on shutdown", "session_id", info.ID, "error", err)
			}
		}
		cancel()
	}()

	fmt.Fprintln(os.Stderr, "claudia ready. commands: create <project-id> [branch-prefix] | list | show <id> | send <id> <text> | pause <id> | resume <id> | terminate <id> | auto <id> <on|off> | quit")
	repl(ctx, mgr, *repoPath, cfg, logger)
	return 0
}

// streamEvents prints every bus event to stdout as a JSON line, standing
// in for a host that subscribes to the event stream and forwards events
// unchanged to its UI layer.
func streamEvents(ctx context.Context, sub *eventbus.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-sub.Events():
			if !ok {
				return
			}
			data, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			fmt.Println(string(data))
		}
	}
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// repl reads line-oriented commands from stdin until EOF, ctx
// cancellation, or an explicit "quit".
func repl(ctx context.Context, mgr *manager.Manager, repoPath string, cfg *config.Config, logger *slog.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		line := scanner.Text()
		if dispatch(ctx, mgr, repoPath, cfg, logger, line) {
			return
		}
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
