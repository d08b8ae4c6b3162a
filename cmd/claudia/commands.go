package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/dairui1/claudia/internal/config"
	"github.com/dairui1/claudia/internal/manager"
	"github.com/dairui1/claudia/internal/session"
)

// dispatch parses and runs one REPL line. It returns true when the
// session should exit (an explicit "quit" or "exit").
func dispatch(ctx context.Context, mgr *manager.Manager, repoPath string, cfg *config.Config, logger *slog.Logger, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	cmd, args := fields[0], fields[1:]
	logger.Debug("dispatching command", "command", cmd, "args", args)
	switch cmd {
	case "quit", "exit":
		return true
	case "create":
		cmdCreate(ctx, mgr, repoPath, cfg, args)
	case "list":
		cmdList(ctx, mgr)
	case "show":
		cmdShow(ctx, mgr, args)
	case "send":
		cmdSend(mgr, args)
	case "pause":
		cmdPause(ctx, mgr, args)
	case "resume":
		cmdResume(ctx, mgr, args)
	case "terminate":
		cmdTerminate(ctx, mgr, args)
	case "auto":
		cmdAuto(mgr, args)
	default:
		fmt.Fprintf(os.Stderr, "claudia: unknown command %q\n", cmd)
	}
	return false
}

func cmdCreate(ctx context.Context, mgr *manager.Manager, repoPath string, cfg *config.Config, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: create <project-id> [branch-prefix]")
		return
	}
	sessCfg := session.Config{ChildArgs: cfg.AssistantArgs}
	if len(args) > 1 {
		sessCfg.BranchPrefix = args[1]
	}
	info, err := mgr.Create(ctx, manager.CreateOpts{
		ProjectID:   args[0],
		ProjectPath: repoPath,
		Config:      sessCfg,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "create: %v\n", err)
		return
	}
	printJSON(info)
}

func cmdList(ctx context.Context, mgr *manager.Manager) {
	printJSON(mgr.ListActive(ctx))
}

func cmdShow(ctx context.Context, mgr *manager.Manager, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: show <id>")
		return
	}
	info, err := mgr.Get(ctx, args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "show: %v\n", err)
		return
	}
	printJSON(info)
}

func cmdSend(mgr *manager.Manager, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: send <id> <text...>")
		return
	}
	text := strings.Join(args[1:], " ")
	if err := mgr.SendInput(args[0], text); err != nil {
		fmt.Fprintf(os.Stderr, "send: %v\n", err)
	}
}

func cmdPause(ctx context.Context, mgr *manager.Manager, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: pause <id>")
		return
	}
	if err := mgr.Pause(ctx, args[0]); err != nil {
		fmt.Fprintf(os.Stderr, "pause: %v\n", err)
	}
}

func cmdResume(ctx context.Context, mgr *manager.Manager, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: resume <id>")
		return
	}
	if err := mgr.Resume(ctx, args[0]); err != nil {
		fmt.Fprintf(os.Stderr, "resume: %v\n", err)
	}
}

func cmdTerminate(ctx context.Context, mgr *manager.Manager, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: terminate <id>")
		return
	}
	if err := mgr.Terminate(ctx, args[0]); err != nil {
		fmt.Fprintf(os.Stderr, "terminate: %v\n", err)
	}
}

func cmdAuto(mgr *manager.Manager, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: auto <id> <on|off>")
		return
	}
	on, err := strconv.ParseBool(boolWord(args[1]))
	if err != nil {
		fmt.Fprintln(os.Stderr, "usage: auto <id> <on|off>")
		return
	}
	if err := mgr.UpdateAutoYes(args[0], on); err != nil {
		fmt.Fprintf(os.Stderr, "auto: %v\n", err)
	}
}

func boolWord(s string) string {
	switch s {
	case "on":
		return "true"
	case "off":
		return "false"
	default:
		return s
	}
}
