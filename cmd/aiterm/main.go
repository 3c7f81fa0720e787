package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"aiterm/internal/event"
	"aiterm/internal/llm"
	"aiterm/internal/security"
	"aiterm/internal/session"
	"aiterm/internal/shellctx"
	termhost "aiterm/internal/term"
	"aiterm/internal/ui"
)

const version = "0.1.0"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("aiterm", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config.json (default ~/.config/aiterm/config.json)")
	model := fs.String("model", "", "model id override")
	modelType := fs.String("model-type", "", "model provider: openai or anthropics")
	debugLog := fs.String("debug-log", "", "append debug logs to this file")
	showVersion := fs.Bool("version", false, "print version and exit")
	fs.Parse(args)

	if *showVersion {
		fmt.Println("aiterm", version)
		return nil
	}

	if *debugLog != "" {
		f, err := os.OpenFile(*debugLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open debug log: %w", err)
		}
		defer f.Close()
		log.SetOutput(f)
	} else {
		log.SetOutput(io.Discard)
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("stdout is not a TTY")
	}

	path := *configPath
	if path == "" {
		path = llm.DefaultConfigPath()
	}
	cfg, err := llm.LoadConfig(path)
	if err != nil {
		return err
	}
	if *model != "" {
		cfg.Model = *model
	}
	if *modelType != "" {
		cfg.ModelType = *modelType
	}
	client, err := llm.NewClient(cfg)
	if err != nil {
		return err
	}

	policy, err := security.LoadPolicy(path)
	if err != nil {
		return err
	}

	shell := strings.TrimSpace(os.Getenv("SHELL"))
	if shell == "" {
		shell = "/bin/sh"
	}

	events := make(chan event.AppEvent, event.AppEventCap)
	tokens := make(chan event.StreamData, event.TokenStreamCap)

	// Initial size; the UI resizes the PTY to the pane on the first frame.
	cols, rows := 80, 24
	if w, h, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 && h > 0 {
		cols, rows = w, h
	}

	terminal, bytes, err := termhost.New(shell, events, cols, rows)
	if err != nil {
		return err
	}
	defer terminal.Close()

	collector := shellctx.NewCollector()
	terminal.Emulator().CwdChanged = collector.SetCwd

	gate := security.NewExecutor(policy, terminal)
	gate.OnDeny = func(cmd, reason string) {
		events <- event.GateDenied{Command: cmd, Reason: reason}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := session.NewManager(client, client.Model, policy, tokens, events)
	defer manager.CancelAll()

	app := ui.New(ctx, ui.Options{
		Terminal:  terminal,
		Bytes:     bytes,
		Tokens:    tokens,
		Events:    events,
		Manager:   manager,
		Gate:      gate,
		Collector: collector,
	})

	prog := tea.NewProgram(app,
		tea.WithAltScreen(),
		tea.WithMouseAllMotion(),
	)
	if _, err := prog.Run(); err != nil {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}
