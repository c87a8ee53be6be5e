package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sokinpui/dpatch/cli"
	"github.com/sokinpui/dpatch/dpatch"
	"github.com/sokinpui/dpatch/internal/tui"
	"github.com/sokinpui/dpatch/internal/ui"
)

func main() {
	cfg, err := cli.ParseFlags()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	app, err := dpatch.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	// Plain path: no spinner, events go straight to stderr.
	if cfg.NoAnimation || cfg.Rollback {
		app.SetEventSink(ui.Sink{})
		outcome, err := app.Execute(context.Background())
		if err != nil {
			if e, ok := err.(*dpatch.DetailedError); ok {
				fmt.Fprintf(os.Stderr, "\n--- Stack Trace ---\n%s\n", e.Stack)
			}
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		ui.PrintOutcome(outcome)
		return
	}

	m := tui.New(app)
	p := tea.NewProgram(m)
	m.SetProgram(p)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}
