package ui

import (
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/sokinpui/dpatch/model"
)

var (
	HeaderColor  = color.New(color.FgBlue, color.Bold)
	InfoColor    = color.New(color.FgCyan)
	SuccessColor = color.New(color.FgGreen)
	WarningColor = color.New(color.FgYellow)
	ErrorColor   = color.New(color.FgRed)
	PathColor    = color.New(color.FgYellow)
)

func Header(format string, a ...interface{}) {
	HeaderColor.Fprintf(os.Stderr, format+"\n", a...)
}

func Info(format string, a ...interface{}) {
	InfoColor.Fprintf(os.Stderr, format+"\n", a...)
}

func Success(format string, a ...interface{}) {
	SuccessColor.Fprintf(os.Stderr, format+"\n", a...)
}

func Warning(format string, a ...interface{}) {
	WarningColor.Fprintf(os.Stderr, format+"\n", a...)
}

func Error(format string, a ...interface{}) {
	ErrorColor.Fprintf(os.Stderr, format+"\n", a...)
}

// Sink is the plain-terminal event sink: one line per file, colored,
// written to stderr so stdout stays scriptable.
type Sink struct{}

func (Sink) Progress(ev model.ProgressEvent) {
	switch ev.Status {
	case model.StatusSucceeded:
		Success("[%d/%d] %s", ev.Index, ev.Total, ev.Path)
	case model.StatusFailed:
		Error("[%d/%d] %s: %v", ev.Index, ev.Total, ev.Path, ev.Err)
	case model.StatusUnknown:
		Warning("[%d/%d] %s: interrupted, state unknown", ev.Index, ev.Total, ev.Path)
	default:
		Info("[%d/%d] %s", ev.Index, ev.Total, ev.Path)
	}
}

func (Sink) Info(format string, args ...any) { Info(format, args...) }

func (Sink) Warn(format string, args ...any) { Warning(format, args...) }

// PrintOutcome renders the final summary of a run.
func PrintOutcome(o model.ApplyOutcome) {
	Header("--- Summary ---")
	if o.Message != "" {
		Info("%s", o.Message)
	}

	verb := "Applied"
	if o.DryRun {
		verb = "Would apply"
	}
	if len(o.Succeeded) > 0 {
		Success("%s changes to %d file(s):", verb, len(o.Succeeded))
		for _, f := range o.Succeeded {
			fmt.Printf("  - %s\n", f)
		}
	}
	if len(o.Failed) > 0 {
		Error("Failed to process %d file(s):", len(o.Failed))
		for _, f := range o.Failed {
			fmt.Printf("  - %s\n", f)
		}
	}
	if len(o.Backups) > 0 {
		Info("Backups for run %s:", o.RunID)
		for _, b := range o.Backups {
			PathColor.Fprintf(os.Stderr, "  %s\n", b)
		}
	}
	if len(o.Succeeded) == 0 && len(o.Failed) == 0 {
		Info("No files were updated.")
	}
}
