// Package dpatch applies unified-diff text to a project directory.
//
// The pipeline is: extract diff text → validate → parse → conflict
// check → per file: backup, apply hunks, write. Validation and conflict
// detection gate the whole batch; once writing starts, failures are
// isolated per file and aggregated into the final outcome.
package dpatch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/sokinpui/dpatch/cli"
	"github.com/sokinpui/dpatch/internal/backup"
	"github.com/sokinpui/dpatch/internal/conflict"
	"github.com/sokinpui/dpatch/internal/diff"
	"github.com/sokinpui/dpatch/internal/fs"
	"github.com/sokinpui/dpatch/internal/parser"
	"github.com/sokinpui/dpatch/internal/patch"
	"github.com/sokinpui/dpatch/internal/source"
	"github.com/sokinpui/dpatch/model"
)

// ProgressUpdate is a callback function to report progress.
type ProgressUpdate func(current, total int)

// App orchestrates one apply run. It owns no patching logic itself; it
// sequences the validator, conflict checker, backup manager and patch
// applier and reports what happened.
type App struct {
	cfg              *cli.Config
	root             string
	sourceProvider   *source.Provider
	sink             model.EventSink
	progressCallback ProgressUpdate
}

// DetailedError enhances a standard error with a stack trace.
type DetailedError struct {
	Err   error
	Stack []byte
}

func (e *DetailedError) Error() string {
	return e.Err.Error()
}

// New creates a new App instance.
func New(cfg *cli.Config) (*App, error) {
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("project root %q is not a directory", cfg.Root)
	}

	return &App{
		cfg:            cfg,
		root:           root,
		sourceProvider: source.New(),
		sink:           model.NopSink{},
	}, nil
}

// SetEventSink injects the sink that receives progress and diagnostics.
func (a *App) SetEventSink(sink model.EventSink) {
	if sink != nil {
		a.sink = sink
	}
}

// SetProgressCallback sets a function to be called for progress updates.
func (a *App) SetProgressCallback(cb ProgressUpdate) {
	a.progressCallback = cb
}

// Execute runs the operation selected by the flags.
func (a *App) Execute(ctx context.Context) (outcome model.ApplyOutcome, err error) {
	// Centralized panic recovery.
	defer func() {
		if r := recover(); r != nil {
			err = &DetailedError{
				Err:   fmt.Errorf("internal panic: %v", r),
				Stack: debug.Stack(),
			}
		}
	}()

	if a.cfg.Rollback {
		return a.rollback()
	}

	content, err := a.sourceProvider.GetContent()
	if err != nil {
		return model.ApplyOutcome{}, err
	}
	return a.Run(ctx, content)
}

// Validate checks content without touching the filesystem. It is the
// text-only gate callers can run before committing to an apply.
func (a *App) Validate(content string) diff.Result {
	return diff.Validate(parser.ExtractDiffText(content))
}

// Check parses content and reports the filesystem conflicts an apply
// would hit, without writing anything.
func (a *App) Check(content string) []conflict.Conflict {
	changes := diff.Parse(parser.ExtractDiffText(content))
	return conflict.Check(changes, a.root).Conflicts
}

// Run executes the full apply pipeline on content.
func (a *App) Run(ctx context.Context, content string) (model.ApplyOutcome, error) {
	text := parser.ExtractDiffText(content)

	res := diff.Validate(text)
	for _, w := range res.Warnings {
		a.sink.Warn("%s", w)
	}
	if !res.Valid {
		return model.ApplyOutcome{}, fmt.Errorf("invalid diff: %s", res.Message)
	}
	if len(res.Warnings) > 0 && !a.cfg.Force {
		return model.ApplyOutcome{}, fmt.Errorf("diff has %d warning(s); rerun with --force to apply anyway", len(res.Warnings))
	}

	changes := diff.Parse(text)
	if len(changes) == 0 {
		return model.ApplyOutcome{Message: "No file changes found. Nothing to do."}, nil
	}

	plan := conflict.Check(changes, a.root)
	if len(plan.Conflicts) > 0 {
		for _, c := range plan.Conflicts {
			a.sink.Warn("conflict: %s", c)
		}
		if !a.cfg.Force {
			return model.ApplyOutcome{}, fmt.Errorf("%d conflict(s) detected; rerun with --force to override", len(plan.Conflicts))
		}
	}

	if !a.cfg.DryRun {
		if err := conflict.Materialize(plan); err != nil {
			return model.ApplyOutcome{}, err
		}
	}

	return a.applyChanges(ctx, changes, plan), nil
}

// applyChanges walks the parsed changes in source order. Files are
// processed strictly sequentially: each one's hunks mutate only that
// file's own buffer, and duplicate targets were already rejected as
// conflicts.
func (a *App) applyChanges(ctx context.Context, changes []diff.FileChange, plan conflict.Plan) model.ApplyOutcome {
	outcome := model.ApplyOutcome{DryRun: a.cfg.DryRun}

	var backups *backup.Manager
	if !a.cfg.DryRun && !a.cfg.NoBackup {
		backups = backup.New(a.root)
		outcome.RunID = backups.RunID()
	}

	total := len(changes)
	if a.progressCallback != nil {
		a.progressCallback(0, total)
	}

	for i, c := range changes {
		rel := c.Path()
		if rel == "" || rel == diff.NullDevice {
			continue
		}

		status := model.StatusSucceeded
		err := ctx.Err()
		if err != nil {
			// Cancelled before (or while) this file: its state is
			// unknown, never a success.
			status = model.StatusUnknown
		} else if err = a.applyOne(c, rel, plan.Targets[rel], backups, &outcome); err != nil {
			status = model.StatusFailed
		}

		if status == model.StatusSucceeded {
			outcome.Succeeded = append(outcome.Succeeded, rel)
		} else {
			outcome.Failed = append(outcome.Failed, rel)
		}
		a.sink.Progress(model.ProgressEvent{
			Path:   rel,
			Index:  i + 1,
			Total:  total,
			Status: status,
			Err:    err,
		})
		if a.progressCallback != nil {
			a.progressCallback(i+1, total)
		}
	}

	if a.cfg.DryRun {
		outcome.Message = fmt.Sprintf("Dry run: %d file(s) would succeed, %d would fail.", len(outcome.Succeeded), len(outcome.Failed))
	}
	return outcome
}

// applyOne processes a single file change end to end. The file handle
// is never held across other files: read, mutate in memory, write.
func (a *App) applyOne(c diff.FileChange, rel, abs string, backups *backup.Manager, outcome *model.ApplyOutcome) error {
	if abs == "" {
		abs = filepath.Join(a.root, rel)
	}

	if backups != nil {
		bp, err := backups.Backup(rel)
		if err != nil {
			return err
		}
		if bp != "" {
			outcome.Backups = append(outcome.Backups, bp)
		}
	}

	if c.IsDelete {
		if a.cfg.DryRun {
			return nil
		}
		if err := os.Remove(abs); err != nil {
			return fmt.Errorf("delete: %w", err)
		}
		return nil
	}

	lines, err := fs.ReadLines(abs)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}

	patched, res := patch.ApplyAll(lines, c.Hunks)
	if !res.Applied() {
		m := res.Mismatches[0]
		if !a.cfg.Force {
			return fmt.Errorf("hunk mismatch at line %d: expected %q, found %q", m.Index+1, m.Expected, m.Actual)
		}
		a.sink.Warn("%s: %d hunk line(s) did not match, forced through", rel, len(res.Mismatches))
	}

	if a.cfg.DryRun {
		return nil
	}

	perm := os.FileMode(0o644)
	if info, err := os.Stat(abs); err == nil {
		perm = info.Mode().Perm()
	}
	if err := fs.WriteLines(abs, patched, perm); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// rollback restores the files of a previous run from its backups.
func (a *App) rollback() (model.ApplyOutcome, error) {
	restored, err := backup.Rollback(a.root, a.cfg.Run)
	if err != nil {
		return model.ApplyOutcome{Succeeded: restored}, err
	}
	return model.ApplyOutcome{
		Succeeded: restored,
		Message:   fmt.Sprintf("Restored %d file(s).", len(restored)),
	}, nil
}

// Apply is a convenience wrapper for library callers: it runs the full
// pipeline on content against cfg.Root.
func Apply(ctx context.Context, content string, cfg cli.Config) (model.ApplyOutcome, error) {
	app, err := New(&cfg)
	if err != nil {
		return model.ApplyOutcome{}, err
	}
	return app.Run(ctx, content)
}
