// Package model holds the result and event types the engine exposes to
// its callers.
package model

// FileStatus is the terminal state of one file within a run.
type FileStatus int

const (
	StatusPending FileStatus = iota
	StatusSucceeded
	StatusFailed
	// StatusUnknown marks a file whose apply was interrupted mid-flight;
	// it must never be reported as succeeded.
	StatusUnknown
)

// ProgressEvent is emitted once per file as the run advances.
type ProgressEvent struct {
	Path   string
	Index  int // 1-based position within the run
	Total  int
	Status FileStatus
	Err    error
}

// EventSink receives progress events and diagnostic messages from the
// orchestrator. It replaces any process-global logger; callers inject
// whichever implementation suits their front end.
type EventSink interface {
	Progress(ProgressEvent)
	Info(format string, args ...any)
	Warn(format string, args ...any)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Progress(ProgressEvent) {}
func (NopSink) Info(string, ...any)    {}
func (NopSink) Warn(string, ...any)    {}

// ApplyOutcome summarizes one complete apply run.
type ApplyOutcome struct {
	Succeeded []string
	Failed    []string
	Backups   []string
	RunID     string
	DryRun    bool
	Message   string
}
