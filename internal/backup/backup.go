// Package backup copies pre-image files into a run-scoped directory
// before the apply pipeline mutates them, and restores them on demand.
//
// Each run gets its own directory under <root>/.diff_backups named by
// the run timestamp. A manifest in that directory records the full
// relative path of every original; restoring never has to guess the
// origin from the backup filename, which is ambiguous as soon as two
// directories hold a file with the same basename.
package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/sokinpui/dpatch/internal/fs"
)

const (
	// BackupDirName is the per-project backup area under the root.
	BackupDirName = ".diff_backups"

	manifestName = "manifest.json"
	runIDFormat  = "20060102-150405"
)

// ErrNoRuns is returned by Rollback when no backup run exists.
var ErrNoRuns = errors.New("no backup runs found")

// Entry maps one backup file back to the file it was taken from.
type Entry struct {
	// Backup is the backup filename inside the run directory.
	Backup string `json:"backup"`
	// Original is the file's path relative to the project root.
	Original string `json:"original"`
	// SHA256 is the hex digest of the pre-image, for audit.
	SHA256 string `json:"sha256"`
}

type manifest struct {
	RunID   string  `json:"run_id"`
	Entries []Entry `json:"entries"`
}

// Manager takes backups for a single apply run. The run directory is
// created lazily on the first backup.
type Manager struct {
	root    string
	runID   string
	dir     string
	entries []Entry
}

// New creates a Manager scoped to a fresh run under root.
func New(root string) *Manager {
	runID := time.Now().UTC().Format(runIDFormat)
	return &Manager{
		root:  root,
		runID: runID,
		dir:   filepath.Join(root, BackupDirName, runID),
	}
}

// RunID returns the timestamp identifying this run.
func (m *Manager) RunID() string { return m.runID }

// Backup copies the file at rel (relative to the root) into the run
// directory and returns the backup path. A missing source is the
// new-file case: nothing to back up, empty path returned.
func (m *Manager) Backup(rel string) (string, error) {
	src := filepath.Join(m.root, rel)
	if !fs.Exists(src) {
		return "", nil
	}

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup directory: %w", err)
	}

	name := m.backupName(filepath.Base(rel))
	dst := filepath.Join(m.dir, name)
	if err := fs.CopyFile(src, dst); err != nil {
		return "", fmt.Errorf("back up %s: %w", rel, err)
	}

	sum, err := fs.FileSHA256(dst)
	if err != nil {
		return "", fmt.Errorf("hash backup of %s: %w", rel, err)
	}

	m.entries = append(m.entries, Entry{Backup: name, Original: rel, SHA256: sum})
	if err := m.writeManifest(); err != nil {
		return "", err
	}
	return dst, nil
}

// backupName builds <basename>.<run-id>.bak, suffixing a counter when
// two originals in one run share a basename.
func (m *Manager) backupName(base string) string {
	name := fmt.Sprintf("%s.%s.bak", base, m.runID)
	taken := func(n string) bool {
		for _, e := range m.entries {
			if e.Backup == n {
				return true
			}
		}
		return false
	}
	for i := 1; taken(name); i++ {
		name = fmt.Sprintf("%s.%s.%d.bak", base, m.runID, i)
	}
	return name
}

// Entries returns what has been backed up so far, in backup order.
func (m *Manager) Entries() []Entry { return m.entries }

// writeManifest persists the mapping after every backup so a crash
// mid-run still leaves a restorable record.
func (m *Manager) writeManifest() error {
	data, err := json.MarshalIndent(manifest{RunID: m.runID, Entries: m.entries}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(m.dir, manifestName), data, 0o644); err != nil {
		return fmt.Errorf("write backup manifest: %w", err)
	}
	return nil
}

// Runs lists the run IDs present under root, oldest first.
func Runs(root string) ([]string, error) {
	dirEntries, err := os.ReadDir(filepath.Join(root, BackupDirName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var runs []string
	for _, e := range dirEntries {
		if e.IsDir() {
			runs = append(runs, e.Name())
		}
	}
	sort.Strings(runs)
	return runs, nil
}

// Rollback restores every file recorded in the manifest of the given
// run, or of the most recent run when runID is empty. It returns the
// restored relative paths. A manifest entry whose backup file is gone
// is an error, never a guess.
func Rollback(root, runID string) ([]string, error) {
	if runID == "" {
		runs, err := Runs(root)
		if err != nil {
			return nil, err
		}
		if len(runs) == 0 {
			return nil, ErrNoRuns
		}
		runID = runs[len(runs)-1]
	}

	dir := filepath.Join(root, BackupDirName, runID)
	data, err := os.ReadFile(filepath.Join(dir, manifestName))
	if err != nil {
		return nil, fmt.Errorf("read manifest for run %s: %w", runID, err)
	}
	var man manifest
	if err := json.Unmarshal(data, &man); err != nil {
		return nil, fmt.Errorf("parse manifest for run %s: %w", runID, err)
	}

	var restored []string
	for _, e := range man.Entries {
		if e.Original == "" {
			return restored, fmt.Errorf("run %s: entry %s has no original path", runID, e.Backup)
		}
		src := filepath.Join(dir, e.Backup)
		dst := filepath.Join(root, e.Original)
		if !fs.Exists(src) {
			return restored, fmt.Errorf("run %s: backup file %s is missing", runID, e.Backup)
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return restored, err
		}
		if err := fs.CopyFile(src, dst); err != nil {
			return restored, fmt.Errorf("restore %s: %w", e.Original, err)
		}
		restored = append(restored, e.Original)
	}
	return restored, nil
}
