// Package conflict performs the filesystem-facing preconditions of an
// apply run. Planning is read-only; directory creation is a separate,
// explicit step so a "check" never mutates the tree.
package conflict

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/sokinpui/dpatch/internal/diff"
)

// Conflict is a precondition failure that blocks writing one target.
type Conflict struct {
	Path   string
	Reason string
}

func (c Conflict) String() string {
	return fmt.Sprintf("%s: %s", c.Path, c.Reason)
}

// Plan is the read-only result of checking a set of file changes
// against a project root.
type Plan struct {
	// Targets maps each change's normalized path to its absolute target,
	// in no particular order.
	Targets map[string]string
	// DirsToCreate lists missing parent directories, deepest last.
	DirsToCreate []string
	Conflicts    []Conflict
}

// Check resolves every change against root and reports conflicts and
// the directories an apply would have to create. It performs no writes.
func Check(changes []diff.FileChange, root string) Plan {
	plan := Plan{Targets: make(map[string]string, len(changes))}

	seen := make(map[string]string, len(changes))
	dirSet := make(map[string]struct{})

	for _, c := range changes {
		rel := c.Path()
		if rel == "" || rel == diff.NullDevice {
			continue
		}
		abs := filepath.Join(root, rel)
		plan.Targets[rel] = abs

		if prev, dup := seen[abs]; dup {
			plan.Conflicts = append(plan.Conflicts, Conflict{
				Path:   rel,
				Reason: fmt.Sprintf("resolves to the same file as %q", prev),
			})
			continue
		}
		seen[abs] = rel

		info, err := os.Stat(abs)
		switch {
		case err == nil:
			if info.IsDir() {
				plan.Conflicts = append(plan.Conflicts, Conflict{Path: rel, Reason: "target is a directory"})
				continue
			}
			if !fileWritable(abs) {
				plan.Conflicts = append(plan.Conflicts, Conflict{Path: rel, Reason: "file is not writable"})
			}
		case os.IsNotExist(err):
			if c.IsDelete {
				plan.Conflicts = append(plan.Conflicts, Conflict{Path: rel, Reason: "file to delete does not exist"})
				continue
			}
			missing, parent := missingParents(filepath.Dir(abs))
			if parent != "" && !dirWritable(parent) {
				plan.Conflicts = append(plan.Conflicts, Conflict{
					Path:   rel,
					Reason: fmt.Sprintf("directory %q is not writable", parent),
				})
				continue
			}
			for _, d := range missing {
				dirSet[d] = struct{}{}
			}
		default:
			plan.Conflicts = append(plan.Conflicts, Conflict{Path: rel, Reason: err.Error()})
		}
	}

	plan.DirsToCreate = sortedDirs(dirSet)
	return plan
}

// Materialize creates the directories the plan found missing. It is the
// only mutating operation in this package and must run after the caller
// has accepted the plan.
func Materialize(plan Plan) error {
	for _, dir := range plan.DirsToCreate {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// missingParents walks up from dir to the nearest existing ancestor and
// returns the missing chain (shallowest first) plus that ancestor.
func missingParents(dir string) (missing []string, existing string) {
	for {
		if _, err := os.Stat(dir); err == nil {
			return reverse(missing), dir
		}
		missing = append(missing, dir)
		parent := filepath.Dir(dir)
		if parent == dir {
			return reverse(missing), ""
		}
		dir = parent
	}
}

// fileWritable probes write access by opening for writing without
// truncation. Permission bits alone lie on platforms with ACLs.
func fileWritable(path string) bool {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return false
	}
	f.Close()
	return true
}

func dirWritable(dir string) bool {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return false
	}
	return info.Mode().Perm()&0o200 != 0
}

func sortedDirs(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	dirs := make([]string, 0, len(set))
	for d := range set {
		dirs = append(dirs, d)
	}
	// Shallowest first so MkdirAll order is stable in output.
	sort.Strings(dirs)
	return dirs
}

func reverse(s []string) []string {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
	return s
}
