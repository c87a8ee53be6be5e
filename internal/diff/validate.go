package diff

import (
	"fmt"
	"strings"
)

// Result is the outcome of a structural check of raw diff text.
// Errors are fatal and block an apply run; Warnings degrade the parse
// but leave the continue/abort decision to the caller.
type Result struct {
	Valid    bool
	Message  string
	Errors   []string
	Warnings []string
}

// Validate runs syntactic sanity checks on raw diff text. It only looks
// at the text itself; filesystem-facing checks live in the conflict
// package.
func Validate(text string) Result {
	var res Result

	if strings.TrimSpace(text) == "" {
		res.Errors = append(res.Errors, "diff content is empty")
		return finish(res)
	}

	lines := strings.Split(text, "\n")

	var (
		hasChanges     bool
		fileHeaders    int
		hunkHeaders    int
		validPathCount int
	)
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, oldFileMarker) || strings.HasPrefix(line, newFileMarker):
			fileHeaders++
			prefix := "a/"
			if strings.HasPrefix(line, newFileMarker) {
				prefix = "b/"
			}
			if p := normalizePath(line[len(oldFileMarker):], prefix); p != "" && p != NullDevice {
				validPathCount++
			}
		case strings.HasPrefix(line, "@@"):
			hunkHeaders++
			if !hunkHeaderRegex.MatchString(line) {
				res.Errors = append(res.Errors, fmt.Sprintf("malformed hunk header at line %d: %q", i+1, line))
			}
		case strings.HasPrefix(line, "+") || strings.HasPrefix(line, "-"):
			hasChanges = true
		}
	}

	if !hasChanges {
		res.Errors = append(res.Errors, "no actual changes found")
	}
	if fileHeaders == 0 {
		res.Warnings = append(res.Warnings, "no file headers found; file targets may be incomplete")
	}
	if hunkHeaders == 0 {
		res.Warnings = append(res.Warnings, "no hunk headers found; line positions cannot be resolved")
	}
	if validPathCount == 0 {
		res.Errors = append(res.Errors, "no valid file path found")
	}

	return finish(res)
}

func finish(res Result) Result {
	res.Valid = len(res.Errors) == 0
	if res.Valid {
		res.Message = "diff is structurally valid"
	} else {
		res.Message = strings.Join(res.Errors, "; ")
	}
	return res
}
