package dpatch_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sokinpui/dpatch/cli"
	"github.com/sokinpui/dpatch/dpatch"
	"github.com/sokinpui/dpatch/internal/fs"
)

const twoFileDiff = `--- a/alpha.txt
+++ b/alpha.txt
@@ -1,3 +1,3 @@
 a
-b
+B
 c
--- a/beta.txt
+++ b/beta.txt
@@ -1,2 +1,3 @@
 one
+one-and-a-half
 two
`

func setupProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"alpha.txt": "a\nb\nc\n",
		"beta.txt":  "one\ntwo\n",
	}
	for rel, content := range files {
		if err := os.WriteFile(filepath.Join(root, rel), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func newApp(t *testing.T, cfg cli.Config) *dpatch.App {
	t.Helper()
	app, err := dpatch.New(&cfg)
	if err != nil {
		t.Fatal(err)
	}
	return app
}

func TestRunAppliesTwoFiles(t *testing.T) {
	root := setupProject(t)
	app := newApp(t, cli.Config{Root: root, NoBackup: true})

	outcome, err := app.Run(context.Background(), twoFileDiff)
	if err != nil {
		t.Fatal(err)
	}
	if len(outcome.Succeeded) != 2 || len(outcome.Failed) != 0 {
		t.Fatalf("outcome = %+v", outcome)
	}

	alpha, _ := os.ReadFile(filepath.Join(root, "alpha.txt"))
	if string(alpha) != "a\nB\nc\n" {
		t.Errorf("alpha.txt = %q", alpha)
	}
	beta, _ := os.ReadFile(filepath.Join(root, "beta.txt"))
	if string(beta) != "one\none-and-a-half\ntwo\n" {
		t.Errorf("beta.txt = %q", beta)
	}
}

// Dry run: both files report as would-succeed and disk content is
// untouched, verified by hashing before and after.
func TestRunDryRunLeavesDiskUnchanged(t *testing.T) {
	root := setupProject(t)
	app := newApp(t, cli.Config{Root: root, DryRun: true})

	before := map[string]string{}
	for _, rel := range []string{"alpha.txt", "beta.txt"} {
		h, err := fs.FileSHA256(filepath.Join(root, rel))
		if err != nil {
			t.Fatal(err)
		}
		before[rel] = h
	}

	outcome, err := app.Run(context.Background(), twoFileDiff)
	if err != nil {
		t.Fatal(err)
	}
	if !outcome.DryRun {
		t.Error("outcome not flagged as dry run")
	}
	if len(outcome.Succeeded) != 2 {
		t.Fatalf("want both files reported as would-succeed, got %+v", outcome)
	}
	if len(outcome.Backups) != 0 {
		t.Errorf("dry run must not write backups: %v", outcome.Backups)
	}

	for rel, want := range before {
		got, err := fs.FileSHA256(filepath.Join(root, rel))
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("%s changed during dry run", rel)
		}
	}
	if _, err := os.Stat(filepath.Join(root, ".diff_backups")); !os.IsNotExist(err) {
		t.Error("dry run created the backup area")
	}
}

func TestRunRefusesUnwritableTarget(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores file permission bits")
	}
	root := setupProject(t)
	if err := os.Chmod(filepath.Join(root, "alpha.txt"), 0o444); err != nil {
		t.Fatal(err)
	}
	app := newApp(t, cli.Config{Root: root, NoBackup: true})

	_, err := app.Run(context.Background(), twoFileDiff)
	if err == nil {
		t.Fatal("expected a conflict error without --force")
	}

	// Nothing may have been written, including the writable file.
	beta, _ := os.ReadFile(filepath.Join(root, "beta.txt"))
	if string(beta) != "one\ntwo\n" {
		t.Errorf("beta.txt written despite conflict gate: %q", beta)
	}
}

func TestRunHunkMismatchFailsFileOnly(t *testing.T) {
	root := setupProject(t)
	// alpha.txt's pre-image drifted away from the diff.
	if err := os.WriteFile(filepath.Join(root, "alpha.txt"), []byte("a\nsurprise\nc\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	app := newApp(t, cli.Config{Root: root, NoBackup: true})

	outcome, err := app.Run(context.Background(), twoFileDiff)
	if err != nil {
		t.Fatal(err)
	}
	if len(outcome.Failed) != 1 || outcome.Failed[0] != "alpha.txt" {
		t.Fatalf("outcome = %+v", outcome)
	}
	// The other file still went through.
	if len(outcome.Succeeded) != 1 || outcome.Succeeded[0] != "beta.txt" {
		t.Fatalf("outcome = %+v", outcome)
	}
	// The mismatched file was left untouched.
	alpha, _ := os.ReadFile(filepath.Join(root, "alpha.txt"))
	if string(alpha) != "a\nsurprise\nc\n" {
		t.Errorf("alpha.txt = %q", alpha)
	}
}

func TestRunForceAppliesThroughMismatch(t *testing.T) {
	root := setupProject(t)
	if err := os.WriteFile(filepath.Join(root, "alpha.txt"), []byte("a\nsurprise\nc\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	app := newApp(t, cli.Config{Root: root, NoBackup: true, Force: true})

	outcome, err := app.Run(context.Background(), twoFileDiff)
	if err != nil {
		t.Fatal(err)
	}
	if len(outcome.Succeeded) != 2 {
		t.Fatalf("outcome = %+v", outcome)
	}
	// Lenient mode keeps the mismatched line and still inserts.
	alpha, _ := os.ReadFile(filepath.Join(root, "alpha.txt"))
	if string(alpha) != "a\nB\nsurprise\nc\n" {
		t.Errorf("alpha.txt = %q", alpha)
	}
}

func TestRunCreatesNewFileAndDirs(t *testing.T) {
	root := t.TempDir()
	app := newApp(t, cli.Config{Root: root, NoBackup: true})

	diffText := "--- /dev/null\n+++ b/pkg/util/helper.go\n@@ -0,0 +1,2 @@\n+package util\n+// helper\n"
	outcome, err := app.Run(context.Background(), diffText)
	if err != nil {
		t.Fatal(err)
	}
	if len(outcome.Succeeded) != 1 {
		t.Fatalf("outcome = %+v", outcome)
	}
	data, err := os.ReadFile(filepath.Join(root, "pkg", "util", "helper.go"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "package util\n// helper\n" {
		t.Errorf("content = %q", data)
	}
}

func TestRunBackupThenRollback(t *testing.T) {
	root := setupProject(t)
	app := newApp(t, cli.Config{Root: root})

	outcome, err := app.Run(context.Background(), twoFileDiff)
	if err != nil {
		t.Fatal(err)
	}
	if outcome.RunID == "" || len(outcome.Backups) != 2 {
		t.Fatalf("outcome = %+v", outcome)
	}

	rb := newApp(t, cli.Config{Root: root, Rollback: true, Run: outcome.RunID})
	restored, err := rb.Execute(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(restored.Succeeded) != 2 {
		t.Fatalf("restored = %+v", restored)
	}
	alpha, _ := os.ReadFile(filepath.Join(root, "alpha.txt"))
	if string(alpha) != "a\nb\nc\n" {
		t.Errorf("alpha.txt after rollback = %q", alpha)
	}
}

func TestRunInvalidDiffIsRejected(t *testing.T) {
	root := setupProject(t)
	app := newApp(t, cli.Config{Root: root})

	if _, err := app.Run(context.Background(), "no diff here at all"); err == nil {
		t.Fatal("expected a validation error")
	}
}

func TestRunCancelledContextNeverSucceeds(t *testing.T) {
	root := setupProject(t)
	app := newApp(t, cli.Config{Root: root, NoBackup: true})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome, err := app.Run(ctx, twoFileDiff)
	if err != nil {
		t.Fatal(err)
	}
	if len(outcome.Succeeded) != 0 {
		t.Fatalf("cancelled run reported successes: %+v", outcome)
	}
	// Disk untouched.
	alpha, _ := os.ReadFile(filepath.Join(root, "alpha.txt"))
	if string(alpha) != "a\nb\nc\n" {
		t.Errorf("alpha.txt = %q", alpha)
	}
}
