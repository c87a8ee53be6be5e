package cli

import (
	"fmt"

	"github.com/spf13/pflag"
)

// Config holds all the command-line flag values.
type Config struct {
	Root        string
	DryRun      bool
	NoBackup    bool
	Force       bool
	Rollback    bool
	Run         string
	NoAnimation bool
}

// ParseFlags defines and parses command-line flags using pflag.
func ParseFlags() (*Config, error) {
	cfg := &Config{}

	// Define flags
	pflag.StringVarP(&cfg.Root, "root", "C", ".", "Project root the diff paths are resolved against.")
	pflag.BoolVarP(&cfg.DryRun, "dry-run", "n", false, "Run the full pipeline but write nothing to disk.")
	pflag.BoolVar(&cfg.NoBackup, "no-backup", false, "Skip backing up files before they are modified.")
	pflag.BoolVarP(&cfg.Force, "force", "f", false, "Proceed past warnings and conflicts, and keep going on hunk mismatches.")
	pflag.StringVar(&cfg.Run, "run", "", "Backup run timestamp to roll back (default: most recent).")
	pflag.BoolVar(&cfg.NoAnimation, "no-animation", false, "Disable the spinner and progress display.")

	pflag.BoolVarP(&cfg.Rollback, "rollback", "r", false, "Restore the files of a previous run from its backups.")

	pflag.Usage = func() {
		fmt.Println("Usage: dpatch [flags]")
		fmt.Println("\nParse unified-diff text from stdin (pipe) or clipboard and apply it to the project.")
		fmt.Println("\nExample: git diff | dpatch -n")
		fmt.Println("\nFlags:")
		pflag.PrintDefaults()
	}

	pflag.Parse()

	// Validate flag combinations
	if cfg.Run != "" && !cfg.Rollback {
		return nil, fmt.Errorf("error: --run only makes sense together with --rollback")
	}
	if cfg.Rollback && cfg.DryRun {
		return nil, fmt.Errorf("error: --rollback and --dry-run are mutually exclusive")
	}

	return cfg, nil
}
