package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/tableshard/internal/config"
	"github.com/roach88/tableshard/internal/journal"
	"github.com/roach88/tableshard/internal/report"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	JournalPath string
	RunID       string
}

// RunSummary is one run in the JSON output of the history command.
type RunSummary struct {
	ID         string `json:"id"`
	Plan       string `json:"plan"`
	Database   string `json:"database"`
	DryRun     bool   `json:"dry_run"`
	Status     string `json:"status"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at,omitempty"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded migration runs",
		Long: `List the runs recorded in the journal, most recent first, or with --run
show every entry of one run in the order it was recorded.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.JournalPath, "journal", config.DefaultJournal, "journal path")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "show the entries of one run")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	j, err := journal.Open(opts.JournalPath)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeJournal, "failed to open journal", err)
	}
	defer j.Close()

	ctx := cmd.Context()
	if opts.RunID != "" {
		if _, err := j.Run(ctx, opts.RunID); err != nil {
			if errors.Is(err, journal.ErrRunNotFound) {
				return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("run %s not found", opts.RunID), nil)
			}
			return formatter.Fail(ExitCommandError, ErrCodeJournal, "failed to read run", err)
		}
		entries, err := j.Entries(ctx, opts.RunID)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeJournal, "failed to read entries", err)
		}
		return formatter.Report(&report.Report{RunID: opts.RunID, Entries: entries}, true)
	}

	runs, err := j.Runs(ctx)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeJournal, "failed to read runs", err)
	}

	if formatter.Format == "json" {
		out := make([]RunSummary, len(runs))
		for i, r := range runs {
			out[i] = summarizeRun(r)
		}
		return formatter.Success(out)
	}
	if len(runs) == 0 {
		return formatter.Success("No runs recorded.")
	}
	lines := make([]string, len(runs))
	for i, r := range runs {
		s := summarizeRun(r)
		line := fmt.Sprintf("%s %s %s %s database=%s", s.ID, s.Status, s.StartedAt, s.Plan, s.Database)
		if s.DryRun {
			line += " (dry run)"
		}
		lines[i] = line
	}
	return formatter.Success(lines)
}

func summarizeRun(r journal.Run) RunSummary {
	s := RunSummary{
		ID:        r.ID,
		Plan:      r.Plan,
		Database:  r.Database,
		DryRun:    r.DryRun,
		Status:    r.Status,
		StartedAt: r.StartedAt.UTC().Format(time.RFC3339),
	}
	if !r.FinishedAt.IsZero() {
		s.FinishedAt = r.FinishedAt.UTC().Format(time.RFC3339)
	}
	return s
}
