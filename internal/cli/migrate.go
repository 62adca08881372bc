package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tableshard/internal/journal"
	"github.com/roach88/tableshard/internal/migrate"
	"github.com/roach88/tableshard/internal/plan"
)

// MigrateOptions holds flags for the migrate command.
type MigrateOptions struct {
	*RootOptions
	connectOptions

	ModelsPath  string
	PlanPath    string
	JournalPath string
	DryRun      bool
	SkipSource  bool

	// RunIDs allows overriding the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs migrate.RunIDGenerator

	// Clock allows overriding run timestamps (for testing).
	Clock migrate.Clock
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return newMigrateCommand(&MigrateOptions{RootOptions: rootOpts})
}

func newMigrateCommand(opts *MigrateOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply a migration plan and propagate it to shards",
		Long: `Apply a migration plan to the source tables, then reconcile every shard
of every sharded model touched by the plan.

Shard failures never stop the run: each failed statement is reported and
the command exits 1. Configuration, plan and source migration errors exit 2.

--dry-run never touches the source, so it requires --skip-source: the source
tables must already carry the migration.

Example:
  shardmigrate migrate --config db.ini --models models.cue --plan plan.yaml
  shardmigrate migrate --config db.ini --models models.cue --plan plan.yaml --dry-run --skip-source`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "path to database INI file (required)")
	cmd.Flags().StringVar(&opts.ModelsPath, "models", "", "path to model registry CUE file (required)")
	cmd.Flags().StringVar(&opts.PlanPath, "plan", "", "path to migration plan YAML file (required)")
	cmd.Flags().StringVar(&opts.Database, "database", "default", "database alias")
	cmd.Flags().StringVar(&opts.JournalPath, "journal", "", "journal path (overrides config)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "report shard statements without executing anything")
	cmd.Flags().BoolVar(&opts.SkipSource, "skip-source", false, "source tables are already migrated")
	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagRequired("models")
	_ = cmd.MarkFlagRequired("plan")

	return cmd
}

func runMigrate(opts *MigrateOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := opts.logger(cmd.ErrOrStderr())

	// A dry run never migrates the source, so the shards can only be
	// diffed against a source the host already migrated.
	if opts.DryRun && !opts.SkipSource {
		return formatter.Fail(ExitCommandError, ErrCodeUsage, "--dry-run requires --skip-source", nil)
	}

	cfg, err := opts.loadConfig()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}

	registry, err := plan.LoadRegistry(opts.ModelsPath)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodePlan, "failed to load models", err)
	}
	p, err := plan.LoadPlan(opts.PlanPath)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodePlan, "failed to load plan", err)
	}
	formatter.VerboseLog("Loaded %d operation(s) from %s", len(p.Operations()), opts.PlanPath)

	backend, err := opts.connect(cfg, logger)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, "failed to connect", err)
	}
	defer func() {
		if closeErr := backend.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	journalPath := opts.JournalPath
	if journalPath == "" {
		journalPath = cfg.Journal
	}
	j, err := journal.Open(journalPath)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeJournal, "failed to open journal", err)
	}
	defer func() {
		if closeErr := j.Close(); closeErr != nil {
			logger.Error("error closing journal", "error", closeErr)
		}
	}()

	orch := migrate.New(registry, backend.Catalog, backend.Executor, backend.Source, migrate.Options{
		PlanName:   opts.PlanPath,
		Database:   opts.Database,
		DryRun:     opts.DryRun,
		SkipSource: opts.SkipSource,
		Out:        formatter.ProgressWriter(),
		Logger:     logger,
		Journal:    j,
		RunIDs:     opts.RunIDs,
		Clock:      opts.Clock,
	})

	rep, err := orch.Run(cmd.Context(), p)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeSource, "migration run aborted", err)
	}

	if err := formatter.Report(rep, false); err != nil {
		return err
	}
	if failures := rep.Failures(); len(failures) > 0 {
		return &ExitError{
			Code:    ExitFailure,
			ErrCode: ErrCodeShardFailure,
			Message: fmt.Sprintf("%d shard statement(s) failed", len(failures)),
		}
	}
	return nil
}
