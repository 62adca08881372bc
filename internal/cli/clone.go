package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tableshard/internal/router"
)

// CloneOptions holds flags for the clone command.
type CloneOptions struct {
	*RootOptions
	connectOptions
}

// NewCloneCommand creates the clone command.
func NewCloneCommand(rootOpts *RootOptions) *cobra.Command {
	return newCloneCommand(&CloneOptions{RootOptions: rootOpts})
}

func newCloneCommand(opts *CloneOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clone <source-table> <dest-table>",
		Short: "Create a shard table with the structure of its source",
		Long: `Create dest-table with the columns, indexes and unique constraints of
source-table. An existing dest-table is left untouched.

Example:
  shardmigrate clone --config db.ini app_lead app_lead_42`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClone(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "path to database INI file (required)")
	cmd.Flags().StringVar(&opts.Database, "database", "default", "database alias")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func runClone(opts *CloneOptions, source, dest string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := opts.logger(cmd.ErrOrStderr())

	cfg, err := opts.loadConfig()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}

	backend, err := opts.connect(cfg, logger)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, "failed to connect", err)
	}
	defer backend.Close()

	r := router.NewWith(backend.DB, backend.Catalog, backend.Executor, logger)

	exists, err := r.TableExists(cmd.Context(), source)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, "failed to look up source table", err)
	}
	if !exists {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("table %s does not exist", source), nil)
	}

	if err := r.CopyTable(cmd.Context(), source, dest); err != nil {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, fmt.Sprintf("failed to create %s", dest), err)
	}

	if formatter.Format == "json" {
		return formatter.Success(map[string]string{"source": source, "table": dest})
	}
	return formatter.Success(fmt.Sprintf("Created %s from %s.", dest, source))
}
