package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tableshard/internal/catalog"
	"github.com/roach88/tableshard/internal/plan"
)

// ShardsOptions holds flags for the shards command.
type ShardsOptions struct {
	*RootOptions
	connectOptions

	ModelsPath string
}

// ShardsResult is the JSON payload of the shards command.
type ShardsResult struct {
	Table  string   `json:"table"`
	Shards []string `json:"shards"`
}

// NewShardsCommand creates the shards command.
func NewShardsCommand(rootOpts *RootOptions) *cobra.Command {
	return newShardsCommand(&ShardsOptions{RootOptions: rootOpts})
}

func newShardsCommand(opts *ShardsOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shards <base-table>",
		Short: "List the shard tables of a base table",
		Long: `List the physical shard tables of a base table, as migrate would find them.

With --models, tables that belong to another registered base table (for
example app_lead_note for app_lead) are excluded.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShards(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "path to database INI file (required)")
	cmd.Flags().StringVar(&opts.Database, "database", "default", "database alias")
	cmd.Flags().StringVar(&opts.ModelsPath, "models", "", "path to model registry CUE file")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func runShards(opts *ShardsOptions, base string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := opts.logger(cmd.ErrOrStderr())

	cfg, err := opts.loadConfig()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}

	var known []string
	if opts.ModelsPath != "" {
		registry, err := plan.LoadRegistry(opts.ModelsPath)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodePlan, "failed to load models", err)
		}
		known = registry.Tables()
	}

	backend, err := opts.connect(cfg, logger)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, "failed to connect", err)
	}
	defer backend.Close()

	shards, err := catalog.NewLocator(backend.Catalog, known...).Locate(cmd.Context(), base)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, "failed to list shards", err)
	}

	if formatter.Format == "json" {
		if shards == nil {
			shards = []string{}
		}
		return formatter.Success(ShardsResult{Table: base, Shards: shards})
	}
	if len(shards) == 0 {
		return formatter.Success(fmt.Sprintf("No sharded tables for %s.", base))
	}
	return formatter.Success(shards)
}
