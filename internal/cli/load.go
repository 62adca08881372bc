package cli

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/tableshard/internal/plan"
	"github.com/roach88/tableshard/internal/router"
)

// LoadOptions holds flags for the load command.
type LoadOptions struct {
	*RootOptions
	connectOptions

	ModelsPath string
	RowsPath   string
	BatchSize  int
	Create     bool
	Strict     bool
}

// LoadResult is the JSON payload of the load command.
type LoadResult struct {
	Table   string `json:"table"`
	Rows    int    `json:"rows"`
	Created bool   `json:"created"`
}

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	return newLoadCommand(&LoadOptions{RootOptions: rootOpts})
}

func newLoadCommand(opts *LoadOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load <model> <shard>",
		Short: "Insert rows into one shard of a sharded model",
		Long: `Insert the rows of a YAML file into the <model>'s shard table
<table>_<shard>. The file is a list of column-to-value mappings; null values
are left out, booleans are written as 1/0.

Rows that collide on a unique key are skipped unless --strict is set. With
--create a missing shard is first created from the model's table.

Example:
  shardmigrate load --config db.ini --models models.cue --rows leads.yaml lead 42`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "path to database INI file (required)")
	cmd.Flags().StringVar(&opts.Database, "database", "default", "database alias")
	cmd.Flags().StringVar(&opts.ModelsPath, "models", "", "path to model registry CUE file (required)")
	cmd.Flags().StringVar(&opts.RowsPath, "rows", "", "path to rows YAML file (required)")
	cmd.Flags().IntVar(&opts.BatchSize, "batch-size", router.DefaultBatchSize, "rows per INSERT statement")
	cmd.Flags().BoolVar(&opts.Create, "create", false, "create the shard table when it does not exist")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "fail on duplicate keys instead of skipping the row")
	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagRequired("models")
	_ = cmd.MarkFlagRequired("rows")

	return cmd
}

// loadRows reads a YAML list of rows.
func loadRows(path string) ([]router.Row, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows file: %w", err)
	}
	var rows []router.Row
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to parse rows YAML: %w", err)
	}
	return rows, nil
}

// shardModel resolves a sharded model from the registry file.
func shardModel(formatter *OutputFormatter, modelsPath, name string) (plan.Model, error) {
	registry, err := plan.LoadRegistry(modelsPath)
	if err != nil {
		return plan.Model{}, formatter.Fail(ExitCommandError, ErrCodePlan, "failed to load models", err)
	}
	model, ok := registry.Lookup(name)
	if !ok {
		return plan.Model{}, formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("model %s is not registered", name), nil)
	}
	if !model.Sharded {
		return plan.Model{}, formatter.Fail(ExitCommandError, ErrCodeUsage, fmt.Sprintf("model %s is not sharded", model.Name), nil)
	}
	return model, nil
}

func runLoad(opts *LoadOptions, modelName, suffix string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := opts.logger(cmd.ErrOrStderr())
	ctx := cmd.Context()

	cfg, err := opts.loadConfig()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}
	model, err := shardModel(formatter, opts.ModelsPath, modelName)
	if err != nil {
		return err
	}
	rows, err := loadRows(opts.RowsPath)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodePlan, "failed to load rows", err)
	}
	if len(rows) == 0 {
		return formatter.Fail(ExitCommandError, ErrCodeUsage, "rows file is empty", router.ErrNoRows)
	}

	backend, err := opts.connect(cfg, logger)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, "failed to connect", err)
	}
	defer backend.Close()

	r := router.NewWith(backend.DB, backend.Catalog, backend.Executor, logger)
	rc := router.For(model, suffix)
	table := rc.Table()

	exists, err := r.ShardExists(ctx, rc)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, "failed to look up shard", err)
	}
	created := false
	if !exists {
		if !opts.Create {
			return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("table %s does not exist", table), nil)
		}
		if err := r.CopyTable(ctx, model.Table, table); err != nil {
			return formatter.Fail(ExitFailure, ErrCodeGeneric, fmt.Sprintf("failed to create %s", table), err)
		}
		created = true
		formatter.VerboseLog("Created %s from %s", table, model.Table)
	}

	if len(rows) == 1 && !opts.Strict {
		err = r.Insert(ctx, rc, rows[0])
	} else {
		err = r.BulkInsert(ctx, rc, rows, opts.BatchSize, !opts.Strict)
	}
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, fmt.Sprintf("failed to load rows into %s", table), err)
	}

	if formatter.Format == "json" {
		return formatter.Success(LoadResult{Table: table, Rows: len(rows), Created: created})
	}
	return formatter.Success(fmt.Sprintf("Loaded %d row(s) into %s.", len(rows), table))
}
