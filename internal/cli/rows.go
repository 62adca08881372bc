package cli

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tableshard/internal/router"
)

// RowsOptions holds flags for the rows command.
type RowsOptions struct {
	*RootOptions
	connectOptions

	ModelsPath string
	Columns    []string
	Where      string
}

// RowsResult is the JSON payload of the rows command.
type RowsResult struct {
	Table   string           `json:"table"`
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// NewRowsCommand creates the rows command.
func NewRowsCommand(rootOpts *RootOptions) *cobra.Command {
	return newRowsCommand(&RowsOptions{RootOptions: rootOpts})
}

func newRowsCommand(opts *RowsOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rows <model> <shard>",
		Short: "Print rows of one shard of a sharded model",
		Long: `Select rows from the <model>'s shard table <table>_<shard>.

Text output is tab-separated with a header line. --where is appended to the
query as written.

Example:
  shardmigrate rows --config db.ini --models models.cue --columns id,status --where "status = 'new'" lead 42`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRows(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "path to database INI file (required)")
	cmd.Flags().StringVar(&opts.Database, "database", "default", "database alias")
	cmd.Flags().StringVar(&opts.ModelsPath, "models", "", "path to model registry CUE file (required)")
	cmd.Flags().StringSliceVar(&opts.Columns, "columns", nil, "columns to select (default all)")
	cmd.Flags().StringVar(&opts.Where, "where", "", "SQL condition")
	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagRequired("models")

	return cmd
}

func runRows(opts *RowsOptions, modelName, suffix string, cmd *cobra.Command) error {
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

	backend, err := opts.connect(cfg, logger)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, "failed to connect", err)
	}
	defer backend.Close()

	r := router.NewWith(backend.DB, backend.Catalog, backend.Executor, logger)
	rc := router.For(model, suffix)

	rows, err := r.Query(ctx, rc.Bind(opts.Columns...), opts.Where)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeDatabase, fmt.Sprintf("failed to query %s", rc.Table()), err)
	}
	result, err := scanRows(rc.Table(), rows)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeDatabase, fmt.Sprintf("failed to read %s", rc.Table()), err)
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	lines := []string{strings.Join(result.Columns, "\t")}
	for _, row := range result.Rows {
		fields := make([]string, len(result.Columns))
		for i, c := range result.Columns {
			if v := row[c]; v != nil {
				fields[i] = fmt.Sprint(v)
			} else {
				fields[i] = "NULL"
			}
		}
		lines = append(lines, strings.Join(fields, "\t"))
	}
	return formatter.Success(lines)
}

func scanRows(table string, rows *sql.Rows) (*RowsResult, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	result := &RowsResult{Table: table, Columns: columns, Rows: []map[string]any{}}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(columns))
		for i, c := range columns {
			if b, ok := values[i].([]byte); ok {
				row[c] = string(b)
			} else {
				row[c] = values[i]
			}
		}
		result.Rows = append(result.Rows, row)
	}
	return result, rows.Err()
}
