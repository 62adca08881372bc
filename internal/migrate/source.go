package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/roach88/tableshard/internal/plan"
)

// SourceMigrator applies a plan to the source tables. It stands in for the
// host migration framework.
type SourceMigrator interface {
	MigrateSource(ctx context.Context, p *plan.Plan) error
}

// SQLSource executes each operation's sql statements against the source
// database, in plan order. The first failure stops the migration.
type SQLSource struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLSource creates a source migrator over db.
func NewSQLSource(db *sql.DB, logger *slog.Logger) *SQLSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLSource{db: db, logger: logger}
}

// MigrateSource implements SourceMigrator.
func (s *SQLSource) MigrateSource(ctx context.Context, p *plan.Plan) error {
	for _, m := range p.Migrations {
		for _, op := range m.Operations {
			for _, stmt := range op.SQL {
				s.logger.Debug("sql> "+stmt, "migration", m.App+"."+m.Name, "model", op.Model)
				if _, err := s.db.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("migration %s.%s: %s on %s: %w", m.App, m.Name, op.Op, op.Model, err)
				}
			}
		}
	}
	return nil
}
