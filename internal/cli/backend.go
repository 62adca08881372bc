package cli

import (
	"database/sql"
	"log/slog"

	"github.com/roach88/tableshard/internal/catalog"
	"github.com/roach88/tableshard/internal/config"
	"github.com/roach88/tableshard/internal/ddl"
	"github.com/roach88/tableshard/internal/migrate"
)

// Backend is everything a command needs from one database.
type Backend struct {
	DB       *sql.DB
	Catalog  catalog.Catalog
	Executor ddl.Executor
	Source   migrate.SourceMigrator
}

// Close releases the connection pool, if any.
func (b *Backend) Close() error {
	if b.DB == nil {
		return nil
	}
	return b.DB.Close()
}

// ConnectFunc opens a backend for a configured database.
type ConnectFunc func(db config.Database, logger *slog.Logger) (*Backend, error)

// ConnectMySQL opens a MySQL backend.
func ConnectMySQL(db config.Database, logger *slog.Logger) (*Backend, error) {
	conn, err := db.Open()
	if err != nil {
		return nil, err
	}
	return &Backend{
		DB:       conn,
		Catalog:  catalog.NewMySQL(conn),
		Executor: ddl.NewSQLExecutor(conn),
		Source:   migrate.NewSQLSource(conn, logger),
	}, nil
}

// connectOptions is shared by commands that talk to a database.
type connectOptions struct {
	ConfigPath string
	Database   string

	// Connect allows overriding the backend (for testing).
	// If nil, defaults to ConnectMySQL.
	Connect ConnectFunc
}

func (o *connectOptions) loadConfig() (*config.Config, error) {
	return config.Load(o.ConfigPath)
}

func (o *connectOptions) connect(cfg *config.Config, logger *slog.Logger) (*Backend, error) {
	db, err := cfg.Database(o.Database)
	if err != nil {
		return nil, err
	}
	connect := o.Connect
	if connect == nil {
		connect = ConnectMySQL
	}
	return connect(db, logger)
}
