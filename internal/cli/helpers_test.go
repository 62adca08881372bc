package cli

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/tableshard/internal/config"
	"github.com/roach88/tableshard/internal/testutil"
)

const testModels = `
models: {
	lead: {app: "app", sharded: true}
	note: {app: "app", table: "app_lead_note", sharded: true}
	user: {app: "app"}
}
`

const testPlan = `
migrations:
  - app: app
    name: 0002_lead_status
    operations:
      - op: AddField
        model: lead
        name: status
        field:
          kind: CharField
          max_length: 20
          default: new
        sql:
          - "ALTER TABLE app_lead ADD COLUMN status varchar(20) NOT NULL DEFAULT 'new'"
`

const testConfig = `
[default]
host = db.test
user = migrator
`

// fixture is a workspace with config, models and plan files and a fake
// database already holding the migrated source table.
type fixture struct {
	dir     string
	config  string
	models  string
	plan    string
	journal string
	db      *testutil.FakeDB
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		dir:     dir,
		config:  writeFile(t, dir, "db.ini", testConfig),
		models:  writeFile(t, dir, "models.cue", testModels),
		plan:    writeFile(t, dir, "plan.yaml", testPlan),
		journal: filepath.Join(dir, "journal.db"),
		db:      testutil.NewFakeDB(),
	}
	f.db.CreateTable("app_lead",
		testutil.Col("name", "varchar(100)", false),
		testutil.Col("status", "varchar(20)", false, "new"))
	f.db.CreateTable("app_lead_1", testutil.Col("name", "varchar(100)", false))
	f.db.CloneTable("app_lead_1", "app_lead_2")
	f.db.CreateTable("app_lead_note")
	f.db.CloneTable("app_lead_note", "app_lead_note_1")
	return f
}

func (f *fixture) connect(config.Database, *slog.Logger) (*Backend, error) {
	return &Backend{Catalog: f.db, Executor: f.db}, nil
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func outputs() (*bytes.Buffer, *bytes.Buffer) {
	return &bytes.Buffer{}, &bytes.Buffer{}
}
