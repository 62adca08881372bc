package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tableshard/internal/ddl"
)

func TestFakeDB_AddAndDropColumn(t *testing.T) {
	ctx := context.Background()
	db := NewFakeDB()
	db.CreateTable("app_lead_1")

	err := db.Exec(ctx, ddl.Statement{
		Kind: ddl.AddColumn, Table: "app_lead_1", Column: "status",
		Def: ddl.ColumnDef{Type: "varchar(20)", Default: &ddl.Literal{Value: "new"}},
	})
	require.NoError(t, err)

	col, err := db.Column(ctx, "app_lead_1", "status")
	require.NoError(t, err)
	require.NotNil(t, col)
	assert.Equal(t, "varchar(20)", col.Type)
	assert.True(t, col.Nullable)
	require.NotNil(t, col.Default)
	assert.Equal(t, "new", *col.Default)

	require.NoError(t, db.Exec(ctx, ddl.Statement{Kind: ddl.DropColumn, Table: "app_lead_1", Column: "status"}))
	col, err = db.Column(ctx, "app_lead_1", "status")
	require.NoError(t, err)
	assert.Nil(t, col)

	assert.Equal(t, []string{
		"ALTER TABLE `app_lead_1` ADD COLUMN `status` varchar(20) DEFAULT \"new\"",
		"ALTER TABLE `app_lead_1` DROP COLUMN `status`",
	}, db.SQL())
}

func TestFakeDB_DuplicateColumnIsServerError(t *testing.T) {
	db := NewFakeDB()
	db.CreateTable("t", Col("a", "int", true))

	err := db.Exec(context.Background(), ddl.Statement{Kind: ddl.AddColumn, Table: "t", Column: "a", Def: ddl.ColumnDef{Type: "int"}})

	var me *mysql.MySQLError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, uint16(1060), me.Number)
	assert.Empty(t, db.Executed(), "failed statements are not recorded")
}

func TestFakeDB_DropColumnBlockedByForeignKey(t *testing.T) {
	ctx := context.Background()
	db := NewFakeDB()
	db.CreateTable("t", Col("owner_id", "int", true))
	db.AddForeignKey("t", "t_ibfk_1", "owner_id", "app_user")

	err := db.Exec(ctx, ddl.Statement{Kind: ddl.DropColumn, Table: "t", Column: "owner_id"})
	require.Error(t, err)

	require.NoError(t, db.Exec(ctx, ddl.Statement{Kind: ddl.DropForeignKey, Table: "t", Index: "t_ibfk_1"}))
	require.NoError(t, db.Exec(ctx, ddl.Statement{Kind: ddl.DropColumn, Table: "t", Column: "owner_id"}))
}

func TestFakeDB_IndexesExcludeUniqAndComposite(t *testing.T) {
	ctx := context.Background()
	db := NewFakeDB()
	db.CreateTable("t", Col("a", "int", true), Col("b", "int", true))
	db.AddIndex("t", "a", false, "a")
	db.AddIndex("t", "a_b_uniq", true, "a", "b")

	idx, err := db.Indexes(ctx, "t", "a")
	require.NoError(t, err)
	require.Len(t, idx, 1)
	assert.Equal(t, "a", idx[0].Name)
	assert.False(t, idx[0].Unique)

	uniq, err := db.UniqueConstraints(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, []string{"a_b_uniq"}, uniq)
}

func TestFakeDB_TablesByPrefix(t *testing.T) {
	db := NewFakeDB()
	db.CreateTable("app_lead")
	db.CloneTable("app_lead", "app_lead_2", "app_lead_1", "app_leadership")

	tables, err := db.Tables(context.Background(), "app_lead_")
	require.NoError(t, err)
	assert.Equal(t, []string{"app_lead_1", "app_lead_2"}, tables)
}

func TestFakeDB_ExecErrorsInjected(t *testing.T) {
	db := NewFakeDB()
	db.CreateTable("t")
	boom := errors.New("boom")
	db.ExecErrors["t"] = boom

	err := db.Exec(context.Background(), ddl.Statement{Kind: ddl.AddIndex, Table: "t", Column: "id"})
	assert.ErrorIs(t, err, boom)
}

func TestFakeDB_Diff(t *testing.T) {
	ctx := context.Background()
	db := NewFakeDB()
	db.CreateTable("src", Col("a", "int", true))
	db.AddIndex("src", "a", true, "a")
	db.CreateTable("dst")

	assert.NotEmpty(t, db.Diff("src", "dst"))

	require.NoError(t, db.Exec(ctx, ddl.Statement{Kind: ddl.AddColumn, Table: "dst", Column: "a", Def: ddl.ColumnDef{Type: "int"}}))
	require.NoError(t, db.Exec(ctx, ddl.Statement{Kind: ddl.AddUnique, Table: "dst", Column: "a"}))

	assert.Empty(t, db.Diff("src", "dst"))
}
