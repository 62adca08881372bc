package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tableshard/internal/testutil"
)

func TestLocate_FindsShardsInOrder(t *testing.T) {
	db := testutil.NewFakeDB()
	db.CreateTable("app_lead", testutil.Col("name", "varchar(64)", false))
	db.CloneTable("app_lead", "app_lead_2", "app_lead_10", "app_lead_1")
	db.CreateTable("app_leader")

	shards, err := NewLocator(db).Locate(context.Background(), "app_lead")
	require.NoError(t, err)
	assert.Equal(t, []string{"app_lead_1", "app_lead_10", "app_lead_2"}, shards)
}

func TestLocate_ExcludesOtherBaseTables(t *testing.T) {
	db := testutil.NewFakeDB()
	db.CreateTable("app_lead")
	db.CloneTable("app_lead", "app_lead_1")
	db.CreateTable("app_lead_note")
	db.CloneTable("app_lead_note", "app_lead_note_1", "app_lead_note_2")

	locator := NewLocator(db, "app_lead", "app_lead_note")

	shards, err := locator.Locate(context.Background(), "app_lead")
	require.NoError(t, err)
	assert.Equal(t, []string{"app_lead_1"}, shards)

	noteShards, err := locator.Locate(context.Background(), "app_lead_note")
	require.NoError(t, err)
	assert.Equal(t, []string{"app_lead_note_1", "app_lead_note_2"}, noteShards)
}

func TestLocate_NoShards(t *testing.T) {
	db := testutil.NewFakeDB()
	db.CreateTable("app_lead")

	shards, err := NewLocator(db).Locate(context.Background(), "app_lead")
	require.NoError(t, err)
	assert.Empty(t, shards)
}

func TestLocate_CatalogError(t *testing.T) {
	db := testutil.NewFakeDB()
	boom := errors.New("boom")
	db.CatalogErrors["app_lead_"] = boom

	_, err := NewLocator(db).Locate(context.Background(), "app_lead")
	assert.ErrorIs(t, err, boom)
}

func TestResolveField(t *testing.T) {
	db := testutil.NewFakeDB()
	db.CreateTable("app_lead",
		testutil.Col("status", "varchar(20)", false),
		testutil.Col("owner_id", "int", true))
	ctx := context.Background()

	res, err := ResolveField(ctx, db, "app_lead", "status")
	require.NoError(t, err)
	assert.True(t, res.Found())
	assert.False(t, res.ForeignKey)
	assert.Equal(t, "status", res.Name())

	res, err = ResolveField(ctx, db, "app_lead", "owner")
	require.NoError(t, err)
	assert.True(t, res.ForeignKey)
	assert.Equal(t, "owner_id", res.Name())

	res, err = ResolveField(ctx, db, "app_lead", "ghost")
	require.NoError(t, err)
	assert.False(t, res.Found())
	assert.Equal(t, "", res.Name())
}

func TestHasColumn(t *testing.T) {
	db := testutil.NewFakeDB()
	db.CreateTable("app_lead", testutil.Col("status", "varchar(20)", false))
	ctx := context.Background()

	has, err := HasColumn(ctx, db, "app_lead", "status")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = HasColumn(ctx, db, "app_missing", "status")
	require.NoError(t, err)
	assert.False(t, has)
}
