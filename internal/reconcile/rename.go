package reconcile

import (
	"context"

	"github.com/roach88/tableshard/internal/catalog"
	"github.com/roach88/tableshard/internal/ddl"
	"github.com/roach88/tableshard/internal/report"
	"github.com/roach88/tableshard/internal/schema"
)

// Rename renames a column on every shard, keeping the type the source
// column has under its new name. The new name resolves like any other
// field, so renaming a relation renames <old>_id to <new>_id.
func (r *Reconciler) Rename(ctx context.Context, rename schema.Rename) []report.Entry {
	p := r.newPass(schema.CategoryRename, rename.Table, rename.NewName)

	shards, ok := p.shards(ctx)
	if !ok {
		return p.entries
	}

	src, err := catalog.ResolveField(ctx, r.catalog, rename.Table, rename.NewName)
	if err != nil {
		p.fail("", "", err)
		return p.entries
	}
	if !src.Found() {
		p.warn(schema.NewAmbiguousFieldError(rename.Table, "", rename.NewName))
		return p.entries
	}

	oldColumn := rename.OldName
	if src.ForeignKey {
		oldColumn = schema.ForeignKeyColumn(rename.OldName)
	}
	column := *src.Column
	def := ddl.ColumnDef{
		Type:    column.Type,
		NotNull: !column.Nullable,
		Default: sourceDefault(column),
	}

	for _, shard := range shards {
		hasOld, err := catalog.HasColumn(ctx, r.catalog, shard, oldColumn)
		if err != nil {
			p.fail(shard, "", err)
			continue
		}
		if !hasOld {
			hasNew, err := catalog.HasColumn(ctx, r.catalog, shard, column.Name)
			if err != nil {
				p.fail(shard, "", err)
				continue
			}
			if !hasNew {
				p.warn(schema.NewAmbiguousFieldError(rename.Table, shard, rename.OldName))
			}
			continue
		}
		p.apply(ctx, ddl.Statement{
			Kind:    ddl.ChangeColumn,
			Table:   shard,
			Column:  oldColumn,
			NewName: column.Name,
			Def:     def,
		})
	}
	return p.entries
}
