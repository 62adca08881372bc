package reconcile

import (
	"context"

	"github.com/roach88/tableshard/internal/catalog"
	"github.com/roach88/tableshard/internal/ddl"
	"github.com/roach88/tableshard/internal/report"
	"github.com/roach88/tableshard/internal/schema"
)

// AddOrAlter reconciles one added, altered or removed field.
//
// The source table decides which it is: a field missing from the source
// (under its own name and under <field>_id) was dropped; otherwise shards
// lacking the column get it, and shards that already held it receive the
// width and default changes the operation carried.
func (r *Reconciler) AddOrAlter(ctx context.Context, change schema.AddOrAlter) []report.Entry {
	p := r.newPass(schema.CategoryAddOrAlter, change.Table, change.Field)

	shards, ok := p.shards(ctx)
	if !ok {
		return p.entries
	}

	src, err := catalog.ResolveField(ctx, r.catalog, change.Table, change.Field)
	if err != nil {
		p.fail("", "", err)
		return p.entries
	}

	if !src.Found() {
		p.dropField(ctx, shards, change.Field)
		return p.entries
	}

	column := *src.Column
	existing, holding := p.addColumn(ctx, shards, column, change.Default)

	p.reconcileIndex(ctx, holding, column.Name)

	if change.MaxLength != nil {
		p.modifyType(ctx, existing, column)
	}
	if change.Default.Supplied() {
		p.applyDefault(ctx, existing, column, change.Default)
	}

	if src.ForeignKey {
		p.reconcileForeignKey(ctx, holding, column.Name)
	}
	return p.entries
}

// dropField removes a field that no longer exists on the source. The live
// column name is resolved on the first shard that has either form.
func (p *pass) dropField(ctx context.Context, shards []string, field string) {
	column := ""
	for _, shard := range shards {
		res, err := catalog.ResolveField(ctx, p.r.catalog, shard, field)
		if err != nil {
			p.fail(shard, "", err)
			continue
		}
		if res.Found() {
			column = res.Name()
			break
		}
	}
	if column == "" {
		p.warn(schema.NewAmbiguousFieldError(p.table, "", field))
		return
	}

	for _, shard := range shards {
		if !p.usable(shard) {
			continue
		}
		has, err := catalog.HasColumn(ctx, p.r.catalog, shard, column)
		if err != nil {
			p.fail(shard, "", err)
			continue
		}
		if !has {
			continue
		}

		fks, err := p.r.catalog.ForeignKeys(ctx, shard, column)
		if err != nil {
			p.fail(shard, "", err)
			continue
		}
		constraintsDropped := true
		for _, fk := range fks {
			if !p.apply(ctx, ddl.Statement{Kind: ddl.DropForeignKey, Table: shard, Index: fk.Name}) {
				constraintsDropped = false
			}
		}
		if !constraintsDropped {
			// The column drop would fail on the remaining constraint.
			continue
		}
		p.apply(ctx, ddl.Statement{Kind: ddl.DropColumn, Table: shard, Column: column})
	}
}

// addColumn adds the source column to every shard that lacks it. It
// returns the shards that already had the column and the shards that hold
// it afterwards.
func (p *pass) addColumn(ctx context.Context, shards []string, column schema.Column, def schema.Default) (existing, holding []string) {
	for _, shard := range shards {
		if !p.usable(shard) {
			continue
		}
		has, err := catalog.HasColumn(ctx, p.r.catalog, shard, column.Name)
		if err != nil {
			p.fail(shard, "", err)
			continue
		}
		if has {
			existing = append(existing, shard)
			holding = append(holding, shard)
			continue
		}

		stmt := ddl.Statement{
			Kind:   ddl.AddColumn,
			Table:  shard,
			Column: column.Name,
			Def:    ddl.ColumnDef{Type: column.Type, Default: addDefault(column, def)},
		}
		if p.apply(ctx, stmt) {
			holding = append(holding, shard)
		}
	}
	return existing, holding
}

// addDefault picks the DEFAULT clause for a newly added column. Nullable
// columns get none; booleans become 1/0; other concrete defaults become a
// literal unless the column is temporal, which is left to the row
// insertion layer.
func addDefault(column schema.Column, def schema.Default) *ddl.Literal {
	if column.Nullable {
		return nil
	}
	switch def.Kind {
	case schema.DefaultBool:
		v, numeric := def.Value()
		return &ddl.Literal{Value: v, Numeric: numeric}
	case schema.DefaultLiteral:
		if column.IsTemporal() {
			return nil
		}
		v, numeric := def.Value()
		return &ddl.Literal{Value: v, Numeric: numeric}
	default:
		return nil
	}
}

// reconcileIndex makes each shard's single-column index on column match
// the source: absent, plain, or unique.
func (p *pass) reconcileIndex(ctx context.Context, shards []string, column string) {
	if len(shards) == 0 {
		return
	}
	srcIndexes, err := p.r.catalog.Indexes(ctx, p.table, column)
	if err != nil {
		p.fail("", "", err)
		return
	}
	want := len(srcIndexes) > 0
	wantUnique := false
	for _, idx := range srcIndexes {
		if idx.Unique {
			wantUnique = true
		}
	}

	for _, shard := range shards {
		if !p.usable(shard) {
			continue
		}
		have, err := p.r.catalog.Indexes(ctx, shard, column)
		if err != nil {
			p.fail(shard, "", err)
			continue
		}

		if !want {
			for _, idx := range have {
				p.apply(ctx, ddl.Statement{Kind: ddl.DropIndex, Table: shard, Index: idx.Name})
			}
			continue
		}

		if hasIndex(have, wantUnique) {
			continue
		}
		// Existing indexes have the wrong uniqueness: drop, then recreate.
		for _, idx := range have {
			p.apply(ctx, ddl.Statement{Kind: ddl.DropIndex, Table: shard, Index: idx.Name})
		}
		kind := ddl.AddIndex
		if wantUnique {
			kind = ddl.AddUnique
		}
		p.apply(ctx, ddl.Statement{Kind: kind, Table: shard, Column: column})
	}
}

func hasIndex(indexes []schema.Index, unique bool) bool {
	for _, idx := range indexes {
		if idx.Unique == unique {
			return true
		}
	}
	return false
}

// modifyType propagates a width or precision change by re-applying the
// source column definition.
func (p *pass) modifyType(ctx context.Context, shards []string, column schema.Column) {
	def := ddl.ColumnDef{
		Type:    column.Type,
		NotNull: !column.Nullable,
		Default: sourceDefault(column),
	}
	for _, shard := range shards {
		if !p.usable(shard) {
			continue
		}
		current, err := p.r.catalog.Column(ctx, shard, column.Name)
		if err != nil {
			p.fail(shard, "", err)
			continue
		}
		if current != nil && current.Type == column.Type && current.Nullable == column.Nullable &&
			(column.IsTemporal() || sameDefault(current.Default, def.Default)) {
			continue
		}
		p.apply(ctx, ddl.Statement{Kind: ddl.ModifyColumn, Table: shard, Column: column.Name, Def: def})
	}
}

// applyDefault propagates an attribute-only default change. A resolvable
// default is set; an explicit null re-applies the bare column definition,
// which clears the shard default. Temporal columns and fields declaring no
// default are left alone.
func (p *pass) applyDefault(ctx context.Context, shards []string, column schema.Column, def schema.Default) {
	switch {
	case def.Resolvable():
		if column.IsTemporal() {
			return
		}
		value, numeric := def.Value()
		lit := ddl.Literal{Value: value, Numeric: numeric}
		for _, shard := range shards {
			if !p.usable(shard) {
				continue
			}
			current, err := p.r.catalog.Column(ctx, shard, column.Name)
			if err != nil {
				p.fail(shard, "", err)
				continue
			}
			if current != nil && current.Default != nil && *current.Default == value {
				continue
			}
			p.apply(ctx, ddl.Statement{Kind: ddl.SetDefault, Table: shard, Column: column.Name, Default: lit})
		}

	case def.Kind == schema.DefaultNull:
		clear := ddl.ColumnDef{Type: column.Type, NotNull: !column.Nullable}
		for _, shard := range shards {
			if !p.usable(shard) {
				continue
			}
			current, err := p.r.catalog.Column(ctx, shard, column.Name)
			if err != nil {
				p.fail(shard, "", err)
				continue
			}
			if current != nil && current.Default == nil && current.Type == column.Type {
				continue
			}
			p.apply(ctx, ddl.Statement{Kind: ddl.ModifyColumn, Table: shard, Column: column.Name, Def: clear})
		}
	}
}

// reconcileForeignKey adds a foreign key on column to every shard missing
// one. The target is taken from the source table's own constraint, or
// failing that from the model named by the column without its _id suffix.
func (p *pass) reconcileForeignKey(ctx context.Context, shards []string, column string) {
	if len(shards) == 0 {
		return
	}
	refTable, refColumn, ok := p.foreignKeyTarget(ctx, column)
	if !ok {
		return
	}

	for _, shard := range shards {
		if !p.usable(shard) {
			continue
		}
		fks, err := p.r.catalog.ForeignKeys(ctx, shard, column)
		if err != nil {
			p.fail(shard, "", err)
			continue
		}
		if len(fks) > 0 {
			continue
		}
		p.apply(ctx, ddl.Statement{
			Kind:      ddl.AddForeignKey,
			Table:     shard,
			Column:    column,
			RefTable:  refTable,
			RefColumn: refColumn,
		})
	}
}

func (p *pass) foreignKeyTarget(ctx context.Context, column string) (table, refColumn string, ok bool) {
	srcFKs, err := p.r.catalog.ForeignKeys(ctx, p.table, column)
	if err != nil {
		p.fail("", "", err)
		return "", "", false
	}
	if len(srcFKs) > 0 {
		return srcFKs[0].RefTable, srcFKs[0].RefColumn, true
	}

	if p.r.registry == nil {
		return "", "", false
	}
	model, found := p.r.registry.Lookup(schema.RelatedModelName(column))
	if !found {
		p.r.logger.Debug("no model for foreign key column", "table", p.table, "column", column)
		return "", "", false
	}
	return model.Table, schema.PrimaryKeyColumn, true
}

// sourceDefault is the source column default as a literal, omitted for
// temporal columns whose defaults are expressions.
func sourceDefault(column schema.Column) *ddl.Literal {
	if column.Default == nil || column.IsTemporal() {
		return nil
	}
	return &ddl.Literal{Value: *column.Default}
}

func sameDefault(current *string, want *ddl.Literal) bool {
	if current == nil || want == nil {
		return current == nil && want == nil
	}
	return *current == want.Value
}
