package reconcile

import (
	"context"
	"strings"

	"github.com/roach88/tableshard/internal/catalog"
	"github.com/roach88/tableshard/internal/ddl"
	"github.com/roach88/tableshard/internal/report"
	"github.com/roach88/tableshard/internal/schema"
)

// UniqueAdd creates the composite unique index <f1>_<f2>_..._uniq on every
// shard that does not have it yet. Fields resolve to their columns on the
// source, so relations index their _id column.
func (r *Reconciler) UniqueAdd(ctx context.Context, change schema.UniqueTogetherAdd) []report.Entry {
	p := r.newPass(schema.CategoryUniqueAdd, change.Table, strings.Join(change.Fields, ","))

	shards, ok := p.shards(ctx)
	if !ok {
		return p.entries
	}

	columns := make([]string, 0, len(change.Fields))
	for _, field := range change.Fields {
		res, err := catalog.ResolveField(ctx, r.catalog, change.Table, field)
		if err != nil {
			p.fail("", "", err)
			return p.entries
		}
		if !res.Found() {
			p.warn(schema.NewAmbiguousFieldError(change.Table, "", field))
			return p.entries
		}
		columns = append(columns, res.Name())
	}

	indexName := schema.UniqIndexName(change.Fields)
	for _, shard := range shards {
		existing, err := catalog.UniqConstraints(ctx, r.catalog, shard)
		if err != nil {
			p.fail(shard, "", err)
			continue
		}
		if contains(existing, indexName) {
			continue
		}
		p.apply(ctx, ddl.Statement{
			Kind:    ddl.CreateUniqueIndex,
			Table:   shard,
			Index:   indexName,
			Columns: columns,
		})
	}
	return p.entries
}

// UniqueRemove drops every _uniq composite constraint from every shard.
// Ordinary indexes are never touched.
func (r *Reconciler) UniqueRemove(ctx context.Context, change schema.UniqueTogetherRemove) []report.Entry {
	p := r.newPass(schema.CategoryUniqueRemove, change.Table, "")

	shards, ok := p.shards(ctx)
	if !ok {
		return p.entries
	}

	for _, shard := range shards {
		names, err := catalog.UniqConstraints(ctx, r.catalog, shard)
		if err != nil {
			p.fail(shard, "", err)
			continue
		}
		for _, name := range names {
			p.apply(ctx, ddl.Statement{Kind: ddl.DropIndex, Table: shard, Index: name})
		}
	}
	return p.entries
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
