package catalog

import (
	"context"
	"sort"
	"strings"
)

// Locator enumerates the shard tables of a base table.
type Locator struct {
	catalog Catalog

	// known holds every registered base table, so that a base table that
	// happens to extend another one (app_lead_note vs app_lead) is not
	// mistaken for a shard.
	known []string
}

// NewLocator creates a locator. knownTables lists all registered base
// tables; it may be empty.
func NewLocator(c Catalog, knownTables ...string) *Locator {
	return &Locator{catalog: c, known: knownTables}
}

// Locate returns the shard tables of base in name order. The base table
// itself is never included. An empty result means nothing to reconcile.
func (l *Locator) Locate(ctx context.Context, base string) ([]string, error) {
	prefix := base + "_"
	tables, err := l.catalog.Tables(ctx, prefix)
	if err != nil {
		return nil, err
	}

	var shards []string
	for _, t := range tables {
		if t == base || !strings.HasPrefix(t, prefix) {
			continue
		}
		if l.ownedByOther(base, t) {
			continue
		}
		shards = append(shards, t)
	}
	sort.Strings(shards)
	return shards, nil
}

func (l *Locator) ownedByOther(base, table string) bool {
	for _, other := range l.known {
		if other == base || !strings.HasPrefix(other, base+"_") {
			continue
		}
		if table == other || strings.HasPrefix(table, other+"_") {
			return true
		}
	}
	return false
}

// EscapeLike escapes LIKE wildcards so s matches literally.
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
