package schema

// Category names a worklist, and with it a reconciliation pass.
type Category string

const (
	CategoryAddOrAlter   Category = "add_or_alter"
	CategoryUniqueAdd    Category = "unique_together_add"
	CategoryUniqueRemove Category = "unique_together_remove"
	CategoryRename       Category = "rename"
)

// Categories lists the worklists in the order the orchestrator runs them.
var Categories = []Category{
	CategoryAddOrAlter,
	CategoryUniqueAdd,
	CategoryUniqueRemove,
	CategoryRename,
}

// AddOrAlter is a field that was added, altered or removed on a sharded
// model. Whether it is an add, an alter or a drop is decided against the
// live source table, not here.
type AddOrAlter struct {
	Table     string
	Field     string
	Default   Default
	MaxLength *int
}

// Rename is a field rename on a sharded model.
type Rename struct {
	Table   string
	OldName string
	NewName string
}

// UniqueTogetherAdd is a composite unique constraint over Fields.
type UniqueTogetherAdd struct {
	Table  string
	Fields []string
}

// UniqueTogetherRemove clears all composite unique constraints on Table.
type UniqueTogetherRemove struct {
	Table string
}

// Worklists is the classified output of one migration plan.
type Worklists struct {
	AddOrAlter   []AddOrAlter
	Renames      []Rename
	UniqueAdd    []UniqueTogetherAdd
	UniqueRemove []UniqueTogetherRemove

	// Skipped holds operations that were rejected during classification,
	// e.g. unsupported relation kinds.
	Skipped []*Error
}

// Empty reports whether there is nothing to reconcile.
func (w *Worklists) Empty() bool {
	return len(w.AddOrAlter) == 0 && len(w.Renames) == 0 &&
		len(w.UniqueAdd) == 0 && len(w.UniqueRemove) == 0
}

// Len returns the number of items in a category's worklist.
func (w *Worklists) Len(c Category) int {
	switch c {
	case CategoryAddOrAlter:
		return len(w.AddOrAlter)
	case CategoryUniqueAdd:
		return len(w.UniqueAdd)
	case CategoryUniqueRemove:
		return len(w.UniqueRemove)
	case CategoryRename:
		return len(w.Renames)
	default:
		return 0
	}
}
