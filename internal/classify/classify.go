// Package classify turns a migration plan into shard reconciliation
// worklists. Classification is pure plan analysis; it never touches the
// database.
package classify

import (
	"log/slog"

	"github.com/roach88/tableshard/internal/plan"
	"github.com/roach88/tableshard/internal/schema"
)

// Classifier partitions plan operations on sharded models into worklists.
type Classifier struct {
	registry *plan.Registry
	logger   *slog.Logger
}

// New creates a classifier over a model registry.
func New(registry *plan.Registry, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{registry: registry, logger: logger}
}

// Classify walks the operations in order and returns the worklists.
// Operations on models that are not sharded are dropped silently.
func (c *Classifier) Classify(ops []plan.Operation) *schema.Worklists {
	w := &schema.Worklists{}
	for i := range ops {
		c.classifyOne(w, &ops[i])
	}
	return w
}

func (c *Classifier) classifyOne(w *schema.Worklists, op *plan.Operation) {
	model, ok := c.registry.Lookup(op.Model)
	if !ok || !model.Sharded {
		return
	}

	if op.HasUniqueTogether {
		c.classifyUniqueTogether(w, model, op)
		return
	}

	if op.OldName != "" {
		// A rename is never also processed as an add/alter.
		if op.NewName != "" {
			w.Renames = append(w.Renames, schema.Rename{
				Table:   model.Table,
				OldName: op.OldName,
				NewName: op.NewName,
			})
		}
		return
	}

	change := schema.AddOrAlter{Table: model.Table, Field: op.Name}
	if op.Field != nil {
		if op.Field.Kind == plan.FieldManyToMany || op.Field.Kind == plan.FieldOneToOne {
			skipped := schema.NewUnsupportedFieldError(model.Table, op.Name, op.Field.Kind)
			c.logger.Warn("skipping unsupported field on sharded model",
				"model", model.Name,
				"field", op.Name,
				"kind", op.Field.Kind)
			w.Skipped = append(w.Skipped, skipped)
			return
		}
		change.Default = op.Field.Default
		if change.Default.Kind == schema.DefaultUnset {
			change.Default = schema.NotProvided()
		}
		change.MaxLength = op.Field.MaxLength
	}

	if change.Field == "" {
		// Model-level operations (CreateModel, DeleteModel) have no field
		// to propagate.
		return
	}

	w.AddOrAlter = append(w.AddOrAlter, change)
}

func (c *Classifier) classifyUniqueTogether(w *schema.Worklists, model plan.Model, op *plan.Operation) {
	if len(op.UniqueTogether) == 0 {
		w.UniqueRemove = append(w.UniqueRemove, schema.UniqueTogetherRemove{Table: model.Table})
		return
	}

	// Composite constraint lists collapse to their final field set.
	last := op.UniqueTogether[len(op.UniqueTogether)-1]
	fields := make([]string, len(last))
	copy(fields, last)
	w.UniqueAdd = append(w.UniqueAdd, schema.UniqueTogetherAdd{Table: model.Table, Fields: fields})
}
