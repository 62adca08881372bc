package plan

import (
	"fmt"
	"os"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"golang.org/x/text/cases"
)

// registrySchema constrains registry files. Unknown model attributes are
// rejected by the closed definition.
const registrySchema = `
#Model: {
	app:      string & !=""
	table?:   string & !=""
	sharded:  *false | bool
}

models: [string]: #Model
`

// Model is one model declaration.
type Model struct {
	// Name is the case-folded model name, as operations refer to it.
	Name     string
	AppLabel string
	Table    string
	Sharded  bool
}

// Registry maps model names to their tables and shard capability.
type Registry struct {
	models []Model
	byName map[string]int
}

var folder = cases.Fold()

// ModelName normalizes a model name for registry lookups.
func ModelName(name string) string {
	return folder.String(name)
}

// NewRegistry builds a registry from model declarations. Models without a
// table get the <app>_<model> convention.
func NewRegistry(models ...Model) *Registry {
	r := &Registry{byName: make(map[string]int, len(models))}
	for _, m := range models {
		m.Name = ModelName(m.Name)
		if m.Table == "" {
			m.Table = m.AppLabel + "_" + m.Name
		}
		if i, ok := r.byName[m.Name]; ok {
			r.models[i] = m
			continue
		}
		r.byName[m.Name] = len(r.models)
		r.models = append(r.models, m)
	}
	return r
}

// Lookup returns the model registered under name.
func (r *Registry) Lookup(name string) (Model, bool) {
	i, ok := r.byName[ModelName(name)]
	if !ok {
		return Model{}, false
	}
	return r.models[i], true
}

// IsSharded reports whether a model supports shard routing.
func (r *Registry) IsSharded(name string) bool {
	m, ok := r.Lookup(name)
	return ok && m.Sharded
}

// ShardedNames returns the sorted names of all sharded models.
func (r *Registry) ShardedNames() []string {
	var names []string
	for _, m := range r.models {
		if m.Sharded {
			names = append(names, m.Name)
		}
	}
	sort.Strings(names)
	return names
}

// ShardedTables returns the base tables of all sharded models.
func (r *Registry) ShardedTables() []string {
	var tables []string
	for _, m := range r.models {
		if m.Sharded {
			tables = append(tables, m.Table)
		}
	}
	sort.Strings(tables)
	return tables
}

// Tables returns every registered table.
func (r *Registry) Tables() []string {
	tables := make([]string, 0, len(r.models))
	for _, m := range r.models {
		tables = append(tables, m.Table)
	}
	sort.Strings(tables)
	return tables
}

// Models returns all declarations in registration order.
func (r *Registry) Models() []Model {
	out := make([]Model, len(r.models))
	copy(out, r.models)
	return out
}

// LoadRegistry reads a CUE registry file.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file: %w", err)
	}
	return ParseRegistry(path, data)
}

// ParseRegistry compiles CUE source declaring models:
//
//	models: {
//		lead: {app: "crm", sharded: true}
//		owner: {app: "crm", table: "crm_user"}
//	}
func ParseRegistry(filename string, data []byte) (*Registry, error) {
	ctx := cuecontext.New()
	schemaVal := ctx.CompileString(registrySchema, cue.Filename("registry-schema.cue"))
	if err := schemaVal.Err(); err != nil {
		return nil, fmt.Errorf("compiling registry schema: %w", err)
	}

	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compiling registry: %w", err)
	}

	v = schemaVal.Unify(v)
	if err := v.Validate(); err != nil {
		return nil, fmt.Errorf("validating registry: %w", err)
	}

	modelsVal := v.LookupPath(cue.ParsePath("models"))
	if !modelsVal.Exists() {
		return NewRegistry(), nil
	}

	iter, err := modelsVal.Fields()
	if err != nil {
		return nil, fmt.Errorf("iterating models: %w", err)
	}

	var models []Model
	for iter.Next() {
		m, err := parseModel(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		models = append(models, m)
	}
	return NewRegistry(models...), nil
}

func parseModel(name string, v cue.Value) (Model, error) {
	m := Model{Name: name}

	app, err := v.LookupPath(cue.ParsePath("app")).String()
	if err != nil {
		return Model{}, fmt.Errorf("models.%s.app: %w", name, err)
	}
	m.AppLabel = app

	if tableVal := v.LookupPath(cue.ParsePath("table")); tableVal.Exists() {
		table, err := tableVal.String()
		if err != nil {
			return Model{}, fmt.Errorf("models.%s.table: %w", name, err)
		}
		m.Table = table
	}

	shardedVal, _ := v.LookupPath(cue.ParsePath("sharded")).Default()
	sharded, err := shardedVal.Bool()
	if err != nil {
		return Model{}, fmt.Errorf("models.%s.sharded: %w", name, err)
	}
	m.Sharded = sharded

	return m, nil
}
