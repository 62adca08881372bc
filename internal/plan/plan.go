package plan

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tableshard/internal/schema"
)

// Operation kinds the host framework emits. Classification looks at the
// attributes an operation carries, not at its kind; the kind is kept for
// logging and for the source migrator.
const (
	OpCreateModel         = "CreateModel"
	OpDeleteModel         = "DeleteModel"
	OpAddField            = "AddField"
	OpRemoveField         = "RemoveField"
	OpAlterField          = "AlterField"
	OpRenameField         = "RenameField"
	OpAlterUniqueTogether = "AlterUniqueTogether"
	OpAddIndex            = "AddIndex"
	OpRemoveIndex         = "RemoveIndex"
)

// Relation kinds that are rejected on sharded models.
const (
	FieldManyToMany = "ManyToManyField"
	FieldOneToOne   = "OneToOneField"
)

// Plan is an ordered list of migrations.
type Plan struct {
	Migrations []Migration `yaml:"migrations"`
}

// Migration groups the operations of one migration file.
type Migration struct {
	App        string      `yaml:"app"`
	Name       string      `yaml:"name"`
	Operations []Operation `yaml:"operations"`
}

// Operation is one planned schema operation.
type Operation struct {
	Op string `yaml:"op"`

	// Model is the lowercase model name the operation targets.
	Model string `yaml:"model"`

	// Name is the target field name, when the operation targets a field.
	Name string `yaml:"name"`

	// OldName and NewName are set on renames.
	OldName string `yaml:"old_name"`
	NewName string `yaml:"new_name"`

	// Field is the field definition, when the operation carries one.
	Field *FieldDef `yaml:"field"`

	// UniqueTogether is the complete composite constraint list after the
	// operation. HasUniqueTogether distinguishes an explicit empty list
	// (remove all) from an operation without the attribute.
	UniqueTogether    [][]string `yaml:"-"`
	HasUniqueTogether bool       `yaml:"-"`

	// SQL holds the statements the host applies to the source table.
	SQL []string `yaml:"sql"`
}

// FieldDef is the subset of a field definition classification needs.
type FieldDef struct {
	Kind      string
	MaxLength *int
	Default   schema.Default
}

var (
	operationKeys = []string{"op", "model", "name", "old_name", "new_name", "field", "unique_together", "sql"}
	fieldKeys     = []string{"kind", "max_length", "default"}
)

// checkKeys rejects mapping keys outside allowed. Node.Decode does not
// inherit the decoder's KnownFields setting, so custom unmarshalers check
// their own keys.
func checkKeys(value *yaml.Node, what string, allowed []string) error {
	if value.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(value.Content); i += 2 {
		key := value.Content[i]
		known := false
		for _, a := range allowed {
			if key.Value == a {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("line %d: field %s not found in %s", key.Line, key.Value, what)
		}
	}
	return nil
}

// UnmarshalYAML keeps the difference between a missing unique_together
// attribute and an explicitly empty one.
func (o *Operation) UnmarshalYAML(value *yaml.Node) error {
	if err := checkKeys(value, "operation", operationKeys); err != nil {
		return err
	}
	type rawOperation Operation
	var raw struct {
		rawOperation   `yaml:",inline"`
		UniqueTogether yaml.Node `yaml:"unique_together"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*o = Operation(raw.rawOperation)

	if raw.UniqueTogether.Kind == 0 {
		return nil
	}
	o.HasUniqueTogether = true
	if raw.UniqueTogether.ShortTag() == "!!null" {
		return nil
	}
	if err := raw.UniqueTogether.Decode(&o.UniqueTogether); err != nil {
		return fmt.Errorf("unique_together: %w", err)
	}
	return nil
}

// UnmarshalYAML maps the YAML default attribute onto schema.Default.
// A missing key means the field declares no default; an explicit null is
// a null default.
func (f *FieldDef) UnmarshalYAML(value *yaml.Node) error {
	if err := checkKeys(value, "field", fieldKeys); err != nil {
		return err
	}
	var raw struct {
		Kind      string    `yaml:"kind"`
		MaxLength *int      `yaml:"max_length"`
		Default   yaml.Node `yaml:"default"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	def, err := defaultFromNode(&raw.Default)
	if err != nil {
		return err
	}
	f.Kind = raw.Kind
	f.MaxLength = raw.MaxLength
	f.Default = def
	return nil
}

func defaultFromNode(n *yaml.Node) (schema.Default, error) {
	if n.Kind == 0 {
		return schema.NotProvided(), nil
	}
	if n.Kind != yaml.ScalarNode {
		return schema.Default{}, fmt.Errorf("default must be a scalar (line %d)", n.Line)
	}
	switch n.ShortTag() {
	case "!!null":
		return schema.Null(), nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return schema.Default{}, fmt.Errorf("default: %w", err)
		}
		return schema.BoolDefault(b), nil
	default:
		return schema.LiteralDefault(n.Value), nil
	}
}

// IsRename reports whether the operation carries a complete rename.
func (o *Operation) IsRename() bool {
	return o.OldName != "" && o.NewName != ""
}

// Operations flattens the plan in execution order.
func (p *Plan) Operations() []Operation {
	var ops []Operation
	for _, m := range p.Migrations {
		ops = append(ops, m.Operations...)
	}
	return ops
}

// LoadPlan reads and parses a plan YAML file.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}
	return ParsePlan(data)
}

// ParsePlan parses a plan YAML document.
func ParsePlan(data []byte) (*Plan, error) {
	var p Plan
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to parse plan YAML: %w", err)
	}
	if err := validatePlan(&p); err != nil {
		return nil, fmt.Errorf("invalid plan: %w", err)
	}
	return &p, nil
}

func validatePlan(p *Plan) error {
	for i, m := range p.Migrations {
		for j, op := range m.Operations {
			if op.Op == "" {
				return fmt.Errorf("migrations[%d].operations[%d]: op is required", i, j)
			}
			if op.Model == "" {
				return fmt.Errorf("migrations[%d].operations[%d]: model is required", i, j)
			}
		}
	}
	return nil
}
