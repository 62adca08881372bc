package migrate

import "github.com/roach88/tableshard/internal/ddl"

var (
	ddlAddStatus = ddl.Statement{
		Kind:   ddl.AddColumn,
		Table:  "app_lead",
		Column: "status",
		Def:    ddl.ColumnDef{Type: "varchar(20)", NotNull: true, Default: &ddl.Literal{Value: "new"}},
	}
	ddlRenameName = ddl.Statement{
		Kind:    ddl.ChangeColumn,
		Table:   "app_lead",
		Column:  "name",
		NewName: "title",
		Def:     ddl.ColumnDef{Type: "varchar(100)", NotNull: true},
	}
)
