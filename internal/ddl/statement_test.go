package ddl

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func lit(v string) *Literal { return &Literal{Value: v} }

func TestStatementSQL(t *testing.T) {
	tests := []struct {
		name string
		stmt Statement
		want string
	}{
		{
			name: "add nullable column",
			stmt: Statement{Kind: AddColumn, Table: "app_lead_1", Column: "note", Def: ColumnDef{Type: "longtext"}},
			want: "ALTER TABLE `app_lead_1` ADD COLUMN `note` longtext",
		},
		{
			name: "add column with string default",
			stmt: Statement{Kind: AddColumn, Table: "app_lead_1", Column: "status",
				Def: ColumnDef{Type: "varchar(20)", Default: lit("new")}},
			want: "ALTER TABLE `app_lead_1` ADD COLUMN `status` varchar(20) DEFAULT \"new\"",
		},
		{
			name: "add column with numeric default",
			stmt: Statement{Kind: AddColumn, Table: "app_lead_1", Column: "is_active",
				Def: ColumnDef{Type: "tinyint(1)", Default: &Literal{Value: "1", Numeric: true}}},
			want: "ALTER TABLE `app_lead_1` ADD COLUMN `is_active` tinyint(1) DEFAULT 1",
		},
		{
			name: "drop column",
			stmt: Statement{Kind: DropColumn, Table: "app_lead_1", Column: "owner_id"},
			want: "ALTER TABLE `app_lead_1` DROP COLUMN `owner_id`",
		},
		{
			name: "change column",
			stmt: Statement{Kind: ChangeColumn, Table: "app_lead_1", Column: "title", NewName: "name",
				Def: ColumnDef{Type: "varchar(100)", NotNull: true}},
			want: "ALTER TABLE `app_lead_1` CHANGE `title` `name` varchar(100) NOT NULL",
		},
		{
			name: "modify column",
			stmt: Statement{Kind: ModifyColumn, Table: "app_lead_1", Column: "status",
				Def: ColumnDef{Type: "varchar(32)", NotNull: true, Default: lit("open")}},
			want: "ALTER TABLE `app_lead_1` MODIFY `status` varchar(32) NOT NULL DEFAULT \"open\"",
		},
		{
			name: "set default",
			stmt: Statement{Kind: SetDefault, Table: "app_lead_1", Column: "status", Default: Literal{Value: "new"}},
			want: "ALTER TABLE `app_lead_1` ALTER `status` SET DEFAULT \"new\"",
		},
		{
			name: "add index",
			stmt: Statement{Kind: AddIndex, Table: "app_lead_1", Column: "code"},
			want: "ALTER TABLE `app_lead_1` ADD INDEX (`code`)",
		},
		{
			name: "add unique",
			stmt: Statement{Kind: AddUnique, Table: "app_lead_1", Column: "code"},
			want: "ALTER TABLE `app_lead_1` ADD UNIQUE (`code`)",
		},
		{
			name: "drop index",
			stmt: Statement{Kind: DropIndex, Table: "app_lead_1", Index: "owner_email_uniq"},
			want: "ALTER TABLE `app_lead_1` DROP INDEX `owner_email_uniq`",
		},
		{
			name: "create unique index",
			stmt: Statement{Kind: CreateUniqueIndex, Table: "app_lead_1", Index: "owner_email_uniq",
				Columns: []string{"owner_id", "email"}},
			want: "CREATE UNIQUE INDEX `owner_email_uniq` ON `app_lead_1` (`owner_id`,`email`)",
		},
		{
			name: "add foreign key",
			stmt: Statement{Kind: AddForeignKey, Table: "app_lead_1", Column: "owner_id",
				RefTable: "app_user", RefColumn: "id"},
			want: "ALTER TABLE `app_lead_1` ADD FOREIGN KEY (`owner_id`) REFERENCES `app_user` (`id`)",
		},
		{
			name: "drop foreign key",
			stmt: Statement{Kind: DropForeignKey, Table: "app_lead_1", Index: "app_lead_1_ibfk_1"},
			want: "ALTER TABLE `app_lead_1` DROP FOREIGN KEY `app_lead_1_ibfk_1`",
		},
		{
			name: "create table like",
			stmt: Statement{Kind: CreateTableLike, Table: "app_lead_7", RefTable: "app_lead"},
			want: "CREATE TABLE IF NOT EXISTS `app_lead_7` LIKE `app_lead`",
		},
		{
			name: "unknown kind",
			stmt: Statement{Kind: "BOGUS", Table: "t"},
			want: "-- unknown statement kind \"BOGUS\" on `t`",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.stmt.SQL())
			assert.Equal(t, tt.want, tt.stmt.String())
		})
	}
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, "`app_lead`", QuoteIdent("app_lead"))
	assert.Equal(t, "`we``ird`", QuoteIdent("we`ird"))
}

func TestLiteralSQL_Escapes(t *testing.T) {
	assert.Equal(t, `"say \"hi\""`, Literal{Value: `say "hi"`}.SQL())
	assert.Equal(t, `"C:\\tmp"`, Literal{Value: `C:\tmp`}.SQL())
	assert.Equal(t, "0", Literal{Value: "0", Numeric: true}.SQL())
}
