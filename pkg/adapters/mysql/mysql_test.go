package mysql

import (
	"fmt"
	"testing"

	driver "github.com/go-sql-driver/mysql"
)

func TestDialectSQL(t *testing.T) {
	d := Dialect{}
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"quote", d.QuoteIdentifier("we`ird"), "`we``ird`"},
		{"qualified", d.QualifiedTable("erp", "clientes"), "`erp`.`clientes`"},
		{"unqualified", d.QualifiedTable("", "clientes"), "`clientes`"},
		{"placeholder", d.Placeholder(7), "?"},
		{"upsert",
			d.Upsert("stock", []string{"sku", "qty"}, []string{"?", "?"}, []string{"sku"}, []string{"qty"}),
			"INSERT INTO `stock` (`sku`, `qty`) VALUES (?, ?) ON DUPLICATE KEY UPDATE `qty` = VALUES(`qty`)"},
		{"no conflict suffix", d.OnConflictDoNothing(), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got  %s\nwant %s", tt.got, tt.want)
			}
		})
	}

	q, useLastID := d.InsertReturningID("pedidos", []string{"ref"}, []string{"?"}, "id")
	if !useLastID || q != "INSERT INTO `pedidos` (`ref`) VALUES (?)" {
		t.Errorf("InsertReturningID = %s, %v", q, useLastID)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	d := Dialect{}
	if !d.IsUniqueViolation(fmt.Errorf("insert: %w", &driver.MySQLError{Number: 1062, Message: "Duplicate entry"})) {
		t.Error("1062 must be a unique violation")
	}
	if d.IsUniqueViolation(&driver.MySQLError{Number: 1048}) {
		t.Error("1048 (column cannot be null) is not a unique violation")
	}
}
