package sqlref

import (
	"reflect"
	"testing"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name    string
		sql     string
		tables  []string
		columns []string
	}{
		{
			name:    "simple select",
			sql:     "SELECT a, b FROM t",
			tables:  []string{"t"},
			columns: []string{"a", "b"},
		},
		{
			name:    "qualified table",
			sql:     "SELECT id FROM analytics.orders",
			tables:  []string{"analytics.orders"},
			columns: []string{"id"},
		},
		{
			name:    "fully qualified backquoted table",
			sql:     "SELECT x FROM `cat`.`sch`.`tbl`",
			tables:  []string{"cat.sch.tbl"},
			columns: []string{"x"},
		},
		{
			name:    "joins collect every table",
			sql:     "SELECT * FROM orders o JOIN customers c ON o.cid = c.id LEFT JOIN regions r ON c.rid = r.id",
			tables:  []string{"customers", "orders", "regions"},
			columns: nil, // SELECT * yields no columns
		},
		{
			name:    "case insensitive, output lowercased",
			sql:     "select ID, Name from Users",
			tables:  []string{"users"},
			columns: []string{"id", "name"},
		},
		{
			name:    "duplicate references deduplicate",
			sql:     "SELECT a, a, b FROM t JOIN t ON 1=1",
			tables:  []string{"t"},
			columns: []string{"a", "b"},
		},
		{
			// A fragment whose first token is a keyword is dropped whole:
			// COUNT(id) contributes nothing, not "id".
			name:    "aggregate fragments dropped from columns",
			sql:     "SELECT COUNT(id), SUM(total) AS revenue, status FROM orders",
			tables:  []string{"orders"},
			columns: []string{"status"},
		},
		{
			name:    "case expression fragment dropped",
			sql:     "SELECT CASE WHEN amount > 0 THEN amount ELSE 0 END, region FROM sales",
			tables:  []string{"sales"},
			columns: []string{"region"},
		},
		{
			name:    "subquery tables union into one set",
			sql:     "SELECT name FROM (SELECT name FROM staging.users) u JOIN prod.accounts ON 1=1",
			tables:  []string{"prod.accounts", "staging.users"},
			columns: []string{"name"},
		},
		{
			name:    "no select-from shape yields no columns",
			sql:     "DELETE FROM audit_log WHERE ts < '2020-01-01'",
			tables:  []string{"audit_log"},
			columns: nil,
		},
		{
			name:    "alias after table not captured",
			sql:     "SELECT a FROM t1 x",
			tables:  []string{"t1"},
			columns: []string{"a"},
		},
		{
			name:    "empty input",
			sql:     "",
			tables:  nil,
			columns: nil,
		},
		{
			name:    "whitespace only",
			sql:     "   \n\t  ",
			tables:  nil,
			columns: nil,
		},
		{
			name:    "garbage input never fails",
			sql:     "this is not sql at all ;;; ???",
			tables:  nil,
			columns: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.sql)

			want := tt.tables
			if want == nil {
				want = []string{}
			}
			if !reflect.DeepEqual(got.Tables, want) {
				t.Errorf("Tables = %v, want %v", got.Tables, want)
			}

			want = tt.columns
			if want == nil {
				want = []string{}
			}
			if !reflect.DeepEqual(got.Columns, want) {
				t.Errorf("Columns = %v, want %v", got.Columns, want)
			}
		})
	}
}

func TestExtractIdempotent(t *testing.T) {
	sql := "SELECT id, name, COUNT(visits) FROM analytics.users u JOIN events e ON u.id = e.user_id"

	first := Extract(sql)
	second := Extract(sql)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated extraction differs: %v vs %v", first, second)
	}
}

func TestExtractOutputSorted(t *testing.T) {
	res := Extract("SELECT zeta, alpha, mid FROM ztab JOIN atab ON 1=1")

	for i := 1; i < len(res.Tables); i++ {
		if res.Tables[i-1] > res.Tables[i] {
			t.Fatalf("tables not sorted: %v", res.Tables)
		}
	}
	for i := 1; i < len(res.Columns); i++ {
		if res.Columns[i-1] > res.Columns[i] {
			t.Fatalf("columns not sorted: %v", res.Columns)
		}
	}
}
