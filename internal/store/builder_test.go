package store

import (
	"errors"
	"reflect"
	"testing"
)

func TestWhereClause(t *testing.T) {
	t.Run("empty chain yields empty string", func(t *testing.T) {
		clause, args, err := whereClause(nil)
		if err != nil {
			t.Fatalf("whereClause() error = %v", err)
		}
		if clause != "" {
			t.Errorf("clause = %q, want empty", clause)
		}
		if len(args) != 0 {
			t.Errorf("args = %v, want none", args)
		}
	})

	t.Run("single condition ignores its connective", func(t *testing.T) {
		clause, args, err := whereClause([]Condition{
			{Column: "a", Op: OpEq, Value: 1, Join: ConnAnd},
		})
		if err != nil {
			t.Fatalf("whereClause() error = %v", err)
		}
		if clause != " WHERE (a = ?)" {
			t.Errorf("clause = %q, want %q", clause, " WHERE (a = ?)")
		}
		if len(args) != 1 || args[0] != 1 {
			t.Errorf("args = %v, want [1]", args)
		}
	})

	t.Run("connective comes from the later element", func(t *testing.T) {
		clause, _, err := whereClause([]Condition{
			{Column: "a", Op: OpEq, Value: 1, Join: ConnOr},
			{Column: "b", Op: OpGT, Value: 2, Join: ConnOr},
			{Column: "c", Op: OpLike, Value: "x%", Join: ConnAnd},
		})
		if err != nil {
			t.Fatalf("whereClause() error = %v", err)
		}
		want := " WHERE (a = ?) OR (b > ?) AND (c LIKE ?)"
		if clause != want {
			t.Errorf("clause = %q, want %q", clause, want)
		}
	})

	t.Run("empty connective defaults to AND", func(t *testing.T) {
		clause, _, err := whereClause([]Condition{
			{Column: "a", Op: OpEq, Value: 1},
			{Column: "b", Op: OpNE, Value: 2},
		})
		if err != nil {
			t.Fatalf("whereClause() error = %v", err)
		}
		want := " WHERE (a = ?) AND (b != ?)"
		if clause != want {
			t.Errorf("clause = %q, want %q", clause, want)
		}
	})

	t.Run("rejects unsafe column", func(t *testing.T) {
		_, _, err := whereClause([]Condition{
			{Column: "a;", Op: OpEq, Value: 1},
		})
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("error = %v, want ValidationError", err)
		}
	})

	t.Run("rejects unknown operator", func(t *testing.T) {
		_, _, err := whereClause([]Condition{
			{Column: "a", Op: "IN", Value: 1},
		})
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("error = %v, want ValidationError", err)
		}
	})
}

func TestBuildSelect(t *testing.T) {
	t.Run("full shape", func(t *testing.T) {
		sqlText, args, err := buildSelect("students", []string{"id", "name"},
			[]Condition{{Column: "year", Op: OpGE, Value: 2024}}, 10, 20)
		if err != nil {
			t.Fatalf("buildSelect() error = %v", err)
		}
		want := "SELECT id, name FROM students WHERE (year >= ?) LIMIT ? OFFSET ?"
		if sqlText != want {
			t.Errorf("sql = %q, want %q", sqlText, want)
		}
		if !reflect.DeepEqual(args, []any{2024, 10, 20}) {
			t.Errorf("args = %v, want [2024 10 20]", args)
		}
	})

	t.Run("empty columns selects star", func(t *testing.T) {
		sqlText, _, err := buildSelect("students", nil, nil, 0, 0)
		if err != nil {
			t.Fatalf("buildSelect() error = %v", err)
		}
		if sqlText != "SELECT * FROM students" {
			t.Errorf("sql = %q", sqlText)
		}
	})

	t.Run("zero and negative limit and offset are omitted", func(t *testing.T) {
		for _, n := range []int{0, -1, -50} {
			sqlText, args, err := buildSelect("t", []string{"x"}, nil, n, n)
			if err != nil {
				t.Fatalf("buildSelect() error = %v", err)
			}
			if sqlText != "SELECT x FROM t" {
				t.Errorf("limit/offset %d: sql = %q, want no LIMIT/OFFSET", n, sqlText)
			}
			if len(args) != 0 {
				t.Errorf("limit/offset %d: args = %v, want none", n, args)
			}
		}
	})

	t.Run("offset without limit rides on LIMIT -1", func(t *testing.T) {
		sqlText, args, err := buildSelect("t", nil, nil, 0, 5)
		if err != nil {
			t.Fatalf("buildSelect() error = %v", err)
		}
		if sqlText != "SELECT * FROM t LIMIT -1 OFFSET ?" {
			t.Errorf("sql = %q", sqlText)
		}
		if !reflect.DeepEqual(args, []any{5}) {
			t.Errorf("args = %v, want [5]", args)
		}
	})

	t.Run("rejects unsafe table", func(t *testing.T) {
		_, _, err := buildSelect("t; DROP TABLE t", nil, nil, 0, 0)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("error = %v, want ValidationError", err)
		}
	})
}

func TestBuildInsert(t *testing.T) {
	t.Run("single row", func(t *testing.T) {
		sqlText, args, err := buildInsert("t", []Row{{"b": 2, "a": 1}}, nil)
		if err != nil {
			t.Fatalf("buildInsert() error = %v", err)
		}
		if sqlText != "INSERT INTO t (a, b) VALUES (?, ?)" {
			t.Errorf("sql = %q", sqlText)
		}
		if !reflect.DeepEqual(args, []any{1, 2}) {
			t.Errorf("args = %v, want [1 2]", args)
		}
	})

	t.Run("multiple rows share one tuple list", func(t *testing.T) {
		sqlText, args, err := buildInsert("t", []Row{
			{"a": 1, "b": "x"},
			{"a": 2, "b": "y"},
		}, nil)
		if err != nil {
			t.Fatalf("buildInsert() error = %v", err)
		}
		if sqlText != "INSERT INTO t (a, b) VALUES (?, ?), (?, ?)" {
			t.Errorf("sql = %q", sqlText)
		}
		if !reflect.DeepEqual(args, []any{1, "x", 2, "y"}) {
			t.Errorf("args = %v", args)
		}
	})

	t.Run("no rows is an error", func(t *testing.T) {
		_, _, err := buildInsert("t", nil, nil)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("error = %v, want ValidationError", err)
		}
	})

	t.Run("heterogeneous rows are rejected", func(t *testing.T) {
		_, _, err := buildInsert("t", []Row{
			{"a": 1},
			{"b": 2},
		}, nil)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("error = %v, want ValidationError", err)
		}
	})

	t.Run("OR-style conflict actions", func(t *testing.T) {
		sqlText, _, err := buildInsert("t", []Row{{"a": 1}},
			&ConflictPolicy{Action: ConflictIgnore})
		if err != nil {
			t.Fatalf("buildInsert() error = %v", err)
		}
		if sqlText != "INSERT OR IGNORE INTO t (a) VALUES (?)" {
			t.Errorf("sql = %q", sqlText)
		}
	})

	t.Run("DO NOTHING with key", func(t *testing.T) {
		sqlText, _, err := buildInsert("t", []Row{{"id": 1, "v": "a"}},
			&ConflictPolicy{Key: "id", Action: ConflictNothing})
		if err != nil {
			t.Fatalf("buildInsert() error = %v", err)
		}
		want := "INSERT INTO t (id, v) VALUES (?, ?) ON CONFLICT (id) DO NOTHING"
		if sqlText != want {
			t.Errorf("sql = %q, want %q", sqlText, want)
		}
	})

	t.Run("DO UPDATE refreshes non-key columns", func(t *testing.T) {
		sqlText, _, err := buildInsert("t", []Row{{"id": 1, "v": "a", "w": 2}},
			&ConflictPolicy{Key: "id", Action: ConflictUpdate})
		if err != nil {
			t.Fatalf("buildInsert() error = %v", err)
		}
		want := "INSERT INTO t (id, v, w) VALUES (?, ?, ?) ON CONFLICT (id) DO UPDATE SET v = excluded.v, w = excluded.w"
		if sqlText != want {
			t.Errorf("sql = %q, want %q", sqlText, want)
		}
	})

	t.Run("UPDATE action without key is rejected", func(t *testing.T) {
		_, _, err := buildInsert("t", []Row{{"id": 1}},
			&ConflictPolicy{Action: ConflictUpdate})
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("error = %v, want ValidationError", err)
		}
	})

	t.Run("composite conflict key", func(t *testing.T) {
		sqlText, _, err := buildInsert("t", []Row{{"a": 1, "b": 2, "v": 3}},
			&ConflictPolicy{Key: "(a, b)", Action: ConflictUpdate})
		if err != nil {
			t.Fatalf("buildInsert() error = %v", err)
		}
		want := "INSERT INTO t (a, b, v) VALUES (?, ?, ?) ON CONFLICT (a, b) DO UPDATE SET v = excluded.v"
		if sqlText != want {
			t.Errorf("sql = %q, want %q", sqlText, want)
		}
	})
}

func TestBuildUpdate(t *testing.T) {
	t.Run("set values precede compared values", func(t *testing.T) {
		sqlText, args, err := buildUpdate("t", Row{"b": 2, "a": 1},
			[]Condition{{Column: "id", Op: OpEq, Value: 9}})
		if err != nil {
			t.Fatalf("buildUpdate() error = %v", err)
		}
		want := "UPDATE t SET a = ?, b = ? WHERE (id = ?)"
		if sqlText != want {
			t.Errorf("sql = %q, want %q", sqlText, want)
		}
		if !reflect.DeepEqual(args, []any{1, 2, 9}) {
			t.Errorf("args = %v, want [1 2 9]", args)
		}
	})

	t.Run("empty row is an error", func(t *testing.T) {
		_, _, err := buildUpdate("t", Row{}, nil)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("error = %v, want ValidationError", err)
		}
	})
}

func TestBuildDelete(t *testing.T) {
	sqlText, args, err := buildDelete("t", []Condition{
		{Column: "id", Op: OpLT, Value: 10},
		{Column: "state", Op: OpEq, Value: "stale", Join: ConnOr},
	})
	if err != nil {
		t.Fatalf("buildDelete() error = %v", err)
	}
	want := "DELETE FROM t WHERE (id < ?) OR (state = ?)"
	if sqlText != want {
		t.Errorf("sql = %q, want %q", sqlText, want)
	}
	if !reflect.DeepEqual(args, []any{10, "stale"}) {
		t.Errorf("args = %v", args)
	}
}

func TestBuildCreateTable(t *testing.T) {
	t.Run("modifier order is fixed", func(t *testing.T) {
		sqlText, err := buildCreateTable("events", Schema{
			"id": {Type: TypeInteger, PrimaryKey: true, NotNull: true},
			"owner": {Type: TypeInteger, References: &ForeignKey{
				Table: "students", Column: "id",
				OnDelete: FKCascade, OnUpdate: FKNoAction,
			}},
			"title": {Type: TypeText, NotNull: true, Default: "untitled", HasDefault: true},
		})
		if err != nil {
			t.Fatalf("buildCreateTable() error = %v", err)
		}
		want := "CREATE TABLE IF NOT EXISTS events (" +
			"id INTEGER NOT NULL PRIMARY KEY, " +
			"owner INTEGER REFERENCES students(id) ON DELETE CASCADE ON UPDATE NO ACTION, " +
			"title TEXT NOT NULL DEFAULT 'untitled')"
		if sqlText != want {
			t.Errorf("sql = %q\nwant %q", sqlText, want)
		}
	})

	t.Run("empty schema is an error", func(t *testing.T) {
		_, err := buildCreateTable("t", Schema{})
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("error = %v, want ValidationError", err)
		}
	})

	t.Run("unknown column type is an error", func(t *testing.T) {
		_, err := buildCreateTable("t", Schema{"a": {Type: "BLOB"}})
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("error = %v, want ValidationError", err)
		}
	})

	t.Run("unsafe foreign key reference is an error", func(t *testing.T) {
		_, err := buildCreateTable("t", Schema{
			"a": {Type: TypeInteger, References: &ForeignKey{Table: "x;", Column: "id"}},
		})
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("error = %v, want ValidationError", err)
		}
	})
}

func TestBuildDropTable(t *testing.T) {
	sqlText, err := buildDropTable("events")
	if err != nil {
		t.Fatalf("buildDropTable() error = %v", err)
	}
	if sqlText != "DROP TABLE IF EXISTS events" {
		t.Errorf("sql = %q", sqlText)
	}
}

func TestDefaultLiteral(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{name: "nil", value: nil, want: "NULL"},
		{name: "true", value: true, want: "TRUE"},
		{name: "false", value: false, want: "FALSE"},
		{name: "int", value: 42, want: "42"},
		{name: "negative float", value: -2.5, want: "-2.5"},
		{name: "plain string", value: "abc", want: "'abc'"},
		{name: "string with quote", value: "it's", want: "'it''s'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := defaultLiteral(tt.value)
			if err != nil {
				t.Fatalf("defaultLiteral(%v) error = %v", tt.value, err)
			}
			if got != tt.want {
				t.Errorf("defaultLiteral(%v) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}

	t.Run("unsupported type is an error", func(t *testing.T) {
		if _, err := defaultLiteral([]int{1}); err == nil {
			t.Error("defaultLiteral() should fail for slices")
		}
	})
}
