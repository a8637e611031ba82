package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// The builder assembles SQL text plus the matching ordered parameter list
// from the typed descriptions in schema.go. Identifiers are validated before
// concatenation; values never enter the SQL text. Column sets taken from Go
// maps are sorted so the same logical query always produces the same SQL
// text, which keeps the statement cache effective.

// buildCreateTable emits CREATE TABLE IF NOT EXISTS with one definition per
// column. Modifiers serialize in fixed order: type, NOT NULL, PRIMARY KEY,
// DEFAULT, REFERENCES.
func buildCreateTable(table string, schema Schema) (string, error) {
	if err := checkIdentifier("table", table); err != nil {
		return "", err
	}
	if len(schema) == 0 {
		return "", validationf("create table %q: schema has no columns", table)
	}

	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(table)
	b.WriteString(" (")

	for i, name := range sortedKeys(schema) {
		col := schema[name]
		if err := checkIdentifier("column", name); err != nil {
			return "", err
		}
		if !col.Type.Valid() {
			return "", validationf("column %q: unknown type %q", name, col.Type)
		}

		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(name)
		b.WriteByte(' ')
		b.WriteString(string(col.Type))

		if col.NotNull {
			b.WriteString(" NOT NULL")
		}
		if col.PrimaryKey {
			b.WriteString(" PRIMARY KEY")
		}
		if col.HasDefault {
			lit, err := defaultLiteral(col.Default)
			if err != nil {
				return "", validationf("column %q: %v", name, err)
			}
			b.WriteString(" DEFAULT ")
			b.WriteString(lit)
		}
		if fk := col.References; fk != nil {
			if err := checkIdentifier("referenced table", fk.Table); err != nil {
				return "", err
			}
			if err := checkIdentifier("referenced column", fk.Column); err != nil {
				return "", err
			}
			fmt.Fprintf(&b, " REFERENCES %s(%s)", fk.Table, fk.Column)
			if fk.OnDelete != "" {
				if !fk.OnDelete.Valid() {
					return "", validationf("column %q: unknown ON DELETE action %q", name, fk.OnDelete)
				}
				b.WriteString(" ON DELETE ")
				b.WriteString(string(fk.OnDelete))
			}
			if fk.OnUpdate != "" {
				if !fk.OnUpdate.Valid() {
					return "", validationf("column %q: unknown ON UPDATE action %q", name, fk.OnUpdate)
				}
				b.WriteString(" ON UPDATE ")
				b.WriteString(string(fk.OnUpdate))
			}
		}
	}

	b.WriteByte(')')
	return b.String(), nil
}

// buildDropTable emits DROP TABLE IF EXISTS.
func buildDropTable(table string) (string, error) {
	if err := checkIdentifier("table", table); err != nil {
		return "", err
	}
	return "DROP TABLE IF EXISTS " + table, nil
}

// buildSelect emits a SELECT with optional WHERE, LIMIT, and OFFSET. A limit
// or offset of zero or less means "unbounded" and the clause is omitted
// entirely. An empty column list selects *. SQLite cannot express OFFSET
// without LIMIT, so an offset on its own rides on LIMIT -1.
func buildSelect(table string, columns []string, conds []Condition, limit, offset int) (string, []any, error) {
	if err := checkIdentifier("table", table); err != nil {
		return "", nil, err
	}

	cols := "*"
	if len(columns) > 0 {
		for _, c := range columns {
			if err := checkIdentifier("column", c); err != nil {
				return "", nil, err
			}
		}
		cols = strings.Join(columns, ", ")
	}

	where, args, err := whereClause(conds)
	if err != nil {
		return "", nil, err
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(cols)
	b.WriteString(" FROM ")
	b.WriteString(table)
	b.WriteString(where)

	switch {
	case limit > 0:
		b.WriteString(" LIMIT ?")
		args = append(args, limit)
		if offset > 0 {
			b.WriteString(" OFFSET ?")
			args = append(args, offset)
		}
	case offset > 0:
		b.WriteString(" LIMIT -1 OFFSET ?")
		args = append(args, offset)
	}

	return b.String(), args, nil
}

// buildInsert emits one INSERT with one VALUES tuple per row. The column
// list comes from the first row; every row must carry exactly that column
// set. Conflict handling: ROLLBACK/FAIL/IGNORE/REPLACE become an INSERT OR
// clause, NOTHING/UPDATE become an ON CONFLICT upsert clause, which is the
// shape the engine actually accepts for each action.
func buildInsert(table string, rows []Row, policy *ConflictPolicy) (string, []any, error) {
	if err := checkIdentifier("table", table); err != nil {
		return "", nil, err
	}
	if len(rows) == 0 {
		return "", nil, validationf("insert into %q: no rows given", table)
	}

	cols := sortedKeys(rows[0])
	if len(cols) == 0 {
		return "", nil, validationf("insert into %q: first row has no columns", table)
	}
	for _, c := range cols {
		if err := checkIdentifier("column", c); err != nil {
			return "", nil, err
		}
	}
	for i, row := range rows {
		if len(row) != len(cols) {
			return "", nil, validationf("insert into %q: row %d does not match the first row's columns", table, i)
		}
		for _, c := range cols {
			if _, ok := row[c]; !ok {
				return "", nil, validationf("insert into %q: row %d is missing column %q", table, i, c)
			}
		}
	}

	var b strings.Builder
	b.WriteString("INSERT")
	if policy != nil {
		if !policy.Action.Valid() {
			return "", nil, validationf("insert into %q: unknown conflict action %q", table, policy.Action)
		}
		switch policy.Action {
		case ConflictRollback, ConflictFail, ConflictIgnore, ConflictReplace:
			b.WriteString(" OR ")
			b.WriteString(string(policy.Action))
		}
	}
	b.WriteString(" INTO ")
	b.WriteString(table)
	b.WriteString(" (")
	b.WriteString(strings.Join(cols, ", "))
	b.WriteString(") VALUES ")

	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"
	args := make([]any, 0, len(rows)*len(cols))
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(tuple)
		for _, c := range cols {
			args = append(args, row[c])
		}
	}

	if policy != nil && (policy.Action == ConflictNothing || policy.Action == ConflictUpdate) {
		clause, err := upsertClause(table, cols, policy)
		if err != nil {
			return "", nil, err
		}
		b.WriteString(clause)
	}

	return b.String(), args, nil
}

// upsertClause emits the ON CONFLICT clause for NOTHING/UPDATE actions.
func upsertClause(table string, cols []string, policy *ConflictPolicy) (string, error) {
	var b strings.Builder
	b.WriteString(" ON CONFLICT")

	if policy.Key != "" {
		if err := checkIdentifier("conflict key", policy.Key); err != nil {
			return "", err
		}
		key := policy.Key
		if !strings.HasPrefix(key, "(") {
			key = "(" + key + ")"
		}
		b.WriteByte(' ')
		b.WriteString(key)
	}

	if policy.Action == ConflictNothing {
		b.WriteString(" DO NOTHING")
		return b.String(), nil
	}

	// DO UPDATE: the engine requires a conflict target, and we refresh every
	// inserted column that is not part of the key from the excluded row.
	if policy.Key == "" {
		return "", validationf("insert into %q: conflict action UPDATE requires a key", table)
	}
	keyCols := conflictKeyColumns(policy.Key)
	b.WriteString(" DO UPDATE SET ")
	wrote := false
	for _, c := range cols {
		if keyCols[c] {
			continue
		}
		if wrote {
			b.WriteString(", ")
		}
		b.WriteString(c)
		b.WriteString(" = excluded.")
		b.WriteString(c)
		wrote = true
	}
	if !wrote {
		return "", validationf("insert into %q: conflict action UPDATE has no columns outside the key", table)
	}
	return b.String(), nil
}

// conflictKeyColumns expands a conflict key ("id" or "(id, term)") into the
// set of column names it covers.
func conflictKeyColumns(key string) map[string]bool {
	key = strings.TrimPrefix(key, "(")
	key = strings.TrimSuffix(key, ")")
	set := make(map[string]bool)
	for _, part := range strings.Split(key, ",") {
		set[strings.TrimSpace(part)] = true
	}
	return set
}

// buildUpdate emits UPDATE ... SET with one placeholder per column followed
// by the WHERE chain. Parameter order is all SET values, then all compared
// values, matching placeholder order left to right.
func buildUpdate(table string, row Row, conds []Condition) (string, []any, error) {
	if err := checkIdentifier("table", table); err != nil {
		return "", nil, err
	}
	cols := sortedKeys(row)
	if len(cols) == 0 {
		return "", nil, validationf("update %q: no columns to set", table)
	}

	var b strings.Builder
	b.WriteString("UPDATE ")
	b.WriteString(table)
	b.WriteString(" SET ")

	args := make([]any, 0, len(cols)+len(conds))
	for i, c := range cols {
		if err := checkIdentifier("column", c); err != nil {
			return "", nil, err
		}
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c)
		b.WriteString(" = ?")
		args = append(args, row[c])
	}

	where, whereArgs, err := whereClause(conds)
	if err != nil {
		return "", nil, err
	}
	b.WriteString(where)

	return b.String(), append(args, whereArgs...), nil
}

// buildDelete emits DELETE FROM with the WHERE chain.
func buildDelete(table string, conds []Condition) (string, []any, error) {
	if err := checkIdentifier("table", table); err != nil {
		return "", nil, err
	}
	where, args, err := whereClause(conds)
	if err != nil {
		return "", nil, err
	}
	return "DELETE FROM " + table + where, args, nil
}

// whereClause renders an ordered condition chain into " WHERE (a = ?) AND
// (b > ?)" plus the compared values. Each predicate is parenthesized on its
// own; the connective of element i joins it to element i-1, and the first
// element's connective is discarded. An empty chain yields the empty string.
func whereClause(conds []Condition) (string, []any, error) {
	if len(conds) == 0 {
		return "", nil, nil
	}

	var b strings.Builder
	b.WriteString(" WHERE ")
	args := make([]any, 0, len(conds))

	for i, c := range conds {
		if err := checkIdentifier("column", c.Column); err != nil {
			return "", nil, err
		}
		if !c.Op.Valid() {
			return "", nil, validationf("condition on %q: unknown operator %q", c.Column, c.Op)
		}
		if i > 0 {
			join := c.Join
			if join == "" {
				join = ConnAnd
			}
			if !join.Valid() {
				return "", nil, validationf("condition on %q: unknown connective %q", c.Column, c.Join)
			}
			b.WriteByte(' ')
			b.WriteString(string(join))
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "(%s %s ?)", c.Column, c.Op)
		args = append(args, c.Value)
	}

	return b.String(), args, nil
}

// defaultLiteral serializes a column default as a SQL literal. Strings are
// single-quoted with doubled quotes, booleans use the TRUE/FALSE keywords,
// and numbers go through their JSON encoding, which cannot contain quoting
// or statement punctuation.
func defaultLiteral(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "NULL", nil
	case bool:
		if t {
			return "TRUE", nil
		}
		return "FALSE", nil
	case string:
		return "'" + strings.ReplaceAll(t, "'", "''") + "'", nil
	default:
		enc, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("unsupported default value %T", v)
		}
		lit := string(enc)
		if !numericLiteral(lit) {
			return "", fmt.Errorf("unsupported default value %T", v)
		}
		return lit, nil
	}
}

// numericLiteral reports whether s looks like a bare JSON number.
func numericLiteral(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r == '-' || r == '+' || r == '.' || r == 'e' || r == 'E':
		default:
			return false
		}
	}
	return true
}

// sortedKeys returns the keys of m in lexical order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
