package store

// ColumnType is the declared SQLite storage type of a column.
type ColumnType string

const (
	TypeNull    ColumnType = "NULL"
	TypeInteger ColumnType = "INTEGER"
	TypeReal    ColumnType = "REAL"
	TypeText    ColumnType = "TEXT"
	TypeBoolean ColumnType = "BOOLEAN"
)

// Valid reports whether t is one of the declared column types.
func (t ColumnType) Valid() bool {
	switch t {
	case TypeNull, TypeInteger, TypeReal, TypeText, TypeBoolean:
		return true
	}
	return false
}

// ForeignKeyAction is the referential action taken when a referenced row is
// deleted or updated.
type ForeignKeyAction string

const (
	FKCascade  ForeignKeyAction = "CASCADE"
	FKSetNull  ForeignKeyAction = "SET NULL"
	FKNoAction ForeignKeyAction = "NO ACTION"
	FKRestrict ForeignKeyAction = "RESTRICT"
)

// Valid reports whether a is a recognised referential action.
func (a ForeignKeyAction) Valid() bool {
	switch a {
	case FKCascade, FKSetNull, FKNoAction, FKRestrict:
		return true
	}
	return false
}

// ForeignKey declares a REFERENCES clause on a column. OnDelete/OnUpdate may
// be empty, in which case the engine default (NO ACTION) applies.
type ForeignKey struct {
	Table    string
	Column   string
	OnDelete ForeignKeyAction
	OnUpdate ForeignKeyAction
}

// Column describes one column of a table.
type Column struct {
	Type       ColumnType
	PrimaryKey bool
	NotNull    bool

	// Default is serialized into the CREATE TABLE text as a SQL literal.
	// It is only emitted when HasDefault is true, so nil can be an explicit
	// DEFAULT NULL.
	Default    any
	HasDefault bool

	References *ForeignKey
}

// Schema maps column names to their definitions. Registered in memory when a
// table is created and dropped alongside it; the database file itself is the
// source of truth.
type Schema map[string]Column

// Operator is a WHERE-clause comparison operator.
type Operator string

const (
	OpEq   Operator = "="
	OpGT   Operator = ">"
	OpLT   Operator = "<"
	OpGE   Operator = ">="
	OpLE   Operator = "<="
	OpNE   Operator = "!="
	OpLike Operator = "LIKE"
)

// Valid reports whether o is a recognised comparison operator.
func (o Operator) Valid() bool {
	switch o {
	case OpEq, OpGT, OpLT, OpGE, OpLE, OpNE, OpLike:
		return true
	}
	return false
}

// Connective joins a condition to the one before it.
type Connective string

const (
	ConnAnd Connective = "AND"
	ConnOr  Connective = "OR"
)

// Valid reports whether c is AND or OR.
func (c Connective) Valid() bool {
	return c == ConnAnd || c == ConnOr
}

// Condition is one predicate of a WHERE chain. Join binds it to the previous
// condition and is ignored on the first element; an empty Join means AND.
// Conditions apply left to right with no grouping beyond the parentheses
// wrapped around each predicate.
type Condition struct {
	Column string
	Op     Operator
	Value  any
	Join   Connective
}

// ConflictAction selects what happens when an insert violates a uniqueness
// constraint.
type ConflictAction string

const (
	ConflictRollback ConflictAction = "ROLLBACK"
	ConflictFail     ConflictAction = "FAIL"
	ConflictIgnore   ConflictAction = "IGNORE"
	ConflictReplace  ConflictAction = "REPLACE"
	ConflictNothing  ConflictAction = "NOTHING"
	ConflictUpdate   ConflictAction = "UPDATE"
)

// Valid reports whether a is a recognised conflict action.
func (a ConflictAction) Valid() bool {
	switch a {
	case ConflictRollback, ConflictFail, ConflictIgnore, ConflictReplace,
		ConflictNothing, ConflictUpdate:
		return true
	}
	return false
}

// ConflictPolicy declares the conflict handling for an insert. Key names the
// conflicting column (or a parenthesized composite key) and is required for
// ConflictUpdate, optional for ConflictNothing, and unused by the OR-style
// actions (ROLLBACK, FAIL, IGNORE, REPLACE).
type ConflictPolicy struct {
	Key    string
	Action ConflictAction
}

// Row maps column names to scalar values for one row of an insert or the SET
// portion of an update.
type Row map[string]any
