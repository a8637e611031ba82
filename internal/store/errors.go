package store

import (
	"errors"
	"fmt"
	"strings"
)

// ErrTxState classifies engine failures raised by transaction control issued
// in an invalid state: begin inside an open transaction, or commit/rollback
// with none open. The engine detects the condition — this layer only tags it
// so callers can branch with errors.Is(err, ErrTxState).
var ErrTxState = errors.New("invalid transaction state")

// ValidationError reports input that failed the safety checks before any SQL
// was sent to the engine: an unsafe identifier, an unknown operator, or a
// malformed request shape (empty insert, heterogeneous row keys).
// Operations failing validation are never retried.
type ValidationError struct {
	Detail string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Detail
}

// validationf builds a ValidationError from a format string.
func validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Detail: fmt.Sprintf(format, args...)}
}

// SchemaError reports an operation that targets a table unknown to the
// in-memory registry or, for select/delete, absent from the engine catalog.
type SchemaError struct {
	Op    string
	Table string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: no such table %q", e.Op, e.Table)
}

// EngineError wraps a failure reported by the SQLite engine with enough
// context (operation, table) to diagnose without reproducing. Transaction
// state violations (begin inside an open transaction, commit with none open)
// surface here too: the engine detects them, this layer does not.
type EngineError struct {
	Op    string
	Table string
	Err   error
}

func (e *EngineError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Op, e.Table, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// engineErr wraps err with operation and table context.
func engineErr(op, table string, err error) *EngineError {
	return &EngineError{Op: op, Table: table, Err: err}
}

// isTxStateMessage reports whether the engine text describes a transaction
// state violation. SQLite phrases these as "cannot start a transaction
// within a transaction" and "cannot commit/rollback - no transaction is
// active".
func isTxStateMessage(msg string) bool {
	return strings.Contains(msg, "no transaction is active") ||
		strings.Contains(msg, "within a transaction")
}
