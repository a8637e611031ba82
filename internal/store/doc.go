// Package store provides the embedded SQLite access layer for roster-core.
//
// This package manages:
//   - A single persistent connection per logical database file
//   - Injection-safe query assembly from typed table/condition descriptions
//   - A bounded prepared-statement cache keyed by exact SQL text
//   - Explicit BEGIN/COMMIT/ROLLBACK transaction control
//   - Connection teardown via the shutdown coordinator
//
// Security Considerations:
//   - Identifiers (table/column names) are validated before they are
//     interpolated into SQL text; everything else is a bound parameter
//   - Database file permissions are set to 0600 (owner read/write only)
//
// Usage:
//
//	st, err := store.Open(ctx, store.Config{Name: "records", Dir: cfg.Database.DataDir}, coordinator, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	err = st.PrepareTable(ctx, "students", store.Schema{
//	    "id":   {Type: store.TypeInteger, PrimaryKey: true},
//	    "name": {Type: store.TypeText, NotNull: true},
//	})
//
//	rows, err := st.Select(ctx, "students", []string{"name"}, []store.Condition{
//	    {Column: "id", Op: store.OpEq, Value: 7},
//	}, 0, 0)
//
// Higher-level record managers define schemas and business rules; this
// package only guarantees that whatever they pass through cannot smuggle
// SQL text into the engine.
package store
