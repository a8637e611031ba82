// Package shutdown coordinates graceful process termination.
//
// Components register teardown jobs during startup; the coordinator runs
// them exactly once, in reverse registration order, when the process is
// asked to stop. A job reports success or failure, and failures are logged
// without interrupting the remaining jobs — teardown always runs to the end.
//
// Usage:
//
//	coord := shutdown.NewCoordinator()
//	coord.SetLogger(logger)
//
//	st, err := store.Open(ctx, cfg, coord, logger)
//	// store registered its close job
//
//	<-ctx.Done()
//	coord.Run()
package shutdown
