package shutdown

import "sync"

// Logger defines the logging interface for the coordinator.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// job is one registered teardown action.
type job struct {
	label string
	run   func() bool
}

// Coordinator collects teardown jobs and runs them once during graceful
// termination. Registration after Run has started is accepted but the job
// will never execute; components should register during startup.
type Coordinator struct {
	mu     sync.Mutex
	jobs   []job
	logger Logger
	once   sync.Once
	done   bool
}

// NewCoordinator creates an empty coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{logger: noopLogger{}}
}

// SetLogger sets the logger for the coordinator.
func (c *Coordinator) SetLogger(logger Logger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger = logger
}

// Register adds a teardown job under a human-readable label. Jobs run in
// reverse registration order, so dependencies registered first are torn
// down last.
func (c *Coordinator) Register(label string, run func() bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		c.logger.Warn("shutdown job registered after teardown, ignoring", "job", label)
		return
	}
	c.jobs = append(c.jobs, job{label: label, run: run})
	c.logger.Debug("shutdown job registered", "job", label)
}

// Run executes every registered job exactly once. Later calls are no-ops.
// A panicking or failing job is logged and the remaining jobs still run.
// Returns true when every job reported success.
func (c *Coordinator) Run() bool {
	ok := true
	c.once.Do(func() {
		c.mu.Lock()
		jobs := c.jobs
		c.done = true
		c.mu.Unlock()

		c.logger.Info("running shutdown jobs", "count", len(jobs))
		for i := len(jobs) - 1; i >= 0; i-- {
			if !c.runOne(jobs[i]) {
				ok = false
			}
		}
	})
	return ok
}

// runOne executes a single job, converting a panic into a failure.
func (c *Coordinator) runOne(j job) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("shutdown job panicked", "job", j.label, "panic", r)
			ok = false
		}
	}()

	if !j.run() {
		c.logger.Error("shutdown job failed", "job", j.label)
		return false
	}
	c.logger.Debug("shutdown job complete", "job", j.label)
	return true
}

// Len returns the number of registered jobs.
func (c *Coordinator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.jobs)
}
