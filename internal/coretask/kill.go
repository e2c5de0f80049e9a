package coretask

// killSignal is the sentinel panic value used to unwind a task's body
// on Kill. It's unexported so user code cannot construct or specifically
// recover it; a recover() in user code that doesn't type-switch still
// sees *something* panic through unless it swallows all panics, which
// is the closest Go gets to "TaskKilled must never be caught by user
// code".
type killSignal struct{}
