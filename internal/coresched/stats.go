package coresched

// Stats is the snapshot aggregate from spec.md §3.
type Stats struct {
	// QueuedBusy is the current admission-queue depth.
	QueuedBusy int
	// QueuedTotal is the configured queue_limit (queue capacity).
	QueuedTotal int
	// SuspendedCount is the number of busy contexts currently parked
	// mid-body (as opposed to the single one actively running).
	SuspendedCount int
	// BusyWorkers is the number of contexts currently bound to a task.
	BusyWorkers int
	// TotalWorkers is the configured worker_limit (pool capacity).
	TotalWorkers int
}
