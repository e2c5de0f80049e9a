package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Task metrics
	TasksStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "corosched_tasks_started_total",
			Help: "Total number of tasks bound to a worker context",
		},
		[]string{"type"},
	)

	TasksRecycled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "corosched_tasks_recycled_total",
			Help: "Total number of tasks that ran recycle() after finishing",
		},
		[]string{"type", "outcome"}, // outcome: completed | killed | errored
	)

	TaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "corosched_task_duration_seconds",
			Help:    "Wall-clock time from bind to finish for a task",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 18),
		},
		[]string{"type"},
	)

	TasksKilled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "corosched_tasks_killed_total",
			Help: "Total number of tasks killed via Task.Kill",
		},
		[]string{"type"},
	)

	// ContextPool / Scheduler metrics
	BusyContexts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "corosched_busy_contexts",
			Help: "Currently busy worker contexts",
		},
	)

	TotalContexts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "corosched_total_contexts",
			Help: "Worker contexts allocated so far, up to worker_limit",
		},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "corosched_admission_queue_depth",
			Help: "Current number of tasks waiting in the admission queue",
		},
	)

	QueueRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "corosched_admission_queue_rejected_total",
			Help: "Total number of tasks rejected because the admission queue was full",
		},
	)

	PendingResumes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "corosched_pending_resumes",
			Help: "Delayed resumes awaiting the next cycle-end",
		},
	)

	// Timer metrics
	TimerArmed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "corosched_timer_armed_deadlines",
			Help: "Number of deadlines currently held in the timer heap",
		},
	)

	TimerFired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "corosched_timer_fired_total",
			Help: "Total number of timer deadlines that elapsed and resumed a task",
		},
	)

	// Pool / Throttle metrics
	PoolBusyInstances = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "corosched_pool_busy_instances",
			Help: "Busy instances in a TaskPool",
		},
		[]string{"pool"},
	)

	PoolRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "corosched_pool_rejected_total",
			Help: "Total TaskPool.Start/Restore calls rejected because the pool was at capacity",
		},
		[]string{"pool"},
	)

	ThrottleSuspended = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "corosched_throttle_suspended",
			Help: "1 if the throttler has told its Suspendable to suspend, else 0",
		},
		[]string{"pool"},
	)

	// Failure log metrics (see internal/pool.FailureLog, adapted from the
	// teacher's dead-letter queue)
	FailureLogSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "corosched_failure_log_size",
			Help: "Current number of entries retained in the in-memory failure log",
		},
	)

	FailureLogAdded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "corosched_failure_log_added_total",
			Help: "Total number of task failures recorded by the default exception handler",
		},
	)

	// Redis metrics (poolstore backing store for Restorable pools)
	RedisOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "corosched_redis_operation_duration_seconds",
			Help:    "Redis operation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
		},
		[]string{"operation"},
	)

	RedisErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "corosched_redis_errors_total",
			Help: "Total number of Redis errors",
		},
		[]string{"operation"},
	)
)

// RecordTaskStart records a task being bound to a worker context.
func RecordTaskStart(taskType string) {
	TasksStarted.WithLabelValues(taskType).Inc()
}

// RecordTaskRecycle records a task completing its life-cycle.
func RecordTaskRecycle(taskType, outcome string, duration float64) {
	TasksRecycled.WithLabelValues(taskType, outcome).Inc()
	TaskDuration.WithLabelValues(taskType).Observe(duration)
}

// RecordTaskKill records a task being killed.
func RecordTaskKill(taskType string) {
	TasksKilled.WithLabelValues(taskType).Inc()
}

// SetBusyContexts sets the busy-context gauge.
func SetBusyContexts(n float64) {
	BusyContexts.Set(n)
}

// SetTotalContexts sets the allocated-context gauge.
func SetTotalContexts(n float64) {
	TotalContexts.Set(n)
}

// SetQueueDepth sets the admission-queue depth gauge.
func SetQueueDepth(n float64) {
	QueueDepth.Set(n)
}

// RecordQueueRejected records an admission-queue overflow.
func RecordQueueRejected() {
	QueueRejected.Inc()
}

// SetPendingResumes sets the delayed-resume gauge.
func SetPendingResumes(n float64) {
	PendingResumes.Set(n)
}

// SetTimerArmed sets the timer-heap size gauge.
func SetTimerArmed(n float64) {
	TimerArmed.Set(n)
}

// RecordTimerFired records a deadline elapsing.
func RecordTimerFired() {
	TimerFired.Inc()
}

// SetPoolBusyInstances sets the busy-instance gauge for a named pool.
func SetPoolBusyInstances(pool string, n float64) {
	PoolBusyInstances.WithLabelValues(pool).Set(n)
}

// RecordPoolRejected records a TaskPool at capacity.
func RecordPoolRejected(pool string) {
	PoolRejected.WithLabelValues(pool).Inc()
}

// SetThrottleSuspended sets whether a pool's throttler believes its
// Suspendable is currently suspended.
func SetThrottleSuspended(pool string, suspended bool) {
	v := 0.0
	if suspended {
		v = 1.0
	}
	ThrottleSuspended.WithLabelValues(pool).Set(v)
}

// SetFailureLogSize sets the failure-log size gauge.
func SetFailureLogSize(n float64) {
	FailureLogSize.Set(n)
}

// IncrementFailureLogAdded increments the failure-log append counter.
func IncrementFailureLogAdded() {
	FailureLogAdded.Inc()
}

// RecordRedisOperation records a Redis operation's duration.
func RecordRedisOperation(operation string, duration float64) {
	RedisOperationDuration.WithLabelValues(operation).Observe(duration)
}

// RecordRedisError records a Redis operation failure.
func RecordRedisError(operation string) {
	RedisErrors.WithLabelValues(operation).Inc()
}
