package scheduler

import (
	"context"
	"time"
)

// Repository is the persistence boundary for ScheduledTask: a single
// claim/execute/ack transaction per §9's durable task table design.
type Repository interface {
	// Enqueue inserts a new task (e.g. a delete_message delay, §4.9).
	Enqueue(ctx context.Context, task *ScheduledTask) error

	// ClaimDue atomically selects up to limit due, unclaimed tasks and marks
	// them claimed in the same transaction, so two workers never run the
	// same task concurrently.
	ClaimDue(ctx context.Context, limit int) ([]*ScheduledTask, error)

	// Ack marks a claimed task complete, rescheduling it if next is non-nil,
	// or deleting it if next is nil.
	Ack(ctx context.Context, taskID int64, next *ScheduledTaskReschedule) error

	// Release unclaims a task without completing it — used when a worker
	// crashes mid-run so the task remains due (§4.9's crash tolerance).
	Release(ctx context.Context, taskID int64) error
}

// ScheduledTaskReschedule carries the next NotBefore for a recurring task.
type ScheduledTaskReschedule struct {
	NotBefore time.Time
}
