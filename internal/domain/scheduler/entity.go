// Package scheduler models the durable task table ScheduledTask entity
// (§3, §4.9, §9's "background task framework" re-architecture note): a
// claim/execute/ack row instead of an in-process timer, so a crash leaves
// an incomplete job due rather than silently dropped.
package scheduler

import (
	"time"

	"github.com/unimi-net/campus-hub/internal/domain/shared"
)

// Recurrence describes how a completed task is rescheduled.
type Recurrence struct {
	// Interval, when non-zero, reschedules NotBefore = completedAt + Interval.
	Interval time.Duration
	// Once, when true, the task is deleted (or marked done) after one run.
	Once bool
}

// ScheduledTask is a durable, named, due-dated unit of background work.
type ScheduledTask struct {
	ID         int64
	Name       string
	Payload    []byte // opaque JSON, decoded by the named job's handler
	NotBefore  time.Time
	Recurrence Recurrence
	ClaimedAt  *time.Time
	CreatedAt  time.Time
}

// NewScheduledTaskParams carries the fields needed to enqueue a task.
type NewScheduledTaskParams struct {
	Name       string
	Payload    []byte
	NotBefore  time.Time
	Recurrence Recurrence
}

// NewScheduledTask validates params and constructs a fresh ScheduledTask.
func NewScheduledTask(params NewScheduledTaskParams) (*ScheduledTask, error) {
	if params.Name == "" {
		return nil, shared.NewDomainError("scheduler", "New", shared.ErrValidation, "task name is required")
	}
	if params.NotBefore.IsZero() {
		params.NotBefore = time.Now()
	}
	return &ScheduledTask{
		Name:       params.Name,
		Payload:    params.Payload,
		NotBefore:  params.NotBefore,
		Recurrence: params.Recurrence,
		CreatedAt:  time.Now(),
	}, nil
}

// IsDue reports whether the task should run at time t.
func (t *ScheduledTask) IsDue(at time.Time) bool {
	return t.ClaimedAt == nil && !at.Before(t.NotBefore)
}

// NextOccurrence computes the rescheduled NotBefore after a successful run
// completing at completedAt, or nil if the task should not recur.
func (t *ScheduledTask) NextOccurrence(completedAt time.Time) *time.Time {
	if t.Recurrence.Once || t.Recurrence.Interval <= 0 {
		return nil
	}
	next := completedAt.Add(t.Recurrence.Interval)
	return &next
}
