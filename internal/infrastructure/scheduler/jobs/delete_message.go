// Package jobs implements the standard Scheduler jobs of §4.9:
// delete_message (durable task table, via the TaskRunner below),
// refresh_group_info and sync_external_blocklist (recurring jobs
// registered on internal/infrastructure/scheduler's generic Scheduler with
// a fixed IntervalSchedule each).
//
// Grounded on original_source/telegrambot/tasks.py's scheduled task
// functions; re-architected per SPEC_FULL.md §9's "background task
// framework" note into a claim/execute/ack durable table for the one job
// that is enqueued dynamically (delete_message) and ordinary recurring
// jobs for the other two, which run on a fixed wall-clock cadence instead.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/unimi-net/campus-hub/internal/domain/scheduler"
	"github.com/unimi-net/campus-hub/internal/domain/shared"
	"github.com/unimi-net/campus-hub/internal/infrastructure/external/telegram"
	"github.com/unimi-net/campus-hub/pkg/logger"
)

// TaskNameDeleteMessage is the durable task table's job name for a delayed
// message deletion (§4.9).
const TaskNameDeleteMessage = "delete_message"

// deleteMessagePayload is the JSON payload shape for TaskNameDeleteMessage rows.
type deleteMessagePayload struct {
	ChatID    int64 `json:"chat_id"`
	MessageID int64 `json:"message_id"`
}

// Deleter adapts the durable task Repository into the narrow
// moderation.TaskScheduler interface the Moderation Engine depends on, so
// confirmation/usage-hint messages are deleted via the durable table rather
// than a blocking time.Sleep in the request handler (§5).
type Deleter struct {
	tasks scheduler.Repository
}

// NewDeleter constructs a Deleter.
func NewDeleter(tasks scheduler.Repository) *Deleter {
	return &Deleter{tasks: tasks}
}

// ScheduleMessageDeletion enqueues a one-shot delete_message task due after.
func (d *Deleter) ScheduleMessageDeletion(ctx context.Context, chatID shared.ChatID, messageID int64, after time.Duration) error {
	payload, err := json.Marshal(deleteMessagePayload{ChatID: chatID.Int64(), MessageID: messageID})
	if err != nil {
		return fmt.Errorf("jobs: marshal delete_message payload: %w", err)
	}
	task, err := scheduler.NewScheduledTask(scheduler.NewScheduledTaskParams{
		Name:       TaskNameDeleteMessage,
		Payload:    payload,
		NotBefore:  time.Now().Add(after),
		Recurrence: scheduler.Recurrence{Once: true},
	})
	if err != nil {
		return err
	}
	return d.tasks.Enqueue(ctx, task)
}

// TaskRunner is the single internal/infrastructure/scheduler.Job that
// bridges the generic timer-based scheduler to the durable task table: on
// every tick, it claims due rows and dispatches by Name to a registered
// handler. Only delete_message is registered today, but the dispatch table
// is open to future durable, per-instance background work.
type TaskRunner struct {
	tasks    scheduler.Repository
	client   *telegram.Client
	log      *logger.Logger
	claimLen int
}

// NewTaskRunner constructs a TaskRunner claiming up to claimLimit due tasks per tick.
func NewTaskRunner(tasks scheduler.Repository, client *telegram.Client, log *logger.Logger, claimLimit int) *TaskRunner {
	if claimLimit <= 0 {
		claimLimit = 20
	}
	return &TaskRunner{tasks: tasks, client: client, log: log, claimLen: claimLimit}
}

func (t *TaskRunner) Name() string        { return "task_runner" }
func (t *TaskRunner) Description() string { return "claims and executes due rows from the durable scheduled_tasks table" }

// Run claims due tasks and executes each to completion, releasing (not
// acking) any task whose handler returns an error, so the task stays due
// rather than silently dropped (§4.9, §9). A handler panic is not
// recovered here.
func (t *TaskRunner) Run(ctx context.Context) error {
	due, err := t.tasks.ClaimDue(ctx, t.claimLen)
	if err != nil {
		return fmt.Errorf("jobs: claim due tasks: %w", err)
	}
	for _, task := range due {
		t.execute(ctx, task)
	}
	return nil
}

func (t *TaskRunner) execute(ctx context.Context, task *scheduler.ScheduledTask) {
	var err error
	switch task.Name {
	case TaskNameDeleteMessage:
		err = t.runDeleteMessage(ctx, task)
	default:
		t.log.Warn("jobs: unknown task name, releasing", logger.String("name", task.Name))
		_ = t.tasks.Release(ctx, task.ID)
		return
	}
	if err != nil {
		t.log.Error("jobs: task failed, releasing for retry", logger.Err(err), logger.String("name", task.Name))
		_ = t.tasks.Release(ctx, task.ID)
		return
	}
	next := task.NextOccurrence(time.Now())
	var reschedule *scheduler.ScheduledTaskReschedule
	if next != nil {
		reschedule = &scheduler.ScheduledTaskReschedule{NotBefore: *next}
	}
	if err := t.tasks.Ack(ctx, task.ID, reschedule); err != nil {
		t.log.Error("jobs: failed to ack task", logger.Err(err), logger.String("name", task.Name))
	}
}

func (t *TaskRunner) runDeleteMessage(ctx context.Context, task *scheduler.ScheduledTask) error {
	var payload deleteMessagePayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		return shared.NewDomainError("jobs", "delete_message", shared.ErrParse, "malformed payload")
	}
	err := t.client.DeleteMessage(ctx, payload.ChatID, payload.MessageID)
	if err == nil || isAlreadyDeleted(err) {
		// Idempotent per §8: a repeated run must not error.
		return nil
	}
	return err
}

func isAlreadyDeleted(err error) bool {
	var apiErr *telegram.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == 400
	}
	return false
}
