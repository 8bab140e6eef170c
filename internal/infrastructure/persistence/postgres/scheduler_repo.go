package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/unimi-net/campus-hub/internal/domain/scheduler"
	"github.com/unimi-net/campus-hub/internal/domain/shared"
)

// SchedulerRepository persists scheduler.ScheduledTask via a SELECT ... FOR
// UPDATE SKIP LOCKED claim, so multiple worker replicas never double-run a
// task (§9's durable task table redesign).
type SchedulerRepository struct {
	conn *Connection
}

func NewSchedulerRepository(conn *Connection) *SchedulerRepository {
	return &SchedulerRepository{conn: conn}
}

var _ scheduler.Repository = (*SchedulerRepository)(nil)

func (r *SchedulerRepository) Enqueue(ctx context.Context, task *scheduler.ScheduledTask) error {
	var interval int64
	if task.Recurrence.Interval > 0 {
		interval = int64(task.Recurrence.Interval / time.Second)
	}
	err := r.conn.QueryRow(ctx, `
		INSERT INTO scheduled_tasks (name, payload, not_before, recurrence_interval_seconds, recurrence_once, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id
	`, task.Name, task.Payload, task.NotBefore, interval, task.Recurrence.Once, task.CreatedAt).Scan(&task.ID)
	if err != nil {
		return shared.WrapError("scheduler", "Enqueue", shared.ErrStoreIntegrity, "failed to enqueue task", err)
	}
	return nil
}

func (r *SchedulerRepository) ClaimDue(ctx context.Context, limit int) ([]*scheduler.ScheduledTask, error) {
	var out []*scheduler.ScheduledTask
	err := r.conn.WithTx(ctx, TxOptions{}, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT id, name, payload, not_before, recurrence_interval_seconds, recurrence_once, claimed_at, created_at
			FROM scheduled_tasks
			WHERE claimed_at IS NULL AND not_before <= NOW()
			ORDER BY not_before
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		`, limit)
		if err != nil {
			return err
		}
		var ids []int64
		for rows.Next() {
			t, err := scanScheduledTask(rows)
			if err != nil {
				rows.Close()
				return err
			}
			out = append(out, t)
			ids = append(ids, t.ID)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		now := time.Now()
		_, err = tx.Exec(ctx, `UPDATE scheduled_tasks SET claimed_at = $1 WHERE id = ANY($2)`, now, ids)
		if err != nil {
			return err
		}
		for _, t := range out {
			t.ClaimedAt = &now
		}
		return nil
	})
	if err != nil {
		return nil, shared.WrapError("scheduler", "ClaimDue", shared.ErrStoreIntegrity, "failed to claim due tasks", err)
	}
	return out, nil
}

func (r *SchedulerRepository) Ack(ctx context.Context, taskID int64, next *scheduler.ScheduledTaskReschedule) error {
	var err error
	if next == nil {
		_, err = r.conn.Exec(ctx, `DELETE FROM scheduled_tasks WHERE id = $1`, taskID)
	} else {
		_, err = r.conn.Exec(ctx, `UPDATE scheduled_tasks SET claimed_at = NULL, not_before = $1 WHERE id = $2`,
			next.NotBefore, taskID)
	}
	if err != nil {
		return shared.WrapError("scheduler", "Ack", shared.ErrStoreIntegrity, "failed to ack task", err)
	}
	return nil
}

func (r *SchedulerRepository) Release(ctx context.Context, taskID int64) error {
	_, err := r.conn.Exec(ctx, `UPDATE scheduled_tasks SET claimed_at = NULL WHERE id = $1`, taskID)
	if err != nil {
		return shared.WrapError("scheduler", "Release", shared.ErrStoreIntegrity, "failed to release task", err)
	}
	return nil
}

func scanScheduledTask(row rowScanner) (*scheduler.ScheduledTask, error) {
	var (
		id                  int64
		name                string
		payload             []byte
		notBefore           time.Time
		intervalSeconds     int64
		once                bool
		claimedAt           *time.Time
		createdAt           time.Time
	)
	if err := row.Scan(&id, &name, &payload, &notBefore, &intervalSeconds, &once, &claimedAt, &createdAt); err != nil {
		return nil, err
	}
	return &scheduler.ScheduledTask{
		ID:        id,
		Name:      name,
		Payload:   payload,
		NotBefore: notBefore,
		Recurrence: scheduler.Recurrence{
			Interval: time.Duration(intervalSeconds) * time.Second,
			Once:     once,
		},
		ClaimedAt: claimedAt,
		CreatedAt: createdAt,
	}, nil
}
