package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/unimi-net/campus-hub/internal/domain/shared"
	"github.com/unimi-net/campus-hub/internal/domain/telegramuser"
)

// TelegramUserRepository persists telegramuser.TelegramUser via an atomic
// ON CONFLICT upsert, per §5's "concurrent upserts on user_id must use
// atomic upsert semantics" requirement.
type TelegramUserRepository struct {
	conn *Connection
}

// NewTelegramUserRepository constructs a TelegramUserRepository.
func NewTelegramUserRepository(conn *Connection) *TelegramUserRepository {
	return &TelegramUserRepository{conn: conn}
}

var _ telegramuser.Repository = (*TelegramUserRepository)(nil)

const telegramUserColumns = `id, first_name, last_name, username, language, reputation, warn_count, banned, last_seen, created_at, updated_at`

func (r *TelegramUserRepository) Upsert(ctx context.Context, user *telegramuser.TelegramUser) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO telegram_users (id, first_name, last_name, username, language, reputation, warn_count, banned, last_seen, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name  = EXCLUDED.last_name,
			username   = EXCLUDED.username,
			language   = EXCLUDED.language,
			reputation = EXCLUDED.reputation,
			warn_count = EXCLUDED.warn_count,
			banned     = EXCLUDED.banned,
			last_seen  = GREATEST(telegram_users.last_seen, EXCLUDED.last_seen),
			updated_at = EXCLUDED.updated_at
	`, int64(user.ID), user.FirstName, user.LastName, user.Username, user.Language,
		user.Reputation, user.WarnCount, user.Banned, user.LastSeen, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return shared.WrapError("telegramuser", "Upsert", shared.ErrStoreIntegrity, "failed to upsert telegram user", err)
	}
	return nil
}

func (r *TelegramUserRepository) FindByID(ctx context.Context, id shared.TelegramID) (*telegramuser.TelegramUser, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+telegramUserColumns+` FROM telegram_users WHERE id = $1`, int64(id))
	u, err := scanTelegramUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrUserNotFound
		}
		return nil, shared.WrapError("telegramuser", "FindByID", shared.ErrNotFound, "query failed", err)
	}
	return u, nil
}

func (r *TelegramUserRepository) FindByIDs(ctx context.Context, ids []shared.TelegramID) ([]*telegramuser.TelegramUser, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	raw := make([]int64, len(ids))
	for i, id := range ids {
		raw[i] = int64(id)
	}
	rows, err := r.conn.Query(ctx, `SELECT `+telegramUserColumns+` FROM telegram_users WHERE id = ANY($1)`, raw)
	if err != nil {
		return nil, shared.WrapError("telegramuser", "FindByIDs", shared.ErrNotFound, "query failed", err)
	}
	defer rows.Close()
	var out []*telegramuser.TelegramUser
	for rows.Next() {
		u, err := scanTelegramUser(rows)
		if err != nil {
			return nil, shared.WrapError("telegramuser", "FindByIDs", shared.ErrNotFound, "scan failed", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *TelegramUserRepository) List(ctx context.Context, opts telegramuser.ListOptions) ([]*telegramuser.TelegramUser, error) {
	query := `SELECT ` + telegramUserColumns + ` FROM telegram_users`
	args := []interface{}{}
	if opts.Banned != nil {
		args = append(args, *opts.Banned)
		query += fmt.Sprintf(` WHERE banned = $%d`, len(args))
	}
	args = append(args, opts.Pagination.Limit())
	query += fmt.Sprintf(` ORDER BY id LIMIT $%d`, len(args))
	args = append(args, opts.Pagination.Offset())
	query += fmt.Sprintf(` OFFSET $%d`, len(args))

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, shared.WrapError("telegramuser", "List", shared.ErrNotFound, "query failed", err)
	}
	defer rows.Close()
	var out []*telegramuser.TelegramUser
	for rows.Next() {
		u, err := scanTelegramUser(rows)
		if err != nil {
			return nil, shared.WrapError("telegramuser", "List", shared.ErrNotFound, "scan failed", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *TelegramUserRepository) Exists(ctx context.Context, id shared.TelegramID) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM telegram_users WHERE id = $1)`, int64(id)).Scan(&exists)
	if err != nil {
		return false, shared.WrapError("telegramuser", "Exists", shared.ErrNotFound, "query failed", err)
	}
	return exists, nil
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows, letting the scan
// helpers below work for single-row and multi-row queries alike.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTelegramUser(row rowScanner) (*telegramuser.TelegramUser, error) {
	var (
		id                           int64
		firstName, lastName, username string
		language                     string
		reputation, warnCount        int
		banned                       bool
		lastSeen, createdAt, updated time.Time
	)
	if err := row.Scan(&id, &firstName, &lastName, &username, &language, &reputation, &warnCount, &banned, &lastSeen, &createdAt, &updated); err != nil {
		return nil, err
	}
	return &telegramuser.TelegramUser{
		ID:         shared.TelegramID(id),
		FirstName:  firstName,
		LastName:   lastName,
		Username:   username,
		Language:   language,
		Reputation: reputation,
		WarnCount:  warnCount,
		Banned:     banned,
		LastSeen:   lastSeen,
		CreatedAt:  createdAt,
		UpdatedAt:  updated,
	}, nil
}
