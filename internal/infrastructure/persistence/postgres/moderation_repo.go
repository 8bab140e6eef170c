package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/unimi-net/campus-hub/internal/domain/moderation"
	"github.com/unimi-net/campus-hub/internal/domain/shared"
)

// BlacklistRepository persists moderation.BlacklistedUser, including the
// atomic replace-the-external-feed-partition operation sync_external_blocklist
// needs (§4.9).
type BlacklistRepository struct {
	conn *Connection
}

func NewBlacklistRepository(conn *Connection) *BlacklistRepository {
	return &BlacklistRepository{conn: conn}
}

var _ moderation.BlacklistRepository = (*BlacklistRepository)(nil)

func (r *BlacklistRepository) Insert(ctx context.Context, entry *moderation.BlacklistedUser) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO blacklisted_users (user_id, source, created_at) VALUES ($1,$2,$3)
		ON CONFLICT (user_id) DO UPDATE SET source = EXCLUDED.source
	`, int64(entry.UserID), string(entry.Source), entry.CreatedAt)
	if err != nil {
		return shared.WrapError("moderation", "BlacklistInsert", shared.ErrStoreIntegrity, "failed to insert blacklist entry", err)
	}
	return nil
}

func (r *BlacklistRepository) IsBlacklisted(ctx context.Context, userID shared.TelegramID) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM blacklisted_users WHERE user_id = $1)`, int64(userID)).Scan(&exists)
	if err != nil {
		return false, shared.WrapError("moderation", "IsBlacklisted", shared.ErrNotFound, "query failed", err)
	}
	return exists, nil
}

func (r *BlacklistRepository) ReplaceExternalFeed(ctx context.Context, userIDs []shared.TelegramID) ([]shared.TelegramID, error) {
	var inserted []shared.TelegramID
	err := r.conn.WithTx(ctx, TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM blacklisted_users WHERE source = 'external_feed' AND user_id != ALL($1)`,
			toInt64Slice(userIDs)); err != nil {
			return err
		}
		for _, id := range userIDs {
			tag, err := tx.Exec(ctx, `
				INSERT INTO blacklisted_users (user_id, source) VALUES ($1, 'external_feed')
				ON CONFLICT (user_id) DO NOTHING
			`, int64(id))
			if err != nil {
				return err
			}
			if tag.RowsAffected() > 0 {
				inserted = append(inserted, id)
			}
		}
		return nil
	})
	if err != nil {
		return nil, shared.WrapError("moderation", "ReplaceExternalFeed", shared.ErrStoreIntegrity, "failed to replace feed", err)
	}
	return inserted, nil
}

func toInt64Slice(ids []shared.TelegramID) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// EVENT LOG REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// EventLogRepository persists moderation.EventLog. Its Update method has no
// caller: the event logger only appends rows.
type EventLogRepository struct {
	conn *Connection
}

func NewEventLogRepository(conn *Connection) *EventLogRepository {
	return &EventLogRepository{conn: conn}
}

var _ moderation.EventLogRepository = (*EventLogRepository)(nil)

const eventLogColumns = `id, kind, chat_id, target_id, issuer_id, bot_token, reason, message_text, message_deleted, until_date, audit_message_id, timestamp`

func (r *EventLogRepository) Append(ctx context.Context, entry *moderation.EventLog) (int64, error) {
	var chatID, targetID, issuerID *int64
	if entry.ChatID != nil {
		v := int64(*entry.ChatID)
		chatID = &v
	}
	if entry.TargetID != nil {
		v := int64(*entry.TargetID)
		targetID = &v
	}
	if entry.IssuerID != nil {
		v := int64(*entry.IssuerID)
		issuerID = &v
	}
	var id int64
	err := r.conn.QueryRow(ctx, `
		INSERT INTO event_logs (kind, chat_id, target_id, issuer_id, bot_token, reason, message_text, message_deleted, until_date, audit_message_id, timestamp)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING id
	`, int(entry.Kind), chatID, targetID, issuerID, entry.BotToken, entry.Reason, entry.MessageText,
		entry.MessageDeleted, entry.UntilDate, entry.AuditMessageID, entry.Timestamp).Scan(&id)
	if err != nil {
		return 0, shared.WrapError("moderation", "Append", shared.ErrStoreIntegrity, "failed to append event log", err)
	}
	return id, nil
}

func (r *EventLogRepository) Update(ctx context.Context, entry *moderation.EventLog) error {
	_, err := r.conn.Exec(ctx, `
		UPDATE event_logs SET message_text = $1, message_deleted = $2, audit_message_id = $3 WHERE id = $4
	`, entry.MessageText, entry.MessageDeleted, entry.AuditMessageID, entry.ID)
	if err != nil {
		return shared.WrapError("moderation", "Update", shared.ErrStoreIntegrity, "failed to update event log", err)
	}
	return nil
}

func (r *EventLogRepository) FindByID(ctx context.Context, id int64) (*moderation.EventLog, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+eventLogColumns+` FROM event_logs WHERE id = $1`, id)
	e, err := scanEventLog(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.NewDomainError("moderation", "FindByID", shared.ErrNotFound, "event log not found")
		}
		return nil, shared.WrapError("moderation", "FindByID", shared.ErrNotFound, "query failed", err)
	}
	return e, nil
}

func scanEventLog(row rowScanner) (*moderation.EventLog, error) {
	var (
		id                                int64
		kind                              int
		chatID, targetID, issuerID        *int64
		botToken, reason, messageText     string
		messageDeleted                    bool
		untilDate                         *time.Time
		auditMessageID                    int
		timestamp                         time.Time
	)
	if err := row.Scan(&id, &kind, &chatID, &targetID, &issuerID, &botToken, &reason, &messageText,
		&messageDeleted, &untilDate, &auditMessageID, &timestamp); err != nil {
		return nil, err
	}
	e := &moderation.EventLog{
		ID:             id,
		Kind:           shared.EventKind(kind),
		BotToken:       botToken,
		Reason:         reason,
		MessageText:    messageText,
		MessageDeleted: messageDeleted,
		UntilDate:      untilDate,
		AuditMessageID: auditMessageID,
		Timestamp:      timestamp,
	}
	if chatID != nil {
		c := shared.ChatID(*chatID)
		e.ChatID = &c
	}
	if targetID != nil {
		t := shared.TelegramID(*targetID)
		e.TargetID = &t
	}
	if issuerID != nil {
		i := shared.TelegramID(*issuerID)
		e.IssuerID = &i
	}
	return e, nil
}
