package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/unimi-net/campus-hub/internal/domain/shared"
	"github.com/unimi-net/campus-hub/internal/domain/telegramgroup"
)

// GroupRepository persists telegramgroup.TelegramGroup.
type GroupRepository struct {
	conn *Connection
}

func NewGroupRepository(conn *Connection) *GroupRepository { return &GroupRepository{conn: conn} }

var _ telegramgroup.GroupRepository = (*GroupRepository)(nil)

const groupColumns = `id, title, description, invite_link, language, welcome_template, owner_id, bot_token, ignore_admin_tagging, created_at, updated_at`

func (r *GroupRepository) Upsert(ctx context.Context, group *telegramgroup.TelegramGroup) error {
	var owner *int64
	if group.OwnerID != nil {
		v := int64(*group.OwnerID)
		owner = &v
	}
	_, err := r.conn.Exec(ctx, `
		INSERT INTO telegram_groups (id, title, description, invite_link, language, welcome_template, owner_id, bot_token, ignore_admin_tagging, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			invite_link = EXCLUDED.invite_link,
			language = EXCLUDED.language,
			welcome_template = EXCLUDED.welcome_template,
			owner_id = EXCLUDED.owner_id,
			bot_token = EXCLUDED.bot_token,
			ignore_admin_tagging = EXCLUDED.ignore_admin_tagging,
			updated_at = EXCLUDED.updated_at
	`, int64(group.ID), group.Title, group.Description, group.InviteLink, group.Language,
		group.WelcomeTemplate, owner, group.BotToken, group.IgnoreAdminTagging, group.CreatedAt, group.UpdatedAt)
	if err != nil {
		return shared.WrapError("telegramgroup", "Upsert", shared.ErrStoreIntegrity, "failed to upsert group", err)
	}
	return nil
}

func (r *GroupRepository) FindByID(ctx context.Context, id shared.ChatID) (*telegramgroup.TelegramGroup, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+groupColumns+` FROM telegram_groups WHERE id = $1`, int64(id))
	g, err := scanGroup(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrGroupNotFound
		}
		return nil, shared.WrapError("telegramgroup", "FindByID", shared.ErrUnknownChat, "query failed", err)
	}
	return g, nil
}

func (r *GroupRepository) List(ctx context.Context, pagination shared.Pagination) ([]*telegramgroup.TelegramGroup, error) {
	rows, err := r.conn.Query(ctx, `SELECT `+groupColumns+` FROM telegram_groups ORDER BY id LIMIT $1 OFFSET $2`,
		pagination.Limit(), pagination.Offset())
	if err != nil {
		return nil, shared.WrapError("telegramgroup", "List", shared.ErrNotFound, "query failed", err)
	}
	defer rows.Close()
	var out []*telegramgroup.TelegramGroup
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, shared.WrapError("telegramgroup", "List", shared.ErrNotFound, "scan failed", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *GroupRepository) Exists(ctx context.Context, id shared.ChatID) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM telegram_groups WHERE id = $1)`, int64(id)).Scan(&exists)
	if err != nil {
		return false, shared.WrapError("telegramgroup", "Exists", shared.ErrNotFound, "query failed", err)
	}
	return exists, nil
}

func scanGroup(row rowScanner) (*telegramgroup.TelegramGroup, error) {
	var (
		id                                                      int64
		title, description, inviteLink, language, welcomeTmpl   string
		ownerID                                                 *int64
		botToken                                                string
		ignoreAdminTagging                                      bool
		createdAt, updatedAt                                    time.Time
	)
	if err := row.Scan(&id, &title, &description, &inviteLink, &language, &welcomeTmpl, &ownerID, &botToken, &ignoreAdminTagging, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	g := &telegramgroup.TelegramGroup{
		ID:                 shared.ChatID(id),
		Title:              title,
		Description:        description,
		InviteLink:         inviteLink,
		Language:           language,
		WelcomeTemplate:    welcomeTmpl,
		BotToken:           botToken,
		IgnoreAdminTagging: ignoreAdminTagging,
		CreatedAt:          createdAt,
		UpdatedAt:          updatedAt,
	}
	if ownerID != nil {
		owner := shared.TelegramID(*ownerID)
		g.OwnerID = &owner
	}
	return g, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// BOT REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// BotRepository persists telegramgroup.TelegramBot + BotWhitelist.
type BotRepository struct {
	conn *Connection
}

func NewBotRepository(conn *Connection) *BotRepository { return &BotRepository{conn: conn} }

var _ telegramgroup.BotRepository = (*BotRepository)(nil)

func (r *BotRepository) FindByToken(ctx context.Context, token string) (*telegramgroup.TelegramBot, error) {
	var bot telegramgroup.TelegramBot
	err := r.conn.QueryRow(ctx, `SELECT token, username, notes FROM telegram_bots WHERE token = $1`, token).
		Scan(&bot.Token, &bot.Username, &bot.Notes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrBotTokenUnregistered
		}
		return nil, shared.WrapError("telegramgroup", "FindByToken", shared.ErrIngress, "query failed", err)
	}
	return &bot, nil
}

func (r *BotRepository) List(ctx context.Context) ([]*telegramgroup.TelegramBot, error) {
	rows, err := r.conn.Query(ctx, `SELECT token, username, notes FROM telegram_bots ORDER BY username`)
	if err != nil {
		return nil, shared.WrapError("telegramgroup", "ListBots", shared.ErrNotFound, "query failed", err)
	}
	defer rows.Close()
	var out []*telegramgroup.TelegramBot
	for rows.Next() {
		var bot telegramgroup.TelegramBot
		if err := rows.Scan(&bot.Token, &bot.Username, &bot.Notes); err != nil {
			return nil, shared.WrapError("telegramgroup", "ListBots", shared.ErrNotFound, "scan failed", err)
		}
		out = append(out, &bot)
	}
	return out, rows.Err()
}

func (r *BotRepository) Upsert(ctx context.Context, bot *telegramgroup.TelegramBot) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO telegram_bots (token, username, notes) VALUES ($1,$2,$3)
		ON CONFLICT (token) DO UPDATE SET username = EXCLUDED.username, notes = EXCLUDED.notes
	`, bot.Token, bot.Username, bot.Notes)
	if err != nil {
		return shared.WrapError("telegramgroup", "UpsertBot", shared.ErrStoreIntegrity, "failed to upsert bot", err)
	}
	return nil
}

func (r *BotRepository) IsWhitelisted(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM bot_whitelist WHERE username = $1)`, username).Scan(&exists)
	if err != nil {
		return false, shared.WrapError("telegramgroup", "IsWhitelisted", shared.ErrNotFound, "query failed", err)
	}
	return exists, nil
}

func (r *BotRepository) Whitelist(ctx context.Context, username string) error {
	_, err := r.conn.Exec(ctx, `INSERT INTO bot_whitelist (username) VALUES ($1) ON CONFLICT (username) DO NOTHING`, username)
	if err != nil {
		return shared.WrapError("telegramgroup", "Whitelist", shared.ErrStoreIntegrity, "failed to whitelist bot", err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MEMBERSHIP REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// MembershipRepository persists telegramgroup.GroupMembership.
type MembershipRepository struct {
	conn *Connection
}

func NewMembershipRepository(conn *Connection) *MembershipRepository {
	return &MembershipRepository{conn: conn}
}

var _ telegramgroup.MembershipRepository = (*MembershipRepository)(nil)

func (r *MembershipRepository) Upsert(ctx context.Context, m *telegramgroup.GroupMembership) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO group_memberships (user_id, group_id, status, last_seen, messages_count, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (user_id, group_id) DO UPDATE SET
			status = EXCLUDED.status,
			last_seen = GREATEST(group_memberships.last_seen, EXCLUDED.last_seen),
			messages_count = EXCLUDED.messages_count,
			updated_at = EXCLUDED.updated_at
	`, int64(m.UserID), int64(m.GroupID), string(m.Status), m.LastSeen, m.MessagesCount, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return shared.WrapError("telegramgroup", "UpsertMembership", shared.ErrStoreIntegrity, "failed to upsert membership", err)
	}
	return nil
}

func (r *MembershipRepository) Find(ctx context.Context, userID shared.TelegramID, groupID shared.ChatID) (*telegramgroup.GroupMembership, error) {
	row := r.conn.QueryRow(ctx, `
		SELECT user_id, group_id, status, last_seen, messages_count, created_at, updated_at
		FROM group_memberships WHERE user_id = $1 AND group_id = $2
	`, int64(userID), int64(groupID))
	m, err := scanMembership(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrMembershipNotFound
		}
		return nil, shared.WrapError("telegramgroup", "FindMembership", shared.ErrNotFound, "query failed", err)
	}
	return m, nil
}

func (r *MembershipRepository) FindGroupsForUser(ctx context.Context, userID shared.TelegramID) ([]*telegramgroup.GroupMembership, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT user_id, group_id, status, last_seen, messages_count, created_at, updated_at
		FROM group_memberships
		WHERE user_id = $1 AND status IN ('creator','administrator','member','restricted')
	`, int64(userID))
	if err != nil {
		return nil, shared.WrapError("telegramgroup", "FindGroupsForUser", shared.ErrNotFound, "query failed", err)
	}
	defer rows.Close()
	var out []*telegramgroup.GroupMembership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, shared.WrapError("telegramgroup", "FindGroupsForUser", shared.ErrNotFound, "scan failed", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *MembershipRepository) CountActiveMembers(ctx context.Context, groupID shared.ChatID) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx, `
		SELECT COUNT(*) FROM group_memberships
		WHERE group_id = $1 AND status IN ('creator','administrator','member','restricted')
	`, int64(groupID)).Scan(&count)
	if err != nil {
		return 0, shared.WrapError("telegramgroup", "CountActiveMembers", shared.ErrNotFound, "query failed", err)
	}
	return count, nil
}

func scanMembership(row rowScanner) (*telegramgroup.GroupMembership, error) {
	var (
		userID, groupID       int64
		status                string
		lastSeen              time.Time
		messagesCount         int64
		createdAt, updatedAt  time.Time
	)
	if err := row.Scan(&userID, &groupID, &status, &lastSeen, &messagesCount, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	return &telegramgroup.GroupMembership{
		UserID:        shared.TelegramID(userID),
		GroupID:       shared.ChatID(groupID),
		Status:        telegramgroup.MembershipStatus(status),
		LastSeen:      lastSeen,
		MessagesCount: messagesCount,
		CreatedAt:     createdAt,
		UpdatedAt:     updatedAt,
	}, nil
}
