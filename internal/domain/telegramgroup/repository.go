package telegramgroup

import (
	"context"

	"github.com/unimi-net/campus-hub/internal/domain/shared"
)

// GroupRepository is the persistence boundary for TelegramGroup.
type GroupRepository interface {
	Upsert(ctx context.Context, group *TelegramGroup) error

	// FindByID returns shared.ErrGroupNotFound (wrapped) if absent — the
	// UnknownChat path of §4.3 step 2 depends on this exact distinction.
	FindByID(ctx context.Context, id shared.ChatID) (*TelegramGroup, error)

	// List returns all groups, used by the refresh_group_info job (§4.9).
	List(ctx context.Context, pagination shared.Pagination) ([]*TelegramGroup, error)

	Exists(ctx context.Context, id shared.ChatID) (bool, error)
}

// BotRepository resolves a webhook bearer token to its registered bot, and
// enumerates bots for the scheduler's per-bot refresh loop.
type BotRepository interface {
	FindByToken(ctx context.Context, token string) (*TelegramBot, error)
	List(ctx context.Context) ([]*TelegramBot, error)
	Upsert(ctx context.Context, bot *TelegramBot) error

	// IsWhitelisted reports whether username is allowed to remain in groups
	// unkicked (BotWhitelist, §3/§4.4).
	IsWhitelisted(ctx context.Context, username string) (bool, error)

	// Whitelist adds username to BotWhitelist.
	Whitelist(ctx context.Context, username string) error
}

// MembershipRepository is the persistence boundary for GroupMembership.
type MembershipRepository interface {
	// Upsert must be an atomic ON CONFLICT (user_id, group_id) upsert —
	// §5 forbids duplicate rows under concurrent writers.
	Upsert(ctx context.Context, m *GroupMembership) error

	Find(ctx context.Context, userID shared.TelegramID, groupID shared.ChatID) (*GroupMembership, error)

	// FindGroupsForUser returns every group the user currently belongs to
	// (status.IsActive()), used by superban/superfree (§4.6) and the Role
	// Change Propagator (§4.10).
	FindGroupsForUser(ctx context.Context, userID shared.TelegramID) ([]*GroupMembership, error)

	// CountActiveMembers reports the current member count of a group, used
	// by the ≥50-member service-message-deletion gate (§4.4).
	CountActiveMembers(ctx context.Context, groupID shared.ChatID) (int, error)
}
