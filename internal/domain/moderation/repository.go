package moderation

import (
	"context"

	"github.com/unimi-net/campus-hub/internal/domain/shared"
)

// BlacklistRepository is the persistence boundary for BlacklistedUser.
type BlacklistRepository interface {
	// Insert is an upsert; returns shared.ErrStoreIntegrity (wrapped) only
	// if the caller needs to distinguish "already present" — implementations
	// should otherwise swallow the conflict per §7.
	Insert(ctx context.Context, entry *BlacklistedUser) error

	IsBlacklisted(ctx context.Context, userID shared.TelegramID) (bool, error)

	// ReplaceExternalFeed atomically replaces the external_feed source
	// partition, used by sync_external_blocklist (§4.9). Returns the set of
	// newly-inserted user ids so the caller can trigger ban propagation.
	ReplaceExternalFeed(ctx context.Context, userIDs []shared.TelegramID) ([]shared.TelegramID, error)
}

// EventLogRepository is the persistence boundary for EventLog.
type EventLogRepository interface {
	// Append inserts a finalized (or pre-allocated) entry and returns its id.
	Append(ctx context.Context, entry *EventLog) (int64, error)

	// Update rewrites the mutable fields of a pre-allocated entry (§4.7).
	Update(ctx context.Context, entry *EventLog) error

	FindByID(ctx context.Context, id int64) (*EventLog, error)
}
