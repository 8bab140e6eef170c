package telegramuser

import (
	"context"

	"github.com/unimi-net/campus-hub/internal/domain/shared"
)

// ListOptions controls Search/List queries over TelegramUser rows.
type ListOptions struct {
	Banned     *bool
	Pagination shared.Pagination
}

// WithBanned restricts the listing to banned (true) or non-banned (false) users.
func (o ListOptions) WithBanned(banned bool) ListOptions {
	o.Banned = &banned
	return o
}

// WithPagination sets the page/page size.
func (o ListOptions) WithPagination(p shared.Pagination) ListOptions {
	o.Pagination = p
	return o
}

// Repository is the persistence boundary for TelegramUser. Every write is
// an atomic upsert keyed on ID per §5's concurrency model (no duplicate
// rows on concurrent first-sighting).
type Repository interface {
	// Upsert creates the row if absent, otherwise updates the mutable
	// profile fields. Implementations must use an atomic ON CONFLICT
	// upsert, not a read-then-write round trip.
	Upsert(ctx context.Context, user *TelegramUser) error

	// FindByID returns shared.ErrUserNotFound (wrapped) if absent.
	FindByID(ctx context.Context, id shared.TelegramID) (*TelegramUser, error)

	// FindByIDs returns the subset of ids that exist, in no particular order.
	FindByIDs(ctx context.Context, ids []shared.TelegramID) ([]*TelegramUser, error)

	// List returns users matching the given options.
	List(ctx context.Context, opts ListOptions) ([]*TelegramUser, error)

	// Exists reports whether a row with the given id is present.
	Exists(ctx context.Context, id shared.TelegramID) (bool, error)
}
