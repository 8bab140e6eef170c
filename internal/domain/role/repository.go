package role

import (
	"context"

	"github.com/unimi-net/campus-hub/internal/domain/shared"
)

// Repository is the persistence boundary for BaseRole.
type Repository interface {
	Save(ctx context.Context, r *BaseRole) error
	Delete(ctx context.Context, id string) error

	// FindByID is used by the Role Change Propagator (§4.10) after a save.
	FindByID(ctx context.Context, id string) (*BaseRole, error)

	// FindByUser returns every role owned by the user — the input to the
	// Permission Resolver's step 2 filter (§4.5).
	FindByUser(ctx context.Context, userID shared.TelegramID) ([]*BaseRole, error)

	// FindByVariants returns every role whose Variant is one of variants,
	// regardless of owner — the on-call discovery query for the Admin-Tag
	// Notifier (§4.8), which must find every Moderator/Administrator/
	// SuperAdministrator role scoped to a given chat before MatchesScope
	// filtering happens in application code.
	FindByVariants(ctx context.Context, variants []Variant) ([]*BaseRole, error)
}
