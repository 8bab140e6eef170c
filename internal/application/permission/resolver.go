// Package permission implements the Permission Resolver (§4.5): given a
// user and a chat, compose every applicable role into the effective
// moderation capability set, Telegram admin-rights map, and custom title.
//
// Grounded on the teacher's internal/interface/telegram/middleware/auth.go
// plumbing style (context-scoped lookups composed ahead of the handler
// chain) — generalized here from "is this token valid" into "what can this
// user do in this chat", since the source's role composition has no direct
// teacher analogue.
package permission

import (
	"context"

	"github.com/unimi-net/campus-hub/internal/domain/catalog"
	"github.com/unimi-net/campus-hub/internal/domain/role"
	"github.com/unimi-net/campus-hub/internal/domain/shared"
)

// Result is the Permission Resolver's output triple.
type Result struct {
	Caps        map[shared.EventKind]bool
	Rights      map[role.Right]bool
	CustomTitle string
}

// Allows reports whether kind is in the resolved capability set.
func (r Result) Allows(kind shared.EventKind) bool {
	return r.Caps[kind]
}

// Resolver is pure and side-effect-free per §4.5: two invocations with
// identical (user, chat, role-set) return equal triples. It depends only
// on read interfaces, never mutates state, and performs no Telegram calls.
type Resolver struct {
	roles   role.Repository
	catalog catalog.Repository
}

// NewResolver constructs a Resolver.
func NewResolver(roles role.Repository, catalog catalog.Repository) *Resolver {
	return &Resolver{roles: roles, catalog: catalog}
}

// Resolve implements the five-step algorithm of §4.5.
func (r *Resolver) Resolve(ctx context.Context, userID shared.TelegramID, chatID shared.ChatID) (Result, error) {
	degrees, err := r.catalog.DegreesForChat(ctx, chatID)
	if err != nil {
		return Result{}, shared.WrapError("permission", "Resolve", shared.ErrNotFound, "failed to load chat degrees", err)
	}

	roles, err := r.roles.FindByUser(ctx, userID)
	if err != nil {
		return Result{}, shared.WrapError("permission", "Resolve", shared.ErrNotFound, "failed to load user roles", err)
	}

	return Compose(roles, degrees), nil
}

// Compose is the pure merge step (algorithm steps 2-5), split out from
// Resolve so it can be unit tested without a repository double.
func Compose(roles []*role.BaseRole, chatDegrees []catalog.DegreeID) Result {
	caps := make(map[shared.EventKind]bool)
	rights := make(map[role.Right]bool, len(role.AllRights))
	var title string

	for _, r := range roles {
		if !r.MatchesScope(chatDegrees) {
			continue
		}
		roleCaps, roleRights, roleTitle := r.Effective()

		// Step 3: union over surviving roles' capability sets.
		for k, granted := range roleCaps {
			if granted {
				caps[k] = true
			}
		}

		// Step 4: union across roles; a right granted by any role stays
		// granted, whatever the iteration order, and a false from a role
		// only fills a right no role has set yet. BaseRole.Effective
		// already resolved this role's own override precedence.
		for right, granted := range roleRights {
			if granted {
				rights[right] = true
			} else if _, seen := rights[right]; !seen {
				rights[right] = false
			}
		}

		// Step 5: last non-empty title wins.
		if roleTitle != "" {
			title = roleTitle
		}
	}

	for _, right := range role.AllRights {
		if _, ok := rights[right]; !ok {
			rights[right] = false
		}
	}

	return Result{Caps: caps, Rights: rights, CustomTitle: title}
}
