// Package role models the polymorphic BaseRole permission grant: one of
// five variants, each contributing a (capability-set, admin-rights-map,
// custom-title) triple that the Permission Resolver composes (§4.5).
//
// Grounded on original_source/roles/models.py's Django polymorphic model:
// a single base table carries scope + override fields; variant-specific
// behavior is data (the Variant tag), not a type hierarchy, since Go has
// no inheritance — see defaults.go for the pure default_caps/merge split
// the source's per-subclass permissions() override corresponds to.
package role

import (
	"time"

	"github.com/unimi-net/campus-hub/internal/domain/catalog"
	"github.com/unimi-net/campus-hub/internal/domain/shared"
)

// Variant is the role kind discriminator.
type Variant string

const (
	VariantRepresentative     Variant = "representative"
	VariantProfessor          Variant = "professor"
	VariantModerator          Variant = "moderator"
	VariantAdministrator      Variant = "administrator"
	VariantSuperAdministrator Variant = "super_administrator"
)

// IsValid reports whether v is one of the five known variants.
func (v Variant) IsValid() bool {
	switch v {
	case VariantRepresentative, VariantProfessor, VariantModerator, VariantAdministrator, VariantSuperAdministrator:
		return true
	default:
		return false
	}
}

// Right is a Telegram chat-administrator permission bit.
type Right string

const (
	RightChangeInfo      Right = "change_info"
	RightInviteUsers     Right = "invite_users"
	RightPinMessages     Right = "pin_messages"
	RightManageChat      Right = "manage_chat"
	RightDeleteMessages  Right = "delete_messages"
	RightManageVoiceChat Right = "manage_voice_chats"
	RightRestrictMembers Right = "restrict_members"
	RightPromoteMembers  Right = "promote_members"
)

// AllRights enumerates the eight admin-rights overrides a role can carry.
var AllRights = []Right{
	RightChangeInfo, RightInviteUsers, RightPinMessages, RightManageChat,
	RightDeleteMessages, RightManageVoiceChat, RightRestrictMembers, RightPromoteMembers,
}

// BaseRole is a single permission grant owned by a TelegramUser. Scope
// selects which chats the role applies to (§4.5 step 2); the two override
// maps are nullable tri-state: a missing key means "inherit variant
// default", a present true/false is an explicit grant/deny that always
// wins over the default.
type BaseRole struct {
	ID         string
	UserID     shared.TelegramID
	DjangoUser string // optional, opaque link to the admin-UI's auth user
	Variant    Variant

	// Scope selector.
	AllGroups   bool
	ExtraGroups bool
	DegreeIDs   []catalog.DegreeID

	CustomTitle string

	// ModerationOverrides: nil entry = inherit, explicit true/false = grant/deny.
	ModerationOverrides map[shared.EventKind]*bool

	// TelegramRightOverrides: nil entry = inherit, explicit true/false wins.
	TelegramRightOverrides map[Right]*bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewBaseRoleParams carries the fields needed to create a role.
type NewBaseRoleParams struct {
	UserID      shared.TelegramID
	Variant     Variant
	AllGroups   bool
	ExtraGroups bool
	DegreeIDs   []catalog.DegreeID
	CustomTitle string
}

// NewBaseRole validates params and constructs a fresh BaseRole.
func NewBaseRole(params NewBaseRoleParams) (*BaseRole, error) {
	if !params.UserID.IsValid() {
		return nil, shared.ErrInvalidTelegramID
	}
	if !params.Variant.IsValid() {
		return nil, shared.ErrUnknownVariant
	}
	now := time.Now()
	return &BaseRole{
		UserID:                 params.UserID,
		Variant:                params.Variant,
		AllGroups:              params.AllGroups,
		ExtraGroups:            params.ExtraGroups,
		DegreeIDs:              params.DegreeIDs,
		CustomTitle:            params.CustomTitle,
		ModerationOverrides:    make(map[shared.EventKind]*bool),
		TelegramRightOverrides: make(map[Right]*bool),
		CreatedAt:              now,
		UpdatedAt:              now,
	}, nil
}

func boolPtr(b bool) *bool { return &b }

// SetModerationOverride sets an explicit grant/deny for a moderation capability.
func (r *BaseRole) SetModerationOverride(kind shared.EventKind, grant bool) {
	if r.ModerationOverrides == nil {
		r.ModerationOverrides = make(map[shared.EventKind]*bool)
	}
	r.ModerationOverrides[kind] = boolPtr(grant)
	r.UpdatedAt = time.Now()
}

// ClearModerationOverride reverts a capability to inheriting the variant default.
func (r *BaseRole) ClearModerationOverride(kind shared.EventKind) {
	delete(r.ModerationOverrides, kind)
	r.UpdatedAt = time.Now()
}

// SetRightOverride sets an explicit grant/deny for a Telegram admin right.
func (r *BaseRole) SetRightOverride(right Right, grant bool) {
	if r.TelegramRightOverrides == nil {
		r.TelegramRightOverrides = make(map[Right]*bool)
	}
	r.TelegramRightOverrides[right] = boolPtr(grant)
	r.UpdatedAt = time.Now()
}

// MatchesScope implements §4.5 step 2's filter predicate: a role applies to
// chatDegrees (the degrees whose flagship or course group is the target
// chat) iff it's global, or shares a degree with the chat, or is flagged
// extra_groups for chats with no associated degree at all.
func (r *BaseRole) MatchesScope(chatDegrees []catalog.DegreeID) bool {
	if r.AllGroups {
		return true
	}
	if len(chatDegrees) > 0 {
		for _, d := range r.DegreeIDs {
			for _, cd := range chatDegrees {
				if d == cd {
					return true
				}
			}
		}
		return false
	}
	return r.ExtraGroups
}
