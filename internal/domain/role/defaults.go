package role

import "github.com/unimi-net/campus-hub/internal/domain/shared"

// defaultModerationCaps returns the variant's default-granted moderation
// capability set, per the §4.5 table. Representative and Professor grant
// none by default; each subsequent variant strictly widens the set, per
// the grounding note on original_source/roles/models.py.
func defaultModerationCaps(v Variant) map[shared.EventKind]bool {
	switch v {
	case VariantModerator:
		return map[shared.EventKind]bool{
			shared.EventKindModerationInfo: true,
			shared.EventKindModerationDel:  true,
			shared.EventKindModerationMute: true,
		}
	case VariantAdministrator:
		return map[shared.EventKind]bool{
			shared.EventKindModerationInfo: true,
			shared.EventKindModerationDel:  true,
			shared.EventKindModerationWarn: true,
			shared.EventKindModerationKick: true,
			shared.EventKindModerationBan:  true,
			shared.EventKindModerationMute: true,
			shared.EventKindModerationFree: true,
		}
	case VariantSuperAdministrator:
		return map[shared.EventKind]bool{
			shared.EventKindModerationInfo:      true,
			shared.EventKindModerationDel:       true,
			shared.EventKindModerationWarn:      true,
			shared.EventKindModerationKick:      true,
			shared.EventKindModerationBan:       true,
			shared.EventKindModerationMute:      true,
			shared.EventKindModerationFree:      true,
			shared.EventKindModerationSuperban:  true,
			shared.EventKindModerationSuperfree: true,
		}
	default: // Representative, Professor
		return map[shared.EventKind]bool{}
	}
}

// defaultRights returns the variant's default Telegram admin-rights map.
func defaultRights(v Variant) map[Right]bool {
	switch v {
	case VariantRepresentative, VariantProfessor:
		return map[Right]bool{RightPinMessages: true}
	case VariantModerator:
		return map[Right]bool{RightPinMessages: true, RightManageChat: true}
	case VariantAdministrator:
		return map[Right]bool{RightPinMessages: true, RightChangeInfo: true}
	case VariantSuperAdministrator:
		all := make(map[Right]bool, len(AllRights))
		for _, r := range AllRights {
			all[r] = true
		}
		return all
	default:
		return map[Right]bool{}
	}
}

// Effective computes this single role's (caps, rights, title) triple: the
// variant default merged with this role's explicit tri-state overrides.
// Pure function — no I/O, no shared mutable state — per §4.5's "the
// resolver is pure" requirement and §9's default_caps(variant)+merge(overrides)
// design note.
func (r *BaseRole) Effective() (caps map[shared.EventKind]bool, rights map[Right]bool, title string) {
	caps = defaultModerationCaps(r.Variant)
	merged := make(map[shared.EventKind]bool, len(caps))
	for k, v := range caps {
		merged[k] = v
	}
	for k, override := range r.ModerationOverrides {
		if override == nil {
			continue
		}
		merged[k] = *override
	}
	// Strip explicit-false entries so the result is a plain "granted" set.
	caps = make(map[shared.EventKind]bool, len(merged))
	for k, v := range merged {
		if v {
			caps[k] = true
		}
	}

	defaults := defaultRights(r.Variant)
	rights = make(map[Right]bool, len(AllRights))
	for _, right := range AllRights {
		rights[right] = defaults[right]
	}
	for right, override := range r.TelegramRightOverrides {
		if override == nil {
			continue
		}
		rights[right] = *override
	}

	return caps, rights, r.CustomTitle
}
