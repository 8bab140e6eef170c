package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/unimi-net/campus-hub/internal/domain/catalog"
	"github.com/unimi-net/campus-hub/internal/domain/role"
	"github.com/unimi-net/campus-hub/internal/domain/shared"
)

// RoleRepository persists role.BaseRole — one table, polymorphic by the
// Variant discriminator column (§4.5, §11's grounding on roles/models.py).
type RoleRepository struct {
	conn *Connection
}

func NewRoleRepository(conn *Connection) *RoleRepository { return &RoleRepository{conn: conn} }

var _ role.Repository = (*RoleRepository)(nil)

const roleColumns = `id, user_id, django_user, variant, all_groups, extra_groups, degree_ids, custom_title, moderation_overrides, telegram_right_overrides, created_at, updated_at`

func (r *RoleRepository) Save(ctx context.Context, role_ *role.BaseRole) error {
	if role_.ID == "" {
		role_.ID = uuid.NewString()
	}
	degreeIDs := make([]int64, len(role_.DegreeIDs))
	for i, d := range role_.DegreeIDs {
		degreeIDs[i] = int64(d)
	}
	modOverrides, err := json.Marshal(role_.ModerationOverrides)
	if err != nil {
		return shared.WrapError("role", "Save", shared.ErrValidation, "failed to marshal moderation overrides", err)
	}
	rightOverrides, err := json.Marshal(role_.TelegramRightOverrides)
	if err != nil {
		return shared.WrapError("role", "Save", shared.ErrValidation, "failed to marshal right overrides", err)
	}
	_, err = r.conn.Exec(ctx, `
		INSERT INTO base_roles (id, user_id, django_user, variant, all_groups, extra_groups, degree_ids, custom_title, moderation_overrides, telegram_right_overrides, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (id) DO UPDATE SET
			django_user = EXCLUDED.django_user,
			variant = EXCLUDED.variant,
			all_groups = EXCLUDED.all_groups,
			extra_groups = EXCLUDED.extra_groups,
			degree_ids = EXCLUDED.degree_ids,
			custom_title = EXCLUDED.custom_title,
			moderation_overrides = EXCLUDED.moderation_overrides,
			telegram_right_overrides = EXCLUDED.telegram_right_overrides,
			updated_at = EXCLUDED.updated_at
	`, role_.ID, int64(role_.UserID), role_.DjangoUser, string(role_.Variant), role_.AllGroups, role_.ExtraGroups,
		degreeIDs, role_.CustomTitle, modOverrides, rightOverrides, role_.CreatedAt, role_.UpdatedAt)
	if err != nil {
		return shared.WrapError("role", "Save", shared.ErrStoreIntegrity, "failed to save role", err)
	}
	return nil
}

func (r *RoleRepository) Delete(ctx context.Context, id string) error {
	_, err := r.conn.Exec(ctx, `DELETE FROM base_roles WHERE id = $1`, id)
	if err != nil {
		return shared.WrapError("role", "Delete", shared.ErrStoreIntegrity, "failed to delete role", err)
	}
	return nil
}

func (r *RoleRepository) FindByID(ctx context.Context, id string) (*role.BaseRole, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+roleColumns+` FROM base_roles WHERE id = $1`, id)
	br, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrRoleNotFound
		}
		return nil, shared.WrapError("role", "FindByID", shared.ErrNotFound, "query failed", err)
	}
	return br, nil
}

func (r *RoleRepository) FindByUser(ctx context.Context, userID shared.TelegramID) ([]*role.BaseRole, error) {
	rows, err := r.conn.Query(ctx, `SELECT `+roleColumns+` FROM base_roles WHERE user_id = $1`, int64(userID))
	if err != nil {
		return nil, shared.WrapError("role", "FindByUser", shared.ErrNotFound, "query failed", err)
	}
	defer rows.Close()
	var out []*role.BaseRole
	for rows.Next() {
		br, err := scanRole(rows)
		if err != nil {
			return nil, shared.WrapError("role", "FindByUser", shared.ErrNotFound, "scan failed", err)
		}
		out = append(out, br)
	}
	return out, rows.Err()
}

func (r *RoleRepository) FindByVariants(ctx context.Context, variants []role.Variant) ([]*role.BaseRole, error) {
	if len(variants) == 0 {
		return nil, nil
	}
	names := make([]string, len(variants))
	for i, v := range variants {
		names[i] = string(v)
	}
	rows, err := r.conn.Query(ctx, `SELECT `+roleColumns+` FROM base_roles WHERE variant = ANY($1)`, names)
	if err != nil {
		return nil, shared.WrapError("role", "FindByVariants", shared.ErrNotFound, "query failed", err)
	}
	defer rows.Close()
	var out []*role.BaseRole
	for rows.Next() {
		br, err := scanRole(rows)
		if err != nil {
			return nil, shared.WrapError("role", "FindByVariants", shared.ErrNotFound, "scan failed", err)
		}
		out = append(out, br)
	}
	return out, rows.Err()
}

func scanRole(row rowScanner) (*role.BaseRole, error) {
	var (
		id, djangoUser, variant, customTitle string
		userID                               int64
		allGroups, extraGroups               bool
		degreeIDs                            []int64
		modOverridesRaw, rightOverridesRaw   []byte
		createdAt, updatedAt                 time.Time
	)
	if err := row.Scan(&id, &userID, &djangoUser, &variant, &allGroups, &extraGroups, &degreeIDs,
		&customTitle, &modOverridesRaw, &rightOverridesRaw, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	degrees := make([]catalog.DegreeID, len(degreeIDs))
	for i, d := range degreeIDs {
		degrees[i] = catalog.DegreeID(d)
	}
	modOverrides := make(map[shared.EventKind]*bool)
	if len(modOverridesRaw) > 0 {
		if err := json.Unmarshal(modOverridesRaw, &modOverrides); err != nil {
			return nil, err
		}
	}
	rightOverrides := make(map[role.Right]*bool)
	if len(rightOverridesRaw) > 0 {
		if err := json.Unmarshal(rightOverridesRaw, &rightOverrides); err != nil {
			return nil, err
		}
	}
	return &role.BaseRole{
		ID:                     id,
		UserID:                 shared.TelegramID(userID),
		DjangoUser:             djangoUser,
		Variant:                role.Variant(variant),
		AllGroups:              allGroups,
		ExtraGroups:            extraGroups,
		DegreeIDs:              degrees,
		CustomTitle:            customTitle,
		ModerationOverrides:    modOverrides,
		TelegramRightOverrides: rightOverrides,
		CreatedAt:              createdAt,
		UpdatedAt:              updatedAt,
	}, nil
}
