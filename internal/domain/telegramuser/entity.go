// Package telegramuser models the TelegramUser aggregate: the identity
// record every observed Telegram account is synced into on first sighting.
package telegramuser

import (
	"strings"
	"time"

	"github.com/unimi-net/campus-hub/internal/domain/shared"
)

// TelegramUser is the per-account identity row. It is created the first
// time the user is observed by any bot and never deleted by the core —
// only User/Group Sync and the Moderation Engine mutate it afterward.
type TelegramUser struct {
	ID         shared.TelegramID
	FirstName  string
	LastName   string
	Username   string
	Language   string
	Reputation int
	WarnCount  int
	Banned     bool
	LastSeen   time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewTelegramUserParams carries the fields needed to create a new user row.
type NewTelegramUserParams struct {
	ID        shared.TelegramID
	FirstName string
	LastName  string
	Username  string
	Language  string
}

// NewTelegramUser validates params and constructs a fresh TelegramUser.
func NewTelegramUser(params NewTelegramUserParams) (*TelegramUser, error) {
	if !params.ID.IsValid() {
		return nil, shared.ErrInvalidTelegramID
	}
	if strings.TrimSpace(params.FirstName) == "" {
		return nil, shared.NewDomainError("telegramuser", "New", shared.ErrValidation, "first name is required")
	}

	now := time.Now()
	return &TelegramUser{
		ID:        params.ID,
		FirstName: params.FirstName,
		LastName:  params.LastName,
		Username:  params.Username,
		Language:  params.Language,
		LastSeen:  now,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// DisplayName returns "First Last" trimmed, falling back to the username.
func (u *TelegramUser) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" && u.Username != "" {
		return "@" + u.Username
	}
	return name
}

// Touch refreshes the profile fields observed on an inbound update and
// bumps LastSeen. Called on every sighting by User/Group Sync (§4.3 step 3).
func (u *TelegramUser) Touch(firstName, lastName, username, language string, seenAt time.Time) {
	u.FirstName = firstName
	u.LastName = lastName
	u.Username = username
	if language != "" {
		u.Language = language
	}
	if seenAt.After(u.LastSeen) {
		u.LastSeen = seenAt
	}
	u.UpdatedAt = time.Now()
}

// Ban flips the global ban flag. Idempotent.
func (u *TelegramUser) Ban() {
	if u.Banned {
		return
	}
	u.Banned = true
	u.UpdatedAt = time.Now()
}

// Unban flips the global ban flag off. Idempotent.
func (u *TelegramUser) Unban() {
	if !u.Banned {
		return
	}
	u.Banned = false
	u.UpdatedAt = time.Now()
}

// Warn increments the moderation warn count (the `/warn` action, §4.6).
func (u *TelegramUser) Warn() {
	u.WarnCount++
	u.UpdatedAt = time.Now()
}

// HasExcessiveWarnings reports whether the warn count should be flagged in
// moderation confirmations (the "⚠" suffix the original appends at ≥3).
func (u *TelegramUser) HasExcessiveWarnings() bool {
	return u.WarnCount >= 3
}

// Clone returns a deep copy safe for concurrent readers.
func (u *TelegramUser) Clone() *TelegramUser {
	c := *u
	return &c
}
