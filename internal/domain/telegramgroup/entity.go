// Package telegramgroup models TelegramGroup, its GroupMembership overlay,
// and the TelegramBot capability token a group is served by.
package telegramgroup

import (
	"strings"
	"time"

	"github.com/unimi-net/campus-hub/internal/domain/shared"
)

// TelegramBot is a registered bot credential. The token is a bearer
// capability: no unauthenticated surface may leak it (§3).
type TelegramBot struct {
	Token    string
	Username string
	Notes    string
}

// NewTelegramBot validates and constructs a TelegramBot.
func NewTelegramBot(token, username, notes string) (*TelegramBot, error) {
	if strings.TrimSpace(token) == "" {
		return nil, shared.NewDomainError("telegramgroup", "NewBot", shared.ErrValidation, "bot token is required")
	}
	return &TelegramBot{Token: token, Username: username, Notes: notes}, nil
}

// TelegramGroup is a single moderated chat. Title/description/invite_link/
// owner are the only fields the core writes back; everything else is
// managed through the (out-of-scope) admin plane.
type TelegramGroup struct {
	ID                 shared.ChatID
	Title              string
	Description        string
	InviteLink         string
	Language           string
	WelcomeTemplate    string // format slots: {greetings},{title}
	OwnerID            *shared.TelegramID
	BotToken           string
	IgnoreAdminTagging bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

const defaultWelcomeTemplate = "{greetings}! Welcome to {title}."

// NewGroupParams carries the fields needed to create a new group row.
type NewGroupParams struct {
	ID       shared.ChatID
	Title    string
	Language string
	BotToken string
}

// NewTelegramGroup validates params and constructs a fresh TelegramGroup.
func NewTelegramGroup(params NewGroupParams) (*TelegramGroup, error) {
	if !params.ID.IsValid() {
		return nil, shared.ErrInvalidChatID
	}
	if strings.TrimSpace(params.BotToken) == "" {
		return nil, shared.NewDomainError("telegramgroup", "New", shared.ErrValidation, "bot token is required")
	}
	language := params.Language
	if language == "" {
		language = "en"
	}
	now := time.Now()
	return &TelegramGroup{
		ID:              params.ID,
		Title:           params.Title,
		Language:        language,
		WelcomeTemplate: defaultWelcomeTemplate,
		BotToken:        params.BotToken,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// RefreshMetadata updates the fields the refresh_group_info job (§4.9)
// and join-time sync are allowed to write back from Telegram's getChat.
func (g *TelegramGroup) RefreshMetadata(title, description, inviteLink string, owner *shared.TelegramID) {
	g.Title = title
	g.Description = description
	g.InviteLink = inviteLink
	g.OwnerID = owner
	g.UpdatedAt = time.Now()
}

// ToggleAdminTagging flips the `/ignore_admin` group setting (§4.6).
func (g *TelegramGroup) ToggleAdminTagging() {
	g.IgnoreAdminTagging = !g.IgnoreAdminTagging
	g.UpdatedAt = time.Now()
}

// RenderWelcome substitutes {greetings} and {title} in WelcomeTemplate.
func (g *TelegramGroup) RenderWelcome(greetings string) string {
	tmpl := g.WelcomeTemplate
	if tmpl == "" {
		tmpl = defaultWelcomeTemplate
	}
	r := strings.NewReplacer("{greetings}", greetings, "{title}", g.Title)
	return r.Replace(tmpl)
}

// MembershipStatus enumerates a user's standing within a group.
type MembershipStatus string

const (
	MembershipCreator       MembershipStatus = "creator"
	MembershipAdministrator MembershipStatus = "administrator"
	MembershipMember        MembershipStatus = "member"
	MembershipRestricted    MembershipStatus = "restricted"
	MembershipLeft          MembershipStatus = "left"
	MembershipKicked        MembershipStatus = "kicked"
)

// IsActive reports whether the status represents current chat presence.
func (s MembershipStatus) IsActive() bool {
	switch s {
	case MembershipCreator, MembershipAdministrator, MembershipMember, MembershipRestricted:
		return true
	default:
		return false
	}
}

// GroupMembership is the overlay row unique on (user, group). Created on
// first interaction; status/last_seen updated on chat_member transitions;
// messages_count incremented only on genuine user messages (§4.3 step 5).
type GroupMembership struct {
	UserID         shared.TelegramID
	GroupID        shared.ChatID
	Status         MembershipStatus
	LastSeen       time.Time
	MessagesCount  int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewGroupMembership constructs a fresh membership row.
func NewGroupMembership(userID shared.TelegramID, groupID shared.ChatID, status MembershipStatus) *GroupMembership {
	now := time.Now()
	return &GroupMembership{
		UserID:    userID,
		GroupID:   groupID,
		Status:    status,
		LastSeen:  now,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo updates the membership status, as driven by chat_member
// updates (§4.4).
func (m *GroupMembership) TransitionTo(status MembershipStatus, at time.Time) {
	m.Status = status
	if at.After(m.LastSeen) {
		m.LastSeen = at
	}
	m.UpdatedAt = time.Now()
}

// RecordMessage bumps messages_count and LastSeen for a substantive
// (non-service) message.
func (m *GroupMembership) RecordMessage(at time.Time) {
	m.MessagesCount++
	if at.After(m.LastSeen) {
		m.LastSeen = at
	}
	m.UpdatedAt = time.Now()
}
