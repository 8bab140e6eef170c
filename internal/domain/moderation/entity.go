// Package moderation models the append-only audit trail (EventLog) and the
// global blacklist that feeds the GloballyBanned sync check (§4.3 step 4).
package moderation

import (
	"time"

	"github.com/unimi-net/campus-hub/internal/domain/shared"
)

// BlacklistSource records why a user was blacklisted.
type BlacklistSource string

const (
	BlacklistSourceAdministrator BlacklistSource = "administrator"
	BlacklistSourceExternalFeed  BlacklistSource = "external_feed"
)

// BlacklistedUser is a globally-banned user id. The sync_external_blocklist
// job flips the Banned flag of the matching TelegramUser for every id it
// newly inserts; it logs no MODERATION_SUPERBAN event for those inserts.
type BlacklistedUser struct {
	UserID    shared.TelegramID
	Source    BlacklistSource
	CreatedAt time.Time
}

// EventLog is the append-only audit record. The event logger inserts each
// row once, after the audit-chat message is final (including the two-phase
// pre-allocation path of §4.7), and never updates it.
type EventLog struct {
	ID             int64
	Kind           shared.EventKind
	ChatID         *shared.ChatID
	TargetID       *shared.TelegramID
	IssuerID       *shared.TelegramID
	BotToken       string // set instead of TargetID for WHITELIST_BOT
	Reason         string
	MessageText    string
	MessageDeleted bool
	UntilDate      *time.Time
	// AuditMessageID is the message id of the placeholder/final message in
	// the audit chat, captured at pre-allocation time (§4.7).
	AuditMessageID int
	Timestamp      time.Time
}

// NewEventLogParams carries the fields needed to append an event.
type NewEventLogParams struct {
	Kind      shared.EventKind
	ChatID    *shared.ChatID
	TargetID  *shared.TelegramID
	IssuerID  *shared.TelegramID
	BotToken  string
	Reason    string
	UntilDate *time.Time
}

// NewEventLog constructs a fresh EventLog entry timestamped now.
func NewEventLog(params NewEventLogParams) *EventLog {
	return &EventLog{
		Kind:      params.Kind,
		ChatID:    params.ChatID,
		TargetID:  params.TargetID,
		IssuerID:  params.IssuerID,
		BotToken:  params.BotToken,
		Reason:    params.Reason,
		UntilDate: params.UntilDate,
		Timestamp: time.Now(),
	}
}

// Finalize attaches the formatted message text and forwarded-message
// deletion status once the pre-allocated placeholder is edited (§4.7 step c).
func (e *EventLog) Finalize(messageText string, messageDeleted bool) {
	e.MessageText = messageText
	e.MessageDeleted = messageDeleted
}
