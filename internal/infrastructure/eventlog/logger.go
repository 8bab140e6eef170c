// Package eventlog implements the two-phase pre-allocation audit logger
// (§4.7): before a destructive moderation action runs, a placeholder
// message is sent to the audit chat and the triggering message is
// forwarded alongside it, so evidence survives even if the live message is
// deleted a moment later. Once the action completes, the placeholder is
// edited in place with the final formatted text.
//
// Grounded on original_source/telegrambot/logging.py's prepare/log split.
package eventlog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/unimi-net/campus-hub/internal/domain/moderation"
	"github.com/unimi-net/campus-hub/internal/domain/shared"
	"github.com/unimi-net/campus-hub/internal/domain/telegramgroup"
	"github.com/unimi-net/campus-hub/internal/domain/telegramuser"
	"github.com/unimi-net/campus-hub/internal/infrastructure/external/telegram"
	"github.com/unimi-net/campus-hub/pkg/logger"
)

// Entry describes an audit event to log. ChatID/TargetID/IssuerID are
// optional; which of them render into the audit-chat message is governed
// by Kind per §4.7's per-kind field table.
type Entry struct {
	Kind         shared.EventKind
	ChatID       *shared.ChatID
	TargetID     *shared.TelegramID
	IssuerID     *shared.TelegramID
	BotUsername  string // set instead of TargetID for WHITELIST_BOT
	Reason       string
	ErrorMessage string
	UntilDate    *time.Time
}

// Preallocation is the handle returned by Prepare, passed back into
// Finalize once the triggering action has completed.
type Preallocation struct {
	placeholderMessageID int64
	forwardedMessageID   int64
	sourceChatID         int64
	messageText          string
}

// Logger writes audit events to the configured logging chat and persists
// them via moderation.EventLogRepository.
type Logger struct {
	client       *telegram.Client
	events       moderation.EventLogRepository
	users        telegramuser.Repository
	groups       telegramgroup.GroupRepository
	loggingChat  int64
	log          *logger.Logger
	bus          shared.EventPublisher
}

// Config carries the logging chat destination.
type Config struct {
	LoggingChatID int64
}

// New constructs a Logger. bus is optional: when non-nil, every persisted
// entry is also published on it (keyed by entry.Kind.EventType()) so other
// in-process consumers can react without querying the event log table.
func New(cfg Config, client *telegram.Client, events moderation.EventLogRepository, users telegramuser.Repository, groups telegramgroup.GroupRepository, log *logger.Logger, bus shared.EventPublisher) *Logger {
	return &Logger{
		client:      client,
		events:      events,
		users:       users,
		groups:      groups,
		loggingChat: cfg.LoggingChatID,
		log:         log,
		bus:         bus,
	}
}

// Prepare sends a placeholder message to the audit chat and, if messageID
// is non-zero, forwards that message alongside — used before /del and
// /delete so the evidence survives even if the target message is deleted
// a moment later (§4.7).
func (l *Logger) Prepare(ctx context.Context, sourceChatID int64, messageID int64) (*Preallocation, error) {
	placeholder, err := l.client.SendMessage(ctx, telegram.SendMessageParams{
		ChatID:    l.loggingChat,
		Text:      "...",
		ParseMode: "HTML",
	})
	if err != nil {
		return nil, fmt.Errorf("eventlog: prepare placeholder: %w", err)
	}
	alloc := &Preallocation{
		placeholderMessageID: placeholder.MessageID,
		sourceChatID:         sourceChatID,
	}
	if messageID != 0 {
		fwd, err := l.client.ForwardMessage(ctx, l.loggingChat, sourceChatID, messageID)
		if err != nil {
			l.log.Warn("eventlog: failed to forward triggering message", logger.Err(err))
		} else {
			alloc.forwardedMessageID = fwd.MessageID
		}
	}
	return alloc, nil
}

// Log appends a plain (non-evidentiary) event — no pre-allocated
// placeholder, no forwarded message. Satisfies the narrow EventLogger
// interface sync and adminnotify depend on.
func (l *Logger) Log(ctx context.Context, params moderation.NewEventLogParams) error {
	return l.write(ctx, Entry{
		Kind:     params.Kind,
		ChatID:   params.ChatID,
		TargetID: params.TargetID,
		IssuerID: params.IssuerID,
		BotUsername: params.BotToken,
		Reason:    params.Reason,
		UntilDate: params.UntilDate,
	}, nil, false)
}

// LogWithEvidence appends entry to the event log and renders it to the
// audit chat. If prepared is non-nil, the placeholder from Prepare is
// edited in place; otherwise a fresh message is sent. messageDeleted
// reports whether the command handler deleted the triggering message after
// acting on it (§4.7).
func (l *Logger) LogWithEvidence(ctx context.Context, entry Entry, prepared *Preallocation, messageDeleted bool) error {
	return l.write(ctx, entry, prepared, messageDeleted)
}

func (l *Logger) write(ctx context.Context, entry Entry, prepared *Preallocation, messageDeleted bool) error {
	text := l.render(ctx, entry, messageDeleted, prepared != nil && prepared.forwardedMessageID != 0)

	var auditMessageID int64
	if prepared == nil {
		sent, err := l.client.SendMessage(ctx, telegram.SendMessageParams{
			ChatID:    l.loggingChat,
			Text:      text,
			ParseMode: "HTML",
		})
		if err != nil {
			return fmt.Errorf("eventlog: send: %w", err)
		}
		auditMessageID = sent.MessageID
	} else {
		edited, err := l.client.EditMessageText(ctx, l.loggingChat, prepared.placeholderMessageID, text, "HTML", nil)
		if err != nil {
			return fmt.Errorf("eventlog: edit placeholder: %w", err)
		}
		auditMessageID = edited.MessageID
	}

	record := moderation.NewEventLog(moderation.NewEventLogParams{
		Kind:      entry.Kind,
		ChatID:    entry.ChatID,
		TargetID:  entry.TargetID,
		IssuerID:  entry.IssuerID,
		BotToken:  entry.BotUsername,
		Reason:    entry.Reason,
		UntilDate: entry.UntilDate,
	})
	record.Finalize(text, messageDeleted)
	record.AuditMessageID = int(auditMessageID)
	if _, err := l.events.Append(ctx, record); err != nil {
		l.log.Error("eventlog: failed to persist event log", logger.Err(err), logger.String("kind", entry.Kind.String()))
		return err
	}
	l.publish(entry)
	return nil
}

// publish fans entry out to the in-process event bus, if one is configured.
// Failures here never affect the write's result: the event log row is
// already committed by the time publish runs.
func (l *Logger) publish(entry Entry) {
	if l.bus == nil {
		return
	}
	aggregateID := "unknown"
	if entry.ChatID != nil {
		aggregateID = fmt.Sprintf("chat:%d", int64(*entry.ChatID))
	} else if entry.TargetID != nil {
		aggregateID = fmt.Sprintf("user:%d", int64(*entry.TargetID))
	}
	event := auditEvent{
		BaseEvent: shared.NewBaseEvent(entry.Kind.EventType(), aggregateID),
		kind:      entry.Kind,
		reason:    entry.Reason,
	}
	if err := l.bus.Publish(event); err != nil {
		l.log.Warn("eventlog: event bus publish failed", logger.Err(err), logger.String("kind", entry.Kind.String()))
	}
}

// auditEvent adapts an Entry to shared.Event for publication on the bus.
type auditEvent struct {
	shared.BaseEvent
	kind   shared.EventKind
	reason string
}

func (e auditEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"kind":   e.kind.String(),
		"reason": e.reason,
	}
}

// render builds the audit-chat HTML text per §4.7's per-kind field table.
func (l *Logger) render(ctx context.Context, e Entry, messageDeleted bool, hasForwardedMessage bool) string {
	var b strings.Builder
	star := ""
	if messageDeleted {
		star = "*"
	}
	fmt.Fprintf(&b, "%s #%s%s", e.Kind.Glyph(), e.Kind.String(), star)

	if e.ChatID != nil {
		b.WriteString("\n👥 <b>Group</b>: ")
		b.WriteString(l.formatChat(ctx, *e.ChatID))
	}

	targetKinds := map[shared.EventKind]bool{
		shared.EventKindModerationWarn: true, shared.EventKindModerationKick: true,
		shared.EventKindModerationBan: true, shared.EventKindModerationMute: true,
		shared.EventKindModerationFree: true, shared.EventKindModerationSuperban: true,
		shared.EventKindModerationSuperfree: true, shared.EventKindModerationDel: true,
		shared.EventKindUserLeft: true, shared.EventKindUserJoined: true,
		shared.EventKindNotEnoughRights: true, shared.EventKindUserCalledAdmin: true,
	}
	if targetKinds[e.Kind] && e.TargetID != nil {
		b.WriteString("\n👤 <b>Target user</b>: ")
		b.WriteString(l.formatUser(ctx, *e.TargetID))
	}
	if e.Kind == shared.EventKindWhitelistBot {
		if e.BotUsername == "" {
			return b.String()
		}
		b.WriteString("\n👤 <b>Target bot</b>: ")
		b.WriteString(e.BotUsername)
	}

	issuerKinds := map[shared.EventKind]bool{
		shared.EventKindModerationWarn: true, shared.EventKindModerationKick: true,
		shared.EventKindModerationBan: true, shared.EventKindModerationMute: true,
		shared.EventKindModerationFree: true, shared.EventKindModerationSuperban: true,
		shared.EventKindModerationSuperfree: true, shared.EventKindWhitelistBot: true,
		shared.EventKindModerationDel: true, shared.EventKindUserCalledAdmin: true,
		shared.EventKindBroadcast: true,
	}
	if issuerKinds[e.Kind] && e.IssuerID != nil {
		b.WriteString("\n👮 <b>Issuer</b>: ")
		b.WriteString(l.formatUser(ctx, *e.IssuerID))
	}
	if e.Kind == shared.EventKindModerationMute && e.UntilDate != nil {
		fmt.Fprintf(&b, "\n⏳ <b>Until date</b>: %s", e.UntilDate.Format("02/01/2006 15:04"))
	}
	if e.Kind == shared.EventKindTelegramError && e.ErrorMessage != "" {
		b.WriteString("\n💬 <b>Error message</b>: ")
		b.WriteString(e.ErrorMessage)
	}
	if e.Reason != "" {
		b.WriteString("\n💬 <b>Reason</b>: ")
		b.WriteString(e.Reason)
	}
	if hasForwardedMessage {
		b.WriteString("\n📜 <b>Message</b>: <i>see below</i>")
	}
	return b.String()
}

func (l *Logger) formatChat(ctx context.Context, id shared.ChatID) string {
	gid := fmt.Sprintf("#gid_%s", strings.TrimPrefix(fmt.Sprint(int64(id)), "-"))
	group, err := l.groups.FindByID(ctx, id)
	if err != nil {
		return gid
	}
	return fmt.Sprintf("%s %s", group.Title, gid)
}

func (l *Logger) formatUser(ctx context.Context, id shared.TelegramID) string {
	uid := fmt.Sprintf("#uid_%d", int64(id))
	user, err := l.users.FindByID(ctx, id)
	if err != nil {
		return uid
	}
	text := user.FirstName
	if user.LastName != "" {
		text += " " + user.LastName
	}
	if user.Username != "" {
		username := user.Username
		if !strings.HasPrefix(username, "@") {
			username = "@" + username
		}
		text += fmt.Sprintf(" [%s]", username)
	}
	return fmt.Sprintf("%s %s", text, uid)
}
