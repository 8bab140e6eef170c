// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven architecture.
const (
	// Sync / ingress events
	EventChatDoesNotExist EventType = "sync.chat_does_not_exist"
	EventUserJoined       EventType = "membership.user_joined"
	EventUserLeft         EventType = "membership.user_left"
	EventWhitelistBot     EventType = "membership.whitelist_bot"

	// Moderation events - one per EventKind in the moderation taxonomy.
	EventModerationInfo      EventType = "moderation.info"
	EventModerationDel       EventType = "moderation.del"
	EventModerationWarn      EventType = "moderation.warn"
	EventModerationKick      EventType = "moderation.kick"
	EventModerationBan       EventType = "moderation.ban"
	EventModerationMute      EventType = "moderation.mute"
	EventModerationFree      EventType = "moderation.free"
	EventModerationSuperban  EventType = "moderation.superban"
	EventModerationSuperfree EventType = "moderation.superfree"
	EventNotEnoughRights     EventType = "moderation.not_enough_rights"

	// Notifier / system events
	EventUserCalledAdmin EventType = "notify.user_called_admin"
	EventTelegramError   EventType = "system.telegram_error"
	EventBroadcast       EventType = "system.broadcast"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// ═══════════════════════════════════════════════════════════════════════════
// EventKind — the stable integer taxonomy persisted in EventLog
// ═══════════════════════════════════════════════════════════════════════════

// EventKind is the stable integer identifier for an audit event, persisted
// verbatim in EventLog rows so historical queries survive renames. The
// ordering and values below are fixed; never renumber an existing kind.
type EventKind int

const (
	EventKindChatDoesNotExist EventKind = 0
	EventKindModerationWarn   EventKind = 1
	EventKindModerationKick   EventKind = 2
	EventKindModerationBan    EventKind = 3
	EventKindModerationMute   EventKind = 4
	EventKindModerationInfo   EventKind = 5
	EventKindModerationFree   EventKind = 6
	EventKindModerationSuperban EventKind = 7
	EventKindUserJoined       EventKind = 8
	EventKindUserLeft         EventKind = 9
	EventKindNotEnoughRights  EventKind = 10
	EventKindModerationSuperfree EventKind = 11
	EventKindTelegramError    EventKind = 12
	EventKindUserCalledAdmin  EventKind = 13
	EventKindModerationDel    EventKind = 14
	EventKindWhitelistBot     EventKind = 15
	EventKindBroadcast        EventKind = 16
)

type eventKindInfo struct {
	name  string
	glyph string
	verb  string
}

var eventKindTable = map[EventKind]eventKindInfo{
	EventKindChatDoesNotExist:   {"CHAT_DOES_NOT_EXIST", "❗️", ""},
	EventKindModerationWarn:     {"MODERATION_WARN", "🟡", "warned"},
	EventKindModerationKick:     {"MODERATION_KICK", "⚪", "banned from the group"},
	EventKindModerationBan:      {"MODERATION_BAN", "🔴", "permanently banned from the group"},
	EventKindModerationMute:     {"MODERATION_MUTE", "🟠", "muted in the group"},
	EventKindModerationInfo:     {"MODERATION_INFO", "ℹ️", ""},
	EventKindModerationFree:     {"MODERATION_FREE", "🟢", "unbanned from the group"},
	EventKindModerationSuperban: {"MODERATION_SUPERBAN", "⚫️", "permanently banned from all groups"},
	EventKindUserJoined:         {"USER_JOINED", "➕", ""},
	EventKindUserLeft:           {"USER_LEFT", "➖", ""},
	EventKindNotEnoughRights:    {"NOT_ENOUGH_RIGHTS", "🔰", ""},
	EventKindModerationSuperfree: {"MODERATION_SUPERFREE", "✳️", "unbanned from all groups"},
	EventKindTelegramError:      {"TELEGRAM_ERROR", "❗️", ""},
	EventKindUserCalledAdmin:    {"USER_CALLED_ADMIN", "🧑‍⚖️", ""},
	EventKindModerationDel:      {"MODERATION_DEL", "✏️", ""},
	EventKindWhitelistBot:       {"WHITELIST_BOT", "⚪", ""},
	EventKindBroadcast:          {"BROADCAST", "📡", ""},
}

// String returns the stable symbolic name, e.g. "MODERATION_BAN".
func (k EventKind) String() string {
	if info, ok := eventKindTable[k]; ok {
		return info.name
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(k))
}

// Glyph returns the emoji used when formatting an audit-chat message.
func (k EventKind) Glyph() string {
	return eventKindTable[k].glyph
}

// Verb returns the past-tense verb used in moderation confirmation text,
// empty for event kinds that don't render one (info, joins/leaves, system).
func (k EventKind) Verb() string {
	return eventKindTable[k].verb
}

// IsModeration reports whether this kind belongs to the moderation command
// table of §4.6 — the set a role's capability overrides apply to.
func (k EventKind) IsModeration() bool {
	switch k {
	case EventKindModerationInfo, EventKindModerationDel, EventKindModerationWarn,
		EventKindModerationKick, EventKindModerationBan, EventKindModerationMute,
		EventKindModerationFree, EventKindModerationSuperban, EventKindModerationSuperfree:
		return true
	default:
		return false
	}
}

// EventType returns the string EventType constant this kind publishes under
// on the internal event bus, bridging the persisted integer taxonomy with
// the pub/sub taxonomy used by EventBus subscribers.
func (k EventKind) EventType() EventType {
	switch k {
	case EventKindChatDoesNotExist:
		return EventChatDoesNotExist
	case EventKindUserJoined:
		return EventUserJoined
	case EventKindUserLeft:
		return EventUserLeft
	case EventKindWhitelistBot:
		return EventWhitelistBot
	case EventKindModerationInfo:
		return EventModerationInfo
	case EventKindModerationDel:
		return EventModerationDel
	case EventKindModerationWarn:
		return EventModerationWarn
	case EventKindModerationKick:
		return EventModerationKick
	case EventKindModerationBan:
		return EventModerationBan
	case EventKindModerationMute:
		return EventModerationMute
	case EventKindModerationFree:
		return EventModerationFree
	case EventKindModerationSuperban:
		return EventModerationSuperban
	case EventKindModerationSuperfree:
		return EventModerationSuperfree
	case EventKindNotEnoughRights:
		return EventNotEnoughRights
	case EventKindUserCalledAdmin:
		return EventUserCalledAdmin
	case EventKindTelegramError:
		return EventTelegramError
	case EventKindBroadcast:
		return EventBroadcast
	default:
		return EventType(k.String())
	}
}

// ModerationCommandKinds lists the EventKind values a moderation command can
// map to, in the order the command table of §4.6 enumerates them.
var ModerationCommandKinds = []EventKind{
	EventKindModerationInfo,
	EventKindModerationDel,
	EventKindModerationWarn,
	EventKindModerationKick,
	EventKindModerationMute,
	EventKindModerationBan,
	EventKindModerationFree,
	EventKindModerationSuperban,
	EventKindModerationSuperfree,
}
