// Package moderation implements the Moderation Engine (§4.6): command
// parsing, target resolution, authorization via the Permission Resolver,
// and the Parsed→Authorized→(PreLog)→ActionApplied→CommandMessageDeleted→
// Confirmed state machine.
//
// Grounded on original_source/telegrambot/handlers/moderation.py's
// ModerationCommand class and handle_moderation_command function.
package moderation

import (
	"strconv"
	"strings"
	"time"

	"github.com/unimi-net/campus-hub/internal/domain/shared"
	"github.com/unimi-net/campus-hub/internal/infrastructure/external/telegram"
)

// Command identifies a moderation command by its lowercase, bot-suffix-
// stripped name.
type Command string

const (
	CommandInfo        Command = "info"
	CommandDel         Command = "del"
	CommandDelete      Command = "delete"
	CommandWarn        Command = "warn"
	CommandKick        Command = "kick"
	CommandMute        Command = "mute"
	CommandBan         Command = "ban"
	CommandFree        Command = "free"
	CommandSuperban    Command = "superban"
	CommandSuperfree   Command = "superfree"
	CommandClaim       Command = "claim"
	CommandCreation    Command = "creation"
	CommandIgnoreAdmin Command = "ignore_admin"
)

// eventKindFor maps a command to the EventKind it emits. Commands with no
// audit kind of their own (claim, creation, ignore_admin) are handled
// outside the standard logging path.
var eventKindFor = map[Command]shared.EventKind{
	CommandInfo:      shared.EventKindModerationInfo,
	CommandDel:       shared.EventKindModerationDel,
	CommandDelete:    shared.EventKindModerationDel,
	CommandWarn:      shared.EventKindModerationWarn,
	CommandKick:      shared.EventKindModerationKick,
	CommandMute:      shared.EventKindModerationMute,
	CommandBan:       shared.EventKindModerationBan,
	CommandFree:      shared.EventKindModerationFree,
	CommandSuperban:  shared.EventKindModerationSuperban,
	CommandSuperfree: shared.EventKindModerationSuperfree,
}

// IsDestructive reports whether the command's action benefits from
// pre-allocated evidentiary logging (§4.7): anything that might make its
// own triggering evidence disappear.
func (c Command) IsDestructive() bool {
	switch c {
	case CommandDel, CommandDelete, CommandKick, CommandBan, CommandMute, CommandSuperban:
		return true
	default:
		return false
	}
}

// IsCrossGroup reports whether the command iterates every group the
// target belongs to, rather than acting only in the issuing chat.
func (c Command) IsCrossGroup() bool {
	return c == CommandSuperban || c == CommandSuperfree
}

// knownCommands is the recognized command vocabulary, used by
// ParseCommand to reject unrelated slash commands outright.
var knownCommands = map[Command]bool{
	CommandInfo: true, CommandDel: true, CommandDelete: true, CommandWarn: true,
	CommandKick: true, CommandMute: true, CommandBan: true, CommandFree: true,
	CommandSuperban: true, CommandSuperfree: true, CommandClaim: true,
	CommandCreation: true, CommandIgnoreAdmin: true,
}

// ErrNoTargetsInCommand mirrors the original's NoTargetsInCommand: no
// target could be resolved from the command's arguments.
var ErrNoTargetsInCommand = shared.NewDomainError("moderation", "ParseTarget", shared.ErrNoTarget, "no target resolved from command")

// ParsedCommand is the result of parsing a raw message into a moderation
// command, before target resolution.
type ParsedCommand struct {
	Command    Command
	RawArgs    []string // whitespace-split tokens after the command name
	MentionEntity *telegram.MessageEntity
	MentionText   string // the @username or text-mention display text
}

// ParseCommand extracts the command name from msg.Text, stripping any
// `@BotUsername` suffix and lowercasing, per §4.6's command grammar. Returns
// ok=false if the text isn't a recognized moderation command.
func ParseCommand(msg *telegram.Message) (ParsedCommand, bool) {
	if msg == nil || msg.Text == "" || !strings.HasPrefix(msg.Text, "/") {
		return ParsedCommand{}, false
	}
	fields := strings.Fields(msg.Text)
	if len(fields) == 0 {
		return ParsedCommand{}, false
	}
	name := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	cmd := Command(name)
	if !knownCommands[cmd] {
		return ParsedCommand{}, false
	}
	pc := ParsedCommand{Command: cmd, RawArgs: fields[1:]}
	pc.MentionEntity, pc.MentionText = firstMentionEntity(msg)
	return pc, true
}

// firstMentionEntity returns the first "mention" or "text_mention" entity
// that starts after the command token itself, plus its display text — the
// highest-precedence target-resolution source in §4.6's command grammar.
func firstMentionEntity(msg *telegram.Message) (*telegram.MessageEntity, string) {
	commandLen := 0
	if len(msg.Entities) > 0 && msg.Entities[0].Type == "bot_command" {
		commandLen = msg.Entities[0].Offset + msg.Entities[0].Length
	}
	for i := range msg.Entities {
		e := &msg.Entities[i]
		if e.Offset < commandLen {
			continue
		}
		if e.Type != "mention" && e.Type != "text_mention" {
			continue
		}
		runes := []rune(msg.Text)
		if e.Offset < 0 || e.Offset+e.Length > len(runes) {
			return e, ""
		}
		return e, string(runes[e.Offset : e.Offset+e.Length])
	}
	return nil, ""
}

// DurationOrIndefinite parses the last whitespace-delimited token of a
// reason string as a duration (e.g. "10m", "2h"); on parse failure the
// restriction is indefinite, per §4.6's explicit fallback.
func DurationOrIndefinite(reason string) (time.Duration, bool) {
	fields := strings.Fields(reason)
	if len(fields) == 0 {
		return 0, false
	}
	last := fields[len(fields)-1]
	d, err := time.ParseDuration(last)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}

// TrimDurationToken removes the trailing duration token from a reason
// string once it has been consumed by DurationOrIndefinite, so it isn't
// also rendered as part of the logged reason.
func TrimDurationToken(reason string, consumed bool) string {
	if !consumed {
		return reason
	}
	fields := strings.Fields(reason)
	if len(fields) == 0 {
		return reason
	}
	return strings.Join(fields[:len(fields)-1], " ")
}

// parseNumericID reports whether s is a valid Telegram numeric user id.
func parseNumericID(s string) (shared.TelegramID, bool) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	id := shared.TelegramID(n)
	if !id.IsValid() {
		return 0, false
	}
	return id, true
}
