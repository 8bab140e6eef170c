package moderation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/unimi-net/campus-hub/internal/application/permission"
	"github.com/unimi-net/campus-hub/internal/domain/catalog"
	domainmod "github.com/unimi-net/campus-hub/internal/domain/moderation"
	"github.com/unimi-net/campus-hub/internal/domain/shared"
	"github.com/unimi-net/campus-hub/internal/domain/telegramgroup"
	"github.com/unimi-net/campus-hub/internal/domain/telegramuser"
	"github.com/unimi-net/campus-hub/internal/infrastructure/external/telegram"
	"github.com/unimi-net/campus-hub/internal/infrastructure/eventlog"
	"github.com/unimi-net/campus-hub/pkg/logger"
)

// ConfirmationTTL is the default lifetime of an in-chat confirmation
// message before the Scheduler deletes it (§4.6's "~90s" default).
const ConfirmationTTL = 90 * time.Second

// EventLogger is the narrow logging surface the engine depends on — both
// the plain and evidentiary paths of the Event Logger (§4.7). Satisfied by
// *eventlog.Logger.
type EventLogger interface {
	Log(ctx context.Context, params domainmod.NewEventLogParams) error
	Prepare(ctx context.Context, sourceChatID int64, messageID int64) (*eventlog.Preallocation, error)
	LogWithEvidence(ctx context.Context, entry eventlog.Entry, prepared *eventlog.Preallocation, messageDeleted bool) error
}

// TaskScheduler is the narrow surface the engine needs from the Scheduler
// (§4.9): enqueue a delayed delete_message task instead of blocking on
// time.Sleep in the request handler (§5's "ingress must return promptly").
type TaskScheduler interface {
	ScheduleMessageDeletion(ctx context.Context, chatID shared.ChatID, messageID int64, after time.Duration) error
}

// Engine executes parsed moderation commands: target resolution,
// authorization via the Permission Resolver, the Telegram action, the
// pre-allocation logging protocol for destructive commands, and the
// in-chat/DM confirmation. Grounded on
// original_source/telegrambot/handlers/moderation.py's handle_moderation_command.
type Engine struct {
	client      *telegram.Client
	resolver    *permission.Resolver
	events      EventLogger
	scheduler   TaskScheduler
	users       telegramuser.Repository
	groups      telegramgroup.GroupRepository
	memberships telegramgroup.MembershipRepository
	catalogRepo catalog.Repository
	log         *logger.Logger
}

// New constructs a Moderation Engine.
func New(
	client *telegram.Client,
	resolver *permission.Resolver,
	events EventLogger,
	scheduler TaskScheduler,
	users telegramuser.Repository,
	groups telegramgroup.GroupRepository,
	memberships telegramgroup.MembershipRepository,
	catalogRepo catalog.Repository,
	log *logger.Logger,
) *Engine {
	return &Engine{
		client:      client,
		resolver:    resolver,
		events:      events,
		scheduler:   scheduler,
		users:       users,
		groups:      groups,
		memberships: memberships,
		catalogRepo: catalogRepo,
		log:         log,
	}
}

// Execute runs the Parsed→Authorized→(PreLog)→ActionApplied→
// CommandMessageDeleted→Confirmed state machine for one parsed command.
func (e *Engine) Execute(ctx context.Context, pc ParsedCommand, msg *telegram.Message, issuerID shared.TelegramID) error {
	chatID, err := shared.NewChatID(msg.Chat.ID)
	if err != nil {
		return fmt.Errorf("moderation: invalid chat id: %w", err)
	}

	// claim/creation/ignore_admin carry no moderation EventKind of their
	// own (command.go's eventKindFor intentionally omits them) — they are
	// handled outside the standard authorize→act→log path.
	switch pc.Command {
	case CommandClaim:
		return e.executeClaim(ctx, msg, chatID, issuerID)
	case CommandCreation:
		return e.executeCreation(ctx, msg, chatID, issuerID)
	case CommandIgnoreAdmin:
		return e.executeIgnoreAdmin(ctx, msg, chatID, issuerID)
	}

	kind, ok := eventKindFor[pc.Command]
	if !ok {
		return fmt.Errorf("moderation: %s: %w", pc.Command, shared.ErrCommandParse)
	}

	result, err := e.resolver.Resolve(ctx, issuerID, chatID)
	if err != nil {
		return fmt.Errorf("moderation: resolve permissions: %w", err)
	}
	if !result.Allows(kind) {
		// NotAuthorized: silent drop, standard anti-recon posture (§4.6, §7).
		return nil
	}

	targetID, reason, ok := e.resolveTarget(ctx, pc, msg)
	if !ok && pc.Command != CommandInfo {
		e.postUsageHint(ctx, chatID, pc.Command)
		return nil
	}
	if !ok {
		// info with no resolvable target falls back to the issuer.
		targetID = issuerID
	}

	switch pc.Command {
	case CommandInfo:
		return e.executeInfo(ctx, chatID, issuerID, targetID)
	case CommandDel:
		return e.executeDelete(ctx, msg, chatID, issuerID, kind, reason)
	case CommandDelete:
		return e.executeDeleteByID(ctx, pc, msg, chatID, issuerID, kind, reason)
	case CommandWarn:
		return e.executeWarn(ctx, msg, chatID, issuerID, targetID, kind, reason)
	case CommandKick:
		return e.executeKick(ctx, msg, chatID, issuerID, targetID, kind, reason)
	case CommandMute:
		return e.executeMute(ctx, pc, msg, chatID, issuerID, targetID, kind, reason)
	case CommandBan:
		return e.executeBan(ctx, msg, chatID, issuerID, targetID, kind, reason)
	case CommandFree:
		return e.executeFree(ctx, msg, chatID, issuerID, targetID, kind, reason)
	case CommandSuperban:
		return e.executeSuperban(ctx, issuerID, targetID, reason)
	case CommandSuperfree:
		return e.executeSuperfree(ctx, issuerID, targetID, reason)
	default:
		return fmt.Errorf("moderation: unhandled command %s", pc.Command)
	}
}

// resolveTarget implements §4.6's precedence: mention/text-mention entity
// (only text_mention carries an attached user id on the wire) → numeric id
// in the first word → replied-to message's author.
func (e *Engine) resolveTarget(ctx context.Context, pc ParsedCommand, msg *telegram.Message) (shared.TelegramID, string, bool) {
	if pc.MentionEntity != nil && pc.MentionEntity.User != nil {
		id := shared.TelegramID(pc.MentionEntity.User.ID)
		if id.IsValid() {
			return id, reasonAfterMention(pc), true
		}
	}
	if len(pc.RawArgs) > 0 {
		if id, ok := parseNumericID(pc.RawArgs[0]); ok {
			return id, strings.Join(pc.RawArgs[1:], " "), true
		}
	}
	if msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil {
		id := shared.TelegramID(msg.ReplyToMessage.From.ID)
		if id.IsValid() {
			return id, strings.Join(pc.RawArgs, " "), true
		}
	}
	return 0, "", false
}

// reasonAfterMention reconstructs the reason text following a plain
// @username mention, since that token isn't a RawArgs entry by id.
func reasonAfterMention(pc ParsedCommand) string {
	if pc.MentionText == "" {
		return strings.Join(pc.RawArgs, " ")
	}
	for i, arg := range pc.RawArgs {
		if strings.EqualFold(arg, pc.MentionText) || strings.EqualFold(arg, "@"+strings.TrimPrefix(pc.MentionText, "@")) {
			return strings.Join(pc.RawArgs[i+1:], " ")
		}
	}
	return strings.Join(pc.RawArgs, " ")
}

// postUsageHint posts the friendly NO_TARGET feedback (§7).
func (e *Engine) postUsageHint(ctx context.Context, chatID shared.ChatID, cmd Command) {
	hint := fmt.Sprintf("Usage: reply to a message, or pass @username / a numeric id, to use /%s.", cmd)
	sent, err := e.client.SendText(ctx, chatID.Int64(), hint)
	if err != nil {
		e.log.Warn("moderation: failed to post usage hint", logger.Err(err))
		return
	}
	e.scheduleDeletion(ctx, chatID, sent.MessageID)
}

// scheduleDeletion enqueues a deferred delete_message task rather than
// blocking the request handler (§4.6's confirmation TTL, §5).
func (e *Engine) scheduleDeletion(ctx context.Context, chatID shared.ChatID, messageID int64) {
	if e.scheduler == nil {
		return
	}
	if err := e.scheduler.ScheduleMessageDeletion(ctx, chatID, messageID, ConfirmationTTL); err != nil {
		e.log.Warn("moderation: failed to schedule confirmation deletion", logger.Err(err))
	}
}

// confirm posts a chat-visible confirmation and schedules its deletion —
// every command but info (private) and del (silent) ends this way (§4.6).
func (e *Engine) confirm(ctx context.Context, chatID shared.ChatID, text string) {
	sent, err := e.client.SendText(ctx, chatID.Int64(), text)
	if err != nil {
		if retryAfter, ok := asRetryAfter(err); ok {
			time.Sleep(retryAfter)
			sent, err = e.client.SendText(ctx, chatID.Int64(), text)
		}
		if err != nil {
			e.log.Warn("moderation: failed to post confirmation", logger.Err(err))
			return
		}
	}
	e.scheduleDeletion(ctx, chatID, sent.MessageID)
}

// asRetryAfter extracts a Telegram RetryAfter duration from err, if any.
func asRetryAfter(err error) (time.Duration, bool) {
	var apiErr *telegram.APIError
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		return time.Duration(apiErr.RetryAfter) * time.Second, true
	}
	return 0, false
}

// logEvent appends a plain (non-evidentiary) audit entry of the given kind.
func (e *Engine) logEvent(ctx context.Context, kind shared.EventKind, chatID shared.ChatID, targetID, issuerID *shared.TelegramID, reason string, untilDate *time.Time) {
	if err := e.events.Log(ctx, domainmod.NewEventLogParams{
		Kind:      kind,
		ChatID:    &chatID,
		TargetID:  targetID,
		IssuerID:  issuerID,
		Reason:    reason,
		UntilDate: untilDate,
	}); err != nil {
		e.log.Error("moderation: failed to log event", logger.Err(err), logger.String("kind", kind.String()))
	}
}

func (e *Engine) logNotEnoughRights(ctx context.Context, chatID shared.ChatID, issuerID shared.TelegramID) {
	e.logEvent(ctx, shared.EventKindNotEnoughRights, chatID, nil, &issuerID, "", nil)
}

// --- info -------------------------------------------------------------

func (e *Engine) executeInfo(ctx context.Context, chatID shared.ChatID, issuerID, targetID shared.TelegramID) error {
	user, err := e.users.FindByID(ctx, targetID)
	if err != nil {
		return fmt.Errorf("moderation: info: %w", err)
	}
	memberships, err := e.memberships.FindGroupsForUser(ctx, targetID)
	if err != nil {
		return fmt.Errorf("moderation: info: %w", err)
	}
	dossier := renderDossier(user, memberships)
	for _, chunk := range chunkText(dossier, 4096) {
		if _, err := e.client.SendHTML(ctx, issuerID.Int64(), chunk); err != nil {
			e.log.Warn("moderation: failed to DM dossier", logger.Err(err))
			return nil
		}
	}
	e.logEvent(ctx, shared.EventKindModerationInfo, chatID, &targetID, &issuerID, "", nil)
	return nil
}

// --- del / delete -------------------------------------------------------

func (e *Engine) executeDelete(ctx context.Context, msg *telegram.Message, chatID shared.ChatID, issuerID shared.TelegramID, kind shared.EventKind, reason string) error {
	if msg.ReplyToMessage == nil {
		e.postUsageHint(ctx, chatID, CommandDel)
		return nil
	}
	return e.deleteAndLog(ctx, chatID, issuerID, msg.ReplyToMessage.MessageID, targetOf(msg.ReplyToMessage), kind, reason, msg.MessageID)
}

func (e *Engine) executeDeleteByID(ctx context.Context, pc ParsedCommand, msg *telegram.Message, chatID shared.ChatID, issuerID shared.TelegramID, kind shared.EventKind, reason string) error {
	if len(pc.RawArgs) == 0 {
		e.postUsageHint(ctx, chatID, CommandDelete)
		return nil
	}
	messageID, ok := parseNumericID(pc.RawArgs[0])
	if !ok {
		e.postUsageHint(ctx, chatID, CommandDelete)
		return nil
	}
	return e.deleteAndLog(ctx, chatID, issuerID, int64(messageID), nil, kind, strings.Join(pc.RawArgs[1:], " "), msg.MessageID)
}

func targetOf(msg *telegram.Message) *shared.TelegramID {
	if msg == nil || msg.From == nil {
		return nil
	}
	id := shared.TelegramID(msg.From.ID)
	return &id
}

// deleteAndLog implements the pre-allocation protocol (§4.7): the
// placeholder + forward happen before the deletion itself, so evidence of
// the deleted message survives in the audit chat.
func (e *Engine) deleteAndLog(ctx context.Context, chatID shared.ChatID, issuerID shared.TelegramID, messageID int64, targetID *shared.TelegramID, kind shared.EventKind, reason string, commandMessageID int64) error {
	prepared, err := e.events.Prepare(ctx, chatID.Int64(), messageID)
	if err != nil {
		e.log.Warn("moderation: pre-allocation failed, continuing without evidence", logger.Err(err))
	}
	err = e.client.DeleteMessage(ctx, chatID.Int64(), messageID)
	deleted := err == nil
	if err != nil && !isAlreadyDeleted(err) {
		e.log.Warn("moderation: delete message failed", logger.Err(err))
	}
	if err := e.events.LogWithEvidence(ctx, eventlog.Entry{
		Kind:     kind,
		ChatID:   &chatID,
		TargetID: targetID,
		IssuerID: &issuerID,
		Reason:   reason,
	}, prepared, deleted); err != nil {
		e.log.Error("moderation: failed to log evidentiary event", logger.Err(err))
	}
	// del/delete are silent in-chat per §4.6; also clean up the command message itself.
	_ = e.client.DeleteMessage(ctx, chatID.Int64(), commandMessageID)
	return nil
}

func isAlreadyDeleted(err error) bool {
	var apiErr *telegram.APIError
	if errors.As(err, &apiErr) {
		return strings.Contains(strings.ToLower(apiErr.Description), "message to delete not found") ||
			strings.Contains(strings.ToLower(apiErr.Description), "message can't be deleted")
	}
	return false
}

// --- warn ---------------------------------------------------------------

func (e *Engine) executeWarn(ctx context.Context, msg *telegram.Message, chatID shared.ChatID, issuerID, targetID shared.TelegramID, kind shared.EventKind, reason string) error {
	target, err := e.users.FindByID(ctx, targetID)
	if err != nil {
		return fmt.Errorf("moderation: warn: %w", err)
	}
	target.Warn()
	if err := e.users.Upsert(ctx, target); err != nil {
		return fmt.Errorf("moderation: warn: persist: %w", err)
	}
	e.logEvent(ctx, kind, chatID, &targetID, &issuerID, reason, nil)
	_ = e.client.DeleteMessage(ctx, chatID.Int64(), msg.MessageID)
	suffix := ""
	if target.HasExcessiveWarnings() {
		suffix = " ⚠"
	}
	e.confirm(ctx, chatID, fmt.Sprintf("%s has been warned (%d warnings)%s.", target.DisplayName(), target.WarnCount, suffix))
	return nil
}

// --- kick -----------------------------------------------------------------

func (e *Engine) executeKick(ctx context.Context, msg *telegram.Message, chatID shared.ChatID, issuerID, targetID shared.TelegramID, kind shared.EventKind, reason string) error {
	if err := e.client.BanChatMember(ctx, chatID.Int64(), targetID.Int64()); err != nil {
		return e.handleActionFailure(ctx, chatID, issuerID, "kick", err)
	}
	if err := e.client.UnbanChatMember(ctx, telegram.UnbanChatMemberParams{ChatID: chatID.Int64(), UserID: targetID.Int64(), OnlyIfBanned: true}); err != nil {
		e.log.Warn("moderation: kick: failed to lift ban after kicking", logger.Err(err))
	}
	e.logEvent(ctx, kind, chatID, &targetID, &issuerID, reason, nil)
	_ = e.client.DeleteMessage(ctx, chatID.Int64(), msg.MessageID)
	e.confirm(ctx, chatID, fmt.Sprintf("I seguenti utenti sono stati kickati: %s", targetID.String()))
	return nil
}

// --- mute -----------------------------------------------------------------

func (e *Engine) executeMute(ctx context.Context, pc ParsedCommand, msg *telegram.Message, chatID shared.ChatID, issuerID, targetID shared.TelegramID, kind shared.EventKind, reason string) error {
	duration, consumed := DurationOrIndefinite(reason)
	reason = TrimDurationToken(reason, consumed)
	var untilDate *time.Time
	var untilUnix int64
	if consumed {
		t := time.Now().Add(duration)
		untilDate = &t
		untilUnix = t.Unix()
	}
	err := e.client.RestrictChatMember(ctx, telegram.RestrictChatMemberParams{
		ChatID:      chatID.Int64(),
		UserID:      targetID.Int64(),
		Permissions: telegram.ChatPermissions{},
		UntilDate:   untilUnix,
	})
	if err != nil {
		return e.handleActionFailure(ctx, chatID, issuerID, "mute", err)
	}
	e.logEvent(ctx, kind, chatID, &targetID, &issuerID, reason, untilDate)
	_ = e.client.DeleteMessage(ctx, chatID.Int64(), msg.MessageID)
	e.confirm(ctx, chatID, fmt.Sprintf("%s has been muted.", targetID.String()))
	return nil
}

// --- ban ------------------------------------------------------------------

func (e *Engine) executeBan(ctx context.Context, msg *telegram.Message, chatID shared.ChatID, issuerID, targetID shared.TelegramID, kind shared.EventKind, reason string) error {
	if err := e.client.BanChatMember(ctx, chatID.Int64(), targetID.Int64()); err != nil {
		return e.handleActionFailure(ctx, chatID, issuerID, "ban", err)
	}
	e.logEvent(ctx, kind, chatID, &targetID, &issuerID, reason, nil)
	_ = e.client.DeleteMessage(ctx, chatID.Int64(), msg.MessageID)
	e.confirm(ctx, chatID, fmt.Sprintf("%s has been banned.", targetID.String()))
	return nil
}

// --- free -----------------------------------------------------------------

func (e *Engine) executeFree(ctx context.Context, msg *telegram.Message, chatID shared.ChatID, issuerID, targetID shared.TelegramID, kind shared.EventKind, reason string) error {
	if err := e.client.UnbanChatMember(ctx, telegram.UnbanChatMemberParams{ChatID: chatID.Int64(), UserID: targetID.Int64(), OnlyIfBanned: true}); err != nil {
		e.log.Warn("moderation: free: failed to lift ban", logger.Err(err))
	}
	// §9's decided Open Question: /free restores only the send-suite.
	if err := e.client.RestrictChatMember(ctx, telegram.RestrictChatMemberParams{
		ChatID:      chatID.Int64(),
		UserID:      targetID.Int64(),
		Permissions: telegram.SendSuitePermissions(),
	}); err != nil {
		return e.handleActionFailure(ctx, chatID, issuerID, "free", err)
	}
	e.logEvent(ctx, kind, chatID, &targetID, &issuerID, reason, nil)
	_ = e.client.DeleteMessage(ctx, chatID.Int64(), msg.MessageID)
	e.confirm(ctx, chatID, fmt.Sprintf("%s has been unbanned.", targetID.String()))
	return nil
}

// --- superban / superfree ---------------------------------------------

func (e *Engine) executeSuperban(ctx context.Context, issuerID, targetID shared.TelegramID, reason string) error {
	memberships, err := e.memberships.FindGroupsForUser(ctx, targetID)
	if err != nil {
		return fmt.Errorf("moderation: superban: %w", err)
	}
	target, err := e.users.FindByID(ctx, targetID)
	if err == nil {
		target.Ban()
		_ = e.users.Upsert(ctx, target)
	}
	for _, m := range memberships {
		if err := e.client.BanChatMember(ctx, m.GroupID.Int64(), targetID.Int64()); err != nil {
			e.log.Warn("moderation: superban: failed in one group, continuing", logger.Err(err), logger.String("chat", m.GroupID.String()))
			continue
		}
		e.logEvent(ctx, shared.EventKindModerationSuperban, m.GroupID, &targetID, &issuerID, reason, nil)
	}
	return nil
}

func (e *Engine) executeSuperfree(ctx context.Context, issuerID, targetID shared.TelegramID, reason string) error {
	memberships, err := e.memberships.FindGroupsForUser(ctx, targetID)
	if err != nil {
		return fmt.Errorf("moderation: superfree: %w", err)
	}
	target, err := e.users.FindByID(ctx, targetID)
	if err == nil {
		target.Unban()
		_ = e.users.Upsert(ctx, target)
	}
	for _, m := range memberships {
		if err := e.client.UnbanChatMember(ctx, telegram.UnbanChatMemberParams{ChatID: m.GroupID.Int64(), UserID: targetID.Int64(), OnlyIfBanned: true}); err != nil {
			e.log.Warn("moderation: superfree: failed in one group, continuing", logger.Err(err), logger.String("chat", m.GroupID.String()))
			continue
		}
		e.logEvent(ctx, shared.EventKindModerationSuperfree, m.GroupID, &targetID, &issuerID, reason, nil)
	}
	return nil
}

// --- claim / creation / ignore_admin --------------------------------------

// executeClaim binds the issuing user's own TelegramUser row, a no-op
// self-service confirmation since the admin-UI account link itself is out
// of this core's scope (§1); it exists so the command's audit continuity
// matches the original (Parsed→Authorized(trivial)→ActionApplied→Confirmed).
func (e *Engine) executeClaim(ctx context.Context, msg *telegram.Message, chatID shared.ChatID, issuerID shared.TelegramID) error {
	if _, err := e.users.FindByID(ctx, issuerID); err != nil {
		return fmt.Errorf("moderation: claim: %w", err)
	}
	_ = e.client.DeleteMessage(ctx, chatID.Int64(), msg.MessageID)
	e.confirm(ctx, chatID, "Your account is now linked to this chat.")
	return nil
}

func (e *Engine) executeCreation(ctx context.Context, msg *telegram.Message, chatID shared.ChatID, issuerID shared.TelegramID) error {
	result, err := e.resolver.Resolve(ctx, issuerID, chatID)
	if err != nil {
		return fmt.Errorf("moderation: creation: %w", err)
	}
	if !result.Allows(shared.EventKindModerationInfo) {
		return nil
	}
	group, err := e.groups.FindByID(ctx, chatID)
	if err != nil {
		return fmt.Errorf("moderation: creation: %w", err)
	}
	_, err = e.client.SendHTML(ctx, issuerID.Int64(), fmt.Sprintf("This group was first observed on %s.", group.CreatedAt.Format("02/01/2006 15:04")))
	return err
}

func (e *Engine) executeIgnoreAdmin(ctx context.Context, msg *telegram.Message, chatID shared.ChatID, issuerID shared.TelegramID) error {
	result, err := e.resolver.Resolve(ctx, issuerID, chatID)
	if err != nil {
		return fmt.Errorf("moderation: ignore_admin: %w", err)
	}
	if !result.Allows(shared.EventKindModerationDel) {
		return nil
	}
	group, err := e.groups.FindByID(ctx, chatID)
	if err != nil {
		return fmt.Errorf("moderation: ignore_admin: %w", err)
	}
	group.ToggleAdminTagging()
	if err := e.groups.Upsert(ctx, group); err != nil {
		return fmt.Errorf("moderation: ignore_admin: persist: %w", err)
	}
	state := "enabled"
	if !group.IgnoreAdminTagging {
		state = "disabled"
	}
	e.confirm(ctx, chatID, fmt.Sprintf("Admin-tag notifications are now %s for this chat.", state))
	return nil
}

// handleActionFailure classifies a Telegram action error per §7: a
// "not enough rights" API error logs NOT_ENOUGH_RIGHTS, any other error is
// logged as a warning. It swallows every error and always returns nil.
func (e *Engine) handleActionFailure(ctx context.Context, chatID shared.ChatID, issuerID shared.TelegramID, action string, err error) error {
	var apiErr *telegram.APIError
	if errors.As(err, &apiErr) && strings.Contains(strings.ToLower(apiErr.Description), "not enough rights") {
		e.logNotEnoughRights(ctx, chatID, issuerID)
		return nil
	}
	e.log.Warn("moderation: action failed", logger.String("action", action), logger.Err(err))
	return nil
}

// chunkText splits s on rune boundaries into pieces no longer than max,
// preferring to split at the last preceding newline (§6's dossier chunking).
func chunkText(s string, max int) []string {
	if len(s) <= max {
		return []string{s}
	}
	var chunks []string
	runes := []rune(s)
	for len(runes) > 0 {
		if len(runes) <= max {
			chunks = append(chunks, string(runes))
			break
		}
		cut := max
		for i := max; i > 0; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	return chunks
}
