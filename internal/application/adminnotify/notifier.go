// Package adminnotify implements the Admin-Tag Notifier (§4.8): a message
// that mentions "@admin" in a group not opted out of tagging fans out to
// every on-call Moderator/Administrator/SuperAdministrator, and the
// triggering chat gets a localized, self-deleting acknowledgement.
//
// Grounded on original_source/telegrambot/handlers/messages.py's
// handle_admin_tagging, rebuilt on top of the same MatchesScope predicate
// the Permission Resolver uses for scope filtering (§4.5 step 2).
package adminnotify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/unimi-net/campus-hub/internal/domain/catalog"
	domainmod "github.com/unimi-net/campus-hub/internal/domain/moderation"
	"github.com/unimi-net/campus-hub/internal/domain/role"
	"github.com/unimi-net/campus-hub/internal/domain/shared"
	"github.com/unimi-net/campus-hub/internal/domain/telegramgroup"
	"github.com/unimi-net/campus-hub/internal/domain/telegramuser"
	"github.com/unimi-net/campus-hub/internal/infrastructure/external/telegram"
	"github.com/unimi-net/campus-hub/pkg/logger"
)

// AcknowledgementTTL mirrors the standard in-chat confirmation lifetime
// used across the moderation command table (§4.6).
const AcknowledgementTTL = 90 * time.Second

// onCallVariants are the roles eligible to be paged by an @admin mention.
var onCallVariants = []role.Variant{
	role.VariantModerator,
	role.VariantAdministrator,
	role.VariantSuperAdministrator,
}

// EventLogger is the narrow logging surface the notifier needs.
type EventLogger interface {
	Log(ctx context.Context, params domainmod.NewEventLogParams) error
}

// TaskScheduler defers deletion of the in-chat acknowledgement instead of
// blocking the request handler (§5).
type TaskScheduler interface {
	ScheduleMessageDeletion(ctx context.Context, chatID shared.ChatID, messageID int64, after time.Duration) error
}

// Notifier detects @admin mentions and pages on-call staff.
type Notifier struct {
	client      *telegram.Client
	roles       role.Repository
	users       telegramuser.Repository
	groups      telegramgroup.GroupRepository
	catalogRepo catalog.Repository
	events      EventLogger
	scheduler   TaskScheduler
	staffChatID int64
	log         *logger.Logger
}

// Config carries the notifier's static destination.
type Config struct {
	StaffChatID int64
}

// New constructs a Notifier.
func New(cfg Config, client *telegram.Client, roles role.Repository, users telegramuser.Repository, groups telegramgroup.GroupRepository, catalogRepo catalog.Repository, events EventLogger, scheduler TaskScheduler, log *logger.Logger) *Notifier {
	return &Notifier{
		client:      client,
		roles:       roles,
		users:       users,
		groups:      groups,
		catalogRepo: catalogRepo,
		events:      events,
		scheduler:   scheduler,
		staffChatID: cfg.StaffChatID,
		log:         log,
	}
}

// mentionsAdmin reports whether msg's text contains the literal token
// "@admin" (Telegram never resolves this to a mention entity since no
// account owns that username — it's a plain-text convention, §4.8).
func mentionsAdmin(msg *telegram.Message) bool {
	return strings.Contains(strings.ToLower(msg.Text), "@admin")
}

// Handle runs the notifier for one incoming message. Returns immediately
// (no-op) if the message doesn't mention @admin or the group opted out.
func (n *Notifier) Handle(ctx context.Context, msg *telegram.Message) error {
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return nil
	}
	if !mentionsAdmin(msg) {
		return nil
	}
	chatID, err := shared.NewChatID(msg.Chat.ID)
	if err != nil {
		return nil
	}
	group, err := n.groups.FindByID(ctx, chatID)
	if err != nil {
		return nil
	}
	if group.IgnoreAdminTagging {
		return nil
	}

	issuerID := shared.TelegramID(msg.From.ID)

	onCall, err := n.discoverOnCall(ctx, chatID)
	if err != nil {
		n.log.Warn("adminnotify: failed to discover on-call staff", logger.Err(err))
	}

	if n.staffChatID != 0 {
		text := n.renderStaffMessage(ctx, group, msg, issuerID, onCall)
		if _, err := n.client.SendHTML(ctx, n.staffChatID, text); err != nil {
			n.log.Warn("adminnotify: failed to page staff chat", logger.Err(err))
		}
	}

	n.acknowledge(ctx, chatID)

	if err := n.events.Log(ctx, domainmod.NewEventLogParams{
		Kind:     shared.EventKindUserCalledAdmin,
		ChatID:   &chatID,
		IssuerID: &issuerID,
	}); err != nil {
		n.log.Error("adminnotify: failed to log event", logger.Err(err))
	}
	return nil
}

// discoverOnCall collects every role whose variant is eligible and whose
// scope matches the chat's degrees — the same predicate the Permission
// Resolver applies in §4.5 step 2, reused here for on-call discovery.
func (n *Notifier) discoverOnCall(ctx context.Context, chatID shared.ChatID) ([]*role.BaseRole, error) {
	roles, err := n.roles.FindByVariants(ctx, onCallVariants)
	if err != nil {
		return nil, err
	}
	chatDegrees, err := n.catalogRepo.DegreesForChat(ctx, chatID)
	if err != nil {
		chatDegrees = nil
	}
	var matched []*role.BaseRole
	for _, r := range roles {
		if r.MatchesScope(chatDegrees) {
			matched = append(matched, r)
		}
	}
	return matched, nil
}

// renderStaffMessage composes the single staff-chat page: issuer, group, a
// link to the message, the reply target if any, and HTML mentions of every
// unique on-call user (§4.8).
func (n *Notifier) renderStaffMessage(ctx context.Context, group *telegramgroup.TelegramGroup, msg *telegram.Message, issuerID shared.TelegramID, onCall []*role.BaseRole) string {
	var b strings.Builder
	b.WriteString("🧑‍⚖️ <b>Admin called</b>\n")
	fmt.Fprintf(&b, "👥 <b>Group</b>: %s\n", n.formatChat(group))
	fmt.Fprintf(&b, "👤 <b>Issuer</b>: %s\n", n.formatUser(ctx, issuerID))
	if link := n.messageLink(group, msg.MessageID); link != "" {
		fmt.Fprintf(&b, "🔗 <b>Message</b>: <a href=\"%s\">open</a>\n", link)
	}
	if msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil {
		targetID := shared.TelegramID(msg.ReplyToMessage.From.ID)
		fmt.Fprintf(&b, "🎯 <b>Target</b>: %s\n", n.formatUser(ctx, targetID))
	}

	seen := make(map[shared.TelegramID]bool)
	var mentions []string
	for _, r := range onCall {
		if seen[r.UserID] {
			continue
		}
		seen[r.UserID] = true
		mentions = append(mentions, n.mentionHTML(ctx, r.UserID))
	}
	if len(mentions) > 0 {
		b.WriteString("📣 ")
		b.WriteString(strings.Join(mentions, " "))
	} else {
		b.WriteString("📣 <i>no on-call staff found for this group</i>")
	}
	return b.String()
}

// acknowledge posts a localized in-chat confirmation and schedules its
// deletion after the standard TTL (§4.8).
func (n *Notifier) acknowledge(ctx context.Context, chatID shared.ChatID) {
	sent, err := n.client.SendText(ctx, chatID.Int64(), "Staff has been notified.")
	if err != nil {
		n.log.Warn("adminnotify: failed to post acknowledgement", logger.Err(err))
		return
	}
	if n.scheduler == nil {
		return
	}
	if err := n.scheduler.ScheduleMessageDeletion(ctx, chatID, sent.MessageID, AcknowledgementTTL); err != nil {
		n.log.Warn("adminnotify: failed to schedule acknowledgement deletion", logger.Err(err))
	}
}

func (n *Notifier) formatChat(group *telegramgroup.TelegramGroup) string {
	if group.Title != "" {
		return group.Title
	}
	return fmt.Sprintf("#gid_%d", group.ID.Int64())
}

func (n *Notifier) formatUser(ctx context.Context, id shared.TelegramID) string {
	user, err := n.users.FindByID(ctx, id)
	if err != nil {
		return fmt.Sprintf("#uid_%d", id.Int64())
	}
	name := user.FirstName
	if user.LastName != "" {
		name += " " + user.LastName
	}
	if user.Username != "" {
		return fmt.Sprintf("%s [@%s]", name, strings.TrimPrefix(user.Username, "@"))
	}
	return name
}

// mentionHTML renders an HTML text_mention-style tg://user?id= link so the
// staff member is notified even without a public @username (§4.8).
func (n *Notifier) mentionHTML(ctx context.Context, id shared.TelegramID) string {
	name := n.formatUser(ctx, id)
	return fmt.Sprintf(`<a href="tg://user?id=%d">%s</a>`, id.Int64(), name)
}

// messageLink builds a t.me deep link for public groups/supergroups with a
// username; private groups have no stable link, so it returns "".
func (n *Notifier) messageLink(group *telegramgroup.TelegramGroup, messageID int64) string {
	username := groupUsername(group)
	if username == "" {
		return ""
	}
	return fmt.Sprintf("https://t.me/%s/%d", username, messageID)
}

// groupUsername is a placeholder hook: TelegramGroup doesn't persist a
// public username today (out of scope per §1's read-only catalog join), so
// this always returns "" until that field exists.
func groupUsername(group *telegramgroup.TelegramGroup) string {
	return ""
}
