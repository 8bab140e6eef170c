// Package joinleave implements the Join/Leave/Bot-admission group-1
// handler (§4.4): reacts to chat_member transitions — logging departures,
// kicking unwhitelisted bots, and syncing + promoting + welcoming newly
// joined humans.
//
// Grounded on original_source/telegrambot/handlers/membership.py's
// chat_member update handler.
package joinleave

import (
	"context"
	"fmt"
	"time"

	"github.com/unimi-net/campus-hub/internal/application/permission"
	domainmod "github.com/unimi-net/campus-hub/internal/domain/moderation"
	"github.com/unimi-net/campus-hub/internal/domain/role"
	"github.com/unimi-net/campus-hub/internal/domain/shared"
	"github.com/unimi-net/campus-hub/internal/domain/telegramgroup"
	"github.com/unimi-net/campus-hub/internal/domain/telegramuser"
	"github.com/unimi-net/campus-hub/internal/infrastructure/external/telegram"
	"github.com/unimi-net/campus-hub/pkg/logger"
)

// WelcomeDeletionTTL bounds how long a welcome/service message lingers
// before the Scheduler deletes it, mirroring the moderation confirmation
// TTL (§4.6, §4.9).
const WelcomeDeletionTTL = 90 * time.Second

// MinMembersForServiceCleanup is the ≥50-member gate of §4.4/§9 below which
// the bot's welcome message is left alone rather than scheduled for
// deletion. Telegram's own join/leave service messages are not deleted at
// any group size.
const MinMembersForServiceCleanup = 50

const (
	statusMember        = "member"
	statusAdministrator = "administrator"
	statusLeft          = "left"
	statusKicked        = "kicked"
	statusRestricted    = "restricted"
)

// EventLogger is the narrow logging surface the handler needs.
type EventLogger interface {
	Log(ctx context.Context, params domainmod.NewEventLogParams) error
}

// TaskScheduler defers deletion of welcome/service messages (§5, §4.9).
type TaskScheduler interface {
	ScheduleMessageDeletion(ctx context.Context, chatID shared.ChatID, messageID int64, after time.Duration) error
}

// Handler implements the chat_member transition rules of §4.4.
type Handler struct {
	client      *telegram.Client
	resolver    *permission.Resolver
	users       telegramuser.Repository
	groups      telegramgroup.GroupRepository
	memberships telegramgroup.MembershipRepository
	bots        telegramgroup.BotRepository
	events      EventLogger
	scheduler   TaskScheduler
	log         *logger.Logger
}

// New constructs a Handler.
func New(
	client *telegram.Client,
	resolver *permission.Resolver,
	users telegramuser.Repository,
	groups telegramgroup.GroupRepository,
	memberships telegramgroup.MembershipRepository,
	bots telegramgroup.BotRepository,
	events EventLogger,
	scheduler TaskScheduler,
	log *logger.Logger,
) *Handler {
	return &Handler{
		client:      client,
		resolver:    resolver,
		users:       users,
		groups:      groups,
		memberships: memberships,
		bots:        bots,
		events:      events,
		scheduler:   scheduler,
		log:         log,
	}
}

// HandleTransition implements §4.4's rule table for one chat_member update.
func (h *Handler) HandleTransition(ctx context.Context, update *telegram.ChatMemberUpdated) error {
	chatID, err := shared.NewChatID(update.Chat.ID)
	if err != nil {
		return fmt.Errorf("joinleave: invalid chat id: %w", err)
	}
	old := update.OldChatMember
	new_ := update.NewChatMember
	if new_.User == nil {
		return nil
	}
	subjectID := shared.TelegramID(new_.User.ID)

	switch new_.Status {
	case statusLeft, statusKicked:
		h.handleLeft(ctx, chatID, subjectID)
		return nil

	case statusMember:
		if old.Status == statusAdministrator {
			// Demoted back to the ranks: no-op per §4.4.
			return nil
		}
		if new_.User.IsBot {
			return h.handleBotJoin(ctx, chatID, new_.User)
		}
		return h.handleHumanJoin(ctx, chatID, new_.User)

	default:
		return nil
	}
}

func (h *Handler) handleLeft(ctx context.Context, chatID shared.ChatID, userID shared.TelegramID) {
	if m, err := h.memberships.Find(ctx, userID, chatID); err == nil {
		m.TransitionTo(telegramgroup.MembershipLeft, time.Now())
		_ = h.memberships.Upsert(ctx, m)
	}
	_ = h.events.Log(ctx, domainmod.NewEventLogParams{
		Kind:     shared.EventKindUserLeft,
		ChatID:   chatPtr(chatID),
		TargetID: userPtr(userID),
	})
	h.maybeCleanupServiceMessage(ctx, chatID, 0)
}

func (h *Handler) handleBotJoin(ctx context.Context, chatID shared.ChatID, bot *telegram.User) error {
	whitelisted, err := h.bots.IsWhitelisted(ctx, bot.Username)
	if err != nil {
		h.log.Warn("joinleave: whitelist lookup failed", logger.Err(err))
	}
	if whitelisted {
		return nil
	}
	if err := h.client.BanChatMember(ctx, chatID.Int64(), bot.ID); err != nil {
		h.log.Warn("joinleave: failed to kick unwhitelisted bot", logger.Err(err), logger.String("bot", bot.Username))
		return nil
	}
	_ = h.client.UnbanChatMember(ctx, telegram.UnbanChatMemberParams{ChatID: chatID.Int64(), UserID: bot.ID, OnlyIfBanned: true})
	return nil
}

func (h *Handler) handleHumanJoin(ctx context.Context, chatID shared.ChatID, user *telegram.User) error {
	userID := shared.TelegramID(user.ID)

	u, err := h.users.FindByID(ctx, userID)
	if err != nil && !shared.IsNotFound(err) {
		return err
	}
	if u == nil {
		u, err = telegramuser.NewTelegramUser(telegramuser.NewTelegramUserParams{
			ID:        userID,
			FirstName: user.FirstName,
			LastName:  user.LastName,
			Username:  user.Username,
			Language:  user.LanguageCode,
		})
		if err != nil {
			return err
		}
	} else {
		u.Touch(user.FirstName, user.LastName, user.Username, user.LanguageCode, time.Now())
	}
	if err := h.users.Upsert(ctx, u); err != nil {
		return err
	}

	m, err := h.memberships.Find(ctx, userID, chatID)
	if err != nil && !shared.IsNotFound(err) {
		return err
	}
	if m == nil {
		m = telegramgroup.NewGroupMembership(userID, chatID, telegramgroup.MembershipMember)
	} else {
		m.TransitionTo(telegramgroup.MembershipMember, time.Now())
	}
	if err := h.memberships.Upsert(ctx, m); err != nil {
		return err
	}

	h.promote(ctx, chatID, userID)

	_ = h.events.Log(ctx, domainmod.NewEventLogParams{
		Kind:     shared.EventKindUserJoined,
		ChatID:   chatPtr(chatID),
		TargetID: userPtr(userID),
	})

	h.sendWelcome(ctx, chatID, user)
	return nil
}

// promote grants any admin rights the Permission Resolver already says
// this user holds in this chat, so a pre-existing role takes effect the
// moment they (re-)join rather than waiting for the next role change.
func (h *Handler) promote(ctx context.Context, chatID shared.ChatID, userID shared.TelegramID) {
	result, err := h.resolver.Resolve(ctx, userID, chatID)
	if err != nil {
		h.log.Warn("joinleave: resolve permissions on join failed", logger.Err(err))
		return
	}
	hasAnyRight := false
	for _, granted := range result.Rights {
		if granted {
			hasAnyRight = true
			break
		}
	}
	if !hasAnyRight {
		return
	}
	rights := telegram.AdminRights{
		CanChangeInfo:       result.Rights[role.RightChangeInfo],
		CanInviteUsers:      result.Rights[role.RightInviteUsers],
		CanPinMessages:      result.Rights[role.RightPinMessages],
		CanManageChat:       result.Rights[role.RightManageChat],
		CanDeleteMessages:   result.Rights[role.RightDeleteMessages],
		CanManageVoiceChats: result.Rights[role.RightManageVoiceChat],
		CanRestrictMembers:  result.Rights[role.RightRestrictMembers],
		CanPromoteMembers:   result.Rights[role.RightPromoteMembers],
	}
	if err := h.client.PromoteChatMember(ctx, chatID.Int64(), userID.Int64(), rights); err != nil {
		h.log.Warn("joinleave: promoteChatMember on join failed", logger.Err(err))
		return
	}
	if result.CustomTitle != "" {
		_ = h.client.SetChatAdministratorCustomTitle(ctx, chatID.Int64(), userID.Int64(), result.CustomTitle)
	}
}

func (h *Handler) sendWelcome(ctx context.Context, chatID shared.ChatID, user *telegram.User) {
	group, err := h.groups.FindByID(ctx, chatID)
	if err != nil {
		return
	}
	text := group.RenderWelcome(user.FullName())
	sent, err := h.client.SendText(ctx, chatID.Int64(), text)
	if err != nil {
		h.log.Warn("joinleave: failed to send welcome message", logger.Err(err))
		return
	}
	h.maybeCleanupServiceMessage(ctx, chatID, sent.MessageID)
}

// maybeCleanupServiceMessage schedules deletion of a join/leave-adjacent
// message only once the group has crossed the noise threshold of §4.4/§9's
// Open Question #1 (messageID==0 means "no specific message to delete",
// e.g. a plain departure with no welcome counterpart).
func (h *Handler) maybeCleanupServiceMessage(ctx context.Context, chatID shared.ChatID, messageID int64) {
	if messageID == 0 || h.scheduler == nil {
		return
	}
	count, err := h.memberships.CountActiveMembers(ctx, chatID)
	if err != nil || count < MinMembersForServiceCleanup {
		return
	}
	if err := h.scheduler.ScheduleMessageDeletion(ctx, chatID, messageID, WelcomeDeletionTTL); err != nil {
		h.log.Warn("joinleave: failed to schedule service message cleanup", logger.Err(err))
	}
}

func chatPtr(c shared.ChatID) *shared.ChatID         { return &c }
func userPtr(u shared.TelegramID) *shared.TelegramID { return &u }
