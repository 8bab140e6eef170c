// Package telegram builds each bot's priority-group handler Table (§4.2)
// out of the application-layer components — Sync, the Join/Leave handler,
// the Moderation Engine, and the Admin-Tag Notifier — and exposes the
// per-token dispatcher.Registry the webhook ingress dispatches into.
package telegram

import (
	"context"
	"log/slog"
	"time"

	"github.com/unimi-net/campus-hub/internal/application/adminnotify"
	"github.com/unimi-net/campus-hub/internal/application/dispatcher"
	"github.com/unimi-net/campus-hub/internal/application/joinleave"
	"github.com/unimi-net/campus-hub/internal/application/moderation"
	"github.com/unimi-net/campus-hub/internal/application/permission"
	"github.com/unimi-net/campus-hub/internal/application/sync"
	"github.com/unimi-net/campus-hub/internal/domain/catalog"
	domainmod "github.com/unimi-net/campus-hub/internal/domain/moderation"
	"github.com/unimi-net/campus-hub/internal/domain/role"
	"github.com/unimi-net/campus-hub/internal/domain/shared"
	"github.com/unimi-net/campus-hub/internal/domain/telegramgroup"
	"github.com/unimi-net/campus-hub/internal/domain/telegramuser"
	"github.com/unimi-net/campus-hub/internal/infrastructure/eventlog"
	"github.com/unimi-net/campus-hub/internal/infrastructure/external/telegram"
	"github.com/unimi-net/campus-hub/pkg/logger"
)

// ClientFactory resolves the per-bot-token Telegram Client, shared with the
// scheduler jobs and the Role Change Propagator.
type ClientFactory interface {
	ClientFor(token string) *telegram.Client
}

// TaskScheduler is the common deferred-deletion surface every group-0..3
// handler needs (§4.9); satisfied by *jobs.Deleter.
type TaskScheduler interface {
	ScheduleMessageDeletion(ctx context.Context, chatID shared.ChatID, messageID int64, after time.Duration) error
}

// Dependencies aggregates everything a bot's handler Table is built from.
type Dependencies struct {
	Clients     ClientFactory
	Users       telegramuser.Repository
	Groups      telegramgroup.GroupRepository
	Memberships telegramgroup.MembershipRepository
	Bots        telegramgroup.BotRepository
	Blacklist   domainmod.BlacklistRepository
	Roles       role.Repository
	CatalogRepo catalog.Repository
	Events      *eventlog.Logger
	Scheduler   TaskScheduler
	StaffChatID int64
	Log         *logger.Logger
}

// NewTableFactory returns the per-token Table builder a dispatcher.Registry
// needs: each call builds one bot's client-bound handler chain, grounded on
// the teacher's internal/interface/telegram/router.go registration table,
// generalized into §4.2's priority-group model.
func NewTableFactory(deps Dependencies) func(botToken string) *dispatcher.Table {
	return func(botToken string) *dispatcher.Table {
		client := deps.Clients.ClientFor(botToken)
		resolver := permission.NewResolver(deps.Roles, deps.CatalogRepo)

		botUsername := lookupBotUsername(deps.Bots, botToken)

		syncer := sync.New(deps.Users, deps.Groups, deps.Memberships, deps.Blacklist, client, deps.Events)

		joiner := joinleave.New(client, resolver, deps.Users, deps.Groups, deps.Memberships, deps.Bots, deps.Events, deps.Scheduler, deps.Log)

		engine := moderation.New(client, resolver, deps.Events, deps.Scheduler, deps.Users, deps.Groups, deps.Memberships, deps.CatalogRepo, deps.Log)

		notifier := adminnotify.New(adminnotify.Config{StaffChatID: deps.StaffChatID}, client, deps.Roles, deps.Users, deps.Groups, deps.CatalogRepo, deps.Events, deps.Scheduler, deps.Log)

		table := dispatcher.NewTable(slog.Default())

		// Group 0: sync + precondition invariants run on every update that
		// carries a sender (§4.3).
		table.Register(0, "sync", hasSender, func(ctx context.Context, update *telegram.Update) (dispatcher.Decision, error) {
			obs, ok := sync.ObservationFromUpdate(update, botUsername, botToken)
			if !ok {
				return dispatcher.Continue, nil
			}
			return syncer.Handle(ctx, obs)
		})

		// Group 1: membership transitions precede everything else (§4.2's
		// "joins precede admin-tagging scans").
		table.Register(1, "join_leave", isChatMemberUpdate, func(ctx context.Context, update *telegram.Update) (dispatcher.Decision, error) {
			upd := update.ChatMember
			if upd == nil {
				upd = update.MyChatMember
			}
			if err := joiner.HandleTransition(ctx, upd); err != nil {
				return dispatcher.Continue, err
			}
			return dispatcher.Continue, nil
		})

		// Group 2: moderation commands precede memes/misc (§4.2).
		table.Register(2, "moderation", isModerationCommand, func(ctx context.Context, update *telegram.Update) (dispatcher.Decision, error) {
			pc, ok := moderation.ParseCommand(update.Message)
			if !ok {
				return dispatcher.Continue, nil
			}
			issuerID := issuerFromMessage(update.Message)
			if err := engine.Execute(ctx, pc, update.Message, issuerID); err != nil {
				return dispatcher.Stop, err
			}
			return dispatcher.Stop, nil
		})

		// Group 3: the @admin-tag notifier is the one "user command" this
		// core restores (§4.8); memes/message-filter are out of scope (see
		// DESIGN.md).
		table.Register(3, "admin_notify", hasMessageText, func(ctx context.Context, update *telegram.Update) (dispatcher.Decision, error) {
			if err := notifier.Handle(ctx, update.Message); err != nil {
				return dispatcher.Continue, err
			}
			return dispatcher.Continue, nil
		})

		return table
	}
}

func hasSender(update *telegram.Update) bool {
	return update.Message != nil && update.Message.From != nil
}

func isChatMemberUpdate(update *telegram.Update) bool {
	return update.ChatMember != nil || update.MyChatMember != nil
}

func isModerationCommand(update *telegram.Update) bool {
	if update.Message == nil {
		return false
	}
	_, ok := moderation.ParseCommand(update.Message)
	return ok
}

func hasMessageText(update *telegram.Update) bool {
	return update.Message != nil && update.Message.Text != ""
}

func issuerFromMessage(msg *telegram.Message) shared.TelegramID {
	if msg == nil || msg.From == nil {
		return 0
	}
	return shared.TelegramID(msg.From.ID)
}

func lookupBotUsername(bots telegramgroup.BotRepository, token string) string {
	bot, err := bots.FindByToken(context.Background(), token)
	if err != nil || bot == nil {
		return ""
	}
	return bot.Username
}
