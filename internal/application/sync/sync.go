// Package sync implements the User/Group Sync group-0 invariant handler
// (§4.3): on every update carrying a sender, ensure the user row exists,
// check the global blacklist, and keep the (user, group) membership
// current.
//
// Grounded on the teacher's internal/interface/telegram/middleware/auth.go
// cache+upsert plumbing style (look up, upsert-if-missing, short-circuit on
// failure) — generalized from "authenticate this Telegram ID against the
// Alem platform" into "observe and reconcile this Telegram ID's presence",
// since the sync invariants themselves are grounded directly on
// original_source/telegrambot/handlers/utils.py's save_user.
package sync

import (
	"context"
	"errors"
	"time"

	"github.com/unimi-net/campus-hub/internal/application/dispatcher"
	"github.com/unimi-net/campus-hub/internal/domain/moderation"
	"github.com/unimi-net/campus-hub/internal/domain/shared"
	"github.com/unimi-net/campus-hub/internal/domain/telegramgroup"
	"github.com/unimi-net/campus-hub/internal/domain/telegramuser"
	"github.com/unimi-net/campus-hub/internal/infrastructure/external/telegram"
)

// TelegramActor is the narrow outbound surface Sync needs from the
// Telegram client: banning the sender in the current chat when they turn
// out to be globally blacklisted (§4.3 step 4), and optionally leaving a
// chat the store no longer has a row for (§4.3 step 2).
type TelegramActor interface {
	BanChatMember(ctx context.Context, chatID int64, userID int64) error
	LeaveChat(ctx context.Context, chatID int64) error
}

// EventLogger is the narrow logging surface Sync needs: a plain,
// non-destructive append (no pre-allocation, since these events have no
// source message worth preserving).
type EventLogger interface {
	Log(ctx context.Context, params moderation.NewEventLogParams) error
}

// Sync implements the five steps of §4.3.
type Sync struct {
	users       telegramuser.Repository
	groups      telegramgroup.GroupRepository
	memberships telegramgroup.MembershipRepository
	blacklist   moderation.BlacklistRepository
	telegram    TelegramActor
	events      EventLogger
	// LeaveUnknownChats controls whether step 2 actually calls LeaveChat
	// for a group with no row, or only logs and stops.
	LeaveUnknownChats bool
}

// New constructs a Sync handler.
func New(
	users telegramuser.Repository,
	groups telegramgroup.GroupRepository,
	memberships telegramgroup.MembershipRepository,
	blacklist moderation.BlacklistRepository,
	actor TelegramActor,
	events EventLogger,
) *Sync {
	return &Sync{
		users:       users,
		groups:      groups,
		memberships: memberships,
		blacklist:   blacklist,
		telegram:    actor,
		events:      events,
	}
}

// Observation is the normalized view of an update Sync needs, extracted by
// the caller from the raw telegram.Update (kept separate so Sync has no
// dependency on Update's full shape beyond what it actually reads).
type Observation struct {
	SenderID        shared.TelegramID
	ChatID          shared.ChatID
	FirstName       string
	LastName        string
	Username        string
	Language        string
	OccurredAt      time.Time
	FromBotItself   bool
	IsSubstantiveMessage bool
	BotToken        string
}

// Handle implements the group-0 invariant chain of §4.3.
func (s *Sync) Handle(ctx context.Context, obs Observation) (dispatcher.Decision, error) {
	// Step 1: ignore the bot's own messages.
	if obs.FromBotItself {
		return dispatcher.Stop, nil
	}

	// Step 2: the group must already be known.
	if _, err := s.groups.FindByID(ctx, obs.ChatID); err != nil {
		if errors.Is(err, shared.ErrGroupNotFound) {
			_ = s.events.Log(ctx, moderation.NewEventLogParams{
				Kind:   shared.EventKindChatDoesNotExist,
				ChatID: chatPtr(obs.ChatID),
			})
			if s.LeaveUnknownChats {
				_ = s.telegram.LeaveChat(ctx, obs.ChatID.Int64())
			}
			return dispatcher.Stop, nil
		}
		return dispatcher.Continue, err
	}

	// Step 3: upsert the user row.
	user, err := s.users.FindByID(ctx, obs.SenderID)
	if err != nil && !shared.IsNotFound(err) {
		return dispatcher.Continue, err
	}
	if user == nil {
		user, err = telegramuser.NewTelegramUser(telegramuser.NewTelegramUserParams{
			ID:        obs.SenderID,
			FirstName: obs.FirstName,
			LastName:  obs.LastName,
			Username:  obs.Username,
			Language:  obs.Language,
		})
		if err != nil {
			return dispatcher.Continue, err
		}
	} else {
		user.Touch(obs.FirstName, obs.LastName, obs.Username, obs.Language, obs.OccurredAt)
	}

	// Step 4: blacklist check.
	blacklisted, err := s.blacklist.IsBlacklisted(ctx, obs.SenderID)
	if err != nil {
		return dispatcher.Continue, err
	}
	if blacklisted {
		user.Ban()
		if err := s.users.Upsert(ctx, user); err != nil {
			return dispatcher.Continue, err
		}
		_ = s.telegram.BanChatMember(ctx, obs.ChatID.Int64(), obs.SenderID.Int64())
		_ = s.events.Log(ctx, moderation.NewEventLogParams{
			Kind:     shared.EventKindModerationSuperban,
			ChatID:   chatPtr(obs.ChatID),
			TargetID: userPtr(obs.SenderID),
		})
		return dispatcher.Stop, nil
	}
	if user.Banned {
		// Already globally banned from a prior operation: re-enforce and stop.
		_ = s.telegram.BanChatMember(ctx, obs.ChatID.Int64(), obs.SenderID.Int64())
		return dispatcher.Stop, nil
	}

	if err := s.users.Upsert(ctx, user); err != nil {
		return dispatcher.Continue, err
	}

	// Step 5: upsert membership, incrementing messages_count only for
	// substantive messages.
	membership, err := s.memberships.Find(ctx, obs.SenderID, obs.ChatID)
	if err != nil && !shared.IsNotFound(err) {
		return dispatcher.Continue, err
	}
	if membership == nil {
		membership = telegramgroup.NewGroupMembership(obs.SenderID, obs.ChatID, telegramgroup.MembershipMember)
	}
	if obs.IsSubstantiveMessage {
		membership.RecordMessage(obs.OccurredAt)
	} else {
		membership.TransitionTo(membership.Status, obs.OccurredAt)
	}
	if err := s.memberships.Upsert(ctx, membership); err != nil {
		return dispatcher.Continue, err
	}

	return dispatcher.Continue, nil
}

func chatPtr(c shared.ChatID) *shared.ChatID             { return &c }
func userPtr(u shared.TelegramID) *shared.TelegramID     { return &u }

// ObservationFromUpdate extracts an Observation from a raw Telegram update
// for the given bot. Returns ok=false if the update carries no sender
// (e.g. a channel post), in which case the caller should skip Sync
// entirely rather than treat it as an error.
func ObservationFromUpdate(update *telegram.Update, botUsername, botToken string) (Observation, bool) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return Observation{}, false
	}
	obs := Observation{
		SenderID:      shared.TelegramID(msg.From.ID),
		ChatID:        shared.ChatID(msg.Chat.ID),
		FirstName:     msg.From.FirstName,
		LastName:      msg.From.LastName,
		Username:      msg.From.Username,
		Language:      msg.From.LanguageCode,
		OccurredAt:    time.Unix(msg.Date, 0),
		FromBotItself: msg.From.Username == botUsername,
		BotToken:      botToken,
		IsSubstantiveMessage: msg.Text != "" && msg.NewChatMembers == nil && msg.LeftChatMember == nil,
	}
	return obs, true
}
