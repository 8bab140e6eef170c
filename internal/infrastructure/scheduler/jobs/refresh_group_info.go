package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/unimi-net/campus-hub/internal/domain/shared"
	"github.com/unimi-net/campus-hub/internal/domain/telegramgroup"
	"github.com/unimi-net/campus-hub/internal/infrastructure/external/telegram"
	"github.com/unimi-net/campus-hub/pkg/circuitbreaker"
	"github.com/unimi-net/campus-hub/pkg/logger"
	"github.com/unimi-net/campus-hub/pkg/retry"
)

// ClientFactory returns (creating and caching, if needed) the Telegram
// Client for a given bot token — the core is multi-bot, so the worker
// cannot hold a single Client the way the teacher's original leaderboard
// bot did.
type ClientFactory interface {
	ClientFor(token string) *telegram.Client
}

// RefreshGroupInfoJob refreshes title and owner for every known group,
// hourly (§4.9). The stored description and invite link are kept as they
// are and not refreshed: the parsed getChat result carries neither.
// One breaker per the job as a whole
// guards against a systemically failing Telegram API; retry absorbs
// per-call transient failures, mirroring the teacher's own
// sync_all_students job wiring against the external Alem API.
type RefreshGroupInfoJob struct {
	groups  telegramgroup.GroupRepository
	clients ClientFactory
	log     *logger.Logger
	retrier *retry.Retrier
	breaker *circuitbreaker.CircuitBreaker
}

// NewRefreshGroupInfoJob constructs the job.
func NewRefreshGroupInfoJob(groups telegramgroup.GroupRepository, clients ClientFactory, log *logger.Logger) *RefreshGroupInfoJob {
	return &RefreshGroupInfoJob{
		groups:  groups,
		clients: clients,
		log:     log,
		retrier: retry.TelegramRetrier(),
		breaker: circuitbreaker.TelegramAPIBreaker(func(name string, from, to circuitbreaker.State) {
			log.Warn("jobs: refresh_group_info breaker state change", logger.String("from", from.String()), logger.String("to", to.String()))
		}),
	}
}

func (j *RefreshGroupInfoJob) Name() string { return "refresh_group_info" }
func (j *RefreshGroupInfoJob) Description() string {
	return "refreshes group title/owner from getChat + getChatAdministrators (description and invite link are kept as stored)"
}

func (j *RefreshGroupInfoJob) Run(ctx context.Context) error {
	groups, err := j.groups.List(ctx, shared.Pagination{PageSize: shared.MaxPageSize})
	if err != nil {
		return fmt.Errorf("jobs: refresh_group_info: list groups: %w", err)
	}
	var wg sync.WaitGroup
	for _, g := range groups {
		g := g
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.refreshOne(ctx, g)
		}()
	}
	wg.Wait()
	return nil
}

func (j *RefreshGroupInfoJob) refreshOne(ctx context.Context, g *telegramgroup.TelegramGroup) {
	client := j.clients.ClientFor(g.BotToken)
	var chat *telegram.Chat
	err := j.breaker.Execute(ctx, func(ctx context.Context) error {
		return j.retrier.Do(ctx, func(ctx context.Context) error {
			c, err := client.GetChat(ctx, g.ID.Int64())
			if err != nil {
				if isUnauthorized(err) {
					return retry.Permanent(err)
				}
				return retry.Retryable(err)
			}
			chat = c
			return nil
		})
	})
	if err != nil {
		if isUnauthorized(err) {
			j.log.Warn("jobs: refresh_group_info: bot unauthorized, skipping group", logger.String("chat", g.ID.String()))
			return
		}
		j.log.Warn("jobs: refresh_group_info: getChat failed", logger.Err(err), logger.String("chat", g.ID.String()))
		return
	}

	var owner *shared.TelegramID
	admins, err := client.GetChatAdministrators(ctx, g.ID.Int64())
	if err != nil {
		j.log.Warn("jobs: refresh_group_info: getChatAdministrators failed", logger.Err(err), logger.String("chat", g.ID.String()))
	} else {
		for _, a := range admins {
			if a.Status == "creator" && a.User != nil {
				id := shared.TelegramID(a.User.ID)
				owner = &id
				break
			}
		}
	}

	g.RefreshMetadata(chat.Title, g.Description, g.InviteLink, owner)
	if err := j.groups.Upsert(ctx, g); err != nil {
		j.log.Error("jobs: refresh_group_info: upsert failed", logger.Err(err), logger.String("chat", g.ID.String()))
	}
}

func isUnauthorized(err error) bool {
	var apiErr *telegram.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == 401 || strings.Contains(strings.ToLower(apiErr.Description), "unauthorized")
	}
	return false
}
