package telegram

import (
	"context"
	"fmt"
	"strings"

	"github.com/unimi-net/campus-hub/internal/application/dispatcher"
	"github.com/unimi-net/campus-hub/internal/domain/telegramgroup"
	"github.com/unimi-net/campus-hub/internal/infrastructure/external/telegram"
	"github.com/unimi-net/campus-hub/internal/interface/telegram/middleware"
	"github.com/unimi-net/campus-hub/pkg/logger"
)

// Processor is the webhook ingress's single entry point: authenticates the
// inbound bot token, resolves (creating if needed) that bot's handler
// Table, and dispatches the update into it (§4.1, §4.2). Replaces the
// teacher's long-polling Bot loop — the source's ingress is HTTP-only.
//
// Every dispatch runs through three per-user/per-command concerns the HTTP
// layer's own request-scoped middleware (interface/http/server.go) can't see
// because it only knows about IP addresses: a token-bucket limiter keyed by
// Telegram ID, panic recovery keyed by the command being handled, and
// command-level latency/error metrics.
type Processor struct {
	bots     telegramgroup.BotRepository
	registry *dispatcher.Registry
	log      *logger.Logger

	limiter  *middleware.RateLimiter
	recovery *middleware.RecoveryMiddleware
	metrics  *middleware.MetricsMiddleware
}

// NewProcessor constructs a Processor. registry should be built from a
// Dependencies value via NewTableFactory.
func NewProcessor(bots telegramgroup.BotRepository, registry *dispatcher.Registry, log *logger.Logger) *Processor {
	return &Processor{
		bots:     bots,
		registry: registry,
		log:      log,
		limiter:  middleware.NewRateLimiter(middleware.DefaultRateLimitConfig()),
		recovery: middleware.NewRecoveryMiddleware(middleware.DefaultRecoveryConfig()),
		metrics:  middleware.NewMetricsMiddleware(middleware.DefaultMetricsConfig()),
	}
}

// ErrUnknownToken is returned when token does not match any registered bot.
var ErrUnknownToken = fmt.Errorf("telegram: unknown bot token")

// Process authenticates token against the bot table and dispatches update
// into that bot's handler chain. Returns ErrUnknownToken if token isn't
// registered, per §4.1's "rejects unknown tokens".
func (p *Processor) Process(ctx context.Context, token string, update *telegram.Update) error {
	bot, err := p.bots.FindByToken(ctx, token)
	if err != nil || bot == nil {
		return ErrUnknownToken
	}
	table := p.registry.TableFor(token)

	telegramID := senderID(update)
	command := commandLabel(update)

	if telegramID != 0 {
		if res := p.limiter.Check(ctx, telegramID); !res.Allowed {
			p.log.Warn("telegram: rate limited",
				logger.Int64("telegram_id", telegramID),
				logger.String("command", command),
			)
			return nil
		}
	}

	rc := p.metrics.Start(command, telegramID)
	result, dispatchErr := p.recovery.RecoverWithHandler(ctx, telegramID, command, func() error {
		return table.Dispatch(ctx, update)
	})
	rc.End(dispatchErr)

	if result.Recovered {
		p.log.Error("telegram: handler panicked",
			logger.Err(result.PanicInfo.Error),
			logger.Int64("telegram_id", telegramID),
			logger.String("command", command),
		)
		return nil
	}
	return dispatchErr
}

// senderID extracts the Telegram user ID the update originated from, across
// the update kinds that carry one. Returns 0 for updates with no sender
// (e.g. a chat_member change recorded on the chat itself).
func senderID(update *telegram.Update) int64 {
	switch {
	case update.Message != nil && update.Message.From != nil:
		return update.Message.From.ID
	case update.EditedMessage != nil && update.EditedMessage.From != nil:
		return update.EditedMessage.From.ID
	case update.CallbackQuery != nil && update.CallbackQuery.From != nil:
		return update.CallbackQuery.From.ID
	default:
		return 0
	}
}

// commandLabel derives a short label for metrics/recovery bookkeeping. For
// text commands it's the leading "/word" (mention suffix stripped); for
// everything else it names the update kind.
func commandLabel(update *telegram.Update) string {
	switch {
	case update.Message != nil && strings.HasPrefix(update.Message.Text, "/"):
		word := strings.Fields(update.Message.Text)[0]
		return strings.SplitN(word, "@", 2)[0]
	case update.Message != nil:
		return "message"
	case update.EditedMessage != nil:
		return "edited_message"
	case update.CallbackQuery != nil:
		return "callback_query"
	case update.ChatMember != nil:
		return "chat_member"
	default:
		return "unknown"
	}
}
