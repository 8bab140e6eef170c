package telegram

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unimi-net/campus-hub/internal/application/dispatcher"
	"github.com/unimi-net/campus-hub/internal/domain/telegramgroup"
	"github.com/unimi-net/campus-hub/internal/infrastructure/external/telegram"
	"github.com/unimi-net/campus-hub/pkg/logger"
)

type fakeBotRepository struct {
	telegramgroup.BotRepository
	bots map[string]*telegramgroup.TelegramBot
}

func (f *fakeBotRepository) FindByToken(ctx context.Context, token string) (*telegramgroup.TelegramBot, error) {
	bot, ok := f.bots[token]
	if !ok {
		return nil, nil
	}
	return bot, nil
}

func TestProcessor_RejectsUnknownToken(t *testing.T) {
	bots := &fakeBotRepository{bots: map[string]*telegramgroup.TelegramBot{}}
	registry := dispatcher.NewRegistry(func(token string) *dispatcher.Table {
		t.Fatal("table factory must not be invoked for an unknown token")
		return nil
	})
	proc := NewProcessor(bots, registry, logger.Default())

	err := proc.Process(context.Background(), "unknown-token", &telegram.Update{})

	assert.ErrorIs(t, err, ErrUnknownToken)
}

func TestProcessor_DispatchesKnownTokenAndCachesTable(t *testing.T) {
	bot, err := telegramgroup.NewTelegramBot("good-token", "hub_bot", "")
	require.NoError(t, err)
	bots := &fakeBotRepository{bots: map[string]*telegramgroup.TelegramBot{"good-token": bot}}

	builds := 0
	registry := dispatcher.NewRegistry(func(token string) *dispatcher.Table {
		builds++
		table := dispatcher.NewTable(nil)
		return table
	})
	proc := NewProcessor(bots, registry, logger.Default())

	require.NoError(t, proc.Process(context.Background(), "good-token", &telegram.Update{}))
	require.NoError(t, proc.Process(context.Background(), "good-token", &telegram.Update{}))

	assert.Equal(t, 1, builds, "the table is built once and cached for subsequent updates")
}

func TestProcessor_RecoversFromHandlerPanic(t *testing.T) {
	bot, err := telegramgroup.NewTelegramBot("panic-token", "hub_bot", "")
	require.NoError(t, err)
	bots := &fakeBotRepository{bots: map[string]*telegramgroup.TelegramBot{"panic-token": bot}}

	registry := dispatcher.NewRegistry(func(token string) *dispatcher.Table {
		table := dispatcher.NewTable(nil)
		table.Register(0, "panic", func(update *telegram.Update) bool { return true },
			func(ctx context.Context, update *telegram.Update) (dispatcher.Decision, error) {
				panic("boom")
			})
		return table
	})
	proc := NewProcessor(bots, registry, logger.Default())

	update := &telegram.Update{Message: &telegram.Message{From: &telegram.User{ID: 42}, Text: "/ban"}}

	require.NoError(t, proc.Process(context.Background(), "panic-token", update))
}

func TestProcessor_RateLimitsPerTelegramUser(t *testing.T) {
	bot, err := telegramgroup.NewTelegramBot("rl-token", "hub_bot", "")
	require.NoError(t, err)
	bots := &fakeBotRepository{bots: map[string]*telegramgroup.TelegramBot{"rl-token": bot}}

	calls := 0
	registry := dispatcher.NewRegistry(func(token string) *dispatcher.Table {
		table := dispatcher.NewTable(nil)
		table.Register(0, "ping", func(update *telegram.Update) bool { return true },
			func(ctx context.Context, update *telegram.Update) (dispatcher.Decision, error) {
				calls++
				return dispatcher.Stop, nil
			})
		return table
	})
	proc := NewProcessor(bots, registry, logger.Default())
	update := &telegram.Update{Message: &telegram.Message{From: &telegram.User{ID: 7}, Text: "/ping"}}

	for i := 0; i < 10; i++ {
		require.NoError(t, proc.Process(context.Background(), "rl-token", update))
	}

	assert.Less(t, calls, 10, "the default burst size should reject some of 10 rapid commands from one user")
}
