package eventlog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unimi-net/campus-hub/internal/domain/moderation"
	"github.com/unimi-net/campus-hub/internal/domain/shared"
	"github.com/unimi-net/campus-hub/internal/domain/telegramgroup"
	"github.com/unimi-net/campus-hub/internal/domain/telegramuser"
	"github.com/unimi-net/campus-hub/internal/infrastructure/external/telegram"
	"github.com/unimi-net/campus-hub/pkg/logger"
)

type fakeEventLogRepository struct {
	appended []*moderation.EventLog
}

func (f *fakeEventLogRepository) Append(ctx context.Context, entry *moderation.EventLog) (int64, error) {
	f.appended = append(f.appended, entry)
	return int64(len(f.appended)), nil
}

func (f *fakeEventLogRepository) Update(ctx context.Context, entry *moderation.EventLog) error {
	return nil
}

func (f *fakeEventLogRepository) FindByID(ctx context.Context, id int64) (*moderation.EventLog, error) {
	if id < 1 || int(id) > len(f.appended) {
		return nil, shared.ErrNotFound
	}
	return f.appended[id-1], nil
}

type noopUsers struct{ telegramuser.Repository }

func (noopUsers) FindByID(ctx context.Context, id shared.TelegramID) (*telegramuser.TelegramUser, error) {
	return nil, shared.ErrUserNotFound
}

type noopGroups struct{ telegramgroup.GroupRepository }

func (noopGroups) FindByID(ctx context.Context, id shared.ChatID) (*telegramgroup.TelegramGroup, error) {
	return nil, shared.ErrGroupNotFound
}

func newTestClient(t *testing.T) *telegram.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"ok":     true,
			"result": map[string]interface{}{"message_id": 1, "chat": map[string]interface{}{"id": 1}, "date": 0},
		})
	}))
	t.Cleanup(srv.Close)
	return telegram.NewClient(telegram.ClientConfig{Token: "test-token", BaseURL: srv.URL})
}

func TestLog_PersistsAndPublishesToBus(t *testing.T) {
	client := newTestClient(t)
	events := &fakeEventLogRepository{}
	var published []shared.Event
	bus := fakePublisher(func(e shared.Event) error {
		published = append(published, e)
		return nil
	})

	l := New(Config{LoggingChatID: 999}, client, events, noopUsers{}, noopGroups{}, logger.Default(), bus)

	chatID := shared.ChatID(-100)
	err := l.Log(context.Background(), moderation.NewEventLogParams{
		Kind:   shared.EventKindModerationWarn,
		ChatID: &chatID,
		Reason: "spam",
	})

	require.NoError(t, err)
	require.Len(t, events.appended, 1)
	require.Len(t, published, 1)
	assert.Equal(t, shared.EventModerationWarn, published[0].EventType())
	assert.Equal(t, "chat:-100", published[0].AggregateID())
}

func TestLog_NeverPublishesWithoutABus(t *testing.T) {
	client := newTestClient(t)
	events := &fakeEventLogRepository{}

	l := New(Config{LoggingChatID: 999}, client, events, noopUsers{}, noopGroups{}, logger.Default(), nil)

	err := l.Log(context.Background(), moderation.NewEventLogParams{Kind: shared.EventKindModerationInfo})

	require.NoError(t, err)
	require.Len(t, events.appended, 1)
}

type fakePublisher func(event shared.Event) error

func (f fakePublisher) Publish(event shared.Event) error { return f(event) }
