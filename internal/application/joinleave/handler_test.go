package joinleave

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unimi-net/campus-hub/internal/application/permission"
	"github.com/unimi-net/campus-hub/internal/domain/catalog"
	domainmod "github.com/unimi-net/campus-hub/internal/domain/moderation"
	"github.com/unimi-net/campus-hub/internal/domain/role"
	"github.com/unimi-net/campus-hub/internal/domain/shared"
	"github.com/unimi-net/campus-hub/internal/domain/telegramgroup"
	"github.com/unimi-net/campus-hub/internal/domain/telegramuser"
	"github.com/unimi-net/campus-hub/internal/infrastructure/external/telegram"
	"github.com/unimi-net/campus-hub/pkg/logger"
)

func newTestClient(t *testing.T, calls *[]string) *telegram.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls = append(*calls, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":1,"chat":{"id":1}}}`)
	}))
	t.Cleanup(srv.Close)
	cfg := telegram.DefaultClientConfig("test-token")
	cfg.BaseURL = srv.URL
	return telegram.NewClient(cfg)
}

type fakeGroupRepo struct{ group *telegramgroup.TelegramGroup }

func (f *fakeGroupRepo) Upsert(ctx context.Context, g *telegramgroup.TelegramGroup) error { return nil }
func (f *fakeGroupRepo) FindByID(ctx context.Context, id shared.ChatID) (*telegramgroup.TelegramGroup, error) {
	if f.group == nil {
		return nil, shared.ErrGroupNotFound
	}
	return f.group, nil
}
func (f *fakeGroupRepo) List(ctx context.Context, p shared.Pagination) ([]*telegramgroup.TelegramGroup, error) {
	return nil, nil
}
func (f *fakeGroupRepo) Exists(ctx context.Context, id shared.ChatID) (bool, error) { return true, nil }

type fakeBotRepo struct{ whitelisted map[string]bool }

func (f *fakeBotRepo) FindByToken(ctx context.Context, token string) (*telegramgroup.TelegramBot, error) {
	return nil, nil
}
func (f *fakeBotRepo) List(ctx context.Context) ([]*telegramgroup.TelegramBot, error) { return nil, nil }
func (f *fakeBotRepo) Upsert(ctx context.Context, b *telegramgroup.TelegramBot) error { return nil }
func (f *fakeBotRepo) IsWhitelisted(ctx context.Context, username string) (bool, error) {
	return f.whitelisted[username], nil
}
func (f *fakeBotRepo) Whitelist(ctx context.Context, username string) error { return nil }

type fakeMembershipRepo struct {
	members map[string]*telegramgroup.GroupMembership
}

func key(u shared.TelegramID, c shared.ChatID) string { return u.String() + ":" + c.String() }

func (f *fakeMembershipRepo) Upsert(ctx context.Context, m *telegramgroup.GroupMembership) error {
	if f.members == nil {
		f.members = make(map[string]*telegramgroup.GroupMembership)
	}
	f.members[key(m.UserID, m.GroupID)] = m
	return nil
}
func (f *fakeMembershipRepo) Find(ctx context.Context, userID shared.TelegramID, groupID shared.ChatID) (*telegramgroup.GroupMembership, error) {
	m, ok := f.members[key(userID, groupID)]
	if !ok {
		return nil, shared.NewDomainError("telegramgroup", "Find", shared.ErrNotFound, "not found")
	}
	return m, nil
}
func (f *fakeMembershipRepo) FindGroupsForUser(ctx context.Context, userID shared.TelegramID) ([]*telegramgroup.GroupMembership, error) {
	return nil, nil
}
func (f *fakeMembershipRepo) CountActiveMembers(ctx context.Context, groupID shared.ChatID) (int, error) {
	return 100, nil
}

type fakeUserRepo struct{ users map[int64]*telegramuser.TelegramUser }

func (f *fakeUserRepo) Upsert(ctx context.Context, u *telegramuser.TelegramUser) error {
	if f.users == nil {
		f.users = make(map[int64]*telegramuser.TelegramUser)
	}
	f.users[u.ID.Int64()] = u
	return nil
}
func (f *fakeUserRepo) FindByID(ctx context.Context, id shared.TelegramID) (*telegramuser.TelegramUser, error) {
	u, ok := f.users[id.Int64()]
	if !ok {
		return nil, shared.ErrUserNotFound
	}
	return u, nil
}
func (f *fakeUserRepo) FindByIDs(ctx context.Context, ids []shared.TelegramID) ([]*telegramuser.TelegramUser, error) {
	return nil, nil
}
func (f *fakeUserRepo) List(ctx context.Context, opts telegramuser.ListOptions) ([]*telegramuser.TelegramUser, error) {
	return nil, nil
}
func (f *fakeUserRepo) Exists(ctx context.Context, id shared.TelegramID) (bool, error) {
	_, ok := f.users[id.Int64()]
	return ok, nil
}

type fakeRoleRepo struct{}

func (f *fakeRoleRepo) Save(ctx context.Context, r *role.BaseRole) error { return nil }
func (f *fakeRoleRepo) Delete(ctx context.Context, id string) error     { return nil }
func (f *fakeRoleRepo) FindByID(ctx context.Context, id string) (*role.BaseRole, error) {
	return nil, nil
}
func (f *fakeRoleRepo) FindByUser(ctx context.Context, userID shared.TelegramID) ([]*role.BaseRole, error) {
	return nil, nil
}
func (f *fakeRoleRepo) FindByVariants(ctx context.Context, variants []role.Variant) ([]*role.BaseRole, error) {
	return nil, nil
}

type fakeCatalogRepo struct{}

func (f *fakeCatalogRepo) DegreesForChat(ctx context.Context, chatID shared.ChatID) ([]catalog.DegreeID, error) {
	return nil, nil
}
func (f *fakeCatalogRepo) FindDegree(ctx context.Context, id catalog.DegreeID) (*catalog.Degree, error) {
	return nil, nil
}
func (f *fakeCatalogRepo) FindDepartment(ctx context.Context, id catalog.DepartmentID) (*catalog.Department, error) {
	return nil, nil
}
func (f *fakeCatalogRepo) FindCourse(ctx context.Context, id catalog.CourseID) (*catalog.Course, error) {
	return nil, nil
}

type fakeEventLogger struct{ logged []domainmod.NewEventLogParams }

func (f *fakeEventLogger) Log(ctx context.Context, params domainmod.NewEventLogParams) error {
	f.logged = append(f.logged, params)
	return nil
}

func newTestHandler(t *testing.T, calls *[]string, groupRepo *fakeGroupRepo, botRepo *fakeBotRepo, memberships *fakeMembershipRepo, users *fakeUserRepo) *Handler {
	t.Helper()
	client := newTestClient(t, calls)
	resolver := permission.NewResolver(&fakeRoleRepo{}, &fakeCatalogRepo{})
	return New(client, resolver, users, groupRepo, memberships, botRepo, &fakeEventLogger{}, nil, logger.New(logger.DefaultOptions()))
}

func TestHandleTransition_DemotedAdministratorIsNoOp(t *testing.T) {
	var calls []string
	groupRepo := &fakeGroupRepo{group: mustGroup(t)}
	h := newTestHandler(t, &calls, groupRepo, &fakeBotRepo{}, &fakeMembershipRepo{}, &fakeUserRepo{})

	update := &telegram.ChatMemberUpdated{
		Chat:          telegram.Chat{ID: -100},
		OldChatMember: telegram.ChatMember{Status: "administrator", User: &telegram.User{ID: 42}},
		NewChatMember: telegram.ChatMember{Status: "member", User: &telegram.User{ID: 42}},
	}
	err := h.HandleTransition(context.Background(), update)
	require.NoError(t, err)
	assert.Empty(t, calls)
}

func TestHandleTransition_UnwhitelistedBotIsKicked(t *testing.T) {
	var calls []string
	groupRepo := &fakeGroupRepo{group: mustGroup(t)}
	h := newTestHandler(t, &calls, groupRepo, &fakeBotRepo{whitelisted: map[string]bool{}}, &fakeMembershipRepo{}, &fakeUserRepo{})

	update := &telegram.ChatMemberUpdated{
		Chat:          telegram.Chat{ID: -100},
		OldChatMember: telegram.ChatMember{Status: "left"},
		NewChatMember: telegram.ChatMember{Status: "member", User: &telegram.User{ID: 999, IsBot: true, Username: "rogue_bot"}},
	}
	err := h.HandleTransition(context.Background(), update)
	require.NoError(t, err)
	assert.Contains(t, calls, "/bottest-token/banChatMember")
}

func mustGroup(t *testing.T) *telegramgroup.TelegramGroup {
	t.Helper()
	g, err := telegramgroup.NewTelegramGroup(telegramgroup.NewGroupParams{ID: -100, Title: "Test Group", BotToken: "test-token"})
	require.NoError(t, err)
	return g
}
