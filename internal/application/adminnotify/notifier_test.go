package adminnotify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unimi-net/campus-hub/internal/domain/catalog"
	"github.com/unimi-net/campus-hub/internal/domain/role"
	"github.com/unimi-net/campus-hub/internal/domain/shared"
	"github.com/unimi-net/campus-hub/internal/infrastructure/external/telegram"
)

func TestMentionsAdmin(t *testing.T) {
	assert.True(t, mentionsAdmin(&telegram.Message{Text: "hey @admin please help"}))
	assert.True(t, mentionsAdmin(&telegram.Message{Text: "HEY @ADMIN"}))
	assert.False(t, mentionsAdmin(&telegram.Message{Text: "no mention here"}))
}

type fakeRoleRepo struct {
	roles []*role.BaseRole
}

func (f *fakeRoleRepo) Save(ctx context.Context, r *role.BaseRole) error { return nil }
func (f *fakeRoleRepo) Delete(ctx context.Context, id string) error     { return nil }
func (f *fakeRoleRepo) FindByID(ctx context.Context, id string) (*role.BaseRole, error) {
	return nil, nil
}
func (f *fakeRoleRepo) FindByUser(ctx context.Context, userID shared.TelegramID) ([]*role.BaseRole, error) {
	return nil, nil
}
func (f *fakeRoleRepo) FindByVariants(ctx context.Context, variants []role.Variant) ([]*role.BaseRole, error) {
	return f.roles, nil
}

type fakeCatalogRepo struct {
	degrees []catalog.DegreeID
}

func (f *fakeCatalogRepo) DegreesForChat(ctx context.Context, chatID shared.ChatID) ([]catalog.DegreeID, error) {
	return f.degrees, nil
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

func TestDiscoverOnCall_FiltersByScope(t *testing.T) {
	global := &role.BaseRole{ID: "global", UserID: 1, Variant: role.VariantModerator, AllGroups: true}
	scoped := &role.BaseRole{ID: "scoped", UserID: 2, Variant: role.VariantAdministrator, DegreeIDs: []catalog.DegreeID{7}}
	outOfScope := &role.BaseRole{ID: "other", UserID: 3, Variant: role.VariantModerator, DegreeIDs: []catalog.DegreeID{9}}

	n := &Notifier{
		roles:       &fakeRoleRepo{roles: []*role.BaseRole{global, scoped, outOfScope}},
		catalogRepo: &fakeCatalogRepo{degrees: []catalog.DegreeID{7}},
	}

	matched, err := n.discoverOnCall(context.Background(), shared.ChatID(-100))
	require.NoError(t, err)
	require.Len(t, matched, 2)
	assert.ElementsMatch(t, []string{"global", "scoped"}, []string{matched[0].ID, matched[1].ID})
}
