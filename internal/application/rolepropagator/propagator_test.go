package rolepropagator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/unimi-net/campus-hub/internal/domain/role"
)

func TestTelegramRights_MapsGrantedRightsOnly(t *testing.T) {
	rights := map[role.Right]bool{
		role.RightDeleteMessages:  true,
		role.RightRestrictMembers: true,
		role.RightPromoteMembers:  false,
	}

	got := telegramRights(rights)

	assert.True(t, got.CanDeleteMessages)
	assert.True(t, got.CanRestrictMembers)
	assert.False(t, got.CanPromoteMembers)
	assert.False(t, got.CanChangeInfo)
	assert.False(t, got.CanInviteUsers)
	assert.False(t, got.CanPinMessages)
	assert.False(t, got.CanManageChat)
	assert.False(t, got.CanManageVoiceChats)
}

func TestTelegramRights_EmptyMapDemotesEverything(t *testing.T) {
	got := telegramRights(map[role.Right]bool{})

	assert.Equal(t, false, got.CanChangeInfo)
	assert.Equal(t, false, got.CanPromoteMembers)
}
