package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopops/portal/internal/models"
	"shopops/portal/internal/utils"
)

func TestPresenceService(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}
	ctx := context.Background()
	rdb := utils.SetupTestRedis(t)
	service := NewPresenceService(rdb, time.Minute)

	online, err := service.Online(ctx)
	require.NoError(t, err)
	assert.NotNil(t, online)
	assert.Empty(t, online)

	var verr *ValidationError
	require.ErrorAs(t, service.Heartbeat(ctx, models.Presence{Name: "nobody"}), &verr)

	earlier := time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)
	require.NoError(t, service.Heartbeat(ctx, models.Presence{UserID: "a", Name: "Asha", Role: models.RoleAdmin, LastSeen: earlier}))
	require.NoError(t, service.Heartbeat(ctx, models.Presence{UserID: "b", Name: "Bala", Role: models.RoleDeveloper, LastSeen: earlier.Add(time.Minute)}))
	// A repeat heartbeat replaces the earlier one.
	require.NoError(t, service.Heartbeat(ctx, models.Presence{UserID: "a", Name: "Asha", Role: models.RoleAdmin, LastSeen: earlier.Add(2 * time.Minute)}))

	online, err = service.Online(ctx)
	require.NoError(t, err)
	require.Len(t, online, 2)
	assert.Equal(t, "a", online[0].UserID)
	assert.Equal(t, "b", online[1].UserID)
	assert.Equal(t, models.RoleDeveloper, online[1].Role)
}

func TestPresenceService_Expiry(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}
	ctx := context.Background()
	service := NewPresenceService(utils.SetupTestRedis(t), 200*time.Millisecond)

	require.NoError(t, service.Heartbeat(ctx, models.Presence{UserID: "a", Name: "Asha"}))
	online, err := service.Online(ctx)
	require.NoError(t, err)
	require.Len(t, online, 1)
	assert.False(t, online[0].LastSeen.IsZero())

	require.Eventually(t, func() bool {
		online, err := service.Online(ctx)
		return err == nil && len(online) == 0
	}, 3*time.Second, 100*time.Millisecond)
}
