package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"shopops/portal/internal/utils"
)

func TestClientService_CRUD(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}
	ctx := context.Background()
	service := NewClientService(utils.SetupTestDB(t))

	_, err := service.CreateClient(ctx, ClientInput{Name: "Sunita"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "phone", verr.Field)

	sunita, err := service.CreateClient(ctx, ClientInput{Name: " Sunita Rao ", Phone: "98450 11111"})
	require.NoError(t, err)
	assert.Equal(t, "Sunita Rao", sunita.Name)
	_, err = service.CreateClient(ctx, ClientInput{Name: "Babu", Phone: "90000 22222", AltPhone: "80880 12345"})
	require.NoError(t, err)

	found, err := service.ListClients(ctx, "sunita", 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, sunita.ID, found[0].ID)

	found, err = service.ListClients(ctx, "80880", 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Babu", found[0].Name)

	all, err := service.ListClients(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	updated, err := service.UpdateClient(ctx, sunita.ID, ClientInput{Name: "Sunita R", Phone: "98450 11111", Notes: "prefers QR"})
	require.NoError(t, err)
	assert.Equal(t, "Sunita R", updated.Name)
	assert.Equal(t, "prefers QR", updated.Notes)

	_, err = service.UpdateClient(ctx, primitive.NewObjectID(), ClientInput{Name: "X", Phone: "1"})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, service.DeleteClient(ctx, sunita.ID))
	_, err = service.GetClient(ctx, sunita.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, service.DeleteClient(ctx, sunita.ID), ErrNotFound)
}
