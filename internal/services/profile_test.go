package services_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/diewo77/go-crm/internal/db"
	"github.com/diewo77/go-crm/internal/dbtest"
	"github.com/diewo77/go-crm/internal/models"
	"github.com/diewo77/go-crm/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flushCounter struct{ n int }

func (f *flushCounter) InvalidateAll() { f.n++ }

func TestProfile_SetPermissions(t *testing.T) {
	conn := dbtest.New(t)
	ctx := context.Background()
	cache := &flushCounter{}
	svc := services.NewProfileService(conn, cache)

	p, err := svc.Create(ctx, services.ProfileInput{Name: "  support ", Description: "helpdesk"})
	require.NoError(t, err)
	assert.Equal(t, "support", p.Name)
	assert.False(t, p.IsSystem)

	perms, err := svc.Permissions(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(perms), 2)

	got, err := svc.SetPermissions(ctx, p.ID, services.PermissionsInput{PermissionIDs: []uint{perms[0].ID, perms[1].ID, perms[0].ID}})
	require.NoError(t, err)
	assert.Len(t, got.Permissions, 2)
	assert.Equal(t, 1, cache.n)

	_, err = svc.SetPermissions(ctx, p.ID, services.PermissionsInput{PermissionIDs: []uint{perms[0].ID, 999999}})
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
	assert.Contains(t, messageOf(t, err), "999999")
	assert.Equal(t, 1, cache.n)

	got, err = svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, got.Permissions, 2, "failed replacement keeps the previous set")

	got, err = svc.SetPermissions(ctx, p.ID, services.PermissionsInput{})
	require.NoError(t, err)
	assert.Empty(t, got.Permissions)
	assert.Equal(t, 2, cache.n)

	_, err = svc.SetPermissions(ctx, 999999, services.PermissionsInput{})
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
}

func TestProfile_Delete(t *testing.T) {
	conn := dbtest.New(t)
	ctx := context.Background()
	svc := services.NewProfileService(conn, nil)

	var admin models.Profile
	require.NoError(t, conn.Where("name = ?", db.ProfileAdmin).First(&admin).Error)
	err := svc.Delete(ctx, admin.ID)
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))

	used, err := svc.Create(ctx, services.ProfileInput{Name: "in use"})
	require.NoError(t, err)
	u := dbtest.CreateUser(t, conn, "holder@example.com", "")
	require.NoError(t, conn.Model(&u).Update("profile_id", used.ID).Error)
	err = svc.Delete(ctx, used.ID)
	assert.Equal(t, http.StatusConflict, statusOf(t, err))

	free, err := svc.Create(ctx, services.ProfileInput{Name: "unused"})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, free.ID))
	_, err = svc.Get(ctx, free.ID)
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))

	_, err = svc.Create(ctx, services.ProfileInput{Name: db.ProfileSales})
	assert.Equal(t, http.StatusConflict, statusOf(t, err))
}
