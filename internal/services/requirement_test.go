package services_test

import (
	"context"
	"net/http"
	"sort"
	"testing"

	"github.com/diewo77/go-crm/internal/blobstore"
	"github.com/diewo77/go-crm/internal/dbtest"
	"github.com/diewo77/go-crm/internal/models"
	"github.com/diewo77/go-crm/internal/payload"
	"github.com/diewo77/go-crm/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func imageIDs(images []models.RequirementImage) []uint {
	ids := make([]uint, 0, len(images))
	for _, img := range images {
		ids = append(ids, img.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func featureIDs(t *testing.T, conn *gorm.DB, names ...string) []uint {
	t.Helper()
	var ids []uint
	require.NoError(t, conn.Model(&models.Feature{}).Where("name IN ?", names).Order("id").Pluck("id", &ids).Error)
	require.Len(t, ids, len(names))
	return ids
}

func newRequirementService(t *testing.T) (*gorm.DB, *testStore, *services.RequirementService) {
	conn := dbtest.New(t)
	store := newStore(t)
	return conn, store, services.NewRequirementService(conn, store, zap.NewNop())
}

func TestRequirement_CreateNormalizesFeatures(t *testing.T) {
	conn, _, svc := newRequirementService(t)
	ctx := context.Background()
	client := dbtest.CreateClient(t, conn, "Acme")
	var seeded []models.Feature
	require.NoError(t, conn.Order("id").Limit(2).Find(&seeded).Error)
	require.Len(t, seeded, 2)

	r, err := svc.Create(ctx, services.RequirementInput{
		ClientID:           client.ID,
		Layout:             "two column",
		PredefinedFeatures: []uint{seeded[0].ID, seeded[1].ID},
		CustomFeatures:     payload.CustomFeaturesString("Dark Mode, Offline Support"),
		Uploads:            []services.Upload{pngUpload("a.png"), pngUpload("b.png")},
	})
	require.NoError(t, err)

	assert.Equal(t, models.RequirementStatusPending, r.Status)
	assert.Equal(t, []string{"Dark Mode", "Offline Support"}, r.CustomFeatureList())
	assert.Len(t, r.PredefinedFeatures, 2)
	require.Len(t, r.Images, 2)
	assert.Equal(t, "image/png", r.Images[0].ContentType)
	require.NotNil(t, r.Client)
	assert.Equal(t, "Acme", r.Client.Name)
}

func TestRequirement_UnknownFeatureRollsBackUploads(t *testing.T) {
	conn, store, svc := newRequirementService(t)
	ctx := context.Background()
	client := dbtest.CreateClient(t, conn, "Acme")

	_, err := svc.Create(ctx, services.RequirementInput{
		ClientID:           client.ID,
		PredefinedFeatures: []uint{9999},
		Uploads:            []services.Upload{pngUpload("a.png")},
	})
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
	assert.Zero(t, countRows(t, conn, &models.ClientRequirement{}))
	assert.Zero(t, countRows(t, conn, &models.RequirementImage{}))
	assert.Empty(t, listBlobs(t, store))
}

func TestRequirement_RejectsNonImageUpload(t *testing.T) {
	conn, _, svc := newRequirementService(t)
	client := dbtest.CreateClient(t, conn, "Acme")

	_, err := svc.Create(context.Background(), services.RequirementInput{
		ClientID: client.ID,
		Uploads:  []services.Upload{textUpload("notes.txt", "plain text")},
	})
	assert.Equal(t, http.StatusUnsupportedMediaType, statusOf(t, err))
}

func TestRequirement_UpdateReconcilesImages(t *testing.T) {
	conn, store, svc := newRequirementService(t)
	ctx := context.Background()
	client := dbtest.CreateClient(t, conn, "Acme")

	r, err := svc.Create(ctx, services.RequirementInput{
		ClientID: client.ID,
		Uploads:  []services.Upload{pngUpload("1.png"), pngUpload("2.png"), pngUpload("3.png"), pngUpload("4.png")},
	})
	require.NoError(t, err)
	ids := imageIDs(r.Images)
	require.Len(t, ids, 4)
	keys := map[uint]string{}
	for _, img := range r.Images {
		keys[img.ID] = img.StorageKey
	}

	r, err = svc.Update(ctx, r.ID, services.RequirementInput{
		ClientID:       client.ID,
		ExistingImages: []uint{ids[1], ids[2]},
		Uploads:        []services.Upload{pngUpload("5.png")},
	})
	require.NoError(t, err)

	got := imageIDs(r.Images)
	require.Len(t, got, 3)
	assert.Equal(t, []uint{ids[1], ids[2]}, got[:2])
	assert.Greater(t, got[2], ids[3], "new upload is added")

	for _, removed := range []uint{ids[0], ids[3]} {
		_, _, err := store.Open(ctx, keys[removed])
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
	}
	rc, ctype, err := svc.OpenImage(ctx, r.ID, ids[1])
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "image/png", ctype)

	_, _, err = svc.OpenImage(ctx, r.ID, ids[0])
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
}

func TestRequirement_UpdateReplacesFeatures(t *testing.T) {
	conn, _, svc := newRequirementService(t)
	ctx := context.Background()
	client := dbtest.CreateClient(t, conn, "Acme")
	var seeded []models.Feature
	require.NoError(t, conn.Order("id").Limit(3).Find(&seeded).Error)

	r, err := svc.Create(ctx, services.RequirementInput{
		ClientID:           client.ID,
		PredefinedFeatures: []uint{seeded[0].ID, seeded[1].ID},
		CustomFeatures:     payload.CustomFeaturesList("Chat", "Maps"),
	})
	require.NoError(t, err)

	r, err = svc.Update(ctx, r.ID, services.RequirementInput{
		ClientID:           client.ID,
		PredefinedFeatures: []uint{seeded[2].ID},
		Status:             models.RequirementStatusInProgress,
	})
	require.NoError(t, err)
	require.Len(t, r.PredefinedFeatures, 1)
	assert.Equal(t, seeded[2].ID, r.PredefinedFeatures[0].ID)
	assert.Equal(t, []string{}, r.CustomFeatureList(), "absent custom features clear the list")
	assert.Equal(t, models.RequirementStatusInProgress, r.Status)
}

func TestRequirement_Delete(t *testing.T) {
	conn, store, svc := newRequirementService(t)
	ctx := context.Background()
	client := dbtest.CreateClient(t, conn, "Acme")

	r, err := svc.Create(ctx, services.RequirementInput{
		ClientID:           client.ID,
		PredefinedFeatures: featureIDs(t, conn, "Dark Mode"),
		Uploads:            []services.Upload{pngUpload("1.png")},
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, r.ID))
	assert.Zero(t, countRows(t, conn, &models.RequirementImage{}))
	assert.Empty(t, listBlobs(t, store))
	assert.Equal(t, http.StatusNotFound, statusOf(t, svc.Delete(ctx, r.ID)))
}
