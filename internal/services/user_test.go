package services_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/diewo77/go-crm/internal/db"
	"github.com/diewo77/go-crm/internal/dbtest"
	"github.com/diewo77/go-crm/internal/models"
	"github.com/diewo77/go-crm/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingCache struct {
	invalidated []uint
}

func (c *recordingCache) Invalidate(id uint) { c.invalidated = append(c.invalidated, id) }

func TestUser_SignupAndAuthenticate(t *testing.T) {
	conn := dbtest.New(t)
	ctx := context.Background()
	svc := services.NewUserService(conn, nil)

	u, err := svc.Signup(ctx, services.SignupInput{Email: "New@Example.com ", Password: "longenough", Name: "New"})
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", u.Email)
	require.NotNil(t, u.ProfileID)
	var viewer models.Profile
	require.NoError(t, conn.Where("name = ?", db.ProfileViewer).First(&viewer).Error)
	assert.Equal(t, viewer.ID, *u.ProfileID)

	_, err = svc.Signup(ctx, services.SignupInput{Email: "new@example.com", Password: "longenough"})
	assert.Equal(t, http.StatusConflict, statusOf(t, err))
	_, err = svc.Signup(ctx, services.SignupInput{Email: "short@example.com", Password: "short"})
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))

	got, err := svc.Authenticate(ctx, services.LoginInput{Email: "new@example.com", Password: "longenough"})
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	_, err = svc.Authenticate(ctx, services.LoginInput{Email: "new@example.com", Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
	_, err = svc.Authenticate(ctx, services.LoginInput{Email: "nobody@example.com", Password: "whatever1"})
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))

	assert.True(t, svc.Exists(ctx, u.ID))
	assert.False(t, svc.Exists(ctx, 9999))
}

func TestUser_AssignProfileInvalidatesCache(t *testing.T) {
	conn := dbtest.New(t)
	ctx := context.Background()
	cache := &recordingCache{}
	svc := services.NewUserService(conn, cache)
	u := dbtest.CreateUser(t, conn, "someone@example.com", db.ProfileViewer)
	var sales models.Profile
	require.NoError(t, conn.Where("name = ?", db.ProfileSales).First(&sales).Error)

	got, err := svc.AssignProfile(ctx, u.ID, services.AssignProfileInput{ProfileID: &sales.ID})
	require.NoError(t, err)
	require.NotNil(t, got.Profile)
	assert.Equal(t, db.ProfileSales, got.Profile.Name)
	assert.Equal(t, []uint{u.ID}, cache.invalidated)

	missing := uint(999)
	_, err = svc.AssignProfile(ctx, u.ID, services.AssignProfileInput{ProfileID: &missing})
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
	_, err = svc.AssignProfile(ctx, 999, services.AssignProfileInput{})
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
}

func TestUser_DeleteClearsAssignments(t *testing.T) {
	conn := dbtest.New(t)
	ctx := context.Background()
	staff := dbtest.CreateUser(t, conn, "staff@example.com", db.ProfileSales)
	requests := services.NewClientRequestService(conn, nil, zap.NewNop(), services.WithClock(func() time.Time { return fixedNow }))

	r, err := requests.Create(ctx, demoInput(fixedNow.Add(time.Hour)))
	require.NoError(t, err)
	_, err = requests.AssignStaff(ctx, r.ID, services.AssignStaffInput{StaffID: &staff.ID, Status: models.RequestStatusScheduled})
	require.NoError(t, err)
	client := dbtest.CreateClient(t, conn, "Acme")
	q, err := services.NewQuotationService(conn, zap.NewNop()).Create(ctx, staff.ID, services.QuotationInput{ClientID: client.ID, AssignedToID: &staff.ID})
	require.NoError(t, err)

	svc := services.NewUserService(conn, nil)
	require.NoError(t, svc.Delete(ctx, staff.ID))

	stored, err := requests.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.AssignedStaffID)
	assert.Equal(t, models.RequestStatusScheduled, stored.Status)

	var quotation models.Quotation
	require.NoError(t, conn.First(&quotation, q.ID).Error)
	assert.Nil(t, quotation.AssignedToID)
	assert.Nil(t, quotation.CreatedByID)

	_, err = svc.Get(ctx, staff.ID)
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
}
