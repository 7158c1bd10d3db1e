package services_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/diewo77/go-crm/internal/calendar"
	"github.com/diewo77/go-crm/internal/dbtest"
	"github.com/diewo77/go-crm/internal/models"
	"github.com/diewo77/go-crm/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2030, time.June, 1, 9, 0, 0, 0, time.UTC)

type fakeInviter struct {
	eventID string
	err     error
	got     []calendar.Invitation
}

func (f *fakeInviter) Invite(_ context.Context, inv calendar.Invitation) (string, error) {
	f.got = append(f.got, inv)
	return f.eventID, f.err
}

func demoInput(at time.Time) services.ClientRequestInput {
	return services.ClientRequestInput{
		ClientName:       "Sara",
		ClientEmail:      "sara@example.com",
		ClientNumber:     "+923001234567",
		CompanyName:      "Acme",
		CompanySize:      models.CompanySizeMedium,
		Platform:         models.PlatformZoom,
		ScheduledDate:    at,
		ServiceRequested: "Mobile app",
	}
}

func TestClientRequest_RejectsPastSchedule(t *testing.T) {
	conn := dbtest.New(t)
	svc := services.NewClientRequestService(conn, nil, zap.NewNop(), services.WithClock(func() time.Time { return fixedNow }))

	_, err := svc.Create(context.Background(), demoInput(fixedNow.Add(-time.Minute)))
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
	assert.Equal(t, "scheduled date cannot be in the past", messageOf(t, err))
	assert.Zero(t, countRows(t, conn, &models.ClientRequest{}))
}

func TestClientRequest_CreateAndUpdate(t *testing.T) {
	conn := dbtest.New(t)
	ctx := context.Background()
	now := fixedNow
	svc := services.NewClientRequestService(conn, nil, zap.NewNop(), services.WithClock(func() time.Time { return now }))

	r, err := svc.Create(ctx, demoInput(fixedNow.Add(24*time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusPending, r.Status)

	// the schedule is only re-checked when it moves
	now = fixedNow.Add(48 * time.Hour)
	in := demoInput(r.ScheduledDate)
	in.CompanyName = "Acme Ltd"
	r, err = svc.Update(ctx, r.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "Acme Ltd", r.CompanyName)

	in.ScheduledDate = fixedNow.Add(36 * time.Hour)
	_, err = svc.Update(ctx, r.ID, in)
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
}

func TestClientRequest_ValidatesEnums(t *testing.T) {
	conn := dbtest.New(t)
	svc := services.NewClientRequestService(conn, nil, zap.NewNop(), services.WithClock(func() time.Time { return fixedNow }))

	in := demoInput(fixedNow.Add(time.Hour))
	in.Platform = "skype"
	in.CompanySize = "huge"
	_, err := svc.Create(context.Background(), in)
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))

	_, err = svc.List(context.Background(), "archived")
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
}

func TestClientRequest_AssignStaff(t *testing.T) {
	conn := dbtest.New(t)
	ctx := context.Background()
	staff := dbtest.CreateUser(t, conn, "staff@example.com", "sales")
	inviter := &fakeInviter{eventID: "evt-123"}
	svc := services.NewClientRequestService(conn, inviter, zap.NewNop(),
		services.WithClock(func() time.Time { return fixedNow }), services.WithDemoDuration(45*time.Minute))

	r, err := svc.Create(ctx, demoInput(fixedNow.Add(24*time.Hour)))
	require.NoError(t, err)

	r, err = svc.AssignStaff(ctx, r.ID, services.AssignStaffInput{StaffID: &staff.ID, Status: models.RequestStatusScheduled})
	require.NoError(t, err)
	require.NotNil(t, r.AssignedStaffID)
	assert.Equal(t, staff.ID, *r.AssignedStaffID)
	assert.Equal(t, models.RequestStatusScheduled, r.Status)
	assert.Equal(t, "evt-123", r.GoogleCalendarEventID)

	require.Len(t, inviter.got, 1)
	assert.Equal(t, []string{"sara@example.com", "staff@example.com"}, inviter.got[0].Attendees)
	assert.Equal(t, 45*time.Minute, inviter.got[0].Duration)
	assert.True(t, inviter.got[0].Start.Equal(r.ScheduledDate))

	stored, err := svc.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "evt-123", stored.GoogleCalendarEventID)
	require.NotNil(t, stored.AssignedStaff)
	assert.Equal(t, staff.Email, stored.AssignedStaff.Email)
}

func TestClientRequest_AssignStaffErrors(t *testing.T) {
	conn := dbtest.New(t)
	ctx := context.Background()
	staff := dbtest.CreateUser(t, conn, "staff@example.com", "sales")
	svc := services.NewClientRequestService(conn, nil, zap.NewNop(), services.WithClock(func() time.Time { return fixedNow }))

	r, err := svc.Create(ctx, demoInput(fixedNow.Add(time.Hour)))
	require.NoError(t, err)
	_, err = svc.AssignStaff(ctx, r.ID, services.AssignStaffInput{StaffID: &staff.ID, Status: models.RequestStatusScheduled})
	require.NoError(t, err)

	missing := uint(9999)
	tests := []struct {
		name   string
		id     uint
		in     services.AssignStaffInput
		status int
		msg    string
	}{
		{"missing staff id", r.ID, services.AssignStaffInput{Status: models.RequestStatusScheduled}, http.StatusBadRequest, "staff_id is required"},
		{"bad status", r.ID, services.AssignStaffInput{StaffID: &staff.ID, Status: "later"}, http.StatusBadRequest, `invalid status "later"`},
		{"unknown request", 9999, services.AssignStaffInput{StaffID: &staff.ID, Status: models.RequestStatusScheduled}, http.StatusNotFound, "client request not found"},
		{"unknown staff", r.ID, services.AssignStaffInput{StaffID: &missing, Status: models.RequestStatusCompleted}, http.StatusNotFound, "staff not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AssignStaff(ctx, tt.id, tt.in)
			assert.Equal(t, tt.status, statusOf(t, err))
			assert.Equal(t, tt.msg, messageOf(t, err))
		})
	}

	stored, err := svc.Get(ctx, r.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.AssignedStaffID)
	assert.Equal(t, staff.ID, *stored.AssignedStaffID, "assignee unchanged")
	assert.Equal(t, models.RequestStatusScheduled, stored.Status)
}

func TestClientRequest_AssignStaffResolvesAnyUser(t *testing.T) {
	conn := dbtest.New(t)
	ctx := context.Background()
	u := models.User{Email: "contractor@example.com", Password: "x", IsStaff: false}
	require.NoError(t, conn.Create(&u).Error)

	var stored models.User
	require.NoError(t, conn.First(&stored, u.ID).Error)
	assert.False(t, stored.IsStaff)

	svc := services.NewClientRequestService(conn, nil, zap.NewNop(), services.WithClock(func() time.Time { return fixedNow }))
	r, err := svc.Create(ctx, demoInput(fixedNow.Add(time.Hour)))
	require.NoError(t, err)
	r, err = svc.AssignStaff(ctx, r.ID, services.AssignStaffInput{StaffID: &u.ID, Status: models.RequestStatusScheduled})
	require.NoError(t, err)
	require.NotNil(t, r.AssignedStaffID)
	assert.Equal(t, u.ID, *r.AssignedStaffID)
}

func TestClientRequest_CalendarFailureKeepsAssignment(t *testing.T) {
	conn := dbtest.New(t)
	ctx := context.Background()
	staff := dbtest.CreateUser(t, conn, "staff@example.com", "sales")
	inviter := &fakeInviter{err: errors.New("calendar down")}
	svc := services.NewClientRequestService(conn, inviter, zap.NewNop(), services.WithClock(func() time.Time { return fixedNow }))

	r, err := svc.Create(ctx, demoInput(fixedNow.Add(time.Hour)))
	require.NoError(t, err)
	r, err = svc.AssignStaff(ctx, r.ID, services.AssignStaffInput{StaffID: &staff.ID, Status: models.RequestStatusScheduled})
	require.NoError(t, err)
	assert.Empty(t, r.GoogleCalendarEventID)
	require.NotNil(t, r.AssignedStaffID)
}
