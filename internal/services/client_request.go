package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/diewo77/go-crm/httpx"
	"github.com/diewo77/go-crm/internal/calendar"
	"github.com/diewo77/go-crm/internal/metrics"
	"github.com/diewo77/go-crm/internal/models"
	"github.com/diewo77/go-crm/validation"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultDemoDuration = 30 * time.Minute

// ClientRequestService handles demo-request intake and staff assignment.
type ClientRequestService struct {
	db       *gorm.DB
	inviter  calendar.Inviter
	log      *zap.Logger
	now      func() time.Time
	duration time.Duration
}

// ClientRequestOption customizes a ClientRequestService.
type ClientRequestOption func(*ClientRequestService)

// WithClock replaces the clock used for the scheduled-date check.
func WithClock(now func() time.Time) ClientRequestOption {
	return func(s *ClientRequestService) { s.now = now }
}

// WithDemoDuration sets the length of calendar invitations.
func WithDemoDuration(d time.Duration) ClientRequestOption {
	return func(s *ClientRequestService) {
		if d > 0 {
			s.duration = d
		}
	}
}

// NewClientRequestService builds the service. A nil inviter disables calendar
// invitations.
func NewClientRequestService(db *gorm.DB, inviter calendar.Inviter, log *zap.Logger, opts ...ClientRequestOption) *ClientRequestService {
	if inviter == nil {
		inviter = calendar.Noop{}
	}
	s := &ClientRequestService{db: db, inviter: inviter, log: log, now: time.Now, duration: defaultDemoDuration}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ClientRequestInput is the body accepted when creating or updating a demo
// request. An empty Status means pending on create and unchanged on update.
type ClientRequestInput struct {
	ClientName       string               `json:"client_name" validate:"required,max=255"`
	ClientEmail      string               `json:"client_email" validate:"required,email,max=255"`
	ClientNumber     string               `json:"client_number" validate:"required,max=20"`
	CompanyName      string               `json:"company_name" validate:"required,max=255"`
	CompanySize      models.CompanySize   `json:"company_size" validate:"required"`
	Platform         models.Platform      `json:"platform" validate:"required"`
	ScheduledDate    time.Time            `json:"scheduled_date" validate:"required"`
	ServiceRequested string               `json:"service_requested" validate:"required,max=255"`
	Status           models.RequestStatus `json:"status"`
}

func (in *ClientRequestInput) validate() error {
	v := validation.Struct(in)
	if in.CompanySize != "" && !in.CompanySize.Valid() {
		v.Add("company_size", "oneof")
	}
	if in.Platform != "" && !in.Platform.Valid() {
		v.Add("platform", "oneof")
	}
	if in.Status != "" && !in.Status.Valid() {
		v.Add("status", "oneof")
	}
	return v.Err()
}

// AssignStaffInput is the body of the assign_staff action.
type AssignStaffInput struct {
	StaffID *uint                `json:"staff_id"`
	Status  models.RequestStatus `json:"status"`
}

var errPastSchedule = httperror.NewHTTPError(http.StatusBadRequest, "scheduled date cannot be in the past").
	AddMetaValue("field", "scheduled_date")

func (s *ClientRequestService) checkSchedule(at time.Time) error {
	if at.Before(s.now()) {
		return errPastSchedule
	}
	return nil
}

// List returns demo requests, newest schedule first. An unknown status is
// rejected.
func (s *ClientRequestService) List(ctx context.Context, status string) ([]models.ClientRequest, error) {
	q := s.db.WithContext(ctx).Preload("AssignedStaff").Order("scheduled_date DESC, id DESC")
	if status != "" {
		if !models.RequestStatus(status).Valid() {
			return nil, invalidField("status", fmt.Sprintf("invalid status %q", status))
		}
		q = q.Where("status = ?", status)
	}
	out := []models.ClientRequest{}
	if err := q.Find(&out).Error; err != nil {
		return nil, httpx.DBError(err, "client request")
	}
	return out, nil
}

func (s *ClientRequestService) Get(ctx context.Context, id uint) (*models.ClientRequest, error) {
	var r models.ClientRequest
	if err := s.db.WithContext(ctx).Preload("AssignedStaff").First(&r, id).Error; err != nil {
		return nil, httpx.DBError(err, "client request")
	}
	return &r, nil
}

// Create stores a new demo request after rejecting past schedules.
func (s *ClientRequestService) Create(ctx context.Context, in ClientRequestInput) (*models.ClientRequest, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := s.checkSchedule(in.ScheduledDate); err != nil {
		return nil, err
	}
	r := models.ClientRequest{Status: models.RequestStatusPending}
	applyRequest(&r, in)
	if err := s.db.WithContext(ctx).Create(&r).Error; err != nil {
		return nil, httpx.DBError(err, "client request")
	}
	return &r, nil
}

// Update rewrites the request. The schedule is re-checked only when it moves.
func (s *ClientRequestService) Update(ctx context.Context, id uint, in ClientRequestInput) (*models.ClientRequest, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	r, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !in.ScheduledDate.Equal(r.ScheduledDate) {
		if err := s.checkSchedule(in.ScheduledDate); err != nil {
			return nil, err
		}
	}
	applyRequest(r, in)
	if err := s.db.WithContext(ctx).Omit("AssignedStaff").Save(r).Error; err != nil {
		return nil, httpx.DBError(err, "client request")
	}
	return r, nil
}

func applyRequest(r *models.ClientRequest, in ClientRequestInput) {
	r.ClientName = in.ClientName
	r.ClientEmail = in.ClientEmail
	r.ClientNumber = in.ClientNumber
	r.CompanyName = in.CompanyName
	r.CompanySize = in.CompanySize
	r.Platform = in.Platform
	r.ScheduledDate = in.ScheduledDate
	r.ServiceRequested = in.ServiceRequested
	if in.Status != "" {
		r.Status = in.Status
	}
}

func (s *ClientRequestService) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.ClientRequest{}, id)
	if res.Error != nil {
		return httpx.DBError(res.Error, "client request")
	}
	if res.RowsAffected == 0 {
		return httpx.NotFound("client request")
	}
	return nil
}

// AssignStaff sets the assignee and status of a demo request, then invites
// client and staff to the meeting. An unknown staff id changes nothing.
func (s *ClientRequestService) AssignStaff(ctx context.Context, id uint, in AssignStaffInput) (*models.ClientRequest, error) {
	if in.StaffID == nil {
		return nil, invalidField("staff_id", "staff_id is required")
	}
	if !in.Status.Valid() {
		return nil, invalidField("status", fmt.Sprintf("invalid status %q", in.Status))
	}
	r, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	var staff models.User
	err = s.db.WithContext(ctx).First(&staff, *in.StaffID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, httpx.NotFound("staff")
	}
	if err != nil {
		return nil, fmt.Errorf("load staff: %w", err)
	}

	r.AssignedStaffID = &staff.ID
	r.AssignedStaff = &staff
	r.Status = in.Status
	err = s.db.WithContext(ctx).Model(&models.ClientRequest{}).Where("id = ?", r.ID).Updates(map[string]any{
		"assigned_staff_id": staff.ID,
		"status":            in.Status,
		"updated_at":        s.now(),
	}).Error
	if err != nil {
		return nil, httpx.DBError(err, "client request")
	}

	s.invite(ctx, r, &staff)
	return r, nil
}

// invite sends the calendar invitation. Failures are logged and swallowed so
// the assignment stands.
func (s *ClientRequestService) invite(ctx context.Context, r *models.ClientRequest, staff *models.User) {
	if _, ok := s.inviter.(calendar.Noop); ok {
		return
	}
	inv := calendar.Invitation{
		Summary:     fmt.Sprintf("Demo: %s (%s)", r.CompanyName, r.ServiceRequested),
		Description: fmt.Sprintf("Demo for %s via %s.", r.ClientName, r.Platform.Label()),
		Start:       r.ScheduledDate,
		Duration:    s.duration,
		Attendees:   []string{r.ClientEmail, staff.Email},
	}
	eventID, err := s.inviter.Invite(ctx, inv)
	if err != nil {
		metrics.CalendarInvites.WithLabelValues("error").Inc()
		s.log.Warn("calendar invitation failed", zap.Uint("client_request_id", r.ID), zap.Error(err))
		return
	}
	metrics.CalendarInvites.WithLabelValues("sent").Inc()
	if eventID == "" {
		return
	}
	err = s.db.WithContext(ctx).Model(&models.ClientRequest{}).Where("id = ?", r.ID).
		UpdateColumn("google_calendar_event_id", eventID).Error
	if err != nil {
		s.log.Warn("failed to store calendar event id", zap.Uint("client_request_id", r.ID), zap.Error(err))
		return
	}
	r.GoogleCalendarEventID = eventID
}
