package models

import (
	"time"
)

// RequestStatus is the lifecycle state of a demo request.
type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusScheduled RequestStatus = "scheduled"
	RequestStatusCompleted RequestStatus = "completed"
	RequestStatusCancelled RequestStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestStatusPending, RequestStatusScheduled, RequestStatusCompleted, RequestStatusCancelled:
		return true
	}
	return false
}

// CompanySize buckets the head count of the requesting company.
type CompanySize string

const (
	CompanySizeSmall     CompanySize = "small"
	CompanySizeMedium    CompanySize = "medium"
	CompanySizeLarge     CompanySize = "large"
	CompanySizeCorporate CompanySize = "corporate"
)

var companySizeLabels = map[CompanySize]string{
	CompanySizeSmall:     "0 - 10",
	CompanySizeMedium:    "10 - 50",
	CompanySizeLarge:     "50 - 100",
	CompanySizeCorporate: "Above 100",
}

func (s CompanySize) Valid() bool {
	_, ok := companySizeLabels[s]
	return ok
}

// Label returns the human readable range.
func (s CompanySize) Label() string { return companySizeLabels[s] }

// Platform is the meeting medium chosen for the demo.
type Platform string

const (
	PlatformZoom           Platform = "zoom"
	PlatformGoogleMeet     Platform = "google_meet"
	PlatformMicrosoftTeams Platform = "microsoft_teams"
	PlatformPhone          Platform = "phone"
)

var platformLabels = map[Platform]string{
	PlatformZoom:           "Zoom",
	PlatformGoogleMeet:     "Google Meet",
	PlatformMicrosoftTeams: "Microsoft Teams",
	PlatformPhone:          "Phone Call",
}

func (p Platform) Valid() bool {
	_, ok := platformLabels[p]
	return ok
}

// Label returns the display name of the platform.
func (p Platform) Label() string { return platformLabels[p] }

// ClientRequest is an inbound demo-scheduling submission.
// AssignedStaffID is nulled when the staff user is deleted.
type ClientRequest struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	AssignedStaffID *uint `gorm:"index" json:"assigned_staff_id"`
	AssignedStaff   *User `gorm:"foreignKey:AssignedStaffID;constraint:OnDelete:SET NULL" json:"-"`

	ClientName       string        `gorm:"size:255;not null" json:"client_name"`
	ClientEmail      string        `gorm:"size:255;not null" json:"client_email"`
	ClientNumber     string        `gorm:"size:20;not null" json:"client_number"`
	CompanyName      string        `gorm:"size:255;not null" json:"company_name"`
	CompanySize      CompanySize   `gorm:"size:20;not null" json:"company_size"`
	Platform         Platform      `gorm:"size:20;not null" json:"platform"`
	ScheduledDate    time.Time     `gorm:"not null;index" json:"scheduled_date"`
	ServiceRequested string        `gorm:"size:255;not null" json:"service_requested"`
	Status           RequestStatus `gorm:"size:20;not null;default:'pending';index" json:"status"`

	GoogleCalendarEventID string `gorm:"size:255" json:"google_calendar_event_id,omitempty"`
}
