package models

import (
	"time"

	"gorm.io/datatypes"
)

// RelationshipStatus tracks where a client relationship stands.
type RelationshipStatus string

const (
	RelationshipStatusPending   RelationshipStatus = "pending"
	RelationshipStatusConfirmed RelationshipStatus = "confirmed"
	RelationshipStatusCancelled RelationshipStatus = "cancelled"
)

func (s RelationshipStatus) Valid() bool {
	switch s {
	case RelationshipStatusPending, RelationshipStatusConfirmed, RelationshipStatusCancelled:
		return true
	}
	return false
}

// CareOf names the internal party that is the point of contact.
type CareOf string

const (
	CareOfNasscript CareOf = "nasscript"
	CareOfHisaan    CareOf = "hisaan"
)

func (c CareOf) Valid() bool {
	return c == CareOfNasscript || c == CareOfHisaan
}

// ClientRelationship is the evolving account record for one client.
type ClientRelationship struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ClientID uint    `gorm:"index;not null" json:"client_id"`
	Client   *Client `gorm:"foreignKey:ClientID" json:"client,omitempty"`

	// Products is a JSON array of product identifiers the client is interested in.
	Products     datatypes.JSON     `json:"products"`
	ReminderDate *Date              `json:"reminder_date"`
	MeetingDate  *Date              `json:"meeting_date"`
	Status       RelationshipStatus `gorm:"size:20;not null;default:'pending'" json:"status"`
	CareOf       CareOf             `gorm:"size:20;not null;default:'nasscript'" json:"care_of"`
	ShortNote    string             `gorm:"size:255" json:"short_note,omitempty"`
	Remarks      string             `gorm:"type:text" json:"remarks,omitempty"`
}
