package models

import (
	"time"
)

// Feature is a reusable named tag describing a client or requirement characteristic.
type Feature struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Name      string    `gorm:"size:100;uniqueIndex;not null" json:"name"`
}

// FeatureRef is the {id,name} pair used when features are embedded.
type FeatureRef struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// FeatureRefs maps features to their compact form; the result is never nil.
func FeatureRefs(features []Feature) []FeatureRef {
	out := make([]FeatureRef, 0, len(features))
	for _, f := range features {
		out = append(out, FeatureRef{ID: f.ID, Name: f.Name})
	}
	return out
}

// Client is a prospective or active customer.
// Relationships, requirements and agreements are removed with the client.
type Client struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name           string `gorm:"size:255;not null" json:"name"`
	MobileNumber   string `gorm:"size:20" json:"mobile_number"`
	WhatsappNumber string `gorm:"size:20" json:"whatsapp_number,omitempty"`
	Email          string `gorm:"size:255;index" json:"email,omitempty"`
	Country        string `gorm:"size:100" json:"country"`
	City           string `gorm:"size:100" json:"city"`

	Features []Feature `gorm:"many2many:client_features;constraint:OnDelete:CASCADE" json:"features"`

	Relationships []ClientRelationship `gorm:"foreignKey:ClientID;constraint:OnDelete:CASCADE" json:"-"`
	Requirements  []ClientRequirement  `gorm:"foreignKey:ClientID;constraint:OnDelete:CASCADE" json:"-"`
	Agreements    []Agreement          `gorm:"foreignKey:ClientID;constraint:OnDelete:CASCADE" json:"-"`
}

// Product is a catalogue entry quoted on quotation lines.
type Product struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	SKU         string    `gorm:"size:64;uniqueIndex;not null" json:"sku"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	UnitPrice   float64   `gorm:"type:decimal(12,2);not null;default:0" json:"unit_price"`
}
