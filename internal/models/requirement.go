package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// RequirementStatus tracks progress on a captured requirement.
type RequirementStatus string

const (
	RequirementStatusPending    RequirementStatus = "pending"
	RequirementStatusInProgress RequirementStatus = "in_progress"
	RequirementStatusCompleted  RequirementStatus = "completed"
)

func (s RequirementStatus) Valid() bool {
	switch s {
	case RequirementStatusPending, RequirementStatusInProgress, RequirementStatusCompleted:
		return true
	}
	return false
}

// ClientRequirement is a client's project specification.
type ClientRequirement struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ClientID uint    `gorm:"index;not null" json:"client_id"`
	Client   *Client `gorm:"foreignKey:ClientID" json:"-"`

	FileNumber             string            `gorm:"size:100" json:"file_number,omitempty"`
	ColorTheme             string            `gorm:"size:100" json:"color_theme,omitempty"`
	Layout                 string            `gorm:"size:255" json:"layout,omitempty"`
	AdditionalRequirements string            `gorm:"type:text" json:"additional_requirements,omitempty"`
	Status                 RequirementStatus `gorm:"size:20;not null;default:'pending'" json:"status"`

	PredefinedFeatures []Feature `gorm:"many2many:requirement_features;constraint:OnDelete:CASCADE" json:"-"`
	// CustomFeatures holds a JSON array of free-text feature names.
	CustomFeatures datatypes.JSON `json:"-"`

	Images []RequirementImage `gorm:"foreignKey:RequirementID;constraint:OnDelete:CASCADE" json:"-"`
}

// CustomFeatureList decodes the stored custom features.
// Anything that is not a JSON array of strings reads as an empty list.
func (r *ClientRequirement) CustomFeatureList() []string {
	out := []string{}
	if len(r.CustomFeatures) == 0 {
		return out
	}
	if err := json.Unmarshal(r.CustomFeatures, &out); err != nil || out == nil {
		return []string{}
	}
	return out
}

// SetCustomFeatures encodes names into the CustomFeatures column.
func (r *ClientRequirement) SetCustomFeatures(names []string) error {
	if names == nil {
		names = []string{}
	}
	b, err := json.Marshal(names)
	if err != nil {
		return fmt.Errorf("encode custom features: %w", err)
	}
	r.CustomFeatures = datatypes.JSON(b)
	return nil
}

// RequirementImage is one attachment in a requirement's gallery.
// StorageKey points into the blob store.
type RequirementImage struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	RequirementID uint      `gorm:"index;not null" json:"requirement_id"`
	StorageKey    string    `gorm:"size:500;not null" json:"-"`
	ContentType   string    `gorm:"size:100" json:"content_type"`
}
