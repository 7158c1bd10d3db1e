package models

import (
	"time"
)

// Profile represents a user authorization profile that groups permissions.
// A user is assigned to one profile, inheriting all its permissions.
type Profile struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Name        string    `gorm:"uniqueIndex;size:100;not null" json:"name"`
	Description string    `gorm:"size:500" json:"description,omitempty"`
	IsSystem    bool      `gorm:"default:false" json:"is_system"`
	// Many-to-many relationship via profile_permissions join table.
	Permissions []Permission `gorm:"many2many:profile_permissions;" json:"permissions,omitempty"`
}

// Permission represents a single action allowed on a resource type,
// e.g. "quotation:create" or "client:*".
type Permission struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	ResourceType string    `gorm:"size:50;not null;uniqueIndex:idx_perm_resource_action" json:"resource_type"`
	Action       string    `gorm:"size:50;not null;uniqueIndex:idx_perm_resource_action" json:"action"`
	Description  string    `gorm:"size:200" json:"description,omitempty"`
}

// Code returns the permission in "resource:action" format for matching.
func (p Permission) Code() string {
	return p.ResourceType + ":" + p.Action
}
