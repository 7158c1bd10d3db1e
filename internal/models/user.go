package models

import (
	"time"
)

// User is an authenticated staff member. Demo requests, quotations and
// agreements reference users as assignee or author.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Email     string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Name      string    `gorm:"size:255" json:"name,omitempty"`
	Password  string    `gorm:"size:255;not null" json:"-"` // bcrypt hash, never exposed
	IsStaff   bool      `gorm:"not null" json:"is_staff"`
	// ProfileID links the user to an authorization profile.
	// A nil value means the user has no profile assigned (no access).
	ProfileID *uint    `gorm:"index" json:"profile_id,omitempty"`
	Profile   *Profile `gorm:"foreignKey:ProfileID" json:"profile,omitempty"`
}

// DisplayName prefers the name and falls back to the email address.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// UserRef is the compact user representation embedded in other resources.
type UserRef struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Ref returns the compact representation, or nil for a nil user.
func (u *User) Ref() *UserRef {
	if u == nil {
		return nil
	}
	return &UserRef{ID: u.ID, Name: u.DisplayName(), Email: u.Email}
}
