package models

import (
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"
)

// QuotationStatus represents the status of a quotation.
type QuotationStatus string

const (
	QuotationStatusDraft    QuotationStatus = "draft"
	QuotationStatusSent     QuotationStatus = "sent"
	QuotationStatusAccepted QuotationStatus = "accepted"
	QuotationStatusRejected QuotationStatus = "rejected"
	QuotationStatusExpired  QuotationStatus = "expired"
)

func (s QuotationStatus) Valid() bool {
	switch s {
	case QuotationStatusDraft, QuotationStatusSent, QuotationStatusAccepted, QuotationStatusRejected, QuotationStatusExpired:
		return true
	}
	return false
}

// Quotation is a versioned, itemized price offer to a client.
// Subtotal, DiscountAmount and TotalAmount are derived from Items and are
// only ever written by the totals recompute.
type Quotation struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	QuotationNumber string          `gorm:"size:50;uniqueIndex;not null" json:"quotation_number"`
	Version         int             `gorm:"not null;default:1" json:"version"`
	Status          QuotationStatus `gorm:"size:20;not null;default:'draft';index" json:"status"`
	ValidUntil      *Date           `json:"valid_until"`

	ClientID        uint    `gorm:"index;not null" json:"client"`
	Client          *Client `gorm:"foreignKey:ClientID;constraint:OnDelete:CASCADE" json:"-"`
	ClientReference string  `gorm:"size:100" json:"client_reference,omitempty"`

	AssignedToID *uint `gorm:"index" json:"assigned_to"`
	AssignedTo   *User `gorm:"foreignKey:AssignedToID;constraint:OnDelete:SET NULL" json:"-"`
	CreatedByID  *uint `gorm:"index" json:"created_by"`
	CreatedBy    *User `gorm:"foreignKey:CreatedByID;constraint:OnDelete:SET NULL" json:"-"`

	Subtotal       float64 `gorm:"type:decimal(12,2);not null;default:0" json:"subtotal"`
	DiscountAmount float64 `gorm:"type:decimal(12,2);not null;default:0" json:"discount_amount"`
	TotalAmount    float64 `gorm:"type:decimal(12,2);not null;default:0" json:"total_amount"`

	Notes              string `gorm:"type:text" json:"notes,omitempty"`
	TermsAndConditions string `gorm:"type:text" json:"terms_and_conditions,omitempty"`
	RequiresApproval   bool   `gorm:"not null;default:false" json:"requires_approval"`

	Items []QuotationItem `gorm:"foreignKey:QuotationID;constraint:OnDelete:CASCADE" json:"items"`
}

// QuotationItem is one priced line of a quotation.
type QuotationItem struct {
	ID          uint     `gorm:"primaryKey" json:"id"`
	QuotationID uint     `gorm:"index;not null" json:"-"`
	ProductID   uint     `gorm:"index;not null" json:"product"`
	Product     *Product `gorm:"foreignKey:ProductID;constraint:OnDelete:RESTRICT" json:"-"`

	Description        string  `gorm:"size:500" json:"description,omitempty"`
	Quantity           float64 `gorm:"type:decimal(12,3);not null;default:1" json:"quantity"`
	UnitPrice          float64 `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	DiscountPercentage float64 `gorm:"type:decimal(5,2);not null;default:0" json:"discount_percentage"`
	TaxPercentage      float64 `gorm:"type:decimal(5,2);not null;default:0" json:"tax_percentage"`
	Subtotal           float64 `gorm:"type:decimal(12,2);not null;default:0" json:"subtotal"`

	// Position keeps lines in the order they were submitted.
	Position int `gorm:"not null;default:0" json:"-"`
}

// Gross returns quantity × unit price.
func (item *QuotationItem) Gross() float64 {
	return item.Quantity * item.UnitPrice
}

// DiscountAmount returns the line discount.
func (item *QuotationItem) DiscountAmount() float64 {
	return item.Gross() * item.DiscountPercentage / 100
}

// TaxAmount returns the tax on the discounted line amount.
func (item *QuotationItem) TaxAmount() float64 {
	return (item.Gross() - item.DiscountAmount()) * item.TaxPercentage / 100
}

// LineTotal returns the discounted, taxed line amount.
func (item *QuotationItem) LineTotal() float64 {
	return item.Gross() - item.DiscountAmount() + item.TaxAmount()
}

// RoundMoney rounds half away from zero to cents.
func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

// GenerateQuotationNumber returns the next number for the year.
// Format: QT-YYYY-NNNN (e.g., QT-2025-0001)
func GenerateQuotationNumber(db *gorm.DB, year int) (string, error) {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)
	var count int64
	err := db.Model(&Quotation{}).
		Where("created_at >= ? AND created_at < ?", start, end).
		Count(&count).Error
	if err != nil {
		return "", err
	}
	for n := count + 1; ; n++ {
		candidate := fmt.Sprintf("QT-%d-%04d", year, n)
		var taken int64
		if err := db.Model(&Quotation{}).Where("quotation_number = ?", candidate).Count(&taken).Error; err != nil {
			return "", err
		}
		if taken == 0 {
			return candidate, nil
		}
	}
}
