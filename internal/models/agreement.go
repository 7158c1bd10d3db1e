package models

import (
	"time"
)

// Agreement is a signed commitment with a client, optionally tied to the
// quotation it was negotiated from.
type Agreement struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ClientID    uint       `gorm:"index;not null" json:"client_id"`
	Client      *Client    `gorm:"foreignKey:ClientID" json:"-"`
	QuotationID *uint      `gorm:"index" json:"quotation_id"`
	Quotation   *Quotation `gorm:"foreignKey:QuotationID;constraint:OnDelete:SET NULL" json:"-"`

	// Storage keys of the uploaded documents; empty when absent.
	TCFile          string `gorm:"size:500" json:"-"`
	SignedAgreement string `gorm:"size:500" json:"-"`

	CreatedByID *uint `gorm:"index" json:"created_by"`
	CreatedBy   *User `gorm:"foreignKey:CreatedByID;constraint:OnDelete:SET NULL" json:"-"`

	PaymentTerms []PaymentTerm `gorm:"foreignKey:AgreementID;constraint:OnDelete:CASCADE" json:"-"`
}

// AgreementFile names one of the two document slots of an agreement.
type AgreementFile string

const (
	AgreementFileTC     AgreementFile = "tc_file"
	AgreementFileSigned AgreementFile = "signed_agreement"
)

func (f AgreementFile) Valid() bool {
	return f == AgreementFileTC || f == AgreementFileSigned
}

// Key returns the storage key held in the slot.
func (a *Agreement) Key(f AgreementFile) string {
	switch f {
	case AgreementFileTC:
		return a.TCFile
	case AgreementFileSigned:
		return a.SignedAgreement
	}
	return ""
}

// SetKey stores key in the slot and returns the previous key.
func (a *Agreement) SetKey(f AgreementFile, key string) string {
	var old string
	switch f {
	case AgreementFileTC:
		old, a.TCFile = a.TCFile, key
	case AgreementFileSigned:
		old, a.SignedAgreement = a.SignedAgreement, key
	}
	return old
}

// PaymentTerm is one dated installment of an agreement.
type PaymentTerm struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	AgreementID uint    `gorm:"index;not null" json:"-"`
	Date        Date    `gorm:"not null" json:"date"`
	Amount      float64 `gorm:"type:decimal(12,2);not null" json:"amount"`
	Position    int     `gorm:"not null;default:0" json:"-"`
}
