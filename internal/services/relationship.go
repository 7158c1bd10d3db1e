package services

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/diewo77/go-crm/httpx"
	"github.com/diewo77/go-crm/internal/models"
	"github.com/diewo77/go-crm/validation"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RelationshipService manages client relationship records.
type RelationshipService struct {
	db *gorm.DB
}

func NewRelationshipService(db *gorm.DB) *RelationshipService {
	return &RelationshipService{db: db}
}

// RelationshipFilter narrows List.
type RelationshipFilter struct {
	ClientID *uint
	Status   string
	CareOf   string
}

// RelationshipInput is the body accepted when creating or updating a
// relationship. Products must be a JSON array when present.
type RelationshipInput struct {
	ClientID     uint                      `json:"client_id" validate:"required"`
	Products     json.RawMessage           `json:"products"`
	ReminderDate *models.Date              `json:"reminder_date"`
	MeetingDate  *models.Date              `json:"meeting_date"`
	Status       models.RelationshipStatus `json:"status"`
	CareOf       models.CareOf             `json:"care_of"`
	ShortNote    string                    `json:"short_note" validate:"max=255"`
	Remarks      string                    `json:"remarks"`
}

func (in *RelationshipInput) validate() error {
	v := validation.Struct(in)
	if in.Status != "" && !in.Status.Valid() {
		v.Add("status", "oneof")
	}
	if in.CareOf != "" && !in.CareOf.Valid() {
		v.Add("care_of", "oneof")
	}
	if _, ok := productList(in.Products); !ok {
		v.Add("products", "array")
	}
	return v.Err()
}

// productList normalizes the products column: absent or null is an empty
// array, anything but an array is rejected.
func productList(raw json.RawMessage) (datatypes.JSON, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return datatypes.JSON("[]"), true
	}
	var items []json.RawMessage
	if trimmed[0] != '[' || json.Unmarshal(trimmed, &items) != nil {
		return nil, false
	}
	return datatypes.JSON(trimmed), true
}

func (s *RelationshipService) List(ctx context.Context, f RelationshipFilter) ([]models.ClientRelationship, error) {
	q := s.db.WithContext(ctx).Preload("Client").Order("id DESC")
	if f.ClientID != nil {
		q = q.Where("client_id = ?", *f.ClientID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.CareOf != "" {
		q = q.Where("care_of = ?", f.CareOf)
	}
	out := []models.ClientRelationship{}
	if err := q.Find(&out).Error; err != nil {
		return nil, httpx.DBError(err, "relationship")
	}
	return out, nil
}

func (s *RelationshipService) Get(ctx context.Context, id uint) (*models.ClientRelationship, error) {
	var r models.ClientRelationship
	if err := s.db.WithContext(ctx).Preload("Client").First(&r, id).Error; err != nil {
		return nil, httpx.DBError(err, "relationship")
	}
	return &r, nil
}

func (s *RelationshipService) Create(ctx context.Context, in RelationshipInput) (*models.ClientRelationship, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	r := models.ClientRelationship{Status: models.RelationshipStatusPending, CareOf: models.CareOfNasscript}
	applyRelationship(&r, in)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireRow(tx, &models.Client{}, in.ClientID, "client_id"); err != nil {
			return err
		}
		return tx.Omit("Client").Create(&r).Error
	})
	if err != nil {
		return nil, httpx.DBError(err, "relationship")
	}
	return s.Get(ctx, r.ID)
}

func (s *RelationshipService) Update(ctx context.Context, id uint, in RelationshipInput) (*models.ClientRelationship, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var r models.ClientRelationship
		if err := tx.First(&r, id).Error; err != nil {
			return err
		}
		if in.ClientID != r.ClientID {
			if err := requireRow(tx, &models.Client{}, in.ClientID, "client_id"); err != nil {
				return err
			}
		}
		applyRelationship(&r, in)
		return tx.Omit("Client").Save(&r).Error
	})
	if err != nil {
		return nil, httpx.DBError(err, "relationship")
	}
	return s.Get(ctx, id)
}

func applyRelationship(r *models.ClientRelationship, in RelationshipInput) {
	r.ClientID = in.ClientID
	r.Products, _ = productList(in.Products)
	r.ReminderDate = in.ReminderDate
	r.MeetingDate = in.MeetingDate
	if in.Status != "" {
		r.Status = in.Status
	}
	if in.CareOf != "" {
		r.CareOf = in.CareOf
	}
	r.ShortNote = in.ShortNote
	r.Remarks = in.Remarks
}

func (s *RelationshipService) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.ClientRelationship{}, id)
	if res.Error != nil {
		return httpx.DBError(res.Error, "relationship")
	}
	if res.RowsAffected == 0 {
		return httpx.NotFound("relationship")
	}
	return nil
}
