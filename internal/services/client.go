package services

import (
	"context"
	"strings"

	"github.com/diewo77/go-crm/httpx"
	"github.com/diewo77/go-crm/internal/blobstore"
	"github.com/diewo77/go-crm/internal/models"
	"github.com/diewo77/go-crm/validation"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ClientService manages the client registry.
type ClientService struct {
	db    *gorm.DB
	blobs blobstore.Store
	log   *zap.Logger
}

func NewClientService(db *gorm.DB, blobs blobstore.Store, log *zap.Logger) *ClientService {
	return &ClientService{db: db, blobs: blobs, log: log}
}

// ClientFilter narrows List. Search matches name or email.
type ClientFilter struct {
	Search  string
	Country string
}

// ClientInput is the body accepted when creating or updating a client.
// A nil FeatureIDs leaves the features untouched on update.
type ClientInput struct {
	Name           string `json:"name" validate:"required,max=255"`
	MobileNumber   string `json:"mobile_number" validate:"required,max=20"`
	WhatsappNumber string `json:"whatsapp_number" validate:"max=20"`
	Email          string `json:"email" validate:"omitempty,email,max=255"`
	Country        string `json:"country" validate:"max=100"`
	City           string `json:"city" validate:"max=100"`
	FeatureIDs     []uint `json:"feature_ids"`
}

func (in ClientInput) apply(c *models.Client) {
	c.Name = strings.TrimSpace(in.Name)
	c.MobileNumber = in.MobileNumber
	c.WhatsappNumber = in.WhatsappNumber
	c.Email = in.Email
	c.Country = in.Country
	c.City = in.City
}

func (s *ClientService) List(ctx context.Context, f ClientFilter) ([]models.Client, error) {
	q := s.db.WithContext(ctx).Preload("Features").Order("name")
	if f.Search != "" {
		like := "%" + strings.ToLower(f.Search) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", like, like)
	}
	if f.Country != "" {
		q = q.Where("country = ?", f.Country)
	}
	clients := []models.Client{}
	if err := q.Find(&clients).Error; err != nil {
		return nil, httpx.DBError(err, "client")
	}
	return clients, nil
}

func (s *ClientService) Get(ctx context.Context, id uint) (*models.Client, error) {
	var c models.Client
	err := s.db.WithContext(ctx).Preload("Features", func(db *gorm.DB) *gorm.DB { return db.Order("features.name") }).First(&c, id).Error
	if err != nil {
		return nil, httpx.DBError(err, "client")
	}
	return &c, nil
}

func (s *ClientService) Create(ctx context.Context, in ClientInput) (*models.Client, error) {
	if err := validation.Struct(&in).Err(); err != nil {
		return nil, err
	}
	var c models.Client
	in.apply(&c)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		features, err := resolveFeatures(tx, "feature_ids", in.FeatureIDs)
		if err != nil {
			return err
		}
		if err := tx.Omit("Features").Create(&c).Error; err != nil {
			return err
		}
		if len(features) > 0 {
			return tx.Model(&c).Association("Features").Append(features)
		}
		return nil
	})
	if err != nil {
		return nil, httpx.DBError(err, "client")
	}
	return s.Get(ctx, c.ID)
}

func (s *ClientService) Update(ctx context.Context, id uint, in ClientInput) (*models.Client, error) {
	if err := validation.Struct(&in).Err(); err != nil {
		return nil, err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c models.Client
		if err := tx.First(&c, id).Error; err != nil {
			return err
		}
		in.apply(&c)
		if err := tx.Omit("Features").Save(&c).Error; err != nil {
			return err
		}
		if in.FeatureIDs == nil {
			return nil
		}
		features, err := resolveFeatures(tx, "feature_ids", in.FeatureIDs)
		if err != nil {
			return err
		}
		return replaceAssociation(tx.Model(&c).Association("Features"), features)
	})
	if err != nil {
		return nil, httpx.DBError(err, "client")
	}
	return s.Get(ctx, id)
}

// Delete removes the client with everything that belongs to it. Stored
// images and agreement documents are deleted once the rows are gone.
func (s *ClientService) Delete(ctx context.Context, id uint) error {
	var keys []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c := models.Client{ID: id}
		if err := tx.First(&c).Error; err != nil {
			return err
		}

		var reqIDs []uint
		if err := tx.Model(&models.ClientRequirement{}).Where("client_id = ?", id).Pluck("id", &reqIDs).Error; err != nil {
			return err
		}
		if len(reqIDs) > 0 {
			var imageKeys []string
			if err := tx.Model(&models.RequirementImage{}).Where("requirement_id IN ?", reqIDs).Pluck("storage_key", &imageKeys).Error; err != nil {
				return err
			}
			keys = append(keys, imageKeys...)
			if err := tx.Where("requirement_id IN ?", reqIDs).Delete(&models.RequirementImage{}).Error; err != nil {
				return err
			}
			if err := tx.Exec("DELETE FROM requirement_features WHERE client_requirement_id IN ?", reqIDs).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", reqIDs).Delete(&models.ClientRequirement{}).Error; err != nil {
				return err
			}
		}

		var agreements []models.Agreement
		if err := tx.Where("client_id = ?", id).Find(&agreements).Error; err != nil {
			return err
		}
		if len(agreements) > 0 {
			ids := make([]uint, 0, len(agreements))
			for _, a := range agreements {
				ids = append(ids, a.ID)
				keys = append(keys, a.TCFile, a.SignedAgreement)
			}
			if err := tx.Where("agreement_id IN ?", ids).Delete(&models.PaymentTerm{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", ids).Delete(&models.Agreement{}).Error; err != nil {
				return err
			}
		}

		var quotationIDs []uint
		if err := tx.Model(&models.Quotation{}).Where("client_id = ?", id).Pluck("id", &quotationIDs).Error; err != nil {
			return err
		}
		if len(quotationIDs) > 0 {
			if err := tx.Model(&models.Agreement{}).Where("quotation_id IN ?", quotationIDs).Update("quotation_id", nil).Error; err != nil {
				return err
			}
			if err := tx.Where("quotation_id IN ?", quotationIDs).Delete(&models.QuotationItem{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", quotationIDs).Delete(&models.Quotation{}).Error; err != nil {
				return err
			}
		}

		if err := tx.Where("client_id = ?", id).Delete(&models.ClientRelationship{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&c).Association("Features").Clear(); err != nil {
			return err
		}
		return tx.Delete(&c).Error
	})
	if err != nil {
		return httpx.DBError(err, "client")
	}
	removeBlobs(ctx, s.blobs, s.log, keys)
	return nil
}

// replaceAssociation swaps the associated rows, clearing them for an empty set.
func replaceAssociation(assoc *gorm.Association, features []models.Feature) error {
	if len(features) == 0 {
		return assoc.Clear()
	}
	return assoc.Replace(features)
}
