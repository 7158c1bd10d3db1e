package services

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/diewo77/go-crm/httpx"
	"github.com/diewo77/go-crm/internal/models"
	"github.com/diewo77/go-crm/validation"
	"gorm.io/gorm"
)

// FeatureService manages the shared feature tags.
type FeatureService struct {
	db *gorm.DB
}

func NewFeatureService(db *gorm.DB) *FeatureService {
	return &FeatureService{db: db}
}

// FeatureInput is the body accepted when creating a feature.
type FeatureInput struct {
	Name string `json:"name" validate:"required,max=100"`
}

func (s *FeatureService) List(ctx context.Context) ([]models.Feature, error) {
	features := []models.Feature{}
	if err := s.db.WithContext(ctx).Order("name").Find(&features).Error; err != nil {
		return nil, httpx.DBError(err, "feature")
	}
	return features, nil
}

func (s *FeatureService) Get(ctx context.Context, id uint) (*models.Feature, error) {
	var f models.Feature
	if err := s.db.WithContext(ctx).First(&f, id).Error; err != nil {
		return nil, httpx.DBError(err, "feature")
	}
	return &f, nil
}

func (s *FeatureService) Create(ctx context.Context, in FeatureInput) (*models.Feature, error) {
	if err := validation.Struct(&in).Err(); err != nil {
		return nil, err
	}
	f := models.Feature{Name: in.Name}
	if err := s.db.WithContext(ctx).Create(&f).Error; err != nil {
		return nil, httpx.DBError(err, "feature")
	}
	return &f, nil
}

// Delete removes the feature and detaches it from clients and requirements.
func (s *FeatureService) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		f := models.Feature{ID: id}
		if err := tx.First(&f).Error; err != nil {
			return httpx.DBError(err, "feature")
		}
		if err := tx.Exec("DELETE FROM client_features WHERE feature_id = ?", id).Error; err != nil {
			return httpx.DBError(err, "feature")
		}
		if err := tx.Exec("DELETE FROM requirement_features WHERE feature_id = ?", id).Error; err != nil {
			return httpx.DBError(err, "feature")
		}
		return httpx.DBError(tx.Delete(&f).Error, "feature")
	})
}

// ProductService manages the product catalogue.
type ProductService struct {
	db *gorm.DB
}

func NewProductService(db *gorm.DB) *ProductService {
	return &ProductService{db: db}
}

// ProductInput is the body accepted when creating or updating a product.
type ProductInput struct {
	Name        string  `json:"name" validate:"required,max=255"`
	SKU         string  `json:"sku" validate:"required,max=64"`
	Description string  `json:"description"`
	UnitPrice   float64 `json:"unit_price" validate:"gte=0"`
}

func (s *ProductService) List(ctx context.Context) ([]models.Product, error) {
	products := []models.Product{}
	if err := s.db.WithContext(ctx).Order("name").Find(&products).Error; err != nil {
		return nil, httpx.DBError(err, "product")
	}
	return products, nil
}

func (s *ProductService) Get(ctx context.Context, id uint) (*models.Product, error) {
	var p models.Product
	if err := s.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, httpx.DBError(err, "product")
	}
	return &p, nil
}

func (s *ProductService) Create(ctx context.Context, in ProductInput) (*models.Product, error) {
	if err := validation.Struct(&in).Err(); err != nil {
		return nil, err
	}
	p := models.Product{Name: in.Name, SKU: in.SKU, Description: in.Description, UnitPrice: models.RoundMoney(in.UnitPrice)}
	if err := s.db.WithContext(ctx).Create(&p).Error; err != nil {
		return nil, httpx.DBError(err, "product")
	}
	return &p, nil
}

func (s *ProductService) Update(ctx context.Context, id uint, in ProductInput) (*models.Product, error) {
	if err := validation.Struct(&in).Err(); err != nil {
		return nil, err
	}
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Name, p.SKU, p.Description, p.UnitPrice = in.Name, in.SKU, in.Description, models.RoundMoney(in.UnitPrice)
	if err := s.db.WithContext(ctx).Save(p).Error; err != nil {
		return nil, httpx.DBError(err, "product")
	}
	return p, nil
}

// Delete refuses to remove a product that is still quoted.
func (s *ProductService) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p := models.Product{ID: id}
		if err := tx.First(&p).Error; err != nil {
			return httpx.DBError(err, "product")
		}
		var used int64
		if err := tx.Model(&models.QuotationItem{}).Where("product_id = ?", id).Count(&used).Error; err != nil {
			return httpx.DBError(err, "product")
		}
		if used > 0 {
			return httperror.NewHTTPError(http.StatusConflict, "product is used by quotation items")
		}
		return httpx.DBError(tx.Delete(&p).Error, "product")
	})
}
