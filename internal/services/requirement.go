package services

import (
	"context"
	"fmt"
	"io"

	"github.com/diewo77/go-crm/httpx"
	"github.com/diewo77/go-crm/internal/blobstore"
	"github.com/diewo77/go-crm/internal/metrics"
	"github.com/diewo77/go-crm/internal/models"
	"github.com/diewo77/go-crm/internal/payload"
	"github.com/diewo77/go-crm/validation"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const requirementImagePrefix = "requirements"

// RequirementService captures client requirements and their image galleries.
type RequirementService struct {
	db    *gorm.DB
	blobs blobstore.Store
	log   *zap.Logger
}

func NewRequirementService(db *gorm.DB, blobs blobstore.Store, log *zap.Logger) *RequirementService {
	return &RequirementService{db: db, blobs: blobs, log: log}
}

// RequirementFilter narrows List.
type RequirementFilter struct {
	ClientID *uint
	Status   string
}

// RequirementInput carries a create or update. PredefinedFeatures and
// CustomFeatures replace the stored sets. ExistingImages lists the image ids
// to keep on update; Uploads are always added.
type RequirementInput struct {
	ClientID               uint                     `validate:"required" json:"client_id"`
	FileNumber             string                   `validate:"max=100" json:"file_number"`
	ColorTheme             string                   `validate:"max=100" json:"color_theme"`
	Layout                 string                   `validate:"max=255" json:"layout"`
	AdditionalRequirements string                   `json:"additional_requirements"`
	Status                 models.RequirementStatus `json:"status"`
	PredefinedFeatures     []uint                   `json:"predefined_features"`
	CustomFeatures         payload.CustomFeatures   `json:"-"`
	ExistingImages         []uint                   `json:"existing_images"`
	Uploads                []Upload                 `json:"-"`
}

func (in *RequirementInput) validate() error {
	v := validation.Struct(in)
	if in.Status != "" && !in.Status.Valid() {
		v.Add("status", "oneof")
	}
	return v.Err()
}

func (in RequirementInput) apply(r *models.ClientRequirement) error {
	r.ClientID = in.ClientID
	r.FileNumber = in.FileNumber
	r.ColorTheme = in.ColorTheme
	r.Layout = in.Layout
	r.AdditionalRequirements = in.AdditionalRequirements
	if in.Status != "" {
		r.Status = in.Status
	}
	return r.SetCustomFeatures(in.CustomFeatures.Names())
}

func (s *RequirementService) preload(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Client").
		Preload("PredefinedFeatures", func(db *gorm.DB) *gorm.DB { return db.Order("features.name") }).
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("requirement_images.id") })
}

func (s *RequirementService) List(ctx context.Context, f RequirementFilter) ([]models.ClientRequirement, error) {
	q := s.preload(s.db.WithContext(ctx)).Order("id DESC")
	if f.ClientID != nil {
		q = q.Where("client_id = ?", *f.ClientID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	out := []models.ClientRequirement{}
	if err := q.Find(&out).Error; err != nil {
		return nil, httpx.DBError(err, "requirement")
	}
	return out, nil
}

func (s *RequirementService) Get(ctx context.Context, id uint) (*models.ClientRequirement, error) {
	var r models.ClientRequirement
	if err := s.preload(s.db.WithContext(ctx)).First(&r, id).Error; err != nil {
		return nil, httpx.DBError(err, "requirement")
	}
	return &r, nil
}

// Create stores the requirement, its feature links and uploaded images.
func (s *RequirementService) Create(ctx context.Context, in RequirementInput) (*models.ClientRequirement, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	r := models.ClientRequirement{Status: models.RequirementStatusPending}
	if err := in.apply(&r); err != nil {
		return nil, err
	}
	saved, err := saveUploads(ctx, s.blobs, s.log, requirementImagePrefix, in.Uploads, blobstore.ImageTypes...)
	if err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireRow(tx, &models.Client{}, in.ClientID, "client_id"); err != nil {
			return err
		}
		features, err := resolveFeatures(tx, "predefined_features", in.PredefinedFeatures)
		if err != nil {
			return err
		}
		if err := tx.Omit("Client", "PredefinedFeatures", "Images").Create(&r).Error; err != nil {
			return err
		}
		if len(features) > 0 {
			if err := tx.Model(&r).Association("PredefinedFeatures").Append(features); err != nil {
				return err
			}
		}
		return addImages(tx, r.ID, saved)
	})
	if err != nil {
		removeBlobs(ctx, s.blobs, s.log, objectKeys(saved))
		return nil, httpx.DBError(err, "requirement")
	}
	metrics.RequirementImagesChanged.WithLabelValues("added").Add(float64(len(saved)))
	return s.Get(ctx, r.ID)
}

// Update rewrites the requirement. Images not listed in ExistingImages are
// removed, new uploads are appended and the feature sets are replaced.
func (s *RequirementService) Update(ctx context.Context, id uint, in RequirementInput) (*models.ClientRequirement, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	saved, err := saveUploads(ctx, s.blobs, s.log, requirementImagePrefix, in.Uploads, blobstore.ImageTypes...)
	if err != nil {
		return nil, err
	}
	var removed []models.RequirementImage
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var r models.ClientRequirement
		if err := tx.Preload("Images").First(&r, id).Error; err != nil {
			return err
		}
		if in.ClientID != r.ClientID {
			if err := requireRow(tx, &models.Client{}, in.ClientID, "client_id"); err != nil {
				return err
			}
		}
		features, err := resolveFeatures(tx, "predefined_features", in.PredefinedFeatures)
		if err != nil {
			return err
		}
		if err := in.apply(&r); err != nil {
			return err
		}
		current := r.Images
		r.Images = nil
		if err := tx.Omit("Client", "PredefinedFeatures", "Images").Save(&r).Error; err != nil {
			return err
		}
		if err := replaceAssociation(tx.Model(&r).Association("PredefinedFeatures"), features); err != nil {
			return err
		}

		removed = imagesToRemove(current, in.ExistingImages)
		if len(removed) > 0 {
			ids := make([]uint, 0, len(removed))
			for _, img := range removed {
				ids = append(ids, img.ID)
			}
			if err := tx.Where("requirement_id = ? AND id IN ?", r.ID, ids).Delete(&models.RequirementImage{}).Error; err != nil {
				return err
			}
		}
		return addImages(tx, r.ID, saved)
	})
	if err != nil {
		removeBlobs(ctx, s.blobs, s.log, objectKeys(saved))
		return nil, httpx.DBError(err, "requirement")
	}

	keys := make([]string, 0, len(removed))
	for _, img := range removed {
		keys = append(keys, img.StorageKey)
	}
	removeBlobs(ctx, s.blobs, s.log, keys)
	metrics.RequirementImagesChanged.WithLabelValues("added").Add(float64(len(saved)))
	metrics.RequirementImagesChanged.WithLabelValues("removed").Add(float64(len(removed)))
	return s.Get(ctx, id)
}

// imagesToRemove returns the current images whose id is not retained.
func imagesToRemove(current []models.RequirementImage, retain []uint) []models.RequirementImage {
	keep := make(map[uint]bool, len(retain))
	for _, id := range retain {
		keep[id] = true
	}
	var out []models.RequirementImage
	for _, img := range current {
		if !keep[img.ID] {
			out = append(out, img)
		}
	}
	return out
}

func addImages(tx *gorm.DB, requirementID uint, objs []blobstore.Object) error {
	if len(objs) == 0 {
		return nil
	}
	images := make([]models.RequirementImage, 0, len(objs))
	for _, o := range objs {
		images = append(images, models.RequirementImage{RequirementID: requirementID, StorageKey: o.Key, ContentType: o.ContentType})
	}
	if err := tx.Create(&images).Error; err != nil {
		return fmt.Errorf("insert images: %w", err)
	}
	return nil
}

// Delete removes the requirement with its images and feature links.
func (s *RequirementService) Delete(ctx context.Context, id uint) error {
	var images []models.RequirementImage
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := models.ClientRequirement{ID: id}
		if err := tx.First(&r).Error; err != nil {
			return err
		}
		if err := tx.Where("requirement_id = ?", id).Find(&images).Error; err != nil {
			return err
		}
		if err := tx.Where("requirement_id = ?", id).Delete(&models.RequirementImage{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&r).Association("PredefinedFeatures").Clear(); err != nil {
			return err
		}
		return tx.Delete(&r).Error
	})
	if err != nil {
		return httpx.DBError(err, "requirement")
	}
	keys := make([]string, 0, len(images))
	for _, img := range images {
		keys = append(keys, img.StorageKey)
	}
	removeBlobs(ctx, s.blobs, s.log, keys)
	metrics.RequirementImagesChanged.WithLabelValues("removed").Add(float64(len(images)))
	return nil
}

// OpenImage streams one image of the requirement.
func (s *RequirementService) OpenImage(ctx context.Context, requirementID, imageID uint) (io.ReadCloser, string, error) {
	var img models.RequirementImage
	err := s.db.WithContext(ctx).Where("id = ? AND requirement_id = ?", imageID, requirementID).First(&img).Error
	if err != nil {
		return nil, "", httpx.DBError(err, "image")
	}
	rc, ctype, err := openBlob(ctx, s.blobs, img.StorageKey, "image")
	if err != nil {
		return nil, "", err
	}
	if img.ContentType != "" {
		ctype = img.ContentType
	}
	return rc, ctype, nil
}
