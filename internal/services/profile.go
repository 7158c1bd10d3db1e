package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/diewo77/go-crm/httpx"
	"github.com/diewo77/go-crm/internal/models"
	"github.com/diewo77/go-crm/validation"
	"gorm.io/gorm"
)

// CacheFlusher empties cached authorization data for every user.
type CacheFlusher interface {
	InvalidateAll()
}

// ProfileService administers authorization profiles and their permissions.
type ProfileService struct {
	db    *gorm.DB
	cache CacheFlusher
}

func NewProfileService(db *gorm.DB, cache CacheFlusher) *ProfileService {
	return &ProfileService{db: db, cache: cache}
}

type ProfileInput struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
}

// PermissionsInput lists permission ids to grant. It replaces the current set.
type PermissionsInput struct {
	PermissionIDs []uint `json:"permission_ids"`
}

func (s *ProfileService) List(ctx context.Context) ([]models.Profile, error) {
	profiles := []models.Profile{}
	err := s.db.WithContext(ctx).
		Preload("Permissions", func(db *gorm.DB) *gorm.DB { return db.Order("resource_type, action") }).
		Order("name").Find(&profiles).Error
	if err != nil {
		return nil, httpx.DBError(err, "profile")
	}
	return profiles, nil
}

func (s *ProfileService) Get(ctx context.Context, id uint) (*models.Profile, error) {
	var p models.Profile
	err := s.db.WithContext(ctx).
		Preload("Permissions", func(db *gorm.DB) *gorm.DB { return db.Order("resource_type, action") }).
		First(&p, id).Error
	if err != nil {
		return nil, httpx.DBError(err, "profile")
	}
	return &p, nil
}

// Permissions returns every known permission ordered by resource.
func (s *ProfileService) Permissions(ctx context.Context) ([]models.Permission, error) {
	perms := []models.Permission{}
	if err := s.db.WithContext(ctx).Order("resource_type, action").Find(&perms).Error; err != nil {
		return nil, httpx.DBError(err, "permission")
	}
	return perms, nil
}

func (s *ProfileService) Create(ctx context.Context, in ProfileInput) (*models.Profile, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validation.Struct(&in).Err(); err != nil {
		return nil, err
	}
	p := models.Profile{Name: in.Name, Description: strings.TrimSpace(in.Description)}
	if err := s.db.WithContext(ctx).Create(&p).Error; err != nil {
		return nil, httpx.DBError(err, "profile")
	}
	return &p, nil
}

// Delete removes a custom profile. System profiles and profiles still
// assigned to users are kept.
func (s *ProfileService) Delete(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Profile
		if err := tx.First(&p, id).Error; err != nil {
			return err
		}
		if p.IsSystem {
			return httperror.NewHTTPError(http.StatusForbidden, "cannot delete a system profile")
		}
		var users int64
		if err := tx.Model(&models.User{}).Where("profile_id = ?", id).Count(&users).Error; err != nil {
			return fmt.Errorf("count users: %w", err)
		}
		if users > 0 {
			return httperror.NewHTTPError(http.StatusConflict, "profile is assigned to users")
		}
		if err := tx.Model(&p).Association("Permissions").Clear(); err != nil {
			return err
		}
		return tx.Delete(&p).Error
	})
	return httpx.DBError(err, "profile")
}

// SetPermissions replaces the permissions of a profile and flushes the
// authorization cache, since any number of users may hold the profile.
func (s *ProfileService) SetPermissions(ctx context.Context, id uint, in PermissionsInput) (*models.Profile, error) {
	ids := uniqueIDs(in.PermissionIDs)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p := models.Profile{ID: id}
		if err := tx.First(&p).Error; err != nil {
			return err
		}
		perms := []models.Permission{}
		if len(ids) > 0 {
			if err := tx.Where("id IN ?", ids).Find(&perms).Error; err != nil {
				return err
			}
		}
		if len(perms) != len(ids) {
			found := make(map[uint]bool, len(perms))
			for _, perm := range perms {
				found[perm.ID] = true
			}
			var missing []uint
			for _, pid := range ids {
				if !found[pid] {
					missing = append(missing, pid)
				}
			}
			return invalidField("permission_ids", fmt.Sprintf("unknown permission ids: %v", missing))
		}
		assoc := tx.Model(&p).Association("Permissions")
		if len(perms) == 0 {
			return assoc.Clear()
		}
		return assoc.Replace(perms)
	})
	if err != nil {
		return nil, httpx.DBError(err, "profile")
	}
	if s.cache != nil {
		s.cache.InvalidateAll()
	}
	return s.Get(ctx, id)
}
