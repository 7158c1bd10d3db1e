package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/diewo77/go-crm/httpx"
	"github.com/diewo77/go-crm/internal/db"
	"github.com/diewo77/go-crm/internal/models"
	"github.com/diewo77/go-crm/validation"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ProfileInvalidator drops cached authorization data for a user.
type ProfileInvalidator interface {
	Invalidate(userID uint)
}

// UserService manages staff accounts and credentials.
type UserService struct {
	db    *gorm.DB
	cache ProfileInvalidator
}

// NewUserService builds the service. cache may be nil.
func NewUserService(db *gorm.DB, cache ProfileInvalidator) *UserService {
	return &UserService{db: db, cache: cache}
}

// SignupInput is the body of the signup endpoint.
type SignupInput struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Name     string `json:"name" validate:"max=255"`
}

// LoginInput is the body of the login endpoint.
type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AssignProfileInput is the body of the profile assignment endpoint.
// A nil ProfileID removes the profile.
type AssignProfileInput struct {
	ProfileID *uint `json:"profile_id"`
}

var errInvalidCredentials = httperror.NewHTTPError(http.StatusUnauthorized, "invalid credentials")

// Signup creates a staff user with the viewer profile.
func (s *UserService) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validation.Struct(&in).Err(); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := models.User{
		Email:    in.Email,
		Name:     strings.TrimSpace(in.Name),
		Password: string(hash),
		IsStaff:  true,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var viewer models.Profile
		if err := tx.Where("name = ?", db.ProfileViewer).First(&viewer).Error; err == nil {
			u.ProfileID = &viewer.ID
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return tx.Omit("Profile").Create(&u).Error
	})
	if err != nil {
		return nil, httpx.DBError(err, "user")
	}
	return &u, nil
}

// Authenticate checks the credentials and returns the matching user.
func (s *UserService) Authenticate(ctx context.Context, in LoginInput) (*models.User, error) {
	if err := validation.Struct(&in).Err(); err != nil {
		return nil, err
	}
	var u models.User
	err := s.db.WithContext(ctx).Preload("Profile").Where("email = ?", strings.ToLower(strings.TrimSpace(in.Email))).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(in.Password)) != nil {
		return nil, errInvalidCredentials
	}
	return &u, nil
}

// Exists reports whether the user id still resolves. It backs the session
// verifier, so lookup errors count as absent.
func (s *UserService) Exists(ctx context.Context, id uint) bool {
	ok, err := exists(s.db.WithContext(ctx), &models.User{}, id)
	return err == nil && ok
}

func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	if err := s.db.WithContext(ctx).Preload("Profile").Order("email").Find(&users).Error; err != nil {
		return nil, httpx.DBError(err, "user")
	}
	return users, nil
}

func (s *UserService) Get(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Preload("Profile").First(&u, id).Error; err != nil {
		return nil, httpx.DBError(err, "user")
	}
	return &u, nil
}

// AssignProfile sets the user's profile and drops the cached permissions.
func (s *UserService) AssignProfile(ctx context.Context, id uint, in AssignProfileInput) (*models.User, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if ok, err := exists(tx, &models.User{}, id); err != nil || !ok {
			if err == nil {
				err = gorm.ErrRecordNotFound
			}
			return err
		}
		if in.ProfileID != nil {
			if err := requireRow(tx, &models.Profile{}, *in.ProfileID, "profile_id"); err != nil {
				return err
			}
		}
		return tx.Model(&models.User{}).Where("id = ?", id).Update("profile_id", in.ProfileID).Error
	})
	if err != nil {
		return nil, httpx.DBError(err, "user")
	}
	if s.cache != nil {
		s.cache.Invalidate(id)
	}
	return s.Get(ctx, id)
}

// Delete removes the user. References from demo requests, quotations and
// agreements are cleared in the same transaction.
func (s *UserService) Delete(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		u := models.User{ID: id}
		if err := tx.First(&u).Error; err != nil {
			return err
		}
		clears := []struct {
			model  any
			column string
		}{
			{&models.ClientRequest{}, "assigned_staff_id"},
			{&models.Quotation{}, "assigned_to_id"},
			{&models.Quotation{}, "created_by_id"},
			{&models.Agreement{}, "created_by_id"},
		}
		for _, c := range clears {
			if err := tx.Model(c.model).Where(c.column+" = ?", id).Update(c.column, nil).Error; err != nil {
				return fmt.Errorf("clear %s: %w", c.column, err)
			}
		}
		return tx.Delete(&u).Error
	})
	if err != nil {
		return httpx.DBError(err, "user")
	}
	if s.cache != nil {
		s.cache.Invalidate(id)
	}
	return nil
}
