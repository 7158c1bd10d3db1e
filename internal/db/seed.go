package db

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/diewo77/go-crm/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

//go:embed seed.yaml
var seedYAML []byte

// Default profile names.
const (
	ProfileAdmin  = "admin"
	ProfileSales  = "sales"
	ProfileViewer = "viewer"
)

type seedData struct {
	Resources []struct {
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
	} `yaml:"resources"`
	Actions  []string `yaml:"actions"`
	Profiles []struct {
		Name        string   `yaml:"name"`
		Description string   `yaml:"description"`
		Permissions []string `yaml:"permissions"`
	} `yaml:"profiles"`
	Features []string `yaml:"features"`
}

// SeedOptions controls optional seeding steps.
type SeedOptions struct {
	// AdminEmail and AdminPassword create a bootstrap admin when both are set.
	AdminEmail    string
	AdminPassword string
}

func loadSeedData() (*seedData, error) {
	var data seedData
	if err := yaml.Unmarshal(seedYAML, &data); err != nil {
		return nil, fmt.Errorf("parse seed data: %w", err)
	}
	return &data, nil
}

// Seed inserts permissions, profiles, features and the optional admin user.
// It is idempotent.
func Seed(conn *gorm.DB, opts SeedOptions) error {
	data, err := loadSeedData()
	if err != nil {
		return err
	}
	return conn.Transaction(func(tx *gorm.DB) error {
		if err := seedPermissions(tx, data); err != nil {
			return err
		}
		if err := seedProfiles(tx, data); err != nil {
			return err
		}
		if err := seedFeatures(tx, data); err != nil {
			return err
		}
		if opts.AdminEmail != "" && opts.AdminPassword != "" {
			return seedAdmin(tx, opts.AdminEmail, opts.AdminPassword)
		}
		return nil
	})
}

func seedPermissions(tx *gorm.DB, data *seedData) error {
	perms := []models.Permission{{ResourceType: "*", Action: "*", Description: "Super admin"}}
	for _, r := range data.Resources {
		perms = append(perms, models.Permission{ResourceType: r.Name, Action: "*", Description: r.Description + ": all actions"})
		for _, a := range data.Actions {
			perms = append(perms, models.Permission{ResourceType: r.Name, Action: a, Description: r.Description + ": " + a})
		}
	}
	for _, p := range perms {
		perm := p
		if err := tx.Where("resource_type = ? AND action = ?", p.ResourceType, p.Action).
			FirstOrCreate(&perm).Error; err != nil {
			return fmt.Errorf("seed permission %s: %w", p.Code(), err)
		}
	}
	return nil
}

func seedProfiles(tx *gorm.DB, data *seedData) error {
	for _, p := range data.Profiles {
		profile := models.Profile{Name: p.Name}
		if err := tx.Where("name = ?", p.Name).
			Attrs(models.Profile{Description: p.Description, IsSystem: true}).
			FirstOrCreate(&profile).Error; err != nil {
			return fmt.Errorf("seed profile %s: %w", p.Name, err)
		}

		perms := make([]models.Permission, 0, len(p.Permissions))
		for _, code := range p.Permissions {
			resource, action, ok := strings.Cut(code, ":")
			if !ok {
				return fmt.Errorf("profile %s: malformed permission %q", p.Name, code)
			}
			var perm models.Permission
			if err := tx.Where("resource_type = ? AND action = ?", resource, action).First(&perm).Error; err != nil {
				return fmt.Errorf("profile %s: permission %q: %w", p.Name, code, err)
			}
			perms = append(perms, perm)
		}
		if err := tx.Model(&profile).Association("Permissions").Replace(perms); err != nil {
			return fmt.Errorf("profile %s: assign permissions: %w", p.Name, err)
		}
	}
	return nil
}

func seedFeatures(tx *gorm.DB, data *seedData) error {
	for _, name := range data.Features {
		f := models.Feature{Name: name}
		if err := tx.Where("name = ?", name).FirstOrCreate(&f).Error; err != nil {
			return fmt.Errorf("seed feature %s: %w", name, err)
		}
	}
	return nil
}

func seedAdmin(tx *gorm.DB, email, password string) error {
	var profile models.Profile
	if err := tx.Where("name = ?", ProfileAdmin).First(&profile).Error; err != nil {
		return fmt.Errorf("admin profile: %w", err)
	}

	var user models.User
	err := tx.Where("email = ?", strings.ToLower(email)).First(&user).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	user = models.User{
		Email:     strings.ToLower(email),
		Name:      "Administrator",
		Password:  string(hash),
		IsStaff:   true,
		ProfileID: &profile.ID,
	}
	return tx.Create(&user).Error
}
