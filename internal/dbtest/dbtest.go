// Package dbtest opens migrated, seeded in-memory databases for tests.
package dbtest

import (
	"testing"

	"github.com/diewo77/go-crm/internal/db"
	"github.com/diewo77/go-crm/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// New returns an isolated sqlite database named after the test, with the
// schema migrated and reference data seeded.
func New(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent), TranslateError: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := db.Seed(conn, db.SeedOptions{}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}

// CreateUser inserts a user attached to the named profile ("" for none).
// The password is "password123".
func CreateUser(t testing.TB, conn *gorm.DB, email, profile string) models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := models.User{Email: email, Name: email, Password: string(hash), IsStaff: true}
	if profile != "" {
		var p models.Profile
		if err := conn.Where("name = ?", profile).First(&p).Error; err != nil {
			t.Fatalf("profile %s: %v", profile, err)
		}
		u.ProfileID = &p.ID
	}
	if err := conn.Create(&u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

// CreateClient inserts a minimal client.
func CreateClient(t testing.TB, conn *gorm.DB, name string) models.Client {
	t.Helper()
	c := models.Client{Name: name, MobileNumber: "+10000000", Country: "PK", City: "Lahore"}
	if err := conn.Create(&c).Error; err != nil {
		t.Fatalf("create client: %v", err)
	}
	return c
}

// CreateProduct inserts a product with the given sku and price.
func CreateProduct(t testing.TB, conn *gorm.DB, sku string, price float64) models.Product {
	t.Helper()
	p := models.Product{Name: "Product " + sku, SKU: sku, UnitPrice: price}
	if err := conn.Create(&p).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	return p
}
