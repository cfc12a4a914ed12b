package store

import (
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"ecom-service/internal/model"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "store_test.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	err = db.AutoMigrate(
		&model.Tenant{},
		&model.User{},
		&model.Product{},
		&model.Order{},
		&model.OrderItem{},
		&model.Favourite{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func mustCreateTenant(t *testing.T, db *gorm.DB, name string) *model.Tenant {
	t.Helper()
	tenant, err := CreateTenant(db, name)
	if err != nil {
		t.Fatalf("failed to create tenant %s: %v", name, err)
	}
	return tenant
}

func mustCreateUser(t *testing.T, db *gorm.DB, username, role string, tenant *model.Tenant) *model.User {
	t.Helper()
	user, err := CreateUser(db, username, role, tenant)
	if err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}
	return user
}

func mustCreateProduct(t *testing.T, db *gorm.DB, tenant *model.Tenant, name string, price float64, quantity int) *model.Product {
	t.Helper()
	product, err := CreateProduct(db, tenant, ProductData{
		Name:              name,
		Price:             price,
		AvailableQuantity: quantity,
	})
	if err != nil {
		t.Fatalf("failed to create product %s: %v", name, err)
	}
	return product
}
