package repository

import (
	"errors"
	"os"
	"sync"
	"testing"

	"go-inventory-insights/internal/model"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

var errMissingDSN = errors.New("missing TEST_POSTGRES_DSN")

var (
	dbOnce sync.Once
	testDB *gorm.DB
	dbErr  error
)

func openTestDB(tb testing.TB) *gorm.DB {
	tb.Helper()

	dbOnce.Do(func() {
		dsn := os.Getenv("TEST_POSTGRES_DSN")
		if dsn == "" {
			dbErr = errMissingDSN
			return
		}
		var err error
		testDB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: gormLogger.Default.LogMode(gormLogger.Silent),
		})
		if err != nil {
			dbErr = err
			return
		}
		dbErr = testDB.AutoMigrate(model.All()...)
	})

	if errors.Is(dbErr, errMissingDSN) {
		tb.Skip("set TEST_POSTGRES_DSN to run repository integration tests")
	}
	if dbErr != nil {
		tb.Fatalf("failed to init test db: %v", dbErr)
	}
	return testDB
}

// newStore returns a fresh store id whose rows are removed when the test ends.
// Tests are isolated by tenant rather than by transaction so that concurrent
// callers really use separate connections.
func newStore(tb testing.TB, db *gorm.DB) uuid.UUID {
	tb.Helper()
	storeID := uuid.New()
	tb.Cleanup(func() {
		for _, m := range []interface{}{
			&model.Notification{}, &model.NotificationDedupKey{}, &model.Prediction{},
			&model.Sale{}, &model.Product{}, &model.Category{}, &model.AlertSettings{},
		} {
			db.Where("store_id = ?", storeID).Delete(m)
		}
	})
	return storeID
}
