package labor

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/delgadoservices/fieldstock-backend/pkg/db/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&models.LaborEntry{}); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return conn
}

func TestSumByJob(t *testing.T) {
	conn := newTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	jobID := uuid.New()
	workDate := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	entries := []models.LaborEntry{
		{ID: uuid.New(), JobID: jobID, Hours: decimal.NewFromInt(8), Cost: decimal.NewFromInt(400), WorkDate: workDate},
		{ID: uuid.New(), JobID: jobID, Hours: decimal.NewFromFloat(3.5), Cost: decimal.NewFromInt(175), WorkDate: workDate.AddDate(0, 0, 1)},
		{ID: uuid.New(), JobID: uuid.New(), Hours: decimal.NewFromInt(2), Cost: decimal.NewFromInt(100), WorkDate: workDate},
	}
	for i := range entries {
		if err := conn.Create(&entries[i]).Error; err != nil {
			t.Fatalf("seed entry: %v", err)
		}
	}

	totals, err := repo.SumByJob(ctx, jobID)
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if !totals.Hours.Equal(decimal.NewFromFloat(11.5)) {
		t.Fatalf("hours = %s, want 11.5", totals.Hours)
	}
	if !totals.Cost.Equal(decimal.NewFromInt(575)) {
		t.Fatalf("cost = %s, want 575", totals.Cost)
	}
}

func TestSumByJobEmptyFeed(t *testing.T) {
	conn := newTestDB(t)
	repo := NewRepository(conn)

	totals, err := repo.SumByJob(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if !totals.Hours.IsZero() || !totals.Cost.IsZero() {
		t.Fatalf("totals = %+v, want zeroes", totals)
	}
}
