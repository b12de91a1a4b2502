package stock

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/db/models"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/enums"
	pkgerrors "github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/errors"
)

func TestAllocatePartialFulfillment(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	variant := seedVariant(t, db, map[string]int{"M": 5, "L": 1})

	requests := []AllocationRequest{
		{VariantID: variant, Size: "M", Qty: 3},
		{VariantID: variant, Size: "M", Qty: 4},
		{VariantID: variant, Size: "L", Qty: 1},
		{VariantID: variant, Size: "XXL", Qty: 1},
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		results, terr := Allocate(ctx, tx, requests)
		if terr != nil {
			return terr
		}
		if len(results) != 4 {
			t.Fatalf("expected 4 results, got %d", len(results))
		}
		if !results[0].Allocated || results[0].Reason != "" {
			t.Fatalf("expected first allocation to succeed: %+v", results[0])
		}
		if results[1].Allocated || results[1].Reason != ReasonInsufficientStock {
			t.Fatalf("expected second allocation to fail short of stock: %+v", results[1])
		}
		if !results[2].Allocated {
			t.Fatalf("expected third allocation to succeed: %+v", results[2])
		}
		if results[3].Allocated || results[3].Reason != ReasonUnknownSize {
			t.Fatalf("expected unknown size rejection: %+v", results[3])
		}
		return nil
	})
	if err != nil {
		t.Fatalf("allocate transaction: %v", err)
	}

	if got := quantityLeft(t, db, variant, "M"); got != 2 {
		t.Fatalf("unexpected remaining M stock: %d", got)
	}
	if got := quantityLeft(t, db, variant, "L"); got != 0 {
		t.Fatalf("unexpected remaining L stock: %d", got)
	}
}

func TestAllocateNeverOversells(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	variant := seedVariant(t, db, map[string]int{"S": 1})

	// Two buyers want the last unit. Exactly one wins.
	wins := 0
	for i := 0; i < 2; i++ {
		err := db.Transaction(func(tx *gorm.DB) error {
			results, terr := Allocate(ctx, tx, []AllocationRequest{{VariantID: variant, Size: "S", Qty: 1}})
			if terr != nil {
				return terr
			}
			if results[0].Allocated {
				wins++
			}
			return nil
		})
		if err != nil {
			t.Fatalf("allocate transaction: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
	if got := quantityLeft(t, db, variant, "S"); got != 0 {
		t.Fatalf("stock went negative or stayed positive: %d", got)
	}
}

func TestAllocateInvalidQty(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	variant := seedVariant(t, db, map[string]int{"M": 5})

	_, err := Allocate(context.Background(), db, []AllocationRequest{{VariantID: variant, Size: "M", Qty: 0}})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReleaseRoundTrip(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	variant := seedVariant(t, db, map[string]int{"M": 5})

	err := db.Transaction(func(tx *gorm.DB) error {
		if _, terr := Allocate(ctx, tx, []AllocationRequest{{VariantID: variant, Size: "M", Qty: 3}}); terr != nil {
			return terr
		}
		return Release(ctx, tx, []AllocationRequest{{VariantID: variant, Size: "M", Qty: 3}})
	})
	if err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if got := quantityLeft(t, db, variant, "M"); got != 5 {
		t.Fatalf("expected stock restored to 5, got %d", got)
	}
}

func TestReleaseUnknownSizeAborts(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	variant := seedVariant(t, db, map[string]int{"M": 5})

	err := Release(context.Background(), db, []AllocationRequest{{VariantID: variant, Size: "XS", Qty: 1}})
	if err == nil {
		t.Fatal("expected not found error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFinalizeSalesBumpsUnitsSold(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	variant := seedVariant(t, db, map[string]int{"M": 5})

	lines := []models.OrderLine{
		{ID: uuid.New(), OrderID: uuid.New(), VariantID: variant, Size: "M", Qty: 2},
		{ID: uuid.New(), OrderID: uuid.New(), VariantID: variant, Size: "M", Qty: 1},
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		return FinalizeSales(ctx, tx, lines)
	})
	if err != nil {
		t.Fatalf("finalize sales: %v", err)
	}

	var row models.ProductVariant
	if err := db.First(&row, "id = ?", variant).Error; err != nil {
		t.Fatalf("load variant: %v", err)
	}
	if row.UnitsSold != 3 {
		t.Fatalf("expected units_sold 3, got %d", row.UnitsSold)
	}
}

func TestRefreshStockStatus(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	variant := seedVariant(t, db, map[string]int{"M": 1})

	err := db.Transaction(func(tx *gorm.DB) error {
		if _, terr := Allocate(ctx, tx, []AllocationRequest{{VariantID: variant, Size: "M", Qty: 1}}); terr != nil {
			return terr
		}
		return RefreshStockStatus(ctx, tx, []uuid.UUID{variant})
	})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}

	var row models.ProductVariant
	if err := db.First(&row, "id = ?", variant).Error; err != nil {
		t.Fatalf("load variant: %v", err)
	}
	if row.StockStatus != enums.StockStatusOutOfStock {
		t.Fatalf("expected out_of_stock, got %s", row.StockStatus)
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if terr := Release(ctx, tx, []AllocationRequest{{VariantID: variant, Size: "M", Qty: 1}}); terr != nil {
			return terr
		}
		return RefreshStockStatus(ctx, tx, []uuid.UUID{variant})
	})
	if err != nil {
		t.Fatalf("refresh after release: %v", err)
	}
	if err := db.First(&row, "id = ?", variant).Error; err != nil {
		t.Fatalf("reload variant: %v", err)
	}
	if row.StockStatus != enums.StockStatusInStock {
		t.Fatalf("expected in_stock, got %s", row.StockStatus)
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:stock_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Product{}, &models.ProductVariant{}, &models.VariantSize{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedVariant(t *testing.T, db *gorm.DB, sizes map[string]int) uuid.UUID {
	t.Helper()
	product := models.Product{ID: uuid.New(), Title: "tee", PriceCents: 2500}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	variant := models.ProductVariant{
		ID:          uuid.New(),
		ProductID:   product.ID,
		Color:       "black",
		StockStatus: enums.StockStatusInStock,
		IsActive:    true,
	}
	if err := db.Create(&variant).Error; err != nil {
		t.Fatalf("seed variant: %v", err)
	}
	for size, qty := range sizes {
		row := models.VariantSize{ID: uuid.New(), VariantID: variant.ID, Size: size, QuantityLeft: qty}
		if err := db.Create(&row).Error; err != nil {
			t.Fatalf("seed size: %v", err)
		}
	}
	return variant.ID
}

func quantityLeft(t *testing.T, db *gorm.DB, variantID uuid.UUID, size string) int {
	t.Helper()
	var row models.VariantSize
	if err := db.First(&row, "variant_id = ? AND size = ?", variantID, size).Error; err != nil {
		t.Fatalf("load size: %v", err)
	}
	return row.QuantityLeft
}
