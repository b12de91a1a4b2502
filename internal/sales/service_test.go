package sales

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/internal/schedule"
	dbpkg "github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/db"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/db/models"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/enums"
	pkgerrors "github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/errors"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/logger"
)

type testEnv struct {
	client *dbpkg.Client
	svc    Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := "file:sales_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(&models.Product{}, &models.ProductVariant{}, &models.ScheduleEntry{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	client, err := dbpkg.NewWithConn(conn)
	if err != nil {
		t.Fatalf("wrap client: %v", err)
	}
	logg := logger.New(logger.Options{ServiceName: "sales-test", Output: io.Discard})
	svc, err := NewService(client, schedule.NewRepository(conn), logg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &testEnv{client: client, svc: svc}
}

func (e *testEnv) db() *gorm.DB { return e.client.DB() }

func (e *testEnv) seedVariant(t *testing.T, priceCents int) uuid.UUID {
	t.Helper()
	product := models.Product{ID: uuid.New(), Title: "jacket", PriceCents: priceCents}
	if err := e.db().Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	variant := models.ProductVariant{ID: uuid.New(), ProductID: product.ID, Color: "green", StockStatus: enums.StockStatusInStock, IsActive: true}
	if err := e.db().Create(&variant).Error; err != nil {
		t.Fatalf("seed variant: %v", err)
	}
	return variant.ID
}

func TestScheduleFutureSale(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	variantID := env.seedVariant(t, 10000)
	start := time.Now().UTC().Add(time.Hour)
	end := start.Add(48 * time.Hour)

	err := env.svc.ScheduleSale(ctx, SaleRequest{
		VariantIDs:         []uuid.UUID{variantID},
		StartDate:          start,
		EndDate:            end,
		DiscountPercentage: 25,
	})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}

	var variant models.ProductVariant
	if err := env.db().First(&variant, "id = ?", variantID).Error; err != nil {
		t.Fatalf("load variant: %v", err)
	}
	if variant.IsOnSale {
		t.Fatal("variant must not be on sale before the window opens")
	}
	if variant.SaleOptions == nil || variant.SaleOptions.SalePriceCents != 7500 {
		t.Fatalf("unexpected sale options: %+v", variant.SaleOptions)
	}

	var entries []models.ScheduleEntry
	if err := env.db().Order("activation_time ASC").Find(&entries).Error; err != nil {
		t.Fatalf("load entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected start and end entries, got %d", len(entries))
	}
	if entries[0].Kind != enums.ScheduleKindSaleStart || entries[1].Kind != enums.ScheduleKindSaleEnd {
		t.Fatalf("unexpected entry kinds: %+v", entries)
	}
}

func TestScheduleImmediateSale(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	variantID := env.seedVariant(t, 9999)

	err := env.svc.ScheduleSale(ctx, SaleRequest{
		VariantIDs:         []uuid.UUID{variantID},
		StartDate:          time.Now().UTC().Add(-time.Minute),
		EndDate:            time.Now().UTC().Add(time.Hour),
		DiscountPercentage: 10,
	})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}

	var variant models.ProductVariant
	if err := env.db().First(&variant, "id = ?", variantID).Error; err != nil {
		t.Fatalf("load variant: %v", err)
	}
	if !variant.IsOnSale {
		t.Fatal("open window must flip the variant immediately")
	}
	// 9999 * 0.9 = 8999.1 rounds to 8999
	if variant.SaleOptions.SalePriceCents != 8999 {
		t.Fatalf("unexpected sale price: %d", variant.SaleOptions.SalePriceCents)
	}

	var entries []models.ScheduleEntry
	if err := env.db().Find(&entries).Error; err != nil {
		t.Fatalf("load entries: %v", err)
	}
	if len(entries) != 1 || entries[0].Kind != enums.ScheduleKindSaleEnd {
		t.Fatalf("expected only the end entry, got %+v", entries)
	}
}

func TestScheduleSaleDeduplicatesVariantIDs(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	variantID := env.seedVariant(t, 5000)

	err := env.svc.ScheduleSale(ctx, SaleRequest{
		VariantIDs:         []uuid.UUID{variantID, variantID},
		StartDate:          time.Now().UTC().Add(-time.Minute),
		EndDate:            time.Now().UTC().Add(time.Hour),
		DiscountPercentage: 20,
	})
	if err != nil {
		t.Fatalf("schedule with duplicate ids: %v", err)
	}

	var variant models.ProductVariant
	if err := env.db().First(&variant, "id = ?", variantID).Error; err != nil {
		t.Fatalf("load variant: %v", err)
	}
	if !variant.IsOnSale || variant.SaleOptions == nil {
		t.Fatalf("expected variant on sale with options: %+v", variant)
	}

	var entries []models.ScheduleEntry
	if err := env.db().Find(&entries).Error; err != nil {
		t.Fatalf("load entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected a single end entry, got %d", len(entries))
	}
	if len(entries[0].VariantIDs) != 1 || entries[0].VariantIDs[0] != variantID {
		t.Fatalf("expected deduplicated variant list, got %+v", entries[0].VariantIDs)
	}
}

func TestScheduleSaleValidation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	variantID := env.seedVariant(t, 5000)
	start := time.Now().UTC().Add(time.Hour)

	cases := []struct {
		name string
		req  SaleRequest
	}{
		{"no variants", SaleRequest{StartDate: start, EndDate: start.Add(time.Hour), DiscountPercentage: 10}},
		{"discount too high", SaleRequest{VariantIDs: []uuid.UUID{variantID}, StartDate: start, EndDate: start.Add(time.Hour), DiscountPercentage: 95}},
		{"inverted window", SaleRequest{VariantIDs: []uuid.UUID{variantID}, StartDate: start.Add(time.Hour), EndDate: start, DiscountPercentage: 10}},
		{"window in the past", SaleRequest{VariantIDs: []uuid.UUID{variantID}, StartDate: start.Add(-72 * time.Hour), EndDate: start.Add(-48 * time.Hour), DiscountPercentage: 10}},
	}
	for _, tc := range cases {
		err := env.svc.ScheduleSale(ctx, tc.req)
		if err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
		if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
	}
}

func TestScheduleSaleUnknownVariant(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	start := time.Now().UTC().Add(time.Hour)

	err := env.svc.ScheduleSale(context.Background(), SaleRequest{
		VariantIDs:         []uuid.UUID{uuid.New()},
		StartDate:          start,
		EndDate:            start.Add(time.Hour),
		DiscountPercentage: 10,
	})
	if err == nil {
		t.Fatal("expected not found")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCancelSale(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	first := env.seedVariant(t, 4000)
	second := env.seedVariant(t, 4000)
	start := time.Now().UTC().Add(time.Hour)

	err := env.svc.ScheduleSale(ctx, SaleRequest{
		VariantIDs:         []uuid.UUID{first, second},
		StartDate:          start,
		EndDate:            start.Add(24 * time.Hour),
		DiscountPercentage: 50,
	})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}

	if err := env.svc.CancelSale(ctx, first); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	var variant models.ProductVariant
	if err := env.db().First(&variant, "id = ?", first).Error; err != nil {
		t.Fatalf("load variant: %v", err)
	}
	if variant.IsOnSale || variant.SaleOptions != nil {
		t.Fatalf("expected sale cleared: %+v", variant)
	}

	// Entries survive but no longer name the cancelled variant.
	var entries []models.ScheduleEntry
	if err := env.db().Find(&entries).Error; err != nil {
		t.Fatalf("load entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	for _, entry := range entries {
		if entry.VariantIDs.Contains(first) {
			t.Fatalf("entry still names cancelled variant: %+v", entry)
		}
		if !entry.VariantIDs.Contains(second) {
			t.Fatalf("entry lost the remaining variant: %+v", entry)
		}
	}

	// Cancelling the last variant removes the entries outright.
	if err := env.svc.CancelSale(ctx, second); err != nil {
		t.Fatalf("cancel second: %v", err)
	}
	var count int64
	if err := env.db().Model(&models.ScheduleEntry{}).Count(&count).Error; err != nil {
		t.Fatalf("count entries: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected entries removed, got %d", count)
	}
}

func TestSalePriceCentsRounding(t *testing.T) {
	t.Parallel()

	cases := []struct {
		price    int
		discount int
		want     int
	}{
		{10000, 25, 7500},
		{9999, 10, 8999},
		{101, 50, 51},
		{333, 33, 223},
	}
	for _, tc := range cases {
		if got := salePriceCents(tc.price, tc.discount); got != tc.want {
			t.Fatalf("salePriceCents(%d, %d) = %d, want %d", tc.price, tc.discount, got, tc.want)
		}
	}
}
