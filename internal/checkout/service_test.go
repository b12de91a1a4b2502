package checkout

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/internal/cart"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/internal/orders"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/internal/schedule"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/internal/stock"
	dbpkg "github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/db"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/db/models"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/enums"
	pkgerrors "github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/errors"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/logger"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/outbox"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/types"
)

const testWindow = 8 * time.Minute

type testEnv struct {
	client *dbpkg.Client
	svc    Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := "file:checkout_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = conn.AutoMigrate(
		&models.Product{}, &models.ProductVariant{}, &models.VariantSize{},
		&models.Order{}, &models.OrderLine{},
		&models.CartRecord{}, &models.CartItem{},
		&models.ScheduleEntry{}, &models.OutboxEvent{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	client, err := dbpkg.NewWithConn(conn)
	if err != nil {
		t.Fatalf("wrap client: %v", err)
	}
	logg := logger.New(logger.Options{ServiceName: "checkout-test", Output: io.Discard})
	publisher := outbox.NewService(outbox.NewRepository(conn), logg)
	svc, err := NewService(client, cart.NewRepository(conn), orders.NewRepository(conn), schedule.NewRepository(conn), publisher, logg, testWindow)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &testEnv{client: client, svc: svc}
}

func (e *testEnv) db() *gorm.DB { return e.client.DB() }

func (e *testEnv) seedVariant(t *testing.T, priceCents int, sizes map[string]int) uuid.UUID {
	t.Helper()
	product := models.Product{ID: uuid.New(), Title: "hoodie", PriceCents: priceCents, CostCents: priceCents / 2}
	if err := e.db().Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	variant := models.ProductVariant{ID: uuid.New(), ProductID: product.ID, Color: "navy", StockStatus: enums.StockStatusInStock, IsActive: true}
	if err := e.db().Create(&variant).Error; err != nil {
		t.Fatalf("seed variant: %v", err)
	}
	for size, qty := range sizes {
		row := models.VariantSize{ID: uuid.New(), VariantID: variant.ID, Size: size, QuantityLeft: qty}
		if err := e.db().Create(&row).Error; err != nil {
			t.Fatalf("seed size: %v", err)
		}
	}
	return variant.ID
}

func (e *testEnv) seedCart(t *testing.T, userID uuid.UUID, items []models.CartItem) {
	t.Helper()
	record := models.CartRecord{ID: uuid.New(), UserID: userID, Status: enums.CartStatusActive}
	if err := e.db().Create(&record).Error; err != nil {
		t.Fatalf("seed cart: %v", err)
	}
	for i := range items {
		items[i].ID = uuid.New()
		items[i].CartID = record.ID
		if err := e.db().Create(&items[i]).Error; err != nil {
			t.Fatalf("seed cart item: %v", err)
		}
	}
}

func TestReserveCreatesPendingOrder(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	variantID := env.seedVariant(t, 3000, map[string]int{"M": 5, "L": 1})
	env.seedCart(t, userID, []models.CartItem{
		{VariantID: variantID, Size: "M", Qty: 2},
		{VariantID: variantID, Size: "L", Qty: 3},
	})

	before := time.Now().UTC()
	result, err := env.svc.Reserve(ctx, userID)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	order := result.Order
	if order.PaymentStatus != enums.PaymentStatusPending {
		t.Fatalf("expected pending order, got %s", order.PaymentStatus)
	}
	if len(order.Lines) != 1 || order.Lines[0].Size != "M" {
		t.Fatalf("expected only the M line allocated: %+v", order.Lines)
	}
	if order.TotalPriceCents != 6000 {
		t.Fatalf("expected total 6000, got %d", order.TotalPriceCents)
	}
	if order.ReservedUntil.Before(before.Add(testWindow - time.Minute)) {
		t.Fatalf("reservation window too short: %v", order.ReservedUntil)
	}
	if len(result.Rejected) != 1 || result.Rejected[0].Reason != stock.ReasonInsufficientStock {
		t.Fatalf("expected one rejected line with reason: %+v", result.Rejected)
	}

	var size models.VariantSize
	if err := env.db().First(&size, "variant_id = ? AND size = ?", variantID, "M").Error; err != nil {
		t.Fatalf("load size: %v", err)
	}
	if size.QuantityLeft != 3 {
		t.Fatalf("expected M decremented to 3, got %d", size.QuantityLeft)
	}
	if err := env.db().First(&size, "variant_id = ? AND size = ?", variantID, "L").Error; err != nil {
		t.Fatalf("load size: %v", err)
	}
	if size.QuantityLeft != 1 {
		t.Fatalf("rejected line must not consume stock, got %d", size.QuantityLeft)
	}

	var entry models.ScheduleEntry
	if err := env.db().First(&entry, "order_id = ?", order.ID).Error; err != nil {
		t.Fatalf("load expiry entry: %v", err)
	}
	if entry.Kind != enums.ScheduleKindOrderExpiry || entry.Processed {
		t.Fatalf("unexpected expiry entry: %+v", entry)
	}
	if !entry.ActivationTime.Equal(order.ReservedUntil) {
		t.Fatalf("expiry must fire at reserved_until, got %v", entry.ActivationTime)
	}

	var events int64
	if err := env.db().Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventOrderReserved).Count(&events).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	if events != 1 {
		t.Fatalf("expected one reserved event, got %d", events)
	}
}

func TestReserveUsesSalePrice(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	variantID := env.seedVariant(t, 3000, map[string]int{"M": 5})

	options := types.SaleOptions{
		StartDate:          time.Now().Add(-time.Hour),
		EndDate:            time.Now().Add(time.Hour),
		DiscountPercentage: 20,
		SalePriceCents:     2400,
	}
	err := env.db().Model(&models.ProductVariant{}).
		Where("id = ?", variantID).
		Updates(map[string]any{"is_on_sale": true, "sale_options": &options}).Error
	if err != nil {
		t.Fatalf("set sale: %v", err)
	}
	env.seedCart(t, userID, []models.CartItem{{VariantID: variantID, Size: "M", Qty: 1}})

	result, err := env.svc.Reserve(ctx, userID)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if result.Order.Lines[0].UnitPriceCents != 2400 {
		t.Fatalf("expected sale price 2400, got %d", result.Order.Lines[0].UnitPriceCents)
	}
}

func TestReserveNothingAllocatableRollsBack(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	variantID := env.seedVariant(t, 3000, map[string]int{"M": 1})
	env.seedCart(t, userID, []models.CartItem{{VariantID: variantID, Size: "M", Qty: 5}})

	_, err := env.svc.Reserve(ctx, userID)
	if err == nil {
		t.Fatal("expected state conflict")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("unexpected error: %v", err)
	}

	var size models.VariantSize
	if err := env.db().First(&size, "variant_id = ?", variantID).Error; err != nil {
		t.Fatalf("load size: %v", err)
	}
	if size.QuantityLeft != 1 {
		t.Fatalf("rollback must leave stock untouched, got %d", size.QuantityLeft)
	}
	var orderCount int64
	if err := env.db().Model(&models.Order{}).Count(&orderCount).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if orderCount != 0 {
		t.Fatal("no order may survive a failed reservation")
	}
}

func TestReserveEmptyCart(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	env.seedCart(t, userID, nil)

	_, err := env.svc.Reserve(ctx, userID)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReserveNoCart(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	_, err := env.svc.Reserve(context.Background(), uuid.New())
	if err == nil {
		t.Fatal("expected not found")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unexpected error: %v", err)
	}
}
