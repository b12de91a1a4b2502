package sweeper

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/internal/cart"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/internal/orders"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/internal/schedule"
	dbpkg "github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/db"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/db/models"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/enums"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/outbox"
)

func newExpiryJob(t *testing.T, client *dbpkg.Client, conn *gorm.DB, now time.Time) Job {
	t.Helper()
	logg := testLogger()
	publisher := outbox.NewService(outbox.NewRepository(conn), logg)
	ordersSvc, err := orders.NewService(client, orders.NewRepository(conn), cart.NewRepository(conn), schedule.NewRepository(conn), publisher, logg)
	if err != nil {
		t.Fatalf("orders service: %v", err)
	}
	job, err := NewExpiryJob(ExpiryJobParams{
		Logger:       logg,
		DB:           client,
		ScheduleRepo: schedule.NewRepository(conn),
		Orders:       ordersSvc,
	})
	if err != nil {
		t.Fatalf("new expiry job: %v", err)
	}
	job.(*expiryJob).now = func() time.Time { return now }
	return job
}

func seedReservedOrder(t *testing.T, conn *gorm.DB, reservedUntil time.Time) (uuid.UUID, uuid.UUID) {
	t.Helper()
	product := models.Product{ID: uuid.New(), Title: "shorts", PriceCents: 1800}
	if err := conn.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	variant := models.ProductVariant{ID: uuid.New(), ProductID: product.ID, Color: "grey", StockStatus: enums.StockStatusInStock, IsActive: true}
	if err := conn.Create(&variant).Error; err != nil {
		t.Fatalf("seed variant: %v", err)
	}
	size := models.VariantSize{ID: uuid.New(), VariantID: variant.ID, Size: "L", QuantityLeft: 0}
	if err := conn.Create(&size).Error; err != nil {
		t.Fatalf("seed size: %v", err)
	}
	order := models.Order{
		ID:              uuid.New(),
		UserID:          uuid.New(),
		PaymentStatus:   enums.PaymentStatusPending,
		ReservedUntil:   reservedUntil,
		TotalPriceCents: 1800,
		Lines: []models.OrderLine{
			{ID: uuid.New(), VariantID: variant.ID, Size: "L", Qty: 1, UnitPriceCents: 1800},
		},
	}
	order.Lines[0].OrderID = order.ID
	if err := conn.Create(&order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	entry := models.ScheduleEntry{
		ID:             uuid.New(),
		Kind:           enums.ScheduleKindOrderExpiry,
		ActivationTime: reservedUntil,
		OrderID:        &order.ID,
	}
	if err := conn.Create(&entry).Error; err != nil {
		t.Fatalf("seed entry: %v", err)
	}
	return order.ID, variant.ID
}

func TestExpiryJobReclaimsDueReservation(t *testing.T) {
	t.Parallel()

	client, conn := newSweepDB(t, "expiryjob")
	ctx := context.Background()
	now := time.Now().UTC()
	orderID, variantID := seedReservedOrder(t, conn, now.Add(-time.Minute))

	job := newExpiryJob(t, client, conn, now)
	if err := job.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	var size models.VariantSize
	if err := conn.First(&size, "variant_id = ?", variantID).Error; err != nil {
		t.Fatalf("load size: %v", err)
	}
	if size.QuantityLeft != 1 {
		t.Fatalf("expected stock returned, got %d", size.QuantityLeft)
	}

	var variant models.ProductVariant
	if err := conn.First(&variant, "id = ?", variantID).Error; err != nil {
		t.Fatalf("load variant: %v", err)
	}
	if variant.StockStatus != enums.StockStatusInStock {
		t.Fatalf("expected stock status refreshed, got %s", variant.StockStatus)
	}

	var orderCount int64
	if err := conn.Model(&models.Order{}).Where("id = ?", orderID).Count(&orderCount).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if orderCount != 0 {
		t.Fatal("expired order must be removed")
	}

	var entry models.ScheduleEntry
	if err := conn.First(&entry, "order_id = ?", orderID).Error; err != nil {
		t.Fatalf("load entry: %v", err)
	}
	if !entry.Processed {
		t.Fatal("entry must be marked processed")
	}

	// Idempotence: a second run changes nothing.
	if err := job.Run(ctx); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if err := conn.First(&size, "variant_id = ?", variantID).Error; err != nil {
		t.Fatalf("reload size: %v", err)
	}
	if size.QuantityLeft != 1 {
		t.Fatalf("second sweep must not release again, got %d", size.QuantityLeft)
	}
}

func TestExpiryJobSkipsFutureReservation(t *testing.T) {
	t.Parallel()

	client, conn := newSweepDB(t, "expiryjob")
	ctx := context.Background()
	now := time.Now().UTC()
	orderID, _ := seedReservedOrder(t, conn, now.Add(time.Hour))

	job := newExpiryJob(t, client, conn, now)
	if err := job.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	var order models.Order
	if err := conn.First(&order, "id = ?", orderID).Error; err != nil {
		t.Fatalf("load order: %v", err)
	}
	if order.PaymentStatus != enums.PaymentStatusPending {
		t.Fatalf("future reservation must stay pending, got %s", order.PaymentStatus)
	}
}

func TestExpiryJobLeavesConfirmedOrderAlone(t *testing.T) {
	t.Parallel()

	client, conn := newSweepDB(t, "expiryjob")
	ctx := context.Background()
	now := time.Now().UTC()
	orderID, variantID := seedReservedOrder(t, conn, now.Add(-time.Minute))

	// Payment landed before the sweep visited the entry.
	err := conn.Model(&models.Order{}).Where("id = ?", orderID).Update("payment_status", enums.PaymentStatusComplete).Error
	if err != nil {
		t.Fatalf("confirm order: %v", err)
	}

	job := newExpiryJob(t, client, conn, now)
	if err := job.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	var size models.VariantSize
	if err := conn.First(&size, "variant_id = ?", variantID).Error; err != nil {
		t.Fatalf("load size: %v", err)
	}
	if size.QuantityLeft != 0 {
		t.Fatalf("confirmed order's stock must stay allocated, got %d", size.QuantityLeft)
	}

	var order models.Order
	if err := conn.First(&order, "id = ?", orderID).Error; err != nil {
		t.Fatalf("load order: %v", err)
	}
	if order.PaymentStatus != enums.PaymentStatusComplete {
		t.Fatalf("unexpected status: %s", order.PaymentStatus)
	}
}

func TestPurgeJobRemovesExpiredProcessedEntries(t *testing.T) {
	t.Parallel()

	client, conn := newSweepDB(t, "purgejob")
	ctx := context.Background()
	now := time.Now().UTC()
	_ = client

	stale := now.Add(-time.Hour)
	entry := models.ScheduleEntry{
		ID:             uuid.New(),
		Kind:           enums.ScheduleKindSaleEnd,
		ActivationTime: now.Add(-48 * time.Hour),
		Processed:      true,
		PurgeAfter:     &stale,
	}
	if err := conn.Create(&entry).Error; err != nil {
		t.Fatalf("seed entry: %v", err)
	}

	oldPublished := now.Add(-31 * 24 * time.Hour)
	recentPublished := now.Add(-time.Hour)
	events := []models.OutboxEvent{
		{ID: uuid.New(), EventType: enums.EventSaleEnded, AggregateType: enums.AggregateProductVariant, AggregateID: uuid.New(), Payload: []byte(`{}`), PublishedAt: &oldPublished},
		{ID: uuid.New(), EventType: enums.EventSaleEnded, AggregateType: enums.AggregateProductVariant, AggregateID: uuid.New(), Payload: []byte(`{}`), PublishedAt: &recentPublished},
		{ID: uuid.New(), EventType: enums.EventSaleEnded, AggregateType: enums.AggregateProductVariant, AggregateID: uuid.New(), Payload: []byte(`{}`)},
	}
	for i := range events {
		if err := conn.Create(&events[i]).Error; err != nil {
			t.Fatalf("seed outbox event: %v", err)
		}
	}

	job, err := NewPurgeJob(PurgeJobParams{
		Logger:       testLogger(),
		ScheduleRepo: schedule.NewRepository(conn),
		OutboxRepo:   outbox.NewRepository(conn),
	})
	if err != nil {
		t.Fatalf("new purge job: %v", err)
	}
	job.(*purgeJob).now = func() time.Time { return now }

	if err := job.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	var count int64
	if err := conn.Model(&models.ScheduleEntry{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected purged, got %d entries", count)
	}

	var eventCount int64
	if err := conn.Model(&models.OutboxEvent{}).Count(&eventCount).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	if eventCount != 2 {
		t.Fatalf("expected old published event purged, got %d events", eventCount)
	}
}
