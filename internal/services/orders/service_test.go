package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"comanda/internal/logger"
	"comanda/internal/models"
	"comanda/internal/repository"
	"comanda/internal/repository/memory"
)

func setup(t *testing.T) (*Service, *repository.Store, int) {
	t.Helper()
	store := memory.New()
	p := &models.Product{Name: "Espresso", Price: 1.5, EstimatedTime: 30, Type: models.ProductWineOrDrink, Active: true}
	if err := store.Products.Create(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	return NewService(store.Orders, store.OrderItems, logger.Nop()), store, p.ID
}

func addItems(t *testing.T, store *repository.Store, orderID string, productID, n int) []*models.OrderItem {
	t.Helper()
	items := make([]*models.OrderItem, n)
	for i := range items {
		items[i] = &models.OrderItem{OrderID: orderID, ProductID: productID}
	}
	if err := store.OrderItems.CreateBatch(context.Background(), items); err != nil {
		t.Fatal(err)
	}
	return items
}

func TestCreate(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	generated, err := svc.Create(ctx, 1, "Ana", "", "waiter@comanda.test")
	if err != nil {
		t.Fatal(err)
	}
	if len(generated.ID) != models.OrderIDLength || generated.Status != models.OrderPending {
		t.Fatalf("generated order = %+v", generated)
	}

	if _, err := svc.Create(ctx, 2, "Rui", "abcde", "w"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Create(ctx, 3, "Eva", "ABCDE", "w"); !errors.Is(err, ErrIDTaken) {
		t.Fatalf("taken id: err = %v, want ErrIDTaken", err)
	}
	if _, err := svc.Create(ctx, 1, "Ana", "", "w"); !errors.Is(err, ErrTableBusy) {
		t.Fatalf("busy table: err = %v, want ErrTableBusy", err)
	}
}

func TestAggregation(t *testing.T) {
	svc, store, productID := setup(t)
	ctx := context.Background()
	order, err := svc.Create(ctx, 1, "Ana", "AGG01", "w")
	if err != nil {
		t.Fatal(err)
	}
	items := addItems(t, store, order.ID, productID, 2)

	if _, changed, err := svc.MarkReadyIfComplete(ctx, order.ID, "chef"); err != nil || changed {
		t.Fatalf("MarkReadyIfComplete on pending items = %v, %v", changed, err)
	}

	got, changed, err := svc.MarkPreparing(ctx, order.ID, "chef")
	if err != nil || !changed || got.Status != models.OrderPreparing {
		t.Fatalf("MarkPreparing = %+v, %v, %v", got, changed, err)
	}
	if _, changed, err := svc.MarkPreparing(ctx, order.ID, "chef"); err != nil || changed {
		t.Fatalf("second MarkPreparing = %v, %v", changed, err)
	}

	at := time.Now()
	for _, it := range items[:1] {
		store.OrderItems.MarkStarted(ctx, it.ID, at)
		store.OrderItems.MarkFinished(ctx, it.ID, at)
	}
	if _, changed, _ := svc.MarkReadyIfComplete(ctx, order.ID, "chef"); changed {
		t.Fatal("order must not be READY while an item is pending")
	}

	store.OrderItems.MarkStarted(ctx, items[1].ID, at)
	store.OrderItems.MarkFinished(ctx, items[1].ID, at)
	got, changed, err = svc.MarkReadyIfComplete(ctx, order.ID, "chef")
	if err != nil || !changed || got.Status != models.OrderReady {
		t.Fatalf("MarkReadyIfComplete = %+v, %v, %v", got, changed, err)
	}
	got, changed, err = svc.MarkReadyIfComplete(ctx, order.ID, "chef")
	if err != nil || changed || got.Status != models.OrderReady {
		t.Fatalf("repeated MarkReadyIfComplete = %+v, %v, %v", got, changed, err)
	}
}

func TestSetStatus_Stale(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()
	order, err := svc.Create(ctx, 1, "Ana", "STALE", "w")
	if err != nil {
		t.Fatal(err)
	}
	stale := *order

	if err := svc.SetStatus(ctx, order, models.OrderPreparing, "chef"); err != nil {
		t.Fatal(err)
	}
	if err := svc.SetStatus(ctx, &stale, models.OrderPreparing, "chef"); !errors.Is(err, ErrStatusChanged) {
		t.Fatalf("stale SetStatus: err = %v, want ErrStatusChanged", err)
	}
}

func TestDelete(t *testing.T) {
	svc, store, productID := setup(t)
	ctx := context.Background()
	order, err := svc.Create(ctx, 1, "Ana", "DEL01", "w")
	if err != nil {
		t.Fatal(err)
	}
	addItems(t, store, order.ID, productID, 3)

	if err := svc.Delete(ctx, order.ID); !errors.Is(err, ErrNotPaid) {
		t.Fatalf("Delete unpaid: err = %v", err)
	}

	for _, to := range []models.OrderStatus{models.OrderPreparing, models.OrderReady, models.OrderServed, models.OrderPaid} {
		if err := svc.SetStatus(ctx, order, to, "w"); err != nil {
			t.Fatal(err)
		}
	}
	if err := svc.Delete(ctx, "del01"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	items, _ := store.OrderItems.GetByOrderID(ctx, order.ID)
	if len(items) != 0 {
		t.Fatalf("%d items left after delete", len(items))
	}
	if err := svc.Delete(ctx, order.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("second Delete: err = %v", err)
	}
}
