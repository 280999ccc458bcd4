package ordering

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"comanda/internal/apperror"
	"comanda/internal/auth"
	"comanda/internal/logger"
	"comanda/internal/models"
	"comanda/internal/repository"
	"comanda/internal/repository/memory"
	"comanda/internal/services/orderitems"
	"comanda/internal/services/orders"
	"comanda/internal/services/tables"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recorder struct {
	mu   sync.Mutex
	msgs []*models.StatusUpdateMessage
	err  error
}

func (r *recorder) PublishStatus(_ context.Context, m *models.StatusUpdateMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, m)
	return r.err
}

func (r *recorder) Close() error { return nil }

func (r *recorder) has(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.msgs {
		if m.RoutingKey() == key {
			return true
		}
	}
	return false
}

type fakeImages struct {
	dir, name string
	data      []byte
	err       error
}

func (f *fakeImages) Save(_ context.Context, r io.Reader, dir, name string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.dir, f.name, f.data = dir, name, data
	return dir + "/" + name, nil
}

// flakyTables fails status changes once casErr is set.
type flakyTables struct {
	repository.TableRepository
	casErr error
}

func (f *flakyTables) CompareAndSetStatus(ctx context.Context, id int, from, to models.TableStatus) (bool, error) {
	if f.casErr != nil {
		return false, f.casErr
	}
	return f.TableRepository.CompareAndSetStatus(ctx, id, from, to)
}

type flakyItems struct {
	repository.OrderItemRepository
	batchErr error
}

func (f *flakyItems) CreateBatch(ctx context.Context, items []*models.OrderItem) error {
	if f.batchErr != nil {
		return f.batchErr
	}
	return f.OrderItemRepository.CreateBatch(ctx, items)
}

type fixture struct {
	store  *repository.Store
	tables *flakyTables
	items  *flakyItems
	svc    *Service
	events *recorder
	images *fakeImages
	clock  *clock
	beer   *models.Product
	meal   *models.Product
}

var epoch = time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		clock:  &clock{now: epoch},
		events: &recorder{},
		images: &fakeImages{},
	}
	f.store = memory.NewWithClock(f.clock.Now)
	f.tables = &flakyTables{TableRepository: f.store.Tables}
	f.items = &flakyItems{OrderItemRepository: f.store.OrderItems}

	log := logger.Nop()
	f.svc = NewService(
		tables.NewService(f.tables, log),
		orders.NewService(f.store.Orders, f.items, log).WithClock(f.clock.Now),
		orderitems.NewService(f.items, f.store.Orders, log).WithClock(f.clock.Now),
		f.store.Products,
		f.images,
		f.events,
		log,
	).WithClock(f.clock.Now)

	ctx := context.Background()
	f.beer = &models.Product{Name: "Lager", Price: 4.5, EstimatedTime: 120, Type: models.ProductBeer, Active: true}
	f.meal = &models.Product{Name: "Risotto", Price: 12, EstimatedTime: 300, Type: models.ProductMeal, Active: true}
	for _, p := range []*models.Product{f.beer, f.meal} {
		if err := f.store.Products.Create(ctx, p); err != nil {
			t.Fatalf("seed product: %v", err)
		}
	}
	return f
}

func (f *fixture) table(t *testing.T) int {
	t.Helper()
	table := &models.Table{}
	if err := f.store.Tables.Create(context.Background(), table); err != nil {
		t.Fatalf("seed table: %v", err)
	}
	return table.ID
}

func (f *fixture) tableStatus(t *testing.T, id int) models.TableStatus {
	t.Helper()
	table, err := f.store.Tables.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get table %d: %v", id, err)
	}
	return table.Status
}

func (f *fixture) orderStatus(t *testing.T, id string) models.OrderStatus {
	t.Helper()
	order, err := f.store.Orders.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get order %s: %v", id, err)
	}
	return order.Status
}

func request(productIDs ...int) *models.PlaceOrderRequest {
	req := &models.PlaceOrderRequest{ClientName: "Ana"}
	for _, id := range productIDs {
		req.Items = append(req.Items, models.PlaceOrderItem{ProductID: id})
	}
	return req
}

func assertKind(t *testing.T, err error, want apperror.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", want)
	}
	if got := apperror.KindOf(err); got != want {
		t.Fatalf("error kind = %v, want %v (%v)", got, want, err)
	}
}

func TestFullServiceCycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tableID := f.table(t)

	placed, err := f.svc.PlaceOrder(ctx, tableID, request(f.meal.ID, f.beer.ID))
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if placed.Order.Status != models.OrderPending {
		t.Fatalf("new order status = %s", placed.Order.Status)
	}
	if len(placed.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(placed.Items))
	}
	if got := f.tableStatus(t, tableID); got != models.TableWaitingForOrder {
		t.Fatalf("table status = %s, want WAITING_FOR_ORDER", got)
	}

	_, err = f.svc.Serve(ctx, tableID)
	assertKind(t, err, apperror.KindConflict)

	mealItem, beerItem := placed.Items[0].ID, placed.Items[1].ID
	progress, err := f.svc.StartPreparation(ctx, mealItem)
	if err != nil {
		t.Fatalf("StartPreparation: %v", err)
	}
	if progress.Order.Status != models.OrderPreparing {
		t.Fatalf("order status after first start = %s", progress.Order.Status)
	}
	if _, err := f.svc.StartPreparation(ctx, beerItem); err != nil {
		t.Fatalf("StartPreparation second item: %v", err)
	}

	progress, err = f.svc.FinishPreparation(ctx, mealItem)
	if err != nil {
		t.Fatalf("FinishPreparation: %v", err)
	}
	if progress.Order.Status != models.OrderPreparing {
		t.Fatalf("order must wait for every item, got %s", progress.Order.Status)
	}
	progress, err = f.svc.FinishPreparation(ctx, beerItem)
	if err != nil {
		t.Fatalf("FinishPreparation last item: %v", err)
	}
	if progress.Order.Status != models.OrderReady {
		t.Fatalf("order status after last finish = %s", progress.Order.Status)
	}

	_, err = f.svc.Charge(ctx, tableID)
	assertKind(t, err, apperror.KindConflict)

	state, err := f.svc.Serve(ctx, tableID)
	if err != nil {
		t.Fatalf("Serve: %v", err)
	}
	if state.Table.Status != models.TableEating || state.Order.Status != models.OrderServed {
		t.Fatalf("after serve: table %s, order %s", state.Table.Status, state.Order.Status)
	}

	bill, err := f.svc.Charge(ctx, tableID)
	if err != nil {
		t.Fatalf("Charge: %v", err)
	}
	if bill.Amount != 16.5 {
		t.Fatalf("bill amount = %v, want 16.5", bill.Amount)
	}
	if got := f.tableStatus(t, tableID); got != models.TablePaying {
		t.Fatalf("table status = %s, want PAYING", got)
	}

	state, err = f.svc.Close(ctx, tableID)
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if state.Table.Status != models.TableClosed || state.Order.Status != models.OrderPaid {
		t.Fatalf("after close: table %s, order %s", state.Table.Status, state.Order.Status)
	}

	history, err := f.store.Orders.GetStatusHistory(ctx, placed.Order.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	want := []models.OrderStatus{models.OrderPending, models.OrderPreparing, models.OrderReady, models.OrderServed, models.OrderPaid}
	if len(history) != len(want) {
		t.Fatalf("history has %d entries, want %d", len(history), len(want))
	}
	for i, h := range history {
		if h.Status != want[i] {
			t.Fatalf("history[%d] = %s, want %s", i, h.Status, want[i])
		}
	}

	for _, key := range []string{"table.WAITING_FOR_ORDER", "order.PENDING", "order_item.READY", "order.READY", "table.PAYING", "order.PAID", "table.CLOSED"} {
		if !f.events.has(key) {
			t.Errorf("no %s event published", key)
		}
	}

	// The table can seat the next customer.
	if _, err := f.svc.PlaceOrder(ctx, tableID, request(f.beer.ID)); err != nil {
		t.Fatalf("PlaceOrder after close: %v", err)
	}
}

func TestPlaceOrder_Rejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	busy := f.table(t)
	if _, err := f.svc.PlaceOrder(ctx, busy, request(f.beer.ID)); err != nil {
		t.Fatalf("seed order: %v", err)
	}
	free := f.table(t)

	retired := &models.Product{Name: "Old stout", Price: 5, Type: models.ProductBeer}
	if err := f.store.Products.Create(ctx, retired); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		tableID int
		req     *models.PlaceOrderRequest
		want    apperror.Kind
	}{
		{"unknown table", 999, request(f.beer.ID), apperror.KindNotFound},
		{"table already seated", busy, request(f.beer.ID), apperror.KindConflict},
		{"no items", free, request(), apperror.KindInvalid},
		{"unknown table with no items", 999, request(), apperror.KindNotFound},
		{"seated table with no items", busy, request(), apperror.KindConflict},
		{"unknown product", free, request(404), apperror.KindInvalid},
		{"inactive product", free, request(retired.ID), apperror.KindInvalid},
		{"empty client name", free, &models.PlaceOrderRequest{Items: []models.PlaceOrderItem{{ProductID: f.beer.ID}}}, apperror.KindInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.PlaceOrder(ctx, tt.tableID, tt.req)
			assertKind(t, err, tt.want)
		})
	}

	if got := f.tableStatus(t, free); got != models.TableClosed {
		t.Fatalf("rejected orders must leave the table CLOSED, got %s", got)
	}
}

func TestPlaceOrder_TrimsClientName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := request(f.beer.ID)
	req.ClientName = "  Lucia  "
	placed, err := f.svc.PlaceOrder(ctx, f.table(t), req)
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	stored, err := f.store.Orders.GetByID(ctx, placed.Order.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.ClientName != "Lucia" {
		t.Fatalf("client name = %q, want %q", stored.ClientName, "Lucia")
	}
}

func TestPlaceOrder_ClientSuppliedID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := request(f.beer.ID)
	req.ID = "ab12c"
	placed, err := f.svc.PlaceOrder(ctx, f.table(t), req)
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if placed.Order.ID != "AB12C" {
		t.Fatalf("order id = %q, want AB12C", placed.Order.ID)
	}

	other := f.table(t)
	_, err = f.svc.PlaceOrder(ctx, other, req)
	assertKind(t, err, apperror.KindConflict)
	if got := f.tableStatus(t, other); got != models.TableClosed {
		t.Fatalf("table status = %s, want CLOSED", got)
	}
}

func TestPlaceOrder_ItemFailureDeletesOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tableID := f.table(t)
	f.items.batchErr = errors.New("disk full")

	req := request(f.beer.ID)
	req.ID = "ROLLB"
	_, err := f.svc.PlaceOrder(ctx, tableID, req)
	assertKind(t, err, apperror.KindInternal)

	if _, err := f.store.Orders.GetByID(ctx, "ROLLB"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("order must be rolled back, GetByID err = %v", err)
	}
	if got := f.tableStatus(t, tableID); got != models.TableClosed {
		t.Fatalf("table status = %s, want CLOSED", got)
	}
}

func TestPlaceOrder_TableFailureDeletesOrderAndItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tableID := f.table(t)
	f.tables.casErr = errors.New("connection reset")

	req := request(f.beer.ID, f.meal.ID)
	req.ID = "TBL01"
	_, err := f.svc.PlaceOrder(ctx, tableID, req)
	assertKind(t, err, apperror.KindInternal)

	if _, err := f.store.Orders.GetByID(ctx, "TBL01"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("order must be rolled back, GetByID err = %v", err)
	}
	items, err := f.store.OrderItems.GetByOrderID(ctx, "TBL01")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 0 {
		t.Fatalf("items must be rolled back, %d left", len(items))
	}
}

func TestPlaceOrder_ConcurrentOnSameTable(t *testing.T) {
	f := newFixture(t)
	tableID := f.table(t)

	const callers = 12
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := request(f.beer.ID)
			req.ClientName = fmt.Sprintf("guest %d", i)
			_, err := f.svc.PlaceOrder(context.Background(), tableID, req)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case apperror.Is(err, apperror.KindConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if succeeded != 1 || conflicts != callers-1 {
		t.Fatalf("succeeded = %d, conflicts = %d", succeeded, conflicts)
	}
	active, err := f.store.Orders.GetAllByStatus(context.Background(), models.OrderPending)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 {
		t.Fatalf("expected one active order, found %d", len(active))
	}
}

// readyTable seats a table and prepares its single beer.
func (f *fixture) readyTable(t *testing.T) (int, string) {
	t.Helper()
	ctx := context.Background()
	tableID := f.table(t)
	placed, err := f.svc.PlaceOrder(ctx, tableID, request(f.beer.ID))
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if _, err := f.svc.StartPreparation(ctx, placed.Items[0].ID); err != nil {
		t.Fatalf("StartPreparation: %v", err)
	}
	if _, err := f.svc.FinishPreparation(ctx, placed.Items[0].ID); err != nil {
		t.Fatalf("FinishPreparation: %v", err)
	}
	return tableID, placed.Order.ID
}

func TestServe_TableFailureRestoresOrder(t *testing.T) {
	f := newFixture(t)
	tableID, orderID := f.readyTable(t)
	f.tables.casErr = errors.New("connection reset")

	_, err := f.svc.Serve(context.Background(), tableID)
	assertKind(t, err, apperror.KindInternal)

	if got := f.orderStatus(t, orderID); got != models.OrderReady {
		t.Fatalf("order status = %s, want READY after compensation", got)
	}
	if got := f.tableStatus(t, tableID); got != models.TableWaitingForOrder {
		t.Fatalf("table status = %s", got)
	}

	f.tables.casErr = nil
	if _, err := f.svc.Serve(context.Background(), tableID); err != nil {
		t.Fatalf("Serve after recovery: %v", err)
	}
}

func TestClose_TableFailureRestoresOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tableID, orderID := f.readyTable(t)
	if _, err := f.svc.Serve(ctx, tableID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Charge(ctx, tableID); err != nil {
		t.Fatal(err)
	}

	f.tables.casErr = errors.New("timeout")
	_, err := f.svc.Close(ctx, tableID)
	assertKind(t, err, apperror.KindInternal)

	if got := f.orderStatus(t, orderID); got != models.OrderServed {
		t.Fatalf("order status = %s, want SERVED", got)
	}
}

func TestFinishPreparation_Twice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tableID := f.table(t)
	placed, err := f.svc.PlaceOrder(ctx, tableID, request(f.beer.ID))
	if err != nil {
		t.Fatal(err)
	}
	itemID := placed.Items[0].ID

	_, err = f.svc.FinishPreparation(ctx, itemID)
	assertKind(t, err, apperror.KindConflict)

	if _, err := f.svc.StartPreparation(ctx, itemID); err != nil {
		t.Fatal(err)
	}
	_, err = f.svc.StartPreparation(ctx, itemID)
	assertKind(t, err, apperror.KindConflict)

	if _, err := f.svc.FinishPreparation(ctx, itemID); err != nil {
		t.Fatal(err)
	}
	_, err = f.svc.FinishPreparation(ctx, itemID)
	assertKind(t, err, apperror.KindConflict)

	if got := f.orderStatus(t, placed.Order.ID); got != models.OrderReady {
		t.Fatalf("order status = %s, want READY", got)
	}

	_, err = f.svc.StartPreparation(ctx, 9999)
	assertKind(t, err, apperror.KindNotFound)
}

func TestStartPreparation_Station(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	placed, err := f.svc.PlaceOrder(ctx, f.table(t), request(f.meal.ID))
	if err != nil {
		t.Fatal(err)
	}
	itemID := placed.Items[0].ID

	brewer := auth.WithClaims(ctx, &auth.Claims{Email: "brewer@comanda.test", Role: models.RoleBrewer})
	_, err = f.svc.StartPreparation(brewer, itemID)
	assertKind(t, err, apperror.KindForbidden)

	chef := auth.WithClaims(ctx, &auth.Claims{Email: "chef@comanda.test", Role: models.RoleChef})
	if _, err := f.svc.StartPreparation(chef, itemID); err != nil {
		t.Fatalf("chef StartPreparation: %v", err)
	}

	history, err := f.store.Orders.GetStatusHistory(ctx, placed.Order.ID)
	if err != nil {
		t.Fatal(err)
	}
	if last := history[len(history)-1]; last.ChangedBy != "chef@comanda.test" {
		t.Fatalf("changed_by = %q", last.ChangedBy)
	}
}

func TestGetPendingTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tableID := f.table(t)
	placed, err := f.svc.PlaceOrder(ctx, tableID, request(f.meal.ID))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.StartPreparation(ctx, placed.Items[0].ID); err != nil {
		t.Fatal(err)
	}

	f.clock.Advance(100 * time.Second)
	pending, err := f.svc.GetPendingTime(ctx, tableID, placed.Order.ID)
	if err != nil {
		t.Fatalf("GetPendingTime: %v", err)
	}
	if pending.Seconds != 200 {
		t.Fatalf("pending = %d, want 200", pending.Seconds)
	}

	f.clock.Advance(300 * time.Second)
	pending, err = f.svc.GetPendingTime(ctx, tableID, strings.ToLower(placed.Order.ID))
	if err != nil {
		t.Fatalf("GetPendingTime: %v", err)
	}
	if pending.Seconds != -100 {
		t.Fatalf("pending = %d, want -100", pending.Seconds)
	}

	_, err = f.svc.GetPendingTime(ctx, f.table(t), placed.Order.ID)
	assertKind(t, err, apperror.KindNotFound)
	_, err = f.svc.GetPendingTime(ctx, tableID, "ZZZZZ")
	assertKind(t, err, apperror.KindNotFound)

	if _, err := f.svc.FinishPreparation(ctx, placed.Items[0].ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Serve(ctx, tableID); err != nil {
		t.Fatal(err)
	}
	_, err = f.svc.GetPendingTime(ctx, tableID, placed.Order.ID)
	assertKind(t, err, apperror.KindConflict)
}

func TestPendingSeconds(t *testing.T) {
	created := epoch
	done := epoch.Add(time.Minute)
	products := map[int]*models.Product{
		1: {ID: 1, EstimatedTime: 60},
		2: {ID: 2, EstimatedTime: 600},
	}
	order := models.Order{ID: "PEND1", CreatedAt: created}

	tests := []struct {
		name  string
		items []models.OrderItem
		now   time.Time
		want  int64
	}{
		{"longest unfinished wins", []models.OrderItem{{ProductID: 1}, {ProductID: 2}}, created.Add(30 * time.Second), 570},
		{"finished items are ignored", []models.OrderItem{{ProductID: 1}, {ProductID: 2, StartTime: &created, EndTime: &done}}, created.Add(90 * time.Second), -30},
		{"nothing left", []models.OrderItem{{ProductID: 1, StartTime: &created, EndTime: &done}}, created.Add(time.Hour), 0},
		{"no items", nil, created, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PendingSeconds(order, tt.items, products, tt.now); got != tt.want {
				t.Fatalf("PendingSeconds = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPendingAndReadyOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.svc.PlaceOrder(ctx, f.table(t), request(f.meal.ID)); err != nil {
		t.Fatal(err)
	}
	_, readyID := f.readyTable(t)

	pending, err := f.svc.GetPendingOrders(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].PendingSeconds != int64(f.meal.EstimatedTime) {
		t.Fatalf("pending orders = %+v", pending)
	}

	ready, err := f.svc.GetReadyOrders(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ready) != 1 || ready[0].ID != readyID {
		t.Fatalf("ready orders = %+v", ready)
	}
}

func TestTakePicture(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tableID := f.table(t)

	_, err := f.svc.TakePicture(ctx, tableID, bytes.NewReader([]byte("jpeg")))
	assertKind(t, err, apperror.KindConflict)
	_, err = f.svc.TakePicture(ctx, 999, bytes.NewReader([]byte("jpeg")))
	assertKind(t, err, apperror.KindNotFound)

	placed, err := f.svc.PlaceOrder(ctx, tableID, request(f.beer.ID))
	if err != nil {
		t.Fatal(err)
	}
	location, err := f.svc.TakePicture(ctx, tableID, bytes.NewReader([]byte("jpeg")))
	if err != nil {
		t.Fatalf("TakePicture: %v", err)
	}
	wantName := fmt.Sprintf("%d-%s.jpg", tableID, placed.Order.ID)
	if f.images.dir != PictureDir || f.images.name != wantName || string(f.images.data) != "jpeg" {
		t.Fatalf("stored %s/%s %q", f.images.dir, f.images.name, f.images.data)
	}
	if location != PictureDir+"/"+wantName {
		t.Fatalf("location = %q", location)
	}

	f.images.err = errors.New("read-only filesystem")
	_, err = f.svc.TakePicture(ctx, tableID, bytes.NewReader(nil))
	assertKind(t, err, apperror.KindInternal)
}

func TestPublishFailureDoesNotFailTransition(t *testing.T) {
	f := newFixture(t)
	f.events.err = errors.New("broker down")

	if _, err := f.svc.PlaceOrder(context.Background(), f.table(t), request(f.beer.ID)); err != nil {
		t.Fatalf("PlaceOrder must succeed while events fail: %v", err)
	}
}
