// Package ordering coordinates tables, orders and order items as one
// workflow. Every cross-entity status change goes through Service.
//
// Writes are ordered so that the table, the state other callers poll, is
// always the last thing to change: items before the table on placeOrder,
// the order before the table on serve, charge and close. When a later write
// fails the earlier ones are undone before the error is returned. A failed
// undo is logged as compensation_failed and not retried.
package ordering

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"comanda/internal/apperror"
	"comanda/internal/auth"
	"comanda/internal/imagestore"
	"comanda/internal/logger"
	"comanda/internal/messaging"
	"comanda/internal/models"
	"comanda/internal/repository"
	"comanda/internal/services/orderitems"
	"comanda/internal/services/orders"
	"comanda/internal/services/tables"
)

// PictureDir is the image store directory table pictures are written to.
const PictureDir = "tables"

type Service struct {
	tables   *tables.Service
	orders   *orders.Service
	items    *orderitems.Service
	products repository.ProductRepository
	images   imagestore.Store
	events   messaging.StatusPublisher
	logger   *logger.Logger
	now      func() time.Time
}

func NewService(
	tableService *tables.Service,
	orderService *orders.Service,
	itemService *orderitems.Service,
	products repository.ProductRepository,
	images imagestore.Store,
	events messaging.StatusPublisher,
	log *logger.Logger,
) *Service {
	if events == nil {
		events = messaging.NopPublisher{}
	}
	return &Service{
		tables:   tableService,
		orders:   orderService,
		items:    itemService,
		products: products,
		images:   images,
		events:   events,
		logger:   log,
		now:      time.Now,
	}
}

// WithClock overrides the time source used for pending time.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// PlacedOrder is a freshly placed order with its items.
type PlacedOrder struct {
	Order models.Order       `json:"order"`
	Items []models.OrderItem `json:"items"`
}

// TableState is the table and its active order after a transition.
type TableState struct {
	Table *models.Table `json:"table"`
	Order *models.Order `json:"order"`
}

// ItemProgress is an item after a kitchen step, with its possibly advanced order.
type ItemProgress struct {
	Item  *models.OrderItem `json:"item"`
	Order *models.Order     `json:"order"`
}

// PendingTime is the remaining preparation time of an order in seconds.
// Negative values mean the order is that many seconds late.
type PendingTime struct {
	OrderID string `json:"order_id"`
	TableID int    `json:"table_id"`
	Seconds int64  `json:"pending_seconds"`
}

// PlaceOrder seats a CLOSED table with a new order.
func (s *Service) PlaceOrder(ctx context.Context, tableID int, req *models.PlaceOrderRequest) (*PlacedOrder, error) {
	requestID := logger.RequestIDFrom(ctx)
	actor := auth.Actor(ctx)

	table, err := s.tables.GetByID(ctx, tableID)
	if err != nil {
		return nil, tableError(err, tableID)
	}
	if table.Status != models.TableClosed {
		return nil, apperror.Conflict("table %d is %s, orders can only be placed on a CLOSED table", tableID, table.Status)
	}

	// The payload is checked only once the table can take an order.
	if err := req.Validate(); err != nil {
		var verr models.ValidationError
		if errors.As(err, &verr) {
			return nil, apperror.Invalid("%s", verr.Error())
		}
		return nil, apperror.Invalid("%v", err)
	}
	clientName := strings.TrimSpace(req.ClientName)

	productIDs := make([]int, len(req.Items))
	for i, item := range req.Items {
		productIDs[i] = item.ProductID
	}
	if err := s.checkProducts(ctx, productIDs); err != nil {
		return nil, err
	}

	order, err := s.orders.Create(ctx, tableID, clientName, req.ID, actor)
	switch {
	case errors.Is(err, orders.ErrIDTaken):
		return nil, apperror.Conflict("order id %s is already in use", models.NormalizeOrderID(req.ID))
	case errors.Is(err, orders.ErrTableBusy):
		return nil, apperror.Conflict("table %d already has an active order", tableID)
	case err != nil:
		return nil, apperror.Internal("Failed to save order", err)
	}

	items, err := s.items.CreateForOrder(ctx, order.ID, productIDs)
	if err != nil {
		s.discardOrder(ctx, order.ID)
		return nil, apperror.Internal("Failed to save order items", err)
	}

	ok, err := s.tables.Transition(ctx, tableID, models.TableClosed, models.TableWaitingForOrder)
	if err != nil || !ok {
		s.discardOrder(ctx, order.ID)
		if err != nil {
			return nil, apperror.Internal("Failed to update table", err)
		}
		return nil, apperror.Conflict("table %d changed status while the order was placed", tableID)
	}

	s.logger.Info("order_placed", fmt.Sprintf("Order %s placed on table %d", order.ID, tableID), requestID,
		map[string]interface{}{
			"order_id":    order.ID,
			"table_id":    tableID,
			"client_name": order.ClientName,
			"item_count":  len(items),
			"placed_by":   actor,
		})
	s.publishTable(ctx, tableID, models.TableClosed, models.TableWaitingForOrder)
	s.publishOrder(ctx, order, "", models.OrderPending)

	return &PlacedOrder{Order: *order, Items: items}, nil
}

// checkProducts makes sure every product exists and is on the menu.
func (s *Service) checkProducts(ctx context.Context, ids []int) error {
	found, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return apperror.Internal("Failed to load products", err)
	}
	for _, id := range ids {
		p, ok := found[id]
		if !ok {
			return apperror.Invalid("product %d does not exist", id)
		}
		if !p.Active {
			return apperror.Invalid("product %d is not available", id)
		}
	}
	return nil
}

func (s *Service) discardOrder(ctx context.Context, orderID string) {
	if err := s.orders.Discard(ctx, orderID); err != nil {
		s.logger.Error("compensation_failed", fmt.Sprintf("Failed to roll back order %s", orderID),
			logger.RequestIDFrom(ctx), err, map[string]interface{}{"order_id": orderID})
	}
}

// TakePicture stores a picture of a table that has an active order.
func (s *Service) TakePicture(ctx context.Context, tableID int, picture io.Reader) (string, error) {
	if _, err := s.tables.GetByID(ctx, tableID); err != nil {
		return "", tableError(err, tableID)
	}
	order, err := s.orders.GetActiveForTable(ctx, tableID)
	if errors.Is(err, repository.ErrNotFound) {
		return "", apperror.Conflict("table %d has no active order", tableID)
	}
	if err != nil {
		return "", apperror.Internal("Failed to load order", err)
	}

	name := fmt.Sprintf("%d-%s.jpg", tableID, order.ID)
	location, err := s.images.Save(ctx, picture, PictureDir, name)
	if err != nil {
		return "", apperror.Internal("Failed to store picture", err)
	}

	s.logger.Info("picture_taken", fmt.Sprintf("Picture of table %d stored", tableID), logger.RequestIDFrom(ctx),
		map[string]interface{}{
			"table_id": tableID,
			"order_id": order.ID,
			"location": location,
		})
	return location, nil
}

// transition is one row of the table/order state machine.
type transition struct {
	action             string
	tableFrom, tableTo models.TableStatus
	orderFrom, orderTo models.OrderStatus
}

var (
	serveStep  = transition{"serve", models.TableWaitingForOrder, models.TableEating, models.OrderReady, models.OrderServed}
	chargeStep = transition{"charge", models.TableEating, models.TablePaying, models.OrderServed, models.OrderServed}
	closeStep  = transition{"close", models.TablePaying, models.TableClosed, models.OrderServed, models.OrderPaid}
)

// Serve brings a READY order to its table.
func (s *Service) Serve(ctx context.Context, tableID int) (*TableState, error) {
	return s.advance(ctx, tableID, serveStep)
}

// Charge asks for the bill and returns the amount due.
func (s *Service) Charge(ctx context.Context, tableID int) (*models.ChargeResult, error) {
	state, err := s.advance(ctx, tableID, chargeStep)
	if err != nil {
		return nil, err
	}

	amount, err := s.orderTotal(ctx, state.Order.ID)
	if err != nil {
		return nil, apperror.Internal("Failed to compute the bill", err)
	}
	return &models.ChargeResult{Order: state.Order, Amount: amount}, nil
}

// Close marks the order PAID and frees the table.
func (s *Service) Close(ctx context.Context, tableID int) (*TableState, error) {
	return s.advance(ctx, tableID, closeStep)
}

func (s *Service) advance(ctx context.Context, tableID int, t transition) (*TableState, error) {
	actor := auth.Actor(ctx)

	table, err := s.tables.GetByID(ctx, tableID)
	if err != nil {
		return nil, tableError(err, tableID)
	}
	if table.Status != t.tableFrom {
		return nil, apperror.Conflict("cannot %s table %d: table is %s, expected %s", t.action, tableID, table.Status, t.tableFrom)
	}

	order, err := s.orders.GetActiveForTable(ctx, tableID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.Conflict("cannot %s table %d: it has no active order", t.action, tableID)
	}
	if err != nil {
		return nil, apperror.Internal("Failed to load order", err)
	}
	if order.Status != t.orderFrom {
		return nil, apperror.Conflict("cannot %s table %d: order %s is %s, expected %s", t.action, tableID, order.ID, order.Status, t.orderFrom)
	}

	orderChanged := t.orderFrom != t.orderTo
	if orderChanged {
		err := s.orders.SetStatus(ctx, order, t.orderTo, actor)
		if errors.Is(err, orders.ErrStatusChanged) {
			return nil, apperror.Conflict("cannot %s table %d: order %s changed concurrently", t.action, tableID, order.ID)
		}
		if err != nil {
			return nil, apperror.Internal("Failed to update order", err)
		}
	}

	ok, err := s.tables.Transition(ctx, tableID, t.tableFrom, t.tableTo)
	if err != nil || !ok {
		if orderChanged {
			s.revertOrder(ctx, order, t.orderFrom, actor)
		}
		if err != nil {
			return nil, apperror.Internal("Failed to update table", err)
		}
		return nil, apperror.Conflict("cannot %s table %d: table changed concurrently", t.action, tableID)
	}
	table.Status = t.tableTo

	s.logger.Info("table_"+t.action, fmt.Sprintf("Table %d: %s -> %s", tableID, t.tableFrom, t.tableTo),
		logger.RequestIDFrom(ctx), map[string]interface{}{
			"table_id":     tableID,
			"order_id":     order.ID,
			"order_status": order.Status,
			"changed_by":   actor,
		})
	if orderChanged {
		s.publishOrder(ctx, order, t.orderFrom, t.orderTo)
	}
	s.publishTable(ctx, tableID, t.tableFrom, t.tableTo)

	return &TableState{Table: table, Order: order}, nil
}

func (s *Service) revertOrder(ctx context.Context, order *models.Order, to models.OrderStatus, actor string) {
	if err := s.orders.SetStatus(ctx, order, to, actor); err != nil {
		s.logger.Error("compensation_failed", fmt.Sprintf("Failed to restore order %s to %s", order.ID, to),
			logger.RequestIDFrom(ctx), err, map[string]interface{}{
				"order_id": order.ID,
				"status":   order.Status,
			})
	}
}

func (s *Service) orderTotal(ctx context.Context, orderID string) (float64, error) {
	items, err := s.items.GetByOrderID(ctx, orderID)
	if err != nil {
		return 0, err
	}
	products, err := s.products.GetByIDs(ctx, productIDsOf(items))
	if err != nil {
		return 0, err
	}

	var total float64
	for _, it := range items {
		if p, ok := products[it.ProductID]; ok {
			total += p.Price
		}
	}
	return total, nil
}

// StartPreparation starts an item; the first started item moves its order to PREPARING.
func (s *Service) StartPreparation(ctx context.Context, itemID int) (*ItemProgress, error) {
	if err := s.checkStation(ctx, itemID); err != nil {
		return nil, err
	}

	item, err := s.items.Start(ctx, itemID)
	if err != nil {
		return nil, itemError(err, itemID)
	}
	s.publishItem(ctx, item, models.ItemPending)

	order, changed, err := s.orders.MarkPreparing(ctx, item.OrderID, auth.Actor(ctx))
	if err != nil {
		return nil, apperror.Internal("Failed to update order", err)
	}
	if changed {
		s.publishOrder(ctx, order, models.OrderPending, models.OrderPreparing)
	}
	return &ItemProgress{Item: item, Order: order}, nil
}

// FinishPreparation finishes an item; the last finished item moves its order to READY.
func (s *Service) FinishPreparation(ctx context.Context, itemID int) (*ItemProgress, error) {
	if err := s.checkStation(ctx, itemID); err != nil {
		return nil, err
	}

	item, err := s.items.Finish(ctx, itemID)
	if err != nil {
		return nil, itemError(err, itemID)
	}
	s.publishItem(ctx, item, models.ItemPreparing)

	previous := models.OrderStatus("")
	if current, err := s.orders.GetByID(ctx, item.OrderID); err == nil {
		previous = current.Status
	}
	order, changed, err := s.orders.MarkReadyIfComplete(ctx, item.OrderID, auth.Actor(ctx))
	if err != nil {
		return nil, apperror.Internal("Failed to update order", err)
	}
	if changed {
		s.logger.Info("order_ready", fmt.Sprintf("Order %s is ready", order.ID), logger.RequestIDFrom(ctx),
			map[string]interface{}{"order_id": order.ID, "table_id": order.TableID})
		s.publishOrder(ctx, order, previous, models.OrderReady)
	}
	return &ItemProgress{Item: item, Order: order}, nil
}

// checkStation keeps kitchen staff on the items of their own station.
// Partners and callers without a role pass.
func (s *Service) checkStation(ctx context.Context, itemID int) error {
	role := auth.RoleFrom(ctx)
	station, ok := role.Station()
	if !ok {
		return nil
	}

	item, err := s.items.GetByID(ctx, itemID)
	if err != nil {
		return itemError(err, itemID)
	}
	product, err := s.products.GetByID(ctx, item.ProductID)
	if err != nil {
		return apperror.Internal("Failed to load product", err)
	}
	if product.Type != station {
		return apperror.Forbidden(fmt.Sprintf("a %s cannot prepare %s items", role, product.Type))
	}
	return nil
}

// GetPendingTime reports how long an order of a waiting table still needs.
func (s *Service) GetPendingTime(ctx context.Context, tableID int, orderID string) (*PendingTime, error) {
	table, err := s.tables.GetByID(ctx, tableID)
	if err != nil {
		return nil, tableError(err, tableID)
	}
	order, err := s.orders.GetByID(ctx, models.NormalizeOrderID(orderID))
	if errors.Is(err, repository.ErrNotFound) || (err == nil && order.TableID != tableID) {
		return nil, apperror.NotFound("order %s does not exist on table %d", models.NormalizeOrderID(orderID), tableID)
	}
	if err != nil {
		return nil, apperror.Internal("Failed to load order", err)
	}
	if table.Status != models.TableWaitingForOrder {
		return nil, apperror.Conflict("table %d is %s, pending time is only known while WAITING_FOR_ORDER", tableID, table.Status)
	}

	pending, err := s.pendingOrders(ctx, []models.Order{*order})
	if err != nil {
		return nil, apperror.Internal("Failed to compute pending time", err)
	}
	return &PendingTime{OrderID: order.ID, TableID: tableID, Seconds: pending[0].PendingSeconds}, nil
}

// GetPendingOrders lists PENDING and PREPARING orders with their pending time.
func (s *Service) GetPendingOrders(ctx context.Context) ([]models.PendingOrder, error) {
	list, err := s.orders.GetAllByStatus(ctx, models.OrderPending, models.OrderPreparing)
	if err != nil {
		return nil, apperror.Internal("Failed to load orders", err)
	}
	pending, err := s.pendingOrders(ctx, list)
	if err != nil {
		return nil, apperror.Internal("Failed to compute pending time", err)
	}
	return pending, nil
}

// GetReadyOrders lists orders waiting to be served.
func (s *Service) GetReadyOrders(ctx context.Context) ([]models.Order, error) {
	list, err := s.orders.GetAllByStatus(ctx, models.OrderReady)
	if err != nil {
		return nil, apperror.Internal("Failed to load orders", err)
	}
	return list, nil
}

func (s *Service) pendingOrders(ctx context.Context, list []models.Order) ([]models.PendingOrder, error) {
	itemsByOrder := make(map[string][]models.OrderItem, len(list))
	var all []models.OrderItem
	for _, o := range list {
		items, err := s.items.GetByOrderID(ctx, o.ID)
		if err != nil {
			return nil, err
		}
		itemsByOrder[o.ID] = items
		all = append(all, items...)
	}

	products, err := s.products.GetByIDs(ctx, productIDsOf(all))
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := make([]models.PendingOrder, len(list))
	for i, o := range list {
		out[i] = models.PendingOrder{
			Order:          o,
			PendingSeconds: PendingSeconds(o, itemsByOrder[o.ID], products, now),
		}
	}
	return out, nil
}

// PendingSeconds is the longest estimated time among the order's unfinished
// items minus the seconds elapsed since the order was created. It is 0 when
// nothing is left to prepare.
func PendingSeconds(order models.Order, items []models.OrderItem, products map[int]*models.Product, now time.Time) int64 {
	longest := -1
	for _, it := range items {
		if it.Status() == models.ItemReady {
			continue
		}
		if p, ok := products[it.ProductID]; ok && p.EstimatedTime > longest {
			longest = p.EstimatedTime
		}
	}
	if longest < 0 {
		return 0
	}
	elapsed := int64(now.Sub(order.CreatedAt) / time.Second)
	return int64(longest) - elapsed
}

func productIDsOf(items []models.OrderItem) []int {
	seen := make(map[int]bool, len(items))
	ids := make([]int, 0, len(items))
	for _, it := range items {
		if !seen[it.ProductID] {
			seen[it.ProductID] = true
			ids = append(ids, it.ProductID)
		}
	}
	return ids
}

func (s *Service) publishTable(ctx context.Context, tableID int, from, to models.TableStatus) {
	s.publish(ctx, models.NewStatusUpdate(models.EntityTable, strconv.Itoa(tableID), tableID, string(from), string(to), auth.Actor(ctx)))
}

func (s *Service) publishOrder(ctx context.Context, order *models.Order, from, to models.OrderStatus) {
	s.publish(ctx, models.NewStatusUpdate(models.EntityOrder, order.ID, order.TableID, string(from), string(to), auth.Actor(ctx)))
}

func (s *Service) publishItem(ctx context.Context, item *models.OrderItem, from models.ItemStatus) {
	s.publish(ctx, models.NewStatusUpdate(models.EntityOrderItem, strconv.Itoa(item.ID), 0, string(from), string(item.Status()), auth.Actor(ctx)))
}

// publish never fails the caller; the state change is already committed.
func (s *Service) publish(ctx context.Context, msg *models.StatusUpdateMessage) {
	if err := s.events.PublishStatus(ctx, msg); err != nil {
		s.logger.Error("status_publish_failed", fmt.Sprintf("Failed to publish %s status update", msg.Entity),
			logger.RequestIDFrom(ctx), err, map[string]interface{}{
				"entity":     msg.Entity,
				"entity_id":  msg.EntityID,
				"new_status": msg.NewStatus,
			})
	}
}

func tableError(err error, tableID int) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.NotFound("table %d does not exist", tableID)
	}
	return apperror.Internal("Failed to load table", err)
}

func itemError(err error, itemID int) error {
	switch {
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, orderitems.ErrInvalidState):
		return orderitems.MapError(err, itemID)
	}
	return apperror.Internal("Failed to update item", err)
}
