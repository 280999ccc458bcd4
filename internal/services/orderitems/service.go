// Package orderitems tracks single products of an order through the kitchen.
package orderitems

import (
	"context"
	"errors"
	"fmt"
	"time"

	"comanda/internal/logger"
	"comanda/internal/models"
	"comanda/internal/repository"
)

var (
	// ErrInvalidState is returned when an item is not in the status the
	// requested step starts from.
	ErrInvalidState = errors.New("item is not in the expected state")
	// ErrOrderInService is returned when deleting an item of an unpaid order.
	ErrOrderInService = errors.New("order is still in service")
)

type Service struct {
	items  repository.OrderItemRepository
	orders repository.OrderRepository
	logger *logger.Logger
	now    func() time.Time
}

func NewService(items repository.OrderItemRepository, orders repository.OrderRepository, log *logger.Logger) *Service {
	return &Service{items: items, orders: orders, logger: log, now: time.Now}
}

// WithClock overrides the time source for start and end timestamps.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateForOrder stores one PENDING item per product, all or nothing.
func (s *Service) CreateForOrder(ctx context.Context, orderID string, productIDs []int) ([]models.OrderItem, error) {
	batch := make([]*models.OrderItem, len(productIDs))
	for i, pid := range productIDs {
		batch[i] = &models.OrderItem{OrderID: orderID, ProductID: pid}
	}
	if err := s.items.CreateBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("failed to create items of order %s: %w", orderID, err)
	}

	out := make([]models.OrderItem, len(batch))
	for i, it := range batch {
		out[i] = *it
	}
	return out, nil
}

func (s *Service) GetByID(ctx context.Context, id int) (*models.OrderItem, error) {
	return s.items.GetByID(ctx, id)
}

func (s *Service) GetAll(ctx context.Context) ([]models.OrderItem, error) {
	return s.items.GetAll(ctx)
}

func (s *Service) GetByOrderID(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	return s.items.GetByOrderID(ctx, orderID)
}

// GetAllPendingByType lists PENDING and PREPARING items of one product type.
func (s *Service) GetAllPendingByType(ctx context.Context, productType models.ProductType) ([]models.OrderItem, error) {
	return s.items.GetAllPending(ctx, &productType)
}

// Queue is the work queue for a staff role. Roles without a station see
// every pending item.
func (s *Service) Queue(ctx context.Context, role models.Role) ([]models.OrderItem, error) {
	station, ok := role.Station()
	if !ok {
		return s.items.GetAllPending(ctx, nil)
	}
	return s.GetAllPendingByType(ctx, station)
}

// Start moves a PENDING item to PREPARING.
func (s *Service) Start(ctx context.Context, id int) (*models.OrderItem, error) {
	return s.step(ctx, id, "item_started", s.items.MarkStarted)
}

// Finish moves a PREPARING item to READY.
func (s *Service) Finish(ctx context.Context, id int) (*models.OrderItem, error) {
	return s.step(ctx, id, "item_finished", s.items.MarkFinished)
}

func (s *Service) step(ctx context.Context, id int, action string, mark func(context.Context, int, time.Time) (bool, error)) (*models.OrderItem, error) {
	ok, err := mark(ctx, id, s.now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update item %d: %w", id, err)
	}
	if !ok {
		return nil, ErrInvalidState
	}

	item, err := s.items.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Debug(action, fmt.Sprintf("Item %d of order %s is %s", item.ID, item.OrderID, item.Status()),
		logger.RequestIDFrom(ctx), map[string]interface{}{
			"item_id":  item.ID,
			"order_id": item.OrderID,
		})
	return item, nil
}

// Delete hard-deletes an item whose order is already PAID.
func (s *Service) Delete(ctx context.Context, id int) error {
	item, err := s.items.GetByID(ctx, id)
	if err != nil {
		return err
	}
	order, err := s.orders.GetByID(ctx, item.OrderID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	if order != nil && order.Status != models.OrderPaid {
		return ErrOrderInService
	}

	ok, err := s.items.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete item %d: %w", id, err)
	}
	if !ok {
		return repository.ErrNotFound
	}
	return nil
}
