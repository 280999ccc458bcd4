package orders

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
	// ErrStatusChanged means the order was modified concurrently.
	ErrStatusChanged = errors.New("order status changed concurrently")
	// ErrIDTaken is returned when a client-supplied order id already exists.
	ErrIDTaken = errors.New("order id already exists")
	// ErrTableBusy is returned when the table already has an unpaid order.
	ErrTableBusy = errors.New("table already has an active order")
	// ErrNotPaid is returned when deleting an order that is still in service.
	ErrNotPaid = errors.New("order is not paid")
)

const maxIDAttempts = 5

// Service is the order lifecycle and the aggregation that derives an order's
// status from its items.
type Service struct {
	orders repository.OrderRepository
	items  repository.OrderItemRepository
	logger *logger.Logger
	now    func() time.Time
}

func NewService(orders repository.OrderRepository, items repository.OrderItemRepository, log *logger.Logger) *Service {
	return &Service{orders: orders, items: items, logger: log, now: time.Now}
}

// WithClock overrides the creation time source; tests use it to age orders.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create stores a new PENDING order for the table. An empty id is generated.
func (s *Service) Create(ctx context.Context, tableID int, clientName, id, actor string) (*models.Order, error) {
	generated := id == ""
	id = models.NormalizeOrderID(id)
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		if generated {
			var err error
			if id, err = models.GenerateOrderID(); err != nil {
				return nil, err
			}
		}

		exists, err := s.orders.ExistsByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to check order id: %w", err)
		}
		if exists {
			if !generated {
				return nil, ErrIDTaken
			}
			continue
		}

		order := &models.Order{
			ID:         models.NormalizeOrderID(id),
			TableID:    tableID,
			ClientName: clientName,
			Status:     models.OrderPending,
			CreatedAt:  s.now().UTC(),
		}
		err = s.orders.Create(ctx, order, actor)
		if errors.Is(err, repository.ErrDuplicate) {
			taken, cerr := s.orders.ExistsByID(ctx, order.ID)
			if cerr != nil {
				return nil, fmt.Errorf("failed to check order id: %w", cerr)
			}
			switch {
			case taken && generated:
				continue
			case taken:
				return nil, ErrIDTaken
			default:
				return nil, ErrTableBusy
			}
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create order: %w", err)
		}
		return order, nil
	}
	return nil, fmt.Errorf("failed to generate a free order id after %d attempts", maxIDAttempts)
}

func (s *Service) GetByID(ctx context.Context, id string) (*models.Order, error) {
	return s.orders.GetByID(ctx, id)
}

func (s *Service) GetAll(ctx context.Context) ([]models.Order, error) {
	return s.orders.GetAll(ctx)
}

func (s *Service) GetAllByStatus(ctx context.Context, statuses ...models.OrderStatus) ([]models.Order, error) {
	return s.orders.GetAllByStatus(ctx, statuses...)
}

// GetActiveForTable returns repository.ErrNotFound when the table has no unpaid order.
func (s *Service) GetActiveForTable(ctx context.Context, tableID int) (*models.Order, error) {
	return s.orders.GetActiveForTable(ctx, tableID)
}

func (s *Service) GetHistory(ctx context.Context, id string) ([]models.OrderStatusHistory, error) {
	return s.orders.GetStatusHistory(ctx, id)
}

// SetStatus moves order from its current status to to. On success the
// passed order is updated; ErrStatusChanged means someone else got there first.
func (s *Service) SetStatus(ctx context.Context, order *models.Order, to models.OrderStatus, actor string) error {
	ok, err := s.orders.UpdateStatus(ctx, order.ID, order.Status, to, actor)
	if err != nil {
		return fmt.Errorf("failed to update order %s: %w", order.ID, err)
	}
	if !ok {
		return ErrStatusChanged
	}

	s.logger.Debug("order_status_changed", fmt.Sprintf("Order %s: %s -> %s", order.ID, order.Status, to),
		logger.RequestIDFrom(ctx), map[string]interface{}{
			"order_id":   order.ID,
			"old_status": order.Status,
			"new_status": to,
			"changed_by": actor,
		})
	order.Status = to
	order.UpdatedAt = s.now().UTC()
	return nil
}

// MarkPreparing moves a PENDING order to PREPARING. It is a no-op for any
// other status and reports whether it changed anything.
func (s *Service) MarkPreparing(ctx context.Context, orderID, actor string) (*models.Order, bool, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, false, err
	}
	if order.Status != models.OrderPending {
		return order, false, nil
	}

	err = s.SetStatus(ctx, order, models.OrderPreparing, actor)
	if errors.Is(err, ErrStatusChanged) {
		current, err := s.orders.GetByID(ctx, orderID)
		return current, false, err
	}
	if err != nil {
		return nil, false, err
	}
	return order, true, nil
}

// MarkReadyIfComplete moves the order to READY once every item is READY.
// Orders already READY or later are left alone.
func (s *Service) MarkReadyIfComplete(ctx context.Context, orderID, actor string) (*models.Order, bool, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, false, err
	}
	if !order.Status.Before(models.OrderReady) {
		return order, false, nil
	}

	items, err := s.items.GetByOrderID(ctx, order.ID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load items of order %s: %w", order.ID, err)
	}
	if !AllReady(items) {
		return order, false, nil
	}

	err = s.SetStatus(ctx, order, models.OrderReady, actor)
	if errors.Is(err, ErrStatusChanged) {
		// A concurrent finish may have already made it READY; retry once from the fresh status.
		if order, err = s.orders.GetByID(ctx, orderID); err != nil {
			return nil, false, err
		}
		if !order.Status.Before(models.OrderReady) {
			return order, false, nil
		}
		err = s.SetStatus(ctx, order, models.OrderReady, actor)
	}
	if err != nil {
		return nil, false, err
	}
	return order, true, nil
}

// AllReady reports whether a non-empty item list is fully prepared.
func AllReady(items []models.OrderItem) bool {
	if len(items) == 0 {
		return false
	}
	for _, it := range items {
		if it.Status() != models.ItemReady {
			return false
		}
	}
	return true
}

// Delete removes a PAID order, its items first.
func (s *Service) Delete(ctx context.Context, id string) error {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if order.Status != models.OrderPaid {
		return ErrNotPaid
	}
	return s.Discard(ctx, order.ID)
}

// Discard removes the order and its items regardless of status. The
// ordering flow uses it to undo a half-placed order.
func (s *Service) Discard(ctx context.Context, id string) error {
	if _, err := s.items.DeleteByOrderID(ctx, id); err != nil {
		return fmt.Errorf("failed to delete items of order %s: %w", id, err)
	}
	ok, err := s.orders.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete order %s: %w", id, err)
	}
	if !ok {
		return repository.ErrNotFound
	}
	return nil
}
