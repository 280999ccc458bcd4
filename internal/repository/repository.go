// Package repository declares the entity store used by the services.
// Implementations live in the postgres and memory subpackages.
package repository

import (
	"context"
	"errors"
	"time"

	"comanda/internal/models"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique constraint would be violated.
	ErrDuplicate = errors.New("duplicate")
)

type TableRepository interface {
	GetByID(ctx context.Context, id int) (*models.Table, error)
	GetAll(ctx context.Context) ([]models.Table, error)
	GetAllByStatus(ctx context.Context, status models.TableStatus) ([]models.Table, error)
	Create(ctx context.Context, table *models.Table) error
	// CompareAndSetStatus moves an active table from one status to another
	// atomically and reports whether the row was in the expected state.
	CompareAndSetStatus(ctx context.Context, id int, from, to models.TableStatus) (bool, error)
	// Deactivate soft-deletes the table.
	Deactivate(ctx context.Context, id int) (bool, error)
	// GetMostPopular returns the active table with the most orders ever placed.
	GetMostPopular(ctx context.Context) (*models.PopularTable, error)
}

type OrderRepository interface {
	GetByID(ctx context.Context, id string) (*models.Order, error)
	GetAll(ctx context.Context) ([]models.Order, error)
	GetAllByStatus(ctx context.Context, statuses ...models.OrderStatus) ([]models.Order, error)
	// GetActiveForTable returns the table's order that is not PAID.
	GetActiveForTable(ctx context.Context, tableID int) (*models.Order, error)
	ExistsByID(ctx context.Context, id string) (bool, error)
	// Create inserts the order and its first history entry. It returns
	// ErrDuplicate when the id is taken or the table already has an active order.
	Create(ctx context.Context, order *models.Order, changedBy string) error
	// UpdateStatus is a compare-and-set on the order status that also appends
	// to the status history.
	UpdateStatus(ctx context.Context, id string, from, to models.OrderStatus, changedBy string) (bool, error)
	GetStatusHistory(ctx context.Context, id string) ([]models.OrderStatusHistory, error)
	// Delete removes the order row. Its items must already be gone.
	Delete(ctx context.Context, id string) (bool, error)
}

type OrderItemRepository interface {
	GetByID(ctx context.Context, id int) (*models.OrderItem, error)
	GetAll(ctx context.Context) ([]models.OrderItem, error)
	GetByOrderID(ctx context.Context, orderID string) ([]models.OrderItem, error)
	// GetAllPending returns items not yet READY. A nil productType matches every type.
	GetAllPending(ctx context.Context, productType *models.ProductType) ([]models.OrderItem, error)
	// CreateBatch stores all items or none of them and fills in their ids.
	CreateBatch(ctx context.Context, items []*models.OrderItem) error
	// MarkStarted sets start_time on a PENDING item; false means it was not PENDING.
	MarkStarted(ctx context.Context, id int, at time.Time) (bool, error)
	// MarkFinished sets end_time on a PREPARING item; false means it was not PREPARING.
	MarkFinished(ctx context.Context, id int, at time.Time) (bool, error)
	Delete(ctx context.Context, id int) (bool, error)
	DeleteByOrderID(ctx context.Context, orderID string) (int, error)
}

type ProductRepository interface {
	GetByID(ctx context.Context, id int) (*models.Product, error)
	GetByIDs(ctx context.Context, ids []int) (map[int]*models.Product, error)
	GetAll(ctx context.Context) ([]models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	Save(ctx context.Context, product *models.Product) error
	Deactivate(ctx context.Context, id int) (bool, error)
}

type UserRepository interface {
	GetByID(ctx context.Context, id int) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetAll(ctx context.Context) ([]models.User, error)
	Create(ctx context.Context, user *models.User) error
	Save(ctx context.Context, user *models.User) error
	Deactivate(ctx context.Context, id int) (bool, error)
}

type SurveyRepository interface {
	GetByID(ctx context.Context, id int) (*models.Survey, error)
	GetByOrderID(ctx context.Context, orderID string) (*models.Survey, error)
	GetAll(ctx context.Context) ([]models.Survey, error)
	// GetBest returns up to limit surveys ordered by average rating, best first.
	GetBest(ctx context.Context, limit int) ([]models.Survey, error)
	Create(ctx context.Context, survey *models.Survey) error
	Save(ctx context.Context, survey *models.Survey) error
	Delete(ctx context.Context, id int) (bool, error)
}

// Store groups every repository behind one handle.
type Store struct {
	Tables     TableRepository
	Orders     OrderRepository
	OrderItems OrderItemRepository
	Products   ProductRepository
	Users      UserRepository
	Surveys    SurveyRepository
	// Ping checks the backing store is reachable.
	Ping func(ctx context.Context) error
}
