// Package postgres implements the entity store on PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"comanda/internal/database"
	"comanda/internal/models"
	"comanda/internal/repository"
)

const uniqueViolation = "23505"

// New returns a Store backed by db.
func New(db *database.DB) *repository.Store {
	return &repository.Store{
		Tables:     &TableRepo{db: db},
		Orders:     &OrderRepo{db: db},
		OrderItems: &OrderItemRepo{db: db},
		Products:   &ProductRepo{db: db},
		Users:      &UserRepo{db: db},
		Surveys:    &SurveyRepo{db: db},
		Ping:       db.Ping,
	}
}

// mapErr converts driver errors into repository sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", repository.ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}

func affected(tag pgconn.CommandTag, err error) (bool, error) {
	if err != nil {
		return false, mapErr(err)
	}
	return tag.RowsAffected() > 0, nil
}

func collect[T any](rows pgx.Rows, err error, scan func(pgx.Row) (*T, error)) ([]T, error) {
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

type TableRepo struct{ db *database.DB }

func scanTable(row pgx.Row) (*models.Table, error) {
	var t models.Table
	if err := row.Scan(&t.ID, &t.Status, &t.Active, &t.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &t, nil
}

func (r *TableRepo) GetByID(ctx context.Context, id int) (*models.Table, error) {
	return scanTable(r.db.Pool.QueryRow(ctx, database.GetTableByIDSQL, id))
}

func (r *TableRepo) GetAll(ctx context.Context) ([]models.Table, error) {
	rows, err := r.db.Query(ctx, database.GetAllTablesSQL)
	return collect(rows, err, scanTable)
}

func (r *TableRepo) GetAllByStatus(ctx context.Context, status models.TableStatus) ([]models.Table, error) {
	rows, err := r.db.Query(ctx, database.GetTablesByStatusSQL, status)
	return collect(rows, err, scanTable)
}

func (r *TableRepo) Create(ctx context.Context, table *models.Table) error {
	if table.Status == "" {
		table.Status = models.TableClosed
	}
	created, err := scanTable(r.db.Pool.QueryRow(ctx, database.InsertTableSQL, table.Status))
	if err != nil {
		return err
	}
	*table = *created
	return nil
}

func (r *TableRepo) CompareAndSetStatus(ctx context.Context, id int, from, to models.TableStatus) (bool, error) {
	return affected(r.db.Pool.Exec(ctx, database.CompareAndSetTableStatusSQL, id, from, to))
}

func (r *TableRepo) Deactivate(ctx context.Context, id int) (bool, error) {
	return affected(r.db.Pool.Exec(ctx, database.DeactivateTableSQL, id))
}

func (r *TableRepo) GetMostPopular(ctx context.Context) (*models.PopularTable, error) {
	var p models.PopularTable
	err := r.db.Pool.QueryRow(ctx, database.GetMostPopularTableSQL).
		Scan(&p.ID, &p.Status, &p.Active, &p.CreatedAt, &p.OrderCount)
	if err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

type OrderRepo struct{ db *database.DB }

func scanOrder(row pgx.Row) (*models.Order, error) {
	var o models.Order
	if err := row.Scan(&o.ID, &o.TableID, &o.ClientName, &o.Status, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &o, nil
}

func (r *OrderRepo) GetByID(ctx context.Context, id string) (*models.Order, error) {
	return scanOrder(r.db.Pool.QueryRow(ctx, database.GetOrderByIDSQL, models.NormalizeOrderID(id)))
}

func (r *OrderRepo) GetAll(ctx context.Context) ([]models.Order, error) {
	rows, err := r.db.Query(ctx, database.GetAllOrdersSQL)
	return collect(rows, err, scanOrder)
}

func (r *OrderRepo) GetAllByStatus(ctx context.Context, statuses ...models.OrderStatus) ([]models.Order, error) {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	rows, err := r.db.Query(ctx, database.GetOrdersByStatusSQL, names)
	return collect(rows, err, scanOrder)
}

func (r *OrderRepo) GetActiveForTable(ctx context.Context, tableID int) (*models.Order, error) {
	return scanOrder(r.db.Pool.QueryRow(ctx, database.GetActiveOrderForTableSQL, tableID))
}

func (r *OrderRepo) ExistsByID(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx, database.OrderExistsSQL, models.NormalizeOrderID(id)).Scan(&exists)
	return exists, mapErr(err)
}

func (r *OrderRepo) Create(ctx context.Context, order *models.Order, changedBy string) error {
	order.ID = models.NormalizeOrderID(order.ID)
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	order.UpdatedAt = order.CreatedAt

	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, database.InsertOrderSQL,
			order.ID, order.TableID, order.ClientName, order.Status, order.CreatedAt)
		if err != nil {
			return mapErr(err)
		}
		notes := "order placed"
		_, err = tx.Exec(ctx, database.InsertOrderStatusLogSQL, order.ID, order.Status, changedBy, &notes)
		return mapErr(err)
	})
}

func (r *OrderRepo) UpdateStatus(ctx context.Context, id string, from, to models.OrderStatus, changedBy string) (bool, error) {
	id = models.NormalizeOrderID(id)
	var updated bool

	err := r.db.WithTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, database.CompareAndSetOrderStatusSQL, id, from, to)
		if err != nil {
			return mapErr(err)
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, database.OrderExistsSQL, id).Scan(&exists); err != nil {
				return mapErr(err)
			}
			if !exists {
				return repository.ErrNotFound
			}
			return nil
		}
		if _, err := tx.Exec(ctx, database.InsertOrderStatusLogSQL, id, to, changedBy, nil); err != nil {
			return mapErr(err)
		}
		updated = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return updated, nil
}

func (r *OrderRepo) GetStatusHistory(ctx context.Context, id string) ([]models.OrderStatusHistory, error) {
	id = models.NormalizeOrderID(id)
	exists, err := r.ExistsByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, repository.ErrNotFound
	}

	rows, err := r.db.Query(ctx, database.GetOrderStatusHistorySQL, id)
	return collect(rows, err, func(row pgx.Row) (*models.OrderStatusHistory, error) {
		var h models.OrderStatusHistory
		if err := row.Scan(&h.Status, &h.ChangedBy, &h.ChangedAt, &h.Notes); err != nil {
			return nil, mapErr(err)
		}
		return &h, nil
	})
}

func (r *OrderRepo) Delete(ctx context.Context, id string) (bool, error) {
	return affected(r.db.Pool.Exec(ctx, database.DeleteOrderSQL, models.NormalizeOrderID(id)))
}

type OrderItemRepo struct{ db *database.DB }

func scanItem(row pgx.Row) (*models.OrderItem, error) {
	var it models.OrderItem
	if err := row.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.StartTime, &it.EndTime); err != nil {
		return nil, mapErr(err)
	}
	return &it, nil
}

func (r *OrderItemRepo) GetByID(ctx context.Context, id int) (*models.OrderItem, error) {
	return scanItem(r.db.Pool.QueryRow(ctx, database.GetOrderItemByIDSQL, id))
}

func (r *OrderItemRepo) GetAll(ctx context.Context) ([]models.OrderItem, error) {
	rows, err := r.db.Query(ctx, database.GetAllOrderItemsSQL)
	return collect(rows, err, scanItem)
}

func (r *OrderItemRepo) GetByOrderID(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	rows, err := r.db.Query(ctx, database.GetOrderItemsByOrderSQL, models.NormalizeOrderID(orderID))
	return collect(rows, err, scanItem)
}

func (r *OrderItemRepo) GetAllPending(ctx context.Context, productType *models.ProductType) ([]models.OrderItem, error) {
	var typ *string
	if productType != nil {
		s := string(*productType)
		typ = &s
	}
	rows, err := r.db.Query(ctx, database.GetPendingOrderItemsSQL, typ)
	return collect(rows, err, scanItem)
}

func (r *OrderItemRepo) CreateBatch(ctx context.Context, items []*models.OrderItem) error {
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, it := range items {
			it.OrderID = models.NormalizeOrderID(it.OrderID)
			batch.Queue(database.InsertOrderItemSQL, it.OrderID, it.ProductID, it.StartTime, it.EndTime)
		}

		results := tx.SendBatch(ctx, batch)
		for _, it := range items {
			if err := results.QueryRow().Scan(&it.ID); err != nil {
				results.Close()
				return fmt.Errorf("failed to insert order item: %w", mapErr(err))
			}
		}
		return results.Close()
	})
}

func (r *OrderItemRepo) mark(ctx context.Context, sql string, id int, at time.Time) (bool, error) {
	ok, err := affected(r.db.Pool.Exec(ctx, sql, id, at))
	if err != nil || ok {
		return ok, err
	}
	var exists bool
	if err := r.db.Pool.QueryRow(ctx, database.OrderItemExistsSQL, id).Scan(&exists); err != nil {
		return false, mapErr(err)
	}
	if !exists {
		return false, repository.ErrNotFound
	}
	return false, nil
}

func (r *OrderItemRepo) MarkStarted(ctx context.Context, id int, at time.Time) (bool, error) {
	return r.mark(ctx, database.MarkOrderItemStartedSQL, id, at)
}

func (r *OrderItemRepo) MarkFinished(ctx context.Context, id int, at time.Time) (bool, error) {
	return r.mark(ctx, database.MarkOrderItemFinishedSQL, id, at)
}

func (r *OrderItemRepo) Delete(ctx context.Context, id int) (bool, error) {
	return affected(r.db.Pool.Exec(ctx, database.DeleteOrderItemSQL, id))
}

func (r *OrderItemRepo) DeleteByOrderID(ctx context.Context, orderID string) (int, error) {
	tag, err := r.db.Pool.Exec(ctx, database.DeleteOrderItemsByOrderSQL, models.NormalizeOrderID(orderID))
	if err != nil {
		return 0, mapErr(err)
	}
	return int(tag.RowsAffected()), nil
}

type ProductRepo struct{ db *database.DB }

func scanProduct(row pgx.Row) (*models.Product, error) {
	var p models.Product
	if err := row.Scan(&p.ID, &p.Name, &p.Price, &p.EstimatedTime, &p.Type, &p.Active, &p.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func (r *ProductRepo) GetByID(ctx context.Context, id int) (*models.Product, error) {
	return scanProduct(r.db.Pool.QueryRow(ctx, database.GetProductByIDSQL, id))
}

func (r *ProductRepo) GetByIDs(ctx context.Context, ids []int) (map[int]*models.Product, error) {
	rows, err := r.db.Query(ctx, database.GetProductsByIDsSQL, ids)
	list, err := collect(rows, err, scanProduct)
	if err != nil {
		return nil, err
	}
	out := make(map[int]*models.Product, len(list))
	for i := range list {
		out[list[i].ID] = &list[i]
	}
	return out, nil
}

func (r *ProductRepo) GetAll(ctx context.Context) ([]models.Product, error) {
	rows, err := r.db.Query(ctx, database.GetAllProductsSQL)
	return collect(rows, err, scanProduct)
}

func (r *ProductRepo) Create(ctx context.Context, p *models.Product) error {
	err := r.db.Pool.QueryRow(ctx, database.InsertProductSQL, p.Name, p.Price, p.EstimatedTime, p.Type, p.Active).
		Scan(&p.ID, &p.CreatedAt)
	return mapErr(err)
}

func (r *ProductRepo) Save(ctx context.Context, p *models.Product) error {
	err := r.db.Pool.QueryRow(ctx, database.UpdateProductSQL, p.ID, p.Name, p.Price, p.EstimatedTime, p.Type, p.Active).
		Scan(&p.CreatedAt)
	return mapErr(err)
}

func (r *ProductRepo) Deactivate(ctx context.Context, id int) (bool, error) {
	return affected(r.db.Pool.Exec(ctx, database.DeactivateProductSQL, id))
}

type UserRepo struct{ db *database.DB }

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.PasswordHash, &u.Role, &u.Active, &u.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (r *UserRepo) GetByID(ctx context.Context, id int) (*models.User, error) {
	return scanUser(r.db.Pool.QueryRow(ctx, database.GetUserByIDSQL, id))
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(r.db.Pool.QueryRow(ctx, database.GetUserByEmailSQL, email))
}

func (r *UserRepo) GetAll(ctx context.Context) ([]models.User, error) {
	rows, err := r.db.Query(ctx, database.GetAllUsersSQL)
	return collect(rows, err, scanUser)
}

func (r *UserRepo) Create(ctx context.Context, u *models.User) error {
	err := r.db.Pool.QueryRow(ctx, database.InsertUserSQL, u.FirstName, u.LastName, u.Email, u.PasswordHash, u.Role, u.Active).
		Scan(&u.ID, &u.CreatedAt)
	return mapErr(err)
}

func (r *UserRepo) Save(ctx context.Context, u *models.User) error {
	err := r.db.Pool.QueryRow(ctx, database.UpdateUserSQL, u.ID, u.FirstName, u.LastName, u.Email, u.PasswordHash, u.Role, u.Active).
		Scan(&u.CreatedAt)
	return mapErr(err)
}

func (r *UserRepo) Deactivate(ctx context.Context, id int) (bool, error) {
	return affected(r.db.Pool.Exec(ctx, database.DeactivateUserSQL, id))
}

type SurveyRepo struct{ db *database.DB }

func scanSurvey(row pgx.Row) (*models.Survey, error) {
	var s models.Survey
	err := row.Scan(&s.ID, &s.OrderID, &s.TableRating, &s.RestaurantRating, &s.WaiterRating, &s.ChefRating, &s.Comment, &s.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &s, nil
}

func (r *SurveyRepo) GetByID(ctx context.Context, id int) (*models.Survey, error) {
	return scanSurvey(r.db.Pool.QueryRow(ctx, database.GetSurveyByIDSQL, id))
}

func (r *SurveyRepo) GetByOrderID(ctx context.Context, orderID string) (*models.Survey, error) {
	return scanSurvey(r.db.Pool.QueryRow(ctx, database.GetSurveyByOrderSQL, models.NormalizeOrderID(orderID)))
}

func (r *SurveyRepo) GetAll(ctx context.Context) ([]models.Survey, error) {
	rows, err := r.db.Query(ctx, database.GetAllSurveysSQL)
	return collect(rows, err, scanSurvey)
}

func (r *SurveyRepo) GetBest(ctx context.Context, limit int) ([]models.Survey, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.Query(ctx, database.GetBestSurveysSQL, limit)
	return collect(rows, err, scanSurvey)
}

func (r *SurveyRepo) Create(ctx context.Context, s *models.Survey) error {
	s.OrderID = models.NormalizeOrderID(s.OrderID)
	err := r.db.Pool.QueryRow(ctx, database.InsertSurveySQL,
		s.OrderID, s.TableRating, s.RestaurantRating, s.WaiterRating, s.ChefRating, s.Comment).
		Scan(&s.ID, &s.CreatedAt)
	return mapErr(err)
}

func (r *SurveyRepo) Save(ctx context.Context, s *models.Survey) error {
	err := r.db.Pool.QueryRow(ctx, database.UpdateSurveySQL,
		s.ID, s.TableRating, s.RestaurantRating, s.WaiterRating, s.ChefRating, s.Comment).
		Scan(&s.OrderID, &s.CreatedAt)
	return mapErr(err)
}

func (r *SurveyRepo) Delete(ctx context.Context, id int) (bool, error) {
	return affected(r.db.Pool.Exec(ctx, database.DeleteSurveySQL, id))
}
