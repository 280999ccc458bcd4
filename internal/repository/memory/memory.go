// Package memory is an in-process entity store. It backs the "memory" store
// mode and the service tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"comanda/internal/models"
	"comanda/internal/repository"
)

type db struct {
	mu sync.RWMutex

	tables   map[int]models.Table
	orders   map[string]models.Order
	items    map[int]models.OrderItem
	products map[int]models.Product
	users    map[int]models.User
	surveys  map[int]models.Survey
	history  map[string][]models.OrderStatusHistory

	nextTable, nextItem, nextProduct, nextUser, nextSurvey int

	now func() time.Time
}

// New returns an empty store with every repository sharing one lock.
func New() *repository.Store {
	return NewWithClock(time.Now)
}

// NewWithClock is New with a custom time source for created_at columns.
func NewWithClock(now func() time.Time) *repository.Store {
	d := &db{
		tables:   make(map[int]models.Table),
		orders:   make(map[string]models.Order),
		items:    make(map[int]models.OrderItem),
		products: make(map[int]models.Product),
		users:    make(map[int]models.User),
		surveys:  make(map[int]models.Survey),
		history:  make(map[string][]models.OrderStatusHistory),
		now:      now,
	}
	return &repository.Store{
		Tables:     &TableRepo{d},
		Orders:     &OrderRepo{d},
		OrderItems: &OrderItemRepo{d},
		Products:   &ProductRepo{d},
		Users:      &UserRepo{d},
		Surveys:    &SurveyRepo{d},
		Ping:       func(context.Context) error { return nil },
	}
}

type TableRepo struct{ d *db }

func (r *TableRepo) GetByID(_ context.Context, id int) (*models.Table, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	t, ok := r.d.tables[id]
	if !ok || !t.Active {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (r *TableRepo) GetAll(_ context.Context) ([]models.Table, error) {
	return r.filter(func(models.Table) bool { return true }), nil
}

func (r *TableRepo) GetAllByStatus(_ context.Context, status models.TableStatus) ([]models.Table, error) {
	return r.filter(func(t models.Table) bool { return t.Status == status }), nil
}

func (r *TableRepo) filter(keep func(models.Table) bool) []models.Table {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	out := []models.Table{}
	for _, t := range r.d.tables {
		if t.Active && keep(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *TableRepo) Create(_ context.Context, table *models.Table) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	r.d.nextTable++
	table.ID = r.d.nextTable
	table.Active = true
	if table.Status == "" {
		table.Status = models.TableClosed
	}
	table.CreatedAt = r.d.now()
	r.d.tables[table.ID] = *table
	return nil
}

func (r *TableRepo) CompareAndSetStatus(_ context.Context, id int, from, to models.TableStatus) (bool, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	t, ok := r.d.tables[id]
	if !ok || !t.Active || t.Status != from {
		return false, nil
	}
	t.Status = to
	r.d.tables[id] = t
	return true, nil
}

func (r *TableRepo) Deactivate(_ context.Context, id int) (bool, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	t, ok := r.d.tables[id]
	if !ok || !t.Active {
		return false, nil
	}
	t.Active = false
	r.d.tables[id] = t
	return true, nil
}

func (r *TableRepo) GetMostPopular(_ context.Context) (*models.PopularTable, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	counts := make(map[int]int)
	for _, o := range r.d.orders {
		counts[o.TableID]++
	}
	var best *models.PopularTable
	for _, t := range r.d.tables {
		if !t.Active || counts[t.ID] == 0 {
			continue
		}
		if best == nil || counts[t.ID] > best.OrderCount || (counts[t.ID] == best.OrderCount && t.ID < best.ID) {
			best = &models.PopularTable{Table: t, OrderCount: counts[t.ID]}
		}
	}
	if best == nil {
		return nil, repository.ErrNotFound
	}
	return best, nil
}

type OrderRepo struct{ d *db }

func (r *OrderRepo) GetByID(_ context.Context, id string) (*models.Order, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	o, ok := r.d.orders[normalizeID(id)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &o, nil
}

func (r *OrderRepo) GetAll(_ context.Context) ([]models.Order, error) {
	return r.filter(func(models.Order) bool { return true }), nil
}

func (r *OrderRepo) GetAllByStatus(_ context.Context, statuses ...models.OrderStatus) ([]models.Order, error) {
	return r.filter(func(o models.Order) bool {
		for _, s := range statuses {
			if o.Status == s {
				return true
			}
		}
		return false
	}), nil
}

func (r *OrderRepo) filter(keep func(models.Order) bool) []models.Order {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	out := []models.Order{}
	for _, o := range r.d.orders {
		if keep(o) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (r *OrderRepo) GetActiveForTable(_ context.Context, tableID int) (*models.Order, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	for _, o := range r.d.orders {
		if o.TableID == tableID && o.Status != models.OrderPaid {
			return &o, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *OrderRepo) ExistsByID(_ context.Context, id string) (bool, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	_, ok := r.d.orders[normalizeID(id)]
	return ok, nil
}

func (r *OrderRepo) Create(_ context.Context, order *models.Order, changedBy string) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	order.ID = normalizeID(order.ID)
	if _, ok := r.d.orders[order.ID]; ok {
		return repository.ErrDuplicate
	}
	for _, o := range r.d.orders {
		if o.TableID == order.TableID && o.Status != models.OrderPaid {
			return repository.ErrDuplicate
		}
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = r.d.now()
	}
	order.UpdatedAt = order.CreatedAt
	r.d.orders[order.ID] = *order
	r.d.history[order.ID] = []models.OrderStatusHistory{{
		Status: order.Status, ChangedBy: changedBy, ChangedAt: order.CreatedAt,
	}}
	return nil
}

func (r *OrderRepo) UpdateStatus(_ context.Context, id string, from, to models.OrderStatus, changedBy string) (bool, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	id = normalizeID(id)
	o, ok := r.d.orders[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	if o.Status != from {
		return false, nil
	}
	now := r.d.now()
	o.Status = to
	o.UpdatedAt = now
	r.d.orders[id] = o
	r.d.history[id] = append(r.d.history[id], models.OrderStatusHistory{Status: to, ChangedBy: changedBy, ChangedAt: now})
	return true, nil
}

func (r *OrderRepo) GetStatusHistory(_ context.Context, id string) ([]models.OrderStatusHistory, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	id = normalizeID(id)
	if _, ok := r.d.orders[id]; !ok {
		return nil, repository.ErrNotFound
	}
	return append([]models.OrderStatusHistory{}, r.d.history[id]...), nil
}

func (r *OrderRepo) Delete(_ context.Context, id string) (bool, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	id = normalizeID(id)
	if _, ok := r.d.orders[id]; !ok {
		return false, nil
	}
	delete(r.d.orders, id)
	delete(r.d.history, id)
	for sid, s := range r.d.surveys {
		if s.OrderID == id {
			delete(r.d.surveys, sid)
		}
	}
	return true, nil
}

func normalizeID(id string) string {
	return models.NormalizeOrderID(id)
}

type OrderItemRepo struct{ d *db }

func (r *OrderItemRepo) GetByID(_ context.Context, id int) (*models.OrderItem, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	it, ok := r.d.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &it, nil
}

func (r *OrderItemRepo) GetAll(_ context.Context) ([]models.OrderItem, error) {
	return r.filter(func(models.OrderItem) bool { return true }), nil
}

func (r *OrderItemRepo) GetByOrderID(_ context.Context, orderID string) ([]models.OrderItem, error) {
	orderID = normalizeID(orderID)
	return r.filter(func(it models.OrderItem) bool { return it.OrderID == orderID }), nil
}

func (r *OrderItemRepo) GetAllPending(_ context.Context, productType *models.ProductType) ([]models.OrderItem, error) {
	return r.filter(func(it models.OrderItem) bool {
		if it.Status() == models.ItemReady {
			return false
		}
		if productType == nil {
			return true
		}
		p, ok := r.d.products[it.ProductID]
		return ok && p.Type == *productType
	}), nil
}

func (r *OrderItemRepo) filter(keep func(models.OrderItem) bool) []models.OrderItem {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	out := []models.OrderItem{}
	for _, it := range r.d.items {
		if keep(it) {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *OrderItemRepo) CreateBatch(_ context.Context, items []*models.OrderItem) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	for _, it := range items {
		if _, ok := r.d.orders[normalizeID(it.OrderID)]; !ok {
			return repository.ErrNotFound
		}
		if _, ok := r.d.products[it.ProductID]; !ok {
			return repository.ErrNotFound
		}
	}
	for _, it := range items {
		r.d.nextItem++
		it.ID = r.d.nextItem
		it.OrderID = normalizeID(it.OrderID)
		r.d.items[it.ID] = *it
	}
	return nil
}

func (r *OrderItemRepo) MarkStarted(_ context.Context, id int, at time.Time) (bool, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	it, ok := r.d.items[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	if it.Status() != models.ItemPending {
		return false, nil
	}
	it.StartTime = &at
	r.d.items[id] = it
	return true, nil
}

func (r *OrderItemRepo) MarkFinished(_ context.Context, id int, at time.Time) (bool, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	it, ok := r.d.items[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	if it.Status() != models.ItemPreparing {
		return false, nil
	}
	if at.Before(*it.StartTime) {
		at = *it.StartTime
	}
	it.EndTime = &at
	r.d.items[id] = it
	return true, nil
}

func (r *OrderItemRepo) Delete(_ context.Context, id int) (bool, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if _, ok := r.d.items[id]; !ok {
		return false, nil
	}
	delete(r.d.items, id)
	return true, nil
}

func (r *OrderItemRepo) DeleteByOrderID(_ context.Context, orderID string) (int, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	orderID = normalizeID(orderID)
	n := 0
	for id, it := range r.d.items {
		if it.OrderID == orderID {
			delete(r.d.items, id)
			n++
		}
	}
	return n, nil
}

type ProductRepo struct{ d *db }

func (r *ProductRepo) GetByID(_ context.Context, id int) (*models.Product, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	p, ok := r.d.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r *ProductRepo) GetByIDs(_ context.Context, ids []int) (map[int]*models.Product, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	out := make(map[int]*models.Product, len(ids))
	for _, id := range ids {
		if p, ok := r.d.products[id]; ok {
			out[id] = &p
		}
	}
	return out, nil
}

func (r *ProductRepo) GetAll(_ context.Context) ([]models.Product, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	out := make([]models.Product, 0, len(r.d.products))
	for _, p := range r.d.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *ProductRepo) Create(_ context.Context, product *models.Product) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	r.d.nextProduct++
	product.ID = r.d.nextProduct
	product.CreatedAt = r.d.now()
	r.d.products[product.ID] = *product
	return nil
}

func (r *ProductRepo) Save(_ context.Context, product *models.Product) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	old, ok := r.d.products[product.ID]
	if !ok {
		return repository.ErrNotFound
	}
	product.CreatedAt = old.CreatedAt
	r.d.products[product.ID] = *product
	return nil
}

func (r *ProductRepo) Deactivate(_ context.Context, id int) (bool, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	p, ok := r.d.products[id]
	if !ok {
		return false, nil
	}
	p.Active = false
	r.d.products[id] = p
	return true, nil
}

type UserRepo struct{ d *db }

func (r *UserRepo) GetByID(_ context.Context, id int) (*models.User, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	u, ok := r.d.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r *UserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	for _, u := range r.d.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *UserRepo) GetAll(_ context.Context) ([]models.User, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	out := make([]models.User, 0, len(r.d.users))
	for _, u := range r.d.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *UserRepo) emailTaken(email string, exceptID int) bool {
	for _, u := range r.d.users {
		if u.ID != exceptID && strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}

func (r *UserRepo) Create(_ context.Context, user *models.User) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if r.emailTaken(user.Email, 0) {
		return repository.ErrDuplicate
	}
	r.d.nextUser++
	user.ID = r.d.nextUser
	user.CreatedAt = r.d.now()
	r.d.users[user.ID] = *user
	return nil
}

func (r *UserRepo) Save(_ context.Context, user *models.User) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	old, ok := r.d.users[user.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if r.emailTaken(user.Email, user.ID) {
		return repository.ErrDuplicate
	}
	user.CreatedAt = old.CreatedAt
	r.d.users[user.ID] = *user
	return nil
}

func (r *UserRepo) Deactivate(_ context.Context, id int) (bool, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	u, ok := r.d.users[id]
	if !ok {
		return false, nil
	}
	u.Active = false
	r.d.users[id] = u
	return true, nil
}

type SurveyRepo struct{ d *db }

func (r *SurveyRepo) GetByID(_ context.Context, id int) (*models.Survey, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	s, ok := r.d.surveys[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (r *SurveyRepo) GetByOrderID(_ context.Context, orderID string) (*models.Survey, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	orderID = normalizeID(orderID)
	for _, s := range r.d.surveys {
		if s.OrderID == orderID {
			return &s, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *SurveyRepo) GetAll(_ context.Context) ([]models.Survey, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	out := make([]models.Survey, 0, len(r.d.surveys))
	for _, s := range r.d.surveys {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *SurveyRepo) GetBest(ctx context.Context, limit int) ([]models.Survey, error) {
	all, _ := r.GetAll(ctx)
	sort.SliceStable(all, func(i, j int) bool { return all[i].Average() > all[j].Average() })
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r *SurveyRepo) Create(_ context.Context, survey *models.Survey) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	survey.OrderID = normalizeID(survey.OrderID)
	if _, ok := r.d.orders[survey.OrderID]; !ok {
		return repository.ErrNotFound
	}
	for _, s := range r.d.surveys {
		if s.OrderID == survey.OrderID {
			return repository.ErrDuplicate
		}
	}
	r.d.nextSurvey++
	survey.ID = r.d.nextSurvey
	survey.CreatedAt = r.d.now()
	r.d.surveys[survey.ID] = *survey
	return nil
}

func (r *SurveyRepo) Save(_ context.Context, survey *models.Survey) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	old, ok := r.d.surveys[survey.ID]
	if !ok {
		return repository.ErrNotFound
	}
	survey.OrderID = old.OrderID
	survey.CreatedAt = old.CreatedAt
	r.d.surveys[survey.ID] = *survey
	return nil
}

func (r *SurveyRepo) Delete(_ context.Context, id int) (bool, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if _, ok := r.d.surveys[id]; !ok {
		return false, nil
	}
	delete(r.d.surveys, id)
	return true, nil
}
