package models

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// OrderStatus represents the status of an order
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderPreparing OrderStatus = "PREPARING"
	OrderReady     OrderStatus = "READY"
	OrderServed    OrderStatus = "SERVED"
	OrderPaid      OrderStatus = "PAID"
)

var orderStatusRank = map[OrderStatus]int{
	OrderPending:   0,
	OrderPreparing: 1,
	OrderReady:     2,
	OrderServed:    3,
	OrderPaid:      4,
}

func (s OrderStatus) Valid() bool {
	_, ok := orderStatusRank[s]
	return ok
}

// Before reports whether s comes strictly earlier than other in the order lifecycle.
func (s OrderStatus) Before(other OrderStatus) bool {
	return orderStatusRank[s] < orderStatusRank[other]
}

// Order is one customer order placed at a table
type Order struct {
	ID         string      `json:"id"`
	TableID    int         `json:"table_id"`
	ClientName string      `json:"client_name"`
	Status     OrderStatus `json:"status"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// OrderIDLength is the length of generated order ids.
const OrderIDLength = 5

const orderIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateOrderID returns a random 5-character alphanumeric id.
func GenerateOrderID() (string, error) {
	buf := make([]byte, OrderIDLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate order id: %w", err)
	}
	for i, b := range buf {
		buf[i] = orderIDAlphabet[int(b)%len(orderIDAlphabet)]
	}
	return string(buf), nil
}

// NormalizeOrderID makes order ids case-insensitive; generated ids are upper case.
func NormalizeOrderID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// ItemStatus is the preparation state of a single order item
type ItemStatus string

const (
	ItemPending   ItemStatus = "PENDING"
	ItemPreparing ItemStatus = "PREPARING"
	ItemReady     ItemStatus = "READY"
)

// OrderItem is one product requested in an order. Its status is never
// stored; it follows from StartTime and EndTime.
type OrderItem struct {
	ID        int        `json:"id"`
	OrderID   string     `json:"order_id"`
	ProductID int        `json:"product_id"`
	StartTime *time.Time `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
}

func (i OrderItem) Status() ItemStatus {
	return ItemStatusOf(i.StartTime, i.EndTime)
}

// ItemStatusOf derives an item status from its preparation timestamps.
func ItemStatusOf(start, end *time.Time) ItemStatus {
	switch {
	case start == nil:
		return ItemPending
	case end == nil:
		return ItemPreparing
	default:
		return ItemReady
	}
}

func (i OrderItem) MarshalJSON() ([]byte, error) {
	type plain OrderItem
	return json.Marshal(struct {
		plain
		Status ItemStatus `json:"status"`
	}{plain(i), i.Status()})
}

// OrderStatusHistory represents an entry in the order status log
type OrderStatusHistory struct {
	Status    OrderStatus `json:"status"`
	ChangedBy string      `json:"changed_by"`
	ChangedAt time.Time   `json:"timestamp"`
	Notes     *string     `json:"notes,omitempty"`
}

// PlaceOrderRequest is the body of a new order for a table
type PlaceOrderRequest struct {
	ID         string           `json:"id,omitempty"`
	ClientName string           `json:"client_name"`
	Items      []PlaceOrderItem `json:"items"`
}

type PlaceOrderItem struct {
	ProductID int `json:"product_id"`
}

// ChargeResult is what the waiter gets back when asking for the bill.
type ChargeResult struct {
	Order  *Order  `json:"order"`
	Amount float64 `json:"amount"`
}

// PendingOrder decorates an order with its remaining preparation time in
// seconds. Negative values mean the order is late.
type PendingOrder struct {
	Order
	PendingSeconds int64 `json:"pending_seconds"`
}
