package models

import "time"

// TableStatus represents where a physical table is in its service cycle
type TableStatus string

const (
	TableClosed          TableStatus = "CLOSED"
	TableWaitingForOrder TableStatus = "WAITING_FOR_ORDER"
	TableEating          TableStatus = "EATING"
	TablePaying          TableStatus = "PAYING"
)

func (s TableStatus) Valid() bool {
	switch s {
	case TableClosed, TableWaitingForOrder, TableEating, TablePaying:
		return true
	}
	return false
}

// Table is a physical table. Its status is only changed by the ordering flow.
type Table struct {
	ID        int         `json:"id"`
	Status    TableStatus `json:"status"`
	Active    bool        `json:"active"`
	CreatedAt time.Time   `json:"created_at"`
}

// PopularTable is a table together with how many orders it has ever had.
type PopularTable struct {
	Table
	OrderCount int `json:"order_count"`
}
