package models

import "time"

// Entity names carried in status notifications
const (
	EntityTable     = "table"
	EntityOrder     = "order"
	EntityOrderItem = "order_item"
)

// StatusUpdateMessage represents a status update notification
type StatusUpdateMessage struct {
	Entity    string    `json:"entity"`
	EntityID  string    `json:"entity_id"`
	TableID   int       `json:"table_id,omitempty"`
	OldStatus string    `json:"old_status"`
	NewStatus string    `json:"new_status"`
	ChangedBy string    `json:"changed_by"`
	Timestamp time.Time `json:"timestamp"`
}

// NewStatusUpdate creates a StatusUpdateMessage stamped with the current time
func NewStatusUpdate(entity, entityID string, tableID int, oldStatus, newStatus, changedBy string) *StatusUpdateMessage {
	return &StatusUpdateMessage{
		Entity:    entity,
		EntityID:  entityID,
		TableID:   tableID,
		OldStatus: oldStatus,
		NewStatus: newStatus,
		ChangedBy: changedBy,
		Timestamp: time.Now().UTC(),
	}
}

// RoutingKey is the topic key the message is published under, e.g. "order.READY".
func (m *StatusUpdateMessage) RoutingKey() string {
	return m.Entity + "." + m.NewStatus
}
