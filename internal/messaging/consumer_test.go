package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rabbitmq/amqp091-go"

	"comanda/internal/logger"
	"comanda/internal/models"
)

func statusBody(t *testing.T, entity, id, status string) []byte {
	t.Helper()
	b, err := json.Marshal(models.NewStatusUpdate(entity, id, 3, "", status, "chef"))
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestDecodeStatus(t *testing.T) {
	msg, err := DecodeStatus("order.READY", statusBody(t, models.EntityOrder, "AB123", "READY"))
	if err != nil {
		t.Fatalf("DecodeStatus: %v", err)
	}
	if msg.EntityID != "AB123" || msg.TableID != 3 || msg.ChangedBy != "chef" {
		t.Fatalf("decoded %+v", msg)
	}

	tests := []struct {
		name string
		key  string
		body []byte
	}{
		{"key without status", "order", statusBody(t, models.EntityOrder, "AB123", "READY")},
		{"unknown entity", "invoice.READY", statusBody(t, "invoice", "1", "READY")},
		{"not json", "order.READY", []byte("{")},
		{"status differs from key", "order.PAID", statusBody(t, models.EntityOrder, "AB123", "READY")},
		{"entity differs from key", "table.READY", statusBody(t, models.EntityOrder, "AB123", "READY")},
		{"missing entity id", "order_item.READY", statusBody(t, models.EntityOrderItem, "", "READY")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeStatus(tt.key, tt.body); !errors.Is(err, ErrMalformedMessage) {
				t.Fatalf("err = %v, want ErrMalformedMessage", err)
			}
		})
	}
}

type settled struct {
	acked, nacked, requeued bool
}

type fakeAcknowledger struct{ s *settled }

func (f fakeAcknowledger) Ack(uint64, bool) error { f.s.acked = true; return nil }

func (f fakeAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	f.s.nacked, f.s.requeued = true, requeue
	return nil
}

func (f fakeAcknowledger) Reject(_ uint64, requeue bool) error {
	f.s.nacked, f.s.requeued = true, requeue
	return nil
}

func TestConsumer_ProcessMessage(t *testing.T) {
	good := statusBody(t, models.EntityTable, "4", "PAYING")
	failing := errors.New("terminal gone")

	tests := []struct {
		name        string
		key         string
		body        []byte
		redelivered bool
		handlerErr  error
		want        settled
		wantCalled  bool
	}{
		{"handled", "table.PAYING", good, false, nil, settled{acked: true}, true},
		{"malformed is dropped", "table.PAYING", []byte("nope"), false, nil, settled{nacked: true}, false},
		{"mismatched key is dropped", "table.CLOSED", good, false, nil, settled{nacked: true}, false},
		{"first failure is requeued", "table.PAYING", good, false, failing, settled{nacked: true, requeued: true}, true},
		{"second failure is dropped", "table.PAYING", good, true, failing, settled{nacked: true}, true},
	}

	c := NewConsumer(nil, logger.Nop(), "notifications_queue", "test", 1)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got settled
			called := false
			d := amqp091.Delivery{
				Acknowledger: fakeAcknowledger{&got},
				RoutingKey:   tt.key,
				Body:         tt.body,
				Redelivered:  tt.redelivered,
			}
			c.processMessage(context.Background(), d, func(_ context.Context, msg *models.StatusUpdateMessage) error {
				called = true
				if msg.Entity != models.EntityTable || msg.NewStatus != "PAYING" {
					t.Errorf("handler got %+v", msg)
				}
				return tt.handlerErr
			})

			if called != tt.wantCalled {
				t.Errorf("handler called = %v, want %v", called, tt.wantCalled)
			}
			if got != tt.want {
				t.Errorf("settled = %+v, want %+v", got, tt.want)
			}
		})
	}
}
