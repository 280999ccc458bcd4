package notification

import (
	"context"
	"errors"
	"fmt"
	"io"

	"comanda/internal/logger"
	"comanda/internal/messaging"
	"comanda/internal/models"
)

// Subscriber handles notification messages
type Subscriber struct {
	consumer messaging.Source
	logger   *logger.Logger
	out      io.Writer
}

// NewSubscriber creates a new notification subscriber
func NewSubscriber(consumer messaging.Source, logger *logger.Logger, out io.Writer) *Subscriber {
	return &Subscriber{
		consumer: consumer,
		logger:   logger,
		out:      out,
	}
}

// Start consumes notifications until ctx is cancelled or the consumer fails
func (s *Subscriber) Start(ctx context.Context) error {
	requestID := logger.GenerateRequestID()
	s.logger.Info("service_started", "Notification subscriber started", requestID, nil)

	done := make(chan error, 1)
	go func() {
		done <- s.consumer.StartConsuming(ctx, s.handleNotification)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("graceful_shutdown", "Received shutdown signal", requestID, nil)
		<-done
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("consumer_failed", "Notification consumer failed", requestID, err, nil)
			s.consumer.Close()
			return err
		}
	}

	return s.gracefulShutdown(requestID)
}

// handleNotification prints one decoded status change
func (s *Subscriber) handleNotification(ctx context.Context, statusUpdate *models.StatusUpdateMessage) error {
	s.logger.Debug("notification_received", "Received status update notification", logger.GenerateRequestID(), map[string]interface{}{
		"entity":     statusUpdate.Entity,
		"entity_id":  statusUpdate.EntityID,
		"new_status": statusUpdate.NewStatus,
		"changed_by": statusUpdate.ChangedBy,
	})

	s.displayNotification(statusUpdate)
	return nil
}

// displayNotification displays a human-readable notification to console
func (s *Subscriber) displayNotification(statusUpdate *models.StatusUpdateMessage) {
	fmt.Fprintln(s.out, FormatNotification(statusUpdate))

	s.logger.Info("notification_displayed", "Notification displayed to user", "", map[string]interface{}{
		"entity":     statusUpdate.Entity,
		"entity_id":  statusUpdate.EntityID,
		"old_status": statusUpdate.OldStatus,
		"new_status": statusUpdate.NewStatus,
		"changed_by": statusUpdate.ChangedBy,
		"timestamp":  statusUpdate.Timestamp.Format("2006-01-02 15:04:05"),
	})
}

// FormatNotification creates a human-readable notification message
func FormatNotification(m *models.StatusUpdateMessage) string {
	timestamp := m.Timestamp.Format("2006-01-02 15:04:05")

	switch {
	case m.Entity == models.EntityOrder && m.NewStatus == string(models.OrderReady):
		return fmt.Sprintf("[%s] Order %s for table %d is ready to be served.", timestamp, m.EntityID, m.TableID)
	case m.Entity == models.EntityOrder && m.NewStatus == string(models.OrderPaid):
		return fmt.Sprintf("[%s] Order %s for table %d has been paid. Thank you!", timestamp, m.EntityID, m.TableID)
	case m.Entity == models.EntityTable && m.NewStatus == string(models.TablePaying):
		return fmt.Sprintf("[%s] Table %s asked for the bill.", timestamp, m.EntityID)
	case m.Entity == models.EntityOrderItem && m.NewStatus == string(models.ItemReady):
		return fmt.Sprintf("[%s] Item %s of table %d is ready.", timestamp, m.EntityID, m.TableID)
	default:
		return fmt.Sprintf("[%s] %s %s status changed from '%s' to '%s' by %s.",
			timestamp, m.Entity, m.EntityID, m.OldStatus, m.NewStatus, m.ChangedBy)
	}
}

// gracefulShutdown handles graceful shutdown of the subscriber
func (s *Subscriber) gracefulShutdown(requestID string) error {
	s.logger.Info("graceful_shutdown", "Starting graceful shutdown", requestID, nil)

	if err := s.consumer.Close(); err != nil {
		s.logger.Error("consumer_close_failed", "Failed to close consumer", requestID, err, nil)
	}

	s.logger.Info("graceful_shutdown", "Graceful shutdown completed", requestID, nil)
	return nil
}
