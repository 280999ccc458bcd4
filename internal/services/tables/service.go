package tables

import (
	"context"
	"errors"
	"fmt"

	"comanda/internal/logger"
	"comanda/internal/models"
	"comanda/internal/repository"
)

// ErrNotClosed is returned when removing a table that is still in service.
var ErrNotClosed = errors.New("table is in service")

// Service is the table lifecycle. It has no transition rules of its own;
// the ordering flow decides when a table changes status.
type Service struct {
	repo   repository.TableRepository
	logger *logger.Logger
}

func NewService(repo repository.TableRepository, log *logger.Logger) *Service {
	return &Service{repo: repo, logger: log}
}

func (s *Service) Create(ctx context.Context) (*models.Table, error) {
	table := &models.Table{Status: models.TableClosed}
	if err := s.repo.Create(ctx, table); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	s.logger.Info("table_created", fmt.Sprintf("Table %d created", table.ID), logger.RequestIDFrom(ctx),
		map[string]interface{}{"table_id": table.ID})
	return table, nil
}

// GetByID returns repository.ErrNotFound for unknown or removed tables.
func (s *Service) GetByID(ctx context.Context, id int) (*models.Table, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetAll(ctx context.Context) ([]models.Table, error) {
	return s.repo.GetAll(ctx)
}

func (s *Service) GetAllByStatus(ctx context.Context, status models.TableStatus) ([]models.Table, error) {
	return s.repo.GetAllByStatus(ctx, status)
}

func (s *Service) GetMostPopular(ctx context.Context) (*models.PopularTable, error) {
	return s.repo.GetMostPopular(ctx)
}

// Transition moves the table from one status to another atomically. It
// reports false when the table was not in status from.
func (s *Service) Transition(ctx context.Context, id int, from, to models.TableStatus) (bool, error) {
	ok, err := s.repo.CompareAndSetStatus(ctx, id, from, to)
	if err != nil {
		return false, fmt.Errorf("failed to update table %d: %w", id, err)
	}
	return ok, nil
}

// Delete soft-deletes a CLOSED table.
func (s *Service) Delete(ctx context.Context, id int) error {
	table, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if table.Status != models.TableClosed {
		return ErrNotClosed
	}

	ok, err := s.repo.Deactivate(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to remove table %d: %w", id, err)
	}
	if !ok {
		return repository.ErrNotFound
	}

	s.logger.Info("table_removed", fmt.Sprintf("Table %d removed", id), logger.RequestIDFrom(ctx),
		map[string]interface{}{"table_id": id})
	return nil
}
