// Package surveys collects customer ratings of paid orders.
package surveys

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"comanda/internal/logger"
	"comanda/internal/models"
	"comanda/internal/repository"
)

// DefaultBestLimit is how many surveys /surveys/best returns without ?limit=.
const DefaultBestLimit = 10

var (
	// ErrOrderNotPaid is returned when rating an order that is not closed yet.
	ErrOrderNotPaid = errors.New("order is not paid")
	// ErrAlreadyRated is returned for a second survey on the same order.
	ErrAlreadyRated = errors.New("order already has a survey")
	// ErrOrderNotFound is returned when the rated order does not exist.
	ErrOrderNotFound = errors.New("order not found")
)

type Service struct {
	surveys repository.SurveyRepository
	orders  repository.OrderRepository
	logger  *logger.Logger
}

func NewService(surveys repository.SurveyRepository, orders repository.OrderRepository, log *logger.Logger) *Service {
	return &Service{surveys: surveys, orders: orders, logger: log}
}

func (s *Service) GetAll(ctx context.Context) ([]models.Survey, error) {
	return s.surveys.GetAll(ctx)
}

func (s *Service) GetByID(ctx context.Context, id int) (*models.Survey, error) {
	return s.surveys.GetByID(ctx, id)
}

// GetBest returns the highest rated surveys first.
func (s *Service) GetBest(ctx context.Context, limit int) ([]models.Survey, error) {
	if limit <= 0 {
		limit = DefaultBestLimit
	}
	return s.surveys.GetBest(ctx, limit)
}

// Create rates a PAID order. tableID, when non-zero, must be the order's table.
func (s *Service) Create(ctx context.Context, tableID int, req *models.SurveyRequest) (*models.Survey, error) {
	orderID := models.NormalizeOrderID(req.OrderID)
	order, err := s.orders.GetByID(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && tableID != 0 && order.TableID != tableID) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order %s: %w", orderID, err)
	}
	if order.Status != models.OrderPaid {
		return nil, ErrOrderNotPaid
	}

	survey := &models.Survey{OrderID: order.ID}
	apply(survey, req)
	if err := s.surveys.Create(ctx, survey); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrAlreadyRated
		}
		return nil, fmt.Errorf("failed to save survey: %w", err)
	}

	s.logger.Info("survey_created", fmt.Sprintf("Order %s rated %.2f", order.ID, survey.Average()),
		logger.RequestIDFrom(ctx), map[string]interface{}{
			"survey_id": survey.ID,
			"order_id":  order.ID,
			"table_id":  order.TableID,
		})
	return survey, nil
}

// Update replaces ratings and comment. A survey never moves to another order.
func (s *Service) Update(ctx context.Context, id int, req *models.SurveyRequest) (*models.Survey, error) {
	survey, err := s.surveys.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	apply(survey, req)
	if err := s.surveys.Save(ctx, survey); err != nil {
		return nil, fmt.Errorf("failed to update survey %d: %w", id, err)
	}
	return survey, nil
}

func (s *Service) Delete(ctx context.Context, id int) error {
	ok, err := s.surveys.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete survey %d: %w", id, err)
	}
	if !ok {
		return repository.ErrNotFound
	}
	return nil
}

func apply(survey *models.Survey, req *models.SurveyRequest) {
	survey.TableRating = req.TableRating
	survey.RestaurantRating = req.RestaurantRating
	survey.WaiterRating = req.WaiterRating
	survey.ChefRating = req.ChefRating
	survey.Comment = nil
	if req.Comment != nil {
		comment := strings.TrimSpace(*req.Comment)
		survey.Comment = &comment
	}
}
