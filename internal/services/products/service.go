// Package products is the menu catalogue.
package products

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"comanda/internal/logger"
	"comanda/internal/models"
	"comanda/internal/repository"
)

// CSVHeader is the column layout of catalogue exports and imports.
var CSVHeader = []string{"id", "name", "price", "estimated_time", "type", "active"}

type Service struct {
	repo   repository.ProductRepository
	logger *logger.Logger
}

func NewService(repo repository.ProductRepository, log *logger.Logger) *Service {
	return &Service{repo: repo, logger: log}
}

func (s *Service) GetAll(ctx context.Context) ([]models.Product, error) {
	return s.repo.GetAll(ctx)
}

func (s *Service) GetByID(ctx context.Context, id int) (*models.Product, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Create(ctx context.Context, req *models.ProductRequest) (*models.Product, error) {
	product := fromRequest(req, true)
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.logger.Info("product_created", fmt.Sprintf("Product %d (%s) created", product.ID, product.Name),
		logger.RequestIDFrom(ctx), map[string]interface{}{
			"product_id": product.ID,
			"type":       product.Type,
		})
	return product, nil
}

// Update replaces every field of the product. Active is kept when the
// request leaves it out.
func (s *Service) Update(ctx context.Context, id int, req *models.ProductRequest) (*models.Product, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	product := fromRequest(req, current.Active)
	product.ID = id
	if err := s.repo.Save(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to update product %d: %w", id, err)
	}
	return product, nil
}

// Delete takes the product off the menu. Past orders keep referencing it.
func (s *Service) Delete(ctx context.Context, id int) error {
	ok, err := s.repo.Deactivate(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to remove product %d: %w", id, err)
	}
	if !ok {
		return repository.ErrNotFound
	}
	return nil
}

func fromRequest(req *models.ProductRequest, active bool) *models.Product {
	if req.Active != nil {
		active = *req.Active
	}
	return &models.Product{
		Name:          strings.TrimSpace(req.Name),
		Price:         req.Price,
		EstimatedTime: req.EstimatedTime,
		Type:          models.ProductType(strings.ToUpper(req.Type)),
		Active:        active,
	}
}

// ExportCSV writes the whole catalogue, header first.
func (s *Service) ExportCSV(ctx context.Context, w io.Writer) error {
	list, err := s.repo.GetAll(ctx)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, p := range list {
		record := []string{
			strconv.Itoa(p.ID),
			p.Name,
			strconv.FormatFloat(p.Price, 'f', 2, 64),
			strconv.Itoa(p.EstimatedTime),
			string(p.Type),
			strconv.FormatBool(p.Active),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// RowError points at the first bad line of an import.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// ImportCSV adds one product per row. Rows are
// name,price,estimated_time,type[,active]; an export with its leading id
// column is accepted too, ids are ignored. Nothing is stored unless every
// row is valid.
func (s *Service) ImportCSV(ctx context.Context, r io.Reader) ([]models.Product, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var requests []*models.ProductRequest
	for line := 1; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &RowError{Line: line, Err: err}
		}
		if line == 1 && isHeader(record) {
			continue
		}

		req, err := parseRow(record)
		if err != nil {
			return nil, &RowError{Line: line, Err: err}
		}
		requests = append(requests, req)
	}
	if len(requests) == 0 {
		return nil, &RowError{Line: 1, Err: errors.New("no products in file")}
	}

	created := make([]models.Product, 0, len(requests))
	for _, req := range requests {
		product, err := s.Create(ctx, req)
		if err != nil {
			return created, err
		}
		created = append(created, *product)
	}

	s.logger.Info("products_imported", fmt.Sprintf("Imported %d products", len(created)),
		logger.RequestIDFrom(ctx), map[string]interface{}{"count": len(created)})
	return created, nil
}

func isHeader(record []string) bool {
	for _, cell := range record {
		if strings.EqualFold(strings.TrimSpace(cell), "name") {
			return true
		}
	}
	return false
}

func parseRow(record []string) (*models.ProductRequest, error) {
	// An exported row starts with the id.
	if len(record) == len(CSVHeader) {
		record = record[1:]
	}
	if len(record) < 4 || len(record) > 5 {
		return nil, fmt.Errorf("expected 4 or 5 columns, got %d", len(record))
	}

	price, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
	if err != nil {
		return nil, fmt.Errorf("price %q is not a number", record[1])
	}
	estimated, err := strconv.Atoi(strings.TrimSpace(record[2]))
	if err != nil {
		return nil, fmt.Errorf("estimated_time %q is not a whole number of seconds", record[2])
	}
	req := &models.ProductRequest{
		Name:          record[0],
		Price:         price,
		EstimatedTime: estimated,
		Type:          strings.ToUpper(strings.TrimSpace(record[3])),
	}
	if len(record) == 5 {
		active, err := strconv.ParseBool(strings.TrimSpace(record[4]))
		if err != nil {
			return nil, fmt.Errorf("active %q is not a boolean", record[4])
		}
		req.Active = &active
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}
