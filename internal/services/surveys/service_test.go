package surveys

import (
	"context"
	"errors"
	"testing"

	"comanda/internal/logger"
	"comanda/internal/models"
	"comanda/internal/repository"
	"comanda/internal/repository/memory"
)

func setup(t *testing.T) (*Service, *repository.Store) {
	t.Helper()
	store := memory.New()
	ctx := context.Background()
	orders := []models.Order{
		{ID: "PAID1", TableID: 1, ClientName: "Ana", Status: models.OrderPaid},
		{ID: "PAID2", TableID: 2, ClientName: "Rui", Status: models.OrderPaid},
		{ID: "OPEN1", TableID: 3, ClientName: "Eva", Status: models.OrderServed},
	}
	for i := range orders {
		if err := store.Orders.Create(ctx, &orders[i], "test"); err != nil {
			t.Fatal(err)
		}
	}
	return NewService(store.Surveys, store.Orders, logger.Nop()), store
}

func rating(orderID string, score int) *models.SurveyRequest {
	return &models.SurveyRequest{
		OrderID:          orderID,
		TableRating:      score,
		RestaurantRating: score,
		WaiterRating:     score,
		ChefRating:       score,
	}
}

func TestCreate(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	survey, err := svc.Create(ctx, 1, rating("paid1", 8))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if survey.OrderID != "PAID1" || survey.Average() != 8 {
		t.Fatalf("survey = %+v", survey)
	}

	tests := []struct {
		name    string
		tableID int
		req     *models.SurveyRequest
		want    error
	}{
		{"second survey", 0, rating("PAID1", 5), ErrAlreadyRated},
		{"order still open", 0, rating("OPEN1", 5), ErrOrderNotPaid},
		{"unknown order", 0, rating("NOPE1", 5), ErrOrderNotFound},
		{"wrong table", 9, rating("PAID2", 5), ErrOrderNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, tt.tableID, tt.req); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestBestUpdateDelete(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	low, err := svc.Create(ctx, 0, rating("PAID1", 4))
	if err != nil {
		t.Fatal(err)
	}
	high, err := svc.Create(ctx, 0, rating("PAID2", 9))
	if err != nil {
		t.Fatal(err)
	}

	best, err := svc.GetBest(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(best) != 1 || best[0].ID != high.ID {
		t.Fatalf("best = %+v", best)
	}

	comment := "  much better now "
	req := rating("PAID1", 10)
	req.Comment = &comment
	updated, err := svc.Update(ctx, low.ID, req)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Comment == nil || *updated.Comment != "much better now" {
		t.Fatalf("comment = %v", updated.Comment)
	}
	best, err = svc.GetBest(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if best[0].ID != low.ID {
		t.Fatalf("updated survey must rank first, got %+v", best)
	}

	if err := svc.Delete(ctx, low.ID); err != nil {
		t.Fatal(err)
	}
	if err := svc.Delete(ctx, low.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("second Delete: err = %v", err)
	}
}
