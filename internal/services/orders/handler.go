package orders

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"comanda/internal/apperror"
	"comanda/internal/auth"
	"comanda/internal/httpx"
	"comanda/internal/logger"
	"comanda/internal/models"
	"comanda/internal/repository"
)

type Handler struct {
	service *Service
	logger  *logger.Logger
}

func NewHandler(service *Service, log *logger.Logger) *Handler {
	return &Handler{service: service, logger: log}
}

func (h *Handler) RegisterRoutes(r chi.Router, g auth.Guards) {
	r.Group(func(r chi.Router) {
		r.Use(g.Waiter)
		r.Get("/orders", h.ListOrders)
		r.Get("/orders/{id}", h.GetOrder)
		r.Get("/orders/{id}/history", h.GetHistory)
		r.Delete("/orders/{id}", h.DeleteOrder)
	})
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.GetAll(r.Context())
	if err != nil {
		httpx.WriteError(w, h.logger, r, "list_orders", err)
		return
	}
	httpx.WriteJSON(w, h.logger, r, http.StatusOK, list)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	order, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, h.logger, r, "get_order", mapError(err, id))
		return
	}
	httpx.WriteJSON(w, h.logger, r, http.StatusOK, order)
}

// GetHistory handles GET /orders/{id}/history
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	history, err := h.service.GetHistory(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, h.logger, r, "get_order_history", mapError(err, id))
		return
	}
	httpx.WriteJSON(w, h.logger, r, http.StatusOK, map[string]interface{}{
		"order_id": models.NormalizeOrderID(id),
		"history":  history,
	})
}

func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.WriteError(w, h.logger, r, "delete_order", mapError(err, id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func mapError(err error, id string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperror.NotFound("order %s does not exist", models.NormalizeOrderID(id))
	case errors.Is(err, ErrNotPaid):
		return apperror.Conflict("order %s is still in service and cannot be deleted", models.NormalizeOrderID(id))
	}
	return err
}
