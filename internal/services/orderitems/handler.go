package orderitems

import (
	"errors"
	"net/http"
	"strings"

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
		r.Use(g.Kitchen)
		r.Get("/items", h.ListItems)
		r.Get("/items/pending", h.ListPending)
		r.Get("/items/{id}", h.GetItem)
		r.Delete("/items/{id}", h.DeleteItem)
	})
}

// ListItems handles GET /items, optionally filtered by ?order=
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	var (
		list []models.OrderItem
		err  error
	)
	if orderID := r.URL.Query().Get("order"); orderID != "" {
		list, err = h.service.GetByOrderID(r.Context(), models.NormalizeOrderID(orderID))
	} else {
		list, err = h.service.GetAll(r.Context())
	}
	if err != nil {
		httpx.WriteError(w, h.logger, r, "list_items", err)
		return
	}
	httpx.WriteJSON(w, h.logger, r, http.StatusOK, list)
}

// ListPending handles GET /items/pending. Without ?type= the queue follows
// the caller's role.
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	var (
		list []models.OrderItem
		err  error
	)
	if raw := r.URL.Query().Get("type"); raw != "" {
		productType := models.ProductType(strings.ToUpper(raw))
		if !productType.Valid() {
			httpx.WriteError(w, h.logger, r, "list_pending_items", apperror.Invalid("unknown product type %q", raw))
			return
		}
		list, err = h.service.GetAllPendingByType(r.Context(), productType)
	} else {
		list, err = h.service.Queue(r.Context(), auth.RoleFrom(r.Context()))
	}
	if err != nil {
		httpx.WriteError(w, h.logger, r, "list_pending_items", err)
		return
	}
	httpx.WriteJSON(w, h.logger, r, http.StatusOK, list)
}

func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IntParam(r, "id")
	if err != nil {
		httpx.WriteError(w, h.logger, r, "get_item", err)
		return
	}
	item, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, h.logger, r, "get_item", MapError(err, id))
		return
	}
	httpx.WriteJSON(w, h.logger, r, http.StatusOK, item)
}

func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IntParam(r, "id")
	if err != nil {
		httpx.WriteError(w, h.logger, r, "delete_item", err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.WriteError(w, h.logger, r, "delete_item", MapError(err, id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MapError turns item sentinels into client-facing errors.
func MapError(err error, id int) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperror.NotFound("item %d does not exist", id)
	case errors.Is(err, ErrInvalidState):
		return apperror.Conflict("item %d is not in the right state for this step", id)
	case errors.Is(err, ErrOrderInService):
		return apperror.Conflict("item %d belongs to an order still in service", id)
	}
	return err
}
