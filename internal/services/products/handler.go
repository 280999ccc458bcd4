package products

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
	r.Get("/products", h.ListProducts)
	r.Get("/products/csv", h.ExportCSV)
	r.Get("/products/{id}", h.GetProduct)
	r.Group(func(r chi.Router) {
		r.Use(g.Kitchen)
		r.Post("/products", h.CreateProduct)
		r.Post("/products/csv", h.ImportCSV)
		r.Put("/products/{id}", h.UpdateProduct)
		r.Delete("/products/{id}", h.DeleteProduct)
	})
}

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.GetAll(r.Context())
	if err != nil {
		httpx.WriteError(w, h.logger, r, "list_products", err)
		return
	}
	httpx.WriteJSON(w, h.logger, r, http.StatusOK, list)
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IntParam(r, "id")
	if err != nil {
		httpx.WriteError(w, h.logger, r, "get_product", err)
		return
	}
	product, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, h.logger, r, "get_product", mapError(err, id))
		return
	}
	httpx.WriteJSON(w, h.logger, r, http.StatusOK, product)
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req models.ProductRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.logger, r, "create_product", err)
		return
	}
	product, err := h.service.Create(r.Context(), &req)
	if err != nil {
		httpx.WriteError(w, h.logger, r, "create_product", err)
		return
	}
	httpx.WriteJSON(w, h.logger, r, http.StatusCreated, product)
}

func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IntParam(r, "id")
	if err != nil {
		httpx.WriteError(w, h.logger, r, "update_product", err)
		return
	}
	var req models.ProductRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.logger, r, "update_product", err)
		return
	}
	product, err := h.service.Update(r.Context(), id, &req)
	if err != nil {
		httpx.WriteError(w, h.logger, r, "update_product", mapError(err, id))
		return
	}
	httpx.WriteJSON(w, h.logger, r, http.StatusOK, product)
}

func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IntParam(r, "id")
	if err != nil {
		httpx.WriteError(w, h.logger, r, "delete_product", err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.WriteError(w, h.logger, r, "delete_product", mapError(err, id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportCSV handles GET /products/csv
func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="products.csv"`)
	if err := h.service.ExportCSV(r.Context(), w); err != nil {
		// Headers may already be out; all that is left is to log.
		h.logger.Error("export_products", "Failed to export products", logger.RequestIDFrom(r.Context()), err, nil)
	}
}

// ImportCSV handles POST /products/csv with a CSV request body
func (h *Handler) ImportCSV(w http.ResponseWriter, r *http.Request) {
	created, err := h.service.ImportCSV(r.Context(), r.Body)
	var rowErr *RowError
	if errors.As(err, &rowErr) {
		httpx.WriteError(w, h.logger, r, "import_products", apperror.Invalid("%s", rowErr.Error()))
		return
	}
	if err != nil {
		httpx.WriteError(w, h.logger, r, "import_products", err)
		return
	}
	httpx.WriteJSON(w, h.logger, r, http.StatusCreated, map[string]interface{}{
		"imported": len(created),
		"products": created,
	})
}

func mapError(err error, id int) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.NotFound("product %d does not exist", id)
	}
	return err
}
