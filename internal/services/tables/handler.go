package tables

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
	r.Get("/tables", h.ListTables)
	r.Get("/tables/popular", h.GetMostPopular)
	r.Get("/tables/{id}", h.GetTable)
	r.With(g.Partner).Post("/tables", h.CreateTable)
	r.With(g.Partner).Delete("/tables/{id}", h.DeleteTable)
}

// ListTables handles GET /tables, optionally filtered by ?status=
func (h *Handler) ListTables(w http.ResponseWriter, r *http.Request) {
	var (
		list []models.Table
		err  error
	)
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := models.TableStatus(strings.ToUpper(raw))
		if !status.Valid() {
			httpx.WriteError(w, h.logger, r, "list_tables", apperror.Invalid("unknown table status %q", raw))
			return
		}
		list, err = h.service.GetAllByStatus(r.Context(), status)
	} else {
		list, err = h.service.GetAll(r.Context())
	}
	if err != nil {
		httpx.WriteError(w, h.logger, r, "list_tables", err)
		return
	}
	httpx.WriteJSON(w, h.logger, r, http.StatusOK, list)
}

func (h *Handler) GetTable(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IntParam(r, "id")
	if err != nil {
		httpx.WriteError(w, h.logger, r, "get_table", err)
		return
	}
	table, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, h.logger, r, "get_table", mapError(err, id))
		return
	}
	httpx.WriteJSON(w, h.logger, r, http.StatusOK, table)
}

func (h *Handler) GetMostPopular(w http.ResponseWriter, r *http.Request) {
	table, err := h.service.GetMostPopular(r.Context())
	if errors.Is(err, repository.ErrNotFound) {
		httpx.WriteError(w, h.logger, r, "popular_table", apperror.NotFound("no table has orders yet"))
		return
	}
	if err != nil {
		httpx.WriteError(w, h.logger, r, "popular_table", err)
		return
	}
	httpx.WriteJSON(w, h.logger, r, http.StatusOK, table)
}

func (h *Handler) CreateTable(w http.ResponseWriter, r *http.Request) {
	table, err := h.service.Create(r.Context())
	if err != nil {
		httpx.WriteError(w, h.logger, r, "create_table", err)
		return
	}
	httpx.WriteJSON(w, h.logger, r, http.StatusCreated, table)
}

func (h *Handler) DeleteTable(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IntParam(r, "id")
	if err != nil {
		httpx.WriteError(w, h.logger, r, "delete_table", err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.WriteError(w, h.logger, r, "delete_table", mapError(err, id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func mapError(err error, id int) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperror.NotFound("table %d does not exist", id)
	case errors.Is(err, ErrNotClosed):
		return apperror.Conflict("table %d is in service and cannot be removed", id)
	}
	return err
}
