package surveys

import (
	"errors"
	"net/http"
	"strconv"

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

// RegisterRoutes mounts the survey routes. Customers fill surveys in, so
// only deleting one needs a token.
func (h *Handler) RegisterRoutes(r chi.Router, g auth.Guards) {
	r.Get("/surveys", h.ListSurveys)
	r.Get("/surveys/best", h.ListBest)
	r.Get("/surveys/{id}", h.GetSurvey)
	r.Post("/surveys", h.CreateSurvey)
	r.Post("/tables/{id}/orders/{orderId}/survey", h.CreateTableSurvey)
	r.Put("/surveys/{id}", h.UpdateSurvey)
	r.With(g.Partner).Delete("/surveys/{id}", h.DeleteSurvey)
}

func (h *Handler) ListSurveys(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.GetAll(r.Context())
	if err != nil {
		httpx.WriteError(w, h.logger, r, "list_surveys", err)
		return
	}
	httpx.WriteJSON(w, h.logger, r, http.StatusOK, list)
}

// ListBest handles GET /surveys/best?limit=
func (h *Handler) ListBest(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			httpx.WriteError(w, h.logger, r, "best_surveys", apperror.Invalid("limit must be a positive integer, got %q", raw))
			return
		}
		limit = n
	}
	list, err := h.service.GetBest(r.Context(), limit)
	if err != nil {
		httpx.WriteError(w, h.logger, r, "best_surveys", err)
		return
	}
	httpx.WriteJSON(w, h.logger, r, http.StatusOK, list)
}

func (h *Handler) GetSurvey(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IntParam(r, "id")
	if err != nil {
		httpx.WriteError(w, h.logger, r, "get_survey", err)
		return
	}
	survey, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, h.logger, r, "get_survey", mapError(err, id, ""))
		return
	}
	httpx.WriteJSON(w, h.logger, r, http.StatusOK, survey)
}

func (h *Handler) CreateSurvey(w http.ResponseWriter, r *http.Request) {
	var req models.SurveyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.logger, r, "create_survey", err)
		return
	}
	h.create(w, r, 0, &req)
}

// CreateTableSurvey handles POST /tables/{id}/orders/{orderId}/survey; the
// order id comes from the path.
func (h *Handler) CreateTableSurvey(w http.ResponseWriter, r *http.Request) {
	tableID, err := httpx.IntParam(r, "id")
	if err != nil {
		httpx.WriteError(w, h.logger, r, "create_survey", err)
		return
	}
	var req models.SurveyRequest
	if err := httpx.DecodeBody(r, &req); err != nil {
		httpx.WriteError(w, h.logger, r, "create_survey", err)
		return
	}
	req.OrderID = chi.URLParam(r, "orderId")
	if err := req.Validate(); err != nil {
		httpx.WriteError(w, h.logger, r, "create_survey", httpx.AsInvalid(err))
		return
	}
	h.create(w, r, tableID, &req)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request, tableID int, req *models.SurveyRequest) {
	survey, err := h.service.Create(r.Context(), tableID, req)
	if err != nil {
		httpx.WriteError(w, h.logger, r, "create_survey", mapError(err, 0, req.OrderID))
		return
	}
	httpx.WriteJSON(w, h.logger, r, http.StatusCreated, survey)
}

func (h *Handler) UpdateSurvey(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IntParam(r, "id")
	if err != nil {
		httpx.WriteError(w, h.logger, r, "update_survey", err)
		return
	}
	var req models.SurveyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.logger, r, "update_survey", err)
		return
	}
	survey, err := h.service.Update(r.Context(), id, &req)
	if err != nil {
		httpx.WriteError(w, h.logger, r, "update_survey", mapError(err, id, ""))
		return
	}
	httpx.WriteJSON(w, h.logger, r, http.StatusOK, survey)
}

func (h *Handler) DeleteSurvey(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IntParam(r, "id")
	if err != nil {
		httpx.WriteError(w, h.logger, r, "delete_survey", err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.WriteError(w, h.logger, r, "delete_survey", mapError(err, id, ""))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func mapError(err error, id int, orderID string) error {
	orderID = models.NormalizeOrderID(orderID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperror.NotFound("survey %d does not exist", id)
	case errors.Is(err, ErrOrderNotFound):
		return apperror.NotFound("order %s does not exist", orderID)
	case errors.Is(err, ErrOrderNotPaid):
		return apperror.Conflict("order %s is not paid yet", orderID)
	case errors.Is(err, ErrAlreadyRated):
		return apperror.Conflict("order %s already has a survey", orderID)
	}
	return err
}
