package ordering

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"comanda/internal/apperror"
	"comanda/internal/auth"
	"comanda/internal/httpx"
	"comanda/internal/logger"
	"comanda/internal/models"
)

// PictureField is the multipart form field carrying a table picture.
const PictureField = "image"

type Handler struct {
	service        *Service
	logger         *logger.Logger
	maxUploadBytes int64
}

func NewHandler(service *Service, log *logger.Logger, maxUploadBytes int64) *Handler {
	return &Handler{service: service, logger: log, maxUploadBytes: maxUploadBytes}
}

func (h *Handler) RegisterRoutes(r chi.Router, g auth.Guards) {
	r.Group(func(r chi.Router) {
		r.Use(g.Waiter)
		r.Post("/tables/{id}/order", h.PlaceOrder)
		r.Post("/tables/{id}/picture", h.TakePicture)
		r.Post("/tables/{id}/serve", h.Serve)
		r.Post("/tables/{id}/charge", h.Charge)
		r.Get("/orders/pending", h.ListPending)
		r.Get("/orders/ready", h.ListReady)
	})
	// Customers check their own wait, so no token is needed.
	r.Get("/tables/{id}/orders/{orderId}", h.GetPendingTime)
	r.With(g.Partner).Post("/tables/{id}/close", h.Close)
	r.Group(func(r chi.Router) {
		r.Use(g.Kitchen)
		r.Post("/items/{id}/start", h.StartPreparation)
		r.Post("/items/{id}/finish", h.FinishPreparation)
	})
}

func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	tableID, err := httpx.IntParam(r, "id")
	if err != nil {
		httpx.WriteError(w, h.logger, r, "place_order", err)
		return
	}
	var req models.PlaceOrderRequest
	if err := httpx.DecodeBody(r, &req); err != nil {
		httpx.WriteError(w, h.logger, r, "place_order", err)
		return
	}

	placed, err := h.service.PlaceOrder(r.Context(), tableID, &req)
	if err != nil {
		httpx.WriteError(w, h.logger, r, "place_order", err)
		return
	}
	httpx.WriteJSON(w, h.logger, r, http.StatusCreated, placed)
}

// TakePicture handles POST /tables/{id}/picture. The picture is either the
// "image" field of a multipart form or the raw request body.
func (h *Handler) TakePicture(w http.ResponseWriter, r *http.Request) {
	tableID, err := httpx.IntParam(r, "id")
	if err != nil {
		httpx.WriteError(w, h.logger, r, "take_picture", err)
		return
	}
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}

	var picture io.Reader = r.Body
	if file, _, err := r.FormFile(PictureField); err == nil {
		defer file.Close()
		picture = file
	} else if !errors.Is(err, http.ErrNotMultipart) {
		httpx.WriteError(w, h.logger, r, "take_picture", apperror.Invalid("failed to read picture: %v", err))
		return
	}

	body := bufio.NewReader(picture)
	if _, err := body.Peek(1); err != nil {
		if errors.Is(err, io.EOF) {
			err = apperror.Invalid("picture is missing")
		} else {
			err = apperror.Invalid("failed to read picture: %v", err)
		}
		httpx.WriteError(w, h.logger, r, "take_picture", err)
		return
	}

	location, err := h.service.TakePicture(r.Context(), tableID, body)
	if err != nil {
		httpx.WriteError(w, h.logger, r, "take_picture", err)
		return
	}
	httpx.WriteJSON(w, h.logger, r, http.StatusCreated, map[string]interface{}{
		"table_id": tableID,
		"location": location,
	})
}

func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	h.tableAction(w, r, "serve_table", h.service.Serve)
}

func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	h.tableAction(w, r, "close_table", h.service.Close)
}

func (h *Handler) tableAction(w http.ResponseWriter, r *http.Request, action string, do func(ctx context.Context, id int) (*TableState, error)) {
	tableID, err := httpx.IntParam(r, "id")
	if err != nil {
		httpx.WriteError(w, h.logger, r, action, err)
		return
	}
	state, err := do(r.Context(), tableID)
	if err != nil {
		httpx.WriteError(w, h.logger, r, action, err)
		return
	}
	httpx.WriteJSON(w, h.logger, r, http.StatusOK, state)
}

func (h *Handler) Charge(w http.ResponseWriter, r *http.Request) {
	tableID, err := httpx.IntParam(r, "id")
	if err != nil {
		httpx.WriteError(w, h.logger, r, "charge_table", err)
		return
	}
	result, err := h.service.Charge(r.Context(), tableID)
	if err != nil {
		httpx.WriteError(w, h.logger, r, "charge_table", err)
		return
	}
	httpx.WriteJSON(w, h.logger, r, http.StatusOK, result)
}

// GetPendingTime handles GET /tables/{id}/orders/{orderId}
func (h *Handler) GetPendingTime(w http.ResponseWriter, r *http.Request) {
	tableID, err := httpx.IntParam(r, "id")
	if err != nil {
		httpx.WriteError(w, h.logger, r, "pending_time", err)
		return
	}
	pending, err := h.service.GetPendingTime(r.Context(), tableID, chi.URLParam(r, "orderId"))
	if err != nil {
		httpx.WriteError(w, h.logger, r, "pending_time", err)
		return
	}
	httpx.WriteJSON(w, h.logger, r, http.StatusOK, pending)
}

func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.GetPendingOrders(r.Context())
	if err != nil {
		httpx.WriteError(w, h.logger, r, "list_pending_orders", err)
		return
	}
	httpx.WriteJSON(w, h.logger, r, http.StatusOK, list)
}

func (h *Handler) ListReady(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.GetReadyOrders(r.Context())
	if err != nil {
		httpx.WriteError(w, h.logger, r, "list_ready_orders", err)
		return
	}
	httpx.WriteJSON(w, h.logger, r, http.StatusOK, list)
}

func (h *Handler) StartPreparation(w http.ResponseWriter, r *http.Request) {
	h.itemAction(w, r, "start_item", h.service.StartPreparation)
}

func (h *Handler) FinishPreparation(w http.ResponseWriter, r *http.Request) {
	h.itemAction(w, r, "finish_item", h.service.FinishPreparation)
}

func (h *Handler) itemAction(w http.ResponseWriter, r *http.Request, action string, do func(ctx context.Context, id int) (*ItemProgress, error)) {
	itemID, err := httpx.IntParam(r, "id")
	if err != nil {
		httpx.WriteError(w, h.logger, r, action, err)
		return
	}
	progress, err := do(r.Context(), itemID)
	if err != nil {
		httpx.WriteError(w, h.logger, r, action, err)
		return
	}
	httpx.WriteJSON(w, h.logger, r, http.StatusOK, progress)
}
