package users

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
	r.Post("/login", h.Login)
	r.Group(func(r chi.Router) {
		r.Use(g.Partner)
		r.Get("/users", h.ListUsers)
		r.Get("/users/{id}", h.GetUser)
		r.Post("/users", h.CreateUser)
		r.Put("/users/{id}", h.UpdateUser)
		r.Delete("/users/{id}", h.DeleteUser)
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := httpx.DecodeBody(r, &req); err != nil {
		httpx.WriteError(w, h.logger, r, "login", err)
		return
	}
	if req.Email == "" || req.Password == "" {
		httpx.WriteError(w, h.logger, r, "login", apperror.Invalid("email and password are required"))
		return
	}

	resp, err := h.service.Login(r.Context(), &req)
	if errors.Is(err, ErrBadCredentials) {
		httpx.WriteError(w, h.logger, r, "login", apperror.Unauthorized("Invalid email or password"))
		return
	}
	if err != nil {
		httpx.WriteError(w, h.logger, r, "login", err)
		return
	}
	httpx.WriteJSON(w, h.logger, r, http.StatusOK, resp)
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.GetAll(r.Context())
	if err != nil {
		httpx.WriteError(w, h.logger, r, "list_users", err)
		return
	}
	httpx.WriteJSON(w, h.logger, r, http.StatusOK, list)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IntParam(r, "id")
	if err != nil {
		httpx.WriteError(w, h.logger, r, "get_user", err)
		return
	}
	user, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, h.logger, r, "get_user", mapError(err, id))
		return
	}
	httpx.WriteJSON(w, h.logger, r, http.StatusOK, user)
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	req, err := decodeUser(r, true)
	if err != nil {
		httpx.WriteError(w, h.logger, r, "create_user", err)
		return
	}
	user, err := h.service.Create(r.Context(), req)
	if err != nil {
		httpx.WriteError(w, h.logger, r, "create_user", mapError(err, 0))
		return
	}
	httpx.WriteJSON(w, h.logger, r, http.StatusCreated, user)
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IntParam(r, "id")
	if err != nil {
		httpx.WriteError(w, h.logger, r, "update_user", err)
		return
	}
	req, err := decodeUser(r, false)
	if err != nil {
		httpx.WriteError(w, h.logger, r, "update_user", err)
		return
	}
	user, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		httpx.WriteError(w, h.logger, r, "update_user", mapError(err, id))
		return
	}
	httpx.WriteJSON(w, h.logger, r, http.StatusOK, user)
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IntParam(r, "id")
	if err != nil {
		httpx.WriteError(w, h.logger, r, "delete_user", err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.WriteError(w, h.logger, r, "delete_user", mapError(err, id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeUser(r *http.Request, requirePassword bool) (*models.UserRequest, error) {
	var req models.UserRequest
	if err := httpx.DecodeBody(r, &req); err != nil {
		return nil, err
	}
	if err := req.Validate(requirePassword); err != nil {
		return nil, httpx.AsInvalid(err)
	}
	return &req, nil
}

func mapError(err error, id int) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperror.NotFound("user %d does not exist", id)
	case errors.Is(err, ErrEmailTaken):
		return apperror.Conflict("email is already registered")
	}
	return err
}
