// Package users manages staff accounts and issues login tokens.
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"comanda/internal/logger"
	"comanda/internal/models"
	"comanda/internal/repository"
)

var (
	// ErrEmailTaken is returned when another account already uses the email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrBadCredentials covers unknown emails, wrong passwords and inactive accounts alike.
	ErrBadCredentials = errors.New("invalid email or password")
)

// TokenIssuer signs a login token for a user.
type TokenIssuer interface {
	Issue(user *models.User) (string, time.Time, error)
}

type Service struct {
	repo   repository.UserRepository
	tokens TokenIssuer
	logger *logger.Logger
	cost   int
}

func NewService(repo repository.UserRepository, tokens TokenIssuer, log *logger.Logger) *Service {
	return &Service{repo: repo, tokens: tokens, logger: log, cost: bcrypt.DefaultCost}
}

// WithCost sets the bcrypt cost of new password hashes.
func (s *Service) WithCost(cost int) *Service {
	s.cost = cost
	return s
}

func (s *Service) GetAll(ctx context.Context) ([]models.User, error) {
	return s.repo.GetAll(ctx)
}

func (s *Service) GetByID(ctx context.Context, id int) (*models.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Create(ctx context.Context, req *models.UserRequest) (*models.User, error) {
	hash, err := s.hash(req.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Email:        normalizeEmail(req.Email),
		PasswordHash: hash,
		Role:         models.Role(req.Role),
		Active:       req.Active == nil || *req.Active,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user_created", fmt.Sprintf("User %d (%s) created", user.ID, user.Role),
		logger.RequestIDFrom(ctx), map[string]interface{}{
			"user_id": user.ID,
			"role":    user.Role,
		})
	return user, nil
}

// Update replaces the account details. An empty password keeps the old one.
func (s *Service) Update(ctx context.Context, id int, req *models.UserRequest) (*models.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	user.FirstName = strings.TrimSpace(req.FirstName)
	user.LastName = strings.TrimSpace(req.LastName)
	user.Email = normalizeEmail(req.Email)
	user.Role = models.Role(req.Role)
	if req.Active != nil {
		user.Active = *req.Active
	}
	if req.Password != "" {
		if user.PasswordHash, err = s.hash(req.Password); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Save(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return user, nil
}

// Delete deactivates the account; it can no longer log in.
func (s *Service) Delete(ctx context.Context, id int) error {
	ok, err := s.repo.Deactivate(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate user %d: %w", id, err)
	}
	if !ok {
		return repository.ErrNotFound
	}
	return nil
}

func (s *Service) Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error) {
	user, err := s.repo.GetByEmail(ctx, normalizeEmail(req.Email))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrBadCredentials
	}
	if err != nil {
		return nil, err
	}
	if !user.Active || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		s.logger.Info("login_rejected", "Rejected login attempt", logger.RequestIDFrom(ctx),
			map[string]interface{}{"user_id": user.ID})
		return nil, ErrBadCredentials
	}

	token, expires, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &models.LoginResponse{Token: token, ExpiresAt: expires, User: user}, nil
}

// EnsurePartner creates a PARTNER account unless the email is already registered.
func (s *Service) EnsurePartner(ctx context.Context, email, password string) error {
	_, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	_, err = s.Create(ctx, &models.UserRequest{
		FirstName: "Restaurant",
		LastName:  "Partner",
		Email:     email,
		Password:  password,
		Role:      string(models.RolePartner),
	})
	if errors.Is(err, ErrEmailTaken) {
		return nil
	}
	return err
}

func (s *Service) hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
