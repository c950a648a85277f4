package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"approvedpremises.io/cas/internal/domain"
	"approvedpremises.io/cas/internal/pkg/logger"
	"approvedpremises.io/cas/internal/repository"
)

// Principal is the authenticated caller as described by the token.
type Principal struct {
	Username string
	Name     string
	Email    string
}

// UserService resolves callers to users.
type UserService struct {
	store repository.Store
	now   func() time.Time
}

// NewUserService creates the service.
func NewUserService(d Deps) *UserService {
	return &UserService{store: d.Store, now: d.now}
}

// GetUserForRequest returns the user for p, creating one without roles on
// first sight of an unknown username.
func (s *UserService) GetUserForRequest(ctx context.Context, p Principal) (*domain.User, error) {
	username := strings.ToUpper(strings.TrimSpace(p.Username))
	if username == "" {
		return nil, errors.New("principal has no username")
	}
	u, err := s.store.GetUserByUsername(ctx, username)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("load user %s: %w", username, err)
	}

	u = &domain.User{
		ID:             newID(),
		DeliusUsername: username,
		Name:           p.Name,
		Email:          p.Email,
		CreatedAt:      s.now(),
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("create user %s: %w", username, err)
	}
	logger.FromContext(ctx).Info("User created on first request", zap.String("username", username))
	return u, nil
}
