package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sessionkit/auth-api/internal/models"
	"github.com/sessionkit/auth-api/internal/pkg/log"
	"github.com/sessionkit/auth-api/internal/storage"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// UserByID возвращает пользователя без хэшей.
func (s *Service) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const op = "service.users.UserByID"

	user, err := s.storage.UserByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user.Sanitized(), nil
}

// PageSize нормализует размер страницы: 0 означает DefaultPageSize,
// больше MaxPageSize обрезается.
func PageSize(limit uint64) uint64 {
	switch {
	case limit == 0:
		return DefaultPageSize
	case limit > MaxPageSize:
		return MaxPageSize
	default:
		return limit
	}
}

// ListUsers возвращает страницу пользователей без хэшей.
func (s *Service) ListUsers(ctx context.Context, limit, offset uint64) ([]models.User, error) {
	const op = "service.users.ListUsers"

	users, err := s.storage.ListUsers(ctx, PageSize(limit), offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for i := range users {
		users[i] = *users[i].Sanitized()
	}

	return users, nil
}

// SetTier назначает пользователю уровень; nil снимает его.
func (s *Service) SetTier(ctx context.Context, id uuid.UUID, tier *models.Tier) error {
	const op = "service.users.SetTier"

	if tier != nil && !tier.Valid() {
		return fmt.Errorf("%s: %w", op, ErrInvalidTier)
	}

	if err := s.storage.SetTier(ctx, id, tier); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	attrs := []any{slog.String("op", op), slog.String("user_id", id.String())}
	if tier != nil {
		attrs = append(attrs, slog.String("tier", string(*tier)))
	}
	log.From(ctx).Info("user_tier_changed", attrs...)

	return nil
}

// ClearExpiredSessions удаляет просроченные хэши refresh-токенов.
func (s *Service) ClearExpiredSessions(ctx context.Context) (int64, error) {
	const op = "service.users.ClearExpiredSessions"

	n, err := s.storage.ClearExpiredRefreshTokens(ctx, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return n, nil
}
