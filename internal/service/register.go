package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sessionkit/auth-api/internal/metrics"
	"github.com/sessionkit/auth-api/internal/models"
	"github.com/sessionkit/auth-api/internal/pkg/log"
	"github.com/sessionkit/auth-api/internal/storage"
	"github.com/sessionkit/auth-api/internal/validation"
)

// Register создаёт пользователя с ролью USER по проверенным данным.
// Занятый e-mail/телефон и неудачная вставка наружу неразличимы
// (ErrRegistrationFailed), в логах — разные события.
// Возвращает пользователя без хэшей.
func (s *Service) Register(ctx context.Context, reg validation.Registration) (*models.User, error) {
	const op = "service.register.Register"

	lg := log.From(ctx).With(slog.String("op", op))

	var email, phone string
	if reg.Email != nil {
		email = *reg.Email
	}
	if reg.Phone != nil {
		phone = *reg.Phone
	}

	var created *models.User
	err := s.tx.Do(ctx, func(ctx context.Context) error {
		_, err := s.storage.UserByIdentifier(ctx, email, phone)
		if err == nil {
			lg.Info("register_duplicate_contact")
			return ErrRegistrationFailed
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}

		hash, err := s.hasher.Hash(reg.Password)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		user := &models.User{
			ID:           uuid.New(),
			Name:         reg.Name,
			Surname:      reg.Surname,
			Email:        reg.Email,
			Phone:        reg.Phone,
			PasswordHash: &hash,
			Role:         models.RoleUser,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		if err := s.storage.SaveUser(ctx, user); err != nil {
			if errors.Is(err, storage.ErrAlreadyExists) {
				lg.Info("register_duplicate_contact", slog.String("stage", "insert"))
			} else {
				lg.Error("register_create_failed", slog.String("err", err.Error()))
			}
			return ErrRegistrationFailed
		}

		created = user
		return nil
	})
	if err != nil {
		metrics.AuthEvent("register", "rejected")
		if errors.Is(err, ErrRegistrationFailed) {
			return nil, fmt.Errorf("%s: %w", op, ErrRegistrationFailed)
		}

		lg.Error("register_failed", slog.String("err", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	lg.Info("user_registered", slog.String("user_id", created.ID.String()))
	metrics.AuthEvent("register", "ok")
	return created.Sanitized(), nil
}
