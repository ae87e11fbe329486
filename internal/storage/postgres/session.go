package postgres

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/sessionkit/auth-api/internal/storage"
)

// SetRefreshTokenHash безусловно перезаписывает хэш refresh-токена.
func (s *Storage) SetRefreshTokenHash(ctx context.Context, id uuid.UUID, hash string, expiresAt time.Time) error {
	const op = "storage.postgres.SetRefreshTokenHash"

	n, err := s.updateRefresh(ctx, byID(id), &hash, &expiresAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if n == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

// SwapRefreshTokenHash — compare-and-swap хэша одним UPDATE.
// Из двух конкурентных ротаций одного токена применяется ровно одна.
func (s *Storage) SwapRefreshTokenHash(ctx context.Context, id uuid.UUID, oldHash, newHash string, expiresAt time.Time) error {
	const op = "storage.postgres.SwapRefreshTokenHash"

	n, err := s.updateRefresh(ctx, sq.And{byID(id), sq.Eq{"refresh_token_hash": oldHash}}, &newHash, &expiresAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if n == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrConflict)
	}

	return nil
}

// ClearRefreshTokenHash удаляет хэш refresh-токена пользователя.
func (s *Storage) ClearRefreshTokenHash(ctx context.Context, id uuid.UUID) error {
	const op = "storage.postgres.ClearRefreshTokenHash"

	n, err := s.updateRefresh(ctx, byID(id), nil, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if n == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

// ClearExpiredRefreshTokens удаляет все просроченные хэши и возвращает их число.
func (s *Storage) ClearExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	const op = "storage.postgres.ClearExpiredRefreshTokens"

	n, err := s.updateRefresh(ctx, sq.And{
		sq.NotEq{"refresh_token_hash": nil},
		sq.LtOrEq{"refresh_expires_at": now},
	}, nil, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return n, nil
}

func (s *Storage) updateRefresh(ctx context.Context, where sq.Sqlizer, hash *string, expiresAt *time.Time) (int64, error) {
	query, args, err := psql.Update(usersTable).
		Set("refresh_token_hash", hash).
		Set("refresh_expires_at", expiresAt).
		Set("updated_at", sq.Expr("now()")).
		Where(where).
		ToSql()
	if err != nil {
		return 0, err
	}

	tag, err := s.conn(ctx).Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}

	return tag.RowsAffected(), nil
}
