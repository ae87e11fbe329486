// storage задаёт контракты хранилища пользователей и его ошибки.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/sessionkit/auth-api/internal/models"
)

var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists — нарушение уникальности (email/phone).
	ErrAlreadyExists = errors.New("already exists")
	// ErrConflict — условное обновление не применилось: сохранённое значение
	// уже отличается от ожидаемого (refresh-хэш ротирован конкурентным запросом).
	ErrConflict = errors.New("conflict")
)

// UserStorage выполняет операции над пользователями.
type UserStorage interface {
	// SaveUser создаёт нового пользователя.
	SaveUser(ctx context.Context, user *models.User) error
	// UserByID находит пользователя по ID.
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// UserByIdentifier находит пользователя, у которого email = email ИЛИ phone = phone.
	// Пустые аргументы в условие не попадают.
	UserByIdentifier(ctx context.Context, email, phone string) (*models.User, error)
	// ListUsers возвращает страницу пользователей, упорядоченных по дате создания.
	ListUsers(ctx context.Context, limit, offset uint64) ([]models.User, error)
	// SetTier меняет уровень пользователя; nil снимает уровень.
	SetTier(ctx context.Context, id uuid.UUID, tier *models.Tier) error
}

// SessionStorage хранит хэш единственного действующего refresh-токена пользователя.
type SessionStorage interface {
	// SetRefreshTokenHash безусловно перезаписывает хэш (вход).
	SetRefreshTokenHash(ctx context.Context, id uuid.UUID, hash string, expiresAt time.Time) error
	// SwapRefreshTokenHash заменяет хэш, только если сохранён ровно oldHash (ротация);
	// иначе ErrConflict.
	SwapRefreshTokenHash(ctx context.Context, id uuid.UUID, oldHash, newHash string, expiresAt time.Time) error
	// ClearRefreshTokenHash удаляет сохранённый хэш (выход).
	ClearRefreshTokenHash(ctx context.Context, id uuid.UUID) error
	// ClearExpiredRefreshTokens удаляет хэши, срок которых истёк к now.
	ClearExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}

// Storage задаёт контракт работы с БД.
type Storage interface {
	UserStorage
	SessionStorage
	Close()
}
