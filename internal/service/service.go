// service содержит бизнес-логику сессий: проверку учётных данных,
// выпуск и ротацию пары access/refresh, регистрацию и операции
// админ-панели над пользователями.
//
// Основные аспекты:
//   - Service не хранит состояние запроса; экземпляр безопасен для
//     конкурентного использования, если потокобезопасны зависимости.
//   - Единственное серверное состояние сессии — argon2id-хэш текущего
//     refresh-токена в записи пользователя. Вход перезаписывает его,
//     ротация заменяет условно (compare-and-swap).
//   - Ошибки маппятся транспортом на HTTP-статусы (см. комментарии ниже).
package service

import (
	"context"
	"errors"
	"time"

	"github.com/sessionkit/auth-api/internal/models"
	"github.com/sessionkit/auth-api/internal/storage"
	"github.com/sessionkit/auth-api/internal/token"
)

var (
	// ErrUnauthorized — общая ошибка аутентификации: нет пользователя,
	// неверный пароль, невалидный/истёкший/ротированный токен.
	// Причина наружу не раскрывается. Транспорт: HTTP 401.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRegistrationFailed — регистрация не удалась (контакт занят или
	// запись не создана). Транспорт: HTTP 400.
	ErrRegistrationFailed = errors.New("registration failed")

	// ErrForbidden — не хватает роли или уровня. Транспорт: HTTP 403.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound — пользователь не найден (админ-операции). Транспорт: HTTP 404.
	ErrNotFound = errors.New("user not found")

	// ErrInvalidTier — неизвестный уровень подписки. Транспорт: HTTP 400.
	ErrInvalidTier = errors.New("invalid tier")
)

// PasswordHasher хэширует и проверяет пароли и refresh-токены.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(encoded, plain string) (bool, error)
}

// TokenSigner выпускает и проверяет подписанные токены.
type TokenSigner interface {
	Sign(p models.TokenPayload, kind token.Kind) (string, time.Time, error)
	Verify(raw string, kind token.Kind) (*models.TokenPayload, error)
	TTL(kind token.Kind) time.Duration
}

// TxManager выполняет fn в транзакции, доступной хранилищу через контекст.
type TxManager interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service описывает бизнес-логику сессий.
type Service struct {
	storage storage.Storage
	hasher  PasswordHasher
	signer  TokenSigner
	tx      TxManager

	// dummyHash сверяется с паролем, когда настоящего хэша нет, чтобы
	// неудачный вход стоил одинаково при любой причине.
	dummyHash string
}

// New создаёт новый экземпляр Service. tx может быть nil:
// тогда операции выполняются без транзакции.
func New(storage storage.Storage, hasher PasswordHasher, signer TokenSigner, tx TxManager) *Service {
	if tx == nil {
		tx = noTx{}
	}

	// Ошибка оставляет dummyHash пустым; verifyDummy тогда ничего не делает.
	dummy, _ := hasher.Hash("session-dummy-password")

	return &Service{
		storage:   storage,
		hasher:    hasher,
		signer:    signer,
		tx:        tx,
		dummyHash: dummy,
	}
}

type noTx struct{}

func (noTx) Do(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

// verifyDummy тратит на проверку пароля столько же, сколько сверка
// с настоящим хэшем тех же параметров. Результат не важен.
func (s *Service) verifyDummy(password string) {
	if s.dummyHash != "" {
		_, _ = s.hasher.Verify(s.dummyHash, password)
	}
}
