package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	trmpgx "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/avito-tech/go-transaction-manager/trm/v2/manager"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/sessionkit/auth-api/internal/models"
	"github.com/sessionkit/auth-api/internal/storage"
)

// Интеграционные тесты пакета postgres:
// - поднимают PostgreSQL через testcontainers-go (postgres:16-alpine);
// - применяют встроенные миграции через Migrate (goose);
// - проверяют поиск по email ИЛИ телефону, уникальность, CAS ротации
//   refresh-хэша, очистку просроченных хэшей и откат транзакции.
//
// Запуск локально:
//   GO_TEST_INTEGRATION=1 go test ./internal/storage/postgres -v -race -count=1

// startPostgres поднимает временный PostgreSQL, применяет миграции
// и возвращает хранилище. Без GO_TEST_INTEGRATION тест пропускается.
func startPostgres(t *testing.T) *Storage {
	t.Helper()
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		t.Skip("integration tests are disabled (set GO_TEST_INTEGRATION=1)")
	}

	ctx := context.Background()
	req := tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		Env:          map[string]string{"POSTGRES_USER": "user", "POSTGRES_PASSWORD": "pass", "POSTGRES_DB": "db"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)
	dsn := fmt.Sprintf("postgres://user:pass@%s:%s/db?sslmode=disable", host, port.Port())

	require.NoError(t, Migrate(ctx, dsn))

	st, err := New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(st.Close)

	return st
}

func ptr[T any](v T) *T { return &v }

func newUser(email, phone *string) *models.User {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.User{
		ID:           uuid.New(),
		Name:         "Ada",
		Surname:      "Lovelace",
		Email:        email,
		Phone:        phone,
		PasswordHash: ptr("$argon2id$v=19$m=1024,t=1,p=1$c2FsdA$aGFzaA"),
		Role:         models.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestIntegration_SaveUser_And_Lookups_OK(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()

	u := newUser(ptr("Ada@Example.com"), ptr("+905321234567"))
	require.NoError(t, st.SaveUser(ctx, u))

	byID, err := st.UserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, u.ID, byID.ID)
	require.Equal(t, models.RoleUser, byID.Role)
	require.Nil(t, byID.Tier)
	require.Nil(t, byID.RefreshTokenHash)
	require.WithinDuration(t, u.CreatedAt, byID.CreatedAt, time.Millisecond)

	// CITEXT: поиск по e-mail регистронезависим.
	byEmail, err := st.UserByIdentifier(ctx, "ada@example.com", "")
	require.NoError(t, err)
	require.Equal(t, u.ID, byEmail.ID)

	byPhone, err := st.UserByIdentifier(ctx, "", "+905321234567")
	require.NoError(t, err)
	require.Equal(t, u.ID, byPhone.ID)

	// Совпадение по любому из полей.
	byEither, err := st.UserByIdentifier(ctx, "nobody@example.com", "+905321234567")
	require.NoError(t, err)
	require.Equal(t, u.ID, byEither.ID)
}

func TestIntegration_UserLookups_NotFound(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()

	_, err := st.UserByID(ctx, uuid.New())
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = st.UserByIdentifier(ctx, "missing@example.com", "+10000000000")
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = st.UserByIdentifier(ctx, "", "")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestIntegration_SaveUser_DuplicateContact(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()

	require.NoError(t, st.SaveUser(ctx, newUser(ptr("dup@example.com"), nil)))
	err := st.SaveUser(ctx, newUser(ptr("DUP@example.com"), nil))
	require.ErrorIs(t, err, storage.ErrAlreadyExists)

	require.NoError(t, st.SaveUser(ctx, newUser(nil, ptr("+905551112233"))))
	err = st.SaveUser(ctx, newUser(nil, ptr("+905551112233")))
	require.ErrorIs(t, err, storage.ErrAlreadyExists)
}

func TestIntegration_RefreshHash_SetSwapClear(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()

	u := newUser(ptr("rot@example.com"), nil)
	require.NoError(t, st.SaveUser(ctx, u))
	exp := time.Now().Add(time.Hour).UTC()

	require.NoError(t, st.SetRefreshTokenHash(ctx, u.ID, "h1", exp))

	// Ротация с верным ожидаемым значением проходит.
	require.NoError(t, st.SwapRefreshTokenHash(ctx, u.ID, "h1", "h2", exp))

	// Повторная ротация по старому значению — конфликт (проиграли гонку).
	err := st.SwapRefreshTokenHash(ctx, u.ID, "h1", "h3", exp)
	require.ErrorIs(t, err, storage.ErrConflict)

	got, err := st.UserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "h2", *got.RefreshTokenHash)
	require.NotNil(t, got.RefreshExpiresAt)

	require.NoError(t, st.ClearRefreshTokenHash(ctx, u.ID))
	got, err = st.UserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Nil(t, got.RefreshTokenHash)
	require.Nil(t, got.RefreshExpiresAt)

	require.ErrorIs(t, st.SetRefreshTokenHash(ctx, uuid.New(), "h", exp), storage.ErrNotFound)
	require.ErrorIs(t, st.ClearRefreshTokenHash(ctx, uuid.New()), storage.ErrNotFound)
}

func TestIntegration_ClearExpiredRefreshTokens(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()
	now := time.Now().UTC()

	expired := newUser(ptr("old@example.com"), nil)
	fresh := newUser(ptr("new@example.com"), nil)
	require.NoError(t, st.SaveUser(ctx, expired))
	require.NoError(t, st.SaveUser(ctx, fresh))
	require.NoError(t, st.SetRefreshTokenHash(ctx, expired.ID, "old", now.Add(-time.Minute)))
	require.NoError(t, st.SetRefreshTokenHash(ctx, fresh.ID, "new", now.Add(time.Hour)))

	n, err := st.ClearExpiredRefreshTokens(ctx, now)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	got, err := st.UserByID(ctx, expired.ID)
	require.NoError(t, err)
	require.Nil(t, got.RefreshTokenHash)

	got, err = st.UserByID(ctx, fresh.ID)
	require.NoError(t, err)
	require.Equal(t, "new", *got.RefreshTokenHash)
}

func TestIntegration_ListUsers_And_SetTier(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()

	a := newUser(ptr("a@example.com"), nil)
	b := newUser(ptr("b@example.com"), nil)
	b.CreatedAt = a.CreatedAt.Add(time.Second)
	require.NoError(t, st.SaveUser(ctx, a))
	require.NoError(t, st.SaveUser(ctx, b))

	page, err := st.ListUsers(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, a.ID, page[0].ID)

	page, err = st.ListUsers(ctx, 10, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, b.ID, page[0].ID)

	gold := models.TierGold
	require.NoError(t, st.SetTier(ctx, a.ID, &gold))
	got, err := st.UserByID(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Tier)
	require.Equal(t, models.TierGold, *got.Tier)

	require.NoError(t, st.SetTier(ctx, a.ID, nil))
	got, err = st.UserByID(ctx, a.ID)
	require.NoError(t, err)
	require.Nil(t, got.Tier)

	require.ErrorIs(t, st.SetTier(ctx, uuid.New(), &gold), storage.ErrNotFound)
}

// Запросы внутри manager.Do идут в транзакцию и откатываются вместе с ней.
func TestIntegration_TransactionRollback(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()

	trm, err := manager.New(trmpgx.NewDefaultFactory(st.Pool()))
	require.NoError(t, err)

	u := newUser(ptr("tx@example.com"), nil)
	boom := errors.New("boom")

	err = trm.Do(ctx, func(ctx context.Context) error {
		if err := st.SaveUser(ctx, u); err != nil {
			return err
		}
		if _, err := st.UserByID(ctx, u.ID); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = st.UserByID(ctx, u.ID)
	require.ErrorIs(t, err, storage.ErrNotFound)
}
