// postgres реализует storage.Storage поверх PostgreSQL (pgx/v5).
//
// Запросы выполняются в транзакции из контекста, если она открыта
// менеджером go-transaction-manager, и напрямую через пул — иначе.
package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	trmpgx "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sessionkit/auth-api/internal/storage"
)

// psql — построитель запросов с плейсхолдерами $1, $2, ...
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type Storage struct {
	db     *pgxpool.Pool
	getter *trmpgx.CtxGetter
}

// New создает новое подключение к PostgreSQL.
func New(ctx context.Context, dbURL string) (*Storage, error) {
	const op = "storage.postgres.New"

	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	db, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{db: db, getter: trmpgx.DefaultCtxGetter}, nil
}

// Pool отдаёт пул соединений (для фабрики менеджера транзакций).
func (s *Storage) Pool() *pgxpool.Pool {
	return s.db
}

// Close закрывает пул соединений.
func (s *Storage) Close() {
	s.db.Close()
}

// conn возвращает транзакцию из контекста или пул.
func (s *Storage) conn(ctx context.Context) trmpgx.Tr {
	return s.getter.DefaultTrOrDB(ctx, s.db)
}

// Проверка на соответствие интерфейсу Storage.
var _ storage.Storage = (*Storage)(nil)
