package postgres

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sessionkit/auth-api/internal/models"
	"github.com/sessionkit/auth-api/internal/storage"
)

const usersTable = "users"

// errUnknownEnum — в строке значение роли или уровня, которого нет в models.
var errUnknownEnum = errors.New("unknown enum value")

var userColumns = []string{
	"id", "name", "surname", "email", "phone",
	"password_hash", "refresh_token_hash", "refresh_expires_at",
	"role", "tier", "verified", "created_at", "updated_at",
}

// SaveUser создает нового пользователя в БД.
func (s *Storage) SaveUser(ctx context.Context, user *models.User) error {
	const op = "storage.postgres.SaveUser"

	query, args, err := psql.Insert(usersTable).
		Columns("id", "name", "surname", "email", "phone", "password_hash", "role", "tier", "verified", "created_at", "updated_at").
		Values(
			user.ID,
			user.Name,
			user.Surname,
			user.Email,
			user.Phone,
			user.PasswordHash,
			string(user.Role),
			tierArg(user.Tier),
			user.Verified,
			user.CreatedAt,
			user.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err := s.conn(ctx).Exec(ctx, query, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// UserByID находит пользователя по ID.
func (s *Storage) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const op = "storage.postgres.UserByID"

	user, err := s.selectOne(ctx, byID(id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// UserByIdentifier находит пользователя по email ИЛИ телефону.
// email сравнивается без учёта регистра (CITEXT).
func (s *Storage) UserByIdentifier(ctx context.Context, email, phone string) (*models.User, error) {
	const op = "storage.postgres.UserByIdentifier"

	var cond sq.Or
	if email != "" {
		cond = append(cond, sq.Eq{"email": email})
	}
	if phone != "" {
		cond = append(cond, sq.Eq{"phone": phone})
	}
	if len(cond) == 0 {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	user, err := s.selectOne(ctx, cond)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// ListUsers возвращает страницу пользователей.
func (s *Storage) ListUsers(ctx context.Context, limit, offset uint64) ([]models.User, error) {
	const op = "storage.postgres.ListUsers"

	query, args, err := psql.Select(userColumns...).
		From(usersTable).
		OrderBy("created_at", "id").
		Limit(limit).
		Offset(offset).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rows, err := s.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	users := make([]models.User, 0, limit)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		users = append(users, *u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return users, nil
}

// SetTier меняет уровень пользователя.
func (s *Storage) SetTier(ctx context.Context, id uuid.UUID, tier *models.Tier) error {
	const op = "storage.postgres.SetTier"

	query, args, err := psql.Update(usersTable).
		Set("tier", tierArg(tier)).
		Set("updated_at", sq.Expr("now()")).
		Where(byID(id)).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	tag, err := s.conn(ctx).Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

func (s *Storage) selectOne(ctx context.Context, where sq.Sqlizer) (*models.User, error) {
	query, args, err := psql.Select(userColumns...).
		From(usersTable).
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, err
	}

	user, err := scanUser(s.conn(ctx).QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}

		return nil, err
	}

	return user, nil
}

// scanUser читает строку в порядке userColumns.
func scanUser(row pgx.Row) (*models.User, error) {
	var (
		u    models.User
		role string
		tier *string
	)

	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Surname,
		&u.Email,
		&u.Phone,
		&u.PasswordHash,
		&u.RefreshTokenHash,
		&u.RefreshExpiresAt,
		&role,
		&tier,
		&u.Verified,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	u.Role = models.Role(role)
	if !u.Role.Valid() {
		return nil, fmt.Errorf("%w: role %q", errUnknownEnum, role)
	}

	if tier != nil {
		t := models.Tier(*tier)
		if !t.Valid() {
			return nil, fmt.Errorf("%w: tier %q", errUnknownEnum, *tier)
		}
		u.Tier = &t
	}

	return &u, nil
}

// byID — условие по первичному ключу. uuid.UUID — массив, и sq.Eq
// развернул бы его в IN (...), поэтому используется Expr.
func byID(id uuid.UUID) sq.Sqlizer {
	return sq.Expr("id = ?", id)
}

func tierArg(t *models.Tier) *string {
	if t == nil {
		return nil
	}

	v := string(*t)
	return &v
}
