package models

import (
	"time"

	"github.com/google/uuid"
)

// Role — роль пользователя.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
	RoleOwner Role = "OWNER"
)

// Valid сообщает, известна ли роль.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleOwner:
		return true
	}

	return false
}

// Tier — уровень подписки, ортогональный роли.
// Не входит в токен: проверки по нему всегда читают актуальную запись пользователя.
type Tier string

const (
	TierBronze Tier = "BRONZE"
	TierSilver Tier = "SILVER"
	TierGold   Tier = "GOLD"
)

// Valid сообщает, известен ли уровень.
func (t Tier) Valid() bool {
	switch t {
	case TierBronze, TierSilver, TierGold:
		return true
	}

	return false
}

// User - модель пользователя в системе.
//
// Хотя бы один из Email/Phone заполнен. PasswordHash и RefreshTokenHash
// никогда не сериализуются и не покидают сервисный слой (см. Sanitized).
type User struct {
	ID               uuid.UUID  `json:"id"`
	Name             string     `json:"name"`
	Surname          string     `json:"surname"`
	Email            *string    `json:"email"`
	Phone            *string    `json:"phone"`
	PasswordHash     *string    `json:"-"`
	RefreshTokenHash *string    `json:"-"`
	RefreshExpiresAt *time.Time `json:"-"`
	Role             Role       `json:"role"`
	Tier             *Tier      `json:"tier"`
	Verified         *time.Time `json:"verified"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// DisplayName — имя для отображения: "имя фамилия".
func (u *User) DisplayName() string {
	return u.Name + " " + u.Surname
}

// Sanitized возвращает копию пользователя без хэшей пароля и refresh-токена.
func (u *User) Sanitized() *User {
	cp := *u
	cp.PasswordHash = nil
	cp.RefreshTokenHash = nil
	cp.RefreshExpiresAt = nil
	return &cp
}
