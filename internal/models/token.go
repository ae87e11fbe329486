package models

import (
	"time"

	"github.com/google/uuid"
)

// TokenPayload — полезная нагрузка access- и refresh-токенов (одинаковой формы).
// Собирается заново при каждом входе/обновлении и не хранится на сервере.
type TokenPayload struct {
	ID       uuid.UUID  `json:"id"`
	Email    *string    `json:"email,omitempty"`
	Phone    *string    `json:"phone,omitempty"`
	Name     string     `json:"name"`
	Role     Role       `json:"role"`
	Verified *time.Time `json:"verified"`
}

// PayloadFromUser строит TokenPayload по записи пользователя.
func PayloadFromUser(u *User) TokenPayload {
	return TokenPayload{
		ID:       u.ID,
		Email:    u.Email,
		Phone:    u.Phone,
		Name:     u.DisplayName(),
		Role:     u.Role,
		Verified: u.Verified,
	}
}
