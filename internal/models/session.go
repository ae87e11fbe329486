package models

import "time"

// Session — пара токенов, которая уходит клиенту в двух cookie.
//
// Описание:
//   - AccessToken — короткоживущий JWT для доступа к API;
//   - RefreshToken — долгоживущий JWT для выпуска новой пары; на сервере
//     хранится только его argon2id-хэш, перезаписываемый при каждой выдаче;
//   - *TTL — время жизни, из которого транспорт выставляет Max-Age cookie.
type Session struct {
	AccessToken      string
	RefreshToken     string
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}
