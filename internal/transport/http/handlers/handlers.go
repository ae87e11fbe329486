package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/sessionkit/auth-api/internal/service"
)

// maxBody — предел тела JSON-запросов.
const maxBody = 64 << 10

// Handlers агрегирует зависимости HTTP-обработчиков.
type Handlers struct {
	svc     *service.Service
	cookies CookieOptions
}

// New создаёт обработчики поверх сервиса сессий.
func New(svc *service.Service, cookies CookieOptions) *Handlers {
	return &Handlers{svc: svc, cookies: cookies}
}

// writeJSON — единый ответ JSON с нужным Content-Type.
// Ошибки выводим через apierrors.WriteError.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeStrict — строгий JSON-декодер: запрещаем неизвестные поля.
func decodeStrict(r *http.Request, value any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	return dec.Decode(value)
}
