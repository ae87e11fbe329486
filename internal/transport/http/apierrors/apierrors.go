// apierrors стандартизирует ответы об ошибках HTTP-слоя.
// На вход принимает ошибку сервиса, валидации или ограничителя частоты,
// а на выход даёт:
//   - корректный HTTP-статус;
//   - краткое безопасное message без утечки деталей;
//   - список полей для ошибок валидации.
//
// Источник истинности по маппингу: sentinel-ошибки пакетов service и ratelimit.
package apierrors

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sessionkit/auth-api/internal/pkg/requestid"
	"github.com/sessionkit/auth-api/internal/ratelimit"
	"github.com/sessionkit/auth-api/internal/service"
	"github.com/sessionkit/auth-api/internal/validation"
)

// Нестандартный код, часто используемый для "клиент закрыл соединение".
const StatusClientClosedRequest = 499

// APIError — единый формат для фронта.
// Code — короткий стабильный код для машиночитаемой обработки на FE.
// Message — безопасное человекочитаемое описание.
// RequestID — id запроса из мидлвара RequestID, если он стоит в цепочке.
// Fields — ошибки по полям формы (только для invalid_argument).
type APIError struct {
	Code      string                  `json:"code"`
	Message   string                  `json:"message"`
	RequestID string                  `json:"request_id,omitempty"`
	Fields    []validation.FieldError `json:"fields,omitempty"`
}

// ErrorResponse — корневой объект в ответе.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// ErrBadRequest — тело запроса не разобрано (битый JSON, неизвестные поля).
var ErrBadRequest = errors.New("bad request")

// ToHTTP конвертирует ошибку в HTTP-статус и унифицированный ответ.
//
// Поведение:
//   - err == nil — программная ошибка вызова: 500/internal, чтобы не
//     послать "200 OK" с телом ошибки и не маскировать баг;
//   - известные ошибки маппятся таблицей ниже;
//   - прочее — 500/internal без деталей.
//
// Таблица:
//   - validation.Errors -> 400 invalid_argument (+ fields)
//   - ErrBadRequest, service.ErrRegistrationFailed, service.ErrInvalidTier -> 400 bad_request
//   - service.ErrUnauthorized -> 401
//   - service.ErrForbidden -> 403
//   - service.ErrNotFound -> 404
//   - *ratelimit.ThrottledError -> 429 с сообщением правила
//   - context.Canceled -> 499
//   - context.DeadlineExceeded -> 504
func ToHTTP(err error) (int, ErrorResponse) {
	if err == nil {
		return internal()
	}

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		return http.StatusBadRequest, ErrorResponse{
			Error: APIError{
				Code:    "invalid_argument",
				Message: "invalid argument",
				Fields:  verrs,
			},
		}
	}

	var throttled *ratelimit.ThrottledError
	if errors.As(err, &throttled) {
		return http.StatusTooManyRequests, ErrorResponse{
			Error: APIError{
				Code:    "resource_exhausted",
				Message: throttled.Message,
			},
		}
	}

	status, code, msg, ok := base(err)
	if !ok {
		return internal()
	}

	return status, ErrorResponse{
		Error: APIError{
			Code:    code,
			Message: msg,
		},
	}
}

// WriteError — хелпер для HTTP-хендлеров и guard-мидлваров.
// Пишет корректный статус/тело, добавляет request_id из контекста запроса.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	if rid := requestid.From(r.Context()); rid != "" {
		resp.Error.RequestID = rid
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func base(err error) (int, string, string, bool) {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request", "bad request", true
	case errors.Is(err, service.ErrRegistrationFailed):
		return http.StatusBadRequest, "bad_request", "registration failed", true
	case errors.Is(err, service.ErrInvalidTier):
		return http.StatusBadRequest, "bad_request", "invalid tier", true
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthenticated", "unauthenticated", true
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, "permission_denied", "permission denied", true
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "not_found", "not found", true
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest, "canceled", "canceled", true
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "deadline_exceeded", "deadline exceeded", true
	default:
		return 0, "", "", false
	}
}

func internal() (int, ErrorResponse) {
	return http.StatusInternalServerError, ErrorResponse{
		Error: APIError{
			Code:    "internal",
			Message: "internal error",
		},
	}
}
