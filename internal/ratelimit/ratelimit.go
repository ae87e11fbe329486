// ratelimit реализует ограничитель частоты запросов с фиксированным окном
// поверх общего хранилища счётчиков (Redis).
//
// Окно начинается с первого инкремента ключа и живёт ровно TTL; на стыке
// двух окон допускается всплеск до 2×Limit.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// DefaultMessage — сообщение отказа, если у правила оно не задано.
const DefaultMessage = "Custom rate limit exceeded"

// Rule — лимит для маршрута: не больше Limit запросов за TTL.
type Rule struct {
	Name    string
	Limit   int64
	TTL     time.Duration
	Message string
}

// message возвращает текст отказа для правила.
func (r Rule) message() string {
	if r.Message != "" {
		return r.Message
	}

	return DefaultMessage
}

// ThrottledError — запрос отклонён лимитом. Транспорт: HTTP 429.
type ThrottledError struct {
	Rule    string
	Message string
}

func (e *ThrottledError) Error() string { return e.Message }

// Limiter считает запросы по ключам; безопасен для конкурентного использования,
// если безопасен переданный CounterStore.
type Limiter struct {
	store CounterStore
}

// NewLimiter создаёт Limiter.
func NewLimiter(store CounterStore) *Limiter {
	return &Limiter{store: store}
}

// Allow учитывает запрос по ключу key.
// Правило с Limit <= 0 пропускает всё, не трогая хранилище.
// Превышение лимита — *ThrottledError; сбой хранилища — обёрнутая ошибка.
func (l *Limiter) Allow(ctx context.Context, rule Rule, key string) error {
	const op = "ratelimit.Allow"

	if rule.Limit <= 0 {
		return nil
	}

	n, err := l.store.Incr(ctx, key)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	// TTL ставится только на первый инкремент окна.
	if n == 1 {
		if err := l.store.PExpire(ctx, key, rule.TTL); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	if n > rule.Limit {
		return &ThrottledError{Rule: rule.Name, Message: rule.message()}
	}

	return nil
}

// CustomKey — ключ правила маршрута: актор (id пользователя или IP) + маршрут.
func CustomKey(actor, route string) string {
	return "custom_rate_limit:" + actor + ":" + route
}

// ThrottleKey — ключ глобального троттлера name для IP и маршрута.
func ThrottleKey(name, ip, route string) string {
	return "throttle:" + name + ":" + ip + ":" + route
}
