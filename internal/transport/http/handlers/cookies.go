package handlers

import (
	"net/http"
	"time"

	"github.com/sessionkit/auth-api/internal/models"
	"github.com/sessionkit/auth-api/internal/transport/http/guard"
)

// CookieOptions — параметры cookie сессии.
type CookieOptions struct {
	// Secure выставляется в продовом окружении.
	Secure bool
	// Now подменяется в тестах; nil — time.Now.
	Now func() time.Time
}

func (o CookieOptions) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// setSession выставляет access_token и refresh_token с Max-Age, равным TTL токена.
func (o CookieOptions) setSession(w http.ResponseWriter, s *models.Session) {
	now := o.now()
	http.SetCookie(w, o.cookie(guard.AccessCookie, s.AccessToken, s.AccessTTL, now))
	http.SetCookie(w, o.cookie(guard.RefreshCookie, s.RefreshToken, s.RefreshTTL, now))
}

// clearSession просит браузер удалить обе cookie.
func (o CookieOptions) clearSession(w http.ResponseWriter) {
	for _, name := range []string{guard.AccessCookie, guard.RefreshCookie} {
		c := o.cookie(name, "", 0, time.Unix(0, 0))
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}

func (o CookieOptions) cookie(name, value string, ttl time.Duration, now time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge(ttl),
		Expires:  now.Add(ttl).UTC(),
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// maxAge переводит TTL в секунды с округлением вверх: доли секунды
// не должны превращаться в 0, который net/http не выводит вовсе.
func maxAge(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	return int((ttl + time.Second - 1) / time.Second)
}
