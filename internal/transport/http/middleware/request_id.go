package middleware

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"github.com/sessionkit/auth-api/internal/pkg/requestid"
)

// RequestID обеспечивает наличие X-Request-Id:
//  1. читает заголовок X-Request-Id, если есть;
//  2. иначе генерирует криптографически стойкий hex id (32 символа);
//  3. кладёт id в заголовок ответа и в контекст (requestid.From), откуда
//     его берут Logging и apierrors.WriteError.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-Id")
			if id == "" {
				id = genID()
			}
			w.Header().Set("X-Request-Id", id)

			next.ServeHTTP(w, r.WithContext(requestid.Into(r.Context(), id)))
		})
	}
}

func genID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
