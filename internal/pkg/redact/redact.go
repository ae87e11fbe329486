// redact маскирует чувствительные данные перед записью в лог:
// e-mail и телефоны частично, токены и пароли целиком.
package redact

import "strings"

// Email маскирует e-mail для логирования.
//
// Правила:
//   - Строка должна содержать РОВНО один символ '@', иначе возвращается "***";
//   - Локальная часть заменяется на первые два символа (по рунам) + "***";
//   - Если длина локальной части ≤ 2 символов — возвращается "***@<domain>".
//
// Примеры:
//
//	"foobar@example.com"   -> "fo***@example.com"
//	"ab@ex.com"            -> "***@ex.com"
//	"no-at"                -> "***"
func Email(s string) string {
	if strings.Count(s, "@") != 1 {
		return "***"
	}

	i := strings.IndexByte(s, '@')
	local, domain := s[:i], s[i+1:]

	if lr := []rune(local); len(lr) > 2 {
		local = string(lr[:2]) + "***"
	} else {
		local = "***"
	}

	return local + "@" + domain
}

// Phone оставляет видимыми только последние две цифры номера.
//
//	"+905321234567" -> "***67"
//	"12"            -> "***"
func Phone(s string) string {
	digits := make([]rune, 0, len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}

	if len(digits) <= 4 {
		return "***"
	}

	return "***" + string(digits[len(digits)-2:])
}

// Identifier маскирует логин: e-mail, если в нём есть '@', иначе телефон.
func Identifier(s string) string {
	if strings.Contains(s, "@") {
		return Email(s)
	}

	return Phone(s)
}

// Token возвращает литерал-заглушку для токена в логах.
func Token() string { return "[REDACTED_TOKEN]" }
