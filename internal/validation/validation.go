// validation проверяет входные данные регистрации и входа и собирает
// все нарушения в список ошибок по полям.
package validation

import (
	"net/mail"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/nyaruka/phonenumbers"
)

// FieldError — нарушение правила для одного поля.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors — список нарушений; транспорт отдаёт его как HTTP 400.
type Errors []FieldError

func (e Errors) Error() string {
	var b strings.Builder
	b.WriteString("validation failed")
	for i, fe := range e {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		b.WriteString(fe.Field)
		b.WriteString(": ")
		b.WriteString(fe.Message)
	}

	return b.String()
}

func (e *Errors) add(field, msg string) {
	*e = append(*e, FieldError{Field: field, Message: msg})
}

func (e Errors) err() error {
	if len(e) == 0 {
		return nil
	}

	return e
}

// Сообщения об ошибках.
const (
	MsgContactRequired  = "email or phone number is required"
	MsgInvalidEmail     = "enter a valid email address"
	MsgInvalidPhone     = "enter a valid phone number"
	MsgPasswordMismatch = "passwords do not match"
)

const (
	nameMin     = 2
	nameMax     = 50
	passwordMin = 6
	passwordMax = 50
)

// checkLength проверяет длину в рунах.
func checkLength(errs *Errors, field, label, v string, lo, hi int) {
	switch n := utf8.RuneCountInString(v); {
	case n < lo:
		errs.add(field, label+" must be at least "+strconv.Itoa(lo)+" characters")
	case n > hi:
		errs.add(field, label+" must be at most "+strconv.Itoa(hi)+" characters")
	}
}

// normalizeEmail возвращает адрес в нижнем регистре, если это голый
// адрес без отображаемого имени.
func normalizeEmail(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Name != "" || addr.Address != s {
		return "", false
	}

	return strings.ToLower(addr.Address), true
}

// normalizePhone приводит номер в международном формате к E.164.
func normalizePhone(raw string) (string, bool) {
	num, err := phonenumbers.Parse(strings.TrimSpace(raw), "")
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", false
	}

	return phonenumbers.Format(num, phonenumbers.E164), true
}

// IsBareCallingCode сообщает, состоит ли значение только из кода страны
// ("+1", "+90"). Так выглядит поле телефона, в котором выбрали страну,
// но не ввели номер.
func IsBareCallingCode(raw string) bool {
	s := strings.TrimSpace(raw)
	if len(s) < 2 || len(s) > 4 || s[0] != '+' {
		return false
	}

	code, err := strconv.Atoi(s[1:])
	if err != nil || code <= 0 {
		return false
	}

	return phonenumbers.GetRegionCodeForCountryCode(code) != phonenumbers.UNKNOWN_REGION
}

// NormalizeIdentifier готовит логин к поиску: e-mail в нижнем регистре,
// телефон в E.164. Непустым возвращается только подходящий по форме кандидат.
func NormalizeIdentifier(raw string) (email, phone string) {
	s := strings.TrimSpace(raw)
	if strings.Contains(s, "@") {
		return strings.ToLower(s), ""
	}

	if p, ok := normalizePhone(s); ok {
		return "", p
	}

	return "", s
}
