package validation

import "strings"

// LoginInput — тело запроса входа.
//
// Поддерживаются две формы:
//   - {type: "email", email, password} и {type: "phone", phone, password};
//   - {username, password}, где username — e-mail или телефон.
type LoginInput struct {
	Type     string `json:"type"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login проверяет тело входа и возвращает логин для поиска пользователя.
func Login(in LoginInput) (string, error) {
	var (
		errs       Errors
		identifier string
	)

	switch in.Type {
	case "email":
		if e, ok := normalizeEmail(in.Email); ok {
			identifier = e
		} else {
			errs.add("email", MsgInvalidEmail)
		}
	case "phone":
		if p, ok := normalizePhone(in.Phone); ok {
			identifier = p
		} else {
			errs.add("phone", MsgInvalidPhone)
		}
	case "":
		identifier = strings.TrimSpace(in.Username)
		if identifier == "" {
			errs.add("username", MsgContactRequired)
		}
	default:
		errs.add("type", `type must be "email" or "phone"`)
	}

	if in.Password == "" {
		errs.add("password", "password is required")
	} else if in.Type != "" {
		checkLength(&errs, "password", "password", in.Password, passwordMin, passwordMax)
	}

	if err := errs.err(); err != nil {
		return "", err
	}

	return identifier, nil
}
