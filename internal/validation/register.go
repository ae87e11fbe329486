package validation

import "strings"

// RegisterInput — тело запроса регистрации.
type RegisterInput struct {
	Name            string  `json:"name"`
	Surname         string  `json:"surname"`
	Email           *string `json:"email"`
	Phone           *string `json:"phone"`
	Password        string  `json:"password"`
	ConfirmPassword string  `json:"confirmPassword"`
}

// Registration — проверенные и нормализованные данные регистрации.
// Хотя бы один из Email/Phone не nil.
type Registration struct {
	Name     string
	Surname  string
	Email    *string
	Phone    *string
	Password string
}

// Register проверяет данные регистрации и собирает все нарушения сразу.
//
// Правила:
//   - имя и фамилия 2..50 символов, пароль и подтверждение 6..50;
//   - несовпадение пароля и подтверждения — ошибка независимо от остальных полей;
//   - e-mail и телефон необязательны, но хотя бы один нужен; телефон,
//     состоящий только из кода страны, считается незаполненным;
//   - заполненный телефон обязан быть валидным международным номером.
func Register(in RegisterInput) (Registration, error) {
	var errs Errors

	name := strings.TrimSpace(in.Name)
	surname := strings.TrimSpace(in.Surname)
	checkLength(&errs, "name", "name", name, nameMin, nameMax)
	checkLength(&errs, "surname", "surname", surname, nameMin, nameMax)
	checkLength(&errs, "password", "password", in.Password, passwordMin, passwordMax)
	checkLength(&errs, "confirmPassword", "password confirmation", in.ConfirmPassword, passwordMin, passwordMax)

	if in.Password != in.ConfirmPassword {
		errs.add("confirmPassword", MsgPasswordMismatch)
	}

	var rawEmail, rawPhone string
	if in.Email != nil {
		rawEmail = strings.TrimSpace(*in.Email)
	}
	if in.Phone != nil {
		rawPhone = strings.TrimSpace(*in.Phone)
	}

	emailProvided := rawEmail != ""
	phoneProvided := rawPhone != "" && !IsBareCallingCode(rawPhone)

	out := Registration{Name: name, Surname: surname, Password: in.Password}

	if !emailProvided && !phoneProvided {
		errs.add("email", MsgContactRequired)
		return Registration{}, errs
	}

	if phoneProvided {
		if p, ok := normalizePhone(rawPhone); ok {
			out.Phone = &p
		} else {
			errs.add("phone", MsgInvalidPhone)
		}
	}

	if emailProvided {
		if e, ok := normalizeEmail(rawEmail); ok {
			out.Email = &e
		} else {
			errs.add("email", MsgInvalidEmail)
		}
	}

	if err := errs.err(); err != nil {
		return Registration{}, err
	}

	return out, nil
}
