// hasher реализует хэширование паролей и refresh-токенов алгоритмом argon2id.
//
// Хэш кодируется в PHC-строку того же вида, что выпускает node-argon2:
//
//	$argon2id$v=19$m=65536,t=3,p=4$<salt>$<hash>
//
// Параметры хранятся в самой строке, поэтому смена Params не ломает
// проверку ранее выпущенных хэшей.
package hasher

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

var (
	// ErrMalformedHash — строка не является PHC-хэшем argon2id.
	ErrMalformedHash = errors.New("malformed argon2id hash")
	// ErrIncompatibleVersion — хэш выпущен другой версией argon2.
	ErrIncompatibleVersion = errors.New("incompatible argon2 version")
)

// Params — параметры argon2id. Memory задаётся в КиБ.
type Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultParams совпадают с умолчаниями node-argon2.
func DefaultParams() Params {
	return Params{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 4,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Argon2id — хэшер; безопасен для конкурентного использования.
type Argon2id struct {
	params Params
}

// New создаёт хэшер. Нулевые поля Params заменяются значениями по умолчанию.
func New(p Params) *Argon2id {
	def := DefaultParams()
	if p.Memory == 0 {
		p.Memory = def.Memory
	}
	if p.Iterations == 0 {
		p.Iterations = def.Iterations
	}
	if p.Parallelism == 0 {
		p.Parallelism = def.Parallelism
	}
	if p.SaltLength == 0 {
		p.SaltLength = def.SaltLength
	}
	if p.KeyLength == 0 {
		p.KeyLength = def.KeyLength
	}

	return &Argon2id{params: p}
}

// Hash возвращает PHC-строку для plain со свежей случайной солью.
func (h *Argon2id) Hash(plain string) (string, error) {
	const op = "hasher.argon2id.Hash"

	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	key := argon2.IDKey([]byte(plain), salt, h.params.Iterations, h.params.Memory, h.params.Parallelism, h.params.KeyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory, h.params.Iterations, h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify сравнивает plain с encoded за постоянное время.
// Несовпадение — (false, nil); битая строка — ошибка.
func (h *Argon2id) Verify(encoded, plain string) (bool, error) {
	const op = "hasher.argon2id.Verify"

	p, salt, key, err := decode(encoded)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	other := argon2.IDKey([]byte(plain), salt, p.Iterations, p.Memory, p.Parallelism, uint32(len(key)))

	return subtle.ConstantTimeCompare(key, other) == 1, nil
}

func decode(encoded string) (Params, []byte, []byte, error) {
	var p Params

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return p, nil, nil, ErrMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return p, nil, nil, ErrMalformedHash
	}
	if version != argon2.Version {
		return p, nil, nil, ErrIncompatibleVersion
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Iterations, &p.Parallelism); err != nil {
		return p, nil, nil, ErrMalformedHash
	}
	if p.Memory == 0 || p.Iterations == 0 || p.Parallelism == 0 {
		return p, nil, nil, ErrMalformedHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return p, nil, nil, ErrMalformedHash
	}

	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return p, nil, nil, ErrMalformedHash
	}
	p.SaltLength = uint32(len(salt))
	p.KeyLength = uint32(len(key))

	return p, salt, key, nil
}
