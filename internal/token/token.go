// token выпускает и проверяет подписанные JWT (HS256) сессии.
//
// Access- и refresh-токены несут одинаковую полезную нагрузку
// (models.TokenPayload), но подписываются разными секретами, имеют разное
// время жизни и помечены своим видом, поэтому один не принимается вместо другого.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sessionkit/auth-api/internal/config"
	"github.com/sessionkit/auth-api/internal/models"
)

var (
	// ErrInvalidToken — токен некорректен по формату/подписи/виду/издателю.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired — срок действия токена истёк.
	ErrTokenExpired = errors.New("token expired")
)

// Kind — вид токена.
type Kind int

const (
	Access Kind = iota
	Refresh
)

func (k Kind) String() string {
	if k == Refresh {
		return "refresh"
	}

	return "access"
}

// leeway — допустимый рассинхрон часов при проверке exp/iat.
const leeway = 5 * time.Second

type claims struct {
	Email    *string     `json:"email,omitempty"`
	Phone    *string     `json:"phone,omitempty"`
	Name     string      `json:"name"`
	Role     models.Role `json:"role"`
	Verified *time.Time  `json:"verified"`
	Kind     string      `json:"typ"`
	jwt.RegisteredClaims
}

// Signer подписывает и проверяет токены; безопасен для конкурентного использования.
type Signer struct {
	cfg config.AuthConfig
	now func() time.Time
}

// NewSigner создаёт Signer по настройкам auth.
func NewSigner(cfg config.AuthConfig) *Signer {
	return &Signer{cfg: cfg, now: time.Now}
}

// TTL возвращает время жизни токена заданного вида.
func (s *Signer) TTL(kind Kind) time.Duration {
	if kind == Refresh {
		return s.cfg.RefreshTTL()
	}

	return s.cfg.AccessTTL()
}

func (s *Signer) secret(kind Kind) []byte {
	if kind == Refresh {
		return []byte(s.cfg.RefreshTokenSecret)
	}

	return []byte(s.cfg.AccessTokenSecret)
}

// Sign выпускает токен вида kind и возвращает его вместе с моментом истечения.
// Каждый токен получает уникальный jti, так что два выпуска подряд
// в одну секунду всё равно дают разные строки.
func (s *Signer) Sign(p models.TokenPayload, kind Kind) (string, time.Time, error) {
	const op = "token.Sign"

	now := s.now().UTC()
	exp := now.Add(s.TTL(kind))

	c := claims{
		Email:    p.Email,
		Phone:    p.Phone,
		Name:     p.Name,
		Role:     p.Role,
		Verified: p.Verified,
		Kind:     kind.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   p.ID.String(),
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret(kind))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	return signed, exp, nil
}

// Verify проверяет подпись, срок, издателя и вид токена и возвращает полезную нагрузку.
func (s *Signer) Verify(raw string, kind Kind) (*models.TokenPayload, error) {
	const op = "token.Verify"

	var c claims
	tok, err := jwt.ParseWithClaims(raw, &c,
		func(*jwt.Token) (any, error) { return s.secret(kind), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(leeway),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%s: %w", op, ErrTokenExpired)
		}

		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	if !tok.Valid || c.Kind != kind.String() {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return &models.TokenPayload{
		ID:       id,
		Email:    c.Email,
		Phone:    c.Phone,
		Name:     c.Name,
		Role:     c.Role,
		Verified: c.Verified,
	}, nil
}
