package auth

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

// ErrNoIdentity запрос не содержит ни токена, ни допустимого имени
var ErrNoIdentity = errors.New("не удалось определить пользователя")

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,32}$`)

// Identity разрешённая идентичность подключения
type Identity struct {
	UserID    string
	Name      string
	Anonymous bool
}

// Resolver определяет пользователя по HTTP-запросу на подключение.
// Порядок: заголовок Authorization: Bearer, параметр access_token, затем
// (если разрешено) параметр username.
type Resolver struct {
	issuer         *TokenIssuer
	allowAnonymous bool
}

// NewResolver issuer может быть nil, тогда принимаются только анонимные имена.
func NewResolver(issuer *TokenIssuer, allowAnonymous bool) *Resolver {
	return &Resolver{issuer: issuer, allowAnonymous: allowAnonymous}
}

// AllowAnonymous разрешён ли вход по имени
func (r *Resolver) AllowAnonymous() bool { return r.allowAnonymous }

// Issuer издатель токенов (может быть nil)
func (r *Resolver) Issuer() *TokenIssuer { return r.issuer }

// Resolve возвращает идентичность запроса.
func (r *Resolver) Resolve(req *http.Request) (Identity, error) {
	if token := bearerToken(req); token != "" {
		if r.issuer == nil {
			return Identity{}, fmt.Errorf("%w: проверка токенов не настроена", ErrInvalidToken)
		}
		claims, err := r.issuer.Validate(token)
		if err != nil {
			return Identity{}, err
		}
		name := claims.Username
		if name == "" {
			name = claims.UserID
		}
		return Identity{UserID: claims.UserID, Name: name}, nil
	}

	if !r.allowAnonymous {
		return Identity{}, ErrNoIdentity
	}
	username := req.URL.Query().Get("username")
	if err := ValidateUsername(username); err != nil {
		return Identity{}, err
	}
	return Identity{UserID: username, Name: username, Anonymous: true}, nil
}

// ValidateUsername проверяет анонимное имя.
func ValidateUsername(username string) error {
	if !usernamePattern.MatchString(username) {
		return fmt.Errorf("%w: имя %q", ErrNoIdentity, username)
	}
	return nil
}

func bearerToken(req *http.Request) string {
	if h := req.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	// Браузерный WebSocket не умеет ставить заголовки
	return req.URL.Query().Get("access_token")
}
