package fixtures

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors.
var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrExpiredToken  = errors.New("token has expired")
	ErrMissingClaims = errors.New("missing required claims")
)

// tokens issues and validates the session ids handed out by /authenticate.
type tokens struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

// issue creates a signed session token for user.
func (t *tokens) issue(user string) (string, error) {
	if user == "" {
		return "", ErrMissingClaims
	}

	now := t.now()
	claims := jwt.MapClaims{
		"sub": user,
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": now.Add(t.expiry).Unix(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// validate returns the user a token was issued to.
func (t *tokens) validate(tokenString string) (string, error) {
	if tokenString == "" {
		return "", ErrInvalidToken
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}
	user, ok := claims["sub"].(string)
	if !ok || user == "" {
		return "", ErrMissingClaims
	}
	return user, nil
}

// bearerToken extracts the token from a Bearer authorization header.
func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
