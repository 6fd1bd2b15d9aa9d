package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// expired reports whether token is a JWT whose exp claim lies before now.
// The signature is not verified; the API server remains the authority on
// acceptance. Tokens that do not parse as JWTs, or carry no exp, are treated
// as unexpired.
func expired(token string, now time.Time) bool {
	token = strings.TrimSpace(token)
	if strings.Count(token, ".") != 2 {
		return false
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !now.Before(exp.Time)
}
