package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const DefaultCookieName = "connect.sid"

// signID wraps a session id in an HS256 token so a client cannot forge or
// guess another session's cookie.
func signID(secret []byte, id string, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:       id,
		IssuedAt: jwt.NewNumericDate(now),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func verifyID(secret []byte, value string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(value, &claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if claims.ID == "" {
		return "", errors.New("session cookie carries no id")
	}
	return claims.ID, nil
}
