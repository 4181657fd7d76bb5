package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const jobTokenIssuer = "xpilot"

// JobClaims identify the scheduler calling the job endpoints.
type JobClaims struct {
	Caller string `json:"caller"`
	jwt.RegisteredClaims
}

func GenerateToken(secretKey, caller string, tokenDuration time.Duration) (string, error) {
	claims := JobClaims{
		Caller: caller,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    jobTokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secretKey))
}

func ValidateToken(secretKey, tokenString string) (*JobClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JobClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid token signing method")
		}
		return []byte(secretKey), nil
	}, jwt.WithIssuer(jobTokenIssuer))
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*JobClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}
