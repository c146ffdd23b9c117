package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"vrcnotify/internal/helper"
)

var ErrInvalidCredentials = errors.New("invalid username or password")

// Claims represents the dashboard JWT claims.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// AuthService issues and validates access tokens for the dashboard
// endpoints. There is a single operator account, configured via env
// (username + bcrypt password hash), not a user table.
type AuthService struct {
	secret       []byte
	expiry       time.Duration
	operatorUser string
	operatorHash string
	log          zerolog.Logger
}

func NewAuthService(secret string, expiry time.Duration, operatorUser, operatorHash string, log zerolog.Logger) *AuthService {
	if expiry <= 0 {
		expiry = time.Hour
	}
	return &AuthService{
		secret:       []byte(secret),
		expiry:       expiry,
		operatorUser: operatorUser,
		operatorHash: operatorHash,
		log:          log.With().Str("component", "auth").Logger(),
	}
}

// Configured reports whether dashboard login is usable. When false, /login
// always rejects and the protected endpoints stay unreachable.
func (a *AuthService) Configured() bool {
	return len(a.secret) > 0 && a.operatorUser != "" && a.operatorHash != ""
}

// Authenticate checks the operator credentials and returns a signed access
// token on success.
func (a *AuthService) Authenticate(username, password string) (string, error) {
	if !a.Configured() {
		return "", errors.New("dashboard auth is not configured")
	}
	if username != a.operatorUser {
		return "", ErrInvalidCredentials
	}
	if err := helper.VerifyPassword(a.operatorHash, password); err != nil {
		return "", ErrInvalidCredentials
	}

	now := time.Now()
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.expiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", err
	}

	a.log.Info().Str("username", username).Msg("dashboard login ok")
	return signed, nil
}

// ValidateAccessToken parses and verifies a token string, returning its
// claims when valid.
func (a *AuthService) ValidateAccessToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
