package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vrcnotify/internal/helper"
	customMiddleware "vrcnotify/internal/middleware"
	"vrcnotify/internal/service"
)

func newLoginEcho(t *testing.T) (*echo.Echo, *service.AuthService) {
	t.Helper()
	hash, err := helper.HashPassword("s3cret")
	require.NoError(t, err)
	auth := service.NewAuthService("test-secret", time.Hour, "operator", hash, zerolog.Nop())

	e := echo.New()
	e.POST("/login", LoginUser(auth))
	return e, auth
}

func doJSON(e *echo.Echo, method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestLoginIssuesToken(t *testing.T) {
	e, auth := newLoginEcho(t)

	rec := doJSON(e, http.MethodPost, "/login", `{"username":"operator","password":"s3cret"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)

	claims, err := auth.ValidateAccessToken(resp.Data.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "operator", claims.Username)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	e, _ := newLoginEcho(t)
	rec := doJSON(e, http.MethodPost, "/login", `{"username":"operator","password":"nope"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginRequiresFields(t *testing.T) {
	e, _ := newLoginEcho(t)
	rec := doJSON(e, http.MethodPost, "/login", `{"username":"operator"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJWTMiddlewareGuardsAPIGroup(t *testing.T) {
	e, auth := newLoginEcho(t)
	api := e.Group("/api", customMiddleware.JWTAuthMiddleware(auth))
	api.GET("/ping", func(c echo.Context) error {
		return SuccessResponse(c, http.StatusOK, "pong", nil)
	})

	// No token
	rec := doJSON(e, http.MethodGet, "/api/ping", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Garbage token
	rec = doJSON(e, http.MethodGet, "/api/ping", "", "garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Real token
	token, err := auth.Authenticate("operator", "s3cret")
	require.NoError(t, err)
	rec = doJSON(e, http.MethodGet, "/api/ping", "", token)
	assert.Equal(t, http.StatusOK, rec.Code)
}
