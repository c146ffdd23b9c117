package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"vrcnotify/internal/service"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// POST /login
// Dashboard operator login; returns a bearer token for the /api group.
func LoginUser(auth *service.AuthService) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req LoginRequest
		if err := c.Bind(&req); err != nil {
			return ErrorResponse(c, http.StatusBadRequest, "Invalid request body", "BAD_REQUEST", err.Error())
		}
		if req.Username == "" || req.Password == "" {
			return ErrorResponse(c, http.StatusBadRequest, "Fields 'username' and 'password' are required", "VALIDATION_ERROR", "")
		}

		token, err := auth.Authenticate(req.Username, req.Password)
		if err != nil {
			if errors.Is(err, service.ErrInvalidCredentials) {
				return ErrorResponse(c, http.StatusUnauthorized, "Invalid credentials", "INVALID_CREDENTIALS", "")
			}
			return ErrorResponse(c, http.StatusServiceUnavailable, "Login unavailable", "AUTH_NOT_CONFIGURED", err.Error())
		}

		return SuccessResponse(c, http.StatusOK, "Login successful", map[string]interface{}{
			"access_token": token,
		})
	}
}
