package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"vrcnotify/internal/service"
	"vrcnotify/internal/vrchat"
	"vrcnotify/internal/worker"
)

// GET /api/instances
// On-demand listing of the group's live instances. Goes through the same
// client as the poll worker so the session cache and re-auth rules apply.
// Response shape mirrors the poller's upstream contract:
// {"instances": [...]} on success, {"error": "..."} on failure.
func ListInstances(client *vrchat.Client) echo.HandlerFunc {
	return func(c echo.Context) error {
		instances, err := client.FetchGroupInstances(c.Request().Context())
		if err != nil {
			status := http.StatusBadGateway
			var authErr *vrchat.AuthError
			if errors.As(err, &authErr) {
				status = http.StatusUnauthorized
			}
			return c.JSON(status, map[string]interface{}{
				"error": err.Error(),
			})
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"instances": instances,
		})
	}
}

// POST /api/notify-test
// Fires a synthetic embed at the configured webhook.
func SendTestNotification(notifier *service.Notifier) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := notifier.NotifyTest(c.Request().Context()); err != nil {
			return ErrorResponse(c, http.StatusBadGateway, "Test notification failed", "DELIVERY_FAILED", err.Error())
		}
		return SuccessResponse(c, http.StatusOK, "Test notification sent", nil)
	}
}

// GET /api/status
func GetWorkerStatus(w *worker.PollWorker) echo.HandlerFunc {
	return func(c echo.Context) error {
		return SuccessResponse(c, http.StatusOK, "Worker status", w.Status())
	}
}
