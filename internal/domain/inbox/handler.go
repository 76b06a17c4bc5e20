package inbox

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hms/hms/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group, authn echo.MiddlewareFunc, policy auth.Policy) {
	g := api.Group("/notifications", authn, policy.Require(auth.OpReadInbox))
	g.GET("", h.List)
	g.PUT("/read/:id", h.MarkRead)
	g.DELETE("/clear", h.Clear)
}

func owner(c echo.Context) (Owner, error) {
	o, err := OwnerFromClaims(auth.ClaimsFromContext(c.Request().Context()))
	if err != nil {
		return Owner{}, echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
	}
	return o, nil
}

func (h *Handler) List(c echo.Context) error {
	o, err := owner(c)
	if err != nil {
		return err
	}
	items, err := h.svc.List(c.Request().Context(), o)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"notifications": items})
}

func (h *Handler) MarkRead(c echo.Context) error {
	o, err := owner(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Notification not found")
	}
	items, err := h.svc.MarkRead(c.Request().Context(), o, id)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Notification not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":       "Notification marked as read",
		"notifications": items,
	})
}

func (h *Handler) Clear(c echo.Context) error {
	o, err := owner(c)
	if err != nil {
		return err
	}
	items, err := h.svc.PurgeRead(c.Request().Context(), o)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":       "Read notifications cleared successfully",
		"notifications": items,
	})
}
