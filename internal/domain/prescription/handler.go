package prescription

import (
	"errors"
	"fmt"
	"net/http"

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
	g := api.Group("/prescriptions", authn)
	g.GET("/file/:name", h.Download, policy.Require(auth.OpFetchPrescription))
	g.POST("/:customId", h.Issue, policy.Require(auth.OpIssuePrescription))
}

// Issue generates a prescription and sends it back as a download. The
// stored artifact is removed if the transfer fails.
func (h *Handler) Issue(c echo.Context) error {
	ctx := c.Request().Context()
	claims := auth.ClaimsFromContext(ctx)
	if claims == nil {
		return echo.NewHTTPError(http.StatusForbidden, "No token provided")
	}
	doctorID, err := claims.SubjectID()
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
	}

	doc, err := h.svc.Issue(ctx, c.Param("customId"), doctorID)
	switch {
	case err == nil:
	case errors.Is(err, ErrPatientNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Patient not found")
	case errors.Is(err, ErrDoctorNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Doctor not found")
	default:
		return err
	}

	if err := h.send(c, doc.Name); err != nil {
		h.svc.Discard(ctx, doc.Name)
		return fmt.Errorf("send prescription %s: %w", doc.Name, err)
	}
	return nil
}

func (h *Handler) Download(c echo.Context) error {
	claims := auth.ClaimsFromContext(c.Request().Context())
	name := c.Param("name")
	if claims != nil && claims.IsPatient() && !OwnedBy(name, claims.CustomID) {
		return echo.NewHTTPError(http.StatusForbidden, "Access denied")
	}
	return h.send(c, name)
}

func (h *Handler) send(c echo.Context, name string) error {
	rc, meta, err := h.svc.Open(c.Request().Context(), name)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Prescription not found")
	}
	if err != nil {
		return err
	}
	defer rc.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", meta.Name))
	return c.Stream(http.StatusOK, "application/pdf", rc)
}
