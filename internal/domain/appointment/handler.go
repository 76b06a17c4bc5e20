package appointment

import (
	"errors"
	"net/http"
	"strings"

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
	g := api.Group("/appointments", authn)
	g.POST("/book", h.Book, policy.Require(auth.OpBookAppointment))
	g.GET("/doctor/:doctorId", h.ListByDoctor, policy.Require(auth.OpListDoctorAppts))
	g.GET("/patient/:patientId", h.ListByPatient, policy.Require(auth.OpListPatientAppts))
	g.PUT("/complete/:appointmentId", h.Complete, policy.Require(auth.OpCompleteAppt))
}

func (h *Handler) Book(c echo.Context) error {
	var in BookInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := ownPatient(c, in.PatientID); err != nil {
		return err
	}

	booked, err := h.svc.Book(c.Request().Context(), in)
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidDate):
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid date format")
	case errors.Is(err, ErrPastDate):
		return echo.NewHTTPError(http.StatusBadRequest, "Cannot book appointments in the past")
	case errors.Is(err, ErrOutsideBusinessHours):
		return echo.NewHTTPError(http.StatusBadRequest, "Appointments available only between 9:00 to 21:00 IST")
	case errors.Is(err, ErrDoctorNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Doctor not found")
	case errors.Is(err, ErrPatientNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Patient not found")
	case errors.Is(err, ErrConflict):
		return echo.NewHTTPError(http.StatusBadRequest, "You already have an appointment with this doctor today")
	default:
		return err
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"success":     true,
		"message":     "Appointment booked successfully",
		"appointment": booked,
	})
}

func (h *Handler) ListByDoctor(c echo.Context) error {
	id, err := uuid.Parse(c.Param("doctorId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Doctor not found!")
	}
	list, err := h.svc.ListByDoctor(c.Request().Context(), id)
	if errors.Is(err, ErrDoctorNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Doctor not found!")
	}
	if err != nil {
		return err
	}
	if list == nil {
		list = []*DoctorView{}
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) ListByPatient(c echo.Context) error {
	if err := ownPatient(c, c.Param("patientId")); err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Patient not found!")
	}
	list, err := h.svc.ListByPatient(c.Request().Context(), id)
	if errors.Is(err, ErrPatientNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Patient not found!")
	}
	if err != nil {
		return err
	}
	if list == nil {
		list = []*PatientView{}
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) Complete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("appointmentId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Appointment not found!")
	}
	_, err = h.svc.Complete(c.Request().Context(), id)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Appointment not found!")
	case errors.Is(err, ErrCancelled):
		return echo.NewHTTPError(http.StatusBadRequest, "Cancelled appointments cannot be completed")
	default:
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Appointment marked as completed!"})
}

// ownPatient rejects a patient caller acting on another patient's id.
func ownPatient(c echo.Context, patientID string) error {
	claims := auth.ClaimsFromContext(c.Request().Context())
	if claims == nil || !claims.IsPatient() {
		return nil
	}
	if !strings.EqualFold(claims.Subject, strings.TrimSpace(patientID)) {
		return echo.NewHTTPError(http.StatusForbidden, "Access denied")
	}
	return nil
}
