package patient

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

// RegisterRoutes mounts the patient endpoints. otpLimit, when given, guards
// the endpoints that send SMS.
func (h *Handler) RegisterRoutes(api *echo.Group, authn echo.MiddlewareFunc, policy auth.Policy, otpLimit ...echo.MiddlewareFunc) {
	g := api.Group("/patient")
	g.POST("/login-patient", h.LoginPatient, otpLimit...)
	g.POST("/generate-otp", h.GenerateOTP, otpLimit...)
	g.POST("/verify-otp", h.VerifyOTP, otpLimit...)

	g.PUT("/update-profile", h.UpdateProfile, authn, policy.Require(auth.OpUpdateOwnProfile))
	g.GET("/get-patient", h.Lookup, authn, policy.Require(auth.OpLookupPatient))
	g.GET("/:customId", h.GetRecord, authn, policy.Require(auth.OpViewPatientRecord))
	g.PUT("/:customId/treatment", h.RecordTreatment, authn, policy.Require(auth.OpRecordTreatment))
	g.POST("/:customId/lab-reports", h.AddLabReport, authn, policy.Require(auth.OpAddLabReport))
	g.PUT("/:customId/billing", h.UpdateBilling, authn, policy.Require(auth.OpUpdateBilling))
}

func notFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Patient not found")
	}
	return err
}

var validationMessages = []struct {
	err error
	msg string
}{
	{ErrInvalidGender, "Gender must be Male, Female or Other"},
	{ErrInvalidAge, "Age must be between 0 and 150"},
	{ErrDiagnosisRequired, "Diagnosis is required"},
	{ErrMedicationName, "Medication name is required"},
	{ErrLabReportFields, "Test name and result are required"},
	{ErrNegativeAmount, "Amounts must not be negative"},
	{ErrOverpaid, "Paid amount cannot exceed total bill"},
}

// validationError turns input sentinels into 400s. Anything else is left for
// the central error handler.
func validationError(err error) error {
	for _, v := range validationMessages {
		if errors.Is(err, v.err) {
			return echo.NewHTTPError(http.StatusBadRequest, v.msg)
		}
	}
	return err
}

func callerID(c echo.Context) (uuid.UUID, *auth.Claims, error) {
	claims := auth.ClaimsFromContext(c.Request().Context())
	if claims == nil {
		return uuid.Nil, nil, echo.NewHTTPError(http.StatusForbidden, "No token provided")
	}
	id, err := claims.SubjectID()
	if err != nil {
		return uuid.Nil, nil, echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
	}
	return id, claims, nil
}

func (h *Handler) LoginPatient(c echo.Context) error {
	var in LoginInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	err := h.svc.RequestOTP(c.Request().Context(), in)
	switch {
	case errors.Is(err, ErrMissingFields):
		return echo.NewHTTPError(http.StatusBadRequest, "All fields are required")
	case errors.Is(err, ErrDuplicate):
		return echo.NewHTTPError(http.StatusBadRequest, "A patient with this email already exists")
	case errors.Is(err, ErrSMSFailed):
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to send OTP")
	case err != nil:
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "OTP sent successfully"})
}

type contactRequest struct {
	ContactNumber string `json:"contactNumber"`
	OTP           string `json:"otp"`
}

func (h *Handler) GenerateOTP(c echo.Context) error {
	var in contactRequest
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	err := h.svc.GenerateOTP(c.Request().Context(), in.ContactNumber)
	switch {
	case errors.Is(err, ErrMissingFields):
		return echo.NewHTTPError(http.StatusBadRequest, "Contact number is required")
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Patient not found")
	case errors.Is(err, ErrSMSFailed):
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"message": "Failed to send OTP via SMS",
		})
	case err != nil:
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "message": "OTP sent successfully"})
}

func (h *Handler) VerifyOTP(c echo.Context) error {
	var in contactRequest
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	res, err := h.svc.VerifyOTP(c.Request().Context(), in.ContactNumber, in.OTP)
	switch {
	case errors.Is(err, ErrMissingFields):
		return echo.NewHTTPError(http.StatusBadRequest, "Contact number and OTP are required")
	case errors.Is(err, ErrInvalidOTP):
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"message": "Invalid or expired OTP",
		})
	case err != nil:
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":  true,
		"message":  "Login successful",
		"token":    res.Token,
		"customId": res.CustomID,
		"smsSent":  res.SMSSent,
	})
}

func (h *Handler) UpdateProfile(c echo.Context) error {
	id, _, err := callerID(c)
	if err != nil {
		return err
	}
	var in ProfileUpdate
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	p, err := h.svc.UpdateProfile(c.Request().Context(), id, in)
	if errors.Is(err, ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]interface{}{"success": false, "message": "Patient not found"})
	}
	if err != nil {
		return validationError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Profile updated successfully",
		"patient": p,
	})
}

func (h *Handler) Lookup(c echo.Context) error {
	customID := c.QueryParam("customId")
	if customID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Custom ID is required")
	}
	p, err := h.svc.GetByCustomID(c.Request().Context(), customID)
	if err != nil {
		return notFound(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Patient details retrieved successfully",
		"patient": p,
	})
}

// GetRecord serves staff and the patient who owns the record.
func (h *Handler) GetRecord(c echo.Context) error {
	_, claims, err := callerID(c)
	if err != nil {
		return err
	}
	customID := c.Param("customId")
	if claims.IsPatient() && claims.CustomID != customID {
		return echo.NewHTTPError(http.StatusForbidden, "Access denied")
	}
	rec, err := h.svc.Record(c.Request().Context(), customID)
	if err != nil {
		return notFound(err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) RecordTreatment(c echo.Context) error {
	doctorID, _, err := callerID(c)
	if err != nil {
		return err
	}
	var in TreatmentInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	p, err := h.svc.RecordTreatment(c.Request().Context(), c.Param("customId"), doctorID, in)
	if errors.Is(err, ErrNotFound) {
		return notFound(err)
	}
	if err != nil {
		return validationError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Treatment recorded successfully",
		"patient": p,
	})
}

func (h *Handler) AddLabReport(c echo.Context) error {
	reporter, _, err := callerID(c)
	if err != nil {
		return err
	}
	var in LabReportInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	lr, err := h.svc.AddLabReport(c.Request().Context(), c.Param("customId"), reporter, in)
	if errors.Is(err, ErrNotFound) {
		return notFound(err)
	}
	if err != nil {
		return validationError(err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message":   "Lab report added successfully",
		"labReport": lr,
	})
}

func (h *Handler) UpdateBilling(c echo.Context) error {
	var in BillingInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	b, err := h.svc.UpdateBilling(c.Request().Context(), c.Param("customId"), in)
	if errors.Is(err, ErrNotFound) {
		return notFound(err)
	}
	if err != nil {
		return validationError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Billing updated successfully",
		"billing": b,
	})
}
