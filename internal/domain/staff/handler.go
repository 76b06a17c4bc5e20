package staff

import (
	"errors"
	"fmt"
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

// RegisterRoutes mounts the public login and registration endpoints and the
// admin endpoints behind authn.
func (h *Handler) RegisterRoutes(api *echo.Group, authn echo.MiddlewareFunc, policy auth.Policy) {
	api.POST("/admin/login", h.AdminLogin)

	admin := api.Group("/admin", authn, auth.RequireAdmin())
	admin.GET("/pending-staff", h.ListPending, policy.Require(auth.OpListPendingStaff))
	admin.POST("/approve-staff", h.Approve, policy.Require(auth.OpApproveStaff))
	admin.POST("/reject-staff", h.Reject, policy.Require(auth.OpRejectStaff))
	admin.GET("/users", h.ListUsers, policy.Require(auth.OpListUsers))

	api.POST("/staff/login", h.Login)
	api.POST("/staff/login-doctor", h.DoctorLogin)
	api.POST("/staff/register-doctor", h.RegisterDoctor)
	api.POST("/staff/register", h.RegisterStaff)

	api.GET("/doctors", h.ListDoctors)
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userIDRequest struct {
	UserID string `json:"userId"`
}

// loginError maps login failures. notFound differs per endpoint.
func loginError(err error, notFound string) error {
	switch {
	case errors.Is(err, ErrMissingCredentials):
		return echo.NewHTTPError(http.StatusBadRequest, "Email and password are required")
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, notFound)
	case errors.Is(err, ErrApprovalPending):
		return echo.NewHTTPError(http.StatusForbidden, "Approval pending. Please wait for admin approval.")
	case errors.Is(err, ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid credentials")
	}
	return err
}

func (h *Handler) bindCredentials(c echo.Context) (credentials, error) {
	var in credentials
	if err := c.Bind(&in); err != nil {
		return in, echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	return in, nil
}

func (h *Handler) Login(c echo.Context) error {
	in, err := h.bindCredentials(c)
	if err != nil {
		return err
	}
	res, err := h.svc.Login(c.Request().Context(), in.Email, in.Password)
	if err != nil {
		return loginError(err, "User not found")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Login successful",
		"token":   res.Token,
		"user":    res.Account.Summary(),
	})
}

func (h *Handler) AdminLogin(c echo.Context) error {
	in, err := h.bindCredentials(c)
	if err != nil {
		return err
	}
	res, err := h.svc.AdminLogin(c.Request().Context(), in.Email, in.Password)
	if err != nil {
		return loginError(err, "Admin not found")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Login successful",
		"token":   res.Token,
		"admin":   res.Account.Summary(),
	})
}

func (h *Handler) DoctorLogin(c echo.Context) error {
	in, err := h.bindCredentials(c)
	if err != nil {
		return err
	}
	res, err := h.svc.DoctorLogin(c.Request().Context(), in.Email, in.Password)
	if err != nil {
		return loginError(err, "Doctor not found")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Login successful",
		"token":   res.Token,
		"doctor":  res.Account.Summary(),
	})
}

func registerError(err error, duplicate string) error {
	switch {
	case errors.Is(err, ErrDuplicate):
		return echo.NewHTTPError(http.StatusBadRequest, duplicate)
	case errors.Is(err, ErrMissingCredentials):
		return echo.NewHTTPError(http.StatusBadRequest, "Email and password are required")
	case errors.Is(err, ErrInvalidRole):
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid role")
	case errors.Is(err, ErrUsernameRequired):
		return echo.NewHTTPError(http.StatusBadRequest, "Username is required")
	case errors.Is(err, ErrInvalidEmail):
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid email address")
	case errors.Is(err, ErrSpecializationRequired):
		return echo.NewHTTPError(http.StatusBadRequest, "Specialization is required for doctors")
	}
	return err
}

func (h *Handler) RegisterDoctor(c echo.Context) error {
	var in RegisterInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if _, err := h.svc.RegisterDoctor(c.Request().Context(), in); err != nil {
		return registerError(err, "Doctor already registered")
	}
	return c.JSON(http.StatusCreated, map[string]string{
		"message": "Registration successful. Awaiting admin approval.",
	})
}

func (h *Handler) RegisterStaff(c echo.Context) error {
	var in RegisterInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if _, err := h.svc.RegisterStaff(c.Request().Context(), in); err != nil {
		return registerError(err, "User already exists")
	}
	return c.JSON(http.StatusCreated, map[string]string{
		"message": "Registration successful. Awaiting admin approval.",
	})
}

func (h *Handler) ListPending(c echo.Context) error {
	items, err := h.svc.ListPending(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) ListUsers(c echo.Context) error {
	items, err := h.svc.ListUsers(c.Request().Context())
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "No users found")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"users": items})
}

func (h *Handler) ListDoctors(c echo.Context) error {
	items, err := h.svc.ListDoctors(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

func bindUserID(c echo.Context) (uuid.UUID, error) {
	var in userIDRequest
	if err := c.Bind(&in); err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	id, err := uuid.Parse(in.UserID)
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusNotFound, "User not found")
	}
	return id, nil
}

func (h *Handler) Approve(c echo.Context) error {
	id, err := bindUserID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.Approve(c.Request().Context(), id)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "User not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": fmt.Sprintf("%s approved successfully", a.Role)})
}

func (h *Handler) Reject(c echo.Context) error {
	id, err := bindUserID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.Reject(c.Request().Context(), id)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "User not found")
	case errors.Is(err, ErrAlreadyApproved):
		return echo.NewHTTPError(http.StatusBadRequest, "Approved accounts cannot be rejected")
	default:
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": fmt.Sprintf("%s rejected and removed", a.Role)})
}
