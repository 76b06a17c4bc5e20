package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const testSecret = "test-secret-key-for-unit-tests-only"

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func runMiddleware(t *testing.T, mw echo.MiddlewareFunc, header string) (*httptest.ResponseRecorder, echo.Context, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(echo.HeaderAuthorization, header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	err := mw(okHandler)(c)
	return rec, c, err
}

func expectHTTPError(t *testing.T, err error, code int, msg string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %d error, got nil", code)
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != code {
		t.Errorf("expected %d, got %d", code, httpErr.Code)
	}
	if msg != "" && httpErr.Message != msg {
		t.Errorf("expected message %q, got %v", msg, httpErr.Message)
	}
}

func TestAuthenticate_MissingHeader(t *testing.T) {
	_, _, err := runMiddleware(t, Authenticate(NewTokenIssuer(testSecret)), "")
	expectHTTPError(t, err, http.StatusForbidden, "No token provided")
}

func TestAuthenticate_WrongScheme(t *testing.T) {
	for _, header := range []string{"Token abc123", "Bearer", "Basic dXNlcjpwYXNz"} {
		t.Run(header, func(t *testing.T) {
			_, _, err := runMiddleware(t, Authenticate(NewTokenIssuer(testSecret)), header)
			expectHTTPError(t, err, http.StatusForbidden, "No token provided")
		})
	}
}

func TestAuthenticate_InvalidToken(t *testing.T) {
	_, _, err := runMiddleware(t, Authenticate(NewTokenIssuer(testSecret)), "Bearer not.a.jwt")
	expectHTTPError(t, err, http.StatusUnauthorized, "Invalid token")
}

func TestAuthenticate_WrongSecret(t *testing.T) {
	other := NewTokenIssuer("another-secret")
	tok, err := other.IssueStaff(uuid.New(), RoleDoctor)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	_, _, err = runMiddleware(t, Authenticate(NewTokenIssuer(testSecret)), "Bearer "+tok)
	expectHTTPError(t, err, http.StatusUnauthorized, "Invalid token")
}

func TestAuthenticate_Expired(t *testing.T) {
	issuer := NewTokenIssuer(testSecret)
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	tok, err := issuer.IssueStaff(uuid.New(), RoleDoctor)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	_, _, err = runMiddleware(t, Authenticate(NewTokenIssuer(testSecret)), "Bearer "+tok)
	expectHTTPError(t, err, http.StatusUnauthorized, "Invalid token")
}

func TestAuthenticate_AttachesClaims(t *testing.T) {
	issuer := NewTokenIssuer(testSecret)
	id := uuid.New()
	tok, err := issuer.IssueStaff(id, RoleReceptionist)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	rec, c, err := runMiddleware(t, Authenticate(issuer), "Bearer "+tok)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	claims := ClaimsFromContext(c.Request().Context())
	if claims == nil {
		t.Fatal("expected claims in context")
	}
	if claims.Subject != id.String() || claims.Role != RoleReceptionist {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestAuthenticate_UnknownRoleRejected(t *testing.T) {
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: "superuser",
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	_, _, err = runMiddleware(t, Authenticate(NewTokenIssuer(testSecret)), "Bearer "+tok)
	expectHTTPError(t, err, http.StatusUnauthorized, "Invalid token")
}

func TestRequireAdmin(t *testing.T) {
	e := echo.New()
	tests := []struct {
		name   string
		claims *Claims
		want   int
	}{
		{"admin", &Claims{Role: RoleAdmin}, http.StatusOK},
		{"doctor", &Claims{Role: RoleDoctor}, http.StatusForbidden},
		{"anonymous", nil, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.claims != nil {
				req = req.WithContext(WithClaims(req.Context(), tt.claims))
			}
			rec := httptest.NewRecorder()
			err := RequireAdmin()(okHandler)(e.NewContext(req, rec))
			if tt.want == http.StatusOK {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			expectHTTPError(t, err, tt.want, "Admin access required")
		})
	}
}
