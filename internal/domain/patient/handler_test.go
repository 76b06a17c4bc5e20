package patient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/internal/platform/notification"
)

func jsonRequest(method, body string) *http.Request {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func withClaims(req *http.Request, id uuid.UUID, role auth.Role, customID string) *http.Request {
	claims := &auth.Claims{Role: role, CustomID: customID}
	claims.Subject = id.String()
	return req.WithContext(auth.WithClaims(req.Context(), claims))
}

func expectHTTPError(t *testing.T, err error, code int, msg string) {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %v", err)
	}
	if he.Code != code {
		t.Errorf("expected status %d, got %d", code, he.Code)
	}
	if msg != "" && he.Message != msg {
		t.Errorf("expected message %q, got %v", msg, he.Message)
	}
}

func TestHandler_LoginPatient(t *testing.T) {
	svc, _, _ := newTestService()
	h, e := NewHandler(svc), echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, `{"name":"Asha","email":"asha@example.test","contactNumber":"9876543210"}`), rec)
	if err := h.LoginPatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "OTP sent successfully") {
		t.Errorf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
}

func TestHandler_LoginPatient_Errors(t *testing.T) {
	svc, _, n := newTestService()
	h, e := NewHandler(svc), echo.New()

	c := e.NewContext(jsonRequest(http.MethodPost, `{"name":"Asha"}`), httptest.NewRecorder())
	expectHTTPError(t, h.LoginPatient(c), http.StatusBadRequest, "All fields are required")

	n.fail[notification.TemplateLoginOTP] = true
	c = e.NewContext(jsonRequest(http.MethodPost, `{"name":"Asha","email":"asha@example.test","contactNumber":"9876543210"}`), httptest.NewRecorder())
	expectHTTPError(t, h.LoginPatient(c), http.StatusInternalServerError, "Failed to send OTP")
}

func TestHandler_GenerateOTP_SMSFailure(t *testing.T) {
	svc, _, n := newTestService()
	h, e := NewHandler(svc), echo.New()
	svc.RequestOTP(context.Background(), testLogin)
	n.fail[notification.TemplateLoginOTP] = true

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, `{"contactNumber":"9876543210"}`), rec)
	if err := h.GenerateOTP(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
	var resp map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["success"] != false || resp["message"] != "Failed to send OTP via SMS" {
		t.Errorf("unexpected body %v", resp)
	}
}

func TestHandler_GenerateOTP_NotFound(t *testing.T) {
	svc, _, _ := newTestService()
	h, e := NewHandler(svc), echo.New()
	c := e.NewContext(jsonRequest(http.MethodPost, `{"contactNumber":"9000000001"}`), httptest.NewRecorder())
	expectHTTPError(t, h.GenerateOTP(c), http.StatusNotFound, "Patient not found")
}

func TestHandler_VerifyOTP(t *testing.T) {
	svc, _, n := newTestService()
	h, e := NewHandler(svc), echo.New()
	svc.RequestOTP(context.Background(), testLogin)
	msg, _ := n.last(notification.TemplateLoginOTP)

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, `{"contactNumber":"9876543210","otp":"`+msg.data["otp"]+`"}`), rec)
	if err := h.VerifyOTP(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp struct {
		Success  bool   `json:"success"`
		Message  string `json:"message"`
		Token    string `json:"token"`
		CustomID string `json:"customId"`
		SMSSent  bool   `json:"smsSent"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if !resp.Success || resp.Message != "Login successful" || resp.Token == "" || resp.CustomID == "" || !resp.SMSSent {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestHandler_VerifyOTP_Errors(t *testing.T) {
	svc, _, _ := newTestService()
	h, e := NewHandler(svc), echo.New()
	svc.RequestOTP(context.Background(), testLogin)

	c := e.NewContext(jsonRequest(http.MethodPost, `{"contactNumber":"9876543210"}`), httptest.NewRecorder())
	expectHTTPError(t, h.VerifyOTP(c), http.StatusBadRequest, "Contact number and OTP are required")

	rec := httptest.NewRecorder()
	c = e.NewContext(jsonRequest(http.MethodPost, `{"contactNumber":"9876543210","otp":"000000"}`), rec)
	if err := h.VerifyOTP(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "Invalid or expired OTP") {
		t.Errorf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
}

func TestHandler_UpdateProfile(t *testing.T) {
	svc, repo, n := newTestService()
	h, e := NewHandler(svc), echo.New()
	loginAndVerify(t, svc, n)
	p, _ := repo.GetByContact(context.Background(), testLogin.ContactNumber)

	rec := httptest.NewRecorder()
	req := withClaims(jsonRequest(http.MethodPut, `{"age":30,"gender":"Female","address":"Pune"}`), p.ID, auth.RolePatient, *p.CustomID)
	c := e.NewContext(req, rec)
	if err := h.UpdateProfile(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), "Profile updated successfully") {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), `"otp"`) {
		t.Error("otp must never be serialized")
	}

	req = withClaims(jsonRequest(http.MethodPut, `{"gender":"Robot"}`), p.ID, auth.RolePatient, *p.CustomID)
	c = e.NewContext(req, httptest.NewRecorder())
	expectHTTPError(t, h.UpdateProfile(c), http.StatusBadRequest, "Gender must be Male, Female or Other")
}

func TestHandler_Lookup(t *testing.T) {
	svc, _, n := newTestService()
	h, e := NewHandler(svc), echo.New()
	res := loginAndVerify(t, svc, n)

	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	expectHTTPError(t, h.Lookup(c), http.StatusBadRequest, "Custom ID is required")

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/?customId=P-1-1", nil), httptest.NewRecorder())
	expectHTTPError(t, h.Lookup(c), http.StatusNotFound, "Patient not found")

	rec := httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/?customId="+res.CustomID, nil), rec)
	if err := h.Lookup(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), "Patient details retrieved successfully") {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_GetRecord_Ownership(t *testing.T) {
	svc, repo, n := newTestService()
	h, e := NewHandler(svc), echo.New()
	res := loginAndVerify(t, svc, n)
	p, _ := repo.GetByCustomID(context.Background(), res.CustomID)

	// owner
	rec := httptest.NewRecorder()
	c := e.NewContext(withClaims(httptest.NewRequest(http.MethodGet, "/", nil), p.ID, auth.RolePatient, res.CustomID), rec)
	c.SetParamNames("customId")
	c.SetParamValues(res.CustomID)
	if err := h.GetRecord(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var record Record
	json.Unmarshal(rec.Body.Bytes(), &record)
	if record.Name != "Asha" {
		t.Errorf("unexpected record %+v", record)
	}

	// another patient
	c = e.NewContext(withClaims(httptest.NewRequest(http.MethodGet, "/", nil), uuid.New(), auth.RolePatient, "P-9-9"), httptest.NewRecorder())
	c.SetParamNames("customId")
	c.SetParamValues(res.CustomID)
	expectHTTPError(t, h.GetRecord(c), http.StatusForbidden, "Access denied")

	// staff
	c = e.NewContext(withClaims(httptest.NewRequest(http.MethodGet, "/", nil), uuid.New(), auth.RoleReceptionist, ""), httptest.NewRecorder())
	c.SetParamNames("customId")
	c.SetParamValues(res.CustomID)
	if err := h.GetRecord(c); err != nil {
		t.Errorf("staff should read the record: %v", err)
	}
}

func TestRoutes_PolicyEnforced(t *testing.T) {
	svc, _, n := newTestService()
	h, e := NewHandler(svc), echo.New()
	res := loginAndVerify(t, svc, n)
	issuer := auth.NewTokenIssuer(testSecret)
	h.RegisterRoutes(e.Group("/api"), auth.Authenticate(issuer), auth.DefaultPolicy())

	labToken, _ := issuer.IssueStaff(uuid.New(), auth.RoleLabTechnician)
	req := httptest.NewRequest(http.MethodPut, "/api/patient/"+res.CustomID+"/treatment", strings.NewReader(`{"diagnosis":"Flu"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+labToken)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("lab technician must not record treatment, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/patient/"+res.CustomID+"/lab-reports", strings.NewReader(`{"testName":"CBC","result":"Normal"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+labToken)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201 for lab report, got %d: %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/patient/get-patient?customId="+res.CustomID, nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 without token, got %d", rec.Code)
	}
}

// failingRepo accepts logins but fails every clinical write.
type failingRepo struct {
	*mockRepo
	err error
}

func (r *failingRepo) SetTreatment(context.Context, uuid.UUID, string, uuid.UUID) error { return r.err }
func (r *failingRepo) UpdateBilling(context.Context, uuid.UUID, Billing) error          { return r.err }
func (r *failingRepo) AddLabReport(context.Context, *LabReport) error                   { return r.err }

func TestHandler_StorageFailuresAreNotBadRequests(t *testing.T) {
	dial := errors.New("dial tcp 10.0.0.5:5432: connect: connection refused")
	n := &mockNotifier{fail: map[string]bool{}}
	svc := NewService(&failingRepo{mockRepo: newMockRepo(), err: dial}, db.NopRunner{}, auth.NewTokenIssuer(testSecret), n, zerolog.Nop())
	h, e := NewHandler(svc), echo.New()
	res := loginAndVerify(t, svc, n)

	tests := []struct {
		name string
		body string
		call func(echo.Context) error
	}{
		{"treatment", `{"diagnosis":"Flu"}`, h.RecordTreatment},
		{"billing", `{"totalBill":100,"paidAmount":50}`, h.UpdateBilling},
		{"lab report", `{"testName":"CBC","result":"Normal"}`, h.AddLabReport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := withClaims(jsonRequest(http.MethodPut, tt.body), uuid.New(), auth.RoleDoctor, "")
			c := e.NewContext(req, httptest.NewRecorder())
			c.SetParamNames("customId")
			c.SetParamValues(res.CustomID)

			err := tt.call(c)
			if !errors.Is(err, dial) {
				t.Fatalf("expected storage error to propagate, got %v", err)
			}
			if _, ok := err.(*echo.HTTPError); ok {
				t.Errorf("storage error must not be rendered as a client error: %v", err)
			}
		})
	}
}

func TestHandler_ValidationMessages(t *testing.T) {
	svc, _, n := newTestService()
	h, e := NewHandler(svc), echo.New()
	res := loginAndVerify(t, svc, n)

	tests := []struct {
		body string
		call func(echo.Context) error
		msg  string
	}{
		{`{"diagnosis":" "}`, h.RecordTreatment, "Diagnosis is required"},
		{`{"diagnosis":"Flu","medications":[{"dosage":"5mg"}]}`, h.RecordTreatment, "Medication name is required"},
		{`{"testName":"CBC"}`, h.AddLabReport, "Test name and result are required"},
		{`{"totalBill":-1,"paidAmount":0}`, h.UpdateBilling, "Amounts must not be negative"},
		{`{"totalBill":10,"paidAmount":20}`, h.UpdateBilling, "Paid amount cannot exceed total bill"},
	}
	for _, tt := range tests {
		req := withClaims(jsonRequest(http.MethodPut, tt.body), uuid.New(), auth.RoleDoctor, "")
		c := e.NewContext(req, httptest.NewRecorder())
		c.SetParamNames("customId")
		c.SetParamValues(res.CustomID)
		expectHTTPError(t, tt.call(c), http.StatusBadRequest, tt.msg)
	}
}
