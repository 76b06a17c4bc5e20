package prescription

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hms/hms/internal/platform/auth"
)

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

// brokenWriter fails every body write, as a dropped client connection would.
type brokenWriter struct {
	*httptest.ResponseRecorder
}

func (w brokenWriter) Write([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func issueContext(e *echo.Echo, w http.ResponseWriter, doctorID uuid.UUID, customID string) echo.Context {
	req := withClaims(httptest.NewRequest(http.MethodPost, "/", nil), doctorID, auth.RoleDoctor, "")
	c := e.NewContext(req, w)
	c.SetParamNames("customId")
	c.SetParamValues(customID)
	return c
}

func TestHandler_Issue_StreamsAttachment(t *testing.T) {
	f := newFixture()
	h, e := NewHandler(f.svc), echo.New()

	rec := httptest.NewRecorder()
	if err := h.Issue(issueContext(e, rec, f.doctor.ID, "P-1700000000000-42")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "application/pdf" {
		t.Errorf("expected application/pdf, got %s", ct)
	}
	name := FileName("P-1700000000000-42", issuedAt)
	if cd := rec.Header().Get(echo.HeaderContentDisposition); !strings.Contains(cd, "attachment") || !strings.Contains(cd, name) {
		t.Errorf("unexpected Content-Disposition %q", cd)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")) {
		t.Error("expected PDF body")
	}
	if !f.blobs.Has(name) {
		t.Error("expected artifact to be kept after a successful download")
	}
}

func TestHandler_Issue_TransferFailureDeletesArtifact(t *testing.T) {
	f := newFixture()
	h, e := NewHandler(f.svc), echo.New()

	err := h.Issue(issueContext(e, brokenWriter{httptest.NewRecorder()}, f.doctor.ID, "P-1700000000000-42"))
	if err == nil {
		t.Fatal("expected transfer error")
	}
	if f.blobs.Has(FileName("P-1700000000000-42", issuedAt)) {
		t.Error("expected artifact to be deleted")
	}
}

func TestHandler_Issue_PatientNotFound(t *testing.T) {
	f := newFixture()
	h, e := NewHandler(f.svc), echo.New()

	err := h.Issue(issueContext(e, httptest.NewRecorder(), f.doctor.ID, "P-unknown"))
	expectHTTPError(t, err, http.StatusNotFound, "Patient not found")
}

func TestHandler_Download_Ownership(t *testing.T) {
	f := newFixture()
	h, e := NewHandler(f.svc), echo.New()
	doc, err := f.svc.Issue(context.Background(), "P-1700000000000-42", f.doctor.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	download := func(req *http.Request, name string) (*httptest.ResponseRecorder, error) {
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("name")
		c.SetParamValues(name)
		return rec, h.Download(c)
	}

	rec, err := download(withClaims(httptest.NewRequest(http.MethodGet, "/", nil), f.patient.ID, auth.RolePatient, "P-1700000000000-42"), doc.Name)
	if err != nil {
		t.Fatalf("owner download: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	_, err = download(withClaims(httptest.NewRequest(http.MethodGet, "/", nil), uuid.New(), auth.RolePatient, "P-999-1"), doc.Name)
	expectHTTPError(t, err, http.StatusForbidden, "Access denied")

	if _, err := download(withClaims(httptest.NewRequest(http.MethodGet, "/", nil), f.doctor.ID, auth.RoleDoctor, ""), doc.Name); err != nil {
		t.Errorf("doctor download: %v", err)
	}

	_, err = download(withClaims(httptest.NewRequest(http.MethodGet, "/", nil), f.doctor.ID, auth.RoleDoctor, ""), "prescription_none.pdf")
	expectHTTPError(t, err, http.StatusNotFound, "Prescription not found")
}

func TestRoutes_OnlyDoctorsIssue(t *testing.T) {
	f := newFixture()
	issuer := auth.NewTokenIssuer("test-secret")
	e := echo.New()
	NewHandler(f.svc).RegisterRoutes(e.Group("/api"), auth.Authenticate(issuer), auth.DefaultPolicy())

	for _, role := range []auth.Role{auth.RoleAdmin, auth.RoleReceptionist, auth.RoleLabTechnician} {
		token, _ := issuer.IssueStaff(uuid.New(), role)
		req := httptest.NewRequest(http.MethodPost, "/api/prescriptions/P-1700000000000-42", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("%s: expected 403, got %d", role, rec.Code)
		}
	}

	token, _ := issuer.IssueStaff(f.doctor.ID, auth.RoleDoctor)
	req := httptest.NewRequest(http.MethodPost, "/api/prescriptions/P-1700000000000-42", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("doctor: expected 200, got %d", rec.Code)
	}
}
