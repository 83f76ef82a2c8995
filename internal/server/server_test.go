package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/oseghale/riskradar/internal/model"
	"github.com/oseghale/riskradar/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testServer() (*Server, *store.Memory) {
	mem := store.NewMemory()
	cfg := model.DefaultConfig()
	return New(cfg, mem, nil), mem
}

func seed(mem *store.Memory) {
	mem.AddOrganization(model.Organization{
		ID: "org-1", Name: "First Example Bank", InstitutionType: "commercial_bank",
	}, "token-1")
	mem.AddRisk(model.Risk{
		OrganizationID: "org-1", Code: "RISK-001", Title: "Cyber", Category: "cyber", Status: "open",
	})
}

func TestHealthz(t *testing.T) {
	srv, _ := testServer()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestScan_ExplicitOrganization(t *testing.T) {
	srv, mem := testServer()
	seed(mem)

	body, _ := json.Marshal(map[string]string{"organization_id": "org-1"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/scan", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}

	var summary model.ScanSummary
	if err := json.Unmarshal(w.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if !summary.Success {
		t.Errorf("Success = false: %s", summary.Error)
	}
	if summary.OrganizationID != "org-1" {
		t.Errorf("OrganizationID = %q, want org-1", summary.OrganizationID)
	}
	// No sources configured: an empty scan is still a completed scan.
	if summary.FeedsConfigured != 0 {
		t.Errorf("FeedsConfigured = %d, want 0", summary.FeedsConfigured)
	}
}

func TestScan_BearerTokenResolution(t *testing.T) {
	srv, mem := testServer()
	seed(mem)
	mem.AddOrganization(model.Organization{ID: "org-2", Name: "Other"}, "token-2")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/scan", nil)
	req.Header.Set("Authorization", "Bearer token-2")

	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}

	var summary model.ScanSummary
	if err := json.Unmarshal(w.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.OrganizationID != "org-2" {
		t.Errorf("OrganizationID = %q, want org-2 from bearer token", summary.OrganizationID)
	}
}

func TestScan_EmptyBodyFallsBackToFirstOrganization(t *testing.T) {
	srv, mem := testServer()
	seed(mem)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/scan", nil)

	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestScan_NoOrganizations(t *testing.T) {
	srv, _ := testServer() // empty store

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/scan", nil)

	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500 when no tenant resolves", w.Code)
	}

	var summary model.ScanSummary
	if err := json.Unmarshal(w.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.Success || summary.Error == "" {
		t.Errorf("error summary malformed: %+v", summary)
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc123", "abc123"},
		{"Bearer  abc123 ", "abc123"},
		{"Basic abc123", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := bearerToken(tt.header); got != tt.want {
			t.Errorf("bearerToken(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}
