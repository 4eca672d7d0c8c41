package errors_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	uierrors "github.com/dalemusser/tenanthub/internal/app/features/errors"
	"github.com/dalemusser/tenanthub/internal/domain/apperr"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type errBody struct {
	OK     bool   `json:"ok"`
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

func TestWrite_StatusAndBody(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantDetail string
	}{
		{"not found", apperr.New(apperr.ErrNotFound, "organization %q not found", "acme"), http.StatusNotFound, "not_found", `organization "acme" not found`},
		{"conflict", apperr.New(apperr.ErrConflict, "taken"), http.StatusConflict, "conflict", "taken"},
		{"forbidden", apperr.New(apperr.ErrForbidden, "nope"), http.StatusForbidden, "forbidden", "nope"},
		{"validation", apperr.New(apperr.ErrValidation, "bad"), http.StatusBadRequest, "validation_error", "bad"},
		{"unauthenticated", apperr.New(apperr.ErrUnauthenticated, "invalid credentials"), http.StatusUnauthorized, "unauthenticated", "invalid credentials"},
		{"verification", apperr.New(apperr.ErrMigrationVerification, "count mismatch"), http.StatusInternalServerError, "migration_verification_failed", "count mismatch"},
		{"internal hides cause", apperr.Internal(fmt.Errorf("socket closed"), "load organization"), http.StatusInternalServerError, "internal_error", "load organization"},
		{"unclassified", fmt.Errorf("boom"), http.StatusInternalServerError, "internal_error", "internal store error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest("GET", "/org/get", nil)
			uierrors.NewErrorLogger(zap.NewNop()).Write(rec, req, tt.err)

			if rec.Code != tt.wantStatus {
				t.Errorf("status: got %d, want %d", rec.Code, tt.wantStatus)
			}
			var b errBody
			if err := json.Unmarshal(rec.Body.Bytes(), &b); err != nil {
				t.Fatalf("failed to parse body: %v", err)
			}
			if b.OK {
				t.Error("ok should be false")
			}
			if b.Error != tt.wantCode {
				t.Errorf("error: got %q, want %q", b.Error, tt.wantCode)
			}
			if b.Detail != tt.wantDetail {
				t.Errorf("detail: got %q, want %q", b.Detail, tt.wantDetail)
			}
		})
	}
}

func TestWrite_LogsServerErrorsOnly(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	el := uierrors.NewErrorLogger(zap.New(core))
	req := httptest.NewRequest("PUT", "/org/update", nil)

	el.Write(httptest.NewRecorder(), req, apperr.New(apperr.ErrNotFound, "missing"))
	if logs.Len() != 0 {
		t.Fatalf("client errors should not be logged, got %d entries", logs.Len())
	}

	el.Write(httptest.NewRecorder(), req, apperr.Internal(fmt.Errorf("down"), "copy documents"))
	if logs.Len() != 1 {
		t.Fatalf("expected 1 log entry, got %d", logs.Len())
	}
	if got := logs.All()[0].ContextMap()["path"]; got != "/org/update" {
		t.Errorf("path field: got %v", got)
	}
}

func TestRenderUnauthorized_SetsChallenge(t *testing.T) {
	rec := httptest.NewRecorder()
	uierrors.RenderUnauthorized(rec, "missing bearer token")

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d", rec.Code)
	}
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Error("expected WWW-Authenticate header")
	}
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	uierrors.NotFound(rec, httptest.NewRequest("GET", "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("NotFound status: got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	uierrors.MethodNotAllowed(rec, httptest.NewRequest("PATCH", "/org/get", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("MethodNotAllowed status: got %d", rec.Code)
	}
}
