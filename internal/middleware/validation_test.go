package middleware

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"peerprep/interview/internal/models"
)

type mockRequest struct {
	Value string `json:"value"`
}

func (m *mockRequest) Validate() error {
	switch m.Value {
	case "error_response":
		return &models.ErrorResponse{Code: "invalid", Message: "invalid"}
	case "generic_error":
		return errors.New("failed")
	default:
		return nil
	}
}

func TestValidateRequestStoresDecodedBody(t *testing.T) {
	called := false
	handler := ValidateRequest[*mockRequest]()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if req := GetValidatedRequest[*mockRequest](r); req.Value != "ok" {
			t.Fatalf("expected value ok, got %s", req.Value)
		}
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/test", bytes.NewBufferString(`{"value":"ok"}`)))

	if !called || rec.Code != http.StatusOK {
		t.Fatalf("expected handler call with 200, got called=%v status=%d", called, rec.Code)
	}
}

func TestValidateRequestRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		code int
		want string
	}{
		{"invalid json", `{`, http.StatusBadRequest, "invalid_json"},
		{"error response", `{"value":"error_response"}`, http.StatusBadRequest, `"code":"invalid"`},
		{"generic error", `{"value":"generic_error"}`, http.StatusBadRequest, "validation_error"},
		{"too large", `{"value":"` + strings.Repeat("x", maxBodyBytes) + `"}`, http.StatusRequestEntityTooLarge, "body_too_large"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := ValidateRequest[*mockRequest]()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				t.Fatal("handler must not be called")
			}))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/test", bytes.NewBufferString(tt.body)))

			if rec.Code != tt.code {
				t.Fatalf("expected status %d, got %d", tt.code, rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.want) {
				t.Fatalf("expected %q in body %s", tt.want, rec.Body.String())
			}
		})
	}
}
