package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"text/template"

	"peerprep/interview/internal/config"
)

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(context.Context) error { return m.err }

func decodeReadinessResponse(t *testing.T, rec *httptest.ResponseRecorder) ReadinessResponse {
	t.Helper()
	var response ReadinessResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return response
}

func TestHealthzHandler(t *testing.T) {
	handler := NewHealthHandler(nil, nil, nil, nil)
	rec := httptest.NewRecorder()
	handler.HealthzHandler(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestReadyzHandler_AllHealthy(t *testing.T) {
	handler := NewHealthHandler(&mockPinger{}, &mockPinger{}, &mockPromptManager{}, &config.Config{})
	rec := httptest.NewRecorder()
	handler.ReadyzHandler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	response := decodeReadinessResponse(t, rec)
	if response.Status != "ready" || response.Service != "interview" {
		t.Fatalf("unexpected response %+v", response)
	}
	for _, name := range []string{"database", "events", "prompt_manager", "configuration"} {
		if response.Checks[name].Status != "ok" {
			t.Errorf("expected %s ok, got %+v", name, response.Checks[name])
		}
	}
}

func TestReadyzHandler_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler *HealthHandler
		failed  string
	}{
		{"database down", NewHealthHandler(&mockPinger{err: errors.New("connection refused")}, nil, &mockPromptManager{}, &config.Config{}), "database"},
		{"database missing", NewHealthHandler(nil, nil, &mockPromptManager{}, &config.Config{}), "database"},
		{"redis down", NewHealthHandler(&mockPinger{}, &mockPinger{err: errors.New("eof")}, &mockPromptManager{}, &config.Config{}), "events"},
		{"no templates", NewHealthHandler(&mockPinger{}, nil, &mockPromptManager{getTemplatesFn: func() map[string]map[string]*template.Template {
			return map[string]map[string]*template.Template{}
		}}, &config.Config{}), "prompt_manager"},
		{"no config", NewHealthHandler(&mockPinger{}, nil, &mockPromptManager{}, nil), "configuration"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.handler.ReadyzHandler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			if rec.Code != http.StatusServiceUnavailable {
				t.Fatalf("expected 503, got %d", rec.Code)
			}
			response := decodeReadinessResponse(t, rec)
			if response.Status != "not_ready" || response.Checks[tt.failed].Status != "failed" {
				t.Fatalf("expected %s to fail, got %+v", tt.failed, response)
			}
		})
	}
}
