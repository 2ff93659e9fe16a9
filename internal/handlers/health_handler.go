package handlers

import (
	"context"
	"net/http"
	"time"

	"peerprep/interview/internal/config"
	"peerprep/interview/internal/prompts"
	"peerprep/interview/internal/utils"
)

const serviceName = "interview"

type ReadinessCheck struct {
	Status  string `json:"status"` // "ok" | "failed"
	Message string `json:"message,omitempty"`
}

type ReadinessResponse struct {
	Status  string                    `json:"status"` // "ready" | "not_ready"
	Service string                    `json:"service"`
	Checks  map[string]ReadinessCheck `json:"checks"`
}

// Pinger is a dependency that can report whether it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	database      Pinger
	events        Pinger
	promptManager prompts.PromptProvider
	config        *config.Config
}

// NewHealthHandler builds the health endpoints. events may be nil when no
// redis is configured.
func NewHealthHandler(database, events Pinger, promptManager prompts.PromptProvider, cfg *config.Config) *HealthHandler {
	return &HealthHandler{
		database:      database,
		events:        events,
		promptManager: promptManager,
		config:        cfg,
	}
}

func (handler *HealthHandler) HealthzHandler(writer http.ResponseWriter, request *http.Request) {
	utils.JSON(writer, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": serviceName,
		"version": "1.0.0",
	})
}

func (handler *HealthHandler) ReadyzHandler(writer http.ResponseWriter, request *http.Request) {
	ctx, cancel := context.WithTimeout(request.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]ReadinessCheck)
	ready := true
	record := func(name string, check ReadinessCheck) {
		checks[name] = check
		if check.Status != "ok" {
			ready = false
		}
	}

	record("database", pingCheck(ctx, handler.database, "Database not initialized"))
	if handler.events != nil {
		record("events", pingCheck(ctx, handler.events, ""))
	}

	switch {
	case handler.promptManager == nil:
		record("prompt_manager", ReadinessCheck{Status: "failed", Message: "Prompt manager not initialized"})
	case len(handler.promptManager.GetTemplates()) == 0:
		record("prompt_manager", ReadinessCheck{Status: "failed", Message: "No prompt templates loaded"})
	default:
		record("prompt_manager", ReadinessCheck{Status: "ok"})
	}

	if handler.config == nil {
		record("configuration", ReadinessCheck{Status: "failed", Message: "Configuration not loaded"})
	} else {
		record("configuration", ReadinessCheck{Status: "ok"})
	}

	response := ReadinessResponse{Service: serviceName, Checks: checks}
	if ready {
		response.Status = "ready"
		utils.JSON(writer, http.StatusOK, response)
		return
	}
	response.Status = "not_ready"
	utils.JSON(writer, http.StatusServiceUnavailable, response)
}

func pingCheck(ctx context.Context, p Pinger, missing string) ReadinessCheck {
	if p == nil {
		return ReadinessCheck{Status: "failed", Message: missing}
	}
	if err := p.Ping(ctx); err != nil {
		return ReadinessCheck{Status: "failed", Message: err.Error()}
	}
	return ReadinessCheck{Status: "ok"}
}
