package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"peerprep/interview/internal/llm"
	"peerprep/interview/internal/models"
	"peerprep/interview/internal/utils"
)

// errorStatus maps a domain error to its HTTP status and error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, models.ErrSessionNotFound):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, models.ErrSessionEnded):
		return http.StatusConflict, "session_ended"
	case errors.Is(err, models.ErrSessionBusy):
		return http.StatusConflict, "session_busy"
	}

	upstream := ""
	switch {
	case errors.Is(err, models.ErrAgentUnavailable):
		upstream = "agent_unavailable"
	case errors.Is(err, models.ErrEmbeddingProvider):
		upstream = "embedding_error"
	case errors.Is(err, models.ErrVoiceProvider):
		upstream = "voice_error"
	}
	if upstream != "" {
		if isTimeout(err) {
			return http.StatusGatewayTimeout, "upstream_timeout"
		}
		return http.StatusBadGateway, upstream
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, "upstream_timeout"
	}
	return http.StatusInternalServerError, "internal_error"
}

func isTimeout(err error) bool {
	var perr *llm.ProviderError
	if errors.As(err, &perr) && perr.Code == llm.ErrCodeTimeout {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// genericErrorMessage replaces server-side error text in response bodies;
// upstream errors may carry raw provider responses.
const genericErrorMessage = "요청을 처리하지 못했습니다. 다시 시도해 주세요."

// errorBody is the client-facing form of err.
func errorBody(err error) (int, models.ErrorResponse) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		return status, models.ErrorResponse{Code: code, Message: genericErrorMessage}
	}
	return status, models.ErrorResponse{Code: code, Message: err.Error()}
}

func writeError(w http.ResponseWriter, logger *zap.Logger, err error, msg string) {
	status, body := errorBody(err)
	if status >= http.StatusInternalServerError {
		logger.Error(msg, zap.Error(err))
	} else {
		logger.Debug(msg, zap.Error(err))
	}
	utils.JSON(w, status, body)
}
