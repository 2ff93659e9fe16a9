package models

import "errors"

// Errors returned across the interview flow. Gateways wrap provider details
// underneath the matching sentinel so callers can use errors.Is.
var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionEnded      = errors.New("session already ended")
	ErrSessionBusy       = errors.New("session is processing another answer")
	ErrInvalidInput      = errors.New("invalid input")
	ErrEmbeddingProvider = errors.New("embedding provider error")
	ErrAgentUnavailable  = errors.New("agent unavailable")
	ErrVoiceProvider     = errors.New("voice provider error")
)
