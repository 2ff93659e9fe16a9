package routers

import (
	"github.com/go-chi/chi/v5"

	"peerprep/interview/internal/handlers"
	"peerprep/interview/internal/middleware"
	"peerprep/interview/internal/models"
)

func VoiceRoutes(router *chi.Mux, h *handlers.VoiceHandler) {
	router.Route("/api/v1/voice", func(r chi.Router) {
		r.Post("/stt", h.SpeechToTextHandler)
		r.With(middleware.ValidateRequest[*models.SpeechRequest]()).Post("/tts", h.TextToSpeechHandler)
	})
}
