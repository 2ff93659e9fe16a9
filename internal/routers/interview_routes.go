package routers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"peerprep/interview/internal/handlers"
	"peerprep/interview/internal/middleware"
	"peerprep/interview/internal/models"
)

// InterviewRoutes mounts the interview API. auth identifies the caller and may
// be nil.
func InterviewRoutes(router *chi.Mux, h *handlers.InterviewHandler, auth func(http.Handler) http.Handler) {
	router.Route("/api/v1/interview", func(r chi.Router) {
		if auth != nil {
			r.Use(auth)
		}
		r.With(middleware.ValidateRequest[*models.StartRequest]()).Post("/start", h.StartHandler)
		r.With(middleware.ValidateRequest[*models.AnswerRequest]()).Post("/answer", h.AnswerHandler)
		r.With(middleware.ValidateRequest[*models.AnswerRequest]()).Post("/answer/sync", h.AnswerSyncHandler)
		r.With(middleware.ValidateRequest[*models.FinishRequest]()).Post("/finish", h.FinishHandler)
		r.Get("/ws/{sessionId}", h.AnswerWSHandler)
		r.Get("/summary/{sessionId}", h.SummaryHandler)
		r.Get("/report/{sessionId}", h.ReportHandler)

		r.Get("/sessions", h.ListSessionsHandler)
		r.Get("/sessions/{sessionId}", h.GetSessionHandler)
		r.Delete("/sessions/{sessionId}", h.DeleteSessionHandler)
	})
}
