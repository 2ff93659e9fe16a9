package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"peerprep/interview/internal/interview"
	"peerprep/interview/internal/middleware"
	"peerprep/interview/internal/models"
	"peerprep/interview/internal/transcript"
	"peerprep/interview/internal/utils"
)

// Interviewer runs the interview state machine.
type Interviewer interface {
	Start(ctx context.Context, in interview.StartInput) (*models.StartResponse, error)
	SubmitAnswer(ctx context.Context, sessionID, text string) (*interview.Exchange, error)
	Answer(ctx context.Context, sessionID, text string) (*models.AnswerResponse, error)
	Finish(ctx context.Context, sessionID string) error
	Session(sessionID string) (*models.Session, error)
}

// Artifacts serves stored summaries and reports as JSON.
type Artifacts interface {
	SummaryJSON(ctx context.Context, sessionID string) ([]byte, error)
	ReportJSON(ctx context.Context, sessionID string) ([]byte, error)
}

// Transcripts reads the persisted interview history.
type Transcripts interface {
	ListSessions(ctx context.Context, opts transcript.ListOptions) ([]models.SessionRecord, int64, error)
	GetSession(ctx context.Context, sessionID string) (*models.SessionRecord, error)
	Messages(ctx context.Context, sessionID string) ([]models.MessageRecord, error)
	SoftDelete(ctx context.Context, sessionID string) error
}

type InterviewHandler struct {
	interviews  Interviewer
	artifacts   Artifacts
	transcripts Transcripts
	upgrader    websocket.Upgrader
	logger      *zap.Logger
}

func NewInterviewHandler(interviews Interviewer, artifacts Artifacts, transcripts Transcripts, logger *zap.Logger) *InterviewHandler {
	return &InterviewHandler{
		interviews:  interviews,
		artifacts:   artifacts,
		transcripts: transcripts,
		upgrader:    websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		logger:      utils.LoggerOr(logger),
	}
}

func (h *InterviewHandler) StartHandler(w http.ResponseWriter, r *http.Request) {
	req := middleware.GetValidatedRequest[*models.StartRequest](r)

	res, err := h.interviews.Start(r.Context(), interview.StartInput{
		CandidateName:  req.CandidateName,
		JobRole:        req.JobRole,
		ProfileSummary: req.ProfileSummary,
		UserID:         middleware.UserID(r.Context()),
	})
	if err != nil {
		writeError(w, h.logger, err, "Failed to start interview")
		return
	}

	w.Header().Set("X-Interviewer-Role", string(res.Role))
	utils.JSON(w, http.StatusOK, res)
}

// AnswerHandler streams the next question as server-sent events: a meta
// event first, then one data event per delta, then [DONE].
func (h *InterviewHandler) AnswerHandler(w http.ResponseWriter, r *http.Request) {
	req := middleware.GetValidatedRequest[*models.AnswerRequest](r)

	ex, err := h.interviews.SubmitAnswer(r.Context(), req.SessionID, req.Text)
	if err != nil {
		writeError(w, h.logger, err, "Failed to submit answer")
		return
	}
	defer ex.Close()

	meta := ex.Meta()
	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	header.Set("X-Interviewer-Role", string(meta.Role))
	header.Set("X-Session-Ended", strconv.FormatBool(meta.Ended))
	w.WriteHeader(http.StatusOK)

	sse := newEventWriter(w)
	if err := sse.event("meta", meta); err != nil {
		return
	}
	for {
		delta, err := ex.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			h.logger.Error("Answer stream failed", zap.String("session_id", req.SessionID), zap.Error(err))
			_, body := errorBody(err)
			_ = sse.event("error", body)
			return
		}
		if err := sse.data(map[string]string{"delta": delta}); err != nil {
			// client went away; the deferred Close discards the turn
			return
		}
	}
	_ = sse.done()
}

func (h *InterviewHandler) AnswerSyncHandler(w http.ResponseWriter, r *http.Request) {
	req := middleware.GetValidatedRequest[*models.AnswerRequest](r)

	res, err := h.interviews.Answer(r.Context(), req.SessionID, req.Text)
	if err != nil {
		writeError(w, h.logger, err, "Failed to submit answer")
		return
	}
	w.Header().Set("X-Interviewer-Role", string(res.Role))
	w.Header().Set("X-Session-Ended", strconv.FormatBool(res.Ended))
	utils.JSON(w, http.StatusOK, res)
}

func (h *InterviewHandler) FinishHandler(w http.ResponseWriter, r *http.Request) {
	req := middleware.GetValidatedRequest[*models.FinishRequest](r)

	if err := h.interviews.Finish(r.Context(), req.SessionID); err != nil {
		writeError(w, h.logger, err, "Failed to finish interview")
		return
	}
	utils.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *InterviewHandler) SummaryHandler(w http.ResponseWriter, r *http.Request) {
	h.writeArtifact(w, r, h.artifacts.SummaryJSON)
}

func (h *InterviewHandler) ReportHandler(w http.ResponseWriter, r *http.Request) {
	h.writeArtifact(w, r, h.artifacts.ReportJSON)
}

// writeArtifact writes the stored payload as is, so repeated reads are
// byte-identical.
func (h *InterviewHandler) writeArtifact(w http.ResponseWriter, r *http.Request, load func(context.Context, string) ([]byte, error)) {
	sessionID := chi.URLParam(r, "sessionId")
	payload, err := load(r.Context(), sessionID)
	if err != nil {
		writeError(w, h.logger.With(zap.String("session_id", sessionID)), err, "Failed to build interview artifact")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (h *InterviewHandler) ListSessionsHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	opts := transcript.ListOptions{
		Query:  query.Get("q"),
		UserID: middleware.UserID(r.Context()),
		Limit:  queryInt(query.Get("limit")),
		Offset: queryInt(query.Get("offset")),
	}
	opts.Normalize()

	items, total, err := h.transcripts.ListSessions(r.Context(), opts)
	if err != nil {
		writeError(w, h.logger, err, "Failed to list sessions")
		return
	}
	if items == nil {
		items = []models.SessionRecord{}
	}
	utils.JSON(w, http.StatusOK, models.SessionListResponse{
		Items:  items,
		Total:  total,
		Limit:  opts.Limit,
		Offset: opts.Offset,
	})
}

func (h *InterviewHandler) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	rec, err := h.ownedSession(r, sessionID)
	if err != nil {
		writeError(w, h.logger, err, "Failed to load session")
		return
	}
	msgs, err := h.transcripts.Messages(r.Context(), sessionID)
	if err != nil {
		writeError(w, h.logger, err, "Failed to load transcript")
		return
	}
	if msgs == nil {
		msgs = []models.MessageRecord{}
	}
	utils.JSON(w, http.StatusOK, models.SessionDetailResponse{Session: *rec, Messages: msgs})
}

func (h *InterviewHandler) DeleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	if _, err := h.ownedSession(r, sessionID); err != nil {
		writeError(w, h.logger, err, "Failed to load session")
		return
	}
	if err := h.transcripts.SoftDelete(r.Context(), sessionID); err != nil {
		writeError(w, h.logger, err, "Failed to delete session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ownedSession hides sessions of other users from authenticated callers.
func (h *InterviewHandler) ownedSession(r *http.Request, sessionID string) (*models.SessionRecord, error) {
	rec, err := h.transcripts.GetSession(r.Context(), sessionID)
	if err != nil {
		return nil, err
	}
	if userID := middleware.UserID(r.Context()); userID != "" && rec.UserID != "" && rec.UserID != userID {
		return nil, models.ErrSessionNotFound
	}
	return rec, nil
}

func queryInt(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// eventWriter writes server-sent events and flushes after each one.
type eventWriter struct {
	w       io.Writer
	flusher http.Flusher
}

func newEventWriter(w http.ResponseWriter) *eventWriter {
	flusher, _ := w.(http.Flusher)
	return &eventWriter{w: w, flusher: flusher}
}

func (s *eventWriter) event(name string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.write(fmt.Sprintf("event: %s\ndata: %s\n\n", name, payload))
}

func (s *eventWriter) data(v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.write(fmt.Sprintf("data: %s\n\n", payload))
}

func (s *eventWriter) done() error {
	return s.write("data: [DONE]\n\n")
}

func (s *eventWriter) write(frame string) error {
	if _, err := io.WriteString(s.w, frame); err != nil {
		return err
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}
