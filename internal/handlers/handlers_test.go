package handlers

import (
	"bytes"
	"context"
	"fmt"
	"net/http/httptest"
	"sync"
	"testing"
	"text/template"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"peerprep/interview/internal/agent"
	"peerprep/interview/internal/interview"
	"peerprep/interview/internal/middleware"
	"peerprep/interview/internal/models"
	"peerprep/interview/internal/prompts"
	"peerprep/interview/internal/report"
	"peerprep/interview/internal/session"
	"peerprep/interview/internal/transcript"
)

// textEmbedder maps every distinct text to its own axis.
type textEmbedder struct {
	mu   sync.Mutex
	axes map[string]int
}

func (e *textEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.axes == nil {
		e.axes = make(map[string]int)
	}
	idx, ok := e.axes[text]
	if !ok {
		idx = len(e.axes)
		e.axes[text] = idx
	}
	v := make([]float32, 64)
	v[idx%64] = 1
	return v, nil
}

type mockAgent struct {
	askFn    func(ctx context.Context, role models.InterviewerRole, in agent.Inputs) (string, error)
	streamFn func(ctx context.Context, role models.InterviewerRole, in agent.Inputs) (agent.Stream, error)
}

func (m *mockAgent) Ask(ctx context.Context, role models.InterviewerRole, in agent.Inputs) (string, error) {
	if m.askFn == nil {
		return `{"summary":"요약","bullets":["하나"],"strengths":[],"improvements":[],"recommendations":[]}`, nil
	}
	return m.askFn(ctx, role, in)
}

func (m *mockAgent) AskStream(ctx context.Context, role models.InterviewerRole, in agent.Inputs) (agent.Stream, error) {
	if m.streamFn == nil {
		return agent.NewStaticStream("다음 ", "질문입니다?"), nil
	}
	return m.streamFn(ctx, role, in)
}

type mockPromptManager struct {
	getTemplatesFn func() map[string]map[string]*template.Template
}

func (m *mockPromptManager) BuildPrompt(mode, variant string, data interface{}) (string, error) {
	return "mock prompt", nil
}

func (m *mockPromptManager) GetTemplates() map[string]map[string]*template.Template {
	if m.getTemplatesFn == nil {
		return map[string]map[string]*template.Template{
			"persona": {"A": template.Must(template.New("test").Parse("test"))},
		}
	}
	return m.getTemplatesFn()
}

type testEnv struct {
	orch    *interview.Orchestrator
	repo    *transcript.Repository
	agent   *mockAgent
	handler *InterviewHandler
	router  chi.Router
}

func newTestEnv(t *testing.T, maxRounds int) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	repo := transcript.NewRepository(db)
	if err := repo.Migrate(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	pm, err := prompts.NewPromptManager()
	if err != nil {
		t.Fatalf("NewPromptManager: %v", err)
	}

	mock := &mockAgent{}
	orch := interview.New(interview.Config{
		MaxRounds:            maxRounds,
		CountOpeningQuestion: true,
		FollowupRatio:        0.5,
		ProviderTimeout:      time.Second,
	}, interview.Deps{
		Store:    session.NewStore(),
		Embedder: &textEmbedder{},
		Agent:    mock,
		Roles:    agent.NewRolePicker(1),
		Prompts:  pm,
		Recorder: repo,
		Logger:   zap.NewNop(),
	})

	cache := report.NewCache(time.Minute)
	t.Cleanup(cache.Close)
	gen := report.NewGenerator(repo, mock, pm, cache, time.Second, zap.NewNop())

	h := NewInterviewHandler(orch, gen, repo, zap.NewNop())
	r := chi.NewRouter()
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

	return &testEnv{orch: orch, repo: repo, agent: mock, handler: h, router: r}
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) start(t *testing.T) *models.StartResponse {
	t.Helper()
	res, err := e.orch.Start(context.Background(), interview.StartInput{CandidateName: "지원자", JobRole: "백엔드 개발자"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	return res
}

