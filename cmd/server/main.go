package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"peerprep/interview/internal/agent"
	"peerprep/interview/internal/agent/dify"
	"peerprep/interview/internal/config"
	"peerprep/interview/internal/embedding"
	"peerprep/interview/internal/events"
	"peerprep/interview/internal/handlers"
	"peerprep/interview/internal/interview"
	"peerprep/interview/internal/jobs"
	"peerprep/interview/internal/llm"
	_ "peerprep/interview/internal/llm/gemini"
	_ "peerprep/interview/internal/llm/openai"
	"peerprep/interview/internal/metrics"
	authmw "peerprep/interview/internal/middleware"
	"peerprep/interview/internal/models"
	"peerprep/interview/internal/prompts"
	"peerprep/interview/internal/report"
	"peerprep/interview/internal/routers"
	"peerprep/interview/internal/session"
	"peerprep/interview/internal/similarity"
	"peerprep/interview/internal/transcript"
	"peerprep/interview/internal/utils"
	"peerprep/interview/internal/voice"
)

func registerRoutes(router *chi.Mux, cfg *config.Config, interviewHandler *handlers.InterviewHandler, voiceHandler *handlers.VoiceHandler, healthHandler *handlers.HealthHandler) {
	routers.HealthRoutes(router, healthHandler)
	routers.InterviewRoutes(router, interviewHandler, authmw.Authenticate(cfg.JWTSecret, false))
	routers.VoiceRoutes(router, voiceHandler)
}

// openDatabase connects to postgres, or to a sqlite file for local runs, and
// migrates the transcript tables.
func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "sqlite":
		dialector = sqlite.Open(cfg.SQLitePath)
	default:
		dialector = postgres.Open(cfg.DatabaseDSN)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := transcript.NewRepository(db).Migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

// newAgentGateway returns the gateway named by provider: the Dify agent apps,
// or a registered llm provider behind the persona prompts.
func newAgentGateway(provider string, cfg *config.Config, pm prompts.PromptProvider) (agent.Gateway, error) {
	var gw agent.Gateway
	if provider == "dify" {
		keys := make(map[models.InterviewerRole]string, len(cfg.DifyKeys))
		for role, key := range cfg.DifyKeys {
			keys[models.InterviewerRole(role)] = key
		}
		gw = dify.NewClient(dify.Config{BaseURL: cfg.DifyURL, Keys: keys}, nil)
	} else {
		p, err := llm.NewProvider(provider)
		if err != nil {
			return nil, err
		}
		gw = agent.NewProviderGateway(p, pm)
	}
	return agent.WithRateLimit(gw, cfg.AgentRateLimit, cfg.AgentBurst), nil
}

func voiceConfig(cfg *config.Config) voice.Config {
	voices := make(map[models.InterviewerRole]string)
	for _, role := range models.InterviewerRoles {
		if id := cfg.VoiceIDs[string(role)]; id != "" {
			voices[role] = id
		}
	}
	return voice.Config{
		APIKey:       cfg.ElevenAPIKey,
		TTSModel:     cfg.TTSModel,
		STTModel:     cfg.STTModel,
		Voices:       voices,
		DefaultVoice: cfg.VoiceIDs["DEFAULT"],
		Timeout:      cfg.ProviderTimeout,
	}
}

func newRouter(cfg *config.Config) *chi.Mux {
	router := chi.NewRouter()

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization"},
		ExposedHeaders:   []string{"X-Interviewer-Role", "X-Session-Ended"},
		AllowCredentials: true,
	}))

	// streamed answers run up to the provider timeout, so the request timeout
	// leaves headroom for the commit after the last delta
	router.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer,
		unlessWebSocket(middleware.Timeout(cfg.ProviderTimeout+30*time.Second)), metrics.Middleware("interview"))
	return router
}

// unlessWebSocket applies mw to everything but websocket upgrades, whose
// connections are hijacked and outlive any request deadline.
func unlessWebSocket(mw func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		wrapped := mw(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if websocket.IsWebSocketUpgrade(r) {
				next.ServeHTTP(w, r)
				return
			}
			wrapped.ServeHTTP(w, r)
		})
	}
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "failed to read .env: %v\n", err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()
	utils.SetLogger(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	logger.Info("Configuration loaded",
		zap.String("agent_provider", cfg.AgentProvider),
		zap.String("report_provider", cfg.ReportProvider),
		zap.Int("max_rounds", cfg.MaxRounds),
		zap.Bool("count_opening_question", cfg.CountOpeningQuestion))

	promptManager, err := prompts.NewPromptManager()
	if err != nil {
		logger.Fatal("Failed to initialize prompt manager", zap.Error(err))
	}

	db, err := openDatabase(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	repo := transcript.NewRepository(db)

	interviewAgent, err := newAgentGateway(cfg.AgentProvider, cfg, promptManager)
	if err != nil {
		logger.Fatal("Failed to initialize interview agent", zap.Error(err))
	}
	reportAgent, err := newAgentGateway(cfg.ReportProvider, cfg, promptManager)
	if err != nil {
		logger.Fatal("Failed to initialize report agent", zap.Error(err))
	}

	embedder, err := embedding.NewService(embedding.Config{
		BaseURL: cfg.EmbeddingBaseURL,
		Model:   cfg.EmbeddingModel,
		APIKey:  cfg.EmbeddingAPIKey,
		Timeout: cfg.ProviderTimeout,
	})
	if err != nil {
		logger.Fatal("Failed to initialize embedding service", zap.Error(err))
	}

	var publisher events.Publisher = events.NopPublisher{}
	var eventsPinger handlers.Pinger
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		redisPublisher := events.NewRedisPublisher(rdb, cfg.EventsChannel)
		publisher, eventsPinger = redisPublisher, redisPublisher
	} else {
		logger.Warn("REDIS_ADDR not set, interview_ended events are disabled")
	}

	orchestrator := interview.New(interview.Config{
		MaxRounds:            cfg.MaxRounds,
		CountOpeningQuestion: cfg.CountOpeningQuestion,
		FollowupRatio:        cfg.FollowupRatio,
		ProviderTimeout:      cfg.ProviderTimeout,
	}, interview.Deps{
		Store:     session.NewStore(),
		Embedder:  embedder,
		Guard:     similarity.NewGuard(cfg.QuestionThreshold, cfg.AnswerThreshold),
		Agent:     interviewAgent,
		Roles:     agent.NewRandomRolePicker(),
		Prompts:   promptManager,
		Recorder:  repo,
		Publisher: publisher,
		Logger:    logger,
	})

	reportCache := report.NewCache(cfg.ReportCacheTTL)
	defer reportCache.Close()
	generator := report.NewGenerator(repo, reportAgent, promptManager, reportCache, 2*cfg.ProviderTimeout, logger)

	janitor := jobs.NewSessionJanitor(orchestrator, &jobs.JanitorConfig{
		Schedule:    cfg.JanitorSchedule,
		IdleTimeout: cfg.SessionIdleTimeout,
		Retention:   cfg.SessionRetention,
		Enabled:     cfg.JanitorSchedule != "",
	}, logger)
	if err := janitor.Start(); err != nil {
		logger.Error("Failed to start session janitor", zap.Error(err))
	}

	interviewHandler := handlers.NewInterviewHandler(orchestrator, generator, repo, logger)
	voiceHandler := handlers.NewVoiceHandler(voice.NewElevenLabs(voiceConfig(cfg), nil), logger)
	healthHandler := handlers.NewHealthHandler(repo, eventsPinger, promptManager, cfg)

	router := newRouter(cfg)
	registerRoutes(router, cfg, interviewHandler, voiceHandler, healthHandler)

	serverAddr := ":" + cfg.Port
	server := &http.Server{
		Addr:        serverAddr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// covers a whole streamed answer
		WriteTimeout: cfg.ProviderTimeout + 45*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Interview service starting", zap.String("addr", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)
	<-shutdownChan

	logger.Info("Interview service shutting down...")
	janitor.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("Interview service exited")
}
