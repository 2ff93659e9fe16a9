package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"peerprep/interview/internal/utils"
)

// Sweeper ends and evicts stale sessions.
type Sweeper interface {
	ExpireIdle(ctx context.Context, idle time.Duration) int
	EvictEnded(retention time.Duration) int
}

// JanitorConfig contains configuration for the session janitor
type JanitorConfig struct {
	Schedule    string        // cron spec, e.g. "@every 5m"
	IdleTimeout time.Duration // ongoing sessions idle longer than this are ended
	Retention   time.Duration // ended sessions older than this leave memory
	Enabled     bool
}

// SessionJanitor periodically ends idle interviews and evicts ended ones.
type SessionJanitor struct {
	sweeper Sweeper
	config  *JanitorConfig
	cron    *cron.Cron
	logger  *zap.Logger
}

func NewSessionJanitor(sweeper Sweeper, config *JanitorConfig, logger *zap.Logger) *SessionJanitor {
	return &SessionJanitor{
		sweeper: sweeper,
		config:  config,
		cron:    cron.New(),
		logger:  utils.LoggerOr(logger),
	}
}

// Start schedules the sweep.
func (j *SessionJanitor) Start() error {
	if !j.config.Enabled {
		j.logger.Info("Session janitor is disabled, skipping scheduler")
		return nil
	}

	if _, err := j.cron.AddFunc(j.config.Schedule, func() { j.RunOnce(context.Background()) }); err != nil {
		return fmt.Errorf("failed to schedule session janitor: %w", err)
	}
	j.cron.Start()
	j.logger.Info("Session janitor started", zap.String("schedule", j.config.Schedule))
	return nil
}

// Stop waits for a running sweep to finish.
func (j *SessionJanitor) Stop() {
	if j.cron != nil {
		<-j.cron.Stop().Done()
		j.logger.Info("Session janitor stopped")
	}
}

// RunOnce performs a single sweep and returns the number of expired and
// evicted sessions.
func (j *SessionJanitor) RunOnce(ctx context.Context) (expired, evicted int) {
	if j.config.IdleTimeout > 0 {
		expired = j.sweeper.ExpireIdle(ctx, j.config.IdleTimeout)
	}
	if j.config.Retention > 0 {
		evicted = j.sweeper.EvictEnded(j.config.Retention)
	}
	if expired > 0 || evicted > 0 {
		j.logger.Info("Session sweep finished",
			zap.Int("expired", expired),
			zap.Int("evicted", evicted))
	}
	return expired, evicted
}
