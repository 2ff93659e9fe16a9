package agent

import (
	"context"

	"golang.org/x/time/rate"

	"peerprep/interview/internal/models"
)

type limited struct {
	next    Gateway
	limiter *rate.Limiter
}

// WithRateLimit throttles outgoing agent calls. Waiting honours ctx, so a
// caller that gives up is reported as a timeout.
func WithRateLimit(next Gateway, perSecond float64, burst int) Gateway {
	if perSecond <= 0 {
		return next
	}
	if burst < 1 {
		burst = 1
	}
	return &limited{next: next, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (l *limited) Ask(ctx context.Context, role models.InterviewerRole, in Inputs) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", Unavailable("agent", "rate limiter wait", err)
	}
	return l.next.Ask(ctx, role, in)
}

func (l *limited) AskStream(ctx context.Context, role models.InterviewerRole, in Inputs) (Stream, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, Unavailable("agent", "rate limiter wait", err)
	}
	return l.next.AskStream(ctx, role, in)
}
