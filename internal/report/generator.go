// Package report builds end-of-interview summaries and evaluation reports
// from the persisted transcript.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"peerprep/interview/internal/agent"
	"peerprep/interview/internal/models"
	"peerprep/interview/internal/prompts"
	"peerprep/interview/internal/utils"
)

const (
	// transcripts longer than this are summarized piecewise first
	hardLimit = 9000
	chunkSize = 8000
)

// Source is the slice of the transcript repository the generator reads.
type Source interface {
	GetSession(ctx context.Context, sessionID string) (*models.SessionRecord, error)
	Messages(ctx context.Context, sessionID string) ([]models.MessageRecord, error)
	FindArtifact(ctx context.Context, sessionID, kind string) (string, error)
	SaveArtifact(ctx context.Context, sessionID, kind, payload string) (string, error)
}

type Generator struct {
	source  Source
	agent   agent.Gateway
	prompts prompts.PromptProvider
	cache   *Cache
	group   singleflight.Group
	timeout time.Duration
	logger  *zap.Logger
}

func NewGenerator(source Source, gateway agent.Gateway, pm prompts.PromptProvider, cache *Cache, timeout time.Duration, logger *zap.Logger) *Generator {
	return &Generator{
		source:  source,
		agent:   gateway,
		prompts: pm,
		cache:   cache,
		timeout: timeout,
		logger:  utils.LoggerOr(logger),
	}
}

// SummaryJSON returns the encoded summary of a session. The first successful
// summary is stored and every later call returns exactly the same bytes.
func (g *Generator) SummaryJSON(ctx context.Context, sessionID string) ([]byte, error) {
	return g.artifact(ctx, sessionID, models.ArtifactSummary, g.buildSummary)
}

// ReportJSON is SummaryJSON for the full evaluation report.
func (g *Generator) ReportJSON(ctx context.Context, sessionID string) ([]byte, error) {
	return g.artifact(ctx, sessionID, models.ArtifactReport, g.buildReport)
}

func (g *Generator) Summary(ctx context.Context, sessionID string) (*models.Summary, error) {
	payload, err := g.SummaryJSON(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	var out models.Summary
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *Generator) Report(ctx context.Context, sessionID string) (*models.Report, error) {
	payload, err := g.ReportJSON(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	var out models.Report
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type builder func(ctx context.Context, rec *models.SessionRecord, transcript string) (interface{}, error)

func (g *Generator) artifact(ctx context.Context, sessionID, kind string, build builder) ([]byte, error) {
	key := sessionID + ":" + kind
	if g.cache != nil {
		if payload, ok := g.cache.Get(key); ok {
			return []byte(payload), nil
		}
	}

	// collapsed callers share the work, so it must not die with the first one
	work := context.WithoutCancel(ctx)
	v, err, _ := g.group.Do(key, func() (interface{}, error) {
		return g.load(work, sessionID, kind, key, build)
	})
	if err != nil {
		return nil, err
	}
	return []byte(v.(string)), nil
}

func (g *Generator) load(ctx context.Context, sessionID, kind, key string, build builder) (string, error) {
	stored, err := g.source.FindArtifact(ctx, sessionID, kind)
	if err != nil {
		return "", err
	}
	if stored != "" {
		g.remember(key, stored)
		return stored, nil
	}

	rec, err := g.source.GetSession(ctx, sessionID)
	if err != nil {
		return "", err
	}
	msgs, err := g.source.Messages(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if len(msgs) == 0 {
		return encode(emptyArtifact(kind))
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	value, err := build(ctx, rec, FormatTranscript(msgs))
	if err != nil {
		return "", err
	}
	payload, err := encode(value)
	if err != nil {
		return "", err
	}

	winner, err := g.source.SaveArtifact(ctx, sessionID, kind, payload)
	if err != nil {
		return "", err
	}
	g.remember(key, winner)
	g.logger.Info("Artifact generated",
		zap.String("session_id", sessionID),
		zap.String("kind", kind),
		zap.Int("messages", len(msgs)))
	return winner, nil
}

func (g *Generator) remember(key, payload string) {
	if g.cache != nil {
		g.cache.Set(key, payload)
	}
}

func (g *Generator) buildSummary(ctx context.Context, rec *models.SessionRecord, transcript string) (interface{}, error) {
	variant := "default"
	if utf8.RuneCountInString(transcript) > hardLimit {
		notes, err := g.condense(ctx, rec, transcript)
		if err != nil {
			return nil, err
		}
		transcript, variant = notes, "fuse"
	}

	raw, err := g.ask(ctx, "summary", variant, promptData{JobRole: rec.JobRole, CandidateName: rec.CandidateName, Transcript: transcript})
	if err != nil {
		return nil, err
	}
	return ParseSummary(raw), nil
}

func (g *Generator) buildReport(ctx context.Context, rec *models.SessionRecord, transcript string) (interface{}, error) {
	if utf8.RuneCountInString(transcript) > hardLimit {
		notes, err := g.condense(ctx, rec, transcript)
		if err != nil {
			return nil, err
		}
		transcript = notes
	}

	raw, err := g.ask(ctx, "report", "default", promptData{JobRole: rec.JobRole, CandidateName: rec.CandidateName, Transcript: transcript})
	if err != nil {
		return nil, err
	}
	return ParseReport(raw), nil
}

// condense summarizes each chunk of a long transcript and joins the notes.
func (g *Generator) condense(ctx context.Context, rec *models.SessionRecord, transcript string) (string, error) {
	chunks := SplitChunks(transcript, chunkSize)
	notes := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		note, err := g.ask(ctx, "summary", "chunk", promptData{
			JobRole:       rec.JobRole,
			CandidateName: rec.CandidateName,
			Transcript:    chunk,
			Part:          i + 1,
			Parts:         len(chunks),
		})
		if err != nil {
			return "", err
		}
		notes = append(notes, fmt.Sprintf("[%d/%d]\n%s", i+1, len(chunks), strings.TrimSpace(note)))
	}
	return strings.Join(notes, "\n\n"), nil
}

type promptData struct {
	CandidateName string
	JobRole       string
	Transcript    string
	Part          int
	Parts         int
}

func (g *Generator) ask(ctx context.Context, mode, variant string, data promptData) (string, error) {
	query, err := g.prompts.BuildPrompt(mode, variant, data)
	if err != nil {
		return "", err
	}
	return g.agent.Ask(ctx, models.RoleSummarizer, agent.Inputs{
		CandidateName: data.CandidateName,
		JobRole:       data.JobRole,
		Query:         query,
	})
}

// FormatTranscript renders messages as "Q3(B): ..." / "A4: ..." lines.
func FormatTranscript(msgs []models.MessageRecord) string {
	var b strings.Builder
	for _, m := range msgs {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		text := strings.TrimSpace(m.Text)
		if m.Speaker == models.SpeakerInterviewer {
			fmt.Fprintf(&b, "Q%d(%s): %s", m.Turn, m.InterviewerRole, text)
		} else {
			fmt.Fprintf(&b, "A%d: %s", m.Turn, text)
		}
	}
	return b.String()
}

// SplitChunks cuts text into pieces of at most size runes, preferring line
// boundaries.
func SplitChunks(text string, size int) []string {
	var chunks []string
	var cur strings.Builder
	curLen := 0
	flush := func() {
		if curLen > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
			curLen = 0
		}
	}

	for _, line := range strings.Split(text, "\n") {
		runes := []rune(line)
		for len(runes) > size {
			flush()
			chunks = append(chunks, string(runes[:size]))
			runes = runes[size:]
		}
		n := len(runes)
		if curLen > 0 && curLen+1+n > size {
			flush()
		}
		if curLen > 0 {
			cur.WriteByte('\n')
			curLen++
		}
		cur.WriteString(string(runes))
		curLen += n
	}
	flush()
	return chunks
}

func emptyArtifact(kind string) interface{} {
	if kind == models.ArtifactReport {
		return models.Report{
			Summary:         models.EmptyTranscriptText,
			Strengths:       []string{},
			Improvements:    []string{},
			Recommendations: []string{},
		}
	}
	return models.Summary{Summary: models.EmptyTranscriptText, Bullets: []string{}}
}

func encode(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
