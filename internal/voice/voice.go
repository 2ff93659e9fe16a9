// Package voice proxies text-to-speech and speech-to-text to ElevenLabs.
package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"peerprep/interview/internal/llm"
	"peerprep/interview/internal/models"
)

const (
	providerName   = "elevenlabs"
	defaultBaseURL = "https://api.elevenlabs.io"
	maxAudioBytes  = 25 << 20
)

type Gateway interface {
	TextToSpeech(ctx context.Context, text string, role models.InterviewerRole) ([]byte, error)
	SpeechToText(ctx context.Context, audio []byte, filename, contentType string) (string, error)
}

type Config struct {
	APIKey   string
	BaseURL  string
	TTSModel string
	STTModel string
	// Voices maps interviewer roles to voice ids; DefaultVoice covers the rest.
	Voices       map[models.InterviewerRole]string
	DefaultVoice string
	Timeout      time.Duration
}

type ElevenLabs struct {
	cfg  Config
	http *http.Client
}

func NewElevenLabs(cfg Config, httpClient *http.Client) *ElevenLabs {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.TTSModel == "" {
		cfg.TTSModel = "eleven_multilingual_v2"
	}
	if cfg.STTModel == "" {
		cfg.STTModel = "scribe_v1"
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &ElevenLabs{cfg: cfg, http: httpClient}
}

func (e *ElevenLabs) voiceFor(role models.InterviewerRole) string {
	if v := e.cfg.Voices[role]; v != "" {
		return v
	}
	return e.cfg.DefaultVoice
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type ttsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

func (e *ElevenLabs) TextToSpeech(ctx context.Context, text string, role models.InterviewerRole) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: text is empty", models.ErrInvalidInput)
	}
	voiceID := e.voiceFor(role)
	if voiceID == "" || e.cfg.APIKey == "" {
		return nil, voiceError(&llm.ProviderError{
			Provider: providerName,
			Code:     llm.ErrCodeAPIKey,
			Message:  "voice provider is not configured",
		})
	}

	body, err := json.Marshal(ttsRequest{
		Text:          text,
		ModelID:       e.cfg.TTSModel,
		VoiceSettings: voiceSettings{Stability: 0.5, SimilarityBoost: 0.8},
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		e.cfg.BaseURL+"/v1/text-to-speech/"+voiceID+"/stream", bytes.NewReader(body))
	if err != nil {
		return nil, voiceError(llm.Classify(providerName, "building request", err))
	}
	req.Header.Set("xi-api-key", e.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := e.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return nil, voiceError(llm.Classify(providerName, "reading audio", err))
	}
	return audio, nil
}

type sttResponse struct {
	Text string `json:"text"`
}

func (e *ElevenLabs) SpeechToText(ctx context.Context, audio []byte, filename, contentType string) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("%w: audio is empty", models.ErrInvalidInput)
	}
	if e.cfg.APIKey == "" {
		return "", voiceError(&llm.ProviderError{
			Provider: providerName,
			Code:     llm.ErrCodeAPIKey,
			Message:  "voice provider is not configured",
		})
	}
	if filename == "" {
		filename = "audio.webm"
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(audio); err != nil {
		return "", err
	}
	if err := mw.WriteField("model_id", e.cfg.STTModel); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.BaseURL+"/v1/speech-to-text", &buf)
	if err != nil {
		return "", voiceError(llm.Classify(providerName, "building request", err))
	}
	req.Header.Set("xi-api-key", e.cfg.APIKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := e.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out sttResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", voiceError(llm.Classify(providerName, "invalid transcription response", err))
	}
	return strings.TrimSpace(out.Text), nil
}

func (e *ElevenLabs) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, e.cfg.Timeout)
	}
	return context.WithCancel(ctx)
}

func (e *ElevenLabs) do(req *http.Request) (*http.Response, error) {
	resp, err := e.http.Do(req)
	if err != nil {
		return nil, voiceError(llm.Classify(providerName, "request failed", err))
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, voiceError(llm.Classify(providerName, "unexpected status",
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))))
	}
	return resp, nil
}

func voiceError(err error) error {
	return fmt.Errorf("%w: %w", models.ErrVoiceProvider, err)
}
