package handlers

import (
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"peerprep/interview/internal/middleware"
	"peerprep/interview/internal/models"
	"peerprep/interview/internal/utils"
	"peerprep/interview/internal/voice"
)

// maxUploadBytes bounds recorded answers accepted for transcription.
const maxUploadBytes = 25 << 20

type VoiceHandler struct {
	voice  voice.Gateway
	logger *zap.Logger
}

func NewVoiceHandler(gateway voice.Gateway, logger *zap.Logger) *VoiceHandler {
	return &VoiceHandler{voice: gateway, logger: utils.LoggerOr(logger)}
}

// SpeechToTextHandler transcribes the multipart "file" field.
func (h *VoiceHandler) SpeechToTextHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.JSON(w, http.StatusRequestEntityTooLarge, models.ErrorResponse{
				Code:    "file_too_large",
				Message: "Audio file is too large",
			})
			return
		}
		utils.JSON(w, http.StatusBadRequest, models.ErrorResponse{
			Code:    "missing_file",
			Message: "multipart field \"file\" is required",
		})
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		utils.JSON(w, http.StatusBadRequest, models.ErrorResponse{
			Code:    "invalid_file",
			Message: "Failed to read audio file",
		})
		return
	}

	text, err := h.voice.SpeechToText(r.Context(), audio, header.Filename, header.Header.Get("Content-Type"))
	if err != nil {
		writeError(w, h.logger, err, "Speech to text failed")
		return
	}
	utils.JSON(w, http.StatusOK, models.TranscriptionResponse{Text: text})
}

// TextToSpeechHandler synthesizes text in the voice of the given interviewer.
func (h *VoiceHandler) TextToSpeechHandler(w http.ResponseWriter, r *http.Request) {
	req := middleware.GetValidatedRequest[*models.SpeechRequest](r)

	audio, err := h.voice.TextToSpeech(r.Context(), req.Text, req.Role)
	if err != nil {
		writeError(w, h.logger, err, "Text to speech failed")
		return
	}
	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(audio)
}
