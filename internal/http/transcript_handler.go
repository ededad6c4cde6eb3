package http

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"story-assistant/internal/domain"
	"story-assistant/internal/fireflies"
)

const (
	defaultTranscriptLimit = 10
	maxUploadBytes         = 5 << 20
)

// TranscriptHandler sirve transcripciones de Fireflies y subidas manuales.
type TranscriptHandler struct {
	logger *zap.Logger
	source fireflies.Source
}

func NewTranscriptHandler(logger *zap.Logger, source fireflies.Source) *TranscriptHandler {
	return &TranscriptHandler{logger: logger, source: source}
}

// List maneja GET /fireflies?limit=.
func (h *TranscriptHandler) List(c *gin.Context) {
	limit, ok := queryLimit(c, defaultTranscriptLimit)
	if !ok {
		return
	}

	transcripts, err := h.source.ListTranscripts(c.Request.Context(), limit)
	if err != nil {
		writeError(c, h.logger, "list transcripts failed", err)
		return
	}
	if transcripts == nil {
		transcripts = []domain.TranscriptSummary{}
	}
	c.JSON(http.StatusOK, transcripts)
}

// Get maneja GET /fireflies/transcript?id=.
func (h *TranscriptHandler) Get(c *gin.Context) {
	id := strings.TrimSpace(c.Query("id"))
	if id == "" {
		badRequest(c, "id is required")
		return
	}

	text, err := h.source.GetTranscript(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, "get transcript failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transcript": text})
}

// Upload maneja POST /transcripts/upload con un archivo de texto en "file".
func (h *TranscriptHandler) Upload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "file is required")
		return
	}
	if header.Size > maxUploadBytes {
		badRequest(c, "file too large")
		return
	}

	f, err := header.Open()
	if err != nil {
		writeError(c, h.logger, "open upload failed", err)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
	if err != nil {
		writeError(c, h.logger, "read upload failed", err)
		return
	}
	if !utf8.Valid(data) {
		badRequest(c, "transcript must be UTF-8 text")
		return
	}
	text := strings.TrimPrefix(string(data), "\uFEFF")
	if strings.TrimSpace(text) == "" {
		badRequest(c, "transcript file is empty")
		return
	}

	h.logger.Info("transcript uploaded",
		zap.String("filename", header.Filename),
		zap.Int("bytes", len(data)),
		zap.String("request_id", requestID(c)),
	)
	c.JSON(http.StatusOK, gin.H{"transcript": text})
}

// queryLimit lee ?limit=; responde 400 si no es un entero positivo.
func queryLimit(c *gin.Context, def int) (int, bool) {
	raw := strings.TrimSpace(c.Query("limit"))
	if raw == "" {
		return def, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		badRequest(c, "limit must be a positive integer")
		return 0, false
	}
	return limit, true
}
