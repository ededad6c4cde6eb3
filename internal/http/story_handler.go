package http

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"story-assistant/internal/domain"
	"story-assistant/internal/service"
)

const storiesCSVFilename = "user_stories.csv"

// StoryHandler convierte la salida de Generate en historias y CSV.
type StoryHandler struct {
	logger *zap.Logger
}

func NewStoryHandler(logger *zap.Logger) *StoryHandler {
	return &StoryHandler{logger: logger}
}

// Parse maneja POST /stories/parse: {text} -> {stories}.
func (h *StoryHandler) Parse(c *gin.Context) {
	var req struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "text is required")
		return
	}

	stories, err := service.ParseStories(req.Text)
	if errors.Is(err, service.ErrNoStoriesFound) {
		c.JSON(http.StatusOK, gin.H{"stories": []domain.UserStory{}})
		return
	}
	if err != nil {
		writeError(c, h.logger, "parse stories failed", domain.NewValidationError("%s", err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"stories": stories})
}

// ExportCSV maneja POST /stories/csv.
func (h *StoryHandler) ExportCSV(c *gin.Context) {
	var req bulkStoriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	if len(req.Stories) == 0 {
		badRequest(c, "No stories provided")
		return
	}

	var buf bytes.Buffer
	if err := service.WriteStoriesCSV(&buf, req.Stories); err != nil {
		writeError(c, h.logger, "csv export failed", err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+storiesCSVFilename+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}
