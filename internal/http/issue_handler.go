package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"story-assistant/internal/domain"
	"story-assistant/internal/service"
)

const defaultRecentLimit = 10

// IssueTracker es lo que los endpoints /jira necesitan del tracker.
type IssueTracker interface {
	CreateStory(ctx context.Context, story domain.UserStory) (string, error)
	CreateIssuesBulk(ctx context.Context, stories []domain.UserStory) ([]string, error)
	SearchRecent(ctx context.Context, limit int) ([]domain.Issue, error)
}

type IssueHandler struct {
	logger  *zap.Logger
	tracker IssueTracker
}

func NewIssueHandler(logger *zap.Logger, tracker IssueTracker) *IssueHandler {
	return &IssueHandler{logger: logger, tracker: tracker}
}

type bulkStoriesRequest struct {
	Stories []domain.UserStory `json:"stories"`
}

// Create maneja POST /jira.
func (h *IssueHandler) Create(c *gin.Context) {
	var story domain.UserStory
	if err := c.ShouldBindJSON(&story); err != nil {
		h.logger.Warn("invalid create issue request", zap.Error(err))
		badRequest(c, "invalid request")
		return
	}
	if err := service.ValidateStory(story); err != nil {
		writeError(c, h.logger, "invalid story", err)
		return
	}

	key, err := h.tracker.CreateStory(c.Request.Context(), story)
	if err != nil {
		writeError(c, h.logger, "create issue failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Created issue %s", key),
		"key":     key,
	})
}

// CreateBulk maneja POST /jira/bulk. Si falla a mitad devuelve también
// las claves ya creadas.
func (h *IssueHandler) CreateBulk(c *gin.Context) {
	var req bulkStoriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid bulk request", zap.Error(err))
		badRequest(c, "invalid request")
		return
	}
	if len(req.Stories) == 0 {
		badRequest(c, "No stories provided")
		return
	}
	for i, story := range req.Stories {
		if err := service.ValidateStory(story); err != nil {
			badRequest(c, fmt.Sprintf("story %d: %s", i+1, err.Error()))
			return
		}
	}

	keys, err := h.tracker.CreateIssuesBulk(c.Request.Context(), req.Stories)
	if keys == nil {
		keys = []string{}
	}
	if err != nil {
		h.logger.Error("bulk create failed",
			zap.Error(err),
			zap.Int("created", len(keys)),
			zap.String("request_id", requestID(c)),
		)
		c.JSON(statusFor(err), gin.H{"error": err.Error(), "created": keys})
		return
	}
	c.JSON(http.StatusOK, gin.H{"created": keys})
}

// Recent maneja GET /jira/recent.
func (h *IssueHandler) Recent(c *gin.Context) {
	limit, ok := queryLimit(c, defaultRecentLimit)
	if !ok {
		return
	}

	issues, err := h.tracker.SearchRecent(c.Request.Context(), limit)
	if err != nil {
		writeError(c, h.logger, "search recent issues failed", err)
		return
	}
	if issues == nil {
		issues = []domain.Issue{}
	}
	c.JSON(http.StatusOK, issues)
}
