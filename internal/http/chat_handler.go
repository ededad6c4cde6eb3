package http

import (
	"context"
	"iter"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"

	"story-assistant/internal/domain"
	"story-assistant/internal/service"
)

// ChatDispatcher enruta una conversación y devuelve los chunks de respuesta.
type ChatDispatcher interface {
	Dispatch(ctx context.Context, req domain.ChatRequest) iter.Seq[service.Chunk]
}

// ConversationCompleter responde a la conversación completa sin enrutar.
type ConversationCompleter interface {
	Complete(ctx context.Context, req domain.ChatRequest) (string, error)
}

// ChatHandler expone las variantes de /chat.
type ChatHandler struct {
	logger       *zap.Logger
	dispatcher   ChatDispatcher
	conversation ConversationCompleter
	wsOptions    *websocket.AcceptOptions
}

// NewChatHandler crea una instancia de ChatHandler con dependencias necesarias.
func NewChatHandler(
	logger *zap.Logger,
	dispatcher ChatDispatcher,
	conversation ConversationCompleter,
	allowedOrigins []string,
) *ChatHandler {
	return &ChatHandler{
		logger:       logger,
		dispatcher:   dispatcher,
		conversation: conversation,
		wsOptions:    acceptOptions(allowedOrigins),
	}
}

// Stream maneja POST /chat: text/plain con cada chunk enviado al llegar.
// Las cabeceras ya están enviadas cuando se itera, así que un error sólo
// aparece como chunk final con el marcador de fallo.
func (h *ChatHandler) Stream(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Content-Type-Options", "nosniff")
	c.Status(http.StatusOK)

	for chunk := range h.dispatcher.Dispatch(c.Request.Context(), req) {
		if _, err := c.Writer.WriteString(chunk.Text); err != nil {
			h.logger.Warn("chat stream write failed", zap.Error(err), zap.String("request_id", requestID(c)))
			return
		}
		c.Writer.Flush()
	}
}

// Sync maneja POST /chat/sync.
func (h *ChatHandler) Sync(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}

	text, err := service.Collect(h.dispatcher.Dispatch(c.Request.Context(), req))
	if err != nil {
		h.logger.Error("chat dispatch failed", zap.Error(err), zap.String("request_id", requestID(c)))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"response": text})
}

// Completion maneja POST /chat/completion: toda la conversación va al LLM.
func (h *ChatHandler) Completion(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}

	text, err := h.conversation.Complete(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.logger, "chat completion failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"response": text})
}

// WebSocket maneja GET /chat/ws. El primer frame de texto es una ChatRequest;
// cada chunk se envía como un frame y la conexión se cierra al terminar.
// Es un handler net/http porque el upgrade necesita Hijack.
func (h *ChatHandler) WebSocket(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reqID := requestIDFromContext(r.Context())

	conn, err := websocket.Accept(w, r, h.wsOptions)
	if err != nil {
		h.logger.Warn("websocket accept failed", zap.Error(err), zap.String("request_id", reqID))
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	var req domain.ChatRequest
	if err := wsjson.Read(ctx, conn, &req); err != nil {
		h.logger.Warn("invalid websocket chat request", zap.Error(err), zap.String("request_id", reqID))
		conn.Close(websocket.StatusUnsupportedData, "invalid chat request")
		return
	}
	if err := validateChatRequest(&req); err != nil {
		conn.Close(websocket.StatusPolicyViolation, err.Error())
		return
	}

	chunks := 0
	for chunk := range h.dispatcher.Dispatch(ctx, req) {
		if err := conn.Write(ctx, websocket.MessageText, []byte(chunk.Text)); err != nil {
			h.logger.Warn("websocket write failed", zap.Error(err), zap.String("request_id", reqID))
			return
		}
		chunks++
	}
	conn.Close(websocket.StatusNormalClosure, "")

	h.logger.Info("websocket chat",
		zap.Int("chunks", chunks),
		zap.Duration("latency", time.Since(start)),
		zap.String("request_id", reqID),
	)
}

func (h *ChatHandler) bind(c *gin.Context) (domain.ChatRequest, bool) {
	var req domain.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid chat request", zap.Error(err), zap.String("request_id", requestID(c)))
		badRequest(c, "invalid request")
		return req, false
	}
	if err := validateChatRequest(&req); err != nil {
		writeError(c, h.logger, "invalid chat request", err)
		return req, false
	}
	return req, true
}

func validateChatRequest(req *domain.ChatRequest) error {
	if len(req.Messages) == 0 {
		return domain.NewValidationError("messages are required")
	}
	if err := binding.Validator.ValidateStruct(req); err != nil {
		return domain.NewValidationError("invalid message role")
	}
	return nil
}

// acceptOptions limita los orígenes del handshake a los mismos de CORS.
func acceptOptions(origins []string) *websocket.AcceptOptions {
	if allowsAll(origins) {
		return &websocket.AcceptOptions{InsecureSkipVerify: true}
	}
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			o = u.Host
		}
		patterns = append(patterns, o)
	}
	return &websocket.AcceptOptions{OriginPatterns: patterns}
}
