package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// RouterOptions agrupa la configuración transversal del router.
type RouterOptions struct {
	AllowedOrigins []string
	ServiceName    string
	Tracing        bool
}

// Handlers reúne los handlers montados por NewRouter.
type Handlers struct {
	Chat        *ChatHandler
	Transcripts *TranscriptHandler
	Issues      *IssueHandler
	Stories     *StoryHandler
}

// NewRouter arma el handler HTTP del servicio. /chat/ws se sirve fuera de
// gin: su ResponseWriter no permite Hijack una vez marcado como escrito, y el
// upgrade de websocket lo necesita.
func NewRouter(logger *zap.Logger, opts RouterOptions, h Handlers) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /chat/ws", withRequestID(http.HandlerFunc(h.Chat.WebSocket)))
	mux.Handle("/", newEngine(logger, opts, h))
	return mux
}

func newEngine(logger *zap.Logger, opts RouterOptions, h Handlers) *gin.Engine {
	r := gin.New()

	if opts.Tracing {
		r.Use(otelgin.Middleware(opts.ServiceName))
	}
	r.Use(
		requestIDMiddleware(),
		zapLoggerMiddleware(logger),
		gin.Recovery(),
		corsMiddleware(opts.AllowedOrigins),
	)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	chat := r.Group("/chat")
	chat.POST("", h.Chat.Stream)
	chat.POST("/sync", jsonContentTypeMiddleware(), h.Chat.Sync)
	chat.POST("/completion", jsonContentTypeMiddleware(), h.Chat.Completion)

	ff := r.Group("/fireflies", jsonContentTypeMiddleware())
	ff.GET("", h.Transcripts.List)
	ff.GET("/transcript", h.Transcripts.Get)

	r.POST("/transcripts/upload", jsonContentTypeMiddleware(), h.Transcripts.Upload)

	jira := r.Group("/jira", jsonContentTypeMiddleware())
	jira.POST("", h.Issues.Create)
	jira.POST("/bulk", h.Issues.CreateBulk)
	jira.GET("/recent", h.Issues.Recent)

	stories := r.Group("/stories")
	stories.POST("/parse", jsonContentTypeMiddleware(), h.Stories.Parse)
	stories.POST("/csv", h.Stories.ExportCSV)

	return r
}

// requestIDMiddleware reutiliza X-Request-ID o genera uno nuevo.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}

// withRequestID es la versión net/http de requestIDMiddleware.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDCtxKey{}, id)))
	})
}

type requestIDCtxKey struct{}

func requestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDCtxKey{}).(string)
	return id
}

func requestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", requestID(c)),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", requestIDHeader},
		ExposeHeaders: []string{requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if allowsAll(origins) {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

func allowsAll(origins []string) bool {
	if len(origins) == 0 {
		return true
	}
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
