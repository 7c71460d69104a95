package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/linkhub/linkhub/internal/config"
	"github.com/linkhub/linkhub/internal/errors"
	"github.com/linkhub/linkhub/internal/logging"
	"github.com/linkhub/linkhub/internal/metrics"
	"github.com/linkhub/linkhub/internal/orchestrator"
	"github.com/linkhub/linkhub/internal/providers"
)

const maxBodySize = 1 << 20 // 1MB

// Server is the HTTP front of the integration hub.
type Server struct {
	router       *gin.Engine
	server       config.ServerConfig
	api          config.APIConfig
	orchestrator *orchestrator.Orchestrator
	metrics      *metrics.Metrics
	logger       *logging.Logger
	rateLimiter  *IPRateLimiter
	httpServer   *http.Server
}

// NewServer creates the HTTP server with middleware and routes wired.
func NewServer(serverCfg config.ServerConfig, apiCfg config.APIConfig, orch *orchestrator.Orchestrator, m *metrics.Metrics, logger *logging.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	s := &Server{
		router:       router,
		server:       serverCfg,
		api:          apiCfg,
		orchestrator: orch,
		metrics:      m,
		logger:       logger,
		rateLimiter:  newIPRateLimiter(time.Minute/time.Duration(apiCfg.RateLimit.RequestsPerMinute), apiCfg.RateLimit.Burst),
	}

	router.Use(gin.Recovery())
	router.Use(rateLimitMiddleware(s.rateLimiter))
	router.Use(bodyLimitMiddleware(maxBodySize))
	router.Use(metrics.Middleware(m, logger))
	router.Use(s.loggingMiddleware())

	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", serverCfg.Host, serverCfg.HTTPPort)
	s.httpServer = NewHTTPServer(addr, router)

	return s
}

// loggingMiddleware attaches a correlation ID to each request and logs it.
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader("X-Correlation-ID")
		if correlationID == "" {
			correlationID = logging.GenerateCorrelationID()
		}
		ctx := logging.WithCorrelationID(c.Request.Context(), correlationID)
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Correlation-ID", correlationID)

		start := time.Now()
		c.Next()

		s.logger.InfoWithContext(ctx, "http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		)
	}
}

func (s *Server) setupRoutes() {
	// Health and metrics stay outside auth so probes and scrapers work
	// without keys.
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	base := s.router.Group(s.api.BasePath)
	if s.api.Auth.Enabled {
		base.Use(APIKeyAuth(s.api.Auth.APIKeys, s.api.Auth.HeaderName, s.logger))
	}

	base.GET("/integrations", s.handleStatusAll)
	base.POST("/integrations/:provider/connect", s.handleConnect)
	base.GET("/integrations/:provider/callback", s.handleCallback)
	base.POST("/integrations/:provider/callback", s.handleCallback)
	base.POST("/integrations/:provider/sync", s.handleSync)
	base.GET("/integrations/:provider/status", s.handleStatus)
	base.DELETE("/integrations/:provider", s.handleDisconnect)
}

// Router exposes the underlying handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Run starts serving and blocks until the listener fails.
func (s *Server) Run() error {
	s.logger.Info("http server starting",
		"addr", s.httpServer.Addr, "base_path", s.api.BasePath, "tls", s.server.TLS.Enabled)

	var err error
	if s.server.TLS.Enabled {
		err = s.httpServer.ListenAndServeTLS(s.server.TLS.CertFile, s.server.TLS.KeyFile)
	} else {
		err = s.httpServer.ListenAndServe()
	}
	if err != nil && err != http.ErrServerClosed {
		return &errors.ErrServerStart{Addr: s.httpServer.Addr, Err: err}
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown() error {
	s.logger.Info("http server shutting down")
	if err := GracefulShutdown(s.httpServer, s.server.ShutdownTimeout); err != nil {
		return &errors.ErrServerShutdown{Err: err}
	}
	return nil
}

// userIDRequest carries the user identifier for operations that act on a
// user's link. It is accepted as a query parameter or a JSON body field.
type userIDRequest struct {
	UserID string `json:"user_id" form:"user_id"`
}

// bindUserID pulls user_id from the query string first and falls back to the
// JSON body for POST requests.
func bindUserID(c *gin.Context) string {
	if id := c.Query("user_id"); id != "" {
		return id
	}
	if c.Request.Method == http.MethodPost && c.Request.Body != nil {
		var req userIDRequest
		if err := c.ShouldBindJSON(&req); err == nil {
			return req.UserID
		}
	}
	return ""
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"providers": s.orchestrator.Providers(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleConnect(c *gin.Context) {
	provider := strings.ToLower(c.Param("provider"))
	userID := bindUserID(c)
	if userID == "" {
		renderError(c, s.logger, &errors.ErrInvalidCallback{Provider: provider, Reason: "user_id is required"})
		return
	}

	result, err := s.orchestrator.Connect(c.Request.Context(), provider, userID)
	if err != nil {
		renderError(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleCallback(c *gin.Context) {
	provider := strings.ToLower(c.Param("provider"))

	var payload providers.CallbackPayload
	if c.Request.Method == http.MethodGet {
		if err := c.ShouldBindQuery(&payload); err != nil {
			renderError(c, s.logger, &errors.ErrInvalidCallback{Provider: provider, Reason: "malformed query parameters"})
			return
		}
	} else {
		if err := c.ShouldBindJSON(&payload); err != nil {
			renderError(c, s.logger, &errors.ErrInvalidCallback{Provider: provider, Reason: "malformed JSON body"})
			return
		}
	}

	userID, err := s.orchestrator.Callback(c.Request.Context(), provider, payload)
	if err != nil {
		renderError(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"connected": true,
		"provider":  provider,
		"user_id":   userID,
	})
}

func (s *Server) handleSync(c *gin.Context) {
	provider := strings.ToLower(c.Param("provider"))
	userID := bindUserID(c)
	if userID == "" {
		renderError(c, s.logger, &errors.ErrInvalidCallback{Provider: provider, Reason: "user_id is required"})
		return
	}

	result, err := s.orchestrator.Sync(c.Request.Context(), provider, userID)
	if err != nil {
		renderError(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleStatus(c *gin.Context) {
	provider := strings.ToLower(c.Param("provider"))
	userID := bindUserID(c)
	if userID == "" {
		renderError(c, s.logger, &errors.ErrInvalidCallback{Provider: provider, Reason: "user_id is required"})
		return
	}

	status, err := s.orchestrator.Status(c.Request.Context(), provider, userID)
	if err != nil {
		renderError(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) handleStatusAll(c *gin.Context) {
	userID := bindUserID(c)
	if userID == "" {
		renderError(c, s.logger, &errors.ErrInvalidCallback{Provider: "", Reason: "user_id is required"})
		return
	}

	statuses, err := s.orchestrator.StatusAll(c.Request.Context(), userID)
	if err != nil {
		renderError(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"integrations": statuses})
}

func (s *Server) handleDisconnect(c *gin.Context) {
	provider := strings.ToLower(c.Param("provider"))
	userID := bindUserID(c)
	if userID == "" {
		renderError(c, s.logger, &errors.ErrInvalidCallback{Provider: provider, Reason: "user_id is required"})
		return
	}

	if err := s.orchestrator.Disconnect(c.Request.Context(), provider, userID); err != nil {
		renderError(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"disconnected": true,
		"provider":     provider,
	})
}
