// Package admin serves the core's HTTP status surface.
package admin

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/danmuck/dapcore/internal/auth"
	"github.com/danmuck/dapcore/internal/ingest"
	"github.com/danmuck/dapcore/internal/observability"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const (
	SourceHTTP = "http"

	shutdownTimeout = 5 * time.Second
	maxBodyBytes    = 4096
)

// Status is the snapshot reported by GET /status.
type Status struct {
	State          string `json:"state"`
	Online         bool   `json:"online"`
	Remote         string `json:"remote,omitempty"`
	DeviceType     string `json:"device_type,omitempty"`
	Version        string `json:"version,omitempty"`
	Callsign       string `json:"callsign,omitempty"`
	QueueDepth     int    `json:"queue_depth"`
	DedupEntries   int    `json:"dedup_entries"`
	BlockInterval  string `json:"block_interval"`
	SessionsServed uint64 `json:"sessions_served"`
}

// StatusSource reports live core state.
type StatusSource interface {
	Status() Status
}

// Submitter accepts one submission line.
type Submitter interface {
	Submit(source, line string) (ingest.Result, error)
}

type Server struct {
	addr    string
	src     StatusSource
	sub     Submitter
	router  *gin.Engine
	started time.Time

	// token guards POST /messages when set
	token auth.Validator
}

type submitRequest struct {
	Line string `json:"line"`
}

func New(addr string, src StatusSource, sub Submitter, corsOrigins []string) *Server {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		addr:    addr,
		src:     src,
		sub:     sub,
		router:  r,
		started: time.Now(),
	}
	s.RegisterRoutes()
	return s
}

// RequireToken guards submissions with a bearer token. Call before serving.
func (s *Server) RequireToken(v auth.Validator) {
	s.token = v
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) RegisterRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.started).String(),
			"service": "dapcore",
		})
	})

	s.router.GET("/ready", func(c *gin.Context) {
		st := s.src.Status()
		code := http.StatusOK
		if !st.Online || st.State != "active" {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"ready": code == http.StatusOK,
			"state": st.State,
		})
	})

	s.router.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": s.src.Status(),
			"uptime": time.Since(s.started).String(),
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.POST("/messages", s.requireToken, s.handleSubmit)
}

func (s *Server) requireToken(c *gin.Context) {
	if s.token == nil {
		c.Next()
		return
	}
	if err := auth.CheckHeader(s.token, c.GetHeader("Authorization")); err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	c.Next()
}

func (s *Server) handleSubmit(c *gin.Context) {
	line, err := readSubmission(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := s.sub.Submit(SourceHTTP, line)
	switch {
	case err != nil:
		c.JSON(http.StatusBadRequest, gin.H{"result": result.String(), "error": err.Error()})
	case result == ingest.ResultDuplicate:
		c.JSON(http.StatusOK, gin.H{"result": result.String()})
	default:
		c.JSON(http.StatusAccepted, gin.H{"result": result.String()})
	}
}

var errEmptySubmission = errors.New("admin: empty submission")

func readSubmission(c *gin.Context) (string, error) {
	if strings.HasPrefix(c.ContentType(), "application/json") {
		var req submitRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return "", err
		}
		if strings.TrimSpace(req.Line) == "" {
			return "", errEmptySubmission
		}
		return req.Line, nil
	}
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		return "", err
	}
	line := strings.TrimRight(string(raw), "\r\n")
	if strings.TrimSpace(line) == "" {
		return "", errEmptySubmission
	}
	return line, nil
}

// Serve listens on the configured address until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.ServeListener(ctx, ln)
}

func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})
	defer stop()

	log.Info().Str("addr", ln.Addr().String()).Msg("admin.Server listening")
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
