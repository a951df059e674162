// Package server - Haupt-Router und Server-Setup
// Beinhaltet: Server-Struct, Router-Registrierung, Middleware, Server-Start
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/7blacky7/gpugate/adapters"
	"github.com/7blacky7/gpugate/api"
	"github.com/7blacky7/gpugate/envconfig"
	"github.com/7blacky7/gpugate/logutil"
	"github.com/7blacky7/gpugate/taskstore"
	"github.com/7blacky7/gpugate/version"
)

var mode string = gin.ReleaseMode

func init() {
	switch mode {
	case gin.DebugMode:
	case gin.ReleaseMode:
	case gin.TestMode:
	default:
		mode = gin.ReleaseMode
	}

	gin.SetMode(mode)
}

// Server verwaltet den HTTP-Server, Orchestrator und Worker
type Server struct {
	addr   net.Addr
	orch   *Orchestrator
	store  *taskstore.Store
	worker *Worker
}

// allowedHost prueft ob der Host erlaubt ist
func allowedHost(host string) bool {
	host = strings.ToLower(host)

	if host == "" || host == "localhost" {
		return true
	}

	if hostname, err := os.Hostname(); err == nil && host == strings.ToLower(hostname) {
		return true
	}

	tlds := []string{
		"localhost",
		"local",
		"internal",
	}
	for _, tld := range tlds {
		if strings.HasSuffix(host, "."+tld) {
			return true
		}
	}

	return false
}

// allowedHostsMiddleware blockiert Anfragen von nicht erlaubten Hosts
// wenn der Server nur auf Loopback lauscht
func allowedHostsMiddleware(addr net.Addr) gin.HandlerFunc {
	return func(c *gin.Context) {
		if addr == nil {
			c.Next()
			return
		}

		if addr, err := netip.ParseAddrPort(addr.String()); err == nil && !addr.Addr().IsLoopback() {
			c.Next()
			return
		}

		host, _, err := net.SplitHostPort(c.Request.Host)
		if err != nil {
			host = c.Request.Host
		}

		if addr, err := netip.ParseAddr(host); err == nil {
			if addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() {
				c.Next()
				return
			}
		}

		if allowedHost(host) {
			if c.Request.Method == http.MethodOptions {
				c.AbortWithStatus(http.StatusNoContent)
				return
			}
			c.Next()
			return
		}

		c.AbortWithStatus(http.StatusForbidden)
	}
}

// GenerateRoutes erstellt und konfiguriert den HTTP-Router
func (s *Server) GenerateRoutes() (http.Handler, error) {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowWildcard = true
	corsConfig.AllowBrowserExtensions = true
	corsConfig.AllowHeaders = []string{
		"Authorization",
		"Content-Type",
		"User-Agent",
		"Accept",
		"X-Requested-With",
		"X-User-Id",
	}
	corsConfig.AllowOrigins = envconfig.AllowedOrigins()

	r := gin.Default()
	r.HandleMethodNotAllowed = true
	r.Use(
		cors.New(corsConfig),
		allowedHostsMiddleware(s.addr),
	)

	// General
	r.HEAD("/", func(c *gin.Context) { c.String(http.StatusOK, "gpugate is running") })
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "gpugate is running") })
	r.GET("/health", s.HealthHandler)
	r.HEAD("/api/version", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"version": version.Version}) })
	r.GET("/api/version", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"version": version.Version}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Model-Verwaltung
	r.GET("/api/models", s.ListModelsHandler)
	r.POST("/api/models/load", s.LoadModelHandler)
	r.POST("/api/models/unload", s.UnloadModelHandler)
	r.GET("/api/models/status/*model", s.ModelStatusHandler)
	r.GET("/api/gpu", s.GpuStatusHandler)

	// Inference
	r.POST("/api/chat", s.ChatHandler)
	r.POST("/api/generate/image", s.GenerateImageHandler)
	r.POST("/api/generate/image2image", s.GenerateImage2ImageHandler)
	r.POST("/api/generate/video", s.GenerateVideoHandler)

	// Asynchrone Tasks
	r.POST("/api/tasks", s.CreateTaskHandler)
	r.GET("/api/tasks/stats", s.TaskStatsHandler)
	r.GET("/api/tasks/:id", s.GetTaskHandler)
	r.GET("/api/tasks/:id/result", s.TaskResultHandler)
	r.DELETE("/api/tasks/:id", s.CancelTaskHandler)
	r.GET("/api/users/:uid/tasks", s.UserTasksHandler)

	return r, nil
}

// HealthHandler meldet Erreichbarkeit von Gateway und Redis
func (s *Server) HealthHandler(c *gin.Context) {
	redisOK := true
	if err := s.store.Ping(c.Request.Context()); err != nil {
		redisOK = false
	}
	status := http.StatusOK
	if !redisOK {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"status":  "ok",
		"version": version.Version,
		"redis":   redisOK,
	})
}

// Serve startet den HTTP-Server, Orchestrator und Worker
func Serve(ln net.Listener) error {
	slog.SetDefault(logutil.NewLogger(os.Stderr, envconfig.LogLevel()))
	slog.Info("server config", "env", envconfig.Values())

	ctx, done := context.WithCancel(context.Background())
	defer done()

	redisClient, err := taskstore.Connect(ctx)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	adapters.RegisterDefaults()

	s := &Server{
		addr:  ln.Addr(),
		orch:  NewOrchestrator(),
		store: taskstore.NewStore(redisClient),
	}
	s.worker = NewWorker(s.store)
	NewHandlers(s.orch).Register(s.worker)
	if err := s.worker.Start(ctx); err != nil {
		return err
	}

	h, err := s.GenerateRoutes()
	if err != nil {
		return err
	}

	slog.Info(fmt.Sprintf("Listening on %s (version %s)", ln.Addr(), version.Version))
	srvr := &http.Server{Handler: h}

	// Ctrl+C faehrt Worker und residente Models kontrolliert herunter
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		slog.Info("shutting down")
		srvr.Close()
		s.worker.Stop()

		unloadCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		for _, id := range s.orch.LoadedIDs() {
			if _, err := s.orch.Unload(unloadCtx, id); err != nil {
				slog.Warn("unload during shutdown failed", "model", id, "error", err)
			}
		}
		done()
	}()

	// Konfigurierte Models vorladen, Fehler sind nicht fatal
	go func() {
		for _, id := range envconfig.ModelIDs() {
			if _, err := s.orch.Load(ctx, id, api.ModelTypeLLM, false); err != nil {
				slog.Error("preloading model failed", "model", id, "error", err)
			}
		}
	}()

	if err := srvr.Serve(ln); err != nil && !strings.Contains(err.Error(), "use of closed network connection") && err != http.ErrServerClosed {
		return err
	}
	return nil
}
