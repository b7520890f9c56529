package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// PeerStatus is one active connection as reported by the admin API.
type PeerStatus struct {
	ID          uint32    `json:"id"`
	RemoteAddr  string    `json:"remote_addr"`
	ConnectedAt time.Time `json:"connected_at"`
	FramesIn    uint64    `json:"frames_in"`
	FramesOut   uint64    `json:"frames_out"`
}

// Snapshot is a point-in-time view of one replication node.
type Snapshot struct {
	Node     string       `json:"node"`
	Role     string       `json:"role"`
	LocalID  uint32       `json:"local_id"`
	Ticks    uint64       `json:"ticks"`
	Running  bool         `json:"running"`
	Peers    []PeerStatus `json:"peers"`
	Entities []uint64     `json:"entities"`
	Types    []string     `json:"types"`
}

// StatusSource supplies snapshots to the admin router.
type StatusSource interface {
	Status() Snapshot
}

// Admin serves health, readiness, metrics and node state over HTTP.
type Admin struct {
	node   string
	source StatusSource
	router *gin.Engine
}

func NewAdmin(node string, source StatusSource, corsOrigins []string) *Admin {
	RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log.Logger))
	r.Use(RequestMetricsMiddleware(node))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	a := &Admin{node: node, source: source, router: r}
	a.registerRoutes()
	return a
}

func (a *Admin) Router() *gin.Engine {
	return a.router
}

func (a *Admin) registerRoutes() {
	a.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"node":   a.node,
		})
	})
	a.router.GET("/ready", func(c *gin.Context) {
		snap := a.source.Status()
		status := http.StatusOK
		if !snap.Running {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"ready": snap.Running,
			"role":  snap.Role,
			"ticks": snap.Ticks,
		})
	})
	a.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	a.router.GET("/peers", func(c *gin.Context) {
		snap := a.source.Status()
		c.JSON(http.StatusOK, gin.H{
			"local_id": snap.LocalID,
			"peers":    snap.Peers,
		})
	})
	a.router.GET("/entities", func(c *gin.Context) {
		snap := a.source.Status()
		c.JSON(http.StatusOK, gin.H{
			"count":    len(snap.Entities),
			"entities": snap.Entities,
			"types":    snap.Types,
		})
	})
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (a *Admin) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Info().Str("node", a.node).Str("addr", addr).Msg("observability.Admin.Serve listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
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
