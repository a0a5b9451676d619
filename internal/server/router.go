package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/sidekick/internal/metrics"
	"github.com/loykin/sidekick/internal/origin"
	"github.com/loykin/sidekick/internal/supervisor"
)

// Router exposes the supervisor to the hosting shell over a loopback HTTP
// control surface.
// Endpoints:
//
//	GET  {basePath}/status   current lifecycle snapshot
//	GET  {basePath}/origins  resolved origin policy
//	POST {basePath}/restart  re-run the supervised sequence
//	POST {basePath}/stop     stop the run and terminate the backend
//	GET  {basePath}/healthz  control server's own liveness
//	GET  {basePath}/metrics  Prometheus metrics
//
// Responses carry CORS headers computed from the resolved origin policy; the
// router is the executable form of the cross-origin contract the backend
// must also implement.
type Router struct {
	sup      *supervisor.Supervisor
	policy   origin.Policy
	basePath string
}

// NewRouter constructs a Router. basePath may be empty or start with '/'.
func NewRouter(sup *supervisor.Supervisor, policy origin.Policy, basePath string) *Router {
	return &Router{sup: sup, policy: policy, basePath: sanitizeBase(basePath)}
}

// Handler returns a gin-powered http.Handler that can be mounted anywhere.
func (r *Router) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	g := gin.New()
	g.Use(gin.Recovery())
	g.Use(r.corsMiddleware())
	group := g.Group(r.basePath)
	group.GET("/status", r.handleStatus)
	group.GET("/origins", r.handleOrigins)
	group.POST("/restart", r.handleRestart)
	group.POST("/stop", r.handleStop)
	group.GET("/healthz", r.handleHealthz)
	group.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// NewServer starts a standalone control server on addr.
func NewServer(addr, basePath string, sup *supervisor.Supervisor, policy origin.Policy) *http.Server {
	r := NewRouter(sup, policy, basePath)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server
}

type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	OK bool `json:"ok"`
}

func (r *Router) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		o := c.GetHeader("Origin")
		switch {
		case r.policy.AllowAll:
			c.Header("Access-Control-Allow-Origin", "*")
		case o != "" && r.policy.Allows(o):
			c.Header("Access-Control-Allow-Origin", o)
			c.Header("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type")
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (r *Router) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, r.sup.Snapshot())
}

func (r *Router) handleOrigins(c *gin.Context) {
	c.JSON(http.StatusOK, r.policy)
}

func (r *Router) handleRestart(c *gin.Context) {
	if err := r.sup.Restart(); err != nil {
		c.JSON(http.StatusConflict, errorResp{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, okResp{OK: true})
}

func (r *Router) handleStop(c *gin.Context) {
	if err := r.sup.Stop(); err != nil {
		c.JSON(http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, okResp{OK: true})
}

func (r *Router) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, okResp{OK: true})
}

func sanitizeBase(basePath string) string {
	bp := strings.TrimSpace(basePath)
	if bp == "" {
		return ""
	}
	if !strings.HasPrefix(bp, "/") {
		bp = "/" + bp
	}
	return strings.TrimRight(bp, "/")
}
