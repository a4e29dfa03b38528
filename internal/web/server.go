// Package web serves the FAQ list over HTTP as a browser alternative to the
// terminal UI.
package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/TD-AI-Lab/FAQ-Analyzer/internal/api"
	"github.com/TD-AI-Lab/FAQ-Analyzer/internal/cache"
	"github.com/TD-AI-Lab/FAQ-Analyzer/internal/logs"
	"github.com/TD-AI-Lab/FAQ-Analyzer/internal/store"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Backend is the subset of the API client the web front-end drives.
type Backend interface {
	cache.Source
	FAQByID(ctx context.Context, id string) (*api.FAQItem, error)
	Run(ctx context.Context, action api.Action, force bool) (*api.RunResult, error)
}

// Deps wires the server to its collaborators.
type Deps struct {
	Backend Backend
	Cache   *cache.Cache
	History *store.History
	Log     logrus.FieldLogger
	Version string
}

type Server struct {
	deps   Deps
	log    logrus.FieldLogger
	engine *gin.Engine
}

func NewServer(deps Deps) (*Server, error) {
	if deps.Log == nil {
		deps.Log = logs.Discard()
	}
	tmpl, err := template.New("").Funcs(funcs).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	s := &Server{deps: deps, log: deps.Log}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(deps.Log))
	r.SetHTMLTemplate(tmpl)

	h := &Handler{deps: deps, log: deps.Log}
	r.GET("/", h.List)
	r.GET("/faq/:id", h.Detail)
	r.POST("/actions/:action", sameOrigin(deps.Log), h.Action)
	r.GET("/export.json", h.Export)
	r.GET("/export.csv", h.Export)
	r.GET("/healthz", h.Healthz)
	r.GET("/api/history", h.History)
	s.engine = r
	return s, nil
}

// Handler exposes the engine for tests and embedding.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).WithField("backend", s.deps.Backend.BaseURL()).Info("web server listening")
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.log.Info("web server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

// sameOrigin rejects browser requests sent from another site. Requests
// without Origin, Referer or Sec-Fetch-Site headers come from non-browser
// clients and pass.
func sameOrigin(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := c.Request
		if req.Header.Get("Sec-Fetch-Site") == "cross-site" {
			rejectCrossSite(c, log, "sec-fetch-site")
			return
		}
		source := req.Header.Get("Origin")
		if source == "" || source == "null" {
			source = req.Header.Get("Referer")
		}
		if source == "" {
			c.Next()
			return
		}
		u, err := url.Parse(source)
		if err != nil || !strings.EqualFold(u.Host, req.Host) {
			rejectCrossSite(c, log, source)
			return
		}
		c.Next()
	}
}

func rejectCrossSite(c *gin.Context, log logrus.FieldLogger, source string) {
	log.WithField("source", source).WithField("path", c.Request.URL.Path).Warn("cross-site request rejected")
	c.AbortWithStatus(http.StatusForbidden)
}

func requestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		entry := log.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": c.Writer.Status(),
			"took":   time.Since(start).Round(time.Millisecond),
		})
		if len(c.Errors) > 0 {
			entry.Warn(c.Errors.String())
			return
		}
		entry.Debug("request")
	}
}
