// Package server exposes sessions, sync, media jobs and export over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"bloggerator/generator"
	"bloggerator/media"
	"bloggerator/publisher"
)

// Options wires the server to its collaborators. Publisher is optional.
type Options struct {
	Agent        *generator.Agent
	Reconciler   *generator.Reconciler
	Keys         *generator.MemoryKeySource
	Media        *media.Manager
	Publisher    *publisher.Publisher
	MediaDir     string
	MediaBaseURL string
	AllowOrigins []string
	Logger       *slog.Logger
}

type Server struct {
	agent      *generator.Agent
	reconciler *generator.Reconciler
	keys       *generator.MemoryKeySource
	media      *media.Manager
	publisher  *publisher.Publisher
	store      *sessionStore
	logger     *slog.Logger

	mediaDir     string
	mediaBaseURL string
	allowOrigins []string

	// ctx outlives requests; background media jobs run under it.
	ctx    context.Context
	cancel context.CancelFunc
	jobs   sync.WaitGroup
}

type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]*generator.Session
}

func newStore() *sessionStore {
	return &sessionStore{sessions: make(map[string]*generator.Session)}
}

func (s *sessionStore) set(id string, sess *generator.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = sess
}

func (s *sessionStore) get(id string) (*generator.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

func (s *sessionStore) delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	return ok
}

func New(opts Options) (*Server, error) {
	if opts.Agent == nil {
		return nil, errors.New("generator agent required")
	}
	if opts.Reconciler == nil {
		return nil, errors.New("sync reconciler required")
	}
	if opts.Keys == nil {
		return nil, errors.New("key source required")
	}
	if opts.Media == nil {
		return nil, errors.New("media manager required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mediaBase := opts.MediaBaseURL
	if mediaBase == "" {
		mediaBase = "/media"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		agent:        opts.Agent,
		reconciler:   opts.Reconciler,
		keys:         opts.Keys,
		media:        opts.Media,
		publisher:    opts.Publisher,
		store:        newStore(),
		logger:       logger,
		mediaDir:     opts.MediaDir,
		mediaBaseURL: mediaBase,
		allowOrigins: opts.AllowOrigins,
		ctx:          ctx,
		cancel:       cancel,
	}, nil
}

func (s *Server) Routes() http.Handler {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(s.logger))
	if len(s.allowOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:  s.allowOrigins,
			AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
			AllowHeaders:  []string{"Content-Type"},
			ExposeHeaders: []string{"Content-Length"},
			MaxAge:        12 * time.Hour,
		}))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "apiKeyConfigured": s.keys.HasKey()})
	})
	if s.mediaDir != "" {
		router.Static(s.mediaBaseURL, s.mediaDir)
	}

	api := router.Group("/api")
	api.GET("/languages", s.handleLanguages)

	settings := api.Group("/settings")
	settings.GET("/api-key", s.handleAPIKeyStatus)
	settings.PUT("/api-key", s.handleAPIKeySet)
	settings.DELETE("/api-key", s.handleAPIKeyClear)

	api.POST("/sessions", s.handleSessionCreate)
	sess := api.Group("/sessions/:id")
	sess.GET("", s.handleSessionGet)
	sess.DELETE("", s.handleSessionDelete)
	sess.POST("/regenerate", s.handleSessionRegenerate)
	sess.GET("/stats", s.handleStats)
	sess.POST("/publish", s.handlePublish)

	sess.GET("/posts/:lang", s.handlePostGet)
	sess.POST("/posts/:lang/edit", s.handleBeginEdit)
	sess.PUT("/posts/:lang/markdown", s.handleMarkdownUpdate)
	sess.POST("/posts/:lang/sync", s.handleSync)
	sess.POST("/posts/:lang/media", s.handlePlaceholderAdd)

	sess.GET("/media", s.handleMediaList)
	sess.GET("/media/:mediaId", s.handleMediaGet)
	sess.PATCH("/media/:mediaId", s.handlePlaceholderUpdate)
	sess.DELETE("/media/:mediaId", s.handlePlaceholderRemove)
	sess.POST("/media/:mediaId/generate", s.handleMediaGenerate)

	return router
}

// Close stops the media manager and waits for background jobs to return.
func (s *Server) Close() {
	s.cancel()
	s.media.Close()
	s.jobs.Wait()
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
