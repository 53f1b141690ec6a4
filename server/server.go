// Package server is the feed backend: accounts, posts, likes and comments
// over a JSON REST API.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/existflow/instafeed/internal/logger"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Config configures a Server
type Config struct {
	DatabaseURL string        // postgres:// URL or SQLite file path
	JWTSecret   string        // HS256 signing key
	TokenTTL    time.Duration // default 30 days
	PageSize    int           // posts per page, default 2
	SeedDemo    bool          // insert demo users and posts on an empty database
}

// Server is the feed backend
type Server struct {
	store    *store
	tokens   *tokenIssuer
	echo     *echo.Echo
	pageSize int
	log      *logger.Logger
}

// New opens storage and builds the router
func New(cfg Config) (*Server, error) {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 2
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 30 * 24 * time.Hour
	}

	st, err := openStore(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	s := &Server{
		store:    st,
		tokens:   newTokenIssuer(cfg.JWTSecret, cfg.TokenTTL),
		pageSize: cfg.PageSize,
		log:      logger.L().Component("server"),
	}

	if cfg.SeedDemo {
		if err := s.seed(context.Background()); err != nil {
			_ = st.Close()
			return nil, err
		}
	}

	s.setupEcho()

	return s, nil
}

func (s *Server) setupEcho() {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Custom logging middleware
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()

			s.log.Debug("HTTP Request",
				logger.F("method", req.Method),
				logger.F("uri", req.RequestURI),
				logger.F("remote", req.RemoteAddr))

			err := next(c)

			res := c.Response()
			s.log.Info("HTTP Response",
				logger.F("method", req.Method),
				logger.F("uri", req.RequestURI),
				logger.F("status", res.Status),
				logger.F("size", res.Size),
				logger.F("duration", time.Since(start).String()),
				logger.F("request_id", res.Header().Get(echo.HeaderXRequestID)))

			return err
		}
	})

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORS())

	// Health check
	e.GET("/health", s.handleHealth)

	api := e.Group("/api")

	// Public endpoints
	api.POST("/register", s.handleRegister)
	api.POST("/login", s.handleLogin)
	api.GET("/posts/:id/comments", s.handleListComments)

	// Protected endpoints
	protected := api.Group("")
	protected.Use(s.authMiddleware)
	protected.POST("/logout", s.handleLogout)
	protected.GET("/users/me", s.handleMe)
	protected.PATCH("/users/me", s.handleUpdateMe)
	protected.GET("/posts", s.handleListPosts)
	protected.POST("/posts", s.handleCreatePost)
	protected.GET("/posts/:id", s.handleGetPost)
	protected.PATCH("/posts/:id", s.handlePatchPost)
	protected.PUT("/posts/:id", s.handlePutPost)
	protected.DELETE("/posts/:id", s.handleDeletePost)
	protected.POST("/posts/:id/like", s.handleLike)
	protected.PATCH("/posts/:id/like", s.handleLike)
	protected.POST("/posts/:id/comments", s.handleCreateComment)
	protected.DELETE("/posts/:id/comments/:cid", s.handleDeleteComment)

	s.echo = e
}

// Close closes the database connection
func (s *Server) Close() error {
	return s.store.Close()
}

// Router returns the HTTP handler
func (s *Server) Router() http.Handler {
	return s.echo
}

// Start starts the server
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
