// Package devserver is a local stand-in for the analysis backend. It speaks
// the same HTTP contract with synthetic, deterministic light curves.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/mikey/exodetect/internal/config"
	"github.com/oklog/ulid/v2"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const claimsKey = "claims"

// Server is the development analysis backend
type Server struct {
	cfg     config.DevServerConfig
	users   map[string][]byte
	revoked *cache.Cache
	router  *gin.Engine
	logger  *zap.Logger

	// AnalysisDelay simulates the backend's processing time
	AnalysisDelay time.Duration
}

// NewServer creates the development backend; passwords are hashed up front
func NewServer(cfg config.DevServerConfig, logger *zap.Logger) (*Server, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("devserver: jwt secret must not be empty")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 8 * time.Hour
	}

	users := make(map[string][]byte, len(cfg.Users))
	for name, password := range cfg.Users {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("devserver: failed to hash password for %s: %w", name, err)
		}
		users[name] = hash
	}

	s := &Server{
		cfg:     cfg,
		users:   users,
		revoked: cache.New(cfg.TokenTTL, cfg.TokenTTL),
		logger:  logger,

		AnalysisDelay: cfg.AnalysisDelay,
	}
	s.router = s.routes()
	return s, nil
}

// Handler returns the HTTP handler serving the API under /api
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on the configured address until ctx is done
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddress,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Development backend listening", zap.String("address", s.cfg.ListenAddress))
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
		s.logger.Info("Shutting down development backend")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	api := r.Group("/api")
	api.POST("/auth/login", s.handleLogin)

	authed := api.Group("", s.requireAuth())
	authed.POST("/auth/logout", s.handleLogout)
	authed.GET("/auth/verify", s.handleVerify)
	authed.GET("/status", s.handleStatus)
	authed.GET("/analyze", s.handleAnalyze)

	return r
}

// IssueToken signs a bearer token for username
func (s *Server) IssueToken(username string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   username,
		ID:        ulid.Make().String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

func (s *Server) parseToken(raw string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if _, revoked := s.revoked.Get(claims.ID); revoked {
		return nil, errors.New("token has been revoked")
	}
	return claims, nil
}

func (s *Server) revoke(claims *jwt.RegisteredClaims) {
	ttl := s.cfg.TokenTTL
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	if ttl > 0 {
		s.revoked.Set(claims.ID, struct{}{}, ttl)
	}
}

func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		claims, err := s.parseToken(raw)
		if err != nil {
			s.logger.Debug("Rejected token", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("Request served",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
