package devserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	hash, ok := s.users[req.Username]
	if !ok || bcrypt.CompareHashAndPassword(hash, []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
		return
	}

	token, err := s.IssueToken(req.Username)
	if err != nil {
		s.logger.Error("Failed to sign token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue token"})
		return
	}
	s.logger.Info("Operator logged in", zap.String("user", req.Username))
	c.JSON(http.StatusOK, gin.H{"token": token, "username": req.Username})
}

func (s *Server) handleLogout(c *gin.Context) {
	claims := c.MustGet(claimsKey).(*jwt.RegisteredClaims)
	s.revoke(claims)
	s.logger.Info("Operator logged out", zap.String("user", claims.Subject))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleVerify(c *gin.Context) {
	claims := c.MustGet(claimsKey).(*jwt.RegisteredClaims)
	c.JSON(http.StatusOK, gin.H{"valid": true, "username": claims.Subject})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "online",
		"ai_loaded":     true,
		"features_sync": true,
		"dataset_ready": false,
	})
}

func (s *Server) handleAnalyze(c *gin.Context) {
	target := strings.TrimSpace(c.Query("id"))
	if target == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing target id"})
		return
	}
	if !KnownTarget(target) {
		c.JSON(http.StatusNotFound, gin.H{"error": "target not found in the NASA archives"})
		return
	}

	if s.AnalysisDelay > 0 {
		select {
		case <-time.After(s.AnalysisDelay):
		case <-c.Request.Context().Done():
			return
		}
	}

	body, err := encodeAnalysis(Synthesize(target))
	if err != nil {
		s.logger.Error("Failed to encode analysis", zap.String("target", target), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/json", body)
}

const seriesPlaceholder = `"__series__"`

// encodeAnalysis writes the analysis the way the production backend does,
// with missing flux samples as bare NaN tokens. encoding/json refuses those,
// so the series is spliced in by hand.
func encodeAnalysis(a *Analysis) ([]byte, error) {
	head, err := json.Marshal(struct {
		Target      string        `json:"target"`
		Mission     string        `json:"mission"`
		Score       float64       `json:"score"`
		Period      float64       `json:"period"`
		PointsCount int           `json:"points_count"`
		Data        string        `json:"data"`
		TopFeatures []FeatureRank `json:"top_features"`
	}{
		Target:      a.Target,
		Mission:     a.Mission,
		Score:       a.Score,
		Period:      a.Period,
		PointsCount: a.PointsCount,
		Data:        strings.Trim(seriesPlaceholder, `"`),
		TopFeatures: a.TopFeatures,
	})
	if err != nil {
		return nil, err
	}
	return bytes.Replace(head, []byte(seriesPlaceholder), a.encodeSeries(), 1), nil
}
