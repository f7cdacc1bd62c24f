package devserver

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/mikey/exodetect/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := NewServer(config.DevServerConfig{
		JWTSecret: "test-secret",
		TokenTTL:  time.Hour,
		Users:     map[string]string{"astro": "transit"},
	}, zap.NewNop())
	require.NoError(t, err)
	return s
}

func serve(s *Server, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestNewServerRequiresSecret(t *testing.T) {
	_, err := NewServer(config.DevServerConfig{}, zap.NewNop())
	assert.Error(t, err)
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)

	rec := serve(s, http.MethodPost, "/api/auth/login", "", `{"username":"astro","password":"transit"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Token    string `json:"token"`
		Username string `json:"username"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "astro", resp.Username)

	rec = serve(s, http.MethodGet, "/api/auth/verify", resp.Token, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"valid":true,"username":"astro"}`, rec.Body.String())

	rec = serve(s, http.MethodPost, "/api/auth/login", "", `{"username":"astro","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"invalid username or password"}`, rec.Body.String())

	rec = serve(s, http.MethodPost, "/api/auth/login", "", `{"username":"astro"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	s := newTestServer(t)
	token, err := s.IssueToken("astro")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, serve(s, http.MethodPost, "/api/auth/logout", token, "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(s, http.MethodGet, "/api/status", token, "").Code)
}

func TestRequireAuth(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusUnauthorized, serve(s, http.MethodGet, "/api/status", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(s, http.MethodGet, "/api/status", "garbage", "").Code)

	other, err := NewServer(config.DevServerConfig{JWTSecret: "other-secret"}, zap.NewNop())
	require.NoError(t, err)
	foreign, err := other.IssueToken("astro")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, serve(s, http.MethodGet, "/api/status", foreign, "").Code)
}

func TestAnalyzeEndpoint(t *testing.T) {
	s := newTestServer(t)
	token, err := s.IssueToken("astro")
	require.NoError(t, err)

	rec := serve(s, http.MethodGet, "/api/analyze?id=Kepler-10", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"flux":NaN`)

	// with the gaps nulled the body is plain JSON
	cleaned := regexp.MustCompile(`:NaN\b`).ReplaceAllString(body, ":null")
	var payload struct {
		Target      string        `json:"target"`
		Score       float64       `json:"score"`
		Data        []any         `json:"data"`
		TopFeatures []FeatureRank `json:"top_features"`
	}
	require.NoError(t, json.Unmarshal([]byte(cleaned), &payload))
	assert.Equal(t, "Kepler-10", payload.Target)
	assert.Equal(t, 0.93, payload.Score)
	assert.Len(t, payload.Data, seriesLength)
	assert.Len(t, payload.TopFeatures, featuresServed)

	rec = serve(s, http.MethodGet, "/api/analyze?id=Vega", token, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"target not found in the NASA archives"}`, rec.Body.String())

	rec = serve(s, http.MethodGet, "/api/analyze?id=", token, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSynthesizeIsDeterministic(t *testing.T) {
	a, b := Synthesize("TIC 307210830"), Synthesize("tic 307210830")
	assert.Equal(t, a.Score, b.Score)
	assert.Equal(t, a.TopFeatures, b.TopFeatures)
	assert.Equal(t, "TESS", a.Mission)
	assert.GreaterOrEqual(t, a.Score, 0.0)
	assert.Less(t, a.Score, 1.0)

	gaps := 0
	for _, p := range a.Series {
		if math.IsNaN(p.Flux) {
			gaps++
		}
	}
	assert.Equal(t, seriesLength/gapEvery, gaps)

	total := 0.0
	for i, f := range a.TopFeatures {
		total += f.Importance
		if i > 0 {
			assert.LessOrEqual(t, f.Importance, a.TopFeatures[i-1].Importance)
		}
	}
	assert.InDelta(t, 1.0, total, 0.01)
}

func TestKnownTarget(t *testing.T) {
	for _, name := range []string{"Kepler-10", "KIC 8462852", "Pi Mensae", "TOI-700", "WASP-12", "trappist-1"} {
		assert.True(t, KnownTarget(name), name)
	}
	for _, name := range []string{"Vega", "", "Alpha Centauri"} {
		assert.False(t, KnownTarget(name), name)
	}
}

func TestMissionFor(t *testing.T) {
	assert.Equal(t, "Kepler", MissionFor("Kepler-90"))
	assert.Equal(t, "TESS", MissionFor("Pi Mensae"))
	assert.Equal(t, "TESS", MissionFor("TOI-700"))
}

func TestFormatFloat(t *testing.T) {
	assert.Equal(t, "NaN", formatFloat(math.NaN()))
	assert.Equal(t, "-Infinity", formatFloat(math.Inf(-1)))
	assert.Equal(t, "0.5", formatFloat(0.5))
}
