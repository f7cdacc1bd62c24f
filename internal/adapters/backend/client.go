package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/mikey/exodetect/internal/core"
	"go.uber.org/zap"
)

// maxErrorBody bounds how much of an error response is read
const maxErrorBody = 64 << 10

// nonFiniteToken matches bare NaN / Infinity values the Python backend emits.
// String literals are matched as a whole so their contents are never rewritten.
var nonFiniteToken = regexp.MustCompile(`"(?:[^"\\]|\\.)*"|[:\[,]\s*-?(?:NaN|Infinity)\b`)

var nonFiniteValue = regexp.MustCompile(`-?(?:NaN|Infinity)$`)

// nullNonFinite replaces bare non-finite numbers with null
func nullNonFinite(raw []byte) []byte {
	return nonFiniteToken.ReplaceAllFunc(raw, func(m []byte) []byte {
		if m[0] == '"' {
			return m
		}
		return nonFiniteValue.ReplaceAll(m, []byte("null"))
	})
}

// Client talks to the ExoDetect HTTP API. It implements core.AuthBackend,
// core.AnalysisBackend and core.StatusSource.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates a backend client rooted at baseURL
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid backend URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend URL %q: scheme must be http or https", baseURL)
	}

	httpClient := cleanhttp.DefaultPooledClient()
	httpClient.Timeout = timeout

	return &Client{
		baseURL: u,
		http:    httpClient,
		logger:  logger,
	}, nil
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

type verifyResponse struct {
	Valid bool `json:"valid"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// analysisPayload mirrors the /analyze response; nullable numbers are pointers
type analysisPayload struct {
	Target      string         `json:"target"`
	Mission     string         `json:"mission"`
	Score       *float64       `json:"score"`
	Period      *float64       `json:"period"`
	PointsCount int            `json:"points_count"`
	Data        []pointPayload `json:"data"`
	TopFeatures []core.Feature `json:"top_features"`
}

type pointPayload struct {
	Time *float64 `json:"time"`
	Flux *float64 `json:"flux"`
}

// Login exchanges a username and password for a credential
func (c *Client) Login(ctx context.Context, username, password string) (*core.Credential, error) {
	var resp loginResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", nil, "", loginRequest{Username: username, Password: password}, &resp, false)
	if err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, &core.APIError{StatusCode: http.StatusOK, Message: "login response carried no token"}
	}
	return &core.Credential{Token: resp.Token, DisplayName: resp.Username}, nil
}

// Logout tells the backend to drop the token
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, token, nil, nil, true)
}

// Verify reports whether the backend still accepts the token
func (c *Client) Verify(ctx context.Context, token string) (bool, error) {
	var resp verifyResponse
	if err := c.do(ctx, http.MethodGet, "/auth/verify", nil, token, nil, &resp, true); err != nil {
		return false, err
	}
	return resp.Valid, nil
}

// Status fetches the backend readiness flags
func (c *Client) Status(ctx context.Context, token string) (*core.BackendStatus, error) {
	var resp core.BackendStatus
	if err := c.do(ctx, http.MethodGet, "/status", nil, token, nil, &resp, true); err != nil {
		return nil, err
	}
	resp.Online = true
	resp.CheckedAt = time.Now()
	return &resp, nil
}

// Analyze requests the analysis of target
func (c *Client) Analyze(ctx context.Context, token, target string) (*core.AnalysisResult, error) {
	var payload analysisPayload
	query := url.Values{"id": {target}}
	if err := c.do(ctx, http.MethodGet, "/analyze", query, token, nil, &payload, true); err != nil {
		return nil, err
	}
	return payload.toResult(), nil
}

func (p *analysisPayload) toResult() *core.AnalysisResult {
	result := &core.AnalysisResult{
		Target:      p.Target,
		Mission:     p.Mission,
		Score:       clampScore(p.Score),
		PointsCount: p.PointsCount,
		Series:      make([]core.LightPoint, 0, len(p.Data)),
		TopFeatures: p.TopFeatures,
	}
	if p.Period != nil {
		result.Period = *p.Period
	}
	if result.PointsCount < 0 {
		result.PointsCount = 0
	}
	for _, pt := range p.Data {
		result.Series = append(result.Series, core.LightPoint{
			Time: valueOrNaN(pt.Time),
			Flux: valueOrNaN(pt.Flux),
		})
	}
	return result
}

// clampScore maps a missing or non-finite score to 0 and bounds it to [0,1]
func clampScore(v *float64) float64 {
	if v == nil || math.IsNaN(*v) {
		return 0
	}
	return math.Min(1, math.Max(0, *v))
}

func valueOrNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

// do sends one request. With authenticated set, a 401 maps to core.ErrUnauthorized;
// otherwise 401 is an ordinary failure response (bad login).
func (c *Client) do(
	ctx context.Context,
	method, path string,
	query url.Values,
	token string,
	body interface{},
	out interface{},
	authenticated bool,
) error {
	endpoint := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authenticated {
		if token == "" {
			return core.ErrNotAuthenticated
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("Backend call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode == http.StatusUnauthorized && authenticated {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return core.ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response from %s: %w", path, err)
	}
	raw = nullNonFinite(raw)
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &core.APIError{StatusCode: resp.StatusCode}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return apiErr
	}
	var payload errorResponse
	if json.Unmarshal(raw, &payload) == nil {
		apiErr.Message = payload.Error
	}
	return apiErr
}
