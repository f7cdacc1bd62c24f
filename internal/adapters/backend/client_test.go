package backend

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mikey/exodetect/internal/config"
	"github.com/mikey/exodetect/internal/core"
	"github.com/mikey/exodetect/internal/devserver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func newDevBackend(t *testing.T) (*Client, *devserver.Server) {
	t.Helper()
	srv, err := devserver.NewServer(config.DevServerConfig{
		JWTSecret: "test-secret",
		TokenTTL:  time.Hour,
		Users:     map[string]string{"astro": "transit"},
	}, zap.NewNop())
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	client, err := NewClient(ts.URL+"/api/", 5*time.Second, zaptest.NewLogger(t))
	require.NoError(t, err)
	return client, srv
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient("ftp://example.org", time.Second, zap.NewNop())
	assert.Error(t, err)

	_, err = NewClient("://nope", time.Second, zap.NewNop())
	assert.Error(t, err)
}

func TestClientLoginVerifyLogout(t *testing.T) {
	client, _ := newDevBackend(t)
	ctx := context.Background()

	cred, err := client.Login(ctx, "astro", "transit")
	require.NoError(t, err)
	assert.Equal(t, "astro", cred.DisplayName)
	assert.NotEmpty(t, cred.Token)

	ok, err := client.Verify(ctx, cred.Token)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, client.Logout(ctx, cred.Token))

	_, err = client.Verify(ctx, cred.Token)
	assert.ErrorIs(t, err, core.ErrUnauthorized)
}

func TestClientLoginRejected(t *testing.T) {
	client, _ := newDevBackend(t)

	_, err := client.Login(context.Background(), "astro", "wrong")
	require.Error(t, err)
	// a failed login is not a session expiry
	assert.False(t, errors.Is(err, core.ErrUnauthorized))
	assert.Equal(t, "invalid username or password", core.UserMessage(err))

	var apiErr *core.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestClientStatus(t *testing.T) {
	client, srv := newDevBackend(t)
	token, err := srv.IssueToken("astro")
	require.NoError(t, err)

	st, err := client.Status(context.Background(), token)
	require.NoError(t, err)
	assert.True(t, st.Online)
	assert.True(t, st.AILoaded)
	assert.True(t, st.FeaturesSync)
	assert.False(t, st.DatasetReady)
	assert.True(t, st.Operational())
}

func TestClientAnalyze(t *testing.T) {
	client, srv := newDevBackend(t)
	token, err := srv.IssueToken("astro")
	require.NoError(t, err)

	res, err := client.Analyze(context.Background(), token, "Kepler-10")
	require.NoError(t, err)

	assert.Equal(t, "Kepler-10", res.Target)
	assert.Equal(t, "Kepler", res.Mission)
	assert.InDelta(t, 0.93, res.Score, 1e-9)
	assert.InDelta(t, 0.8375, res.Period, 1e-9)
	assert.Len(t, res.Series, 1000)
	assert.Len(t, res.TopFeatures, 7)

	// the devserver emits bare NaN for gaps; they arrive as NaN flux
	gaps := 0
	for _, p := range res.Series {
		if math.IsNaN(p.Flux) {
			gaps++
		}
	}
	assert.Equal(t, 1000/137, gaps)
	assert.Len(t, res.ValidSeries(), 1000-gaps)
}

func TestClientAnalyzeErrors(t *testing.T) {
	client, srv := newDevBackend(t)
	token, err := srv.IssueToken("astro")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = client.Analyze(ctx, token, "Alpha Centauri")
	var apiErr *core.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "target not found in the NASA archives", core.UserMessage(err))

	_, err = client.Analyze(ctx, "not-a-jwt", "Kepler-10")
	assert.ErrorIs(t, err, core.ErrUnauthorized)

	_, err = client.Analyze(ctx, "", "Kepler-10")
	assert.ErrorIs(t, err, core.ErrNotAuthenticated)
}

func TestClientUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	client, err := NewClient(url, time.Second, zap.NewNop())
	require.NoError(t, err)

	_, err = client.Analyze(context.Background(), "tok", "Kepler-10")
	require.Error(t, err)
	assert.Equal(t, core.GenericRequestError, core.UserMessage(err))
}

func TestAnalysisPayloadSanitising(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "KIC 8462852", r.URL.Query().Get("id"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"target":"KIC 8462852","mission":"Kepler","score":1.7,"period":NaN,` +
			`"points_count":-3,"data":[{"time":-Infinity,"flux":1.0},{"time":0.1,"flux":null},{"time":0.2,"flux":0.99}],` +
			`"top_features":[{"name":"flux__sci_mad","importance":0.4}]}`))
	}))
	t.Cleanup(ts.Close)

	client, err := NewClient(ts.URL, time.Second, zap.NewNop())
	require.NoError(t, err)

	res, err := client.Analyze(context.Background(), "tok", "KIC 8462852")
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Score)
	assert.Equal(t, 0.0, res.Period)
	assert.Equal(t, 0, res.PointsCount)
	require.Len(t, res.Series, 3)
	assert.True(t, math.IsNaN(res.Series[0].Time))
	assert.True(t, math.IsNaN(res.Series[1].Flux))
	assert.Equal(t, []core.LightPoint{{Time: 0.2, Flux: 0.99}}, res.ValidSeries())
}

func TestClampScore(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	assert.Equal(t, 0.0, clampScore(nil))
	assert.Equal(t, 0.0, clampScore(f(math.NaN())))
	assert.Equal(t, 0.0, clampScore(f(-0.2)))
	assert.Equal(t, 0.42, clampScore(f(0.42)))
	assert.Equal(t, 1.0, clampScore(f(math.Inf(1))))
}

func TestNullNonFinite(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "bare values",
			in:   `{"period":NaN,"data":[-Infinity, Infinity]}`,
			want: `{"period":null,"data":[null, null]}`,
		},
		{
			name: "string contents untouched",
			in:   `{"mission":"K2, NaN campaign","name":"x:[Infinity","score":NaN}`,
			want: `{"mission":"K2, NaN campaign","name":"x:[Infinity","score":null}`,
		},
		{
			name: "escaped quotes",
			in:   `{"note":"say \"a\",NaN","flux":NaN}`,
			want: `{"note":"say \"a\",NaN","flux":null}`,
		},
		{
			name: "identifiers left alone",
			in:   `{"value":NaNa}`,
			want: `{"value":NaNa}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(nullNonFinite([]byte(tt.in))))
		})
	}
}
