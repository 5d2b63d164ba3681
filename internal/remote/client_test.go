package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GriffinCanCode/remplhost/internal/infrastructure/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const clientPage = `<!doctype html>
<html>
<head>
	<title>rempl</title>
	<script src="/rempl.js"></script>
	<script type="application/json">{"not": "code"}</script>
</head>
<body>
	<script>var inline = 1;</script>
	<script type="text/javascript" src="static/app.js"></script>
</body>
</html>`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/server/client", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(clientPage))
	})
	mux.HandleFunc("/rempl.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/javascript")
		_, _ = w.Write([]byte("var rempl = {};"))
	})
	mux.HandleFunc("/server/static/app.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/javascript")
		_, _ = w.Write([]byte("var app = 2;"))
	})
	mux.HandleFunc("/env.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		_, _ = w.Write([]byte("var env = 3;"))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Timeout = 2 * time.Second
	cfg.Retries = 0
	return cfg
}

func TestProbe(t *testing.T) {
	server := newTestServer(t)
	client := NewClient(testConfig())

	result, err := client.Probe(context.Background(), server.URL+"/server/client")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, result.Status)
	assert.Contains(t, result.ContentType, "text/html")

	_, err = client.Probe(context.Background(), server.URL+"/missing")
	assert.Error(t, err)
}

func TestLoadClientFromHTML(t *testing.T) {
	server := newTestServer(t)
	client := NewClient(testConfig())

	scripts, err := client.LoadClient(context.Background(), server.URL+"/server/client")
	require.NoError(t, err)
	require.Len(t, scripts, 3)

	assert.Equal(t, server.URL+"/rempl.js", scripts[0].Source)
	assert.Equal(t, "var rempl = {};", scripts[0].Code)
	assert.Equal(t, "var inline = 1;", scripts[1].Code)
	assert.Equal(t, server.URL+"/server/static/app.js", scripts[2].Source)
	assert.Equal(t, "var app = 2;", scripts[2].Code)
}

func TestLoadClientFromJavaScript(t *testing.T) {
	server := newTestServer(t)
	client := NewClient(testConfig())

	scripts, err := client.LoadClient(context.Background(), server.URL+"/env.js")
	require.NoError(t, err)
	require.Len(t, scripts, 1)
	assert.Equal(t, "var env = 3;", scripts[0].Code)
}

func TestExtractScriptsHonorsBase(t *testing.T) {
	page := &Page{
		URL:  "http://localhost:8177/server/client",
		Body: []byte(`<html><head><base href="http://cdn.example.com/lib/"></head><body><script src="a.js"></script></body></html>`),
	}

	scripts, err := ExtractScripts(page)
	require.NoError(t, err)
	require.Len(t, scripts, 1)
	assert.Equal(t, "http://cdn.example.com/lib/a.js", scripts[0].Source)
	assert.Empty(t, scripts[0].Code)
}

func TestIsJavaScript(t *testing.T) {
	tests := []struct {
		contentType string
		want        bool
	}{
		{"", true},
		{"text/javascript", true},
		{"application/javascript; charset=utf-8", true},
		{"module", false},
		{"text/html", false},
		{"application/json", false},
		{";;", false},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			assert.Equal(t, tt.want, isJavaScript(tt.contentType))
		})
	}
}

func TestCircuitOpensOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(testConfig())
	for i := 0; i < 5; i++ {
		_, err := client.Probe(context.Background(), server.URL)
		require.Error(t, err)
	}
	assert.Equal(t, resilience.StateOpen, client.Breaker().State())

	_, err := client.Probe(context.Background(), server.URL)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(5), hits.Load())
}

func TestClientErrorsDoNotTripBreaker(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	client := NewClient(testConfig())
	for i := 0; i < 10; i++ {
		_, err := client.Probe(context.Background(), server.URL)
		require.Error(t, err)
	}
	assert.Equal(t, resilience.StateClosed, client.Breaker().State())
}

func TestRateLimitHonorsContext(t *testing.T) {
	server := newTestServer(t)
	cfg := testConfig()
	cfg.RatePerSec = 1
	client := NewClient(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.Probe(ctx, server.URL+"/env.js")
	assert.Error(t, err)
}
