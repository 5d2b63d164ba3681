package editor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/GriffinCanCode/remplhost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/remplhost/internal/remote"
	"github.com/GriffinCanCode/remplhost/internal/sandbox"
	"github.com/GriffinCanCode/remplhost/internal/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const clientURL = "http://localhost:8177/server/client"

// envScript plays a rempl environment: it answers the handshake, echoes
// host data back as ["received", ...] and reports host replies as
// ["hostReply", method, ...].
const envScript = `
var input = "rempl-env:env-1";
var hostChannel = null;
var seq = 0;
var pending = {};

function send(data, callback) {
	parent.postMessage({
		channel: hostChannel,
		payload: { type: "data", endpoint: "rempl-host", callback: callback || false, data: data }
	}, "*");
}

function callHost(method) {
	var id = "env-cb-" + (++seq);
	pending[id] = method;
	send(Array.prototype.slice.call(arguments), id);
}

function notifyHost() {
	send(Array.prototype.slice.call(arguments));
}

addEventListener("message", function (event) {
	var msg = event.data;
	if (msg.channel === "rempl-host:connect") {
		hostChannel = msg.payload.input;
		return;
	}
	if (msg.channel !== input) {
		return;
	}
	var p = msg.payload;
	if (p.type === "callback") {
		var method = pending[p.callback];
		delete pending[p.callback];
		send(["hostReply", method].concat(p.data));
		return;
	}
	send(["received"].concat(p.data));
});

parent.postMessage({ channel: "rempl-env:connect", payload: { input: input, name: "rempl-env" } }, "*");
`

type staticLoader struct {
	scripts []remote.Script
	err     error
}

func (l staticLoader) LoadClient(context.Context, string) ([]remote.Script, error) {
	return l.scripts, l.err
}

// recorder captures frames an environment sends to the host
type recorder struct {
	mu     sync.Mutex
	frames [][]interface{}
}

func (r *recorder) listen(args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, args)
}

func (r *recorder) find(tag string) []interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.frames) - 1; i >= 0; i-- {
		if len(r.frames[i]) > 0 && r.frames[i][0] == tag {
			return r.frames[i]
		}
	}
	return nil
}

type harness struct {
	window  *transport.Window
	tr      *transport.Transport
	ws      *Workspace
	plugin  *Plugin
	metrics *monitoring.Metrics
}

func newHarness(t *testing.T, loader ScriptLoader) *harness {
	t.Helper()
	w, tr := newHost(t)
	ws := newWorkspace(t)

	pool, err := sandbox.NewPool(sandbox.DefaultConfig(), 2)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	plugin, err := NewPlugin(Options{
		Version:   "test",
		Workspace: ws,
		Transport: tr,
		Opener:    NewSandboxOpener(pool, w, loader, nil),
		State:     NewStateStore(filepath.Join(t.TempDir(), "views.yaml")),
		Metrics:   metrics,
	})
	require.NoError(t, err)
	plugin.Activate()
	t.Cleanup(plugin.Deactivate)

	return &harness{window: w, tr: tr, ws: ws, plugin: plugin, metrics: metrics}
}

func (h *harness) open(t *testing.T) (*RemplView, *sandbox.Frame, *recorder) {
	t.Helper()
	view, err := h.plugin.AddClient(context.Background(), clientURL)
	require.NoError(t, err)
	h.window.Flush()
	require.Equal(t, StatusReady, view.Status())

	rec := &recorder{}
	view.Handle().Subscribe(rec.listen)
	frame, ok := view.Endpoint().(*sandbox.Frame)
	require.True(t, ok)
	return view, frame, rec
}

func (h *harness) run(t *testing.T, frame *sandbox.Frame, script string) {
	t.Helper()
	require.NoError(t, frame.Load(context.Background(), script))
	h.window.Flush()
}

func envLoader() ScriptLoader {
	return staticLoader{scripts: []remote.Script{{Source: clientURL, Code: envScript}}}
}

func TestNewPluginRequiresCollaborators(t *testing.T) {
	_, tr := newHost(t)
	_, err := NewPlugin(Options{Transport: tr})
	assert.Error(t, err)

	_, err = NewPlugin(Options{Workspace: newWorkspace(t)})
	assert.Error(t, err)
}

func TestAddClientConnectsView(t *testing.T) {
	h := newHarness(t, envLoader())
	view, _, _ := h.open(t)

	assert.Equal(t, []*RemplView{view}, h.plugin.Views())
	assert.Equal(t, view, h.ws.ActiveItem())
	assert.Equal(t, "Rempl - "+clientURL, view.Title())
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.ViewsActive))

	got, ok := h.plugin.View(view.ID())
	require.True(t, ok)
	assert.Same(t, view, got)
}

func TestAddClientRequiresActivation(t *testing.T) {
	h := newHarness(t, envLoader())
	h.plugin.Deactivate()

	_, err := h.plugin.AddClient(context.Background(), clientURL)
	assert.ErrorIs(t, err, ErrNotActive)
}

func TestAddClientRejectsInvalidURL(t *testing.T) {
	h := newHarness(t, envLoader())
	_, err := h.plugin.AddClient(context.Background(), "not a url")
	assert.ErrorIs(t, err, ErrInvalidURL)
	assert.Empty(t, h.ws.Items())
}

func TestAddClientLoadFailureMarksViewFailed(t *testing.T) {
	h := newHarness(t, staticLoader{err: errors.New("connection refused")})

	view, err := h.plugin.AddClient(context.Background(), clientURL)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, view.Status())
	assert.Contains(t, view.Info().Error, "connection refused")
	assert.Len(t, h.ws.Items(), 1)
}

func TestConnectDialogFlow(t *testing.T) {
	h := newHarness(t, envLoader())
	dialog := h.plugin.Dialog()

	h.plugin.Connect()
	require.True(t, dialog.IsVisible())
	dialog.SetText("ftp://nope")

	_, err := h.plugin.ConfirmServer(context.Background())
	assert.ErrorIs(t, err, ErrInvalidURL)
	assert.True(t, dialog.IsVisible())

	dialog.SetText(clientURL)
	view, err := h.plugin.ConfirmServer(context.Background())
	require.NoError(t, err)
	assert.Equal(t, clientURL, view.URL())
	assert.False(t, dialog.IsVisible())

	h.plugin.Connect()
	dialog.SetText("http://other")
	h.plugin.CancelServer()
	assert.False(t, dialog.IsVisible())
	assert.Equal(t, DefaultServerURL, dialog.Text())
}

func TestGetHostInfo(t *testing.T) {
	h := newHarness(t, envLoader())
	_, frame, rec := h.open(t)

	h.run(t, frame, `callHost("getHostInfo")`)

	reply := rec.find("hostReply")
	require.Len(t, reply, 3)
	assert.Equal(t, "getHostInfo", reply[1])
	info, ok := reply[2].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "rempl-host", info["name"])
	assert.Equal(t, "test", info["version"])
	assert.Equal(t, h.ws.Root(), info["root"])
	assert.Equal(t, float64(1), info["views"])
}

func TestSetStatusBarContent(t *testing.T) {
	h := newHarness(t, envLoader())
	_, frame, _ := h.open(t)

	h.run(t, frame, `notifyHost("setStatusBarContent", "<b>3</b> warnings<script>x()</script>")`)
	assert.Equal(t, "<b>3</b> warnings", h.ws.StatusBar().Content())
}

func TestPublisherChanged(t *testing.T) {
	h := newHarness(t, envLoader())
	view, frame, _ := h.open(t)

	h.run(t, frame, `notifyHost("publisherChanged", "react")`)
	assert.Equal(t, "react", view.Publisher())
	assert.Equal(t, ViewState{URL: clientURL, Publisher: "react"}, view.Serialize())

	h.run(t, frame, `notifyHost("publisherChanged", { id: "vue", name: "Vue" })`)
	want := map[string]interface{}{"id": "vue", "name": "Vue"}
	assert.Equal(t, want, view.Publisher())
	assert.Equal(t, ViewState{URL: clientURL, Publisher: want}, view.Serialize())
	assert.Equal(t, want, view.Info().Publisher)

	h.run(t, frame, `notifyHost("publisherChanged")`)
	assert.Equal(t, want, view.Publisher(), "a call without a publisher keeps the last one")
}

func TestOpenFileAndGetContent(t *testing.T) {
	h := newHarness(t, envLoader())
	path := writeFile(t, h.ws.Root(), "src/index.js", "export default 1;\n")
	_, frame, rec := h.open(t)

	h.run(t, frame, `callHost("openFile", "webpack:///./src/index.js", 3, 5)`)

	reply := rec.find("hostReply")
	require.Len(t, reply, 3)
	result := reply[2].(map[string]interface{})
	assert.Equal(t, true, result["ok"])
	assert.Equal(t, "src/index.js", result["path"])

	editor := h.ws.ActiveEditor()
	require.NotNil(t, editor)
	assert.Equal(t, path, editor.Path())
	line, column := editor.Cursor()
	assert.Equal(t, 2, line)
	assert.Equal(t, 4, column)

	h.run(t, frame, `callHost("getContent")`)
	reply = rec.find("hostReply")
	require.Len(t, reply, 3)
	content := reply[2].(map[string]interface{})
	assert.Equal(t, "export default 1;\n", content["content"])
	assert.Equal(t, "utf-8", content["charset"])
	assert.Equal(t, path, content["path"])
}

func TestOpenFileMissing(t *testing.T) {
	h := newHarness(t, envLoader())
	_, frame, rec := h.open(t)

	h.run(t, frame, `callHost("openFile", "missing.js")`)

	reply := rec.find("hostReply")
	require.Len(t, reply, 3)
	result := reply[2].(map[string]interface{})
	assert.Equal(t, false, result["ok"])
	assert.NotEmpty(t, result["error"])
	assert.Nil(t, h.ws.ActiveEditor())
}

func TestGetContentWithoutEditor(t *testing.T) {
	h := newHarness(t, envLoader())
	_, frame, rec := h.open(t)

	h.run(t, frame, `callHost("getContent")`)

	reply := rec.find("hostReply")
	require.Len(t, reply, 3)
	assert.Nil(t, reply[2])
}

func TestRemoteRequestsAreCounted(t *testing.T) {
	h := newHarness(t, envLoader())
	_, frame, _ := h.open(t)

	h.run(t, frame, `notifyHost("publisherChanged", "a"); notifyHost("somethingElse")`)
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.RemoteRequests.WithLabelValues(MethodPublisherChanged)))
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.RemoteRequests.WithLabelValues("somethingElse")))
}

func TestActivePaneItemBroadcast(t *testing.T) {
	h := newHarness(t, envLoader())
	first, _, firstRec := h.open(t)
	_, _, secondRec := h.open(t)

	path := writeFile(t, h.ws.Root(), "main.go", "package main\n")
	_, err := h.ws.OpenFile(path, 0, 0)
	require.NoError(t, err)
	h.window.Flush()

	for _, rec := range []*recorder{firstRec, secondRec} {
		frame := rec.find("received")
		require.Len(t, frame, 2)
		event := frame[1].(map[string]interface{})
		assert.Equal(t, EventDidChangeActivePaneItem, event["type"])
		assert.Equal(t, map[string]interface{}{"title": "main.go", "isEditor": true}, event["pane"])
	}

	h.ws.ActivateItem(first)
	h.window.Flush()
	event := firstRec.find("received")[1].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"title": first.Title(), "isEditor": false}, event["pane"])
}

func TestCloseViewReleasesEndpoint(t *testing.T) {
	h := newHarness(t, envLoader())
	view, frame, _ := h.open(t)
	require.Equal(t, 1, h.tr.Bindings())

	assert.True(t, h.plugin.CloseView(view.ID()))
	assert.False(t, frame.Attached())
	assert.Equal(t, 0, h.tr.Bindings())
	assert.Empty(t, h.plugin.Views())
	assert.Empty(t, h.ws.Items())
	assert.Equal(t, float64(0), testutil.ToFloat64(h.metrics.ViewsActive))

	assert.False(t, h.plugin.CloseView(view.ID()))
}

func TestSaveAndRestoreState(t *testing.T) {
	h := newHarness(t, envLoader())
	view, frame, _ := h.open(t)
	h.run(t, frame, `notifyHost("publisherChanged", { id: "vue", name: "Vue" })`)
	publisher := map[string]interface{}{"id": "vue", "name": "Vue"}
	require.Equal(t, publisher, view.Publisher())

	require.NoError(t, h.plugin.SaveState())

	restored := newHarness(t, envLoader())
	restored.plugin.state = h.plugin.state

	n, err := restored.plugin.RestoreState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	views := restored.plugin.Views()
	require.Len(t, views, 1)
	assert.Equal(t, clientURL, views[0].URL())
	assert.Equal(t, publisher, views[0].Publisher())
	restored.window.Flush()
	assert.Equal(t, StatusReady, views[0].Status())
}

func TestDeserializeClientWithoutURL(t *testing.T) {
	h := newHarness(t, envLoader())
	view, err := h.plugin.DeserializeClient(context.Background(), ViewState{})
	require.NoError(t, err)
	assert.Nil(t, view)
	assert.Empty(t, h.ws.Items())
}

func TestAttachEndpointJoinsBroadcast(t *testing.T) {
	h := newHarness(t, envLoader())
	ep := &fakeEndpoint{}

	h.plugin.AttachEndpoint(ep)
	connect(t, h.window, ep)

	assert.Equal(t, 1, h.plugin.Broadcast(map[string]string{"type": "ping"}))
	assert.Equal(t, "env-1", ep.last().Channel)

	h.plugin.DetachEndpoint(ep)
	assert.Equal(t, 0, h.plugin.Broadcast(map[string]string{"type": "ping"}))
}

func TestDeactivateStopsBroadcasts(t *testing.T) {
	h := newHarness(t, envLoader())
	_, _, rec := h.open(t)
	h.plugin.Deactivate()

	path := writeFile(t, h.ws.Root(), "a.txt", "a")
	_, err := h.ws.OpenFile(path, 0, 0)
	require.NoError(t, err)
	h.window.Flush()

	assert.Nil(t, rec.find("received"))
	assert.Empty(t, h.plugin.Views())
}

func TestSandboxOpenerLoadsRemoteClient(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/server/client", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><script src="/env.js"></script></head><body></body></html>`))
	})
	mux.HandleFunc("/env.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/javascript")
		_, _ = w.Write([]byte(envScript))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	cfg := remote.DefaultConfig()
	cfg.Timeout = 2 * time.Second
	cfg.Retries = 0
	client := remote.NewClient(cfg)

	h := newHarness(t, client)
	view, err := h.plugin.AddClient(context.Background(), server.URL+"/server/client")
	require.NoError(t, err)
	h.window.Flush()

	assert.Equal(t, StatusReady, view.Status())
	assert.True(t, h.tr.Ready(view.Endpoint()))
}
