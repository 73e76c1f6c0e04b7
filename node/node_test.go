package node

import (
	"bytes"
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"vizdemo/common"
	"vizdemo/core/config"
	"vizdemo/core/demo"
	"vizdemo/core/kpi"
	"vizdemo/core/modal"
	"vizdemo/core/render"
)

func newTestNode(t *testing.T) *VizNode {
	t.Helper()
	p := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, kpi.Generate(rand.New(rand.NewSource(1))).Save(p))

	cfg := &config.LocalConfig{
		Log:  common.DefaultLogConfig(true),
		HTTP: config.HTTPConfig{Listen: ":0", AllowOrigins: "*"},
		Demo: demo.DefaultConfig(),
		KPI:  config.KPIConfig{DataPath: p},
	}
	cfg.Demo.Seed = 11
	n := &VizNode{}
	require.NoError(t, n.Init(cfg))
	return n
}

func call(t *testing.T, n *VizNode, method, path string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := n.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, out
}

type demoReply struct {
	Status demo.Status `json:"status"`
	Error  string      `json:"error"`
}

func decodeReply(t *testing.T, b []byte) demoReply {
	t.Helper()
	var r demoReply
	require.NoError(t, json.Unmarshal(b, &r), string(b))
	return r
}

func newSession(t *testing.T, n *VizNode) string {
	t.Helper()
	resp, body := call(t, n, http.MethodPost, "/api/sessions", sizeRequest{Width: 600, Height: 400})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(body, &created))
	require.NotEmpty(t, created.ID)
	return created.ID
}

func TestDemosList(t *testing.T) {
	n := newTestNode(t)
	resp, body := call(t, n, http.MethodGet, "/api/demos", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var demos []modal.Demo
	require.NoError(t, json.Unmarshal(body, &demos))
	assert.Equal(t, modal.Demos, demos)
}

func TestLogisticOverHTTP(t *testing.T) {
	n := newTestNode(t)
	id := newSession(t, n)
	base := "/api/sessions/" + id

	resp, body := call(t, n, http.MethodPost, base+"/switch/logistic", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	r := decodeReply(t, body)
	assert.True(t, r.Status.Active)
	assert.False(t, r.Status.Loading)
	assert.Equal(t, 100, r.Status.Points)
	assert.Equal(t, 2500, r.Status.GridCells)

	// inner area is 540x350; this is (0.2, 0.9) in data space
	resp, body = call(t, n, http.MethodPost, base+"/logistic/click", pointerRequest{X: 108, Y: 35})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, 101, decodeReply(t, body).Status.Points)

	resp, body = call(t, n, http.MethodGet, base+"/logistic/scene", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var scene render.Scene
	require.NoError(t, json.Unmarshal(body, &scene))
	assert.True(t, scene.Visible)
	assert.Equal(t, 2500, scene.Count(demo.ClassBoundary))
	assert.Equal(t, 101, scene.Count(demo.ClassLogisticDot))

	resp, body = call(t, n, http.MethodGet, base+"/logistic/scene?format=svg", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/svg+xml", resp.Header.Get("Content-Type"))
	assert.Contains(t, string(body), "<svg")

	resp, body = call(t, n, http.MethodGet, base+"/logistic/status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var st demo.Status
	require.NoError(t, json.Unmarshal(body, &st))
	assert.Equal(t, 2, st.Fits)
}

func TestLinearDragOverHTTP(t *testing.T) {
	n := newTestNode(t)
	id := newSession(t, n)
	base := "/api/sessions/" + id

	// nothing drawn yet
	resp, body := call(t, n, http.MethodPost, base+"/linear/drag", pointerRequest{Index: 0, X: 50, Y: 50})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, string(body))

	resp, body = call(t, n, http.MethodPost, base+"/switch/linear", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, 5, decodeReply(t, body).Status.Points)

	resp, body = call(t, n, http.MethodPost, base+"/linear/drag", pointerRequest{Index: 0, X: 50, Y: 50})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, 1, decodeReply(t, body).Status.Fits)

	resp, body = call(t, n, http.MethodPost, base+"/linear/release", pointerRequest{Index: 0, X: 50, Y: 50})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, 2, decodeReply(t, body).Status.Fits)

	resp, body = call(t, n, http.MethodPost, base+"/linear/release", pointerRequest{Index: 7, X: 50, Y: 50})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(body))
}

func TestPointerRulesOverHTTP(t *testing.T) {
	n := newTestNode(t)
	base := "/api/sessions/" + newSession(t, n)

	resp, body := call(t, n, http.MethodPost, base+"/switch/logistic", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	resp, body = call(t, n, http.MethodPost, base+"/switch/linear", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	// logistic is hidden now
	resp, body = call(t, n, http.MethodPost, base+"/logistic/click", pointerRequest{X: 108, Y: 35})
	assert.Equal(t, http.StatusConflict, resp.StatusCode, string(body))
	assert.Equal(t, 100, decodeReply(t, body).Status.Points)

	resp, body = call(t, n, http.MethodPost, base+"/switch/logistic", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	// x=560 is inside the 600px container but past the 540px plot area
	resp, body = call(t, n, http.MethodPost, base+"/logistic/click", pointerRequest{X: 560, Y: 35})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(body))
	assert.Equal(t, 100, decodeReply(t, body).Status.Points)

	resp, body = call(t, n, http.MethodPost, base+"/logistic/click", pointerRequest{X: 540, Y: 350})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, 101, decodeReply(t, body).Status.Points)
}

func TestZeroSizeDefersOverHTTP(t *testing.T) {
	n := newTestNode(t)
	id := newSession(t, n)
	base := "/api/sessions/" + id

	resp, body := call(t, n, http.MethodPost, base+"/resize", sizeRequest{Width: 0, Height: 0})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, body = call(t, n, http.MethodPost, base+"/switch/linear", nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode, string(body))
	r := decodeReply(t, body)
	assert.True(t, r.Status.PendingDraw)
	assert.False(t, r.Status.Loading)

	resp, body = call(t, n, http.MethodPost, base+"/resize", sizeRequest{Mode: "linear", Width: 600, Height: 400})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	r = decodeReply(t, body)
	assert.False(t, r.Status.PendingDraw)
	assert.Equal(t, 1, r.Status.Fits)
}

func TestBadRequests(t *testing.T) {
	n := newTestNode(t)
	id := newSession(t, n)

	resp, _ := call(t, n, http.MethodPost, "/api/sessions/"+id+"/switch/radar", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = call(t, n, http.MethodGet, "/api/sessions/nope/linear/status", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = call(t, n, http.MethodDelete, "/api/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = call(t, n, http.MethodDelete, "/api/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestModalOverHTTP(t *testing.T) {
	n := newTestNode(t)
	base := "/api/sessions/" + newSession(t, n) + "/modal"

	resp, body := call(t, n, http.MethodPost, base, modalRequest{URL: "/kpi-demo/", Label: "KPI Dashboard"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var st modal.State
	require.NoError(t, json.Unmarshal(body, &st))
	assert.Equal(t, modal.State{Open: true, Src: "/kpi-demo/", Label: "KPI Dashboard"}, st)

	resp, body = call(t, n, http.MethodDelete, base, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &st))
	assert.False(t, st.Open)

	resp, _ = call(t, n, http.MethodPost, base, modalRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestKPIOverHTTP(t *testing.T) {
	n := newTestNode(t)

	resp, body := call(t, n, http.MethodGet, "/api/kpi/sales?width=640&height=320", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Contains(t, string(body), "<svg")

	resp, body = call(t, n, http.MethodGet, "/api/kpi/states", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var fills map[string]string
	require.NoError(t, json.Unmarshal(body, &fills))
	assert.Len(t, fills, 50)

	resp, _ = call(t, n, http.MethodGet, "/api/kpi/pie", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = call(t, n, http.MethodPost, "/api/kpi/reload", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWebSocketActions(t *testing.T) {
	n := newTestNode(t)
	s := n.sessions.create(600, 400)

	m, err := n.wsAction(s, wsRequest{Action: "switch", Mode: "linear"})
	require.NoError(t, err)
	assert.Equal(t, demo.ModeLinear, m)

	m, err = n.wsAction(s, wsRequest{Action: "release", pointerRequest: pointerRequest{Index: 1, X: 80, Y: 80}})
	require.NoError(t, err)
	assert.Equal(t, demo.ModeLinear, m)
	assert.Equal(t, demo.LinearPoint{ScreenX: 80, ScreenY: 80}, s.Ctrl.LinearPoints()[1])

	_, err = n.wsAction(s, wsRequest{Action: "click"})
	assert.Equal(t, http.StatusConflict, statusOf(err))

	_, err = n.wsAction(s, wsRequest{Action: "dance"})
	assert.Equal(t, http.StatusBadRequest, statusOf(err))
}

func TestIdleSessionsExpire(t *testing.T) {
	n := newTestNode(t)
	now := time.Now()
	n.sessions.now = func() time.Time { return now }

	idle := newSession(t, n)
	used := newSession(t, n)
	watched := newSession(t, n)
	n.hub.add(watched, &wsClient{})

	now = now.Add(20 * time.Minute)
	resp, _ := call(t, n, http.MethodGet, "/api/sessions/"+used+"/linear/status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	now = now.Add(15 * time.Minute)
	assert.Equal(t, 1, n.sweepSessions(30*time.Minute))
	assert.Equal(t, 2, n.sessions.len())

	resp, _ = call(t, n, http.MethodGet, "/api/sessions/"+idle+"/linear/status", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	for _, id := range []string{used, watched} {
		resp, _ = call(t, n, http.MethodGet, "/api/sessions/"+id+"/linear/status", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode, id)
	}

	assert.Equal(t, time.Second, sweepInterval(2*time.Second))
	assert.Equal(t, 450*time.Second, sweepInterval(30*time.Minute))
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusConflict, statusOf(errors.Wrap(demo.ErrBusy, "logistic")))
	assert.Equal(t, http.StatusAccepted, statusOf(errors.Wrap(render.ErrZeroSize, "plotArea_linear")))
	assert.Equal(t, http.StatusConflict, statusOf(errors.Wrap(demo.ErrInactive, "logistic")))
	assert.Equal(t, http.StatusBadRequest, statusOf(errors.Wrap(demo.ErrOutsidePlot, "click")))
	assert.Equal(t, http.StatusServiceUnavailable, statusOf(kpi.ErrNotLoaded))
	assert.Equal(t, http.StatusInternalServerError, statusOf(errors.New("linear fit: boom")))
}
