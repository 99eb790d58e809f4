package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rkjdid/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bosporos/pbxd/pbx"
	"github.com/bosporos/pbxd/pbx/pbxtest"
	"github.com/bosporos/pbxd/strip"
)

func testServer(t *testing.T) (*Server, *pbxtest.Port) {
	t.Helper()
	port := new(pbxtest.Port)
	s, err := strip.New(pbx.NewDriver(port, pbxtest.NewClock(time.Millisecond)), &strip.Config{
		Channels: []strip.ChannelConfig{
			{Number: 0, Order: "GRB", Pixels: 4},
			{Number: 1, Order: "RGBW"},
		},
	})
	require.NoError(t, err)
	cfg := DefaultServerConfig
	cfg.WebsocketInterval = util.Duration(10 * time.Millisecond)
	return NewServer("test", s, &cfg), port
}

func do(srv *Server, method, target string, body []byte) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(method, target, bytes.NewReader(body)))
	return rec
}

func commits(port *pbxtest.Port) int {
	n := 0
	for _, w := range port.Writes() {
		if bytes.Equal(w, pbx.EncodeCommit()) {
			n++
		}
	}
	return n
}

func TestServer_Snapshot(t *testing.T) {
	srv, _ := testServer(t)

	rec := do(srv, http.MethodGet, "/snapshot", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var sn strip.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sn))
	assert.Equal(t, strip.Connected, sn.State)
	require.Len(t, sn.Channels, 2)
	assert.Equal(t, pbx.RGBW, sn.Channels[1].Kind)

	rec = do(srv, http.MethodGet, "/channels", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var chans []strip.ChannelSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &chans))
	assert.Equal(t, srv.Strip.Channels(), chans)
}

func TestServer_WriteChannel(t *testing.T) {
	srv, port := testServer(t)

	rec := do(srv, http.MethodPut, "/channels/0", []byte{1, 2, 3, 4, 5, 6})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	frame, ok := srv.Strip.Frame(0)
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, frame)
	assert.Zero(t, commits(port))

	rec = do(srv, http.MethodPost, "/channels/1?draw=1", []byte{1, 2, 3, 4})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	assert.Equal(t, 1, commits(port))

	tests := []struct {
		target string
		body   []byte
		code   int
	}{
		{"/channels/7", []byte{1, 2, 3}, http.StatusNotFound},
		{"/channels/300", []byte{1, 2, 3}, http.StatusBadRequest},
		{"/channels/0", []byte{1, 2}, http.StatusBadRequest},
		{"/channels/x", []byte{1, 2, 3}, http.StatusNotFound},
		{"/channels/0", make([]byte, maxFrameBytes+1), http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		rec := do(srv, http.MethodPut, tt.target, tt.body)
		assert.Equal(t, tt.code, rec.Code, tt.target)
	}
}

func TestServer_Draw(t *testing.T) {
	srv, port := testServer(t)

	rec := do(srv, http.MethodPost, "/draw", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, commits(port))

	rec = do(srv, http.MethodGet, "/draw", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	port.FailWrites = true
	rec = do(srv, http.MethodPost, "/draw", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	require.NoError(t, srv.Strip.Close())
	rec = do(srv, http.MethodPost, "/draw", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_Version(t *testing.T) {
	srv, _ := testServer(t)
	rec := do(srv, http.MethodGet, "/version", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test\n", rec.Body.String())

	rec = do(srv, http.MethodGet, "/favicon.ico", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestServer_Websocket(t *testing.T) {
	srv, port := testServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/websocket?poll=5ms"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	var sn strip.Snapshot
	require.NoError(t, conn.ReadJSON(&sn))
	assert.Equal(t, strip.Connected, sn.State)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{0, 9, 8, 7}))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("draw")))

	require.Eventually(t, func() bool { return commits(port) == 1 }, time.Second, time.Millisecond)
	frame, ok := srv.Strip.Frame(0)
	require.True(t, ok)
	assert.Equal(t, []byte{9, 8, 7}, frame)

	// snapshots keep coming and report the write
	require.Eventually(t, func() bool {
		if err := conn.ReadJSON(&sn); err != nil {
			return false
		}
		return sn.Stats.Commits == 1
	}, time.Second, time.Millisecond)
}

func TestLogger_Status(t *testing.T) {
	var status int
	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusTeapot)
		status = w.(*StatusWriter).Status
	}), "test", true)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, http.StatusTeapot, status)
}
