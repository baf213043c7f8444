package hub

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PratikDhanave/celebration-webhook/internal/metrics"
)

func newServer(t *testing.T, h *Hub) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = h.Accept(w, r, r.URL.Query().Get("device"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, deviceID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?device=" + deviceID
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func waitCount(t *testing.T, h *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.Count() == n }, 2*time.Second, 10*time.Millisecond)
}

func readText(t *testing.T, ws *websocket.Conn) string {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	return string(data)
}

func TestHub_SendTargetsOneDevice(t *testing.T) {
	m := metrics.New()
	h := New(m)
	srv := newServer(t, h)

	a := dial(t, srv, "dev-a")
	b := dial(t, srv, "dev-b")
	waitCount(t, h, 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.DeviceConnections))

	n, err := h.Send("dev-a", map[string]string{"type": "deal_won"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.JSONEq(t, `{"type":"deal_won"}`, readText(t, a))

	require.NoError(t, b.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err = b.ReadMessage()
	assert.Error(t, err, "dev-b must not receive dev-a's message")

	n, err = h.Send("dev-missing", map[string]string{"type": "x"})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestHub_BroadcastReachesEverySocket(t *testing.T) {
	m := metrics.New()
	h := New(m)
	srv := newServer(t, h)

	a1 := dial(t, srv, "dev-a")
	a2 := dial(t, srv, "dev-a")
	b := dial(t, srv, "dev-b")
	waitCount(t, h, 3)

	n, err := h.Broadcast(map[string]string{"type": "celebrate"})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	for _, ws := range []*websocket.Conn{a1, a2, b} {
		assert.JSONEq(t, `{"type":"celebrate"}`, readText(t, ws))
	}
	assert.Equal(t, 3.0, testutil.ToFloat64(m.DeviceBroadcasts))
}

func TestHub_BroadcastSkipsBrokenSocket(t *testing.T) {
	m := metrics.New()
	h := New(m)
	srv := newServer(t, h)

	const sockets = 20
	clients := make([]*websocket.Conn, sockets)
	for i := range clients {
		clients[i] = dial(t, srv, fmt.Sprintf("dev-%02d", i))
	}
	waitCount(t, h, sockets)

	// break the server side of one socket so its write fails
	broken := h.snapshot("dev-07")
	require.Len(t, broken, 1)
	require.NoError(t, broken[0].c.ws.Close())

	n, err := h.Broadcast(map[string]string{"type": "celebrate"})
	require.NoError(t, err)
	assert.Equal(t, sockets-1, n)
	assert.Equal(t, float64(sockets-1), testutil.ToFloat64(m.DeviceBroadcasts))

	for i, ws := range clients {
		if i == 7 {
			continue
		}
		assert.JSONEq(t, `{"type":"celebrate"}`, readText(t, ws))
	}
	waitCount(t, h, sockets-1)
	assert.Empty(t, h.snapshot("dev-07"))
}

func TestHub_DisconnectRemovesSocket(t *testing.T) {
	h := New(nil)
	srv := newServer(t, h)

	ws := dial(t, srv, "dev-a")
	waitCount(t, h, 1)

	require.NoError(t, ws.Close())
	waitCount(t, h, 0)

	n, err := h.Broadcast(map[string]string{"type": "celebrate"})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestHub_Close(t *testing.T) {
	h := New(nil)
	srv := newServer(t, h)

	ws := dial(t, srv, "dev-a")
	waitCount(t, h, 1)

	h.Close()
	assert.Zero(t, h.Count())

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := ws.ReadMessage()
	assert.Error(t, err)
}
