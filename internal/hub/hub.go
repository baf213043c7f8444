package hub

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/PratikDhanave/celebration-webhook/internal/logger"
	"github.com/PratikDhanave/celebration-webhook/internal/metrics"
)

const (
	readLimit    = 1 << 20
	readTimeout  = 60 * time.Second
	writeTimeout = 5 * time.Second
)

// conn serialises writes to one websocket.
type conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
}

func (c *conn) write(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

// Hub tracks open device sockets and pushes messages to them.
type Hub struct {
	mu       sync.Mutex
	byDevice map[string]map[*conn]struct{}
	upgrader websocket.Upgrader
	metrics  *metrics.Metrics
	log      *slog.Logger
}

// New returns an empty hub. m may be nil.
func New(m *metrics.Metrics) *Hub {
	return &Hub{
		byDevice: map[string]map[*conn]struct{}{},
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		metrics:  m,
		log:      logger.Get(logger.Hub),
	}
}

// Accept upgrades the request and blocks until the device disconnects.
// Callers authenticate deviceID before calling.
func (h *Hub) Accept(w http.ResponseWriter, r *http.Request, deviceID string) error {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &conn{ws: ws}
	h.add(deviceID, c)
	defer h.remove(deviceID, c)

	ws.SetReadLimit(readLimit)
	_ = ws.SetReadDeadline(time.Now().Add(readTimeout))
	ws.SetPongHandler(func(string) error { return ws.SetReadDeadline(time.Now().Add(readTimeout)) })
	ws.SetPingHandler(func(data string) error {
		_ = ws.SetReadDeadline(time.Now().Add(readTimeout))
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		return ws.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeTimeout))
	})

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return nil
		}
	}
}

// Send writes v as JSON to every socket of deviceID and returns how many
// sockets received it.
func (h *Hub) Send(deviceID string, v any) (int, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return 0, err
	}
	return h.deliver(h.snapshot(deviceID), payload), nil
}

// Broadcast writes v as JSON to every connected socket.
func (h *Hub) Broadcast(v any) (int, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return 0, err
	}
	return h.deliver(h.snapshot(""), payload), nil
}

// Count returns the number of open sockets.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.countLocked()
}

// Close drops every socket.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, set := range h.byDevice {
		for c := range set {
			_ = c.ws.Close()
		}
		delete(h.byDevice, id)
	}
	h.observe()
}

// deviceTarget pairs a socket with its owner for delivery.
type deviceTarget struct {
	deviceID string
	c        *conn
}

// snapshot copies the sockets of deviceID, or of all devices when empty.
func (h *Hub) snapshot(deviceID string) []deviceTarget {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []deviceTarget
	for id, set := range h.byDevice {
		if deviceID != "" && id != deviceID {
			continue
		}
		for c := range set {
			out = append(out, deviceTarget{deviceID: id, c: c})
		}
	}
	return out
}

// deliver writes payload to every target in parallel, so a broadcast takes at
// most one write deadline per socket whatever the number of devices. A socket
// that fails its write is dropped.
func (h *Hub) deliver(targets []deviceTarget, payload []byte) int {
	var (
		g    errgroup.Group
		sent atomic.Int64
	)
	for _, t := range targets {
		g.Go(func() error {
			if err := t.c.write(payload); err != nil {
				h.log.Warn("Device write failed, dropping socket", "device_id", t.deviceID, "error", err)
				h.remove(t.deviceID, t.c)
				return nil
			}
			sent.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	n := int(sent.Load())
	if h.metrics != nil {
		h.metrics.DeviceBroadcasts.Add(float64(n))
	}
	return n
}

func (h *Hub) add(deviceID string, c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.byDevice[deviceID] == nil {
		h.byDevice[deviceID] = map[*conn]struct{}{}
	}
	h.byDevice[deviceID][c] = struct{}{}
	h.log.Info("Device connected", "device_id", deviceID, "sockets", h.countLocked())
	h.observe()
}

func (h *Hub) remove(deviceID string, c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set := h.byDevice[deviceID]; set != nil {
		if _, ok := set[c]; ok {
			delete(set, c)
			h.log.Info("Device disconnected", "device_id", deviceID)
		}
		if len(set) == 0 {
			delete(h.byDevice, deviceID)
		}
	}
	_ = c.ws.Close()
	h.observe()
}

func (h *Hub) countLocked() int {
	n := 0
	for _, set := range h.byDevice {
		n += len(set)
	}
	return n
}

// observe must be called with h.mu held.
func (h *Hub) observe() {
	if h.metrics != nil {
		h.metrics.DeviceConnections.Set(float64(h.countLocked()))
	}
}
