package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PratikDhanave/celebration-webhook/internal/auth"
	"github.com/PratikDhanave/celebration-webhook/internal/config"
	"github.com/PratikDhanave/celebration-webhook/internal/metrics"
	"github.com/PratikDhanave/celebration-webhook/internal/models"
	"github.com/PratikDhanave/celebration-webhook/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeLED struct {
	mu      sync.Mutex
	calls   int
	hold    time.Duration
	timeout time.Duration
	err     error
	ctxLive bool
}

func (f *fakeLED) Celebrate(ctx context.Context, hold, timeout time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.hold = hold
	f.timeout = timeout
	f.ctxLive = ctx.Err() == nil
	return f.err
}

type sent struct {
	deviceID string
	msg      models.Broadcast
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sent
	n    int
}

func (f *fakeNotifier) Send(deviceID string, v any) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{deviceID: deviceID, msg: v.(models.Broadcast)})
	return f.n, nil
}

func (f *fakeNotifier) Broadcast(v any) (int, error) {
	return f.Send("", v)
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestListenerRoutes(t *testing.T) {
	n := &fakeNotifier{n: 2}
	m := metrics.New()
	r := gin.New()
	RegisterListenerRoutes(r, WebhookDeps{Profile: config.ProfileListener, Devices: n, Metrics: m})

	w := do(r, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Webhook listener is running!", w.Body.String())

	for _, body := range []string{`{"a":1}`, `not json`, ``, `[1,2]`} {
		w = do(r, http.MethodPost, "/webhook", body)
		assert.Equal(t, http.StatusOK, w.Code, body)
		assert.Equal(t, "Webhook received", w.Body.String(), body)
	}
	assert.Empty(t, n.sent, "payloads without an event are not relayed")
	assert.Equal(t, 4.0, testutil.ToFloat64(m.WebhookRequests.WithLabelValues("listener", metrics.OutcomeAccepted)))
}

func TestRelayRoutes_ForwardEvent(t *testing.T) {
	n := &fakeNotifier{n: 1}
	r := gin.New()
	RegisterRelayRoutes(r, WebhookDeps{Profile: config.ProfileRelay, Devices: n})

	w := do(r, http.MethodPost, "/webhook", `{"event":"deal_won","amount":10}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Webhook received", w.Body.String())

	require.Len(t, n.sent, 1)
	assert.Equal(t, "", n.sent[0].deviceID)
	assert.Equal(t, "deal_won", n.sent[0].msg.Type)
	assert.NotEmpty(t, n.sent[0].msg.ID)

	// relay profile has no GET /
	w = do(r, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCelebrationRoutes(t *testing.T) {
	fl := &fakeLED{}
	n := &fakeNotifier{}
	m := metrics.New()
	r := gin.New()
	RegisterCelebrationRoutes(r, WebhookDeps{
		Profile: config.ProfileCelebration,
		LED:     fl,
		Devices: n,
		Metrics: m,
		Hold:    time.Millisecond,
		Timeout: time.Second,
	})

	w := do(r, http.MethodPost, "/", `{"event":"closed_won"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"success","message":"LEDs blinked"}`, w.Body.String())
	assert.Equal(t, 1, fl.calls)
	assert.Equal(t, time.Millisecond, fl.hold)
	assert.Equal(t, time.Second, fl.timeout)
	assert.True(t, fl.ctxLive)
	require.Len(t, n.sent, 1)
	assert.Equal(t, models.ClosedWon, n.sent[0].msg.Type)

	for _, body := range []string{`{"event":"other"}`, `{"foo":"bar"}`, `{"event":1}`, `{bad`, ``, `"closed_won"`} {
		w = do(r, http.MethodPost, "/", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.JSONEq(t, `{"status":"error","message":"Invalid webhook data"}`, w.Body.String(), body)
	}
	assert.Equal(t, 1, fl.calls, "rejected payloads never touch the strip")
	assert.Equal(t, 6.0, testutil.ToFloat64(m.WebhookRequests.WithLabelValues("celebration", metrics.OutcomeRejected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Celebrations.WithLabelValues("ok")))
}

func TestCelebrationRoutes_LEDFailure(t *testing.T) {
	fl := &fakeLED{err: errors.New("render: spi closed")}
	m := metrics.New()
	r := gin.New()
	RegisterCelebrationRoutes(r, WebhookDeps{Profile: config.ProfileCelebration, LED: fl, Metrics: m})

	w := do(r, http.MethodPost, "/", `{"event":"closed_won"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"status":"error","message":"LED failure"}`, w.Body.String())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Celebrations.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WebhookRequests.WithLabelValues("celebration", metrics.OutcomeFailed)))
}

func newDeviceRouter(t *testing.T, keys map[string]string) (*gin.Engine, store.DeviceStore, *fakeNotifier) {
	t.Helper()
	st := store.NewMemoryStore()
	n := &fakeNotifier{n: 1}
	r := gin.New()
	admin := r.Group("/")
	admin.Use(auth.APIKeyMiddleware(keys))
	RegisterDeviceRoutes(r, admin, st, n)
	return r, st, n
}

func TestRegister(t *testing.T) {
	r, st, _ := newDeviceRouter(t, nil)

	w := do(r, http.MethodPost, "/register", `{"label":"office strip"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.RegisterResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Regexp(t, `^dev-[0-9a-f]{12}$`, resp.DeviceID)
	assert.Regexp(t, `^[0-9a-f]{32}$`, resp.DeviceSecret)

	d, err := st.GetDevice(context.Background(), resp.DeviceID)
	require.NoError(t, err)
	assert.Equal(t, "office strip", d.Label)
	assert.Equal(t, resp.DeviceSecret, d.Secret)

	w = do(r, http.MethodPost, "/register", `{"deviceId":"dev-fixed"}`)
	require.Equal(t, http.StatusOK, w.Code)
	w = do(r, http.MethodPost, "/register", `{"deviceId":"dev-fixed"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(r, http.MethodPost, "/register", `{oops`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegister_RequiresAdminKey(t *testing.T) {
	r, _, _ := newDeviceRouter(t, map[string]string{"s3cret": "ops"})

	w := do(r, http.MethodPost, "/register", `{"label":"x"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(`{"label":"x"}`))
	req.Header.Set("X-API-Key", "s3cret")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPrefs(t *testing.T) {
	r, st, _ := newDeviceRouter(t, nil)
	require.NoError(t, st.CreateDevice(context.Background(), models.Device{ID: "dev-a", Secret: "s"}))

	w := do(r, http.MethodGet, "/devices/dev-a/prefs", "")
	require.Equal(t, http.StatusOK, w.Code)
	var p models.Prefs
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.Equal(t, models.DefaultPrefs(), p)

	body := `{"idle":{"effect":"breath","color":"#ff0000","cycles":0},"events":{"deal_won":{"effect":"rainbow","color":"","cycles":1}}}`
	w = do(r, http.MethodPut, "/devices/dev-a/prefs", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = do(r, http.MethodGet, "/devices/dev-a/prefs", "")
	assert.JSONEq(t, body, w.Body.String())

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/devices/dev-x/prefs", "").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPut, "/devices/dev-x/prefs", body).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPut, "/devices/dev-a/prefs", `nope`).Code)
}

func TestNotifyConfig(t *testing.T) {
	r, _, n := newDeviceRouter(t, nil)

	w := do(r, http.MethodPost, "/devices/dev-a/notify-config", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"notified","count":1}`, w.Body.String())
	require.Len(t, n.sent, 1)
	assert.Equal(t, "dev-a", n.sent[0].deviceID)
	assert.Equal(t, models.ConfigUpdatedType, n.sent[0].msg.Type)
}

func TestTestBroadcast(t *testing.T) {
	r, _, n := newDeviceRouter(t, nil)

	w := do(r, http.MethodPost, "/test/broadcast", `{"effect":"rainbow"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"sent","count":1}`, w.Body.String())

	w = do(r, http.MethodPost, "/test/broadcast", `{"type":"deal_won","deviceId":"dev-a"}`)
	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, n.sent, 2)
	assert.Equal(t, "", n.sent[0].deviceID)
	assert.Equal(t, "rainbow", n.sent[0].msg.Effect)
	assert.Equal(t, "dev-a", n.sent[1].deviceID)
	assert.Equal(t, "deal_won", n.sent[1].msg.Type)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/test/broadcast", `{"color":"#fff"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/test/broadcast", `[`).Code)
}

type fakeAcceptor struct{ accepted []string }

func (f *fakeAcceptor) Accept(w http.ResponseWriter, _ *http.Request, deviceID string) error {
	f.accepted = append(f.accepted, deviceID)
	w.WriteHeader(http.StatusSwitchingProtocols)
	return nil
}

func TestSocketAuth(t *testing.T) {
	st := store.NewMemoryStore()
	require.NoError(t, st.CreateDevice(context.Background(), models.Device{ID: "dev-a", Secret: "topsecret"}))
	acc := &fakeAcceptor{}
	r := gin.New()
	RegisterSocketRoutes(r, st, acc, 0)

	handshake := func(id, ts, sig string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if id != "" {
			req.Header.Set(auth.HeaderDeviceID, id)
		}
		if ts != "" {
			req.Header.Set(auth.HeaderAuthTS, ts)
		}
		if sig != "" {
			req.Header.Set(auth.HeaderAuthSig, sig)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	ts, sig := auth.SignNow("dev-a", "topsecret")
	assert.Equal(t, http.StatusSwitchingProtocols, handshake("dev-a", ts, sig).Code)
	assert.Equal(t, []string{"dev-a"}, acc.accepted)

	assert.Equal(t, http.StatusUnauthorized, handshake("dev-a", ts, "").Code)
	assert.Equal(t, http.StatusUnauthorized, handshake("dev-b", ts, sig).Code)
	assert.Equal(t, http.StatusUnauthorized, handshake("dev-a", ts, auth.Sign("dev-a", "wrong", ts)).Code)

	old := "1000"
	w := handshake("dev-a", old, auth.Sign("dev-a", "topsecret", old))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "timestamp skew", w.Body.String())

	assert.Len(t, acc.accepted, 1)
}

func TestMetricRoutes(t *testing.T) {
	m := metrics.New()
	r := gin.New()
	RegisterMetricRoutes(r, m)

	w := do(r, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "celebration_device_connections")
}
