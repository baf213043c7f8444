package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/PratikDhanave/celebration-webhook/internal/auth"
	"github.com/PratikDhanave/celebration-webhook/internal/config"
	"github.com/PratikDhanave/celebration-webhook/internal/led"
	"github.com/PratikDhanave/celebration-webhook/internal/logger"
	"github.com/PratikDhanave/celebration-webhook/internal/models"
)

const (
	readLimit    = 1 << 20
	readTimeout  = 60 * time.Second
	writeTimeout = 5 * time.Second
)

// Client keeps a device connected to the server and plays pushed events on
// the local strip.
type Client struct {
	cfg    config.ClientConfig
	ident  config.Identity
	worker *Worker
	http   *http.Client
	dialer *websocket.Dialer
	log    *slog.Logger

	mu    sync.RWMutex
	prefs models.Prefs
}

// New builds a client around runner.
func New(cfg config.ClientConfig, ident config.Identity, runner *led.Runner) *Client {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	return &Client{
		cfg:    cfg,
		ident:  ident,
		worker: NewWorker(runner, cfg.QueueSize, led.ParseHexColor(cfg.IdleColor)),
		http:   &http.Client{Timeout: 10 * time.Second},
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		log:    logger.Get(logger.Client),
		prefs:  models.Prefs{Events: map[string]models.EffectPref{}},
	}
}

// Run fetches prefs, starts the effect worker and stays connected until ctx
// ends.
func (c *Client) Run(ctx context.Context) error {
	c.refreshPrefs(ctx)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.worker.Run(ctx) })
	g.Go(func() error { return c.connectLoop(ctx) })
	return g.Wait()
}

// Prefs returns the last prefs fetched from the server.
func (c *Client) Prefs() models.Prefs {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.prefs
}

// FetchPrefs reads GET /devices/:id/prefs.
func (c *Client) FetchPrefs(ctx context.Context) (models.Prefs, error) {
	var p models.Prefs

	u := fmt.Sprintf("%s/devices/%s/prefs", c.cfg.APIBase, url.PathEscape(c.ident.DeviceID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return p, err
	}
	res, err := c.http.Do(req)
	if err != nil {
		return p, fmt.Errorf("fetch prefs: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return p, fmt.Errorf("fetch prefs: status %d: %s", res.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(res.Body).Decode(&p); err != nil {
		return p, fmt.Errorf("decode prefs: %w", err)
	}
	return p, nil
}

// refreshPrefs fetches prefs and restarts idle. On failure the previous prefs
// stay in place.
func (c *Client) refreshPrefs(ctx context.Context) {
	p, err := c.FetchPrefs(ctx)
	if err != nil {
		c.log.Warn("Prefs not applied", "error", err)
		return
	}
	if p.Events == nil {
		p.Events = map[string]models.EffectPref{}
	}

	c.mu.Lock()
	c.prefs = p
	c.mu.Unlock()

	c.worker.SetIdle(p.Idle)
	c.log.Info("Applied prefs", "idle", p.Idle.Effect, "idle_color", p.Idle.Color, "events", len(p.Events))
}

func (c *Client) connectLoop(ctx context.Context) error {
	for {
		if err := c.connect(ctx); err != nil {
			c.log.Warn("Websocket session ended", "url", c.cfg.WSURL, "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.cfg.ReconnectDelay):
		}
	}
}

// connect dials with a fresh signature and serves the session until the
// socket drops or ctx ends.
func (c *Client) connect(ctx context.Context) error {
	ts, sig := auth.SignNow(c.ident.DeviceID, c.ident.DeviceSecret)
	hdr := http.Header{}
	hdr.Set(auth.HeaderDeviceID, c.ident.DeviceID)
	hdr.Set(auth.HeaderAuthTS, ts)
	hdr.Set(auth.HeaderAuthSig, sig)

	ws, resp, err := c.dialer.DialContext(ctx, c.cfg.WSURL, hdr)
	if err != nil {
		if resp != nil {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			_ = resp.Body.Close()
			return fmt.Errorf("handshake: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
		return fmt.Errorf("dial: %w", err)
	}
	defer ws.Close()

	c.log.Info("Connected to server", "device_id", c.ident.DeviceID)
	return c.session(ctx, ws)
}

func (c *Client) session(ctx context.Context, ws *websocket.Conn) error {
	ws.SetReadLimit(readLimit)
	_ = ws.SetReadDeadline(time.Now().Add(readTimeout))
	ws.SetPongHandler(func(string) error { return ws.SetReadDeadline(time.Now().Add(readTimeout)) })

	done := make(chan struct{})
	defer close(done)
	go func() {
		t := time.NewTicker(c.cfg.PingInterval)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				_ = ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeTimeout))
				_ = ws.Close()
				return
			case <-t.C:
				_ = ws.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeTimeout))
			}
		}
	}()

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		c.handle(ctx, raw)
	}
}

// handle dispatches one pushed message.
func (c *Client) handle(ctx context.Context, raw []byte) {
	var msg models.Broadcast
	isJSON := json.Unmarshal(raw, &msg) == nil

	if (isJSON && msg.Type == models.ConfigUpdatedType) ||
		strings.TrimSpace(string(raw)) == models.ConfigUpdatedType {
		c.log.Info("Config update notice, refetching prefs")
		c.refreshPrefs(ctx)
		return
	}

	if !isJSON || (msg.Type == "" && msg.Effect == "") {
		text := strings.ToLower(strings.TrimSpace(string(raw)))
		if text == "" {
			return
		}
		msg = models.Broadcast{Type: text}
	}

	if msg.Effect == "" && strings.EqualFold(strings.TrimSpace(msg.Type), EffectOff) {
		c.log.Info("Off received, clearing strip")
		c.worker.Enqueue(Job{Effect: EffectOff})
		return
	}

	j := Resolve(c.Prefs(), msg)
	c.log.Info("Event received", "event", msg.Type, "effect", j.Effect, "color", j.Color, "cycles", j.Cycles)
	c.worker.Enqueue(j)
}
