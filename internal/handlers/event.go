package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/PratikDhanave/celebration-webhook/internal/auth"
	"github.com/PratikDhanave/celebration-webhook/internal/config"
	"github.com/PratikDhanave/celebration-webhook/internal/led"
	"github.com/PratikDhanave/celebration-webhook/internal/logger"
	"github.com/PratikDhanave/celebration-webhook/internal/metrics"
	"github.com/PratikDhanave/celebration-webhook/internal/models"
)

// Notifier pushes messages to connected devices.
type Notifier interface {
	Send(deviceID string, v any) (int, error)
	Broadcast(v any) (int, error)
}

// Celebrator drives the strip for a closed_won event. timeout bounds the
// sequence once it has the strip, not the wait for it.
type Celebrator interface {
	Celebrate(ctx context.Context, hold, timeout time.Duration) error
}

// WebhookDeps is what the webhook routes need. Devices and Metrics are optional.
type WebhookDeps struct {
	Profile config.Profile
	LED     Celebrator
	Devices Notifier
	Metrics *metrics.Metrics
	Hold    time.Duration
	Timeout time.Duration
}

// RegisterListenerRoutes registers the listener profile.
//
// GET /         -> 200 "Webhook listener is running!"
// POST /webhook -> 200 "Webhook received", whatever the body
func RegisterListenerRoutes(r gin.IRoutes, d WebhookDeps) {
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, models.ListenerRunning)
	})
	r.POST("/webhook", d.received)
}

// RegisterRelayRoutes registers the relay profile: POST /webhook only.
func RegisterRelayRoutes(r gin.IRoutes, d WebhookDeps) {
	r.POST("/webhook", d.received)
}

// RegisterCelebrationRoutes registers the celebration profile.
//
// POST / with {"event":"closed_won"} blinks the strip before answering 200.
// Anything else is a 400 with a fixed body.
func RegisterCelebrationRoutes(r gin.IRoutes, d WebhookDeps) {
	log := logger.Get(logger.Webhook)

	r.POST("/", func(c *gin.Context) {
		payload := readPayload(c, log)

		event, ok := models.EventName(payload)
		if !ok || event != models.ClosedWon {
			d.count(metrics.OutcomeRejected)
			c.JSON(http.StatusBadRequest, models.InvalidWebhook)
			return
		}

		timeout := d.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hold := d.Hold
		if hold <= 0 {
			hold = led.DefaultCelebrationHold
		}

		// A client hanging up must not leave the strip half lit. Concurrent
		// celebrations queue on the runner and each gets the full timeout.
		ctx := context.WithoutCancel(c.Request.Context())

		start := time.Now()
		err := d.LED.Celebrate(ctx, hold, timeout)
		if d.Metrics != nil {
			d.Metrics.CelebrationTime.Observe(time.Since(start).Seconds())
		}
		if err != nil {
			log.Error("Celebration failed", "request_id", auth.RequestID(c), "error", err)
			d.celebrated("error")
			d.count(metrics.OutcomeFailed)
			c.JSON(http.StatusInternalServerError, models.LEDFailure)
			return
		}

		d.celebrated("ok")
		d.count(metrics.OutcomeAccepted)
		d.relay(log, c, event)
		c.JSON(http.StatusOK, models.CelebrationOK)
	})
}

// received is the listener and relay webhook: log, fan out, acknowledge.
func (d WebhookDeps) received(c *gin.Context) {
	log := logger.Get(logger.Webhook)

	payload := readPayload(c, log)
	if event, ok := models.EventName(payload); ok && event != "" {
		d.relay(log, c, event)
	}

	d.count(metrics.OutcomeAccepted)
	c.String(http.StatusOK, models.WebhookReceived)
}

// relay forwards the event name to every connected device.
func (d WebhookDeps) relay(log *slog.Logger, c *gin.Context, event string) {
	if d.Devices == nil {
		return
	}
	n, err := d.Devices.Broadcast(models.Broadcast{ID: uuid.NewString(), Type: event})
	if err != nil {
		log.Warn("Relay to devices failed", "request_id", auth.RequestID(c), "event", event, "error", err)
		return
	}
	log.Debug("Relayed webhook to devices", "request_id", auth.RequestID(c), "event", event, "devices", n)
}

func (d WebhookDeps) count(outcome string) {
	if d.Metrics != nil {
		d.Metrics.WebhookRequests.WithLabelValues(string(d.Profile), outcome).Inc()
	}
}

func (d WebhookDeps) celebrated(result string) {
	if d.Metrics != nil {
		d.Metrics.Celebrations.WithLabelValues(result).Inc()
	}
}

// readPayload decodes the body as JSON. An empty or unparseable body yields a
// nil payload rather than an error; the raw bytes are logged instead.
func readPayload(c *gin.Context, log *slog.Logger) any {
	raw, err := c.GetRawData()
	if err != nil {
		log.Warn("Reading webhook body failed", "request_id", auth.RequestID(c), "error", err)
		return nil
	}

	var payload any
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &payload); err != nil {
			payload = nil
		}
	}

	if payload == nil && len(raw) > 0 {
		log.Info("Received webhook", "request_id", auth.RequestID(c), "raw", string(raw))
	} else {
		log.Info("Received webhook", "request_id", auth.RequestID(c), "payload", payload)
	}
	return payload
}
