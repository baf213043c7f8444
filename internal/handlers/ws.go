package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/celebration-webhook/internal/auth"
	"github.com/PratikDhanave/celebration-webhook/internal/logger"
	"github.com/PratikDhanave/celebration-webhook/internal/store"
)

// SocketAcceptor takes over an authenticated request as a device socket.
type SocketAcceptor interface {
	Accept(w http.ResponseWriter, r *http.Request, deviceID string) error
}

// RegisterSocketRoutes registers GET /ws. The handshake must carry
// X-Device-ID, X-Auth-Ts and X-Auth-Sig signed with the device secret.
func RegisterSocketRoutes(r gin.IRoutes, st store.DeviceStore, h SocketAcceptor, maxSkew time.Duration) {
	log := logger.Get(logger.Devices)
	if maxSkew <= 0 {
		maxSkew = auth.DefaultMaxSkew
	}

	r.GET("/ws", func(c *gin.Context) {
		id := c.GetHeader(auth.HeaderDeviceID)
		ts := c.GetHeader(auth.HeaderAuthTS)
		sig := c.GetHeader(auth.HeaderAuthSig)
		if id == "" || ts == "" || sig == "" {
			c.String(http.StatusUnauthorized, auth.ErrMissingHeaders.Error())
			return
		}

		dev, err := st.GetDevice(c.Request.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			c.String(http.StatusUnauthorized, "unknown device")
			return
		}
		if err != nil {
			log.Error("Device lookup failed", "device_id", id, "error", err)
			c.String(http.StatusInternalServerError, "db query failed")
			return
		}

		if err := auth.Verify(id, dev.Secret, ts, sig, time.Now(), maxSkew); err != nil {
			log.Warn("Device auth rejected", "device_id", id, "remote", c.ClientIP(), "error", err)
			c.String(http.StatusUnauthorized, err.Error())
			return
		}

		// The upgrader writes its own error response.
		if err := h.Accept(c.Writer, c.Request, id); err != nil {
			log.Warn("Websocket upgrade failed", "device_id", id, "error", err)
		}
	})
}
