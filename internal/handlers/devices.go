package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/PratikDhanave/celebration-webhook/internal/auth"
	"github.com/PratikDhanave/celebration-webhook/internal/logger"
	"github.com/PratikDhanave/celebration-webhook/internal/models"
	"github.com/PratikDhanave/celebration-webhook/internal/store"
)

func randHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// RegisterDeviceRoutes registers the device registry API.
//
// Public:
//
//	GET  /devices/:id/prefs
//
// Admin (X-API-Key when admin keys are configured):
//
//	POST /register
//	PUT  /devices/:id/prefs
//	POST /devices/:id/notify-config
//	POST /test/broadcast
func RegisterDeviceRoutes(public, admin gin.IRoutes, st store.DeviceStore, n Notifier) {
	log := logger.Get(logger.Devices)

	admin.POST("/register", func(c *gin.Context) {
		var req models.RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad json"})
			return
		}

		id := strings.TrimSpace(req.DeviceID)
		if id == "" {
			id = "dev-" + randHex(6)
		}
		secret := randHex(16)

		err := st.CreateDevice(c.Request.Context(), models.Device{ID: id, Secret: secret, Label: req.Label})
		if errors.Is(err, store.ErrDeviceExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "device exists"})
			return
		}
		if err != nil {
			log.Error("Registering device failed", "device_id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db insert failed"})
			return
		}

		log.Info("Device registered", "device_id", id, "label", req.Label, "admin", auth.AdminName(c))
		c.JSON(http.StatusOK, models.RegisterResponse{DeviceID: id, DeviceSecret: secret})
	})

	public.GET("/devices/:id/prefs", func(c *gin.Context) {
		id := c.Param("id")
		if !deviceKnown(c, st, id) {
			return
		}
		p, err := st.GetPrefs(c.Request.Context(), id)
		if err != nil {
			log.Error("Reading prefs failed", "device_id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db query failed"})
			return
		}
		c.JSON(http.StatusOK, p)
	})

	admin.PUT("/devices/:id/prefs", func(c *gin.Context) {
		id := c.Param("id")
		if !deviceKnown(c, st, id) {
			return
		}
		var p models.Prefs
		if err := c.ShouldBindJSON(&p); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad json"})
			return
		}

		err := st.PutPrefs(c.Request.Context(), id, p)
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown device"})
			return
		}
		if err != nil {
			log.Error("Writing prefs failed", "device_id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db write failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	admin.POST("/devices/:id/notify-config", func(c *gin.Context) {
		id := c.Param("id")
		count, err := n.Send(id, models.Broadcast{Type: models.ConfigUpdatedType})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "notify failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "notified", "count": count})
	})

	admin.POST("/test/broadcast", func(c *gin.Context) {
		var b models.Broadcast
		if err := c.ShouldBindJSON(&b); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad json"})
			return
		}
		if b.Type == "" && b.Effect == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "need type or effect"})
			return
		}
		if b.ID == "" {
			b.ID = uuid.NewString()
		}

		var (
			count int
			err   error
		)
		if b.DeviceID != "" {
			count, err = n.Send(b.DeviceID, b)
		} else {
			count, err = n.Broadcast(b)
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "broadcast failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "sent", "count": count})
	})
}

// deviceKnown answers 404 or 500 and returns false when id cannot be resolved.
func deviceKnown(c *gin.Context, st store.DeviceStore, id string) bool {
	_, err := st.GetDevice(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown device"})
		return false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db query failed"})
		return false
	}
	return true
}
