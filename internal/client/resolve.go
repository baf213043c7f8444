package client

import (
	"strings"

	"github.com/PratikDhanave/celebration-webhook/internal/led"
	"github.com/PratikDhanave/celebration-webhook/internal/models"
)

// Resolve turns a pushed message into a job. The device's pref for the
// message type is the starting point; effect, colour and cycles set on the
// message override it. Whatever is still unset falls back to the legacy
// effect, green and one cycle.
func Resolve(prefs models.Prefs, msg models.Broadcast) Job {
	var j Job

	if p, ok := prefs.Events[strings.ToLower(strings.TrimSpace(msg.Type))]; ok {
		j.Effect = strings.ToLower(strings.TrimSpace(p.Effect))
		j.Color = led.ParseHexColor(p.Color)
		j.Cycles = p.Cycles
	}

	if msg.Effect != "" {
		j.Effect = strings.ToLower(strings.TrimSpace(msg.Effect))
	}
	if msg.Color != "" {
		j.Color = led.ParseHexColor(msg.Color)
	}
	if msg.Cycles > 0 {
		j.Cycles = msg.Cycles
	}

	if j.Effect == "" {
		j.Effect = led.EffectLegacy
	}
	if j.Color == led.Off {
		j.Color = led.Green
	}
	if j.Cycles <= 0 {
		j.Cycles = 1
	}
	return j
}
