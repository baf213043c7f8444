package models

// Device is a registered LED client.
type Device struct {
	ID     string `json:"deviceId"`
	Secret string `json:"deviceSecret"`
	Label  string `json:"label"`
}

// EffectPref names an LED effect with its colour ("#RRGGBB") and repeat count.
type EffectPref struct {
	Effect string `json:"effect"`
	Color  string `json:"color"`
	Cycles int    `json:"cycles"`
}

// Prefs maps event types to effects, plus the idle effect shown between events.
type Prefs struct {
	Idle   EffectPref            `json:"idle"`
	Events map[string]EffectPref `json:"events"`
}

// DefaultPrefs is served for devices that never stored their own prefs.
func DefaultPrefs() Prefs {
	return Prefs{
		Idle: EffectPref{Effect: "breath", Color: "#0000ff", Cycles: 0},
		Events: map[string]EffectPref{
			"deal_won":        {Effect: "blink", Color: "#00ff00", Cycles: 3},
			"account_created": {Effect: "wipe", Color: "#00ffaa", Cycles: 2},
			"celebrate":       {Effect: "blink", Color: "#ff7f00", Cycles: 1},
		},
	}
}

// RegisterRequest is the POST /register payload.
// DeviceID is optional; an id is generated when empty.
type RegisterRequest struct {
	Label    string `json:"label"`
	DeviceID string `json:"deviceId,omitempty"`
}

// RegisterResponse carries the issued credentials.
type RegisterResponse struct {
	DeviceID     string `json:"deviceId"`
	DeviceSecret string `json:"deviceSecret"`
}

// Broadcast is pushed to device sockets. DeviceID optionally targets one device.
type Broadcast struct {
	ID       string `json:"id,omitempty"`
	Type     string `json:"type"`
	Effect   string `json:"effect,omitempty"`
	Color    string `json:"color,omitempty"`
	Cycles   int    `json:"cycles,omitempty"`
	DeviceID string `json:"deviceId,omitempty"`
}

// ConfigUpdatedType tells a device to refetch its prefs.
const ConfigUpdatedType = "config_updated"
