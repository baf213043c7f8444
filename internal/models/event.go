package models

// ClosedWon is the event value that triggers the celebration.
const ClosedWon = "closed_won"

// Static response bodies.
const (
	ListenerRunning = "Webhook listener is running!"
	WebhookReceived = "Webhook received"
)

// WebhookStatus is the JSON body returned by the celebration profile.
type WebhookStatus struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

var (
	// CelebrationOK is returned after the strip has blinked.
	CelebrationOK = WebhookStatus{Status: "success", Message: "LEDs blinked"}
	// InvalidWebhook is returned for a missing, unparseable or non-matching payload.
	InvalidWebhook = WebhookStatus{Status: "error", Message: "Invalid webhook data"}
	// LEDFailure is returned when the strip could not be driven.
	LEDFailure = WebhookStatus{Status: "error", Message: "LED failure"}
)

// EventName returns payload["event"] when the payload is a JSON object holding
// a string there.
func EventName(payload any) (string, bool) {
	obj, ok := payload.(map[string]any)
	if !ok {
		return "", false
	}
	s, ok := obj["event"].(string)
	return s, ok
}
