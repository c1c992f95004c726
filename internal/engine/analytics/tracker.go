// Package analytics emits product events to an external tracking endpoint.
// Delivery is strictly best-effort: Track returns before the request is made
// and no failure ever reaches the caller.
package analytics

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"hookd/internal/platform/config"
)

type Event struct {
	UserID    string `json:"userId"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Timestamp int64  `json:"timestamp"`
}

type Tracker struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

func NewTracker(cfg config.AnalyticsConfig) *Tracker {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Tracker{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether an endpoint is configured. Track on a disabled
// tracker is a no-op.
func (t *Tracker) Enabled() bool {
	return t.endpoint != ""
}

func (t *Tracker) Track(userID, email, name string) {
	if !t.Enabled() {
		return
	}

	event := Event{
		UserID:    userID,
		Email:     email,
		Name:      name,
		Timestamp: time.Now().UnixMilli(),
	}

	go t.send(event)
}

func (t *Tracker) send(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}

	req, err := http.NewRequest("POST", t.endpoint, bytes.NewBuffer(payload))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("event", event.Name).Msg("analytics delivery failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		log.Debug().Int("status", resp.StatusCode).Str("event", event.Name).Msg("analytics endpoint rejected event")
	}
}
