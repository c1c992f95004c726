package models

// Webhook is a user-configured subscription linking an event type to a
// callback URL. Records are soft-deleted: Deleted flips to true and the row
// stays in the store.
type Webhook struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	Kind      string `json:"kind"`
	Name      string `json:"name"`
	Event     string `json:"event"`
	URL       string `json:"url"` // TODO validate this.
	Timestamp int64  `json:"timestamp"` // creation time, Unix ms
	Deleted   bool   `json:"deleted"`
}

const WebhookKind = "webhook"

// Key is the fully qualified store key for this webhook.
func (w *Webhook) Key() string {
	return WebhookKey(w.ID)
}

func WebhookKey(id string) string {
	return "webhook/" + id
}
