package notification

import "time"

type Notification struct {
	ID          string                 `json:"id"`
	RecipientID string                 `json:"recipient"`
	Verb        string                 `json:"verb"`
	Data        map[string]interface{} `json:"data,omitempty"`
	Link        string                 `json:"link,omitempty"`
	Unread      bool                   `json:"unread"`
	Timestamp   time.Time              `json:"timestamp"` // UTC
}

// Recipient is the contact information of a notified user.
type Recipient struct {
	ID       string
	Username string
	Name     string
	Email    string
}

func (r Recipient) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	return r.Username
}

// Message is what a recipient gets notified of: an in-app verb, and an email.
type Message struct {
	Verb    string
	Link    string
	Data    map[string]interface{}
	Subject string
	Body    string
}
