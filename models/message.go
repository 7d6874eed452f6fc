package models

import (
	"fmt"
	"time"
)

// DisplayTimeLayout is the timestamp layout shown to readers.
const DisplayTimeLayout = "2006-01-02 15:04:05"

// Message represents a plaintext message entry after decryption.
type Message struct {
	ID              int64  `json:"id"`
	VesselSender    string `json:"vessel_sender"`
	VesselRecipient string `json:"vessel_recipient"`
	MessageReceived string `json:"message_received"`
	MessageSent     string `json:"message_sent"`
	Timestamp       string `json:"timestamp"`
	Header          string `json:"header"`
	FormattedTime   string `json:"formatted_time"`
}

// Header renders the combined sender/recipient line.
func Header(sender, recipient string) string {
	return fmt.Sprintf("From: %s To: %s", sender, recipient)
}

// NewMessage builds the presentation form of one decrypted record.
func NewMessage(id int64, sender, recipient, received, sent string, ts time.Time) Message {
	formatted := ts.Format(DisplayTimeLayout)
	return Message{
		ID:              id,
		VesselSender:    sender,
		VesselRecipient: recipient,
		MessageReceived: received,
		MessageSent:     sent,
		Timestamp:       formatted,
		Header:          Header(sender, recipient),
		FormattedTime:   formatted,
	}
}
