package models

import "time"

// Whistle is one emitted unit of output.
type Whistle struct {
	ID       string    `json:"id"`
	Text     string    `json:"text"`
	PostedAt time.Time `json:"posted_at"`
	Kind     string    `json:"kind"`
}

// DirectMessage is an inbound message addressed to the bot.
type DirectMessage struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"sender_id"`
	RecipientID string    `json:"recipient_id"`
	Text        string    `json:"text"`
	Timestamp   time.Time `json:"timestamp"`
}
