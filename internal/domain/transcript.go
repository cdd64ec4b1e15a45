package domain

import "time"

// Message is a single chat message read back from a ticket channel.
type Message struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Artifact references a rendered transcript.
type Artifact struct {
	ID           string
	ChannelID    string
	Location     string
	MessageCount int
	CreatedAt    time.Time
}
