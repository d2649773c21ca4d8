// Package entities contains main entities of service.
package entities

import (
	"time"
)

// Profile is a public extension of an externally-owned user principal.
// Followers and Following are derived from the follow graph, not stored.
type Profile struct {
	Username  string
	Avatar    string
	Bio       string
	Followers uint32
	Following uint32
	CreatedAt time.Time
}

// Post ...
type Post struct {
	ID           string
	Author       string
	Content      string
	Ticker       string
	Image        string
	Tags         []string
	DateTraded   time.Time
	TotalUpvotes uint32
	CreatedAt    time.Time
}

// Comment ...
type Comment struct {
	ID        string
	PostID    string
	Author    string
	Content   string
	CreatedAt time.Time
}

// Conversation groups messages exchanged between a fixed pair of users.
// LastMessage caches the text of the newest message in the conversation.
type Conversation struct {
	ID           string
	Participants []string
	LastMessage  string
	CreatedAt    time.Time
}

// Message ...
type Message struct {
	ID             string
	ConversationID string
	Sender         string
	Recipient      string
	Text           string
	SentAt         time.Time
}
