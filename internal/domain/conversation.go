package domain

import "time"

// Message is a single row of messages_by_conversation.
type Message struct {
	ConversationID ID
	SentAt         time.Time
	SenderID       ID
	Content        string
}

// ConversationSummary is a single row of conversations_by_user: one user's
// view of a two-party conversation.
type ConversationSummary struct {
	UserID         ID
	LastMessageAt  time.Time
	ConversationID ID
	PeerID         ID
}
