package model

import "time"

// Message is one direct message from SenderID to RecipientID.
//
// There is no conversations table. A conversation is the unordered pair
// {SenderID, RecipientID} plus the newest message between them, derived on
// read (see repository.MessageRepository.ListConversations).
type Message struct {
	ID          int64     `json:"id"           db:"id"`
	SenderID    int64     `json:"sender_id"    db:"sender_id"`
	RecipientID int64     `json:"recipient_id" db:"recipient_id"`
	Body        string    `json:"body"         db:"body"`
	CreatedAt   time.Time `json:"created_at"   db:"created_at"`
}

// Peer returns the other participant of the message from userID's point of view.
func (m *Message) Peer(userID int64) int64 {
	if m.SenderID == userID {
		return m.RecipientID
	}
	return m.SenderID
}
