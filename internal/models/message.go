package models

import "time"

// Message is one append-only entry in a group's log. Immutable once written;
// removed only when the owning group is deleted.
type Message struct {
	ID        int       `db:"id" json:"id"`
	GroupID   int       `db:"group_id" json:"groupId"`
	UserID    int       `db:"user_id" json:"userId"`
	Content   string    `db:"content" json:"content"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// MessageWithUser pairs a message with its author snapshot for delivery.
type MessageWithUser struct {
	Message
	User UserRef `json:"user"`
}
