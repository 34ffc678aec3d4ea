package models

import "time"

// User is a persistent identity. Password is the stored hash and never leaves
// the server.
type User struct {
	ID          int       `db:"id" json:"id"`
	Username    string    `db:"username" json:"username"`
	Password    string    `db:"password" json:"-"`
	Email       *string   `db:"email" json:"email,omitempty"`
	AvatarColor string    `db:"avatar_color" json:"avatarColor"`
	Theme       string    `db:"theme" json:"theme"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	LastLogin   time.Time `db:"last_login" json:"lastLogin"`
}

// UserRef is the denormalized author snapshot embedded in messages and roster
// entries.
type UserRef struct {
	ID          int    `db:"id" json:"id"`
	Username    string `db:"username" json:"username"`
	AvatarColor string `db:"avatar_color" json:"avatarColor"`
}

// Ref returns the broadcast-safe view of the user.
func (u User) Ref() UserRef {
	return UserRef{ID: u.ID, Username: u.Username, AvatarColor: u.AvatarColor}
}
