package models

import "time"

// Roles a group member can hold. Every group has exactly one owner.
const (
	RoleOwner   = "owner"
	RoleManager = "manager"
	RoleMember  = "member"
)

// ValidRole reports whether role is one of the known role names.
func ValidRole(role string) bool {
	return role == RoleOwner || role == RoleManager || role == RoleMember
}

// Group represents a chat group. Password is an opaque secret compared on join
// and stripped from every outbound payload.
type Group struct {
	ID           int       `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Description  string    `db:"description" json:"description"`
	HasPassword  bool      `db:"has_password" json:"hasPassword"`
	Password     *string   `db:"password" json:"-"`
	OwnerID      int       `db:"owner_id" json:"ownerId"`
	AvatarColor  string    `db:"avatar_color" json:"avatarColor"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	LastActivity time.Time `db:"last_activity" json:"lastActivity"`
}

// GroupMember binds a user to a group with a role. (group_id, user_id) is
// unique; the membership table is the single source of truth for member lists.
type GroupMember struct {
	ID       int       `db:"id" json:"id"`
	GroupID  int       `db:"group_id" json:"groupId"`
	UserID   int       `db:"user_id" json:"userId"`
	Role     string    `db:"role" json:"role"`
	JoinedAt time.Time `db:"joined_at" json:"joinedAt"`
}

// GroupPatch carries the owner/manager-editable group fields. Nil means leave
// a field unchanged. Turning HasPassword on requires a password; turning it off
// clears the stored one.
type GroupPatch struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	AvatarColor *string `json:"avatarColor,omitempty"`
	HasPassword *bool   `json:"hasPassword,omitempty"`
	Password    *string `json:"password,omitempty"`
}
