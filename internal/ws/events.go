package ws

import (
	"encoding/json"

	"chat-relay/internal/models"
)

// Inbound command types. Anything else is rejected at the boundary.
const (
	CmdJoin         = "join"
	CmdGroupCreate  = "group:create"
	CmdGroupJoin    = "group:join"
	CmdGroupLeave   = "group:leave"
	CmdGroupUpdate  = "group:update"
	CmdGroupDelete  = "group:delete"
	CmdUpdateRole   = "group:update_role"
	CmdRemoveMember = "group:remove_member"
	CmdMessageSend  = "message:send"
	CmdHistory      = "message:history"
)

// Outbound event types.
const (
	EvtAuthError     = "authError"
	EvtUserList      = "userList"
	EvtUserJoined    = "userJoined"
	EvtUserLeft      = "userLeft"
	EvtGroupList     = "groupList"
	EvtGroupCreated  = "group:created"
	EvtGroupUpdated  = "group:updated"
	EvtGroupDeleted  = "group:deleted"
	EvtMemberJoined  = "group:member_joined"
	EvtMemberRemoved = "group:member_removed"
	EvtRoleUpdated   = "group:role_updated"
	EvtMessage       = "message:received"
	EvtHistory       = "message:history"
)

// Frame is the envelope every client command arrives in. The payload is
// decoded into the per-command struct before any dispatch happens.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Event is the envelope for everything the server pushes.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Error codes carried in acks. One per error class; everything unexpected is
// an internal error.
const (
	CodeAuth       = "auth_error"
	CodePermission = "permission_error"
	CodeNotFound   = "not_found"
	CodeValidation = "validation_error"
	CodeConflict   = "conflict_error"
	CodeInternal   = "internal_error"
)

// Ack answers a single command, delivered only to the requester.
type Ack struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func ackEvent(cmd string, ack Ack) Event {
	return Event{Type: cmd + ":ack", Payload: ack}
}

// Command payloads.

type JoinPayload struct {
	Username string `json:"username"`
}

type CreateGroupPayload struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	HasPassword bool   `json:"hasPassword"`
	Password    string `json:"password,omitempty"`
	AvatarColor string `json:"avatarColor,omitempty"`
}

type JoinGroupPayload struct {
	GroupID  int    `json:"groupId"`
	Password string `json:"password,omitempty"`
}

type GroupIDPayload struct {
	GroupID int `json:"groupId"`
}

type UpdateGroupPayload struct {
	GroupID int `json:"groupId"`
	models.GroupPatch
}

type UpdateRolePayload struct {
	GroupID int    `json:"groupId"`
	UserID  int    `json:"userId"`
	Role    string `json:"role"`
}

type RemoveMemberPayload struct {
	GroupID int `json:"groupId"`
	UserID  int `json:"userId"`
}

type SendMessagePayload struct {
	GroupID int    `json:"groupId"`
	Content string `json:"content"`
}

type HistoryPayload struct {
	GroupID int `json:"groupId"`
	Limit   int `json:"limit,omitempty"`
}

// Broadcast payloads.

type MemberJoinedPayload struct {
	GroupID int            `json:"groupId"`
	User    models.UserRef `json:"user"`
}

type MemberRemovedPayload struct {
	GroupID int `json:"groupId"`
	UserID  int `json:"userId"`
}

type HistoryResult struct {
	GroupID  int                      `json:"groupId"`
	Messages []models.MessageWithUser `json:"messages"`
}
