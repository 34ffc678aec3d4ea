package ws

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"chat-relay/internal/models"
	"chat-relay/internal/observability"
	"chat-relay/internal/service"
	"chat-relay/internal/session"
	"chat-relay/internal/telemetry"
)

// Relay routes inbound client commands to the session registry, group
// directory and message log, and fans resulting events out through the hub.
// Errors are answered to the requester only, never broadcast.
type Relay struct {
	hub      *Hub
	sessions *session.Registry
	users    *service.UserService
	groups   *service.GroupService
	messages *service.MessageService
	audit    *telemetry.AuditEmitter
}

// NewRelay constructs a Relay.
func NewRelay(hub *Hub, sessions *session.Registry, users *service.UserService, groups *service.GroupService, messages *service.MessageService, audit *telemetry.AuditEmitter) *Relay {
	return &Relay{
		hub:      hub,
		sessions: sessions,
		users:    users,
		groups:   groups,
		messages: messages,
		audit:    audit,
	}
}

// Dispatch decodes one inbound frame and runs the matching command. Commands
// other than join are rejected until the connection has authenticated.
func (r *Relay) Dispatch(c *Client, data []byte) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil || frame.Type == "" {
		r.hub.Send(c, Event{Type: EvtAuthError, Payload: Ack{Success: false, Code: CodeValidation, Error: "malformed frame"}})
		return
	}
	observability.IncRelayCommand(frame.Type)

	if frame.Type == CmdJoin {
		r.handleJoin(c, frame.Payload)
		return
	}
	if c.sess == nil {
		r.hub.Send(c, ackEvent(frame.Type, Ack{Success: false, Code: CodeAuth, Error: "not authenticated"}))
		return
	}

	switch frame.Type {
	case CmdGroupCreate:
		r.handleGroupCreate(c, frame.Payload)
	case CmdGroupJoin:
		r.handleGroupJoin(c, frame.Payload)
	case CmdGroupLeave:
		r.handleGroupLeave(c, frame.Payload)
	case CmdGroupUpdate:
		r.handleGroupUpdate(c, frame.Payload)
	case CmdGroupDelete:
		r.handleGroupDelete(c, frame.Payload)
	case CmdUpdateRole:
		r.handleUpdateRole(c, frame.Payload)
	case CmdRemoveMember:
		r.handleRemoveMember(c, frame.Payload)
	case CmdMessageSend:
		r.handleMessageSend(c, frame.Payload)
	case CmdHistory:
		r.handleHistory(c, frame.Payload)
	default:
		r.hub.Send(c, ackEvent(frame.Type, Ack{Success: false, Code: CodeValidation, Error: "unknown command"}))
	}
}

// Disconnect releases the connection's session and tells everyone the user
// left. Unauthenticated connections disconnect silently.
func (r *Relay) Disconnect(c *Client) {
	if c.sess == nil {
		return
	}
	ref := c.sess.Ref()
	c.sess = nil
	if _, ok := r.sessions.Leave(c.id); !ok {
		// session re-bound to a newer connection; roster is unchanged
		return
	}
	r.hub.BroadcastAll(Event{Type: EvtUserLeft, Payload: ref})
}

func (r *Relay) handleJoin(c *Client, raw json.RawMessage) {
	ctx := context.Background()

	var p JoinPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.Username == "" {
		r.hub.Send(c, ackEvent(CmdJoin, Ack{Success: false, Code: CodeValidation, Error: "username is required"}))
		return
	}

	user, err := r.users.Resolve(ctx, p.Username)
	if err != nil {
		r.fail(c, CmdJoin, err)
		return
	}

	// A username active on another live connection is a duplicate; a stale
	// binding whose connection is gone is a reconnect and gets re-bound.
	if prev, ok := r.sessions.ByUser(user.ID); ok && prev.ConnID != c.id && r.hub.HasClient(prev.ConnID) {
		r.emitAudit(ctx, "WARN", "duplicate username rejected", c, nil)
		r.hub.Send(c, Event{Type: EvtAuthError, Payload: Ack{Success: false, Code: CodeAuth, Error: "username already taken"}})
		return
	}

	sess, rebound, err := r.sessions.Join(user.Ref(), c.id)
	if err != nil {
		r.hub.Send(c, Event{Type: EvtAuthError, Payload: Ack{Success: false, Code: CodeAuth, Error: "username already taken"}})
		return
	}
	c.sess = sess

	// subscribe to every group the user already belongs to
	groups, err := r.groups.ListByUser(ctx, user.ID)
	if err != nil {
		log.Error().Err(err).Int("user_id", user.ID).Msg("list groups on join")
	}
	for _, g := range groups {
		r.hub.JoinRoom(g.ID, c)
	}

	allGroups, err := r.groups.ListAll(ctx)
	if err != nil {
		log.Error().Err(err).Msg("list all groups on join")
	}

	r.hub.Send(c, ackEvent(CmdJoin, Ack{Success: true, Data: sess.Ref()}))
	r.hub.Send(c, Event{Type: EvtUserList, Payload: r.sessions.Roster()})
	r.hub.Send(c, Event{Type: EvtGroupList, Payload: allGroups})
	if !rebound {
		r.hub.BroadcastAll(Event{Type: EvtUserJoined, Payload: sess.Ref()})
	}
	r.emitAudit(ctx, "INFO", "user joined", c, &user.ID)
}

func (r *Relay) handleGroupCreate(c *Client, raw json.RawMessage) {
	ctx := context.Background()

	var p CreateGroupPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		r.hub.Send(c, ackEvent(CmdGroupCreate, Ack{Success: false, Code: CodeValidation, Error: "invalid payload"}))
		return
	}

	group, err := r.groups.Create(ctx, p.Name, p.Description, c.sess.UserID, p.HasPassword, p.Password, p.AvatarColor)
	if err != nil {
		r.fail(c, CmdGroupCreate, err)
		return
	}

	r.hub.JoinRoom(group.ID, c)
	r.hub.Send(c, ackEvent(CmdGroupCreate, Ack{Success: true, Data: group}))
	// global so non-members can discover the group and ask to join
	r.hub.BroadcastAll(Event{Type: EvtGroupCreated, Payload: group})
	r.emitAudit(ctx, "INFO", "group created", c, &c.sess.UserID)
}

func (r *Relay) handleGroupJoin(c *Client, raw json.RawMessage) {
	ctx := context.Background()

	var p JoinGroupPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.GroupID <= 0 {
		r.hub.Send(c, ackEvent(CmdGroupJoin, Ack{Success: false, Code: CodeValidation, Error: "valid group id is required"}))
		return
	}

	group, err := r.groups.Join(ctx, p.GroupID, c.sess.UserID, p.Password)
	if err != nil {
		r.fail(c, CmdGroupJoin, err)
		return
	}

	r.hub.JoinRoom(group.ID, c)
	r.hub.Send(c, ackEvent(CmdGroupJoin, Ack{Success: true, Data: group}))
	r.hub.BroadcastRoom(group.ID, Event{Type: EvtMemberJoined, Payload: MemberJoinedPayload{GroupID: group.ID, User: c.sess.Ref()}})
}

func (r *Relay) handleGroupLeave(c *Client, raw json.RawMessage) {
	ctx := context.Background()

	var p GroupIDPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.GroupID <= 0 {
		r.hub.Send(c, ackEvent(CmdGroupLeave, Ack{Success: false, Code: CodeValidation, Error: "valid group id is required"}))
		return
	}

	if err := r.groups.Leave(ctx, p.GroupID, c.sess.UserID); err != nil {
		r.fail(c, CmdGroupLeave, err)
		return
	}

	r.hub.LeaveRoom(p.GroupID, c)
	r.hub.Send(c, ackEvent(CmdGroupLeave, Ack{Success: true}))
	r.hub.BroadcastRoom(p.GroupID, Event{Type: EvtMemberRemoved, Payload: MemberRemovedPayload{GroupID: p.GroupID, UserID: c.sess.UserID}})
}

func (r *Relay) handleGroupUpdate(c *Client, raw json.RawMessage) {
	ctx := context.Background()

	var p UpdateGroupPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.GroupID <= 0 {
		r.hub.Send(c, ackEvent(CmdGroupUpdate, Ack{Success: false, Code: CodeValidation, Error: "valid group id is required"}))
		return
	}

	group, err := r.groups.UpdateInfo(ctx, p.GroupID, c.sess.UserID, p.GroupPatch)
	if err != nil {
		r.fail(c, CmdGroupUpdate, err)
		return
	}

	r.hub.Send(c, ackEvent(CmdGroupUpdate, Ack{Success: true, Data: group}))
	r.hub.BroadcastRoom(group.ID, Event{Type: EvtGroupUpdated, Payload: group})
	r.emitAudit(ctx, "INFO", "group updated", c, &c.sess.UserID)
}

func (r *Relay) handleGroupDelete(c *Client, raw json.RawMessage) {
	ctx := context.Background()

	var p GroupIDPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.GroupID <= 0 {
		r.hub.Send(c, ackEvent(CmdGroupDelete, Ack{Success: false, Code: CodeValidation, Error: "valid group id is required"}))
		return
	}

	if err := r.groups.Delete(ctx, p.GroupID, c.sess.UserID); err != nil {
		r.fail(c, CmdGroupDelete, err)
		return
	}

	r.hub.Send(c, ackEvent(CmdGroupDelete, Ack{Success: true}))
	// global so everyone's group list stays current
	r.hub.BroadcastAll(Event{Type: EvtGroupDeleted, Payload: p.GroupID})
	r.hub.DropRoom(p.GroupID)
	r.emitAudit(ctx, "INFO", "group deleted", c, &c.sess.UserID)
}

func (r *Relay) handleUpdateRole(c *Client, raw json.RawMessage) {
	ctx := context.Background()

	var p UpdateRolePayload
	if err := json.Unmarshal(raw, &p); err != nil || p.GroupID <= 0 || p.UserID <= 0 {
		r.hub.Send(c, ackEvent(CmdUpdateRole, Ack{Success: false, Code: CodeValidation, Error: "group id and user id are required"}))
		return
	}

	member, err := r.groups.SetRole(ctx, p.GroupID, c.sess.UserID, p.UserID, p.Role)
	if err != nil {
		r.fail(c, CmdUpdateRole, err)
		return
	}

	r.hub.Send(c, ackEvent(CmdUpdateRole, Ack{Success: true, Data: member}))
	r.hub.BroadcastRoom(p.GroupID, Event{Type: EvtRoleUpdated, Payload: member})
	r.emitAudit(ctx, "INFO", "member role updated", c, &c.sess.UserID)
}

func (r *Relay) handleRemoveMember(c *Client, raw json.RawMessage) {
	ctx := context.Background()

	var p RemoveMemberPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.GroupID <= 0 || p.UserID <= 0 {
		r.hub.Send(c, ackEvent(CmdRemoveMember, Ack{Success: false, Code: CodeValidation, Error: "group id and user id are required"}))
		return
	}

	if err := r.groups.RemoveMember(ctx, p.GroupID, c.sess.UserID, p.UserID); err != nil {
		r.fail(c, CmdRemoveMember, err)
		return
	}

	r.hub.Send(c, ackEvent(CmdRemoveMember, Ack{Success: true}))
	// tell the room first so the removed member sees it too
	r.hub.BroadcastRoom(p.GroupID, Event{Type: EvtMemberRemoved, Payload: MemberRemovedPayload{GroupID: p.GroupID, UserID: p.UserID}})
	r.unsubscribeUser(p.GroupID, p.UserID)
	r.emitAudit(ctx, "INFO", "member removed", c, &c.sess.UserID)
}

func (r *Relay) handleMessageSend(c *Client, raw json.RawMessage) {
	ctx := context.Background()

	var p SendMessagePayload
	if err := json.Unmarshal(raw, &p); err != nil || p.GroupID <= 0 {
		r.hub.Send(c, ackEvent(CmdMessageSend, Ack{Success: false, Code: CodeValidation, Error: "valid group id is required"}))
		return
	}

	msg, err := r.messages.Append(ctx, p.GroupID, c.sess.UserID, p.Content)
	if err != nil {
		r.fail(c, CmdMessageSend, err)
		return
	}

	withUser := models.MessageWithUser{Message: msg, User: c.sess.Ref()}
	r.hub.Send(c, ackEvent(CmdMessageSend, Ack{Success: true, Data: withUser}))
	r.hub.BroadcastRoom(p.GroupID, Event{Type: EvtMessage, Payload: withUser})
}

func (r *Relay) handleHistory(c *Client, raw json.RawMessage) {
	ctx := context.Background()

	var p HistoryPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.GroupID <= 0 {
		r.hub.Send(c, ackEvent(CmdHistory, Ack{Success: false, Code: CodeValidation, Error: "valid group id is required"}))
		return
	}

	msgs, err := r.messages.History(ctx, p.GroupID, p.Limit)
	if err != nil {
		r.fail(c, CmdHistory, err)
		return
	}

	// stored newest-first, delivered oldest-first for display
	r.hub.Send(c, Event{Type: EvtHistory, Payload: HistoryResult{GroupID: p.GroupID, Messages: service.OldestFirst(msgs)}})
}

// unsubscribeUser detaches a removed member's live connection from the room.
func (r *Relay) unsubscribeUser(groupID, userID int) {
	sess, ok := r.sessions.ByUser(userID)
	if !ok {
		return
	}
	if target, ok := r.hub.Client(sess.ConnID); ok {
		r.hub.LeaveRoom(groupID, target)
	}
}

// fail answers a command with the wire form of a business error. Unexpected
// errors are logged and reported as a generic internal failure; the relay
// keeps serving.
func (r *Relay) fail(c *Client, cmd string, err error) {
	code := errCode(err)
	msg := err.Error()
	if code == CodeInternal {
		log.Error().Err(err).Str("command", cmd).Str("conn_id", c.id).Msg("relay command failed")
		msg = "internal error"
	}
	observability.IncRelayError(cmd, code)
	r.hub.Send(c, ackEvent(cmd, Ack{Success: false, Code: code, Error: msg}))
}

func errCode(err error) string {
	switch {
	case errors.Is(err, service.ErrNotAuthenticated):
		return CodeAuth
	case errors.Is(err, service.ErrPermissionDenied),
		errors.Is(err, service.ErrOwnerImmutable):
		return CodePermission
	case errors.Is(err, service.ErrGroupNotFound),
		errors.Is(err, service.ErrUserNotFound):
		return CodeNotFound
	case errors.Is(err, service.ErrEmptyName),
		errors.Is(err, service.ErrEmptyContent),
		errors.Is(err, service.ErrPasswordRequired),
		errors.Is(err, service.ErrWrongPassword),
		errors.Is(err, service.ErrInvalidRole),
		errors.Is(err, service.ErrInvalidTheme):
		return CodeValidation
	case errors.Is(err, service.ErrAlreadyMember),
		errors.Is(err, service.ErrNotMember),
		errors.Is(err, service.ErrUsernameTaken):
		return CodeConflict
	default:
		return CodeInternal
	}
}

func (r *Relay) emitAudit(ctx context.Context, level, text string, c *Client, userID *int) {
	if r.audit == nil {
		return
	}
	r.audit.Emit(ctx, level, text, c.id, userID)
}
