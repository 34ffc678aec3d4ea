package ws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-relay/internal/config"
	"chat-relay/internal/mocks"
	"chat-relay/internal/models"
	"chat-relay/internal/service"
	"chat-relay/internal/session"
)

type relayFixture struct {
	hub      *Hub
	relay    *Relay
	users    *mocks.UserRepositoryMock
	groups   *mocks.GroupRepositoryMock
	messages *mocks.MessageRepositoryMock
}

func newRelayFixture() *relayFixture {
	users := new(mocks.UserRepositoryMock)
	groups := new(mocks.GroupRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)

	hub := NewHub()
	relay := NewRelay(
		hub,
		session.NewRegistry(),
		service.NewUserService(users, config.Config{JWTSecret: "test", AccessTokenTTLMinutes: 5}),
		service.NewGroupService(groups),
		service.NewMessageService(messages, groups),
		nil,
	)
	return &relayFixture{hub: hub, relay: relay, users: users, groups: groups, messages: messages}
}

func (f *relayFixture) connect(connID string) *Client {
	c := newClient(connID, nil, "127.0.0.1")
	f.hub.Register(c)
	return c
}

// expectIdentity wires the repo lookups a join for a known user performs.
func (f *relayFixture) expectIdentity(user models.User) {
	f.users.On("GetUserByUsername", mock.Anything, user.Username).Return(user, nil)
	f.groups.On("ListGroupsForUser", mock.Anything, user.ID).Return(nil, nil)
	f.groups.On("ListAllGroups", mock.Anything).Return(nil, nil)
}

func dispatch(t *testing.T, relay *Relay, c *Client, cmdType string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	frame, err := json.Marshal(Frame{Type: cmdType, Payload: raw})
	require.NoError(t, err)
	relay.Dispatch(c, frame)
}

func drain(t *testing.T, c *Client) []recvEvent {
	t.Helper()
	var events []recvEvent
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return events
			}
			var ev recvEvent
			require.NoError(t, json.Unmarshal(data, &ev))
			events = append(events, ev)
		default:
			return events
		}
	}
}

func findEvent(t *testing.T, events []recvEvent, eventType string) recvEvent {
	t.Helper()
	for _, ev := range events {
		if ev.Type == eventType {
			return ev
		}
	}
	t.Fatalf("event %q not found in %d events", eventType, len(events))
	return recvEvent{}
}

func hasEvent(events []recvEvent, eventType string) bool {
	for _, ev := range events {
		if ev.Type == eventType {
			return true
		}
	}
	return false
}

func requireAck(t *testing.T, events []recvEvent, cmd string, success bool, code string) Ack {
	t.Helper()
	ev := findEvent(t, events, cmd+":ack")
	var ack Ack
	require.NoError(t, json.Unmarshal(ev.Payload, &ack))
	require.Equal(t, success, ack.Success)
	require.Equal(t, code, ack.Code)
	return ack
}

func TestMalformedFrameRejected(t *testing.T) {
	f := newRelayFixture()
	c := f.connect("conn-1")

	f.relay.Dispatch(c, []byte("{not json"))

	events := drain(t, c)
	ev := findEvent(t, events, EvtAuthError)
	var ack Ack
	require.NoError(t, json.Unmarshal(ev.Payload, &ack))
	require.Equal(t, CodeValidation, ack.Code)
}

func TestCommandBeforeJoinRejected(t *testing.T) {
	f := newRelayFixture()
	c := f.connect("conn-1")

	dispatch(t, f.relay, c, CmdMessageSend, SendMessagePayload{GroupID: 1, Content: "hi"})

	requireAck(t, drain(t, c), CmdMessageSend, false, CodeAuth)
	f.messages.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestJoinDeliversRosterAndGroups(t *testing.T) {
	f := newRelayFixture()
	f.expectIdentity(models.User{ID: 1, Username: "alice", AvatarColor: "#ff0000"})

	c := f.connect("conn-1")
	dispatch(t, f.relay, c, CmdJoin, JoinPayload{Username: "alice"})

	events := drain(t, c)
	ack := requireAck(t, events, CmdJoin, true, "")
	require.NotNil(t, ack.Data)
	findEvent(t, events, EvtUserList)
	findEvent(t, events, EvtGroupList)
	findEvent(t, events, EvtUserJoined)
	require.NotNil(t, c.sess)
	require.Equal(t, 1, c.sess.UserID)
}

func TestJoinWithoutUsernameRejected(t *testing.T) {
	f := newRelayFixture()
	c := f.connect("conn-1")

	dispatch(t, f.relay, c, CmdJoin, JoinPayload{})

	requireAck(t, drain(t, c), CmdJoin, false, CodeValidation)
	require.Nil(t, c.sess)
}

func TestDuplicateUsernameOnLiveConnectionRejected(t *testing.T) {
	f := newRelayFixture()
	f.expectIdentity(models.User{ID: 1, Username: "alice"})

	first := f.connect("conn-1")
	dispatch(t, f.relay, first, CmdJoin, JoinPayload{Username: "alice"})
	drain(t, first)

	second := f.connect("conn-2")
	dispatch(t, f.relay, second, CmdJoin, JoinPayload{Username: "alice"})

	events := drain(t, second)
	ev := findEvent(t, events, EvtAuthError)
	var ack Ack
	require.NoError(t, json.Unmarshal(ev.Payload, &ack))
	require.Equal(t, CodeAuth, ack.Code)
	require.Nil(t, second.sess)

	// the original session is untouched
	require.NotNil(t, first.sess)
	require.Equal(t, "conn-1", first.sess.ConnID)
}

func TestReconnectAfterDeadConnectionRebinds(t *testing.T) {
	f := newRelayFixture()
	f.expectIdentity(models.User{ID: 1, Username: "alice"})

	first := f.connect("conn-1")
	dispatch(t, f.relay, first, CmdJoin, JoinPayload{Username: "alice"})
	drain(t, first)

	// transport died without a clean disconnect
	f.hub.Unregister(first)

	second := f.connect("conn-2")
	dispatch(t, f.relay, second, CmdJoin, JoinPayload{Username: "alice"})

	events := drain(t, second)
	requireAck(t, events, CmdJoin, true, "")
	// a rebind is not a new arrival
	require.False(t, hasEvent(events, EvtUserJoined))
	require.NotNil(t, second.sess)
	require.Equal(t, "conn-2", second.sess.ConnID)
}

func TestDisconnectBroadcastsUserLeft(t *testing.T) {
	f := newRelayFixture()
	f.expectIdentity(models.User{ID: 1, Username: "alice"})
	f.expectIdentity(models.User{ID: 2, Username: "bob"})

	alice := f.connect("conn-1")
	dispatch(t, f.relay, alice, CmdJoin, JoinPayload{Username: "alice"})
	bob := f.connect("conn-2")
	dispatch(t, f.relay, bob, CmdJoin, JoinPayload{Username: "bob"})
	drain(t, alice)
	drain(t, bob)

	f.relay.Disconnect(bob)

	events := drain(t, alice)
	ev := findEvent(t, events, EvtUserLeft)
	var ref models.UserRef
	require.NoError(t, json.Unmarshal(ev.Payload, &ref))
	require.Equal(t, "bob", ref.Username)
}

func TestUnauthenticatedDisconnectIsSilent(t *testing.T) {
	f := newRelayFixture()
	f.expectIdentity(models.User{ID: 1, Username: "alice"})

	alice := f.connect("conn-1")
	dispatch(t, f.relay, alice, CmdJoin, JoinPayload{Username: "alice"})
	drain(t, alice)

	stranger := f.connect("conn-2")
	f.relay.Disconnect(stranger)

	require.Empty(t, drain(t, alice))
}

func TestGroupLifecycle(t *testing.T) {
	f := newRelayFixture()
	f.expectIdentity(models.User{ID: 1, Username: "alice"})
	f.expectIdentity(models.User{ID: 2, Username: "bob"})

	alice := f.connect("conn-1")
	dispatch(t, f.relay, alice, CmdJoin, JoinPayload{Username: "alice"})
	bob := f.connect("conn-2")
	dispatch(t, f.relay, bob, CmdJoin, JoinPayload{Username: "bob"})
	drain(t, alice)
	drain(t, bob)

	devs := models.Group{ID: 7, Name: "Devs", OwnerID: 1}

	// alice creates the group and is subscribed as owner
	f.groups.On("CreateGroup", mock.Anything, "Devs", "", false, (*string)(nil), 1, mock.AnythingOfType("string")).
		Return(devs, nil).Once()
	dispatch(t, f.relay, alice, CmdGroupCreate, CreateGroupPayload{Name: "Devs"})

	requireAck(t, drain(t, alice), CmdGroupCreate, true, "")
	require.True(t, hasEvent(drain(t, bob), EvtGroupCreated))
	require.Equal(t, 1, f.hub.RoomSize(7))

	// bob joins and both see the membership event
	f.groups.On("GetGroup", mock.Anything, 7).Return(devs, nil)
	f.groups.On("AddMember", mock.Anything, 7, 2, models.RoleMember).
		Return(models.GroupMember{GroupID: 7, UserID: 2, Role: models.RoleMember}, nil).Once()
	dispatch(t, f.relay, bob, CmdGroupJoin, JoinGroupPayload{GroupID: 7})

	bobEvents := drain(t, bob)
	requireAck(t, bobEvents, CmdGroupJoin, true, "")
	require.True(t, hasEvent(bobEvents, EvtMemberJoined))
	require.True(t, hasEvent(drain(t, alice), EvtMemberJoined))
	require.Equal(t, 2, f.hub.RoomSize(7))

	// bob sends a message the whole room receives
	f.groups.On("IsMember", mock.Anything, 7, 2).Return(true, nil).Once()
	f.messages.On("CreateMessage", mock.Anything, 7, 2, "hi").
		Return(models.Message{ID: 100, GroupID: 7, UserID: 2, Content: "hi"}, nil).Once()
	dispatch(t, f.relay, bob, CmdMessageSend, SendMessagePayload{GroupID: 7, Content: "hi"})

	bobEvents = drain(t, bob)
	requireAck(t, bobEvents, CmdMessageSend, true, "")
	msgEvent := findEvent(t, drain(t, alice), EvtMessage)
	var received models.MessageWithUser
	require.NoError(t, json.Unmarshal(msgEvent.Payload, &received))
	require.Equal(t, "hi", received.Content)
	require.Equal(t, "bob", received.User.Username)

	// alice removes bob; the room hears it and bob is unsubscribed
	f.groups.On("GetMember", mock.Anything, 7, 1).
		Return(models.GroupMember{GroupID: 7, UserID: 1, Role: models.RoleOwner}, nil).Once()
	f.groups.On("RemoveMember", mock.Anything, 7, 2).Return(nil).Once()
	dispatch(t, f.relay, alice, CmdRemoveMember, RemoveMemberPayload{GroupID: 7, UserID: 2})

	requireAck(t, drain(t, alice), CmdRemoveMember, true, "")
	removeEvent := findEvent(t, drain(t, bob), EvtMemberRemoved)
	var removed MemberRemovedPayload
	require.NoError(t, json.Unmarshal(removeEvent.Payload, &removed))
	require.Equal(t, 2, removed.UserID)
	require.Equal(t, 1, f.hub.RoomSize(7))

	// bob's next send bounces off the membership check
	f.groups.On("IsMember", mock.Anything, 7, 2).Return(false, nil).Once()
	dispatch(t, f.relay, bob, CmdMessageSend, SendMessagePayload{GroupID: 7, Content: "still here?"})

	requireAck(t, drain(t, bob), CmdMessageSend, false, CodeConflict)
	f.groups.AssertExpectations(t)
	f.messages.AssertExpectations(t)
}

func TestGroupDeleteBroadcastsAndDropsRoom(t *testing.T) {
	f := newRelayFixture()
	f.expectIdentity(models.User{ID: 1, Username: "alice"})

	alice := f.connect("conn-1")
	dispatch(t, f.relay, alice, CmdJoin, JoinPayload{Username: "alice"})
	drain(t, alice)

	devs := models.Group{ID: 7, Name: "Devs", OwnerID: 1}
	f.groups.On("CreateGroup", mock.Anything, "Devs", "", false, (*string)(nil), 1, mock.AnythingOfType("string")).
		Return(devs, nil).Once()
	dispatch(t, f.relay, alice, CmdGroupCreate, CreateGroupPayload{Name: "Devs"})
	drain(t, alice)

	f.groups.On("GetGroup", mock.Anything, 7).Return(devs, nil).Once()
	f.groups.On("DeleteGroup", mock.Anything, 7).Return(nil).Once()
	dispatch(t, f.relay, alice, CmdGroupDelete, GroupIDPayload{GroupID: 7})

	events := drain(t, alice)
	requireAck(t, events, CmdGroupDelete, true, "")
	require.True(t, hasEvent(events, EvtGroupDeleted))
	require.Equal(t, 0, f.hub.RoomSize(7))
}

func TestNonOwnerDeleteDenied(t *testing.T) {
	f := newRelayFixture()
	f.expectIdentity(models.User{ID: 2, Username: "bob"})

	bob := f.connect("conn-1")
	dispatch(t, f.relay, bob, CmdJoin, JoinPayload{Username: "bob"})
	drain(t, bob)

	f.groups.On("GetGroup", mock.Anything, 7).
		Return(models.Group{ID: 7, OwnerID: 1}, nil).Once()
	dispatch(t, f.relay, bob, CmdGroupDelete, GroupIDPayload{GroupID: 7})

	requireAck(t, drain(t, bob), CmdGroupDelete, false, CodePermission)
}

func TestHistoryDeliveredOldestFirst(t *testing.T) {
	f := newRelayFixture()
	f.expectIdentity(models.User{ID: 1, Username: "alice"})

	alice := f.connect("conn-1")
	dispatch(t, f.relay, alice, CmdJoin, JoinPayload{Username: "alice"})
	drain(t, alice)

	newestFirst := []models.MessageWithUser{
		{Message: models.Message{ID: 3, GroupID: 7, Content: "third"}},
		{Message: models.Message{ID: 2, GroupID: 7, Content: "second"}},
		{Message: models.Message{ID: 1, GroupID: 7, Content: "first"}},
	}
	f.groups.On("GetGroup", mock.Anything, 7).Return(models.Group{ID: 7, OwnerID: 1}, nil).Once()
	f.messages.On("ListRecentMessages", mock.Anything, 7, 3).Return(newestFirst, nil).Once()

	dispatch(t, f.relay, alice, CmdHistory, HistoryPayload{GroupID: 7, Limit: 3})

	ev := findEvent(t, drain(t, alice), EvtHistory)
	var result HistoryResult
	require.NoError(t, json.Unmarshal(ev.Payload, &result))
	require.Len(t, result.Messages, 3)
	require.Equal(t, "first", result.Messages[0].Content)
	require.Equal(t, "third", result.Messages[2].Content)
}

func TestUnknownCommandRejected(t *testing.T) {
	f := newRelayFixture()
	f.expectIdentity(models.User{ID: 1, Username: "alice"})

	alice := f.connect("conn-1")
	dispatch(t, f.relay, alice, CmdJoin, JoinPayload{Username: "alice"})
	drain(t, alice)

	dispatch(t, f.relay, alice, "group:destroy", struct{}{})

	requireAck(t, drain(t, alice), "group:destroy", false, CodeValidation)
}
