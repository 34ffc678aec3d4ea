package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chat-relay/internal/models"
)

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) CreateUser(ctx context.Context, username, passwordHash string, email *string, avatarColor, theme string) (models.User, error) {
	args := m.Called(ctx, username, passwordHash, email, avatarColor, theme)
	var out models.User
	if val := args.Get(0); val != nil {
		out = val.(models.User)
	}
	return out, args.Error(1)
}

func (m *UserRepositoryMock) GetUser(ctx context.Context, id int) (models.User, error) {
	args := m.Called(ctx, id)
	var out models.User
	if val := args.Get(0); val != nil {
		out = val.(models.User)
	}
	return out, args.Error(1)
}

func (m *UserRepositoryMock) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	args := m.Called(ctx, username)
	var out models.User
	if val := args.Get(0); val != nil {
		out = val.(models.User)
	}
	return out, args.Error(1)
}

func (m *UserRepositoryMock) UpdateUser(ctx context.Context, id int, username, passwordHash, email, avatarColor, theme *string) (models.User, error) {
	args := m.Called(ctx, id, username, passwordHash, email, avatarColor, theme)
	var out models.User
	if val := args.Get(0); val != nil {
		out = val.(models.User)
	}
	return out, args.Error(1)
}

func (m *UserRepositoryMock) UpdateTheme(ctx context.Context, id int, theme string) (models.User, error) {
	args := m.Called(ctx, id, theme)
	var out models.User
	if val := args.Get(0); val != nil {
		out = val.(models.User)
	}
	return out, args.Error(1)
}

func (m *UserRepositoryMock) TouchLastLogin(ctx context.Context, id int) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *UserRepositoryMock) DeleteUser(ctx context.Context, id int) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type GroupRepositoryMock struct {
	mock.Mock
}

func (m *GroupRepositoryMock) CreateGroup(ctx context.Context, name, description string, hasPassword bool, password *string, ownerID int, avatarColor string) (models.Group, error) {
	args := m.Called(ctx, name, description, hasPassword, password, ownerID, avatarColor)
	var out models.Group
	if val := args.Get(0); val != nil {
		out = val.(models.Group)
	}
	return out, args.Error(1)
}

func (m *GroupRepositoryMock) GetGroup(ctx context.Context, groupID int) (models.Group, error) {
	args := m.Called(ctx, groupID)
	var out models.Group
	if val := args.Get(0); val != nil {
		out = val.(models.Group)
	}
	return out, args.Error(1)
}

func (m *GroupRepositoryMock) UpdateGroup(ctx context.Context, groupID int, patch models.GroupPatch) (models.Group, error) {
	args := m.Called(ctx, groupID, patch)
	var out models.Group
	if val := args.Get(0); val != nil {
		out = val.(models.Group)
	}
	return out, args.Error(1)
}

func (m *GroupRepositoryMock) DeleteGroup(ctx context.Context, groupID int) error {
	args := m.Called(ctx, groupID)
	return args.Error(0)
}

func (m *GroupRepositoryMock) ListAllGroups(ctx context.Context) ([]models.Group, error) {
	args := m.Called(ctx)
	var out []models.Group
	if val := args.Get(0); val != nil {
		out = val.([]models.Group)
	}
	return out, args.Error(1)
}

func (m *GroupRepositoryMock) ListGroupsForUser(ctx context.Context, userID int) ([]models.Group, error) {
	args := m.Called(ctx, userID)
	var out []models.Group
	if val := args.Get(0); val != nil {
		out = val.([]models.Group)
	}
	return out, args.Error(1)
}

func (m *GroupRepositoryMock) TouchActivity(ctx context.Context, groupID int) error {
	args := m.Called(ctx, groupID)
	return args.Error(0)
}

func (m *GroupRepositoryMock) AddMember(ctx context.Context, groupID, userID int, role string) (models.GroupMember, error) {
	args := m.Called(ctx, groupID, userID, role)
	var out models.GroupMember
	if val := args.Get(0); val != nil {
		out = val.(models.GroupMember)
	}
	return out, args.Error(1)
}

func (m *GroupRepositoryMock) RemoveMember(ctx context.Context, groupID, userID int) error {
	args := m.Called(ctx, groupID, userID)
	return args.Error(0)
}

func (m *GroupRepositoryMock) UpdateMemberRole(ctx context.Context, groupID, userID int, role string) (models.GroupMember, error) {
	args := m.Called(ctx, groupID, userID, role)
	var out models.GroupMember
	if val := args.Get(0); val != nil {
		out = val.(models.GroupMember)
	}
	return out, args.Error(1)
}

func (m *GroupRepositoryMock) GetMember(ctx context.Context, groupID, userID int) (models.GroupMember, error) {
	args := m.Called(ctx, groupID, userID)
	var out models.GroupMember
	if val := args.Get(0); val != nil {
		out = val.(models.GroupMember)
	}
	return out, args.Error(1)
}

func (m *GroupRepositoryMock) ListMembers(ctx context.Context, groupID int) ([]models.GroupMember, error) {
	args := m.Called(ctx, groupID)
	var out []models.GroupMember
	if val := args.Get(0); val != nil {
		out = val.([]models.GroupMember)
	}
	return out, args.Error(1)
}

func (m *GroupRepositoryMock) IsMember(ctx context.Context, groupID, userID int) (bool, error) {
	args := m.Called(ctx, groupID, userID)
	return args.Bool(0), args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, groupID, userID int, content string) (models.Message, error) {
	args := m.Called(ctx, groupID, userID, content)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) ListRecentMessages(ctx context.Context, groupID, limit int) ([]models.MessageWithUser, error) {
	args := m.Called(ctx, groupID, limit)
	var out []models.MessageWithUser
	if val := args.Get(0); val != nil {
		out = val.([]models.MessageWithUser)
	}
	return out, args.Error(1)
}
