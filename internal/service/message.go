package service

import (
	"context"
	"strings"

	"chat-relay/internal/models"
	"chat-relay/internal/repositories"
)

// DefaultHistoryLimit caps a history request.
const DefaultHistoryLimit = 100

// MessageService is the append-only message log per group. Append also bumps
// the owning group's last-activity timestamp (done transactionally in the
// repository).
type MessageService struct {
	messages repositories.MessageRepository
	groups   repositories.GroupRepository
}

// NewMessageService constructs a MessageService.
func NewMessageService(messages repositories.MessageRepository, groups repositories.GroupRepository) *MessageService {
	return &MessageService{messages: messages, groups: groups}
}

// Append stores a message from a current group member. Blank content and
// non-members are rejected.
func (s *MessageService) Append(ctx context.Context, groupID, userID int, content string) (models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return models.Message{}, ErrEmptyContent
	}

	member, err := s.groups.IsMember(ctx, groupID, userID)
	if err != nil {
		return models.Message{}, err
	}
	if !member {
		return models.Message{}, ErrNotMember
	}

	return s.messages.CreateMessage(ctx, groupID, userID, content)
}

// History returns up to limit messages newest-first. Callers that show a
// transcript reverse it with OldestFirst.
func (s *MessageService) History(ctx context.Context, groupID, limit int) ([]models.MessageWithUser, error) {
	if limit <= 0 || limit > DefaultHistoryLimit {
		limit = DefaultHistoryLimit
	}
	if _, err := s.groups.GetGroup(ctx, groupID); err != nil {
		return nil, mapRepoErr(err)
	}
	return s.messages.ListRecentMessages(ctx, groupID, limit)
}

// OldestFirst reverses a newest-first page into display order.
func OldestFirst(msgs []models.MessageWithUser) []models.MessageWithUser {
	out := make([]models.MessageWithUser, len(msgs))
	for i, m := range msgs {
		out[len(msgs)-1-i] = m
	}
	return out
}
