package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"chat-relay/internal/models"
	"chat-relay/internal/repositories"
)

// GroupService owns group records, membership and role rules. Mutating calls
// serialize behind a single mutex so that concurrent joins, removals and role
// changes on the same group cannot interleave between the permission check and
// the write.
type GroupService struct {
	mu   sync.Mutex
	repo repositories.GroupRepository
}

// NewGroupService constructs a GroupService.
func NewGroupService(repo repositories.GroupRepository) *GroupService {
	return &GroupService{repo: repo}
}

// Create makes a new group and installs the creator as owner atomically.
func (s *GroupService) Create(ctx context.Context, name, description string, ownerID int, hasPassword bool, password, avatarColor string) (models.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Group{}, ErrEmptyName
	}
	var pw *string
	if hasPassword {
		if password == "" {
			return models.Group{}, ErrPasswordRequired
		}
		pw = &password
	}
	if avatarColor == "" {
		avatarColor = RandomColor()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.CreateGroup(ctx, name, description, hasPassword, pw, ownerID, avatarColor)
}

// Join adds the user as a member after the password gate. Existing members get
// ErrAlreadyMember rather than a duplicate row.
func (s *GroupService) Join(ctx context.Context, groupID, userID int, password string) (models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	group, err := s.repo.GetGroup(ctx, groupID)
	if err != nil {
		return models.Group{}, mapRepoErr(err)
	}
	if group.HasPassword {
		if password == "" {
			return models.Group{}, ErrPasswordRequired
		}
		if group.Password == nil || *group.Password != password {
			return models.Group{}, ErrWrongPassword
		}
	}

	if _, err := s.repo.AddMember(ctx, groupID, userID, models.RoleMember); err != nil {
		return models.Group{}, mapRepoErr(err)
	}
	return group, nil
}

// Leave removes the caller's own membership. The owner cannot leave while
// holding the role; the group outlives an otherwise emptied membership and is
// only ever deleted by an explicit owner delete.
func (s *GroupService) Leave(ctx context.Context, groupID, userID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	group, err := s.repo.GetGroup(ctx, groupID)
	if err != nil {
		return mapRepoErr(err)
	}
	if group.OwnerID == userID {
		return ErrPermissionDenied
	}
	return mapRepoErr(s.repo.RemoveMember(ctx, groupID, userID))
}

// UpdateInfo applies a patch on behalf of an owner or manager.
func (s *GroupService) UpdateInfo(ctx context.Context, groupID, requesterID int, patch models.GroupPatch) (models.Group, error) {
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return models.Group{}, ErrEmptyName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	group, err := s.repo.GetGroup(ctx, groupID)
	if err != nil {
		return models.Group{}, mapRepoErr(err)
	}
	role, err := s.roleOf(ctx, groupID, requesterID)
	if err != nil {
		return models.Group{}, err
	}
	if role != models.RoleOwner && role != models.RoleManager {
		return models.Group{}, ErrPermissionDenied
	}
	if patch.HasPassword != nil && *patch.HasPassword && patch.Password == nil && !group.HasPassword {
		return models.Group{}, ErrPasswordRequired
	}

	return s.repo.UpdateGroup(ctx, groupID, patch)
}

// Delete removes the group with all memberships and messages. Owner only.
func (s *GroupService) Delete(ctx context.Context, groupID, requesterID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	group, err := s.repo.GetGroup(ctx, groupID)
	if err != nil {
		return mapRepoErr(err)
	}
	if group.OwnerID != requesterID {
		return ErrPermissionDenied
	}
	return mapRepoErr(s.repo.DeleteGroup(ctx, groupID))
}

// SetRole promotes or demotes a member between manager and member. Only the
// owner may do this, and the owner role itself is immutable here.
func (s *GroupService) SetRole(ctx context.Context, groupID, requesterID, targetUserID int, newRole string) (models.GroupMember, error) {
	if !models.ValidRole(newRole) || newRole == models.RoleOwner {
		return models.GroupMember{}, ErrInvalidRole
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	group, err := s.repo.GetGroup(ctx, groupID)
	if err != nil {
		return models.GroupMember{}, mapRepoErr(err)
	}
	if group.OwnerID != requesterID {
		return models.GroupMember{}, ErrPermissionDenied
	}
	if targetUserID == group.OwnerID {
		return models.GroupMember{}, ErrOwnerImmutable
	}

	member, err := s.repo.UpdateMemberRole(ctx, groupID, targetUserID, newRole)
	if err != nil {
		return models.GroupMember{}, mapRepoErr(err)
	}
	return member, nil
}

// RemoveMember removes a member. Self-removal is always allowed except for the
// owner; removing someone else takes owner or manager rights, and a manager
// may not remove the owner or another manager.
func (s *GroupService) RemoveMember(ctx context.Context, groupID, requesterID, targetUserID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	group, err := s.repo.GetGroup(ctx, groupID)
	if err != nil {
		return mapRepoErr(err)
	}
	if targetUserID == group.OwnerID {
		// the owner invariant: exactly one owner, always a member
		return ErrPermissionDenied
	}

	if targetUserID != requesterID {
		requesterRole, err := s.roleOf(ctx, groupID, requesterID)
		if err != nil {
			return err
		}
		if requesterRole != models.RoleOwner && requesterRole != models.RoleManager {
			return ErrPermissionDenied
		}
		if requesterRole == models.RoleManager {
			targetRole, err := s.roleOf(ctx, groupID, targetUserID)
			if err != nil {
				return err
			}
			if targetRole == models.RoleOwner || targetRole == models.RoleManager {
				return ErrPermissionDenied
			}
		}
	}

	return mapRepoErr(s.repo.RemoveMember(ctx, groupID, targetUserID))
}

// Get fetches one group.
func (s *GroupService) Get(ctx context.Context, groupID int) (models.Group, error) {
	group, err := s.repo.GetGroup(ctx, groupID)
	return group, mapRepoErr(err)
}

// ListAll returns every group, most recently active first.
func (s *GroupService) ListAll(ctx context.Context) ([]models.Group, error) {
	return s.repo.ListAllGroups(ctx)
}

// ListByUser returns the groups the user belongs to.
func (s *GroupService) ListByUser(ctx context.Context, userID int) ([]models.Group, error) {
	return s.repo.ListGroupsForUser(ctx, userID)
}

// Members returns the group's membership rows.
func (s *GroupService) Members(ctx context.Context, groupID int) ([]models.GroupMember, error) {
	members, err := s.repo.ListMembers(ctx, groupID)
	return members, mapRepoErr(err)
}

// IsMember checks membership.
func (s *GroupService) IsMember(ctx context.Context, groupID, userID int) (bool, error) {
	return s.repo.IsMember(ctx, groupID, userID)
}

func (s *GroupService) roleOf(ctx context.Context, groupID, userID int) (string, error) {
	member, err := s.repo.GetMember(ctx, groupID, userID)
	if errors.Is(err, repositories.ErrMemberNotFound) {
		return "", ErrNotMember
	}
	if err != nil {
		return "", err
	}
	return member.Role, nil
}

func mapRepoErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrGroupNotFound):
		return ErrGroupNotFound
	case errors.Is(err, repositories.ErrMemberNotFound):
		return ErrNotMember
	case errors.Is(err, repositories.ErrAlreadyMember):
		return ErrAlreadyMember
	default:
		return err
	}
}
