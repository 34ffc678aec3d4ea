package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"chat-relay/internal/models"
)

var (
	ErrGroupNotFound  = errors.New("group not found")
	ErrMemberNotFound = errors.New("member not found")
	ErrAlreadyMember  = errors.New("already a member")
)

// GroupRepository abstracts group and membership persistence. The membership
// table is the only source of truth for member lists.
type GroupRepository interface {
	CreateGroup(ctx context.Context, name, description string, hasPassword bool, password *string, ownerID int, avatarColor string) (models.Group, error)
	GetGroup(ctx context.Context, groupID int) (models.Group, error)
	UpdateGroup(ctx context.Context, groupID int, patch models.GroupPatch) (models.Group, error)
	DeleteGroup(ctx context.Context, groupID int) error
	ListAllGroups(ctx context.Context) ([]models.Group, error)
	ListGroupsForUser(ctx context.Context, userID int) ([]models.Group, error)
	TouchActivity(ctx context.Context, groupID int) error

	AddMember(ctx context.Context, groupID, userID int, role string) (models.GroupMember, error)
	RemoveMember(ctx context.Context, groupID, userID int) error
	UpdateMemberRole(ctx context.Context, groupID, userID int, role string) (models.GroupMember, error)
	GetMember(ctx context.Context, groupID, userID int) (models.GroupMember, error)
	ListMembers(ctx context.Context, groupID int) ([]models.GroupMember, error)
	IsMember(ctx context.Context, groupID, userID int) (bool, error)
}

// GroupRepo is a sqlx implementation of GroupRepository.
type GroupRepo struct {
	db *sqlx.DB
}

// NewGroupRepo constructs a GroupRepo.
func NewGroupRepo(db *sqlx.DB) *GroupRepo {
	return &GroupRepo{db: db}
}

const groupColumns = `id, name, description, has_password, password, owner_id, avatar_color, created_at, last_activity`
const memberColumns = `id, group_id, user_id, role, joined_at`

// CreateGroup creates a group and its owner membership atomically.
func (r *GroupRepo) CreateGroup(ctx context.Context, name, description string, hasPassword bool, password *string, ownerID int, avatarColor string) (models.Group, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Group{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var group models.Group
	if err = tx.GetContext(ctx, &group,
		`INSERT INTO groups (name, description, has_password, password, owner_id, avatar_color) VALUES ($1, $2, $3, $4, $5, $6) RETURNING `+groupColumns,
		name, description, hasPassword, password, ownerID, avatarColor); err != nil {
		return models.Group{}, err
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO group_members (group_id, user_id, role) VALUES ($1, $2, $3)`,
		group.ID, ownerID, models.RoleOwner); err != nil {
		return models.Group{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Group{}, err
	}
	return group, nil
}

// GetGroup fetches a single group.
func (r *GroupRepo) GetGroup(ctx context.Context, groupID int) (models.Group, error) {
	var group models.Group
	err := r.db.GetContext(ctx, &group, `SELECT `+groupColumns+` FROM groups WHERE id=$1`, groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Group{}, ErrGroupNotFound
	}
	return group, err
}

// UpdateGroup applies the non-nil patch fields and bumps last_activity.
// Turning has_password off clears the stored password.
func (r *GroupRepo) UpdateGroup(ctx context.Context, groupID int, patch models.GroupPatch) (models.Group, error) {
	var group models.Group
	err := r.db.GetContext(ctx, &group, `UPDATE groups SET
            name = COALESCE($2, name),
            description = COALESCE($3, description),
            avatar_color = COALESCE($4, avatar_color),
            has_password = COALESCE($5, has_password),
            password = CASE
                WHEN $5::boolean IS NOT NULL AND NOT $5::boolean THEN NULL
                WHEN $6::text IS NOT NULL THEN $6::text
                ELSE password
            END,
            last_activity = NOW()
        WHERE id=$1 RETURNING `+groupColumns,
		groupID, patch.Name, patch.Description, patch.AvatarColor, patch.HasPassword, patch.Password)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Group{}, ErrGroupNotFound
	}
	return group, err
}

// DeleteGroup removes the group; memberships and messages cascade.
func (r *GroupRepo) DeleteGroup(ctx context.Context, groupID int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM groups WHERE id=$1`, groupID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrGroupNotFound
	}
	return nil
}

// ListAllGroups returns every group ordered by most recent activity.
func (r *GroupRepo) ListAllGroups(ctx context.Context) ([]models.Group, error) {
	var groups []models.Group
	err := r.db.SelectContext(ctx, &groups, `SELECT `+groupColumns+` FROM groups ORDER BY last_activity DESC`)
	return groups, err
}

// ListGroupsForUser returns groups that include the user.
func (r *GroupRepo) ListGroupsForUser(ctx context.Context, userID int) ([]models.Group, error) {
	var groups []models.Group
	err := r.db.SelectContext(ctx, &groups,
		`SELECT g.id, g.name, g.description, g.has_password, g.password, g.owner_id, g.avatar_color, g.created_at, g.last_activity
         FROM groups g INNER JOIN group_members gm ON gm.group_id = g.id
         WHERE gm.user_id=$1 ORDER BY g.last_activity DESC`, userID)
	return groups, err
}

// TouchActivity bumps the group's last_activity timestamp.
func (r *GroupRepo) TouchActivity(ctx context.Context, groupID int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE groups SET last_activity = NOW() WHERE id=$1`, groupID)
	return err
}

// AddMember inserts a membership row and bumps activity. A duplicate
// (group, user) pair maps to ErrAlreadyMember.
func (r *GroupRepo) AddMember(ctx context.Context, groupID, userID int, role string) (models.GroupMember, error) {
	var member models.GroupMember
	err := r.db.GetContext(ctx, &member,
		`INSERT INTO group_members (group_id, user_id, role) VALUES ($1, $2, $3) RETURNING `+memberColumns,
		groupID, userID, role)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return models.GroupMember{}, ErrAlreadyMember
		}
		return models.GroupMember{}, err
	}
	_ = r.TouchActivity(ctx, groupID)
	return member, nil
}

// RemoveMember deletes a membership row and bumps activity.
func (r *GroupRepo) RemoveMember(ctx context.Context, groupID, userID int) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM group_members WHERE group_id=$1 AND user_id=$2`, groupID, userID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMemberNotFound
	}
	return r.TouchActivity(ctx, groupID)
}

// UpdateMemberRole sets the member's role and bumps activity.
func (r *GroupRepo) UpdateMemberRole(ctx context.Context, groupID, userID int, role string) (models.GroupMember, error) {
	var member models.GroupMember
	err := r.db.GetContext(ctx, &member,
		`UPDATE group_members SET role=$3 WHERE group_id=$1 AND user_id=$2 RETURNING `+memberColumns,
		groupID, userID, role)
	if errors.Is(err, sql.ErrNoRows) {
		return models.GroupMember{}, ErrMemberNotFound
	}
	if err != nil {
		return models.GroupMember{}, err
	}
	_ = r.TouchActivity(ctx, groupID)
	return member, nil
}

// GetMember fetches one membership row.
func (r *GroupRepo) GetMember(ctx context.Context, groupID, userID int) (models.GroupMember, error) {
	var member models.GroupMember
	err := r.db.GetContext(ctx, &member,
		`SELECT `+memberColumns+` FROM group_members WHERE group_id=$1 AND user_id=$2`, groupID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.GroupMember{}, ErrMemberNotFound
	}
	return member, err
}

// ListMembers returns the group's membership rows.
func (r *GroupRepo) ListMembers(ctx context.Context, groupID int) ([]models.GroupMember, error) {
	var members []models.GroupMember
	err := r.db.SelectContext(ctx, &members,
		`SELECT `+memberColumns+` FROM group_members WHERE group_id=$1 ORDER BY joined_at ASC`, groupID)
	return members, err
}

// IsMember checks membership.
func (r *GroupRepo) IsMember(ctx context.Context, groupID, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM group_members WHERE group_id=$1 AND user_id=$2)`, groupID, userID)
	return exists, err
}
