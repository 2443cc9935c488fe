package groups

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/cookshelf/recipe-api/internal/database"
	"github.com/cookshelf/recipe-api/internal/models"
	"gorm.io/gorm"
)

var (
	ErrAlreadyInGroup   = errors.New("user is already in a group")
	ErrGroupNotFound    = errors.New("group not found")
	ErrUserNotFound     = errors.New("user not found")
	ErrNotMember        = errors.New("user is not a member of this group")
	ErrNotGroupAdmin    = errors.New("only the group admin may do that")
	ErrCannotAddSelf    = errors.New("cannot add self to group")
	ErrAdminSelfRemoval = errors.New("group admin may not remove themselves from the group")
)

// GroupService owns every write to users.user_group_id. Membership changes
// are conditional updates, so the database arbitrates concurrent joins.
type GroupService struct {
	db *gorm.DB
}

func NewGroupService(db *gorm.DB) *GroupService {
	return &GroupService{db: db}
}

// Create makes requester the admin and first member of a new group.
func (s *GroupService) Create(requester *models.User, name string) (*models.UserGroup, error) {
	if requester.UserGroupID != nil {
		return nil, ErrAlreadyInGroup
	}

	group := models.UserGroup{GroupName: name, GroupAdminID: requester.ID}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&group).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyInGroup
			}
			return fmt.Errorf("failed to create group: %w", err)
		}
		return join(tx, requester.ID, group.ID)
	})
	if err != nil {
		return nil, err
	}

	gid := group.ID
	requester.UserGroupID = &gid
	slog.Info("group created", "group_id", group.ID, "user_id", requester.ID)
	return s.load(s.db, group.ID)
}

// Get returns a group to one of its members. Everyone else, including
// callers asking for an id that does not exist, gets ErrGroupNotFound.
func (s *GroupService) Get(requester *models.User, id uint) (*models.UserGroup, error) {
	if !requester.InGroup(id) {
		return nil, ErrGroupNotFound
	}
	return s.load(s.db, id)
}

// AddMember puts target into the group. Only the admin may add members.
func (s *GroupService) AddMember(requester *models.User, groupID, targetID uint) (*models.UserGroup, error) {
	group, err := s.Get(requester, groupID)
	if err != nil {
		return nil, err
	}
	if targetID == requester.ID {
		return nil, ErrCannotAddSelf
	}
	if group.GroupAdminID != requester.ID {
		return nil, ErrNotGroupAdmin
	}

	var target models.User
	if err := s.db.Select("id", "user_group_id").First(&target, targetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	// Membership of this group or any other is treated the same.
	if target.UserGroupID != nil {
		return nil, ErrAlreadyInGroup
	}

	if err := join(s.db, target.ID, groupID); err != nil {
		return nil, err
	}

	slog.Info("group member added", "group_id", groupID, "user_id", target.ID)
	return s.load(s.db, groupID)
}

// AddMemberByEmail resolves email to a user and adds them.
func (s *GroupService) AddMemberByEmail(requester *models.User, groupID uint, email string) (*models.UserGroup, error) {
	group, err := s.Get(requester, groupID)
	if err != nil {
		return nil, err
	}
	if group.GroupAdminID != requester.ID {
		return nil, ErrNotGroupAdmin
	}

	var target models.User
	if err := s.db.Select("id").Where("email = ?", email).First(&target).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return s.AddMember(requester, groupID, target.ID)
}

// RemoveMember takes target out of the group. Members may remove themselves;
// the admin may remove anyone but themself.
func (s *GroupService) RemoveMember(requester *models.User, groupID, targetID uint) (*models.UserGroup, error) {
	group, err := s.Get(requester, groupID)
	if err != nil {
		return nil, err
	}

	isAdmin := group.GroupAdminID == requester.ID
	if isAdmin && targetID == requester.ID {
		return nil, ErrAdminSelfRemoval
	}
	if !isAdmin && targetID != requester.ID {
		return nil, ErrNotGroupAdmin
	}

	res := s.db.Model(&models.User{}).
		Where("id = ? AND user_group_id = ?", targetID, groupID).
		Update("user_group_id", nil)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to remove member: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotMember
	}

	if targetID == requester.ID {
		requester.UserGroupID = nil
	}
	slog.Info("group member removed", "group_id", groupID, "user_id", targetID)
	return s.load(s.db, groupID)
}

// Delete clears the membership of everyone in the group, then removes it.
func (s *GroupService) Delete(requester *models.User, groupID uint) error {
	group, err := s.Get(requester, groupID)
	if err != nil {
		return err
	}
	if group.GroupAdminID != requester.ID {
		return ErrNotGroupAdmin
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).
			Where("user_group_id = ?", groupID).
			Update("user_group_id", nil).Error; err != nil {
			return fmt.Errorf("failed to clear memberships: %w", err)
		}

		res := tx.Delete(&models.UserGroup{}, groupID)
		if res.Error != nil {
			return fmt.Errorf("failed to delete group: %w", res.Error)
		}
		if res.RowsAffected != 1 {
			return database.ErrUnexpectedRowCount
		}
		return nil
	})
	if err != nil {
		return err
	}

	requester.UserGroupID = nil
	slog.Info("group deleted", "group_id", groupID, "user_id", requester.ID)
	return nil
}

func (s *GroupService) load(db *gorm.DB, id uint) (*models.UserGroup, error) {
	var group models.UserGroup
	err := db.
		Preload("GroupAdmin").
		Preload("Users", func(db *gorm.DB) *gorm.DB { return db.Order("users.id") }).
		First(&group, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to load group: %w", err)
	}
	return &group, nil
}

// join sets user's group only if they have none.
func join(db *gorm.DB, userID, groupID uint) error {
	res := db.Model(&models.User{}).
		Where("id = ? AND user_group_id IS NULL", userID).
		Update("user_group_id", groupID)
	if res.Error != nil {
		return fmt.Errorf("failed to join group: %w", res.Error)
	}
	if res.RowsAffected != 1 {
		return ErrAlreadyInGroup
	}
	return nil
}
