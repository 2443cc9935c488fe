package services

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/cookshelf/recipe-api/internal/dto"
	"github.com/cookshelf/recipe-api/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrUsernameTaken = errors.New("please use a different username")
	ErrEmailTaken    = errors.New("please use a different email address")
	ErrUserNotFound  = errors.New("user not found")
	ErrForbidden     = errors.New("forbidden")
)

type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// Register creates a user with the "user" role.
func (s *UserService) Register(req *dto.RegisterRequest) (*models.User, error) {
	if err := s.checkUnique(0, req.Username, req.Email); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		role, err := ensureRole(tx, models.RoleUser)
		if err != nil {
			return err
		}
		user.Roles = []models.Role{*role}
		if err := tx.Omit("Roles.*").Create(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrUsernameTaken
			}
			return fmt.Errorf("failed to create user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("user registered", "user_id", user.ID)
	return &user, nil
}

// Update replaces username, email and password. Only the user themself or an
// admin may do this.
func (s *UserService) Update(requester *models.User, id uint, req *dto.UpdateUserRequest) (*models.User, error) {
	user, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if requester.ID != user.ID && !requester.IsAdmin() {
		return nil, ErrForbidden
	}
	if err := s.checkUnique(user.ID, req.Username, req.Email); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	err = s.db.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
		"username":      req.Username,
		"email":         req.Email,
		"password_hash": string(hash),
	}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	user.Username = req.Username
	user.Email = req.Email
	user.PasswordHash = string(hash)
	return user, nil
}

func (s *UserService) checkUnique(selfID uint, username, email string) error {
	var count int64
	if err := s.db.Model(&models.User{}).Where("username = ? AND id <> ?", username, selfID).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check username: %w", err)
	}
	if count > 0 {
		return ErrUsernameTaken
	}
	if err := s.db.Model(&models.User{}).Where("email = ? AND id <> ?", email, selfID).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check email: %w", err)
	}
	if count > 0 {
		return ErrEmailTaken
	}
	return nil
}

func (s *UserService) Get(id uint) (*models.User, error) {
	return s.findBy("id = ?", id)
}

func (s *UserService) FindByUsername(username string) (*models.User, error) {
	return s.findBy("username = ?", username)
}

func (s *UserService) FindByEmail(email string) (*models.User, error) {
	return s.findBy("email = ?", email)
}

func (s *UserService) findBy(query string, arg interface{}) (*models.User, error) {
	var user models.User
	if err := s.db.Preload("Roles").Where(query, arg).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

func (s *UserService) List() ([]models.User, error) {
	var users []models.User
	if err := s.db.Preload("Roles").Order("id").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// Exists reports whether a user with the given username or email exists.
// Empty arguments are ignored.
func (s *UserService) Exists(username, email string) (bool, error) {
	q := s.db.Model(&models.User{})
	switch {
	case username != "":
		q = q.Where("username = ?", username)
	case email != "":
		q = q.Where("email = ?", email)
	default:
		return false, nil
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check user: %w", err)
	}
	return count > 0, nil
}

// Populate seeds the admin and user roles plus a bootstrap admin account.
// Running it again leaves existing rows untouched.
func (s *UserService) Populate(username, email, password string) (*models.User, error) {
	var admin models.User
	err := s.db.Transaction(func(tx *gorm.DB) error {
		adminRole, err := ensureRole(tx, models.RoleAdmin)
		if err != nil {
			return err
		}
		userRole, err := ensureRole(tx, models.RoleUser)
		if err != nil {
			return err
		}

		err = tx.Preload("Roles").Where("username = ?", username).First(&admin).Error
		if err == nil {
			return tx.Model(&admin).Association("Roles").Append(adminRole, userRole)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		admin = models.User{
			Username:     username,
			Email:        email,
			PasswordHash: string(hash),
			Roles:        []models.Role{*adminRole, *userRole},
		}
		return tx.Omit("Roles.*").Create(&admin).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to populate: %w", err)
	}
	return &admin, nil
}

func ensureRole(tx *gorm.DB, name string) (*models.Role, error) {
	role := models.Role{Name: name}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&role).Error; err != nil {
		return nil, fmt.Errorf("failed to ensure role %s: %w", name, err)
	}
	if err := tx.Where("name = ?", name).First(&role).Error; err != nil {
		return nil, fmt.Errorf("failed to load role %s: %w", name, err)
	}
	return &role, nil
}
