package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/teamforge/backend/internal/models"
	"github.com/teamforge/backend/internal/utils"
	"gorm.io/gorm"
)

var (
	ErrEmailTaken         = errors.New("email already in use")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// IdentityService owns user identities: credentials, profile fields and
// the invitation metadata stashed on an identity between email dispatch
// and link redemption.
type IdentityService struct {
	db     *gorm.DB
	mailer Mailer
}

func NewIdentityService(db *gorm.DB, mailer Mailer) *IdentityService {
	return &IdentityService{db: db, mailer: mailer}
}

// CreateUser registers a new identity with a bcrypt-hashed password.
// A password-less placeholder left behind by an invitation dispatch is
// claimed instead of rejected.
func (s *IdentityService) CreateUser(email, password, name string) (*models.User, error) {
	var existing models.User
	err := s.db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		if existing.Password != "" {
			return nil, ErrEmailTaken
		}
		hashed, err := utils.HashPassword(password)
		if err != nil {
			return nil, err
		}
		updates := map[string]interface{}{"password": hashed}
		if name != "" {
			updates["name"] = name
		}
		if err := s.db.Model(&existing).Updates(updates).Error; err != nil {
			return nil, err
		}
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hashed, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := models.User{
		ID:       uuid.NewString(),
		Email:    email,
		Password: hashed,
		Name:     name,
	}
	if err := s.db.Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// InviteUser ensures an identity exists for the email, stashes the
// invitation metadata on it and dispatches the invitation email. The
// email send is awaited so callers can compensate on failure.
func (s *IdentityService) InviteUser(email, teamName, role string, teamID, invitationID uint, inviteURL string) (*models.User, error) {
	var user models.User
	err := s.db.Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Placeholder identity with no credentials yet; the invitee
		// sets a password when redeeming the link.
		user = models.User{
			ID:    uuid.NewString(),
			Email: email,
		}
		if err := s.db.Create(&user).Error; err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	if err := s.db.Model(&user).Updates(map[string]interface{}{
		"invited_team_id": teamID,
		"invited_role":    role,
		"invitation_id":   invitationID,
	}).Error; err != nil {
		return nil, err
	}

	if err := s.mailer.SendTeamInvitation(email, teamName, role, inviteURL); err != nil {
		return nil, fmt.Errorf("send invitation email: %w", err)
	}
	return &user, nil
}

// ClearInvitationMetadata removes the pending-invite fields once the
// membership link has completed. Best effort at call sites.
func (s *IdentityService) ClearInvitationMetadata(userID string) error {
	return s.db.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"invited_team_id": nil,
		"invited_role":    "",
		"invitation_id":   nil,
	}).Error
}

func (s *IdentityService) GetByID(id string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *IdentityService) GetByEmail(email string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// VerifyPassword authenticates an identity by email and password.
func (s *IdentityService) VerifyPassword(email, password string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if user.Password == "" || !utils.CheckPassword(password, user.Password) {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

func (s *IdentityService) UpdatePassword(userID, newPassword string) error {
	hashed, err := utils.HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.db.Model(&models.User{}).Where("id = ?", userID).Update("password", hashed).Error
}

// UpdateProfile changes the display name and email. Email changes are
// rejected when the address is already claimed by another identity.
func (s *IdentityService) UpdateProfile(userID, name, email string) error {
	var count int64
	if err := s.db.Model(&models.User{}).
		Where("email = ? AND id <> ?", email, userID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrEmailTaken
	}
	return s.db.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"name":  name,
		"email": email,
	}).Error
}

// DeleteUser removes the identity row. Hard delete; memberships are the
// caller's responsibility.
func (s *IdentityService) DeleteUser(userID string) error {
	return s.db.Where("id = ?", userID).Delete(&models.User{}).Error
}
