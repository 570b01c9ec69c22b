package services

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/teamforge/backend/internal/config"
	"github.com/teamforge/backend/internal/models"
	"github.com/teamforge/backend/internal/utils"
	"github.com/teamforge/backend/pkg/logger"
	"gorm.io/gorm"
)

var (
	ErrWrongPassword       = errors.New("current password is incorrect")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
)

// AuthService owns sign-up, sign-in and account lifecycle. Sign-up is
// the one place where a fresh identity may need rolling back: when the
// invited path rejects the invitation, or team creation fails.
type AuthService struct {
	db         *gorm.DB
	identity   *IdentityService
	invitation *InvitationService
	activity   *ActivityService
	jwtConfig  *config.JWTConfig
	configSvc  *SystemConfigService
}

func NewAuthService(db *gorm.DB, identity *IdentityService, invitation *InvitationService, activity *ActivityService, jwtCfg *config.JWTConfig) *AuthService {
	return &AuthService{
		db:         db,
		identity:   identity,
		invitation: invitation,
		activity:   activity,
		jwtConfig:  jwtCfg,
		configSvc:  NewSystemConfigService(db),
	}
}

type AuthResult struct {
	AccessToken     string
	AccessExpireAt  time.Time
	RefreshToken    string
	RefreshExpireAt time.Time
	User            *models.User
	Team            *models.Team
}

type RefreshResult struct {
	AccessToken     string
	AccessExpireAt  time.Time
	RefreshToken    string
	RefreshExpireAt time.Time
}

// SignUp creates an identity and places it in a team: the invited team
// when a valid invitation id accompanies the request, a fresh
// single-owner team otherwise.
func (s *AuthService) SignUp(email, password string, inviteID *uint, clientIP, userAgent string) (*AuthResult, error) {
	user, err := s.identity.CreateUser(email, password, "")
	if err != nil {
		return nil, err
	}

	var team *models.Team
	if inviteID != nil {
		team, err = s.invitation.AcceptAtSignUp(user.ID, email, *inviteID, clientIP)
		if err != nil {
			// The identity must not outlive a failed placement.
			if delErr := s.identity.DeleteUser(user.ID); delErr != nil {
				logger.Warn().Err(delErr).Str("user_id", user.ID).Msg("failed to roll back identity after rejected invitation")
			}
			return nil, err
		}
	} else {
		team, err = s.createOwnerTeam(user, clientIP)
		if err != nil {
			if delErr := s.identity.DeleteUser(user.ID); delErr != nil {
				logger.Warn().Err(delErr).Str("user_id", user.ID).Msg("failed to roll back identity after team creation error")
			}
			return nil, err
		}
	}

	s.activity.Record(&team.ID, user.ID, models.ActivitySignUp, clientIP)

	result, err := s.issueTokens(user, clientIP, userAgent)
	if err != nil {
		return nil, err
	}
	result.Team = team
	return result, nil
}

func (s *AuthService) createOwnerTeam(user *models.User, clientIP string) (*models.Team, error) {
	team := models.Team{Name: fmt.Sprintf("%s's Team", user.Email)}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&team).Error; err != nil {
			return err
		}
		member := models.TeamMember{
			UserID: user.ID,
			TeamID: team.ID,
			Role:   models.RoleOwner,
		}
		return tx.Create(&member).Error
	})
	if err != nil {
		return nil, err
	}

	s.activity.Record(&team.ID, user.ID, models.ActivityCreateTeam, clientIP)
	return &team, nil
}

// SignIn authenticates by email and password and issues a token pair.
func (s *AuthService) SignIn(email, password, clientIP, userAgent string) (*AuthResult, error) {
	user, err := s.identity.VerifyPassword(email, password)
	if err != nil {
		return nil, err
	}

	s.activity.Record(s.teamIDFor(user.ID), user.ID, models.ActivitySignIn, clientIP)
	return s.issueTokens(user, clientIP, userAgent)
}

// SignOut revokes the presented refresh token and records the action.
func (s *AuthService) SignOut(userID, refreshToken, clientIP string) error {
	if err := s.RevokeRefreshToken(refreshToken); err != nil {
		return err
	}
	s.activity.Record(s.teamIDFor(userID), userID, models.ActivitySignOut, clientIP)
	return nil
}

// UpdatePassword verifies the current password before replacing it.
func (s *AuthService) UpdatePassword(userID, currentPassword, newPassword, clientIP string) error {
	user, err := s.identity.GetByID(userID)
	if err != nil {
		return err
	}
	if !utils.CheckPassword(currentPassword, user.Password) {
		return ErrWrongPassword
	}
	if err := s.identity.UpdatePassword(userID, newPassword); err != nil {
		return err
	}

	s.activity.Record(s.teamIDFor(userID), userID, models.ActivityUpdatePassword, clientIP)
	return nil
}

// SetInitialPassword sets credentials on an invited identity that has
// none yet. Rejected once a password exists.
func (s *AuthService) SetInitialPassword(userID, newPassword, clientIP string) error {
	user, err := s.identity.GetByID(userID)
	if err != nil {
		return err
	}
	if user.Password != "" {
		return errors.New("password already set")
	}
	if err := s.identity.UpdatePassword(userID, newPassword); err != nil {
		return err
	}

	s.activity.Record(s.teamIDFor(userID), userID, models.ActivityUpdatePassword, clientIP)
	return nil
}

// UpdateAccount changes the caller's display name and email.
func (s *AuthService) UpdateAccount(userID, name, email, clientIP string) error {
	if err := s.identity.UpdateProfile(userID, name, email); err != nil {
		return err
	}
	s.activity.Record(s.teamIDFor(userID), userID, models.ActivityUpdateAccount, clientIP)
	return nil
}

// DeleteAccount removes the caller's membership and identity after a
// password confirmation. Co-members and their rows are untouched.
func (s *AuthService) DeleteAccount(userID, password, clientIP string) error {
	user, err := s.identity.GetByID(userID)
	if err != nil {
		return err
	}
	if !utils.CheckPassword(password, user.Password) {
		return ErrWrongPassword
	}

	// Recorded before the rows disappear so the team feed keeps the
	// departure visible.
	s.activity.Record(s.teamIDFor(userID), userID, models.ActivityDeleteAccount, clientIP)
	s.activity.Flush()

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&models.TeamMember{}).Error; err != nil {
			return err
		}
		now := time.Now()
		if err := tx.Model(&models.RefreshToken{}).
			Where("user_id = ? AND revoked_at IS NULL", userID).
			Update("revoked_at", now).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", userID).Delete(&models.User{}).Error
	})
}

// Refresh rotates a refresh token: the old one is revoked and linked to
// its replacement inside one transaction.
func (s *AuthService) Refresh(refreshToken string, clientIP, userAgent string) (*RefreshResult, error) {
	if refreshToken == "" {
		return nil, ErrInvalidRefreshToken
	}

	hash := hashRefreshToken(refreshToken)

	var stored models.RefreshToken
	if err := s.db.Where("token_hash = ?", hash).First(&stored).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}

	if stored.RevokedAt != nil {
		return nil, errors.New("refresh token revoked")
	}
	if time.Now().After(stored.ExpiresAt) {
		return nil, errors.New("refresh token expired")
	}

	user, err := s.identity.GetByID(stored.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("user not found")
		}
		return nil, err
	}

	accessHours := s.getAccessTokenExpireHours()
	refreshHours := s.getRefreshTokenExpireHours()

	newAccessToken, err := utils.GenerateToken(user.ID, user.Email, accessHours)
	if err != nil {
		return nil, err
	}

	newRefreshToken, newRefreshHash, err := generateRefreshToken()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	newRefresh := models.RefreshToken{
		UserID:    user.ID,
		TokenHash: newRefreshHash,
		ExpiresAt: now.Add(time.Duration(refreshHours) * time.Hour),
	}
	if clientIP != "" {
		newRefresh.CreatedByIP = clientIP
	}
	if userAgent != "" {
		newRefresh.UserAgent = userAgent
	}

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&newRefresh).Error; err != nil {
			return err
		}
		return tx.Model(&stored).Updates(map[string]interface{}{
			"revoked_at":           now,
			"replaced_by_token_id": newRefresh.ID,
		}).Error
	}); err != nil {
		return nil, err
	}

	return &RefreshResult{
		AccessToken:     newAccessToken,
		AccessExpireAt:  time.Now().Add(time.Duration(accessHours) * time.Hour),
		RefreshToken:    newRefreshToken,
		RefreshExpireAt: newRefresh.ExpiresAt,
	}, nil
}

func (s *AuthService) RevokeRefreshToken(refreshToken string) error {
	if refreshToken == "" {
		return nil
	}

	hash := hashRefreshToken(refreshToken)
	now := time.Now()
	return s.db.Model(&models.RefreshToken{}).
		Where("token_hash = ? AND revoked_at IS NULL", hash).
		Update("revoked_at", now).Error
}

// PurgeStaleRefreshTokens deletes rows that are expired or were revoked
// more than the retention window ago. Called from the scheduler.
func (s *AuthService) PurgeStaleRefreshTokens(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	res := s.db.Where("expires_at < ? OR (revoked_at IS NOT NULL AND revoked_at < ?)", time.Now(), cutoff).
		Delete(&models.RefreshToken{})
	return res.RowsAffected, res.Error
}

func (s *AuthService) issueTokens(user *models.User, clientIP, userAgent string) (*AuthResult, error) {
	accessHours := s.getAccessTokenExpireHours()
	refreshHours := s.getRefreshTokenExpireHours()

	token, err := utils.GenerateToken(user.ID, user.Email, accessHours)
	if err != nil {
		return nil, err
	}

	refreshToken, refreshHash, err := generateRefreshToken()
	if err != nil {
		return nil, err
	}

	refreshExpireAt := time.Now().Add(time.Duration(refreshHours) * time.Hour)
	refreshRecord := models.RefreshToken{
		UserID:    user.ID,
		TokenHash: refreshHash,
		ExpiresAt: refreshExpireAt,
	}
	if clientIP != "" {
		refreshRecord.CreatedByIP = clientIP
	}
	if userAgent != "" {
		refreshRecord.UserAgent = userAgent
	}
	if err := s.db.Create(&refreshRecord).Error; err != nil {
		return nil, err
	}

	return &AuthResult{
		AccessToken:     token,
		AccessExpireAt:  time.Now().Add(time.Duration(accessHours) * time.Hour),
		RefreshToken:    refreshToken,
		RefreshExpireAt: refreshExpireAt,
		User:            user,
	}, nil
}

func (s *AuthService) teamIDFor(userID string) *uint {
	var membership models.TeamMember
	if err := s.db.Where("user_id = ?", userID).First(&membership).Error; err != nil {
		return nil
	}
	return &membership.TeamID
}

func (s *AuthService) getAccessTokenExpireHours() int {
	defaultHours := s.jwtConfig.ExpireHour
	value := s.configSvc.GetWithDefault("auth_access_token_expire_hours", strconv.Itoa(defaultHours))
	hours, err := strconv.Atoi(value)
	if err != nil || hours <= 0 {
		return defaultHours
	}
	return hours
}

func (s *AuthService) getRefreshTokenExpireHours() int {
	value := s.configSvc.GetWithDefault("auth_refresh_token_expire_hours", "720")
	hours, err := strconv.Atoi(value)
	if err != nil || hours <= 0 {
		return 720
	}
	return hours
}

func generateRefreshToken() (token string, tokenHash string, err error) {
	randomBytes := make([]byte, 32)
	if _, err = rand.Read(randomBytes); err != nil {
		return "", "", err
	}
	token = hex.EncodeToString(randomBytes)
	tokenHash = hashRefreshToken(token)
	return token, tokenHash, nil
}

func hashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
