package services

import (
	"errors"
	"sync"

	"github.com/teamforge/backend/internal/models"
	"gorm.io/gorm"
)

var ErrMemberNotFound = errors.New("member not found in your team")

// MembershipService resolves users to their team aggregate and manages
// roster changes.
type MembershipService struct {
	db       *gorm.DB
	activity *ActivityService
}

func NewMembershipService(db *gorm.DB, activity *ActivityService) *MembershipService {
	return &MembershipService{db: db, activity: activity}
}

// MemberProfile is the identity slice exposed on a roster entry.
type MemberProfile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// RosterEntry is one membership row enriched with the member's profile.
type RosterEntry struct {
	ID       uint          `json:"id"`
	UserID   string        `json:"user_id"`
	Role     string        `json:"role"`
	JoinedAt string        `json:"joined_at"`
	User     MemberProfile `json:"user"`
}

// TeamAggregate is a team with its full enriched roster.
type TeamAggregate struct {
	models.Team
	Members []RosterEntry `json:"members"`
}

// GetUserWithTeam returns the user and their team id, nil when the
// user has no membership.
func (s *MembershipService) GetUserWithTeam(userID string) (*models.User, *uint, error) {
	var user models.User
	if err := s.db.Where("id = ?", userID).First(&user).Error; err != nil {
		return nil, nil, err
	}

	var membership models.TeamMember
	err := s.db.Where("user_id = ?", userID).First(&membership).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &user, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return &user, &membership.TeamID, nil
}

// GetTeamForUser returns the caller's team with every member enriched
// with their identity profile. Profile lookups fan out concurrently and
// are gathered before returning. Nil when the caller has no team.
func (s *MembershipService) GetTeamForUser(userID string) (*TeamAggregate, error) {
	var membership models.TeamMember
	err := s.db.Where("user_id = ?", userID).First(&membership).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var team models.Team
	if err := s.db.First(&team, membership.TeamID).Error; err != nil {
		return nil, err
	}

	var members []models.TeamMember
	if err := s.db.Where("team_id = ?", membership.TeamID).
		Order("joined_at ASC").
		Find(&members).Error; err != nil {
		return nil, err
	}

	entries := make([]RosterEntry, len(members))
	errs := make([]error, len(members))
	var wg sync.WaitGroup
	for i, m := range members {
		wg.Add(1)
		go func(i int, m models.TeamMember) {
			defer wg.Done()
			entry := RosterEntry{
				ID:       m.ID,
				UserID:   m.UserID,
				Role:     m.Role,
				JoinedAt: m.JoinedAt.Format("2006-01-02T15:04:05Z07:00"),
			}
			var user models.User
			if err := s.db.Select("id", "name", "email").Where("id = ?", m.UserID).First(&user).Error; err != nil {
				errs[i] = err
				return
			}
			entry.User = MemberProfile{ID: user.ID, Name: user.Name, Email: user.Email}
			entries[i] = entry
		}(i, m)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return &TeamAggregate{Team: team, Members: entries}, nil
}

// RemoveMember deletes one membership row scoped to the actor's own
// team. The row id must belong to that team or nothing is deleted.
func (s *MembershipService) RemoveMember(actorID string, memberRowID uint, ip string) error {
	var actor models.TeamMember
	err := s.db.Where("user_id = ?", actorID).First(&actor).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNoTeam
	}
	if err != nil {
		return err
	}

	res := s.db.Where("id = ? AND team_id = ?", memberRowID, actor.TeamID).
		Delete(&models.TeamMember{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrMemberNotFound
	}

	s.activity.Record(&actor.TeamID, actorID, models.ActivityRemoveTeamMember, ip)
	return nil
}

// TeamIDForUser is a convenience lookup used by handlers that only need
// the tenancy scope.
func (s *MembershipService) TeamIDForUser(userID string) *uint {
	var membership models.TeamMember
	if err := s.db.Where("user_id = ?", userID).First(&membership).Error; err != nil {
		return nil
	}
	return &membership.TeamID
}
