package services

import (
	"errors"
	"sync"
	"time"

	"github.com/teamforge/backend/internal/models"
	"github.com/teamforge/backend/pkg/logger"
	"gorm.io/gorm"
)

// ActivityService appends audit rows for state-changing actions and
// serves the recent-activity feed. Recording is fire-and-forget: a
// failed insert is logged, never surfaced to the caller.
type ActivityService struct {
	db *gorm.DB
	wg sync.WaitGroup
}

func NewActivityService(db *gorm.DB) *ActivityService {
	return &ActivityService{db: db}
}

// Record appends one activity row. No-op when the actor has no team.
func (s *ActivityService) Record(teamID *uint, userID, action, ip string) {
	if teamID == nil {
		return
	}

	row := models.ActivityLog{
		TeamID:    teamID,
		UserID:    &userID,
		Action:    action,
		Timestamp: time.Now(),
		IPAddress: ip,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.db.Create(&row).Error; err != nil {
			logger.Warn().Err(err).
				Str("action", action).
				Str("user_id", userID).
				Msg("failed to record activity")
		}
	}()
}

// Flush blocks until all in-flight recordings have completed. Used at
// shutdown and in tests.
func (s *ActivityService) Flush() {
	s.wg.Wait()
}

// ActivityEntry is one row of the recent-activity feed.
type ActivityEntry struct {
	ID        uint      `json:"id"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
	IPAddress string    `json:"ip_address"`
	UserName  string    `json:"user_name"`
}

// feedLimit caps the recent-activity feed.
const feedLimit = 10

// ListForUser returns the most recent activity of the caller's team,
// newest first, with each distinct actor resolved to a display name
// once. A teamless caller gets an empty feed.
func (s *ActivityService) ListForUser(userID string) ([]ActivityEntry, error) {
	var membership models.TeamMember
	err := s.db.Where("user_id = ?", userID).First(&membership).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return []ActivityEntry{}, nil
	}
	if err != nil {
		return nil, err
	}

	var rows []models.ActivityLog
	if err := s.db.Where("team_id = ?", membership.TeamID).
		Order("timestamp DESC").
		Limit(feedLimit).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var actorIDs []string
	for _, r := range rows {
		if r.UserID != nil && !seen[*r.UserID] {
			seen[*r.UserID] = true
			actorIDs = append(actorIDs, *r.UserID)
		}
	}

	names := make(map[string]string)
	if len(actorIDs) > 0 {
		var users []models.User
		if err := s.db.Select("id", "name", "email").Where("id IN ?", actorIDs).Find(&users).Error; err != nil {
			return nil, err
		}
		for _, u := range users {
			if u.Name != "" {
				names[u.ID] = u.Name
			} else {
				names[u.ID] = u.Email
			}
		}
	}

	entries := make([]ActivityEntry, 0, len(rows))
	for _, r := range rows {
		entry := ActivityEntry{
			ID:        r.ID,
			Action:    r.Action,
			Timestamp: r.Timestamp,
			IPAddress: r.IPAddress,
		}
		if r.UserID != nil {
			entry.UserName = names[*r.UserID]
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
