package services

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/teamforge/backend/internal/config"
	"github.com/teamforge/backend/internal/models"
	"github.com/teamforge/backend/internal/utils"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// A named shared-cache DSN so every pooled connection sees the
	// same in-memory database.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Team{},
		&models.TeamMember{},
		&models.Invitation{},
		&models.ActivityLog{},
		&models.RefreshToken{},
		&models.SystemConfig{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

type sentInvitation struct {
	To       string
	TeamName string
	Role     string
	URL      string
}

// fakeMailer records dispatches and can be told to fail, which is how
// the compensation path gets exercised.
type fakeMailer struct {
	fail bool
	sent []sentInvitation
}

func (m *fakeMailer) SendTeamInvitation(to, teamName, role, inviteURL string) error {
	if m.fail {
		return fmt.Errorf("smtp: connection refused")
	}
	m.sent = append(m.sent, sentInvitation{To: to, TeamName: teamName, Role: role, URL: inviteURL})
	return nil
}

type testEnv struct {
	db         *gorm.DB
	mailer     *fakeMailer
	identity   *IdentityService
	activity   *ActivityService
	invitation *InvitationService
	membership *MembershipService
	auth       *AuthService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	utils.SetJWTSecret("test-secret")

	db := newTestDB(t)
	mailer := &fakeMailer{}
	identity := NewIdentityService(db, mailer)
	activity := NewActivityService(db)
	invitation := NewInvitationService(db, identity, activity, "http://localhost:8080")
	membership := NewMembershipService(db, activity)
	auth := NewAuthService(db, identity, invitation, activity, &config.JWTConfig{
		Secret:     "test-secret",
		ExpireHour: 1,
	})

	return &testEnv{
		db:         db,
		mailer:     mailer,
		identity:   identity,
		activity:   activity,
		invitation: invitation,
		membership: membership,
		auth:       auth,
	}
}

// seedUserWithTeam creates an identity, a team and the linking
// membership in one step.
func seedUserWithTeam(t *testing.T, env *testEnv, email, teamName, role string) (*models.User, *models.Team) {
	t.Helper()

	user, err := env.identity.CreateUser(email, "password123", "")
	if err != nil {
		t.Fatalf("failed to create user %s: %v", email, err)
	}

	team := models.Team{Name: teamName}
	if err := env.db.Create(&team).Error; err != nil {
		t.Fatalf("failed to create team %s: %v", teamName, err)
	}

	member := models.TeamMember{UserID: user.ID, TeamID: team.ID, Role: role}
	if err := env.db.Create(&member).Error; err != nil {
		t.Fatalf("failed to create membership: %v", err)
	}
	return user, &team
}

func countRows(t *testing.T, db *gorm.DB, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var count int64
	tx := db.Model(model)
	if query != "" {
		tx = tx.Where(query, args...)
	}
	if err := tx.Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	return count
}

func activityActions(t *testing.T, env *testEnv, teamID uint) []string {
	t.Helper()
	env.activity.Flush()

	var rows []models.ActivityLog
	if err := env.db.Where("team_id = ?", teamID).Order("id ASC").Find(&rows).Error; err != nil {
		t.Fatalf("failed to load activity: %v", err)
	}
	actions := make([]string, len(rows))
	for i, r := range rows {
		actions[i] = r.Action
	}
	return actions
}
