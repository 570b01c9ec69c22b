package services

import (
	"errors"
	"strings"
	"testing"

	"github.com/teamforge/backend/internal/models"
	"gorm.io/gorm"
)

func TestInvite_InviterWithoutTeam(t *testing.T) {
	env := newTestEnv(t)

	user, err := env.identity.CreateUser("loner@example.com", "password123", "")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	_, err = env.invitation.Invite(user.ID, "friend@example.com", models.RoleMember, "127.0.0.1")
	if !errors.Is(err, ErrNoTeam) {
		t.Errorf("expected ErrNoTeam, got %v", err)
	}
	if n := countRows(t, env.db, &models.Invitation{}, ""); n != 0 {
		t.Errorf("expected no invitation rows, got %d", n)
	}
}

func TestInvite_ExistingMemberRejected(t *testing.T) {
	env := newTestEnv(t)

	owner, team := seedUserWithTeam(t, env, "owner@example.com", "Acme", models.RoleOwner)
	colleague, err := env.identity.CreateUser("colleague@example.com", "password123", "")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	env.db.Create(&models.TeamMember{UserID: colleague.ID, TeamID: team.ID, Role: models.RoleMember})

	_, err = env.invitation.Invite(owner.ID, "colleague@example.com", models.RoleMember, "127.0.0.1")
	if !errors.Is(err, ErrAlreadyMember) {
		t.Errorf("expected ErrAlreadyMember, got %v", err)
	}
	if n := countRows(t, env.db, &models.Invitation{}, ""); n != 0 {
		t.Errorf("rejected invite must not write invitation rows, got %d", n)
	}
	if len(env.mailer.sent) != 0 {
		t.Errorf("rejected invite must not send email, sent %d", len(env.mailer.sent))
	}
}

func TestInvite_DuplicatePendingRejected(t *testing.T) {
	env := newTestEnv(t)

	owner, _ := seedUserWithTeam(t, env, "owner@example.com", "Acme", models.RoleOwner)

	if _, err := env.invitation.Invite(owner.ID, "new@example.com", models.RoleMember, "127.0.0.1"); err != nil {
		t.Fatalf("first invite failed: %v", err)
	}

	_, err := env.invitation.Invite(owner.ID, "new@example.com", models.RoleMember, "127.0.0.1")
	if !errors.Is(err, ErrDuplicateInvitation) {
		t.Errorf("expected ErrDuplicateInvitation, got %v", err)
	}
	if n := countRows(t, env.db, &models.Invitation{}, ""); n != 1 {
		t.Errorf("expected exactly 1 invitation row, got %d", n)
	}
}

func TestInvite_Success(t *testing.T) {
	env := newTestEnv(t)

	owner, team := seedUserWithTeam(t, env, "owner@example.com", "Acme", models.RoleOwner)

	inv, err := env.invitation.Invite(owner.ID, "new@example.com", models.RoleMember, "10.0.0.1")
	if err != nil {
		t.Fatalf("Invite failed: %v", err)
	}
	if inv.Status != models.InvitationPending {
		t.Errorf("Status = %q, expected %q", inv.Status, models.InvitationPending)
	}
	if inv.InvitedBy != owner.ID {
		t.Errorf("InvitedBy = %q, expected %q", inv.InvitedBy, owner.ID)
	}

	if len(env.mailer.sent) != 1 {
		t.Fatalf("expected 1 email, got %d", len(env.mailer.sent))
	}
	sent := env.mailer.sent[0]
	if sent.To != "new@example.com" || sent.TeamName != "Acme" {
		t.Errorf("email sent to %q for team %q", sent.To, sent.TeamName)
	}
	if !strings.Contains(sent.URL, "inviteId=") {
		t.Errorf("invite URL %q missing inviteId", sent.URL)
	}

	// Metadata stashed on the invitee identity.
	invitee, err := env.identity.GetByEmail("new@example.com")
	if err != nil {
		t.Fatalf("invitee identity not created: %v", err)
	}
	if invitee.InvitedTeamID == nil || *invitee.InvitedTeamID != team.ID {
		t.Errorf("InvitedTeamID = %v, expected %d", invitee.InvitedTeamID, team.ID)
	}
	if invitee.InvitationID == nil || *invitee.InvitationID != inv.ID {
		t.Errorf("InvitationID = %v, expected %d", invitee.InvitationID, inv.ID)
	}

	actions := activityActions(t, env, team.ID)
	found := false
	for _, a := range actions {
		if a == models.ActivityInviteTeamMember {
			found = true
		}
	}
	if !found {
		t.Errorf("expected %s in activity %v", models.ActivityInviteTeamMember, actions)
	}
}

func TestInvite_EmailFailureCompensates(t *testing.T) {
	env := newTestEnv(t)

	owner, team := seedUserWithTeam(t, env, "owner@example.com", "Acme", models.RoleOwner)
	env.mailer.fail = true

	_, err := env.invitation.Invite(owner.ID, "new@example.com", models.RoleMember, "127.0.0.1")
	if !errors.Is(err, ErrEmailDispatch) {
		t.Fatalf("expected ErrEmailDispatch, got %v", err)
	}

	// The pending row must not survive a failed dispatch.
	if n := countRows(t, env.db, &models.Invitation{}, ""); n != 0 {
		t.Errorf("expected compensating delete, found %d invitation rows", n)
	}

	actions := activityActions(t, env, team.ID)
	for _, a := range actions {
		if a == models.ActivityInviteTeamMember {
			t.Errorf("failed invite must not record %s", models.ActivityInviteTeamMember)
		}
	}
}

func TestResolve_CreatesMembership(t *testing.T) {
	env := newTestEnv(t)

	owner, team := seedUserWithTeam(t, env, "owner@example.com", "Acme", models.RoleOwner)
	inv, err := env.invitation.Invite(owner.ID, "new@example.com", models.RoleMember, "127.0.0.1")
	if err != nil {
		t.Fatalf("Invite failed: %v", err)
	}

	invitee, _ := env.identity.GetByEmail("new@example.com")
	if err := env.invitation.Resolve(invitee.ID, team.ID, models.RoleMember, &inv.ID, "127.0.0.1"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if n := countRows(t, env.db, &models.TeamMember{}, "team_id = ? AND user_id = ?", team.ID, invitee.ID); n != 1 {
		t.Errorf("expected 1 membership row, got %d", n)
	}

	var stored models.Invitation
	env.db.First(&stored, inv.ID)
	if stored.Status != models.InvitationAccepted {
		t.Errorf("invitation status = %q, expected %q", stored.Status, models.InvitationAccepted)
	}

	refreshed, _ := env.identity.GetByID(invitee.ID)
	if refreshed.InvitedTeamID != nil || refreshed.InvitationID != nil {
		t.Errorf("invitation metadata not cleared: %+v", refreshed)
	}
}

func TestResolve_IdempotentReplay(t *testing.T) {
	env := newTestEnv(t)

	user, team := seedUserWithTeam(t, env, "member@example.com", "Acme", models.RoleMember)

	// Replaying the link for an existing membership succeeds and
	// writes nothing.
	if err := env.invitation.Resolve(user.ID, team.ID, models.RoleMember, nil, "127.0.0.1"); err != nil {
		t.Fatalf("replay should succeed, got %v", err)
	}
	if n := countRows(t, env.db, &models.TeamMember{}, "team_id = ? AND user_id = ?", team.ID, user.ID); n != 1 {
		t.Errorf("expected 1 membership row after replay, got %d", n)
	}
	env.activity.Flush()
	if n := countRows(t, env.db, &models.ActivityLog{}, "action = ?", models.ActivityAcceptInvitation); n != 0 {
		t.Errorf("replay must not record activity, got %d rows", n)
	}
}

func TestResolve_LostInsertRaceIsIdempotent(t *testing.T) {
	env := newTestEnv(t)

	_, team := seedUserWithTeam(t, env, "owner@example.com", "Acme", models.RoleOwner)
	late, err := env.identity.CreateUser("late@example.com", "password123", "")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	// Land a competing membership insert between the pre-check and this
	// call's own write, so the unique (team_id,user_id) index rejects it.
	raced := false
	err = env.db.Callback().Create().Before("gorm:create").Register("competing_redemption", func(tx *gorm.DB) {
		if tx.Statement.Table != "team_members" || raced {
			return
		}
		raced = true
		env.db.Exec("INSERT INTO team_members (user_id, team_id, role) VALUES (?, ?, ?)",
			late.ID, team.ID, models.RoleMember)
	})
	if err != nil {
		t.Fatalf("failed to register callback: %v", err)
	}

	if err := env.invitation.Resolve(late.ID, team.ID, models.RoleMember, nil, "127.0.0.1"); err != nil {
		t.Fatalf("losing the insert race should still resolve as success, got %v", err)
	}
	if !raced {
		t.Fatal("competing insert never fired")
	}
	if n := countRows(t, env.db, &models.TeamMember{}, "team_id = ? AND user_id = ?", team.ID, late.ID); n != 1 {
		t.Errorf("expected exactly 1 membership row, got %d", n)
	}
}

func TestResolve_UnknownTeam(t *testing.T) {
	env := newTestEnv(t)

	user, err := env.identity.CreateUser("drifter@example.com", "password123", "")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	err = env.invitation.Resolve(user.ID, 999, models.RoleMember, nil, "127.0.0.1")
	if !errors.Is(err, ErrInvalidInvitation) {
		t.Errorf("expected ErrInvalidInvitation, got %v", err)
	}
}

func TestAcceptAtSignUp_EmailMismatch(t *testing.T) {
	env := newTestEnv(t)

	owner, _ := seedUserWithTeam(t, env, "owner@example.com", "Acme", models.RoleOwner)
	inv, err := env.invitation.Invite(owner.ID, "invited@example.com", models.RoleMember, "127.0.0.1")
	if err != nil {
		t.Fatalf("Invite failed: %v", err)
	}

	impostor, _ := env.identity.CreateUser("impostor@example.com", "password123", "")
	_, err = env.invitation.AcceptAtSignUp(impostor.ID, "impostor@example.com", inv.ID, "127.0.0.1")
	if !errors.Is(err, ErrInvalidInvitation) {
		t.Errorf("expected ErrInvalidInvitation for mismatched email, got %v", err)
	}
}

func TestAcceptAtSignUp_Success(t *testing.T) {
	env := newTestEnv(t)

	owner, team := seedUserWithTeam(t, env, "owner@example.com", "Acme", models.RoleOwner)
	inv, err := env.invitation.Invite(owner.ID, "invited@example.com", models.RoleOwner, "127.0.0.1")
	if err != nil {
		t.Fatalf("Invite failed: %v", err)
	}

	invitee, _ := env.identity.GetByEmail("invited@example.com")
	joined, err := env.invitation.AcceptAtSignUp(invitee.ID, "invited@example.com", inv.ID, "127.0.0.1")
	if err != nil {
		t.Fatalf("AcceptAtSignUp failed: %v", err)
	}
	if joined.ID != team.ID {
		t.Errorf("joined team %d, expected %d", joined.ID, team.ID)
	}

	var member models.TeamMember
	if err := env.db.Where("team_id = ? AND user_id = ?", team.ID, invitee.ID).First(&member).Error; err != nil {
		t.Fatalf("membership not created: %v", err)
	}
	if member.Role != models.RoleOwner {
		t.Errorf("role = %q, expected stored invitation role %q", member.Role, models.RoleOwner)
	}

	var stored models.Invitation
	env.db.First(&stored, inv.ID)
	if stored.Status != models.InvitationAccepted {
		t.Errorf("invitation status = %q, expected %q", stored.Status, models.InvitationAccepted)
	}

	// A second redemption of the same invitation must fail.
	if _, err := env.invitation.AcceptAtSignUp(invitee.ID, "invited@example.com", inv.ID, "127.0.0.1"); !errors.Is(err, ErrInvalidInvitation) {
		t.Errorf("expected ErrInvalidInvitation on re-redemption, got %v", err)
	}
}
