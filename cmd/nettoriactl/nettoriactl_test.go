package main

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auditdomain "nettoria/backend/internal/audit/domain"
	"nettoria/backend/internal/security"
	userdomain "nettoria/backend/internal/user/domain"
	userrepo "nettoria/backend/internal/user/repository"
)

type auditRecorder struct {
	mu      sync.Mutex
	actions []string
}

func (a *auditRecorder) LogEvent(ctx context.Context, userID, action string, metadata map[string]string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, action)
}

func init() { color.NoColor = true }

func TestCreateAdmin_New(t *testing.T) {
	users := userrepo.NewMemoryRepository()
	rec := &auditRecorder{}
	var out bytes.Buffer
	err := createAdmin(context.Background(), &out, users, security.NewHasher(4), rec, adminInput{
		FirstName: "Ops", LastName: "Team", Email: "Ops@Nettoria.test", Phone: "+989120000099", Password: "Adm1n!Pass",
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "created admin ops@nettoria.test")

	u, err := users.GetByEmail(context.Background(), "ops@nettoria.test")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, userdomain.RoleAdmin, u.Role)
	assert.Equal(t, userdomain.StatusActive, u.Status)
	assert.True(t, u.PhoneVerified)
	assert.NotEqual(t, "Adm1n!Pass", u.PasswordHash)
	assert.Equal(t, []string{auditdomain.ActionRegister}, rec.actions)
}

func TestCreateAdmin_PromotesExisting(t *testing.T) {
	users := userrepo.NewMemoryRepository()
	require.NoError(t, users.Create(context.Background(), &userdomain.User{
		ID: "u1", Email: "member@nettoria.test", Phone: "+989120000098", Role: userdomain.RoleUser, Status: userdomain.StatusActive,
	}))
	rec := &auditRecorder{}
	var out bytes.Buffer
	require.NoError(t, createAdmin(context.Background(), &out, users, security.NewHasher(4), rec, adminInput{Email: "member@nettoria.test"}))
	assert.Contains(t, out.String(), "promoted")

	u, _ := users.GetByID(context.Background(), "u1")
	assert.Equal(t, userdomain.RoleAdmin, u.Role)
	assert.Equal(t, []string{auditdomain.ActionRoleChanged}, rec.actions)

	out.Reset()
	require.NoError(t, createAdmin(context.Background(), &out, users, security.NewHasher(4), rec, adminInput{Email: "member@nettoria.test"}))
	assert.Contains(t, out.String(), "already an admin")
	assert.Len(t, rec.actions, 1)
}

func TestCreateAdmin_Validation(t *testing.T) {
	users := userrepo.NewMemoryRepository()
	tests := []struct {
		name string
		in   adminInput
		want string
	}{
		{"bad email", adminInput{Email: "nope"}, "email"},
		{"bad phone", adminInput{Email: "a@nettoria.test", Phone: "12"}, "phone"},
		{"weak password", adminInput{Email: "a@nettoria.test", Phone: "+989120000097", Password: "weak"}, "policy"},
		{"long name", adminInput{Email: "a@nettoria.test", Phone: "+989120000097", FirstName: strings.Repeat("n", 101), Password: "Str0ng!Pass"}, "firstName is too long"},
		{"long password", adminInput{Email: "a@nettoria.test", Phone: "+989120000097", Password: "Aa1!" + strings.Repeat("x", 80)}, "max_length"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := createAdmin(context.Background(), &bytes.Buffer{}, users, security.NewHasher(4), &auditRecorder{}, tt.in)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRenderAuditTable(t *testing.T) {
	var out bytes.Buffer
	renderAuditTable(&out, nil)
	assert.Equal(t, "No audit logs\n", out.String())

	out.Reset()
	renderAuditTable(&out, []*auditdomain.AuditLog{
		{ID: "a1", UserID: "u1", Action: auditdomain.ActionLoginFailure, IP: "10.0.0.1", Metadata: `{"reason":"bad_password"}`,
			CreatedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)},
		{ID: "a2", Action: auditdomain.ActionLoginFailure, IP: "10.0.0.2", CreatedAt: time.Date(2025, 3, 1, 11, 0, 0, 0, time.UTC)},
	})
	text := out.String()
	assert.Contains(t, text, "2025-03-01T12:00:00Z")
	assert.Contains(t, text, "login_failure")
	assert.Contains(t, text, "bad_password")
	assert.Contains(t, text, "10.0.0.2")
	assert.Equal(t, 2, strings.Count(text, "login_failure"))
}

func TestRootCommand_Tree(t *testing.T) {
	root := newRootCmd()
	for _, path := range [][]string{{"migrate", "up"}, {"migrate", "down"}, {"migrate", "version"}, {"create-admin"}, {"audit", "list"}} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}
