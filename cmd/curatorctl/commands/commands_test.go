package commands

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/curator-desk/internal/auth"
	"github.com/spec-kit/curator-desk/internal/config"
	"github.com/spec-kit/curator-desk/internal/domain"
	"github.com/spec-kit/curator-desk/internal/persistence"
	"github.com/spec-kit/curator-desk/internal/repository/sqlite"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "desk.db")
	t.Setenv("STORE_DRIVER", config.StoreDriverSQLite)
	t.Setenv("SQLITE_PATH", path)
	t.Setenv("AUTH_JWT_SECRET", "cli-secret")
	return path
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	tokenSubject, tokenRole = "", string(auth.RoleAdmin)
	curatorName, curatorInactive, listAll = "", false, false

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestTokenCommand(t *testing.T) {
	setupEnv(t)

	stdout, stderr, err := run(t, "token", "--subject", "ops@example.com", "--role", "auditor")
	require.NoError(t, err)
	assert.Contains(t, stderr, "expires")

	claims, err := auth.NewTokenManager("cli-secret", 60).ParseToken(strings.TrimSpace(stdout))
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", claims.Subject)
	assert.Equal(t, auth.RoleAuditor, claims.Role)

	_, _, err = run(t, "token", "--subject", "ops", "--role", "root")
	assert.Error(t, err)
}

func TestCuratorCommands(t *testing.T) {
	setupEnv(t)

	stdout, _, err := run(t, "curator", "add", "100", "--name", "Alice")
	require.NoError(t, err)
	assert.Contains(t, stdout, "curator 100 (Alice) saved, active=true")

	_, _, err = run(t, "curator", "add", "200", "--name", "Bob", "--inactive")
	require.NoError(t, err)

	stdout, _, err = run(t, "curator", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Alice")
	assert.NotContains(t, stdout, "Bob")

	stdout, _, err = run(t, "curator", "list", "--all")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Bob")
}

func TestReplayCommand(t *testing.T) {
	path := setupEnv(t)
	ctx := context.Background()

	db, err := persistence.OpenSQLite(ctx, config.SQLiteConfig{Path: path}, zap.NewNop())
	require.NoError(t, err)
	store := sqlite.NewStore(db)
	require.NoError(t, store.Tickets.Create(ctx,
		&domain.Ticket{ID: "77", ChatID: "-1001", StudentID: "900"},
		&domain.Message{SenderID: "900", SenderRole: domain.SenderRoleStudent, Body: "Need help"}))
	alice, bob := "100", "200"
	require.NoError(t, store.Actions.Append(ctx, &domain.ActionLogEntry{TicketID: "77", CuratorID: &alice, Action: domain.ActionTake}, 0))
	require.NoError(t, store.Actions.Append(ctx, &domain.ActionLogEntry{
		TicketID: "77", CuratorID: &alice, Action: domain.ActionReassign, PriorCuratorID: &alice, TargetCuratorID: &bob,
	}, 1))
	require.NoError(t, db.Close())

	stdout, _, err := run(t, "replay", "77")
	require.NoError(t, err)
	assert.Contains(t, stdout, "SEQ")
	assert.Contains(t, stdout, "reassign")
	assert.Contains(t, stdout, "ticket 77: in progress, owner 200, 2 entries")
	assert.NotContains(t, stdout, "warning")

	_, _, err = run(t, "replay", "404")
	assert.Error(t, err)
}
