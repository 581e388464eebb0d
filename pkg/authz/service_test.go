package authz

import (
	"context"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEmbeddedService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(Config{})
	require.NoError(t, err)
	return svc
}

func TestEmbeddedPolicy_OrgRoles(t *testing.T) {
	svc := newEmbeddedService(t)

	admin, err := svc.Permissions(SubjectForOrgRole("admin"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []Permission{
		{Object: "Organization", Action: "manage"},
		{Object: "Organization:Members", Action: "manage"},
		{Object: "Organization:Members:Invite", Action: "manage"},
	}, admin)

	owner, err := svc.Permissions(SubjectForOrgRole("Owner"))
	require.NoError(t, err)
	assert.ElementsMatch(t, admin, owner)

	member, err := svc.Permissions(SubjectForOrgRole("member"))
	require.NoError(t, err)
	assert.Empty(t, member)
}

func TestEmbeddedPolicy_UserRoles(t *testing.T) {
	svc := newEmbeddedService(t)

	admin, err := svc.Permissions(SubjectForUserRole("admin"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []Permission{
		{Object: "Product", Action: "manage"},
		{Object: "User", Action: "manage"},
		{Object: "Organization", Action: "manage"},
	}, admin)

	user, err := svc.Permissions(SubjectForUserRole("user"))
	require.NoError(t, err)
	assert.Empty(t, user)
}

func TestInspect_ManageImpliesNarrowerActions(t *testing.T) {
	svc := newEmbeddedService(t)

	for _, action := range []string{"read", "update", "delete", "manage"} {
		res, err := svc.Inspect("org:owner", "Organization", action)
		require.NoError(t, err)
		assert.True(t, res.Allowed, action)
	}
	res, err := svc.Inspect("org:member", "Organization", "delete")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Empty(t, res.Matched)
}

func TestInspect_ReportsMatchedLine(t *testing.T) {
	svc := newEmbeddedService(t)

	res, err := svc.Inspect("user:admin", "Product", "edit")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, []string{"user:admin", "Product", "manage"}, res.Matched)
}

func TestFilePolicyOverride(t *testing.T) {
	svc, err := NewService(Config{
		ModelPath:  filepath.Join("testdata", "model.conf"),
		PolicyPath: filepath.Join("testdata", "policy.csv"),
	})
	require.NoError(t, err)

	perms, err := svc.Permissions("user:support")
	require.NoError(t, err)
	assert.Equal(t, []Permission{{Object: "User", Action: "read"}}, perms)

	admin, err := svc.Permissions(SubjectForUserRole("admin"))
	require.NoError(t, err)
	assert.Empty(t, admin)

	require.NoError(t, svc.ReloadPolicy(context.Background()))
}

func TestNewService_MissingFiles(t *testing.T) {
	_, err := NewService(Config{PolicyPath: filepath.Join("testdata", "missing.csv")})
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewService(Config{ModelPath: filepath.Join("testdata", "missing.conf")})
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSubjects(t *testing.T) {
	assert.Equal(t, "org:admin", SubjectForOrgRole(" Admin "))
	assert.Equal(t, "user:none", SubjectForUserRole(""))
	assert.Equal(t, "setRole", NormalizeAction(" setRole "))
}

func TestReloadOn_PicksUpPolicyChanges(t *testing.T) {
	policyPath := filepath.Join(t.TempDir(), "policy.csv")
	require.NoError(t, os.WriteFile(policyPath, []byte("p, user:support, User, read\n"), 0o600))

	logger, _ := test.NewNullLogger()
	svc, err := NewService(Config{
		ModelPath:  filepath.Join("testdata", "model.conf"),
		PolicyPath: policyPath,
		Logger:     logger,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	signals := make(chan os.Signal, 1)
	done := make(chan struct{})
	go func() {
		svc.ReloadOn(ctx, signals)
		close(done)
	}()

	require.NoError(t, os.WriteFile(policyPath, []byte("p, user:support, User, read\np, user:support, Product, read\n"), 0o600))
	signals <- syscall.SIGHUP

	assert.Eventually(t, func() bool {
		perms, err := svc.Permissions("user:support")
		return err == nil && len(perms) == 2
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ReloadOn did not stop after cancel")
	}
}
