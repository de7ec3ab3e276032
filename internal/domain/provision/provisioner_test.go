package provision_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/provisioner/internal/adapters/logging"
	"github.com/felixgeelhaar/provisioner/internal/domain/manifest"
	"github.com/felixgeelhaar/provisioner/internal/domain/provision"
	"github.com/felixgeelhaar/provisioner/internal/ports"
	"github.com/felixgeelhaar/provisioner/internal/testutil/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	env  *mocks.Environment
	pip  *mocks.PackageManager
	apt  *mocks.PackageManager
	prov *provision.Provisioner
}

func newFixture(t *testing.T, opts ...provision.Option) *fixture {
	t.Helper()
	env := mocks.NewEnvironment()
	f := &fixture{
		env: env,
		pip: env.LibraryManager("pip"),
		apt: env.BinaryManager("apt"),
	}
	prov, err := provision.New(f.pip, f.apt, env, opts...)
	require.NoError(t, err)
	f.prov = prov
	return f
}

func library(t *testing.T, requirement string) manifest.Entry {
	t.Helper()
	e, err := manifest.Library(requirement)
	require.NoError(t, err)
	return e
}

func binary(t *testing.T, name string) manifest.Entry {
	t.Helper()
	e, err := manifest.Binary(name)
	require.NoError(t, err)
	return e
}

func outcomes(results []provision.InstallResult) []provision.Outcome {
	out := make([]provision.Outcome, len(results))
	for i, r := range results {
		out[i] = r.Outcome()
	}
	return out
}

func TestNew_RequiresCollaborators(t *testing.T) {
	env := mocks.NewEnvironment()

	_, err := provision.New(nil, env.BinaryManager("apt"), env)
	assert.Error(t, err)
	_, err = provision.New(env.LibraryManager("pip"), env.BinaryManager("apt"), nil)
	assert.Error(t, err)
}

func TestProvisioner_Check(t *testing.T) {
	f := newFixture(t)
	f.env.Install("fastapi", "0.110.0")
	f.env.PutOnPath("ffmpeg")
	f.env.Install("ffmpeg", "6.1")

	tests := []struct {
		name  string
		entry manifest.Entry
		want  bool
	}{
		{"installed library", library(t, "fastapi"), true},
		{"library at pinned version", library(t, "fastapi==0.110.0"), true},
		{"library at other version", library(t, "fastapi==0.99.0"), false},
		{"missing library", library(t, "uvicorn"), false},
		{"binary on path", binary(t, "ffmpeg"), true},
		{"binary on path with matching version", manifest.MustNewEntry("ffmpeg", manifest.KindBinary, "==6.1"), true},
		{"binary on path with other version", manifest.MustNewEntry("ffmpeg", manifest.KindBinary, "==7.0"), false},
		{"binary not on path", binary(t, "jq"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.prov.Check(context.Background(), tt.entry)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProvisioner_Check_QueryMechanismBroken(t *testing.T) {
	f := newFixture(t)
	broken := errors.New("package database is locked")
	f.env.BreakQueries(broken)

	_, err := f.prov.Check(context.Background(), library(t, "fastapi"))
	var qerr *provision.EnvironmentQueryError
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, "pip", qerr.Mechanism)
	assert.ErrorIs(t, err, broken)

	_, err = f.prov.Check(context.Background(), binary(t, "ffmpeg"))
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, "path lookup", qerr.Mechanism)
}

func TestProvisioner_Check_DoesNotInstall(t *testing.T) {
	f := newFixture(t)

	_, err := f.prov.Check(context.Background(), library(t, "fastapi"))
	require.NoError(t, err)
	assert.Empty(t, f.env.Installs())
}

func TestProvisioner_Plan_ExcludesSatisfiedEntries(t *testing.T) {
	f := newFixture(t)
	f.env.Install("fastapi", "")
	f.env.PutOnPath("ffmpeg")
	m := manifest.MustNew(
		library(t, "fastapi"),
		library(t, "uvicorn"),
		binary(t, "ffmpeg"),
		library(t, "yt-dlp"),
	)

	plan, err := f.prov.Plan(context.Background(), m)
	require.NoError(t, err)

	names := make([]string, 0, plan.Len())
	for _, e := range plan.Entries() {
		ok, err := f.prov.Check(context.Background(), e)
		require.NoError(t, err)
		assert.False(t, ok, "planned entry %s is satisfied", e)
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"uvicorn", "yt-dlp"}, names)
	assert.Len(t, plan.Satisfied(), 2)
}

func TestProvisioner_Plan_NilManifest(t *testing.T) {
	f := newFixture(t)

	plan, err := f.prov.Plan(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, plan.IsEmpty())
}

func TestProvisioner_Install_EmptyPlan(t *testing.T) {
	f := newFixture(t)

	results := f.prov.Install(context.Background(), provision.NewInstallPlan())

	assert.Empty(t, results)
	assert.Equal(t, provision.StatusOK, provision.OverallStatus(results))
}

func TestProvisioner_Install_ContinuesAfterFailure(t *testing.T) {
	f := newFixture(t)
	f.pip.On("broken", mocks.Fail("ERROR: No matching distribution found for broken"))
	plan := provision.NewInstallPlan(
		provision.PlanItem{Entry: library(t, "first")},
		provision.PlanItem{Entry: library(t, "broken")},
		provision.PlanItem{Entry: library(t, "last")},
	)

	results := f.prov.Install(context.Background(), plan)

	require.Len(t, results, 3)
	assert.Equal(t, []string{"first", "broken", "last"}, f.env.Installs())
	assert.Equal(t, []provision.Outcome{
		provision.OutcomeInstalled, provision.OutcomeFailed, provision.OutcomeInstalled,
	}, outcomes(results))
	assert.Equal(t, "ERROR: No matching distribution found for broken", results[1].Detail())

	var failure *provision.InstallFailure
	assert.ErrorAs(t, results[1].Err(), &failure)
}

func TestProvisioner_Install_InvocationError(t *testing.T) {
	f := newFixture(t)
	f.pip.On("fastapi", func(context.Context) (ports.InstallOutcome, error) {
		return ports.InstallOutcome{}, errors.New("exec: pip: not found")
	})

	results := f.prov.Install(context.Background(), provision.NewInstallPlan(
		provision.PlanItem{Entry: library(t, "fastapi")},
	))

	require.Len(t, results, 1)
	assert.True(t, results[0].IsFailed())
	assert.Equal(t, "exec: pip: not found", results[0].Detail())
}

func TestProvisioner_Install_Timeout(t *testing.T) {
	f := newFixture(t, provision.WithInstallTimeout(20*time.Millisecond))
	f.pip.On("slow", mocks.Hang())

	results := f.prov.Install(context.Background(), provision.NewInstallPlan(
		provision.PlanItem{Entry: library(t, "slow")},
		provision.PlanItem{Entry: library(t, "fast")},
	))

	require.Len(t, results, 2)
	assert.True(t, results[0].IsFailed())
	assert.Equal(t, provision.DetailTimeout, results[0].Detail())
	assert.ErrorIs(t, results[0].Err(), context.DeadlineExceeded)
	assert.Equal(t, provision.OutcomeInstalled, results[1].Outcome())
}

func TestProvisioner_Install_VerificationFailure(t *testing.T) {
	f := newFixture(t)
	f.apt.HideAfterInstall("ffmpeg")

	results := f.prov.Install(context.Background(), provision.NewInstallPlan(
		provision.PlanItem{Entry: binary(t, "ffmpeg")},
		provision.PlanItem{Entry: binary(t, "jq")},
	))

	require.Len(t, results, 2)
	assert.True(t, results[0].IsFailed())
	assert.Equal(t, provision.DetailVerificationFailed, results[0].Detail())
	var verr *provision.VerificationFailure
	assert.ErrorAs(t, results[0].Err(), &verr)
	assert.Equal(t, provision.OutcomeInstalled, results[1].Outcome())
}

func TestProvisioner_Install_VerificationInterruptedReportsContextError(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.apt.HideAfterInstall("ffmpeg").On("ffmpeg", func(context.Context) (ports.InstallOutcome, error) {
		cancel()
		return ports.InstallOutcome{Success: true}, nil
	})

	results := f.prov.Install(ctx, provision.NewInstallPlan(
		provision.PlanItem{Entry: binary(t, "ffmpeg")},
	))

	require.Len(t, results, 1)
	assert.True(t, results[0].IsFailed())
	assert.Equal(t, context.Canceled.Error(), results[0].Detail())
	assert.ErrorIs(t, results[0].Err(), context.Canceled)
	var verr *provision.VerificationFailure
	assert.ErrorAs(t, results[0].Err(), &verr)
}

func TestProvisioner_Install_LibrariesAreNotVerifiedOnPath(t *testing.T) {
	f := newFixture(t)

	results := f.prov.Install(context.Background(), provision.NewInstallPlan(
		provision.PlanItem{Entry: library(t, "fastapi")},
	))

	require.Len(t, results, 1)
	assert.Equal(t, provision.OutcomeInstalled, results[0].Outcome())
}

func TestProvisioner_Run_AlphaPresentBetaInstalled(t *testing.T) {
	f := newFixture(t)
	f.env.Install("alpha", "")
	m := manifest.MustNew(library(t, "alpha"), binary(t, "beta"))

	results, status, err := f.prov.Run(context.Background(), m)

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "alpha", results[0].Entry().Name())
	assert.Equal(t, provision.OutcomeSkipped, results[0].Outcome())
	assert.Equal(t, "beta", results[1].Entry().Name())
	assert.Equal(t, provision.OutcomeInstalled, results[1].Outcome())
	assert.Equal(t, provision.StatusOK, status)
	assert.Equal(t, 0, status.ExitCode())
}

func TestProvisioner_Run_GammaFails(t *testing.T) {
	f := newFixture(t)
	f.pip.On("gamma", mocks.Fail("install failed"))
	m := manifest.MustNew(library(t, "gamma"))

	results, status, err := f.prov.Run(context.Background(), m)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, provision.OutcomeFailed, results[0].Outcome())
	assert.Equal(t, provision.StatusDegraded, status)
	assert.NotZero(t, status.ExitCode())
}

func TestProvisioner_Run_QueryErrorAbortsBeforeResults(t *testing.T) {
	f := newFixture(t)
	f.env.BreakQueries(errors.New("dpkg database corrupted"))
	m := manifest.MustNew(library(t, "fastapi"), binary(t, "ffmpeg"))

	results, _, err := f.prov.Run(context.Background(), m)

	var qerr *provision.EnvironmentQueryError
	require.ErrorAs(t, err, &qerr)
	assert.Nil(t, results)
	assert.Empty(t, f.env.Installs())
	assert.Equal(t, provision.PhaseAborted, f.prov.Phase())
}

func TestProvisioner_Run_Idempotent(t *testing.T) {
	f := newFixture(t)
	m := manifest.MustNew(
		library(t, "fastapi"),
		library(t, "uvicorn==0.30.1"),
		binary(t, "ffmpeg"),
	)

	first, status, err := f.prov.Run(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, provision.StatusOK, status)
	assert.Equal(t, 3, provision.Summarize(first).Installed)

	plan, err := f.prov.Plan(context.Background(), m)
	require.NoError(t, err)
	assert.True(t, plan.IsEmpty())

	second, status, err := f.prov.Run(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, provision.StatusOK, status)
	assert.Equal(t, 3, provision.Summarize(second).Skipped)
	assert.Len(t, f.env.Installs(), 3)
}

func TestProvisioner_Run_EmptyManifest(t *testing.T) {
	f := newFixture(t)

	results, status, err := f.prov.Run(context.Background(), manifest.MustNew())

	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, provision.StatusOK, status)
	assert.Equal(t, provision.PhaseCompleted, f.prov.Phase())
}

func TestProvisioner_Run_UpgradesInstallersFirst(t *testing.T) {
	f := newFixture(t)
	m := manifest.MustNew(library(t, "fastapi"), binary(t, "ffmpeg")).WithUpgradeInstallers(true)

	_, status, err := f.prov.Run(context.Background(), m)

	require.NoError(t, err)
	assert.Equal(t, provision.StatusOK, status)
	assert.Equal(t, []string{"pip", "apt"}, f.env.Upgrades())
}

func TestProvisioner_Run_SkipsUpgradeWhenNothingToInstall(t *testing.T) {
	f := newFixture(t)
	f.env.Install("fastapi", "")
	m := manifest.MustNew(library(t, "fastapi")).WithUpgradeInstallers(true)

	_, _, err := f.prov.Run(context.Background(), m)

	require.NoError(t, err)
	assert.Empty(t, f.env.Upgrades())
}

func TestProvisioner_Run_UpgradeFailureIsOnlyAWarning(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewConsoleLogger(logging.WithOutput(&buf))
	f := newFixture(t, provision.WithLogger(logger))
	f.pip.FailUpgrade()
	m := manifest.MustNew(library(t, "fastapi")).WithUpgradeInstallers(true)

	results, status, err := f.prov.Run(context.Background(), m)

	require.NoError(t, err)
	assert.Equal(t, provision.StatusOK, status)
	assert.Equal(t, provision.OutcomeInstalled, results[0].Outcome())
	assert.Contains(t, buf.String(), "installer self-upgrade failed")
}

func TestProvisioner_Run_LogsRunID(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewConsoleLogger(logging.WithOutput(&buf))
	f := newFixture(t)
	ctx := ports.ContextWithLogger(context.Background(), logger)

	_, _, err := f.prov.Run(ctx, manifest.MustNew(library(t, "fastapi")))

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "run_id=")
	assert.Contains(t, buf.String(), "provisioning finished")
}

func TestProvisioner_Phase(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, provision.PhaseIdle, f.prov.Phase())

	_, _, err := f.prov.Run(context.Background(), manifest.MustNew(library(t, "fastapi")))
	require.NoError(t, err)
	assert.Equal(t, provision.PhaseCompleted, f.prov.Phase())

	f.env.BreakQueries(errors.New("broken"))
	_, _, err = f.prov.Run(context.Background(), manifest.MustNew(library(t, "uvicorn")))
	require.Error(t, err)
	assert.Equal(t, provision.PhaseAborted, f.prov.Phase())

	f.env.BreakQueries(nil)
	_, _, err = f.prov.Run(context.Background(), manifest.MustNew(library(t, "uvicorn")))
	require.NoError(t, err)
	assert.Equal(t, provision.PhaseCompleted, f.prov.Phase())
}
