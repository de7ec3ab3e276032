package brew

import (
	"context"
	"errors"
	"os/exec"
	"testing"

	"github.com/felixgeelhaar/provisioner/internal/ports"
	"github.com/felixgeelhaar/provisioner/internal/testutil/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_Query(t *testing.T) {
	tests := []struct {
		name       string
		stdout     string
		constraint string
		want       bool
	}{
		{"installed", "ffmpeg 7.0_1\n", "", true},
		{"one of several versions matches", "ffmpeg 6.1.1_2 7.0\n", "<7", true},
		{"no version matches", "ffmpeg 6.1.1_2\n", ">=7", false},
		{"empty output", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := mocks.NewCommandRunner()
			runner.AddOutput("brew", []string{"list", "--versions", "ffmpeg"}, tt.stdout)

			got, err := NewManager(runner).Query(context.Background(), "ffmpeg", tt.constraint)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestManager_Query_NotInstalled(t *testing.T) {
	runner := mocks.NewCommandRunner()
	runner.AddFailure("brew", []string{"list", "--versions", "jq"}, 1, "")

	got, err := NewManager(runner).Query(context.Background(), "jq", "")
	require.NoError(t, err)
	assert.False(t, got)
}

func TestManager_Query_MechanismBroken(t *testing.T) {
	runner := mocks.NewCommandRunner()
	runner.AddError("brew", []string{"list", "--versions", "jq"}, errors.New("brew: not found"))

	_, err := NewManager(runner).Query(context.Background(), "jq", "")
	assert.ErrorContains(t, err, "brew list jq")
}

func TestManager_Query_InstallerMissing(t *testing.T) {
	runner := mocks.NewCommandRunner()
	runner.AddError("brew", []string{"list", "--versions", "jq"}, &exec.Error{Name: "brew", Err: exec.ErrNotFound})

	_, err := NewManager(runner).Query(context.Background(), "jq", "")
	require.ErrorIs(t, err, ports.ErrInstallerNotFound)
	assert.NotContains(t, err.Error(), "brew list jq")
}

func TestManager_Install(t *testing.T) {
	runner := mocks.NewCommandRunner()
	runner.AddOutput("brew", []string{"install", "ffmpeg"}, "==> Pouring ffmpeg--7.0.arm64_sonoma.bottle.tar.gz\n")

	outcome, err := NewManager(runner).Install(context.Background(), "ffmpeg", ">=6")
	require.NoError(t, err)
	assert.True(t, outcome.Success)
}

func TestManager_Install_Failure(t *testing.T) {
	runner := mocks.NewCommandRunner()
	runner.AddFailure("brew", []string{"install", "nosuch"}, 1, "Error: No available formula with the name \"nosuch\".")

	outcome, err := NewManager(runner).Install(context.Background(), "nosuch", "")
	require.NoError(t, err)
	assert.False(t, outcome.Success)
	assert.Contains(t, outcome.Message, "No available formula")
}

func TestManager_Upgrade(t *testing.T) {
	runner := mocks.NewCommandRunner()
	runner.AddOutput("brew", []string{"update"}, "Already up-to-date.")

	require.NoError(t, NewManager(runner).Upgrade(context.Background()))
}

func TestInstalledVersions(t *testing.T) {
	assert.Equal(t, []string{"6.1.1", "7.0"}, InstalledVersions("ffmpeg 6.1.1_2 7.0\n"))
	assert.Nil(t, InstalledVersions("ffmpeg"))
	assert.Nil(t, InstalledVersions(""))
}
