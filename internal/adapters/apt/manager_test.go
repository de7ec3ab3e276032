package apt

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

func dpkgArgs(name string) []string {
	return []string{"-W", "-f=${Version}\t${db:Status-Status}\n", name}
}

func TestManager_Query(t *testing.T) {
	tests := []struct {
		name       string
		stdout     string
		constraint string
		want       bool
	}{
		{"installed", "7:6.1.1-3ubuntu5\tinstalled\n", "", true},
		{"config-files only", "7:6.1.1-3ubuntu5\tconfig-files\n", "", false},
		{"version in range", "7:6.1.1-3ubuntu5\tinstalled\n", ">=6", true},
		{"version below range", "7:4.4.2-0ubuntu0.22.04.1\tinstalled\n", ">=6", false},
		{"exact pin", "1.6-2\tinstalled\n", "==1.6", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := mocks.NewCommandRunner()
			runner.AddOutput("dpkg-query", dpkgArgs("ffmpeg"), tt.stdout)

			got, err := NewManager(runner, false).Query(context.Background(), "ffmpeg", tt.constraint)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestManager_Query_NotInstalled(t *testing.T) {
	runner := mocks.NewCommandRunner()
	runner.AddFailure("dpkg-query", dpkgArgs("jq"), 1, "dpkg-query: no packages found matching jq")

	got, err := NewManager(runner, false).Query(context.Background(), "jq", "")
	require.NoError(t, err)
	assert.False(t, got)
}

func TestManager_Query_MechanismBroken(t *testing.T) {
	runner := mocks.NewCommandRunner()
	runner.AddError("dpkg-query", dpkgArgs("jq"), errors.New("executable file not found"))

	_, err := NewManager(runner, false).Query(context.Background(), "jq", "")
	assert.Error(t, err)
}

func TestManager_Query_InstallerMissing(t *testing.T) {
	runner := mocks.NewCommandRunner()
	runner.AddError("dpkg-query", dpkgArgs("jq"), &exec.Error{Name: "dpkg-query", Err: exec.ErrNotFound})

	_, err := NewManager(runner, false).Query(context.Background(), "jq", "")
	require.ErrorIs(t, err, ports.ErrInstallerNotFound)
	assert.ErrorContains(t, err, "dpkg-query")
}

func TestManager_Install(t *testing.T) {
	tests := []struct {
		name       string
		sudo       bool
		constraint string
		command    string
		args       []string
	}{
		{"plain", false, "", "apt-get", []string{"install", "-y", "--no-install-recommends", "ffmpeg"}},
		{"sudo", true, "", "sudo", []string{"apt-get", "install", "-y", "--no-install-recommends", "ffmpeg"}},
		{"exact pin", false, "==6.1.1", "apt-get", []string{"install", "-y", "--no-install-recommends", "ffmpeg=6.1.1"}},
		{"range installs candidate", false, ">=6", "apt-get", []string{"install", "-y", "--no-install-recommends", "ffmpeg"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := mocks.NewCommandRunner()
			runner.AddOutput(tt.command, tt.args, "Setting up ffmpeg (7:6.1.1-3ubuntu5) ...\n")

			outcome, err := NewManager(runner, tt.sudo).Install(context.Background(), "ffmpeg", tt.constraint)
			require.NoError(t, err)
			assert.True(t, outcome.Success)
			assert.Equal(t, "Setting up ffmpeg (7:6.1.1-3ubuntu5) ...", outcome.Message)
		})
	}
}

func TestManager_Install_Failure(t *testing.T) {
	runner := mocks.NewCommandRunner()
	runner.AddFailure("apt-get", []string{"install", "-y", "--no-install-recommends", "nosuch"}, 100,
		"E: Unable to locate package nosuch\n")

	outcome, err := NewManager(runner, false).Install(context.Background(), "nosuch", "")
	require.NoError(t, err)
	assert.False(t, outcome.Success)
	assert.Equal(t, "E: Unable to locate package nosuch", outcome.Message)
}

func TestManager_Install_RejectsInvalidName(t *testing.T) {
	runner := mocks.NewCommandRunner()

	_, err := NewManager(runner, true).Install(context.Background(), "ffmpeg && reboot", "")
	assert.Error(t, err)
	assert.Empty(t, runner.Calls())
}

func TestManager_Upgrade(t *testing.T) {
	runner := mocks.NewCommandRunner()
	runner.AddOutput("sudo", []string{"apt-get", "update"}, "Reading package lists... Done")

	require.NoError(t, NewManager(runner, true).Upgrade(context.Background()))

	runner.Reset()
	runner.AddFailure("apt-get", []string{"update"}, 100, "E: Could not get lock /var/lib/apt/lists/lock")
	assert.ErrorContains(t, NewManager(runner, false).Upgrade(context.Background()), "Could not get lock")
}

func TestUpstreamVersion(t *testing.T) {
	tests := map[string]string{
		"7:6.1.1-3ubuntu5":       "6.1.1",
		"1.6-2":                  "1.6",
		"2.39.2":                 "2.39.2",
		"1:2.0.0+dfsg-1":         "2.0.0",
		"4.4.2-0ubuntu0.22.04.1": "4.4.2",
	}
	for in, want := range tests {
		assert.Equal(t, want, UpstreamVersion(in), in)
	}
}
