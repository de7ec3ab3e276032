package mocks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvironment_QueryAndInstall(t *testing.T) {
	ctx := context.Background()
	env := NewEnvironment()
	pip := env.LibraryManager("pip")

	ok, err := pip.Query(ctx, "fastapi", "")
	require.NoError(t, err)
	assert.False(t, ok)

	outcome, err := pip.Install(ctx, "fastapi", "==0.110.0")
	require.NoError(t, err)
	assert.True(t, outcome.Success)

	ok, err = pip.Query(ctx, "fastapi", "==0.110.0")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = pip.Query(ctx, "fastapi", "==0.99.0")
	require.NoError(t, err)
	assert.False(t, ok)

	path, err := env.Resolve(ctx, "fastapi")
	require.NoError(t, err)
	assert.Empty(t, path, "library installs do not touch PATH")
	assert.Equal(t, []string{"fastapi"}, env.Installs())
}

func TestEnvironment_BinaryManagerPutsOnPath(t *testing.T) {
	ctx := context.Background()
	env := NewEnvironment()
	apt := env.BinaryManager("apt").HideAfterInstall("ghost")

	_, err := apt.Install(ctx, "ffmpeg", "")
	require.NoError(t, err)
	_, err = apt.Install(ctx, "ghost", "")
	require.NoError(t, err)

	path, err := env.Resolve(ctx, "ffmpeg")
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/ffmpeg", path)

	path, err = env.Resolve(ctx, "ghost")
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestEnvironment_Behaviors(t *testing.T) {
	env := NewEnvironment()
	pip := env.LibraryManager("pip").
		On("gamma", Fail("no matching distribution")).
		On("slow", Hang())

	outcome, err := pip.Install(context.Background(), "gamma", "")
	require.NoError(t, err)
	assert.False(t, outcome.Success)
	assert.Equal(t, "no matching distribution", outcome.Message)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = pip.Install(ctx, "slow", "")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	ok, err := pip.Query(context.Background(), "gamma", "")
	require.NoError(t, err)
	assert.False(t, ok, "failed installs are not recorded")
}

func TestEnvironment_BreakQueries(t *testing.T) {
	env := NewEnvironment()
	boom := errors.New("pip not found")
	env.BreakQueries(boom)

	_, err := env.LibraryManager("pip").Query(context.Background(), "fastapi", "")
	assert.ErrorIs(t, err, boom)

	_, err = env.Resolve(context.Background(), "ffmpeg")
	assert.ErrorIs(t, err, boom)
}

func TestEnvironment_Upgrade(t *testing.T) {
	env := NewEnvironment()

	require.NoError(t, env.LibraryManager("pip").Upgrade(context.Background()))
	assert.Error(t, env.BinaryManager("apt").FailUpgrade().Upgrade(context.Background()))
	assert.Equal(t, []string{"pip"}, env.Upgrades())
}
