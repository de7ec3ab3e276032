package manifest

import (
	"errors"
	"testing"

	"github.com/felixgeelhaar/provisioner/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	k, err := ParseKind("")
	require.NoError(t, err)
	assert.Equal(t, KindLibrary, k)

	k, err = ParseKind(" Binary ")
	require.NoError(t, err)
	assert.Equal(t, KindBinary, k)

	_, err = ParseKind("service")
	assert.Error(t, err)
}

func TestNewEntry(t *testing.T) {
	e, err := NewEntry("uvicorn[standard]", KindLibrary, ">=0.30")
	require.NoError(t, err)
	assert.Equal(t, "uvicorn[standard]", e.Name())
	assert.Equal(t, "uvicorn", e.BaseName())
	assert.Equal(t, KindLibrary, e.Kind())
	assert.Equal(t, ">=0.30", e.Constraint())
	assert.True(t, e.HasConstraint())
	assert.Equal(t, "library:uvicorn[standard]>=0.30", e.String())
}

func TestNewEntry_Invalid(t *testing.T) {
	tests := []struct {
		name       string
		entryName  string
		kind       Kind
		constraint string
		wantErr    error
	}{
		{"empty name", "  ", KindLibrary, "", nil},
		{"unknown kind", "ffmpeg", Kind("service"), "", nil},
		{"injection in library", "fastapi;reboot", KindLibrary, "", validation.ErrCommandInjection},
		{"injection in binary", "ffmpeg && curl", KindBinary, "", validation.ErrCommandInjection},
		{"bad constraint", "fastapi", KindLibrary, ">>1", validation.ErrInvalidConstraint},
		{"semantically bad constraint", "fastapi", KindLibrary, "~=1", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEntry(tt.entryName, tt.kind, tt.constraint)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestMustNewEntry_Panics(t *testing.T) {
	assert.Panics(t, func() { MustNewEntry("", KindLibrary, "") })
}

func TestLibraryAndBinary(t *testing.T) {
	lib, err := Library("fastapi==0.115.0")
	require.NoError(t, err)
	assert.Equal(t, "fastapi", lib.Name())
	assert.Equal(t, "==0.115.0", lib.Constraint())

	bin, err := Binary("ffmpeg")
	require.NoError(t, err)
	assert.Equal(t, KindBinary, bin.Kind())
	assert.False(t, bin.HasConstraint())
}

func TestEntry_Key(t *testing.T) {
	a := MustNewEntry("Yt_DLP", KindLibrary, "")
	b := MustNewEntry("yt-dlp", KindLibrary, ">=2024.1")
	assert.Equal(t, a.Key(), b.Key())

	bin := MustNewEntry("yt-dlp", KindBinary, "")
	assert.NotEqual(t, a.Key(), bin.Key(), "kinds are distinct namespaces")
}

func TestSplitRequirement(t *testing.T) {
	tests := []struct {
		in             string
		wantName       string
		wantConstraint string
	}{
		{"fastapi", "fastapi", ""},
		{"uvicorn>=0.30", "uvicorn", ">=0.30"},
		{"uvicorn[standard] >= 0.30, <1", "uvicorn[standard]", ">= 0.30, <1"},
		{"requests==2.32.3 ; python_version >= '3.8'", "requests", "==2.32.3"},
		{"httpx~=0.27 # pinned for tests", "httpx", "~=0.27"},
		{"  pydantic  ", "pydantic", ""},
	}

	for _, tt := range tests {
		name, constraint := SplitRequirement(tt.in)
		assert.Equal(t, tt.wantName, name, tt.in)
		assert.Equal(t, tt.wantConstraint, constraint, tt.in)
	}
}

func TestNormalizeLibraryName(t *testing.T) {
	assert.Equal(t, "zope-interface", NormalizeLibraryName("Zope.Interface"))
	assert.Equal(t, "yt-dlp", NormalizeLibraryName("yt__dlp"))
}
