package brand

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentityLoaded(t *testing.T) {
	got := Get()

	assert.NotEmpty(t, got.Name)
	assert.NotEmpty(t, got.LowerName)
	assert.NotEmpty(t, got.BinaryName)
	assert.NotEmpty(t, got.DefaultConfigDir)
	assert.NotEmpty(t, got.ConfigFileName)
}

func TestShorthandsMatchIdentity(t *testing.T) {
	got := Get()

	assert.Equal(t, got.Name, Name)
	assert.Equal(t, got.Description, Description)
	assert.Equal(t, got.BinaryName, BinaryName)
}

func TestVersionDefaults(t *testing.T) {
	// Overridden by -ldflags in release builds.
	assert.NotEmpty(t, Version)
	assert.NotEmpty(t, BuildTime)
	assert.NotEmpty(t, GitCommit)
}

func TestDefaultConfigPath(t *testing.T) {
	want := filepath.Join(Get().DefaultConfigDir, Get().ConfigFileName)
	assert.Equal(t, want, DefaultConfigPath())
}
