package desktop

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "roles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadManifestAndApply(t *testing.T) {
	path := writeManifest(t, `
roles:
  xvfb:
    executable: /opt/X11/bin/Xvfb
    extra_args: ["-nolisten", "tcp"]
    settle: 4s
  websockify:
    settle: 500ms
`)

	manifest, err := LoadManifest(path)
	require.NoError(t, err)

	specs := BuildSpecs(testConfig())
	originalArgs := len(specs[RoleDisplayServer].Args)

	applied, err := manifest.Apply(specs)
	require.NoError(t, err)

	display := applied[RoleDisplayServer]
	assert.Equal(t, "/opt/X11/bin/Xvfb", display.Executable)
	assert.Contains(t, display.Args, "-nolisten")
	assert.Contains(t, display.Args, "tcp")
	assert.Equal(t, 4*time.Second, display.Settle)

	assert.Equal(t, 500*time.Millisecond, applied[RoleWebSocketBridge].Settle)

	// The input specs are untouched.
	assert.Equal(t, "Xvfb", specs[RoleDisplayServer].Executable)
	assert.Len(t, specs[RoleDisplayServer].Args, originalArgs)

	// Roles without overrides pass through unchanged.
	assert.Equal(t, specs[RoleWindowSession], applied[RoleWindowSession])
}

func TestLoadManifestRejectsUnknownRole(t *testing.T) {
	path := writeManifest(t, `
roles:
  compositor:
    executable: /usr/bin/picom
`)
	_, err := LoadManifest(path)
	assert.Error(t, err)
}

func TestLoadManifestRejectsBadSettle(t *testing.T) {
	path := writeManifest(t, `
roles:
  xvfb:
    settle: soon
`)
	_, err := LoadManifest(path)
	assert.Error(t, err)
}

func TestLoadManifestRejectsNegativeSettle(t *testing.T) {
	path := writeManifest(t, `
roles:
  xvfb:
    settle: -2s
`)
	_, err := LoadManifest(path)
	assert.Error(t, err)
}

func TestLoadManifestMissingFile(t *testing.T) {
	_, err := LoadManifest(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadManifestBadYAML(t *testing.T) {
	path := writeManifest(t, "roles: [broken")
	_, err := LoadManifest(path)
	assert.Error(t, err)
}
