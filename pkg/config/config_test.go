package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadWith(t *testing.T, overrides map[string]any) (*Config, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	SetDefaults()
	for k, v := range overrides {
		viper.Set(k, v)
	}
	return Load()
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := loadWith(t, nil)
	require.NoError(t, err)

	assert.Equal(t, "huggingface", cfg.Password)
	assert.Equal(t, "1280x720", cfg.Resolution)
	assert.Equal(t, 24, cfg.ColorDepth)
	assert.Equal(t, ":1", cfg.Display)
	assert.Equal(t, 5900, cfg.VNCPort)
	assert.Equal(t, 6080, cfg.BridgePort)
	assert.Equal(t, ":7860", cfg.HTTPListen)
	assert.Equal(t, "/tmp/vnc_passwd", cfg.PasswdFile)
	assert.True(t, cfg.MetricsEnabled)
	assert.False(t, cfg.TracingEnabled)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("VNC_PASSWORD", "sekrit")
	t.Setenv("RESOLUTION", "1920x1080")
	t.Setenv("VNC_PORT", "5901")

	cfg, err := loadWith(t, nil)
	require.NoError(t, err)

	assert.Equal(t, "sekrit", cfg.Password)
	assert.Equal(t, "1920x1080", cfg.Resolution)
	assert.Equal(t, 5901, cfg.VNCPort)
}

func TestScreenGeometry(t *testing.T) {
	cfg, err := loadWith(t, map[string]any{"desktop.resolution": "1280x720"})
	require.NoError(t, err)
	assert.Equal(t, "1280x720x24", cfg.ScreenGeometry())
}

func TestValidateRejectsBadResolution(t *testing.T) {
	for _, bad := range []string{"1280×720", "x720", "1280x", "0x720", "1280x0", "wide"} {
		_, err := loadWith(t, map[string]any{"desktop.resolution": bad})
		assert.Error(t, err, "resolution %q should be rejected", bad)
	}
}

func TestValidateRejectsBadPorts(t *testing.T) {
	_, err := loadWith(t, map[string]any{"vnc.port": 0})
	assert.Error(t, err)

	_, err = loadWith(t, map[string]any{"vnc.port": 70000})
	assert.Error(t, err)

	_, err = loadWith(t, map[string]any{"bridge.port": -1})
	assert.Error(t, err)
}

func TestValidateRejectsBadDisplay(t *testing.T) {
	_, err := loadWith(t, map[string]any{"desktop.display": "1"})
	assert.Error(t, err)

	_, err = loadWith(t, map[string]any{"desktop.display": ":one"})
	assert.Error(t, err)
}

func TestValidateRejectsBadDepth(t *testing.T) {
	_, err := loadWith(t, map[string]any{"desktop.color_depth": 32})
	assert.Error(t, err)
}

func TestValidateRejectsEmptyPassword(t *testing.T) {
	_, err := loadWith(t, map[string]any{"vnc.password": ""})
	assert.Error(t, err)
}
