// Package config holds the orchestrator's process-wide configuration.
// Values come from viper (flags, environment, optional config file) and
// are read once at startup; a Config is never mutated after Load.
package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config is the validated orchestrator configuration. The password,
// resolution and port values feed the process specs of multiple roles.
type Config struct {
	// VNC authentication
	Password   string
	PasswdFile string

	// Screen geometry
	Resolution string // WIDTHxHEIGHT, e.g. "1280x720"
	ColorDepth int
	Display    string // X display identifier, e.g. ":1"

	// Ports
	VNCPort    int
	BridgePort int

	// Web surface
	HTTPListen string
	NovncDir   string

	// Optional role-override manifest (YAML)
	ManifestPath string

	// Observability
	MetricsEnabled bool
	TracingEnabled bool
}

var (
	resolutionRe = regexp.MustCompile(`^(\d+)x(\d+)$`)
	displayRe    = regexp.MustCompile(`^:\d+$`)
)

// SetDefaults registers defaults and environment bindings on the global
// viper instance. Called once from the CLI before flags are bound.
func SetDefaults() {
	viper.SetDefault("vnc.password", "huggingface")
	viper.SetDefault("vnc.port", 5900)
	viper.SetDefault("vnc.passwd_file", "/tmp/vnc_passwd")
	viper.SetDefault("desktop.resolution", "1280x720")
	viper.SetDefault("desktop.display", ":1")
	viper.SetDefault("desktop.color_depth", 24)
	viper.SetDefault("desktop.manifest", "")
	viper.SetDefault("bridge.port", 6080)
	viper.SetDefault("bridge.web_dir", "/home/user/novnc")
	viper.SetDefault("http.listen", ":7860")
	viper.SetDefault("observe.metrics", true)
	viper.SetDefault("observe.tracing", false)

	viper.BindEnv("vnc.password", "VNC_PASSWORD")
	viper.BindEnv("vnc.port", "VNC_PORT")
	viper.BindEnv("desktop.resolution", "RESOLUTION")
	viper.BindEnv("desktop.display", "DISPLAY_NUM")
	viper.BindEnv("desktop.manifest", "ROLE_MANIFEST")
	viper.BindEnv("bridge.port", "WEBSOCKIFY_PORT")
	viper.BindEnv("bridge.web_dir", "NOVNC_DIR")
	viper.BindEnv("http.listen", "HTTP_LISTEN")
}

// Load reads the configuration from viper and validates it. A
// validation error here is fatal to the orchestrator: a malformed
// resolution or port would produce a broken spec for every dependent
// role, so nothing may be spawned first.
func Load() (*Config, error) {
	cfg := &Config{
		Password:       viper.GetString("vnc.password"),
		PasswdFile:     viper.GetString("vnc.passwd_file"),
		Resolution:     viper.GetString("desktop.resolution"),
		ColorDepth:     viper.GetInt("desktop.color_depth"),
		Display:        viper.GetString("desktop.display"),
		VNCPort:        viper.GetInt("vnc.port"),
		BridgePort:     viper.GetInt("bridge.port"),
		HTTPListen:     viper.GetString("http.listen"),
		NovncDir:       viper.GetString("bridge.web_dir"),
		ManifestPath:   viper.GetString("desktop.manifest"),
		MetricsEnabled: viper.GetBool("observe.metrics"),
		TracingEnabled: viper.GetBool("observe.tracing"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values that would break the
// process specs.
func (c *Config) Validate() error {
	m := resolutionRe.FindStringSubmatch(c.Resolution)
	if m == nil {
		return fmt.Errorf("invalid resolution %q: expected WIDTHxHEIGHT", c.Resolution)
	}
	width, _ := strconv.Atoi(m[1])
	height, _ := strconv.Atoi(m[2])
	if width == 0 || height == 0 {
		return fmt.Errorf("invalid resolution %q: dimensions must be positive", c.Resolution)
	}

	switch c.ColorDepth {
	case 8, 16, 24:
	default:
		return fmt.Errorf("invalid color depth %d: must be 8, 16 or 24", c.ColorDepth)
	}

	if !displayRe.MatchString(c.Display) {
		return fmt.Errorf("invalid display %q: expected :N", c.Display)
	}

	if err := validPort("vnc.port", c.VNCPort); err != nil {
		return err
	}
	if err := validPort("bridge.port", c.BridgePort); err != nil {
		return err
	}

	if c.Password == "" {
		return fmt.Errorf("vnc.password must not be empty")
	}
	if c.PasswdFile == "" {
		return fmt.Errorf("vnc.passwd_file must not be empty")
	}
	if !strings.Contains(c.HTTPListen, ":") {
		return fmt.Errorf("invalid http.listen %q: expected [host]:port", c.HTTPListen)
	}

	return nil
}

// ScreenGeometry returns the Xvfb screen string: the configured
// resolution with the color depth appended ("1280x720x24").
func (c *Config) ScreenGeometry() string {
	return fmt.Sprintf("%sx%d", c.Resolution, c.ColorDepth)
}

func validPort(name string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid %s %d: must be between 1 and 65535", name, port)
	}
	return nil
}
