// Package desktop orchestrates the external processes that make up the
// browser-accessible desktop: the virtual framebuffer, the desktop
// session, the VNC server and the websocket bridge. It launches them in
// dependency order, reaps stale instances before each launch, and
// reports per-role liveness on demand.
package desktop

import (
	"fmt"
	"os"
	"time"

	"github.com/osamabinlikhon/xfce-desktop/pkg/config"
)

// Role identifies one of the fixed set of managed processes. At most
// one live OS process is associated with a role once the reaper has
// run for it.
type Role int

const (
	// RoleDisplayServer - Xvfb virtual framebuffer
	RoleDisplayServer Role = iota
	// RoleWindowSession - Xfce desktop session
	RoleWindowSession
	// RoleRemoteDisplay - x11vnc server
	RoleRemoteDisplay
	// RoleWebSocketBridge - websockify, bridging noVNC to the VNC port
	RoleWebSocketBridge
)

// String returns the role's status key. The keys are wire-visible in
// the status resource and match what browser clients already poll.
func (r Role) String() string {
	switch r {
	case RoleDisplayServer:
		return "xvfb"
	case RoleWindowSession:
		return "xfce"
	case RoleRemoteDisplay:
		return "vnc"
	case RoleWebSocketBridge:
		return "websockify"
	default:
		return "unknown"
	}
}

// ParseRole maps a status key back to its Role.
func ParseRole(s string) (Role, error) {
	for _, r := range BootOrder {
		if r.String() == s {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

// BootOrder is the fixed startup sequence. Each later role depends on
// identifiers (display number, VNC port) that the earlier role must
// have bound first.
var BootOrder = []Role{
	RoleDisplayServer,
	RoleWindowSession,
	RoleRemoteDisplay,
	RoleWebSocketBridge,
}

// ProcessSpec describes how to launch one managed process. Specs are
// built once at startup and never mutated afterwards.
type ProcessSpec struct {
	Role       Role
	Executable string
	Args       []string

	// Env entries (KEY=VALUE) appended to the orchestrator's own
	// environment for this process.
	Env []string

	// MatchName is the command-line pattern used for name-based
	// reaping and probing when no recorded pid is available.
	MatchName string

	// PreLaunch runs before the process is spawned (e.g. writing the
	// VNC password file).
	PreLaunch func() error

	// Settle is how long to wait after spawning before the next role
	// starts. A fixed delay, not a readiness poll.
	Settle time.Duration
}

// Default settle durations, matching the delays the pipeline has
// historically needed on a cold container start.
const (
	defaultDisplaySettle = 2 * time.Second
	defaultSessionSettle = 3 * time.Second
	defaultVNCSettle     = 2 * time.Second
	defaultBridgeSettle  = 2 * time.Second
)

// BuildSpecs constructs the four process specs from the configuration.
// The resolution feeds the display server, the display identifier is
// shared by the session and VNC roles, and the VNC port ties the VNC
// server to the bridge.
func BuildSpecs(cfg *config.Config) map[Role]ProcessSpec {
	passwdFile := cfg.PasswdFile
	secret := cfg.Password

	return map[Role]ProcessSpec{
		RoleDisplayServer: {
			Role:       RoleDisplayServer,
			Executable: "Xvfb",
			Args: []string{
				cfg.Display,
				"-screen", "0", cfg.ScreenGeometry(),
				"-ac",
				"+extension", "GLX",
			},
			MatchName: "Xvfb",
			Settle:    defaultDisplaySettle,
		},
		RoleWindowSession: {
			Role:       RoleWindowSession,
			Executable: "startxfce4",
			Env:        []string{"DISPLAY=" + cfg.Display},
			MatchName:  "xfce",
			Settle:     defaultSessionSettle,
		},
		RoleRemoteDisplay: {
			Role:       RoleRemoteDisplay,
			Executable: "x11vnc",
			Args: []string{
				"-display", cfg.Display,
				"-localhost",
				"-forever",
				"-shared",
				"-rfbport", fmt.Sprintf("%d", cfg.VNCPort),
				"-rfbauth", passwdFile,
			},
			MatchName: "x11vnc",
			PreLaunch: func() error {
				return WriteCredentials(passwdFile, secret)
			},
			Settle: defaultVNCSettle,
		},
		RoleWebSocketBridge: {
			Role:       RoleWebSocketBridge,
			Executable: "websockify",
			Args: []string{
				"--web", cfg.NovncDir,
				fmt.Sprintf("%d", cfg.BridgePort),
				fmt.Sprintf("localhost:%d", cfg.VNCPort),
			},
			MatchName: "websockify",
			Settle:    defaultBridgeSettle,
		},
	}
}

// WriteCredentials writes the VNC authentication secret to path with
// permissions restricting access to the owning user. The external VNC
// server reads it via its -rfbauth argument; creation and permission
// restriction belong to the orchestrator.
func WriteCredentials(path, secret string) error {
	if err := os.WriteFile(path, []byte(secret), 0o600); err != nil {
		return fmt.Errorf("write credentials file: %w", err)
	}
	// WriteFile only applies the mode on creation; force it in case
	// the file already existed with looser permissions.
	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("restrict credentials file: %w", err)
	}
	return nil
}
