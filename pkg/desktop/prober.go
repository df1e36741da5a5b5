package desktop

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/osamabinlikhon/xfce-desktop/pkg/proctable"
)

// Snapshot is a point-in-time report of which roles have a running
// process. Recomputed on every probe, never cached or persisted.
type Snapshot struct {
	Roles map[Role]bool
	Ready bool
}

// MarshalJSON renders the snapshot in the wire format clients poll:
// one boolean per role key plus the aggregate "ready" flag.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	out := make(map[string]bool, len(s.Roles)+1)
	for role, up := range s.Roles {
		out[role.String()] = up
	}
	out["ready"] = s.Ready
	return json.Marshal(out)
}

// Prober computes liveness snapshots from the process table. It is
// read-only and safe for concurrent use: probes share no mutable
// state, so concurrent probes are race-free by construction.
type Prober struct {
	specs   map[Role]ProcessSpec
	table   proctable.Table
	metrics Metrics
	handle  func(Role) (Handle, bool)
}

// NewProber creates a standalone prober. handle may be nil when no
// supervisor handles are available (name-scanning is then the only
// check); most callers obtain a prober from Supervisor.Prober instead.
func NewProber(specs map[Role]ProcessSpec, table proctable.Table, handle func(Role) (Handle, bool)) *Prober {
	return &Prober{specs: specs, table: table, metrics: NopMetrics(), handle: handle}
}

// Probe reports, per role, whether a matching process currently exists
// in the process table, plus the aggregate ready flag. A role's
// recorded pid is checked first; the command-line name scan is the
// fallback for instances the orchestrator did not start itself.
//
// An error is returned only when the process table itself cannot be
// queried - that is a distinct failure, not "role not running".
func (p *Prober) Probe() (Snapshot, error) {
	start := time.Now()
	snap, err := p.probe()
	p.metrics.ProbeDuration(time.Since(start), err)
	return snap, err
}

func (p *Prober) probe() (Snapshot, error) {
	snap := Snapshot{Roles: make(map[Role]bool, len(BootOrder)), Ready: true}

	// A single listing failure fails the whole probe: every name scan
	// would hit the same broken table.
	if _, err := p.table.Pids(); err != nil {
		return Snapshot{}, fmt.Errorf("probe process table: %w", err)
	}

	for _, role := range BootOrder {
		up := p.roleUp(role)
		snap.Roles[role] = up
		p.metrics.RoleUp(role, up)
		if !up {
			snap.Ready = false
		}
	}
	return snap, nil
}

func (p *Prober) roleUp(role Role) bool {
	if p.handle != nil {
		if h, ok := p.handle(role); ok && proctable.Alive(p.table, h.PID) {
			return true
		}
	}

	pids, err := proctable.FindByName(p.table, p.specs[role].MatchName)
	if err != nil {
		return false
	}
	return len(pids) > 0
}

// WaitReady polls Probe until the snapshot reports ready or ctx is
// done. Probe errors are treated as not-ready and retried. Callers use
// this for logging and diagnostics only; serving never waits on it,
// since the status resource is well-defined for the not-ready state.
func (p *Prober) WaitReady(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if snap, err := p.Probe(); err == nil && snap.Ready {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
