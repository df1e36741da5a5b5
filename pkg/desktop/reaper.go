package desktop

import (
	"log/slog"
	"syscall"

	"github.com/osamabinlikhon/xfce-desktop/pkg/proctable"
)

// Reaper terminates stale instances of a role before it is relaunched.
// The display and port identifiers are fixed, so an old instance left
// running would hold them and the relaunch would fail to bind.
type Reaper struct {
	table   proctable.Table
	metrics Metrics
	logger  *slog.Logger
}

// NewReaper creates a Reaper over the given process table.
func NewReaper(table proctable.Table, metrics Metrics, logger *slog.Logger) *Reaper {
	if metrics == nil {
		metrics = NopMetrics()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reaper{table: table, metrics: metrics, logger: logger}
}

// Reap terminates any running instance of the role. When knownPID is a
// live process recorded at spawn time, only that pid is signalled;
// otherwise every process matching the spec's command-line name is.
// Failures are logged and swallowed: absence of a stale instance is
// the success case, and the launch proceeds regardless.
func (r *Reaper) Reap(spec ProcessSpec, knownPID int) {
	log := r.logger.With("role", spec.Role.String())

	if knownPID > 0 && proctable.Alive(r.table, knownPID) {
		if err := r.table.Signal(knownPID, syscall.SIGKILL); err != nil {
			log.Warn("failed to kill recorded instance", "pid", knownPID, "error", err)
			return
		}
		log.Info("reaped recorded instance", "pid", knownPID)
		r.metrics.RoleReaped(spec.Role, 1)
		return
	}

	pids, err := proctable.FindByName(r.table, spec.MatchName)
	if err != nil {
		log.Warn("could not scan process table", "error", err)
		return
	}
	if len(pids) == 0 {
		return
	}

	reaped := 0
	for _, pid := range pids {
		if err := r.table.Signal(pid, syscall.SIGKILL); err != nil {
			log.Warn("failed to kill stale instance", "pid", pid, "error", err)
			continue
		}
		reaped++
	}

	log.Info("reaped stale instances", "matched", len(pids), "killed", reaped)
	r.metrics.RoleReaped(spec.Role, reaped)
}
