package desktop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/osamabinlikhon/xfce-desktop/pkg/proctable"
)

// ErrBootstrapInProgress is returned when Bootstrap is invoked while a
// previous invocation is still running. The launch sequence races on
// the reap/spawn steps for the same roles, so only one lifecycle task
// may drive it at a time.
var ErrBootstrapInProgress = errors.New("bootstrap already in progress")

// Spawner starts one managed process and returns its pid. The real
// implementation spawns detached from the orchestrator's process
// group; tests substitute a fake.
type Spawner interface {
	Spawn(spec ProcessSpec) (pid int, err error)
}

// Handle is the runtime record of a spawned role. Owned exclusively by
// the Supervisor; accessors return copies.
type Handle struct {
	Role      Role
	PID       int
	StartedAt time.Time
}

// Supervisor launches the managed roles in dependency order and owns
// their handles. Probes read the handles through the Prober; only the
// bootstrap path mutates them.
type Supervisor struct {
	specs   map[Role]ProcessSpec
	table   proctable.Table
	spawner Spawner
	reaper  *Reaper
	metrics Metrics
	logger  *slog.Logger
	tracer  trace.Tracer

	// sleep is swappable so tests do not pay real settle delays.
	sleep func(ctx context.Context, d time.Duration) error

	mu      sync.Mutex
	handles map[Role]Handle

	booting atomic.Bool
}

// Option configures the Supervisor.
type Option func(*Supervisor)

// WithTable sets the process table implementation.
func WithTable(table proctable.Table) Option {
	return func(s *Supervisor) { s.table = table }
}

// WithSpawner sets the process spawner.
func WithSpawner(spawner Spawner) Option {
	return func(s *Supervisor) { s.spawner = spawner }
}

// WithMetrics sets the metrics collector.
func WithMetrics(metrics Metrics) Option {
	return func(s *Supervisor) { s.metrics = metrics }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Supervisor) { s.logger = logger }
}

// WithTracer sets the tracer used to wrap bootstrap stages in spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Supervisor) { s.tracer = tracer }
}

// NewSupervisor creates a Supervisor for the given specs.
func NewSupervisor(specs map[Role]ProcessSpec, opts ...Option) *Supervisor {
	s := &Supervisor{
		specs:   specs,
		table:   proctable.New(),
		spawner: execSpawner{},
		metrics: NopMetrics(),
		logger:  slog.Default(),
		tracer:  noop.NewTracerProvider().Tracer("desktop"),
		handles: make(map[Role]Handle),
		sleep:   sleepCtx,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.reaper = NewReaper(s.table, s.metrics, s.logger)
	return s
}

// Bootstrap launches every role in BootOrder: reap stale instances,
// run the spec's pre-launch action, spawn detached, then wait the
// settle delay before the next role. Per-role failures are logged and
// the sequence continues; a partial desktop is a degraded state
// surfaced by the prober, not a reason to abort.
//
// Cancelling ctx interrupts the current settle delay and skips the
// remaining roles. Already-spawned processes keep running; they are
// independent OS processes, not owned resources.
func (s *Supervisor) Bootstrap(ctx context.Context) error {
	if !s.booting.CompareAndSwap(false, true) {
		return ErrBootstrapInProgress
	}
	defer s.booting.Store(false)

	ctx, span := s.tracer.Start(ctx, "desktop.bootstrap")
	defer span.End()

	s.logger.Info("bootstrapping desktop pipeline", "roles", len(BootOrder))

	for _, role := range BootOrder {
		if err := ctx.Err(); err != nil {
			s.logger.Warn("bootstrap cancelled, skipping remaining roles", "next", role.String())
			return err
		}
		if err := s.launchRole(ctx, s.specs[role]); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			// Logged inside launchRole; continue with the next role.
		}
	}

	s.logger.Info("desktop pipeline bootstrap complete")
	return nil
}

func (s *Supervisor) launchRole(ctx context.Context, spec ProcessSpec) error {
	log := s.logger.With("role", spec.Role.String())

	_, span := s.tracer.Start(ctx, "desktop.launch."+spec.Role.String())
	defer span.End()

	s.reaper.Reap(spec, s.currentPID(spec.Role))
	s.clearHandle(spec.Role)

	if spec.PreLaunch != nil {
		if err := spec.PreLaunch(); err != nil {
			log.Error("pre-launch action failed", "error", err)
			s.metrics.SpawnFailed(spec.Role)
			return fmt.Errorf("pre-launch %s: %w", spec.Role, err)
		}
	}

	pid, err := s.spawner.Spawn(spec)
	if err != nil {
		log.Error("failed to spawn", "executable", spec.Executable, "error", err)
		s.metrics.SpawnFailed(spec.Role)
		return fmt.Errorf("spawn %s: %w", spec.Role, err)
	}

	s.setHandle(Handle{Role: spec.Role, PID: pid, StartedAt: time.Now()})
	s.metrics.RoleSpawned(spec.Role)
	log.Info("spawned", "executable", spec.Executable, "pid", pid, "settle", spec.Settle)

	if err := s.sleep(ctx, spec.Settle); err != nil {
		log.Warn("settle interrupted", "error", err)
		return err
	}
	return nil
}

// Handle returns a copy of the role's runtime handle, if one exists.
func (s *Supervisor) Handle(role Role) (Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.handles[role]
	return h, ok
}

// Prober returns a liveness prober over this supervisor's specs and
// recorded handles.
func (s *Supervisor) Prober() *Prober {
	return &Prober{
		specs:   s.specs,
		table:   s.table,
		metrics: s.metrics,
		handle:  s.Handle,
	}
}

func (s *Supervisor) currentPID(role Role) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handles[role].PID
}

func (s *Supervisor) setHandle(h Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handles[h.Role] = h
}

func (s *Supervisor) clearHandle(role Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handles, role)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// execSpawner starts real OS processes, detached into their own
// session so the orchestrator's signal handling does not cascade into
// them.
type execSpawner struct{}

func (execSpawner) Spawn(spec ProcessSpec) (int, error) {
	cmd := exec.Command(spec.Executable, spec.Args...)
	cmd.Env = append(os.Environ(), spec.Env...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return 0, err
	}

	// Collect the exit status in the background so the child never
	// lingers as a zombie.
	go cmd.Wait()

	return cmd.Process.Pid, nil
}
