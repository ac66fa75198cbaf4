// Package manager implements the pre-fork worker pool.
// Go has no fork(); the same process topology — N sibling processes
// sharing one listen socket, the kernel load-balancing accept() between
// them — is reached by self-re-exec instead: the manager execs its own
// binary N times with a sentinel environment variable and the bound
// listener passed as an inherited file descriptor via ExtraFiles, and each
// child process, on seeing the sentinel, runs a single worker.Worker
// instead of a manager.
//
// SIGCHLD-driven reaping becomes a goroutine per child that blocks on
// cmd.Wait() and reports the exit over a channel; sig_atomic_t flags
// become a signal.Notify channel read only by the control loop, so signal
// handlers touch only a small set of flags and all non-trivial work
// happens in the main loop.
package manager

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// WorkerSentinelEnv is the environment variable a re-exec'd child checks
// to know it should run as a worker instead of a manager.
const WorkerSentinelEnv = "BITZ_ICAPD_WORKER"

// Config parameterizes the pool.
type Config struct {
	// Children is the target number of live worker processes kept running
	// at all times.
	Children int
	// ShutdownGrace bounds how long the manager waits for workers to exit
	// after SIGTERM before it returns anyway.
	ShutdownGrace time.Duration
	// Logger receives one line per spawn/reap/signal; nil disables
	// logging.
	Logger *log.Logger
}

// childProc tracks one live worker process.
type childProc struct {
	cmd *exec.Cmd
}

// exitEvent is what a reaper goroutine reports when its child exits.
type exitEvent struct {
	pid int
	err error
}

// Manager owns the listen socket's file descriptor and the pool of worker
// processes re-exec'd against it.
type Manager struct {
	cfg        Config
	listenerFD *os.File
	extraArgs  []string

	mu         sync.Mutex
	state      State
	children   map[int]*childProc
	exits      chan exitEvent
	terminated bool

	// newCmd builds the *exec.Cmd for a fresh child. It defaults to
	// re-execing the current binary; tests substitute a cheap stand-in
	// command so the suite doesn't fork copies of the test binary.
	newCmd func() (*exec.Cmd, error)
}

// New builds a Manager that will spawn cfg.Children workers, each inheriting
// listenerFD as fd 3 (the first ExtraFiles slot) and re-invoking the
// current binary with extraArgs appended (e.g. the resolved --config
// path, so a worker doesn't need to re-discover it).
func New(listenerFD *os.File, extraArgs []string, cfg Config) *Manager {
	if cfg.ShutdownGrace == 0 {
		cfg.ShutdownGrace = 5 * time.Second
	}
	m := &Manager{
		cfg:        cfg,
		listenerFD: listenerFD,
		extraArgs:  extraArgs,
		state:      Starting,
		children:   make(map[int]*childProc),
		exits:      make(chan exitEvent, cfg.Children+1),
	}
	m.newCmd = m.defaultCmd
	return m
}

// defaultCmd re-execs the current binary with the worker sentinel set and
// the listener socket passed as fd 3.
func (m *Manager) defaultCmd() (*exec.Cmd, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, err
	}
	cmd := exec.Command(exe, m.extraArgs...)
	cmd.Env = append(os.Environ(), WorkerSentinelEnv+"=1")
	cmd.ExtraFiles = []*os.File{m.listenerFD}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd, nil
}

// Run spawns the worker pool and blocks until a termination signal is
// handled and every worker has exited (or the grace period elapses),
// spawning and reaping children until then.
func (m *Manager) Run() error {
	sigCh := make(chan os.Signal, 4)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGCHLD)
	defer signal.Stop(sigCh)

	for i := 0; i < m.cfg.Children; i++ {
		if err := m.spawnChild(); err != nil {
			return fmt.Errorf("manager: initial spawn: %w", err)
		}
	}
	m.transition(Running)

	for {
		select {
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGCHLD:
				// A child may have exited; the reaper goroutine for that
				// child delivers the authoritative exitEvent separately.
				// SIGCHLD itself only wakes the loop; maintainPool below does the
				// actual respawn bookkeeping whenever anything interrupts the select.
			case syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT:
				return m.drain()
			}
		case ev := <-m.exits:
			m.handleExit(ev)
		}

		if err := m.maintainPool(); err != nil {
			m.logf("maintainPool: %v", err)
		}
	}
}

// spawnChild re-execs the current binary with the worker sentinel set and
// the listener socket passed as fd 3, tracks it, and launches its reaper
// goroutine.
func (m *Manager) spawnChild() error {
	cmd, err := m.newCmd()
	if err != nil {
		return err
	}

	if err := cmd.Start(); err != nil {
		return err
	}

	pid := cmd.Process.Pid
	m.mu.Lock()
	m.children[pid] = &childProc{cmd: cmd}
	m.mu.Unlock()
	m.logf("spawned worker pid=%d", pid)

	go func() {
		err := cmd.Wait()
		m.exits <- exitEvent{pid: pid, err: err}
	}()

	return nil
}

// handleExit removes a reaped child from the live set and logs its exit
// status.
func (m *Manager) handleExit(ev exitEvent) {
	m.mu.Lock()
	delete(m.children, ev.pid)
	m.mu.Unlock()

	if ev.err != nil {
		m.logf("worker pid=%d exited: %v", ev.pid, ev.err)
	} else {
		m.logf("worker pid=%d exited cleanly (max_requests reached)", ev.pid)
	}
}

// maintainPool respawns until the live count equals Children, unless the
// manager is draining.
func (m *Manager) maintainPool() error {
	if m.State() == Draining {
		return nil
	}
	for m.liveCount() < m.cfg.Children {
		if err := m.spawnChild(); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) liveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.children)
}

// drain stops spawning, SIGTERMs every live worker, and waits up to
// ShutdownGrace for them all to exit.
func (m *Manager) drain() error {
	m.transition(Draining)

	m.mu.Lock()
	pids := make([]int, 0, len(m.children))
	for pid, c := range m.children {
		pids = append(pids, pid)
		c.cmd.Process.Signal(syscall.SIGTERM)
	}
	m.mu.Unlock()
	m.logf("draining: sent SIGTERM to %d workers", len(pids))

	deadline := time.After(m.cfg.ShutdownGrace)
	for m.liveCount() > 0 {
		select {
		case ev := <-m.exits:
			m.handleExit(ev)
		case <-deadline:
			m.logf("shutdown grace period elapsed with %d workers still live", m.liveCount())
			m.transition(Stopped)
			return nil
		}
	}

	m.transition(Stopped)
	return nil
}

func (m *Manager) logf(format string, args ...interface{}) {
	if m.cfg.Logger != nil {
		m.cfg.Logger.Printf(format, args...)
	}
}
