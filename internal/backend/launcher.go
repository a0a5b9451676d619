package backend

import (
	"errors"
	"io"
	"net"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/loykin/sidekick/internal/env"
)

const (
	// DefaultGracePeriod is how long Stop waits between SIGTERM and SIGKILL.
	DefaultGracePeriod = 3 * time.Second

	portPrecheckTimeout = 200 * time.Millisecond
	reapTimeout         = 200 * time.Millisecond
)

// Handle is the single owned reference to a running backend process.
// Only the Launcher that created it may terminate it.
type Handle struct {
	mu        sync.Mutex
	spec      Spec
	cmd       *exec.Cmd
	startedAt time.Time
	waitDone  chan struct{}
	exitErr   error
	exited    bool
	outCloser io.WriteCloser
	errCloser io.WriteCloser
}

// PID returns the OS process id.
func (h *Handle) PID() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cmd == nil || h.cmd.Process == nil {
		return 0
	}
	return h.cmd.Process.Pid
}

// StartedAt returns when the process was spawned.
func (h *Handle) StartedAt() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.startedAt
}

// Done is closed once the process has exited and been reaped.
func (h *Handle) Done() <-chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.waitDone
}

// Exited reports whether the process has exited.
func (h *Handle) Exited() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exited
}

// ExitCode returns the exit code once exited. ok is false while running or
// when no code could be determined (e.g. killed by signal on some platforms).
func (h *Handle) ExitCode() (int, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.exited {
		return 0, false
	}
	if h.exitErr == nil {
		return 0, true
	}
	var ee *exec.ExitError
	if errors.As(h.exitErr, &ee) {
		return ee.ExitCode(), true
	}
	return 0, false
}

func (h *Handle) markExited(err error) {
	h.mu.Lock()
	h.exited = true
	h.exitErr = err
	if h.outCloser != nil {
		_ = h.outCloser.Close()
		h.outCloser = nil
	}
	if h.errCloser != nil {
		_ = h.errCloser.Close()
		h.errCloser = nil
	}
	close(h.waitDone)
	h.mu.Unlock()
}

// Launcher spawns and terminates the backend process. One Launcher serves one
// supervisor; it holds no state of its own beyond the grace period and the
// global environment overrides.
type Launcher struct {
	Grace time.Duration // SIGTERM to SIGKILL window; DefaultGracePeriod when <= 0
	Env   []string      // global K=V overrides; spec.Env wins on conflict
}

// Start validates the spec, pre-checks the backend port and spawns the
// process. Failure modes map onto LaunchError kinds; none of them are retried
// by the launcher.
func (l *Launcher) Start(spec Spec) (*Handle, error) {
	if spec.WorkDir != "" {
		fi, err := os.Stat(spec.WorkDir)
		if err != nil || !fi.IsDir() {
			return nil, &LaunchError{Kind: WorkingDirectoryInvalid, Detail: spec.WorkDir, Err: err}
		}
	}
	exe := spec.Executable()
	if _, err := exec.LookPath(exe); err != nil {
		return nil, &LaunchError{Kind: ExecutableNotFound, Detail: exe, Err: err}
	}
	if spec.Port > 0 {
		if conn, err := net.DialTimeout("tcp", spec.Addr(), portPrecheckTimeout); err == nil {
			_ = conn.Close()
			return nil, &LaunchError{Kind: PortPreboundExternally, Detail: spec.Addr()}
		}
	}

	cmd := spec.BuildCommand()
	if spec.WorkDir != "" {
		cmd.Dir = spec.WorkDir
	}
	if len(l.Env) > 0 || len(spec.Env) > 0 {
		e := env.New()
		e.FromOS()
		for _, kv := range l.Env {
			if i := strings.IndexByte(kv, '='); i > 0 {
				e.Set(kv[:i], kv[i+1:])
			}
		}
		cmd.Env = e.Merge(spec.Env)
	}
	configureSysProcAttr(cmd)

	h := &Handle{spec: spec, waitDone: make(chan struct{})}
	l.wireOutput(cmd, h)

	if err := cmd.Start(); err != nil {
		h.closeWriters()
		return nil, &LaunchError{Kind: SpawnDenied, Detail: spec.Command, Err: err}
	}
	h.mu.Lock()
	h.cmd = cmd
	h.startedAt = time.Now()
	h.mu.Unlock()

	// Single reaper per run; Stop coordinates with it through waitDone.
	go func() {
		err := cmd.Wait()
		h.markExited(err)
	}()
	return h, nil
}

// Stop terminates the process: graceful signal first, SIGKILL after the grace
// period. Calling it on an already-exited handle (or twice) is a no-op.
func (l *Launcher) Stop(h *Handle) error {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	cmd := h.cmd
	exited := h.exited
	wd := h.waitDone
	h.mu.Unlock()
	if exited || cmd == nil || cmd.Process == nil {
		return nil
	}

	grace := l.Grace
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	pid := cmd.Process.Pid
	_ = terminateGroup(pid)
	select {
	case <-wd:
		return nil
	case <-time.After(grace):
	}
	_ = killGroup(pid)
	select {
	case <-wd:
	case <-time.After(reapTimeout):
		// best-effort; the reaper goroutine will finish on its own
	}
	return nil
}

func (l *Launcher) wireOutput(cmd *exec.Cmd, h *Handle) {
	spec := h.spec
	if spec.Log.Dir == "" && spec.Log.StdoutPath == "" && spec.Log.StderrPath == "" {
		null, _ := os.OpenFile(os.DevNull, os.O_RDWR, 0)
		cmd.Stdout = null
		cmd.Stderr = null
		return
	}
	if spec.Log.Dir != "" {
		_ = os.MkdirAll(spec.Log.Dir, 0o750)
	}
	outW, errW, _ := spec.Log.Writers(spec.Name)
	h.mu.Lock()
	h.outCloser = outW
	h.errCloser = errW
	h.mu.Unlock()
	if outW != nil {
		cmd.Stdout = outW
	} else {
		cmd.Stdout, _ = os.OpenFile(os.DevNull, os.O_RDWR, 0)
	}
	if errW != nil {
		cmd.Stderr = errW
	} else {
		cmd.Stderr, _ = os.OpenFile(os.DevNull, os.O_RDWR, 0)
	}
}

func (h *Handle) closeWriters() {
	h.mu.Lock()
	if h.outCloser != nil {
		_ = h.outCloser.Close()
		h.outCloser = nil
	}
	if h.errCloser != nil {
		_ = h.errCloser.Close()
		h.errCloser = nil
	}
	h.mu.Unlock()
}
