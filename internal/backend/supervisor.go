// Package backend spawns and supervises the Dipper lightweight backend as a
// child process. Output draining is decoupled from termination: the drain
// goroutines run for the whole child lifetime so a chatty backend never
// blocks on a full pipe, while the Handle is what termination triggers act
// on.
package backend

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/dipperhq/dippershell/internal/netutil"
)

// maxLineBytes bounds a single captured output line. Anything longer is
// split by the scanner rather than buffered without limit.
const maxLineBytes = 256 * 1024

// Supervisor spawns the backend executable described by its Spec.
type Supervisor struct {
	spec Spec
	log  *slog.Logger
}

func New(spec Spec, log *slog.Logger) *Supervisor {
	if log == nil {
		log = slog.Default()
	}
	return &Supervisor{spec: spec, log: log}
}

// Handle is the ownership token for one spawned backend process. Exactly
// one live Handle exists per application run; whoever takes it out of the
// lifecycle state kills it exactly once.
type Handle struct {
	name string
	pid  int
	log  *slog.Logger

	mu   sync.Mutex
	done chan struct{} // closed when the monitor reaps the process
	exit *int          // exit code when known
}

// PID returns the child's OS process id.
func (h *Handle) PID() int { return h.pid }

// Done is closed once the child has exited and been reaped.
func (h *Handle) Done() <-chan struct{} { return h.done }

// ExitCode returns the child's exit code once it has exited.
func (h *Handle) ExitCode() (int, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.exit == nil {
		return 0, false
	}
	return *h.exit, true
}

func (h *Handle) setExit(code int) {
	h.mu.Lock()
	h.exit = &code
	h.mu.Unlock()
}

// Kill best-effort terminates the child's process group and waits for the
// monitor to reap it. Safe to call after the child has already exited; the
// failing signal is discarded.
func (h *Handle) Kill() {
	if err := syscall.Kill(-h.pid, syscall.SIGKILL); err != nil {
		h.log.Debug("kill backend process group", "name", h.name, "pid", h.pid, "error", err)
	}
	<-h.done
}

// Start spawns the backend bound to ep and begins draining its output.
// On failure no Handle is returned; the run continues degraded and the UI
// is backed by an endpoint that will simply never turn healthy.
func (s *Supervisor) Start(ep netutil.Endpoint) (*Handle, error) {
	cmd := s.spec.BuildCommand(ep)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("backend stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("backend stderr pipe: %w", err)
	}

	name := s.spec.name()
	outW, errW, err := s.spec.Log.Writers(name)
	if err != nil {
		return nil, fmt.Errorf("backend capture writers: %w", err)
	}

	if err := cmd.Start(); err != nil {
		closeAll(outW, errW)
		return nil, fmt.Errorf("spawn %s: %w", s.spec.executable(), err)
	}

	h := &Handle{
		name: name,
		pid:  cmd.Process.Pid,
		log:  s.log,
		done: make(chan struct{}),
	}
	s.log.Info("backend spawned", "name", name, "pid", h.pid, "port", ep.Port)

	go s.monitor(cmd, h, stdout, stderr, outW, errW)
	return h, nil
}

// monitor drains both output streams until they close, then reaps the
// child. It is the single cmd.Wait caller; Handle.done signals completion
// to everyone else.
func (s *Supervisor) monitor(cmd *exec.Cmd, h *Handle, stdout, stderr io.Reader, outW, errW io.WriteCloser) {
	var g errgroup.Group
	g.Go(func() error { return s.drain(h.name, "stdout", stdout, outW) })
	g.Go(func() error { return s.drain(h.name, "stderr", stderr, errW) })
	if err := g.Wait(); err != nil {
		// A pipe failing mid-stream is degraded-continue: log and move on.
		s.log.Warn("backend output stream closed early", "name", h.name, "pid", h.pid, "error", err)
	}

	err := cmd.Wait()
	code := exitCode(err)
	h.setExit(code)
	closeAll(outW, errW)
	if err != nil {
		s.log.Warn("backend terminated", "name", h.name, "pid", h.pid, "code", code, "error", err)
	} else {
		s.log.Info("backend terminated", "name", h.name, "pid", h.pid, "code", code)
	}
	close(h.done)
}

// drain consumes one output stream line by line for the entire child
// lifetime, logging each line and mirroring it to the capture writer when
// one is configured.
func (s *Supervisor) drain(name, stream string, r io.Reader, w io.Writer) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for sc.Scan() {
		line := sc.Text()
		s.log.Info("backend "+stream, "name", name, "line", line)
		if w != nil {
			_, _ = fmt.Fprintln(w, line)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("%s %s: %w", name, stream, err)
	}
	return nil
}

// exitCode maps a cmd.Wait error to the child's exit code. Signal deaths
// report the shell-style negative code from os/exec; unknown errors map
// to -1.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func closeAll(ws ...io.WriteCloser) {
	for _, w := range ws {
		if w != nil {
			_ = w.Close()
		}
	}
}
