// Package shell provides the process spawner adapter.
package shell

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.trai.ch/pour/internal/core/domain"
	"go.trai.ch/pour/internal/core/ports"
	"go.trai.ch/zerr"
)

// waitDelay bounds how long a canceled command may take to exit after SIGINT.
const waitDelay = 10 * time.Second

var _ ports.ProcessSpawner = (*Spawner)(nil)

// Spawner implements ports.ProcessSpawner using os/exec.
type Spawner struct {
	logger ports.Logger
}

// NewSpawner creates a new Spawner. Command output is also echoed to logger, line by line.
func NewSpawner(logger ports.Logger) *Spawner {
	return &Spawner{logger: logger}
}

// Spawn starts cmd. The command sees the system environment overlaid with
// cmd.Env, and its executable is resolved through that environment's PATH.
func (s *Spawner) Spawn(ctx context.Context, cmd domain.Command, stdout, stderr io.Writer) (ports.Process, error) {
	if cmd.Name == "" {
		return nil, zerr.New("empty command")
	}

	env := resolveEnvironment(os.Environ(), cmd.Env)

	executable := cmd.Name
	if !filepath.IsAbs(cmd.Name) {
		if lp, err := lookPath(cmd.Name, env); err == nil {
			executable = lp
		}
	}

	c := exec.CommandContext(ctx, executable, cmd.Args...) //nolint:gosec // commands come from the build plan
	c.Args[0] = cmd.Name
	c.Dir = cmd.Dir
	c.Env = env
	c.Cancel = func() error {
		return c.Process.Signal(os.Interrupt)
	}
	c.WaitDelay = waitDelay

	p := &process{
		cmd:    c,
		stdout: &logWriter{logger: s.logger, level: domain.LogLevelInfo},
		stderr: &logWriter{logger: s.logger, level: domain.LogLevelWarn},
	}
	c.Stdout = tee(stdout, p.stdout)
	c.Stderr = tee(stderr, p.stderr)

	if err := c.Start(); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to start command"), "command", cmd.Name)
	}
	return p, nil
}

func tee(w io.Writer, log *logWriter) io.Writer {
	if w == nil {
		return log
	}
	return io.MultiWriter(w, log)
}

type process struct {
	cmd      *exec.Cmd
	stdout   *logWriter
	stderr   *logWriter
	exitCode int
}

// Wait waits for the command and records its exit code.
func (p *process) Wait() error {
	err := p.cmd.Wait()
	p.stdout.Flush()
	p.stderr.Flush()

	p.exitCode = -1
	if state := p.cmd.ProcessState; state != nil {
		p.exitCode = state.ExitCode()
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
				err = zerr.With(err, "signal", status.Signal().String())
			}
		}
		return zerr.With(zerr.Wrap(err, "command failed"), "exit_code", p.exitCode)
	}
	return nil
}

func (p *process) ExitCode() int {
	return p.exitCode
}

// logWriter buffers partial writes and forwards complete lines to the logger.
type logWriter struct {
	logger ports.Logger
	level  domain.LogLevel
	mu     sync.Mutex
	buf    bytes.Buffer
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// Incomplete line: keep it for the next write.
			w.buf.Reset()
			w.buf.WriteString(line)
			break
		}
		w.emit(strings.TrimSuffix(line, "\n"))
	}
	return len(p), nil
}

// Flush emits any trailing partial line.
func (w *logWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.buf.Len() > 0 {
		w.emit(w.buf.String())
		w.buf.Reset()
	}
}

func (w *logWriter) emit(line string) {
	if w.logger == nil {
		return
	}
	line = strings.TrimSuffix(line, "\r")
	if w.level >= domain.LogLevelWarn {
		w.logger.Warn(line)
		return
	}
	w.logger.Info(line)
}

// resolveEnvironment overlays the command environment onto the system one.
// The result is sorted so that runs are reproducible.
func resolveEnvironment(sysEnv []string, cmdEnv map[string]string) []string {
	envMap := make(map[string]string, len(sysEnv)+len(cmdEnv))
	for _, entry := range sysEnv {
		if k, v, ok := strings.Cut(entry, "="); ok {
			envMap[k] = v
		}
	}
	for k, v := range cmdEnv {
		envMap[k] = v
	}

	result := make([]string, 0, len(envMap))
	for k, v := range envMap {
		result = append(result, k+"="+v)
	}
	slices.Sort(result)
	return result
}

// lookPath searches for an executable in the directories named by the PATH entry of env.
func lookPath(file string, env []string) (string, error) {
	var path string
	for _, e := range env {
		if after, ok := strings.CutPrefix(e, "PATH="); ok {
			path = after
			break
		}
	}

	if path == "" {
		return "", exec.ErrNotFound
	}

	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			// Unix shell semantics: path element "" means "."
			dir = "."
		}
		candidate := filepath.Join(dir, file)
		if err := findExecutable(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", exec.ErrNotFound
}

func findExecutable(file string) error {
	d, err := os.Stat(file)
	if err != nil {
		return err
	}
	if m := d.Mode(); !m.IsDir() && m&0o111 != 0 {
		return nil
	}
	return os.ErrPermission
}
