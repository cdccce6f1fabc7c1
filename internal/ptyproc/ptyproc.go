// Package ptyproc starts a child process on a pseudo-terminal and manages its
// lifetime. It is internal to the expecter package.
package ptyproc

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

// Command describes the program to start.
type Command struct {
	Path string
	Args []string
	// Env entries are appended to the parent environment in KEY=VALUE form.
	Env  []string
	Dir  string
	Cols uint16
	Rows uint16
}

// Process is a child running on the slave side of a pty. Reads and writes go
// through the master side.
type Process struct {
	cmd  *exec.Cmd
	ptmx *os.File

	done     chan struct{}
	waitOnce sync.Once
	waitErr  error
	exitCode int

	closeOnce sync.Once
	closeErr  error
}

// Start resolves c.Path and starts it on a new pty in its own session.
func Start(c Command) (*Process, error) {
	path, err := exec.LookPath(c.Path)
	if err != nil {
		return nil, &Error{Op: "lookup", Path: c.Path, Args: c.Args, Err: err}
	}

	cmd := exec.Command(path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = append(os.Environ(), c.Env...)

	ws := &pty.Winsize{Cols: c.Cols, Rows: c.Rows}
	if ws.Cols == 0 || ws.Rows == 0 {
		ws = nil
	}

	ptmx, err := pty.StartWithSize(cmd, ws)
	if err != nil {
		return nil, &Error{Op: "start", Path: path, Args: c.Args, Err: err}
	}

	return &Process{
		cmd:      cmd,
		ptmx:     ptmx,
		done:     make(chan struct{}),
		exitCode: -1,
	}, nil
}

// Pid returns the child's process id, which is also its process group id.
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Read reads console output. After the child and every holder of the slave
// side have exited, Linux reports EIO on the master; Read returns io.EOF then.
func (p *Process) Read(b []byte) (int, error) {
	n, err := p.ptmx.Read(b)
	if err != nil && errors.Is(err, unix.EIO) {
		err = io.EOF
	}
	return n, err
}

// Write sends input to the child.
func (p *Process) Write(b []byte) (int, error) {
	n, err := p.ptmx.Write(b)
	if err != nil {
		return n, &Error{Op: "write", Path: p.cmd.Path, Err: err}
	}
	return n, nil
}

// Close closes the pty master. It does not signal the child.
func (p *Process) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = p.ptmx.Close()
	})
	return p.closeErr
}

// Wait blocks until the child exits and records its exit code. Only one
// goroutine may call Wait; others observe Done.
func (p *Process) Wait() error {
	p.waitOnce.Do(func() {
		err := p.cmd.Wait()
		p.exitCode = exitCode(p.cmd.ProcessState)
		var exitErr *exec.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			p.waitErr = &Error{Op: "wait", Path: p.cmd.Path, Err: err}
		}
		close(p.done)
	})
	return p.waitErr
}

// Done is closed once Wait has returned.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// ExitCode returns the exit code and whether the child has exited. A child
// killed by a signal reports 128+signal, the shell convention.
func (p *Process) ExitCode() (int, bool) {
	select {
	case <-p.done:
		return p.exitCode, true
	default:
		return -1, false
	}
}

// Terminate signals the child's process group with SIGTERM and waits up to
// grace for the child to exit, then sends SIGKILL to whatever is left of the
// group. Consoles such as `make term` fork helpers that can outlive the
// group leader and keep the pty open.
func (p *Process) Terminate(grace time.Duration) error {
	pgid := p.Pid()

	select {
	case <-p.done:
	default:
		if err := signalGroup(pgid, unix.SIGTERM); err != nil {
			return &Error{Op: "terminate", Path: p.cmd.Path, Err: err}
		}
		timer := time.NewTimer(grace)
		select {
		case <-p.done:
		case <-timer.C:
		}
		timer.Stop()
	}

	if err := signalGroup(pgid, unix.SIGKILL); err != nil {
		return &Error{Op: "kill", Path: p.cmd.Path, Err: err}
	}
	return nil
}

func signalGroup(pgid int, sig unix.Signal) error {
	err := unix.Kill(-pgid, sig)
	if err != nil && !errors.Is(err, unix.ESRCH) && !errors.Is(err, unix.EPERM) {
		return err
	}
	return nil
}

// Resize changes the pty window size, which delivers SIGWINCH to the child.
func (p *Process) Resize(cols, rows uint16) error {
	if err := pty.Setsize(p.ptmx, &pty.Winsize{Cols: cols, Rows: rows}); err != nil {
		return &Error{Op: "resize", Path: p.cmd.Path, Err: err}
	}
	return nil
}

func exitCode(state *os.ProcessState) int {
	if state == nil {
		return -1
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return state.ExitCode()
}

// Error represents a failure to start or control the child.
type Error struct {
	Op   string
	Path string
	Args []string
	Err  error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("pty %s %s failed: %v", e.Op, e.Path, e.Err)
	if len(e.Args) > 0 {
		msg += fmt.Sprintf(" (args: %q)", e.Args)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}
