package expecter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/cboone/expecter/internal/ptyproc"
)

// Session is a live connection to an interactive child. Output is read in
// the background; expectations consume it strictly in order.
type Session struct {
	conn io.ReadWriteCloser
	proc *ptyproc.Process
	opts options
	log  zerolog.Logger

	mu         sync.Mutex
	pending    []byte
	transcript bytes.Buffer
	notify     chan struct{}
	readErr    error
	closed     bool
	last       *Match
	met        int
	dropped    int

	group     errgroup.Group
	closeOnce sync.Once
	closeErr  error
}

// Spawn starts name on a new pseudo-terminal and returns a Session driving
// it. The caller owns the Session and must Close it.
func Spawn(ctx context.Context, name string, userOpts ...Option) (*Session, error) {
	opts := defaultOptions()
	for _, o := range userOpts {
		o(&opts)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("expecter: spawn: %w", err)
	}
	if opts.cols < 0 || opts.rows < 0 || opts.cols > 0xffff || opts.rows > 0xffff {
		return nil, fmt.Errorf("expecter: spawn: invalid size %dx%d", opts.cols, opts.rows)
	}

	proc, err := ptyproc.Start(ptyproc.Command{
		Path: name,
		Args: opts.args,
		Env:  opts.env,
		Dir:  opts.dir,
		Cols: uint16(opts.cols),
		Rows: uint16(opts.rows),
	})
	if err != nil {
		return nil, fmt.Errorf("expecter: spawn: %w", err)
	}

	s := newSession(proc, proc, opts)
	s.log.Debug().
		Str("cmd", name).
		Strs("args", opts.args).
		Int("pid", proc.Pid()).
		Msg("spawned")

	if opts.startDelay > 0 {
		timer := time.NewTimer(opts.startDelay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			_ = s.Close()
			return nil, fmt.Errorf("expecter: spawn: %w", ctx.Err())
		}
	}

	return s, nil
}

// New returns a Session over an existing stream, such as a serial port or a
// network connection. Closing the Session closes conn.
func New(conn io.ReadWriteCloser, userOpts ...Option) *Session {
	opts := defaultOptions()
	for _, o := range userOpts {
		o(&opts)
	}
	return newSession(conn, nil, opts)
}

func newSession(conn io.ReadWriteCloser, proc *ptyproc.Process, opts options) *Session {
	s := &Session{
		conn:   conn,
		proc:   proc,
		opts:   opts,
		log:    opts.logger,
		notify: make(chan struct{}),
	}
	s.group.Go(s.pump)
	if proc != nil {
		s.group.Go(proc.Wait)
	}
	return s
}

// pump copies child output into the pending buffer until the stream ends.
func (s *Session) pump() error {
	buf := make([]byte, readChunkSize)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			if s.opts.transcript != nil {
				_, _ = s.opts.transcript.Write(chunk)
			}
			s.mu.Lock()
			s.pending = append(s.pending, chunk...)
			if limit := s.opts.maxBuffer; limit > 0 && len(s.pending) > limit {
				drop := len(s.pending) - limit
				s.pending = append(s.pending[:0], s.pending[drop:]...)
				s.dropped += drop
			}
			s.transcript.Write(chunk)
			s.broadcastLocked()
			s.mu.Unlock()
		}
		if err != nil {
			if errors.Is(err, os.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
				err = io.EOF
			}
			s.mu.Lock()
			s.readErr = err
			s.broadcastLocked()
			s.mu.Unlock()
			return nil
		}
	}
}

// broadcastLocked wakes every waiter. s.mu must be held.
func (s *Session) broadcastLocked() {
	close(s.notify)
	s.notify = make(chan struct{})
}

// Send writes text to the child without a line terminator.
func (s *Session) Send(text string) error {
	if err := s.write("send", text); err != nil {
		return err
	}
	s.log.Debug().Str("text", text).Msg("send")
	return nil
}

// SendLine writes line followed by the line terminator.
func (s *Session) SendLine(line string) error {
	if err := s.write("sendline", line+s.opts.lineTerminator); err != nil {
		return err
	}
	s.log.Debug().Str("line", line).Msg("sendline")
	return nil
}

// Press sends one or more special keys.
func (s *Session) Press(keys ...Key) error {
	var b bytes.Buffer
	for _, k := range keys {
		b.WriteString(string(k))
	}
	return s.write("press", b.String())
}

func (s *Session) write(op, text string) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return fmt.Errorf("expecter: %s: %w", op, ErrClosed)
	}
	if _, err := io.WriteString(s.conn, text); err != nil {
		return fmt.Errorf("expecter: %s: %w", op, err)
	}
	return nil
}

// ExpectExact blocks until text appears verbatim in the output, then
// discards the output up to and including it.
func (s *Session) ExpectExact(text string, wopts ...ExpectOption) (*Match, error) {
	return s.expect("expect_exact", Exact(text), wopts)
}

// Expect blocks until the regular expression matches the output, then
// discards the output up to and including the match. The returned Match,
// also available from LastMatch, carries the capture groups.
func (s *Session) Expect(pattern string, wopts ...ExpectOption) (*Match, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("expecter: expect: %w", err)
	}
	return s.expect("expect", RegexpOf(re), wopts)
}

// ExpectMatch waits for an arbitrary Expectation.
func (s *Session) ExpectMatch(e Expectation, wopts ...ExpectOption) (*Match, error) {
	return s.expect("expect", e, wopts)
}

// ExpectAll waits for each expectation in turn and stops at the first
// failure.
func (s *Session) ExpectAll(exps []Expectation, wopts ...ExpectOption) error {
	for _, e := range exps {
		if _, err := s.expect("expect", e, wopts); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) expect(op string, e Expectation, wopts []ExpectOption) (*Match, error) {
	timeout, err := s.callTimeout(op, wopts)
	if err != nil {
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	timedOut := false

	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return nil, fmt.Errorf("expecter: %s: %w", op, ErrClosed)
		}

		off := 0
		if w := s.opts.searchWindow; w > 0 && len(s.pending) > w {
			off = len(s.pending) - w
		}
		m, desc := e(string(s.pending[off:]))
		if m != nil {
			if off > 0 {
				m.before = string(s.pending[:off]) + m.before
			}
			s.pending = append([]byte(nil), s.pending[off+m.end:]...)
			s.last = m
			s.met++
			s.mu.Unlock()
			s.log.Debug().Str("expected", desc).Str("match", m.text).Msg("matched")
			return m, nil
		}

		if s.readErr != nil {
			received := string(s.pending)
			cause := s.readErr
			s.mu.Unlock()
			s.log.Debug().Str("expected", desc).Err(cause).Msg("output ended")
			return nil, &MismatchError{Op: op, Expected: desc, Received: received, Cause: cause}
		}

		if timedOut {
			received := string(s.pending)
			s.mu.Unlock()
			s.log.Debug().Str("expected", desc).Dur("timeout", timeout).Msg("timed out")
			return nil, &TimeoutError{Op: op, Expected: desc, Received: received, Timeout: timeout}
		}

		wake := s.notify
		s.mu.Unlock()

		select {
		case <-wake:
		case <-timer.C:
			// One last look at whatever arrived with the deadline.
			timedOut = true
		}
	}
}

func (s *Session) callTimeout(op string, wopts []ExpectOption) (time.Duration, error) {
	wo := expectOptions{}
	for _, o := range wopts {
		o(&wo)
	}
	if wo.timeout < 0 {
		return 0, fmt.Errorf("expecter: %s: negative timeout: %v", op, wo.timeout)
	}
	if wo.timeout > 0 {
		return wo.timeout, nil
	}
	return s.opts.timeout, nil
}

// LastMatch returns the most recent successful match, or nil.
func (s *Session) LastMatch() *Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Met returns the number of expectations satisfied so far.
func (s *Session) Met() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.met
}

// Buffered returns output received but not yet consumed by an expectation.
func (s *Session) Buffered() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.pending)
}

// Dropped returns how many bytes of unconsumed output were discarded
// because the buffer cap set with WithMaxBuffer was exceeded.
func (s *Session) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Transcript returns every byte received from the child so far.
func (s *Session) Transcript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.String()
}

// WaitExit waits for the child to exit and returns its exit code.
func (s *Session) WaitExit(wopts ...ExpectOption) (int, error) {
	if s.proc == nil {
		return -1, fmt.Errorf("expecter: wait-exit: %w", ErrNoProcess)
	}
	timeout, err := s.callTimeout("wait-exit", wopts)
	if err != nil {
		return -1, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-s.proc.Done():
		code, _ := s.proc.ExitCode()
		s.log.Debug().Int("code", code).Msg("exited")
		return code, nil
	case <-timer.C:
		return -1, &TimeoutError{
			Op:       "wait-exit",
			Expected: "process to exit",
			Received: s.Buffered(),
			Timeout:  timeout,
		}
	}
}

// Resize changes the pty dimensions.
// This sends a SIGWINCH to the running program.
func (s *Session) Resize(cols, rows int) error {
	if s.proc == nil {
		return fmt.Errorf("expecter: resize: %w", ErrNoProcess)
	}
	if cols <= 0 || rows <= 0 || cols > 0xffff || rows > 0xffff {
		return fmt.Errorf("expecter: resize: invalid size %dx%d", cols, rows)
	}
	if err := s.proc.Resize(uint16(cols), uint16(rows)); err != nil {
		return fmt.Errorf("expecter: resize: %w", err)
	}
	return nil
}

// Close terminates the child's process group, closes the stream and waits
// for the background goroutines. It is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.broadcastLocked()
		s.mu.Unlock()

		var errs []error
		if s.proc != nil {
			if err := s.proc.Terminate(s.opts.killGrace); err != nil {
				errs = append(errs, err)
			}
		}
		if err := s.conn.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			errs = append(errs, err)
		}
		if err := s.group.Wait(); err != nil {
			errs = append(errs, err)
		}
		if len(errs) > 0 {
			s.closeErr = fmt.Errorf("expecter: close: %w", errors.Join(errs...))
		}
		s.log.Debug().Err(s.closeErr).Msg("closed")
	})
	return s.closeErr
}
