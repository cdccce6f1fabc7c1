package expecter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Process exit statuses returned by Run.
const (
	ExitPass  = 0
	ExitFail  = 1
	ExitError = 2
)

// TestFunc is the body of one console test: a sequence of sends and
// expectations against s. Returning a non-nil error fails the test.
type TestFunc func(s *Session) error

// SpawnFunc creates the session a test runs against.
type SpawnFunc func(ctx context.Context) (*Session, error)

// Outcome classifies how a run ended.
type Outcome string

const (
	OutcomePass      Outcome = "pass"
	OutcomeTimeout   Outcome = "timeout"
	OutcomeMismatch  Outcome = "mismatch"
	OutcomeAssertion Outcome = "assertion"
	OutcomeError     Outcome = "error"
)

// Result describes a finished run.
type Result struct {
	RunID    string
	Name     string
	Outcome  Outcome
	Err      error
	Met      int
	Duration time.Duration
	Finished time.Time
}

// Passed reports whether the run succeeded.
func (r Result) Passed() bool {
	return r.Outcome == OutcomePass
}

// ExitCode maps the result to a process exit status.
func (r Result) ExitCode() int {
	switch r.Outcome {
	case OutcomePass:
		return ExitPass
	case OutcomeError:
		if errors.Is(r.Err, errSpawn) {
			return ExitError
		}
		return ExitFail
	default:
		return ExitFail
	}
}

var errSpawn = errors.New("spawn failed")

// Runner runs a single test against a freshly spawned session. All
// collaborators are explicit fields; nothing is read from package state.
type Runner struct {
	// Name labels logs, diagnostics and results.
	Name string
	// Spawn creates the session. Required.
	Spawn SpawnFunc
	// Stderr receives failure diagnostics. Defaults to os.Stderr.
	Stderr io.Writer
	// Logger receives run-level events. The zero value logs nothing.
	Logger zerolog.Logger
	// Observe, if set, is called with every result before Run returns.
	Observe func(Result)
}

// Run spawns the session, runs test, always closes the session, and returns
// the process exit status: ExitPass, ExitFail for a failed expectation or
// assertion, or ExitError when the session could not be started. Cancelling
// ctx closes the session, so a blocked expectation fails at once with
// ErrClosed.
func (r *Runner) Run(ctx context.Context, test TestFunc) int {
	return r.RunResult(ctx, test).ExitCode()
}

// RunResult is Run returning the full Result.
func (r *Runner) RunResult(ctx context.Context, test TestFunc) Result {
	start := time.Now()
	res := Result{RunID: uuid.NewString(), Name: r.Name}
	log := r.Logger.With().Str("run_id", res.RunID).Str("test", r.Name).Logger()
	stderr := r.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	finish := func() Result {
		res.Finished = time.Now()
		res.Duration = res.Finished.Sub(start)
		res.Outcome = classify(res.Err)
		ev := log.Info()
		if res.Err != nil {
			ev = log.Error().Err(res.Err)
		}
		ev.Str("outcome", string(res.Outcome)).
			Int("met", res.Met).
			Dur("duration", res.Duration).
			Msg("test finished")
		if r.Observe != nil {
			r.Observe(res)
		}
		return res
	}

	if r.Spawn == nil || test == nil {
		res.Err = fmt.Errorf("expecter: run: %w: runner needs both a spawn and a test function", errSpawn)
		fmt.Fprintf(stderr, "%v\n", res.Err)
		return finish()
	}

	log.Info().Msg("test started")
	s, err := r.Spawn(ctx)
	if err == nil && s == nil {
		err = errors.New("expecter: spawn: no session returned")
	}
	if err != nil {
		res.Err = fmt.Errorf("%w: %w", errSpawn, err)
		fmt.Fprintf(stderr, "%v (test %s)\n", err, r.label())
		return finish()
	}

	// Cancelling ctx closes the session, which unblocks the test.
	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	res.Err = runTest(s, test)
	stop()
	if res.Err != nil && ctx.Err() != nil {
		res.Err = fmt.Errorf("expecter: run interrupted: %w: %w", context.Cause(ctx), res.Err)
	}
	res.Met = s.Met()
	buffered := s.Buffered()
	last := s.LastMatch()
	if err := s.Close(); err != nil {
		log.Warn().Err(err).Msg("close failed")
	}

	res = finish()
	if res.Err != nil {
		fmt.Fprintln(stderr, formatFailure(r.label(), res, buffered, last))
	}
	return res
}

func (r *Runner) label() string {
	if r.Name == "" {
		return "test"
	}
	return r.Name
}

// runTest calls test and turns a panic into an error, so the session is
// still closed and the run still reports a status.
func runTest(s *Session, test TestFunc) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("expecter: test panicked: %v\n%s", p, debug.Stack())
		}
	}()
	return test(s)
}

func classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomePass
	case errors.Is(err, ErrTimeout):
		return OutcomeTimeout
	case errors.Is(err, ErrMismatch):
		return OutcomeMismatch
	case errors.Is(err, ErrAssertion):
		return OutcomeAssertion
	default:
		return OutcomeError
	}
}

func formatFailure(label string, res Result, buffered string, last *Match) string {
	var b []byte
	b = fmt.Appendf(b, "expecter: %s: FAILED (%s) after %v\n    error: %v",
		label, res.Outcome, res.Duration.Round(time.Millisecond), res.Err)

	var te *TimeoutError
	var me *MismatchError
	switch {
	case errors.As(res.Err, &te):
		b = fmt.Appendf(b, "\n    waiting for: %s\n    received (most recent):\n%s", te.Expected, formatOutputBox(te.Received))
	case errors.As(res.Err, &me):
		b = fmt.Appendf(b, "\n    waiting for: %s\n    received (most recent):\n%s", me.Expected, formatOutputBox(me.Received))
	default:
		if last != nil {
			b = fmt.Appendf(b, "\n    last match: %q", last.Text())
		}
		b = fmt.Appendf(b, "\n    unconsumed output:\n%s", formatOutputBox(buffered))
	}
	b = fmt.Appendf(b, "\n    expectations met: %d", res.Met)
	return string(b)
}

// Run runs test against the session created by spawn with a default Runner.
func Run(ctx context.Context, spawn SpawnFunc, test TestFunc) int {
	r := &Runner{Spawn: spawn}
	return r.Run(ctx, test)
}

// Main is Run followed by os.Exit, for test programs that are executed
// directly:
//
//	func main() {
//		expecter.Main(expecter.SpawnCommand("make", expecter.WithArgs("term")), testfunc)
//	}
func Main(spawn SpawnFunc, test TestFunc) {
	os.Exit(Run(context.Background(), spawn, test))
}

// SpawnCommand returns a SpawnFunc that starts name with opts on a pty.
func SpawnCommand(name string, opts ...Option) SpawnFunc {
	return func(ctx context.Context) (*Session, error) {
		return Spawn(ctx, name, opts...)
	}
}
