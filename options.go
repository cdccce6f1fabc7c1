package expecter

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

type options struct {
	args           []string
	env            []string
	dir            string
	cols           int
	rows           int
	timeout        time.Duration
	lineTerminator string
	logger         zerolog.Logger
	transcript     io.Writer
	startDelay     time.Duration
	killGrace      time.Duration
	maxBuffer      int
	searchWindow   int
}

// Option configures a Session created by Spawn, Open or New.
type Option func(*options)

// WithArgs sets the arguments passed to the program.
func WithArgs(args ...string) Option {
	return func(o *options) {
		o.args = args
	}
}

// WithEnv appends environment variables to the child environment.
// Each entry should be in "KEY=VALUE" format.
func WithEnv(env ...string) Option {
	return func(o *options) {
		o.env = append(o.env, env...)
	}
}

// WithDir sets the working directory for the program.
func WithDir(dir string) Option {
	return func(o *options) {
		o.dir = dir
	}
}

// WithSize sets the pty dimensions (columns x rows).
func WithSize(cols, rows int) Option {
	return func(o *options) {
		o.cols = cols
		o.rows = rows
	}
}

// WithTimeout sets the default timeout for every expectation.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithLineTerminator sets the string SendLine appends. Defaults to "\n".
func WithLineTerminator(term string) Option {
	return func(o *options) {
		o.lineTerminator = term
	}
}

// WithLogger sets the logger for session events. Sessions log at debug
// level only.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithTranscript copies every byte received from the child to w as it
// arrives. Use os.Stdout to watch the console live.
func WithTranscript(w io.Writer) Option {
	return func(o *options) {
		o.transcript = w
	}
}

// WithStartDelay makes Spawn wait before returning, for consoles that drop
// input sent while the device is still booting.
func WithStartDelay(d time.Duration) Option {
	return func(o *options) {
		o.startDelay = d
	}
}

// WithKillGrace sets how long Close waits after SIGTERM before sending
// SIGKILL to the child's process group.
func WithKillGrace(d time.Duration) Option {
	return func(o *options) {
		o.killGrace = d
	}
}

// WithMaxBuffer caps the unconsumed output kept for expectations at n
// bytes. When the cap is exceeded the oldest output is dropped. The
// transcript is not affected. Defaults to 1 MiB; n <= 0 removes the cap.
func WithMaxBuffer(n int) Option {
	return func(o *options) {
		o.maxBuffer = n
	}
}

// WithSearchWindow limits expectations to the last n bytes of unconsumed
// output, so a console that prints a lot between matches is not rescanned
// from the start on every read. Output before the window is still consumed
// by the next match. n <= 0, the default, searches everything.
func WithSearchWindow(n int) Option {
	return func(o *options) {
		o.searchWindow = n
	}
}

// ExpectOption configures a single expect or WaitExit call.
type ExpectOption func(*expectOptions)

type expectOptions struct {
	timeout time.Duration
}

// WithinTimeout overrides the timeout for a single call.
// A value of 0 means "use the session default". Negative values are an error.
func WithinTimeout(d time.Duration) ExpectOption {
	return func(o *expectOptions) {
		o.timeout = d
	}
}

const (
	defaultCols      = 80
	defaultRows      = 24
	defaultTimeout   = 10 * time.Second
	defaultKillGrace = time.Second
	defaultMaxBuffer = 1 << 20
	readChunkSize    = 4096
)

func defaultOptions() options {
	return options{
		cols:           defaultCols,
		rows:           defaultRows,
		timeout:        defaultTimeout,
		lineTerminator: "\n",
		logger:         zerolog.Nop(),
		killGrace:      defaultKillGrace,
		maxBuffer:      defaultMaxBuffer,
	}
}
