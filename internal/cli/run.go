package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/cboone/expecter"
	"github.com/cboone/expecter/internal/config"
	"github.com/cboone/expecter/internal/logging"
	"github.com/cboone/expecter/internal/metrics"
	"github.com/cboone/expecter/scenarios"
	"github.com/cboone/expecter/suite"
)

// runFlags holds the flags that select what to run. Flags that override
// configuration are read back through the flag set so that only changed
// ones apply.
type runFlags struct {
	builtin    string
	suite      string
	transcript string
	quiet      bool
}

func (a *app) newRunCmd() *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run (--builtin NAME | --suite FILE) [flags] [-- command args...]",
		Short: "Run one console test",
		Long: `Run one console test against a freshly started console.

The console is the command after "--", or $EXPECTER_TERM run through
/bin/sh -c ("make term" by default). Suite names that are not paths are
looked up under $EXPECTER_BASE.`,
		Example: `  expecter run --builtin pkg_lz4
  expecter run --suite netstats_l2 --timeout 30s
  expecter run --suite ./smoke.yaml -- ./bin/node.elf`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), cmd.Flags(), f, args)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&f.builtin, "builtin", "", "built-in scenario to run (see 'expecter list')")
	fs.StringVar(&f.suite, "suite", "", "suite file or name to run")
	fs.String("config", "", "config file (.yaml, .toml or .json); defaults to $EXPECTER_CONFIG")
	fs.String("timeout", "", "default timeout for each expectation, e.g. 10s or 30")
	fs.String("start-delay", "", "wait this long after starting the console")
	fs.String("log-level", "", "log level: debug|info|warn|error|off")
	fs.String("log-format", "", "log format: console|json")
	fs.String("metrics-file", "", "write Prometheus metrics to this textfile")
	fs.String("line-terminator", "", `string appended to each sent line (escapes such as \r\n are understood)`)
	fs.StringVar(&f.transcript, "transcript", "", "save console output to this file, or to a new file in this directory")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "do not echo console output to stdout")
	cmd.MarkFlagsMutuallyExclusive("builtin", "suite")
	cmd.MarkFlagsOneRequired("builtin", "suite")
	return cmd
}

// loadConfig layers defaults, the config file, the environment and changed
// flags, in increasing order of precedence.
func (a *app) loadConfig(fs *pflag.FlagSet) (config.Config, error) {
	path, _ := fs.GetString("config")
	if !fs.Changed("config") {
		path, _ = a.env(config.EnvConfig)
	}

	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return cfg, err
		}
	}
	cfg.ApplyEnv(a.env)

	override := func(name string, dst *string) {
		if fs.Changed(name) {
			*dst, _ = fs.GetString(name)
		}
	}
	override("timeout", &cfg.Timeout)
	override("start-delay", &cfg.StartDelay)
	override("log-level", &cfg.LogLevel)
	override("log-format", &cfg.LogFormat)
	override("metrics-file", &cfg.MetricsFile)
	override("line-terminator", &cfg.LineTerminator)
	if fs.Changed("line-terminator") {
		cfg.LineTerminator = unescape(cfg.LineTerminator)
	}

	return cfg, cfg.Validate()
}

func (a *app) run(ctx context.Context, fs *pflag.FlagSet, f runFlags, args []string) error {
	cfg, err := a.loadConfig(fs)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, err := logging.New(a.stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}

	name, test, err := a.selectTest(f, cfg)
	if err != nil {
		return err
	}

	timeout, _ := cfg.TimeoutDuration()
	startDelay, _ := cfg.StartDelayDuration()

	path, cmdArgs := "/bin/sh", []string{"-c", cfg.Term}
	if len(args) > 0 {
		path, cmdArgs = args[0], args[1:]
	}

	var sinks []io.Writer
	if !f.quiet {
		sinks = append(sinks, a.stdout)
	}
	if f.transcript != "" {
		tf, err := openTranscript(f.transcript, name)
		if err != nil {
			return err
		}
		defer tf.Close()
		log.Info().Str("path", tf.Name()).Msg("saving transcript")
		sinks = append(sinks, tf)
	}

	opts := []expecter.Option{
		expecter.WithArgs(cmdArgs...),
		expecter.WithEnv(cfg.Env...),
		expecter.WithDir(cfg.Dir),
		expecter.WithSize(cfg.Cols, cfg.Rows),
		expecter.WithTimeout(timeout),
		expecter.WithStartDelay(startDelay),
		expecter.WithLineTerminator(cfg.LineTerminator),
		expecter.WithLogger(log),
	}
	if len(sinks) > 0 {
		opts = append(opts, expecter.WithTranscript(io.MultiWriter(sinks...)))
	}

	var rec *metrics.Recorder
	if cfg.MetricsFile != "" {
		rec = metrics.New()
	}

	runner := &expecter.Runner{
		Name:   name,
		Spawn:  expecter.SpawnCommand(path, opts...),
		Stderr: a.stderr,
		Logger: log,
		Observe: func(res expecter.Result) {
			if rec != nil {
				rec.Observe(res.Name, string(res.Outcome), res.Met, res.Duration, res.Finished)
			}
		},
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	code := runner.Run(ctx, test)

	if rec != nil {
		if err := rec.WriteTextfile(cfg.MetricsFile); err != nil {
			log.Error().Err(err).Msg("metrics not written")
		}
	}
	if code != expecter.ExitPass {
		return &exitError{code: code}
	}
	return nil
}

// selectTest resolves --builtin or --suite to a test function.
func (a *app) selectTest(f runFlags, cfg config.Config) (string, expecter.TestFunc, error) {
	if f.builtin != "" {
		s, ok := scenarios.Lookup(f.builtin)
		if !ok {
			return "", nil, fmt.Errorf("unknown built-in scenario %q (have %s)",
				f.builtin, strings.Join(scenarios.Names(), ", "))
		}
		return s.Name, s.Test, nil
	}

	path, err := suite.Resolve(f.suite, cfg.BaseDir)
	if err != nil {
		return "", nil, err
	}
	s, err := suite.Load(path)
	if err != nil {
		return "", nil, err
	}
	test, err := s.Compile()
	if err != nil {
		return "", nil, err
	}
	return s.Name, test, nil
}

// openTranscript creates path, or a uniquely named file inside path when it
// is an existing directory.
func openTranscript(path, name string) (*os.File, error) {
	if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		path = filepath.Join(path, fmt.Sprintf("%s-%s.log", name, uuid.NewString()))
	}
	tf, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("transcript: %w", err)
	}
	return tf, nil
}

// unescape turns the escapes people type on a command line (\r, \n, \t)
// into the characters they stand for.
func unescape(s string) string {
	return strings.NewReplacer(`\r`, "\r", `\n`, "\n", `\t`, "\t").Replace(s)
}
