package cli

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sys/unix"

	"github.com/cboone/expecter"
)

var testBinary string

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "expecter-cli-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create temp dir: %v\n", err)
		os.Exit(1)
	}

	binPath := filepath.Join(dir, "testbin")
	cmd := exec.Command("go", "build", "-o", binPath, "../testbin")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to build testbin: %v\n", err)
		os.RemoveAll(dir)
		os.Exit(1)
	}

	testBinary = binPath
	goleak.VerifyTestMain(m, goleak.Cleanup(func(int) {
		os.RemoveAll(dir)
	}))
}

// envMap returns an Env backed by vars instead of the process environment.
func envMap(vars map[string]string) Env {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

type result struct {
	code   int
	stdout string
	stderr string
}

func execute(t *testing.T, env map[string]string, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Execute(args, &stdout, &stderr, envMap(env))
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const lz4Suite = `name: lz4_smoke
steps:
  - expect: 'Data compressed with success \(ratio: (\d+.\d+)\)'
    assert:
      - group: 1
        op: "<"
        value: 1
        message: "No compression (ratio: %v)"
  - expect_exact: "Data decompressed with success!"
`

func TestVersion(t *testing.T) {
	res := execute(t, nil, "version")
	assert.Equal(t, expecter.ExitPass, res.code)
	assert.True(t, strings.HasPrefix(res.stdout, "expecter "), res.stdout)
}

func TestList(t *testing.T) {
	res := execute(t, nil, "list")
	require.Equal(t, expecter.ExitPass, res.code, res.stderr)
	for _, name := range []string{"netstats_l2", "netstats_l2_lenient", "pkg_lz4"} {
		assert.Contains(t, res.stdout, name)
	}
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, filepath.Join(dir, "good.yaml"), lz4Suite)
	bad := writeFile(t, filepath.Join(dir, "bad.toml"), "[[steps]]\ncontrol = \"cc\"\n")

	res := execute(t, nil, "check", good)
	assert.Equal(t, expecter.ExitPass, res.code, res.stdout)
	assert.Contains(t, res.stdout, "ok    "+good+"  lz4_smoke (2 steps)")

	res = execute(t, nil, "check", good, bad)
	assert.Equal(t, expecter.ExitFail, res.code)
	assert.Contains(t, res.stdout, "FAIL  "+bad)
	assert.Contains(t, res.stdout, "want a single letter")

	res = execute(t, nil, "check")
	assert.Equal(t, expecter.ExitError, res.code)
}

func TestRunBuiltin(t *testing.T) {
	res := execute(t, nil, "run", "--builtin", "pkg_lz4", "--log-level", "off", "--", testBinary, "-app", "lz4")
	require.Equal(t, expecter.ExitPass, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Validation done, decompressed string:")

	res = execute(t, nil, "run", "--builtin", "pkg_lz4", "--quiet", "--log-level", "off",
		"--", testBinary, "-app", "lz4", "-ratio", "1.10")
	assert.Equal(t, expecter.ExitFail, res.code)
	assert.Empty(t, res.stdout)
	assert.Contains(t, res.stderr, "No compression (ratio: 1.1)")
}

func TestRunUsesTermFromEnv(t *testing.T) {
	env := map[string]string{"EXPECTER_TERM": testBinary + " -app lz4"}
	res := execute(t, env, "run", "--builtin", "pkg_lz4", "-q", "--log-level", "off")
	assert.Equal(t, expecter.ExitPass, res.code, res.stderr)
}

func TestRunSuiteFromBase(t *testing.T) {
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "tests", "lz4_smoke", "tests", "suite.yaml"), lz4Suite)
	env := map[string]string{"EXPECTER_BASE": base}

	res := execute(t, env, "run", "--suite", "lz4_smoke", "-q", "--log-level", "off", "--", testBinary, "-app", "lz4")
	assert.Equal(t, expecter.ExitPass, res.code, res.stderr)
}

func TestRunSetupErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "no test", args: []string{"run"}, want: "builtin"},
		{name: "both tests", args: []string{"run", "--builtin", "pkg_lz4", "--suite", "x.yaml"}, want: "builtin"},
		{name: "unknown builtin", args: []string{"run", "--builtin", "pkg_zstd"}, want: `unknown built-in scenario "pkg_zstd"`},
		{name: "missing suite", args: []string{"run", "--suite", "nowhere"}, want: "suite not found"},
		{name: "bad timeout", args: []string{"run", "--builtin", "pkg_lz4", "--timeout", "soon"}, want: "config: timeout"},
		{name: "bad log format", args: []string{"run", "--builtin", "pkg_lz4", "--log-format", "xml"}, want: "unknown log format"},
		{
			name: "console does not start",
			args: []string{"run", "--builtin", "pkg_lz4", "--log-level", "off", "--", "/nonexistent/expecter-console"},
			want: "expecter: spawn:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := execute(t, nil, tt.args...)
			assert.Equal(t, expecter.ExitError, res.code)
			assert.Contains(t, res.stderr, tt.want)
		})
	}
}

func TestRunInterrupted(t *testing.T) {
	// A handler of our own keeps an early SIGINT from killing the test binary.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	defer signal.Stop(sig)

	timer := time.AfterFunc(300*time.Millisecond, func() {
		_ = unix.Kill(os.Getpid(), unix.SIGINT)
	})
	defer timer.Stop()

	start := time.Now()
	res := execute(t, nil, "run", "--builtin", "netstats_l2", "--timeout", "10s", "-q", "--log-level", "off",
		"--", testBinary, "-app", "lz4")
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, expecter.ExitFail, res.code)
	assert.Contains(t, res.stderr, "run interrupted")
	assert.Contains(t, res.stderr, "session closed")
}

func TestRunWritesMetricsAndTranscript(t *testing.T) {
	dir := t.TempDir()
	metricsFile := filepath.Join(dir, "expecter.prom")
	transcripts := filepath.Join(dir, "transcripts")
	require.NoError(t, os.Mkdir(transcripts, 0o755))

	res := execute(t, nil, "run", "--builtin", "pkg_lz4", "-q",
		"--log-level", "info", "--log-format", "json",
		"--metrics-file", metricsFile,
		"--transcript", transcripts,
		"--", testBinary, "-app", "lz4")
	require.Equal(t, expecter.ExitPass, res.code, res.stderr)
	assert.Contains(t, res.stderr, `"message":"test finished"`)
	assert.Contains(t, res.stderr, `"outcome":"pass"`)

	prom, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `expecter_runs_total{result="pass",test="pkg_lz4"} 1`)
	assert.Contains(t, string(prom), `expecter_expectations_met{test="pkg_lz4"} 4`)

	entries, err := os.ReadDir(transcripts)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "pkg_lz4-"))
	data, err := os.ReadFile(filepath.Join(transcripts, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Data compressed with success (ratio: 0.42)")
}

func TestLoadConfigPrecedence(t *testing.T) {
	cfgFile := writeFile(t, filepath.Join(t.TempDir(), "expecter.yaml"),
		"timeout: 20s\nlog_level: debug\nterm: make term BOARD=native\n")

	tests := []struct {
		name        string
		env         map[string]string
		args        []string
		wantTimeout string
		wantLevel   string
	}{
		{name: "defaults", wantTimeout: "10s", wantLevel: "info"},
		{name: "file", args: []string{"--config", cfgFile}, wantTimeout: "20s", wantLevel: "debug"},
		{name: "file from env", env: map[string]string{"EXPECTER_CONFIG": cfgFile}, wantTimeout: "20s", wantLevel: "debug"},
		{
			name:        "env over file",
			env:         map[string]string{"EXPECTER_CONFIG": cfgFile, "EXPECTER_TIMEOUT": "30"},
			wantTimeout: "30",
			wantLevel:   "debug",
		},
		{
			name:        "flag over env",
			env:         map[string]string{"EXPECTER_CONFIG": cfgFile, "EXPECTER_TIMEOUT": "30"},
			args:        []string{"--timeout", "40s", "--log-level", "warn"},
			wantTimeout: "40s",
			wantLevel:   "warn",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &app{stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}, env: envMap(tt.env)}
			cmd := a.newRunCmd()
			require.NoError(t, cmd.ParseFlags(tt.args))

			cfg, err := a.loadConfig(cmd.Flags())
			require.NoError(t, err)
			assert.Equal(t, tt.wantTimeout, cfg.Timeout)
			assert.Equal(t, tt.wantLevel, cfg.LogLevel)
		})
	}
}

func TestLoadConfigLineTerminator(t *testing.T) {
	a := &app{stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}, env: envMap(nil)}
	cmd := a.newRunCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--line-terminator", `\r\n`}))

	cfg, err := a.loadConfig(cmd.Flags())
	require.NoError(t, err)
	assert.Equal(t, "\r\n", cfg.LineTerminator)
}
