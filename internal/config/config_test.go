package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", "term: make -C tests/pkg_lz4 term\ntimeout: 30s\nbase_dir: /opt/riot\nenv: [BOARD=native]\n")
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "make -C tests/pkg_lz4 term", cfg.Term)
	assert.Equal(t, "30s", cfg.Timeout)
	assert.Equal(t, "/opt/riot", cfg.BaseDir)
	assert.Equal(t, []string{"BOARD=native"}, cfg.Env)
	// Unset fields keep defaults.
	assert.Equal(t, "\n", cfg.LineTerminator)
	assert.Equal(t, 80, cfg.Cols)
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json", `{"term":"./node.elf","timeout":"5s","log_level":"debug","cols":120,"rows":40}`)
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "./node.elf", cfg.Term)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 120, cfg.Cols)
	assert.Equal(t, 40, cfg.Rows)
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml", "term = \"make term\"\nstart_delay = \"1s\"\nline_terminator = \"\\r\\n\"\nmetrics_file = \"/tmp/x.prom\"\n")
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "\r\n", cfg.LineTerminator)
	assert.Equal(t, "/tmp/x.prom", cfg.MetricsFile)
	d1, err := cfg.StartDelayDuration()
	require.NoError(t, err)
	assert.Equal(t, time.Second, d1)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load("")
	assert.Error(t, err, "expected error on empty path")

	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.txt", "not supported")
	_, err = Load(p)
	assert.ErrorContains(t, err, "unsupported extension")

	p = writeTempFile(t, d, "bad.yaml", "term: [unclosed\n")
	_, err = Load(p)
	assert.Error(t, err)

	_, err = Load(filepath.Join(d, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvBase:        "/riot",
		EnvTerm:        "make -C tests/netstats_l2 term",
		EnvTimeout:     "20",
		EnvLogLevel:    "",
		EnvMetricsFile: "/var/lib/node_exporter/expecter.prom",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	cfg.ApplyEnv(lookup)

	assert.Equal(t, "/riot", cfg.BaseDir)
	assert.Equal(t, "make -C tests/netstats_l2 term", cfg.Term)
	assert.Equal(t, "info", cfg.LogLevel, "empty env value must not override")
	assert.Equal(t, "/var/lib/node_exporter/expecter.prom", cfg.MetricsFile)

	timeout, err := cfg.TimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, 20*time.Second, timeout, "bare number is seconds")
}

func TestValidate(t *testing.T) {
	require.NoError(t, Default().Validate())

	cases := map[string]func(*Config){
		"empty term":     func(c *Config) { c.Term = "  " },
		"zero timeout":   func(c *Config) { c.Timeout = "0s" },
		"bad timeout":    func(c *Config) { c.Timeout = "soon" },
		"negative delay": func(c *Config) { c.StartDelay = "-1s" },
		"bad size":       func(c *Config) { c.Cols = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestParseDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"":      0,
		"30":    30 * time.Second,
		"1.5":   1500 * time.Millisecond,
		" 2m ":  2 * time.Minute,
		"250ms": 250 * time.Millisecond,
	}
	for in, want := range cases {
		got, err := ParseDuration("timeout", in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseDuration("timeout", "soon")
	assert.ErrorContains(t, err, "timeout:")
}
