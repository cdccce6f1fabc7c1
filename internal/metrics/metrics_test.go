package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	r := New()
	now := time.Unix(1700000000, 0)

	r.Observe("pkg_lz4", "pass", 4, 1500*time.Millisecond, now)
	r.Observe("pkg_lz4", "assertion", 1, 200*time.Millisecond, now.Add(time.Minute))

	assert.Equal(t, 1.0, testutil.ToFloat64(r.runsTotal.WithLabelValues("pkg_lz4", "pass")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.runsTotal.WithLabelValues("pkg_lz4", "assertion")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.expectations.WithLabelValues("pkg_lz4")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.lastRunResult.WithLabelValues("pkg_lz4")))
	assert.Equal(t, float64(now.Add(time.Minute).Unix()), testutil.ToFloat64(r.lastRunTime.WithLabelValues("pkg_lz4")))

	n, err := testutil.GatherAndCount(r.Gatherer(), "expecter_run_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestObserveUnnamed(t *testing.T) {
	r := New()
	r.Observe("", "error", 0, 0, time.Now())
	assert.Equal(t, 1.0, testutil.ToFloat64(r.runsTotal.WithLabelValues("unnamed", "error")))
}

func TestWriteTextfile(t *testing.T) {
	r := New()
	r.Observe("netstats_l2", "pass", 12, time.Second, time.Now())

	path := filepath.Join(t.TempDir(), "expecter.prom")
	require.NoError(t, r.WriteTextfile(path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `expecter_runs_total{result="pass",test="netstats_l2"} 1`)
	assert.Contains(t, string(b), `expecter_expectations_met{test="netstats_l2"} 12`)

	err = r.WriteTextfile(filepath.Join(t.TempDir(), "missing", "dir", "x.prom"))
	assert.Error(t, err)
}
