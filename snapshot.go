package expecter

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// MatchSnapshot compares the session transcript against a golden file
// stored in testdata/<test-name>-<hash>/<name>.txt.
//
// Set EXPECTER_UPDATE=1 to create or update golden files.
func (s *Session) MatchSnapshot(t testing.TB, name string) {
	t.Helper()

	dir := snapshotDir(t)
	if err := compareSnapshot(dir, name, s.Transcript(), shouldUpdate()); err != nil {
		t.Fatalf("%v", err)
	}
}

// compareSnapshot checks raw against dir/<name>.txt, or writes it when update
// is set.
func compareSnapshot(dir, name, raw string, update bool) error {
	path := filepath.Join(dir, snapshotName(name)+".txt")

	content := normalizeForSnapshot(raw)

	if update {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("expecter: snapshot: failed to create directory: %w", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("expecter: snapshot: failed to write golden file: %w", err)
		}
		return nil
	}

	golden, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("expecter: snapshot: golden file not found: %s\nRun with EXPECTER_UPDATE=1 to create it.\n\nActual transcript:\n%s", path, content)
		}
		return fmt.Errorf("expecter: snapshot: failed to read golden file: %w", err)
	}

	if string(golden) != content {
		diff := cmp.Diff(strings.Split(string(golden), "\n"), strings.Split(content, "\n"))
		return fmt.Errorf("expecter: snapshot: mismatch for %q\nGolden file: %s\nRun with EXPECTER_UPDATE=1 to update.\n\n(-golden +actual):\n%s",
			name, path, diff)
	}
	return nil
}

// maxSnapshotName bounds each generated path element. Directory names also
// carry a hash of the full test name, so truncated names stay distinct.
const maxSnapshotName = 100

// updateEnv names the variable that makes MatchSnapshot rewrite golden files.
const updateEnv = "EXPECTER_UPDATE"

// snapshotDir returns testdata/<test-name>-<hash> for the current test.
func snapshotDir(t testing.TB) string {
	t.Helper()
	sum := sha256.Sum256([]byte(t.Name()))
	return filepath.Join("testdata", fmt.Sprintf("%s-%x", snapshotName(t.Name()), sum[:4]))
}

// normalizeForSnapshot turns pty line endings into "\n", trims trailing
// blanks from every line and ends the result with exactly one newline.
func normalizeForSnapshot(raw string) string {
	var b strings.Builder
	for line := range strings.Lines(normalizeOutput(raw)) {
		b.WriteString(strings.TrimRight(line, " \n"))
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func shouldUpdate() bool {
	switch strings.ToLower(os.Getenv(updateEnv)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// snapshotName keeps ASCII letters, digits, '.' and '-' and turns every
// other rune into '_'.
func snapshotName(name string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			return r
		}
		return '_'
	}, name)
	if len(safe) > maxSnapshotName {
		safe = safe[:maxSnapshotName]
	}
	return safe
}
