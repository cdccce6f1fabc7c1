package expecter

import (
	"context"
	"testing"
)

// Open spawns name for use inside a Go test. A spawn failure fails the test
// immediately. Cleanup is automatic via t.Cleanup; no defer needed.
func Open(t testing.TB, name string, opts ...Option) *Session {
	t.Helper()

	s, err := Spawn(context.Background(), name, opts...)
	if err != nil {
		t.Fatalf("%v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Logf("%v", err)
		}
	})
	return s
}

// RunT runs test against s and fails t with the same diagnostic the Runner
// prints when the test returns an error.
func RunT(t testing.TB, s *Session, test TestFunc) {
	t.Helper()

	res := Result{Name: t.Name(), Err: runTest(s, test), Met: s.Met()}
	res.Outcome = classify(res.Err)
	if res.Err != nil {
		t.Fatalf("%s", formatFailure(t.Name(), res, s.Buffered(), s.LastMatch()))
	}
}
