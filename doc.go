// Package expecter drives interactive console programs and checks their
// output against an ordered list of expectations.
//
// expecter runs a program (typically a device console such as `make term`)
// on a pseudo-terminal, sends command lines, and waits for literal text or
// regular expressions to appear in the output. Any unmet expectation is an
// error; a runner maps the outcome of a test to a process exit status.
//
// # Quick Start
//
//	func testfunc(s *expecter.Session) error {
//		if err := s.SendLine("help"); err != nil {
//			return err
//		}
//		if _, err := s.ExpectExact("Command              Description"); err != nil {
//			return err
//		}
//		m, err := s.Expect(`ratio: (\d+\.\d+)`)
//		if err != nil {
//			return err
//		}
//		ratio, err := m.Float(1)
//		if err != nil {
//			return err
//		}
//		return expecter.Assert(ratio < 1, "No compression (ratio: %v)", ratio)
//	}
//
//	func main() {
//		expecter.Main(expecter.SpawnCommand("make", expecter.WithArgs("term")), testfunc)
//	}
//
// # Ordering
//
// Output is read in the background into a pending buffer. A successful
// expectation discards the buffer up to and including the end of its match,
// so later expectations only ever see output that follows earlier matches.
// The output skipped to reach a match is available from [Match.Before].
//
// # Waiting
//
// [Session.ExpectExact], [Session.Expect] and [Session.ExpectMatch] block
// until a match, the end of the output, or a timeout:
//
//   - Default timeout: 10s
//   - Per-session override: [WithTimeout]
//   - Per-call override: [WithinTimeout]
//   - Negative per-call timeouts are an error
//   - If the child exits first, the call fails at once with a *MismatchError
//
// Built-in expectations are [Exact], [Regexp], [RegexpOf] and [Any].
//
// # Errors
//
// Failures are typed: *TimeoutError, *MismatchError and *AssertionError,
// matched with errors.Is against [ErrTimeout], [ErrMismatch] and
// [ErrAssertion]. All of them name what was expected and, for output
// failures, what was received.
//
// # Running Tests
//
// [Runner] spawns a session, calls the test function, prints a diagnostic
// on failure (the error, the expectation and a box with the most recent
// output), closes the session and returns [ExitPass], [ExitFail] or
// [ExitError]. [Open] and [RunT] do the same inside `go test`.
//
// # Snapshots
//
// [Session.MatchSnapshot] compares the session transcript to golden files
// under testdata. Set EXPECTER_UPDATE=1 to create or update golden files.
//
// # Requirements
//
//   - Go 1.24+
//   - Linux or macOS (pseudo-terminals)
package expecter
