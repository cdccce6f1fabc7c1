package expecter

import "fmt"

// Assert returns an *AssertionError with the formatted message when cond is
// false, and nil otherwise.
//
//	ratio, err := m.Float(1)
//	...
//	if err := expecter.Assert(ratio < 1, "No compression (ratio: %v)", ratio); err != nil {
//		return err
//	}
func Assert(cond bool, format string, args ...any) error {
	if cond {
		return nil
	}
	return &AssertionError{Message: fmt.Sprintf(format, args...)}
}

// AssertLess fails unless got < bound.
func AssertLess(what string, got, bound float64) error {
	return Assert(got < bound, "%s: %v is not less than %v", what, got, bound)
}
