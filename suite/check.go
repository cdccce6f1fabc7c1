package suite

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/cboone/expecter"
)

// Comparison operators accepted in Check.Op.
var ops = []string{"<", "<=", ">", ">=", "==", "!="}

// valueVerb matches a fmt verb that prints a float64, with optional flags,
// width and precision. "%%" is not a verb.
var valueVerb = regexp.MustCompile(`(^|[^%])(%%)*%[-+#0]*\d*(\.\d*)?[vgGeEfF]`)

// Check is a numeric assertion on a capture group of the preceding expect.
// Exactly one of Group and Name selects the capture.
type Check struct {
	Group *int    `json:"group,omitempty" yaml:"group,omitempty" toml:"group,omitempty"`
	Name  string  `json:"name,omitempty" yaml:"name,omitempty" toml:"name,omitempty"`
	Op    string  `json:"op" yaml:"op" toml:"op"`
	Value float64 `json:"value" yaml:"value" toml:"value"`
	// Message is reported when the check fails. A message containing a
	// value verb such as %v, %g or %.2f is formatted with the captured
	// value; any other message is reported as written.
	Message string `json:"message,omitempty" yaml:"message,omitempty" toml:"message,omitempty"`
}

func (c Check) validate(re *regexp.Regexp) error {
	switch {
	case c.Group != nil && c.Name != "":
		return fmt.Errorf("set either group or name, not both")
	case c.Group == nil && c.Name == "":
		return fmt.Errorf("missing group or name")
	case c.Group != nil && (*c.Group < 0 || *c.Group > re.NumSubexp()):
		return fmt.Errorf("group %d out of range (pattern has %d)", *c.Group, re.NumSubexp())
	case c.Name != "" && re.SubexpIndex(c.Name) < 0:
		return fmt.Errorf("pattern has no group named %q", c.Name)
	}
	if !slices.Contains(ops, c.Op) {
		return fmt.Errorf("unknown op %q (want one of %s)", c.Op, strings.Join(ops, " "))
	}
	return nil
}

func (c Check) label() string {
	if c.Name != "" {
		return c.Name
	}
	return fmt.Sprintf("group %d", *c.Group)
}

// Eval parses the selected capture of m as a number and compares it with
// Value. Failures are *expecter.AssertionError values.
func (c Check) Eval(m *expecter.Match) error {
	var (
		raw string
		ok  bool
	)
	if c.Name != "" {
		raw, ok = m.Named(c.Name)
	} else if c.Group != nil {
		raw, ok = m.Lookup(*c.Group)
	}
	if !ok {
		return expecter.Assert(false, "%s did not match", c.label())
	}

	got, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return expecter.Assert(false, "%s: %q is not a number", c.label(), raw)
	}

	pass, err := compare(got, c.Op, c.Value)
	if err != nil {
		return err
	}
	if pass {
		return nil
	}

	switch {
	case c.Message == "":
		return expecter.Assert(false, "%s = %v, want %s %v", c.label(), got, c.Op, c.Value)
	case valueVerb.MatchString(c.Message):
		return expecter.Assert(false, c.Message, got)
	default:
		return expecter.Assert(false, "%s", c.Message)
	}
}

func compare(got float64, op string, want float64) (bool, error) {
	switch op {
	case "<":
		return got < want, nil
	case "<=":
		return got <= want, nil
	case ">":
		return got > want, nil
	case ">=":
		return got >= want, nil
	case "==":
		return got == want, nil
	case "!=":
		return got != want, nil
	default:
		return false, fmt.Errorf("suite: unknown op %q", op)
	}
}
