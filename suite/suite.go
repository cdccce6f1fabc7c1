// Package suite loads declarative console tests from YAML, TOML or JSON
// files and compiles them into expecter test functions.
//
// A suite is an ordered list of steps. Each step performs exactly one
// action:
//
//	name: pkg_lz4
//	timeout: 10s
//	steps:
//	  - expect: 'Data compressed with success \(ratio: (\d+.\d+)\)\r\n'
//	    assert:
//	      - group: 1
//	        op: "<"
//	        value: 1
//	        message: "No compression (ratio: %v)"
//	  - expect_exact: "Data decompressed with success!"
package suite

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/cboone/expecter"
	"github.com/cboone/expecter/internal/config"
)

// Extensions lists the file extensions Load and Resolve understand, in the
// order Resolve tries them.
var Extensions = []string{".yaml", ".yml", ".toml", ".json"}

// ErrNotFound is returned by Resolve when no suite file exists for a name.
var ErrNotFound = errors.New("suite not found")

// Suite is one declarative console test.
type Suite struct {
	Name        string `json:"name" yaml:"name" toml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
	// Timeout applies to every expect step without its own timeout. Empty
	// means the session default.
	Timeout string `json:"timeout,omitempty" yaml:"timeout,omitempty" toml:"timeout,omitempty"`
	Steps   []Step `json:"steps" yaml:"steps" toml:"steps"`

	// Path is the file the suite was loaded from, if any.
	Path string `json:"-" yaml:"-" toml:"-"`
}

// Step is a single action. Exactly one of Send, SendRaw, Control, Expect
// and ExpectExact is set.
type Step struct {
	Send        *string `json:"send,omitempty" yaml:"send,omitempty" toml:"send,omitempty"`
	SendRaw     *string `json:"send_raw,omitempty" yaml:"send_raw,omitempty" toml:"send_raw,omitempty"`
	Control     string  `json:"control,omitempty" yaml:"control,omitempty" toml:"control,omitempty"`
	Expect      *string `json:"expect,omitempty" yaml:"expect,omitempty" toml:"expect,omitempty"`
	ExpectExact *string `json:"expect_exact,omitempty" yaml:"expect_exact,omitempty" toml:"expect_exact,omitempty"`
	Timeout     string  `json:"timeout,omitempty" yaml:"timeout,omitempty" toml:"timeout,omitempty"`
	Assert      []Check `json:"assert,omitempty" yaml:"assert,omitempty" toml:"assert,omitempty"`
}

// Load reads and parses the suite file at path. A suite without a name is
// named after its file.
func Load(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("suite: %w", err)
	}
	s, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("suite %s: %w", path, err)
	}
	s.Path = path
	if s.Name == "" {
		s.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return s, nil
}

// Parse decodes a suite in the format named by ext (".yaml", ".yml",
// ".toml" or ".json").
func Parse(data []byte, ext string) (*Suite, error) {
	var s Suite
	if err := config.Decode("suite"+ext, data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Resolve finds the suite file for name. name may be a path to an existing
// file; otherwise it is looked up under baseDir as <name>, <name>.<ext>, and
// tests/<name>/tests/suite.<ext>.
func Resolve(name, baseDir string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("suite: empty name")
	}

	candidates := []string{name}
	if baseDir != "" && !filepath.IsAbs(name) {
		candidates = append(candidates, filepath.Join(baseDir, name))
		for _, ext := range Extensions {
			candidates = append(candidates, filepath.Join(baseDir, name+ext))
		}
		for _, ext := range Extensions {
			candidates = append(candidates, filepath.Join(baseDir, "tests", name, "tests", "suite"+ext))
		}
	}

	for _, c := range candidates {
		if fi, err := os.Stat(c); err == nil && fi.Mode().IsRegular() {
			return c, nil
		}
	}
	return "", fmt.Errorf("suite: %q: %w (tried %s)", name, ErrNotFound, strings.Join(candidates, ", "))
}

// Validate reports every problem in the suite at once.
func (s *Suite) Validate() error {
	var errs []error
	if len(s.Steps) == 0 {
		errs = append(errs, fmt.Errorf("no steps"))
	}
	if d, err := config.ParseDuration("timeout", s.Timeout); err != nil {
		errs = append(errs, err)
	} else if d < 0 {
		errs = append(errs, fmt.Errorf("timeout: must not be negative, got %v", d))
	}
	for i, st := range s.Steps {
		if err := st.validate(); err != nil {
			errs = append(errs, fmt.Errorf("step %d: %w", i+1, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("suite %s: %w", s.label(), errors.Join(errs...))
	}
	return nil
}

func (s *Suite) label() string {
	if s.Name != "" {
		return s.Name
	}
	return "(unnamed)"
}

// Action names the single action set on the step, or "" if there is none.
func (st Step) Action() string {
	acts := st.actions()
	if len(acts) != 1 {
		return ""
	}
	return acts[0]
}

func (st Step) actions() []string {
	var acts []string
	if st.Send != nil {
		acts = append(acts, "send")
	}
	if st.SendRaw != nil {
		acts = append(acts, "send_raw")
	}
	if st.Control != "" {
		acts = append(acts, "control")
	}
	if st.Expect != nil {
		acts = append(acts, "expect")
	}
	if st.ExpectExact != nil {
		acts = append(acts, "expect_exact")
	}
	return acts
}

func (st Step) validate() error {
	acts := st.actions()
	switch len(acts) {
	case 0:
		return fmt.Errorf("no action (want one of send, send_raw, control, expect, expect_exact)")
	case 1:
	default:
		return fmt.Errorf("more than one action: %s", strings.Join(acts, ", "))
	}

	d, err := config.ParseDuration("timeout", st.Timeout)
	if err != nil {
		return err
	}
	if d < 0 {
		return fmt.Errorf("timeout: must not be negative, got %v", d)
	}
	if d > 0 && acts[0] != "expect" && acts[0] != "expect_exact" {
		return fmt.Errorf("timeout is only valid on expect steps")
	}

	if len(st.Assert) > 0 && acts[0] != "expect" {
		return fmt.Errorf("assert is only valid on expect steps")
	}

	switch acts[0] {
	case "control":
		if len(st.Control) != 1 || !isLetter(st.Control[0]) {
			return fmt.Errorf("control: want a single letter, got %q", st.Control)
		}
	case "expect_exact":
		if *st.ExpectExact == "" {
			return fmt.Errorf("expect_exact: empty text")
		}
	case "expect":
		re, err := regexp.Compile(*st.Expect)
		if err != nil {
			return fmt.Errorf("expect: %w", err)
		}
		for j, c := range st.Assert {
			if err := c.validate(re); err != nil {
				return fmt.Errorf("assert %d: %w", j+1, err)
			}
		}
	}
	return nil
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// Compile validates the suite and returns a test function running its steps
// in order. The first failing step stops the test; its error names the step.
func (s *Suite) Compile() (expecter.TestFunc, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	suiteTimeout, _ := config.ParseDuration("timeout", s.Timeout)

	steps := make([]func(*expecter.Session) error, len(s.Steps))
	for i, st := range s.Steps {
		timeout, _ := config.ParseDuration("timeout", st.Timeout)
		if timeout == 0 {
			timeout = suiteTimeout
		}
		steps[i] = st.compile(timeout)
	}

	return func(sess *expecter.Session) error {
		for i, run := range steps {
			if err := run(sess); err != nil {
				return fmt.Errorf("step %d (%s): %w", i+1, s.Steps[i].Action(), err)
			}
		}
		return nil
	}, nil
}

// compile turns a validated step into its action.
func (st Step) compile(timeout time.Duration) func(*expecter.Session) error {
	var wopts []expecter.ExpectOption
	if timeout > 0 {
		wopts = append(wopts, expecter.WithinTimeout(timeout))
	}

	switch {
	case st.Send != nil:
		line := *st.Send
		return func(sess *expecter.Session) error {
			return sess.SendLine(line)
		}
	case st.SendRaw != nil:
		text := *st.SendRaw
		return func(sess *expecter.Session) error {
			return sess.Send(text)
		}
	case st.Control != "":
		key := expecter.Ctrl(st.Control[0])
		return func(sess *expecter.Session) error {
			return sess.Press(key)
		}
	case st.ExpectExact != nil:
		text := *st.ExpectExact
		return func(sess *expecter.Session) error {
			_, err := sess.ExpectExact(text, wopts...)
			return err
		}
	default:
		e := expecter.RegexpOf(regexp.MustCompile(*st.Expect))
		checks := st.Assert
		return func(sess *expecter.Session) error {
			m, err := sess.ExpectMatch(e, wopts...)
			if err != nil {
				return err
			}
			for _, c := range checks {
				if err := c.Eval(m); err != nil {
					return err
				}
			}
			return nil
		}
	}
}
