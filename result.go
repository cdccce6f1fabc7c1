package expecter

import (
	"fmt"
	"strconv"
	"strings"
)

// Match is the result of a satisfied expectation. Group 0 is the whole
// match; groups 1..NumGroups are regexp captures. Literal expectations have
// no captures.
type Match struct {
	text    string
	before  string
	groups  []string
	present []bool
	names   []string
	index   int
	start   int
	end     int
}

// Text returns the matched text.
func (m *Match) Text() string {
	return m.text
}

// Before returns the output skipped between the previous match and this one.
func (m *Match) Before() string {
	return m.before
}

// Index reports which alternative of an Any expectation matched. It is 0
// for every other expectation.
func (m *Match) Index() int {
	return m.index
}

// NumGroups returns the number of capture groups, not counting group 0.
func (m *Match) NumGroups() int {
	if len(m.groups) == 0 {
		return 0
	}
	return len(m.groups) - 1
}

// Lookup returns capture group i and whether it took part in the match.
// Lookup(0) is the whole match.
func (m *Match) Lookup(i int) (string, bool) {
	if i == 0 {
		return m.text, true
	}
	if i < 0 || i >= len(m.groups) || !m.present[i] {
		return "", false
	}
	return m.groups[i], true
}

// Group returns capture group i, or "" if it did not participate.
func (m *Match) Group(i int) string {
	s, _ := m.Lookup(i)
	return s
}

// Named returns the capture group with the given (?P<name>...) name.
func (m *Match) Named(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	for i, n := range m.names {
		if n == name {
			return m.Lookup(i)
		}
	}
	return "", false
}

// Groups returns a copy of the capture groups 1..NumGroups. Groups that did
// not participate are "".
func (m *Match) Groups() []string {
	if len(m.groups) < 2 {
		return nil
	}
	cp := make([]string, len(m.groups)-1)
	copy(cp, m.groups[1:])
	return cp
}

// Float parses capture group i as a floating point number.
func (m *Match) Float(i int) (float64, error) {
	s, ok := m.Lookup(i)
	if !ok {
		return 0, fmt.Errorf("expecter: group %d did not match", i)
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("expecter: group %d: %w", i, err)
	}
	return f, nil
}

// Int parses capture group i as a base 10 integer.
func (m *Match) Int(i int) (int64, error) {
	s, ok := m.Lookup(i)
	if !ok {
		return 0, fmt.Errorf("expecter: group %d did not match", i)
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("expecter: group %d: %w", i, err)
	}
	return n, nil
}

// String returns the matched text.
func (m *Match) String() string {
	return m.text
}
