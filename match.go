package expecter

import (
	"fmt"
	"regexp"
	"strings"
)

// An Expectation searches the unconsumed console output for a match.
// It returns nil when nothing matches yet. The description is used in error
// messages either way.
type Expectation func(buf string) (m *Match, description string)

// Exact matches the first verbatim occurrence of text.
func Exact(text string) Expectation {
	desc := fmt.Sprintf("output to contain %q", text)
	return func(buf string) (*Match, string) {
		i := strings.Index(buf, text)
		if i < 0 {
			return nil, desc
		}
		return &Match{
			text:   text,
			before: buf[:i],
			start:  i,
			end:    i + len(text),
		}, desc
	}
}

// Regexp matches the leftmost occurrence of the regular expression.
// The pattern is compiled once; an invalid pattern causes a panic.
func Regexp(pattern string) Expectation {
	return RegexpOf(regexp.MustCompile(pattern))
}

// RegexpOf is Regexp for an already compiled expression.
func RegexpOf(re *regexp.Regexp) Expectation {
	desc := fmt.Sprintf("output to match regexp %q", re.String())
	return func(buf string) (*Match, string) {
		loc := re.FindStringSubmatchIndex(buf)
		if loc == nil {
			return nil, desc
		}
		return newRegexpMatch(re, buf, loc), desc
	}
}

// Any matches whichever expectation occurs earliest in the output. Ties go
// to the expectation listed first. Match.Index reports which one matched.
func Any(exps ...Expectation) Expectation {
	return func(buf string) (*Match, string) {
		descs := make([]string, 0, len(exps))
		var best *Match
		for i, e := range exps {
			m, desc := e(buf)
			descs = append(descs, desc)
			if m == nil {
				continue
			}
			if best == nil || m.start < best.start {
				m.index = i
				best = m
			}
		}
		return best, "any of: " + strings.Join(descs, ", ")
	}
}

func newRegexpMatch(re *regexp.Regexp, buf string, loc []int) *Match {
	n := len(loc) / 2
	m := &Match{
		before:  buf[:loc[0]],
		start:   loc[0],
		end:     loc[1],
		groups:  make([]string, n),
		present: make([]bool, n),
		names:   re.SubexpNames(),
	}
	for i := 0; i < n; i++ {
		if loc[2*i] < 0 {
			continue
		}
		m.groups[i] = buf[loc[2*i]:loc[2*i+1]]
		m.present[i] = true
	}
	m.text = m.groups[0]
	return m
}
