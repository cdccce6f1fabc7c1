package expecter

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	diagnosticLines    = 20
	diagnosticMinWidth = 20
	diagnosticMaxWidth = 120
)

// normalizeOutput converts pty line endings to "\n" and drops stray
// carriage returns, so console text compares the same on every platform.
func normalizeOutput(raw string) string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	return strings.ReplaceAll(raw, "\r", "")
}

// lastLines returns at most n trailing lines of text.
func lastLines(text string, n int) []string {
	text = strings.TrimSuffix(normalizeOutput(text), "\n")
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}

// formatOutputBox formats the tail of the console output with a box border
// for failure diagnostics.
func formatOutputBox(text string) string {
	lines := lastLines(text, diagnosticLines)
	if len(lines) == 0 {
		return "    (no output received)"
	}

	width := diagnosticMinWidth
	for i, l := range lines {
		l = strings.Map(printable, l)
		if utf8.RuneCountInString(l) > diagnosticMaxWidth {
			l = string([]rune(l)[:diagnosticMaxWidth-1]) + "…"
		}
		lines[i] = l
		if w := utf8.RuneCountInString(l); w > width {
			width = w
		}
	}

	var b strings.Builder
	border := strings.Repeat("─", width)

	fmt.Fprintf(&b, "    ┌%s┐\n", border)
	for _, line := range lines {
		padded := line + strings.Repeat(" ", width-utf8.RuneCountInString(line))
		fmt.Fprintf(&b, "    │%s│\n", padded)
	}
	fmt.Fprintf(&b, "    └%s┘", border)

	return b.String()
}

// printable replaces control characters that would corrupt the box.
func printable(r rune) rune {
	switch {
	case r == '\t':
		return ' '
	case r < 0x20, r == 0x7f:
		return '·'
	default:
		return r
	}
}
