package expecter

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeOutput(t *testing.T) {
	assert.Equal(t, "a\nb\nc", normalizeOutput("a\r\nb\r\nc\r"))
}

func TestLastLines(t *testing.T) {
	assert.Nil(t, lastLines("", 3))
	assert.Equal(t, []string{"b", "c"}, lastLines("a\r\nb\r\nc\r\n", 2))
}

func TestFormatOutputBoxEmpty(t *testing.T) {
	assert.Equal(t, "    (no output received)", formatOutputBox(""))
}

func TestFormatOutputBox(t *testing.T) {
	got := formatOutputBox("> help\r\nreboot\tReboot\x1b[0m\r\n")
	want := strings.Join([]string{
		"    ┌────────────────────┐",
		"    │> help              │",
		"    │reboot Reboot·[0m   │",
		"    └────────────────────┘",
	}, "\n")
	assert.Equal(t, want, got)
}

func TestFormatOutputBoxKeepsTail(t *testing.T) {
	var b strings.Builder
	for i := 1; i <= 30; i++ {
		fmt.Fprintf(&b, "line %d\n", i)
	}
	got := formatOutputBox(b.String())

	assert.NotContains(t, got, "line 10 ")
	assert.Contains(t, got, "line 11 ")
	assert.Contains(t, got, "line 30 ")
	assert.Equal(t, diagnosticLines+2, strings.Count(got, "\n")+1)
}

func TestFormatOutputBoxTruncatesWideLines(t *testing.T) {
	got := formatOutputBox(strings.Repeat("x", 200))
	lines := strings.Split(got, "\n")
	assert.Len(t, lines, 3)
	assert.Contains(t, lines[1], "…")
	assert.Equal(t, diagnosticMaxWidth+6, len([]rune(lines[1])))
}
