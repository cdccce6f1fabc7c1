package expecter

// Key is a byte sequence understood by a terminal line discipline or a
// full-screen program.
type Key string

// Special key constants for use with Press.
const (
	Enter     Key = "\r"
	Escape    Key = "\x1b"
	Tab       Key = "\t"
	Backspace Key = "\x7f"
	Up        Key = "\x1b[A"
	Down      Key = "\x1b[B"
	Right     Key = "\x1b[C"
	Left      Key = "\x1b[D"
	Home      Key = "\x1b[H"
	End       Key = "\x1b[F"
	PageUp    Key = "\x1b[5~"
	PageDown  Key = "\x1b[6~"
	Delete    Key = "\x1b[3~"
	Space     Key = " "
)

// Ctrl returns the control character for Ctrl+<char>, e.g. Ctrl('c') is
// ETX, which the pty turns into SIGINT for the foreground process.
func Ctrl(c byte) Key {
	if c >= 'a' && c <= 'z' {
		c -= 'a' - 'A'
	}
	return Key([]byte{c & 0x1f})
}

// Alt returns the escape-prefixed sequence for Alt+<char>.
func Alt(c byte) Key {
	return Key([]byte{0x1b, c})
}
