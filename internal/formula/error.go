package formula

import "fmt"

// Error is a structured formula failure: what went wrong and where in the
// expression text. The evaluator converts every Error into a null result at
// the display boundary; it never escapes to rendering.
type Error struct {
	Pos    int
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("formula error at %d: %s", e.Pos, e.Reason)
}

func errAt(pos int, format string, args ...any) *Error {
	return &Error{Pos: pos, Reason: fmt.Sprintf(format, args...)}
}
