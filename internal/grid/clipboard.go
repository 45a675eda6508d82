package grid

import (
	"strings"

	"github.com/oakwood-commons/gridx/internal/value"
)

// Clipboard text is tab-separated cells in newline-delimited rows, the
// interchange format spreadsheets paste as. Null cells serialize to the
// empty string; pasted cells coerce numeric-looking text to numbers.

// serializeBlock renders a row-major block of display values.
func serializeBlock(block [][]value.Value) string {
	lines := make([]string, len(block))
	for i, row := range block {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = v.String()
		}
		lines[i] = strings.Join(cells, "\t")
	}
	return strings.Join(lines, "\n")
}

// parseBlock splits pasted text into rows of cell text. Windows line ends
// normalize; one trailing newline (the usual copy artifact) is dropped.
func parseBlock(text string) [][]string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	block := make([][]string, len(lines))
	for i, line := range lines {
		block[i] = strings.Split(line, "\t")
	}
	return block
}

// cellWrite is one planned paste or fill-down write after gating.
type cellWrite struct {
	rowIndex   int
	key        string
	val        value.Value
	isOverride bool
}
