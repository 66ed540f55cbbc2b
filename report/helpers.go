// Package report renders runtime diagnostics as plain text.
package report

import (
	"strings"

	"github.com/delaneyj/metal/metal"
)

func nameWidth(fields []metal.CounterField) int {
	width := 0
	for _, f := range fields {
		width = max(width, len(f.Name))
	}
	return width
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
