package cli

import (
	"strings"
	"unicode/utf8"
)

const (
	boxTopLeft     = "╒"
	boxTopRight    = "╕"
	boxBottomLeft  = "└"
	boxBottomRight = "┘"
	boxSide        = "│"
	boxTop         = "═"
	boxBottom      = "─"
	ellipsis       = "…"

	// DefaultWidth is the banner width when the caller has no preference.
	DefaultWidth = 48

	minWidth = 4
)

// Banner draws lines inside a box of the given outer width. Long lines are
// truncated with an ellipsis.
func Banner(width int, lines ...string) string {
	if len(lines) == 0 {
		return ""
	}

	width = max(width, minWidth)
	inner := width - 2

	parts := make([]string, 0, len(lines)+2)
	parts = append(parts, boxTopLeft+strings.Repeat(boxTop, inner)+boxTopRight)

	for _, l := range lines {
		parts = append(parts, boxSide+pad(l, inner)+boxSide)
	}

	parts = append(parts, boxBottomLeft+strings.Repeat(boxBottom, inner)+boxBottomRight)

	return strings.Join(parts, "\n") + "\n"
}

func pad(text string, width int) string {
	n := utf8.RuneCountInString(text)

	if n > width {
		runes := []rune(text)

		return string(runes[:width-1]) + ellipsis
	}

	return text + strings.Repeat(" ", width-n)
}
