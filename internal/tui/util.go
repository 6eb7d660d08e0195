package tui

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// wrapLine breaks s into lines of at most width runes, splitting words only when a single word
// does not fit on a line of its own.
func wrapLine(s string, width int) []string {
	if width <= 0 {
		return []string{s}
	}
	var (
		lines   []string
		current []rune
	)
	for i, word := range strings.Split(s, " ") {
		runes := []rune(word)
		if i > 0 && len(current)+1+len(runes) <= width {
			current = append(append(current, ' '), runes...)
			continue
		}
		if i > 0 {
			lines = append(lines, string(current))
		}
		for len(runes) > width {
			lines = append(lines, string(runes[:width]))
			runes = runes[width:]
		}
		current = runes
	}
	return append(lines, string(current))
}

func wrapWithPrefix(s string, prefix string, width int) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		wrapped := wrapLine(line, width-utf8.RuneCountInString(prefix))
		for j, wline := range wrapped {
			wrapped[j] = prefix + wline
		}
		lines[i] = strings.Join(wrapped, "\n")
	}
	return strings.Join(lines, "\n")
}

func formatTokens(n int) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fk", float64(n)/1_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}
