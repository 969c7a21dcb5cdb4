// Package strescape escapes strings obtained from devices and drivers before
// they are displayed.
package strescape

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Nick returns s escaped from chars that don't belong in a single line
// label, such as a USB product string.
func Nick(s string) string {
	return strings.Map(func(r rune) rune {
		if !strconv.IsPrint(r) {
			return -1
		}
		if r == utf8.RuneError {
			return -1
		}
		return r
	}, s)
}

// Content returns s escaped from chars that don't belong in displayed text,
// such as device names reported by drivers.
func Content(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return r
		}
		if !strconv.IsGraphic(r) {
			return -1
		}
		if r == utf8.RuneError {
			return -1
		}
		return r
	}, s)
}
