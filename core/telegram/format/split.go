package format

import (
	"strings"
	"unicode/utf16"
)

// MaxMessageUnits leaves headroom under the 4096 character Bot API limit
// for the part prefix. Telegram counts characters in UTF-16 code units.
const MaxMessageUnits = 4000

// Units returns the length of s in UTF-16 code units.
func Units(s string) int {
	n := 0
	for _, r := range s {
		n += runeUnits(r)
	}
	return n
}

func runeUnits(r rune) int {
	if n := utf16.RuneLen(r); n > 0 {
		return n
	}
	// invalid UTF-8 decodes to U+FFFD
	return 1
}

// Split breaks text into chunks of at most max UTF-16 units, cutting on
// line boundaries. A single line longer than max is cut between runes.
// Text that already fits is returned as a single chunk.
func Split(text string, max int) []string {
	if max <= 0 {
		max = MaxMessageUnits
	}
	if Units(text) <= max {
		return []string{text}
	}

	var (
		parts   []string
		current strings.Builder
		size    int
	)
	flush := func() {
		if size > 0 {
			parts = append(parts, current.String())
			current.Reset()
			size = 0
		}
	}

	for _, line := range strings.Split(text, "\n") {
		n := Units(line)
		if n > max {
			flush()
			parts = append(parts, hardSplit(line, max)...)
			continue
		}
		sep := 0
		if size > 0 {
			sep = 1
		}
		if size+sep+n > max {
			flush()
			sep = 0
		}
		if sep == 1 {
			current.WriteByte('\n')
		}
		current.WriteString(line)
		size += sep + n
	}
	flush()
	return parts
}

// hardSplit never separates the two halves of a surrogate pair.
func hardSplit(line string, max int) []string {
	var (
		out   []string
		start int
		size  int
	)
	for i, r := range line {
		n := runeUnits(r)
		if size+n > max && size > 0 {
			out = append(out, line[start:i])
			start, size = i, 0
		}
		size += n
	}
	if start < len(line) {
		out = append(out, line[start:])
	}
	return out
}
