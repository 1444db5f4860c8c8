package office

import (
	"strings"
	"unicode/utf16"
)

// minRunLength is the shortest run of printable characters kept from a
// binary container.
const minRunLength = 5

// ScanBinary pattern-scans a legacy OLE container for printable ASCII and
// UTF-16LE text runs. Later duplicates are dropped.
func ScanBinary(data []byte) string {
	seen := make(map[string]bool)
	var lines []string

	add := func(run string) {
		run = strings.Join(strings.Fields(run), " ")
		if len(run) < minRunLength || !hasLetters(run) || seen[run] {
			return
		}
		seen[run] = true
		lines = append(lines, run)
	}

	for _, run := range utf16Runs(data) {
		add(run)
	}
	for _, run := range asciiRuns(data) {
		add(run)
	}

	return strings.Join(lines, "\n")
}

func asciiRuns(data []byte) []string {
	var (
		runs []string
		cur  []byte
	)
	for _, c := range data {
		if isPrintable(rune(c)) {
			cur = append(cur, c)
			continue
		}
		if len(cur) >= minRunLength {
			runs = append(runs, string(cur))
		}
		cur = cur[:0]
	}
	if len(cur) >= minRunLength {
		runs = append(runs, string(cur))
	}
	return runs
}

func utf16Runs(data []byte) []string {
	var runs []string
	for offset := 0; offset < 2; offset++ {
		var cur []uint16
		emit := func() {
			if len(cur) >= minRunLength {
				runs = append(runs, string(utf16.Decode(cur)))
			}
			cur = cur[:0]
		}
		for i := offset; i+1 < len(data); i += 2 {
			u := uint16(data[i]) | uint16(data[i+1])<<8
			if isPrintable(rune(u)) || isPrintableWide(rune(u)) {
				cur = append(cur, u)
				continue
			}
			emit()
		}
		emit()
	}
	return runs
}

func isPrintable(r rune) bool {
	return r == '\t' || (r >= 0x20 && r < 0x7f)
}

func isPrintableWide(r rune) bool {
	// Latin-1 supplement through Latin extended, plus general punctuation.
	return (r >= 0xa0 && r <= 0x24f) || (r >= 0x2010 && r <= 0x2027)
}

func hasLetters(s string) bool {
	letters := 0
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			letters++
		}
	}
	return letters*2 >= len(s)
}
