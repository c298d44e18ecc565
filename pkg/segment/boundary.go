package segment

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Boundary marks a detected chapter header in raw text. Offset is the rune
// offset of the start of the header line; Title is the trimmed header line.
type Boundary struct {
	Offset int
	Title  string
}

// headerPattern matches a chapter header at the start of a line: a CJK
// chapter marker (第X章/卷/节/回/部/篇/集 with numeric or CJK numerals), an
// ASCII "Chapter N", or a literal prologue/interlude/epilogue token. The
// match consumes the rest of the line, so candidate matches never overlap.
var headerPattern = regexp.MustCompile(
	`(?m)^[ \t]*(?:第[0-9０-９一二三四五六七八九十百千万零两]+[章卷节回部篇集]|[Cc]hapter[ \t]+[0-9]+|序章|序言|楔子|引子|前言|尾声|终章|番外|[Pp]rologue|[Ii]nterlude|[Ee]pilogue)[^\n]*`,
)

// DetectBoundaries scans text for chapter headers and returns them in
// document order with rune offsets.
func DetectBoundaries(text string) []Boundary {
	matches := headerPattern.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return nil
	}

	boundaries := make([]Boundary, 0, len(matches))
	prevByte := 0
	prevRune := 0
	for _, m := range matches {
		runeOffset := prevRune + utf8.RuneCountInString(text[prevByte:m[0]])
		prevByte = m[0]
		prevRune = runeOffset

		boundaries = append(boundaries, Boundary{
			Offset: runeOffset,
			Title:  strings.TrimSpace(text[m[0]:m[1]]),
		})
	}

	return boundaries
}

// HasSufficientStructure reports whether the detected boundaries justify
// header-based segmentation. Documents longer than the target size with
// fewer than two boundaries are treated as headerless and fall back to pure
// length-based splitting.
func HasSufficientStructure(boundaries []Boundary, textLen, targetSize int) bool {
	if len(boundaries) >= 2 {
		return true
	}
	return textLen <= targetSize && len(boundaries) > 0
}
