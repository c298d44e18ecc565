package segment

import (
	"fmt"
	"strings"

	"github.com/storyweft/novelmap/pkg/common"
)

// frontMatterTitle labels a synthesized leading boundary when the first
// detected chapter header is not at offset 0 (prologue text with no header).
const frontMatterTitle = "Front Matter"

// newlineSnapRatio is the share of the size budget, at the tail of an
// oversized part, searched for a newline to break at instead of hard-cutting
// mid-sentence.
const newlineSnapRatio = 5 // last 1/5 == 20%

// Segment splits text into ordered, non-overlapping chunks covering the
// whole input, breaking at chapter headers where possible and never letting
// a chunk's span exceed targetSize runes. Chunk ids are assigned densely in
// emission order.
//
// Documents with fewer than two detected headers and more runes than
// targetSize are treated as headerless and split purely by length.
func Segment(text string, targetSize int) ([]common.Chunk, error) {
	if targetSize <= 0 {
		return nil, fmt.Errorf("segment: target size must be positive, got %d", targetSize)
	}

	runes := []rune(text)
	if len(strings.TrimSpace(text)) == 0 {
		return nil, nil
	}

	boundaries := DetectBoundaries(text)
	var chunks []common.Chunk
	if HasSufficientStructure(boundaries, len(runes), targetSize) {
		chunks = segmentByBoundaries(runes, boundaries, targetSize)
	} else {
		chunks = splitSpan(runes, 0, len(runes), targetSize, func(k int) string {
			return fmt.Sprintf("Segment %d", k)
		})
	}

	for i := range chunks {
		chunks[i].ID = i
	}
	return chunks, nil
}

func segmentByBoundaries(runes []rune, boundaries []Boundary, targetSize int) []common.Chunk {
	if boundaries[0].Offset != 0 {
		boundaries = append([]Boundary{{Offset: 0, Title: frontMatterTitle}}, boundaries...)
	}
	// End-of-text sentinel closes the last section.
	boundaries = append(boundaries, Boundary{Offset: len(runes)})

	var chunks []common.Chunk

	pendingStart := -1
	pendingEnd := -1
	pendingTitle := ""

	flushPending := func() {
		if pendingStart < 0 {
			return
		}
		chunks = append(chunks, flushSpan(runes, pendingStart, pendingEnd, pendingTitle, targetSize)...)
		pendingStart = -1
	}

	for i := 0; i < len(boundaries)-1; i++ {
		secStart := boundaries[i].Offset
		secEnd := boundaries[i+1].Offset
		secLen := secEnd - secStart

		switch {
		case secLen > targetSize:
			// An oversized chapter stands alone and gets split into parts.
			flushPending()
			chunks = append(chunks, flushSpan(runes, secStart, secEnd, boundaries[i].Title, targetSize)...)
		case pendingStart >= 0 && secEnd-pendingStart > targetSize:
			flushPending()
			pendingStart = secStart
			pendingEnd = secEnd
			pendingTitle = boundaries[i].Title
		case pendingStart < 0:
			pendingStart = secStart
			pendingEnd = secEnd
			pendingTitle = boundaries[i].Title
		default:
			// Chapter fits into the pending group; the group's title stays
			// the first chapter's title.
			pendingEnd = secEnd
		}
	}
	flushPending()

	return chunks
}

// flushSpan emits the span [start,end) as one chunk if it fits the budget,
// or as consecutive "<label> (Part k)" chunks otherwise.
func flushSpan(runes []rune, start, end int, label string, targetSize int) []common.Chunk {
	if end-start <= targetSize {
		c, ok := makeChunk(runes, start, end, label)
		if !ok {
			return nil
		}
		return []common.Chunk{c}
	}
	return splitSpan(runes, start, end, targetSize, func(k int) string {
		return fmt.Sprintf("%s (Part %d)", label, k)
	})
}

// splitSpan cuts [start,end) into consecutive parts of at most targetSize
// runes, preferring to break at the last newline within the final 20% of the
// budget. Part titles come from titleFor, numbered from 1.
func splitSpan(runes []rune, start, end, targetSize int, titleFor func(k int) string) []common.Chunk {
	var chunks []common.Chunk
	part := 1
	pos := start

	for pos < end {
		cut := pos + targetSize
		if cut >= end {
			cut = end
		} else {
			zoneStart := cut - targetSize/newlineSnapRatio
			if zoneStart < pos {
				zoneStart = pos
			}
			for i := cut - 1; i >= zoneStart; i-- {
				if runes[i] == '\n' {
					cut = i + 1
					break
				}
			}
		}

		if c, ok := makeChunk(runes, pos, cut, titleFor(part)); ok {
			chunks = append(chunks, c)
			part++
		}
		pos = cut
	}

	return chunks
}

// makeChunk builds a chunk for [start,end) with trimmed content. Offsets
// keep referencing the untrimmed slice. Spans that trim to nothing produce
// no chunk.
func makeChunk(runes []rune, start, end int, title string) (common.Chunk, bool) {
	content := strings.TrimSpace(string(runes[start:end]))
	if content == "" {
		return common.Chunk{}, false
	}
	return common.Chunk{
		Title:      title,
		Content:    content,
		StartIndex: start,
		EndIndex:   end,
	}, true
}
