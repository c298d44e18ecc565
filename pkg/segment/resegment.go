package segment

import "github.com/storyweft/novelmap/pkg/common"

// Resegment re-runs the segmenter over the unanalyzed tail of a document
// after the target chunk size changed. Chunks before the analysis frontier
// (the first chunk without a completed analysis) are preserved untouched,
// including their ids, offsets, and analyses; the tail is re-split with the
// new target size and renumbered after the last preserved id.
//
// If every chunk is analyzed, or the list is empty, the existing chunks are
// returned unchanged. Callers must stop any active analysis run before
// resegmenting.
func Resegment(fullText string, existing []common.Chunk, newTargetSize int) ([]common.Chunk, error) {
	frontier := -1
	for i := range existing {
		if !existing[i].Analyzed() {
			frontier = i
			break
		}
	}
	if frontier < 0 {
		return existing, nil
	}

	preserved := make([]common.Chunk, frontier)
	copy(preserved, existing[:frontier])

	tailStart := 0
	nextID := 0
	if frontier > 0 {
		tailStart = preserved[frontier-1].EndIndex
		nextID = preserved[frontier-1].ID + 1
	}

	runes := []rune(fullText)
	if tailStart > len(runes) {
		tailStart = len(runes)
	}

	tail, err := Segment(string(runes[tailStart:]), newTargetSize)
	if err != nil {
		return nil, err
	}

	for i := range tail {
		tail[i].ID = nextID + i
		tail[i].StartIndex += tailStart
		tail[i].EndIndex += tailStart
	}

	return append(preserved, tail...), nil
}
