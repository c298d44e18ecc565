package segment

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/storyweft/novelmap/pkg/common"
)

func TestDetectBoundaries(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected []Boundary
	}{
		{
			name: "cjk chapter headers",
			text: "第一章 起点\n正文内容\n第二章 终点\n更多内容\n",
			expected: []Boundary{
				{Offset: 0, Title: "第一章 起点"},
				{Offset: 12, Title: "第二章 终点"},
			},
		},
		{
			name: "ascii chapter headers",
			text: "Chapter 1\nbody\nchapter 2 The Return\nbody\n",
			expected: []Boundary{
				{Offset: 0, Title: "Chapter 1"},
				{Offset: 15, Title: "chapter 2 The Return"},
			},
		},
		{
			name: "prologue and epilogue literals",
			text: "序章\n开场\n第一章 出发\n正文\n尾声\n结束\n",
			expected: []Boundary{
				{Offset: 0, Title: "序章"},
				{Offset: 6, Title: "第一章 出发"},
				{Offset: 16, Title: "尾声"},
			},
		},
		{
			name:     "header marker mid line is ignored",
			text:     "他想起了第一章的内容\n没有别的标题\n",
			expected: nil,
		},
		{
			name: "indented header",
			text: "  第三章 重逢\n正文\n\t第四章 离别\n正文\n",
			expected: []Boundary{
				{Offset: 0, Title: "第三章 重逢"},
				{Offset: 12, Title: "第四章 离别"},
			},
		},
		{
			name:     "no headers",
			text:     "plain text without any markers\n",
			expected: nil,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := DetectBoundaries(test.text)
			if len(got) != len(test.expected) {
				t.Fatalf("expected %d boundaries, got %d (%v)", len(test.expected), len(got), got)
			}
			for i := range test.expected {
				if got[i] != test.expected[i] {
					t.Fatalf("boundary %d: expected %+v, got %+v", i, test.expected[i], got[i])
				}
			}
		})
	}
}

func TestHasSufficientStructure(t *testing.T) {
	tests := []struct {
		name       string
		boundaries int
		textLen    int
		targetSize int
		expected   bool
	}{
		{"two boundaries", 2, 100000, 30000, true},
		{"many boundaries", 10, 100000, 30000, true},
		{"one boundary short text", 1, 20000, 30000, true},
		{"one boundary long text", 1, 100000, 30000, false},
		{"no boundaries short text", 0, 100, 30000, false},
		{"no boundaries long text", 0, 100000, 30000, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			boundaries := make([]Boundary, test.boundaries)
			if got := HasSufficientStructure(boundaries, test.textLen, test.targetSize); got != test.expected {
				t.Fatalf("expected %v, got %v", test.expected, got)
			}
		})
	}
}

// assertCoverage checks chunks are ordered, contiguous, within budget, and
// cover the full rune length of the text.
func assertCoverage(t *testing.T, chunks []common.Chunk, textLen, targetSize int) {
	t.Helper()
	if len(chunks) == 0 {
		t.Fatal("expected chunks, got none")
	}
	if chunks[0].StartIndex != 0 {
		t.Fatalf("expected first chunk at offset 0, got %d", chunks[0].StartIndex)
	}
	for i, chunk := range chunks {
		if chunk.ID != i {
			t.Fatalf("chunk %d: expected dense id %d, got %d", i, i, chunk.ID)
		}
		if span := chunk.EndIndex - chunk.StartIndex; span > targetSize {
			t.Fatalf("chunk %d: span %d exceeds target %d", i, span, targetSize)
		}
		if i > 0 && chunk.StartIndex != chunks[i-1].EndIndex {
			t.Fatalf("chunk %d: expected start %d, got %d", i, chunks[i-1].EndIndex, chunk.StartIndex)
		}
	}
	if last := chunks[len(chunks)-1].EndIndex; last != textLen {
		t.Fatalf("expected coverage up to %d, got %d", textLen, last)
	}
}

func TestSegmentRejectsInvalidTarget(t *testing.T) {
	if _, err := Segment("text", 0); err == nil {
		t.Fatal("expected error for zero target size")
	}
	if _, err := Segment("text", -5); err == nil {
		t.Fatal("expected error for negative target size")
	}
}

func TestSegmentAcceptsNormalizedDefaultSettings(t *testing.T) {
	settings := common.Settings{}.Normalize()

	chunks, err := Segment("第一章 开始\n正文。\n", settings.ChunkSize)
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Title != "第一章 开始" {
		t.Fatalf("expected chapter title, got %q", chunks[0].Title)
	}
}

func TestSegmentBlankInput(t *testing.T) {
	for _, text := range []string{"", "   \n\t\n  "} {
		chunks, err := Segment(text, 30000)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if chunks != nil {
			t.Fatalf("expected no chunks for blank input, got %d", len(chunks))
		}
	}
}

func TestSegmentGroupsSmallChapters(t *testing.T) {
	chapter := func(header string) string {
		return header + "\n" + strings.Repeat("字", 1000-utf8.RuneCountInString(header)-2) + "\n"
	}
	text := chapter("第一章") + chapter("第二章") + chapter("第三章")

	chunks, err := Segment(text, 2500)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	assertCoverage(t, chunks, 3000, 2500)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Title != "第一章" {
		t.Fatalf("expected group titled by first chapter, got %q", chunks[0].Title)
	}
	if chunks[0].EndIndex != 2000 {
		t.Fatalf("expected first group to span two chapters, got end %d", chunks[0].EndIndex)
	}
	if chunks[1].Title != "第三章" {
		t.Fatalf("expected second chunk titled 第三章, got %q", chunks[1].Title)
	}
}

func TestSegmentSplitsOversizedChapter(t *testing.T) {
	// 第一章 spans 40007 runes against a 30000 budget; 第二章 fits on its own.
	text := "第一章 起点\n" +
		strings.Repeat(strings.Repeat("字", 99)+"\n", 400) +
		"第二章 终点\n" +
		strings.Repeat("字", 5000)
	textLen := utf8.RuneCountInString(text)

	chunks, err := Segment(text, 30000)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	assertCoverage(t, chunks, textLen, 30000)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}

	expectedTitles := []string{"第一章 起点 (Part 1)", "第一章 起点 (Part 2)", "第二章 终点"}
	for i, title := range expectedTitles {
		if chunks[i].Title != title {
			t.Fatalf("chunk %d: expected title %q, got %q", i, title, chunks[i].Title)
		}
	}

	// Part cuts snap to a newline inside the final fifth of the budget.
	runes := []rune(text)
	if runes[chunks[0].EndIndex-1] != '\n' {
		t.Fatalf("expected part cut after a newline, got %q", runes[chunks[0].EndIndex-1])
	}
}

func TestSegmentHeaderlessFallback(t *testing.T) {
	text := strings.Repeat("abcd\n", 10)

	chunks, err := Segment(text, 20)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	assertCoverage(t, chunks, 50, 20)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		expected := "Segment " + string(rune('1'+i))
		if chunk.Title != expected {
			t.Fatalf("chunk %d: expected title %q, got %q", i, expected, chunk.Title)
		}
	}
}

func TestSegmentSingleHeaderShortText(t *testing.T) {
	text := "第一章 启程\n很短的正文。\n"

	chunks, err := Segment(text, 30000)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Title != "第一章 启程" {
		t.Fatalf("expected chapter title, got %q", chunks[0].Title)
	}
}

func TestSegmentFrontMatter(t *testing.T) {
	text := "这本书的简介。\n第一章 开始\n正文。\n第二章 继续\n正文。\n"

	chunks, err := Segment(text, 30000)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected a single grouped chunk, got %d", len(chunks))
	}
	if chunks[0].Title != "Front Matter" {
		t.Fatalf("expected front matter title on leading group, got %q", chunks[0].Title)
	}
	if chunks[0].StartIndex != 0 {
		t.Fatalf("expected coverage from offset 0, got %d", chunks[0].StartIndex)
	}
}

func TestSegmentTrimsContentKeepsOffsets(t *testing.T) {
	text := "第一章 甲\n\n正文甲。\n\n\n第二章 乙\n\n正文乙。\n"
	textLen := utf8.RuneCountInString(text)

	chunks, err := Segment(text, 12)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	for _, chunk := range chunks {
		if strings.TrimSpace(chunk.Content) != chunk.Content {
			t.Fatalf("expected trimmed content, got %q", chunk.Content)
		}
	}
	if chunks[1].EndIndex != textLen {
		t.Fatalf("expected untrimmed end offset %d, got %d", textLen, chunks[1].EndIndex)
	}
}

func TestResegmentAllAnalyzedIsNoOp(t *testing.T) {
	existing := []common.Chunk{
		{ID: 0, Content: "a", EndIndex: 5, Analysis: &common.AnalysisResult{Summary: "s"}},
		{ID: 1, Content: "b", StartIndex: 5, EndIndex: 9, Analysis: &common.AnalysisResult{Summary: "s"}},
	}

	got, err := Resegment("whatever", existing, 3)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(got) != 2 || got[0].ID != 0 || got[1].ID != 1 {
		t.Fatalf("expected existing chunks unchanged, got %+v", got)
	}
}

func TestResegmentPreservesAnalyzedPrefix(t *testing.T) {
	text := "第一章 甲\n" + strings.Repeat("字", 100) + "\n" +
		"第二章 乙\n" + strings.Repeat("字", 100) + "\n" +
		"第三章 丙\n" + strings.Repeat("字", 100) + "\n"
	textLen := utf8.RuneCountInString(text)

	existing, err := Segment(text, 110)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(existing) != 3 {
		t.Fatalf("expected 3 initial chunks, got %d", len(existing))
	}
	existing[0].Analysis = &common.AnalysisResult{Summary: "first chapter summary"}

	got, err := Resegment(text, existing, 100000)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected preserved chunk plus one merged tail chunk, got %d", len(got))
	}
	if got[0].ID != 0 || got[0].Analysis == nil || got[0].Analysis.Summary != "first chapter summary" {
		t.Fatalf("expected analyzed prefix preserved, got %+v", got[0])
	}
	if got[1].ID != 1 {
		t.Fatalf("expected tail renumbered from 1, got %d", got[1].ID)
	}
	if got[1].StartIndex != got[0].EndIndex {
		t.Fatalf("expected tail to start at %d, got %d", got[0].EndIndex, got[1].StartIndex)
	}
	if got[1].EndIndex != textLen {
		t.Fatalf("expected tail to cover up to %d, got %d", textLen, got[1].EndIndex)
	}
	if got[1].Title != "第二章 乙" {
		t.Fatalf("expected tail titled by its first chapter, got %q", got[1].Title)
	}
	if got[1].Analysis != nil {
		t.Fatal("expected re-segmented tail to carry no analysis")
	}
}

func TestResegmentNoAnalysisResegmentsAll(t *testing.T) {
	text := "第一章 甲\n" + strings.Repeat("字", 50) + "\n第二章 乙\n" + strings.Repeat("字", 50) + "\n"

	existing, err := Segment(text, 60)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	got, err := Resegment(text, existing, 100000)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected full re-segmentation into one chunk, got %d", len(got))
	}
	if got[0].ID != 0 || got[0].StartIndex != 0 {
		t.Fatalf("expected renumbering from zero, got %+v", got[0])
	}
}
