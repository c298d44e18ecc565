package common

import "time"

// Chunk represents a contiguous, offset-addressed slice of a source document
// treated as one analysis unit. Chunks are produced by the segmenter, ordered
// by StartIndex, and carry dense ids 0..N-1 in document order.
//
// StartIndex and EndIndex are rune offsets into the original document text.
// Content is the trimmed text of the span; the offsets still reference the
// untrimmed slice boundaries.
type Chunk struct {
	ID         int             `json:"id"`
	Title      string          `json:"title"`
	Content    string          `json:"content"`
	StartIndex int             `json:"start_index"`
	EndIndex   int             `json:"end_index"`
	Analysis   *AnalysisResult `json:"analysis,omitempty"`
}

// Analyzed reports whether the chunk carries a completed analysis.
func (c *Chunk) Analyzed() bool {
	return c.Analysis != nil
}

// AnalysisResult is the structured output of analyzing one chunk. The Summary
// of chunk i becomes the prior-context input when analyzing chunk i+1.
type AnalysisResult struct {
	Summary         string           `json:"summary"`
	SentimentScore  float64          `json:"sentiment_score"`
	KeyCharacters   []Character      `json:"key_characters"`
	Relationships   []Relation       `json:"relationships"`
	PlotPoints      []string         `json:"plot_points"`
	ChapterOutlines []ChapterOutline `json:"chapter_outlines,omitempty"`
}

// Character is a named figure extracted from a chunk.
type Character struct {
	Name   string   `json:"name"`
	Role   string   `json:"role"`
	Traits []string `json:"traits"`
}

// Relation is a directed label between two character identity strings,
// scoped to the chunk it was extracted from.
type Relation struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	Relation string `json:"relation"`
}

// ChapterOutline is a per-sub-chapter summary produced by the outline
// controller.
type ChapterOutline struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// GraphNode is a character node in the global relationship graph. ID is the
// character name and doubles as the identity key. Value counts mentions: it
// is incremented every time the character appears in a merged relation.
type GraphNode struct {
	ID    string `json:"id"`
	Group int    `json:"group"`
	Value int    `json:"value"`
}

// GraphLink is an edge between two characters. Links are undirected for
// uniqueness purposes: (A,B) and (B,A) are the same edge.
type GraphLink struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label"`
}

// Graph is the cumulative, deduplicated character-relationship graph for one
// document, grown incrementally as chunk analyses complete. It is
// append/increment-only: nodes and links are never removed.
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Links []GraphLink `json:"links"`
}

// Settings holds the analysis configuration for a document. Changing
// ChunkSize on a document with unanalyzed chunks triggers resegmentation of
// the unprocessed tail.
type Settings struct {
	ChunkSize    int    `json:"chunk_size"`
	CustomPrompt string `json:"custom_prompt,omitempty"`
	Provider     string `json:"provider,omitempty"`
	Model        string `json:"model,omitempty"`
	MaxTokens    int    `json:"max_tokens,omitempty"`
}

// DefaultChunkSize is the target chunk size in runes when a document has no
// explicit setting.
const DefaultChunkSize = 30000

// Normalize fills zero-valued settings fields with defaults.
func (s Settings) Normalize() Settings {
	if s.ChunkSize <= 0 {
		s.ChunkSize = DefaultChunkSize
	}
	return s
}

// Document is the persisted unit of work: the full text split into chunks,
// the accumulated graph, and the settings the chunks were produced under.
type Document struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Text      string   `json:"text"`
	SourceKey string   `json:"source_key,omitempty"`
	Chunks    []Chunk  `json:"chunks"`
	Graph     Graph    `json:"graph"`
	Settings  Settings `json:"settings"`
}

// AnalyzedCount returns the number of chunks carrying a completed analysis.
func (d *Document) AnalyzedCount() int {
	count := 0
	for i := range d.Chunks {
		if d.Chunks[i].Analyzed() {
			count++
		}
	}
	return count
}

// DocumentMeta is the listing view of a document: everything the UI needs
// without the full text and chunk contents.
type DocumentMeta struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	TotalChars    int       `json:"total_chars"`
	ChunkCount    int       `json:"chunk_count"`
	AnalyzedCount int       `json:"analyzed_count"`
	ProgressIndex int       `json:"progress_index"`
	UpdatedAt     time.Time `json:"updated_at"`
}
