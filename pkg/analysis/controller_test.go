package analysis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/storyweft/novelmap/pkg/common"
)

type fakeService struct {
	analyze   func(ctx context.Context, text string, settings common.Settings, priorSummary string) (*common.AnalysisResult, error)
	outline   func(ctx context.Context, text string, settings common.Settings) ([]common.ChapterOutline, error)
	summarize func(ctx context.Context, title, text string, settings common.Settings) (string, error)
}

func (f *fakeService) Analyze(ctx context.Context, text string, settings common.Settings, priorSummary string) (*common.AnalysisResult, error) {
	return f.analyze(ctx, text, settings, priorSummary)
}

func (f *fakeService) OutlineChunk(ctx context.Context, text string, settings common.Settings) ([]common.ChapterOutline, error) {
	return f.outline(ctx, text, settings)
}

func (f *fakeService) SummarizeSection(ctx context.Context, title, text string, settings common.Settings) (string, error) {
	return f.summarize(ctx, title, text, settings)
}

func testController(svc Service) *Controller {
	return NewController(NewControllerParams{
		Service:       svc,
		Pace:          time.Millisecond,
		RetryCooldown: time.Millisecond,
	})
}

func testDocument(chunks ...common.Chunk) *common.Document {
	return &common.Document{
		ID:     "doc-1",
		Title:  "Test Novel",
		Chunks: chunks,
	}
}

func noopPersist(ctx context.Context, doc *common.Document) error {
	return nil
}

func TestCanAnalyze(t *testing.T) {
	analyzed := common.Chunk{ID: 1, Analysis: &common.AnalysisResult{Summary: "done"}}
	pending := common.Chunk{ID: 2}

	tests := []struct {
		name     string
		chunks   []common.Chunk
		index    int
		expected bool
	}{
		{"first chunk always allowed", []common.Chunk{pending, pending}, 0, true},
		{"predecessor analyzed", []common.Chunk{analyzed, pending}, 1, true},
		{"predecessor not analyzed", []common.Chunk{pending, pending}, 1, false},
		{"index out of range", []common.Chunk{pending}, 5, false},
		{"negative index", []common.Chunk{pending}, -1, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := CanAnalyze(test.chunks, test.index); got != test.expected {
				t.Fatalf("expected %v, got %v", test.expected, got)
			}
		})
	}
}

func TestRunCarriesRollingSummary(t *testing.T) {
	var priors []string
	svc := &fakeService{
		analyze: func(ctx context.Context, text string, settings common.Settings, priorSummary string) (*common.AnalysisResult, error) {
			priors = append(priors, priorSummary)
			return &common.AnalysisResult{Summary: "summary of " + text}, nil
		},
	}

	doc := testDocument(
		common.Chunk{ID: 1, Title: "One", Content: "one"},
		common.Chunk{ID: 2, Title: "Two", Content: "two"},
		common.Chunk{ID: 3, Title: "Three", Content: "three"},
	)

	if err := testController(svc).Run(context.Background(), doc, noopPersist); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	expected := []string{"", "summary of one", "summary of two"}
	if len(priors) != len(expected) {
		t.Fatalf("expected %d calls, got %d", len(expected), len(priors))
	}
	for i, prior := range expected {
		if priors[i] != prior {
			t.Fatalf("call %d: expected prior %q, got %q", i, prior, priors[i])
		}
	}
	if doc.AnalyzedCount() != 3 {
		t.Fatalf("expected 3 analyzed chunks, got %d", doc.AnalyzedCount())
	}
}

func TestRunResumesFromFrontier(t *testing.T) {
	var texts []string
	var firstPrior string
	svc := &fakeService{
		analyze: func(ctx context.Context, text string, settings common.Settings, priorSummary string) (*common.AnalysisResult, error) {
			if len(texts) == 0 {
				firstPrior = priorSummary
			}
			texts = append(texts, text)
			return &common.AnalysisResult{Summary: "summary of " + text}, nil
		},
	}

	doc := testDocument(
		common.Chunk{ID: 1, Content: "one", Analysis: &common.AnalysisResult{Summary: "stored summary"}},
		common.Chunk{ID: 2, Content: "two"},
		common.Chunk{ID: 3, Content: "three"},
	)

	if err := testController(svc).Run(context.Background(), doc, noopPersist); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(texts) != 2 || texts[0] != "two" || texts[1] != "three" {
		t.Fatalf("expected resume at second chunk, got calls %v", texts)
	}
	if firstPrior != "stored summary" {
		t.Fatalf("expected prior seeded from stored analysis, got %q", firstPrior)
	}
}

func TestRunMergesRelationsAndPersists(t *testing.T) {
	svc := &fakeService{
		analyze: func(ctx context.Context, text string, settings common.Settings, priorSummary string) (*common.AnalysisResult, error) {
			return &common.AnalysisResult{
				Summary:       "s",
				Relationships: []common.Relation{{Source: "Alice", Target: "Bob", Relation: "friends"}},
			}, nil
		},
	}

	doc := testDocument(
		common.Chunk{ID: 1, Content: "one"},
		common.Chunk{ID: 2, Content: "two"},
	)

	persisted := 0
	persist := func(ctx context.Context, d *common.Document) error {
		persisted++
		return nil
	}

	if err := testController(svc).Run(context.Background(), doc, persist); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if persisted != 2 {
		t.Fatalf("expected 2 persist calls, got %d", persisted)
	}
	if len(doc.Graph.Nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(doc.Graph.Nodes))
	}
	if len(doc.Graph.Links) != 1 {
		t.Fatalf("expected 1 deduplicated link, got %d", len(doc.Graph.Links))
	}
	for _, node := range doc.Graph.Nodes {
		if node.Value != 2 {
			t.Fatalf("expected node %s mentioned twice, got value %d", node.ID, node.Value)
		}
	}
}

func TestRunRetriesOnceThenStops(t *testing.T) {
	calls := 0
	svc := &fakeService{
		analyze: func(ctx context.Context, text string, settings common.Settings, priorSummary string) (*common.AnalysisResult, error) {
			calls++
			return nil, errors.New("provider exploded")
		},
	}

	doc := testDocument(common.Chunk{ID: 1, Title: "第一章 序幕", Content: "one"})
	controller := testController(svc)

	err := controller.Run(context.Background(), doc, noopPersist)

	var failed *ChunkFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("expected ChunkFailedError, got %v", err)
	}
	if failed.Index != 0 || failed.Title != "第一章 序幕" {
		t.Fatalf("expected failure at chunk 0 (第一章 序幕), got %d (%s)", failed.Index, failed.Title)
	}
	if calls != 2 {
		t.Fatalf("expected exactly 2 attempts, got %d", calls)
	}
	if controller.State() != StateStopped {
		t.Fatalf("expected stopped state, got %v", controller.State())
	}
	if doc.Chunks[0].Analyzed() {
		t.Fatal("expected failing chunk to remain unanalyzed")
	}
}

func TestRunSecondAttemptSucceeds(t *testing.T) {
	calls := 0
	svc := &fakeService{
		analyze: func(ctx context.Context, text string, settings common.Settings, priorSummary string) (*common.AnalysisResult, error) {
			calls++
			if calls == 1 {
				return nil, errors.New("hiccup")
			}
			return &common.AnalysisResult{Summary: "recovered"}, nil
		},
	}

	doc := testDocument(common.Chunk{ID: 1, Content: "one"})
	controller := testController(svc)

	if err := controller.Run(context.Background(), doc, noopPersist); err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	if controller.State() != StateIdle {
		t.Fatalf("expected idle state after success, got %v", controller.State())
	}
	if !doc.Chunks[0].Analyzed() {
		t.Fatal("expected chunk analyzed after retry")
	}
}

func TestRunRejectsOverlap(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	svc := &fakeService{
		analyze: func(ctx context.Context, text string, settings common.Settings, priorSummary string) (*common.AnalysisResult, error) {
			close(started)
			<-release
			return &common.AnalysisResult{Summary: "s"}, nil
		},
	}

	controller := testController(svc)
	doc := testDocument(common.Chunk{ID: 1, Content: "one"})

	done := make(chan error, 1)
	go func() {
		done <- controller.Run(context.Background(), doc, noopPersist)
	}()

	<-started
	if err := controller.Run(context.Background(), doc, noopPersist); !errors.Is(err, ErrRunActive) {
		t.Fatalf("expected ErrRunActive, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("expected first run to finish cleanly, got %v", err)
	}
}

func TestStopCancelsBetweenChunks(t *testing.T) {
	var controller *Controller
	svc := &fakeService{
		analyze: func(ctx context.Context, text string, settings common.Settings, priorSummary string) (*common.AnalysisResult, error) {
			controller.Stop()
			return &common.AnalysisResult{Summary: "finished in flight"}, nil
		},
	}
	controller = testController(svc)

	doc := testDocument(
		common.Chunk{ID: 1, Content: "one"},
		common.Chunk{ID: 2, Content: "two"},
	)

	err := controller.Run(context.Background(), doc, noopPersist)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if !doc.Chunks[0].Analyzed() {
		t.Fatal("expected in-flight chunk to complete before cancellation took effect")
	}
	if doc.Chunks[1].Analyzed() {
		t.Fatal("expected second chunk untouched after stop")
	}
}

func TestRunRejectedWhileAnalyzeOneInFlight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	svc := &fakeService{
		analyze: func(ctx context.Context, text string, settings common.Settings, priorSummary string) (*common.AnalysisResult, error) {
			close(started)
			<-release
			return &common.AnalysisResult{Summary: "summary of one"}, nil
		},
	}
	controller := testController(svc)
	doc := testDocument(common.Chunk{ID: 0, Title: "第一章 序幕", Content: "正文"})

	done := make(chan error, 1)
	go func() {
		done <- controller.AnalyzeOne(context.Background(), doc, 0, noopPersist)
	}()

	<-started
	if err := controller.Run(context.Background(), doc, noopPersist); !errors.Is(err, ErrRunActive) {
		t.Fatalf("expected ErrRunActive while single-chunk analysis is in flight, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("expected single-chunk analysis to succeed, got %v", err)
	}

	if err := controller.Run(context.Background(), doc, noopPersist); err != nil {
		t.Fatalf("expected run to be accepted after single-chunk analysis finished, got %v", err)
	}
}

func TestAnalyzeOneSequentialLock(t *testing.T) {
	svc := &fakeService{
		analyze: func(ctx context.Context, text string, settings common.Settings, priorSummary string) (*common.AnalysisResult, error) {
			t.Fatal("service must not be called when the sequential lock rejects the chunk")
			return nil, nil
		},
	}

	doc := testDocument(
		common.Chunk{ID: 1, Content: "one"},
		common.Chunk{ID: 2, Content: "two"},
	)

	err := testController(svc).AnalyzeOne(context.Background(), doc, 1, noopPersist)
	if !errors.Is(err, ErrSequentialLock) {
		t.Fatalf("expected ErrSequentialLock, got %v", err)
	}
}

func TestAnalyzeOneSeedsPredecessorSummary(t *testing.T) {
	var gotPrior string
	svc := &fakeService{
		analyze: func(ctx context.Context, text string, settings common.Settings, priorSummary string) (*common.AnalysisResult, error) {
			gotPrior = priorSummary
			return &common.AnalysisResult{Summary: "s2"}, nil
		},
	}

	doc := testDocument(
		common.Chunk{ID: 1, Content: "one", Analysis: &common.AnalysisResult{Summary: "s1"}},
		common.Chunk{ID: 2, Content: "two"},
	)

	if err := testController(svc).AnalyzeOne(context.Background(), doc, 1, noopPersist); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if gotPrior != "s1" {
		t.Fatalf("expected prior %q, got %q", "s1", gotPrior)
	}
	if !doc.Chunks[1].Analyzed() {
		t.Fatal("expected chunk analyzed")
	}
}

func TestOutlineRunSkipsExistingOutlines(t *testing.T) {
	var outlined []string
	svc := &fakeService{
		outline: func(ctx context.Context, text string, settings common.Settings) ([]common.ChapterOutline, error) {
			outlined = append(outlined, text)
			return []common.ChapterOutline{{Title: "t", Summary: "s"}}, nil
		},
	}

	doc := testDocument(
		common.Chunk{ID: 1, Content: "one", Analysis: &common.AnalysisResult{
			Summary:         "s",
			ChapterOutlines: []common.ChapterOutline{{Title: "existing", Summary: "kept"}},
		}},
		common.Chunk{ID: 2, Content: "two"},
	)

	if err := NewOutlineController(svc).Run(context.Background(), doc, noopPersist); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(outlined) != 1 || outlined[0] != "two" {
		t.Fatalf("expected only the second chunk outlined, got %v", outlined)
	}
	if doc.Chunks[0].Analysis.ChapterOutlines[0].Title != "existing" {
		t.Fatal("expected existing outlines untouched")
	}
	if len(doc.Chunks[1].Analysis.ChapterOutlines) != 1 {
		t.Fatalf("expected 1 outline on second chunk, got %d", len(doc.Chunks[1].Analysis.ChapterOutlines))
	}
}

func TestOutlineRunSummarizesSectionsInOrder(t *testing.T) {
	svc := &fakeService{
		summarize: func(ctx context.Context, title, text string, settings common.Settings) (string, error) {
			return "summary of " + title, nil
		},
	}

	content := "第一章 出发\nbody one\n第二章 归来\nbody two\n第三章 重逢\nbody three\n"
	doc := testDocument(common.Chunk{ID: 1, Title: "第一章 出发", Content: content})

	if err := NewOutlineController(svc).Run(context.Background(), doc, noopPersist); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	outlines := doc.Chunks[0].Analysis.ChapterOutlines
	expected := []common.ChapterOutline{
		{Title: "第一章 出发", Summary: "summary of 第一章 出发"},
		{Title: "第二章 归来", Summary: "summary of 第二章 归来"},
		{Title: "第三章 重逢", Summary: "summary of 第三章 重逢"},
	}
	if len(outlines) != len(expected) {
		t.Fatalf("expected %d outlines, got %d", len(expected), len(outlines))
	}
	for i := range expected {
		if outlines[i] != expected[i] {
			t.Fatalf("outline %d: expected %+v, got %+v", i, expected[i], outlines[i])
		}
	}
}

func TestOutlineRunFailurePropagates(t *testing.T) {
	svc := &fakeService{
		outline: func(ctx context.Context, text string, settings common.Settings) ([]common.ChapterOutline, error) {
			return nil, fmt.Errorf("model unavailable")
		},
	}

	doc := testDocument(common.Chunk{ID: 1, Title: "Segment 1", Content: "plain text"})

	err := NewOutlineController(svc).Run(context.Background(), doc, noopPersist)
	var failed *ChunkFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("expected ChunkFailedError, got %v", err)
	}
	if failed.Index != 0 {
		t.Fatalf("expected failure at chunk 0, got %d", failed.Index)
	}
}
