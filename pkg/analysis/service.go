package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/storyweft/novelmap/internal/util"
	"github.com/storyweft/novelmap/pkg/ai"
	"github.com/storyweft/novelmap/pkg/common"
)

// Service is the external analysis collaborator: it maps chunk text plus the
// rolling prior-context summary to a structured analysis result. Failures
// are classified at the ai boundary (ai.ServiceError); transient ones are
// retried internally with exponential backoff before surfacing.
type Service interface {
	Analyze(ctx context.Context, text string, settings common.Settings, priorSummary string) (*common.AnalysisResult, error)
	OutlineChunk(ctx context.Context, text string, settings common.Settings) ([]common.ChapterOutline, error)
	SummarizeSection(ctx context.Context, title, text string, settings common.Settings) (string, error)
}

// maxPriorSummaryRunes caps the rolling summary carried between chunks so
// the context block cannot grow without bound over a long novel.
const maxPriorSummaryRunes = 8000

// AIService implements Service on top of an ai.NovelAIClient.
type AIService struct {
	client    ai.NovelAIClient
	maxTries  int
	baseDelay time.Duration
}

// NewAIServiceParams configures NewAIService. Zero values fall back to
// 5 attempts with a 2s base delay.
type NewAIServiceParams struct {
	Client    ai.NovelAIClient
	MaxTries  int
	BaseDelay time.Duration
}

// NewAIService creates an analysis service backed by the given AI client.
func NewAIService(params NewAIServiceParams) *AIService {
	maxTries := params.MaxTries
	if maxTries <= 0 {
		maxTries = 5
	}
	baseDelay := params.BaseDelay
	if baseDelay <= 0 {
		baseDelay = 2 * time.Second
	}
	return &AIService{
		client:    params.Client,
		maxTries:  maxTries,
		baseDelay: baseDelay,
	}
}

func (s *AIService) systemPrompts(settings common.Settings, priorSummary string) []string {
	context := priorSummary
	if context == "" {
		context = ai.AnalyzePromptNoContext
	} else {
		context = util.TruncateRunes(context, maxPriorSummaryRunes)
	}

	prompts := []string{fmt.Sprintf(ai.AnalyzePromptText, context)}
	if settings.CustomPrompt != "" {
		prompts = append(prompts, ai.CustomPromptHeader+"\n"+settings.CustomPrompt)
	}
	return prompts
}

func (s *AIService) generateOpts(settings common.Settings, prompts []string) []ai.GenerateOption {
	opts := []ai.GenerateOption{ai.WithSystemPrompts(prompts...)}
	if settings.Model != "" {
		opts = append(opts, ai.WithModel(settings.Model))
	}
	if settings.MaxTokens > 0 {
		opts = append(opts, ai.WithMaxTokens(settings.MaxTokens))
	}
	return opts
}

// Analyze runs the structured per-chunk analysis, retrying transient
// provider failures with exponential backoff.
func (s *AIService) Analyze(
	ctx context.Context,
	text string,
	settings common.Settings,
	priorSummary string,
) (*common.AnalysisResult, error) {
	opts := s.generateOpts(settings, s.systemPrompts(settings, priorSummary))

	return util.RetryBackoff(ctx, util.BackoffOptions{
		MaxTries:  s.maxTries,
		BaseDelay: s.baseDelay,
		Retryable: ai.IsTransient,
	}, func(ctx context.Context) (*common.AnalysisResult, error) {
		var res common.AnalysisResult
		err := s.client.GenerateCompletionWithFormat(
			ctx,
			"analyze_segment",
			"Analyze one segment of a novel: summary, sentiment, characters, relationships, plot points.",
			text,
			&res,
			opts...,
		)
		if err != nil {
			return nil, err
		}
		return &res, nil
	})
}

// OutlineChunk asks the model for sub-chapter outlines of one chunk in a
// single call. Truncated array responses are repaired leniently before
// parsing; this leniency exists only on the outline path.
func (s *AIService) OutlineChunk(
	ctx context.Context,
	text string,
	settings common.Settings,
) ([]common.ChapterOutline, error) {
	opts := append(s.generateOpts(settings, []string{ai.OutlinePromptText}), ai.ForOutline())

	return util.RetryBackoff(ctx, util.BackoffOptions{
		MaxTries:  s.maxTries,
		BaseDelay: s.baseDelay,
		Retryable: ai.IsTransient,
	}, func(ctx context.Context) ([]common.ChapterOutline, error) {
		raw, err := s.client.GenerateCompletion(ctx, text, opts...)
		if err != nil {
			return nil, err
		}

		var outlines []common.ChapterOutline
		if err := ai.UnmarshalFlexible(raw, &outlines); err == nil {
			return outlines, nil
		}
		repaired := ai.RepairTruncatedArray(raw)
		if err := ai.UnmarshalFlexible(repaired, &outlines); err != nil {
			return nil, err
		}
		return outlines, nil
	})
}

// SummarizeSection produces a short summary of one sub-chapter, used when a
// chunk's internal chapter boundaries are known and sections are summarized
// individually.
func (s *AIService) SummarizeSection(
	ctx context.Context,
	title, text string,
	settings common.Settings,
) (string, error) {
	prompt := fmt.Sprintf("Chapter: %s\n\n%s\n\nSummarize this chapter in two to four sentences. Respond with the summary only.", title, text)
	opts := append(s.generateOpts(settings, nil), ai.ForOutline())

	return util.RetryBackoff(ctx, util.BackoffOptions{
		MaxTries:  s.maxTries,
		BaseDelay: s.baseDelay,
		Retryable: ai.IsTransient,
	}, func(ctx context.Context) (string, error) {
		return s.client.GenerateCompletion(ctx, prompt, opts...)
	})
}
