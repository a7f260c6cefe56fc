// Package ranking orchestrates the two-stage citation ranking cascade:
// feature extraction, Stage-1 recall filtering, LLM citation scoring for the
// recalled subset, Stage-2 precision scoring, and dense rank assignment.
package ranking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helixir/citation-ranker/internal/domain"
	"github.com/helixir/citation-ranker/internal/features"
	"github.com/helixir/citation-ranker/internal/model"
	"github.com/helixir/citation-ranker/internal/observability"
	"github.com/helixir/citation-ranker/internal/scorer"
)

// CitationScorer is the Stage-2 external scoring dependency. *scorer.Scorer
// satisfies it; tests substitute fakes.
type CitationScorer interface {
	Score(ctx context.Context, texts map[int]string) (map[int]domain.CitationScore, error)
}

// Config holds pipeline tunables.
type Config struct {
	// TopK is the number of recalled papers receiving a rank.
	TopK int
	// MaxTextChars is the character budget for scoring text.
	MaxTextChars int
}

// Pipeline runs the full ranking cascade over one finite batch. Stage 1 and
// feature extraction are synchronous CPU work; only the citation scorer is
// concurrent internally.
type Pipeline struct {
	bundle  *model.Bundle
	scorer  CitationScorer
	cfg     Config
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// New assembles a Pipeline from loaded model artifacts and a citation
// scorer. The metrics handle may be nil.
func New(bundle *model.Bundle, cs CitationScorer, cfg Config, logger zerolog.Logger, metrics *observability.Metrics) (*Pipeline, error) {
	if bundle == nil {
		return nil, fmt.Errorf("ranking: nil model bundle")
	}
	if cs == nil {
		return nil, fmt.Errorf("ranking: nil citation scorer")
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.MaxTextChars <= 0 {
		cfg.MaxTextChars = scorer.MaxTextChars
	}

	return &Pipeline{
		bundle:  bundle,
		scorer:  cs,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// Rank scores and ranks one batch. The returned slice is input-order
// preserving: results[i] belongs to batch[i].
//
// Every paper gets a Stage-1 probability; papers at or above the trained
// threshold are recalled and flow through citation scoring and Stage 2.
// Non-recalled papers skip Stage 2 entirely and keep a zero final score.
// Ranks form a dense 1..min(topK, recalled) permutation by final score
// descending. An empty recall set is a valid, degenerate outcome.
func (p *Pipeline) Rank(ctx context.Context, batch []domain.PaperRecord, topK int) ([]domain.ScoreResult, error) {
	if topK <= 0 {
		topK = p.cfg.TopK
	}

	runID := uuid.NewString()
	logger := observability.WithRunContext(p.logger, runID, len(batch))
	start := time.Now()

	if p.metrics != nil {
		p.metrics.RunsStarted.Inc()
	}
	results, err := p.rank(ctx, logger, batch, topK)
	if p.metrics != nil {
		p.metrics.RunDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			p.metrics.RunsFailed.Inc()
		} else {
			p.metrics.RunsCompleted.Inc()
		}
	}
	if err != nil {
		logger.Error().Err(err).Msg("ranking run failed")
		return nil, err
	}

	logger.Info().
		Dur("elapsed", time.Since(start)).
		Int("top_k", topK).
		Msg("ranking run complete")
	return results, nil
}

func (p *Pipeline) rank(ctx context.Context, logger zerolog.Logger, batch []domain.PaperRecord, topK int) ([]domain.ScoreResult, error) {
	// Offline features: pure, deterministic, never fails.
	fvs := p.timed("features", func() []features.FeatureVector {
		return features.Extract(batch)
	})

	// Stage 1: recall probabilities for the whole batch.
	results := make([]domain.ScoreResult, len(batch))
	recalledIdx := make([]int, 0, len(batch))
	stage1Start := time.Now()
	for i := range batch {
		prob, err := p.bundle.Recall.Predict(fvs[i])
		if err != nil {
			return nil, fmt.Errorf("stage1 for paper %s: %w", batch[i].ExternalID, err)
		}
		recalled := p.bundle.Recall.Recalled(prob)
		results[i] = domain.ScoreResult{
			ExternalID: batch[i].ExternalID,
			Stage1Prob: prob,
			Recalled:   recalled,
		}
		if recalled {
			recalledIdx = append(recalledIdx, i)
		}
	}
	p.observeStage("stage1", stage1Start)
	if p.metrics != nil {
		p.metrics.PapersProcessed.Add(float64(len(batch)))
		p.metrics.PapersRecalled.Add(float64(len(recalledIdx)))
	}

	logger.Info().
		Int("recalled", len(recalledIdx)).
		Float64("threshold", p.bundle.Recall.Threshold()).
		Msg("stage1 recall complete")

	if len(recalledIdx) == 0 {
		logger.Warn().Msg("no papers recalled, returning unranked results")
		return results, nil
	}

	// Stage 2a: external citation scoring for the recalled subset only.
	texts := make(map[int]string, len(recalledIdx))
	for _, i := range recalledIdx {
		texts[i] = scorer.BuildText(batch[i].Title, batch[i].Abstract, p.cfg.MaxTextChars)
	}

	scorerStart := time.Now()
	citations, err := p.scorer.Score(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("citation scoring: %w", err)
	}
	p.observeStage("scorer", scorerStart)

	// Stage 2b: precision probabilities fuse offline and citation signals.
	stage2Start := time.Now()
	for _, i := range recalledIdx {
		cs, ok := citations[i]
		if !ok {
			// The scorer resolves every requested index; a hole here means
			// a scorer bug, not a scoring failure.
			return nil, fmt.Errorf("citation scoring returned no result for paper %s", batch[i].ExternalID)
		}

		prob, err := p.bundle.Precision.Predict(fvs[i], cs)
		if err != nil {
			return nil, fmt.Errorf("stage2 for paper %s: %w", batch[i].ExternalID, err)
		}

		csCopy := cs
		probCopy := prob
		results[i].Stage2Prob = &probCopy
		results[i].FinalScore = prob
		results[i].Citation = &csCopy
	}
	p.observeStage("stage2", stage2Start)

	aggStart := time.Now()
	ranked := assignRanks(results, topK)
	p.observeStage("aggregate", aggStart)
	if p.metrics != nil {
		p.metrics.PapersRanked.Add(float64(ranked))
	}

	logger.Info().Int("ranked", ranked).Msg("rank assignment complete")
	return results, nil
}

func (p *Pipeline) timed(stage string, fn func() []features.FeatureVector) []features.FeatureVector {
	start := time.Now()
	out := fn()
	p.observeStage(stage, start)
	return out
}

func (p *Pipeline) observeStage(stage string, start time.Time) {
	if p.metrics != nil {
		p.metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}
