// Package scorer implements Stage 2's external citation scoring: bounded
// concurrent LLM requests with per-item retry, a persistent content-addressed
// cache, and fail-soft defaults so a batch always resolves every item.
package scorer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/helixir/citation-ranker/internal/domain"
	"github.com/helixir/citation-ranker/internal/observability"
)

// Defaults for the scoring pass.
const (
	// DefaultConcurrency is the admission-gate weight: at most this many
	// provider requests are in flight at once.
	DefaultConcurrency = 12

	// DefaultMaxAttempts is the per-item attempt budget, after which the
	// item resolves to the fail-soft default.
	DefaultMaxAttempts = 6

	// DefaultProgressEvery controls the completion-count logging cadence.
	DefaultProgressEvery = 50

	// Backoff caps per attempt.
	maxTransientBackoff = 60 * time.Second
	maxSoftBackoff      = 30 * time.Second
)

// Config holds scoring-pass tunables.
type Config struct {
	// Concurrency bounds simultaneous in-flight provider requests.
	Concurrency int
	// MaxAttempts is the per-item retry budget.
	MaxAttempts int
	// MaxChars is the character budget applied to input text before hashing.
	MaxChars int
	// ProgressEvery is the completion-logging cadence.
	ProgressEvery int
}

// withDefaults fills zero fields with package defaults.
func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.MaxChars <= 0 {
		c.MaxChars = MaxTextChars
	}
	if c.ProgressEvery <= 0 {
		c.ProgressEvery = DefaultProgressEvery
	}
	return c
}

// Scorer orchestrates one citation scoring pass per recalled subset. It is
// safe for reuse across ranking invocations; the cache grows monotonically
// underneath it.
type Scorer struct {
	client  CompletionClient
	cache   *Cache
	cfg     Config
	logger  zerolog.Logger
	metrics *observability.Metrics

	// sleep and jitter are test seams: tests substitute instant sleeps and
	// deterministic jitter to exercise the retry ladder without real delays.
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() float64
}

// New creates a Scorer. The client must already hold a validated credential;
// a nil client is a programming error surfaced immediately rather than
// mid-batch. The metrics handle may be nil (e.g. in tests).
func New(client CompletionClient, cache *Cache, cfg Config, logger zerolog.Logger, metrics *observability.Metrics) (*Scorer, error) {
	if client == nil {
		return nil, errors.New("scorer: nil completion client")
	}
	if cache == nil {
		return nil, errors.New("scorer: nil cache")
	}

	return &Scorer{
		client:  client,
		cache:   cache,
		cfg:     cfg.withDefaults(),
		logger:  observability.WithScorerContext(logger, client.Provider(), client.Model()),
		metrics: metrics,
		sleep:   sleepCtx,
		jitter:  rand.Float64,
	}, nil
}

// scored is one resolved item flowing back from a worker.
type scored struct {
	idx   int
	key   string
	score domain.CitationScore
}

// Score resolves a citation score for every input text, keyed by the
// caller's local index.
//
// Items whose content hash is already in the cache are served without any
// provider call; the rest fan out under the concurrency gate and are
// collected in completion order. Each resolved item is appended to the
// persistent cache before it is merged into the returned mapping, so a crash
// mid-batch loses only unresolved work. Per-item failures never propagate:
// after the retry budget an item resolves to the all-zero low-tier default.
func (s *Scorer) Score(ctx context.Context, texts map[int]string) (map[int]domain.CitationScore, error) {
	cached, err := s.cache.Load()
	if err != nil {
		return nil, fmt.Errorf("scorer: load cache: %w", err)
	}

	results := make(map[int]domain.CitationScore, len(texts))

	type pendingItem struct {
		idx  int
		key  string
		text string
	}
	var pending []pendingItem
	for idx, raw := range texts {
		text := truncateText(raw, s.cfg.MaxChars)
		key := ContentHash(text)
		if value, ok := cached[key]; ok {
			results[idx] = value
			continue
		}
		pending = append(pending, pendingItem{idx: idx, key: key, text: text})
	}

	hits := len(results)
	s.logger.Info().
		Int("total", len(texts)).
		Int("cache_hits", hits).
		Int("to_score", len(pending)).
		Msg("citation scoring pass")
	if s.metrics != nil {
		s.metrics.CacheHits.Add(float64(hits))
		s.metrics.CacheMisses.Add(float64(len(pending)))
	}

	if len(pending) == 0 {
		return results, nil
	}

	sem := semaphore.NewWeighted(int64(s.cfg.Concurrency))
	completions := make(chan scored, len(pending))
	for _, item := range pending {
		go func(it pendingItem) {
			completions <- scored{idx: it.idx, key: it.key, score: s.scoreOne(ctx, sem, it.text)}
		}(item)
	}

	// Single-writer collection loop: cache appends and result merges are
	// serialized here, in completion order.
	for done := 1; done <= len(pending); done++ {
		res := <-completions
		if err := s.cache.Append(res.key, res.score); err != nil {
			// Losing a cache write costs a future re-score, not this batch.
			s.logger.Warn().Err(err).Str("key", res.key).Msg("cache append failed")
		}
		results[res.idx] = res.score

		if done%s.cfg.ProgressEvery == 0 || done == len(pending) {
			s.logger.Info().
				Int("done", done).
				Int("total", len(pending)).
				Msg("citation scoring progress")
		}
	}

	s.logger.Info().Int("scored", len(texts)).Msg("citation scoring complete")
	return results, nil
}

// scoreOne runs the per-item attempt ladder: acquire a permit, call the
// provider, parse and normalize. Rate-limit and connection/timeout failures
// back off steeply (2^attempt, capped); parse failures and other errors back
// off gently (1.5^attempt, capped). Exhaustion resolves to the zero default.
func (s *Scorer) scoreOne(ctx context.Context, sem *semaphore.Weighted, text string) domain.CitationScore {
	prompt := BuildPrompt(text)

	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		raw, err := s.complete(ctx, sem, prompt)
		if err == nil {
			score, parseErr := ParseResponse(raw)
			if parseErr == nil {
				return score
			}
			err = parseErr
		}

		kind := classifyFailure(err)
		if s.metrics != nil {
			s.metrics.ScorerRequestsFailed.WithLabelValues(s.client.Provider(), s.client.Model(), kind).Inc()
		}
		s.logger.Debug().
			Err(err).
			Int("attempt", attempt).
			Str("kind", kind).
			Msg("citation scoring attempt failed")

		if attempt == s.cfg.MaxAttempts {
			break
		}
		if s.metrics != nil {
			s.metrics.ScorerRetries.Inc()
		}

		var wait time.Duration
		switch kind {
		case failureRateLimited, failureTransient:
			wait = s.backoff(2, attempt, maxTransientBackoff)
		default:
			wait = s.backoff(1.5, attempt, maxSoftBackoff)
		}
		if s.sleep(ctx, wait) != nil {
			// Context gone; no point burning the remaining attempts.
			break
		}
	}

	if s.metrics != nil {
		s.metrics.ScorerExhausted.Inc()
	}
	s.logger.Warn().Msg("citation scoring attempts exhausted, using zero default")
	return domain.ZeroCitationScore()
}

// complete performs one provider call under the admission gate.
func (s *Scorer) complete(ctx context.Context, sem *semaphore.Weighted, prompt string) (string, error) {
	if err := sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("scorer: acquire permit: %w", err)
	}
	defer sem.Release(1)

	if s.metrics != nil {
		s.metrics.ScorerRequestsTotal.WithLabelValues(s.client.Provider(), s.client.Model()).Inc()
	}

	start := time.Now()
	raw, err := s.client.Complete(ctx, prompt)
	if s.metrics != nil {
		s.metrics.ScorerRequestDuration.
			WithLabelValues(s.client.Provider(), s.client.Model()).
			Observe(time.Since(start).Seconds())
	}
	return raw, err
}

// backoff computes base^attempt seconds plus [0,1) jitter, capped.
func (s *Scorer) backoff(base float64, attempt int, limit time.Duration) time.Duration {
	seconds := math.Pow(base, float64(attempt)) + s.jitter()
	d := time.Duration(seconds * float64(time.Second))
	if d > limit {
		return limit
	}
	return d
}

// Failure kinds for backoff selection and metrics labels.
const (
	failureRateLimited = "rate_limited"
	failureTransient   = "transient"
	failureParse       = "parse"
	failureOther       = "other"
)

// classifyFailure buckets an attempt error for backoff selection: provider
// rate limiting and connection/timeout errors warrant the steep ladder,
// everything else (parse failures, non-transient API errors) the gentle one.
func classifyFailure(err error) string {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		if provErr.IsRateLimited() {
			return failureRateLimited
		}
		if provErr.IsTransient() {
			return failureTransient
		}
		return failureOther
	}

	var pErr *parseError
	if errors.As(err, &pErr) {
		return failureParse
	}
	return failureOther
}

// truncateText enforces the character budget on scoring input. Hashing
// happens after truncation so the cache key is stable for any suffix noise
// beyond the budget.
func truncateText(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) > maxChars {
		return string(runes[:maxChars])
	}
	return s
}

// sleepCtx waits for d or until the context is canceled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
