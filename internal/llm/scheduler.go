package llm

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/dnguyen/fintext/internal/apperrors"
)

// Scheduler serializes access to the completion providers: it enforces
// a global rate limit and concurrency ceiling, and rotates through the
// API key pool when a key hits its quota. Constructed once at startup
// and injected everywhere; the parsing core only depends on Schedule.
type Scheduler struct {
	limiter *rate.Limiter
	sem     chan struct{}
	log     zerolog.Logger

	mu   sync.Mutex
	keys []string
	idx  int
}

// NewScheduler builds a scheduler over the key pool. An empty pool is
// allowed at construction; Schedule then fails with a
// service-unavailable error at request time.
func NewScheduler(keys []string, requestsPerSecond float64, maxConcurrent int, log zerolog.Logger) *Scheduler {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Scheduler{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		sem:     make(chan struct{}, maxConcurrent),
		log:     log,
		keys:    keys,
	}
}

// Schedule waits for rate-limit and concurrency capacity, then runs fn
// with the current API key. On a rate-limit-shaped error it rotates to
// the next key and retries, at most once per key in the pool. Any other
// error fails the attempt immediately.
func (s *Scheduler) Schedule(ctx context.Context, fn func(apiKey string) error) error {
	if len(s.keys) == 0 {
		return apperrors.New(apperrors.KindServiceUnavailable, "no LLM API key configured")
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return apperrors.Wrap(apperrors.KindUpstreamFailure, err, "rate limiter wait")
	}

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return apperrors.Wrap(apperrors.KindUpstreamFailure, ctx.Err(), "waiting for LLM slot")
	}
	defer func() { <-s.sem }()

	var lastErr error
	for attempt := 0; attempt < len(s.keys); attempt++ {
		key := s.currentKey()
		err := fn(key)
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRateLimited(err) {
			return apperrors.Wrap(apperrors.KindUpstreamFailure, err, "LLM call failed")
		}

		s.log.Warn().Err(err).Int("attempt", attempt+1).Msg("API key rate limited, rotating")
		s.rotateKey()
	}

	return apperrors.Wrap(apperrors.KindUpstreamFailure, lastErr, "all API keys exhausted")
}

func (s *Scheduler) currentKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys[s.idx]
}

func (s *Scheduler) rotateKey() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idx = (s.idx + 1) % len(s.keys)
}

// isRateLimited matches the quota/429 error shapes the providers emit.
func isRateLimited(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "rate_limit") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "resource exhausted") ||
		strings.Contains(msg, "resource_exhausted")
}
