package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dnguyen/fintext/internal/anomaly"
	"github.com/dnguyen/fintext/internal/apperrors"
	"github.com/dnguyen/fintext/internal/cache"
	"github.com/dnguyen/fintext/internal/category"
	"github.com/dnguyen/fintext/internal/domain"
	"github.com/dnguyen/fintext/internal/llm"
	"github.com/dnguyen/fintext/internal/promptbuild"
	"github.com/dnguyen/fintext/internal/ruleparse"
)

// suggestionFloor is the minimum bayesian confidence before a learned
// category suggestion is written onto a draft.
const suggestionFloor = 0.5

// ParseRun is the audit record written per request.
type ParseRun struct {
	RunID       string
	UserID      string
	Method      string
	DraftCount  int
	QualityTier string
	InputLength int
	StartedAt   time.Time
	Duration    time.Duration
}

// AuditRecorder persists parse-run audit rows. Write failures are
// logged by the service and never escalated.
type AuditRecorder interface {
	RecordRun(ctx context.Context, run *ParseRun) error
}

// RawArchiver stores raw model output for degraded parses so they can
// be inspected later.
type RawArchiver interface {
	Archive(ctx context.Context, runID string, raw []byte) error
}

// Deps are the collaborators the parse service consumes but never
// constructs: all are built once at startup and injected.
type Deps struct {
	Scheduler *llm.Scheduler
	Client    llm.Client
	Prompts   *promptbuild.Builder
	Matcher   *category.Matcher
	Detector  *anomaly.Detector
	Cache     cache.Store   // optional
	Audit     AuditRecorder // optional
	Raw       RawArchiver   // optional

	Categories []domain.Category
	Wallets    []domain.Wallet

	Log zerolog.Logger
}

// Service orchestrates one parse request end to end: prompt, model
// call, recovery, enhancement, matching, anomaly checks.
type Service struct {
	deps  Deps
	chain *Chain
}

// NewService creates the parse service.
func NewService(deps Deps) *Service {
	return &Service{
		deps:  deps,
		chain: NewChain(deps.Log),
	}
}

func validate(req *domain.ParseRequest) error {
	if strings.TrimSpace(req.Text) == "" {
		return apperrors.New(apperrors.KindValidation, "text is required and must be non-empty")
	}
	return nil
}

// Parse handles a non-streaming request. With caching enabled, an
// identical input text returns the identical cached result.
func (s *Service) Parse(ctx context.Context, req *domain.ParseRequest) (*domain.ParseResult, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	useCache := s.deps.Cache != nil && !req.DisableCache
	key := cache.Key(req.Text)

	if useCache {
		if data, ok := s.deps.Cache.Get(key); ok {
			var cached domain.ParseResult
			if err := json.Unmarshal(data, &cached); err == nil {
				s.deps.Log.Debug().Str("cache_key", key).Msg("cache hit")
				return &cached, nil
			}
		}
	}

	prompt := s.deps.Prompts.BuildPrompt(req.Text, s.deps.Categories, s.deps.Wallets, "")

	var raw string
	err := s.deps.Scheduler.Schedule(ctx, func(apiKey string) error {
		text, cerr := s.deps.Client.Complete(ctx, apiKey, prompt)
		if cerr != nil {
			return cerr
		}
		raw = text
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := s.finish(ctx, req, raw, nil)

	if useCache {
		if data, merr := json.Marshal(result); merr == nil {
			s.deps.Cache.Set(key, data)
		}
	}
	return result, nil
}

// ParseStream handles a streaming request, pushing events to emit as
// the model produces output. A stream failure preserves everything
// already emitted: the error event is followed by a degraded final
// result recovered from whatever arrived before the cut.
func (s *Service) ParseStream(ctx context.Context, req *domain.ParseRequest, emit EmitFunc) {
	if err := validate(req); err != nil {
		emit(domain.ErrorEvent(string(apperrors.KindValidation), err.Error(), ""))
		return
	}

	emit(domain.StatusEvent("Analyzing your transaction text"))

	prompt := s.deps.Prompts.BuildPrompt(req.Text, s.deps.Categories, s.deps.Wallets, "")

	var stream llm.Stream
	err := s.deps.Scheduler.Schedule(ctx, func(apiKey string) error {
		st, cerr := s.deps.Client.CompleteStream(ctx, apiKey, prompt)
		if cerr != nil {
			return cerr
		}
		stream = st
		return nil
	})
	if err != nil {
		emit(domain.ErrorEvent(string(apperrors.KindOf(err)), "could not reach the language model", err.Error()))
		return
	}

	ingestor := NewIngestor(EstimateCount(req.Text), emit, s.deps.Log)

	for {
		if ctx.Err() != nil {
			// Consumer disconnected: stop pulling chunks, nothing to
			// roll back since nothing is persisted yet.
			return
		}
		chunk, rerr := stream.Recv()
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			s.deps.Log.Warn().Err(rerr).Int("emitted", ingestor.EmittedCount()).Msg("stream failed mid-flight")
			emit(domain.ErrorEvent("stream_failure",
				fmt.Sprintf("stream interrupted after %d transaction(s)", ingestor.EmittedCount()),
				truncateRunes(rerr.Error(), rawPrefixLimit)))

			// Already-emitted drafts survive the cut: recovery runs over
			// the partial buffer and ships as a degraded final.
			result := s.finish(ctx, req, ingestor.Buffer(), ingestor)
			result.Metadata.Issues = append(result.Metadata.Issues,
				fmt.Sprintf("stream interrupted after %d transaction(s), result recovered from partial output", ingestor.EmittedCount()))
			emit(domain.FinalEvent(*result))
			return
		}
		if chunk != "" {
			ingestor.Consume(chunk)
		}
	}

	result := s.finish(ctx, req, ingestor.Buffer(), ingestor)
	emit(domain.FinalEvent(*result))
}

// finish converges both paths: recovery over the full raw text, then
// the post-processing pipeline. ingestor is nil on the blocking path.
func (s *Service) finish(ctx context.Context, req *domain.ParseRequest, raw string, ingestor *Ingestor) *domain.ParseResult {
	started := time.Now()
	runID := uuid.NewString()

	result := s.chain.Recover(raw, req.Text)

	// Live extraction already surfaced these transactions; the chain
	// result may only replace them if it did at least as well, since
	// emitted events are never retracted.
	if ingestor != nil && len(result.Transactions) < ingestor.EmittedCount() {
		result.Transactions = ingestor.Drafts()
		result.Metadata.Recompute(result.Transactions)
		result.Metadata.Issues = append(result.Metadata.Issues,
			"kept live-streamed transactions over a smaller recovery result")
	}

	s.applyEstimator(result, req.Text)
	s.applyEnhancement(result)
	s.applyCategories(result)
	s.applyPreferences(result, req.UserPreferences)

	if s.deps.Detector != nil {
		s.deps.Detector.Check(ctx, req.UserID, result.Transactions)
	}

	s.record(ctx, req, result, runID, raw, started)
	return result
}

// applyEstimator re-runs rule extraction when the result under-shoots
// the input's own signal, and switches only when rules strictly
// outproduce the model.
func (s *Service) applyEstimator(result *domain.ParseResult, inputText string) {
	estimate := EstimateCount(inputText)
	if len(result.Transactions) >= estimate {
		return
	}

	alternative := ruleparse.Extract(inputText)
	if len(alternative) <= len(result.Transactions) {
		return
	}

	s.deps.Log.Info().
		Int("streamed", len(result.Transactions)).
		Int("estimate", estimate).
		Int("rule_based", len(alternative)).
		Msg("under-extraction detected, substituting rule-based result")

	result.Transactions = alternative
	result.Metadata.Recompute(result.Transactions)
	result.Metadata.Issues = append(result.Metadata.Issues,
		fmt.Sprintf("substituted rule-based extraction: model produced fewer than the estimated %d transaction(s)", estimate))
}

// applyEnhancement routes everything through the enhancer except a
// clean direct decode the model itself was confident about. A
// structured failure must keep its failed tier and a rule fallback its
// pinned depressed confidence; a recompute would overwrite both.
func (s *Service) applyEnhancement(result *domain.ParseResult) {
	switch result.Metadata.Method {
	case MethodFailed, MethodRuleFallback:
		return
	}
	if result.Metadata.Method == MethodDirect && result.Metadata.AverageConfidence >= DirectTrustThreshold {
		return
	}
	Enhancer{}.Enhance(result)
}

// applyCategories resolves suggested categories against the taxonomy
// and falls back to the learned suggester for uncategorized drafts.
func (s *Service) applyCategories(result *domain.ParseResult) {
	if s.deps.Matcher == nil {
		return
	}
	for i := range result.Transactions {
		d := &result.Transactions[i]
		if c, ok := s.deps.Matcher.Match(d.CategoryID, d.CategoryName); ok {
			d.CategoryID = c.ID
			d.CategoryName = c.Name
			continue
		}
		if d.CategoryID == "" && d.CategoryName == "" {
			if c, conf, ok := s.deps.Matcher.SuggestFromDescription(d.Description); ok && conf >= suggestionFloor {
				d.CategoryID = c.ID
				d.CategoryName = c.Name
			}
		}
	}
}

// applyPreferences fills draft fields the model left empty from the
// request's per-user defaults.
func (s *Service) applyPreferences(result *domain.ParseResult, prefs *domain.UserPreferences) {
	if prefs == nil || prefs.DefaultWalletID == "" {
		return
	}
	for i := range result.Transactions {
		if result.Transactions[i].WalletID == "" {
			result.Transactions[i].WalletID = prefs.DefaultWalletID
		}
	}
}

// record writes the audit row and archives raw output of degraded
// parses. Both are advisory and never fail the request.
func (s *Service) record(ctx context.Context, req *domain.ParseRequest, result *domain.ParseResult, runID, raw string, started time.Time) {
	if s.deps.Audit != nil {
		run := &ParseRun{
			RunID:       runID,
			UserID:      req.UserID,
			Method:      result.Metadata.Method,
			DraftCount:  len(result.Transactions),
			QualityTier: string(result.Metadata.QualityTier),
			InputLength: len(req.Text),
			StartedAt:   started,
			Duration:    time.Since(started),
		}
		if err := s.deps.Audit.RecordRun(ctx, run); err != nil {
			s.deps.Log.Warn().Err(err).Str("run_id", runID).Msg("audit write failed")
		}
	}

	if s.deps.Raw != nil && result.Metadata.Method != MethodDirect && raw != "" {
		if err := s.deps.Raw.Archive(ctx, runID, []byte(raw)); err != nil {
			s.deps.Log.Warn().Err(err).Str("run_id", runID).Msg("raw output archive failed")
		}
	}
}
