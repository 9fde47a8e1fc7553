package parser

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnguyen/fintext/internal/apperrors"
	"github.com/dnguyen/fintext/internal/cache"
	"github.com/dnguyen/fintext/internal/domain"
	"github.com/dnguyen/fintext/internal/llm"
	"github.com/dnguyen/fintext/internal/promptbuild"
)

const goodResponse = `{"transactions": [` +
	`{"type": "expense", "amount": 30000, "description": "ăn phở", "confidence": 0.9}, ` +
	`{"type": "expense", "amount": 25000, "description": "grab", "confidence": 0.9}], ` +
	`"summary": "2 expenses"}`

type fakeStream struct {
	chunks   []string
	i        int
	failWith error
}

func (s *fakeStream) Recv() (string, error) {
	if s.i < len(s.chunks) {
		c := s.chunks[s.i]
		s.i++
		return c, nil
	}
	if s.failWith != nil {
		return "", s.failWith
	}
	return "", io.EOF
}

type fakeClient struct {
	response    string
	chunks      []string
	streamErr   error
	completeErr error
	calls       int
}

func (c *fakeClient) Complete(_ context.Context, _, _ string) (string, error) {
	c.calls++
	if c.completeErr != nil {
		return "", c.completeErr
	}
	return c.response, nil
}

func (c *fakeClient) CompleteStream(_ context.Context, _, _ string) (llm.Stream, error) {
	c.calls++
	return &fakeStream{chunks: c.chunks, failWith: c.streamErr}, nil
}

type fakeAudit struct {
	runs []*ParseRun
}

func (a *fakeAudit) RecordRun(_ context.Context, run *ParseRun) error {
	a.runs = append(a.runs, run)
	return nil
}

type fakeArchive struct {
	archived map[string][]byte
}

func (a *fakeArchive) Archive(_ context.Context, runID string, raw []byte) error {
	if a.archived == nil {
		a.archived = map[string][]byte{}
	}
	a.archived[runID] = raw
	return nil
}

func newTestService(client llm.Client, store cache.Store, audit AuditRecorder, raw RawArchiver) *Service {
	return NewService(Deps{
		Scheduler: llm.NewScheduler([]string{"test-key"}, 100, 4, zerolog.Nop()),
		Client:    client,
		Prompts:   promptbuild.NewBuilder(),
		Cache:     store,
		Audit:     audit,
		Raw:       raw,
		Log:       zerolog.Nop(),
	})
}

func TestParse_EmptyTextRejected(t *testing.T) {
	svc := newTestService(&fakeClient{}, nil, nil, nil)

	_, err := svc.Parse(context.Background(), &domain.ParseRequest{Text: "   "})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
}

func TestParse_DirectSuccess(t *testing.T) {
	client := &fakeClient{response: goodResponse}
	audit := &fakeAudit{}
	svc := newTestService(client, nil, audit, nil)

	result, err := svc.Parse(context.Background(), &domain.ParseRequest{Text: "ăn phở 30k, grab 25k", UserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, MethodDirect, result.Metadata.Method)
	require.Len(t, result.Transactions, 2)
	// A trusted direct decode keeps the model's own confidences.
	assert.Equal(t, 0.9, result.Transactions[0].Confidence)

	require.Len(t, audit.runs, 1)
	assert.Equal(t, "u1", audit.runs[0].UserID)
	assert.Equal(t, MethodDirect, audit.runs[0].Method)
	assert.Equal(t, 2, audit.runs[0].DraftCount)
}

func TestParse_CacheHitSkipsModel(t *testing.T) {
	client := &fakeClient{response: goodResponse}
	svc := newTestService(client, cache.NewMemory(), nil, nil)
	req := &domain.ParseRequest{Text: "ăn phở 30k, grab 25k"}

	first, err := svc.Parse(context.Background(), req)
	require.NoError(t, err)
	second, err := svc.Parse(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 1, client.calls)
	assert.Equal(t, first.Metadata.Method, second.Metadata.Method)
	assert.Equal(t, len(first.Transactions), len(second.Transactions))
}

func TestParse_DisableCacheBypassesStore(t *testing.T) {
	client := &fakeClient{response: goodResponse}
	svc := newTestService(client, cache.NewMemory(), nil, nil)
	req := &domain.ParseRequest{Text: "ăn phở 30k, grab 25k", DisableCache: true}

	_, err := svc.Parse(context.Background(), req)
	require.NoError(t, err)
	_, err = svc.Parse(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 2, client.calls)
}

func TestParse_UnderExtractionSubstitutesRules(t *testing.T) {
	// The model found one of two transactions; the estimator notices and
	// the rule extraction takes over.
	client := &fakeClient{response: `{"transactions": [` +
		`{"type": "expense", "amount": 30000, "description": "ăn phở", "confidence": 0.9}], "summary": "one"}`}
	svc := newTestService(client, nil, nil, nil)

	result, err := svc.Parse(context.Background(), &domain.ParseRequest{Text: "ăn phở 30k, grab 25k"})
	require.NoError(t, err)

	require.Len(t, result.Transactions, 2)
	assert.Equal(t, domain.ProvenanceRuleBased, result.Transactions[0].Provenance)
	require.NotEmpty(t, result.Metadata.Issues)
	assert.Contains(t, result.Metadata.Issues[len(result.Metadata.Issues)-1], "substituted rule-based extraction")
}

func TestParse_DegradedOutputArchived(t *testing.T) {
	raw := &fakeArchive{}
	truncated := `{"transactions": [{"type": "expense", "amount": 30000, "description": "phở", "confidence": 0.9},`
	client := &fakeClient{response: truncated}
	svc := newTestService(client, nil, nil, raw)

	result, err := svc.Parse(context.Background(), &domain.ParseRequest{Text: "ăn phở 30k"})
	require.NoError(t, err)

	assert.Equal(t, MethodRepair, result.Metadata.Method)
	require.Len(t, raw.archived, 1)
	for _, data := range raw.archived {
		assert.Equal(t, truncated, string(data))
	}
}

func TestParse_DirectOutputNotArchived(t *testing.T) {
	raw := &fakeArchive{}
	svc := newTestService(&fakeClient{response: goodResponse}, nil, nil, raw)

	_, err := svc.Parse(context.Background(), &domain.ParseRequest{Text: "ăn phở 30k, grab 25k"})
	require.NoError(t, err)
	assert.Empty(t, raw.archived)
}

func TestParse_RuleFallbackKeepsDepressedConfidence(t *testing.T) {
	// Unusable model output drops all the way to rule extraction, whose
	// pinned confidence and tiers survive post-processing untouched.
	client := &fakeClient{response: "Sorry, I cannot process this request."}
	svc := newTestService(client, nil, nil, nil)

	result, err := svc.Parse(context.Background(), &domain.ParseRequest{Text: "ăn phở 30k, grab 25k"})
	require.NoError(t, err)

	assert.Equal(t, MethodRuleFallback, result.Metadata.Method)
	require.Len(t, result.Transactions, 2)
	for _, d := range result.Transactions {
		assert.Equal(t, RuleFallbackConfidence, d.Confidence)
	}
	assert.Equal(t, domain.QualityNeedsReview, result.Metadata.QualityTier)
	assert.Equal(t, domain.RiskHigh, result.Metadata.RiskTier)
}

func TestParse_ModelAggregateConfidenceTrusted(t *testing.T) {
	// A model-supplied top-level confidence above the trust threshold
	// returns the direct decode as-is, even with low per-item values.
	client := &fakeClient{response: `{"transactions": [` +
		`{"type": "expense", "amount": 30000, "description": "ăn phở buổi sáng", "confidence": 0.5}], ` +
		`"summary": "one", "confidence": 0.9}`}
	svc := newTestService(client, nil, nil, nil)

	result, err := svc.Parse(context.Background(), &domain.ParseRequest{Text: "ăn phở 30k"})
	require.NoError(t, err)

	assert.Equal(t, MethodDirect, result.Metadata.Method)
	assert.Equal(t, 0.9, result.Metadata.AverageConfidence)
	require.Len(t, result.Transactions, 1)
	assert.Equal(t, 0.5, result.Transactions[0].Confidence)
	assert.True(t, result.Transactions[0].ValidationPassed)
	assert.Empty(t, result.Transactions[0].Notes)
}

func TestParse_DefaultWalletFillsEmpty(t *testing.T) {
	client := &fakeClient{response: `{"transactions": [` +
		`{"type": "expense", "amount": 30000, "description": "ăn phở", "confidence": 0.9}, ` +
		`{"type": "expense", "amount": 25000, "description": "grab", "wallet_id": "w-bank", "confidence": 0.9}], ` +
		`"summary": "2 expenses"}`}
	svc := newTestService(client, nil, nil, nil)

	result, err := svc.Parse(context.Background(), &domain.ParseRequest{
		Text:            "ăn phở 30k, grab 25k",
		UserPreferences: &domain.UserPreferences{DefaultWalletID: "w-cash"},
	})
	require.NoError(t, err)

	require.Len(t, result.Transactions, 2)
	assert.Equal(t, "w-cash", result.Transactions[0].WalletID)
	assert.Equal(t, "w-bank", result.Transactions[1].WalletID)
}

func TestParse_NoAPIKey(t *testing.T) {
	svc := NewService(Deps{
		Scheduler: llm.NewScheduler(nil, 100, 4, zerolog.Nop()),
		Client:    &fakeClient{},
		Prompts:   promptbuild.NewBuilder(),
		Log:       zerolog.Nop(),
	})

	_, err := svc.Parse(context.Background(), &domain.ParseRequest{Text: "ăn phở 30k"})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindServiceUnavailable))
}

func TestParseStream_EventOrder(t *testing.T) {
	client := &fakeClient{chunks: []string{
		`{"transactions": [{"type": "expense", "amount": 30000, "desc`,
		`ription": "ăn phở", "confidence": 0.9}, {"type": "expense", "amount": 25000, `,
		`"description": "grab", "confidence": 0.9}], "summary": "2 expenses"}`,
	}}
	svc := newTestService(client, nil, nil, nil)

	sink := &eventSink{}
	svc.ParseStream(context.Background(), &domain.ParseRequest{Text: "ăn phở 30k, grab 25k"}, sink.emit)

	require.NotEmpty(t, sink.events)
	assert.Equal(t, domain.EventStatus, sink.events[0].Type)

	last := sink.events[len(sink.events)-1]
	require.Equal(t, domain.EventFinal, last.Type)
	require.NotNil(t, last.Result)
	assert.Equal(t, MethodDirect, last.Result.Metadata.Method)
	assert.Len(t, last.Result.Transactions, 2)

	txns := sink.ofType(domain.EventTransaction)
	require.Len(t, txns, 2)
	assert.Equal(t, float64(30000), txns[0].Transaction.Amount)
	assert.Equal(t, float64(25000), txns[1].Transaction.Amount)
}

func TestParseStream_MidFlightFailureEmitsDegradedFinal(t *testing.T) {
	client := &fakeClient{
		chunks: []string{
			`{"transactions": [{"type": "expense", "amount": 30000, "description": "ăn phở", "confidence": 0.9},`,
		},
		streamErr: fmt.Errorf("connection reset"),
	}
	svc := newTestService(client, nil, nil, nil)

	sink := &eventSink{}
	svc.ParseStream(context.Background(), &domain.ParseRequest{Text: "ăn phở 30k, grab 25k"}, sink.emit)

	require.Len(t, sink.ofType(domain.EventTransaction), 1)

	errs := sink.ofType(domain.EventError)
	require.Len(t, errs, 1)
	assert.Equal(t, "stream_failure", errs[0].ErrorKind)
	assert.Contains(t, errs[0].Message, "after 1 transaction")

	// The error event is followed by a degraded final carrying at least
	// everything that was already emitted.
	last := sink.events[len(sink.events)-1]
	require.Equal(t, domain.EventFinal, last.Type)
	require.NotNil(t, last.Result)
	assert.GreaterOrEqual(t, len(last.Result.Transactions), 1)
	require.NotEmpty(t, last.Result.Metadata.Issues)
	assert.Contains(t, last.Result.Metadata.Issues[len(last.Result.Metadata.Issues)-1], "stream interrupted")
}

func TestParseStream_ValidationError(t *testing.T) {
	svc := newTestService(&fakeClient{}, nil, nil, nil)

	sink := &eventSink{}
	svc.ParseStream(context.Background(), &domain.ParseRequest{Text: ""}, sink.emit)

	require.Len(t, sink.events, 1)
	assert.Equal(t, domain.EventError, sink.events[0].Type)
	assert.Equal(t, string(apperrors.KindValidation), sink.events[0].ErrorKind)
}
