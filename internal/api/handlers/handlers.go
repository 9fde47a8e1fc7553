package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dnguyen/fintext/internal/api/middleware"
	"github.com/dnguyen/fintext/internal/apperrors"
	"github.com/dnguyen/fintext/internal/category"
	"github.com/dnguyen/fintext/internal/domain"
	infraBQ "github.com/dnguyen/fintext/internal/infra/bigquery"
	"github.com/dnguyen/fintext/internal/parser"
)

// defaultUserID stands in for a session until authentication exists.
const defaultUserID = "default"

// ParseHandler serves the parse endpoints, streaming and blocking.
type ParseHandler struct {
	svc *parser.Service
	log zerolog.Logger
}

// NewParseHandler creates a parse handler.
func NewParseHandler(svc *parser.Service, log zerolog.Logger) *ParseHandler {
	return &ParseHandler{svc: svc, log: log}
}

// wireParseRequest mirrors domain.ParseRequest but keeps Stream nullable
// so an absent field defaults to true.
type wireParseRequest struct {
	Text            string                  `json:"text"`
	UserPreferences *domain.UserPreferences `json:"userPreferences"`
	Stream          *bool                   `json:"stream"`
	DisableCache    bool                    `json:"disableCache"`
}

// Parse handles POST /api/parse.
func (h *ParseHandler) Parse(w http.ResponseWriter, r *http.Request) {
	var wire wireParseRequest
	if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req := &domain.ParseRequest{
		Text:            wire.Text,
		UserPreferences: wire.UserPreferences,
		Stream:          wire.Stream == nil || *wire.Stream,
		DisableCache:    wire.DisableCache,
		UserID:          userID(r),
	}

	if req.Stream {
		h.parseStream(w, r, req)
		return
	}

	result, err := h.svc.Parse(r.Context(), req)
	if err != nil {
		status, message := statusForError(err)
		h.log.Warn().Err(err).Int("status", status).Msg("parse request failed")
		middleware.WriteJSON(w, status, map[string]string{
			"error": message,
			"code":  string(apperrors.KindOf(err)),
		})
		return
	}

	middleware.WriteJSON(w, http.StatusOK, result)
}

// parseStream serves the SSE variant: one data frame per stream event,
// then the [DONE] sentinel.
func (h *ParseHandler) parseStream(w http.ResponseWriter, r *http.Request, req *domain.ParseRequest) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		middleware.WriteError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	emit := func(ev domain.StreamEvent) {
		data, err := json.Marshal(ev)
		if err != nil {
			h.log.Error().Err(err).Msg("marshaling stream event")
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	h.svc.ParseStream(r.Context(), req, emit)

	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// ConfirmHandler persists user-accepted drafts into transaction history
// and feeds the category suggester.
type ConfirmHandler struct {
	history *infraBQ.Repository
	matcher *category.Matcher
	log     zerolog.Logger
}

// NewConfirmHandler creates a confirm handler. history may be nil, which
// turns confirmation into a no-op acknowledge.
func NewConfirmHandler(history *infraBQ.Repository, matcher *category.Matcher, log zerolog.Logger) *ConfirmHandler {
	return &ConfirmHandler{history: history, matcher: matcher, log: log}
}

// Confirm handles POST /api/confirm.
func (h *ConfirmHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Transactions []domain.TransactionDraft `json:"transactions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Transactions) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "transactions is required and must be non-empty")
		return
	}

	uid := userID(r)
	now := time.Now()

	rows := make([]*infraBQ.HistoryRow, 0, len(req.Transactions))
	for _, d := range req.Transactions {
		if !d.Type.Valid() || d.Amount <= 0 {
			middleware.WriteError(w, http.StatusBadRequest, "each transaction needs a valid type and a positive amount")
			return
		}

		occurred := civil.DateOf(now)
		if d.OccurredAt != nil {
			occurred = civil.DateOf(*d.OccurredAt)
		}

		rows = append(rows, &infraBQ.HistoryRow{
			TransactionID: uuid.NewString(),
			UserID:        uid,
			Type:          string(d.Type),
			Amount:        d.Amount,
			Description:   d.Description,
			CategoryID:    infraBQ.NullableString(d.CategoryID),
			CategoryName:  infraBQ.NullableString(d.CategoryName),
			WalletID:      infraBQ.NullableString(d.WalletID),
			Merchant:      infraBQ.NullableString(d.Merchant),
			Tags:          d.Tags,
			OccurredDate:  occurred,
			CreatedTS:     now,
		})
	}

	if h.history != nil {
		if err := h.history.InsertHistory(r.Context(), rows); err != nil {
			h.log.Error().Err(err).Msg("Failed to insert confirmed transactions")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to save transactions")
			return
		}
	}

	if h.matcher != nil {
		for _, d := range req.Transactions {
			if d.CategoryID != "" && d.Description != "" {
				h.matcher.TrainFromHistory(d.CategoryID, d.Description)
			}
		}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"saved":  len(rows),
		"status": "confirmed",
	})
}

// Health handles GET /api/health.
func Health(w http.ResponseWriter, _ *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// statusForError maps the error taxonomy onto HTTP statuses.
func statusForError(err error) (int, string) {
	switch apperrors.KindOf(err) {
	case apperrors.KindValidation:
		return http.StatusBadRequest, err.Error()
	case apperrors.KindServiceUnavailable:
		return http.StatusServiceUnavailable, "no language model credentials configured"
	case apperrors.KindUpstreamFailure:
		return http.StatusBadGateway, "language model request failed"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func userID(r *http.Request) string {
	if id := r.Header.Get("X-User-ID"); id != "" {
		return id
	}
	return defaultUserID
}
