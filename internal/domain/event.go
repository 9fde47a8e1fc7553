package domain

// StreamEventType tags one unit on the push channel.
type StreamEventType string

const (
	EventStatus      StreamEventType = "status"
	EventProgress    StreamEventType = "progress"
	EventTransaction StreamEventType = "transaction"
	EventFinal       StreamEventType = "final"
	EventError       StreamEventType = "error"
)

// StreamEvent is one frame pushed to the transport while a parse request
// is in flight. Events are immutable after emission and consumed once.
type StreamEvent struct {
	Type StreamEventType `json:"type"`

	// Message carries the status or error text.
	Message string `json:"message,omitempty"`

	// ChunkPreview is a truncated view of a raw chunk, emitted on
	// progress events for observability only. Consumers may drop it.
	ChunkPreview string `json:"chunk_preview,omitempty"`

	// Transaction fields, set on transaction events.
	Transaction    *TransactionDraft `json:"transaction,omitempty"`
	PositionIndex  int               `json:"position_index,omitempty"`
	EstimatedTotal int               `json:"estimated_total,omitempty"`

	// Result is set on the final event.
	Result *ParseResult `json:"result,omitempty"`

	// Error fields, set on error events. DebugDetail is bounded by the
	// producer and never contains the full raw model output.
	ErrorKind   string `json:"error_kind,omitempty"`
	DebugDetail string `json:"debug_detail,omitempty"`
}

// StatusEvent builds a status frame.
func StatusEvent(message string) StreamEvent {
	return StreamEvent{Type: EventStatus, Message: message}
}

// ProgressEvent builds a progress frame with a chunk preview.
func ProgressEvent(preview string) StreamEvent {
	return StreamEvent{Type: EventProgress, ChunkPreview: preview}
}

// TransactionEvent builds a transaction frame. The draft is copied so
// later enhancement of the pipeline's own draft cannot mutate an
// already-emitted event.
func TransactionEvent(draft TransactionDraft, position, estimatedTotal int) StreamEvent {
	d := draft
	return StreamEvent{
		Type:           EventTransaction,
		Transaction:    &d,
		PositionIndex:  position,
		EstimatedTotal: estimatedTotal,
	}
}

// FinalEvent builds the terminal success frame.
func FinalEvent(result ParseResult) StreamEvent {
	r := result
	return StreamEvent{Type: EventFinal, Result: &r}
}

// ErrorEvent builds a terminal error frame.
func ErrorEvent(kind, message, debugDetail string) StreamEvent {
	return StreamEvent{Type: EventError, ErrorKind: kind, Message: message, DebugDetail: debugDetail}
}
