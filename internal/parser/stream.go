package parser

import (
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dnguyen/fintext/internal/domain"
)

// previewLimit bounds the chunk preview carried on progress events.
const previewLimit = 60

// EmitFunc pushes one event to the transport. Implementations must not
// retain the event past the call.
type EmitFunc func(domain.StreamEvent)

// Ingestor consumes model output chunks incrementally, surfacing each
// transaction object the moment it is complete in the buffer. Objects
// are emitted at most once, in buffer-completion order, and never
// retracted; malformed trailing fragments simply wait for more chunks.
type Ingestor struct {
	buffer         strings.Builder
	estimatedTotal int
	emit           EmitFunc
	log            zerolog.Logger

	// seen counts complete discriminator-bearing objects already
	// inspected, decodable or not, so nothing is inspected twice.
	seen   int
	drafts []domain.TransactionDraft
}

// NewIngestor creates an ingestor for one request.
func NewIngestor(estimatedTotal int, emit EmitFunc, log zerolog.Logger) *Ingestor {
	return &Ingestor{estimatedTotal: estimatedTotal, emit: emit, log: log}
}

// Consume appends one chunk, reports progress, and emits any newly
// completed transactions.
func (in *Ingestor) Consume(chunk string) {
	in.buffer.WriteString(chunk)
	in.emit(domain.ProgressEvent(truncateRunes(chunk, previewLimit)))
	in.scan()
}

func (in *Ingestor) scan() {
	objects := scanTransactionObjects(in.buffer.String())
	for ; in.seen < len(objects); in.seen++ {
		span := objects[in.seen]

		var wt wireTransaction
		if err := json.Unmarshal([]byte(span), &wt); err != nil {
			// Leave it to the recovery chain over the full buffer.
			in.log.Debug().Err(err).Msg("skipping undecodable streamed object")
			continue
		}

		draft := wt.toDraft(domain.ProvenanceModelDirect)
		in.drafts = append(in.drafts, draft)
		in.emit(domain.TransactionEvent(draft, len(in.drafts)-1, in.estimatedTotal))
	}
}

// Buffer returns everything consumed so far; after the stream ends this
// is the authoritative input for the recovery chain.
func (in *Ingestor) Buffer() string {
	return in.buffer.String()
}

// Drafts returns the live-extracted drafts in emission order.
func (in *Ingestor) Drafts() []domain.TransactionDraft {
	return in.drafts
}

// EmittedCount is the number of transaction events pushed so far.
func (in *Ingestor) EmittedCount() int {
	return len(in.drafts)
}
