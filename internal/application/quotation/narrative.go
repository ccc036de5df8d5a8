package quotation

import (
	"context"
	"time"

	"github.com/harborintel/portcost/internal/domain/estimate"
	"github.com/harborintel/portcost/internal/infrastructure/monitoring/logging"
)

// documentFetcher reads supporting source documents from object storage.
type documentFetcher interface {
	FetchSupportingText(ctx context.Context, docKey string) (string, error)
}

// Narrator renders a finished estimate as natural-language text.  It is
// strictly post-hoc: it receives the computed numbers and grounds the
// narrative on them, plus at most one supporting source document.
type Narrator struct {
	generator estimate.NarrativeGenerator
	docs      documentFetcher
	timeout   time.Duration
	logger    logging.Logger
}

// NewNarrator builds a Narrator.  docs may be nil when object storage is
// not configured; narratives then run on the structured estimate alone.
func NewNarrator(generator estimate.NarrativeGenerator, docs documentFetcher, timeout time.Duration, logger logging.Logger) *Narrator {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Narrator{
		generator: generator,
		docs:      docs,
		timeout:   timeout,
		logger:    logger.Named("narrator"),
	}
}

// Narrate produces narrative text for est.  matches supplies the ranked
// evidence; the closest contributing record with a source document key
// provides the supporting text.  Document fetch failures are logged and
// skipped, generation failures are returned to the caller, who treats the
// narrative as missing rather than failing the estimate.
func (n *Narrator) Narrate(ctx context.Context, est *estimate.SynthesizedEstimate, matches []estimate.NeighborMatch) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	supporting := n.supportingText(ctx, est, matches)
	return n.generator.Generate(ctx, est, supporting)
}

func (n *Narrator) supportingText(ctx context.Context, est *estimate.SynthesizedEstimate, matches []estimate.NeighborMatch) string {
	if n.docs == nil {
		return ""
	}

	contributing := make(map[string]bool, len(est.ContributingRecordIDs))
	for _, id := range est.ContributingRecordIDs {
		contributing[id] = true
	}

	// matches arrive in ascending distance order, so the first hit is the
	// strongest piece of evidence.
	for _, m := range matches {
		if m.Record == nil || m.Record.SourceDocKey == "" || !contributing[m.RecordID] {
			continue
		}
		text, err := n.docs.FetchSupportingText(ctx, m.Record.SourceDocKey)
		if err != nil {
			n.logger.Warn("supporting document unavailable",
				logging.String("record_id", m.RecordID),
				logging.String("doc_key", m.Record.SourceDocKey),
				logging.Err(err))
			return ""
		}
		return text
	}
	return ""
}
