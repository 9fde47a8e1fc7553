package domain

// QualityTier is a coarse categorical summary of aggregate confidence.
type QualityTier string

const (
	QualityExcellent   QualityTier = "excellent"
	QualityGood        QualityTier = "good"
	QualityNeedsReview QualityTier = "needs_review"
	QualityFailed      QualityTier = "failed"
)

// RiskTier summarizes how much a result should be distrusted.
type RiskTier string

const (
	RiskLow      RiskTier = "low"
	RiskMedium   RiskTier = "medium"
	RiskHigh     RiskTier = "high"
	RiskCritical RiskTier = "critical"
)

// Confidence bucket boundaries shared by the enhancer and metadata math.
const (
	ConfidenceHighFloor   = 0.8
	ConfidenceMediumFloor = 0.6
)

// ParsingMetadata is the quality/audit record attached to every result.
type ParsingMetadata struct {
	TotalFound        int         `json:"total_found"`
	HighConfidence    int         `json:"high_confidence"`
	MediumConfidence  int         `json:"medium_confidence"`
	LowConfidence     int         `json:"low_confidence"`
	AverageConfidence float64     `json:"average_confidence"`
	QualityTier       QualityTier `json:"quality_tier"`
	RiskTier          RiskTier    `json:"risk_tier"`
	Method            string      `json:"method"`
	Issues            []string    `json:"issues,omitempty"`
}

// ParseResult is the top-level output of a parse request. An empty
// transaction list is a valid outcome, not an error; metadata
// distinguishes "nothing to find" from "everything failed".
type ParseResult struct {
	Transactions []TransactionDraft `json:"transactions"`
	Summary      string             `json:"summary,omitempty"`
	Metadata     ParsingMetadata    `json:"metadata"`
}

// Recompute refreshes the bucket counts, average confidence and tiers
// from the current transaction list. The high/medium/low counts always
// partition TotalFound.
func (m *ParsingMetadata) Recompute(drafts []TransactionDraft) {
	m.TotalFound = len(drafts)
	m.HighConfidence = 0
	m.MediumConfidence = 0
	m.LowConfidence = 0

	var sum float64
	for _, d := range drafts {
		sum += d.Confidence
		switch {
		case d.Confidence >= ConfidenceHighFloor:
			m.HighConfidence++
		case d.Confidence >= ConfidenceMediumFloor:
			m.MediumConfidence++
		default:
			m.LowConfidence++
		}
	}

	if len(drafts) > 0 {
		m.AverageConfidence = sum / float64(len(drafts))
	} else {
		m.AverageConfidence = 0
	}

	m.QualityTier, m.RiskTier = TiersForConfidence(m.AverageConfidence)
}

// TiersForConfidence derives the quality and risk tiers from an average
// confidence. QualityFailed is never produced here: it is reserved for
// the case where every recovery strategy errored.
func TiersForConfidence(avg float64) (QualityTier, RiskTier) {
	switch {
	case avg >= 0.8:
		return QualityExcellent, RiskLow
	case avg >= 0.6:
		return QualityGood, RiskMedium
	default:
		return QualityNeedsReview, RiskHigh
	}
}
