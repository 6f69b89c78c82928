package models

// QualityTier classifies how readable a document image is.
type QualityTier string

const (
	QualityGood  QualityTier = "good"
	QualityRisky QualityTier = "risky"
	QualityBad   QualityTier = "bad"
)

// RecommendedAction is the quality gate's advice for a single document.
type RecommendedAction string

const (
	ActionProceed RecommendedAction = "proceed"
	ActionCaution RecommendedAction = "proceed_with_caution"
	ActionReject  RecommendedAction = "reject"
	ActionIgnore  RecommendedAction = "ignore"
)

// QualityAssessment is the immutable result of running the quality gate over
// one document image. RiskScore is the fraction of heuristic checks passed.
type QualityAssessment struct {
	Quality           QualityTier       `json:"quality"`
	RiskScore         float64           `json:"risk_score"`
	Signals           []string          `json:"signals"`
	RecommendedAction RecommendedAction `json:"recommended_action"`
}
