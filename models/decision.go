package models

// VerificationStatus is the terminal outcome of a verification request.
type VerificationStatus string

const (
	StatusVerified    VerificationStatus = "VERIFIED"
	StatusNeedsReview VerificationStatus = "NEEDS_REVIEW"
	StatusReupload    VerificationStatus = "REUPLOAD"
	StatusReject      VerificationStatus = "REJECT"
)

// CheckIssues groups the consistency issues by which pass produced them.
type CheckIssues struct {
	Format []Issue `json:"format"`
	Intra  []Issue `json:"intra"`
	Cross  []Issue `json:"cross"`
}

// PlateInfo summarizes the vehicle plate reading for the signals block.
// PlateValid here only reflects that a plate number was read at all; format
// validity is reported through the issue codes.
type PlateInfo struct {
	PlateNumber *string `json:"plate_number"`
	PlateValid  bool    `json:"plate_valid"`
	Confidence  float64 `json:"confidence"`
}

// DecisionSignals is the structured evidence bundle attached to a decision.
type DecisionSignals struct {
	Quality            map[DocumentType]QualityAssessment `json:"quality"`
	Issues             []Issue                            `json:"issues"`
	Checks             CheckIssues                        `json:"checks"`
	Plate              *PlateInfo                         `json:"plate"`
	FaceMatch          *FaceMatchOutcome                  `json:"face_match"`
	SuggestedReuploads []DocumentType                     `json:"suggested_reuploads"`
}

// RequestMetadata carries caller-supplied identifiers through to the
// response. They are never interpreted by the pipeline.
type RequestMetadata struct {
	RiderID      *string `json:"rider_id"`
	OnboardingID *string `json:"onboarding_id"`
}

// PipelineMetadata records what the pipeline did, per document.
type PipelineMetadata struct {
	DocumentsProcessed []DocumentType               `json:"documents_processed"`
	QualitySummary     map[DocumentType]QualityTier `json:"quality_summary"`
	ExtractionSummary  map[DocumentType]string      `json:"extraction_summary"`
}

// Extraction summary values.
const (
	ExtractionSuccess = "success"
	ExtractionFailed  = "failed"
)

// VerificationDecision is the externally visible verification result. It is
// never mutated after construction; Extracted holds only masked field data.
type VerificationDecision struct {
	Status           VerificationStatus        `json:"status"`
	Confidence       float64                   `json:"confidence"`
	Reasons          []string                  `json:"reasons"`
	Signals          DecisionSignals           `json:"signals"`
	Extracted        map[string]map[string]any `json:"extracted"`
	Metadata         RequestMetadata           `json:"metadata"`
	PipelineMetadata PipelineMetadata          `json:"pipeline_metadata"`
	Attestation      string                    `json:"attestation,omitempty"`
}
