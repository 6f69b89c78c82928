// Package decision applies the verification policy: an ordered list of
// mutually exclusive rules over quality results, extracted data, consistency
// issues, and the face-match signal. The first matching rule picks the status
// and headline reason; the final confidence is always recomputed from the
// quality/extraction-penalty formula, regardless of which rule fired.
package decision

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"go-kyc-verifier/models"
)

// Config holds the decisioning thresholds. Zero values are filled with the
// defaults below.
type Config struct {
	// Face-match confidence below this rejects the application outright.
	FaceMinConfidence float64 `json:"face_min_confidence,omitempty"`

	// Extraction confidence below these thresholds penalizes the final
	// confidence; plate and RC readings use the stricter plate minimum.
	MinExtractionConfidence float64 `json:"min_extraction_confidence,omitempty"`
	MinPlateConfidence      float64 `json:"min_plate_confidence,omitempty"`
}

// ApplyDefaults fills unset thresholds.
func (c *Config) ApplyDefaults() {
	if c.FaceMinConfidence == 0 {
		c.FaceMinConfidence = 0.6
	}
	if c.MinExtractionConfidence == 0 {
		c.MinExtractionConfidence = 0.7
	}
	if c.MinPlateConfidence == 0 {
		c.MinPlateConfidence = 0.8
	}
}

// Per-issue and per-low-confidence-field confidence penalty.
const issuePenalty = 0.1

// Input is everything the engine needs to decide one request.
type Input struct {
	Quality      map[models.DocumentType]models.QualityAssessment
	Extracted    models.Extracted
	FaceMatch    *models.FaceMatchOutcome
	FormatIssues []models.Issue
	IntraIssues  []models.Issue
	CrossIssues  []models.Issue
}

func (in Input) allIssues() []models.Issue {
	all := make([]models.Issue, 0, len(in.FormatIssues)+len(in.IntraIssues)+len(in.CrossIssues))
	all = append(all, in.FormatIssues...)
	all = append(all, in.IntraIssues...)
	all = append(all, in.CrossIssues...)
	return all
}

// Format/intra issues that force a reupload instead of a manual review.
var criticalIssues = map[models.Issue]bool{
	models.IssueInvalidAadhaarFormat:     true,
	models.IssueInvalidDLFormat:          true,
	models.IssueInvalidPincode:           true,
	models.IssueAadhaarFrontBackMismatch: true,
}

// Engine makes the final verification decision. The rules are centralized
// here so the policy stays reviewable and testable in one place.
type Engine struct {
	cfg Config
}

// NewEngine creates a decision engine with defaults applied to cfg.
func NewEngine(cfg Config) *Engine {
	cfg.ApplyDefaults()
	return &Engine{cfg: cfg}
}

// Decide evaluates the policy rules in order and builds the decision
// envelope. First match wins; later rules are not consulted.
func (e *Engine) Decide(in Input) models.VerificationDecision {
	allIssues := in.allIssues()

	// Rule 1: an expired driving license rejects everything else.
	if models.ContainsIssue(allIssues, models.IssueDLExpiredNT) ||
		models.ContainsIssue(allIssues, models.IssueDLExpiredTR) {
		return e.build(in, models.StatusReject, []string{"Driving license expired"}, nil)
	}

	// Rule 2: a computed face-match confidence below the floor rejects.
	if in.FaceMatch != nil && in.FaceMatch.Result != nil {
		if conf := in.FaceMatch.Result.Confidence; conf < e.cfg.FaceMinConfidence {
			reason := fmt.Sprintf("Face match confidence below threshold (%v)", conf)
			return e.build(in, models.StatusReject, []string{reason}, nil)
		}
	}

	// Rule 3: any mandatory document with bad quality needs a reupload.
	// The optional RC never blocks the pipeline.
	var reuploadDocs []string
	for _, doc := range models.AllDocumentTypes() {
		result, ok := in.Quality[doc]
		if !ok || !doc.Mandatory() {
			continue
		}
		if result.Quality == models.QualityBad {
			reuploadDocs = append(reuploadDocs, string(doc))
		}
	}
	if len(reuploadDocs) > 0 {
		reason := fmt.Sprintf("Poor quality images: %s", strings.Join(reuploadDocs, ", "))
		return e.build(in, models.StatusReupload, []string{reason}, nil)
	}

	// Rule 4: an explicit face mismatch asks for fresh photos of both sides
	// of the comparison.
	if in.FaceMatch != nil && in.FaceMatch.Result != nil {
		if same := in.FaceMatch.Result.SamePerson; same != nil && !*same {
			suggested := []models.DocumentType{models.Selfie, models.DrivingLicense}
			return e.build(in, models.StatusReupload,
				[]string{"Face mismatch between driving license and selfie"}, suggested)
		}
	}

	// Rule 5: format or intra-document issues. Critical ones force a
	// reupload; the rest go to manual review.
	if len(in.FormatIssues) > 0 || len(in.IntraIssues) > 0 {
		hasCritical := false
		for _, issue := range append(append([]models.Issue{}, in.FormatIssues...), in.IntraIssues...) {
			if criticalIssues[issue] {
				hasCritical = true
				break
			}
		}
		if hasCritical {
			return e.build(in, models.StatusReupload,
				[]string{"Document format or consistency issues"}, nil)
		}
		return e.build(in, models.StatusNeedsReview,
			[]string{"Minor document issues require review"}, nil)
	}

	// Rule 6: cross-document mismatches are reviewed, never auto-rejected.
	if len(in.CrossIssues) > 0 {
		return e.build(in, models.StatusNeedsReview,
			[]string{"Cross-document inconsistencies"}, nil)
	}

	// Rule 7: an unreadable DL expiry is reviewed.
	if models.ContainsIssue(allIssues, models.IssueDLExpiryNotReadable) {
		return e.build(in, models.StatusNeedsReview,
			[]string{"Driving license expiry date not readable"}, nil)
	}

	return e.build(in, models.StatusVerified, []string{"All verification checks passed"}, nil)
}

// build assembles the decision envelope: recomputed confidence, masked
// extracted data, and the structured signals bundle.
func (e *Engine) build(
	in Input,
	status models.VerificationStatus,
	reasons []string,
	suggestedReuploads []models.DocumentType,
) models.VerificationDecision {
	allIssues := in.allIssues()

	confidence := e.calculateConfidence(in, allIssues)

	var plateInfo *models.PlateInfo
	if plate, ok := in.Extracted[models.VehiclePlatePhoto]; ok {
		var conf float64
		if plate.Confidence.Scalar != nil {
			conf = *plate.Confidence.Scalar
		}
		number := plate.Field("vehicle_number")
		plateInfo = &models.PlateInfo{
			PlateNumber: number,
			PlateValid:  number != nil && *number != "",
			Confidence:  conf,
		}
	}

	if suggestedReuploads == nil {
		suggestedReuploads = []models.DocumentType{}
	}

	slog.Debug("Decision made", "status", status, "confidence", confidence, "issues", len(allIssues))

	return models.VerificationDecision{
		Status:     status,
		Confidence: confidence,
		Reasons:    reasons,
		Signals: models.DecisionSignals{
			Quality: in.Quality,
			Issues:  allIssues,
			Checks: models.CheckIssues{
				Format: emptyIfNil(in.FormatIssues),
				Intra:  emptyIfNil(in.IntraIssues),
				Cross:  emptyIfNil(in.CrossIssues),
			},
			Plate:              plateInfo,
			FaceMatch:          in.FaceMatch,
			SuggestedReuploads: suggestedReuploads,
		},
		Extracted: maskExtracted(in.Extracted, in.FaceMatch),
	}
}

// calculateConfidence is the single source of truth for the final confidence:
// the average document risk score, minus a flat penalty per consistency issue
// and per extraction confidence below its minimum, floored at zero.
func (e *Engine) calculateConfidence(in Input, issues []models.Issue) float64 {
	var qualitySum float64
	var qualityCount int
	for _, result := range in.Quality {
		qualitySum += result.RiskScore
		qualityCount++
	}
	var avgQuality float64
	if qualityCount > 0 {
		avgQuality = qualitySum / float64(qualityCount)
	}

	penalty := float64(len(issues)) * issuePenalty

	for doc, fields := range in.Extracted {
		penalty += e.extractionPenalty(string(doc), fields.Confidence)
	}
	if in.FaceMatch != nil && in.FaceMatch.Result != nil {
		conf := in.FaceMatch.Result.Confidence
		penalty += e.extractionPenalty("face_match", models.Confidence{Scalar: &conf})
	}

	confidence := math.Max(0, avgQuality-penalty)
	return math.Round(confidence*100) / 100
}

// extractionPenalty charges for every reported confidence below its
// threshold. Scalar confidences on plate or RC readings use the stricter
// plate minimum.
func (e *Engine) extractionPenalty(docName string, conf models.Confidence) float64 {
	var penalty float64
	if conf.Scalar != nil {
		threshold := e.cfg.MinExtractionConfidence
		if strings.Contains(docName, "plate") || strings.Contains(docName, "rc") {
			threshold = e.cfg.MinPlateConfidence
		}
		if *conf.Scalar < threshold {
			penalty += issuePenalty
		}
		return penalty
	}
	for _, fieldConf := range conf.PerField {
		if fieldConf < e.cfg.MinExtractionConfidence {
			penalty += issuePenalty
		}
	}
	return penalty
}

func emptyIfNil(issues []models.Issue) []models.Issue {
	if issues == nil {
		return []models.Issue{}
	}
	return issues
}
