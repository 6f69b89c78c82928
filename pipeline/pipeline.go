// Package pipeline orchestrates one verification request: quality gating and
// field extraction run as independent per-document tasks joined at a barrier,
// after which the consistency checks and the decision run over the merged
// results. A failed external call degrades its document's contribution but
// never aborts the request.
package pipeline

import (
	"context"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"go-kyc-verifier/checks"
	"go-kyc-verifier/decision"
	"go-kyc-verifier/metrics"
	"go-kyc-verifier/models"
)

// Extractor reads structured fields off a document image.
type Extractor interface {
	Extract(ctx context.Context, imagePath string, doc models.DocumentType) (*models.DocumentFields, error)
}

// FaceMatcher compares the face on a reference document against a probe photo.
type FaceMatcher interface {
	Match(ctx context.Context, referencePath, probePath string) (*models.FaceMatchResult, error)
}

// QualityGate scores the readability of a document image.
type QualityGate interface {
	Evaluate(path string) models.QualityAssessment
}

// Pipeline wires the verification stages together. It is stateless and safe
// for concurrent use across requests.
type Pipeline struct {
	gate      QualityGate
	extractor Extractor
	matcher   FaceMatcher
	checker   *checks.Checker
	engine    *decision.Engine
	metrics   *metrics.Metrics
}

// New creates a pipeline. metrics may be nil to disable instrumentation.
func New(
	gate QualityGate,
	extractor Extractor,
	matcher FaceMatcher,
	checker *checks.Checker,
	engine *decision.Engine,
	m *metrics.Metrics,
) *Pipeline {
	return &Pipeline{
		gate:      gate,
		extractor: extractor,
		matcher:   matcher,
		checker:   checker,
		engine:    engine,
		metrics:   m,
	}
}

// docResult is the join slot for one document's tasks. Each slot is written
// by exactly one goroutine, so no locking is needed.
type docResult struct {
	quality   models.QualityAssessment
	extracted *models.DocumentFields
}

// Run executes the full pipeline over a mapping of document type to file
// path and always returns a decision, however degraded the inputs.
func (p *Pipeline) Run(ctx context.Context, docs map[models.DocumentType]string) models.VerificationDecision {
	start := time.Now()

	results := make(map[models.DocumentType]*docResult, len(docs))
	var faceMatch *models.FaceMatchOutcome

	group, groupCtx := errgroup.WithContext(ctx)

	for doc, path := range docs {
		doc, path := doc, path
		slot := &docResult{}
		results[doc] = slot

		group.Go(func() error {
			p.processDocument(groupCtx, doc, path, slot)
			return nil
		})
	}

	selfiePath, hasSelfie := docs[models.Selfie]
	dlPath, hasDL := docs[models.DrivingLicense]
	if hasSelfie && hasDL && fileExists(selfiePath) && fileExists(dlPath) {
		group.Go(func() error {
			faceMatch = p.matchFaces(groupCtx, dlPath, selfiePath)
			return nil
		})
	}

	// Tasks never return errors; the group is a join barrier.
	_ = group.Wait()

	quality := make(map[models.DocumentType]models.QualityAssessment, len(results))
	extracted := models.Extracted{}
	for doc, slot := range results {
		quality[doc] = slot.quality
		if slot.extracted != nil {
			extracted[doc] = slot.extracted
		}
	}

	if plate, ok := extracted[models.VehiclePlatePhoto]; ok {
		validation := p.checker.PlateOCRValidation(plate)
		plate.PlateValidation = &validation
	}

	formatIssues := p.checker.FormatChecks(extracted)
	intraIssues := p.checker.IntraDocumentConsistency(extracted)
	crossIssues := p.checker.CrossDocumentConsistency(extracted)

	result := p.engine.Decide(decision.Input{
		Quality:      quality,
		Extracted:    extracted,
		FaceMatch:    faceMatch,
		FormatIssues: formatIssues,
		IntraIssues:  intraIssues,
		CrossIssues:  crossIssues,
	})
	result.PipelineMetadata = buildMetadata(docs, quality, extracted)

	p.metrics.IncrementOutcome(string(result.Status))
	p.metrics.ObservePipelineLatency(time.Since(start))

	slog.Info("Pipeline run complete",
		"status", result.Status,
		"confidence", result.Confidence,
		"documents", len(docs),
		"duration", time.Since(start))

	return result
}

// processDocument runs the quality gate and the extractor for one document.
// Both outcomes land in the slot; failures degrade rather than propagate.
func (p *Pipeline) processDocument(ctx context.Context, doc models.DocumentType, path string, slot *docResult) {
	if !fileExists(path) {
		slog.Warn("Document file missing", "document", doc, "path", path)
		slot.quality = models.QualityAssessment{
			Quality:           models.QualityBad,
			RiskScore:         0.0,
			Signals:           []string{"File not found"},
			RecommendedAction: models.ActionReject,
		}
		return
	}

	qualityStart := time.Now()
	assessment := p.gate.Evaluate(path)
	p.metrics.ObserveStageLatency("quality", string(doc), time.Since(qualityStart))

	// The optional RC never blocks; a bad result is downgraded to a skip.
	if doc == models.RC && assessment.Quality == models.QualityBad {
		assessment.Signals = append(assessment.Signals, "Optional RC skipped due to quality")
		assessment.RecommendedAction = models.ActionIgnore
	}
	slot.quality = assessment

	if !doc.Extractable() {
		return
	}

	extractionStart := time.Now()
	fields, err := p.extractor.Extract(ctx, path, doc)
	p.metrics.ObserveStageLatency("extraction", string(doc), time.Since(extractionStart))
	if err != nil {
		slog.Warn("Extraction failed", "document", doc, "error", err)
		zero := 0.0
		slot.extracted = &models.DocumentFields{
			Type:            doc,
			Fields:          map[string]*string{},
			Confidence:      models.Confidence{Scalar: &zero},
			ExtractionError: err.Error(),
		}
		return
	}
	slot.extracted = fields
}

// matchFaces invokes the face matcher once and captures any failure as a
// degraded outcome.
func (p *Pipeline) matchFaces(ctx context.Context, dlPath, selfiePath string) *models.FaceMatchOutcome {
	matchStart := time.Now()
	result, err := p.matcher.Match(ctx, dlPath, selfiePath)
	p.metrics.ObserveStageLatency("face_match", string(models.Selfie), time.Since(matchStart))
	if err != nil {
		slog.Warn("Face match failed", "error", err)
		return &models.FaceMatchOutcome{Err: err.Error()}
	}
	return &models.FaceMatchOutcome{Result: result}
}

// buildMetadata summarizes what the pipeline processed, in the canonical
// document order.
func buildMetadata(
	docs map[models.DocumentType]string,
	quality map[models.DocumentType]models.QualityAssessment,
	extracted models.Extracted,
) models.PipelineMetadata {
	meta := models.PipelineMetadata{
		DocumentsProcessed: []models.DocumentType{},
		QualitySummary:     map[models.DocumentType]models.QualityTier{},
		ExtractionSummary:  map[models.DocumentType]string{},
	}
	for _, doc := range models.AllDocumentTypes() {
		if _, ok := docs[doc]; !ok {
			continue
		}
		meta.DocumentsProcessed = append(meta.DocumentsProcessed, doc)
		if assessment, ok := quality[doc]; ok {
			meta.QualitySummary[doc] = assessment.Quality
		}
		if fields, ok := extracted[doc]; ok {
			status := models.ExtractionSuccess
			if fields.ExtractionError != "" {
				status = models.ExtractionFailed
			}
			meta.ExtractionSummary[doc] = status
		}
	}
	return meta
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
