package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go-kyc-verifier/checks"
	"go-kyc-verifier/decision"
	"go-kyc-verifier/models"
)

type stubGate struct {
	results map[string]models.QualityAssessment
}

func (g *stubGate) Evaluate(path string) models.QualityAssessment {
	if result, ok := g.results[path]; ok {
		return result
	}
	return models.QualityAssessment{
		Quality:           models.QualityGood,
		RiskScore:         1.0,
		Signals:           []string{},
		RecommendedAction: models.ActionProceed,
	}
}

type stubExtractor struct {
	results map[models.DocumentType]*models.DocumentFields
	errs    map[models.DocumentType]error
}

func (e *stubExtractor) Extract(_ context.Context, _ string, doc models.DocumentType) (*models.DocumentFields, error) {
	if err, ok := e.errs[doc]; ok {
		return nil, err
	}
	if fields, ok := e.results[doc]; ok {
		return fields, nil
	}
	return &models.DocumentFields{Type: doc, Fields: map[string]*string{}}, nil
}

type stubMatcher struct {
	result *models.FaceMatchResult
	err    error
	called bool
}

func (m *stubMatcher) Match(_ context.Context, _, _ string) (*models.FaceMatchResult, error) {
	m.called = true
	return m.result, m.err
}

func strPtr(s string) *string { return &s }

func fields(doc models.DocumentType, kv map[string]string, perField map[string]float64) *models.DocumentFields {
	converted := make(map[string]*string, len(kv))
	for name, value := range kv {
		v := value
		converted[name] = &v
	}
	return &models.DocumentFields{
		Type:       doc,
		Fields:     converted,
		Confidence: models.Confidence{PerField: perField},
	}
}

func scalarFields(doc models.DocumentType, number string, conf float64) *models.DocumentFields {
	return &models.DocumentFields{
		Type:       doc,
		Fields:     map[string]*string{"vehicle_number": strPtr(number)},
		Confidence: models.Confidence{Scalar: &conf},
	}
}

// writeDocs creates a placeholder file per document and returns the path map.
// The quality gate is stubbed, so content does not matter.
func writeDocs(t *testing.T, docs ...models.DocumentType) map[models.DocumentType]string {
	t.Helper()
	dir := t.TempDir()
	paths := make(map[models.DocumentType]string, len(docs))
	for _, doc := range docs {
		path := filepath.Join(dir, string(doc)+".jpg")
		require.NoError(t, os.WriteFile(path, []byte("img"), 0o644))
		paths[doc] = path
	}
	return paths
}

func consistentExtractor() *stubExtractor {
	return &stubExtractor{
		results: map[models.DocumentType]*models.DocumentFields{
			models.AadhaarFront: fields(models.AadhaarFront, map[string]string{
				"name":           "Ravi Kumar",
				"aadhaar_number": "1234 5678 9012",
				"date_of_birth":  "15-06-1990",
			}, map[string]float64{"name": 0.95, "aadhaar_number": 0.97}),
			models.AadhaarBack: fields(models.AadhaarBack, map[string]string{
				"aadhaar_number": "1234 5678 9012",
				"pincode":        "400001",
			}, map[string]float64{"address": 0.9}),
			models.DrivingLicense: fields(models.DrivingLicense, map[string]string{
				"name":           "Ravi Kumar",
				"license_number": "MH1220150012345",
				"date_of_birth":  "15-06-1990",
				"validity_nt":    "01-01-2099",
			}, map[string]float64{"license_number": 0.93}),
			models.VehiclePlatePhoto: scalarFields(models.VehiclePlatePhoto, "MH-12 AB 1234", 0.95),
			models.RC:                scalarFields(models.RC, "MH12AB1234", 0.9),
		},
	}
}

func newTestPipeline(gate QualityGate, extractor Extractor, matcher FaceMatcher) *Pipeline {
	return New(
		gate,
		extractor,
		matcher,
		checks.NewChecker(),
		decision.NewEngine(decision.Config{}),
		nil,
	)
}

func TestRunVerifiedEndToEnd(t *testing.T) {
	docs := writeDocs(t, models.AllDocumentTypes()...)
	matcher := &stubMatcher{result: &models.FaceMatchResult{
		SamePerson: boolPtr(true),
		Confidence: 0.9,
	}}
	p := newTestPipeline(&stubGate{}, consistentExtractor(), matcher)

	result := p.Run(context.Background(), docs)

	require.Equal(t, models.StatusVerified, result.Status)
	require.Equal(t, 1.0, result.Confidence)
	require.True(t, matcher.called)

	require.Equal(t, models.AllDocumentTypes(), result.PipelineMetadata.DocumentsProcessed)
	for _, doc := range models.AllDocumentTypes() {
		require.Equal(t, models.QualityGood, result.PipelineMetadata.QualitySummary[doc])
	}
	require.Equal(t, models.ExtractionSuccess, result.PipelineMetadata.ExtractionSummary[models.DrivingLicense])
	// The selfie is never extracted, only face-matched.
	require.NotContains(t, result.PipelineMetadata.ExtractionSummary, models.Selfie)

	require.NotNil(t, result.Signals.Plate)
	require.True(t, result.Signals.Plate.PlateValid)
}

func TestRunMissingFileForcesReupload(t *testing.T) {
	docs := writeDocs(t, models.AllDocumentTypes()...)
	docs[models.AadhaarFront] = filepath.Join(t.TempDir(), "gone.jpg")

	matcher := &stubMatcher{result: &models.FaceMatchResult{SamePerson: boolPtr(true), Confidence: 0.9}}
	p := newTestPipeline(&stubGate{}, consistentExtractor(), matcher)

	result := p.Run(context.Background(), docs)

	require.Equal(t, models.StatusReupload, result.Status)
	require.Equal(t, []string{"Poor quality images: aadhaar_front"}, result.Reasons)
	require.Equal(t, []string{"File not found"}, result.Signals.Quality[models.AadhaarFront].Signals)
	require.NotContains(t, result.PipelineMetadata.ExtractionSummary, models.AadhaarFront)
}

func TestRunBadRCIsSkippedNotBlocking(t *testing.T) {
	docs := writeDocs(t, models.AllDocumentTypes()...)
	gate := &stubGate{results: map[string]models.QualityAssessment{
		docs[models.RC]: {
			Quality:           models.QualityBad,
			RiskScore:         0.2,
			Signals:           []string{"Blur detected (score=8.3)"},
			RecommendedAction: models.ActionReject,
		},
	}}
	matcher := &stubMatcher{result: &models.FaceMatchResult{SamePerson: boolPtr(true), Confidence: 0.9}}
	p := newTestPipeline(gate, consistentExtractor(), matcher)

	result := p.Run(context.Background(), docs)

	require.Equal(t, models.StatusVerified, result.Status)
	rc := result.Signals.Quality[models.RC]
	require.Contains(t, rc.Signals, "Optional RC skipped due to quality")
	require.Equal(t, models.ActionIgnore, rc.RecommendedAction)
}

func TestRunExtractionFailureDegrades(t *testing.T) {
	docs := writeDocs(t, models.AllDocumentTypes()...)
	extractor := consistentExtractor()
	extractor.errs = map[models.DocumentType]error{
		models.AadhaarBack: fmt.Errorf("vision service unavailable"),
	}
	matcher := &stubMatcher{result: &models.FaceMatchResult{SamePerson: boolPtr(true), Confidence: 0.9}}
	p := newTestPipeline(&stubGate{}, extractor, matcher)

	result := p.Run(context.Background(), docs)

	// The request still resolves; the failed document is charged a
	// confidence penalty and reported as failed.
	require.Equal(t, models.StatusVerified, result.Status)
	require.Equal(t, 0.9, result.Confidence)
	require.Equal(t, models.ExtractionFailed, result.PipelineMetadata.ExtractionSummary[models.AadhaarBack])
}

func TestRunFaceMatchFailureDoesNotReject(t *testing.T) {
	docs := writeDocs(t, models.AllDocumentTypes()...)
	matcher := &stubMatcher{err: fmt.Errorf("connection refused")}
	p := newTestPipeline(&stubGate{}, consistentExtractor(), matcher)

	result := p.Run(context.Background(), docs)

	require.Equal(t, models.StatusVerified, result.Status)
	require.NotNil(t, result.Signals.FaceMatch)
	require.Equal(t, "connection refused", result.Signals.FaceMatch.Err)
}

func TestRunWithoutSelfieSkipsFaceMatch(t *testing.T) {
	docs := writeDocs(t,
		models.AadhaarFront, models.AadhaarBack,
		models.DrivingLicense, models.VehiclePlatePhoto)
	matcher := &stubMatcher{}
	p := newTestPipeline(&stubGate{}, consistentExtractor(), matcher)

	result := p.Run(context.Background(), docs)

	require.False(t, matcher.called)
	require.Nil(t, result.Signals.FaceMatch)
}

func TestRunAadhaarMismatchIsCritical(t *testing.T) {
	docs := writeDocs(t, models.AllDocumentTypes()...)
	extractor := consistentExtractor()
	extractor.results[models.AadhaarBack] = fields(models.AadhaarBack, map[string]string{
		"aadhaar_number": "1234 5678 9013",
		"pincode":        "400001",
	}, map[string]float64{"address": 0.9})
	matcher := &stubMatcher{result: &models.FaceMatchResult{SamePerson: boolPtr(true), Confidence: 0.9}}
	p := newTestPipeline(&stubGate{}, extractor, matcher)

	result := p.Run(context.Background(), docs)

	require.Equal(t, models.StatusReupload, result.Status)
	require.Contains(t, result.Signals.Issues, models.IssueAadhaarFrontBackMismatch)
	require.Contains(t, result.Signals.Checks.Intra, models.IssueAadhaarFrontBackMismatch)
}

func TestRunCompletesQuickly(t *testing.T) {
	// Per-document stages run concurrently; a pipeline over six documents
	// with slow collaborators should take roughly one stage, not six.
	docs := writeDocs(t, models.AllDocumentTypes()...)
	slow := &slowExtractor{inner: consistentExtractor(), delay: 50 * time.Millisecond}
	matcher := &stubMatcher{result: &models.FaceMatchResult{SamePerson: boolPtr(true), Confidence: 0.9}}
	p := newTestPipeline(&stubGate{}, slow, matcher)

	start := time.Now()
	result := p.Run(context.Background(), docs)
	elapsed := time.Since(start)

	require.Equal(t, models.StatusVerified, result.Status)
	require.Less(t, elapsed, 200*time.Millisecond)
}

type slowExtractor struct {
	inner Extractor
	delay time.Duration
}

func (e *slowExtractor) Extract(ctx context.Context, path string, doc models.DocumentType) (*models.DocumentFields, error) {
	time.Sleep(e.delay)
	return e.inner.Extract(ctx, path, doc)
}

func boolPtr(b bool) *bool { return &b }
