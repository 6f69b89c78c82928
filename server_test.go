package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"go-kyc-verifier/checks"
	"go-kyc-verifier/decision"
	"go-kyc-verifier/images"
	"go-kyc-verifier/models"
	"go-kyc-verifier/pipeline"
)

type goodGate struct{}

func (goodGate) Evaluate(string) models.QualityAssessment {
	return models.QualityAssessment{
		Quality:           models.QualityGood,
		RiskScore:         1.0,
		Signals:           []string{},
		RecommendedAction: models.ActionProceed,
	}
}

type fixedExtractor struct{}

func (fixedExtractor) Extract(_ context.Context, _ string, doc models.DocumentType) (*models.DocumentFields, error) {
	str := func(s string) *string { return &s }
	conf := 0.95
	switch doc {
	case models.AadhaarFront:
		return &models.DocumentFields{Type: doc, Fields: map[string]*string{
			"name":           str("Ravi Kumar"),
			"aadhaar_number": str("1234 5678 9012"),
			"date_of_birth":  str("15-06-1990"),
		}, Confidence: models.Confidence{PerField: map[string]float64{"name": 0.95}}}, nil
	case models.AadhaarBack:
		return &models.DocumentFields{Type: doc, Fields: map[string]*string{
			"aadhaar_number": str("1234 5678 9012"),
			"pincode":        str("400001"),
		}, Confidence: models.Confidence{PerField: map[string]float64{"pincode": 0.95}}}, nil
	case models.DrivingLicense:
		return &models.DocumentFields{Type: doc, Fields: map[string]*string{
			"name":           str("Ravi Kumar"),
			"license_number": str("MH1220150012345"),
			"date_of_birth":  str("15-06-1990"),
			"validity_nt":    str("01-01-2099"),
		}, Confidence: models.Confidence{PerField: map[string]float64{"name": 0.95}}}, nil
	default:
		return &models.DocumentFields{Type: doc, Fields: map[string]*string{
			"vehicle_number": str("MH12AB1234"),
		}, Confidence: models.Confidence{Scalar: &conf}}, nil
	}
}

type agreeingMatcher struct{}

func (agreeingMatcher) Match(context.Context, string, string) (*models.FaceMatchResult, error) {
	same := true
	return &models.FaceMatchResult{SamePerson: &same, Confidence: 0.9}, nil
}

func newTestState() (*ServerState, *InMemorySessionStorage) {
	storage := NewInMemorySessionStorage()
	p := pipeline.New(
		goodGate{},
		fixedExtractor{},
		agreeingMatcher{},
		checks.NewChecker(),
		decision.NewEngine(decision.Config{}),
		nil,
	)
	return &ServerState{
		sessionStorage: storage,
		pipeline:       p,
		converter:      images.NewJPEGConverter(),
	}, storage
}

func newTestServer(t *testing.T, config ServerConfig) (http.Handler, *InMemorySessionStorage) {
	t.Helper()
	state, storage := newTestState()
	server, err := NewServer(state, config)
	require.NoError(t, err)
	return server.server.Handler, storage
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 64, 64))))
	return buf.Bytes()
}

// verifyRequest builds a multipart verify request with one PNG upload per
// document type listed.
func verifyRequest(t *testing.T, fields map[string]string, docs ...models.DocumentType) *http.Request {
	t.Helper()
	img := pngBytes(t)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for _, doc := range docs {
		part, err := writer.CreateFormFile(string(doc), string(doc)+".png")
		require.NoError(t, err)
		_, err = part.Write(img)
		require.NoError(t, err)
	}
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/kyc/verify", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestHealthEndpoint(t *testing.T) {
	handler, _ := newTestServer(t, ServerConfig{})

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, recorder.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	require.Equal(t, "healthy", body["status"])
	require.Equal(t, "kyc-verification", body["service"])
}

func TestStartVerificationSession(t *testing.T) {
	handler, storage := newTestServer(t, ServerConfig{})

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/api/kyc/start", nil))

	require.Equal(t, http.StatusOK, recorder.Code)

	var response StartVerificationResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	require.Len(t, response.SessionId, 32)
	require.Len(t, response.Nonce, 16)
	require.Equal(t, response.Nonce, storage.NonceMap[response.SessionId])
}

func TestStartVerificationRejectsGet(t *testing.T) {
	handler, _ := newTestServer(t, ServerConfig{})

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/kyc/start", nil))

	require.Equal(t, http.StatusMethodNotAllowed, recorder.Code)
}

func TestVerifyEndToEnd(t *testing.T) {
	handler, _ := newTestServer(t, ServerConfig{})

	req := verifyRequest(t, map[string]string{"rider_id": "R123"}, models.AllDocumentTypes()...)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	require.Equal(t, http.StatusOK, recorder.Code)

	var result struct {
		Status     models.VerificationStatus `json:"status"`
		Confidence float64                   `json:"confidence"`
		Reasons    []string                  `json:"reasons"`
		Extracted  map[string]map[string]any `json:"extracted"`
		Metadata   models.RequestMetadata    `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &result))

	require.Equal(t, models.StatusVerified, result.Status)
	require.Equal(t, 1.0, result.Confidence)
	require.Equal(t, []string{"All verification checks passed"}, result.Reasons)
	require.Equal(t, "R123", *result.Metadata.RiderID)
	require.Nil(t, result.Metadata.OnboardingID)

	// PII leaves the service masked.
	require.Equal(t, "XXXX XXXX 9012", result.Extracted["aadhaar_front"]["aadhaar_number"])
	require.Equal(t, "MHXXXX2345", result.Extracted["driving_license"]["license_number"])
}

func TestVerifyMissingMandatoryDocument(t *testing.T) {
	handler, _ := newTestServer(t, ServerConfig{})

	docs := []models.DocumentType{}
	for _, doc := range models.AllDocumentTypes() {
		if doc != models.DrivingLicense {
			docs = append(docs, doc)
		}
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, verifyRequest(t, nil, docs...))

	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestVerifyWithoutOptionalRC(t *testing.T) {
	handler, _ := newTestServer(t, ServerConfig{})

	docs := []models.DocumentType{}
	for _, doc := range models.AllDocumentTypes() {
		if doc != models.RC {
			docs = append(docs, doc)
		}
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, verifyRequest(t, nil, docs...))

	require.Equal(t, http.StatusOK, recorder.Code)
}

func TestVerifySessionEnforcement(t *testing.T) {
	handler, storage := newTestServer(t, ServerConfig{RequireSession: true})

	require.NoError(t, storage.StoreNonce("session-1", "nonce-1"))

	t.Run("wrong nonce is unauthorized", func(t *testing.T) {
		fields := map[string]string{"session_id": "session-1", "nonce": "wrong"}
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, verifyRequest(t, fields, models.AllDocumentTypes()...))

		require.Equal(t, http.StatusUnauthorized, recorder.Code)
	})

	t.Run("unknown session is unauthorized", func(t *testing.T) {
		fields := map[string]string{"session_id": "nope", "nonce": "nonce-1"}
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, verifyRequest(t, fields, models.AllDocumentTypes()...))

		require.Equal(t, http.StatusUnauthorized, recorder.Code)
	})

	t.Run("valid session verifies and consumes the nonce", func(t *testing.T) {
		fields := map[string]string{"session_id": "session-1", "nonce": "nonce-1"}
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, verifyRequest(t, fields, models.AllDocumentTypes()...))

		require.Equal(t, http.StatusOK, recorder.Code)
		_, err := storage.RetrieveNonce("session-1")
		require.Error(t, err)
	})
}

func TestInMemorySessionStorage(t *testing.T) {
	storage := NewInMemorySessionStorage()

	require.NoError(t, storage.StoreNonce("a", "n1"))

	nonce, err := storage.RetrieveNonce("a")
	require.NoError(t, err)
	require.Equal(t, "n1", nonce)

	require.NoError(t, storage.RemoveNonce("a"))
	require.Error(t, storage.RemoveNonce("a"))

	_, err = storage.RetrieveNonce("missing")
	require.Error(t, err)
}
