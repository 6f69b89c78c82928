package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"go-kyc-verifier/models"
)

// Match runs the face-similarity check between a license photo and a selfie.
// Transport and HTTP failures are returned as errors; an unparseable model
// response yields a degraded result with the raw output attached.
func (c *Client) Match(ctx context.Context, referencePath, probePath string) (*models.FaceMatchResult, error) {
	text, err := c.complete(ctx, c.cfg.faceModel(), faceMatchPrompt, referencePath, probePath)
	if err != nil {
		return nil, err
	}

	parsed, err := carveJSON(text)
	if err != nil {
		slog.Warn("Face match output not parseable", "error", err)
		return &models.FaceMatchResult{
			SamePerson:       nil,
			Confidence:       0.0,
			RiskLevel:        nil,
			ReasoningSummary: fmt.Sprintf("parse_error: %v", err),
			RawOutput:        text,
		}, nil
	}

	result := &models.FaceMatchResult{
		SamePerson: toBool(parsed["same_person"]),
		Confidence: toConfidence(parsed["confidence"]),
		RawOutput:  text,
	}
	if risk, ok := parsed["risk_level"].(string); ok {
		result.RiskLevel = &risk
	}
	if summary, ok := parsed["reasoning_summary"].(string); ok {
		result.ReasoningSummary = summary
	}

	slog.Info("Face match completed",
		"same_person", result.SamePerson,
		"confidence", result.Confidence)

	return result, nil
}

// toBool normalizes boolean-like model output ("yes", "true", 1) to a
// tri-state boolean.
func toBool(val interface{}) *bool {
	boolPtr := func(b bool) *bool { return &b }
	switch v := val.(type) {
	case bool:
		return boolPtr(v)
	case float64:
		return boolPtr(v != 0)
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "y", "1":
			return boolPtr(true)
		case "false", "no", "n", "0":
			return boolPtr(false)
		}
	}
	return nil
}

// toConfidence normalizes a confidence value to [0,1]. Percentages above 1
// are divided by 100 first.
func toConfidence(val interface{}) float64 {
	var conf float64
	switch v := val.(type) {
	case float64:
		conf = v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(v), "%"), 64)
		if err != nil {
			return 0.0
		}
		conf = parsed
	default:
		return 0.0
	}
	if conf > 1 {
		conf /= 100.0
	}
	if conf < 0 {
		return 0.0
	}
	if conf > 1 {
		return 1.0
	}
	return conf
}
