package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"go-kyc-verifier/models"
)

// Extract reads the structured fields of one document image. Transport and
// HTTP failures are returned as errors; an unparseable model response is not
// an error and instead yields an all-null field map with extraction_error
// set, so downstream stages degrade uniformly.
func (c *Client) Extract(ctx context.Context, imagePath string, doc models.DocumentType) (*models.DocumentFields, error) {
	prompt, ok := extractionPrompts[doc]
	if !ok {
		return nil, fmt.Errorf("unknown document type: %s", doc)
	}

	text, err := c.complete(ctx, c.cfg.Model, prompt, imagePath)
	if err != nil {
		return nil, err
	}

	schema := models.DocumentSchemas[doc]

	parsed, err := carveJSON(text)
	if err != nil {
		slog.Warn("Extraction output not parseable", "document", doc, "error", err)
		fields := make(map[string]*string, len(schema.AllFields()))
		for _, name := range schema.AllFields() {
			fields[name] = nil
		}
		return &models.DocumentFields{
			Type:            doc,
			Fields:          fields,
			Confidence:      models.Confidence{PerField: map[string]float64{}},
			ExtractionError: err.Error(),
		}, nil
	}

	fields := make(map[string]*string, len(schema.AllFields()))
	for _, name := range schema.AllFields() {
		fields[name] = stringField(parsed[name])
	}

	return &models.DocumentFields{
		Type:       doc,
		Fields:     fields,
		Confidence: parseConfidence(parsed["confidence"]),
	}, nil
}

// stringField coerces a parsed JSON value to a field string; nulls and
// missing values stay nil.
func stringField(val interface{}) *string {
	switch v := val.(type) {
	case nil:
		return nil
	case string:
		return &v
	case float64:
		s := strconv.FormatFloat(v, 'f', -1, 64)
		return &s
	case bool:
		s := strconv.FormatBool(v)
		return &s
	default:
		return nil
	}
}

// parseConfidence accepts either the per-field confidence map of identity
// documents or the single score of plate and RC readings.
func parseConfidence(val interface{}) models.Confidence {
	switch v := val.(type) {
	case map[string]interface{}:
		perField := make(map[string]float64, len(v))
		for name, raw := range v {
			if conf, ok := numericConfidence(raw); ok {
				perField[name] = conf
			}
		}
		return models.Confidence{PerField: perField}
	default:
		if conf, ok := numericConfidence(val); ok {
			return models.Confidence{Scalar: &conf}
		}
		return models.Confidence{PerField: map[string]float64{}}
	}
}

// numericConfidence coerces a value to a float, accepting numeric strings
// the way models occasionally emit them.
func numericConfidence(val interface{}) (float64, bool) {
	switch v := val.(type) {
	case float64:
		return v, true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}
