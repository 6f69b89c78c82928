package models

import "encoding/json"

// Confidence carries extraction confidence as either a per-field map
// (multi-field documents like Aadhaar and DL) or a single scalar
// (single-field documents like plate and RC). Exactly one side is set;
// a nil/empty Confidence means the extraction reported none.
type Confidence struct {
	PerField map[string]float64
	Scalar   *float64
}

// HasScalar reports whether the confidence is a single scalar value.
func (c Confidence) HasScalar() bool {
	return c.Scalar != nil
}

// MarshalJSON serializes as the extraction service produced it: a number for
// scalar confidence, an object otherwise.
func (c Confidence) MarshalJSON() ([]byte, error) {
	if c.Scalar != nil {
		return json.Marshal(*c.Scalar)
	}
	if c.PerField == nil {
		return json.Marshal(map[string]float64{})
	}
	return json.Marshal(c.PerField)
}

// DocumentFields is the extraction result for one document: a field map drawn
// from the document's schema (nil values mean the field was unreadable), the
// reported confidence, and an optional degradation marker. A non-empty
// ExtractionError means the fields are synthetic nulls, not real data.
type DocumentFields struct {
	Type            DocumentType
	Fields          map[string]*string
	Confidence      Confidence
	ExtractionError string

	// PlateValidation is merged in for the vehicle plate document after the
	// plate OCR validation pass; nil for all other documents.
	PlateValidation *PlateValidation
}

// Field returns the value of a named field, or nil when absent or null.
func (d *DocumentFields) Field(name string) *string {
	if d == nil || d.Fields == nil {
		return nil
	}
	return d.Fields[name]
}

// Degraded reports whether extraction failed for this document.
func (d *DocumentFields) Degraded() bool {
	return d != nil && d.ExtractionError != ""
}

// Extracted is the merged per-document extraction data for one request.
type Extracted map[DocumentType]*DocumentFields

// Field is a convenience accessor across documents.
func (e Extracted) Field(doc DocumentType, name string) *string {
	return e[doc].Field(name)
}

// PlateValidation is the structured result of the plate OCR validation pass.
type PlateValidation struct {
	PlateNumber *string `json:"plate_number"`
	PlateValid  bool    `json:"plate_valid"`
	Confidence  float64 `json:"confidence"`
	Reason      string  `json:"reason"`
}

// Plate validation reasons.
const (
	PlateReasonValid         = "VALID"
	PlateReasonInvalidFormat = "INVALID_FORMAT"
	PlateReasonNotDetected   = "NO_PLATE_DETECTED"
)
