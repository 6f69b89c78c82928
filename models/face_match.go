package models

import "encoding/json"

// FaceMatchResult is the normalized similarity judgment between the driving
// license photo and the selfie. SamePerson is nil when the scorer could not
// commit to a verdict; Confidence is always in [0,1].
type FaceMatchResult struct {
	SamePerson       *bool   `json:"same_person"`
	Confidence       float64 `json:"confidence"`
	RiskLevel        *string `json:"risk_level"`
	ReasoningSummary string  `json:"reasoning_summary"`
	RawOutput        string  `json:"raw_output,omitempty"`
}

// FaceMatchOutcome wraps a face match result with an explicit degraded state:
// either Result is set, or Err holds the collaborator failure. The zero
// outcome (neither set) means no face match was attempted.
type FaceMatchOutcome struct {
	Result *FaceMatchResult
	Err    string
}

// Attempted reports whether a face match was run at all.
func (o *FaceMatchOutcome) Attempted() bool {
	return o != nil && (o.Result != nil || o.Err != "")
}

// MarshalJSON emits the result payload, or an error object for a degraded
// outcome, matching the response envelope's face_match signal.
func (o *FaceMatchOutcome) MarshalJSON() ([]byte, error) {
	if o == nil || !o.Attempted() {
		return []byte("null"), nil
	}
	if o.Result != nil {
		return json.Marshal(o.Result)
	}
	return json.Marshal(map[string]string{"error": o.Err})
}
