package decision

import (
	"regexp"
	"strings"

	"go-kyc-verifier/models"
)

var collapseRe = regexp.MustCompile(`\s+`)

// cleanString keeps the first line of a value and collapses runs of
// whitespace. Vision models occasionally append commentary on extra lines.
func cleanString(val string) string {
	lines := strings.SplitN(val, "\n", 2)
	return collapseRe.ReplaceAllString(strings.TrimSpace(lines[0]), " ")
}

// maskAadhaar keeps only the last four digits of an Aadhaar number.
func maskAadhaar(aadhaar string) string {
	clean := strings.ReplaceAll(aadhaar, " ", "")
	if len(clean) != 12 {
		return "INVALID_FORMAT"
	}
	return "XXXX XXXX " + clean[len(clean)-4:]
}

// maskDrivingLicense keeps the first two and last four characters.
func maskDrivingLicense(dl string) string {
	if len(dl) > 6 {
		return dl[:2] + "XXXX" + dl[len(dl)-4:]
	}
	return "XXXX"
}

// maskName keeps the first initial and, when present, the last name.
func maskName(name string) string {
	parts := strings.Fields(strings.TrimSpace(name))
	if len(parts) == 0 {
		return ""
	}
	if len(parts) == 1 {
		return string([]rune(parts[0])[0]) + "XXXX"
	}
	return string([]rune(parts[0])[0]) + "XXXX " + parts[len(parts)-1]
}

// Non-sensitive fields kept as-is in the masked output.
var (
	aadhaarPassthroughFields = []string{"gender", "date_of_birth", "year_of_birth"}
	dlPassthroughFields      = []string{"date_of_birth", "issue_date", "validity_nt", "validity_tr", "issuing_authority"}
)

// maskExtracted builds the externally visible extracted-data map. Sensitive
// identifiers are masked per document type; plate and RC readings pass
// through, as does the face-match result under its own key.
func maskExtracted(extracted models.Extracted, faceMatch *models.FaceMatchOutcome) map[string]map[string]any {
	masked := make(map[string]map[string]any, len(extracted)+1)

	for doc, data := range extracted {
		fields := make(map[string]string, len(data.Fields))
		for name, value := range data.Fields {
			if value == nil {
				continue
			}
			fields[name] = cleanString(*value)
		}

		out := map[string]any{}
		switch doc {
		case models.AadhaarFront, models.AadhaarBack:
			if name, ok := fields["name"]; ok {
				out["name"] = maskName(name)
			}
			if number, ok := fields["aadhaar_number"]; ok {
				out["aadhaar_number"] = maskAadhaar(number)
			}
			copyFields(out, fields, aadhaarPassthroughFields)

		case models.DrivingLicense:
			if name, ok := fields["name"]; ok {
				out["name"] = maskName(name)
			}
			if number, ok := fields["license_number"]; ok {
				out["license_number"] = maskDrivingLicense(number)
			}
			copyFields(out, fields, dlPassthroughFields)

		case models.VehiclePlatePhoto, models.RC:
			for name, value := range fields {
				out[name] = value
			}
			if data.Confidence.Scalar != nil {
				out["confidence"] = *data.Confidence.Scalar
			}
			if data.ExtractionError != "" {
				out["extraction_error"] = data.ExtractionError
			}
			if data.PlateValidation != nil {
				out["plate_validation"] = data.PlateValidation
			}

		default:
			for name, value := range fields {
				if len(value) > 2 {
					out[name] = string([]rune(value)[0]) + "XXXX"
				} else {
					out[name] = value
				}
			}
		}
		masked[string(doc)] = out
	}

	if faceMatch != nil && faceMatch.Result != nil {
		result := faceMatch.Result
		out := map[string]any{
			"confidence":        result.Confidence,
			"reasoning_summary": result.ReasoningSummary,
		}
		if result.SamePerson != nil {
			out["same_person"] = *result.SamePerson
		}
		if result.RiskLevel != nil {
			out["risk_level"] = *result.RiskLevel
		}
		masked["face_match"] = out
	}

	return masked
}

func copyFields(dst map[string]any, src map[string]string, names []string) {
	for _, name := range names {
		if value, ok := src[name]; ok {
			dst[name] = value
		}
	}
}
