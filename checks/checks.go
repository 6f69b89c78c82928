// Package checks validates and cross-validates the field data extracted from
// a document bundle. All passes are pure functions over the merged field maps
// and report issues as codes from a closed vocabulary.
package checks

import (
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"go-kyc-verifier/models"
)

var (
	// Aadhaar numbers are three groups of four digits separated by single
	// spaces.
	aadhaarRe = regexp.MustCompile(`^\d{4} \d{4} \d{4}$`)

	// Canonical spaced DL number: two letters, two digits, space, 11 digits.
	dlRe = regexp.MustCompile(`^[A-Z]{2}\d{2} \d{11}$`)
	// Compact DL number with separators stripped.
	dlCompactRe = regexp.MustCompile(`^[A-Z]{2}\d{13}$`)

	pincodeRe = regexp.MustCompile(`^\d{6}$`)

	// Indian vehicle registration: 2 letters, 2 digits, 1-2 letters, 1-4 digits.
	plateRe = regexp.MustCompile(`^[A-Z]{2}[0-9]{2}[A-Z]{1,2}[0-9]{1,4}$`)

	whitespaceRe   = regexp.MustCompile(`\s+`)
	nonAlphanumRe  = regexp.MustCompile(`[^A-Z0-9]`)
	dlSeparatorsRe = regexp.MustCompile(`[\s-]+`)
)

const dateLayout = "02-01-2006"

// Checker runs the consistency passes. The clock is injectable so expiry
// checks are testable.
type Checker struct {
	now func() time.Time
}

// NewChecker creates a checker using the wall clock.
func NewChecker() *Checker {
	return &Checker{now: time.Now}
}

// NewCheckerAt creates a checker with a fixed notion of "now".
func NewCheckerAt(now func() time.Time) *Checker {
	return &Checker{now: now}
}

// NormalizeText lowercases, unicode-normalizes, and collapses whitespace for
// comparison purposes.
func NormalizeText(s *string) string {
	if s == nil || *s == "" {
		return ""
	}
	t := norm.NFKC.String(strings.TrimSpace(*s))
	return whitespaceRe.ReplaceAllString(strings.ToLower(t), " ")
}

// NormalizeVehicleNumber strips everything but letters and digits and
// uppercases the rest. Nil stays nil.
func NormalizeVehicleNumber(number *string) *string {
	if number == nil || *number == "" {
		return nil
	}
	n := nonAlphanumRe.ReplaceAllString(strings.ToUpper(*number), "")
	return &n
}

// FormatChecks validates the format of every extracted field that has one.
// The DL expiry sub-check always runs, even when the DL number is invalid.
func (c *Checker) FormatChecks(extracted models.Extracted) []models.Issue {
	issues := []models.Issue{}

	if number := extracted.Field(models.AadhaarFront, "aadhaar_number"); number != nil && *number != "" {
		if !aadhaarRe.MatchString(*number) {
			issues = append(issues, models.IssueInvalidAadhaarFormat)
		}
	}

	if dob := extracted.Field(models.AadhaarFront, "date_of_birth"); dob != nil && *dob != "" {
		if _, err := time.Parse(dateLayout, *dob); err != nil {
			issues = append(issues, models.IssueInvalidDOBFormat)
		}
	}

	if pincode := extracted.Field(models.AadhaarBack, "pincode"); pincode != nil && *pincode != "" {
		if !pincodeRe.MatchString(*pincode) {
			issues = append(issues, models.IssueInvalidPincode)
		}
	}

	if number := extracted.Field(models.DrivingLicense, "license_number"); number != nil && *number != "" {
		// Masked values contain Xs and are exempt from format checking.
		if !strings.Contains(strings.ToUpper(*number), "X") {
			compact := dlSeparatorsRe.ReplaceAllString(strings.ToUpper(*number), "")
			if !dlRe.MatchString(*number) && !dlCompactRe.MatchString(compact) {
				issues = append(issues, models.IssueInvalidDLFormat)
			}
		}
	}

	issues = append(issues, c.checkDLExpiry(extracted[models.DrivingLicense])...)

	if plate := extracted.Field(models.VehiclePlatePhoto, "vehicle_number"); plate != nil && *plate != "" {
		if normalized := NormalizeVehicleNumber(plate); normalized == nil || !plateRe.MatchString(*normalized) {
			issues = append(issues, models.IssueInvalidPlateFormat)
		}
	}

	if rc := extracted.Field(models.RC, "vehicle_number"); rc != nil && *rc != "" {
		if normalized := NormalizeVehicleNumber(rc); normalized == nil || !plateRe.MatchString(*normalized) {
			issues = append(issues, models.IssueInvalidRCFormat)
		}
	}

	return issues
}

// checkDLExpiry evaluates the non-transport and transport validity dates.
// Unparseable dates are treated as not expired; both dates absent means the
// expiry could not be read at all.
func (c *Checker) checkDLExpiry(dl *models.DocumentFields) []models.Issue {
	issues := []models.Issue{}

	validityNT := dl.Field("validity_nt")
	validityTR := dl.Field("validity_tr")

	today := c.today()

	expired := func(dateStr *string) bool {
		if dateStr == nil || *dateStr == "" {
			return false
		}
		d, err := time.Parse(dateLayout, *dateStr)
		if err != nil {
			return false
		}
		return d.Before(today)
	}

	if validityNT != nil && *validityNT != "" {
		if expired(validityNT) {
			issues = append(issues, models.IssueDLExpiredNT)
		}
	}
	if validityTR != nil && *validityTR != "" {
		if expired(validityTR) {
			issues = append(issues, models.IssueDLExpiredTR)
		}
	}

	if (validityNT == nil || *validityNT == "") && (validityTR == nil || *validityTR == "") {
		issues = append(issues, models.IssueDLExpiryNotReadable)
	}

	return issues
}

func (c *Checker) today() time.Time {
	now := c.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

// IntraDocumentConsistency cross-checks fields of the same logical document.
// The only current rule: the Aadhaar number printed on the front must equal
// the one on the back when both were read.
func (c *Checker) IntraDocumentConsistency(extracted models.Extracted) []models.Issue {
	issues := []models.Issue{}

	front := extracted.Field(models.AadhaarFront, "aadhaar_number")
	back := extracted.Field(models.AadhaarBack, "aadhaar_number")

	if front != nil && *front != "" && back != nil && *back != "" && *front != *back {
		issues = append(issues, models.IssueAadhaarFrontBackMismatch)
	}

	return issues
}

// CrossDocumentConsistency compares fields across different documents.
func (c *Checker) CrossDocumentConsistency(extracted models.Extracted) []models.Issue {
	issues := []models.Issue{}

	nameAadhaar := extracted.Field(models.AadhaarFront, "name")
	nameDL := extracted.Field(models.DrivingLicense, "name")
	if nameAadhaar != nil && *nameAadhaar != "" && nameDL != nil && *nameDL != "" {
		if NormalizeText(nameAadhaar) != NormalizeText(nameDL) {
			issues = append(issues, models.IssueNameMismatch)
		}
	}

	// DOB strings are compared raw; both documents are prompted for the same
	// date format.
	dobAadhaar := extracted.Field(models.AadhaarFront, "date_of_birth")
	dobDL := extracted.Field(models.DrivingLicense, "date_of_birth")
	if dobAadhaar != nil && *dobAadhaar != "" && dobDL != nil && *dobDL != "" && *dobAadhaar != *dobDL {
		issues = append(issues, models.IssueDOBMismatch)
	}

	plate := extracted.Field(models.VehiclePlatePhoto, "vehicle_number")
	rc := extracted.Field(models.RC, "vehicle_number")
	if plate != nil && *plate != "" && rc != nil && *rc != "" {
		normalizedPlate := NormalizeVehicleNumber(plate)
		normalizedRC := NormalizeVehicleNumber(rc)
		if normalizedPlate != nil && normalizedRC != nil && *normalizedPlate != *normalizedRC {
			issues = append(issues, models.IssuePlateRCMismatch)
		}
	}

	return issues
}

// PlateOCRValidation re-normalizes the plate reading and reports a structured
// validity tuple. The result is merged back into the plate document's data
// before decisioning, not returned as an issue list.
func (c *Checker) PlateOCRValidation(plate *models.DocumentFields) models.PlateValidation {
	number := plate.Field("vehicle_number")

	var confidence float64
	if plate != nil && plate.Confidence.Scalar != nil {
		confidence = *plate.Confidence.Scalar
	}

	if number == nil || *number == "" {
		return models.PlateValidation{
			PlateNumber: nil,
			PlateValid:  false,
			Confidence:  0,
			Reason:      models.PlateReasonNotDetected,
		}
	}

	normalized := NormalizeVehicleNumber(number)
	valid := normalized != nil && plateRe.MatchString(*normalized)

	reason := models.PlateReasonInvalidFormat
	if valid {
		reason = models.PlateReasonValid
	}

	return models.PlateValidation{
		PlateNumber: normalized,
		PlateValid:  valid,
		Confidence:  confidence,
		Reason:      reason,
	}
}
