package models

// Issue is a consistency issue code from a closed vocabulary. Issues are
// never free text; the human-readable reason lives on the decision envelope.
type Issue string

const (
	IssueInvalidAadhaarFormat     Issue = "INVALID_AADHAAR_FORMAT"
	IssueInvalidDOBFormat         Issue = "INVALID_DOB_FORMAT"
	IssueInvalidPincode           Issue = "INVALID_PINCODE"
	IssueInvalidDLFormat          Issue = "INVALID_DL_FORMAT"
	IssueInvalidPlateFormat       Issue = "INVALID_PLATE_FORMAT"
	IssueInvalidRCFormat          Issue = "INVALID_RC_FORMAT"
	IssueDLExpiredNT              Issue = "DL_EXPIRED_NT"
	IssueDLExpiredTR              Issue = "DL_EXPIRED_TR"
	IssueDLExpiryNotReadable      Issue = "DL_EXPIRY_NOT_READABLE"
	IssueAadhaarFrontBackMismatch Issue = "AADHAAR_FRONT_BACK_MISMATCH"
	IssueNameMismatch             Issue = "NAME_MISMATCH"
	IssueDOBMismatch              Issue = "DOB_MISMATCH"
	IssuePlateRCMismatch          Issue = "PLATE_RC_MISMATCH"
)

// ContainsIssue reports whether code occurs in issues.
func ContainsIssue(issues []Issue, code Issue) bool {
	for _, i := range issues {
		if i == code {
			return true
		}
	}
	return false
}
