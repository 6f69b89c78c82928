package models

// DocumentType identifies one of the document slots in a verification request.
type DocumentType string

const (
	AadhaarFront      DocumentType = "aadhaar_front"
	AadhaarBack       DocumentType = "aadhaar_back"
	DrivingLicense    DocumentType = "driving_license"
	VehiclePlatePhoto DocumentType = "vehicle_plate_photo"
	RC                DocumentType = "rc"
	Selfie            DocumentType = "selfie"
)

// AllDocumentTypes returns every document type in canonical order.
// The order is used wherever per-document output must be deterministic.
func AllDocumentTypes() []DocumentType {
	return []DocumentType{
		AadhaarFront,
		AadhaarBack,
		DrivingLicense,
		VehiclePlatePhoto,
		RC,
		Selfie,
	}
}

// Mandatory reports whether the document must be present for a verification
// request. Only the registration certificate is optional.
func (d DocumentType) Mandatory() bool {
	return d != RC
}

// Extractable reports whether the document carries structured fields that are
// sent to the extraction service. The selfie is only used for face matching.
func (d DocumentType) Extractable() bool {
	return d != Selfie
}

// DocumentSchema describes which fields the extraction service is expected to
// return for a document type. Fields outside the schema are discarded at the
// extraction boundary.
type DocumentSchema struct {
	RequiredFields []string
	OptionalFields []string
}

// AllFields returns required then optional fields.
func (s DocumentSchema) AllFields() []string {
	fields := make([]string, 0, len(s.RequiredFields)+len(s.OptionalFields))
	fields = append(fields, s.RequiredFields...)
	fields = append(fields, s.OptionalFields...)
	return fields
}

// DocumentSchemas maps each extractable document type to its field schema.
var DocumentSchemas = map[DocumentType]DocumentSchema{
	AadhaarFront: {
		RequiredFields: []string{"name", "date_of_birth", "aadhaar_number"},
		OptionalFields: []string{"gender", "year_of_birth"},
	},
	AadhaarBack: {
		RequiredFields: []string{"address", "pincode"},
		OptionalFields: []string{"state", "aadhaar_number"},
	},
	DrivingLicense: {
		RequiredFields: []string{"name", "license_number", "date_of_birth"},
		OptionalFields: []string{"issue_date", "validity_nt", "validity_tr", "issuing_authority"},
	},
	VehiclePlatePhoto: {
		RequiredFields: []string{"vehicle_number"},
	},
	RC: {
		RequiredFields: []string{"vehicle_number"},
	},
}
