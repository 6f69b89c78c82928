package extraction

import "go-kyc-verifier/models"

// Per-document extraction prompts. The expected-format blocks mirror the
// field schemas in the models package; keep them in sync when a schema
// changes.
var extractionPrompts = map[models.DocumentType]string{
	models.AadhaarFront: `You are an Aadhaar card front extraction system.

Extract ALL readable information from this document.
Even if text is blurry or partially visible, infer carefully.

IMPORTANT DATE RULES:
- If a full date is visible, return it in DD-MM-YYYY format
- If ONLY the year is visible, return the year as YYYY
- If no date information is visible, return null
- DO NOT guess day or month if they are not visible

Return STRICT JSON only.

Expected format:
{
  "name": "string or null",
  "date_of_birth": "string or null",
  "year_of_birth": "string or null",
  "gender": "string or null",
  "aadhaar_number": "string or null",
  "confidence": {
    "name": 0.0-1.0,
    "aadhaar_number": 0.0-1.0
  }
}

Rules:
- Aadhaar number format: XXXX XXXX XXXX
- Dates in DD-MM-YYYY
- Confidence values between 0 and 1
- If field not visible, return null`,

	models.AadhaarBack: `You are an Aadhaar card back extraction system.

Extract address and other details from this document.

Return STRICT JSON only.

Expected format:
{
  "address": "string or null",
  "pincode": "string or null",
  "state": "string or null",
  "aadhaar_number": "string or null",
  "confidence": {
    "address": 0.0-1.0
  }
}

Rules:
- Pincode must be 6 digits
- If field not visible, return null`,

	models.DrivingLicense: `You are a Driving License extraction system.

Extract license details from this document.

IMPORTANT DATE RULES:
- If a full date is visible, return it in DD-MM-YYYY format
- If ONLY the year is visible, return the year as YYYY
- If no date information is visible, return null

Return STRICT JSON only.

Expected format:
{
  "name": "string or null",
  "license_number": "string or null",
  "date_of_birth": "string or null",
  "issue_date": "string or null",
  "validity_nt": "string or null",
  "validity_tr": "string or null",
  "issuing_authority": "string or null",
  "confidence": {
    "license_number": 0.0-1.0
  }
}

Rules:
- License number format: XX00 00000000000
- Dates in DD-MM-YYYY
- Check expiry dates carefully
- If field not visible, return null`,

	models.VehiclePlatePhoto: `You are a vehicle number plate extraction system.

Extract the vehicle registration number from the number plate.

Rules:
- Follow Indian vehicle number formats (e.g. MH12AB1234)
- Ignore spaces, hyphens, font styles
- If the vehicle number is not clearly visible, return null
- DO NOT guess or hallucinate

Return STRICT JSON only.

Expected format:
{
  "vehicle_number": "string or null",
  "confidence": 0.0-1.0
}`,

	models.RC: `You are a Registration Certificate (RC) extraction system.

Extract the vehicle registration number from the RC document.

Rules:
- Look for the registration number field
- Follow Indian vehicle number formats
- If the vehicle number is not clearly visible, return null
- DO NOT guess or hallucinate

Return STRICT JSON only.

Expected format:
{
  "vehicle_number": "string or null",
  "confidence": 0.0-1.0
}`,
}

const faceMatchPrompt = `You are an identity verification assistant.

You will be given two images:
1. A photo from a government-issued driving license
2. A selfie taken by a user

Task:
Determine whether both images appear to show the SAME PERSON.

Consider:
- Facial structure
- Eyes, nose, mouth
- Face shape
- Relative age
- Hairline (ignore hairstyle differences)
- Ignore lighting, image quality, or background differences

Return STRICT JSON ONLY.

Format:
{
  "same_person": true/false,
  "confidence": 0.0-1.0,
  "risk_level": "low" | "medium" | "high",
  "reasoning_summary": "short explanation"
}`
