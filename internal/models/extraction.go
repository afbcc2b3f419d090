package models

// Extraction is the per-turn output of the field extractor. It is never stored;
// the step engine merges Fields into IntakeState and discards it.
type Extraction struct {
	AssistantMessage string          `json:"assistant_message"`
	Fields           ExtractedFields `json:"extracted"`
}

// ExtractedFields mirrors IntakeState as a sparse tree. Any branch or leaf may be nil.
type ExtractedFields struct {
	Patient      *ExtractedPatient      `json:"patient,omitempty"`
	Insurance    *ExtractedInsurance    `json:"insurance,omitempty"`
	Medical      *ExtractedMedical      `json:"medical,omitempty"`
	Demographics *ExtractedDemographics `json:"demographics,omitempty"`
	Intent       *ExtractedIntent       `json:"intent,omitempty"`
}

// ExtractedPatient holds identity leaves.
type ExtractedPatient struct {
	FullName *string `json:"full_name"`
	DOB      *string `json:"dob"`
}

// ExtractedInsurance holds payer leaves.
type ExtractedInsurance struct {
	PayerName   *string `json:"payer_name"`
	InsuranceID *string `json:"insurance_id"`
}

// ExtractedMedical holds the complaint leaf.
type ExtractedMedical struct {
	ChiefComplaint *string `json:"chief_complaint"`
}

// ExtractedDemographics wraps the address branch.
type ExtractedDemographics struct {
	Address *AddressRecord `json:"address"`
}

// ExtractedIntent carries non-field signals from the utterance.
type ExtractedIntent struct {
	SkipInsuranceID *bool `json:"skip_insurance_id"`
}

// FullName returns the extracted name leaf, or nil.
func (f ExtractedFields) FullName() *string {
	if f.Patient == nil {
		return nil
	}
	return f.Patient.FullName
}

// DOB returns the extracted date-of-birth leaf, or nil.
func (f ExtractedFields) DOB() *string {
	if f.Patient == nil {
		return nil
	}
	return f.Patient.DOB
}

// PayerName returns the extracted insurer leaf, or nil.
func (f ExtractedFields) PayerName() *string {
	if f.Insurance == nil {
		return nil
	}
	return f.Insurance.PayerName
}

// InsuranceID returns the extracted member id leaf, or nil.
func (f ExtractedFields) InsuranceID() *string {
	if f.Insurance == nil {
		return nil
	}
	return f.Insurance.InsuranceID
}

// ChiefComplaint returns the extracted complaint leaf, or nil.
func (f ExtractedFields) ChiefComplaint() *string {
	if f.Medical == nil {
		return nil
	}
	return f.Medical.ChiefComplaint
}

// Address returns the extracted address branch, or nil.
func (f ExtractedFields) Address() *AddressRecord {
	if f.Demographics == nil {
		return nil
	}
	return f.Demographics.Address
}

// SkipInsuranceID reports an explicit skip intent. A missing or null intent means no skip.
func (f ExtractedFields) SkipInsuranceID() bool {
	return f.Intent != nil && f.Intent.SkipInsuranceID != nil && *f.Intent.SkipInsuranceID
}
