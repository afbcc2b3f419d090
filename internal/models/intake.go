// Package models defines the core data structures for IntakePipe.
//
// It includes the accumulated intake record, the step sequence, the appointment
// catalog records, and the sparse extraction tree produced per turn.
package models

import "strings"

// Patient holds identity fields.
type Patient struct {
	FullName *string `json:"full_name"`
	DOB      *string `json:"dob"` // ISO-8601 (YYYY-MM-DD) once set
}

// Insurance holds payer fields.
type Insurance struct {
	PayerName   *string `json:"payer_name"`
	InsuranceID *string `json:"insurance_id"`
}

// Medical holds the reason for the visit.
type Medical struct {
	ChiefComplaint *string `json:"chief_complaint"`
}

// AddressRecord is a postal address as collected from the patient.
type AddressRecord struct {
	Street *string `json:"street"`
	City   *string `json:"city"`
	State  *string `json:"state"`
	Zip    *string `json:"zip"`
}

// Demographics wraps the address so the JSON shape matches the extraction tree.
type Demographics struct {
	Address AddressRecord `json:"address"`
}

// Appointment references a catalog provider and slot.
type Appointment struct {
	ProviderID *string `json:"provider_id"`
	SlotID     *string `json:"slot_id"`
}

// IntakeState is the record accumulated over one intake conversation.
// A leaf that is non-nil is never overwritten by extracted data.
type IntakeState struct {
	Patient      Patient      `json:"patient"`
	Insurance    Insurance    `json:"insurance"`
	Medical      Medical      `json:"medical"`
	Demographics Demographics `json:"demographics"`
	Appointment  Appointment  `json:"appointment"`
}

// EmptyState returns an IntakeState with every leaf unset.
func EmptyState() IntakeState {
	return IntakeState{}
}

// Clone returns a deep copy so snapshots handed to collaborators cannot alias the live record.
func (s IntakeState) Clone() IntakeState {
	return IntakeState{
		Patient: Patient{
			FullName: cloneString(s.Patient.FullName),
			DOB:      cloneString(s.Patient.DOB),
		},
		Insurance: Insurance{
			PayerName:   cloneString(s.Insurance.PayerName),
			InsuranceID: cloneString(s.Insurance.InsuranceID),
		},
		Medical: Medical{
			ChiefComplaint: cloneString(s.Medical.ChiefComplaint),
		},
		Demographics: Demographics{Address: s.Demographics.Address.Clone()},
		Appointment: Appointment{
			ProviderID: cloneString(s.Appointment.ProviderID),
			SlotID:     cloneString(s.Appointment.SlotID),
		},
	}
}

// Clone returns a deep copy of the address.
func (a AddressRecord) Clone() AddressRecord {
	return AddressRecord{
		Street: cloneString(a.Street),
		City:   cloneString(a.City),
		State:  cloneString(a.State),
		Zip:    cloneString(a.Zip),
	}
}

// Complete reports whether all four subfields are set.
func (a AddressRecord) Complete() bool {
	return len(a.Missing()) == 0
}

// Missing returns the names of unset subfields in street, city, state, zip order.
func (a AddressRecord) Missing() []string {
	var missing []string
	for _, f := range a.Fields() {
		if !IsSet(*f.Value) {
			missing = append(missing, f.Name)
		}
	}
	return missing
}

// Line renders the address as a single line, e.g. "1 Main St, Springfield, IL 62701".
func (a AddressRecord) Line() string {
	return strings.TrimSpace(Value(a.Street) + ", " + Value(a.City) + ", " + Value(a.State) + " " + Value(a.Zip))
}

// AddressField names one address subfield and points at its storage.
type AddressField struct {
	Name  string
	Value **string
}

// Fields exposes the subfields in street, city, state, zip order.
func (a *AddressRecord) Fields() []AddressField {
	return []AddressField{
		{"street", &a.Street},
		{"city", &a.City},
		{"state", &a.State},
		{"zip", &a.Zip},
	}
}

// IsSet reports whether p holds a non-blank value.
func IsSet(p *string) bool {
	return p != nil && strings.TrimSpace(*p) != ""
}

// Value dereferences p, returning "" for nil.
func Value(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// String returns a pointer to s.
func String(s string) *string {
	return &s
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
