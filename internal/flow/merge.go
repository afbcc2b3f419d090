package flow

import (
	"strings"

	"github.com/BTreeMap/IntakePipe/internal/dob"
	"github.com/BTreeMap/IntakePipe/internal/models"
)

// Merge copies extracted leaves into state under first-write-wins: a leaf is written only
// when the extracted value is non-blank and the state leaf is still unset. Values are
// trimmed; dates of birth are normalized and dropped when implausible.
// It returns the dotted paths that were written.
func Merge(state *models.IntakeState, fields models.ExtractedFields) []string {
	var written []string
	set := func(path string, dst **string, src *string) {
		if models.IsSet(*dst) || !models.IsSet(src) {
			return
		}
		v := strings.TrimSpace(*src)
		*dst = &v
		written = append(written, path)
	}

	set("patient.full_name", &state.Patient.FullName, fields.FullName())
	if raw := fields.DOB(); models.IsSet(raw) && !models.IsSet(state.Patient.DOB) {
		if iso, ok := dob.Parse(*raw); ok {
			state.Patient.DOB = &iso
			written = append(written, "patient.dob")
		}
	}
	set("insurance.payer_name", &state.Insurance.PayerName, fields.PayerName())
	set("insurance.insurance_id", &state.Insurance.InsuranceID, fields.InsuranceID())
	set("medical.chief_complaint", &state.Medical.ChiefComplaint, fields.ChiefComplaint())
	if addr := fields.Address(); addr != nil {
		src := addr.Fields()
		for i, dst := range state.Demographics.Address.Fields() {
			set("demographics.address."+dst.Name, dst.Value, *src[i].Value)
		}
	}
	return written
}
