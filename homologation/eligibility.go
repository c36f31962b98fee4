package homologation

import (
	"github.com/iamed/homologos-api/registryparser/entities"
)

// EligibilityRules decides which registry records may be offered as
// substitutes. The rule constants come from configuration, not from the
// records themselves, so the same record set can be re-classified under a
// different regulatory policy.
type EligibilityRules struct {
	// AcceptedRegistrationStatuses lists the registration states that
	// keep a record eligible for homologation.
	AcceptedRegistrationStatuses []string
	// ActiveCUMStatus is the CUM state required for eligibility.
	ActiveCUMStatus string
}

// DefaultEligibilityRules returns the regulator's standard policy:
// registration Vigente or in renewal, CUM Activo, not a medical sample.
func DefaultEligibilityRules() EligibilityRules {
	return EligibilityRules{
		AcceptedRegistrationStatuses: []string{entities.StatusVigente, entities.StatusRenovacion},
		ActiveCUMStatus:              entities.CUMStatusActivo,
	}
}

// Classify returns the eligibility flag for one record. It is a pure
// function of the record fields and the rule constants; the flag is
// computed once per batch and never retroactively mutated.
func (r EligibilityRules) Classify(rec *entities.MedicationRecord) bool {
	if rec == nil {
		return false
	}
	if rec.MedicalSample {
		return false
	}
	if rec.CUMStatus != r.ActiveCUMStatus {
		return false
	}
	for _, status := range r.AcceptedRegistrationStatuses {
		if rec.RegistrationStatus == status {
			return true
		}
	}
	return false
}
