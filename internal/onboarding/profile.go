package onboarding

import "github.com/cradoe/skypay/internal/models"

// BusinessProfile captures what differs between registered and unregistered
// businesses. It is resolved once per applicant.
type BusinessProfile interface {
	Type() models.BusinessType
	Requires(kind models.StepKind) bool
	// SettlementName is the verified name the settlement account holder must match.
	SettlementName(a *models.Applicant) string
}

type RegisteredBusiness struct{}

func (RegisteredBusiness) Type() models.BusinessType { return models.BusinessRegistered }

func (RegisteredBusiness) Requires(models.StepKind) bool { return true }

func (RegisteredBusiness) SettlementName(a *models.Applicant) string { return a.BusinessName }

// UnregisteredBusiness has no registry record, so the director is the legal owner.
type UnregisteredBusiness struct{}

func (UnregisteredBusiness) Type() models.BusinessType { return models.BusinessUnregistered }

func (UnregisteredBusiness) Requires(kind models.StepKind) bool {
	return kind != models.StepBusinessRegistryLookup
}

func (UnregisteredBusiness) SettlementName(a *models.Applicant) string { return a.DirectorName }

func ProfileFor(a *models.Applicant) BusinessProfile {
	if a.BusinessType == models.BusinessUnregistered {
		return UnregisteredBusiness{}
	}
	return RegisteredBusiness{}
}
