package onboarding

import "github.com/cradoe/skypay/internal/models"

var statusRank = map[models.ApplicantStatus]int{
	models.ApplicantStarted:            0,
	models.ApplicantContactVerified:    1,
	models.ApplicantBusinessVerified:   2,
	models.ApplicantDirectorVerified:   3,
	models.ApplicantConsentPending:     4,
	models.ApplicantSettlementVerified: 5,
	models.ApplicantPendingAdminReview: 6,
	models.ApplicantActivated:          7,
}

// verifiedStatus is the status an applicant holds once the step is verified.
var verifiedStatus = map[models.StepKind]models.ApplicantStatus{
	models.StepContactVerification:           models.ApplicantContactVerified,
	models.StepBusinessRegistryLookup:        models.ApplicantBusinessVerified,
	models.StepDirectorIdentityVerification:  models.ApplicantDirectorVerified,
	models.StepDirectorConsent:               models.ApplicantConsentPending,
	models.StepSettlementAccountVerification: models.ApplicantSettlementVerified,
}

func IsTerminal(s models.ApplicantStatus) bool {
	switch s {
	case models.ApplicantActivated, models.ApplicantRejected, models.ApplicantExpired:
		return true
	}
	return false
}

// laterStatus returns whichever of a and b is further along. Terminal states win.
func laterStatus(a, b models.ApplicantStatus) models.ApplicantStatus {
	if IsTerminal(a) {
		return a
	}
	if IsTerminal(b) {
		return b
	}
	if statusRank[b] > statusRank[a] {
		return b
	}
	return a
}
