package onboarding

import (
	"fmt"
	"time"

	"github.com/cradoe/skypay/internal/models"
)

// Snapshot is everything stored for one applicant at the moment it was read.
type Snapshot struct {
	Applicant  models.Applicant
	Steps      map[models.StepKind]models.StepRecord
	Consents   []models.DirectorConsent
	Settlement *models.SettlementAccountBinding
}

// Step returns the stored record for kind, or a NotStarted record if none exists.
func (s *Snapshot) Step(kind models.StepKind) models.StepRecord {
	if rec, ok := s.Steps[kind]; ok {
		return rec
	}
	return models.StepRecord{
		ApplicantID: s.Applicant.ID,
		Kind:        kind,
		Status:      models.StepNotStarted,
	}
}

// Evaluation is the status the stored records imply at a given time.
type Evaluation struct {
	Status models.ApplicantStatus
	// NextStep is the step the applicant must complete next, empty once every
	// automated step is verified or the applicant is terminal.
	NextStep models.StepKind
	Reason   string
	Consent  ConsentAggregate
	// TimedOut names the step whose time budget ran out when Status is Expired.
	TimedOut models.StepKind
	// Escalate is set when the applicant has waited for review past the SLA and
	// has not been escalated yet.
	Escalate bool
}

// Machine computes applicant status. It holds no state and never writes.
type Machine struct {
	policy Policy
}

func NewMachine(policy Policy) Machine {
	return Machine{policy: policy}
}

func (m Machine) Evaluate(s *Snapshot, now time.Time) Evaluation {
	a := s.Applicant
	eval := Evaluation{Consent: AggregateConsents(s.Consents, now)}

	if IsTerminal(a.Status) {
		eval.Status = a.Status
		eval.Reason = a.StatusReason
		return eval
	}

	profile := ProfileFor(&a)
	computed := models.ApplicantStarted
	var lastVerified time.Time

	for _, kind := range models.StepOrder {
		if !profile.Requires(kind) {
			computed = verifiedStatus[kind]
			continue
		}

		rec := s.Step(kind)

		if rec.Status == models.StepFailed &&
			(rec.FailureReason == models.FailureAttemptsExceeded || rec.Attempts >= m.policy.MaxAttempts) {
			eval.Status = models.ApplicantRejected
			eval.Reason = fmt.Sprintf("%s failed %d times", kind, rec.Attempts)
			return eval
		}

		if rec.Status != models.StepVerified {
			if m.timedOut(rec, lastVerified, a, now) {
				eval.Status = models.ApplicantExpired
				eval.Reason = fmt.Sprintf("%s was not completed in time", kind)
				eval.TimedOut = kind
				return eval
			}

			eval.NextStep = kind
			if kind == models.StepDirectorConsent && rec.Status != models.StepNotStarted {
				computed = models.ApplicantConsentPending
			}
			break
		}

		computed = verifiedStatus[kind]
		if rec.VerifiedAt.Valid && rec.VerifiedAt.Time.After(lastVerified) {
			lastVerified = rec.VerifiedAt.Time
		}
	}

	if eval.NextStep == "" {
		computed = models.ApplicantPendingAdminReview
	}

	eval.Status = laterStatus(a.Status, computed)

	if eval.Status == models.ApplicantPendingAdminReview && !a.EscalatedAt.Valid && m.policy.AdminReviewSLA > 0 {
		if lastVerified.IsZero() {
			lastVerified = a.UpdatedAt
		}
		eval.Escalate = now.Sub(lastVerified) > m.policy.AdminReviewSLA
	}

	return eval
}

// timedOut reports a current step with no activity for longer than the budget.
// A step never attempted is measured from the previous step's verification, or
// from the applicant's last change when it is the first step.
func (m Machine) timedOut(rec models.StepRecord, prevVerified time.Time, a models.Applicant, now time.Time) bool {
	if m.policy.StepTimeBudget <= 0 {
		return false
	}

	var since time.Time
	switch {
	case rec.LastAttemptAt.Valid:
		since = rec.LastAttemptAt.Time
	case rec.StartedAt.Valid:
		since = rec.StartedAt.Time
	case !prevVerified.IsZero():
		since = prevVerified
	default:
		since = a.UpdatedAt
	}

	return !since.IsZero() && now.Sub(since) > m.policy.StepTimeBudget
}

// StaleVerifications lists verified steps older than the re-verification window.
// Applicants already in review or terminal are left alone.
func (m Machine) StaleVerifications(s *Snapshot, now time.Time) []models.StepKind {
	if m.policy.ReverificationWindow <= 0 {
		return nil
	}
	if IsTerminal(s.Applicant.Status) || s.Applicant.Status == models.ApplicantPendingAdminReview {
		return nil
	}

	var stale []models.StepKind
	for _, kind := range models.StepOrder {
		rec, ok := s.Steps[kind]
		if !ok || rec.Status != models.StepVerified || !rec.VerifiedAt.Valid {
			continue
		}
		if now.Sub(rec.VerifiedAt.Time) > m.policy.ReverificationWindow {
			stale = append(stale, kind)
		}
	}

	return stale
}
