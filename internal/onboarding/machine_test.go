package onboarding

import (
	"database/sql"
	"testing"
	"time"

	"github.com/cradoe/skypay/internal/models"
	"github.com/stretchr/testify/assert"
)

func verifiedStep(id string, kind models.StepKind, at time.Time) models.StepRecord {
	return models.StepRecord{
		ApplicantID: id,
		Kind:        kind,
		Status:      models.StepVerified,
		StartedAt:   sql.NullTime{Time: at, Valid: true},
		VerifiedAt:  sql.NullTime{Time: at, Valid: true},
	}
}

func snapshotWith(status models.ApplicantStatus, businessType models.BusinessType, steps ...models.StepRecord) *Snapshot {
	s := &Snapshot{
		Applicant: models.Applicant{ID: "a1", Status: status, BusinessType: businessType},
		Steps:     make(map[models.StepKind]models.StepRecord),
	}
	for _, rec := range steps {
		s.Steps[rec.Kind] = rec
	}
	return s
}

func TestMachineEvaluate(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	m := NewMachine(DefaultPolicy())

	t.Run("fresh applicant starts at contact verification", func(t *testing.T) {
		eval := m.Evaluate(snapshotWith(models.ApplicantStarted, models.BusinessRegistered), now)

		assert.Equal(t, models.ApplicantStarted, eval.Status)
		assert.Equal(t, models.StepContactVerification, eval.NextStep)
	})

	t.Run("status follows the verified prefix", func(t *testing.T) {
		s := snapshotWith(models.ApplicantStarted, models.BusinessRegistered,
			verifiedStep("a1", models.StepContactVerification, now),
			verifiedStep("a1", models.StepBusinessRegistryLookup, now),
		)

		eval := m.Evaluate(s, now)
		assert.Equal(t, models.ApplicantBusinessVerified, eval.Status)
		assert.Equal(t, models.StepDirectorIdentityVerification, eval.NextStep)
	})

	t.Run("status never moves backwards", func(t *testing.T) {
		s := snapshotWith(models.ApplicantDirectorVerified, models.BusinessRegistered,
			verifiedStep("a1", models.StepContactVerification, now),
		)

		eval := m.Evaluate(s, now)
		assert.Equal(t, models.ApplicantDirectorVerified, eval.Status)
		assert.Equal(t, models.StepBusinessRegistryLookup, eval.NextStep)
	})

	t.Run("terminal status is kept", func(t *testing.T) {
		s := snapshotWith(models.ApplicantActivated, models.BusinessRegistered)
		s.Applicant.StatusReason = "approved"

		eval := m.Evaluate(s, now)
		assert.Equal(t, models.ApplicantActivated, eval.Status)
		assert.Empty(t, eval.NextStep)
	})

	t.Run("unregistered business skips the registry", func(t *testing.T) {
		s := snapshotWith(models.ApplicantStarted, models.BusinessUnregistered,
			verifiedStep("a1", models.StepContactVerification, now),
		)

		eval := m.Evaluate(s, now)
		assert.Equal(t, models.ApplicantBusinessVerified, eval.Status)
		assert.Equal(t, models.StepDirectorIdentityVerification, eval.NextStep)
	})

	t.Run("started consent step holds the applicant at consent pending", func(t *testing.T) {
		s := snapshotWith(models.ApplicantDirectorVerified, models.BusinessRegistered,
			verifiedStep("a1", models.StepContactVerification, now),
			verifiedStep("a1", models.StepBusinessRegistryLookup, now),
			verifiedStep("a1", models.StepDirectorIdentityVerification, now),
			models.StepRecord{
				ApplicantID:   "a1",
				Kind:          models.StepDirectorConsent,
				Status:        models.StepInProgress,
				StartedAt:     sql.NullTime{Time: now, Valid: true},
				LastAttemptAt: sql.NullTime{Time: now, Valid: true},
			},
		)

		eval := m.Evaluate(s, now)
		assert.Equal(t, models.ApplicantConsentPending, eval.Status)
		assert.Equal(t, models.StepDirectorConsent, eval.NextStep)
	})

	t.Run("exhausted attempts reject", func(t *testing.T) {
		s := snapshotWith(models.ApplicantContactVerified, models.BusinessRegistered,
			verifiedStep("a1", models.StepContactVerification, now),
			models.StepRecord{
				ApplicantID:   "a1",
				Kind:          models.StepBusinessRegistryLookup,
				Status:        models.StepFailed,
				Attempts:      3,
				FailureReason: models.FailureAttemptsExceeded,
			},
		)

		eval := m.Evaluate(s, now)
		assert.Equal(t, models.ApplicantRejected, eval.Status)
		assert.Contains(t, eval.Reason, string(models.StepBusinessRegistryLookup))
	})

	t.Run("uncounted failures do not reject", func(t *testing.T) {
		s := snapshotWith(models.ApplicantContactVerified, models.BusinessRegistered,
			verifiedStep("a1", models.StepContactVerification, now),
			models.StepRecord{
				ApplicantID:   "a1",
				Kind:          models.StepBusinessRegistryLookup,
				Status:        models.StepFailed,
				Attempts:      1,
				FailureReason: models.FailureProviderTransient,
			},
		)

		eval := m.Evaluate(s, now)
		assert.Equal(t, models.ApplicantContactVerified, eval.Status)
		assert.Equal(t, models.StepBusinessRegistryLookup, eval.NextStep)
	})

	t.Run("idle step past the time budget expires", func(t *testing.T) {
		idle := now.Add(-8 * 24 * time.Hour)
		s := snapshotWith(models.ApplicantStarted, models.BusinessRegistered,
			models.StepRecord{
				ApplicantID:   "a1",
				Kind:          models.StepContactVerification,
				Status:        models.StepInProgress,
				StartedAt:     sql.NullTime{Time: idle, Valid: true},
				LastAttemptAt: sql.NullTime{Time: idle, Valid: true},
			},
		)

		eval := m.Evaluate(s, now)
		assert.Equal(t, models.ApplicantExpired, eval.Status)
	})

	t.Run("recent activity keeps a long running step alive", func(t *testing.T) {
		s := snapshotWith(models.ApplicantStarted, models.BusinessRegistered,
			models.StepRecord{
				ApplicantID:   "a1",
				Kind:          models.StepContactVerification,
				Status:        models.StepInProgress,
				StartedAt:     sql.NullTime{Time: now.Add(-30 * 24 * time.Hour), Valid: true},
				LastAttemptAt: sql.NullTime{Time: now.Add(-time.Hour), Valid: true},
			},
		)

		eval := m.Evaluate(s, now)
		assert.Equal(t, models.ApplicantStarted, eval.Status)
	})

	t.Run("failed step left past the time budget expires", func(t *testing.T) {
		idle := now.Add(-8 * 24 * time.Hour)
		s := snapshotWith(models.ApplicantContactVerified, models.BusinessRegistered,
			verifiedStep("a1", models.StepContactVerification, idle),
			models.StepRecord{
				ApplicantID:   "a1",
				Kind:          models.StepBusinessRegistryLookup,
				Status:        models.StepFailed,
				Attempts:      1,
				FailureReason: models.FailureNoMatch,
				LastAttemptAt: sql.NullTime{Time: idle, Valid: true},
			},
		)

		eval := m.Evaluate(s, now)
		assert.Equal(t, models.ApplicantExpired, eval.Status)
		assert.Equal(t, models.StepBusinessRegistryLookup, eval.TimedOut)
	})

	t.Run("unstarted step is measured from the previous verification", func(t *testing.T) {
		s := snapshotWith(models.ApplicantContactVerified, models.BusinessRegistered,
			verifiedStep("a1", models.StepContactVerification, now.Add(-8*24*time.Hour)),
		)

		eval := m.Evaluate(s, now)
		assert.Equal(t, models.ApplicantExpired, eval.Status)
		assert.Equal(t, models.StepBusinessRegistryLookup, eval.TimedOut)

		s = snapshotWith(models.ApplicantContactVerified, models.BusinessRegistered,
			verifiedStep("a1", models.StepContactVerification, now.Add(-6*24*time.Hour)),
		)

		eval = m.Evaluate(s, now)
		assert.Equal(t, models.ApplicantContactVerified, eval.Status)
		assert.Empty(t, eval.TimedOut)
	})

	t.Run("untouched applicant is measured from its last change", func(t *testing.T) {
		s := snapshotWith(models.ApplicantStarted, models.BusinessRegistered)
		s.Applicant.UpdatedAt = now.Add(-8 * 24 * time.Hour)

		eval := m.Evaluate(s, now)
		assert.Equal(t, models.ApplicantExpired, eval.Status)
		assert.Equal(t, models.StepContactVerification, eval.TimedOut)
	})
}

func TestMachineEscalation(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	m := NewMachine(DefaultPolicy())

	allVerified := func(at time.Time) *Snapshot {
		var steps []models.StepRecord
		for _, kind := range models.StepOrder {
			steps = append(steps, verifiedStep("a1", kind, at))
		}
		return snapshotWith(models.ApplicantSettlementVerified, models.BusinessRegistered, steps...)
	}

	eval := m.Evaluate(allVerified(now.Add(-time.Hour)), now)
	assert.Equal(t, models.ApplicantPendingAdminReview, eval.Status)
	assert.Empty(t, eval.NextStep)
	assert.False(t, eval.Escalate)

	eval = m.Evaluate(allVerified(now.Add(-49*time.Hour)), now)
	assert.True(t, eval.Escalate)

	s := allVerified(now.Add(-49 * time.Hour))
	s.Applicant.EscalatedAt = sql.NullTime{Time: now.Add(-time.Hour), Valid: true}
	eval = m.Evaluate(s, now)
	assert.False(t, eval.Escalate)
	assert.Equal(t, models.ApplicantPendingAdminReview, eval.Status)
}

func TestStaleVerifications(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	s := snapshotWith(models.ApplicantBusinessVerified, models.BusinessRegistered,
		verifiedStep("a1", models.StepContactVerification, now.Add(-40*24*time.Hour)),
		verifiedStep("a1", models.StepBusinessRegistryLookup, now.Add(-time.Hour)),
	)

	assert.Empty(t, NewMachine(DefaultPolicy()).StaleVerifications(s, now))

	policy := DefaultPolicy()
	policy.ReverificationWindow = 30 * 24 * time.Hour

	assert.Equal(t, []models.StepKind{models.StepContactVerification}, NewMachine(policy).StaleVerifications(s, now))

	s.Applicant.Status = models.ApplicantPendingAdminReview
	assert.Empty(t, NewMachine(policy).StaleVerifications(s, now))
}

func TestLaterStatus(t *testing.T) {
	tests := []struct {
		a, b, want models.ApplicantStatus
	}{
		{models.ApplicantStarted, models.ApplicantContactVerified, models.ApplicantContactVerified},
		{models.ApplicantConsentPending, models.ApplicantDirectorVerified, models.ApplicantConsentPending},
		{models.ApplicantPendingAdminReview, models.ApplicantRejected, models.ApplicantRejected},
		{models.ApplicantExpired, models.ApplicantPendingAdminReview, models.ApplicantExpired},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, laterStatus(tt.a, tt.b), "%s then %s", tt.a, tt.b)
	}
}
