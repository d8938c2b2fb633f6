package onboarding

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cradoe/skypay/internal/models"
	"github.com/cradoe/skypay/internal/provider"
	"github.com/cradoe/skypay/internal/repository"
	"github.com/cradoe/skypay/internal/validator"
)

const maxDirectors = 10

func validTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: true}
}

// providerKey scopes the caller's idempotency key to one applicant and step.
func providerKey(rec *models.StepRecord, key string) string {
	return rec.ApplicantID + ":" + string(rec.Kind) + ":" + key
}

// touch records activity on a step without starting a new attempt.
func (o *Orchestrator) touch(ctx context.Context, rec *models.StepRecord, now time.Time) error {
	expected := rec.Status

	rec.Status = models.StepInProgress
	rec.LastAttemptAt = validTime(now)
	if !rec.StartedAt.Valid {
		rec.StartedAt = validTime(now)
	}

	return o.db.StepRecord().Save(ctx, rec, expected)
}

// begin starts an attempt. The write fails with ErrConflict if another attempt
// changed the record since it was read.
func (o *Orchestrator) begin(ctx context.Context, rec *models.StepRecord, key string, now time.Time) error {
	expected := rec.Status

	rec.Status = models.StepInProgress
	rec.IdempotencyKey = key
	rec.FailureReason = models.FailureNone
	rec.FailureDetail = ""
	rec.LastAttemptAt = validTime(now)
	if !rec.StartedAt.Valid {
		rec.StartedAt = validTime(now)
	}

	return o.db.StepRecord().Save(ctx, rec, expected)
}

func (o *Orchestrator) markVerified(ctx context.Context, rec *models.StepRecord, ref string, now time.Time) error {
	expected := rec.Status

	rec.Status = models.StepVerified
	rec.ProviderRef = ref
	rec.FailureReason = models.FailureNone
	rec.FailureDetail = ""
	rec.VerifiedAt = validTime(now)

	if err := o.db.StepRecord().Save(ctx, rec, expected); err != nil {
		return err
	}

	o.logActivity(ctx, rec.ApplicantID, "", repository.ActivityLogStepEntity, string(rec.Kind),
		fmt.Sprintf("%s verified (ref %s)", rec.Kind, ref))

	return nil
}

// fail records a failed attempt. Only counted failures move the step towards rejection.
func (o *Orchestrator) fail(ctx context.Context, rec *models.StepRecord, reason models.FailureReason, detail string, counted bool, now time.Time) (*StepFailure, error) {
	expected := rec.Status

	if counted {
		rec.Attempts++
	}
	rec.Status = models.StepFailed
	rec.FailureReason = reason
	rec.FailureDetail = detail
	rec.LastAttemptAt = validTime(now)

	if counted && rec.Attempts >= o.policy.MaxAttempts {
		rec.FailureReason = models.FailureAttemptsExceeded
	}

	if err := o.db.StepRecord().Save(ctx, rec, expected); err != nil {
		return nil, err
	}

	o.logActivity(ctx, rec.ApplicantID, "", repository.ActivityLogStepEntity, string(rec.Kind),
		fmt.Sprintf("%s failed (%s): %s", rec.Kind, rec.FailureReason, detail))

	return o.storedFailure(*rec), nil
}

// providerFailure maps a provider error onto the step. Raw provider payloads stay in the logs.
func (o *Orchestrator) providerFailure(ctx context.Context, rec *models.StepRecord, err error, now time.Time) (*StepFailure, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	o.logger.Warn("verification call failed",
		"applicant_id", rec.ApplicantID,
		"step", rec.Kind,
		"kind", provider.KindOf(err),
		"error", err,
	)

	message := "verification service is temporarily unavailable, try again shortly"
	var pErr *provider.Error
	if errors.As(err, &pErr) && pErr.Message != "" {
		message = pErr.Message
	}

	switch provider.KindOf(err) {
	case provider.KindInvalidInput:
		return o.fail(ctx, rec, models.FailureInvalidInput, message, false, now)
	case provider.KindNotFound:
		return o.fail(ctx, rec, models.FailureNoMatch, message, true, now)
	default:
		return o.fail(ctx, rec, models.FailureProviderTransient, message, false, now)
	}
}

func (o *Orchestrator) verifyContact(ctx context.Context, snap *Snapshot, rec *models.StepRecord, p StepPayload, key string, now time.Time) (*StepFailure, error) {
	if !validator.PermittedValue(p.Channel, models.OTPChannelEmail, models.OTPChannelPhone) {
		return nil, invalid("channel", "must be email or phone")
	}

	code := strings.TrimSpace(p.Code)
	if !validator.Matches(code, validator.OTPRX) {
		return nil, invalid("code", "must be 6 digits")
	}

	a := &snap.Applicant

	// a double-submitted code for a channel that is already verified changes nothing
	if (p.Channel == models.OTPChannelEmail && a.EmailVerified) ||
		(p.Channel == models.OTPChannelPhone && a.PhoneVerified) {
		return nil, nil
	}

	challenge, found, err := o.db.OTP().Get(ctx, a.ID, p.Channel)
	if err != nil {
		return nil, err
	}

	switch {
	case !found:
		return nil, invalid("code", "no code has been sent to this "+string(p.Channel))
	case !now.Before(challenge.ExpiresAt):
		return nil, invalid("code", "the code has expired, request a new one")
	case challenge.Attempts >= o.policy.OTPMaxAttempts:
		return nil, invalid("code", "too many incorrect codes, request a new one")
	}

	if err := o.begin(ctx, rec, key, now); err != nil {
		return nil, err
	}

	if !otpEqual(a.ID, string(p.Channel), code, challenge.CodeHash) {
		attempts, err := o.db.OTP().RecordFailure(ctx, a.ID, p.Channel)
		if err != nil {
			return nil, err
		}

		failure, err := o.fail(ctx, rec, models.FailureNoMatch, "the code is incorrect", false, now)
		if failure != nil {
			failure.Attempts = attempts
			failure.MaxAttempts = o.policy.OTPMaxAttempts
		}
		return failure, err
	}

	if err := o.db.OTP().MarkVerified(ctx, a.ID, p.Channel, now); err != nil {
		return nil, err
	}

	if p.Channel == models.OTPChannelEmail {
		a.EmailVerified = true
	} else {
		a.PhoneVerified = true
	}

	if err := o.db.Applicant().Update(ctx, a, a.Status); err != nil {
		return nil, err
	}

	if a.EmailVerified && a.PhoneVerified {
		return nil, o.markVerified(ctx, rec, "otp", now)
	}

	return nil, nil
}

func (o *Orchestrator) lookupRegistry(ctx context.Context, snap *Snapshot, rec *models.StepRecord, p StepPayload, key string, now time.Time) (*StepFailure, error) {
	number := strings.ToUpper(strings.TrimSpace(p.RegistryNumber))
	if !validator.Matches(number, validator.RegistryNumberRX) {
		return nil, invalid("registry_number", "must be an RC or BN number, e.g. RC123456")
	}

	if err := o.begin(ctx, rec, key, now); err != nil {
		return nil, err
	}

	record, err := callProvider(ctx, o.policy, func() (*provider.RegistryRecord, error) {
		return o.provider.LookupRegistry(ctx, providerKey(rec, key), number)
	})
	if err != nil {
		return o.providerFailure(ctx, rec, err, now)
	}

	// the registry name and address replace whatever the applicant typed
	a := &snap.Applicant
	a.BusinessName = record.LegalName
	a.BusinessAddress = record.Address
	a.RegistryNumber = number

	if err := o.db.Applicant().Update(ctx, a, a.Status); err != nil {
		return nil, err
	}

	return nil, o.markVerified(ctx, rec, record.Reference, now)
}

func (o *Orchestrator) verifyDirector(ctx context.Context, snap *Snapshot, rec *models.StepRecord, p StepPayload, key string, now time.Time) (*StepFailure, error) {
	number := strings.TrimSpace(p.IdentityNumber)
	if !validator.Matches(number, validator.IdentityNumberRX) {
		return nil, invalid("identity_number", "BVN must be 11 digits")
	}
	if !validator.IsURL(p.SelfieURL) {
		return nil, invalid("selfie_url", "upload a selfie before verifying")
	}

	if err := o.begin(ctx, rec, key, now); err != nil {
		return nil, err
	}

	identity, err := callProvider(ctx, o.policy, func() (*provider.IdentityRecord, error) {
		return o.provider.VerifyIdentity(ctx, providerKey(rec, key), number)
	})
	if err != nil {
		return o.providerFailure(ctx, rec, err, now)
	}

	liveness, err := callProvider(ctx, o.policy, func() (*provider.LivenessResult, error) {
		return o.provider.CheckLiveness(ctx, providerKey(rec, key)+":liveness", identity.Reference, p.SelfieURL)
	})
	if err != nil {
		return o.providerFailure(ctx, rec, err, now)
	}

	if !liveness.Passed {
		return o.fail(ctx, rec, models.FailureNoMatch, "the selfie did not pass the liveness check", true, now)
	}

	a := &snap.Applicant
	a.DirectorName = identity.FullName
	a.DirectorDOB = identity.DateOfBirth

	if err := o.db.Applicant().Update(ctx, a, a.Status); err != nil {
		return nil, err
	}

	return nil, o.markVerified(ctx, rec, identity.Reference, now)
}

func (o *Orchestrator) requestConsents(ctx context.Context, snap *Snapshot, rec *models.StepRecord, p StepPayload, key string, now time.Time) (*StepFailure, error) {
	if len(p.Directors) > maxDirectors {
		return nil, invalid("directors", fmt.Sprintf("must not list more than %d directors", maxDirectors))
	}
	for _, email := range p.Directors {
		if !validator.IsEmail(strings.TrimSpace(email)) {
			return nil, invalid("directors", fmt.Sprintf("%q is not a valid email address", email))
		}
	}

	if err := o.begin(ctx, rec, key, now); err != nil {
		return nil, err
	}

	if _, err := o.consents.Issue(ctx, &snap.Applicant, p.Directors); err != nil {
		var pErr *provider.Error
		if errors.As(err, &pErr) {
			return o.providerFailure(ctx, rec, err, now)
		}
		return nil, err
	}

	consents, err := o.db.Consent().GetAllByApplicant(ctx, snap.Applicant.ID)
	if err != nil {
		return nil, err
	}

	return o.applyConsentAggregate(ctx, rec, consents, now)
}

// applyConsentAggregate moves the consent step to match the current consents.
func (o *Orchestrator) applyConsentAggregate(ctx context.Context, rec *models.StepRecord, consents []models.DirectorConsent, now time.Time) (*StepFailure, error) {
	agg := AggregateConsents(consents, now)

	switch agg.Outcome {
	case ConsentOutcomeGranted:
		return nil, o.markVerified(ctx, rec, "consent", now)

	case ConsentOutcomeBlocked:
		verb := "declined"
		if agg.Reason == models.FailureConsentExpired {
			verb = "not given before the link expired"
		}
		detail := fmt.Sprintf("consent from %s was %s", agg.Director, verb)

		var failure *StepFailure
		if rec.Status == models.StepFailed && rec.FailureReason == agg.Reason && rec.FailureDetail == detail {
			failure = o.storedFailure(*rec)
		} else {
			var err error
			if failure, err = o.fail(ctx, rec, agg.Reason, detail, false, now); err != nil {
				return nil, err
			}
		}

		failure.Director = agg.Director
		return failure, nil
	}

	if rec.Status != models.StepInProgress {
		return nil, o.touch(ctx, rec, now)
	}
	return nil, nil
}

// refreshConsentStep re-derives the consent step from the stored consents and
// then reconciles the applicant.
func (o *Orchestrator) refreshConsentStep(ctx context.Context, applicantID string, now time.Time) (*Snapshot, Evaluation, error) {
	snap, err := o.load(ctx, applicantID)
	if err != nil {
		return nil, Evaluation{}, err
	}

	rec := snap.Step(models.StepDirectorConsent)
	if rec.Status == models.StepInProgress || rec.Status == models.StepFailed {
		if _, err := o.applyConsentAggregate(ctx, &rec, snap.Consents, now); err != nil {
			return nil, Evaluation{}, err
		}
	}

	return o.reconcile(ctx, applicantID, "", now)
}

func (o *Orchestrator) verifySettlement(ctx context.Context, snap *Snapshot, rec *models.StepRecord, p StepPayload, key string, now time.Time) (*StepFailure, error) {
	account := strings.TrimSpace(p.AccountNumber)
	if !validator.Matches(account, validator.AccountNumberRX) {
		return nil, invalid("account_number", "must be 10 digits")
	}

	bank := strings.TrimSpace(p.BankCode)
	if !validator.NotBlank(bank) {
		return nil, invalid("bank_code", "must be provided")
	}

	known, err := o.db.Bank().Exists(ctx, bank)
	if err != nil {
		return nil, err
	}
	if !known {
		return nil, invalid("bank_code", "unknown bank")
	}

	if err := o.begin(ctx, rec, key, now); err != nil {
		return nil, err
	}

	record, err := callProvider(ctx, o.policy, func() (*provider.AccountRecord, error) {
		return o.provider.ResolveAccount(ctx, providerKey(rec, key), account, bank)
	})
	if err != nil {
		return o.providerFailure(ctx, rec, err, now)
	}

	a := &snap.Applicant
	target := ProfileFor(a).SettlementName(a)
	score := NameSimilarity(record.HolderName, target)

	if score < o.policy.NameMatchThreshold {
		detail := fmt.Sprintf("account name %q does not match %q", record.HolderName, target)
		return o.fail(ctx, rec, models.FailureNoMatch, detail, true, now)
	}

	binding := &models.SettlementAccountBinding{
		ApplicantID:   a.ID,
		AccountNumber: account,
		BankCode:      bank,
		HolderName:    record.HolderName,
		NameMatched:   true,
		MatchScore:    score,
		Linked:        p.Linked,
	}

	if err := o.db.Settlement().Bind(ctx, binding); err != nil {
		return nil, err
	}

	o.logActivity(ctx, a.ID, "", repository.ActivityLogSettlementEntity, binding.ID,
		fmt.Sprintf("settlement account %s/%s bound (score %.2f)", bank, account, score))

	return nil, o.markVerified(ctx, rec, record.Reference, now)
}
