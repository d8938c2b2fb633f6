package onboarding

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/cradoe/skypay/internal/models"
	"github.com/cradoe/skypay/internal/provider"
	"github.com/cradoe/skypay/internal/repository"
	"github.com/cradoe/skypay/internal/validator"
)

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

type Config struct {
	DB        repository.Database
	Provider  provider.Client
	Notifier  Notifier
	Publisher EventPublisher
	Locker    Locker
	Policy    Policy
	Logger    *slog.Logger
}

// Orchestrator is the entry point for every onboarding operation. It keeps no
// state of its own: each call reads the applicant's records under the applicant
// lock, applies one change and recomputes the status.
type Orchestrator struct {
	db        repository.Database
	provider  provider.Client
	consents  *ConsentCoordinator
	notifier  Notifier
	publisher EventPublisher
	locker    Locker
	machine   Machine
	policy    Policy
	logger    *slog.Logger
	nowF      func() time.Time
}

func New(cfg Config) *Orchestrator {
	if cfg.Publisher == nil {
		cfg.Publisher = noopPublisher{}
	}
	if cfg.Locker == nil {
		cfg.Locker = NewKeyedMutex()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Orchestrator{
		db:        cfg.DB,
		provider:  cfg.Provider,
		consents:  NewConsentCoordinator(cfg.DB, cfg.Provider, cfg.Policy, cfg.Logger),
		notifier:  cfg.Notifier,
		publisher: cfg.Publisher,
		locker:    cfg.Locker,
		machine:   NewMachine(cfg.Policy),
		policy:    cfg.Policy,
		logger:    cfg.Logger,
		nowF:      time.Now,
	}
}

// SetClock replaces the time source of the orchestrator and its coordinator.
func (o *Orchestrator) SetClock(nowF func() time.Time) {
	o.nowF = nowF
	o.consents.nowF = nowF
}

func (o *Orchestrator) Policy() Policy {
	return o.policy
}

type StartInput struct {
	Email        string              `json:"email"`
	Phone        string              `json:"phone"`
	BusinessType models.BusinessType `json:"business_type"`
	BusinessName string              `json:"business_name"`
}

func (o *Orchestrator) StartApplication(ctx context.Context, input StartInput) (*models.Applicant, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.Phone = strings.TrimSpace(input.Phone)
	input.BusinessName = strings.TrimSpace(input.BusinessName)

	switch {
	case !validator.IsEmail(input.Email):
		return nil, invalid("email", "must be a valid email address")
	case !validator.Matches(input.Phone, validator.PhoneRX):
		return nil, invalid("phone", "must be a valid phone number")
	case !validator.PermittedValue(input.BusinessType, models.BusinessRegistered, models.BusinessUnregistered):
		return nil, invalid("business_type", "must be registered or unregistered")
	case !validator.MaxRunes(input.BusinessName, 200):
		return nil, invalid("business_name", "must not be more than 200 characters")
	}

	applicant := &models.Applicant{
		Email:        input.Email,
		Phone:        input.Phone,
		BusinessType: input.BusinessType,
		BusinessName: input.BusinessName,
		Status:       models.ApplicantStarted,
	}

	if _, err := o.db.Applicant().Insert(ctx, applicant); err != nil {
		return nil, err
	}

	o.logActivity(ctx, applicant.ID, "", repository.ActivityLogApplicantEntity, applicant.ID, "application started")
	o.logger.Info("application started", "applicant_id", applicant.ID, "business_type", applicant.BusinessType)

	return applicant, nil
}

type OTPDispatch struct {
	Channel   models.OTPChannel `json:"channel"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// SendContactOTP issues a fresh code for every contact channel not yet verified.
func (o *Orchestrator) SendContactOTP(ctx context.Context, applicantID string) ([]OTPDispatch, error) {
	unlock, err := o.locker.Lock(ctx, applicantID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	snap, err := o.load(ctx, applicantID)
	if err != nil {
		return nil, err
	}

	now := o.nowF()
	eval := o.machine.Evaluate(snap, now)
	if IsTerminal(eval.Status) {
		return nil, fmt.Errorf("%w: applicant is %s", ErrInvalidState, eval.Status)
	}

	rec := snap.Step(models.StepContactVerification)
	if rec.Status == models.StepVerified {
		return nil, fmt.Errorf("%w: contact details are already verified", ErrInvalidState)
	}

	a := snap.Applicant
	targets := map[models.OTPChannel]string{}
	if !a.EmailVerified {
		targets[models.OTPChannelEmail] = a.Email
	}
	if !a.PhoneVerified {
		targets[models.OTPChannelPhone] = a.Phone
	}

	var sent []OTPDispatch
	for _, channel := range []models.OTPChannel{models.OTPChannelEmail, models.OTPChannelPhone} {
		recipient, ok := targets[channel]
		if !ok {
			continue
		}

		code, err := generateOTP()
		if err != nil {
			return nil, err
		}

		challenge := &models.OTPChallenge{
			ApplicantID: a.ID,
			Channel:     channel,
			CodeHash:    hashOTP(a.ID, string(channel), code),
			ExpiresAt:   now.Add(o.policy.OTPExpiry),
			CreatedAt:   now,
		}

		if err := o.db.OTP().Put(ctx, challenge); err != nil {
			return nil, err
		}

		if err := o.notifier.SendOTP(ctx, channel, recipient, code, challenge.ExpiresAt); err != nil {
			o.logger.Error("otp delivery failed", "applicant_id", a.ID, "channel", channel, "error", err)
			return nil, fmt.Errorf("%w: could not deliver the %s code", ErrProviderTransient, channel)
		}

		sent = append(sent, OTPDispatch{Channel: channel, ExpiresAt: challenge.ExpiresAt})
	}

	// sending codes starts the contact step so an abandoned applicant can expire
	if err := o.touch(ctx, &rec, now); err != nil {
		return nil, err
	}

	return sent, nil
}

type StepPayload struct {
	Channel        models.OTPChannel `json:"channel"`
	Code           string            `json:"code"`
	RegistryNumber string            `json:"registry_number"`
	IdentityNumber string            `json:"identity_number"`
	SelfieURL      string            `json:"selfie_url"`
	Directors      []string          `json:"directors"`
	AccountNumber  string            `json:"account_number"`
	BankCode       string            `json:"bank_code"`
	Linked         bool              `json:"linked"`
}

type StepView struct {
	Kind          models.StepKind      `json:"kind"`
	Required      bool                 `json:"required"`
	Status        models.StepStatus    `json:"status"`
	Attempts      int                  `json:"attempts"`
	MaxAttempts   int                  `json:"max_attempts"`
	FailureReason models.FailureReason `json:"failure_reason,omitempty"`
	FailureDetail string               `json:"failure_detail,omitempty"`
	VerifiedAt    *time.Time           `json:"verified_at,omitempty"`
}

type StepResult struct {
	Status   models.ApplicantStatus `json:"status"`
	Step     StepView               `json:"step"`
	NextStep models.StepKind        `json:"next_step,omitempty"`
	Outcome  models.ApplicantStatus `json:"outcome,omitempty"`
	Failure  *StepFailure           `json:"failure,omitempty"`
}

// SubmitStep runs one attempt of a verification step. A failed attempt is not an
// error: it is reported in StepResult.Failure and the applicant keeps its status.
// Errors are reserved for bad input, unknown applicants, wrong state and conflicts.
func (o *Orchestrator) SubmitStep(ctx context.Context, applicantID string, kind models.StepKind, payload StepPayload, idempotencyKey string) (*StepResult, error) {
	if !kind.Valid() {
		return nil, invalid("step", "unknown verification step")
	}

	idempotencyKey = strings.TrimSpace(idempotencyKey)
	if idempotencyKey == "" {
		return nil, invalid("idempotency_key", "must be provided")
	}

	unlock, err := o.locker.Lock(ctx, applicantID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	snap, err := o.load(ctx, applicantID)
	if err != nil {
		return nil, err
	}

	now := o.nowF()
	eval := o.machine.Evaluate(snap, now)
	rec := snap.Step(kind)

	// verified steps answer every replay with the stored result
	if rec.Status == models.StepVerified {
		return o.stepResult(snap, eval, rec, nil), nil
	}

	// a replayed attempt that already failed for a non-transient reason returns that failure
	if rec.Status == models.StepFailed && rec.IdempotencyKey == idempotencyKey &&
		rec.FailureReason != models.FailureProviderTransient {
		return o.stepResult(snap, eval, rec, o.storedFailure(rec)), nil
	}

	if IsTerminal(eval.Status) || eval.Status == models.ApplicantPendingAdminReview {
		return nil, fmt.Errorf("%w: applicant is %s", ErrInvalidState, eval.Status)
	}

	profile := ProfileFor(&snap.Applicant)
	if !profile.Requires(kind) {
		return nil, invalid("step", fmt.Sprintf("%s is not required for %s businesses", kind, profile.Type()))
	}

	if kind != eval.NextStep {
		return nil, fmt.Errorf("%w: %s must be completed first", ErrInvalidState, eval.NextStep)
	}

	var failure *StepFailure

	switch kind {
	case models.StepContactVerification:
		failure, err = o.verifyContact(ctx, snap, &rec, payload, idempotencyKey, now)
	case models.StepBusinessRegistryLookup:
		failure, err = o.lookupRegistry(ctx, snap, &rec, payload, idempotencyKey, now)
	case models.StepDirectorIdentityVerification:
		failure, err = o.verifyDirector(ctx, snap, &rec, payload, idempotencyKey, now)
	case models.StepDirectorConsent:
		failure, err = o.requestConsents(ctx, snap, &rec, payload, idempotencyKey, now)
	case models.StepSettlementAccountVerification:
		failure, err = o.verifySettlement(ctx, snap, &rec, payload, idempotencyKey, now)
	}
	if err != nil {
		return nil, err
	}

	snap, eval, err = o.reconcile(ctx, applicantID, "", now)
	if err != nil {
		return nil, err
	}

	return o.stepResult(snap, eval, snap.Step(kind), failure), nil
}

type ConsentView struct {
	DirectorEmail string               `json:"director_email"`
	Primary       bool                 `json:"primary"`
	Status        models.ConsentStatus `json:"status"`
	IssuedAt      time.Time            `json:"issued_at"`
	ExpiresAt     time.Time            `json:"expires_at"`
}

type SettlementView struct {
	AccountNumber string  `json:"account_number"`
	BankCode      string  `json:"bank_code"`
	HolderName    string  `json:"holder_name"`
	MatchScore    float64 `json:"match_score"`
	Linked        bool    `json:"linked"`
}

type StatusView struct {
	ApplicantID     string                 `json:"applicant_id"`
	Status          models.ApplicantStatus `json:"status"`
	StatusReason    string                 `json:"status_reason,omitempty"`
	BusinessType    models.BusinessType    `json:"business_type"`
	BusinessName    string                 `json:"business_name"`
	BusinessAddress string                 `json:"business_address,omitempty"`
	DirectorName    string                 `json:"director_name,omitempty"`
	EmailVerified   bool                   `json:"email_verified"`
	PhoneVerified   bool                   `json:"phone_verified"`
	NextStep        models.StepKind        `json:"next_step,omitempty"`
	Escalated       bool                   `json:"escalated"`
	Steps           []StepView             `json:"steps"`
	Consents        []ConsentView          `json:"consents"`
	ConsentSummary  ConsentAggregate       `json:"consent_summary"`
	Settlement      *SettlementView        `json:"settlement,omitempty"`
}

// GetApplicantStatus computes the status as of now without writing anything.
func (o *Orchestrator) GetApplicantStatus(ctx context.Context, applicantID string) (*StatusView, error) {
	snap, err := o.load(ctx, applicantID)
	if err != nil {
		return nil, err
	}

	eval := o.machine.Evaluate(snap, o.nowF())
	return o.statusView(snap, eval), nil
}

// AdminDecide records the reviewer's decision. It is the only way out of review.
func (o *Orchestrator) AdminDecide(ctx context.Context, applicantID string, decision Decision, reviewerID, reason string) (models.ApplicantStatus, error) {
	reason = strings.TrimSpace(reason)

	switch {
	case !validator.PermittedValue(decision, DecisionApprove, DecisionReject):
		return "", invalid("decision", "must be approve or reject")
	case decision == DecisionReject && reason == "":
		return "", invalid("reason", "must be provided when rejecting")
	case strings.TrimSpace(reviewerID) == "":
		return "", invalid("reviewer", "must be provided")
	}

	unlock, err := o.locker.Lock(ctx, applicantID)
	if err != nil {
		return "", err
	}
	defer unlock()

	snap, err := o.load(ctx, applicantID)
	if err != nil {
		return "", err
	}

	now := o.nowF()
	eval := o.machine.Evaluate(snap, now)
	if eval.Status != models.ApplicantPendingAdminReview {
		return "", fmt.Errorf("%w: applicant is %s, not awaiting review", ErrInvalidState, eval.Status)
	}

	a := snap.Applicant
	prev := a.Status

	a.Status = models.ApplicantActivated
	if decision == DecisionReject {
		a.Status = models.ApplicantRejected
	}
	a.StatusReason = reason
	a.ReviewerID = sql.NullString{String: reviewerID, Valid: true}

	if err := o.db.Applicant().Update(ctx, &a, prev); err != nil {
		return "", err
	}

	o.logActivity(ctx, a.ID, reviewerID, repository.ActivityLogApplicantEntity, a.ID,
		fmt.Sprintf("reviewer decided %s: %s", decision, reason))
	o.publish(ctx, a, prev, false, now)

	o.logger.Info("admin decision recorded", "applicant_id", a.ID, "decision", decision, "reviewer_id", reviewerID)

	return a.Status, nil
}

// RespondConsent records a director's answer to a consent link and re-evaluates
// the consent step of the applicant it belongs to.
func (o *Orchestrator) RespondConsent(ctx context.Context, token string, grant bool) (*ConsentView, error) {
	consent, found, err := o.db.Consent().GetByToken(ctx, strings.TrimSpace(token))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrConsentNotFound
	}

	unlock, err := o.locker.Lock(ctx, consent.ApplicantID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	updated, respondErr := o.consents.Respond(ctx, consent.Token, grant)
	if respondErr != nil && !errors.Is(respondErr, ErrConsentExpired) {
		return nil, respondErr
	}

	now := o.nowF()

	if _, _, err := o.refreshConsentStep(ctx, consent.ApplicantID, now); err != nil {
		return nil, err
	}
	if respondErr != nil {
		return nil, respondErr
	}

	o.logActivity(ctx, consent.ApplicantID, updated.DirectorEmail, repository.ActivityLogConsentEntity, updated.ID,
		fmt.Sprintf("director consent %s", updated.Status))

	return &ConsentView{
		DirectorEmail: updated.DirectorEmail,
		Primary:       updated.Primary,
		Status:        updated.Status,
		IssuedAt:      updated.IssuedAt,
		ExpiresAt:     updated.ExpiresAt,
	}, nil
}

// ResendConsent replaces a director's consent link. The override flag is set for
// reviewers, who may re-issue declined consents.
func (o *Orchestrator) ResendConsent(ctx context.Context, applicantID, directorEmail string, override bool) (*ConsentView, error) {
	if !validator.IsEmail(strings.TrimSpace(directorEmail)) {
		return nil, invalid("director_email", "must be a valid email address")
	}

	unlock, err := o.locker.Lock(ctx, applicantID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	snap, err := o.load(ctx, applicantID)
	if err != nil {
		return nil, err
	}

	now := o.nowF()
	eval := o.machine.Evaluate(snap, now)
	if IsTerminal(eval.Status) {
		return nil, fmt.Errorf("%w: applicant is %s", ErrInvalidState, eval.Status)
	}

	rec := snap.Step(models.StepDirectorConsent)
	if rec.Status == models.StepNotStarted || rec.Status == models.StepVerified {
		return nil, fmt.Errorf("%w: director consent is %s", ErrInvalidState, rec.Status)
	}

	consent, err := o.consents.Resend(ctx, &snap.Applicant, directorEmail, override)
	if err != nil {
		var pErr *provider.Error
		if errors.As(err, &pErr) {
			return nil, fmt.Errorf("%w: %s", ErrProviderTransient, pErr.Message)
		}
		return nil, err
	}

	o.logActivity(ctx, applicantID, "", repository.ActivityLogConsentEntity, consent.ID,
		fmt.Sprintf("consent re-issued to %s", consent.DirectorEmail))

	if _, _, err := o.refreshConsentStep(ctx, applicantID, now); err != nil {
		return nil, err
	}

	return &ConsentView{
		DirectorEmail: consent.DirectorEmail,
		Primary:       consent.Primary,
		Status:        consent.Status,
		IssuedAt:      consent.IssuedAt,
		ExpiresAt:     consent.ExpiresAt,
	}, nil
}

// ListForReview returns applicants awaiting a decision, escalated ones first.
func (o *Orchestrator) ListForReview(ctx context.Context) ([]models.Applicant, error) {
	applicants, err := o.db.Applicant().ListByStatus(ctx, models.ApplicantPendingAdminReview)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(applicants, func(i, j int) bool {
		ei, ej := applicants[i].EscalatedAt.Valid, applicants[j].EscalatedAt.Valid
		if ei != ej {
			return ei
		}
		return applicants[i].UpdatedAt.Before(applicants[j].UpdatedAt)
	})

	return applicants, nil
}

type SweepReport struct {
	Scanned         int
	Expired         int
	Escalated       int
	ConsentsExpired int
	Reverification  int
}

// Sweep records everything that time alone has changed: overdue consents,
// stale verifications, expired applicants and review escalations.
func (o *Orchestrator) Sweep(ctx context.Context, now time.Time) (SweepReport, error) {
	var report SweepReport

	applicants, err := o.db.Applicant().ListByStatus(ctx,
		models.ApplicantStarted,
		models.ApplicantContactVerified,
		models.ApplicantBusinessVerified,
		models.ApplicantDirectorVerified,
		models.ApplicantConsentPending,
		models.ApplicantSettlementVerified,
		models.ApplicantPendingAdminReview,
	)
	if err != nil {
		return report, err
	}

	for _, a := range applicants {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		report.Scanned++

		if err := o.sweepOne(ctx, a.ID, now, &report); err != nil {
			// one broken applicant must not stop the sweep
			o.logger.Error("sweep failed for applicant", "applicant_id", a.ID, "error", err)
		}
	}

	return report, nil
}

func (o *Orchestrator) sweepOne(ctx context.Context, applicantID string, now time.Time, report *SweepReport) error {
	unlock, err := o.locker.Lock(ctx, applicantID)
	if err != nil {
		return err
	}
	defer unlock()

	snap, err := o.load(ctx, applicantID)
	if err != nil {
		return err
	}

	n, err := o.consents.ExpireOverdue(ctx, snap.Consents, now)
	if err != nil {
		return err
	}
	report.ConsentsExpired += n

	if n > 0 {
		if snap, _, err = o.refreshConsentStep(ctx, applicantID, now); err != nil {
			return err
		}
	}

	stale := o.machine.StaleVerifications(snap, now)
	for _, kind := range stale {
		rec := snap.Step(kind)
		rec.Status = models.StepExpired
		rec.FailureReason = models.FailureTimedOut
		rec.FailureDetail = "verification is older than the re-verification window"
		// the budget for redoing the step starts now
		rec.LastAttemptAt = validTime(now)

		err := o.db.StepRecord().Save(ctx, &rec, models.StepVerified)
		if errors.Is(err, repository.ErrConflict) {
			continue
		}
		if err != nil {
			return err
		}
		report.Reverification++

		if kind == models.StepContactVerification {
			// both channels have to be confirmed again
			a := snap.Applicant
			a.EmailVerified, a.PhoneVerified = false, false
			if err := o.db.Applicant().Update(ctx, &a, a.Status); err != nil {
				return err
			}
		}
	}

	if len(stale) > 0 {
		if snap, err = o.load(ctx, applicantID); err != nil {
			return err
		}
	}

	if err := o.expireTimedOutStep(ctx, snap, now); err != nil {
		return err
	}

	before := snap.Applicant

	snap, _, err = o.reconcile(ctx, applicantID, "", now)
	if err != nil {
		return err
	}

	if snap.Applicant.Status == models.ApplicantExpired && before.Status != models.ApplicantExpired {
		report.Expired++
	}
	if snap.Applicant.EscalatedAt.Valid && !before.EscalatedAt.Valid {
		report.Escalated++
	}

	return nil
}

// expireTimedOutStep records the step whose budget ran out so the step history
// shows why the applicant expired.
func (o *Orchestrator) expireTimedOutStep(ctx context.Context, snap *Snapshot, now time.Time) error {
	eval := o.machine.Evaluate(snap, now)
	if eval.TimedOut == "" {
		return nil
	}

	rec, stored := snap.Steps[eval.TimedOut]
	if !stored || rec.Status == models.StepExpired {
		return nil
	}

	expected := rec.Status
	rec.Status = models.StepExpired
	rec.FailureReason = models.FailureTimedOut
	rec.FailureDetail = eval.Reason

	err := o.db.StepRecord().Save(ctx, &rec, expected)
	if errors.Is(err, repository.ErrConflict) {
		return nil
	}
	if err != nil {
		return err
	}

	o.logActivity(ctx, rec.ApplicantID, "", repository.ActivityLogStepEntity, string(rec.Kind),
		fmt.Sprintf("%s expired: %s", rec.Kind, eval.Reason))

	return nil
}

func (o *Orchestrator) load(ctx context.Context, applicantID string) (*Snapshot, error) {
	applicant, found, err := o.db.Applicant().GetOne(ctx, applicantID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrApplicantNotFound
	}

	records, err := o.db.StepRecord().GetAll(ctx, applicantID)
	if err != nil {
		return nil, err
	}

	steps := make(map[models.StepKind]models.StepRecord, len(records))
	for _, rec := range records {
		steps[rec.Kind] = rec
	}

	consents, err := o.db.Consent().GetAllByApplicant(ctx, applicantID)
	if err != nil {
		return nil, err
	}

	settlement, _, err := o.db.Settlement().GetActive(ctx, applicantID)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		Applicant:  *applicant,
		Steps:      steps,
		Consents:   consents,
		Settlement: settlement,
	}, nil
}

// reconcile re-reads the applicant, evaluates it and stores the status if it moved.
func (o *Orchestrator) reconcile(ctx context.Context, applicantID, actorID string, now time.Time) (*Snapshot, Evaluation, error) {
	snap, err := o.load(ctx, applicantID)
	if err != nil {
		return nil, Evaluation{}, err
	}

	eval := o.machine.Evaluate(snap, now)

	a := snap.Applicant
	prev := a.Status
	if eval.Status == prev && !eval.Escalate {
		return snap, eval, nil
	}

	a.Status = eval.Status
	if eval.Status != prev && eval.Reason != "" {
		a.StatusReason = eval.Reason
	}
	if eval.Escalate {
		a.EscalatedAt = sql.NullTime{Time: now, Valid: true}
	}

	if err := o.db.Applicant().Update(ctx, &a, prev); err != nil {
		return nil, Evaluation{}, err
	}
	snap.Applicant = a

	if eval.Status != prev {
		o.logActivity(ctx, a.ID, actorID, repository.ActivityLogApplicantEntity, a.ID,
			fmt.Sprintf("status changed from %s to %s", prev, a.Status))
		o.logger.Info("applicant status changed", "applicant_id", a.ID, "from", prev, "to", a.Status)
	}
	if eval.Escalate {
		o.logActivity(ctx, a.ID, actorID, repository.ActivityLogApplicantEntity, a.ID, "review escalated past SLA")
		o.logger.Warn("applicant review escalated", "applicant_id", a.ID)
	}

	o.publish(ctx, a, prev, eval.Escalate, now)

	return snap, eval, nil
}

func (o *Orchestrator) publish(ctx context.Context, a models.Applicant, from models.ApplicantStatus, escalated bool, now time.Time) {
	err := o.publisher.PublishStatus(ctx, StatusEvent{
		ApplicantID:  a.ID,
		Email:        a.Email,
		BusinessName: a.BusinessName,
		From:         from,
		To:           a.Status,
		Reason:       a.StatusReason,
		Escalated:    escalated,
		OccurredAt:   now,
	})
	if err != nil {
		o.logger.Error("failed to publish status event", "applicant_id", a.ID, "error", err)
	}
}

func (o *Orchestrator) logActivity(ctx context.Context, applicantID, actorID, entity, entityID, description string) {
	err := o.db.Activity().Insert(ctx, &models.ActivityLog{
		ApplicantID: applicantID,
		ActorID:     actorID,
		Entity:      entity,
		EntityId:    entityID,
		Description: description,
	})
	if err != nil {
		o.logger.Error("failed to write activity log", "applicant_id", applicantID, "error", err)
	}
}

func (o *Orchestrator) stepView(rec models.StepRecord, required bool) StepView {
	view := StepView{
		Kind:          rec.Kind,
		Required:      required,
		Status:        rec.Status,
		Attempts:      rec.Attempts,
		MaxAttempts:   o.policy.MaxAttempts,
		FailureReason: rec.FailureReason,
		FailureDetail: rec.FailureDetail,
	}
	if rec.VerifiedAt.Valid {
		t := rec.VerifiedAt.Time
		view.VerifiedAt = &t
	}
	return view
}

func (o *Orchestrator) storedFailure(rec models.StepRecord) *StepFailure {
	return &StepFailure{
		Kind:        rec.Kind,
		Reason:      rec.FailureReason,
		Detail:      rec.FailureDetail,
		Attempts:    rec.Attempts,
		MaxAttempts: o.policy.MaxAttempts,
	}
}

func (o *Orchestrator) stepResult(snap *Snapshot, eval Evaluation, rec models.StepRecord, failure *StepFailure) *StepResult {
	result := &StepResult{
		Status:   eval.Status,
		Step:     o.stepView(rec, ProfileFor(&snap.Applicant).Requires(rec.Kind)),
		NextStep: eval.NextStep,
		Failure:  failure,
	}

	if IsTerminal(eval.Status) {
		result.Outcome = eval.Status
		result.NextStep = ""
	}

	return result
}

func (o *Orchestrator) statusView(snap *Snapshot, eval Evaluation) *StatusView {
	a := snap.Applicant
	profile := ProfileFor(&a)

	view := &StatusView{
		ApplicantID:     a.ID,
		Status:          eval.Status,
		StatusReason:    a.StatusReason,
		BusinessType:    a.BusinessType,
		BusinessName:    a.BusinessName,
		BusinessAddress: a.BusinessAddress,
		DirectorName:    a.DirectorName,
		EmailVerified:   a.EmailVerified,
		PhoneVerified:   a.PhoneVerified,
		NextStep:        eval.NextStep,
		Escalated:       a.EscalatedAt.Valid,
		ConsentSummary:  eval.Consent,
		Consents:        []ConsentView{},
	}

	if eval.Reason != "" {
		view.StatusReason = eval.Reason
	}

	for _, kind := range models.StepOrder {
		view.Steps = append(view.Steps, o.stepView(snap.Step(kind), profile.Requires(kind)))
	}

	for _, c := range CurrentConsents(snap.Consents, o.nowF()) {
		view.Consents = append(view.Consents, ConsentView{
			DirectorEmail: c.DirectorEmail,
			Primary:       c.Primary,
			Status:        c.Status,
			IssuedAt:      c.IssuedAt,
			ExpiresAt:     c.ExpiresAt,
		})
	}

	if s := snap.Settlement; s != nil {
		view.Settlement = &SettlementView{
			AccountNumber: s.AccountNumber,
			BankCode:      s.BankCode,
			HolderName:    s.HolderName,
			MatchScore:    s.MatchScore,
			Linked:        s.Linked,
		}
	}

	return view
}
