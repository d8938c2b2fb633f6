package repository

import (
	"context"
	"database/sql"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/cradoe/skypay/internal/models"
	"github.com/google/uuid"
)

// MemoryDatabase keeps every repository in process memory. It honours the same
// conditional-write contract as the postgres repositories and backs sandbox mode
// and tests.
type MemoryDatabase struct {
	mu sync.Mutex

	applicants  map[string]models.Applicant
	steps       map[string]map[models.StepKind]models.StepRecord
	consents    []models.DirectorConsent
	settlements []models.SettlementAccountBinding
	otps        map[string]models.OTPChallenge
	banks       map[string]models.Bank
	reviewers   map[string]models.Reviewer
	logs        []models.ActivityLog

	nowF func() time.Time
}

func NewMemoryDatabase() *MemoryDatabase {
	return &MemoryDatabase{
		applicants: make(map[string]models.Applicant),
		steps:      make(map[string]map[models.StepKind]models.StepRecord),
		otps:       make(map[string]models.OTPChallenge),
		banks:      make(map[string]models.Bank),
		reviewers:  make(map[string]models.Reviewer),
		nowF:       time.Now,
	}
}

// SetClock replaces the time source used for created and updated timestamps.
func (m *MemoryDatabase) SetClock(nowF func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nowF = nowF
}

func (m *MemoryDatabase) Applicant() ApplicantRepository   { return memApplicants{m} }
func (m *MemoryDatabase) StepRecord() StepRecordRepository { return memSteps{m} }
func (m *MemoryDatabase) Consent() ConsentRepository       { return memConsents{m} }
func (m *MemoryDatabase) Settlement() SettlementRepository { return memSettlements{m} }
func (m *MemoryDatabase) OTP() OTPRepository               { return memOTPs{m} }
func (m *MemoryDatabase) Bank() BankRepository             { return memBanks{m} }
func (m *MemoryDatabase) Reviewer() ReviewerRepository     { return memReviewers{m} }
func (m *MemoryDatabase) Activity() ActivityRepository     { return memActivity{m} }
func (m *MemoryDatabase) Close() error                     { return nil }

type memApplicants struct{ m *MemoryDatabase }

func (r memApplicants) Insert(_ context.Context, applicant *models.Applicant) (string, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	now := r.m.nowF()
	applicant.ID = uuid.NewString()
	applicant.CreatedAt = now
	applicant.UpdatedAt = now
	r.m.applicants[applicant.ID] = *applicant

	return applicant.ID, nil
}

func (r memApplicants) GetOne(_ context.Context, id string) (*models.Applicant, bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	a, ok := r.m.applicants[id]
	if !ok {
		return nil, false, nil
	}
	return &a, true, nil
}

func (r memApplicants) Update(_ context.Context, applicant *models.Applicant, expected models.ApplicantStatus) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	stored, ok := r.m.applicants[applicant.ID]
	if !ok || stored.Status != expected {
		return ErrConflict
	}

	applicant.CreatedAt = stored.CreatedAt
	applicant.UpdatedAt = r.m.nowF()
	r.m.applicants[applicant.ID] = *applicant

	return nil
}

func (r memApplicants) ListByStatus(_ context.Context, statuses ...models.ApplicantStatus) ([]models.Applicant, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	var out []models.Applicant
	for _, a := range r.m.applicants {
		if slices.Contains(statuses, a.Status) {
			out = append(out, a)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}

type memSteps struct{ m *MemoryDatabase }

func (r memSteps) Get(_ context.Context, applicantID string, kind models.StepKind) (*models.StepRecord, bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	rec, ok := r.m.steps[applicantID][kind]
	if !ok {
		return nil, false, nil
	}
	return &rec, true, nil
}

func (r memSteps) GetAll(_ context.Context, applicantID string) ([]models.StepRecord, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	var out []models.StepRecord
	for _, kind := range models.StepOrder {
		if rec, ok := r.m.steps[applicantID][kind]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r memSteps) Save(_ context.Context, record *models.StepRecord, expected models.StepStatus) error {
	if err := checkStepTransition(expected, record.Status); err != nil {
		return err
	}

	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	byKind, ok := r.m.steps[record.ApplicantID]
	if !ok {
		byKind = make(map[models.StepKind]models.StepRecord)
		r.m.steps[record.ApplicantID] = byKind
	}

	stored, exists := byKind[record.Kind]
	switch {
	case expected == models.StepNotStarted && exists:
		return ErrConflict
	case expected != models.StepNotStarted && (!exists || stored.Status != expected):
		return ErrConflict
	}

	record.UpdatedAt = r.m.nowF()
	byKind[record.Kind] = *record

	return nil
}

type memConsents struct{ m *MemoryDatabase }

func (r memConsents) Insert(_ context.Context, consent *models.DirectorConsent) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	consent.ID = uuid.NewString()
	r.m.consents = append(r.m.consents, *consent)
	return nil
}

func (r memConsents) GetByToken(_ context.Context, token string) (*models.DirectorConsent, bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	for _, c := range r.m.consents {
		if c.Token == token {
			return &c, true, nil
		}
	}
	return nil, false, nil
}

func (r memConsents) GetAllByApplicant(_ context.Context, applicantID string) ([]models.DirectorConsent, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	var out []models.DirectorConsent
	for _, c := range r.m.consents {
		if c.ApplicantID == applicantID {
			out = append(out, c)
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].IssuedAt.Before(out[j].IssuedAt) })
	return out, nil
}

func (r memConsents) UpdateStatus(_ context.Context, id string, expected, next models.ConsentStatus, at time.Time) error {
	if err := checkConsentTransition(expected, next); err != nil {
		return err
	}

	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	for i, c := range r.m.consents {
		if c.ID != id {
			continue
		}
		if c.Status != expected {
			return ErrConflict
		}
		r.m.consents[i].Status = next
		r.m.consents[i].RespondedAt = sql.NullTime{Time: at, Valid: true}
		return nil
	}

	return ErrConflict
}

type memSettlements struct{ m *MemoryDatabase }

func (r memSettlements) GetActive(_ context.Context, applicantID string) (*models.SettlementAccountBinding, bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	for _, b := range r.m.settlements {
		if b.ApplicantID == applicantID && b.Active {
			return &b, true, nil
		}
	}
	return nil, false, nil
}

func (r memSettlements) Bind(_ context.Context, binding *models.SettlementAccountBinding) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	now := r.m.nowF()
	for i, b := range r.m.settlements {
		if b.ApplicantID == binding.ApplicantID && b.Active {
			r.m.settlements[i].Active = false
			r.m.settlements[i].ArchivedAt = sql.NullTime{Time: now, Valid: true}
		}
	}

	binding.ID = uuid.NewString()
	binding.Active = true
	binding.CreatedAt = now
	r.m.settlements = append(r.m.settlements, *binding)

	return nil
}

func (r memSettlements) History(_ context.Context, applicantID string) ([]models.SettlementAccountBinding, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	var out []models.SettlementAccountBinding
	for _, b := range r.m.settlements {
		if b.ApplicantID == applicantID {
			out = append(out, b)
		}
	}
	return out, nil
}

type memOTPs struct{ m *MemoryDatabase }

func otpKey(applicantID string, channel models.OTPChannel) string {
	return applicantID + ":" + string(channel)
}

func (r memOTPs) Put(_ context.Context, challenge *models.OTPChallenge) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	c := *challenge
	c.Attempts = 0
	c.VerifiedAt = sql.NullTime{}
	r.m.otps[otpKey(c.ApplicantID, c.Channel)] = c
	return nil
}

func (r memOTPs) Get(_ context.Context, applicantID string, channel models.OTPChannel) (*models.OTPChallenge, bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	c, ok := r.m.otps[otpKey(applicantID, channel)]
	if !ok {
		return nil, false, nil
	}
	return &c, true, nil
}

func (r memOTPs) MarkVerified(_ context.Context, applicantID string, channel models.OTPChannel, at time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	key := otpKey(applicantID, channel)
	c, ok := r.m.otps[key]
	if !ok || c.VerifiedAt.Valid {
		return ErrConflict
	}

	c.VerifiedAt = sql.NullTime{Time: at, Valid: true}
	r.m.otps[key] = c
	return nil
}

func (r memOTPs) RecordFailure(_ context.Context, applicantID string, channel models.OTPChannel) (int, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	key := otpKey(applicantID, channel)
	c, ok := r.m.otps[key]
	if !ok || c.VerifiedAt.Valid {
		return 0, ErrConflict
	}

	c.Attempts++
	r.m.otps[key] = c
	return c.Attempts, nil
}

type memBanks struct{ m *MemoryDatabase }

func (r memBanks) Upsert(_ context.Context, bank models.Bank) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	r.m.banks[bank.Code] = bank
	return nil
}

func (r memBanks) Exists(_ context.Context, code string) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	_, ok := r.m.banks[code]
	return ok, nil
}

func (r memBanks) GetAll(_ context.Context) ([]models.Bank, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	out := make([]models.Bank, 0, len(r.m.banks))
	for _, b := range r.m.banks {
		out = append(out, b)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type memReviewers struct{ m *MemoryDatabase }

func (r memReviewers) Upsert(_ context.Context, reviewer *models.Reviewer) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	for id, existing := range r.m.reviewers {
		if existing.Email == reviewer.Email {
			existing.Name = reviewer.Name
			r.m.reviewers[id] = existing
			reviewer.ID = existing.ID
			reviewer.CreatedAt = existing.CreatedAt
			return nil
		}
	}

	reviewer.ID = uuid.NewString()
	reviewer.CreatedAt = r.m.nowF()
	r.m.reviewers[reviewer.ID] = *reviewer
	return nil
}

func (r memReviewers) GetByEmail(_ context.Context, email string) (*models.Reviewer, bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	for _, rv := range r.m.reviewers {
		if rv.Email == email {
			return &rv, true, nil
		}
	}
	return nil, false, nil
}

func (r memReviewers) GetOne(_ context.Context, id string) (*models.Reviewer, bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	rv, ok := r.m.reviewers[id]
	if !ok {
		return nil, false, nil
	}
	return &rv, true, nil
}

type memActivity struct{ m *MemoryDatabase }

func (r memActivity) Insert(_ context.Context, log *models.ActivityLog) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	log.ID = uuid.NewString()
	log.CreatedAt = r.m.nowF()
	r.m.logs = append(r.m.logs, *log)
	return nil
}

func (r memActivity) GetAllByApplicant(_ context.Context, applicantID string) ([]models.ActivityLog, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	var out []models.ActivityLog
	for _, l := range r.m.logs {
		if l.ApplicantID == applicantID {
			out = append(out, l)
		}
	}
	return out, nil
}
