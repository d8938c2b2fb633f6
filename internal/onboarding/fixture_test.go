package onboarding

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/cradoe/skypay/internal/models"
	"github.com/cradoe/skypay/internal/provider"
	"github.com/cradoe/skypay/internal/repository"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	mu    sync.Mutex
	calls map[string]int

	registry    provider.RegistryRecord
	registryErr error
	identity    provider.IdentityRecord
	identityErr error
	livenessOK  bool
	holder      string
	accountErr  error
	consentErr  error
	issued      []provider.ConsentRequest
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		calls:      make(map[string]int),
		registry:   provider.RegistryRecord{Reference: "cac_1", RegistryNumber: "RC123456", LegalName: "Acme Ltd", Address: "1 Marina, Lagos"},
		identity:   provider.IdentityRecord{Reference: "bvn_1", FullName: "John Adeyemi", DateOfBirth: "1985-05-15"},
		livenessOK: true,
		holder:     "ACME LIMITED",
	}
}

func (p *fakeProvider) count(op string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[op]
}

func (p *fakeProvider) hit(op string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[op]++
}

func (p *fakeProvider) LookupRegistry(ctx context.Context, key, number string) (*provider.RegistryRecord, error) {
	p.hit("registry")
	if p.registryErr != nil {
		return nil, p.registryErr
	}
	rec := p.registry
	return &rec, nil
}

func (p *fakeProvider) VerifyIdentity(ctx context.Context, key, number string) (*provider.IdentityRecord, error) {
	p.hit("identity")
	if p.identityErr != nil {
		return nil, p.identityErr
	}
	rec := p.identity
	return &rec, nil
}

func (p *fakeProvider) CheckLiveness(ctx context.Context, key, ref, selfieURL string) (*provider.LivenessResult, error) {
	p.hit("liveness")
	return &provider.LivenessResult{Reference: "lvn_1", Passed: p.livenessOK, Score: 0.9}, nil
}

func (p *fakeProvider) ResolveAccount(ctx context.Context, key, account, bank string) (*provider.AccountRecord, error) {
	p.hit("account")
	if p.accountErr != nil {
		return nil, p.accountErr
	}
	return &provider.AccountRecord{Reference: "nuban_1", AccountNumber: account, BankCode: bank, HolderName: p.holder}, nil
}

func (p *fakeProvider) IssueConsentLink(ctx context.Context, key string, req provider.ConsentRequest) (*provider.ConsentLink, error) {
	p.hit("consent")
	if p.consentErr != nil {
		return nil, p.consentErr
	}

	p.mu.Lock()
	p.issued = append(p.issued, req)
	p.mu.Unlock()

	return &provider.ConsentLink{Reference: "cns_" + req.Token, URL: "https://consent.test/" + req.Token}, nil
}

type capturingNotifier struct {
	mu    sync.Mutex
	codes map[models.OTPChannel]string
}

func (n *capturingNotifier) SendOTP(ctx context.Context, channel models.OTPChannel, recipient, code string, expiresAt time.Time) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.codes == nil {
		n.codes = make(map[models.OTPChannel]string)
	}
	n.codes[channel] = code
	return nil
}

func (n *capturingNotifier) code(channel models.OTPChannel) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.codes[channel]
}

type capturingPublisher struct {
	mu     sync.Mutex
	events []StatusEvent
}

func (p *capturingPublisher) PublishStatus(ctx context.Context, event StatusEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

type fixture struct {
	db        *repository.MemoryDatabase
	provider  *fakeProvider
	notifier  *capturingNotifier
	publisher *capturingPublisher
	orch      *Orchestrator

	mu  sync.Mutex
	now time.Time
}

func testPolicy() Policy {
	p := DefaultPolicy()
	p.ProviderRetries = 2
	p.ProviderBackoff = time.Millisecond
	return p
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithPolicy(t, testPolicy())
}

func newFixtureWithPolicy(t *testing.T, policy Policy) *fixture {
	t.Helper()

	f := &fixture{
		db:        repository.NewMemoryDatabase(),
		provider:  newFakeProvider(),
		notifier:  &capturingNotifier{},
		publisher: &capturingPublisher{},
		now:       time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}

	f.db.SetClock(f.clock)

	f.orch = New(Config{
		DB:        f.db,
		Provider:  f.provider,
		Notifier:  f.notifier,
		Publisher: f.publisher,
		Policy:    policy,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	f.orch.SetClock(f.clock)

	require.NoError(t, f.db.Bank().Upsert(context.Background(), models.Bank{Code: "044", Name: "Access Bank"}))

	return f
}

func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func (f *fixture) start(t *testing.T, businessType models.BusinessType) string {
	t.Helper()

	a, err := f.orch.StartApplication(context.Background(), StartInput{
		Email:        "ada@acme.ng",
		Phone:        "+2348012345678",
		BusinessType: businessType,
		BusinessName: "Acme",
	})
	require.NoError(t, err)
	return a.ID
}

func (f *fixture) submit(t *testing.T, id string, kind models.StepKind, payload StepPayload, key string) *StepResult {
	t.Helper()

	result, err := f.orch.SubmitStep(context.Background(), id, kind, payload, key)
	require.NoError(t, err)
	return result
}

func (f *fixture) verifyContact(t *testing.T, id string) *StepResult {
	t.Helper()

	_, err := f.orch.SendContactOTP(context.Background(), id)
	require.NoError(t, err)

	f.submit(t, id, models.StepContactVerification,
		StepPayload{Channel: models.OTPChannelEmail, Code: f.notifier.code(models.OTPChannelEmail)}, "contact-email")

	return f.submit(t, id, models.StepContactVerification,
		StepPayload{Channel: models.OTPChannelPhone, Code: f.notifier.code(models.OTPChannelPhone)}, "contact-phone")
}

func directorPayload() StepPayload {
	return StepPayload{IdentityNumber: "10987654321", SelfieURL: "https://cdn.test/selfie.jpg"}
}

func settlementPayload() StepPayload {
	return StepPayload{AccountNumber: "0123456789", BankCode: "044"}
}

// toConsent drives a registered applicant up to the consent step with one extra director.
func (f *fixture) toConsent(t *testing.T) string {
	t.Helper()

	id := f.start(t, models.BusinessRegistered)
	f.verifyContact(t, id)
	f.submit(t, id, models.StepBusinessRegistryLookup, StepPayload{RegistryNumber: "RC123456"}, "registry-1")
	f.submit(t, id, models.StepDirectorIdentityVerification, directorPayload(), "director-1")
	f.submit(t, id, models.StepDirectorConsent, StepPayload{Directors: []string{"bola@acme.ng"}}, "consent-1")

	return id
}

func (f *fixture) grantAll(t *testing.T, id string) {
	t.Helper()

	consents, err := f.db.Consent().GetAllByApplicant(context.Background(), id)
	require.NoError(t, err)

	for _, c := range consents {
		if c.Status != models.ConsentSent {
			continue
		}
		_, err := f.orch.RespondConsent(context.Background(), c.Token, true)
		require.NoError(t, err)
	}
}

// toSettlement drives a registered applicant up to the settlement step.
func (f *fixture) toSettlement(t *testing.T) string {
	t.Helper()

	id := f.toConsent(t)
	f.grantAll(t, id)
	return id
}

func (f *fixture) step(t *testing.T, id string, kind models.StepKind) models.StepRecord {
	t.Helper()

	rec, found, err := f.db.StepRecord().Get(context.Background(), id, kind)
	require.NoError(t, err)
	require.True(t, found)
	return *rec
}

func (f *fixture) status(t *testing.T, id string) *StatusView {
	t.Helper()

	view, err := f.orch.GetApplicantStatus(context.Background(), id)
	require.NoError(t, err)
	return view
}
