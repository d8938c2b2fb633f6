package onboarding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/cradoe/skypay/internal/models"
	"github.com/cradoe/skypay/internal/provider"
	"github.com/cradoe/skypay/internal/repository"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type ConsentOutcome string

const (
	ConsentOutcomePending ConsentOutcome = "pending"
	ConsentOutcomeGranted ConsentOutcome = "granted"
	ConsentOutcomeBlocked ConsentOutcome = "blocked"
)

// ConsentAggregate is the combined state of every director's current consent.
type ConsentAggregate struct {
	Outcome ConsentOutcome `json:"outcome"`
	// Director and Reason name the first blocking director in email order.
	Director    string               `json:"director,omitempty"`
	Reason      models.FailureReason `json:"reason,omitempty"`
	Granted     int                  `json:"granted"`
	Outstanding int                  `json:"outstanding"`
}

// EffectiveConsentStatus treats a sent consent past its expiry as expired
// whether or not the sweep has recorded it yet.
func EffectiveConsentStatus(c models.DirectorConsent, now time.Time) models.ConsentStatus {
	if c.Status == models.ConsentSent && !now.Before(c.ExpiresAt) {
		return models.ConsentExpired
	}
	return c.Status
}

func directorKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CurrentConsents keeps the latest consent per director, with effective statuses,
// ordered by director email.
func CurrentConsents(consents []models.DirectorConsent, now time.Time) []models.DirectorConsent {
	latest := make(map[string]models.DirectorConsent, len(consents))

	for _, c := range consents {
		key := directorKey(c.DirectorEmail)
		prev, ok := latest[key]
		if !ok || c.IssuedAt.After(prev.IssuedAt) ||
			(c.IssuedAt.Equal(prev.IssuedAt) && c.Token > prev.Token) {
			latest[key] = c
		}
	}

	current := make([]models.DirectorConsent, 0, len(latest))
	for _, c := range latest {
		c.Status = EffectiveConsentStatus(c, now)
		current = append(current, c)
	}

	sort.Slice(current, func(i, j int) bool {
		return directorKey(current[i].DirectorEmail) < directorKey(current[j].DirectorEmail)
	})

	return current
}

// AggregateConsents depends only on the set of consents and now, never on the
// order in which responses arrived.
func AggregateConsents(consents []models.DirectorConsent, now time.Time) ConsentAggregate {
	current := CurrentConsents(consents, now)

	agg := ConsentAggregate{Outcome: ConsentOutcomePending}

	for _, c := range current {
		switch c.Status {
		case models.ConsentGranted:
			agg.Granted++
		case models.ConsentSent:
			agg.Outstanding++
		case models.ConsentDeclined, models.ConsentExpired:
			if agg.Director == "" {
				agg.Director = c.DirectorEmail
				agg.Reason = models.FailureConsentDeclined
				if c.Status == models.ConsentExpired {
					agg.Reason = models.FailureConsentExpired
				}
			}
		}
	}

	switch {
	case agg.Director != "":
		agg.Outcome = ConsentOutcomeBlocked
	case len(current) > 0 && agg.Granted == len(current):
		agg.Outcome = ConsentOutcomeGranted
	}

	return agg
}

// ConsentCoordinator issues and tracks director consents.
type ConsentCoordinator struct {
	db       repository.Database
	provider provider.Client
	policy   Policy
	logger   *slog.Logger
	nowF     func() time.Time
}

func NewConsentCoordinator(db repository.Database, client provider.Client, policy Policy, logger *slog.Logger) *ConsentCoordinator {
	return &ConsentCoordinator{
		db:       db,
		provider: client,
		policy:   policy,
		logger:   logger,
		nowF:     time.Now,
	}
}

// Issue sends one consent request per director in parallel. The applicant's own
// email is always included as the primary director. Directors who already have a
// consent are skipped, so a retried submission only reaches the ones still missing.
func (c *ConsentCoordinator) Issue(ctx context.Context, applicant *models.Applicant, secondaries []string) ([]models.DirectorConsent, error) {
	existing, err := c.db.Consent().GetAllByApplicant(ctx, applicant.ID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(existing)+len(secondaries)+1)
	for _, cons := range existing {
		seen[directorKey(cons.DirectorEmail)] = true
	}

	type target struct {
		email   string
		primary bool
	}

	var directors []target
	if !seen[directorKey(applicant.Email)] {
		directors = append(directors, target{email: applicant.Email, primary: true})
	}
	seen[directorKey(applicant.Email)] = true

	for _, email := range secondaries {
		key := directorKey(email)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		directors = append(directors, target{email: email})
	}

	issued := make([]models.DirectorConsent, len(directors))

	g, gctx := errgroup.WithContext(ctx)
	for i, d := range directors {
		g.Go(func() error {
			consent, err := c.issueOne(gctx, applicant, d.email, d.primary, generation(existing, d.email))
			if err != nil {
				return err
			}
			issued[i] = *consent
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return issued, nil
}

func generation(consents []models.DirectorConsent, email string) int {
	n := 0
	for _, c := range consents {
		if directorKey(c.DirectorEmail) == directorKey(email) {
			n++
		}
	}
	return n
}

func (c *ConsentCoordinator) issueOne(ctx context.Context, applicant *models.Applicant, email string, primary bool, gen int) (*models.DirectorConsent, error) {
	now := c.nowF()

	consent := &models.DirectorConsent{
		ApplicantID:   applicant.ID,
		DirectorEmail: strings.TrimSpace(email),
		Primary:       primary,
		Token:         uuid.NewString(),
		Status:        models.ConsentSent,
		IssuedAt:      now,
		ExpiresAt:     now.Add(c.policy.ConsentExpiry),
	}

	key := fmt.Sprintf("consent:%s:%s:%d", applicant.ID, directorKey(email), gen)

	link, err := c.provider.IssueConsentLink(ctx, key, provider.ConsentRequest{
		ApplicantID:   applicant.ID,
		BusinessName:  applicant.BusinessName,
		DirectorEmail: consent.DirectorEmail,
		Token:         consent.Token,
		ExpiresAt:     consent.ExpiresAt,
	})
	if err != nil {
		return nil, err
	}

	consent.LinkURL = link.URL

	if err := c.db.Consent().Insert(ctx, consent); err != nil {
		return nil, err
	}

	c.logger.Info("director consent issued", "applicant_id", applicant.ID, "director", consent.DirectorEmail, "primary", primary)

	return consent, nil
}

// Resend expires the director's outstanding consent and issues a new one.
// A director who granted cannot be asked again; a declined or expired consent
// may only be re-issued by a reviewer override.
func (c *ConsentCoordinator) Resend(ctx context.Context, applicant *models.Applicant, email string, override bool) (*models.DirectorConsent, error) {
	consents, err := c.db.Consent().GetAllByApplicant(ctx, applicant.ID)
	if err != nil {
		return nil, err
	}

	now := c.nowF()

	var current *models.DirectorConsent
	for _, cons := range CurrentConsents(consents, now) {
		if directorKey(cons.DirectorEmail) == directorKey(email) {
			current = &cons
			break
		}
	}

	if current == nil {
		return nil, invalid("director_email", "no consent was requested from this director")
	}

	switch current.Status {
	case models.ConsentGranted:
		return nil, invalid("director_email", "this director has already granted consent")
	case models.ConsentDeclined:
		if !override {
			return nil, invalid("director_email", "this director declined; a reviewer must re-issue the request")
		}
	case models.ConsentSent, models.ConsentExpired:
		// an overdue consent the sweep has not recorded yet is still stored as sent
		err := c.db.Consent().UpdateStatus(ctx, current.ID, models.ConsentSent, models.ConsentExpired, now)
		if err != nil && !errors.Is(err, repository.ErrConflict) {
			return nil, err
		}
	}

	return c.issueOne(ctx, applicant, current.DirectorEmail, current.Primary, generation(consents, email))
}

// Respond records a director's answer. Tokens are single use.
func (c *ConsentCoordinator) Respond(ctx context.Context, token string, grant bool) (*models.DirectorConsent, error) {
	consent, found, err := c.db.Consent().GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrConsentNotFound
	}

	if consent.Status != models.ConsentSent {
		return nil, fmt.Errorf("%w: consent link has already been used", ErrInvalidState)
	}

	now := c.nowF()

	if EffectiveConsentStatus(*consent, now) == models.ConsentExpired {
		err := c.db.Consent().UpdateStatus(ctx, consent.ID, models.ConsentSent, models.ConsentExpired, now)
		if err != nil && !errors.Is(err, repository.ErrConflict) {
			return nil, err
		}
		return nil, ErrConsentExpired
	}

	next := models.ConsentDeclined
	if grant {
		next = models.ConsentGranted
	}

	if err := c.db.Consent().UpdateStatus(ctx, consent.ID, models.ConsentSent, next, now); err != nil {
		return nil, err
	}

	consent.Status = next
	consent.RespondedAt.Time, consent.RespondedAt.Valid = now, true

	return consent, nil
}

// ExpireOverdue records the expiry of sent consents past their deadline.
func (c *ConsentCoordinator) ExpireOverdue(ctx context.Context, consents []models.DirectorConsent, now time.Time) (int, error) {
	n := 0
	for _, cons := range consents {
		if cons.Status != models.ConsentSent || now.Before(cons.ExpiresAt) {
			continue
		}

		err := c.db.Consent().UpdateStatus(ctx, cons.ID, models.ConsentSent, models.ConsentExpired, now)
		if errors.Is(err, repository.ErrConflict) {
			continue
		}
		if err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
