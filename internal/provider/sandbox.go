package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/cradoe/skypay/internal/validator"
	"github.com/google/uuid"
)

const (
	sandboxAddress       = "123 Lekki Phase 1, Lagos, Nigeria"
	sandboxDirectorName  = "John Adeyemi"
	sandboxDirectorDOB   = "1985-05-15"
	sandboxPersonalAcct  = "1234567890"
	sandboxBusinessLabel = "SkyPay Test Business"
)

// SandboxClient answers from fixed demo data without leaving the process:
//   - registry numbers starting RC123 or BN456 exist
//   - identity numbers 12345678901 and 22222222222 do not match
//   - account 1234567890 belongs to the demo director, other accounts
//     belong to the demo business sharing their last three digits
type SandboxClient struct {
	notifier ConsentNotifier
	linkBase string
}

func NewSandboxClient(notifier ConsentNotifier, linkBase string) *SandboxClient {
	return &SandboxClient{notifier: notifier, linkBase: strings.TrimRight(linkBase, "/")}
}

func sandboxRef(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

func (s *SandboxClient) LookupRegistry(ctx context.Context, key, registryNumber string) (*RegistryRecord, error) {
	const op = "lookup registry"

	if !validator.RegistryNumberRX.MatchString(registryNumber) {
		return nil, newError(op, KindInvalidInput, "enter a valid RC or BN number, e.g. RC123456", nil)
	}

	upper := strings.ToUpper(registryNumber)
	if !strings.HasPrefix(upper, "RC123") && !strings.HasPrefix(upper, "BN456") {
		return nil, newError(op, KindNotFound, "we couldn't find that registration number", nil)
	}

	return &RegistryRecord{
		Reference:      sandboxRef("cac"),
		RegistryNumber: upper,
		LegalName:      fmt.Sprintf("%s %s", sandboxBusinessLabel, upper[len(upper)-3:]),
		Address:        sandboxAddress,
	}, nil
}

func (s *SandboxClient) VerifyIdentity(ctx context.Context, key, identityNumber string) (*IdentityRecord, error) {
	const op = "verify identity"

	if !validator.IdentityNumberRX.MatchString(identityNumber) {
		return nil, newError(op, KindInvalidInput, "BVN must be 11 digits", nil)
	}

	if identityNumber == "12345678901" || identityNumber == "22222222222" {
		return nil, newError(op, KindNotFound, "BVN mismatch or invalid", nil)
	}

	return &IdentityRecord{
		Reference:   sandboxRef("bvn"),
		FullName:    sandboxDirectorName,
		DateOfBirth: sandboxDirectorDOB,
	}, nil
}

func (s *SandboxClient) CheckLiveness(ctx context.Context, key, identityRef, selfieURL string) (*LivenessResult, error) {
	if selfieURL == "" {
		return nil, newError("check liveness", KindInvalidInput, "a selfie is required", nil)
	}

	return &LivenessResult{
		Reference: sandboxRef("lvn"),
		Passed:    true,
		Score:     0.98,
	}, nil
}

func (s *SandboxClient) ResolveAccount(ctx context.Context, key, accountNumber, bankCode string) (*AccountRecord, error) {
	const op = "resolve account"

	if !validator.AccountNumberRX.MatchString(accountNumber) {
		return nil, newError(op, KindInvalidInput, "account number must be 10 digits", nil)
	}

	holder := fmt.Sprintf("%s %s", sandboxBusinessLabel, accountNumber[len(accountNumber)-3:])
	if accountNumber == sandboxPersonalAcct {
		holder = sandboxDirectorName
	}

	return &AccountRecord{
		Reference:     sandboxRef("nuban"),
		AccountNumber: accountNumber,
		BankCode:      bankCode,
		HolderName:    holder,
	}, nil
}

func (s *SandboxClient) IssueConsentLink(ctx context.Context, key string, req ConsentRequest) (*ConsentLink, error) {
	link := ConsentLink{
		Reference: sandboxRef("cns"),
		URL:       fmt.Sprintf("%s/consents/%s", s.linkBase, req.Token),
	}

	if s.notifier != nil {
		if err := s.notifier.SendConsentLink(ctx, req, link); err != nil {
			return nil, newError("issue consent link", KindProviderUnavailable, "consent link could not be delivered", err)
		}
	}

	return &link, nil
}
