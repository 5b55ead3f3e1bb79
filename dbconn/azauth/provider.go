package azauth

import (
	"context"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
)

// Scope is the OAuth resource scope for Azure Database for PostgreSQL. Every
// token request uses it; the endpoint is fixed, not operator-configurable.
const Scope = "https://ossrdbms-aad.database.windows.net/.default"

// Mode is the identity strategy a cache selected for its lifetime.
type Mode string

const (
	// ModeServicePrincipal authenticates an application identity with a
	// tenant id, client id and client secret.
	ModeServicePrincipal Mode = "service-principal"
	// ModeUserManagedIdentity authenticates a user-assigned managed identity
	// keyed by client id.
	ModeUserManagedIdentity Mode = "user-managed-identity"
	// ModeSystemManagedIdentity authenticates the identity ambient to the
	// compute resource.
	ModeSystemManagedIdentity Mode = "system-managed-identity"
)

// Config selects the identity strategy by which fields are present; see
// SelectMode for the precedence.
type Config struct {
	TenantID     string
	ClientID     string
	ClientSecret string

	// RefreshMargin is the time before expiry at which a cached token is
	// proactively replaced. Zero means DefaultRefreshMargin.
	RefreshMargin time.Duration
}

// SelectMode applies the strategy precedence: all of tenant id, client id and
// client secret present selects the service principal; a client id alone
// selects the user-assigned managed identity; otherwise the system-assigned
// managed identity.
func SelectMode(cfg Config) Mode {
	if cfg.TenantID != "" && cfg.ClientID != "" && cfg.ClientSecret != "" {
		return ModeServicePrincipal
	}

	if cfg.ClientID != "" {
		return ModeUserManagedIdentity
	}

	return ModeSystemManagedIdentity
}

// Token is one issued bearer token. It is replaced wholesale on refresh.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// TokenProvider abstracts the identity provider behind the strategy the cache
// selected. Implementations fetch a fresh token on every call; caching is the
// caller's concern.
type TokenProvider interface {
	Fetch(ctx context.Context) (Token, error)
}

// newProviderFn constructs the provider for a selected mode. Package-level so
// tests can swap the Azure SDK out.
var newProviderFn = newAzureProvider

type azureProvider struct {
	credential azcore.TokenCredential
}

func newAzureProvider(mode Mode, cfg Config) (TokenProvider, error) {
	var (
		credential azcore.TokenCredential
		err        error
	)

	switch mode {
	case ModeServicePrincipal:
		credential, err = azidentity.NewClientSecretCredential(cfg.TenantID, cfg.ClientID, cfg.ClientSecret, nil)
	case ModeUserManagedIdentity:
		credential, err = azidentity.NewManagedIdentityCredential(&azidentity.ManagedIdentityCredentialOptions{
			ID: azidentity.ClientID(cfg.ClientID),
		})
	default:
		credential, err = azidentity.NewManagedIdentityCredential(nil)
	}

	if err != nil {
		return nil, err
	}

	return &azureProvider{credential: credential}, nil
}

func (p *azureProvider) Fetch(ctx context.Context) (Token, error) {
	issued, err := p.credential.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{Scope}})
	if err != nil {
		return Token{}, err
	}

	return Token{Value: issued.Token, ExpiresAt: issued.ExpiresOn}, nil
}
