package azauth

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultRefreshMargin is the time-before-expiry threshold below which a
// cached token is proactively refreshed.
const DefaultRefreshMargin = 5 * time.Minute

// Cache lazily constructs a credential for the selected identity strategy and
// reuses issued tokens until they approach expiry. Refreshes are serialized;
// the selected mode never changes for the life of the instance.
type Cache struct {
	cfg  Config
	mode Mode

	mu       sync.Mutex
	provider TokenProvider
	cached   *Token

	// now is swapped in tests.
	now func() time.Time
}

// NewCache creates a token cache. The identity strategy is fixed immediately
// from the config field precedence and stays stable across calls.
func NewCache(cfg Config) *Cache {
	if cfg.RefreshMargin <= 0 {
		cfg.RefreshMargin = DefaultRefreshMargin
	}

	return &Cache{
		cfg:  cfg,
		mode: SelectMode(cfg),
		now:  time.Now,
	}
}

// Mode returns the identity strategy this cache authenticates with.
func (c *Cache) Mode() Mode {
	return c.mode
}

// Token returns a bearer token for the fixed PostgreSQL scope, reusing the
// cached one while it is comfortably before expiry. The returned value is
// never empty on success.
func (c *Cache) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.provider == nil {
		provider, err := newProviderFn(c.mode, c.cfg)
		if err != nil {
			return "", &AuthenticationError{Phase: PhaseInitialization, Err: err}
		}

		c.provider = provider
	}

	if c.cached != nil && c.cached.ExpiresAt.Sub(c.now()) >= c.cfg.RefreshMargin {
		return c.cached.Value, nil
	}

	phase := PhaseTokenAcquisition
	if c.cached != nil {
		phase = PhaseTokenRefresh
	}

	issued, err := c.provider.Fetch(ctx)
	if err != nil {
		return "", &AuthenticationError{Phase: phase, Err: err}
	}

	if issued.Value == "" {
		return "", &AuthenticationError{Phase: phase, Err: errors.New("identity provider returned an empty token")}
	}

	c.cached = &issued

	return issued.Value, nil
}
