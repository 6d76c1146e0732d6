package secrets

import (
	"context"

	"github.com/dmitrijs2005/chatkeeper/internal/logging"
)

// Chain asks each provider in order and returns the first complete result.
// A failing provider is logged and skipped so that, for example, an
// unreachable Vault falls back to local environment values. When no provider
// is complete the partial results are merged, earlier providers first, and
// returned for the caller to reject.
type Chain struct {
	providers []Provider
	logger    logging.Logger
}

func NewChain(logger logging.Logger, providers ...Provider) *Chain {
	return &Chain{providers: providers, logger: logger.With("module", "secrets")}
}

func (c *Chain) ResolveDatabaseConfig(ctx context.Context) (DatabaseConfig, error) {
	var merged DatabaseConfig
	var lastErr error

	for i, p := range c.providers {
		cfg, err := p.ResolveDatabaseConfig(ctx)
		if err != nil {
			c.logger.Warn(ctx, "secrets provider failed, falling back", "provider", i, "error", err)
			lastErr = err
			continue
		}
		if cfg.Complete() {
			return cfg, nil
		}
		merged = merged.merge(cfg)
	}

	if merged == (DatabaseConfig{}) && lastErr != nil {
		return merged, lastErr
	}
	return merged, nil
}
