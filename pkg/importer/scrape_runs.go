package importer

import (
	"context"
	"strings"

	"github.com/Gobusters/ectologger"

	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/database"
)

// ScrapeRunCache resolves scrape run references once per id for the lifetime of one run.
// It is not safe for concurrent use.
type ScrapeRunCache struct {
	store    ScrapeRunStore
	q        database.Querier
	logger   ectologger.Logger
	resolved map[string]*string
}

func NewScrapeRunCache(store ScrapeRunStore, q database.Querier, logger ectologger.Logger) *ScrapeRunCache {
	return &ScrapeRunCache{
		store:    store,
		q:        q,
		logger:   logger,
		resolved: map[string]*string{},
	}
}

// Resolve returns the id when the run exists and nil otherwise. Lookup failures are
// treated as unknown runs.
func (c *ScrapeRunCache) Resolve(ctx context.Context, id *string) *string {
	if id == nil || c.store == nil {
		return nil
	}
	key := strings.TrimSpace(*id)
	if key == "" {
		return nil
	}

	if resolved, ok := c.resolved[key]; ok {
		return resolved
	}

	var resolved *string
	exists, err := c.store.Exists(ctx, c.q, key)
	switch {
	case err != nil:
		c.logger.WithContext(ctx).WithError(err).WithField("scrape_run_id", key).Warn("scrape run lookup failed, dropping reference")
	case exists:
		resolved = &key
	default:
		c.logger.WithContext(ctx).WithField("scrape_run_id", key).Debug("scrape run not found, dropping reference")
	}

	c.resolved[key] = resolved
	return resolved
}
