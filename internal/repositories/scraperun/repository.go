package scraperun

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Gobusters/ectologger"

	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/database"
	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/models"
	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/tracing"
)

// Repository reads scrape runs recorded by the scrapers.
type Repository struct {
	logger ectologger.Logger
}

// NewRepository creates a new scrape run repository
func NewRepository(logger ectologger.Logger) *Repository {
	return &Repository{
		logger: logger,
	}
}

const tableName = "scrape_runs"

var runStruct = database.NewStruct(new(models.ScrapeRun))

// GetByID returns nil, nil when the run does not exist.
func (r *Repository) GetByID(ctx context.Context, q database.Querier, id string) (*models.ScrapeRun, error) {
	ctx, span := tracing.StartSpan(ctx, "ScrapeRunRepository.GetByID")
	defer span.End()

	sb := runStruct.SelectFrom(tableName)
	sb.Where(sb.Equal("id", id))
	query, args := sb.Build()

	var run models.ScrapeRun
	if err := q.GetContext(ctx, &run, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithField("scrape_run_id", id).Warn("failed to get scrape run")
		return nil, fmt.Errorf("failed to get scrape run: %w", err)
	}
	return &run, nil
}

// Exists reports whether a scrape run with the id is recorded.
func (r *Repository) Exists(ctx context.Context, q database.Querier, id string) (bool, error) {
	run, err := r.GetByID(ctx, q, id)
	if err != nil {
		return false, err
	}
	return run != nil, nil
}
