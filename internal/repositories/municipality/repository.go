package municipality

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/database"
	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/models"
	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/tracing"
)

// MunicipalityRepository defines the interface for municipality operations
type MunicipalityRepository interface {
	GetByID(ctx context.Context, q database.Querier, id string) (*models.Municipality, error)
	GetByName(ctx context.Context, q database.Querier, name string) (*models.Municipality, error)
	Create(ctx context.Context, q database.Querier, name string) (*models.Municipality, error)
	List(ctx context.Context, q database.Querier) ([]models.Municipality, error)
}

// Repository implements MunicipalityRepository
type Repository struct {
	logger ectologger.Logger
}

// NewRepository creates a new municipality repository
func NewRepository(logger ectologger.Logger) *Repository {
	return &Repository{
		logger: logger,
	}
}

const tableName = "municipalities"

var columns = []string{"id", "name", "platform", "register_url", "created_at", "updated_at"}

// GetByID returns nil, nil when no municipality has the id.
func (r *Repository) GetByID(ctx context.Context, q database.Querier, id string) (*models.Municipality, error) {
	ctx, span := tracing.StartSpan(ctx, "MunicipalityRepository.GetByID")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(columns...).From(tableName).Where(sb.Equal("id", id))

	return r.getOne(ctx, q, sb.Build)
}

// GetByName matches the name exactly.
func (r *Repository) GetByName(ctx context.Context, q database.Querier, name string) (*models.Municipality, error) {
	ctx, span := tracing.StartSpan(ctx, "MunicipalityRepository.GetByName")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(columns...).From(tableName).Where(sb.Equal("name", name))

	return r.getOne(ctx, q, sb.Build)
}

func (r *Repository) getOne(ctx context.Context, q database.Querier, build func() (string, []any)) (*models.Municipality, error) {
	query, args := build()

	var m models.Municipality
	if err := q.GetContext(ctx, &m, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("failed to get municipality")
		return nil, fmt.Errorf("failed to get municipality: %w", err)
	}
	return &m, nil
}

// Create inserts a municipality. A concurrent insert of the same name is absorbed and the
// existing row is returned.
func (r *Repository) Create(ctx context.Context, q database.Querier, name string) (*models.Municipality, error) {
	ctx, span := tracing.StartSpan(ctx, "MunicipalityRepository.Create")
	defer span.End()

	now := time.Now().UTC()
	id := uuid.New().String()

	ib := database.NewInsertBuilder()
	ib.InsertInto(tableName)
	ib.Cols("id", "name", "created_at", "updated_at")
	ib.Values(id, name, now, now)
	database.OnConflictDoNothing(ib, "name")

	query, args := ib.Build()
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to create municipality")
		return nil, fmt.Errorf("failed to create municipality: %w", err)
	}

	m, err := r.GetByName(ctx, q, name)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("municipality %q missing after insert", name)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":   m.ID,
		"name": name,
	}).Info("created municipality")

	return m, nil
}

// List returns all municipalities ordered by name.
func (r *Repository) List(ctx context.Context, q database.Querier) ([]models.Municipality, error) {
	ctx, span := tracing.StartSpan(ctx, "MunicipalityRepository.List")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(columns...).From(tableName).OrderBy("name").Asc()

	query, args := sb.Build()

	items := []models.Municipality{}
	if err := q.SelectContext(ctx, &items, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list municipalities")
		return nil, fmt.Errorf("failed to list municipalities: %w", err)
	}
	return items, nil
}
