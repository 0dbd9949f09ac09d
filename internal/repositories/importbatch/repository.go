package importbatch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/database"
	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/models"
	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/tracing"
)

// ImportBatchRepository defines the interface for import batch ledger operations
type ImportBatchRepository interface {
	Create(ctx context.Context, q database.Querier, batch *models.ImportBatch) error
	Finalize(ctx context.Context, q database.Querier, batch *models.ImportBatch) error
	GetByID(ctx context.Context, q database.Querier, id string) (*models.ImportBatch, error)
	List(ctx context.Context, q database.Querier, municipalityID string, page, pageSize int) ([]models.ImportBatch, int, error)
}

// Repository implements ImportBatchRepository
type Repository struct {
	logger ectologger.Logger
}

// NewRepository creates a new import batch repository
func NewRepository(logger ectologger.Logger) *Repository {
	return &Repository{
		logger: logger,
	}
}

const tableName = "import_batches"

var batchStruct = database.NewStruct(new(models.ImportBatch))

// Create inserts the batch, assigning its id and creation time.
func (r *Repository) Create(ctx context.Context, q database.Querier, batch *models.ImportBatch) error {
	ctx, span := tracing.StartSpan(ctx, "ImportBatchRepository.Create")
	defer span.End()

	if batch.ID == "" {
		batch.ID = uuid.New().String()
	}
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = time.Now().UTC()
	}
	if batch.Errors.Data == nil {
		batch.Errors.Data = []string{}
	}

	query, args := batchStruct.InsertInto(tableName, batch).Build()
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to create import batch")
		tracing.Fail(span, err, "insert failed")
		return fmt.Errorf("failed to create import batch: %w", err)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"batch_id":        batch.ID,
		"municipality_id": batch.MunicipalityID,
		"mode":            batch.ImportMode,
	}).Info("created import batch")

	return nil
}

// Finalize writes the batch's status, counters, errors and completion time.
func (r *Repository) Finalize(ctx context.Context, q database.Querier, batch *models.ImportBatch) error {
	ctx, span := tracing.StartSpan(ctx, "ImportBatchRepository.Finalize")
	defer span.End()

	if batch.Errors.Data == nil {
		batch.Errors.Data = []string{}
	}

	ub := database.NewUpdateBuilder()
	ub.Update(tableName).Set(
		ub.Assign("status", batch.Status),
		ub.Assign("total_records", batch.TotalRecords),
		ub.Assign("imported_count", batch.ImportedCount),
		ub.Assign("updated_count", batch.UpdatedCount),
		ub.Assign("skipped_count", batch.SkippedCount),
		ub.Assign("error_count", batch.ErrorCount),
		ub.Assign("deleted_count", batch.DeletedCount),
		ub.Assign("errors", batch.Errors),
		ub.Assign("completed_at", batch.CompletedAt),
	).Where(ub.Equal("id", batch.ID))

	query, args := ub.Build()
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("batch_id", batch.ID).Error("failed to finalize import batch")
		tracing.Fail(span, err, "update failed")
		return fmt.Errorf("failed to finalize import batch: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("import batch %s not found", batch.ID)
	}
	return nil
}

// GetByID returns a 404 HTTP error when the batch does not exist.
func (r *Repository) GetByID(ctx context.Context, q database.Querier, id string) (*models.ImportBatch, error) {
	ctx, span := tracing.StartSpan(ctx, "ImportBatchRepository.GetByID")
	defer span.End()

	sb := batchStruct.SelectFrom(tableName)
	sb.Where(sb.Equal("id", id))
	query, args := sb.Build()

	var batch models.ImportBatch
	if err := q.GetContext(ctx, &batch, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "import batch %s not found", id)
		}
		r.logger.WithContext(ctx).WithError(err).Error("failed to get import batch")
		return nil, fmt.Errorf("failed to get import batch: %w", err)
	}
	return &batch, nil
}

// List returns batches newest first, optionally for one municipality.
func (r *Repository) List(ctx context.Context, q database.Querier, municipalityID string, page, pageSize int) ([]models.ImportBatch, int, error) {
	ctx, span := tracing.StartSpan(ctx, "ImportBatchRepository.List")
	defer span.End()

	countSB := database.NewSelectBuilder()
	countSB.Select("COUNT(*)").From(tableName)
	if municipalityID != "" {
		countSB.Where(countSB.Equal("municipality_id", municipalityID))
	}
	query, args := countSB.Build()

	var total int
	if err := q.GetContext(ctx, &total, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to count import batches")
		return nil, 0, fmt.Errorf("failed to count import batches: %w", err)
	}

	sb := batchStruct.SelectFrom(tableName)
	if municipalityID != "" {
		sb.Where(sb.Equal("municipality_id", municipalityID))
	}
	sb.OrderBy("created_at").Desc()
	database.Paginate(sb, page, pageSize)
	query, args = sb.Build()

	items := []models.ImportBatch{}
	if err := q.SelectContext(ctx, &items, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list import batches")
		return nil, 0, fmt.Errorf("failed to list import batches: %w", err)
	}

	return items, total, nil
}
