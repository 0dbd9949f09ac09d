package importer

import (
	"context"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/database"
	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/models"
	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/tracing"
)

// StartBatch describes a run about to begin.
type StartBatch struct {
	MunicipalityID string
	FileNames      []string
	Mode           models.ImportMode
	ImportedBy     string
	ImportedByName string
	TotalRecords   int
}

// Ledger records each run as an import batch.
type Ledger struct {
	store  BatchStore
	logger ectologger.Logger
	now    func() time.Time
}

func NewLedger(store BatchStore, logger ectologger.Logger) *Ledger {
	return &Ledger{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Start persists a new batch in processing status.
func (l *Ledger) Start(ctx context.Context, q database.Querier, in StartBatch) (*models.ImportBatch, error) {
	ctx, span := tracing.StartSpan(ctx, "Ledger.Start")
	defer span.End()

	batch := &models.ImportBatch{
		MunicipalityID: in.MunicipalityID,
		FileName:       strings.Join(in.FileNames, ", "),
		FileCount:      len(in.FileNames),
		ImportMode:     in.Mode,
		ImportedBy:     in.ImportedBy,
		ImportedByName: in.ImportedByName,
		Status:         models.ImportStatusProcessing,
		TotalRecords:   in.TotalRecords,
		Errors:         database.NewJSONB([]string{}),
		CreatedAt:      l.now().UTC(),
	}

	if err := l.store.Create(ctx, q, batch); err != nil {
		tracing.Fail(span, err, "failed to create batch")
		return nil, err
	}
	return batch, nil
}

// Finish stamps the final status and completion time and persists the batch.
func (l *Ledger) Finish(ctx context.Context, q database.Querier, batch *models.ImportBatch, status models.ImportStatus) error {
	ctx, span := tracing.StartSpan(ctx, "Ledger.Finish")
	defer span.End()

	completedAt := l.now().UTC()
	batch.Status = status
	batch.CompletedAt = &completedAt

	if err := l.store.Finalize(ctx, q, batch); err != nil {
		l.logger.WithContext(ctx).WithError(err).WithField("batch_id", batch.ID).Error("failed to finalize import batch")
		tracing.Fail(span, err, "failed to finalize batch")
		return err
	}
	return nil
}
