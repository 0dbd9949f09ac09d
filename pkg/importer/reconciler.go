package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"go.opentelemetry.io/otel/attribute"

	appctx "github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/context"
	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/database"
	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/metrics"
	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/models"
	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/tracing"
)

const missingDetailURL = "saknar detailUrl"

// DefaultTxOptions bounds each per-record transaction.
var DefaultTxOptions = database.TxOptions{
	Timeout: 20 * time.Second,
	MaxWait: 10 * time.Second,
}

// Outcome is the result of writing one record.
type Outcome int

const (
	OutcomeImported Outcome = iota + 1
	OutcomeUpdated
	OutcomeSkippedExisting
)

func (o Outcome) String() string {
	switch o {
	case OutcomeImported:
		return "imported"
	case OutcomeUpdated:
		return "updated"
	case OutcomeSkippedExisting:
		return "skipped-existing"
	default:
		return "unknown"
	}
}

// ImportRequest is one invocation of the pipeline.
type ImportRequest struct {
	Records   []models.ScrapedAssociation
	FileNames []string
	Mode      models.ImportMode
	// MunicipalityID wins over any name when it matches an existing municipality.
	MunicipalityID string
	// MunicipalityName overrides the first record's municipality for resolution.
	MunicipalityName string
	ImportedByID     string
	ImportedByName   string
}

// municipalityName is the explicit name, else the first record's municipality.
func (r ImportRequest) municipalityName() string {
	if name := strings.TrimSpace(r.MunicipalityName); name != "" {
		return name
	}
	if len(r.Records) == 0 {
		return ""
	}
	return strings.TrimSpace(r.Records[0].Municipality)
}

// LockSubject names the municipality the run writes to before it is resolved: the explicit
// id when given, otherwise the name the run resolves by.
func (r ImportRequest) LockSubject() string {
	if id := strings.TrimSpace(r.MunicipalityID); id != "" {
		return id
	}
	return r.municipalityName()
}

type Dependencies struct {
	DB             Transactor
	Municipalities MunicipalityStore
	Associations   AssociationStore
	Batches        BatchStore
	ScrapeRuns     ScrapeRunStore
	// Events is optional.
	Events    EventPublisher
	Logger    ectologger.Logger
	TxOptions *database.TxOptions
}

// Service runs imports and import checks.
type Service struct {
	db           Transactor
	associations AssociationStore
	scrapeRuns   ScrapeRunStore
	events       EventPublisher
	resolver     *Resolver
	ledger       *Ledger
	logger       ectologger.Logger
	txOptions    database.TxOptions
	now          func() time.Time
}

func NewService(deps Dependencies) *Service {
	txOptions := DefaultTxOptions
	if deps.TxOptions != nil {
		txOptions = *deps.TxOptions
	}

	return &Service{
		db:           deps.DB,
		associations: deps.Associations,
		scrapeRuns:   deps.ScrapeRuns,
		events:       deps.Events,
		resolver:     NewResolver(deps.Municipalities, deps.Logger),
		ledger:       NewLedger(deps.Batches, deps.Logger),
		logger:       deps.Logger,
		txOptions:    txOptions,
		now:          time.Now,
	}
}

// run is the state of one import: the batch being filled in and the identities already
// written during this run.
type run struct {
	batch        *models.ImportBatch
	municipality *models.Municipality
	mode         models.ImportMode
	scrapeRuns   *ScrapeRunCache
	seenURLs     map[string]struct{}
	seenNames    map[string]struct{}
	finalized    bool
}

// Import reconciles the records against the municipality's associations. Precondition
// failures return before a batch is recorded. A FatalImportError is returned together with
// the stats of the failed batch.
func (s *Service) Import(ctx context.Context, req ImportRequest) (*models.ImportStats, error) {
	// a run always proceeds to completion once started
	ctx = context.WithoutCancel(ctx)
	ctx, span := tracing.StartSpan(ctx, "Importer.Import",
		attribute.String("import.mode", string(req.Mode)),
		attribute.Int("import.records", len(req.Records)),
	)
	defer span.End()

	if len(req.Records) == 0 {
		return nil, ErrNoRecords
	}

	mode := models.ParseImportMode(string(req.Mode))
	municipality, err := s.resolver.Resolve(ctx, s.db, req.MunicipalityID, req.municipalityName())
	if err != nil {
		tracing.Fail(span, err, "municipality resolution failed")
		return nil, err
	}

	actorID, actorName := req.ImportedByID, req.ImportedByName
	if actorID == "" {
		actorID, actorName = appctx.SystemActorID, appctx.SystemActorName
	} else if actorName == "" {
		actorName = actorID
	}

	batch, err := s.ledger.Start(ctx, s.db, StartBatch{
		MunicipalityID: municipality.ID,
		FileNames:      req.FileNames,
		Mode:           mode,
		ImportedBy:     actorID,
		ImportedByName: actorName,
		TotalRecords:   len(req.Records),
	})
	if err != nil {
		tracing.Fail(span, err, "failed to start batch")
		return nil, fmt.Errorf("failed to start import batch: %w", err)
	}

	r := &run{
		batch:        batch,
		municipality: municipality,
		mode:         mode,
		scrapeRuns:   NewScrapeRunCache(s.scrapeRuns, s.db, s.logger),
		seenURLs:     map[string]struct{}{},
		seenNames:    map[string]struct{}{},
	}

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"batch_id":        batch.ID,
		"municipality_id": municipality.ID,
		"mode":            mode,
	})
	log.Infof("starting import of %d records for %s", len(req.Records), municipality.Name)

	metrics.ImportsInFlight.Inc()
	defer metrics.ImportsInFlight.Dec()
	started := s.now()

	if err := s.process(ctx, r, req.Records); err != nil {
		var fatal *FatalImportError
		if !errors.As(err, &fatal) {
			fatal = &FatalImportError{Reason: "unexpected error", Err: err}
		}
		r.batch.AppendNote("import aborted: " + fatal.Error())
		s.finish(ctx, r, models.ImportStatusFailed, started)
		log.WithError(fatal).Error("import aborted")
		tracing.Fail(span, fatal, "import aborted")
		return models.NewImportStats(r.batch, municipality.Name), fatal
	}

	status := models.ImportStatusCompleted
	if batch.ErrorCount > 0 && batch.ImportedCount == 0 && batch.UpdatedCount == 0 {
		status = models.ImportStatusFailed
	}
	s.finish(ctx, r, status, started)

	log.WithFields(map[string]any{
		"imported": batch.ImportedCount,
		"updated":  batch.UpdatedCount,
		"skipped":  batch.SkippedCount,
		"errors":   batch.ErrorCount,
		"deleted":  batch.DeletedCount,
	}).Infof("import finished with status %s", status)

	return models.NewImportStats(r.batch, municipality.Name), nil
}

// process runs the replace deletion and then every record in order. Only fatal errors are
// returned; panics are converted into fatal errors so the batch is still finalized.
func (s *Service) process(ctx context.Context, r *run, records []models.ScrapedAssociation) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &FatalImportError{Reason: fmt.Sprintf("panic: %v", p)}
		}
	}()

	if r.mode == models.ImportModeReplace {
		deleted, err := s.associations.DeleteByMunicipality(ctx, s.db, r.municipality.ID)
		if err != nil {
			return &FatalImportError{Reason: "failed to delete existing associations", Err: err}
		}
		r.batch.DeletedCount = deleted
		metrics.RecordDeleted(deleted)
	}

	for _, record := range records {
		if err := s.processRecord(ctx, r, record); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) processRecord(ctx context.Context, r *run, record models.ScrapedAssociation) error {
	normalized, err := Normalize(record, NormalizeContext{
		MunicipalityID:   r.municipality.ID,
		MunicipalityName: r.municipality.Name,
		ImportBatchID:    r.batch.ID,
		ScrapeRunID:      r.scrapeRuns.Resolve(ctx, record.ScrapeRunID),
		Now:              s.now(),
	})
	if err != nil {
		var fatal *FatalImportError
		if errors.As(err, &fatal) {
			return fatal
		}
		s.recordFailure(ctx, r, record.Association.Name, rawDetailURL(record), err)
		return nil
	}

	detailURL := normalized.DetailURL()
	if err := r.checkDuplicate(normalized); err != nil {
		s.recordFailure(ctx, r, normalized.Association.Name, detailURL, err)
		return nil
	}

	outcome, err := s.write(ctx, r, normalized)
	if err != nil {
		s.recordFailure(ctx, r, normalized.Association.Name, detailURL, err)
		return nil
	}

	r.markSeen(normalized)
	switch outcome {
	case OutcomeImported:
		r.batch.ImportedCount++
	case OutcomeUpdated:
		r.batch.UpdatedCount++
	case OutcomeSkippedExisting:
		r.batch.SkippedCount++
	}
	metrics.RecordImportRecord(string(r.mode), outcome.String())
	return nil
}

// checkDuplicate keys a record by its detail URL when it has one and by municipality and
// name otherwise.
func (r *run) checkDuplicate(n *NormalizedRecord) error {
	if url := n.DetailURL(); url != "" {
		if _, seen := r.seenURLs[url]; seen {
			return &RecordError{Reason: "duplicate detailUrl in this batch"}
		}
		return nil
	}
	if _, seen := r.seenNames[n.NameKey]; seen {
		return &RecordError{Reason: "duplicate name in this batch for the municipality"}
	}
	return nil
}

// markSeen is called only after the record's transaction committed.
func (r *run) markSeen(n *NormalizedRecord) {
	if url := n.DetailURL(); url != "" {
		r.seenURLs[url] = struct{}{}
		return
	}
	r.seenNames[n.NameKey] = struct{}{}
}

// write looks up and creates, updates or skips the association inside one transaction.
func (s *Service) write(ctx context.Context, r *run, n *NormalizedRecord) (Outcome, error) {
	ctx, span := tracing.StartSpan(ctx, "Importer.write")
	defer span.End()

	var outcome Outcome
	err := s.db.WithTx(ctx, s.txOptions, func(ctx context.Context, tx database.Querier) error {
		existing, err := s.findExisting(ctx, tx, n)
		if err != nil {
			return err
		}

		switch {
		case existing == nil:
			outcome = OutcomeImported
			return s.create(ctx, tx, n)
		case r.mode == models.ImportModeNew:
			outcome = OutcomeSkippedExisting
			return nil
		default:
			outcome = OutcomeUpdated
			return s.update(ctx, tx, existing, n)
		}
	})
	if err != nil {
		tracing.Fail(span, err, "record write failed")
		return 0, err
	}
	return outcome, nil
}

// findExisting prefers a global detail URL match and falls back to municipality and name.
func (s *Service) findExisting(ctx context.Context, tx database.Querier, n *NormalizedRecord) (*models.Association, error) {
	if url := n.DetailURL(); url != "" {
		existing, err := s.associations.FindByDetailURL(ctx, tx, url)
		if err != nil || existing != nil {
			return existing, err
		}
	}
	return s.associations.FindByMunicipalityAndName(ctx, tx, n.Association.MunicipalityID, n.Association.Name)
}

func (s *Service) create(ctx context.Context, tx database.Querier, n *NormalizedRecord) error {
	a := n.Association
	if err := s.associations.Create(ctx, tx, &a); err != nil {
		return err
	}
	if err := s.associations.InsertContacts(ctx, tx, a.ID, n.Contacts); err != nil {
		return err
	}
	return s.associations.InsertSections(ctx, tx, a.ID, n.Sections)
}

// update overwrites the association, revives it if soft-deleted and replaces contacts and
// sections when the record carries any.
func (s *Service) update(ctx context.Context, tx database.Querier, existing *models.Association, n *NormalizedRecord) error {
	a := n.Association
	a.ID = existing.ID
	a.CreatedAt = existing.CreatedAt
	a.IsDeleted = false
	a.DeletedAt = nil

	if err := s.associations.Update(ctx, tx, &a); err != nil {
		return err
	}

	if len(n.Contacts) > 0 {
		if err := s.associations.DeleteContacts(ctx, tx, a.ID); err != nil {
			return err
		}
		if err := s.associations.InsertContacts(ctx, tx, a.ID, n.Contacts); err != nil {
			return err
		}
	}

	if len(n.Sections) > 0 {
		if err := s.associations.DeleteSections(ctx, tx, a.ID); err != nil {
			return err
		}
		if err := s.associations.InsertSections(ctx, tx, a.ID, n.Sections); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) recordFailure(ctx context.Context, r *run, name, detailURL string, err error) {
	msg := fmt.Sprintf("%s: %v", recordLabel(name, detailURL), err)
	r.batch.AddError(msg)
	metrics.RecordImportRecord(string(r.mode), "error")
	s.logger.WithContext(ctx).WithError(err).WithField("batch_id", r.batch.ID).Warn(msg)
}

// finish writes the final ledger state once, then reports the run.
func (s *Service) finish(ctx context.Context, r *run, status models.ImportStatus, started time.Time) {
	if r.finalized {
		return
	}
	r.finalized = true

	if err := s.ledger.Finish(ctx, s.db, r.batch, status); err != nil {
		r.batch.AppendNote(fmt.Sprintf("failed to update import batch: %v", err))
	}

	metrics.RecordImportRun(string(r.mode), string(status), s.now().Sub(started).Seconds())

	if s.events != nil {
		stats := models.NewImportStats(r.batch, r.municipality.Name)
		if err := s.events.PublishImportEvent(ctx, stats); err != nil {
			s.logger.WithContext(ctx).WithError(err).WithField("batch_id", r.batch.ID).Warn("failed to publish import event")
		}
	}
}

// Check reports whether the municipality named by the first record already has
// associations. It never creates a municipality.
func (s *Service) Check(ctx context.Context, records []models.ScrapedAssociation) (*models.ImportCheckResult, error) {
	ctx, span := tracing.StartSpan(ctx, "Importer.Check")
	defer span.End()

	if len(records) == 0 {
		return nil, ErrNoRecords
	}

	name := strings.TrimSpace(records[0].Municipality)
	result := &models.ImportCheckResult{MunicipalityName: name}

	municipality, err := s.resolver.Lookup(ctx, s.db, name)
	if err != nil {
		tracing.Fail(span, err, "municipality lookup failed")
		return nil, err
	}
	if municipality == nil {
		return result, nil
	}

	count, err := s.associations.CountByMunicipality(ctx, s.db, municipality.ID)
	if err != nil {
		tracing.Fail(span, err, "count failed")
		return nil, err
	}

	id := municipality.ID
	result.MunicipalityID = &id
	result.MunicipalityName = municipality.Name
	result.Count = count
	result.HasData = count > 0
	return result, nil
}

func recordLabel(name, detailURL string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "(namnlös)"
	}
	if detailURL == "" {
		detailURL = missingDetailURL
	}
	return fmt.Sprintf("%s (%s)", name, detailURL)
}

func rawDetailURL(record models.ScrapedAssociation) string {
	if url := firstNonBlank(record.Association.DetailURL, record.DetailURL); url != nil {
		return *url
	}
	return ""
}
