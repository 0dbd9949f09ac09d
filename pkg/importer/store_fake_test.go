package importer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/database"
	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/models"
)

var errNotSupported = errors.New("raw queries are not supported by the in-memory store")

// memStore is an in-memory implementation of every store the pipeline uses. WithTx snapshots
// the association tables and restores them when fn fails.
type memStore struct {
	municipalities []models.Municipality
	associations   []models.Association
	contacts       map[string][]models.Contact
	sections       map[string][]models.DescriptionSection
	batches        map[string]models.ImportBatch
	scrapeRuns     map[string]bool

	seq             int
	txCount         int
	scrapeRunChecks map[string]int

	failCreate     map[string]error
	failContacts   map[string]error
	panicOnCreate  string
	failDelete     error
	failBatchStart error
	failFinalize   error
	failExists     error
}

func newMemStore() *memStore {
	return &memStore{
		contacts:        map[string][]models.Contact{},
		sections:        map[string][]models.DescriptionSection{},
		batches:         map[string]models.ImportBatch{},
		scrapeRuns:      map[string]bool{},
		scrapeRunChecks: map[string]int{},
		failCreate:      map[string]error{},
		failContacts:    map[string]error{},
	}
}

func (s *memStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

// database.Querier

func (s *memStore) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, errNotSupported
}

func (s *memStore) GetContext(context.Context, any, string, ...any) error {
	return errNotSupported
}

func (s *memStore) SelectContext(context.Context, any, string, ...any) error {
	return errNotSupported
}

func (s *memStore) QueryRowxContext(context.Context, string, ...any) *sqlx.Row {
	return nil
}

func (s *memStore) WithTx(ctx context.Context, _ database.TxOptions, fn func(ctx context.Context, tx database.Querier) error) error {
	s.txCount++

	associations := slices.Clone(s.associations)
	contacts := maps.Clone(s.contacts)
	sections := maps.Clone(s.sections)

	if err := fn(ctx, s); err != nil {
		s.associations = associations
		s.contacts = contacts
		s.sections = sections
		return err
	}
	return nil
}

// MunicipalityStore

func (s *memStore) addMunicipality(name string) models.Municipality {
	m := models.Municipality{ID: s.nextID("muni"), Name: name}
	s.municipalities = append(s.municipalities, m)
	return m
}

func (s *memStore) GetByID(_ context.Context, _ database.Querier, id string) (*models.Municipality, error) {
	for _, m := range s.municipalities {
		if m.ID == id {
			return &m, nil
		}
	}
	return nil, nil
}

func (s *memStore) GetByName(_ context.Context, _ database.Querier, name string) (*models.Municipality, error) {
	for _, m := range s.municipalities {
		if m.Name == name {
			return &m, nil
		}
	}
	return nil, nil
}

func (s *memStore) municipalityStore() MunicipalityStore {
	return municipalityAdapter{s}
}

// municipalityAdapter exposes Create for municipalities, which collides with the association
// Create on memStore.
type municipalityAdapter struct {
	*memStore
}

func (a municipalityAdapter) Create(_ context.Context, _ database.Querier, name string) (*models.Municipality, error) {
	m := a.addMunicipality(name)
	return &m, nil
}

// AssociationStore

func (s *memStore) seedAssociation(a models.Association) models.Association {
	if a.ID == "" {
		a.ID = s.nextID("assoc")
	}
	a.CreatedAt = time.Now().Add(-time.Hour)
	s.associations = append(s.associations, a)
	return a
}

func (s *memStore) association(id string) *models.Association {
	for i := range s.associations {
		if s.associations[i].ID == id {
			return &s.associations[i]
		}
	}
	return nil
}

func (s *memStore) associationsOf(municipalityID string) []models.Association {
	var out []models.Association
	for _, a := range s.associations {
		if a.MunicipalityID == municipalityID {
			out = append(out, a)
		}
	}
	return out
}

func (s *memStore) FindByDetailURL(_ context.Context, _ database.Querier, detailURL string) (*models.Association, error) {
	for _, a := range s.associations {
		if a.DetailURL != nil && *a.DetailURL == detailURL {
			return &a, nil
		}
	}
	return nil, nil
}

func (s *memStore) FindByMunicipalityAndName(_ context.Context, _ database.Querier, municipalityID, name string) (*models.Association, error) {
	for _, a := range s.associations {
		if a.MunicipalityID == municipalityID && a.Name == name {
			return &a, nil
		}
	}
	return nil, nil
}

func (s *memStore) Create(_ context.Context, _ database.Querier, a *models.Association) error {
	if a.Name == s.panicOnCreate && s.panicOnCreate != "" {
		panic("storage exploded")
	}
	if err := s.failCreate[a.Name]; err != nil {
		return err
	}
	a.ID = s.nextID("assoc")
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	s.associations = append(s.associations, *a)
	return nil
}

func (s *memStore) Update(_ context.Context, _ database.Querier, a *models.Association) error {
	existing := s.association(a.ID)
	if existing == nil {
		return fmt.Errorf("association %s not found", a.ID)
	}
	*existing = *a
	return nil
}

func (s *memStore) InsertContacts(_ context.Context, _ database.Querier, associationID string, contacts []models.Contact) error {
	if a := s.association(associationID); a != nil {
		if err := s.failContacts[a.Name]; err != nil {
			return err
		}
	}
	rows := slices.Clone(s.contacts[associationID])
	for i, c := range contacts {
		c.AssociationID = associationID
		c.IsPrimary = i == 0
		rows = append(rows, c)
	}
	s.contacts[associationID] = rows
	return nil
}

func (s *memStore) DeleteContacts(_ context.Context, _ database.Querier, associationID string) error {
	delete(s.contacts, associationID)
	return nil
}

func (s *memStore) InsertSections(_ context.Context, _ database.Querier, associationID string, sections []models.DescriptionSection) error {
	rows := slices.Clone(s.sections[associationID])
	for _, sec := range sections {
		sec.AssociationID = associationID
		rows = append(rows, sec)
	}
	s.sections[associationID] = rows
	return nil
}

func (s *memStore) DeleteSections(_ context.Context, _ database.Querier, associationID string) error {
	delete(s.sections, associationID)
	return nil
}

func (s *memStore) DeleteByMunicipality(_ context.Context, _ database.Querier, municipalityID string) (int, error) {
	if s.failDelete != nil {
		return 0, s.failDelete
	}
	kept := s.associations[:0:0]
	deleted := 0
	for _, a := range s.associations {
		if a.MunicipalityID == municipalityID {
			delete(s.contacts, a.ID)
			delete(s.sections, a.ID)
			deleted++
			continue
		}
		kept = append(kept, a)
	}
	s.associations = kept
	return deleted, nil
}

func (s *memStore) CountByMunicipality(_ context.Context, _ database.Querier, municipalityID string) (int, error) {
	return len(s.associationsOf(municipalityID)), nil
}

// BatchStore

func (s *memStore) batchStore() BatchStore {
	return batchAdapter{s}
}

type batchAdapter struct {
	*memStore
}

func (b batchAdapter) Create(_ context.Context, _ database.Querier, batch *models.ImportBatch) error {
	if b.failBatchStart != nil {
		return b.failBatchStart
	}
	batch.ID = b.nextID("batch")
	b.batches[batch.ID] = cloneBatch(*batch)
	return nil
}

func (b batchAdapter) Finalize(_ context.Context, _ database.Querier, batch *models.ImportBatch) error {
	if b.failFinalize != nil {
		return b.failFinalize
	}
	if _, ok := b.batches[batch.ID]; !ok {
		return fmt.Errorf("import batch %s not found", batch.ID)
	}
	b.batches[batch.ID] = cloneBatch(*batch)
	return nil
}

func cloneBatch(b models.ImportBatch) models.ImportBatch {
	b.Errors = database.NewJSONB(slices.Clone(b.Errors.Data))
	return b
}

// ScrapeRunStore

func (s *memStore) Exists(_ context.Context, _ database.Querier, id string) (bool, error) {
	s.scrapeRunChecks[id]++
	if s.failExists != nil {
		return false, s.failExists
	}
	return s.scrapeRuns[id], nil
}

// fakePublisher records published events.
type fakePublisher struct {
	published []models.ImportStats
	err       error
}

func (p *fakePublisher) PublishImportEvent(_ context.Context, stats *models.ImportStats) error {
	p.published = append(p.published, *stats)
	return p.err
}

func hasPrefix(values []string, prefix string) bool {
	for _, v := range values {
		if strings.HasPrefix(v, prefix) {
			return true
		}
	}
	return false
}
