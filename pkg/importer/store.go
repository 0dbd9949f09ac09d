package importer

import (
	"context"

	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/database"
	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/models"
)

// Transactor is the database handle the pipeline runs on. Statements outside a per-record
// transaction use it directly as a Querier.
type Transactor interface {
	database.Querier
	WithTx(ctx context.Context, opts database.TxOptions, fn func(ctx context.Context, tx database.Querier) error) error
}

type MunicipalityStore interface {
	GetByID(ctx context.Context, q database.Querier, id string) (*models.Municipality, error)
	GetByName(ctx context.Context, q database.Querier, name string) (*models.Municipality, error)
	Create(ctx context.Context, q database.Querier, name string) (*models.Municipality, error)
}

type AssociationStore interface {
	FindByDetailURL(ctx context.Context, q database.Querier, detailURL string) (*models.Association, error)
	FindByMunicipalityAndName(ctx context.Context, q database.Querier, municipalityID, name string) (*models.Association, error)
	Create(ctx context.Context, q database.Querier, a *models.Association) error
	Update(ctx context.Context, q database.Querier, a *models.Association) error
	InsertContacts(ctx context.Context, q database.Querier, associationID string, contacts []models.Contact) error
	DeleteContacts(ctx context.Context, q database.Querier, associationID string) error
	InsertSections(ctx context.Context, q database.Querier, associationID string, sections []models.DescriptionSection) error
	DeleteSections(ctx context.Context, q database.Querier, associationID string) error
	DeleteByMunicipality(ctx context.Context, q database.Querier, municipalityID string) (int, error)
	CountByMunicipality(ctx context.Context, q database.Querier, municipalityID string) (int, error)
}

type BatchStore interface {
	Create(ctx context.Context, q database.Querier, batch *models.ImportBatch) error
	Finalize(ctx context.Context, q database.Querier, batch *models.ImportBatch) error
}

type ScrapeRunStore interface {
	Exists(ctx context.Context, q database.Querier, id string) (bool, error)
}

// EventPublisher announces finished import runs.
type EventPublisher interface {
	PublishImportEvent(ctx context.Context, stats *models.ImportStats) error
}
