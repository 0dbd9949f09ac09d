package association

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/database"
	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/models"
	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/tracing"
)

// AssociationRepository defines the interface for association operations
type AssociationRepository interface {
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
	GetByID(ctx context.Context, q database.Querier, id string) (*models.Association, error)
	ListByMunicipality(ctx context.Context, q database.Querier, municipalityID string, page, pageSize int, includeDeleted bool) ([]models.Association, int, error)
}

// Repository implements AssociationRepository
type Repository struct {
	logger ectologger.Logger
}

// NewRepository creates a new association repository
func NewRepository(logger ectologger.Logger) *Repository {
	return &Repository{
		logger: logger,
	}
}

const (
	tableName         = "associations"
	contactsTableName = "contacts"
	sectionsTableName = "description_sections"
)

var (
	associationStruct = database.NewStruct(new(models.Association))
	contactStruct     = database.NewStruct(new(models.Contact))
	sectionStruct     = database.NewStruct(new(models.DescriptionSection))
)

// FindByDetailURL looks across all municipalities, soft-deleted rows included.
func (r *Repository) FindByDetailURL(ctx context.Context, q database.Querier, detailURL string) (*models.Association, error) {
	ctx, span := tracing.StartSpan(ctx, "AssociationRepository.FindByDetailURL")
	defer span.End()

	sb := associationStruct.SelectFrom(tableName)
	sb.Where(sb.Equal("detail_url", detailURL))
	sb.OrderBy("created_at").Asc().Limit(1)

	return r.getOne(ctx, q, sb)
}

// FindByMunicipalityAndName matches the exact name within one municipality, soft-deleted rows included.
func (r *Repository) FindByMunicipalityAndName(ctx context.Context, q database.Querier, municipalityID, name string) (*models.Association, error) {
	ctx, span := tracing.StartSpan(ctx, "AssociationRepository.FindByMunicipalityAndName")
	defer span.End()

	sb := associationStruct.SelectFrom(tableName)
	sb.Where(
		sb.Equal("municipality_id", municipalityID),
		sb.Equal("name", name),
	)
	sb.OrderBy("created_at").Asc().Limit(1)

	return r.getOne(ctx, q, sb)
}

func (r *Repository) getOne(ctx context.Context, q database.Querier, sb *sqlbuilder.SelectBuilder) (*models.Association, error) {
	query, args := sb.Build()

	var a models.Association
	if err := q.GetContext(ctx, &a, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("failed to get association")
		return nil, fmt.Errorf("failed to get association: %w", err)
	}
	return &a, nil
}

// Create inserts the association row only. Contacts and sections are written separately.
func (r *Repository) Create(ctx context.Context, q database.Querier, a *models.Association) error {
	ctx, span := tracing.StartSpan(ctx, "AssociationRepository.Create")
	defer span.End()

	now := time.Now().UTC()
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	a.CreatedAt = now
	a.UpdatedAt = now

	query, args := associationStruct.InsertInto(tableName, a).Build()
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		tracing.Fail(span, err, "insert failed")
		return fmt.Errorf("failed to create association: %w", err)
	}
	return nil
}

// Update rewrites every mutable column of the row identified by a.ID.
func (r *Repository) Update(ctx context.Context, q database.Querier, a *models.Association) error {
	ctx, span := tracing.StartSpan(ctx, "AssociationRepository.Update")
	defer span.End()

	a.UpdatedAt = time.Now().UTC()

	ub := associationStruct.WithTag("mutable").Update(tableName, a)
	ub.Where(ub.Equal("id", a.ID))

	query, args := ub.Build()
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		tracing.Fail(span, err, "update failed")
		return fmt.Errorf("failed to update association: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("association %s no longer exists", a.ID)
	}
	return nil
}

// InsertContacts bulk inserts contacts in order. The first contact is always primary.
func (r *Repository) InsertContacts(ctx context.Context, q database.Querier, associationID string, contacts []models.Contact) error {
	if len(contacts) == 0 {
		return nil
	}

	ctx, span := tracing.StartSpan(ctx, "AssociationRepository.InsertContacts")
	defer span.End()

	now := time.Now().UTC()
	rows := make([]any, 0, len(contacts))
	for i := range contacts {
		c := contacts[i]
		c.ID = uuid.New().String()
		c.AssociationID = associationID
		c.IsPrimary = i == 0
		c.CreatedAt = now
		rows = append(rows, &c)
	}

	query, args := contactStruct.InsertInto(contactsTableName, rows...).Build()
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		tracing.Fail(span, err, "insert contacts failed")
		return fmt.Errorf("failed to insert contacts: %w", err)
	}
	return nil
}

func (r *Repository) DeleteContacts(ctx context.Context, q database.Querier, associationID string) error {
	ctx, span := tracing.StartSpan(ctx, "AssociationRepository.DeleteContacts")
	defer span.End()

	_, err := r.deleteWhere(ctx, q, contactsTableName, "association_id", associationID)
	if err != nil {
		return fmt.Errorf("failed to delete contacts: %w", err)
	}
	return nil
}

// InsertSections bulk inserts description sections keeping their order index.
func (r *Repository) InsertSections(ctx context.Context, q database.Querier, associationID string, sections []models.DescriptionSection) error {
	if len(sections) == 0 {
		return nil
	}

	ctx, span := tracing.StartSpan(ctx, "AssociationRepository.InsertSections")
	defer span.End()

	rows := make([]any, 0, len(sections))
	for i := range sections {
		s := sections[i]
		s.ID = uuid.New().String()
		s.AssociationID = associationID
		rows = append(rows, &s)
	}

	query, args := sectionStruct.InsertInto(sectionsTableName, rows...).Build()
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		tracing.Fail(span, err, "insert sections failed")
		return fmt.Errorf("failed to insert description sections: %w", err)
	}
	return nil
}

func (r *Repository) DeleteSections(ctx context.Context, q database.Querier, associationID string) error {
	ctx, span := tracing.StartSpan(ctx, "AssociationRepository.DeleteSections")
	defer span.End()

	_, err := r.deleteWhere(ctx, q, sectionsTableName, "association_id", associationID)
	if err != nil {
		return fmt.Errorf("failed to delete description sections: %w", err)
	}
	return nil
}

// DeleteByMunicipality hard deletes every association of the municipality. Contacts and
// sections go with them through ON DELETE CASCADE.
func (r *Repository) DeleteByMunicipality(ctx context.Context, q database.Querier, municipalityID string) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "AssociationRepository.DeleteByMunicipality")
	defer span.End()

	n, err := r.deleteWhere(ctx, q, tableName, "municipality_id", municipalityID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("municipality_id", municipalityID).Error("failed to delete associations")
		return 0, fmt.Errorf("failed to delete associations: %w", err)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"municipality_id": municipalityID,
		"deleted":         n,
	}).Info("deleted municipality associations")

	return n, nil
}

func (r *Repository) deleteWhere(ctx context.Context, q database.Querier, table, column, value string) (int, error) {
	db := database.NewDeleteBuilder()
	db.DeleteFrom(table).Where(db.Equal(column, value))

	query, args := db.Build()
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// CountByMunicipality counts every association of the municipality, soft-deleted included.
func (r *Repository) CountByMunicipality(ctx context.Context, q database.Querier, municipalityID string) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "AssociationRepository.CountByMunicipality")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("COUNT(*)").From(tableName).Where(sb.Equal("municipality_id", municipalityID))

	query, args := sb.Build()

	var count int
	if err := q.GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to count associations")
		return 0, fmt.Errorf("failed to count associations: %w", err)
	}
	return count, nil
}

// GetByID returns the association with its contacts and description sections.
func (r *Repository) GetByID(ctx context.Context, q database.Querier, id string) (*models.Association, error) {
	ctx, span := tracing.StartSpan(ctx, "AssociationRepository.GetByID")
	defer span.End()

	sb := associationStruct.SelectFrom(tableName)
	sb.Where(sb.Equal("id", id))

	a, err := r.getOne(ctx, q, sb)
	if err != nil || a == nil {
		return a, err
	}

	csb := contactStruct.SelectFrom(contactsTableName)
	csb.Where(csb.Equal("association_id", id)).OrderBy("is_primary DESC", "created_at ASC", "name ASC")
	query, args := csb.Build()
	a.Contacts = []models.Contact{}
	if err := q.SelectContext(ctx, &a.Contacts, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get contacts: %w", err)
	}

	ssb := sectionStruct.SelectFrom(sectionsTableName)
	ssb.Where(ssb.Equal("association_id", id)).OrderBy("order_index").Asc()
	query, args = ssb.Build()
	a.DescriptionSections = []models.DescriptionSection{}
	if err := q.SelectContext(ctx, &a.DescriptionSections, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get description sections: %w", err)
	}

	return a, nil
}

// ListByMunicipality pages through a municipality's associations ordered by name.
func (r *Repository) ListByMunicipality(ctx context.Context, q database.Querier, municipalityID string, page, pageSize int, includeDeleted bool) ([]models.Association, int, error) {
	ctx, span := tracing.StartSpan(ctx, "AssociationRepository.ListByMunicipality")
	defer span.End()

	where := func(sb *sqlbuilder.SelectBuilder) {
		sb.Where(sb.Equal("municipality_id", municipalityID))
		if !includeDeleted {
			sb.Where(sb.Equal("is_deleted", false))
		}
	}

	countSB := database.NewSelectBuilder()
	countSB.Select("COUNT(*)").From(tableName)
	where(countSB)
	query, args := countSB.Build()

	var total int
	if err := q.GetContext(ctx, &total, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to count associations")
		return nil, 0, fmt.Errorf("failed to count associations: %w", err)
	}

	sb := associationStruct.SelectFrom(tableName)
	where(sb)
	sb.OrderBy("name").Asc()
	database.Paginate(sb, page, pageSize)
	query, args = sb.Build()

	items := []models.Association{}
	if err := q.SelectContext(ctx, &items, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list associations")
		return nil, 0, fmt.Errorf("failed to list associations: %w", err)
	}

	return items, total, nil
}
