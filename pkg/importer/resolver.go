package importer

import (
	"context"
	"strings"

	"github.com/Gobusters/ectologger"

	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/database"
	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/models"
	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/tracing"
)

// Resolver maps an explicit id or a free-text name onto a municipality.
type Resolver struct {
	store  MunicipalityStore
	logger ectologger.Logger
}

func NewResolver(store MunicipalityStore, logger ectologger.Logger) *Resolver {
	return &Resolver{
		store:  store,
		logger: logger,
	}
}

// Resolve prefers an existing municipality with explicitID, then one named explicitName,
// and otherwise creates a municipality with that name.
func (r *Resolver) Resolve(ctx context.Context, q database.Querier, explicitID, explicitName string) (*models.Municipality, error) {
	ctx, span := tracing.StartSpan(ctx, "Resolver.Resolve")
	defer span.End()

	if id := strings.TrimSpace(explicitID); id != "" {
		m, err := r.store.GetByID(ctx, q, id)
		if err != nil {
			return nil, err
		}
		if m != nil {
			return m, nil
		}
		r.logger.WithContext(ctx).WithField("municipality_id", id).Warn("municipality id not found, falling back to name")
	}

	name := strings.TrimSpace(explicitName)
	if name == "" {
		return nil, &ResolutionError{Reason: "no municipality id or name was provided"}
	}

	m, err := r.Lookup(ctx, q, name)
	if err != nil || m != nil {
		return m, err
	}

	m, err = r.store.Create(ctx, q, name)
	if err != nil {
		return nil, err
	}
	r.logger.WithContext(ctx).WithFields(map[string]any{
		"municipality_id": m.ID,
		"name":            m.Name,
	}).Info("created municipality during import")
	return m, nil
}

// Lookup finds a municipality by exact trimmed name and never creates one.
func (r *Resolver) Lookup(ctx context.Context, q database.Querier, name string) (*models.Municipality, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	return r.store.GetByName(ctx, q, name)
}
