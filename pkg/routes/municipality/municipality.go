package municipality

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"

	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/database"
	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/models"
	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/tracing"
	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/utils"
)

type Repository interface {
	GetByID(ctx context.Context, q database.Querier, id string) (*models.Municipality, error)
	List(ctx context.Context, q database.Querier) ([]models.Municipality, error)
}

type AssociationLister interface {
	ListByMunicipality(ctx context.Context, q database.Querier, municipalityID string, page, pageSize int, includeDeleted bool) ([]models.Association, int, error)
}

type Handler struct {
	db           database.Querier
	repo         Repository
	associations AssociationLister
}

func NewHandler(db database.Querier, repo Repository, associations AssociationLister) *Handler {
	return &Handler{
		db:           db,
		repo:         repo,
		associations: associations,
	}
}

// Register registers municipality routes
func (h *Handler) Register(g *echo.Group) {
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.GET("/:id/associations", h.ListAssociations)
}

type municipalityListResponse struct {
	Items []models.Municipality `json:"items"`
}

func (h *Handler) List(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "municipality_handler.List")
	defer span.End()

	items, err := h.repo.List(ctx, h.db)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to list municipalities")
	}

	return c.JSON(http.StatusOK, municipalityListResponse{Items: items})
}

type getRequest struct {
	ID string `param:"id" validate:"required"`
}

func (h *Handler) Get(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "municipality_handler.Get")
	defer span.End()

	req, err := utils.BindRequest[getRequest](c)
	if err != nil {
		return err
	}

	m, err := h.repo.GetByID(ctx, h.db, req.ID)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get municipality")
	}
	if m == nil {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "municipality %s not found", req.ID)
	}

	return c.JSON(http.StatusOK, m)
}

type listAssociationsRequest struct {
	ID             string `param:"id" validate:"required"`
	Page           int    `query:"page" validate:"gte=0"`
	PageSize       int    `query:"page_size" validate:"gte=0,lte=500"`
	IncludeDeleted bool   `query:"include_deleted"`
}

// ListAssociations pages through a municipality's associations. Soft-deleted rows are hidden
// unless include_deleted is set.
func (h *Handler) ListAssociations(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "municipality_handler.ListAssociations")
	defer span.End()

	req, err := utils.BindRequest[listAssociationsRequest](c)
	if err != nil {
		return err
	}
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 {
		req.PageSize = database.DefaultPageSize
	}

	m, err := h.repo.GetByID(ctx, h.db, req.ID)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get municipality")
	}
	if m == nil {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "municipality %s not found", req.ID)
	}

	items, total, err := h.associations.ListByMunicipality(ctx, h.db, m.ID, req.Page, req.PageSize, req.IncludeDeleted)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to list associations")
	}

	return c.JSON(http.StatusOK, models.AssociationListResponse{
		Items:      items,
		TotalCount: total,
		Page:       req.Page,
		PageSize:   req.PageSize,
	})
}
