package importbatch

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
	GetByID(ctx context.Context, q database.Querier, id string) (*models.ImportBatch, error)
	List(ctx context.Context, q database.Querier, municipalityID string, page, pageSize int) ([]models.ImportBatch, int, error)
}

type Handler struct {
	db   database.Querier
	repo Repository
}

func NewHandler(db database.Querier, repo Repository) *Handler {
	return &Handler{db: db, repo: repo}
}

// Register registers import batch routes
func (h *Handler) Register(g *echo.Group) {
	g.GET("", h.List)
	g.GET("/:id", h.Get)
}

type listRequest struct {
	MunicipalityID string `query:"municipality_id"`
	Page           int    `query:"page" validate:"gte=0"`
	PageSize       int    `query:"page_size" validate:"gte=0,lte=500"`
}

// List returns batches newest first.
func (h *Handler) List(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "importbatch_handler.List")
	defer span.End()

	req, err := utils.BindRequest[listRequest](c)
	if err != nil {
		return err
	}
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 {
		req.PageSize = database.DefaultPageSize
	}

	items, total, err := h.repo.List(ctx, h.db, req.MunicipalityID, req.Page, req.PageSize)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to list import batches")
	}

	return c.JSON(http.StatusOK, models.ImportBatchListResponse{
		Items:      items,
		TotalCount: total,
		Page:       req.Page,
		PageSize:   req.PageSize,
	})
}

type getRequest struct {
	ID string `param:"id" validate:"required"`
}

func (h *Handler) Get(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "importbatch_handler.Get")
	defer span.End()

	req, err := utils.BindRequest[getRequest](c)
	if err != nil {
		return err
	}

	batch, err := h.repo.GetByID(ctx, h.db, req.ID)
	if err != nil {
		if httperror.IsHTTPError(err) {
			return err
		}
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get import batch")
	}

	return c.JSON(http.StatusOK, batch)
}
