package association

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
	GetByID(ctx context.Context, q database.Querier, id string) (*models.Association, error)
}

type Handler struct {
	db   database.Querier
	repo Repository
}

func NewHandler(db database.Querier, repo Repository) *Handler {
	return &Handler{db: db, repo: repo}
}

// Register registers association routes
func (h *Handler) Register(g *echo.Group) {
	g.GET("/:id", h.Get)
}

type getRequest struct {
	ID string `param:"id" validate:"required"`
}

// Get returns one association with its contacts and description sections, including
// soft-deleted associations.
func (h *Handler) Get(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "association_handler.Get")
	defer span.End()

	req, err := utils.BindRequest[getRequest](c)
	if err != nil {
		return err
	}

	a, err := h.repo.GetByID(ctx, h.db, req.ID)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get association")
	}
	if a == nil {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "association %s not found", req.ID)
	}

	return c.JSON(http.StatusOK, a)
}
