package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	appctx "github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/context"
	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/importer"
	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/locks"
	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/models"
	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/tracing"
)

const DefaultMaxFileBytes int64 = 25 << 20

// Service is the pipeline the handlers drive.
type Service interface {
	Import(ctx context.Context, req importer.ImportRequest) (*models.ImportStats, error)
	Check(ctx context.Context, records []models.ScrapedAssociation) (*models.ImportCheckResult, error)
}

type Handler struct {
	service      Service
	locker       locks.Locker
	maxFileBytes int64
	logger       ectologger.Logger
}

// NewHandler builds the import handlers. A nil locker disables import locking.
func NewHandler(service Service, locker locks.Locker, maxFileBytes int64, logger ectologger.Logger) *Handler {
	if locker == nil {
		locker = locks.NopLocker{}
	}
	if maxFileBytes <= 0 {
		maxFileBytes = DefaultMaxFileBytes
	}
	return &Handler{
		service:      service,
		locker:       locker,
		maxFileBytes: maxFileBytes,
		logger:       logger,
	}
}

func (h *Handler) Register(g *echo.Group) {
	g.POST("", h.Import)
	g.POST("/check", h.Check)
}

// Import parses the uploaded fixture files and reconciles them into the municipality.
func (h *Handler) Import(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "importer_handler.Import")
	defer span.End()

	headers, err := h.formFiles(c, "files")
	if err != nil {
		return err
	}
	if len(headers) == 0 {
		return httperror.NewHTTPError(http.StatusBadRequest, "no files were uploaded")
	}

	files, err := h.readFiles(headers)
	if err != nil {
		return err
	}

	records, err := importer.ParseFixtures(files)
	if err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(records) == 0 {
		return httperror.NewHTTPError(http.StatusBadRequest, importer.ErrNoRecords.Error())
	}

	actorID, actorName := appctx.GetActor(ctx)
	fileNames := make([]string, len(files))
	for i, f := range files {
		fileNames[i] = f.Name
	}

	req := importer.ImportRequest{
		Records:        records,
		FileNames:      fileNames,
		Mode:           models.ParseImportMode(c.FormValue("mode")),
		MunicipalityID: strings.TrimSpace(c.FormValue("municipalityId")),
		ImportedByID:   actorID,
		ImportedByName: actorName,
	}

	lock, err := h.locker.Acquire(ctx, locks.ImportKey(req.LockSubject()))
	if err != nil {
		if errors.Is(err, locks.ErrLockNotAcquired) {
			return httperror.NewHTTPError(http.StatusConflict, "an import for this municipality is already running")
		}
		h.logger.WithContext(ctx).WithError(err).Error("failed to acquire import lock")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to acquire import lock")
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			h.logger.WithContext(ctx).WithError(err).Warn("failed to release import lock")
		}
	}()

	stats, err := h.service.Import(ctx, req)
	if err != nil {
		tracing.Fail(span, err, "import failed")
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, stats)
}

// Check reports whether the municipality in the uploaded file already has associations.
func (h *Handler) Check(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "importer_handler.Check")
	defer span.End()

	headers, err := h.formFiles(c, "file")
	if err != nil {
		return err
	}
	if len(headers) == 0 {
		return httperror.NewHTTPError(http.StatusBadRequest, "no file was uploaded")
	}

	files, err := h.readFiles(headers[:1])
	if err != nil {
		return err
	}

	records, err := importer.ParseFixture(files[0].Name, files[0].Content)
	if err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result, err := h.service.Check(ctx, records)
	if err != nil {
		tracing.Fail(span, err, "check failed")
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, result)
}

func (h *Handler) formFiles(c echo.Context, field string) ([]*multipart.FileHeader, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid multipart form: %v", err)
	}
	return form.File[field], nil
}

func (h *Handler) readFiles(headers []*multipart.FileHeader) ([]importer.FixtureFile, error) {
	files := make([]importer.FixtureFile, 0, len(headers))
	for _, fh := range headers {
		if fh.Size > h.maxFileBytes {
			return nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "file %s exceeds the maximum size of %d bytes", fh.Filename, h.maxFileBytes)
		}

		content, err := readFile(fh, h.maxFileBytes)
		if err != nil {
			return nil, err
		}
		files = append(files, importer.FixtureFile{Name: fh.Filename, Content: content})
	}
	return files, nil
}

func readFile(fh *multipart.FileHeader, limit int64) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "failed to open file %s: %v", fh.Filename, err)
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "failed to read file %s: %v", fh.Filename, err)
	}
	if int64(len(content)) > limit {
		return nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "file %s exceeds the maximum size of %d bytes", fh.Filename, limit)
	}
	return content, nil
}

func toHTTPError(err error) error {
	if importer.IsPrecondition(err) {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if httperror.IsHTTPError(err) {
		return err
	}
	return httperror.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("import failed: %v", err))
}
