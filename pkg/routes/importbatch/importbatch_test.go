package importbatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/database"
	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/logging"
	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/middleware"
	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/models"
)

type fakeRepo struct {
	batches        []models.ImportBatch
	municipalityID string
	page, pageSize int
}

func (r *fakeRepo) GetByID(_ context.Context, _ database.Querier, id string) (*models.ImportBatch, error) {
	for _, b := range r.batches {
		if b.ID == id {
			return &b, nil
		}
	}
	return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "import batch %s not found", id)
}

func (r *fakeRepo) List(_ context.Context, _ database.Querier, municipalityID string, page, pageSize int) ([]models.ImportBatch, int, error) {
	r.municipalityID, r.page, r.pageSize = municipalityID, page, pageSize
	return r.batches, len(r.batches), nil
}

func serve(h *Handler, path string) *httptest.ResponseRecorder {
	e := echo.New()
	e.HTTPErrorHandler = middleware.Error(logging.NewNopLogger())
	h.Register(e.Group("/api/v1/import-batches"))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestList(t *testing.T) {
	repo := &fakeRepo{batches: []models.ImportBatch{
		{ID: "b-1", Status: models.ImportStatusCompleted, Errors: database.NewJSONB([]string{})},
	}}
	h := NewHandler(nil, repo)

	rec := serve(h, "/api/v1/import-batches?municipality_id=m-1&page=2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "m-1", repo.municipalityID)
	assert.Equal(t, 2, repo.page)
	assert.Equal(t, database.DefaultPageSize, repo.pageSize)

	var body models.ImportBatchListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.TotalCount)
	assert.Equal(t, "b-1", body.Items[0].ID)
}

func TestGet(t *testing.T) {
	repo := &fakeRepo{batches: []models.ImportBatch{
		{ID: "b-1", Status: models.ImportStatusFailed, ErrorCount: 1, Errors: database.NewJSONB([]string{"A (saknar detailUrl): boom"})},
	}}
	h := NewHandler(nil, repo)

	rec := serve(h, "/api/v1/import-batches/b-1")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "failed", body["status"])
	assert.Equal(t, []any{"A (saknar detailUrl): boom"}, body["errors"])

	assert.Equal(t, http.StatusNotFound, serve(h, "/api/v1/import-batches/b-2").Code)
}
