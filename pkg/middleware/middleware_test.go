package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/context"
	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/logging"
)

func newEcho() *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = Error(logging.NewNopLogger())
	e.Use(Context())
	return e
}

func TestContext(t *testing.T) {
	e := newEcho()

	var requestID, userID, userName string
	e.GET("/whoami", func(c echo.Context) error {
		ctx := c.Request().Context()
		requestID = appctx.GetRequestID(ctx)
		userID, userName = appctx.GetActor(ctx)
		return c.NoContent(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(HeaderUserID, "user-1")
	req.Header.Set(HeaderUserName, "Anna")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotEmpty(t, requestID)
	assert.Equal(t, requestID, rec.Header().Get(echo.HeaderXRequestID))
	assert.Equal(t, "user-1", userID)
	assert.Equal(t, "Anna", userName)

	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(echo.HeaderXRequestID, "req-42")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, "req-42", requestID)
	assert.Equal(t, appctx.SystemActorID, userID)
}

func TestError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		method   string
		wantCode int
		wantMsg  string
	}{
		{
			name:     "http error",
			err:      httperror.NewHTTPError(http.StatusConflict, "an import is already running"),
			wantCode: http.StatusConflict,
			wantMsg:  "an import is already running",
		},
		{
			name:     "echo error",
			err:      echo.NewHTTPError(http.StatusRequestEntityTooLarge, "too big"),
			wantCode: http.StatusRequestEntityTooLarge,
			wantMsg:  "too big",
		},
		{
			name:     "plain error",
			err:      errors.New("database exploded"),
			wantCode: http.StatusInternalServerError,
			wantMsg:  "Internal Server Error",
		},
		{
			name:     "head request",
			err:      httperror.NewHTTPError(http.StatusNotFound, "missing"),
			method:   http.MethodHead,
			wantCode: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEcho()
			e.Any("/fail", func(echo.Context) error { return tt.err })

			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			req := httptest.NewRequest(method, "/fail", nil)
			req.Header.Set(echo.HeaderXRequestID, "req-1")
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantMsg == "" {
				assert.Empty(t, rec.Body.String())
				return
			}

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Contains(t, body.Error, tt.wantMsg)
			assert.Equal(t, "req-1", body.RequestID)
		})
	}
}

func TestIsQuiet(t *testing.T) {
	prefixes := []string{"/metrics", "/api/v1/health"}
	assert.True(t, isQuiet("/api/v1/health/ready", prefixes))
	assert.True(t, isQuiet("/metrics", prefixes))
	assert.False(t, isQuiet("/api/v1/import", prefixes))
	assert.False(t, isQuiet("/metrics", nil))
}
