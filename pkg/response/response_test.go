package response

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/saveyours/booking-api/pkg/errors"
)

func TestErrorUsesTypedStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	Error(c, appErrors.Clone(appErrors.ErrCapacityExceeded, "session s1 is full"))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	var body Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Error)
	assert.Equal(t, "CAPACITY_EXCEEDED", body.Error.Code)
	assert.Nil(t, body.Data)
}

func TestErrorRecordsInternalCause(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	Error(c, sql.ErrConnDone)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Len(t, c.Errors, 1)
	assert.ErrorIs(t, c.Errors[0].Err, sql.ErrConnDone)
	assert.NotContains(t, rec.Body.String(), "connection")
}

func TestJSONDropsEmptyMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	JSON(c, http.StatusOK, []string{"a"}, nil, map[string]interface{}{})

	assert.JSONEq(t, `{"data":["a"]}`, rec.Body.String())
}
