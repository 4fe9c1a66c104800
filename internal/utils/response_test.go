package utils_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-events/internal/utils"
)

func TestWriteJSONSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("ok", map[string]int{"total": 3})))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(3), body["data"].(map[string]interface{})["total"])
	assert.NotContains(t, body, "error")
}

func TestWriteJSONError(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, utils.WriteJSON(w, http.StatusConflict, utils.ErrorResponse("Esgotado", "fully_booked", "event is fully booked")))

	assert.Equal(t, http.StatusConflict, w.Code)

	var resp utils.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "fully_booked", resp.Code)
	assert.Equal(t, "event is fully booked", resp.Error)
	assert.Nil(t, resp.Data)
}
