package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", ErrNotFound, http.StatusNotFound},
		{"wrapped not found", fmt.Errorf("role %q: %w", "x", ErrNotFound), http.StatusNotFound},
		{"conflict", fmt.Errorf("%w: role name already exists", ErrConflict), http.StatusConflict},
		{"forbidden", ErrForbidden, http.StatusForbidden},
		{"unauthorized", ErrUnauthorized, http.StatusUnauthorized},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := httptest.NewRecorder()
			RespondError(res, tc.err)

			assert.Equal(t, tc.status, res.Code)

			var body ErrorBody
			require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	res := httptest.NewRecorder()
	RespondError(res, errors.New("pq: connection refused"))

	var body ErrorBody
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	assert.Equal(t, "internal error", body.Error)
}

func TestRespondErrorValidationFields(t *testing.T) {
	res := httptest.NewRecorder()
	RespondError(res, NewValidationError(map[string]string{
		"page":     "must be at least 1",
		"pageSize": "must be between 1 and 100",
	}))

	assert.Equal(t, http.StatusBadRequest, res.Code)

	var body ValidationBody
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	assert.Equal(t, ErrValidation.Error(), body.Error)
	assert.Equal(t, "must be at least 1", body.Fields["page"])
	assert.Equal(t, "must be between 1 and 100", body.Fields["pageSize"])
}

func TestValidationErrorUnwrapsToSentinel(t *testing.T) {
	err := NewValidationError(map[string]string{"name": "must not be empty"})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "validation failed: name: must not be empty", err.Error())
}
