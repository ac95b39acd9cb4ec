package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondErrorMapsSentinels(t *testing.T) {
	cases := []struct {
		err    error
		status int
		detail bool
	}{
		{fmt.Errorf("%w: start", ErrValidation), http.StatusBadRequest, true},
		{fmt.Errorf("%w: report", ErrNotFound), http.StatusNotFound, true},
		{fmt.Errorf("%w: products", ErrUnavailable), http.StatusServiceUnavailable, false},
		{fmt.Errorf("load: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, false},
		{ErrTimeout, http.StatusGatewayTimeout, false},
		{errors.New("boom"), http.StatusInternalServerError, false},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		RespondError(rr, tc.err)
		require.Equal(t, tc.status, rr.Code, tc.err.Error())
		assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))

		var problem ProblemDetail
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &problem))
		assert.Equal(t, tc.status, problem.Status)
		assert.Equal(t, tc.detail, problem.Detail != "", tc.err.Error())
	}
}
