package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iapgate/internal/application/receipt"
	"iapgate/internal/domain/purchase"
	"iapgate/internal/interfaces/http/handlers/testutil"
	"iapgate/internal/shared/logger"
)

type validateCall struct {
	receipts []string
}

func newTestValidationHandler(calls *validateCall, result *purchase.ValidationResult, err error) *ValidationHandler {
	v := receipt.ValidatorFunc(func(_ context.Context, r string) (*purchase.ValidationResult, error) {
		calls.receipts = append(calls.receipts, r)
		return result, err
	})
	return NewValidationHandler(v, logger.Nop())
}

func TestValidationHandler_Validate_Outcomes(t *testing.T) {
	tests := []struct {
		name     string
		result   purchase.ValidationResult
		expected purchase.Outcome
	}{
		{"active", purchase.ActiveResult(), purchase.OutcomeActive},
		{"expired", purchase.ExpiredResult(), purchase.OutcomeExpired},
		{"rejected", purchase.RejectedResult(), purchase.OutcomeRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := &validateCall{}
			result := tt.result
			handler := newTestValidationHandler(calls, &result, nil)

			c, w := testutil.NewTestContext(http.MethodPost, "/validate", purchase.ValidationRequest{Data: "rcpt_abc"})
			handler.Validate(c)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, []string{"rcpt_abc"}, calls.receipts)

			var env purchase.ValidationEnvelope
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
			require.NotNil(t, env.Result)
			assert.Equal(t, tt.expected, env.Result.Classify())
		})
	}
}

func TestValidationHandler_Validate_WireShape(t *testing.T) {
	calls := &validateCall{}
	result := purchase.RejectedResult()
	handler := newTestValidationHandler(calls, &result, nil)

	c, w := testutil.NewTestContext(http.MethodPost, "/validate", `{"data":"unknown"}`)
	handler.Validate(c)

	assert.JSONEq(t, `{"result":{"error":-1}}`, w.Body.String())
}

func TestValidationHandler_Validate_InvalidRequest(t *testing.T) {
	bodies := map[string]string{
		"missing data": `{}`,
		"empty data":   `{"data":""}`,
		"not json":     `data=abc`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			calls := &validateCall{}
			handler := newTestValidationHandler(calls, nil, nil)

			c, w := testutil.NewTestContext(http.MethodPost, "/validate", body)
			handler.Validate(c)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Empty(t, calls.receipts)

			var resp testutil.APIResponse
			require.NoError(t, testutil.ParseResponse(w, &resp))
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, "validation_error", resp.Error.Type)
		})
	}
}

func TestValidationHandler_Validate_LedgerError(t *testing.T) {
	calls := &validateCall{}
	handler := newTestValidationHandler(calls, nil, errors.New("database is locked"))

	c, w := testutil.NewTestContext(http.MethodPost, "/validate", purchase.ValidationRequest{Data: "rcpt_abc"})
	handler.Validate(c)

	assert.Equal(t, http.StatusBadGateway, w.Code)

	var resp testutil.APIResponse
	require.NoError(t, testutil.ParseResponse(w, &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "upstream_error", resp.Error.Type)
	assert.Equal(t, "database is locked", resp.Error.Details)
}
