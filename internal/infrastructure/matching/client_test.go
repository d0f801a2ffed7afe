package matching

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/erp/cvr/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	_, err := NewClient(Config{})
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewClient(Config{BaseURL: "matching.local"})
	assert.Error(t, err)

	c, err := NewClient(Config{BaseURL: "http://matching.local/api/"})
	require.NoError(t, err)
	assert.Equal(t, "http://matching.local/api", c.baseURL.String())
	assert.Equal(t, 10*time.Second, c.httpClient.Timeout)
}

func TestClient_AttemptMatch(t *testing.T) {
	tenantID, invoiceID, poID := uuid.New(), uuid.New(), uuid.New()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/invoices/"+invoiceID.String()+"/match-attempts", r.URL.Path)
		assert.Equal(t, tenantID.String(), r.Header.Get("X-Tenant-ID"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"poId":"` + poID.String() + `","code":"PO-7","variance":"-3.20","withinTolerance":true}]}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	res, err := c.AttemptMatch(context.Background(), tenantID, invoiceID)
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, poID, res.Candidates[0].POID)
	assert.Equal(t, "-3.2", res.Candidates[0].Variance.String())
	assert.True(t, res.Candidates[0].WithinTolerance)
}

func TestClient_AcceptMatch(t *testing.T) {
	tenantID, invoiceID, poID := uuid.New(), uuid.New(), uuid.New()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body acceptRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, poID, body.POID)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)
	assert.NoError(t, c.AcceptMatch(context.Background(), tenantID, poID, invoiceID))
}

func TestClient_StatusErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{"not found", http.StatusNotFound, ``, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, shared.ErrNotFound)
		}},
		{"validation", http.StatusUnprocessableEntity, `{"error":{"code":"PO_CLOSED","message":"purchase order is closed"}}`, func(t *testing.T, err error) {
			assert.Equal(t, "PO_CLOSED", shared.CodeOf(err))
		}},
		{"conflict", http.StatusConflict, ``, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
		}},
		{"server error", http.StatusBadGateway, ``, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, shared.ErrUnavailable)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c, err := NewClient(Config{BaseURL: srv.URL})
			require.NoError(t, err)
			_, err = c.AttemptMatch(context.Background(), uuid.New(), uuid.New())
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewClient(Config{BaseURL: url, Timeout: time.Second})
	require.NoError(t, err)
	err = c.AcceptMatch(context.Background(), uuid.New(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, shared.ErrUnavailable)
}
