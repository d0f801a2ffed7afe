package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/erp/cvr/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidation(t *testing.T) {
	type eventRequest struct {
		SourceType string `json:"source_type" binding:"required,cvr_source_type"`
		SourceID   string `json:"source_id" binding:"required,uuid"`
		BatchSize  int    `json:"batch_size" binding:"omitempty,min=1,max=5000"`
	}
	SetupValidator()

	r := gin.New()
	r.POST("/x", func(c *gin.Context) {
		var req eventRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.Status(http.StatusOK)
	})

	post := func(body string) (*httptest.ResponseRecorder, dto.Response) {
		req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		var resp dto.Response
		if w.Code != http.StatusOK {
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		}
		return w, resp
	}

	t.Run("valid", func(t *testing.T) {
		w, _ := post(`{"source_type":"contract","source_id":"6f1c1b1e-6a55-4c2b-9a57-0d7f8c0f2b11"}`)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("field errors use json names", func(t *testing.T) {
		w, resp := post(`{"source_type":"INVOICE","source_id":"nope","batch_size":9000}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)

		fields := map[string]string{}
		for _, d := range resp.Error.Details {
			fields[d.Field] = d.Message
		}
		assert.Equal(t, "Must be CONTRACT or PAYMENT_APPLICATION", fields["source_type"])
		assert.Equal(t, "Invalid UUID format", fields["source_id"])
		assert.Equal(t, "Must be at most 5000", fields["batch_size"])
	})

	t.Run("malformed json", func(t *testing.T) {
		w, resp := post(`{`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Empty(t, resp.Error.Details)
	})
}
