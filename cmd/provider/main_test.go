package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(s Settings) (*Provider, *gin.Engine) {
	gin.SetMode(gin.TestMode)
	p := NewProvider(s)
	return p, SetupRouter(&Handler{provider: p})
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestSend(t *testing.T) {
	t.Run("delivered", func(t *testing.T) {
		_, r := newRouter(Settings{DeliveryRate: 1})
		w := do(r, http.MethodPost, "/api/v1/sms/send", `{"message_id":"11","phone_number":"+919876543210","channel":"WHATSAPP","content":"hi"}`)
		require.Equal(t, http.StatusOK, w.Code)

		var res SendResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		assert.Equal(t, "11", res.MessageID)
		assert.Equal(t, StatusDelivered, res.Status)
		assert.NotNil(t, res.DeliveredAt)
	})

	t.Run("failed", func(t *testing.T) {
		_, r := newRouter(Settings{DeliveryRate: 0})
		w := do(r, http.MethodPost, "/api/v1/sms/send", `{"message_id":"12","phone_number":"+919876543210","content":"hi"}`)
		require.Equal(t, http.StatusAccepted, w.Code)

		var res SendResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		assert.Equal(t, StatusFailed, res.Status)
		assert.Contains(t, codeList, res.ErrorCode)
		assert.Equal(t, errorCodes[res.ErrorCode], res.ErrorMsg)
	})

	t.Run("bad requests", func(t *testing.T) {
		_, r := newRouter(Settings{DeliveryRate: 1})
		assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/v1/sms/send", `{"message_id":"1"}`).Code)
		assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/v1/sms/send",
			`{"message_id":"1","phone_number":"a@b.co","channel":"EMAIL","content":"hi"}`).Code)
	})
}

func TestStatus(t *testing.T) {
	_, r := newRouter(Settings{DeliveryRate: 1})
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/v1/sms/status/99", "").Code)

	do(r, http.MethodPost, "/api/v1/sms/send", `{"message_id":"99","phone_number":"+1","content":"hi"}`)
	w := do(r, http.MethodGet, "/api/v1/sms/status/99", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"DELIVERED"`)
}

func TestHealthAndSettings(t *testing.T) {
	p, r := newRouter(Settings{DeliveryRate: 1})
	w := do(r, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)

	w = do(r, http.MethodPut, "/api/v1/config", `{"down_rate":1,"delivery_rate":7}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1.0, p.current().DownRate)
	assert.Equal(t, 1.0, p.current().DeliveryRate)

	assert.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodGet, "/health", "").Code)
}
