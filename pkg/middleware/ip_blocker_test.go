package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func ok() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Allowed"))
	})
}

func TestIPBlocker(t *testing.T) {
	list := NewIPBlockList("10.0.0.1", " 10.0.0.2", "")
	handler := list.Middleware(ok())
	assert.Equal(t, 2, list.Len())

	t.Run("Blocks_Configured_IP", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = "10.0.0.1:12345"
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Contains(t, rec.Body.String(), `"success":false`)
	})

	t.Run("Allows_Clean_IP", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = "192.168.1.100:12345"
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("Dynamic_Blocking", func(t *testing.T) {
		ip := "1.2.3.4"
		list.Add(ip)
		defer list.Remove(ip)

		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = ip + ":5555"
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}
