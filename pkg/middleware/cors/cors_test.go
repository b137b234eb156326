package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestPolicyAllowed(t *testing.T) {
	p := NewPolicy([]string{"https://portal.example.edu/"})
	assert.True(t, p.Allowed("https://portal.example.edu"))
	assert.True(t, p.Allowed(""))
	assert.False(t, p.Allowed("https://evil.example.com"))

	open := NewPolicy(nil)
	assert.True(t, open.Allowed("https://anything.example.com"))
}

func TestMiddlewarePreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(New([]string{"https://portal.example.edu"}))
	r.GET("/files", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodOptions, "/files", nil)
	req.Header.Set("Origin", "https://portal.example.edu")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://portal.example.edu", w.Header().Get("Access-Control-Allow-Origin"))
}
