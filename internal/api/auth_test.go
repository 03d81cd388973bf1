package api_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"novelhub/internal/api"
	"novelhub/pkg/utils"
)

func protectedRouter(cfg utils.APIConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/guarded", api.TokenAuth(cfg), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func TestTokenAuth_RejectsMissingAndWrongToken(t *testing.T) {
	cfg := utils.APIConfig{TokenHeader: "X-API-TOKEN", Token: "secret"}
	r := protectedRouter(cfg)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/guarded", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/guarded", nil)
	req.Header.Set("X-API-TOKEN", "wrong")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTokenAuth_AcceptsValidToken(t *testing.T) {
	cfg := utils.APIConfig{TokenHeader: "X-API-TOKEN", Token: "secret"}
	r := protectedRouter(cfg)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/guarded", nil)
	req.Header.Set("X-API-TOKEN", "secret")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTokenAuth_EmptyTokenDisablesCheck(t *testing.T) {
	cfg := utils.APIConfig{TokenHeader: "X-API-TOKEN", Token: ""}
	r := protectedRouter(cfg)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/guarded", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
