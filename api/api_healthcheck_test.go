package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/tj/assert"
	"github.com/vaultpass/go-vaultpass-core/global"
)

func TestHealthCheck(t *testing.T) {
	global.Conf.Relay.AppVersionName = "1.2.3"
	global.Conf.Mode = "debug"

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/api/v1/healthcheck", NewHealthCheckAPI().HealthCheck)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/healthcheck", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "1.2.3", body["version"])
}
