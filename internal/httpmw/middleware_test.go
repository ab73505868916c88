package httpmw

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func gateRouter(token string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequireBearer(token))
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/v1/positions", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func doGet(t *testing.T, r *gin.Engine, path, bearer string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRequireBearer_GuardsAPIButNotInfra(t *testing.T) {
	r := gateRouter("hunter2")

	if code := doGet(t, r, "/healthz", ""); code != http.StatusOK {
		t.Fatalf("healthz code=%d want %d", code, http.StatusOK)
	}
	if code := doGet(t, r, "/api/v1/positions", ""); code != http.StatusUnauthorized {
		t.Fatalf("missing token code=%d want %d", code, http.StatusUnauthorized)
	}
	if code := doGet(t, r, "/api/v1/positions", "wrong"); code != http.StatusUnauthorized {
		t.Fatalf("wrong token code=%d want %d", code, http.StatusUnauthorized)
	}
	if code := doGet(t, r, "/api/v1/positions", "hunter2"); code != http.StatusOK {
		t.Fatalf("valid token code=%d want %d", code, http.StatusOK)
	}
}

func TestRequireBearer_PassThroughWhenUnconfigured(t *testing.T) {
	r := gateRouter("")

	if code := doGet(t, r, "/api/v1/positions", ""); code != http.StatusOK {
		t.Fatalf("code=%d want %d when no token configured", code, http.StatusOK)
	}
}
