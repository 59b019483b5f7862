package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(engine *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())
	assert.Equal(t, "v1", r.apiVersion)
	assert.Empty(t, r.registrars)

	r = NewRouter(gin.New(), WithAPIVersion("v2"))
	assert.Equal(t, "v2", r.apiVersion)
}

func TestRouter_Setup(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)

	sales := NewDomainGroup("sales", "/sales")
	sales.GET("/:id", func(c *gin.Context) { c.String(http.StatusOK, c.Param("id")) })
	orders := NewDomainGroup("orders", "/orders")
	orders.DELETE("/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	r.Register(sales).Register(orders)
	api := r.Setup()
	assert.Equal(t, "/api/v1", api.BasePath())

	w := serve(engine, http.MethodGet, "/api/v1/sales/abc")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc", w.Body.String())
	assert.Equal(t, http.StatusNoContent, serve(engine, http.MethodDelete, "/api/v1/orders/1").Code)
	assert.Equal(t, http.StatusNotFound, serve(engine, http.MethodGet, "/sales/abc").Code)
}

func TestRouter_UseAppliesToAPIOnly(t *testing.T) {
	engine := gin.New()
	engine.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	r := NewRouter(engine).Use(func(c *gin.Context) {
		c.Header("X-API", "1")
		c.Next()
	})
	r.Register(NewDomainGroup("system", "/system").GET("/info", func(c *gin.Context) { c.Status(http.StatusOK) }))
	r.Setup()

	assert.Equal(t, "1", serve(engine, http.MethodGet, "/api/v1/system/info").Header().Get("X-API"))
	assert.Empty(t, serve(engine, http.MethodGet, "/health").Header().Get("X-API"))
}

func TestDomainGroup_Methods(t *testing.T) {
	ok := func(c *gin.Context) { c.String(http.StatusOK, c.Request.Method) }
	g := NewDomainGroup("products", "/products").
		GET("/:id", ok).
		POST("", ok).
		PUT("/:id", ok).
		PATCH("/:id/status", ok).
		DELETE("/:id", ok).
		Handle(http.MethodOptions, "", ok)

	assert.Equal(t, "products", g.Name())
	assert.Equal(t, "/products", g.Prefix())

	engine := gin.New()
	g.RegisterRoutes(engine.Group("/api/v1"))

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/products/1"},
		{http.MethodPost, "/api/v1/products"},
		{http.MethodPut, "/api/v1/products/1"},
		{http.MethodPatch, "/api/v1/products/1/status"},
		{http.MethodDelete, "/api/v1/products/1"},
		{http.MethodOptions, "/api/v1/products"},
	}
	for _, tt := range tests {
		w := serve(engine, tt.method, tt.path)
		assert.Equal(t, http.StatusOK, w.Code, "%s %s", tt.method, tt.path)
		assert.Equal(t, tt.method, w.Body.String())
	}
}

func TestDomainGroup_MiddlewareAndSubgroups(t *testing.T) {
	engine := gin.New()
	g := NewDomainGroup("sync", "/sync").Use(func(c *gin.Context) {
		c.Header("X-Group", "sync")
		c.Next()
	})
	g.Group("products", "/products").POST("/link-by-sku", func(c *gin.Context) { c.String(http.StatusOK, "linked") })
	g.Group("orders", "/orders").POST("/:id", func(c *gin.Context) { c.String(http.StatusOK, "pushed") })
	g.RegisterRoutes(engine.Group("/api/v1"))

	w := serve(engine, http.MethodPost, "/api/v1/sync/products/link-by-sku")
	assert.Equal(t, "linked", w.Body.String())
	assert.Equal(t, "sync", w.Header().Get("X-Group"))

	w = serve(engine, http.MethodPost, "/api/v1/sync/orders/9")
	assert.Equal(t, "pushed", w.Body.String())
	assert.Equal(t, "sync", w.Header().Get("X-Group"))
}
