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

func status(code int) gin.HandlerFunc {
	return func(c *gin.Context) { c.Status(code) }
}

func TestRouter_Setup(t *testing.T) {
	engine := gin.New()
	r := New(engine, WithAPIVersion("v2"))
	assert.Equal(t, "/api/v2", r.BasePath())

	var seen []string
	r.Use(func(c *gin.Context) {
		seen = append(seen, c.FullPath())
		c.Next()
	})

	routes := r.Mount(NewDomainGroup("test", "/test").
		GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })).
		Setup()
	assert.Equal(t, []Route{{Method: http.MethodGet, Path: "/api/v2/test/ping"}}, routes)

	engine.GET("/outside", status(http.StatusOK))

	w := serve(engine, http.MethodGet, "/api/v2/test/ping")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())

	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/outside").Code)
	assert.Equal(t, []string{"/api/v2/test/ping"}, seen, "router middleware only wraps API routes")
}

func TestDomainGroup_Methods(t *testing.T) {
	g := NewDomainGroup("invoicing", "/invoices").
		GET("/next-number", status(http.StatusOK)).
		POST("/generate", status(http.StatusCreated)).
		DELETE("", status(http.StatusAccepted))
	assert.Equal(t, "invoicing", g.Name())
	assert.Equal(t, "/invoices", g.Prefix())

	engine := gin.New()
	routes := New(engine).Mount(g).Setup()
	assert.Equal(t, []Route{
		{Method: http.MethodGet, Path: "/api/v1/invoices/next-number"},
		{Method: http.MethodPost, Path: "/api/v1/invoices/generate", Writes: true},
		{Method: http.MethodDelete, Path: "/api/v1/invoices", Writes: true},
	}, routes)

	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/api/v1/invoices/next-number").Code)
	assert.Equal(t, http.StatusCreated, serve(engine, http.MethodPost, "/api/v1/invoices/generate").Code)
	assert.Equal(t, http.StatusAccepted, serve(engine, http.MethodDelete, "/api/v1/invoices").Code)
	assert.Equal(t, http.StatusNotFound, serve(engine, http.MethodGet, "/api/v1/invoices/generate").Code)
}

func TestRouter_WriteGuardsAndGroupMiddleware(t *testing.T) {
	var order []string
	mark := func(name string) gin.HandlerFunc {
		return func(c *gin.Context) {
			order = append(order, name)
			c.Next()
		}
	}

	engine := gin.New()
	g := NewDomainGroup("members", "/members").
		Use(mark("group")).
		GET("/export", status(http.StatusOK)).
		POST("/seed", status(http.StatusCreated))
	New(engine, WithWriteGuard(mark("guard"))).Mount(g).Setup()

	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/api/v1/members/export").Code)
	assert.Equal(t, []string{"group"}, order)

	order = nil
	assert.Equal(t, http.StatusCreated, serve(engine, http.MethodPost, "/api/v1/members/seed").Code)
	assert.Equal(t, []string{"group", "guard"}, order)
}
