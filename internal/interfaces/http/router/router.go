// Package router mounts the API's domain groups under a versioned prefix.
package router

import (
	"net/http"
	"path"

	"github.com/gin-gonic/gin"
)

// Route describes one registered endpoint.
type Route struct {
	Method string
	Path   string
	Writes bool
}

// Router mounts domain groups on a gin engine.
type Router struct {
	engine      *gin.Engine
	apiVersion  string
	middleware  []gin.HandlerFunc
	writeGuards []gin.HandlerFunc
	groups      []*DomainGroup
}

// Option configures a Router.
type Option func(*Router)

// WithAPIVersion sets the version segment of the prefix, "v1" by default.
func WithAPIVersion(version string) Option {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// WithWriteGuard installs handlers that run in front of every route that
// changes the record store, after the group's own middleware.
func WithWriteGuard(guards ...gin.HandlerFunc) Option {
	return func(r *Router) {
		r.writeGuards = append(r.writeGuards, guards...)
	}
}

// New returns a Router for engine.
func New(engine *gin.Engine, opts ...Option) *Router {
	r := &Router{engine: engine, apiVersion: "v1"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Use adds middleware to the API prefix only; engine-wide middleware
// belongs on the engine.
func (r *Router) Use(middleware ...gin.HandlerFunc) *Router {
	r.middleware = append(r.middleware, middleware...)
	return r
}

// Mount queues groups for Setup.
func (r *Router) Mount(groups ...*DomainGroup) *Router {
	r.groups = append(r.groups, groups...)
	return r
}

// BasePath is the API prefix, e.g. "/api/v1".
func (r *Router) BasePath() string {
	return "/api/" + r.apiVersion
}

// Setup registers every mounted group and returns the routes it added.
func (r *Router) Setup() []Route {
	api := r.engine.Group(r.BasePath(), r.middleware...)
	var routes []Route
	for _, g := range r.groups {
		group := api.Group(g.prefix, g.middleware...)
		for _, e := range g.endpoints {
			chain := make([]gin.HandlerFunc, 0, len(r.writeGuards)+1)
			if e.writes {
				chain = append(chain, r.writeGuards...)
			}
			group.Handle(e.method, e.path, append(chain, e.handler)...)
			routes = append(routes, Route{
				Method: e.method,
				Path:   path.Join(group.BasePath(), e.path),
				Writes: e.writes,
			})
		}
	}
	return routes
}

// DomainGroup is the set of endpoints of one domain under a shared prefix.
// GET endpoints read; POST and DELETE endpoints write and are put behind
// the router's write guards.
type DomainGroup struct {
	name       string
	prefix     string
	middleware []gin.HandlerFunc
	endpoints  []endpoint
}

type endpoint struct {
	method  string
	path    string
	handler gin.HandlerFunc
	writes  bool
}

// NewDomainGroup returns an empty group.
func NewDomainGroup(name, prefix string) *DomainGroup {
	return &DomainGroup{name: name, prefix: prefix}
}

// Use adds middleware to every endpoint of the group.
func (g *DomainGroup) Use(middleware ...gin.HandlerFunc) *DomainGroup {
	g.middleware = append(g.middleware, middleware...)
	return g
}

// GET adds a read endpoint.
func (g *DomainGroup) GET(path string, h gin.HandlerFunc) *DomainGroup {
	return g.add(http.MethodGet, path, h, false)
}

// POST adds a write endpoint.
func (g *DomainGroup) POST(path string, h gin.HandlerFunc) *DomainGroup {
	return g.add(http.MethodPost, path, h, true)
}

// DELETE adds a write endpoint.
func (g *DomainGroup) DELETE(path string, h gin.HandlerFunc) *DomainGroup {
	return g.add(http.MethodDelete, path, h, true)
}

func (g *DomainGroup) add(method, path string, h gin.HandlerFunc, writes bool) *DomainGroup {
	g.endpoints = append(g.endpoints, endpoint{method: method, path: path, handler: h, writes: writes})
	return g
}

// Name is the group's label.
func (g *DomainGroup) Name() string { return g.name }

// Prefix is the path segment the group is mounted at.
func (g *DomainGroup) Prefix() string { return g.prefix }
