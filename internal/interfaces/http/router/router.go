package router

import (
	"net/http"
	"path"

	"github.com/gin-gonic/gin"
)

// RouteInfo describes one registered endpoint
type RouteInfo struct {
	Group  string
	Method string
	Path   string
}

// RouteRegistrar mounts a set of routes under rg and reports what it mounted
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup) []RouteInfo
}

// Router mounts registrars under /api/<version> behind a shared middleware chain
type Router struct {
	engine     *gin.Engine
	apiVersion string
	middleware []gin.HandlerFunc
	registrars []RouteRegistrar
}

// RouterOption configures a Router
type RouterOption func(*Router)

// WithAPIVersion sets the version segment of the API prefix
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{engine: engine, apiVersion: "v1"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// BasePath returns the versioned API prefix
func (r *Router) BasePath() string {
	return "/api/" + r.apiVersion
}

// Use appends middleware that runs before every API route. Routes outside
// the API prefix (health, swagger) are not affected.
func (r *Router) Use(middleware ...gin.HandlerFunc) *Router {
	r.middleware = append(r.middleware, middleware...)
	return r
}

func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrar)
	return r
}

// Setup mounts every registrar and returns the resulting route table
func (r *Router) Setup() []RouteInfo {
	api := r.engine.Group(r.BasePath(), r.middleware...)
	var routes []RouteInfo
	for _, registrar := range r.registrars {
		routes = append(routes, registrar.RegisterRoutes(api)...)
	}
	return routes
}

// RouteGroup is a declarative set of routes sharing a prefix and middleware.
// Nothing touches gin until RegisterRoutes.
type RouteGroup struct {
	name       string
	prefix     string
	routes     []routeDefinition
	subgroups  []*RouteGroup
	middleware []gin.HandlerFunc
}

type routeDefinition struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

func NewRouteGroup(name, prefix string) *RouteGroup {
	return &RouteGroup{name: name, prefix: prefix}
}

// Use adds middleware to this group and its subgroups
func (g *RouteGroup) Use(middleware ...gin.HandlerFunc) *RouteGroup {
	g.middleware = append(g.middleware, middleware...)
	return g
}

func (g *RouteGroup) GET(path string, handlers ...gin.HandlerFunc) *RouteGroup {
	return g.handle(http.MethodGet, path, handlers)
}

// POST registers a POST route. Extra handlers before the last one act as
// per-route guards.
func (g *RouteGroup) POST(path string, handlers ...gin.HandlerFunc) *RouteGroup {
	return g.handle(http.MethodPost, path, handlers)
}

func (g *RouteGroup) handle(method, path string, handlers []gin.HandlerFunc) *RouteGroup {
	g.routes = append(g.routes, routeDefinition{method: method, path: path, handlers: handlers})
	return g
}

// Group declares a nested group; its name is qualified by the parent's
func (g *RouteGroup) Group(name, prefix string) *RouteGroup {
	sub := NewRouteGroup(g.name+"."+name, prefix)
	g.subgroups = append(g.subgroups, sub)
	return sub
}

func (g *RouteGroup) RegisterRoutes(rg *gin.RouterGroup) []RouteInfo {
	group := rg.Group(g.prefix, g.middleware...)
	routes := make([]RouteInfo, 0, len(g.routes))
	for _, route := range g.routes {
		group.Handle(route.method, route.path, route.handlers...)
		routes = append(routes, RouteInfo{
			Group:  g.name,
			Method: route.method,
			Path:   joinPath(group.BasePath(), route.path),
		})
	}
	for _, sub := range g.subgroups {
		routes = append(routes, sub.RegisterRoutes(group)...)
	}
	return routes
}

func (g *RouteGroup) Name() string {
	return g.name
}

func (g *RouteGroup) Prefix() string {
	return g.prefix
}

// joinPath joins like gin does: a trailing slash on the relative path is kept
func joinPath(base, rel string) string {
	if rel == "" {
		return base
	}
	joined := path.Join(base, rel)
	if rel[len(rel)-1] == '/' && joined[len(joined)-1] != '/' {
		return joined + "/"
	}
	return joined
}
