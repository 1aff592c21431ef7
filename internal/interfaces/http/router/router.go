package router

import (
	"github.com/gin-gonic/gin"
)

// RouteRegistrar mounts its routes on a group.
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router mounts registrars on an engine. API registrars are served under
// /api and again under every alias prefix, so /api/ask and /api/v1/ask are
// the same route. Probe registrars sit at the engine root.
type Router struct {
	engine  *gin.Engine
	aliases []string
	api     []RouteRegistrar
	probes  []RouteRegistrar
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithAliases replaces the prefixes mounted below /api. No arguments
// serves the API under /api only.
func WithAliases(aliases ...string) RouterOption {
	return func(r *Router) {
		r.aliases = aliases
	}
}

// NewRouter returns a router that aliases the API under /api/v1.
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{engine: engine, aliases: []string{"v1"}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds an API registrar.
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.api = append(r.api, registrar)
	return r
}

// RegisterRoot adds a registrar served from the engine root.
func (r *Router) RegisterRoot(registrar RouteRegistrar) *Router {
	r.probes = append(r.probes, registrar)
	return r
}

// Setup mounts everything. Call it once.
func (r *Router) Setup() {
	for _, p := range r.probes {
		p.RegisterRoutes(&r.engine.RouterGroup)
	}

	api := r.engine.Group("/api")
	mount := func(g *gin.RouterGroup) {
		for _, reg := range r.api {
			reg.RegisterRoutes(g)
		}
	}
	mount(api)
	for _, alias := range r.aliases {
		if alias != "" {
			mount(api.Group("/" + alias))
		}
	}
}
