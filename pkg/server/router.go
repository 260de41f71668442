package server

import (
	"context"
	"fmt"
	"strings"
)

// Handler produces a response for a request.
type Handler interface {
	ServeRequest(ctx context.Context, req *Request) *Response
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, req *Request) *Response

func (f HandlerFunc) ServeRequest(ctx context.Context, req *Request) *Response {
	return f(ctx, req)
}

// Route binds a handler to an exact method and path.
type Route struct {
	Method  Method
	Path    string
	Handler Handler
}

type routeKey struct {
	method Method
	path   string
}

// allowedMethods are the only methods the router dispatches.
var allowedMethods = []Method{MethodGet, MethodPost}

// Router dispatches requests by exact (method, path) match. It cannot be
// modified after NewRouter returns.
type Router struct {
	routes   map[routeKey]Handler
	fallback Handler
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithFallback sets the handler used when no route matches.
func WithFallback(h Handler) RouterOption {
	return func(r *Router) {
		r.fallback = h
	}
}

// NewRouter builds a router from the given routes.
func NewRouter(routes []Route, opts ...RouterOption) (*Router, error) {
	r := &Router{routes: make(map[routeKey]Handler, len(routes))}
	for _, rt := range routes {
		if !isAllowed(rt.Method) {
			return nil, fmt.Errorf("unsupported method %q for route %s", rt.Method, rt.Path)
		}
		if !strings.HasPrefix(rt.Path, "/") {
			return nil, fmt.Errorf("route path %q must start with /", rt.Path)
		}
		if rt.Handler == nil {
			return nil, fmt.Errorf("route %s %s has no handler", rt.Method, rt.Path)
		}
		k := routeKey{method: rt.Method, path: rt.Path}
		if _, ok := r.routes[k]; ok {
			return nil, fmt.Errorf("duplicate route %s %s", rt.Method, rt.Path)
		}
		r.routes[k] = rt.Handler
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Lookup returns the handler registered for exactly method and path.
func (r *Router) Lookup(method Method, path string) (Handler, bool) {
	h, ok := r.routes[routeKey{method: method, path: path}]
	return h, ok
}

// ServeRequest implements Handler.
func (r *Router) ServeRequest(ctx context.Context, req *Request) *Response {
	if !req.Valid() {
		return Text(StatusBadRequest, "Malformed request!")
	}
	if !isAllowed(req.Method) {
		return Text(StatusMethodNotAllowed,
			fmt.Sprintf("Method '%s' is not allowed!", req.Method),
			WithAllow(allowedMethods...))
	}
	if h, ok := r.Lookup(req.Method, req.Path); ok {
		return h.ServeRequest(ctx, req)
	}
	if r.fallback != nil {
		return r.fallback.ServeRequest(ctx, req)
	}
	return NotFound(req)
}

func isAllowed(m Method) bool {
	for _, a := range allowedMethods {
		if m == a {
			return true
		}
	}
	return false
}
