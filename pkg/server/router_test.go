package server_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apoxy-dev/shorty/pkg/server"
)

func textHandler(body string) server.Handler {
	return server.HandlerFunc(func(ctx context.Context, req *server.Request) *server.Response {
		return server.Text(server.StatusOK, body)
	})
}

func serve(t *testing.T, h server.Handler, raw string) *server.Response {
	t.Helper()
	resp := h.ServeRequest(context.Background(), server.ParseRequest([]byte(raw)))
	require.NotNil(t, resp)
	return resp
}

func TestRouter(t *testing.T) {
	r, err := server.NewRouter([]server.Route{
		{Method: server.MethodGet, Path: "/", Handler: textHandler("landing")},
		{Method: server.MethodPost, Path: "/", Handler: textHandler("create")},
		{Method: server.MethodGet, Path: "/style.css", Handler: textHandler("css")},
	}, server.WithFallback(server.HandlerFunc(func(ctx context.Context, req *server.Request) *server.Response {
		return server.Text(server.StatusOK, "fallback "+req.Path)
	})))
	require.NoError(t, err)

	t.Run("Exact match", func(t *testing.T) {
		assert.Equal(t, "landing", string(serve(t, r, "GET / HTTP/1.1\r\n\r\n").Body))
		assert.Equal(t, "create", string(serve(t, r, "POST / HTTP/1.1\r\n\r\n").Body))
		assert.Equal(t, "css", string(serve(t, r, "GET /style.css HTTP/1.1\r\n\r\n").Body))
	})

	t.Run("Query is not part of the path", func(t *testing.T) {
		assert.Equal(t, "css", string(serve(t, r, "GET /style.css?v=2 HTTP/1.1\r\n\r\n").Body))
	})

	t.Run("Fallback", func(t *testing.T) {
		assert.Equal(t, "fallback /abc", string(serve(t, r, "GET /abc HTTP/1.1\r\n\r\n").Body))
		assert.Equal(t, "fallback /style.css", string(serve(t, r, "POST /style.css HTTP/1.1\r\n\r\n").Body))
	})

	t.Run("Method not allowed", func(t *testing.T) {
		resp := serve(t, r, "DELETE / HTTP/1.1\r\n\r\n")
		assert.Equal(t, server.StatusMethodNotAllowed, resp.Status)
		assert.Equal(t, "GET, POST", resp.Header["Allow"])
		assert.Equal(t, "Method 'DELETE' is not allowed!", string(resp.Body))
	})

	t.Run("Invalid request", func(t *testing.T) {
		resp := serve(t, r, "nonsense")
		assert.Equal(t, server.StatusBadRequest, resp.Status)
	})

	t.Run("Lookup", func(t *testing.T) {
		_, ok := r.Lookup(server.MethodGet, "/style.css")
		assert.True(t, ok)
		_, ok = r.Lookup(server.MethodPost, "/style.css")
		assert.False(t, ok)
	})
}

func TestRouterWithoutFallback(t *testing.T) {
	r, err := server.NewRouter([]server.Route{
		{Method: server.MethodGet, Path: "/", Handler: textHandler("landing")},
	})
	require.NoError(t, err)

	resp := serve(t, r, "GET /missing HTTP/1.1\r\n\r\n")
	assert.Equal(t, server.StatusNotFound, resp.Status)
	assert.Equal(t, "Nothing found for url '/missing' with method 'GET'!", string(resp.Body))
}

func TestNewRouterErrors(t *testing.T) {
	h := textHandler("x")
	for name, routes := range map[string][]server.Route{
		"Duplicate": {
			{Method: server.MethodGet, Path: "/", Handler: h},
			{Method: server.MethodGet, Path: "/", Handler: h},
		},
		"Method":     {{Method: "PUT", Path: "/", Handler: h}},
		"Path":       {{Method: server.MethodGet, Path: "style.css", Handler: h}},
		"No handler": {{Method: server.MethodGet, Path: "/"}},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := server.NewRouter(routes)
			require.Error(t, err)
		})
	}
}
