package server_test

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/apoxy-dev/shorty/pkg/server"
)

// startServer runs srv on a loopback listener until the test ends.
func startServer(t *testing.T, srv *server.Server) string {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(ctx, lis)
	})
	t.Cleanup(func() {
		cancel()
		require.NoError(t, g.Wait())
	})

	return lis.Addr().String()
}

// roundTrip writes raw to a fresh connection and reads until the server
// closes it.
func roundTrip(t *testing.T, addr, raw string) *http.Response {
	t.Helper()

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	_, err = io.WriteString(conn, raw)
	require.NoError(t, err)

	data, err := io.ReadAll(conn)
	require.NoError(t, err)

	resp, err := http.ReadResponse(bufio.NewReader(strings.NewReader(string(data))), nil)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestServer(t *testing.T) {
	var calls atomic.Int32
	r, err := server.NewRouter([]server.Route{
		{Method: server.MethodPost, Path: "/", Handler: server.HandlerFunc(func(ctx context.Context, req *server.Request) *server.Response {
			calls.Add(1)
			v, _ := req.Attribute("value")
			return server.Text(server.StatusOK, "got "+v)
		})},
		{Method: server.MethodGet, Path: "/panic", Handler: server.HandlerFunc(func(ctx context.Context, req *server.Request) *server.Response {
			panic("boom")
		})},
		{Method: server.MethodGet, Path: "/nil", Handler: server.HandlerFunc(func(ctx context.Context, req *server.Request) *server.Response {
			return nil
		})},
	})
	require.NoError(t, err)

	addr := startServer(t, &server.Server{
		Handler:        r,
		MaxRequestSize: 4096,
		ReadTimeout:    time.Second,
		WriteTimeout:   time.Second,
	})

	t.Run("POST form", func(t *testing.T) {
		body := "value=https%3A%2F%2Fexample.com"
		resp := roundTrip(t, addr, "POST / HTTP/1.1\r\nContent-Length: 31\r\n\r\n"+body)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "got https://example.com", readBody(t, resp))
	})

	t.Run("Not found", func(t *testing.T) {
		resp := roundTrip(t, addr, "GET /nothing HTTP/1.1\r\n\r\n")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "Nothing found for url '/nothing' with method 'GET'!", readBody(t, resp))
	})

	t.Run("Method not allowed", func(t *testing.T) {
		resp := roundTrip(t, addr, "PUT / HTTP/1.1\r\n\r\n")
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		assert.Equal(t, "GET, POST", resp.Header.Get("Allow"))
	})

	t.Run("Too large", func(t *testing.T) {
		resp := roundTrip(t, addr, "POST / HTTP/1.1\r\nContent-Length: 10000\r\n\r\n")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "Request too large!", readBody(t, resp))
	})

	t.Run("Malformed", func(t *testing.T) {
		resp := roundTrip(t, addr, "POST / HTTP/1.1\r\nContent-Length: ten\r\n\r\n")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("Panic is contained", func(t *testing.T) {
		resp := roundTrip(t, addr, "GET /panic HTTP/1.1\r\n\r\n")
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

		resp = roundTrip(t, addr, "GET /nil HTTP/1.1\r\n\r\n")
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	})

	t.Run("Survives dropped connections", func(t *testing.T) {
		conn, err := net.Dial("tcp", addr)
		require.NoError(t, err)
		require.NoError(t, conn.Close())

		resp := roundTrip(t, addr, "POST / HTTP/1.1\r\nContent-Length: 7\r\n\r\nvalue=x")
		assert.Equal(t, "got x", readBody(t, resp))
	})

	t.Run("Sequential handling", func(t *testing.T) {
		before := calls.Load()
		g := new(errgroup.Group)
		for i := 0; i < 5; i++ {
			g.Go(func() error {
				conn, err := net.Dial("tcp", addr)
				if err != nil {
					return err
				}
				defer conn.Close()
				if _, err := io.WriteString(conn, "POST / HTTP/1.1\r\nContent-Length: 7\r\n\r\nvalue=y"); err != nil {
					return err
				}
				resp, err := http.ReadResponse(bufio.NewReader(conn), nil)
				if err != nil {
					return err
				}
				defer resp.Body.Close()
				if resp.StatusCode != http.StatusOK {
					return errors.New(resp.Status)
				}
				return nil
			})
		}
		require.NoError(t, g.Wait())
		assert.Equal(t, before+5, calls.Load())
	})
}

func TestServerShutdown(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	r, err := server.NewRouter(nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- (&server.Server{Handler: r}).Serve(ctx, lis)
	}()

	resp := roundTrip(t, lis.Addr().String(), "GET / HTTP/1.1\r\n\r\n")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}

	_, err = net.DialTimeout("tcp", lis.Addr().String(), time.Second)
	assert.Error(t, err)
}

func TestServerRequiresHandler(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer lis.Close()

	require.Error(t, (&server.Server{}).Serve(context.Background(), lis))
}
