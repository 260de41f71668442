// Package server implements a small HTTP/1.x server that handles exactly one
// request per connection, one connection at a time.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
)

const (
	// DefaultMaxRequestSize is used when Server.MaxRequestSize is zero.
	DefaultMaxRequestSize int64 = 2048000000
	// acceptRetryDelay throttles the loop when Accept keeps failing, e.g.
	// when the process is out of file descriptors.
	acceptRetryDelay = 50 * time.Millisecond
)

// Server accepts connections sequentially. Each connection carries a single
// request: it is read, dispatched to Handler, answered and closed before the
// next connection is accepted.
type Server struct {
	// Addr is the TCP address to listen on, e.g. ":8080".
	Addr string
	// Handler responds to parsed requests. Usually a *Router.
	Handler Handler
	// MaxRequestSize bounds the bytes read from a single connection.
	MaxRequestSize int64
	// ReadTimeout and WriteTimeout bound the time spent reading a request
	// and writing a response. Zero means no timeout.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// ListenAndServe listens on s.Addr and serves connections until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(ctx, lis)
}

// Serve serves connections accepted from lis until ctx is done. The listener
// is closed on return. A connection that is being handled when ctx is
// cancelled is finished first.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	if s.Handler == nil {
		return errors.New("server has no handler")
	}

	var once sync.Once
	closeListener := func() {
		once.Do(func() {
			if err := lis.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
				slog.Warn("failed to close listener", slog.Any("error", err))
			}
		})
	}
	defer closeListener()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			closeListener()
		case <-done:
		}
	}()

	slog.Info("Server started", slog.String("addr", lis.Addr().String()))

	for ctx.Err() == nil {
		conn, err := lis.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			slog.Warn("failed to accept connection", slog.Any("error", err))
			time.Sleep(acceptRetryDelay)
			continue
		}
		s.serveConn(ctx, conn)
	}

	slog.Info("Server stopped")
	return nil
}

func (s *Server) maxRequestSize() int64 {
	if s.MaxRequestSize > 0 {
		return s.MaxRequestSize
	}
	return DefaultMaxRequestSize
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	start := time.Now()
	logger := slog.With(
		slog.String("request_id", uuid.NewString()),
		slog.String("remote_addr", conn.RemoteAddr().String()),
	)
	defer func() {
		if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			logger.Warn("failed to close connection", slog.Any("error", err))
		}
	}()

	if s.ReadTimeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(s.ReadTimeout)); err != nil {
			logger.Warn("failed to set read deadline", slog.Any("error", err))
			return
		}
	}

	var (
		req  *Request
		resp *Response
	)
	raw, err := ReadRequest(conn, s.maxRequestSize())
	switch {
	case errors.Is(err, ErrRequestTooLarge):
		logger.Warn("request too large", slog.Int64("max_size", s.maxRequestSize()))
		resp = Text(StatusBadRequest, "Request too large!")
	case errors.Is(err, ErrMalformedRequest):
		logger.Warn("malformed request", slog.Any("error", err))
		resp = Text(StatusBadRequest, "Malformed request!")
	case err != nil:
		logger.Warn("failed to read request", slog.Any("error", err))
		return
	default:
		req = ParseRequest(raw)
		// In-flight requests finish even if the server is shutting down.
		resp = s.dispatch(context.WithoutCancel(ctx), req, logger)
	}

	if s.WriteTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(s.WriteTimeout)); err != nil {
			logger.Warn("failed to set write deadline", slog.Any("error", err))
			return
		}
	}
	n, err := resp.WriteTo(conn)
	if err != nil {
		logger.Warn("failed to write response", slog.Any("error", err))
		return
	}

	attrs := []any{
		slog.Int("status", resp.Status.Code),
		slog.Int64("bytes", n),
		slog.Duration("duration", time.Since(start)),
	}
	if req.Valid() {
		attrs = append(attrs, slog.String("method", string(req.Method)), slog.String("path", req.Path))
	}
	logger.Info("Handled request", attrs...)
}

// dispatch runs the handler, turning a panic or a nil response into a 500.
func (s *Server) dispatch(ctx context.Context, req *Request, logger *slog.Logger) (resp *Response) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("handler panicked", slog.Any("panic", r))
			sentry.CurrentHub().Recover(r)
			resp = Text(StatusInternalServerError, fmt.Sprintf("Internal error: %v", r))
		}
	}()
	resp = s.Handler.ServeRequest(ctx, req)
	if resp == nil {
		logger.Error("handler returned no response")
		resp = Text(StatusInternalServerError, "No response!")
	}
	return resp
}
