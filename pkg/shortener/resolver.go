package shortener

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/apoxy-dev/shorty/pkg/server"
	"github.com/apoxy-dev/shorty/pkg/store"
)

const msgRedirect = "You are being redirected..."

// Resolver redirects /<key> to the URL stored under key. Lookup failures of
// any kind are answered with 404.
type Resolver struct {
	store store.Store
}

// NewResolver returns a Resolver reading from st.
func NewResolver(st store.Store) *Resolver {
	return &Resolver{store: st}
}

func (r *Resolver) ServeRequest(ctx context.Context, req *server.Request) *server.Response {
	key := strings.TrimPrefix(req.Path, "/")

	value, err := r.store.GetURLForKey(ctx, key)
	switch {
	case errors.Is(err, store.ErrNotFound):
		slog.Info("No url found for key", slog.String("key", key))
		return server.NotFound(req)
	case err != nil:
		slog.Error("Unable to look up url", slog.String("key", key), slog.Any("error", err))
		return server.NotFound(req)
	case value == "":
		slog.Warn("Empty url stored for key", slog.String("key", key))
		return server.NotFound(req)
	}

	return server.Text(server.StatusTemporaryRedirect, msgRedirect, server.WithLocation(value))
}
