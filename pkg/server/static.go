package server

import (
	"context"
	"io/fs"
	"log/slog"
)

// FromFile returns a handler that serves the named file from fsys. The file
// is read on every request; a missing or unreadable file yields NotFound.
func FromFile(fsys fs.FS, name string) Handler {
	contentType := ContentTypeFor(name)
	return HandlerFunc(func(ctx context.Context, req *Request) *Response {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			slog.Error("failed to read static file", slog.String("file", name), slog.Any("error", err))
			return NotFound(req)
		}
		return NewResponse(StatusOK, contentType, data)
	})
}
