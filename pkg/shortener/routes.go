package shortener

import (
	"embed"
	"io/fs"
	"strings"

	"github.com/apoxy-dev/shorty/pkg/server"
	"github.com/apoxy-dev/shorty/pkg/store"
)

//go:embed static
var static embed.FS

// Assets returns the embedded static files.
func Assets() fs.FS {
	sub, err := fs.Sub(static, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

// StaticFiles maps GET paths to files in Assets.
var StaticFiles = map[string]string{
	"/":               "landing.html",
	"/style.css":      "style.css",
	"/lib.js":         "lib.js",
	"/favicon.ico":    "favicon.ico",
	"/background.jpg": "background.jpg",
}

const colorCSSPath = "/color.css"

// ReservedKeys returns the keys that are shadowed by static routes. The
// current asset names all contain a '.', which keygen.IsValid already
// rejects; the reserved set guards routes added later without one.
func ReservedKeys() []string {
	keys := []string{strings.TrimPrefix(colorCSSPath, "/")}
	for p := range StaticFiles {
		if k := strings.TrimPrefix(p, "/"); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// Routes returns the route table of the shortener: the static files, the
// accent stylesheet and POST / handled by sh.
func Routes(fsys fs.FS, sh *Shortener) []server.Route {
	routes := make([]server.Route, 0, len(StaticFiles)+2)
	for p, name := range StaticFiles {
		routes = append(routes, server.Route{
			Method:  server.MethodGet,
			Path:    p,
			Handler: server.FromFile(fsys, name),
		})
	}
	return append(routes,
		server.Route{Method: server.MethodGet, Path: colorCSSPath, Handler: server.HandlerFunc(ColorCSS)},
		server.Route{Method: server.MethodPost, Path: "/", Handler: sh},
	)
}

// NewRouter wires sh, a Resolver over st and the embedded assets into a
// router.
func NewRouter(st store.Store, sh *Shortener) (*server.Router, error) {
	return server.NewRouter(Routes(Assets(), sh), server.WithFallback(NewResolver(st)))
}
