package shortener

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/apoxy-dev/shorty/pkg/server"
)

// ColorCSS serves a stylesheet with a random accent color and its
// complement.
func ColorCSS(ctx context.Context, req *server.Request) *server.Response {
	color := rand.IntN(0xffffff + 1)
	return server.NewResponse(server.StatusOK, server.ContentTypeCSS, []byte(accentCSS(color)))
}

func accentCSS(color int) string {
	c := fmt.Sprintf("#%06x", color)
	complement := fmt.Sprintf("#%06x", color^0xffffff)
	return ".r, .r:active, .r:focus { border-color: " + c + " !important; }\n" +
		".r:focus { outline-color: " + c + " !important; }\n" +
		"button.r:focus, button.r:hover { background-color: " + c + " !important; color: " + complement + " !important; }\n"
}
