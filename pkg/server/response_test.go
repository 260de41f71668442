package server_test

import (
	"bufio"
	"bytes"
	"context"
	"net/http"
	"strconv"
	"testing"
	"testing/fstest"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apoxy-dev/shorty/pkg/server"
)

func fixedClock(t *testing.T) {
	restore := server.SetNow(func() time.Time {
		return time.Date(2024, time.March, 5, 14, 7, 9, 0, time.FixedZone("CET", 3600))
	})
	t.Cleanup(restore)
}

func TestResponseBytes(t *testing.T) {
	fixedClock(t)

	t.Run("Plain", func(t *testing.T) {
		resp := server.Text(server.StatusOK, "hello")
		assert.Equal(t, "HTTP/1.1 200 OK\r\n"+
			"Date: Tue, 05 Mar 2024 13:07:09 GMT\r\n"+
			"Content-Type: text/plain\r\n"+
			"Content-Length: 5\r\n"+
			"\r\n"+
			"hello", string(resp.Bytes()))
	})

	t.Run("Header order", func(t *testing.T) {
		resp := server.Text(server.StatusMethodNotAllowed, "no",
			server.WithLocation("https://example.com"),
			server.WithHeader("X-Extra", "1"),
			server.WithAllow(server.MethodGet, server.MethodPost))
		assert.Equal(t, "HTTP/1.1 405 Method Not Allowed\r\n"+
			"Date: Tue, 05 Mar 2024 13:07:09 GMT\r\n"+
			"Content-Type: text/plain\r\n"+
			"Content-Length: 2\r\n"+
			"Allow: GET, POST\r\n"+
			"Location: https://example.com\r\n"+
			"X-Extra: 1\r\n"+
			"\r\n"+
			"no", string(resp.Bytes()))
	})

	t.Run("Multi-byte body", func(t *testing.T) {
		body := "Grüße, 世界"
		resp := server.Text(server.StatusOK, body)
		wire := resp.Bytes()
		require.NotEqual(t, utf8.RuneCountInString(body), len(body))
		assert.Contains(t, string(wire), "Content-Length: "+strconv.Itoa(len(body))+"\r\n")
		assert.True(t, bytes.HasSuffix(wire, []byte(body)))
	})

	t.Run("Header injection", func(t *testing.T) {
		resp := server.Text(server.StatusTemporaryRedirect, "", server.WithLocation("https://a\r\nSet-Cookie: x=1"))
		assert.Contains(t, string(resp.Bytes()), "Location: https://aSet-Cookie: x=1\r\n")
	})

	t.Run("Parses as HTTP", func(t *testing.T) {
		resp := server.Text(server.StatusTemporaryRedirect, "You are being redirected...",
			server.WithLocation("https://example.com/a?b=c"))
		hr, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(resp.Bytes())), nil)
		require.NoError(t, err)
		defer hr.Body.Close()

		assert.Equal(t, http.StatusTemporaryRedirect, hr.StatusCode)
		assert.Equal(t, "https://example.com/a?b=c", hr.Header.Get("Location"))
		assert.Equal(t, int64(len("You are being redirected...")), hr.ContentLength)
		date, err := http.ParseTime(hr.Header.Get("Date"))
		require.NoError(t, err)
		assert.Equal(t, 2024, date.Year())
	})
}

func TestWriteTo(t *testing.T) {
	fixedClock(t)

	var buf bytes.Buffer
	resp := server.Text(server.StatusNotFound, "nope")
	n, err := resp.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)
	assert.Equal(t, resp.Bytes(), buf.Bytes())
}

func TestContentTypeFor(t *testing.T) {
	for name, want := range map[string]string{
		"css/style.css":          "text/css",
		"html/landing.html":      "text/html",
		"index.HTM":              "text/html",
		"images/favicon.ico":     "image/x-icon",
		"images/background.jpg":  "image/jpeg",
		"images/background.jpeg": "image/jpeg",
		"js/lib.js":              "application/javascript",
		"README":                 "text/plain",
		"data.bin":               "text/plain",
	} {
		assert.Equal(t, want, server.ContentTypeFor(name), name)
	}
}

func TestFromFile(t *testing.T) {
	fixedClock(t)

	icon := []byte{0x00, 0x00, 0x01, 0x00, 0xff, 0xfe, 0x80}
	fsys := fstest.MapFS{
		"images/favicon.ico": {Data: icon},
		"css/style.css":      {Data: []byte("body { color: #fff; }")},
	}

	t.Run("Serves bytes", func(t *testing.T) {
		req := server.ParseRequest([]byte("GET /favicon.ico HTTP/1.1\r\n\r\n"))
		resp := server.FromFile(fsys, "images/favicon.ico").ServeRequest(context.Background(), req)
		require.Equal(t, server.StatusOK, resp.Status)
		assert.Equal(t, "image/x-icon", resp.ContentType)
		assert.Equal(t, icon, resp.Body)
		assert.Contains(t, string(resp.Bytes()), "Content-Length: 7\r\n")
	})

	t.Run("Missing", func(t *testing.T) {
		req := server.ParseRequest([]byte("GET /lib.js HTTP/1.1\r\n\r\n"))
		resp := server.FromFile(fsys, "js/lib.js").ServeRequest(context.Background(), req)
		assert.Equal(t, server.StatusNotFound, resp.Status)
		assert.Equal(t, "Nothing found for url '/lib.js' with method 'GET'!", string(resp.Body))
	})
}
