package server

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Status is an HTTP status code with its reason phrase.
type Status struct {
	Code   int
	Reason string
}

func (s Status) String() string {
	return strconv.Itoa(s.Code) + " " + s.Reason
}

var (
	StatusOK                  = Status{200, "OK"}
	StatusTemporaryRedirect   = Status{307, "Temporary Redirect"}
	StatusBadRequest          = Status{400, "Bad Request"}
	StatusUnauthorized        = Status{401, "Unauthorized"}
	StatusNotFound            = Status{404, "Not Found"}
	StatusMethodNotAllowed    = Status{405, "Method Not Allowed"}
	StatusInternalServerError = Status{500, "Internal Server Error"}
)

const (
	ContentTypeHTML       = "text/html"
	ContentTypeCSS        = "text/css"
	ContentTypePlain      = "text/plain"
	ContentTypeJavaScript = "application/javascript"
	ContentTypeIcon       = "image/x-icon"
	ContentTypeJPEG       = "image/jpeg"
)

// dateFormat is the IMF-fixdate layout of RFC 7231.
const dateFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

// now is swapped in tests.
var now = time.Now

// Response is an HTTP response ready to be serialized.
type Response struct {
	Status      Status
	ContentType string
	// Header holds optional headers. Allow and Location are written first in
	// that order; any others follow sorted by name.
	Header map[string]string
	Body   []byte
}

// ResponseOption modifies a Response.
type ResponseOption func(*Response)

// WithHeader sets an optional header.
func WithHeader(name, value string) ResponseOption {
	return func(r *Response) {
		if r.Header == nil {
			r.Header = map[string]string{}
		}
		r.Header[name] = value
	}
}

// WithLocation sets the Location header of a redirect.
func WithLocation(location string) ResponseOption {
	return WithHeader("Location", location)
}

// WithAllow sets the Allow header to the given methods.
func WithAllow(methods ...Method) ResponseOption {
	ms := make([]string, len(methods))
	for i, m := range methods {
		ms[i] = string(m)
	}
	return WithHeader("Allow", strings.Join(ms, ", "))
}

// NewResponse returns a response with the given status, content type and body.
func NewResponse(status Status, contentType string, body []byte, opts ...ResponseOption) *Response {
	r := &Response{
		Status:      status,
		ContentType: contentType,
		Body:        body,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Text returns a text/plain response.
func Text(status Status, body string, opts ...ResponseOption) *Response {
	return NewResponse(status, ContentTypePlain, []byte(body), opts...)
}

// NotFound returns the generic response for a request nothing could serve.
func NotFound(req *Request) *Response {
	return Text(StatusNotFound,
		fmt.Sprintf("Nothing found for url '%s' with method '%s'!", req.Path, req.Method))
}

// ContentTypeFor returns the content type for a file name based on its
// extension.
func ContentTypeFor(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".css":
		return ContentTypeCSS
	case ".html", ".htm":
		return ContentTypeHTML
	case ".js":
		return ContentTypeJavaScript
	case ".ico":
		return ContentTypeIcon
	case ".jpg", ".jpeg":
		return ContentTypeJPEG
	default:
		return ContentTypePlain
	}
}

// Bytes serializes the response to its wire format.
func (r *Response) Bytes() []byte {
	var b bytes.Buffer
	b.Grow(128 + len(r.Body))

	b.WriteString("HTTP/1.1 " + r.Status.String() + "\r\n")
	b.WriteString("Date: " + now().UTC().Format(dateFormat) + "\r\n")
	b.WriteString("Content-Type: " + r.ContentType + "\r\n")
	b.WriteString("Content-Length: " + strconv.Itoa(len(r.Body)) + "\r\n")

	for _, name := range r.headerOrder() {
		b.WriteString(name + ": " + sanitizeHeaderValue(r.Header[name]) + "\r\n")
	}
	b.WriteString("\r\n")
	b.Write(r.Body)

	return b.Bytes()
}

// WriteTo writes the serialized response to w.
func (r *Response) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(r.Bytes())
	return int64(n), err
}

func (r *Response) headerOrder() []string {
	names := make([]string, 0, len(r.Header))
	var rest []string
	for _, name := range []string{"Allow", "Location"} {
		if _, ok := r.Header[name]; ok {
			names = append(names, name)
		}
	}
	for name := range r.Header {
		if name != "Allow" && name != "Location" {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}

// sanitizeHeaderValue drops CR and LF so a value cannot terminate the header
// block early.
func sanitizeHeaderValue(v string) string {
	if !strings.ContainsAny(v, "\r\n") {
		return v
	}
	return strings.NewReplacer("\r", "", "\n", "").Replace(v)
}
