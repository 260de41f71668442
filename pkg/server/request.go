package server

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
)

// Method is an HTTP request method token.
type Method string

const (
	MethodGet  Method = "GET"
	MethodPost Method = "POST"
)

var (
	// ErrRequestTooLarge is returned by ReadRequest when a request does not
	// fit into the configured maximum size.
	ErrRequestTooLarge = errors.New("request exceeds maximum size")
	// ErrMalformedRequest is returned by ReadRequest when the framing headers
	// cannot be interpreted.
	ErrMalformedRequest = errors.New("malformed request")
)

// Request is a parsed HTTP request.
//
// A Request that could not be parsed has an empty Method; Valid reports
// false for it and handlers must not look at its other fields.
type Request struct {
	Method   Method
	Path     string
	RawQuery string
	Proto    string
	// Header keys are lower-cased.
	Header map[string]string
	Body   []byte

	attrs    map[string]string
	attrErrs map[string]error
}

// Valid reports whether the request line was parsed successfully.
func (r *Request) Valid() bool {
	return r != nil && r.Method != ""
}

// HeaderValue returns the value of the named header, ignoring case.
func (r *Request) HeaderValue(name string) string {
	return r.Header[strings.ToLower(name)]
}

// Attribute returns the percent-decoded form or query attribute. If decoding
// failed the raw value is returned and AttributeErr reports the failure.
func (r *Request) Attribute(name string) (string, bool) {
	v, ok := r.attrs[name]
	return v, ok
}

// AttributeErr returns the error encountered while percent-decoding the named
// attribute, if any.
func (r *Request) AttributeErr(name string) error {
	return r.attrErrs[name]
}

// Attributes returns a copy of all attributes.
func (r *Request) Attributes() map[string]string {
	out := make(map[string]string, len(r.attrs))
	for k, v := range r.attrs {
		out[k] = v
	}
	return out
}

func invalidRequest() *Request {
	return &Request{
		Header:   map[string]string{},
		attrs:    map[string]string{},
		attrErrs: map[string]error{},
	}
}

// ParseRequest parses a raw request as framed by ReadRequest. It never fails:
// a request with a malformed request line is returned with an empty Method.
//
// Attributes are taken from the query string and, for POST, from the
// application/x-www-form-urlencoded body; body attributes win.
func ParseRequest(raw []byte) *Request {
	req := invalidRequest()

	head, body := raw, []byte(nil)
	if i := bytes.Index(raw, []byte("\r\n\r\n")); i >= 0 {
		head, body = raw[:i], raw[i+4:]
	} else if i := bytes.Index(raw, []byte("\n\n")); i >= 0 {
		head, body = raw[:i], raw[i+2:]
	}

	lines := strings.Split(string(head), "\n")
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	if len(lines) == 0 {
		return req
	}

	fields := strings.Fields(lines[0])
	if len(fields) < 2 || len(fields) > 3 {
		return req
	}
	method, target := fields[0], fields[1]
	if !isToken(method) || !strings.HasPrefix(target, "/") {
		return req
	}
	if len(fields) == 3 {
		req.Proto = fields[2]
	}
	req.Path, req.RawQuery, _ = strings.Cut(target, "?")

	for _, line := range lines[1:] {
		k, v, ok := strings.Cut(strings.TrimRight(line, "\r"), ":")
		if !ok {
			continue
		}
		req.Header[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}

	if len(body) > 0 {
		req.Body = append([]byte(nil), body...)
	}

	req.parseForm(req.RawQuery)
	if Method(method) == MethodPost {
		req.parseForm(string(req.Body))
	}

	req.Method = Method(method)
	return req
}

func (r *Request) parseForm(s string) {
	for _, pair := range strings.Split(s, "&") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		if dk, err := url.QueryUnescape(k); err == nil {
			k = dk
		}
		dv, err := url.QueryUnescape(v)
		if err != nil {
			r.attrs[k] = v
			r.attrErrs[k] = err
			continue
		}
		r.attrs[k] = dv
		delete(r.attrErrs, k)
	}
}

// isToken reports whether s is an RFC 7230 token.
func isToken(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		case strings.IndexByte("!#$%&'*+-.^_`|~", c) >= 0:
		default:
			return false
		}
	}
	return true
}

// ReadRequest reads a single request from r: the head up to and including the
// blank line, followed by exactly Content-Length bytes of body. No more than
// max bytes are consumed.
//
// If the peer stops sending before the blank line, whatever arrived is
// returned and left for ParseRequest to judge.
func ReadRequest(r io.Reader, max int64) ([]byte, error) {
	if max <= 0 {
		return nil, fmt.Errorf("invalid maximum request size %d", max)
	}
	lr := &io.LimitedReader{R: r, N: max}
	br := bufio.NewReader(lr)

	var (
		buf           bytes.Buffer
		contentLength int64
		skipped       int64
		sawLine       bool
	)
	for {
		line, err := br.ReadBytes('\n')
		trimmed := bytes.TrimRight(line, "\r\n")
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return nil, err
			}
			if lr.N <= 0 {
				return nil, ErrRequestTooLarge
			}
			buf.Write(line)
			if buf.Len() == 0 {
				return nil, io.EOF
			}
			return buf.Bytes(), nil
		}
		if len(trimmed) == 0 && !sawLine {
			// Leading empty lines before the request line are ignored but
			// still count against max.
			skipped += int64(len(line))
			continue
		}
		buf.Write(line)
		if len(trimmed) == 0 {
			break
		}
		if sawLine {
			n, ok, err := parseContentLength(trimmed)
			if err != nil {
				return nil, err
			}
			if ok {
				contentLength = n
			}
		}
		sawLine = true
	}

	if contentLength == 0 {
		return buf.Bytes(), nil
	}
	if skipped+int64(buf.Len())+contentLength > max {
		return nil, ErrRequestTooLarge
	}
	if _, err := io.CopyN(&buf, br, contentLength); err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	return buf.Bytes(), nil
}

func parseContentLength(line []byte) (int64, bool, error) {
	k, v, ok := bytes.Cut(line, []byte(":"))
	if !ok || !strings.EqualFold(string(bytes.TrimSpace(k)), "Content-Length") {
		return 0, false, nil
	}
	n, err := strconv.ParseInt(string(bytes.TrimSpace(v)), 10, 64)
	if err != nil || n < 0 {
		return 0, false, fmt.Errorf("%w: invalid Content-Length %q", ErrMalformedRequest, bytes.TrimSpace(v))
	}
	return n, true, nil
}
