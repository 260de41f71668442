// Package shortener implements the URL shortening and redirect handlers.
package shortener

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync/atomic"

	"github.com/getsentry/sentry-go"

	"github.com/apoxy-dev/shorty/pkg/keygen"
	"github.com/apoxy-dev/shorty/pkg/server"
	"github.com/apoxy-dev/shorty/pkg/store"
)

// DefaultMaxKeyAttempts bounds how often a colliding generated key is
// regenerated before giving up.
const DefaultMaxKeyAttempts = 5

const (
	msgUnauthorized = "You need to enter the correct password for this to work!"
	msgEmptyURL     = "URL may not be empty!"
)

// ErrEmptyURL is returned by Shorten for an empty URL.
var ErrEmptyURL = errors.New(msgEmptyURL)

// InvalidURLError is returned by Shorten when the value is not an absolute
// URL.
type InvalidURLError struct {
	Value string
	Err   error
}

func (e *InvalidURLError) Error() string {
	return fmt.Sprintf("URL '%s' is invalid!\n%v", e.Value, e.Err)
}

func (e *InvalidURLError) Unwrap() error { return e.Err }

// InvalidKeyError is returned by Shorten when a caller supplied key cannot
// be used.
type InvalidKeyError struct {
	Key    string
	Reason string
}

func (e *InvalidKeyError) Error() string {
	return fmt.Sprintf("Key '%s' is invalid!\n%s", e.Key, e.Reason)
}

// SaveError is returned by Shorten when the mapping could not be stored.
// LookupErr is set when the URL already existed but its key could not be
// looked up.
type SaveError struct {
	Err       error
	LookupErr error
}

func (e *SaveError) Error() string {
	msg := fmt.Sprintf("Unable to save url:\n\t%v", e.Err)
	if e.LookupErr != nil {
		msg += fmt.Sprintf("\nError looking up already existing url!\n\t%v", e.LookupErr)
	}
	return msg
}

func (e *SaveError) Unwrap() []error {
	if e.LookupErr != nil {
		return []error{e.Err, e.LookupErr}
	}
	return []error{e.Err}
}

// Result describes a shortened URL.
type Result struct {
	Key   string
	Value string
	// Existing is set when the URL was already stored and Key is the key it
	// was stored under before.
	Existing bool
}

// Shortener handles POST / and stores new mappings.
type Shortener struct {
	store          store.Store
	password       atomic.Pointer[string]
	keyLength      int
	maxKeyAttempts int
	generate       func(length int) (string, error)
	reserved       map[string]struct{}
}

// Option configures a Shortener.
type Option func(*Shortener)

// WithKeyLength sets the length of generated keys.
func WithKeyLength(n int) Option {
	return func(s *Shortener) {
		s.keyLength = n
	}
}

// WithMaxKeyAttempts sets how many generated keys are tried before a save
// fails.
func WithMaxKeyAttempts(n int) Option {
	return func(s *Shortener) {
		s.maxKeyAttempts = n
	}
}

// WithKeyGenerator replaces keygen.Generate.
func WithKeyGenerator(gen func(length int) (string, error)) Option {
	return func(s *Shortener) {
		s.generate = gen
	}
}

// WithReservedKeys rejects caller supplied keys that would be shadowed by
// other routes.
func WithReservedKeys(keys ...string) Option {
	return func(s *Shortener) {
		for _, k := range keys {
			s.reserved[k] = struct{}{}
		}
	}
}

// New returns a Shortener saving into st and guarded by password.
func New(st store.Store, password string, opts ...Option) *Shortener {
	s := &Shortener{
		store:          st,
		keyLength:      keygen.DefaultLength,
		maxKeyAttempts: DefaultMaxKeyAttempts,
		generate:       keygen.Generate,
		reserved:       map[string]struct{}{},
	}
	s.SetPassword(password)
	for _, opt := range opts {
		opt(s)
	}
	if s.keyLength < 1 {
		s.keyLength = keygen.DefaultLength
	}
	if s.maxKeyAttempts < 1 {
		s.maxKeyAttempts = 1
	}
	return s
}

// SetPassword replaces the shared password. It is safe to call while
// requests are served.
func (s *Shortener) SetPassword(password string) {
	s.password.Store(&password)
}

func (s *Shortener) authorized(password string) bool {
	want := *s.password.Load()
	return subtle.ConstantTimeCompare([]byte(password), []byte(want)) == 1
}

// ServeRequest handles a shortening request. It expects the attributes
// "password", "value" and optionally "key".
func (s *Shortener) ServeRequest(ctx context.Context, req *server.Request) *server.Response {
	password, _ := req.Attribute("password")
	if !s.authorized(password) {
		slog.Warn("Rejected request with wrong password", slog.String("path", req.Path))
		return server.Text(server.StatusUnauthorized, msgUnauthorized)
	}

	key, _ := req.Attribute("key")
	value, _ := req.Attribute("value")
	if value == "" {
		return server.Text(server.StatusBadRequest, msgEmptyURL)
	}
	if err := req.AttributeErr("value"); err != nil {
		slog.Warn("Unable to decode url", slog.String("value", value), slog.Any("error", err))
		return server.Text(server.StatusBadRequest, fmt.Sprintf("Unable to parse url '%s':\n\t%v", value, err))
	}

	res, err := s.Shorten(ctx, key, value)
	if err != nil {
		var saveErr *SaveError
		if errors.As(err, &saveErr) {
			sentry.CaptureException(err)
			return server.Text(server.StatusInternalServerError, err.Error())
		}
		return server.Text(server.StatusBadRequest, err.Error())
	}
	if res.Existing {
		return server.Text(server.StatusOK, fmt.Sprintf("This URL is already saved as: '%s'", res.Key))
	}
	return server.Text(server.StatusOK, fmt.Sprintf("OK!\nURL '%s' was saved as '%s'!", res.Value, res.Key))
}

// Shorten stores value under key. An empty key or "null" picks a random one.
// If value is already stored the existing key is returned with
// Result.Existing set.
func (s *Shortener) Shorten(ctx context.Context, key, value string) (*Result, error) {
	if value == "" {
		return nil, ErrEmptyURL
	}
	if err := validateURL(value); err != nil {
		return nil, &InvalidURLError{Value: value, Err: err}
	}

	generated := key == "" || key == "null"
	attempts := 1
	if generated {
		attempts = s.maxKeyAttempts
	} else if err := s.validateKey(key); err != nil {
		return nil, err
	}

	var err error
	for i := 0; i < attempts; i++ {
		if generated {
			if key, err = s.generate(s.keyLength); err != nil {
				return nil, &SaveError{Err: fmt.Errorf("failed to generate key: %w", err)}
			}
		}

		err = s.store.SaveMapping(ctx, key, value)
		switch {
		case err == nil:
			slog.Info("Saved url", slog.String("key", key), slog.String("value", value))
			return &Result{Key: key, Value: value}, nil
		case errors.Is(err, store.ErrDuplicateURL):
			existing, lookupErr := s.store.GetKeyForURL(ctx, value)
			if lookupErr != nil {
				slog.Error("Unable to look up key for existing url",
					slog.String("value", value), slog.Any("error", lookupErr))
				return nil, &SaveError{Err: err, LookupErr: lookupErr}
			}
			return &Result{Key: existing, Value: value, Existing: true}, nil
		case errors.Is(err, store.ErrDuplicateKey) && generated:
			slog.Warn("Generated key already taken, retrying",
				slog.String("key", key), slog.Int("attempt", i+1))
		default:
			slog.Error("Unable to save url",
				slog.String("key", key), slog.String("value", value), slog.Any("error", err))
			return nil, &SaveError{Err: err}
		}
	}
	return nil, &SaveError{Err: fmt.Errorf("no free key after %d attempts: %w", attempts, err)}
}

func (s *Shortener) validateKey(key string) error {
	if !keygen.IsValid(key) {
		return &InvalidKeyError{Key: key, Reason: "Keys may only contain letters, digits, '-' and '_'."}
	}
	if _, ok := s.reserved[key]; ok {
		return &InvalidKeyError{Key: key, Reason: "The key is reserved."}
	}
	return nil
}

// validateURL accepts absolute URLs with either a host or an opaque part.
func validateURL(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return err
	}
	if !u.IsAbs() {
		return errors.New("missing scheme")
	}
	if u.Host == "" && u.Opaque == "" {
		return errors.New("missing host")
	}
	return nil
}
