package native

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/trickstertwo/xlog"

	"github.com/trickstertwo/xsock"
)

// Spec describes where to find one native library.
type Spec struct {
	// Name is a short label used in logs and errors ("zmq").
	Name string
	// EnvVar names the environment variable holding an explicit library path.
	EnvVar string
	// Platform lists conventional file names per GOOS.
	Platform map[string][]string
	// Generic lists bare names tried last.
	Generic []string
}

// Opener loads libraries and resolves symbols. The default uses purego.
type Opener interface {
	Open(path string) (uintptr, error)
	Symbol(handle uintptr, name string) (uintptr, error)
	Register(fptr any, addr uintptr)
}

// Library is a loaded shared library.
type Library struct {
	Name   string
	Path   string
	handle uintptr
	opener Opener
}

type options struct {
	path   string
	opener Opener
	logger *xlog.Logger
	getenv func(string) string
	goos   string
}

// Option configures Load.
type Option func(*options)

// WithPath sets an explicit library path that takes precedence over everything else.
func WithPath(p string) Option { return func(o *options) { o.path = p } }

// WithOpener replaces the purego opener (tests).
func WithOpener(op Opener) Option { return func(o *options) { o.opener = op } }

// WithLogger sets the logger used to report the resolved path.
func WithLogger(l *xlog.Logger) Option { return func(o *options) { o.logger = l } }

// WithGetenv replaces os.Getenv (tests).
func WithGetenv(f func(string) string) Option { return func(o *options) { o.getenv = f } }

// WithGOOS overrides runtime.GOOS when picking platform names (tests).
func WithGOOS(goos string) Option { return func(o *options) { o.goos = goos } }

// Candidates returns the ordered, de-duplicated list of paths Load will try.
func Candidates(spec Spec, explicit string, getenv func(string) string, goos string) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(p string) {
		if p == "" {
			return
		}
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}

	add(explicit)
	if spec.EnvVar != "" && getenv != nil {
		add(getenv(spec.EnvVar))
	}
	for _, p := range spec.Platform[goos] {
		add(p)
	}
	for _, p := range spec.Generic {
		add(p)
	}
	return out
}

// Load opens the first candidate that resolves. Failure to load any candidate
// is a *xsock.LibraryLoadError and is meant to be fatal.
func Load(spec Spec, opts ...Option) (*Library, error) {
	o := options{getenv: os.Getenv, goos: runtime.GOOS}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.opener == nil {
		o.opener = defaultOpener{}
	}
	if o.logger == nil {
		o.logger = xlog.Default()
	}

	candidates := Candidates(spec, o.path, o.getenv, o.goos)
	if len(candidates) == 0 {
		return nil, &xsock.LibraryLoadError{Library: spec.Name, Err: errors.New("no candidate paths")}
	}

	var errs []error
	for _, path := range candidates {
		h, err := o.opener.Open(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		o.logger.Info().
			Str("library", spec.Name).
			Str("path", path).
			Msg("native library loaded")
		return &Library{Name: spec.Name, Path: path, handle: h, opener: o.opener}, nil
	}
	return nil, &xsock.LibraryLoadError{Library: spec.Name, Attempts: candidates, Err: errors.Join(errs...)}
}

// Bind resolves symbol and stores a Go function calling it into fptr, which
// must be a pointer to a func variable.
func (l *Library) Bind(symbol string, fptr any) error {
	addr, err := l.opener.Symbol(l.handle, symbol)
	if err != nil || addr == 0 {
		if err == nil {
			err = errors.New("symbol not found")
		}
		return &xsock.LibraryLoadError{Library: l.Name, Attempts: []string{l.Path}, Err: fmt.Errorf("%s: %w", symbol, err)}
	}
	l.opener.Register(fptr, addr)
	return nil
}

// Symbols binds a table of symbol -> func pointer, stopping at the first failure.
func (l *Library) Symbols(table map[string]any) error {
	for name, fptr := range table {
		if err := l.Bind(name, fptr); err != nil {
			return err
		}
	}
	return nil
}

// Cache loads each library once per process, keyed by spec name and explicit path.
type Cache struct {
	mu   sync.Mutex
	libs map[string]*Library
}

// Load returns the cached library or loads it.
func (c *Cache) Load(spec Spec, opts ...Option) (*Library, error) {
	var o options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	key := spec.Name + "\x00" + o.path

	c.mu.Lock()
	defer c.mu.Unlock()
	if lib, ok := c.libs[key]; ok {
		return lib, nil
	}
	lib, err := Load(spec, opts...)
	if err != nil {
		return nil, err
	}
	if c.libs == nil {
		c.libs = make(map[string]*Library)
	}
	c.libs[key] = lib
	return lib, nil
}
