package xsock

import (
	"errors"
	"fmt"
	"sync"
)

// BackendFactory constructs back ends from a config blob.
type BackendFactory func(cfg map[string]any) (Backend, error)

// CodecFactory constructs codecs via Factory pattern.
type CodecFactory func() Codec

// FramerFactory constructs framers via Factory pattern.
type FramerFactory func() Framer

var (
	backendRegistryMu sync.RWMutex
	backendRegistry   = map[string]BackendFactory{}

	codecRegistryMu sync.RWMutex
	codecRegistry   = map[string]CodecFactory{
		"json": func() Codec { return JSONCodec{} },
	}

	framerRegistryMu sync.RWMutex
	framerRegistry   = map[string]FramerFactory{
		FramingMultipart: func() Framer { return MultipartFramer{} },
		FramingDelimited: func() Framer { return DelimitedFramer{} },
	}
)

// RegisterBackend registers a back end adapter.
func RegisterBackend(name string, factory BackendFactory) error {
	if name == "" {
		return errors.New("backend name must not be empty")
	}
	if factory == nil {
		return errors.New("backend factory must not be nil")
	}
	backendRegistryMu.Lock()
	backendRegistry[name] = factory
	backendRegistryMu.Unlock()
	return nil
}

// NewBackend constructs a back end by name with config.
func NewBackend(name string, cfg map[string]any) (Backend, error) {
	backendRegistryMu.RLock()
	f, ok := backendRegistry[name]
	backendRegistryMu.RUnlock()
	if !ok {
		return nil, ErrUnknownBackend{name: name}
	}
	return f(cfg)
}

// Backends lists registered back end names.
func Backends() []string {
	backendRegistryMu.RLock()
	defer backendRegistryMu.RUnlock()
	names := make([]string, 0, len(backendRegistry))
	for n := range backendRegistry {
		names = append(names, n)
	}
	return names
}

// RegisterCodec registers a codec factory by name.
func RegisterCodec(name string, factory CodecFactory) error {
	if name == "" {
		return errors.New("codec name must not be empty")
	}
	if factory == nil {
		return errors.New("codec factory must not be nil")
	}
	codecRegistryMu.Lock()
	codecRegistry[name] = factory
	codecRegistryMu.Unlock()
	return nil
}

// NewCodec constructs a codec by name or returns an error.
func NewCodec(name string) (Codec, error) {
	codecRegistryMu.RLock()
	f, ok := codecRegistry[name]
	codecRegistryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("codec %q not registered", name)
	}
	return f(), nil
}

// RegisterFramer registers a framer factory by name.
func RegisterFramer(name string, factory FramerFactory) error {
	if name == "" {
		return errors.New("framer name must not be empty")
	}
	if factory == nil {
		return errors.New("framer factory must not be nil")
	}
	framerRegistryMu.Lock()
	framerRegistry[name] = factory
	framerRegistryMu.Unlock()
	return nil
}

// NewFramer constructs a framer by name or returns an error.
func NewFramer(name string) (Framer, error) {
	framerRegistryMu.RLock()
	f, ok := framerRegistry[name]
	framerRegistryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("framer %q not registered", name)
	}
	return f(), nil
}
