//go:build !(darwin || freebsd || linux || netbsd || windows)

package native

import (
	"errors"
)

var errUnsupported = errors.New("native libraries are not supported on this platform")

type defaultOpener struct{}

func (defaultOpener) Open(string) (uintptr, error) { return 0, errUnsupported }

func (defaultOpener) Symbol(uintptr, string) (uintptr, error) { return 0, errUnsupported }

func (defaultOpener) Register(any, uintptr) {}
