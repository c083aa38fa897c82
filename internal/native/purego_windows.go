//go:build windows

package native

import (
	"syscall"

	"github.com/ebitengine/purego"
)

type defaultOpener struct{}

func (defaultOpener) Open(path string) (uintptr, error) {
	h, err := syscall.LoadLibrary(path)
	return uintptr(h), err
}

func (defaultOpener) Symbol(handle uintptr, name string) (uintptr, error) {
	return syscall.GetProcAddress(syscall.Handle(handle), name)
}

func (defaultOpener) Register(fptr any, addr uintptr) {
	purego.RegisterFunc(fptr, addr)
}
