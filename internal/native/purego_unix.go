//go:build darwin || freebsd || linux || netbsd

package native

import (
	"github.com/ebitengine/purego"
)

type defaultOpener struct{}

func (defaultOpener) Open(path string) (uintptr, error) {
	return purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
}

func (defaultOpener) Symbol(handle uintptr, name string) (uintptr, error) {
	return purego.Dlsym(handle, name)
}

func (defaultOpener) Register(fptr any, addr uintptr) {
	purego.RegisterFunc(fptr, addr)
}
