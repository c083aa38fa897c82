package native

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trickstertwo/xsock"
)

// fakeOpener succeeds only for paths listed in ok.
type fakeOpener struct {
	ok       map[string]uintptr
	symbols  map[string]uintptr
	opened   []string
	register int
}

func (f *fakeOpener) Open(path string) (uintptr, error) {
	f.opened = append(f.opened, path)
	if h, ok := f.ok[path]; ok {
		return h, nil
	}
	return 0, errors.New("cannot open")
}

func (f *fakeOpener) Symbol(_ uintptr, name string) (uintptr, error) {
	if a, ok := f.symbols[name]; ok {
		return a, nil
	}
	return 0, errors.New("undefined symbol")
}

func (f *fakeOpener) Register(any, uintptr) { f.register++ }

var testSpec = Spec{
	Name:   "zmq",
	EnvVar: "XSOCK_ZMQ_LIBRARY",
	Platform: map[string][]string{
		"linux":  {"libzmq.so.5"},
		"darwin": {"libzmq.5.dylib"},
	},
	Generic: []string{"libzmq.so"},
}

func env(vals map[string]string) func(string) string {
	return func(k string) string { return vals[k] }
}

func TestCandidates_Order(t *testing.T) {
	got := Candidates(testSpec, "/opt/explicit.so", env(map[string]string{"XSOCK_ZMQ_LIBRARY": "/env/libzmq.so"}), "linux")
	assert.Equal(t, []string{"/opt/explicit.so", "/env/libzmq.so", "libzmq.so.5", "libzmq.so"}, got)
}

func TestCandidates_SkipsEmptyAndDuplicates(t *testing.T) {
	got := Candidates(testSpec, "", env(map[string]string{"XSOCK_ZMQ_LIBRARY": "libzmq.so"}), "darwin")
	assert.Equal(t, []string{"libzmq.so", "libzmq.5.dylib"}, got)
}

func TestLoad_EnvBeforePlatform(t *testing.T) {
	op := &fakeOpener{ok: map[string]uintptr{"/env/libzmq.so": 7, "libzmq.so.5": 9}}
	lib, err := Load(testSpec,
		WithOpener(op),
		WithGetenv(env(map[string]string{"XSOCK_ZMQ_LIBRARY": "/env/libzmq.so"})),
		WithGOOS("linux"),
	)
	require.NoError(t, err)
	assert.Equal(t, "/env/libzmq.so", lib.Path)
	assert.Equal(t, []string{"/env/libzmq.so"}, op.opened)
}

func TestLoad_FallsBackToGeneric(t *testing.T) {
	op := &fakeOpener{ok: map[string]uintptr{"libzmq.so": 3}}
	lib, err := Load(testSpec, WithOpener(op), WithGetenv(env(nil)), WithGOOS("linux"))
	require.NoError(t, err)
	assert.Equal(t, "libzmq.so", lib.Path)
	assert.Equal(t, []string{"libzmq.so.5", "libzmq.so"}, op.opened)
}

func TestLoad_NothingResolves(t *testing.T) {
	op := &fakeOpener{}
	_, err := Load(testSpec, WithOpener(op), WithGetenv(env(nil)), WithGOOS("linux"), WithPath("/missing.so"))
	require.Error(t, err)

	var le *xsock.LibraryLoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "zmq", le.Library)
	assert.Equal(t, []string{"/missing.so", "libzmq.so.5", "libzmq.so"}, le.Attempts)
}

func TestLibrary_Bind(t *testing.T) {
	op := &fakeOpener{ok: map[string]uintptr{"libzmq.so": 1}, symbols: map[string]uintptr{"zmq_ctx_new": 0x1000}}
	lib, err := Load(testSpec, WithOpener(op), WithGetenv(env(nil)), WithGOOS("plan9"))
	require.NoError(t, err)

	var ctxNew func() uintptr
	require.NoError(t, lib.Bind("zmq_ctx_new", &ctxNew))
	assert.Equal(t, 1, op.register)

	var missing func() int32
	err = lib.Bind("zmq_missing", &missing)
	var le *xsock.LibraryLoadError
	require.ErrorAs(t, err, &le)
	assert.Contains(t, le.Error(), "zmq_missing")
}

func TestCache_LoadsOnce(t *testing.T) {
	op := &fakeOpener{ok: map[string]uintptr{"libzmq.so": 1}}
	var c Cache
	a, err := c.Load(testSpec, WithOpener(op), WithGetenv(env(nil)), WithGOOS("plan9"))
	require.NoError(t, err)
	b, err := c.Load(testSpec, WithOpener(op), WithGetenv(env(nil)), WithGOOS("plan9"))
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Len(t, op.opened, 1)
}
