// Package native resolves and loads the shared messaging libraries (libzmq,
// libnanomsg) and binds their C entry points to Go function values.
//
// Resolution order for a library:
//   - an explicit path supplied by configuration
//   - the path named by the library's environment variable
//   - platform-conventional names (e.g. libzmq.so.5 on Linux)
//   - bare generic names as a last resort
//
// Loading uses purego, so no cgo toolchain is required.
package native
