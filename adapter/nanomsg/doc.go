// Package nanomsg provides the nanomsg back end for xsock.
//
// Backend name: "nanomsg"
//
// nanomsg has no context object: Terminate only stops new sockets from being
// opened. Sockets carry one frame per message, so only delimited framing is
// available; Send with more=true fails with xsock.ErrMultipartUnsupported.
//
// The shared library is resolved from, in order: the "library_path" config
// key, $XSOCK_NANOMSG_LIBRARY, the platform name (libnanomsg.so.5,
// libnanomsg.5.dylib, nanomsg.dll) and finally libnanomsg.so / libnanomsg.
//
// Config keys:
// - library_path: explicit path to libnanomsg
// - linger: NN_LINGER applied to every socket (default 0s)
package nanomsg
