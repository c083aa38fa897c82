// Package zmq provides the libzmq back end for xsock.
//
// Backend name: "zmq"
//
// The back end owns one libzmq context; every socket is opened from it and
// must be closed before Terminate. Sockets support multipart messages
// (ZMQ_SNDMORE / ZMQ_RCVMORE), so both framing conventions work.
//
// The shared library is resolved from, in order: the "library_path" config
// key, $XSOCK_ZMQ_LIBRARY, the platform name (libzmq.so.5, libzmq.5.dylib,
// libzmq.dll) and finally libzmq.so / libzmq.
//
// Config keys:
// - library_path: explicit path to libzmq
// - linger: ZMQ_LINGER applied to every socket (default 0s)
//
// Example:
//
//	node, err := zmq.Use(zmq.Defaults(), func(b *xsock.NodeBuilder) {
//	    b.WithFraming(xsock.FramingMultipart)
//	})
package zmq
