// Package redispubsub provides a Redis Pub/Sub back end for xsock.
//
// Backend name: "redis-pubsub"
//
// An endpoint is a Redis channel name. A publisher "binds" by publishing to
// the channel; a subscriber "connects" with SUBSCRIBE. The frames of one
// message are packed into a single PUBLISH payload, each prefixed with its
// uvarint length, so multipart framing is supported. Topic subscriptions are
// applied as byte prefixes on the first frame after the message arrives.
//
// Config keys:
// - addr: "host:port" (default "127.0.0.1:6379")
// - username, password, db
// - dial_timeout: connect timeout (default 5s)
// - tls, tls_server_name
//
// Example builder usage:
//
//	node, _ := xsock.NewNodeBuilder().
//	    WithBackend(redispubsub.BackendName, map[string]any{
//	        "addr":         "localhost:6379",
//	        "dial_timeout": "2s",
//	    }).
//	    WithFraming(xsock.FramingMultipart).
//	    Build()
package redispubsub
