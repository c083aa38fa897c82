package zmq

// Socket types, options and flags from zmq.h.
const (
	zmqPub = 1
	zmqSub = 2

	zmqLinger      = 17
	zmqSubscribe   = 6
	zmqUnsubscribe = 7
	zmqRcvMore     = 13
	zmqRcvTimeo    = 27

	zmqDontWait = 1
	zmqSndMore  = 2
)
