package nanomsg

// Values from nn.h and pubsub.h.
const (
	afSP = 1

	nnPub = 32
	nnSub = 33

	nnSolSocket = 0
	nnLinger    = 1
	nnRcvTimeo  = 5

	nnSubSubscribe   = 1
	nnSubUnsubscribe = 2
)
