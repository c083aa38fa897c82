package redispubsub

import (
	"encoding/binary"

	"github.com/trickstertwo/xsock"
)

const framingPacked = "redis-packed"

// packFrames concatenates frames, each prefixed with its uvarint length.
func packFrames(frames [][]byte) []byte {
	size := 0
	for _, f := range frames {
		size += binary.MaxVarintLen64 + len(f)
	}
	out := make([]byte, 0, size)
	for _, f := range frames {
		out = binary.AppendUvarint(out, uint64(len(f)))
		out = append(out, f...)
	}
	return out
}

// unpackFrames reverses packFrames.
func unpackFrames(data []byte) ([][]byte, error) {
	var frames [][]byte
	for len(data) > 0 {
		n, k := binary.Uvarint(data)
		if k <= 0 {
			return nil, &xsock.FramingError{Framing: framingPacked, Frames: len(frames), Reason: "bad frame length"}
		}
		data = data[k:]
		if n > uint64(len(data)) {
			return nil, &xsock.FramingError{Framing: framingPacked, Frames: len(frames), Reason: "truncated frame"}
		}
		frames = append(frames, data[:n])
		data = data[n:]
	}
	if len(frames) == 0 {
		return nil, &xsock.FramingError{Framing: framingPacked, Reason: "empty message"}
	}
	return frames, nil
}
