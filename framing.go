package xsock

import (
	"bytes"
	"fmt"
	"strings"
)

const (
	FramingMultipart = "multipart"
	FramingDelimited = "delimited"

	// Delimiter separates topic and payload in delimited framing.
	Delimiter = '|'

	// DefaultMaxFrames bounds how many frames a multipart reader collects
	// before giving up on a message.
	DefaultMaxFrames = 16
)

// MultipartFramer sends the topic and payload as two frames, the first
// flagged with "more follows".
type MultipartFramer struct {
	// MaxFrames caps frames kept in memory from one malformed message
	// (default 16, never below the two frames of a valid message).
	MaxFrames int
}

func (MultipartFramer) Name() string { return FramingMultipart }

func (f MultipartFramer) WriteMessage(s Socket, topic string, payload []byte) error {
	if _, err := s.Send([]byte(topic), true); err != nil {
		return err
	}
	_, err := s.Send(payload, false)
	return err
}

// ReadMessage collects frames while the socket reports more pending. Exactly
// two frames (topic, payload) form a valid message.
func (f MultipartFramer) ReadMessage(s Socket, maxSize int) (string, []byte, error) {
	limit := f.MaxFrames
	switch {
	case limit < 1:
		limit = DefaultMaxFrames
	case limit < 2:
		limit = 2
	}

	frames := make([][]byte, 0, 2)
	count := 0
	for {
		frame, err := s.Receive(maxSize)
		if err != nil {
			if count == 0 {
				return "", nil, err
			}
			return "", nil, fmt.Errorf("%w (after %d frames)", err, count)
		}
		count++
		// frames past the limit are drained so the next read starts on a message boundary
		if count <= limit {
			frames = append(frames, frame)
		}
		more, err := s.More()
		if err != nil {
			return "", nil, err
		}
		if !more {
			break
		}
	}

	if count != 2 || len(frames) != 2 {
		return "", nil, &FramingError{Framing: FramingMultipart, Frames: count, Reason: "expected topic and payload frames"}
	}
	return string(frames[0]), frames[1], nil
}

// DelimitedFramer sends "<topic>|<payload>" as one frame.
type DelimitedFramer struct{}

func (DelimitedFramer) Name() string { return FramingDelimited }

func (DelimitedFramer) WriteMessage(s Socket, topic string, payload []byte) error {
	frame, err := JoinDelimited(topic, payload)
	if err != nil {
		return err
	}
	_, err = s.Send(frame, false)
	return err
}

func (DelimitedFramer) ReadMessage(s Socket, maxSize int) (string, []byte, error) {
	frame, err := s.Receive(maxSize)
	if err != nil {
		return "", nil, err
	}
	return SplitDelimited(frame)
}

// JoinDelimited builds a delimited frame. The topic must be non-empty and
// must not contain the delimiter.
func JoinDelimited(topic string, payload []byte) ([]byte, error) {
	if err := ValidateDelimitedTopic(topic); err != nil {
		return nil, err
	}
	frame := make([]byte, 0, len(topic)+1+len(payload))
	frame = append(frame, topic...)
	frame = append(frame, Delimiter)
	frame = append(frame, payload...)
	return frame, nil
}

// SplitDelimited splits a frame at the first delimiter. Further delimiters
// belong to the payload, since topics can never contain one.
func SplitDelimited(frame []byte) (string, []byte, error) {
	i := bytes.IndexByte(frame, Delimiter)
	switch {
	case i < 0:
		return "", nil, &FramingError{Framing: FramingDelimited, Reason: "missing delimiter"}
	case i == 0:
		return "", nil, &FramingError{Framing: FramingDelimited, Reason: "empty topic"}
	}
	return string(frame[:i]), frame[i+1:], nil
}

// ValidateDelimitedTopic rejects topics that cannot be carried by delimited framing.
func ValidateDelimitedTopic(topic string) error {
	if topic == "" {
		return fmt.Errorf("%w: empty", ErrInvalidTopic)
	}
	if strings.IndexByte(topic, Delimiter) >= 0 {
		return fmt.Errorf("%w: %q contains %q", ErrInvalidTopic, topic, Delimiter)
	}
	return nil
}
