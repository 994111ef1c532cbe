package vigilance

import (
	"bytes"
	"fmt"
	"io"
	"sync"
)

// Frame is one server-sent event. An empty Event produces a bare data frame.
type Frame struct {
	Event string
	Data  []byte
}

func (f Frame) Bytes() []byte {
	buf := bytes.Buffer{}

	if f.Event != "" {
		fmt.Fprintf(&buf, "event: %s\n", f.Event)
	}

	buf.WriteString("data: ")
	buf.Write(f.Data)
	buf.WriteString("\n\n")

	return buf.Bytes()
}

// Sink receives the frames of one subscription. Send must not block the hub.
type Sink interface {
	Send(frame Frame) error
	Close()
}

// ChannelSink buffers frames for a stream handler draining Frames.
// A full buffer is a delivery failure: slow readers get pruned.
type ChannelSink struct {
	frames chan Frame
	done   chan struct{}
	once   sync.Once
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer < 1 {
		buffer = 1
	}

	return &ChannelSink{
		frames: make(chan Frame, buffer),
		done:   make(chan struct{}),
	}
}

func (s *ChannelSink) Send(frame Frame) error {
	select {
	case <-s.done:
		return ErrSinkClosed
	default:
	}

	select {
	case s.frames <- frame:
		return nil
	default:
		return ErrSinkFull
	}
}

// Frames is never closed, watch Done to stop reading.
func (s *ChannelSink) Frames() <-chan Frame {
	return s.frames
}

func (s *ChannelSink) Done() <-chan struct{} {
	return s.done
}

func (s *ChannelSink) Close() {
	s.once.Do(func() {
		close(s.done)
	})
}

// WriterSink writes frames synchronously, flushing after each one when possible.
type WriterSink struct {
	mu     sync.Mutex
	writer io.Writer
	closed bool
}

func NewWriterSink(writer io.Writer) *WriterSink {
	return &WriterSink{writer: writer}
}

type flusher interface {
	Flush()
}

func (s *WriterSink) Send(frame Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSinkClosed
	}

	_, err := s.writer.Write(frame.Bytes())
	if err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}

	f, ok := s.writer.(flusher)
	if ok {
		f.Flush()
	}

	return nil
}

func (s *WriterSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
}
