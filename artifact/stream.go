package artifact

import (
	"bytes"
	"errors"
	"io"
	"sync"
)

// ErrDiscarded is returned by Read after the stream was discarded.
var ErrDiscarded = errors.New("artifact: stream discarded")

// Stream is a growable buffer between one producer and one consumer.
//
// The producer calls Write and finally Finish. Read returns buffered bytes
// as soon as any exist; when the buffer is empty and the producer has not
// finished, Read calls the pull function to make progress. Pull runs on the
// reading goroutine and must eventually write, finish, or report false.
type Stream struct {
	mu       sync.Mutex
	buf      bytes.Buffer
	finished bool
	err      error
	total    int64
	pull     func() bool
}

// NewStream returns an empty stream. pull may be nil, in which case Read on
// an empty unfinished stream returns (0, nil).
func NewStream(pull func() bool) *Stream {
	return &Stream{pull: pull}
}

// SetPull replaces the pull function.
func (s *Stream) SetPull(pull func() bool) {
	s.mu.Lock()
	s.pull = pull
	s.mu.Unlock()
}

// Write appends p. Writes after Finish fail.
func (s *Stream) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		if s.err != nil {
			return 0, s.err
		}
		return 0, io.ErrClosedPipe
	}
	s.total += int64(len(p))
	return s.buf.Write(p)
}

// Finish marks the end of the data. A non-nil err is returned by Read once
// the buffered bytes are consumed, instead of io.EOF. Only the first call
// has an effect.
func (s *Stream) Finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return
	}
	s.finished = true
	s.err = err
}

// Discard drops buffered bytes and finishes the stream with ErrDiscarded.
func (s *Stream) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.Reset()
	if !s.finished {
		s.finished = true
		s.err = ErrDiscarded
	}
}

// Read implements io.Reader.
func (s *Stream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for {
		s.mu.Lock()
		if s.buf.Len() > 0 {
			n, _ := s.buf.Read(p)
			s.mu.Unlock()
			return n, nil
		}
		if s.finished {
			err := s.err
			s.mu.Unlock()
			if err == nil {
				err = io.EOF
			}
			return 0, err
		}
		pull := s.pull
		s.mu.Unlock()

		if pull == nil || !pull() {
			s.mu.Lock()
			empty, finished := s.buf.Len() == 0, s.finished
			s.mu.Unlock()
			if empty && !finished {
				return 0, nil
			}
		}
	}
}

// Buffered returns the number of unread bytes.
func (s *Stream) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Len()
}

// Written returns the number of bytes written since creation.
func (s *Stream) Written() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// Finished reports whether the producer has finished.
func (s *Stream) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}
