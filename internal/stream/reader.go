package stream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
)

// MaxLineBytes bounds the pending buffer. A record longer than this is discarded.
const MaxLineBytes = 1 << 20

const readBufferSize = 32 * 1024

// ErrDisconnected is returned by Consume when the body ends cleanly.
var ErrDisconnected = errors.New("stream disconnected")

// TransportError wraps a read failure on the response body.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("stream read: %v", e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// Reader reassembles NDJSON records that may be split across chunks.
// It is not safe for concurrent use; one Reader serves one response body.
type Reader struct {
	pending []byte
	dropped int
	logger  *zap.Logger
}

func NewReader(logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{logger: logger}
}

// Feed appends chunk to the pending buffer and returns every complete record,
// in arrival order. Blank keep-alive lines and malformed records are dropped.
func (r *Reader) Feed(chunk []byte) []Event {
	r.pending = append(r.pending, chunk...)
	var out []Event
	for {
		i := bytes.IndexByte(r.pending, '\n')
		if i < 0 {
			break
		}
		line := r.pending[:i]
		r.pending = r.pending[i+1:]
		if ev, ok := r.parse(line); ok {
			out = append(out, ev)
		}
	}
	if len(r.pending) > MaxLineBytes {
		r.logger.Warn("stream_line_too_long", zap.Int("bytes", len(r.pending)))
		r.dropped++
		r.pending = nil
	}
	if len(r.pending) == 0 {
		r.pending = nil
	}
	return out
}

// Flush parses a trailing record that was never terminated by a line break.
func (r *Reader) Flush() []Event {
	line := r.pending
	r.pending = nil
	if ev, ok := r.parse(line); ok {
		return []Event{ev}
	}
	return nil
}

// Pending reports the number of buffered bytes awaiting a line break.
func (r *Reader) Pending() int { return len(r.pending) }

// Dropped reports how many non-blank records failed to parse.
func (r *Reader) Dropped() int { return r.dropped }

func (r *Reader) parse(line []byte) (Event, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return Event{}, false
	}
	ev, err := Decode(line)
	if err != nil {
		r.dropped++
		r.logger.Debug("stream_line_dropped", zap.Int("bytes", len(line)), zap.Error(err))
		return Event{}, false
	}
	return ev, true
}

// Consume reads body until it ends, calling fn for every event in order.
// A clean end of body returns ErrDisconnected; read failures return a
// *TransportError; cancellation returns ctx.Err().
func (r *Reader) Consume(ctx context.Context, body io.Reader, fn func(Event)) error {
	buf := make([]byte, readBufferSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := body.Read(buf)
		if n > 0 {
			for _, ev := range r.Feed(buf[:n]) {
				fn(ev)
			}
		}
		if errors.Is(err, io.EOF) {
			for _, ev := range r.Flush() {
				fn(ev)
			}
			return ErrDisconnected
		}
		if err != nil {
			if cerr := ctx.Err(); cerr != nil {
				return cerr
			}
			return &TransportError{Err: err}
		}
	}
}
