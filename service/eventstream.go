package service

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

const (
	// streamDoneSentinel terminates a data-framed event stream.
	streamDoneSentinel = "[DONE]"

	minReadBuffer = 512
	maxReadBuffer = 64 * 1024
)

// EventStreamReader turns a raw byte source into an ordered sequence of
// logical event payloads. The wire format is line-delimited `data: <payload>`
// framing terminated by `data: [DONE]`.
//
// A physical read routinely splits a line in the middle; the partial tail is
// carried across reads and never emitted early. The read buffer starts small
// to keep first-token latency down and doubles as the stream proves sustained.
type EventStreamReader struct {
	src    io.Reader
	cancel *CancelToken

	buf     []byte
	carry   []byte
	pending []string
	done    bool
	srcEOF  bool
}

func NewEventStreamReader(src io.Reader, cancel *CancelToken) *EventStreamReader {
	return &EventStreamReader{
		src:    src,
		cancel: cancel,
		buf:    make([]byte, minReadBuffer),
	}
}

// Next returns the next event payload in arrival order. It returns io.EOF
// once the terminal sentinel (or the underlying end of stream) is reached;
// calling Next again after that keeps returning io.EOF. I/O faults are
// wrapped as ErrTransport. Once the cancel token is set, no further event
// is emitted.
func (r *EventStreamReader) Next() (string, error) {
	for {
		if err := r.cancel.Err(); err != nil {
			return "", err
		}
		if len(r.pending) > 0 {
			payload := r.pending[0]
			r.pending = r.pending[1:]
			return payload, nil
		}
		if r.done || r.srcEOF {
			return "", io.EOF
		}

		n, err := r.src.Read(r.buf)
		if n > 0 {
			r.carry = append(r.carry, r.buf[:n]...)
			r.splitLines()
			// A full buffer means the stream is flowing faster than we read.
			if n == len(r.buf) && len(r.buf) < maxReadBuffer {
				r.buf = make([]byte, len(r.buf)*2)
			}
		}
		if cerr := r.cancel.Err(); cerr != nil {
			return "", cerr
		}
		if err == io.EOF {
			// Flush a trailing line that arrived without a newline.
			if len(r.carry) > 0 {
				r.ingestLine(string(r.carry))
				r.carry = nil
			}
			r.srcEOF = true
			continue
		}
		if err != nil {
			return "", fmt.Errorf("%w: reading event stream: %v", ErrTransport, err)
		}
	}
}

// Done reports whether the terminal sentinel was observed.
func (r *EventStreamReader) Done() bool {
	return r.done
}

func (r *EventStreamReader) splitLines() {
	for {
		i := bytes.IndexByte(r.carry, '\n')
		if i < 0 {
			return
		}
		line := string(r.carry[:i])
		r.carry = r.carry[i+1:]
		r.ingestLine(line)
	}
}

func (r *EventStreamReader) ingestLine(line string) {
	line = strings.TrimRight(line, "\r")
	if line == "" || strings.HasPrefix(line, ":") {
		// Blank event separators and SSE comments carry no payload.
		return
	}
	payload, ok := strings.CutPrefix(line, "data:")
	if !ok {
		// Unknown field (event:, id:, ...) - tolerated, not an error.
		return
	}
	payload = strings.TrimSpace(payload)
	if payload == streamDoneSentinel {
		r.done = true
		return
	}
	if payload != "" && !r.done {
		r.pending = append(r.pending, payload)
	}
}
