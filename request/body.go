// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"bytes"
	"errors"
	"io"
	"io/ioutil"
	"net/http"
	"strings"
	"sync"
)

const badBodyTypeMsg = "httppipe/request: invalid type (for body use nil, " +
	"*Body, string, []byte or io.Reader)"

var (
	// ErrNotReplayable is returned by Body.Replay when a streaming body
	// was not wrapped with Body.Recording before its first send, so the
	// bytes already sent are lost.
	ErrNotReplayable = errors.New("httppipe/request: body is not replayable")

	// ErrBodyReplayed is returned from reads of a recording stream after
	// the stream has been materialized by Body.Replay.
	ErrBodyReplayed = errors.New("httppipe/request: body stream already materialized for replay")
)

type bodyKind int

const (
	bytesBody bodyKind = iota
	streamBody
)

// A Body is a request body. It is either a fixed in-memory byte slice,
// which is replayable and can be sent any number of times, or a stream,
// which can be read only once.
//
// A stream can be made replayable in two steps. Recording wraps the
// stream so that the bytes consumed by the first send are captured.
// Replay then materializes the captured bytes, plus whatever the first
// send left unread, into a replayable Body. Replay materializes at most
// once: every later call returns the same replayable Body.
//
// Body values are safe for concurrent use.
type Body struct {
	kind   bodyKind
	b      []byte
	r      io.Reader
	length int64
	rec    *recorder
}

// NewBytesBody returns a replayable body backed by b. The slice is not
// copied and must not be modified afterward.
func NewBytesBody(b []byte) *Body {
	return &Body{kind: bytesBody, b: b, length: int64(len(b))}
}

// NewStringBody returns a replayable body containing s.
func NewStringBody(s string) *Body {
	return NewBytesBody([]byte(s))
}

// NewStreamBody returns a one-shot body reading from r. Parameter
// length is the number of bytes r will produce, or -1 if unknown. If r
// implements io.Closer, it is closed once the body is fully consumed by
// a send or materialized by Replay.
func NewStreamBody(r io.Reader, length int64) *Body {
	if r == nil {
		panic("httppipe/request: nil reader")
	}
	return &Body{kind: streamBody, r: r, length: length}
}

// BodyFrom converts a generic body parameter to a *Body.
//
// • If body is nil, a nil *Body and no error is returned.
//
// • If body is a *Body, it is returned unchanged.
//
// • If body is a []byte or string, a replayable body is returned.
//
// • If body is an io.Reader, a stream body is returned. The length is
// known for *bytes.Buffer, *bytes.Reader and *strings.Reader values and
// unknown (-1) for any other reader.
//
// • If body is any other type, a nil *Body and an error is returned.
func BodyFrom(body interface{}) (*Body, error) {
	switch x := body.(type) {
	case nil:
		return nil, nil
	case *Body:
		return x, nil
	case string:
		return NewStringBody(x), nil
	case []byte:
		return NewBytesBody(x), nil
	case *bytes.Buffer:
		return NewStreamBody(x, int64(x.Len())), nil
	case *bytes.Reader:
		return NewStreamBody(x, int64(x.Len())), nil
	case *strings.Reader:
		return NewStreamBody(x, int64(x.Len())), nil
	case io.Reader:
		return NewStreamBody(x, -1), nil
	default:
		return nil, errors.New(badBodyTypeMsg)
	}
}

// Replayable reports whether the body can be read more than once
// without any buffering, which is true for in-memory bodies.
func (b *Body) Replayable() bool {
	return b == nil || b.kind == bytesBody
}

// Len returns the body length in bytes, or -1 if unknown.
func (b *Body) Len() int64 {
	if b == nil {
		return 0
	}
	return b.length
}

// Bytes returns the in-memory contents of a replayable body. It returns
// false for a stream body.
func (b *Body) Bytes() ([]byte, bool) {
	if b == nil {
		return nil, true
	}
	if b.kind != bytesBody {
		return nil, false
	}
	return b.b, true
}

// Reader returns a reader positioned at the start of the body.
//
// For a replayable body, every call returns a fresh reader. For a
// stream body, every call returns a reader over the same underlying
// stream, so only one of them should be consumed.
func (b *Body) Reader() io.ReadCloser {
	switch {
	case b == nil:
		return http.NoBody
	case b.kind == bytesBody:
		return ioutil.NopCloser(bytes.NewReader(b.b))
	case b.rec != nil:
		return b.rec
	default:
		if rc, ok := b.r.(io.ReadCloser); ok {
			return rc
		}
		return ioutil.NopCloser(b.r)
	}
}

// Recording returns a body that captures the bytes read from the
// stream, so that Replay can reconstruct them later. Replayable and
// already-recording bodies are returned unchanged.
//
// Recording does not read anything by itself: buffering happens as a
// send consumes the stream and, for the unread remainder, in Replay.
func (b *Body) Recording() *Body {
	if b == nil || b.kind == bytesBody || b.rec != nil {
		return b
	}
	return &Body{
		kind:   streamBody,
		r:      b.r,
		length: b.length,
		rec:    &recorder{src: b.r},
	}
}

// Replay returns a replayable body with the same contents as b.
//
// A replayable body is returned as-is, without copying. A recording
// stream is materialized into memory on the first call and the same
// *Body is returned on every later call. A stream that is not recording
// cannot be replayed and ErrNotReplayable is returned.
func (b *Body) Replay() (*Body, error) {
	if b == nil || b.kind == bytesBody {
		return b, nil
	}
	if b.rec == nil {
		return nil, ErrNotReplayable
	}
	return b.rec.materialize()
}

// recorder tees reads from src into buf until materialize runs.
type recorder struct {
	lock   sync.Mutex
	src    io.Reader
	buf    bytes.Buffer
	eof    bool
	replay *Body
	err    error
}

func (r *recorder) Read(p []byte) (int, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.replay != nil || r.err != nil {
		return 0, ErrBodyReplayed
	}
	if r.eof {
		return 0, io.EOF
	}
	n, err := r.src.Read(p)
	r.buf.Write(p[:n])
	if err == io.EOF {
		r.eof = true
		r.closeSrc()
	}
	return n, err
}

// Close is a no-op so that a transport closing the request body after
// one send does not destroy the recorded bytes.
func (r *recorder) Close() error {
	return nil
}

func (r *recorder) materialize() (*Body, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.replay != nil {
		return r.replay, nil
	}
	if r.err != nil {
		return nil, r.err
	}
	if !r.eof {
		_, err := r.buf.ReadFrom(r.src)
		r.closeSrc()
		r.eof = true
		if err != nil {
			r.err = err
			return nil, err
		}
	}
	r.replay = NewBytesBody(r.buf.Bytes())
	return r.replay, nil
}

func (r *recorder) closeSrc() {
	if c, ok := r.src.(io.Closer); ok {
		_ = c.Close()
	}
}
