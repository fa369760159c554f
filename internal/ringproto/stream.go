/*
 * Copyright 2025 gRPC authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package ringproto

import (
	"errors"
	"sync/atomic"
)

// ErrStreamClosed is returned by Stream methods once Close has been called.
var ErrStreamClosed = errors.New("ringproto: stream closed")

// WriteStream is the capability set a producer exposes to a generic caller:
// alloc/commit for the zero-copy path, plus WriteFully for callers that
// just want to hand over a buffer. An interface naming exactly the
// operations needed, with no shared base-class state.
type WriteStream interface {
	AllocBuffer(min int) ([]byte, error)
	CommitBuffer(n int) error
	WriteFully(buf []byte) (int, error)
}

// ReadStream is the consumer-side half of the same capability set.
type ReadStream interface {
	ReadRaw(dst []byte) (n int, done bool)
}

var (
	_ WriteStream = (*Producer)(nil)
	_ ReadStream  = (*Consumer)(nil)
)

// Stream pairs a Producer and a Consumer over one Context into a duplex
// byte pipe over the same segment. A Stream built by NewServerStream reads
// the to_host rings and writes the from_host rings; one built by
// NewClientStream is the mirror.
type Stream struct {
	ctx    *Context
	reader *Consumer
	writer *Producer
	closed atomic.Bool
}

// NewServerStream builds the server-side duplex pipe: it reads whatever the
// client produces and writes whatever the client will consume.
func NewServerStream(ctx *Context, doorbell Doorbell, unavailableRead UnavailableReadFunc, logger Logger) *Stream {
	return &Stream{
		ctx:    ctx,
		reader: NewServerConsumer(ctx, unavailableRead, logger),
		writer: NewServerProducer(ctx, doorbell, logger),
	}
}

// NewClientStream builds the client-side duplex pipe, mirroring
// NewServerStream.
func NewClientStream(ctx *Context, doorbell Doorbell, unavailableRead UnavailableReadFunc, logger Logger) *Stream {
	return &Stream{
		ctx:    ctx,
		reader: NewClientConsumer(ctx, unavailableRead, logger),
		writer: NewClientProducer(ctx, doorbell, logger),
	}
}

// AllocBuffer delegates to the underlying Producer.
func (s *Stream) AllocBuffer(min int) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrStreamClosed
	}
	return s.writer.AllocBuffer(min)
}

// CommitBuffer delegates to the underlying Producer.
func (s *Stream) CommitBuffer(n int) error {
	if s.closed.Load() {
		return ErrStreamClosed
	}
	return s.writer.CommitBuffer(n)
}

// WriteFully delegates to the underlying Producer.
func (s *Stream) WriteFully(buf []byte) (int, error) {
	if s.closed.Load() {
		return 0, ErrStreamClosed
	}
	return s.writer.WriteFully(buf)
}

// ReadRaw delegates to the underlying Consumer.
func (s *Stream) ReadRaw(dst []byte) (n int, done bool) {
	if s.closed.Load() {
		return 0, true
	}
	return s.reader.ReadRaw(dst)
}

// Close marks the stream side closed; it does not zero or unmap the
// underlying region, which outlives any one Stream wrapper bound to it.
func (s *Stream) Close() error {
	s.closed.Store(true)
	return nil
}

// Context exposes the bound Context, e.g. for DebugState diagnostics.
func (s *Stream) Context() *Context { return s.ctx }
