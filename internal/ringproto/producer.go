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

import "fmt"

// Doorbell is a zero-argument producer-side wake signal. It must be cheap
// and must tolerate spurious calls; the consumer blocks at most once per
// doorbell.
type Doorbell func()

// Logger is the minimal sink the producer uses for its GuestSlowness
// diagnostic. *zap.SugaredLogger satisfies this directly.
type Logger interface {
	Warnf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Warnf(string, ...any) {}

// Producer is one direction's write half of the protocol: it turns a
// stream of writes into type-1 descriptors or type-3 large transfers on its
// outbound ring pair, ringing the doorbell only when the peer consumer was
// not already observed spinning. The protocol is symmetric, so a Context
// hosts one Producer in each direction (client->server via NewClientProducer,
// server->client via NewServerProducer); both share the same xfer buffer
// and config block.
type Producer struct {
	smallRing *Ring
	largeRing *Ring
	config    *RingConfig
	xferBuf   []byte
	peerState *StateWord // the state word the opposing Consumer publishes
	doorbell  Doorbell
	logger    Logger

	xferHead  uint32 // next free offset in the xfer data buffer
	allocOff  uint32 // start of the outstanding AllocBuffer reservation
	allocLen  uint32 // length of the outstanding reservation
	committed uint32 // bytes committed into the reservation so far

	slowSpins uint64 // cumulative backoff iterations, for GuestSlowness
	sent      uint64 // total bytes delivered across flush calls
}

func newProducer(smallRing, largeRing *Ring, config *RingConfig, xferBuf []byte, peerState *StateWord, doorbell Doorbell, logger Logger) *Producer {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Producer{
		smallRing: smallRing,
		largeRing: largeRing,
		config:    config,
		xferBuf:   xferBuf,
		peerState: peerState,
		doorbell:  doorbell,
		logger:    logger,
	}
}

// NewClientProducer constructs the client->server Producer: it writes the
// to_host rings and watches host_state (published by the server Consumer)
// for doorbell suppression and EXIT.
func NewClientProducer(ctx *Context, doorbell Doorbell, logger Logger) *Producer {
	return newProducer(ctx.ToHostRing, ctx.ToHostLargeRing, ctx.Config, ctx.XferBuffer(), ctx.HostState, doorbell, logger)
}

// NewServerProducer constructs the server->client Producer: it writes the
// from_host rings and watches guest_state (published by the client
// Consumer) for doorbell suppression and EXIT.
func NewServerProducer(ctx *Context, doorbell Doorbell, logger Logger) *Producer {
	return newProducer(ctx.FromHostRing, ctx.FromHostLargeRing, ctx.Config, ctx.XferBuffer(), ctx.GuestState, doorbell, logger)
}

// AllocBuffer reserves min bytes in the large-xfer data buffer at the
// current write offset and returns a slice over that reservation. The
// returned slice is valid until the next AllocBuffer or flush-triggering
// call (WriteFully/CommitBuffer).
func (p *Producer) AllocBuffer(min int) ([]byte, error) {
	buf := p.xferBuf
	if uint32(min) > uint32(len(buf)) {
		return nil, fmt.Errorf("ringproto: alloc of %d exceeds xfer buffer capacity %d: %w", min, len(buf), ErrAllocTooLarge)
	}
	if p.xferHead+uint32(min) > uint32(len(buf)) {
		p.xferHead = 0
	}
	p.allocOff = p.xferHead
	p.allocLen = uint32(min)
	p.committed = 0
	return buf[p.allocOff : p.allocOff+uint32(min)], nil
}

// CommitBuffer publishes n bytes of the most recent AllocBuffer reservation
// and flushes them onto the wire as either a type-1 descriptor or a type-3
// large transfer, per the small-ring payload capacity threshold. It
// returns ErrRemoteExit (with the already-sent count folded into the
// Producer's own counters) if host_state is observed as EXIT.
func (p *Producer) CommitBuffer(n int) error {
	if uint32(n) > p.allocLen {
		return ErrCommitExceedsAlloc
	}
	p.committed = uint32(n)
	p.xferHead = p.allocOff + uint32(n)
	return p.flush(p.allocOff, uint32(n))
}

// WriteFully is the producer-facing convenience that combines AllocBuffer
// and CommitBuffer for a caller-owned buffer, returning the number of bytes
// actually sent (which may be less than len(buf) only if the remote side
// signaled EXIT mid-send).
func (p *Producer) WriteFully(buf []byte) (int, error) {
	n := len(buf)
	dst, err := p.AllocBuffer(n)
	if err != nil {
		return 0, err
	}
	copy(dst, buf)
	before := p.sent
	if err := p.CommitBuffer(n); err != nil {
		if err == ErrRemoteExit {
			return int(p.sent - before), err
		}
		return 0, err
	}
	return n, nil
}

// Readback copies the n most recently committed bytes of the xfer buffer
// back into dst, for callers implementing a round-trip echo test: the
// producer reads what it just wrote without involving the ring at all,
// since the bytes are still resident in the xfer buffer until overwritten
// by a later AllocBuffer.
func (p *Producer) Readback(dst []byte, n int) int {
	buf := p.xferBuf
	if uint32(n) > p.committed {
		n = int(p.committed)
	}
	if n > len(dst) {
		n = len(dst)
	}
	copy(dst[:n], buf[p.allocOff:p.allocOff+uint32(n)])
	return n
}

// flush packages n bytes starting at xferOff into either a type-1
// descriptor or a type-3 large-transfer announcement.
func (p *Producer) flush(xferOff, n uint32) error {
	if n == 0 {
		return nil
	}
	var err error
	if n <= MaxType1PayloadSize {
		err = p.flushType1(xferOff, n)
	} else {
		err = p.flushType3(xferOff, n)
	}
	if err != nil {
		return err
	}
	p.sent += uint64(n)
	p.ringDoorbellIfNeeded()
	return nil
}

func (p *Producer) flushType1(xferOff, n uint32) error {
	p.config.SetTransferMode(TransferModeType1)

	var rec [descriptorSize]byte
	putDescriptor(rec[:], descriptor{offset: xferOff, size: n})

	for {
		if p.smallRing.Write(rec[:], 1, descriptorSize) == 1 {
			return nil
		}
		if exit, err := p.waitForSpace(); exit {
			return err
		}
	}
}

// flushType3 announces a large transfer. The small ring must be observed
// empty before transfer_mode flips to 3: a consumer that finds the small
// ring non-empty while transfer_mode claims an in-progress large transfer
// treats that as a fatal protocol violation (see Consumer.fatal). It must
// also wait for the previous large transfer's announced count to have
// drained to zero before overwriting transfer_size, since a lagging
// consumer's tryType3 caps what it reads at the announced value and an
// overwrite mid-drain would strand whatever of the prior transfer is still
// resident on the large ring.
func (p *Producer) flushType3(xferOff, n uint32) error {
	for p.smallRing.AvailableRead() != 0 {
		if exit, err := p.waitForSpace(); exit {
			return err
		}
	}
	for p.config.TransferSize() != 0 {
		if exit, err := p.waitForSpace(); exit {
			return err
		}
	}

	p.config.SetTransferMode(TransferModeType3)
	p.config.SetTransferSize(n)

	buf := p.xferBuf
	remaining := buf[xferOff : xferOff+n]
	for len(remaining) > 0 {
		written := p.largeRing.Write(remaining, len(remaining), 1)
		if written == 0 {
			if exit, err := p.waitForSpace(); exit {
				p.sent += uint64(n) - uint64(len(remaining))
				return err
			}
			continue
		}
		remaining = remaining[written:]
	}
	return nil
}

// waitForSpace spins with a cooperative yield, re-checking host_state, and
// reports (true, ErrRemoteExit) once EXIT is observed so callers abandon
// the remainder of the current send.
func (p *Producer) waitForSpace() (exit bool, err error) {
	if p.peerState.Load() == StateExit {
		return true, ErrRemoteExit
	}
	p.smallRing.Yield()
	p.slowSpins++
	if p.slowSpins%slowSpinLogThreshold == 0 {
		p.logger.Warnf("ringproto: producer has spun %d times waiting for ring space (GuestSlowness)", p.slowSpins)
	}
	return false, nil
}

// slowSpinLogThreshold is how many backoff iterations (counted cumulatively
// over the Producer's lifetime) elapse between GuestSlowness warnings, so a
// stalled consumer does not flood the log.
const slowSpinLogThreshold = 100000

// ringDoorbellIfNeeded implements the doorbell-suppression policy: ring
// only if host_state was NOT observed as CAN_CONSUME, i.e. the consumer is
// not already spinning inside ReadRaw.
func (p *Producer) ringDoorbellIfNeeded() {
	if p.peerState.Load() != StateCanConsume {
		p.doorbell()
	}
}

// Stats returns the cumulative bytes sent and backoff-spin count, for
// diagnostics.
func (p *Producer) Stats() (sent uint64, backoffSpins uint64) {
	return p.sent, p.slowSpins
}
