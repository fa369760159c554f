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

// UnavailableReadFunc is a zero-argument callable invoked only after
// ReadRaw has yielded MaxSpins times without making progress (normally
// because both of the consumer's rings were empty). It returns
// 0 (woken, retry) or -1 (shutdown). In practice it is a blocking wait on
// a single-capacity rendezvous filled by the peer's Doorbell.
type UnavailableReadFunc func() int

// defaultMaxSpins is a spin count before blocking, not a correctness
// property.
const defaultMaxSpins = 30

// Consumer is one direction's read half of the protocol: it multiplexes a
// small-command ring and a large-transfer ring back into one ordered byte
// stream via ReadRaw. The protocol is symmetric, so a Context hosts one
// Consumer in each direction (server-side via NewServerConsumer, client-side
// via NewClientConsumer).
type Consumer struct {
	smallRing *Ring
	largeRing *Ring
	config    *RingConfig
	xferBuf   []byte

	// selfState is published CAN_CONSUME at the top of every ReadRaw call
	// and RENDERING when ReadRaw returns bytes; a call that returns done
	// leaves it at CAN_CONSUME. It is what the opposing Producer watches for
	// doorbell suppression.
	selfState *StateWord

	unavailableRead UnavailableReadFunc
	logger          Logger

	// MaxSpins is the number of empty-ring observations tolerated before
	// blocking on unavailableRead. Defaults to 30; exposed for tuning.
	MaxSpins int

	readBuffer     []byte // carry buffer for an oversized descriptor's tail
	readBufferLeft int    // bytes still to drain from readBuffer

	// inLargeXfer is reset to true at the top of every ReadRaw call; it only
	// steers the busy-continue-vs-yield backoff choice while a large
	// transfer's announced count is still draining, not correctness.
	inLargeXfer bool

	xmits     uint64
	totalRecv uint64
	shouldExit bool
}

func newConsumer(smallRing, largeRing *Ring, config *RingConfig, xferBuf []byte, selfState *StateWord, unavailableRead UnavailableReadFunc, logger Logger) *Consumer {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Consumer{
		smallRing:       smallRing,
		largeRing:       largeRing,
		config:          config,
		xferBuf:         xferBuf,
		selfState:       selfState,
		unavailableRead: unavailableRead,
		logger:          logger,
		MaxSpins:        defaultMaxSpins,
		readBuffer:      make([]byte, MaxType1PayloadSize),
	}
}

// NewServerConsumer constructs the server-side Consumer: it reads the
// to_host rings and publishes host_state.
func NewServerConsumer(ctx *Context, unavailableRead UnavailableReadFunc, logger Logger) *Consumer {
	return newConsumer(ctx.ToHostRing, ctx.ToHostLargeRing, ctx.Config, ctx.XferBuffer(), ctx.HostState, unavailableRead, logger)
}

// NewClientConsumer constructs the client-side Consumer: it reads the
// from_host rings and publishes guest_state.
func NewClientConsumer(ctx *Context, unavailableRead UnavailableReadFunc, logger Logger) *Consumer {
	return newConsumer(ctx.FromHostRing, ctx.FromHostLargeRing, ctx.Config, ctx.XferBuffer(), ctx.GuestState, unavailableRead, logger)
}

// ReadRaw delivers between 1 and len(dst) bytes into dst, or reports done
// with n==0 only when the stream has terminated (ShouldExit). It implements
// the full readRaw algorithm: carry-buffer drain, small-ring type-1 reads,
// large-ring type-3 reads, bounded spin, then a blocking unavailable-read
// callback.
//
// One descriptor is consumed from the small ring per call at most; a
// caller that wants an entire oversized descriptor's payload must call
// ReadRaw repeatedly. This is a promoted specification requirement, not a
// limitation left to fix later.
func (c *Consumer) ReadRaw(dst []byte) (n int, done bool) {
	wanted := len(dst)
	count := 0

	c.selfState.Store(StateCanConsume)
	c.inLargeXfer = true

	spins := 0
	for count < wanted {
		if c.readBufferLeft > 0 {
			got := c.drainCarry(dst[count:])
			count += got
			continue
		}
		if count > 0 {
			break
		}

		c.selfState.Store(StateCanConsume)
		if c.shouldExit {
			return 0, true
		}

		smallAvail := c.smallRing.AvailableRead()
		largeAvail := c.largeRing.AvailableRead()

		switch {
		case smallAvail > 0:
			c.inLargeXfer = false
			switch c.config.TransferMode() {
			case TransferModeType1:
				got := c.tryType1(dst[count:], wanted-count)
				count += got
				if got == 0 {
					spins = c.spinOrBlock(spins)
				}
			case TransferModeReserved:
				// reserved mode, disabled: makes no progress.
				spins = c.spinOrBlock(spins)
			case TransferModeType3:
				c.fatal()
				return count, count == 0
			default:
				c.fatal()
				return count, count == 0
			}

		case largeAvail > 0:
			got := c.tryType3(dst[count:], wanted-count)
			count += got
			c.inLargeXfer = true
			if c.config.TransferSize() == 0 {
				c.inLargeXfer = false
			}
			if got == 0 {
				spins = c.spinOrBlock(spins)
			}

		default:
			if c.inLargeXfer {
				if c.config.TransferSize() > 0 {
					continue
				}
				c.inLargeXfer = false
			}
			spins = c.spinOrBlock(spins)
		}

		if c.shouldExit && count == 0 {
			return 0, true
		}
	}

	c.selfState.Store(StateRendering)
	c.totalRecv += uint64(count)
	c.xmits++
	return count, false
}

// drainCarry copies from the local carry buffer into dst, decrementing
// readBufferLeft by exactly the bytes copied.
func (c *Consumer) drainCarry(dst []byte) int {
	n := c.readBufferLeft
	if n > len(dst) {
		n = len(dst)
	}
	start := len(c.readBuffer) - c.readBufferLeft
	copy(dst[:n], c.readBuffer[start:start+n])
	c.readBufferLeft -= n
	return n
}

// tryType1 peeks the next type-1 descriptor and, if it fits in dst, copies
// its payload and advances the small ring by exactly one descriptor. If it
// does not fit, the whole payload is stashed in the carry buffer and
// returned one drainCarry call at a time instead. Because ReadRaw only
// reaches this point when count==0 (any in-progress partial read returns
// before re-entering the dispatch switch), a second, smaller descriptor
// queued behind an oversized one is never observed mid-payload here.
func (c *Consumer) tryType1(dst []byte, wanted int) int {
	var rec [descriptorSize]byte
	if !c.smallRing.CopyContents(0, 1, descriptorSize, rec[:]) {
		return 0
	}
	d := getDescriptor(rec[:])

	if int(d.offset)+int(d.size) > len(c.xferBuf) {
		c.fatal()
		return 0
	}
	payload := c.xferBuf[d.offset : d.offset+d.size]

	if int(d.size) > wanted {
		need := int(d.size)
		if need > cap(c.readBuffer) {
			c.readBuffer = make([]byte, need)
		} else {
			c.readBuffer = c.readBuffer[:need]
		}
		copy(c.readBuffer, payload)
		c.readBufferLeft = need
		c.smallRing.AdvanceRead(1, descriptorSize)
		c.config.AddHostConsumedPos(d.size)
		return c.drainCarry(dst)
	}

	copy(dst[:d.size], payload)
	c.smallRing.AdvanceRead(1, descriptorSize)
	c.config.AddHostConsumedPos(d.size)
	return int(d.size)
}

// tryType3 pulls the currently announced large transfer, decrementing
// transfer_size with release before the bytes are actually copied so the
// producer's next announcement cannot race a partially-drained count.
func (c *Consumer) tryType3(dst []byte, wanted int) int {
	announced := int(c.config.TransferSize())
	largeAvail := int(c.largeRing.AvailableRead())

	actuallyRead := largeAvail
	if announced < actuallyRead {
		actuallyRead = announced
	}
	if wanted < actuallyRead {
		actuallyRead = wanted
	}
	if actuallyRead <= 0 {
		return 0
	}

	c.config.SubTransferSize(uint32(actuallyRead))

	errFlag := c.config.inErrorAddr()
	got := c.largeRing.ReadFullyWithAbort(dst, actuallyRead, 1, errFlag)
	return got
}

// spinOrBlock advances the spin counter, yielding cooperatively, and calls
// the unavailable-read callback once MaxSpins is exceeded. It returns the
// spin counter to carry into the next iteration (0 after a block).
func (c *Consumer) spinOrBlock(spins int) int {
	if spins < c.MaxSpins {
		c.smallRing.Yield()
		return spins + 1
	}
	if c.shouldExit {
		return 0
	}
	if c.unavailableRead() == -1 {
		c.shouldExit = true
	}
	return 0
}

// fatal marks the stream terminally broken: a protocol violation was
// observed (small ring non-empty while transfer_mode claimed an in-progress
// large transfer, or an out-of-range transfer_mode). Matches the
// ProtocolViolation taxonomy entry: fatal, subsequent calls return done.
func (c *Consumer) fatal() {
	c.logger.Warnf("ringproto: protocol violation observed, terminating stream")
	c.shouldExit = true
}

// Stats returns the cumulative bytes received and the number of completed
// ReadRaw calls, for diagnostics.
func (c *Consumer) Stats() (totalRecv uint64, xmits uint64) {
	return c.totalRecv, c.xmits
}

// ShouldExit reports whether the stream has observed a terminal condition
// (protocol violation or an unavailable-read shutdown signal).
func (c *Consumer) ShouldExit() bool { return c.shouldExit }

// Consumer deliberately has no WriteFully/ReadFully method: the consumer
// side's only public operation is ReadRaw. A caller that reaches for a
// symmetric write method on the read half gets a compile error instead of a
// runtime panic, since the method simply does not exist.
