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
	"fmt"
	"sync/atomic"
	"unsafe"
)

// MinXferBufferSize is the smallest large-xfer data buffer this package
// will bind against.
const MinXferBufferSize = 4096

// ringConfigSize is sizeof(ring_config): buffer_size, flush_interval,
// host_consumed_pos, transfer_mode, transfer_size, in_error, each a 32-bit
// word except host_consumed_pos which is 64-bit, padded to a round size.
const ringConfigSize = 32

// stateWordSize is sizeof(host_state) == sizeof(guest_state).
const stateWordSize = 4

// Layout describes the four ring capacities that, together with a large-xfer
// buffer size, determine how big a region NewContext needs.
type Layout struct {
	SmallRingCapacity uint32 // N for to_host_ring / from_host_ring, power of two
	LargeRingCapacity uint32 // N for the large-transfer rings, power of two
	XferBufferSize    uint32 // size of the trailing xfer data buffer, >= MinXferBufferSize
}

// ringConfigOffset, stateWordOffsets etc. are all computed relative to the
// start of the region once the four ring storages are laid out back to
// back, matching the field order of the shared region layout: two
// small-command rings, two large-transfer rings, the config block, then the
// two state words.
type layoutOffsets struct {
	toHostRingOff        uintptr
	fromHostRingOff      uintptr
	toHostLargeOff       uintptr
	fromHostLargeOff     uintptr
	ringConfigOff        uintptr
	hostStateOff         uintptr
	guestStateOff        uintptr
	xferBufferOff        uintptr
	totalSize            uintptr
}

func (l Layout) compute() layoutOffsets {
	var o layoutOffsets
	o.toHostRingOff = 0
	o.fromHostRingOff = o.toHostRingOff + uintptr(ringHeaderSize+l.SmallRingCapacity)
	o.toHostLargeOff = o.fromHostRingOff + uintptr(ringHeaderSize+l.SmallRingCapacity)
	o.fromHostLargeOff = o.toHostLargeOff + uintptr(ringHeaderSize+l.LargeRingCapacity)
	o.ringConfigOff = o.fromHostLargeOff + uintptr(ringHeaderSize+l.LargeRingCapacity)
	o.hostStateOff = o.ringConfigOff + ringConfigSize
	o.guestStateOff = o.hostStateOff + stateWordSize
	o.xferBufferOff = o.guestStateOff + stateWordSize
	o.totalSize = o.xferBufferOff + uintptr(l.XferBufferSize)
	return o
}

// Size returns the total region size this Layout requires.
func (l Layout) Size() uintptr { return l.compute().totalSize }

func isPowerOfTwo(n uint32) bool { return n != 0 && n&(n-1) == 0 }

func (l Layout) validate() error {
	if !isPowerOfTwo(l.SmallRingCapacity) {
		return ErrCapacityNotPowerOfTwo
	}
	if !isPowerOfTwo(l.LargeRingCapacity) {
		return ErrCapacityNotPowerOfTwo
	}
	if l.XferBufferSize < MinXferBufferSize {
		return fmt.Errorf("ringproto: xfer buffer size %d below minimum %d: %w", l.XferBufferSize, MinXferBufferSize, ErrRegionTooSmall)
	}
	return nil
}

// RingConfig is a non-owning view over the ring_config field block: the
// producer-owned tuning and handshake fields shared by both directions'
// large-transfer rings.
type RingConfig struct {
	mem []byte // ringConfigSize bytes
}

func (c *RingConfig) addr(off int) unsafe.Pointer { return unsafe.Pointer(&c.mem[off]) }

// BufferSize returns configured N of the large-xfer data buffer.
func (c *RingConfig) BufferSize() uint32 { return atomic.LoadUint32((*uint32)(c.addr(0))) }

// SetBufferSize sets N of the large-xfer data buffer.
func (c *RingConfig) SetBufferSize(n uint32) { atomic.StoreUint32((*uint32)(c.addr(0)), n) }

// FlushInterval returns the producer's doorbell-emission hint.
func (c *RingConfig) FlushInterval() uint32 { return atomic.LoadUint32((*uint32)(c.addr(4))) }

// SetFlushInterval sets the producer's doorbell-emission hint.
func (c *RingConfig) SetFlushInterval(n uint32) { atomic.StoreUint32((*uint32)(c.addr(4)), n) }

// HostConsumedPos returns the monotonically advancing count of bytes the
// consumer has acknowledged.
func (c *RingConfig) HostConsumedPos() uint64 { return atomic.LoadUint64((*uint64)(c.addr(8))) }

// SetHostConsumedPos sets the consumer-acknowledged byte count.
func (c *RingConfig) SetHostConsumedPos(n uint64) { atomic.StoreUint64((*uint64)(c.addr(8)), n) }

// AddHostConsumedPos atomically advances the consumer-acknowledged byte
// count by n and returns the new value. The consumer calls this once it
// has copied a type-1 descriptor's payload out of the xfer data buffer,
// freeing that span for reuse; nothing in this package's alloc algorithm
// currently consults it for backpressure (alloc's own wrap-around rule is
// the literal one described for this core), but it is kept live as the
// buffer-utilization counter a caller's diagnostics can read.
func (c *RingConfig) AddHostConsumedPos(n uint32) uint64 {
	return atomic.AddUint64((*uint64)(c.addr(8)), uint64(n))
}

// TransferMode returns the descriptor family currently active on the small
// ring, read with acquire semantics.
func (c *RingConfig) TransferMode() TransferMode {
	return TransferMode(atomic.LoadUint32((*uint32)(c.addr(16))))
}

// SetTransferMode publishes the active descriptor family with release
// semantics.
func (c *RingConfig) SetTransferMode(m TransferMode) {
	atomic.StoreUint32((*uint32)(c.addr(16)), uint32(m))
}

// TransferSize returns the bytes remaining in the currently announced
// large transfer, read with acquire semantics.
func (c *RingConfig) TransferSize() uint32 { return atomic.LoadUint32((*uint32)(c.addr(20))) }

// SetTransferSize publishes the bytes remaining in the currently announced
// large transfer, with release semantics.
func (c *RingConfig) SetTransferSize(n uint32) { atomic.StoreUint32((*uint32)(c.addr(20)), n) }

// SubTransferSize atomically decrements TransferSize by n and returns the
// new value, with release semantics; used by the consumer to shrink the
// announced remaining count as bytes are pulled, before the bytes
// themselves are copied.
func (c *RingConfig) SubTransferSize(n uint32) uint32 {
	return atomic.AddUint32((*uint32)(c.addr(20)), ^(n - 1))
}

// InError reports whether the abort flag consulted by the large-ring read
// loop is set.
func (c *RingConfig) InError() bool { return atomic.LoadUint32((*uint32)(c.addr(24))) != 0 }

// SetInError sets or clears the abort flag.
func (c *RingConfig) SetInError(v bool) {
	var n uint32
	if v {
		n = 1
	}
	atomic.StoreUint32((*uint32)(c.addr(24)), n)
}

func (c *RingConfig) inErrorAddr() *uint32 { return (*uint32)(c.addr(24)) }

// StateWord is a non-owning view over host_state or guest_state.
type StateWord struct {
	mem []byte // stateWordSize bytes
}

func (s *StateWord) addr() *uint32 { return (*uint32)(unsafe.Pointer(&s.mem[0])) }

// Load reads the state word with acquire semantics.
func (s *StateWord) Load() HostState { return HostState(atomic.LoadUint32(s.addr())) }

// Store publishes the state word with release semantics.
func (s *StateWord) Store(v HostState) { atomic.StoreUint32(s.addr(), uint32(v)) }

// Context is the set of typed, non-owning views bound once over a shared
// byte region: the four SPSC rings, the configuration block, the two state
// words, and the large-xfer data buffer. It has no behavior of its own
// beyond construction and a read-only diagnostic snapshot; Producer and
// Consumer are built from its views and drive the protocol.
type Context struct {
	region []byte

	ToHostRing       *Ring
	FromHostRing     *Ring
	ToHostLargeRing  *Ring
	FromHostLargeRing *Ring

	Config *RingConfig

	HostState  *StateWord
	GuestState *StateWord

	xferBuffer []byte
}

// NewContext binds a Context onto region, which must be at least
// layout.Size() bytes. region is expected to have arrived zeroed (per the
// lifecycle note: an external collaborator allocates and zeroes R before
// either side touches it).
func NewContext(region []byte, layout Layout) (*Context, error) {
	if err := layout.validate(); err != nil {
		return nil, err
	}
	need := layout.Size()
	if uintptr(len(region)) < need {
		return nil, fmt.Errorf("ringproto: region has %d bytes, need %d: %w", len(region), need, ErrRegionTooSmall)
	}
	o := layout.compute()

	c := &Context{region: region}
	c.ToHostRing = bindRing(region[o.toHostRingOff:o.fromHostRingOff], layout.SmallRingCapacity)
	c.FromHostRing = bindRing(region[o.fromHostRingOff:o.toHostLargeOff], layout.SmallRingCapacity)
	c.ToHostLargeRing = bindRing(region[o.toHostLargeOff:o.fromHostLargeOff], layout.LargeRingCapacity)
	c.FromHostLargeRing = bindRing(region[o.fromHostLargeOff:o.ringConfigOff], layout.LargeRingCapacity)
	c.Config = &RingConfig{mem: region[o.ringConfigOff:o.hostStateOff]}
	c.HostState = &StateWord{mem: region[o.hostStateOff:o.guestStateOff]}
	c.GuestState = &StateWord{mem: region[o.guestStateOff:o.xferBufferOff]}
	c.xferBuffer = region[o.xferBufferOff:need]
	return c, nil
}

// XferBuffer returns the raw large-xfer data buffer backing both the type-1
// descriptor offsets and the type-3 sequential rings.
func (c *Context) XferBuffer() []byte { return c.xferBuffer }

// RegionSnapshot is a read-only diagnostic view of ring occupancy, useful
// for spotting a producer and consumer each blocked waiting on the other's
// ring (a "dueling full buffers" deadlock).
type RegionSnapshot struct {
	ToHostAvailRead        uint32
	FromHostAvailRead      uint32
	ToHostLargeAvailRead   uint32
	FromHostLargeAvailRead uint32
	TransferMode           TransferMode
	TransferSize           uint32
	HostState              HostState
	GuestState             HostState
}

// DebugState returns a point-in-time snapshot of the region's rings and
// state words, for diagnostics only; it is not part of the protocol.
func (c *Context) DebugState() RegionSnapshot {
	return RegionSnapshot{
		ToHostAvailRead:        c.ToHostRing.AvailableRead(),
		FromHostAvailRead:      c.FromHostRing.AvailableRead(),
		ToHostLargeAvailRead:   c.ToHostLargeRing.AvailableRead(),
		FromHostLargeAvailRead: c.FromHostLargeRing.AvailableRead(),
		TransferMode:           c.Config.TransferMode(),
		TransferSize:           c.Config.TransferSize(),
		HostState:              c.HostState.Load(),
		GuestState:             c.GuestState.Load(),
	}
}

// DiagnoseDuelingBuffers reports true if a to_host ring (small or large) and
// a from_host ring (small or large) are both full. It looks only at ring
// occupancy, not at the state words: a classic symptom of two SPSC rings
// that have both filled with neither side able to drain, usually the result
// of a consumer that has stopped calling ReadRaw.
func (c *Context) DiagnoseDuelingBuffers() bool {
	s := c.DebugState()
	toHostFull := s.ToHostAvailRead == c.ToHostRing.Capacity() || s.ToHostLargeAvailRead == c.ToHostLargeRing.Capacity()
	fromHostFull := s.FromHostAvailRead == c.FromHostRing.Capacity() || s.FromHostLargeAvailRead == c.FromHostLargeRing.Capacity()
	return toHostFull && fromHostFull
}
