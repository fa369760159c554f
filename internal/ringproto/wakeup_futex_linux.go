//go:build linux && (amd64 || arm64)

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
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	futexWaitFlag = 0 // FUTEX_WAIT, no PRIVATE flag: addr lives in a shared mapping
	futexWakeFlag = 1 // FUTEX_WAKE, no PRIVATE flag
)

// FutexWaiter is a cross-process Doorbell/UnavailableReadFunc pair backed by
// a 32-bit word inside the shared region itself. Unlike ChannelWaiter it
// requires no process-local state: Doorbell and Wait both operate directly
// on addr, so any number of processes holding the same mapping can
// construct their own FutexWaiter over the same word and rendezvous
// correctly.
type FutexWaiter struct {
	addr     *uint32
	shutdown *uint32
}

// NewFutexWaiter constructs a FutexWaiter over word, a pointer into the
// shared region reserved for this purpose, and shutdown, a second shared
// word used only to latch a terminal shutdown observed by either side.
// Both must be zeroed by the region's allocator before either side uses
// them.
func NewFutexWaiter(word, shutdown *uint32) *FutexWaiter {
	return &FutexWaiter{addr: word, shutdown: shutdown}
}

// Doorbell increments the shared word and wakes every waiter currently
// parked on it. Spurious extra wakes are harmless; Wait re-validates.
func (f *FutexWaiter) Doorbell() {
	atomic.AddUint32(f.addr, 1)
	futexWake(f.addr, 1<<30)
}

// Wait blocks until Doorbell changes the shared word's value, or Shutdown
// has been called. It satisfies UnavailableReadFunc.
func (f *FutexWaiter) Wait() int {
	if atomic.LoadUint32(f.shutdown) != 0 {
		return -1
	}
	before := atomic.LoadUint32(f.addr)
	futexWait(f.addr, before)
	if atomic.LoadUint32(f.shutdown) != 0 {
		return -1
	}
	return 0
}

// Shutdown latches the shared shutdown word and wakes every waiter parked
// on the doorbell word so Wait can observe it.
func (f *FutexWaiter) Shutdown() {
	atomic.StoreUint32(f.shutdown, 1)
	futexWake(f.addr, 1<<30)
}

// futexWait parks the calling goroutine until the value at addr changes
// from val or a wake arrives, per the Linux futex(2) FUTEX_WAIT contract.
// Spurious wakeups are possible; callers must re-check their own condition
// after this returns.
func futexWait(addr *uint32, val uint32) {
	if atomic.LoadUint32(addr) != val {
		return
	}
	unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		uintptr(futexWaitFlag),
		uintptr(val),
		0,
		0,
		0,
	)
}

// futexWake wakes up to n waiters parked on addr.
func futexWake(addr *uint32, n int) {
	unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		uintptr(futexWakeFlag),
		uintptr(n),
		0,
		0,
		0,
	)
}
