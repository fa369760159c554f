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

import "sync/atomic"

// ChannelWaiter is an in-process Doorbell/UnavailableReadFunc pair backed by
// a single-capacity rendezvous channel: the consumer blocks at most once
// per doorbell, and a doorbell rung while nobody is waiting is not lost. It
// is buffered for the next Wait call.
//
// This backend only works within one process: two goroutines sharing the
// same ChannelWaiter value, not two processes sharing only the memory
// region. For genuine cross-process use, see the futex-backed waiter in
// this package's platform files.
type ChannelWaiter struct {
	ring     chan struct{}
	shutdown int32
}

// NewChannelWaiter constructs a ChannelWaiter ready for use.
func NewChannelWaiter() *ChannelWaiter {
	return &ChannelWaiter{ring: make(chan struct{}, 1)}
}

// Doorbell rings the bell. Safe to call from any goroutine, any number of
// times; excess rings before a Wait are coalesced into one pending wake.
func (w *ChannelWaiter) Doorbell() {
	select {
	case w.ring <- struct{}{}:
	default:
	}
}

// Wait blocks until Doorbell is called or Shutdown has been invoked. It
// satisfies UnavailableReadFunc.
func (w *ChannelWaiter) Wait() int {
	if atomic.LoadInt32(&w.shutdown) != 0 {
		return -1
	}
	<-w.ring
	if atomic.LoadInt32(&w.shutdown) != 0 {
		return -1
	}
	return 0
}

// Shutdown causes the current and all future Wait calls to return -1. It is
// idempotent and safe to call concurrently with Wait.
func (w *ChannelWaiter) Shutdown() {
	atomic.StoreInt32(&w.shutdown, 1)
	w.Doorbell()
}
