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

import "errors"

var (
	// ErrRegionTooSmall is returned by NewContext when the supplied region
	// cannot hold the requested Layout.
	ErrRegionTooSmall = errors.New("ringproto: region too small for requested layout")

	// ErrCapacityNotPowerOfTwo is returned by NewContext when a ring
	// capacity in the Layout is not a power of two.
	ErrCapacityNotPowerOfTwo = errors.New("ringproto: ring capacity must be a power of two")

	// ErrRemoteExit is returned by producer-side calls once host_state is
	// observed as EXIT. The call returns the count already sent; the
	// remainder is abandoned. Non-fatal: the caller may still drain whatever
	// was already queued on the other side.
	ErrRemoteExit = errors.New("ringproto: remote side signaled exit")

	// ErrAllocTooLarge is returned by Producer.AllocBuffer when the
	// requested reservation cannot ever fit in the large-xfer data buffer.
	ErrAllocTooLarge = errors.New("ringproto: allocation exceeds xfer buffer capacity")

	// ErrCommitExceedsAlloc is returned by Producer.CommitBuffer when n is
	// larger than the most recent AllocBuffer reservation.
	ErrCommitExceedsAlloc = errors.New("ringproto: commit exceeds outstanding reservation")

	// ErrProtocolViolation marks a fatal, unrecoverable consumer-side
	// observation: the small ring carried data while transfer_mode claimed
	// an in-progress large transfer, or transfer_mode held a value outside
	// {1,2,3}. The consumer sets should_exit and subsequent ReadRaw calls
	// return (0, true).
	ErrProtocolViolation = errors.New("ringproto: protocol violation on small ring")
)
