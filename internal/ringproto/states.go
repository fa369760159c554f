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

// HostState is the observable value of the host_state / guest_state hint
// words. It carries no ordering guarantee beyond its own acquire/release
// discipline; a lost transition is recovered by the consumer's bounded spin
// before it blocks on the unavailable-read callback.
type HostState uint32

const (
	// StateRendering is the default/idle value: the host is busy and has
	// not announced that it is ready to consume.
	StateRendering HostState = 0

	// StateCanConsume is published by the consumer at the top of every
	// ReadRaw call. The producer suppresses its doorbell when it observes
	// this value, since the consumer is already spinning.
	StateCanConsume HostState = 1

	// StateExit is the terminal value. The producer observes it in its
	// write-wait loop and abandons the remainder of the current send.
	StateExit HostState = 2
)

func (s HostState) String() string {
	switch s {
	case StateRendering:
		return "RENDERING"
	case StateCanConsume:
		return "CAN_CONSUME"
	case StateExit:
		return "EXIT"
	default:
		return "UNKNOWN"
	}
}

// TransferMode selects the descriptor family currently active on a
// small-command ring.
type TransferMode uint32

const (
	// TransferModeType1 carries {offset,size} descriptors pointing into the
	// shared large-xfer data buffer.
	TransferModeType1 TransferMode = 1

	// TransferModeReserved is sketched but disabled in this core: a
	// small-ring byte count under this mode makes no progress.
	TransferModeReserved TransferMode = 2

	// TransferModeType3 must be paired with an empty small ring and a
	// non-zero TransferSize; the payload rides the large-transfer ring
	// instead of a descriptor.
	TransferModeType3 TransferMode = 3
)

func (m TransferMode) String() string {
	switch m {
	case TransferModeType1:
		return "TYPE1"
	case TransferModeReserved:
		return "RESERVED"
	case TransferModeType3:
		return "TYPE3"
	default:
		return "INVALID"
	}
}
