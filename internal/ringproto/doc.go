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

// Package ringproto implements a shared-memory, lock-free,
// single-producer/single-consumer byte-stream transport for moving command
// and payload bytes between two cooperating agents that share one contiguous
// memory region.
//
// A Context binds four independent SPSC ring buffers plus a configuration
// block and two state words onto a caller-supplied byte region. A Producer
// turns a stream of writes into small type-1 descriptors or, for larger
// payloads, a type-3 large transfer; a Consumer multiplexes both rings back
// into one ordered byte stream via ReadRaw. Neither side blocks on the other
// except through the doorbell / unavailable-read callback pair supplied at
// construction.
package ringproto
