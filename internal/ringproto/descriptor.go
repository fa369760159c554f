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

import "encoding/binary"

// descriptorSize is sizeof({offset: u32, size: u32}) on the wire.
const descriptorSize = 8

// MaxType1PayloadSize is the largest payload that travels as a single
// type-1 descriptor. Larger writes announce a type-3 large transfer
// instead. Not pinned by the protocol this package implements. It is larger
// than MinXferBufferSize, so with a minimum-size xfer buffer every write that
// AllocBuffer accepts travels as type-1 and the type-3 path is never taken.
const MaxType1PayloadSize = 16384

// descriptor is the small ring's fixed-size record: a byte range inside the
// large-xfer data buffer.
type descriptor struct {
	offset uint32
	size   uint32
}

// putDescriptor encodes d into buf (which must be at least descriptorSize
// bytes) using little-endian byte order, matching the bit-exact layout
// required of the shared region.
func putDescriptor(buf []byte, d descriptor) {
	binary.LittleEndian.PutUint32(buf[0:4], d.offset)
	binary.LittleEndian.PutUint32(buf[4:8], d.size)
}

// getDescriptor decodes a descriptor from buf.
func getDescriptor(buf []byte) descriptor {
	return descriptor{
		offset: binary.LittleEndian.Uint32(buf[0:4]),
		size:   binary.LittleEndian.Uint32(buf[4:8]),
	}
}
