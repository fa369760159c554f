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

// Package shmregion allocates and maps the file-backed shared-memory region
// that an internal/ringproto Context binds against. It is the "external
// collaborator" the protocol core assumes but deliberately does not
// implement: region allocation, zeroing, and mapping are out of the
// protocol's own scope.
package shmregion

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/741g/address-space-graphics-ring-protocol/internal/ringproto"
)

const (
	headerMagic   = "ASGRP\x00\x00\x00"
	headerVersion = uint32(1)
	headerSize    = 64
)

// header is the fixed prefix written ahead of the ringproto region proper,
// giving Open enough information to validate a file before binding a
// Context onto it: magic, version, then the sizes needed to recompute the
// expected total size.
type header struct {
	magic   [8]byte
	version uint32
	small   uint32
	large   uint32
	xfer    uint32
}

func (h header) encode() []byte {
	buf := make([]byte, headerSize)
	copy(buf[0:8], h.magic[:])
	binary.LittleEndian.PutUint32(buf[8:12], h.version)
	binary.LittleEndian.PutUint32(buf[12:16], h.small)
	binary.LittleEndian.PutUint32(buf[16:20], h.large)
	binary.LittleEndian.PutUint32(buf[20:24], h.xfer)
	return buf
}

func decodeHeader(buf []byte) (header, error) {
	var h header
	if len(buf) < headerSize {
		return h, fmt.Errorf("shmregion: file too small to hold header")
	}
	copy(h.magic[:], buf[0:8])
	if string(h.magic[:]) != headerMagic {
		return h, fmt.Errorf("shmregion: bad magic %q", h.magic)
	}
	h.version = binary.LittleEndian.Uint32(buf[8:12])
	if h.version != headerVersion {
		return h, fmt.Errorf("shmregion: unsupported version %d", h.version)
	}
	h.small = binary.LittleEndian.Uint32(buf[12:16])
	h.large = binary.LittleEndian.Uint32(buf[16:20])
	h.xfer = binary.LittleEndian.Uint32(buf[20:24])
	return h, nil
}

func (h header) layout() ringproto.Layout {
	return ringproto.Layout{SmallRingCapacity: h.small, LargeRingCapacity: h.large, XferBufferSize: h.xfer}
}

// Region is a mapped, file-backed byte region plus the ringproto.Context
// bound over its data portion (everything after the shmregion header).
type Region struct {
	file *os.File
	mem  []byte
	path string

	Context *ringproto.Context
}

func segmentPath(name string) string {
	dir := "/dev/shm"
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "asgrp_"+name)
}

// Create allocates a new region file sized for layout, zeroes and maps it,
// writes the header, and binds a Context over it. It fails if a region of
// the same name already exists.
func Create(name string, layout ringproto.Layout) (*Region, error) {
	path := segmentPath(name)
	total := headerSize + int(layout.Size())

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("shmregion: create %s: %w", path, err)
	}
	cleanup := func() {
		file.Close()
		os.Remove(path)
	}
	if err := file.Truncate(int64(total)); err != nil {
		cleanup()
		return nil, fmt.Errorf("shmregion: resize %s: %w", path, err)
	}

	mem, err := mapFile(file, total)
	if err != nil {
		cleanup()
		return nil, err
	}

	h := header{version: headerVersion, small: layout.SmallRingCapacity, large: layout.LargeRingCapacity, xfer: layout.XferBufferSize}
	copy(h.magic[:], headerMagic)
	copy(mem[:headerSize], h.encode())

	ctx, err := ringproto.NewContext(mem[headerSize:], layout)
	if err != nil {
		unmapFile(mem)
		cleanup()
		return nil, err
	}

	return &Region{file: file, mem: mem, path: path, Context: ctx}, nil
}

// Open maps an existing region file, validates its header, and binds a
// Context over it using the layout recorded at Create time.
func Open(name string) (*Region, error) {
	path := segmentPath(name)
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("shmregion: open %s: %w", path, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("shmregion: stat %s: %w", path, err)
	}
	if info.Size() < headerSize {
		file.Close()
		return nil, fmt.Errorf("shmregion: %s too small for a header", path)
	}

	mem, err := mapFile(file, int(info.Size()))
	if err != nil {
		file.Close()
		return nil, err
	}

	h, err := decodeHeader(mem[:headerSize])
	if err != nil {
		unmapFile(mem)
		file.Close()
		return nil, err
	}

	layout := h.layout()
	if uintptr(len(mem)) < headerSize+layout.Size() {
		unmapFile(mem)
		file.Close()
		return nil, fmt.Errorf("shmregion: %s truncated relative to its own header", path)
	}

	ctx, err := ringproto.NewContext(mem[headerSize:], layout)
	if err != nil {
		unmapFile(mem)
		file.Close()
		return nil, err
	}

	return &Region{file: file, mem: mem, path: path, Context: ctx}, nil
}

// Close unmaps the region and closes its backing file descriptor. It does
// not remove the file; call Remove separately once both sides are done.
func (r *Region) Close() error {
	err := unmapFile(r.mem)
	if cerr := r.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// Remove deletes the backing file for name. The side that created it (via
// Create) is the expected caller: the creator owns the unlink.
func Remove(name string) error {
	return os.Remove(segmentPath(name))
}

// Exists reports whether a region file for name is present.
func Exists(name string) bool {
	_, err := os.Stat(segmentPath(name))
	return err == nil
}
