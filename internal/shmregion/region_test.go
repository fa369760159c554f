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

package shmregion

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/741g/address-space-graphics-ring-protocol/internal/ringproto"
)

// createTestRegion creates a region with a unique name and registers cleanup
// with t.Cleanup, so a failing test never leaks a file under /dev/shm.
func createTestRegion(t *testing.T, layout ringproto.Layout) (*Region, string) {
	t.Helper()

	name := fmt.Sprintf("%s-%d", t.Name(), time.Now().UnixNano())
	Remove(name) // best-effort: a prior failed run may have left this behind

	region, err := Create(name, layout)
	if err != nil {
		t.Fatalf("Create(%q) error = %v", name, err)
	}
	t.Cleanup(func() {
		region.Close()
		Remove(name)
	})
	return region, name
}

func testLayout() ringproto.Layout {
	return ringproto.Layout{SmallRingCapacity: 4096, LargeRingCapacity: 4096, XferBufferSize: 4096}
}

func TestCreateBindsAWorkingContext(t *testing.T) {
	region, _ := createTestRegion(t, testLayout())

	if region.Context == nil {
		t.Fatal("Create() returned a Region with a nil Context")
	}

	waiter := ringproto.NewChannelWaiter()
	producer := ringproto.NewClientProducer(region.Context, waiter.Doorbell, nil)
	consumer := ringproto.NewServerConsumer(region.Context, waiter.Wait, nil)

	payload := []byte("hello from across the region")
	if _, err := producer.WriteFully(payload); err != nil {
		t.Fatalf("WriteFully() error = %v", err)
	}

	dst := make([]byte, len(payload))
	got := 0
	for got < len(payload) {
		n, done := consumer.ReadRaw(dst[got:])
		if done {
			t.Fatalf("ReadRaw() terminated early after %d of %d bytes", got, len(payload))
		}
		got += n
	}
	if string(dst) != string(payload) {
		t.Fatalf("read back %q, want %q", dst, payload)
	}
}

func TestCreateRefusesADuplicateName(t *testing.T) {
	_, name := createTestRegion(t, testLayout())

	if _, err := Create(name, testLayout()); err == nil {
		t.Fatal("Create() with a name already in use should have failed")
	}
}

func TestOpenBindsTheLayoutRecordedAtCreate(t *testing.T) {
	layout := ringproto.Layout{SmallRingCapacity: 8192, LargeRingCapacity: 16384, XferBufferSize: 8192}
	region, name := createTestRegion(t, layout)
	region.Close()

	reopened, err := Open(name)
	if err != nil {
		t.Fatalf("Open(%q) error = %v", name, err)
	}
	defer reopened.Close()

	if got := reopened.Context.ToHostRing.Capacity(); got != layout.SmallRingCapacity {
		t.Fatalf("reopened small ring capacity = %d, want %d", got, layout.SmallRingCapacity)
	}
	if got := reopened.Context.ToHostLargeRing.Capacity(); got != layout.LargeRingCapacity {
		t.Fatalf("reopened large ring capacity = %d, want %d", got, layout.LargeRingCapacity)
	}
	if got := len(reopened.Context.XferBuffer()); got != int(layout.XferBufferSize) {
		t.Fatalf("reopened xfer buffer size = %d, want %d", got, layout.XferBufferSize)
	}
}

func TestOpenRejectsAMissingRegion(t *testing.T) {
	name := fmt.Sprintf("%s-%d-does-not-exist", t.Name(), time.Now().UnixNano())
	if _, err := Open(name); err == nil {
		t.Fatal("Open() of a nonexistent region should have failed")
	}
}

func TestExistsReflectsCreateAndRemove(t *testing.T) {
	name := fmt.Sprintf("%s-%d", t.Name(), time.Now().UnixNano())
	if Exists(name) {
		t.Fatalf("Exists(%q) = true before Create()", name)
	}

	region, err := Create(name, testLayout())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !Exists(name) {
		t.Fatalf("Exists(%q) = false after Create()", name)
	}

	if err := region.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := Remove(name); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if Exists(name) {
		t.Fatalf("Exists(%q) = true after Remove()", name)
	}
}

func TestOpenRejectsACorruptedHeader(t *testing.T) {
	region, name := createTestRegion(t, testLayout())
	region.Close()

	path := segmentPath(name)
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("reopen for corruption error = %v", err)
	}
	if _, err := f.WriteAt([]byte("NOTMAGIC"), 0); err != nil {
		t.Fatalf("WriteAt() error = %v", err)
	}
	f.Close()

	if _, err := Open(name); err == nil {
		t.Fatal("Open() of a region with a corrupted magic should have failed")
	}
}
