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
	"bytes"
	"testing"
)

func TestStreamDuplexRoundTrip(t *testing.T) {
	ctx := newTestContext(t, Layout{SmallRingCapacity: 4096, LargeRingCapacity: 4096, XferBufferSize: 4096})

	clientWaiter := NewChannelWaiter()
	serverWaiter := NewChannelWaiter()

	client := NewClientStream(ctx, serverWaiter.Doorbell, clientWaiter.Wait, nil)
	server := NewServerStream(ctx, clientWaiter.Doorbell, serverWaiter.Wait, nil)

	request := []byte("ping")
	if _, err := client.WriteFully(request); err != nil {
		t.Fatalf("client.WriteFully() error = %v", err)
	}

	dst := make([]byte, len(request))
	got := 0
	for got < len(request) {
		n, done := server.ReadRaw(dst[got:])
		if done {
			t.Fatalf("server.ReadRaw() terminated early after %d of %d bytes", got, len(request))
		}
		got += n
	}
	if !bytes.Equal(dst, request) {
		t.Fatalf("server received %q, want %q", dst, request)
	}

	reply := []byte("pong")
	if _, err := server.WriteFully(reply); err != nil {
		t.Fatalf("server.WriteFully() error = %v", err)
	}

	echo := make([]byte, len(reply))
	got = 0
	for got < len(reply) {
		n, done := client.ReadRaw(echo[got:])
		if done {
			t.Fatalf("client.ReadRaw() terminated early after %d of %d bytes", got, len(reply))
		}
		got += n
	}
	if !bytes.Equal(echo, reply) {
		t.Fatalf("client received %q, want %q", echo, reply)
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := client.WriteFully(request); err != ErrStreamClosed {
		t.Fatalf("WriteFully() after Close() error = %v, want ErrStreamClosed", err)
	}
	if n, done := client.ReadRaw(dst); n != 0 || !done {
		t.Fatalf("ReadRaw() after Close() = (%d, %v), want (0, true)", n, done)
	}

	if client.Context() != ctx {
		t.Fatalf("Context() returned a different Context than the one Stream was built with")
	}
}
