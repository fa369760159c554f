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
	"net/url"
	"strconv"
)

// Endpoint is a parsed shm:// address naming a region and the Layout to
// bind over it.
type Endpoint struct {
	Name   string
	Layout Layout
}

// defaultEndpointLayout uses MinXferBufferSize for all three sizes: both
// ring capacities and the xfer buffer.
var defaultEndpointLayout = Layout{
	SmallRingCapacity: MinXferBufferSize,
	LargeRingCapacity: MinXferBufferSize,
	XferBufferSize:    MinXferBufferSize,
}

// ParseEndpoint parses URLs of the form
// shm://name?small=4096&large=65536&xfer=1048576, defaulting any omitted
// query parameter. Only small/large ring capacities and the xfer buffer
// size are accepted; all three must be powers of two.
func ParseEndpoint(raw string) (Endpoint, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, fmt.Errorf("ringproto: parse endpoint: %w", err)
	}
	if u.Scheme != "shm" {
		return Endpoint{}, fmt.Errorf("ringproto: unsupported scheme %q", u.Scheme)
	}
	name := u.Host
	if name == "" {
		name = u.Path
		if len(name) > 0 && name[0] == '/' {
			name = name[1:]
		}
	}
	if name == "" {
		return Endpoint{}, fmt.Errorf("ringproto: missing shm name in %q", raw)
	}

	layout := defaultEndpointLayout
	q := u.Query()
	if err := parseSizeParam(q, "small", &layout.SmallRingCapacity); err != nil {
		return Endpoint{}, err
	}
	if err := parseSizeParam(q, "large", &layout.LargeRingCapacity); err != nil {
		return Endpoint{}, err
	}
	if err := parseSizeParam(q, "xfer", &layout.XferBufferSize); err != nil {
		return Endpoint{}, err
	}
	if err := layout.validate(); err != nil {
		return Endpoint{}, err
	}
	return Endpoint{Name: name, Layout: layout}, nil
}

func parseSizeParam(q url.Values, key string, out *uint32) error {
	v := q.Get(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return fmt.Errorf("ringproto: invalid %s=%q: %w", key, v, err)
	}
	if !isPowerOfTwo(uint32(n)) {
		return fmt.Errorf("ringproto: %s=%d must be a power of two: %w", key, n, ErrCapacityNotPowerOfTwo)
	}
	*out = uint32(n)
	return nil
}
