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

package main

import "github.com/BurntSushi/toml"

// Config is the ringbench CLI's tunable knob set, loadable from an optional
// TOML file so a benchmark run can be scripted without recompiling.
type Config struct {
	Name              string `toml:"name"`
	SmallRingCapacity uint32 `toml:"small_ring_capacity"`
	LargeRingCapacity uint32 `toml:"large_ring_capacity"`
	XferBufferSize    uint32 `toml:"xfer_buffer_size"`
	MaxSpins          int    `toml:"max_spins"`
	PacketSize        int    `toml:"packet_size"`
	PacketCount       int    `toml:"packet_count"`
}

func defaultConfig() Config {
	return Config{
		Name:              "ringbench",
		SmallRingCapacity: 16384,
		LargeRingCapacity: 16384,
		XferBufferSize:    1 << 20,
		MaxSpins:          30,
		PacketSize:        384,
		PacketCount:       1024,
	}
}

func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	_, err := toml.DecodeFile(path, &cfg)
	return cfg, err
}
