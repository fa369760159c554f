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

// Command ringbench exercises one producer/consumer pair over a real
// mmap'd region and reports throughput and the packet:doorbell ratio, as a
// repeatable capacity benchmark.
package main

import (
	"flag"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/741g/address-space-graphics-ring-protocol/internal/ringproto"
	"github.com/741g/address-space-graphics-ring-protocol/internal/shmregion"
)

func main() {
	configPath := flag.String("config", "", "optional TOML config file")
	endpoint := flag.String("endpoint", "", "optional shm://name?small=..&large=..&xfer=.. overriding the config's name and ring sizes")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ringbench: load config: %v\n", err)
		os.Exit(1)
	}
	if *endpoint != "" {
		ep, err := ringproto.ParseEndpoint(*endpoint)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ringbench: parse endpoint: %v\n", err)
			os.Exit(1)
		}
		cfg.Name = ep.Name
		cfg.SmallRingCapacity = ep.Layout.SmallRingCapacity
		cfg.LargeRingCapacity = ep.Layout.LargeRingCapacity
		cfg.XferBufferSize = ep.Layout.XferBufferSize
	}

	zl, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ringbench: init logger: %v\n", err)
		os.Exit(1)
	}
	defer zl.Sync()
	sugar := zl.Sugar()
	logger := newAggregatingLogger(sugar)

	if err := run(cfg, sugar, logger); err != nil {
		sugar.Fatalf("ringbench: %v", err)
	}
}

func run(cfg Config, sugar *zap.SugaredLogger, logger *aggregatingLogger) error {
	layout := ringproto.Layout{
		SmallRingCapacity: cfg.SmallRingCapacity,
		LargeRingCapacity: cfg.LargeRingCapacity,
		XferBufferSize:    cfg.XferBufferSize,
	}

	if shmregion.Exists(cfg.Name) {
		if err := shmregion.Remove(cfg.Name); err != nil {
			return fmt.Errorf("remove stale region: %w", err)
		}
	}
	region, err := shmregion.Create(cfg.Name, layout)
	if err != nil {
		return fmt.Errorf("create region: %w", err)
	}
	defer region.Close()
	defer shmregion.Remove(cfg.Name)

	var doorbellCount atomic.Uint64
	waiter := ringproto.NewChannelWaiter()
	doorbell := ringproto.Doorbell(func() {
		doorbellCount.Add(1)
		waiter.Doorbell()
	})

	producer := ringproto.NewClientProducer(region.Context, doorbell, logger)
	consumer := ringproto.NewServerConsumer(region.Context, waiter.Wait, logger)
	consumer.MaxSpins = cfg.MaxSpins

	done := make(chan error, 1)
	go func() {
		payload := make([]byte, cfg.PacketSize)
		for i := range payload {
			payload[i] = 0xff
		}
		for i := 0; i < cfg.PacketCount; i++ {
			if _, err := producer.WriteFully(payload); err != nil {
				done <- fmt.Errorf("packet %d: %w", i, err)
				return
			}
		}
		done <- nil
	}()

	start := time.Now()
	received := 0
	dst := make([]byte, cfg.PacketSize)
	for received < cfg.PacketCount*cfg.PacketSize {
		n, exit := consumer.ReadRaw(dst)
		if exit {
			break
		}
		received += n
	}
	elapsed := time.Since(start)

	if err := <-done; err != nil {
		return err
	}

	sent, spins := producer.Stats()
	totalRecv, xmits := consumer.Stats()

	ratio := float64(0)
	if doorbellCount.Load() > 0 {
		ratio = float64(cfg.PacketCount) / float64(doorbellCount.Load())
	}

	sugar.Infow("ringbench complete",
		"elapsed", elapsed,
		"bytes_sent", sent,
		"bytes_received", totalRecv,
		"xmits", xmits,
		"backoff_spins", spins,
		"doorbells", doorbellCount.Load(),
		"packet_doorbell_ratio", ratio,
	)
	return nil
}
