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

import (
	"sync"

	"github.com/eapache/queue"
	"go.uber.org/zap"
)

// backoffLogSampleCap bounds how many GuestSlowness warnings are buffered:
// when the queue reaches this length one summary line is logged and the
// queue is emptied, so a producer stuck spinning cannot grow this
// aggregator without bound.
const backoffLogSampleCap = 32

// aggregatingLogger buffers GuestSlowness warnings in a bounded queue and
// flushes a single summary line instead of logging on every spin-overflow
// event, the way a real embedding of this protocol would want to avoid
// flooding its log during a slow consumer.
type aggregatingLogger struct {
	mu     sync.Mutex
	sugar  *zap.SugaredLogger
	recent *queue.Queue
}

func newAggregatingLogger(sugar *zap.SugaredLogger) *aggregatingLogger {
	return &aggregatingLogger{sugar: sugar, recent: queue.New()}
}

func (l *aggregatingLogger) Warnf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.recent.Add(struct{}{})
	for l.recent.Length() > backoffLogSampleCap {
		l.recent.Remove()
	}
	if l.recent.Length() == backoffLogSampleCap {
		l.sugar.Warnf("ringbench: %d consecutive backoff warnings buffered, consumer may be stalled", l.recent.Length())
		for l.recent.Length() > 0 {
			l.recent.Remove()
		}
	}
}
