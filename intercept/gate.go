// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package intercept

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/pipespy/lib/clock"
	"github.com/bureau-foundation/pipespy/lib/hook"
	"github.com/bureau-foundation/pipespy/lib/logsink"
)

// DefaultPollInterval is how often a blocked gate re-checks the
// engine when no completion signal arrives.
const DefaultPollInterval = 10 * time.Millisecond

// Gate blocks replacement bodies until their hook is installed.
//
// A host thread can enter a replacement body as soon as the engine
// patches the target, which may be before the engine has recorded the
// original entry point. Resolve waits out that window.
type Gate struct {
	engine   hook.Engine
	clock    clock.Clock
	interval time.Duration
	logger   *slog.Logger

	mutex   sync.Mutex
	signals map[hook.Symbol]*installSignal
}

// installSignal is a one-shot completion flag for one symbol.
type installSignal struct {
	done      chan struct{}
	once      sync.Once
	installed atomic.Bool
}

// NewGate returns a gate over engine. A non-positive interval selects
// DefaultPollInterval.
func NewGate(engine hook.Engine, clk clock.Clock, interval time.Duration, logger *slog.Logger) *Gate {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Gate{
		engine:   engine,
		clock:    clk,
		interval: interval,
		logger:   logger,
		signals:  make(map[hook.Symbol]*installSignal),
	}
}

func (gate *Gate) signal(symbol hook.Symbol) *installSignal {
	gate.mutex.Lock()
	defer gate.mutex.Unlock()
	signal, ok := gate.signals[symbol]
	if !ok {
		signal = &installSignal{done: make(chan struct{})}
		gate.signals[symbol] = signal
	}
	return signal
}

// MarkInstalled releases every current and future Resolve of symbol.
// Call it once the engine's Detour has returned successfully.
// Repeated calls are no-ops.
func (gate *Gate) MarkInstalled(symbol hook.Symbol) {
	signal := gate.signal(symbol)
	signal.once.Do(func() {
		signal.installed.Store(true)
		close(signal.done)
	})
}

// Resolve returns the original entry point for symbol, blocking until
// the hook is installed. There is no timeout: a hook that never
// completes blocks its callers forever. Each wait iteration emits a
// trace record naming the symbol.
func (gate *Gate) Resolve(symbol hook.Symbol) uintptr {
	signal := gate.signal(symbol)
	if signal.installed.Load() || gate.engine.IsHooked(symbol) {
		return gate.engine.Original(symbol)
	}

	ticker := gate.clock.NewTicker(gate.interval)
	defer ticker.Stop()
	for {
		gate.logger.Log(context.Background(), logsink.LevelTrace, "waiting for hook installation",
			"symbol", symbol.String())
		select {
		case <-signal.done:
			return gate.engine.Original(symbol)
		case <-ticker.C:
			if gate.engine.IsHooked(symbol) {
				gate.MarkInstalled(symbol)
				return gate.engine.Original(symbol)
			}
		}
	}
}
