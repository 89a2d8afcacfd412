// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package intercept

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/pipespy/lib/clock"
	"github.com/bureau-foundation/pipespy/lib/hook"
	"github.com/bureau-foundation/pipespy/lib/process"
	"github.com/bureau-foundation/pipespy/lib/version"
)

// Sink is a diagnostic output the controller releases at Stop.
// *logsink.Sink and *capture.Writer implement it.
type Sink interface {
	Flush() error
	Close() error
}

// ControllerConfig configures a Controller.
type ControllerConfig struct {
	Engine hook.Engine
	ABI    hook.ABI

	// Logger receives every diagnostic record. Required.
	Logger *slog.Logger

	// Clock drives the gate's poll ticker. Defaults to clock.Real().
	Clock clock.Clock

	// PollInterval defaults to DefaultPollInterval.
	PollInterval time.Duration

	// Module is the module whose exports are patched.
	Module string

	// DuplicateHandle installs the DuplicateHandle hook after the
	// default set.
	DuplicateHandle bool

	// Recorder receives pipe transfers. Optional.
	Recorder Recorder

	// Sinks are closed by Stop in order. Put the log sink last so
	// the shutdown record reaches it.
	Sinks []Sink

	// Fatal terminates the process with message. Defaults to writing
	// message to stderr and exiting with status 1.
	Fatal func(message string)
}

// Controller owns the interceptor's state for the life of one
// attachment: created at attach, stopped at detach.
type Controller struct {
	engine          hook.Engine
	abi             hook.ABI
	logger          *slog.Logger
	module          string
	duplicateHandle bool
	sinks           []Sink
	fatal           func(message string)

	gate        *Gate
	registry    *Registry
	interceptor *Interceptor

	mutex   sync.Mutex
	started bool
	stopped bool
	stopErr error
}

// NewController validates config and assembles the gate, registry and
// interceptor. Nothing is installed until Start.
func NewController(config ControllerConfig) (*Controller, error) {
	if config.Engine == nil {
		return nil, errors.New("engine is required")
	}
	if config.ABI == nil {
		return nil, errors.New("ABI is required")
	}
	if config.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if config.Module == "" {
		return nil, errors.New("module is required")
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Fatal == nil {
		config.Fatal = process.Terminate
	}

	gate := NewGate(config.Engine, config.Clock, config.PollInterval, config.Logger)
	registry := NewRegistry()
	interceptor := NewInterceptor(InterceptorConfig{
		Gate:     gate,
		Registry: registry,
		Caller:   config.ABI,
		Logger:   config.Logger,
		Recorder: config.Recorder,
	})
	return &Controller{
		engine:          config.Engine,
		abi:             config.ABI,
		logger:          config.Logger,
		module:          config.Module,
		duplicateHandle: config.DuplicateHandle,
		sinks:           config.Sinks,
		fatal:           config.Fatal,
		gate:            gate,
		registry:        registry,
		interceptor:     interceptor,
	}, nil
}

// Registry returns the handle registry.
func (controller *Controller) Registry() *Registry { return controller.registry }

// Interceptor returns the replacement bodies.
func (controller *Controller) Interceptor() *Interceptor { return controller.interceptor }

// Symbols returns the symbols Start installs, in order.
func (controller *Controller) Symbols() []hook.Symbol {
	symbols := append([]hook.Symbol(nil), hook.InstallOrder...)
	if controller.duplicateHandle {
		symbols = append(symbols, hook.DuplicateHandle)
	}
	return symbols
}

// Start logs the startup banner and installs every hook in order. It
// stops at the first failure; hooks installed before it stay
// installed. hostModule identifies the module hosting the interceptor
// and is only logged.
func (controller *Controller) Start(hostModule string) error {
	controller.mutex.Lock()
	if controller.started {
		controller.mutex.Unlock()
		return errors.New("controller already started")
	}
	controller.started = true
	controller.mutex.Unlock()

	controller.logger.Info(version.Product+" v"+version.Short(),
		"version", version.Info(),
		"host_module", hostModule,
		"target_module", controller.module,
		"duplicate_handle", controller.duplicateHandle,
	)

	for _, symbol := range controller.Symbols() {
		if err := controller.install(symbol); err != nil {
			return err
		}
		controller.logger.Debug("hook installed", "symbol", symbol.String())
	}
	return nil
}

func (controller *Controller) install(symbol hook.Symbol) error {
	entry, err := controller.abi.Export(symbol, controller.interceptor)
	if err != nil {
		return fmt.Errorf("exporting %s: %w", symbol, err)
	}
	if err := controller.engine.Detour(controller.module, symbol, entry); err != nil {
		return fmt.Errorf("hooking %s in %s: %w", symbol, controller.module, err)
	}
	controller.gate.MarkInstalled(symbol)
	return nil
}

// MustStart calls Start and terminates the process through Fatal if it
// fails. The error is logged and the sinks flushed first.
func (controller *Controller) MustStart(hostModule string) {
	err := controller.Start(hostModule)
	if err == nil {
		return
	}
	message := "Initialization error: " + err.Error()
	controller.logger.Error(message)
	for _, sink := range controller.sinks {
		sink.Flush()
	}
	controller.fatal(message)
}

// Stop logs the final counters and closes the sinks. Hooks stay
// installed: bodies keep forwarding after Stop, with their log and
// capture output dropped. Stop is idempotent and returns the first
// call's result.
func (controller *Controller) Stop() error {
	controller.mutex.Lock()
	defer controller.mutex.Unlock()
	if controller.stopped {
		return controller.stopErr
	}
	controller.stopped = true

	stats := controller.interceptor.Stats()
	snapshot := controller.registry.Snapshot()
	controller.logger.Info("shutting down",
		"observations", stats.Observations,
		"observation_failures", stats.Failures,
		"propagations", stats.Propagations,
		"read_handles", len(snapshot.Read),
		"write_handles", len(snapshot.Write),
	)

	var errs []error
	for _, sink := range controller.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	controller.stopErr = errors.Join(errs...)
	return controller.stopErr
}
