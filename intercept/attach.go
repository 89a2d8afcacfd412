// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package intercept

import (
	"fmt"

	"github.com/bureau-foundation/pipespy/lib/capture"
	"github.com/bureau-foundation/pipespy/lib/clock"
	"github.com/bureau-foundation/pipespy/lib/config"
	"github.com/bureau-foundation/pipespy/lib/hook"
	"github.com/bureau-foundation/pipespy/lib/logsink"
	"github.com/bureau-foundation/pipespy/lib/process"
)

// fatal is the process terminator used by Attach. Tests replace it.
var fatal = process.Terminate

// Attach is the hosting module's process-attach entry point. It loads
// configuration for the module at modulePath, opens the log and
// capture sinks, and installs every hook. Any failure terminates the
// process with "Initialization error: ...".
func Attach(modulePath string, engine hook.Engine, abi hook.ABI) *Controller {
	cfg, err := config.ForModule(modulePath)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fatal("Initialization error: " + err.Error())
		return nil
	}
	controller, err := New(cfg, engine, abi)
	if err != nil {
		fatal("Initialization error: " + err.Error())
		return nil
	}
	controller.MustStart(modulePath)
	return controller
}

// Detach is the process-detach entry point. A nil controller is
// ignored.
func Detach(controller *Controller) {
	if controller == nil {
		return
	}
	controller.Stop()
}

// New opens the sinks named by cfg and builds a controller over them.
// cfg must already be validated.
func New(cfg *config.Config, engine hook.Engine, abi hook.ABI) (*Controller, error) {
	level, err := logsink.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	format, err := logsink.ParseFormat(cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	interval, err := cfg.PollEvery()
	if err != nil {
		return nil, err
	}
	compression, err := capture.ParseCompression(cfg.Capture.Compression)
	if err != nil {
		return nil, fmt.Errorf("capture.compression: %w", err)
	}

	logSink, err := logsink.Open(cfg.Log.Path)
	if err != nil {
		return nil, err
	}

	controllerConfig := ControllerConfig{
		Engine:          engine,
		ABI:             abi,
		Logger:          logsink.NewLogger(logSink, level, format),
		Clock:           clock.Real(),
		PollInterval:    interval,
		Module:          cfg.Hooks.Module,
		DuplicateHandle: cfg.Hooks.DuplicateHandle,
		Fatal:           fatal,
	}

	if cfg.Capture.Path != "" {
		writer, err := capture.Create(cfg.Capture.Path, capture.Options{
			Compression: compression,
			MaxPayload:  cfg.Capture.MaxPayload,
		})
		if err != nil {
			logSink.Close()
			return nil, err
		}
		controllerConfig.Recorder = writer
		controllerConfig.Sinks = append(controllerConfig.Sinks, writer)
	}
	controllerConfig.Sinks = append(controllerConfig.Sinks, logSink)

	controller, err := NewController(controllerConfig)
	if err != nil {
		for _, sink := range controllerConfig.Sinks {
			sink.Close()
		}
		return nil, err
	}
	return controller, nil
}
