// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package intercept

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/bureau-foundation/pipespy/lib/capture"
	"github.com/bureau-foundation/pipespy/lib/hook"
	"github.com/bureau-foundation/pipespy/lib/win32"
)

// Recorder receives observed pipe transfers. *capture.Writer
// implements it. Append must not retain record.Data: it aliases the
// host's buffer.
type Recorder interface {
	Append(record capture.Record) error
}

// Stats counts interceptor activity since construction.
type Stats struct {
	// Observations is the number of completed observation steps.
	Observations uint64

	// Failures is the number of observation steps that panicked or
	// whose recorder reported an error. The intercepted calls were
	// unaffected.
	Failures uint64

	// Propagations is the number of duplications that extended a
	// classification to a new handle.
	Propagations uint64
}

// InterceptorConfig holds the collaborators of an Interceptor.
type InterceptorConfig struct {
	Gate     *Gate
	Registry *Registry

	// Caller invokes the original primitives. If it also implements
	// hook.ProcessIdentifier, real handles to the current process
	// count as same-process duplication.
	Caller win32.Caller

	Logger *slog.Logger

	// Recorder is optional.
	Recorder Recorder
}

// Interceptor holds the replacement bodies. It implements hook.Bodies.
// Every body returns exactly what the original primitive returned.
type Interceptor struct {
	gate     *Gate
	registry *Registry
	caller   win32.Caller
	self     func(win32.Handle) bool
	logger   *slog.Logger
	recorder Recorder

	observations atomic.Uint64
	failures     atomic.Uint64
	propagations atomic.Uint64
}

var _ hook.Bodies = (*Interceptor)(nil)

// NewInterceptor returns an interceptor over the given collaborators.
func NewInterceptor(config InterceptorConfig) *Interceptor {
	self := func(process win32.Handle) bool { return process == win32.CurrentProcess }
	if identifier, ok := config.Caller.(hook.ProcessIdentifier); ok {
		self = identifier.IsCurrentProcess
	}
	return &Interceptor{
		gate:     config.Gate,
		registry: config.Registry,
		caller:   config.Caller,
		self:     self,
		logger:   config.Logger,
		recorder: config.Recorder,
	}
}

// Stats returns the current counters.
func (interceptor *Interceptor) Stats() Stats {
	return Stats{
		Observations: interceptor.observations.Load(),
		Failures:     interceptor.failures.Load(),
		Propagations: interceptor.propagations.Load(),
	}
}

// observe runs one observation step. A panic or error inside it is
// counted and discarded so the intercepted call proceeds untouched.
func (interceptor *Interceptor) observe(step func() error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			interceptor.failures.Add(1)
		}
	}()
	if err := step(); err != nil {
		interceptor.failures.Add(1)
		return
	}
	interceptor.observations.Add(1)
}

// record forwards a transfer to the recorder, if any.
func (interceptor *Interceptor) record(operation capture.Operation, handle win32.Handle, requested, transferred int, data []byte, err error) error {
	if interceptor.recorder == nil {
		return nil
	}
	entry := capture.Record{
		Operation:   operation,
		Handle:      uint64(handle),
		Requested:   uint32(requested),
		Transferred: uint32(transferred),
		Data:        data,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	if appendErr := interceptor.recorder.Append(entry); appendErr != nil {
		return fmt.Errorf("recording %s on %s: %w", operation, handle, appendErr)
	}
	return nil
}

// CreatePipe classifies both ends of every pipe the host creates and
// logs every call, failed or not.
func (interceptor *Interceptor) CreatePipe(read, write *win32.Handle, attributes *win32.SecurityAttributes, size uint32) error {
	original := interceptor.gate.Resolve(hook.CreatePipe)
	err := interceptor.caller.CreatePipe(original, read, write, attributes, size)

	if err == nil && read != nil && write != nil {
		interceptor.registry.Classify(Read, *read)
		interceptor.registry.Classify(Write, *write)
	}

	interceptor.observe(func() error {
		attrs := []any{
			"result", err == nil,
			"read", handleValue(read),
			"write", handleValue(write),
			"size", size,
		}
		if err != nil {
			attrs = append(attrs, "error", err)
		}
		interceptor.logger.Info("pipe created", attrs...)
		return nil
	})
	return err
}

// CreateNamedPipeA logs the name of every named pipe server instance.
// Named pipes are not classified.
func (interceptor *Interceptor) CreateNamedPipeA(name *byte, openMode, pipeMode, maxInstances, outSize, inSize, timeout uint32, attributes *win32.SecurityAttributes) (win32.Handle, error) {
	original := interceptor.gate.Resolve(hook.CreateNamedPipeA)
	handle, err := interceptor.caller.CreateNamedPipeA(original, name, openMode, pipeMode, maxInstances, outSize, inSize, timeout, attributes)

	interceptor.observe(func() error {
		interceptor.logNamedPipe(win32.AnsiString(name), handle, err)
		return nil
	})
	return handle, err
}

// CreateNamedPipeW is the UTF-16 variant of CreateNamedPipeA.
func (interceptor *Interceptor) CreateNamedPipeW(name *uint16, openMode, pipeMode, maxInstances, outSize, inSize, timeout uint32, attributes *win32.SecurityAttributes) (win32.Handle, error) {
	original := interceptor.gate.Resolve(hook.CreateNamedPipeW)
	handle, err := interceptor.caller.CreateNamedPipeW(original, name, openMode, pipeMode, maxInstances, outSize, inSize, timeout, attributes)

	interceptor.observe(func() error {
		interceptor.logNamedPipe(win32.WideString(name), handle, err)
		return nil
	})
	return handle, err
}

func (interceptor *Interceptor) logNamedPipe(name string, handle win32.Handle, err error) {
	if err != nil {
		interceptor.logger.Info("named pipe created", "name", name, "result", false, "error", err)
		return
	}
	interceptor.logger.Info("named pipe created", "name", name, "result", true, "handle", handle)
}

// ReadFile logs what the host read from a classified read handle. The
// buffer is only inspected after a successful call, and only the bytes
// the primitive reported as transferred.
func (interceptor *Interceptor) ReadFile(handle win32.Handle, buffer []byte, done *uint32, overlapped *win32.Overlapped) error {
	original := interceptor.gate.Resolve(hook.ReadFile)
	err := interceptor.caller.ReadFile(original, handle, buffer, done, overlapped)

	interceptor.observe(func() error {
		if !interceptor.registry.IsClassified(Read, handle) {
			return nil
		}
		requested := len(buffer)
		switch {
		case errors.Is(err, win32.ErrorIOPending):
			interceptor.logger.Info("pipe read pending", "handle", handle, "size", requested)
			return nil
		case err != nil:
			interceptor.logger.Warn("pipe read failed", "handle", handle, "size", requested, "error", err)
			return interceptor.record(capture.OperationRead, handle, requested, 0, nil, err)
		case done == nil:
			// Overlapped completion without a byte count; the data is
			// not known to be in the buffer yet.
			interceptor.logger.Info("pipe read", "handle", handle, "size", requested)
			return nil
		}
		transferred := min(int(*done), requested)
		data := buffer[:transferred]
		interceptor.logger.Info("pipe read",
			"handle", handle,
			"size", requested,
			"transferred", transferred,
			"data", string(data),
		)
		return interceptor.record(capture.OperationRead, handle, requested, transferred, data, nil)
	})
	return err
}

// WriteFile logs what the host writes to a classified write handle,
// before the write is forwarded.
func (interceptor *Interceptor) WriteFile(handle win32.Handle, buffer []byte, done *uint32, overlapped *win32.Overlapped) error {
	original := interceptor.gate.Resolve(hook.WriteFile)

	classified := false
	interceptor.observe(func() error {
		classified = interceptor.registry.IsClassified(Write, handle)
		if classified {
			interceptor.logger.Debug("pipe write",
				"handle", handle,
				"size", len(buffer),
				"data", string(buffer),
			)
		}
		return nil
	})

	err := interceptor.caller.WriteFile(original, handle, buffer, done, overlapped)

	if classified {
		interceptor.observe(func() error {
			transferred := 0
			if err == nil && done != nil {
				transferred = int(*done)
			}
			if err != nil && !errors.Is(err, win32.ErrorIOPending) {
				interceptor.logger.Warn("pipe write failed", "handle", handle, "size", len(buffer), "error", err)
			}
			return interceptor.record(capture.OperationWrite, handle, len(buffer), transferred, buffer, err)
		})
	}
	return err
}

// DuplicateHandle extends classification to duplicates made within
// the current process. Cross-process duplicates are logged but not
// classified: the target value names a handle in another handle
// table.
func (interceptor *Interceptor) DuplicateHandle(sourceProcess, source, targetProcess win32.Handle, target *win32.Handle, access uint32, inherit bool, options uint32) error {
	original := interceptor.gate.Resolve(hook.DuplicateHandle)
	err := interceptor.caller.DuplicateHandle(original, sourceProcess, source, targetProcess, target, access, inherit, options)

	var propagated []Direction
	if err == nil && target != nil && interceptor.self(sourceProcess) && interceptor.self(targetProcess) {
		propagated = interceptor.registry.PropagateDuplicate(source, *target)
		if len(propagated) > 0 {
			interceptor.propagations.Add(1)
		}
	}

	interceptor.observe(func() error {
		if err != nil {
			interceptor.logger.Debug("DuplicateHandle",
				"result", false,
				"source_process", sourceProcess,
				"source", source,
				"target_process", targetProcess,
				"error", err,
			)
			return nil
		}
		interceptor.logger.Debug("DuplicateHandle",
			"result", true,
			"source_process", sourceProcess,
			"source", source,
			"target_process", targetProcess,
			"target", handleValue(target),
		)
		if len(propagated) > 0 {
			interceptor.logger.Info("pipe handle duplicated",
				"source", source,
				"target", *target,
				"directions", directionNames(propagated),
			)
		}
		return nil
	})
	return err
}

// handleValue renders an out-parameter handle for logging.
func handleValue(handle *win32.Handle) slog.Value {
	if handle == nil {
		return slog.StringValue("nil")
	}
	return handle.LogValue()
}

func directionNames(directions []Direction) []string {
	names := make([]string, len(directions))
	for index, direction := range directions {
		names[index] = direction.String()
	}
	return names
}
