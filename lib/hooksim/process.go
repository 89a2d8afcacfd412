// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package hooksim

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/bureau-foundation/pipespy/lib/hook"
	"github.com/bureau-foundation/pipespy/lib/win32"
)

// Module is the module name the simulated process exports the
// primitives from.
const Module = "kernel32.dll"

// entryBase is the first simulated entry point value. Values are
// indices, never dereferenced.
const entryBase uintptr = 0x7ff0_0000

var exportedSymbols = []hook.Symbol{
	hook.CreatePipe,
	hook.ReadFile,
	hook.WriteFile,
	hook.CreateNamedPipeA,
	hook.CreateNamedPipeW,
	hook.DuplicateHandle,
}

// hookRecord is the engine's per-symbol state.
type hookRecord struct {
	original  uintptr
	installed atomic.Bool
}

// Hold pauses a detour after the patch is live but before the engine
// marks it installed, reproducing the window in which host threads
// already reach the replacement body.
type Hold struct {
	reached  chan struct{}
	released chan struct{}
	once     sync.Once
}

// Reached is closed when the held detour has patched the symbol and
// is waiting for Release.
func (hold *Hold) Reached() <-chan struct{} { return hold.reached }

// Release lets the held detour finish. Safe to call more than once.
func (hold *Hold) Release() {
	hold.once.Do(func() { close(hold.released) })
}

// Process is a simulated host process: kernel, detour engine and ABI.
// It implements hook.Engine and hook.ABI.
type Process struct {
	kernel *Kernel

	mutex     sync.Mutex
	entries   map[uintptr]hook.Bodies
	nextEntry uintptr
	exports   map[hook.Symbol]uintptr
	records   map[hook.Symbol]*hookRecord
	holds     map[hook.Symbol]*Hold
	failures  map[hook.Symbol]error
	detours   []hook.Symbol
}

// NewProcess returns a process whose exports all reach a fresh Kernel.
func NewProcess() *Process {
	process := &Process{
		kernel:    NewKernel(),
		entries:   make(map[uintptr]hook.Bodies),
		nextEntry: entryBase,
		exports:   make(map[hook.Symbol]uintptr),
		records:   make(map[hook.Symbol]*hookRecord),
		holds:     make(map[hook.Symbol]*Hold),
		failures:  make(map[hook.Symbol]error),
	}
	for _, symbol := range exportedSymbols {
		process.exports[symbol] = process.allocateLocked(process.kernel)
	}
	return process
}

// Kernel returns the process's kernel, for operations the interceptor
// does not patch (closing handles, connecting clients).
func (process *Process) Kernel() *Kernel { return process.kernel }

// Host returns the host program's view of the process.
func (process *Process) Host() *Host { return &Host{process: process} }

func (process *Process) allocateLocked(bodies hook.Bodies) uintptr {
	entry := process.nextEntry
	process.nextEntry += 0x10
	process.entries[entry] = bodies
	return entry
}

// HoldDetour makes the next Detour of symbol stop after patching and
// before marking the hook installed, until the returned Hold is
// released.
func (process *Process) HoldDetour(symbol hook.Symbol) *Hold {
	hold := &Hold{reached: make(chan struct{}), released: make(chan struct{})}
	process.mutex.Lock()
	process.holds[symbol] = hold
	process.mutex.Unlock()
	return hold
}

// FailDetour makes Detour of symbol fail with err without patching.
func (process *Process) FailDetour(symbol hook.Symbol, err error) {
	process.mutex.Lock()
	process.failures[symbol] = err
	process.mutex.Unlock()
}

// Detours returns the symbols passed to Detour, in call order,
// including failed attempts.
func (process *Process) Detours() []hook.Symbol {
	process.mutex.Lock()
	defer process.mutex.Unlock()
	return append([]hook.Symbol(nil), process.detours...)
}

// IsHooked implements hook.Engine.
func (process *Process) IsHooked(symbol hook.Symbol) bool {
	process.mutex.Lock()
	record := process.records[symbol]
	process.mutex.Unlock()
	return record != nil && record.installed.Load()
}

// Original implements hook.Engine. It returns 0 for symbols that were
// never detoured.
func (process *Process) Original(symbol hook.Symbol) uintptr {
	process.mutex.Lock()
	defer process.mutex.Unlock()
	if record := process.records[symbol]; record != nil {
		return record.original
	}
	return 0
}

// Detour implements hook.Engine. The patch table entry switches to
// replacement before the record is marked installed.
func (process *Process) Detour(module string, symbol hook.Symbol, replacement uintptr) error {
	process.mutex.Lock()
	process.detours = append(process.detours, symbol)
	if !strings.EqualFold(module, Module) {
		process.mutex.Unlock()
		return fmt.Errorf("module %q is not loaded", module)
	}
	if err := process.failures[symbol]; err != nil {
		process.mutex.Unlock()
		return err
	}
	current, ok := process.exports[symbol]
	if !ok {
		process.mutex.Unlock()
		return fmt.Errorf("%s does not export %s: %w", module, symbol, win32.ErrorProcNotFound)
	}
	if _, ok := process.entries[replacement]; !ok {
		process.mutex.Unlock()
		return fmt.Errorf("replacement 0x%x for %s is not an entry point", replacement, symbol)
	}
	if _, ok := process.records[symbol]; ok {
		process.mutex.Unlock()
		return fmt.Errorf("%s is already hooked", symbol)
	}
	record := &hookRecord{original: current}
	process.records[symbol] = record
	process.exports[symbol] = replacement
	hold := process.holds[symbol]
	delete(process.holds, symbol)
	process.mutex.Unlock()

	if hold != nil {
		close(hold.reached)
		<-hold.released
	}
	record.installed.Store(true)
	return nil
}

// Export implements hook.ABI.
func (process *Process) Export(symbol hook.Symbol, bodies hook.Bodies) (uintptr, error) {
	if bodies == nil {
		return 0, fmt.Errorf("exporting %s: nil bodies", symbol)
	}
	process.mutex.Lock()
	defer process.mutex.Unlock()
	if _, ok := process.exports[symbol]; !ok {
		return 0, fmt.Errorf("no export for symbol %q", symbol)
	}
	return process.allocateLocked(bodies), nil
}

// resolve returns the bodies behind entry. Calling through an address
// that is not an entry point would crash a real process.
func (process *Process) resolve(entry uintptr) hook.Bodies {
	process.mutex.Lock()
	bodies, ok := process.entries[entry]
	process.mutex.Unlock()
	if !ok {
		panic(fmt.Sprintf("hooksim: call through unknown entry point 0x%x", entry))
	}
	return bodies
}

// current returns the entry point host code reaches for symbol.
func (process *Process) current(symbol hook.Symbol) uintptr {
	process.mutex.Lock()
	defer process.mutex.Unlock()
	return process.exports[symbol]
}

// The win32.Caller half of hook.ABI dispatches to whatever bodies the
// entry point was allocated for.

func (process *Process) CreatePipe(entry uintptr, read, write *win32.Handle, attributes *win32.SecurityAttributes, size uint32) error {
	return process.resolve(entry).CreatePipe(read, write, attributes, size)
}

func (process *Process) CreateNamedPipeA(entry uintptr, name *byte, openMode, pipeMode, maxInstances, outSize, inSize, timeout uint32, attributes *win32.SecurityAttributes) (win32.Handle, error) {
	return process.resolve(entry).CreateNamedPipeA(name, openMode, pipeMode, maxInstances, outSize, inSize, timeout, attributes)
}

func (process *Process) CreateNamedPipeW(entry uintptr, name *uint16, openMode, pipeMode, maxInstances, outSize, inSize, timeout uint32, attributes *win32.SecurityAttributes) (win32.Handle, error) {
	return process.resolve(entry).CreateNamedPipeW(name, openMode, pipeMode, maxInstances, outSize, inSize, timeout, attributes)
}

func (process *Process) ReadFile(entry uintptr, handle win32.Handle, buffer []byte, done *uint32, overlapped *win32.Overlapped) error {
	return process.resolve(entry).ReadFile(handle, buffer, done, overlapped)
}

func (process *Process) WriteFile(entry uintptr, handle win32.Handle, buffer []byte, done *uint32, overlapped *win32.Overlapped) error {
	return process.resolve(entry).WriteFile(handle, buffer, done, overlapped)
}

func (process *Process) DuplicateHandle(entry uintptr, sourceProcess, source, targetProcess win32.Handle, target *win32.Handle, access uint32, inherit bool, options uint32) error {
	return process.resolve(entry).DuplicateHandle(sourceProcess, source, targetProcess, target, access, inherit, options)
}

// IsCurrentProcess implements hook.ProcessIdentifier.
func (process *Process) IsCurrentProcess(handle win32.Handle) bool {
	return process.kernel.IsCurrentProcess(handle)
}

var (
	_ hook.Engine            = (*Process)(nil)
	_ hook.ABI               = (*Process)(nil)
	_ hook.ProcessIdentifier = (*Process)(nil)
	_ hook.Bodies            = (*Kernel)(nil)
)
