// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package hooksim

import (
	"strings"
	"sync"

	"github.com/bureau-foundation/pipespy/lib/win32"
)

// firstHandle is the lowest handle value handed out, leaving room for
// the standard handles below it.
const firstHandle win32.Handle = 0x40

// namedPipePrefix is required on every pipe name.
const namedPipePrefix = `\\.\pipe\`

type objectKind int

const (
	kindPipe objectKind = iota
	kindNamedPipe
	kindFile
	kindProcess
)

// object is a kernel object shared by every handle that refers to it.
// references is guarded by Kernel.mutex.
type object struct {
	kind       objectKind
	references int

	// inbound is where reads come from; outbound is where writes go.
	// Either is nil when the handle lacks that access.
	inbound  *pipe
	outbound *pipe

	instance *namedInstance
	file     *file
	process  *handleTable
}

// namedInstance is one server instance of a named pipe. Both pipes
// exist from creation; the client side attaches on connect.
type namedInstance struct {
	name      string
	openMode  uint32
	connected bool
	toServer  *pipe
	toClient  *pipe
}

type file struct {
	mutex  sync.Mutex
	data   []byte
	offset int
}

// handleTable maps handle values to objects for one process.
type handleTable struct {
	entries map[win32.Handle]*object
	next    win32.Handle
	free    []win32.Handle
}

func newHandleTable() *handleTable {
	return &handleTable{
		entries: make(map[win32.Handle]*object),
		next:    firstHandle,
	}
}

func (table *handleTable) insert(target *object) win32.Handle {
	var handle win32.Handle
	if count := len(table.free); count > 0 {
		handle = table.free[count-1]
		table.free = table.free[:count-1]
	} else {
		handle = table.next
		table.next += 4
	}
	table.entries[handle] = target
	target.references++
	return handle
}

func (table *handleTable) remove(handle win32.Handle) (*object, bool) {
	target, ok := table.entries[handle]
	if !ok {
		return nil, false
	}
	delete(table.entries, handle)
	table.free = append(table.free, handle)
	return target, true
}

// Kernel implements the intercepted primitives for one simulated
// process. It satisfies hook.Bodies, which is how the simulated detour
// engine reaches it as the "original" implementation. Safe for
// concurrent use.
type Kernel struct {
	mutex      sync.Mutex
	current    *handleTable
	namedPipes map[string][]*namedInstance
}

// NewKernel returns a kernel with an empty handle table.
func NewKernel() *Kernel {
	return &Kernel{
		current:    newHandleTable(),
		namedPipes: make(map[string][]*namedInstance),
	}
}

// CloseHandle releases handle in the current process.
func (kernel *Kernel) CloseHandle(handle win32.Handle) error {
	kernel.mutex.Lock()
	defer kernel.mutex.Unlock()
	return kernel.closeLocked(kernel.current, handle)
}

func (kernel *Kernel) closeLocked(table *handleTable, handle win32.Handle) error {
	target, ok := table.remove(handle)
	if !ok {
		return win32.ErrorInvalidHandle
	}
	target.references--
	if target.references == 0 {
		kernel.releaseLocked(target)
	}
	return nil
}

// releaseLocked drops the last reference to an object.
func (kernel *Kernel) releaseLocked(target *object) {
	if target.inbound != nil {
		target.inbound.releaseReader()
	}
	if target.outbound != nil {
		target.outbound.releaseWriter()
	}
	if target.kind == kindNamedPipe && target.instance != nil {
		kernel.removeInstanceLocked(target)
	}
}

// removeInstanceLocked forgets a server instance when its server
// handle goes away, so the name can be reused.
func (kernel *Kernel) removeInstanceLocked(server *object) {
	key := strings.ToLower(server.instance.name)
	instances := kernel.namedPipes[key]
	for index, instance := range instances {
		if instance == server.instance && server.isServer() {
			kernel.namedPipes[key] = append(instances[:index], instances[index+1:]...)
			break
		}
	}
	if len(kernel.namedPipes[key]) == 0 {
		delete(kernel.namedPipes, key)
	}
}

// isServer distinguishes the server object of a named instance from
// the client object sharing the same instance.
func (target *object) isServer() bool {
	instance := target.instance
	return (target.inbound != nil && target.inbound == instance.toServer) ||
		(target.outbound != nil && target.outbound == instance.toClient)
}

// OpenNamedPipe connects a client to the first listening instance of
// name, returning the client's handle. It reports ErrorFileNotFound
// when no such pipe exists and ErrorPipeBusy when every instance is
// already connected.
func (kernel *Kernel) OpenNamedPipe(name string) (win32.Handle, error) {
	kernel.mutex.Lock()
	defer kernel.mutex.Unlock()

	instances := kernel.namedPipes[strings.ToLower(name)]
	if len(instances) == 0 {
		return win32.InvalidHandle, win32.ErrorFileNotFound
	}
	for _, instance := range instances {
		if instance.connected {
			continue
		}
		instance.connected = true
		client := &object{kind: kindNamedPipe, instance: instance}
		if instance.openMode&win32.PipeAccessOutbound != 0 {
			client.inbound = instance.toClient
			client.inbound.addReader()
		}
		if instance.openMode&win32.PipeAccessInbound != 0 {
			client.outbound = instance.toServer
			client.outbound.addWriter()
		}
		return kernel.current.insert(client), nil
	}
	return win32.InvalidHandle, win32.ErrorPipeBusy
}

// CreateFile creates an in-memory file holding content and returns a
// handle to it positioned at the start.
func (kernel *Kernel) CreateFile(content []byte) win32.Handle {
	kernel.mutex.Lock()
	defer kernel.mutex.Unlock()
	data := append([]byte(nil), content...)
	return kernel.current.insert(&object{kind: kindFile, file: &file{data: data}})
}

// SpawnProcess creates another simulated process with its own handle
// table and returns a handle to it, usable as the source or target
// process of DuplicateHandle.
func (kernel *Kernel) SpawnProcess() win32.Handle {
	kernel.mutex.Lock()
	defer kernel.mutex.Unlock()
	return kernel.current.insert(&object{kind: kindProcess, process: newHandleTable()})
}

// OpenCurrentProcess returns a real handle to the current process, as
// OpenProcess(GetCurrentProcessId()) would.
func (kernel *Kernel) OpenCurrentProcess() win32.Handle {
	kernel.mutex.Lock()
	defer kernel.mutex.Unlock()
	return kernel.current.insert(&object{kind: kindProcess, process: kernel.current})
}

// IsCurrentProcess reports whether process is the CurrentProcess
// pseudo handle or a handle from OpenCurrentProcess.
func (kernel *Kernel) IsCurrentProcess(process win32.Handle) bool {
	kernel.mutex.Lock()
	defer kernel.mutex.Unlock()
	table, err := kernel.processTableLocked(process)
	return err == nil && table == kernel.current
}

// Valid reports whether handle is open in the current process.
func (kernel *Kernel) Valid(handle win32.Handle) bool {
	kernel.mutex.Lock()
	defer kernel.mutex.Unlock()
	_, ok := kernel.current.entries[handle]
	return ok
}

// Available returns the number of bytes waiting to be read from
// handle, like PeekNamedPipe's total bytes available.
func (kernel *Kernel) Available(handle win32.Handle) (int, error) {
	target, err := kernel.lookup(handle)
	if err != nil {
		return 0, err
	}
	if target.inbound == nil {
		return 0, win32.ErrorAccessDenied
	}
	return target.inbound.available(), nil
}

func (kernel *Kernel) lookup(handle win32.Handle) (*object, error) {
	kernel.mutex.Lock()
	defer kernel.mutex.Unlock()
	target, ok := kernel.current.entries[handle]
	if !ok {
		return nil, win32.ErrorInvalidHandle
	}
	return target, nil
}

// processTableLocked resolves a process handle argument: the
// CurrentProcess pseudo handle or a handle from SpawnProcess or
// OpenCurrentProcess.
func (kernel *Kernel) processTableLocked(process win32.Handle) (*handleTable, error) {
	if process == win32.CurrentProcess {
		return kernel.current, nil
	}
	target, ok := kernel.current.entries[process]
	if !ok || target.kind != kindProcess {
		return nil, win32.ErrorInvalidHandle
	}
	return target.process, nil
}
