// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package hooksim

import (
	"errors"
	"testing"
	"time"

	"github.com/bureau-foundation/pipespy/lib/testutil"
	"github.com/bureau-foundation/pipespy/lib/win32"
)

func TestAnonymousPipe(t *testing.T) {
	kernel := NewKernel()
	var read, write win32.Handle
	if err := kernel.CreatePipe(&read, &write, nil, 0); err != nil {
		t.Fatalf("CreatePipe: %v", err)
	}
	if read != firstHandle || write != firstHandle+4 {
		t.Errorf("handles = %v, %v, want 0x40, 0x44", read, write)
	}

	var done uint32
	if err := kernel.WriteFile(write, []byte("hello"), &done, nil); err != nil || done != 5 {
		t.Fatalf("WriteFile = %v (done %d)", err, done)
	}
	buffer := make([]byte, 3)
	if err := kernel.ReadFile(read, buffer, &done, nil); err != nil || string(buffer[:done]) != "hel" {
		t.Fatalf("ReadFile = %v, %q", err, buffer[:done])
	}
	if available, _ := kernel.Available(read); available != 2 {
		t.Errorf("Available = %d, want 2", available)
	}

	if err := kernel.ReadFile(write, buffer, &done, nil); !errors.Is(err, win32.ErrorAccessDenied) {
		t.Errorf("ReadFile on write end = %v, want ERROR_ACCESS_DENIED", err)
	}
	if err := kernel.WriteFile(read, buffer, &done, nil); !errors.Is(err, win32.ErrorAccessDenied) {
		t.Errorf("WriteFile on read end = %v, want ERROR_ACCESS_DENIED", err)
	}
}

func TestCreatePipeNilPointers(t *testing.T) {
	kernel := NewKernel()
	var handle win32.Handle
	if err := kernel.CreatePipe(nil, &handle, nil, 0); !errors.Is(err, win32.ErrorInvalidParameter) {
		t.Errorf("CreatePipe(nil read) = %v", err)
	}
	if err := kernel.CreatePipe(&handle, nil, nil, 0); !errors.Is(err, win32.ErrorInvalidParameter) {
		t.Errorf("CreatePipe(nil write) = %v", err)
	}
}

func TestReadBlocksUntilWrite(t *testing.T) {
	kernel := NewKernel()
	var read, write win32.Handle
	kernel.CreatePipe(&read, &write, nil, 0)

	result := make(chan string, 1)
	go func() {
		buffer := make([]byte, 16)
		var done uint32
		if err := kernel.ReadFile(read, buffer, &done, nil); err != nil {
			result <- "error: " + err.Error()
			return
		}
		result <- string(buffer[:done])
	}()

	select {
	case got := <-result:
		t.Fatalf("ReadFile returned %q before any write", got)
	case <-time.After(20 * time.Millisecond):
	}

	payloads := make(chan []byte)
	go func() {
		var done uint32
		kernel.WriteFile(write, <-payloads, &done, nil)
	}()
	testutil.Send(t, payloads, []byte("late"), "handing payload to writer")
	if got := testutil.Receive(t, result, "blocked read"); got != "late" {
		t.Errorf("read %q, want %q", got, "late")
	}
}

func TestBrokenPipeAfterWriterCloses(t *testing.T) {
	kernel := NewKernel()
	var read, write win32.Handle
	kernel.CreatePipe(&read, &write, nil, 0)

	var done uint32
	kernel.WriteFile(write, []byte("tail"), &done, nil)
	if err := kernel.CloseHandle(write); err != nil {
		t.Fatalf("CloseHandle: %v", err)
	}

	buffer := make([]byte, 16)
	if err := kernel.ReadFile(read, buffer, &done, nil); err != nil || string(buffer[:done]) != "tail" {
		t.Fatalf("ReadFile after close = %v, %q; want buffered data", err, buffer[:done])
	}
	if err := kernel.ReadFile(read, buffer, &done, nil); !errors.Is(err, win32.ErrorBrokenPipe) {
		t.Errorf("ReadFile on drained pipe = %v, want ERROR_BROKEN_PIPE", err)
	}
	if done != 0 {
		t.Errorf("done = %d after failed read, want 0", done)
	}
}

func TestWriteAfterReaderClosesReportsNoData(t *testing.T) {
	kernel := NewKernel()
	var read, write win32.Handle
	kernel.CreatePipe(&read, &write, nil, 0)
	kernel.CloseHandle(read)

	var done uint32
	if err := kernel.WriteFile(write, []byte("x"), &done, nil); !errors.Is(err, win32.ErrorNoData) {
		t.Errorf("WriteFile = %v, want ERROR_NO_DATA", err)
	}
}

func TestOverlappedReadWithoutDataIsPending(t *testing.T) {
	kernel := NewKernel()
	var read, write win32.Handle
	kernel.CreatePipe(&read, &write, nil, 0)

	var overlapped win32.Overlapped
	buffer := make([]byte, 8)
	if err := kernel.ReadFile(read, buffer, nil, &overlapped); !errors.Is(err, win32.ErrorIOPending) {
		t.Fatalf("overlapped ReadFile = %v, want ERROR_IO_PENDING", err)
	}

	var done uint32
	kernel.WriteFile(write, []byte("ok"), &done, nil)
	if err := kernel.ReadFile(read, buffer, nil, &overlapped); err != nil {
		t.Fatalf("overlapped ReadFile with data: %v", err)
	}
	if overlapped.InternalHigh != 2 {
		t.Errorf("InternalHigh = %d, want 2", overlapped.InternalHigh)
	}
}

func TestReadFileRequiresDoneOrOverlapped(t *testing.T) {
	kernel := NewKernel()
	handle := kernel.CreateFile([]byte("data"))
	if err := kernel.ReadFile(handle, make([]byte, 4), nil, nil); !errors.Is(err, win32.ErrorInvalidParameter) {
		t.Errorf("ReadFile = %v, want ERROR_INVALID_PARAMETER", err)
	}
}

func TestFileReadWrite(t *testing.T) {
	kernel := NewKernel()
	handle := kernel.CreateFile([]byte("abc"))

	buffer := make([]byte, 8)
	var done uint32
	if err := kernel.ReadFile(handle, buffer, &done, nil); err != nil || string(buffer[:done]) != "abc" {
		t.Fatalf("ReadFile = %v, %q", err, buffer[:done])
	}
	// End of file is success with zero bytes.
	if err := kernel.ReadFile(handle, buffer, &done, nil); err != nil || done != 0 {
		t.Errorf("ReadFile at EOF = %v, done %d", err, done)
	}
	if err := kernel.WriteFile(handle, []byte("def"), &done, nil); err != nil || done != 3 {
		t.Errorf("WriteFile = %v, done %d", err, done)
	}
}

func TestInvalidHandle(t *testing.T) {
	kernel := NewKernel()
	var done uint32
	if err := kernel.ReadFile(0x1234, make([]byte, 1), &done, nil); !errors.Is(err, win32.ErrorInvalidHandle) {
		t.Errorf("ReadFile = %v, want ERROR_INVALID_HANDLE", err)
	}
	if err := kernel.CloseHandle(0x1234); !errors.Is(err, win32.ErrorInvalidHandle) {
		t.Errorf("CloseHandle = %v, want ERROR_INVALID_HANDLE", err)
	}
}

func TestHandleValuesAreReused(t *testing.T) {
	kernel := NewKernel()
	var read, write win32.Handle
	kernel.CreatePipe(&read, &write, nil, 0)
	kernel.CloseHandle(write)

	file := kernel.CreateFile(nil)
	if file != write {
		t.Errorf("new handle = %v, want reused %v", file, write)
	}
}

func TestNamedPipe(t *testing.T) {
	kernel := NewKernel()
	name := win32.AnsiBytes(`\\.\pipe\test`)
	server, err := kernel.CreateNamedPipeA(&name[0], win32.PipeAccessDuplex, win32.PipeTypeByte, 1, 512, 512, 0, nil)
	if err != nil {
		t.Fatalf("CreateNamedPipeA: %v", err)
	}

	var done uint32
	if err := kernel.WriteFile(server, []byte("x"), &done, nil); !errors.Is(err, win32.ErrorPipeListening) {
		t.Errorf("WriteFile before connect = %v, want ERROR_PIPE_LISTENING", err)
	}

	client, err := kernel.OpenNamedPipe(`\\.\PIPE\Test`)
	if err != nil {
		t.Fatalf("OpenNamedPipe: %v", err)
	}
	if _, err := kernel.OpenNamedPipe(`\\.\pipe\test`); !errors.Is(err, win32.ErrorPipeBusy) {
		t.Errorf("second OpenNamedPipe = %v, want ERROR_PIPE_BUSY", err)
	}

	kernel.WriteFile(client, []byte("ping"), &done, nil)
	buffer := make([]byte, 8)
	if err := kernel.ReadFile(server, buffer, &done, nil); err != nil || string(buffer[:done]) != "ping" {
		t.Fatalf("server read = %v, %q", err, buffer[:done])
	}
	kernel.WriteFile(server, []byte("pong"), &done, nil)
	if err := kernel.ReadFile(client, buffer, &done, nil); err != nil || string(buffer[:done]) != "pong" {
		t.Fatalf("client read = %v, %q", err, buffer[:done])
	}

	// A second instance exceeds maxInstances of 1.
	if _, err := kernel.CreateNamedPipeA(&name[0], win32.PipeAccessDuplex, 0, 1, 0, 0, 0, nil); !errors.Is(err, win32.ErrorPipeBusy) {
		t.Errorf("CreateNamedPipeA over limit = %v, want ERROR_PIPE_BUSY", err)
	}
	kernel.CloseHandle(server)
	if _, err := kernel.OpenNamedPipe(`\\.\pipe\test`); !errors.Is(err, win32.ErrorFileNotFound) {
		t.Errorf("OpenNamedPipe after server close = %v, want ERROR_FILE_NOT_FOUND", err)
	}
}

func TestNamedPipesAreIndependent(t *testing.T) {
	kernel := NewKernel()
	names := []string{
		testutil.PipeName("independent"),
		testutil.PipeName("independent"),
	}
	clients := make([]win32.Handle, len(names))
	servers := make([]win32.Handle, len(names))
	for i, name := range names {
		ansi := win32.AnsiBytes(name)
		server, err := kernel.CreateNamedPipeA(&ansi[0], win32.PipeAccessDuplex, win32.PipeTypeByte, 1, 0, 0, 0, nil)
		if err != nil {
			t.Fatalf("CreateNamedPipeA(%s): %v", name, err)
		}
		client, err := kernel.OpenNamedPipe(name)
		if err != nil {
			t.Fatalf("OpenNamedPipe(%s): %v", name, err)
		}
		servers[i], clients[i] = server, client
	}

	var done uint32
	kernel.WriteFile(clients[1], []byte("second"), &done, nil)
	kernel.WriteFile(clients[0], []byte("first"), &done, nil)
	buffer := make([]byte, 16)
	for i, want := range []string{"first", "second"} {
		if err := kernel.ReadFile(servers[i], buffer, &done, nil); err != nil || string(buffer[:done]) != want {
			t.Errorf("server %d read = %v, %q, want %q", i, err, buffer[:done], want)
		}
	}
}

func TestNamedPipeWideAndValidation(t *testing.T) {
	kernel := NewKernel()
	wide := win32.WideBytes(`\\.\pipe\wide`)
	if _, err := kernel.CreateNamedPipeW(&wide[0], win32.PipeAccessInbound, 0, win32.PipeUnlimitedInstances, 0, 0, 0, nil); err != nil {
		t.Fatalf("CreateNamedPipeW: %v", err)
	}

	tests := []struct {
		name     string
		pipeName string
		openMode uint32
		max      uint32
		want     win32.Errno
	}{
		{"missing prefix", `C:\temp\pipe`, win32.PipeAccessDuplex, 1, win32.ErrorInvalidName},
		{"prefix only", `\\.\pipe\`, win32.PipeAccessDuplex, 1, win32.ErrorInvalidName},
		{"no access", `\\.\pipe\a`, 0, 1, win32.ErrorInvalidParameter},
		{"zero instances", `\\.\pipe\a`, win32.PipeAccessDuplex, 0, win32.ErrorInvalidParameter},
		{"too many instances", `\\.\pipe\a`, win32.PipeAccessDuplex, 256, win32.ErrorInvalidParameter},
	}
	for _, test := range tests {
		name := win32.AnsiBytes(test.pipeName)
		handle, err := kernel.CreateNamedPipeA(&name[0], test.openMode, 0, test.max, 0, 0, 0, nil)
		if !errors.Is(err, test.want) {
			t.Errorf("%s: err = %v, want %v", test.name, err, test.want)
		}
		if handle != win32.InvalidHandle {
			t.Errorf("%s: handle = %v, want INVALID_HANDLE_VALUE", test.name, handle)
		}
	}
}

func TestDuplicateHandle(t *testing.T) {
	kernel := NewKernel()
	var read, write win32.Handle
	kernel.CreatePipe(&read, &write, nil, 0)

	var duplicate win32.Handle
	if err := kernel.DuplicateHandle(win32.CurrentProcess, read, win32.CurrentProcess, &duplicate, 0, false, win32.DuplicateSameAccess); err != nil {
		t.Fatalf("DuplicateHandle: %v", err)
	}
	kernel.CloseHandle(read)

	var done uint32
	kernel.WriteFile(write, []byte("via dup"), &done, nil)
	buffer := make([]byte, 16)
	if err := kernel.ReadFile(duplicate, buffer, &done, nil); err != nil || string(buffer[:done]) != "via dup" {
		t.Errorf("read through duplicate = %v, %q", err, buffer[:done])
	}
}

func TestDuplicateHandleCloseSource(t *testing.T) {
	kernel := NewKernel()
	var read, write win32.Handle
	kernel.CreatePipe(&read, &write, nil, 0)

	var moved win32.Handle
	if err := kernel.DuplicateHandle(win32.CurrentProcess, write, win32.CurrentProcess, &moved, 0, false, win32.DuplicateCloseSource|win32.DuplicateSameAccess); err != nil {
		t.Fatalf("DuplicateHandle: %v", err)
	}
	if kernel.Valid(write) {
		t.Error("source handle should be closed")
	}
	var done uint32
	if err := kernel.WriteFile(moved, []byte("x"), &done, nil); err != nil {
		t.Errorf("write through moved handle: %v", err)
	}

	// Duplicating into nowhere with close-source closes the last
	// reference: the pipe loses its writer.
	if err := kernel.DuplicateHandle(win32.CurrentProcess, moved, win32.CurrentProcess, nil, 0, false, win32.DuplicateCloseSource); err != nil {
		t.Fatalf("DuplicateHandle(nil target): %v", err)
	}
	buffer := make([]byte, 4)
	kernel.ReadFile(read, buffer, &done, nil)
	if err := kernel.ReadFile(read, buffer, &done, nil); !errors.Is(err, win32.ErrorBrokenPipe) {
		t.Errorf("ReadFile = %v, want ERROR_BROKEN_PIPE", err)
	}
}

func TestDuplicateHandleIntoOtherProcess(t *testing.T) {
	kernel := NewKernel()
	child := kernel.SpawnProcess()
	var read, write win32.Handle
	kernel.CreatePipe(&read, &write, nil, 0)

	var remote win32.Handle
	if err := kernel.DuplicateHandle(win32.CurrentProcess, read, child, &remote, 0, false, win32.DuplicateSameAccess); err != nil {
		t.Fatalf("DuplicateHandle: %v", err)
	}
	// The child's table numbers handles independently.
	if remote != firstHandle {
		t.Errorf("remote handle = %v, want %v", remote, firstHandle)
	}
	if err := kernel.DuplicateHandle(0x9999, read, child, &remote, 0, false, 0); !errors.Is(err, win32.ErrorInvalidHandle) {
		t.Errorf("bad source process = %v, want ERROR_INVALID_HANDLE", err)
	}
}

func TestProcessHandles(t *testing.T) {
	kernel := NewKernel()
	self := kernel.OpenCurrentProcess()
	child := kernel.SpawnProcess()

	tests := []struct {
		name    string
		process win32.Handle
		want    bool
	}{
		{"pseudo handle", win32.CurrentProcess, true},
		{"real handle to self", self, true},
		{"child", child, false},
		{"unknown", 0x1234, false},
	}
	for _, test := range tests {
		if got := kernel.IsCurrentProcess(test.process); got != test.want {
			t.Errorf("%s: IsCurrentProcess(%v) = %v, want %v", test.name, test.process, got, test.want)
		}
	}

	var read, write win32.Handle
	kernel.CreatePipe(&read, &write, nil, 0)
	var duplicate win32.Handle
	if err := kernel.DuplicateHandle(self, write, self, &duplicate, 0, false, win32.DuplicateSameAccess); err != nil {
		t.Fatalf("DuplicateHandle through self handle: %v", err)
	}
	var done uint32
	if err := kernel.WriteFile(duplicate, []byte("via self"), &done, nil); err != nil || done != 8 {
		t.Fatalf("WriteFile(duplicate) = %v (done %d)", err, done)
	}
	if available, _ := kernel.Available(read); available != 8 {
		t.Errorf("Available(read) = %d, want 8", available)
	}
}
