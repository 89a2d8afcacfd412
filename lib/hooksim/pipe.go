// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package hooksim

import (
	"sync"

	"github.com/bureau-foundation/pipespy/lib/win32"
)

// pipe is one direction of byte flow with reader and writer reference
// counts. Its buffer is unbounded.
type pipe struct {
	mutex   sync.Mutex
	ready   *sync.Cond
	data    []byte
	readers int
	writers int
}

func newPipe() *pipe {
	p := &pipe{}
	p.ready = sync.NewCond(&p.mutex)
	return p
}

// read copies available bytes into buffer. When the pipe is empty it
// waits for a writer, or reports ErrorIOPending if wait is false.
// Once the pipe is drained and no writers remain, it reports
// ErrorBrokenPipe.
func (p *pipe) read(buffer []byte, wait bool) (int, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if len(buffer) == 0 {
		return 0, nil
	}
	for len(p.data) == 0 && p.writers > 0 {
		if !wait {
			return 0, win32.ErrorIOPending
		}
		p.ready.Wait()
	}
	if len(p.data) == 0 {
		return 0, win32.ErrorBrokenPipe
	}
	n := copy(buffer, p.data)
	p.data = p.data[n:]
	return n, nil
}

// write appends buffer. Writing after every read end has closed
// reports ErrorNoData ("the pipe is being closed").
func (p *pipe) write(buffer []byte) (int, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.readers == 0 {
		return 0, win32.ErrorNoData
	}
	p.data = append(p.data, buffer...)
	p.ready.Broadcast()
	return len(buffer), nil
}

// available returns the number of unread bytes.
func (p *pipe) available() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return len(p.data)
}

func (p *pipe) addReader() {
	p.mutex.Lock()
	p.readers++
	p.mutex.Unlock()
}

func (p *pipe) addWriter() {
	p.mutex.Lock()
	p.writers++
	p.mutex.Unlock()
}

func (p *pipe) releaseReader() {
	p.mutex.Lock()
	p.readers--
	p.mutex.Unlock()
}

// releaseWriter wakes blocked readers so they observe end of stream
// once the last writer is gone.
func (p *pipe) releaseWriter() {
	p.mutex.Lock()
	p.writers--
	p.ready.Broadcast()
	p.mutex.Unlock()
}
