// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package hook

// Symbol names an exported primitive of the target module.
type Symbol string

// The intercepted kernel32 primitives.
const (
	CreatePipe       Symbol = "CreatePipe"
	ReadFile         Symbol = "ReadFile"
	WriteFile        Symbol = "WriteFile"
	CreateNamedPipeA Symbol = "CreateNamedPipeA"
	CreateNamedPipeW Symbol = "CreateNamedPipeW"
	DuplicateHandle  Symbol = "DuplicateHandle"
)

// InstallOrder is the fixed order in which the default hooks are
// installed. DuplicateHandle is not part of it; it is appended only
// when explicitly enabled.
var InstallOrder = []Symbol{
	CreatePipe,
	ReadFile,
	WriteFile,
	CreateNamedPipeA,
	CreateNamedPipeW,
}

func (symbol Symbol) String() string { return string(symbol) }
