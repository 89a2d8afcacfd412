// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for pipespy.
//
// Configuration is loaded from a single file named by the
// PIPESPY_CONFIG environment variable (via [Load]) or an explicit path
// (via [LoadFile]). A DLL injected into a host has no command line, so
// [ForModule] covers the remaining case: when PIPESPY_CONFIG is unset
// it returns the defaults with the log file placed next to the module
// that was loaded.
//
// Variable expansion is performed on path fields after loading:
// ${PIPESPY_DIR} (the module's directory, when known), ${HOME}, and
// ${VAR:-default} patterns are expanded. No environment variable
// overrides a configured value.
//
// Key exports:
//
//   - [Config] -- Log, Capture and Hooks sections
//   - [Default] -- returns a Config with the built-in defaults
//   - [Load], [LoadFile], [ForModule] -- the entry points for loading
//
// This package depends on no other pipespy packages.
package config
