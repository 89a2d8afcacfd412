// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds helpers shared by pipespy's package tests.
//
// Hook bodies block inside the readiness gate and simulated pipe reads
// block until a writer delivers, so tests hand results back over
// channels. [Receive], [Send] and [Closed] bound those channel
// operations by [Patience] so a gate that never opens fails the test
// instead of hanging it. Everything else runs on lib/clock's fake
// clock.
//
// [PipeName] hands out distinct named pipe paths for tests that create
// several servers in one simulated kernel.
package testutil
