// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package intercept observes anonymous pipe traffic inside a host
// process by replacing its file and pipe primitives.
//
// Four pieces cooperate:
//
//   - [Gate] holds a replacement body back until the detour engine
//     has finished installing its hook, then hands out the original
//     entry point. The controller signals completion right after each
//     Detour returns; engines that finish installation on their own
//     are picked up by polling at the configured interval.
//   - [Registry] remembers which handle values are the read and
//     write ends of pipes the process created, and extends that to
//     duplicates of those handles.
//   - [Interceptor] is the set of replacement bodies. Each body
//     forwards to the original primitive and returns its result
//     unchanged; logging and capture happen around the call and
//     never affect it.
//   - [Controller] installs the bodies in a fixed order and releases
//     the log and capture sinks at teardown.
//
// [Attach] and [Detach] are the hosting module's entry points:
// configuration, sinks, controller and installation in one call.
//
// Classification is grow-only. A closed handle stays classified, so
// when the OS reuses its value for an unrelated object, traffic on
// that object is logged as pipe traffic.
package intercept
