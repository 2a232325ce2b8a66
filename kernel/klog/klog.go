// Logging for code reachable from interrupt context or early boot
// https://github.com/ZackZahi/rpi4-bare-metal-os
//
// Copyright (c) The rpi4-bare-metal-os Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package klog is the "log, reject the operation, continue" half of
// §7's error handling design: programmer errors and resource
// exhaustion are logged and swallowed, never panicked. It wraps bare
// print/println rather than fmt, matching the teacher's own split
// (arm64/exception.go's halt path never calls into fmt, since fmt's
// allocations are not safe from a //go:nosplit frame or before the
// heap exists at all).
package klog

// Warn logs a programmer or transient-hardware error (§7): freeing a
// bad pointer, a spurious interrupt, a full task pool. Never fatal.
func Warn(msg string) {
	println("[warn]", msg)
}

// Warnf is Warn with one hex/decimal-friendly integer argument, for
// the handful of call sites that need to name an id or address
// without pulling in fmt (e.g. paths still reachable from IRQ
// bookkeeping such as Rearm failures).
func Warnf(msg string, n int) {
	println("[warn]", msg, n)
}

// Fatal logs and halts (§7: "Fatal... halt — no attempt to continue").
// halt is supplied by the caller (arm64.Halt) so this package stays
// free of an arm64 import and is usable from host-side tests.
func Fatal(msg string, halt func()) {
	println("[fatal]", msg)
	halt()
}
