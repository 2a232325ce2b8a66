// ARMv8-A core support for a single-address-space preemptive kernel
//
// Copyright (c) The rpi4-bare-metal-os Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package arm64

// defined in cache_arm64.s
func flush_tlb()
func cache_disable()

// DisableCache disables the data and instruction caches; never called in
// normal operation, kept for the MMU failure path documented in §4.10.
func (cpu *CPU) DisableCache() {
	cache_disable()
}

// FlushTLBs invalidates the Translation Lookaside Buffers for this core.
func (cpu *CPU) FlushTLBs() {
	flush_tlb()
}
