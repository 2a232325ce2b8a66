// ARMv8-A core support for a single-address-space preemptive kernel
// https://github.com/ZackZahi/rpi4-bare-metal-os
//
// Copyright (c) The rpi4-bare-metal-os Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package arm64

// Exception vectors and the IRQ-from-current-EL trap path (§4.8). The
// vector table is 2 KB aligned and holds the sixteen AArch64 entries
// (four origins x four exception classes); this kernel only services
// IRQs taken from the current exception level with SP_ELx selected
// (entry "irq_spx" in vectors_arm64.s) — every other entry halts, since
// synchronous faults, FIQs and SErrors are out of scope (§4.10, Non-goals).

// defined in vectors_arm64.s
func set_vbar()

// IRQHandler is set by the scheduler package before interrupts are
// unmasked. It is called on every IRQ taken from current EL with the
// stack pointer of the interrupted task, and must return the stack
// pointer of the task to resume (possibly the same one).
var IRQHandler func(oldSP uint64) (newSP uint64)

// InitVectors points VBAR_EL1 at this core's vector table. Must run
// before IRQs are unmasked.
func (cpu *CPU) InitVectors() {
	set_vbar()
}

// dispatchIRQ is called from the IRQ entry trampoline in
// vectors_arm64.s with the interrupted task's stack pointer (the
// trapframe has already been pushed onto it) and returns the stack
// pointer to resume. It never grows its own stack: the interrupted
// task's stack may be nearly exhausted, and there is no separate
// interrupt stack in this design.
//
//go:nosplit
func dispatchIRQ(oldSP uint64) uint64 {
	if IRQHandler == nil {
		return oldSP
	}

	return IRQHandler(oldSP)
}

// unexpectedException is reached by every vector this kernel does not
// service. §4.10: "Unhandled vectors halt in a low-power wait."
//
//go:nosplit
func unexpectedException() {
	halt()
}
