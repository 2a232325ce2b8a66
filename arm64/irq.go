// ARMv8-A core support for a single-address-space preemptive kernel
// https://github.com/ZackZahi/rpi4-bare-metal-os
//
// Copyright (c) The rpi4-bare-metal-os Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package arm64

// Interrupt masking and the idle wait (§4.8, §5). This kernel never
// routes IRQ delivery through the Go runtime's own goroutine scheduler —
// there is no hosted runtime scheduler running at all (see DESIGN.md):
// preemption happens exclusively at the irqEntry trampoline in
// vectors_arm64.s, which calls straight into the scheduler via
// IRQHandler.

// defined in irq_arm64.s
func irq_enable()
func irq_disable()
func wfi()

// EnableInterrupts unmasks IRQ interrupts (clears DAIF.I).
func (cpu *CPU) EnableInterrupts() {
	irq_enable()
}

// DisableInterrupts masks IRQ interrupts (sets DAIF.I). Used to bracket
// ready-queue and allocator mutations on the preempting core (§5).
func (cpu *CPU) DisableInterrupts() {
	irq_disable()
}

// WaitInterrupt suspends execution until an interrupt is received
// (WFI). Used by the idle loop and by a task's exit trampoline; never
// called from within an IRQ-masked critical section (§5: "Critical
// sections must not contain wait-for-interrupt").
func (cpu *CPU) WaitInterrupt() {
	wfi()
}

// WaitForInterrupt is the package-level form of WaitInterrupt, for
// callers with no CPU handle of their own — notably a task's exit
// trampoline, synthesised before any TCB exists to hold one.
func WaitForInterrupt() {
	wfi()
}
