// ARMv8-A core support for a single-address-space preemptive kernel
//
// Copyright (c) The rpi4-bare-metal-os Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package arm64

import "unsafe"

// TrapframeWords is the size, in 8-byte words, of a saved register frame
// (§3 Trapframe): 31 general-purpose registers (x0..x30), the
// exception-return address (ELR_EL1), the saved processor state (SPSR_EL1)
// and one padding word to keep the frame 16-byte aligned at its top.
const TrapframeWords = 34

const (
	tfX0    = 0  // x0..x29 occupy words 0..29
	tfLR    = 30 // x30 / link register
	tfELR   = 31 // exception-return address
	tfSPSR  = 32 // saved processor state
	tfPad   = 33
)

// Trapframe is a view over the 34-word region the exception entry path
// pushes onto (and the exception-return path pops from) a task's own
// stack. It never copies the underlying memory: Regs points directly at
// the task's stack.
type Trapframe struct {
	Regs *[TrapframeWords]uint64
}

// PC returns the address exception-return will resume at.
func (tf Trapframe) PC() uint64 { return tf.Regs[tfELR] }

// SetPC overrides the resume address.
func (tf Trapframe) SetPC(pc uint64) { tf.Regs[tfELR] = pc }

// SPSR returns the saved processor state word.
func (tf Trapframe) SPSR() uint64 { return tf.Regs[tfSPSR] }

// LR returns the saved link register (x30).
func (tf Trapframe) LR() uint64 { return tf.Regs[tfLR] }

// SetLR overrides the saved link register.
func (tf Trapframe) SetLR(lr uint64) { tf.Regs[tfLR] = lr }

// SetX0 overrides general register x0 (used to pass an argument to a new
// task's entry point, if ever needed; entry points in this kernel take
// none, but the slot exists because the trapframe format is fixed).
func (tf Trapframe) SetX0(v uint64) { tf.Regs[tfX0] = v }

// NewTrapframe synthesises the frame for a brand-new task (§4.7
// task_create): general registers zero, LR set to the exit trampoline,
// ELR set to entry, SPSR selecting EL1h with IRQs unmasked. stackTop must
// be 16-byte aligned and point one-past the last usable byte of the
// task's stack; the returned value is the stack pointer to store in the
// TCB's sp field.
func NewTrapframe(stackTop uint64, entry uint64, exitTrampoline uint64) (sp uint64, tf Trapframe) {
	sp = stackTop - TrapframeWords*8
	regs := (*[TrapframeWords]uint64)(ptrAt(sp))

	for i := range regs {
		regs[i] = 0
	}

	regs[tfLR] = exitTrampoline
	regs[tfELR] = entry
	regs[tfSPSR] = spsrTaskUnmasked

	return sp, Trapframe{Regs: regs}
}

// TrapframeAt returns a view over the trapframe already resident at sp,
// as built by the IRQ entry path (§4.8) or by NewTrapframe.
func TrapframeAt(sp uint64) Trapframe {
	return Trapframe{Regs: (*[TrapframeWords]uint64)(ptrAt(sp))}
}

// ptrAt converts a raw stack address into a pointer to a trapframe-sized
// register array. Every caller holds sp values synthesised by this
// package or handed back by the exception entry assembly, never
// user-supplied data.
func ptrAt(sp uint64) unsafe.Pointer {
	return unsafe.Pointer(uintptr(sp))
}
