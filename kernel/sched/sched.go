// Preemptive round-robin scheduler for a single-address-space kernel
// https://github.com/ZackZahi/rpi4-bare-metal-os
//
// Copyright (c) The rpi4-bare-metal-os Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sched

import (
	"unsafe"

	"github.com/ZackZahi/rpi4-bare-metal-os/arm64"
	"github.com/ZackZahi/rpi4-bare-metal-os/arm64/gic"
)

// Scheduler owns the fixed task pool, the ready queue and the single
// current task of the preempting core (§3, §4.7). On single-core Pi 4 boot this is the only
// instance; Init wires it as task 0's adopted context.
type Scheduler struct {
	cpu *arm64.CPU
	gic *gic.GIC

	pool [MaxTasks]TCB

	// head/tail form the singly linked FIFO ready queue (§3).
	head *TCB
	tail *TCB

	current *TCB

	nextID int
	ticks  uint64
}

// These four helpers fold a nil cpu into a no-op. A Scheduler built by
// New always carries a real CPU; one built directly for tests (as
// &Scheduler{}) exercises the pool/queue/tick logic without touching any
// hardware register.
func (s *Scheduler) irqDisable() {
	if s.cpu != nil {
		s.cpu.DisableInterrupts()
	}
}

func (s *Scheduler) irqEnable() {
	if s.cpu != nil {
		s.cpu.EnableInterrupts()
	}
}

func (s *Scheduler) waitInterrupt() {
	if s.cpu != nil {
		s.cpu.WaitInterrupt()
	}
}

func (s *Scheduler) rearmTimer() {
	if s.cpu != nil {
		s.cpu.Rearm()
	}
}

// acknowledgeTimerIRQ reads the CPU interface's IAR and writes the same
// id back to EOIR (§4.5, spec.md:99): "end-of-interrupt is signalled by
// writing the identification back to the end-of-interrupt register".
// Without this the GICv2 CPU interface's running priority never drops
// back down after the first tick, and the distributor stops presenting
// any interrupt at or below the timer's priority forever.
func (s *Scheduler) acknowledgeTimerIRQ() {
	if s.gic == nil {
		return
	}

	if id, ok := s.gic.Acknowledge(); ok {
		s.gic.EndOfInterrupt(id)
	}
}

// New returns a scheduler bound to cpu's timer for tick accounting and
// hw's CPU interface for interrupt acknowledge/EOI.
func New(cpu *arm64.CPU, hw *gic.GIC) *Scheduler {
	return &Scheduler{cpu: cpu, gic: hw}
}

// Init adopts slot 0 as RUNNING, representing the current execution
// context (the shell), with sp=0 — no saved frame yet; the first
// preempting IRQ builds one on its own stack (§4.7). Every other pool
// entry starts DEAD.
func (s *Scheduler) Init() {
	shell := &s.pool[0]
	shell.ID = 0
	shell.State = Running
	shell.setName("shell")
	shell.SP = 0

	s.current = shell
	s.nextID = 1

	for i := 1; i < MaxTasks; i++ {
		s.pool[i].State = Dead
		s.pool[i].ID = i
	}

	arm64.IRQHandler = s.ScheduleIRQ
}

func (s *Scheduler) enqueue(t *TCB) {
	t.next = nil

	if s.tail == nil {
		s.head = t
		s.tail = t
		return
	}

	s.tail.next = t
	s.tail = t
}

func (s *Scheduler) dequeue() *TCB {
	t := s.head
	if t == nil {
		return nil
	}

	s.head = t.next
	if s.head == nil {
		s.tail = nil
	}

	t.next = nil

	return t
}

// unlink removes t from the ready queue if present; used by Kill (§4.7).
func (s *Scheduler) unlink(t *TCB) bool {
	var prev *TCB

	for cur := s.head; cur != nil; cur = cur.next {
		if cur == t {
			if prev == nil {
				s.head = cur.next
			} else {
				prev.next = cur.next
			}

			if s.tail == cur {
				s.tail = prev
			}

			cur.next = nil

			return true
		}

		prev = cur
	}

	return false
}

// exitTrampolineAddr is the link-register target synthesised into every
// new task's trapframe (§4.7): "an internal exit trampoline that marks
// the task DEAD and enters a wait-for-interrupt loop".
func exitTrampolineAddr() uint64 {
	return funcAddr(exitTrampoline)
}

func exitTrampoline() {
	// Reached only via exception-return into a task whose entry point
	// returned; dispatchIRQ finds this task RUNNING on the next tick and
	// the Scheduler marks it DEAD before resuming someone else. The wait
	// loop exists purely so there is forward progress between here and
	// that next tick.
	for {
		arm64.WaitForInterrupt()
	}
}

// funcAddr returns the code address a Go func value points at, needed to
// fill the exception-return slot of a synthesised trapframe (§4.7).
func funcAddr(fn func()) uint64 {
	return **(**uint64)(unsafe.Pointer(&fn))
}

// Create finds a DEAD slot, assigns the next id, and synthesises a
// trapframe for entry at the top of the slot's stack (§4.7). Returns
// false without creating anything if the pool is exhausted — never
// fatal (§4.10).
func (s *Scheduler) Create(entry func(), name string) (id int, ok bool) {
	if entry == nil {
		return 0, false
	}

	s.irqDisable()
	defer s.irqEnable()

	var t *TCB

	for i := range s.pool {
		if s.pool[i].State == Dead && i != 0 {
			t = &s.pool[i]
			break
		}
	}

	if t == nil {
		return 0, false
	}

	t.ID = s.nextID
	s.nextID++

	t.State = Ready
	t.setName(name)
	t.SleepUntil = 0
	t.synthesizeFrame(funcAddr(entry), exitTrampolineAddr())

	s.enqueue(t)

	return t.ID, true
}

// wakeEligible promotes BLOCKED tasks whose deadline has passed to READY
// and onto the ready queue (§4.7 step 4: "along the way"). Called while
// scanning for a task to dispatch.
func (s *Scheduler) wakeEligible(now uint64) {
	for i := range s.pool {
		t := &s.pool[i]

		if t.State == Blocked && t.SleepUntil <= now {
			t.State = Ready
			s.enqueue(t)
		}
	}
}

// ScheduleIRQ implements schedule_irq(old_sp) -> new_sp (§4.7). It is
// installed as arm64.IRQHandler and must never grow its own stack
// (//go:nosplit transitively through dispatchIRQ).
//
//go:nosplit
func (s *Scheduler) ScheduleIRQ(oldSP uint64) uint64 {
	s.ticks++
	s.rearmTimer()
	s.acknowledgeTimerIRQ()

	if s.current == nil {
		return oldSP
	}

	s.current.SP = oldSP

	if s.current.State == Running {
		s.current.State = Ready
		s.enqueue(s.current)
	}

	s.wakeEligible(s.ticks)

	next := s.dequeue()

	if next == nil {
		s.current.State = Running
		return s.current.SP
	}

	next.State = Running
	s.current = next

	return next.SP
}

// Ticks returns the process-wide tick counter (§4.6: "increments a
// process-wide tick counter").
func (s *Scheduler) Ticks() uint64 {
	return s.ticks
}

// Sleep implements task_sleep(ms) (§4.7): rounds up to whole 100 ms
// ticks, records the deadline, marks BLOCKED, and busy-waits until the
// scheduler's dequeue scan flips the state back.
func (s *Scheduler) Sleep(ms int) {
	ticks := uint64((ms + 99) / 100)
	if ticks == 0 {
		ticks = 1
	}

	cur := s.current

	s.irqDisable()
	cur.SleepUntil = s.ticks + ticks
	cur.State = Blocked
	s.irqEnable()

	for cur.State == Blocked {
		s.waitInterrupt()
	}
}

// Yield is a no-op: preemption arrives at the next tick boundary (§4.7).
func (s *Scheduler) Yield() {}

// Exit implements task_exit() (§4.7): marks the calling task DEAD under
// mask, then waits for interrupts forever — the next IRQ schedules
// something else and the slot becomes reusable.
func (s *Scheduler) Exit() {
	s.irqDisable()
	s.current.State = Dead
	s.irqEnable()

	for {
		s.waitInterrupt()
	}
}

// Kill implements task_kill(id) (§4.7): refuses id 0 and refuses killing
// the caller; otherwise unlinks the target from the ready queue (if
// present) and marks it DEAD.
func (s *Scheduler) Kill(id int) (ok bool) {
	if id == 0 || (s.current != nil && s.current.ID == id) {
		return false
	}

	s.irqDisable()
	defer s.irqEnable()

	for i := range s.pool {
		t := &s.pool[i]

		if t.ID == id && t.State != Dead {
			s.unlink(t)
			t.State = Dead
			return true
		}
	}

	return false
}

// Snapshot describes one task for the `ps`/`top` shell commands.
type Snapshot struct {
	ID    int
	Name  string
	State string
}

// List returns a snapshot of every task that has been created, including
// those that have since exited or been killed (listed as DEAD). Pool
// slots that were never used are omitted.
func (s *Scheduler) List() []Snapshot {
	out := make([]Snapshot, 0, MaxTasks)

	for i := range s.pool {
		t := &s.pool[i]

		if t.State == Dead && t.Name[0] == 0 {
			continue
		}

		out = append(out, Snapshot{ID: t.ID, Name: t.NameString(), State: t.State.String()})
	}

	return out
}
