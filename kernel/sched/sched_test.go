// Copyright (c) The rpi4-bare-metal-os Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sched

import "testing"

func TestCreateAssignsReadyAndQueues(t *testing.T) {
	s := &Scheduler{}
	s.Init()

	id, ok := s.Create(func() {}, "worker")
	if !ok {
		t.Fatalf("Create failed on a fresh pool")
	}

	if id == 0 {
		t.Fatalf("Create must never reuse id 0 (reserved for the shell)")
	}

	if s.head == nil || s.head.ID != id {
		t.Fatalf("newly created task must be at the ready-queue head")
	}

	if s.pool[id].State != Ready {
		t.Fatalf("newly created task state = %v, want Ready", s.pool[id].State)
	}
}

func TestCreateExhaustion(t *testing.T) {
	s := &Scheduler{}
	s.Init()

	for i := 1; i < MaxTasks; i++ {
		if _, ok := s.Create(func() {}, "t"); !ok {
			t.Fatalf("Create failed before pool exhaustion at i=%d", i)
		}
	}

	if _, ok := s.Create(func() {}, "overflow"); ok {
		t.Fatalf("Create must fail once the pool is exhausted, not panic or corrupt state")
	}
}

func TestScheduleIRQNoCurrentReturnsUnchanged(t *testing.T) {
	s := &Scheduler{}

	got := s.ScheduleIRQ(0xdead)
	if got != 0xdead {
		t.Fatalf("ScheduleIRQ with no current task must return old_sp unchanged, got %#x", got)
	}
}

func TestScheduleIRQRoundRobinFIFO(t *testing.T) {
	s := &Scheduler{}
	s.Init()

	idA, _ := s.Create(func() {}, "a")
	idB, _ := s.Create(func() {}, "b")

	// shell (current) preempted: demoted to Ready, appended; "a" dequeued.
	newSP := s.ScheduleIRQ(0x1000)
	if s.current.ID != idA {
		t.Fatalf("first dispatch should pick task %d (FIFO head), got %d", idA, s.current.ID)
	}
	if newSP != s.pool[idA].SP {
		t.Fatalf("ScheduleIRQ must return the dispatched task's sp")
	}

	// "a" preempted: the queue is [b, shell] and "a" goes in behind them;
	// "b" should be next, since it was enqueued before "a" was re-enqueued
	// this tick.
	s.ScheduleIRQ(0x2000)
	if s.current.ID != idB {
		t.Fatalf("second dispatch should pick task %d, got %d", idB, s.current.ID)
	}
}

func TestScheduleIRQNoReadyKeepsCurrent(t *testing.T) {
	s := &Scheduler{}
	s.Init()

	sp := s.ScheduleIRQ(0x3000)
	if s.current.ID != 0 {
		t.Fatalf("with only the shell adopted, ScheduleIRQ must keep it current")
	}
	if sp != 0x3000 {
		t.Fatalf("ScheduleIRQ must return the same sp when no other task is ready")
	}
	if s.current.State != Running {
		t.Fatalf("kept-current task must be re-marked Running")
	}
}

func TestKillRefusesShellAndSelf(t *testing.T) {
	s := &Scheduler{}
	s.Init()

	if s.Kill(0) {
		t.Fatalf("Kill(0) must always fail (shell)")
	}

	if s.Kill(s.current.ID) {
		t.Fatalf("Kill must refuse to kill the calling task")
	}
}

func TestKillUnlinksAndMarksDead(t *testing.T) {
	s := &Scheduler{}
	s.Init()

	id, _ := s.Create(func() {}, "victim")

	if !s.Kill(id) {
		t.Fatalf("Kill should succeed on a queued, non-shell, non-self task")
	}

	if s.pool[id].State != Dead {
		t.Fatalf("killed task must be marked Dead")
	}

	for cur := s.head; cur != nil; cur = cur.next {
		if cur.ID == id {
			t.Fatalf("killed task must be unlinked from the ready queue")
		}
	}
}

func TestKillUnknownIDFails(t *testing.T) {
	s := &Scheduler{}
	s.Init()

	if s.Kill(17) {
		t.Fatalf("Kill of a never-created id must fail")
	}
}

func TestWakeEligiblePromotesExpiredSleepers(t *testing.T) {
	s := &Scheduler{}
	s.Init()

	id, _ := s.Create(func() {}, "sleeper")
	s.pool[id].State = Blocked
	s.pool[id].SleepUntil = 5
	s.unlink(&s.pool[id])

	s.ticks = 10
	s.wakeEligible(s.ticks)

	if s.pool[id].State != Ready {
		t.Fatalf("task with an expired deadline must become Ready on the dequeue scan")
	}
}
