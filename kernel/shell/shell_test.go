// Copyright (c) The rpi4-bare-metal-os Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package shell

import (
	"strings"
	"testing"
)

type fakeConsole struct {
	lines []string
	out   strings.Builder
}

func (c *fakeConsole) Puts(s string) { c.out.WriteString(s) }

func (c *fakeConsole) ReadLine() string {
	if len(c.lines) == 0 {
		return ""
	}
	l := c.lines[0]
	c.lines = c.lines[1:]
	return l
}

type fakeClock struct{ freq uint32 }

func (c fakeClock) TimerFreq() uint32 { return c.freq }

type fakePages struct {
	total, free, used int
	nextAddr          uint64
}

func (p *fakePages) AllocN(count int) (uint64, bool) {
	if p.free < count {
		return 0, false
	}
	p.free -= count
	p.used += count
	p.nextAddr += uint64(count) * 4096
	return p.nextAddr, true
}

func (p *fakePages) FreeN(addr uint64, count int) {
	p.free += count
	p.used -= count
}

func (p *fakePages) Stats() (int, int, int) { return p.total, p.free, p.used }

type fakeHeap struct{ next uint64 }

func (h *fakeHeap) Alloc(size int) (uint64, bool) {
	h.next += uint64(size)
	return h.next, true
}

func (h *fakeHeap) Free(ptr uint64, onBadMagic func(uint64)) {}

type fakeSched struct {
	tasks   []TaskSnapshot
	killed  map[int]bool
	created int
}

func (s *fakeSched) Create(entry func(), name string) (int, bool) {
	s.created++
	id := len(s.tasks) + 1
	s.tasks = append(s.tasks, TaskSnapshot{ID: id, Name: name, State: "READY"})
	return id, true
}

func (s *fakeSched) Kill(id int) bool {
	if s.killed == nil {
		s.killed = map[int]bool{}
	}
	for i, t := range s.tasks {
		if t.ID == id {
			s.tasks[i].State = "DEAD"
			s.killed[id] = true
			return true
		}
	}
	return false
}

func (s *fakeSched) List() []TaskSnapshot { return s.tasks }
func (s *fakeSched) Ticks() uint64        { return 42 }
func (s *fakeSched) Sleep(ms int)         {}
func (s *fakeSched) Exit()                {}

type fakeFS struct {
	cwd     string
	entries []FSEntry
	files   map[string][]byte
}

func (f *fakeFS) Mkdir(path string) bool { return true }
func (f *fakeFS) Rmdir(path string) bool { return true }
func (f *fakeFS) Touch(path string) bool {
	if f.files == nil {
		f.files = map[string][]byte{}
	}
	f.files[path] = nil
	return true
}
func (f *fakeFS) Write(path string, content []byte) bool {
	if f.files == nil {
		f.files = map[string][]byte{}
	}
	f.files[path] = content
	return true
}
func (f *fakeFS) Read(path string) ([]byte, bool) {
	data, ok := f.files[path]
	return data, ok
}
func (f *fakeFS) Rm(path string) bool {
	delete(f.files, path)
	return true
}
func (f *fakeFS) Ls(path string) ([]FSEntry, bool) { return f.entries, true }
func (f *fakeFS) Cd(path string) bool              { f.cwd = path; return true }
func (f *fakeFS) Pwd() string                       { return f.cwd }

func TestShellInfo(t *testing.T) {
	c := &fakeConsole{}
	s := New()
	s.Console = c
	s.Clock = fakeClock{freq: 54000000}

	s.Dispatch("info")

	if !strings.Contains(c.out.String(), "Cortex-A72") || !strings.Contains(c.out.String(), "54000000 Hz") {
		t.Fatalf("info output = %q", c.out.String())
	}
}

func TestShellSpawnAndPs(t *testing.T) {
	c := &fakeConsole{}
	s := New()
	s.Console = c
	s.Sched = &fakeSched{}

	s.Dispatch("spawn")
	if !strings.Contains(c.out.String(), "Spawning 'counter' and 'spinner'...") {
		t.Fatalf("spawn output = %q", c.out.String())
	}

	c.out.Reset()
	s.Dispatch("ps")
	if !strings.Contains(c.out.String(), "counter") || !strings.Contains(c.out.String(), "spinner") {
		t.Fatalf("ps output = %q", c.out.String())
	}
}

func TestShellKillShellRefused(t *testing.T) {
	c := &fakeConsole{}
	s := New()
	s.Console = c
	s.Sched = &fakeSched{}

	s.Dispatch("kill 0")

	if !strings.Contains(c.out.String(), "Cannot kill the shell (task 0)") {
		t.Fatalf("kill 0 output = %q", c.out.String())
	}
}

func TestShellPgallocPgfree(t *testing.T) {
	c := &fakeConsole{}
	s := New()
	s.Console = c
	s.Pages = &fakePages{total: 16, free: 16}

	s.Dispatch("pgalloc")
	if !strings.Contains(c.out.String(), "Page at 0x") {
		t.Fatalf("pgalloc output = %q", c.out.String())
	}

	c.out.Reset()
	s.Dispatch("pgfree 1000")
	if !strings.Contains(c.out.String(), "freed") {
		t.Fatalf("pgfree output = %q", c.out.String())
	}
}

func TestShellCatWriteRm(t *testing.T) {
	c := &fakeConsole{lines: []string{"Hello", ""}}
	s := New()
	s.Console = c
	s.FS = &fakeFS{}

	s.Dispatch("write hi")

	c.out.Reset()
	s.Dispatch("cat hi")
	if c.out.String() != "Hello\n" {
		t.Fatalf("cat output = %q, want %q", c.out.String(), "Hello\n")
	}

	s.Dispatch("rm hi")

	c.out.Reset()
	s.Dispatch("cat hi")
	if c.out.String() != "cat: not found: hi\r\n" {
		t.Fatalf("cat after rm output = %q", c.out.String())
	}
}

func TestShellHistoryRecordsCommands(t *testing.T) {
	c := &fakeConsole{}
	s := New()
	s.Console = c

	s.history.Add("ls")
	s.history.Add("pwd")

	c.out.Reset()
	s.Dispatch("history")

	if c.out.String() != "ls\r\npwd\r\n" {
		t.Fatalf("history output = %q", c.out.String())
	}
}

func TestShellUnknownCommand(t *testing.T) {
	c := &fakeConsole{}
	s := New()
	s.Console = c

	s.Dispatch("bogus")

	if !strings.Contains(c.out.String(), "unknown command: bogus") {
		t.Fatalf("unknown command output = %q", c.out.String())
	}
}
