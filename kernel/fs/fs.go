// In-memory hierarchical filesystem for the shell's ls/cd/cat surface
// https://github.com/ZackZahi/rpi4-bare-metal-os
//
// Copyright (c) The rpi4-bare-metal-os Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fs implements the pool-allocated node tree of spec §6/§9: a
// fixed arena of nodes addressed by index rather than pointer, so the
// root's "parent points at itself" cycle (§9, "Cyclic references in
// the filesystem") is a plain integer lookup instead of a self-owning
// pointer. Grounded on the teacher's arena-style allocator in
// dma/region.go (a Mutex-guarded fixed pool with linked traversal),
// adapted here to a tree instead of a free list.
package fs

import (
	"strings"
	"sync"
)

// Kind tags a node as a file or a directory (§3: filesystem node).
type Kind int

const (
	File Kind = iota
	Dir
)

// MaxNodes bounds the node arena (§6: "pool of up to 64 nodes").
const MaxNodes = 64

// MaxFileSize caps file content (§6: "each file capped at 4 KiB").
const MaxFileSize = 4096

// MaxNameLen is the longest path component.
const MaxNameLen = 31

const rootIndex = 0

// node is one arena slot. children are linked through firstChild/next
// rather than a slice, mirroring the TCB pool's singly linked style
// (kernel/sched.TCB.next) rather than introducing a second allocation
// strategy for the same repo.
type node struct {
	inUse  bool
	kind   Kind
	name   string
	parent int
	// firstChild/next form a singly linked sibling list; -1 is the
	// null link (matching spec §3's "null when not queued" idiom).
	firstChild int
	next       int
	data       []byte
}

// FS is the process-wide filesystem instance (§9: "process-wide...
// Encapsulate each inside a module whose single public instance is
// guarded"). The scheduler spinlock does not reach here since fs
// operations run only from the shell task, never from IRQ context;
// a plain Mutex is the serialisation the teacher's dma.Region uses for
// the analogous "no IRQ reentrancy" case.
type FS struct {
	sync.Mutex

	nodes [MaxNodes]node
	cwd   int
}

// Init resets the filesystem to a single root directory and positions
// cwd at it. Root's parent is itself (§9).
func (f *FS) Init() {
	f.Lock()
	defer f.Unlock()

	for i := range f.nodes {
		f.nodes[i] = node{firstChild: -1, next: -1}
	}

	f.nodes[rootIndex] = node{
		inUse:      true,
		kind:       Dir,
		name:       "/",
		parent:     rootIndex,
		firstChild: -1,
		next:       -1,
	}

	f.cwd = rootIndex
}

func (f *FS) allocNode() int {
	for i := 1; i < MaxNodes; i++ {
		if !f.nodes[i].inUse {
			return i
		}
	}
	return -1
}

// split breaks a path into (absolute, components), dropping empty
// segments produced by repeated slashes.
func split(path string) (absolute bool, parts []string) {
	absolute = strings.HasPrefix(path, "/")

	for _, p := range strings.Split(path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}

	return absolute, parts
}

// resolve walks path (absolute or relative to cwd) and returns the
// index of the final component, or ok=false if any component is
// missing. "." stays in place; ".." moves to parent.
func (f *FS) resolve(path string) (idx int, ok bool) {
	absolute, parts := split(path)

	idx = f.cwd
	if absolute {
		idx = rootIndex
	}

	for _, p := range parts {
		switch p {
		case ".":
			continue
		case "..":
			idx = f.nodes[idx].parent
		default:
			child, found := f.childNamed(idx, p)
			if !found {
				return 0, false
			}
			idx = child
		}
	}

	return idx, true
}

// resolveParent resolves all but the last component of path, returning
// the parent index and the final component's name.
func (f *FS) resolveParent(path string) (parentIdx int, name string, ok bool) {
	absolute, parts := split(path)
	if len(parts) == 0 {
		return 0, "", false
	}

	name = parts[len(parts)-1]
	parts = parts[:len(parts)-1]

	idx := f.cwd
	if absolute {
		idx = rootIndex
	}

	for _, p := range parts {
		switch p {
		case ".":
			continue
		case "..":
			idx = f.nodes[idx].parent
		default:
			child, found := f.childNamed(idx, p)
			if !found {
				return 0, "", false
			}
			idx = child
		}
	}

	return idx, name, true
}

func (f *FS) childNamed(dirIdx int, name string) (idx int, ok bool) {
	for c := f.nodes[dirIdx].firstChild; c != -1; c = f.nodes[c].next {
		if f.nodes[c].name == name {
			return c, true
		}
	}
	return 0, false
}

func (f *FS) appendChild(dirIdx, childIdx int) {
	f.nodes[childIdx].next = f.nodes[dirIdx].firstChild
	f.nodes[dirIdx].firstChild = childIdx
}

func (f *FS) removeChild(dirIdx, childIdx int) {
	if f.nodes[dirIdx].firstChild == childIdx {
		f.nodes[dirIdx].firstChild = f.nodes[childIdx].next
		return
	}

	for c := f.nodes[dirIdx].firstChild; c != -1; c = f.nodes[c].next {
		if f.nodes[c].next == childIdx {
			f.nodes[c].next = f.nodes[childIdx].next
			return
		}
	}
}

// Mkdir creates a directory at path (§6: mkdir). Fails if the parent
// is missing, the name already exists, or the pool is exhausted.
func (f *FS) Mkdir(path string) bool {
	f.Lock()
	defer f.Unlock()

	parentIdx, name, ok := f.resolveParent(path)
	if !ok || f.nodes[parentIdx].kind != Dir || len(name) == 0 || len(name) > MaxNameLen {
		return false
	}

	if _, exists := f.childNamed(parentIdx, name); exists {
		return false
	}

	i := f.allocNode()
	if i == -1 {
		return false
	}

	f.nodes[i] = node{inUse: true, kind: Dir, name: name, parent: parentIdx, firstChild: -1, next: -1}
	f.appendChild(parentIdx, i)

	return true
}

// Rmdir removes an empty directory (§6: "refuses non-empty").
func (f *FS) Rmdir(path string) bool {
	f.Lock()
	defer f.Unlock()

	idx, ok := f.resolve(path)
	if !ok || idx == rootIndex || f.nodes[idx].kind != Dir {
		return false
	}

	if f.nodes[idx].firstChild != -1 {
		return false
	}

	f.removeChild(f.nodes[idx].parent, idx)
	f.nodes[idx] = node{firstChild: -1, next: -1}

	return true
}

// Touch creates an empty file at path, or truncates it to empty if it
// already exists.
func (f *FS) Touch(path string) bool {
	f.Lock()
	defer f.Unlock()

	parentIdx, name, ok := f.resolveParent(path)
	if !ok || f.nodes[parentIdx].kind != Dir || len(name) == 0 || len(name) > MaxNameLen {
		return false
	}

	if existing, exists := f.childNamed(parentIdx, name); exists {
		if f.nodes[existing].kind != File {
			return false
		}
		f.nodes[existing].data = nil
		return true
	}

	i := f.allocNode()
	if i == -1 {
		return false
	}

	f.nodes[i] = node{inUse: true, kind: File, name: name, parent: parentIdx, firstChild: -1, next: -1}
	f.appendChild(parentIdx, i)

	return true
}

// Write replaces a file's full content (§6: write). Truncates to
// MaxFileSize.
func (f *FS) Write(path string, content []byte) bool {
	f.Lock()
	defer f.Unlock()

	idx, ok := f.resolve(path)
	if !ok || f.nodes[idx].kind != File {
		return false
	}

	if len(content) > MaxFileSize {
		content = content[:MaxFileSize]
	}

	buf := make([]byte, len(content))
	copy(buf, content)
	f.nodes[idx].data = buf

	return true
}

// Read returns a file's content (§6: read returns pointer + size; in
// Go terms, a slice).
func (f *FS) Read(path string) (data []byte, ok bool) {
	f.Lock()
	defer f.Unlock()

	idx, found := f.resolve(path)
	if !found || f.nodes[idx].kind != File {
		return nil, false
	}

	return f.nodes[idx].data, true
}

// Rm removes a file.
func (f *FS) Rm(path string) bool {
	f.Lock()
	defer f.Unlock()

	idx, ok := f.resolve(path)
	if !ok || f.nodes[idx].kind != File {
		return false
	}

	f.removeChild(f.nodes[idx].parent, idx)
	f.nodes[idx] = node{firstChild: -1, next: -1}

	return true
}

// Entry describes one child for the `ls` command.
type Entry struct {
	Name string
	Dir  bool
}

// Ls lists the children of path (or cwd if path is empty).
func (f *FS) Ls(path string) (entries []Entry, ok bool) {
	f.Lock()
	defer f.Unlock()

	idx := f.cwd
	if path != "" {
		var found bool
		idx, found = f.resolve(path)
		if !found {
			return nil, false
		}
	}

	if f.nodes[idx].kind != Dir {
		return nil, false
	}

	for c := f.nodes[idx].firstChild; c != -1; c = f.nodes[c].next {
		entries = append(entries, Entry{Name: f.nodes[c].name, Dir: f.nodes[c].kind == Dir})
	}

	return entries, true
}

// Cd changes the current working directory (§6: relative resolution
// against a current-working-directory pointer).
func (f *FS) Cd(path string) bool {
	f.Lock()
	defer f.Unlock()

	idx, ok := f.resolve(path)
	if !ok || f.nodes[idx].kind != Dir {
		return false
	}

	f.cwd = idx

	return true
}

// Pwd returns the absolute path of the current working directory
// (§6: get-path, "reverse-walk to root").
func (f *FS) Pwd() string {
	f.Lock()
	defer f.Unlock()

	return f.pathOf(f.cwd)
}

func (f *FS) pathOf(idx int) string {
	if idx == rootIndex {
		return "/"
	}

	var parts []string
	for cur := idx; cur != rootIndex; cur = f.nodes[cur].parent {
		parts = append([]string{f.nodes[cur].name}, parts...)
	}

	return "/" + strings.Join(parts, "/")
}
