// Copyright (c) The rpi4-bare-metal-os Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fs

import "testing"

func newTestFS(t *testing.T) *FS {
	t.Helper()
	f := &FS{}
	f.Init()
	return f
}

func TestMkdirCdWriteCat(t *testing.T) {
	f := newTestFS(t)

	if !f.Mkdir("/a") {
		t.Fatalf("mkdir /a failed")
	}

	if !f.Cd("/a") {
		t.Fatalf("cd /a failed")
	}

	if f.Pwd() != "/a" {
		t.Fatalf("pwd = %q, want /a", f.Pwd())
	}

	if !f.Touch("hi") {
		t.Fatalf("touch hi failed")
	}

	if !f.Write("hi", []byte("Hello\n")) {
		t.Fatalf("write hi failed")
	}

	data, ok := f.Read("hi")
	if !ok || string(data) != "Hello\n" {
		t.Fatalf("read hi = %q, %v, want %q, true", data, ok, "Hello\n")
	}

	if !f.Rm("hi") {
		t.Fatalf("rm hi failed")
	}

	if _, ok := f.Read("hi"); ok {
		t.Fatalf("read after rm must fail")
	}
}

func TestRmdirRefusesNonEmpty(t *testing.T) {
	f := newTestFS(t)

	f.Mkdir("/a")
	f.Touch("/a/file")

	if f.Rmdir("/a") {
		t.Fatalf("rmdir must refuse a non-empty directory")
	}

	f.Rm("/a/file")

	if !f.Rmdir("/a") {
		t.Fatalf("rmdir should succeed once empty")
	}
}

func TestDotDotNavigation(t *testing.T) {
	f := newTestFS(t)

	f.Mkdir("/a")
	f.Mkdir("/a/b")
	f.Cd("/a/b")

	if !f.Cd("..") {
		t.Fatalf("cd .. failed")
	}

	if f.Pwd() != "/a" {
		t.Fatalf("pwd after cd .. = %q, want /a", f.Pwd())
	}

	if !f.Cd("../..") {
		t.Fatalf("cd ../.. failed")
	}

	if f.Pwd() != "/" {
		t.Fatalf("pwd after cd ../.. = %q, want /", f.Pwd())
	}
}

func TestRootParentIsSelf(t *testing.T) {
	f := newTestFS(t)

	if !f.Cd("/..") {
		t.Fatalf("cd /.. from root must succeed (root's parent is itself)")
	}

	if f.Pwd() != "/" {
		t.Fatalf("root's parent must resolve back to root, got %q", f.Pwd())
	}
}

func TestLsListsChildren(t *testing.T) {
	f := newTestFS(t)

	f.Mkdir("/a")
	f.Touch("/b")

	entries, ok := f.Ls("/")
	if !ok || len(entries) != 2 {
		t.Fatalf("ls / = %v, %v, want 2 entries", entries, ok)
	}
}

func TestDuplicateNameRejected(t *testing.T) {
	f := newTestFS(t)

	f.Mkdir("/a")

	if f.Mkdir("/a") {
		t.Fatalf("mkdir must reject an existing name")
	}

	if f.Touch("/a") {
		t.Fatalf("touch must reject a name already used by a directory")
	}
}

func TestCatNotFound(t *testing.T) {
	f := newTestFS(t)

	if _, ok := f.Read("hi"); ok {
		t.Fatalf("read of a never-created file must fail")
	}
}

func TestPoolExhaustion(t *testing.T) {
	f := newTestFS(t)

	created := 0
	for i := 0; i < MaxNodes+4; i++ {
		if f.Touch("/file" + string(rune('a'+i%26)) + string(rune('0'+i/26))) {
			created++
		}
	}

	if created != MaxNodes-1 {
		t.Fatalf("created %d files, want %d (pool minus root)", created, MaxNodes-1)
	}
}
