package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/codegraph/codegraph/internal/store"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestIngestBasic(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "app.py", `import os
from flask import Flask

class MyApp:
    def run(self):
        print("starting")

def helper():
    pass
`)

	s := newTestStore(t)
	stats, err := New(s).Ingest(context.Background(), root, "demo")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if stats.Files != 1 || stats.Skipped != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.Fingerprint == "" {
		t.Error("expected fingerprint")
	}

	labels, err := s.CountNodesByLabel("demo")
	if err != nil {
		t.Fatalf("CountNodesByLabel: %v", err)
	}
	if labels["File"] != 1 {
		t.Errorf("File count = %d", labels["File"])
	}
	if labels["Module"] != 3 {
		// MyApp plus the ghost modules for os and flask
		t.Errorf("Module count = %d, want 3", labels["Module"])
	}
	if labels["Function"] != 3 {
		// MyApp.run, helper, and the ghost print
		t.Errorf("Function count = %d, want 3", labels["Function"])
	}

	types, err := s.CountEdgesByType("demo")
	if err != nil {
		t.Fatalf("CountEdgesByType: %v", err)
	}
	if types["DEFINES"] != 3 {
		t.Errorf("DEFINES = %d, want 3", types["DEFINES"])
	}
	if types["IMPORTS"] != 2 {
		t.Errorf("IMPORTS = %d, want 2", types["IMPORTS"])
	}
	if types["CALLS"] != 1 {
		t.Errorf("CALLS = %d, want 1", types["CALLS"])
	}

	files, err := s.FindNodesByFile("demo", "app.py")
	if err != nil {
		t.Fatalf("FindNodesByFile: %v", err)
	}
	var fileNode *store.Node
	for _, n := range files {
		if n.Label == "File" {
			fileNode = n
		}
	}
	if fileNode == nil {
		t.Fatal("File node missing")
	}
	if fileNode.Properties["language"] != "python" {
		t.Errorf("language = %v", fileNode.Properties["language"])
	}
	if d, _ := fileNode.Properties["digest"].(string); d == "" {
		t.Error("digest missing")
	}

	c, err := s.GetCorpus("demo")
	if err != nil || c == nil {
		t.Fatalf("GetCorpus: %v %v", c, err)
	}
	if c.Fingerprint != stats.Fingerprint {
		t.Errorf("stored fingerprint %q != %q", c.Fingerprint, stats.Fingerprint)
	}
}

func TestIngestRebuildReplaces(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "m.py", "def foo():\n    pass\n")

	s := newTestStore(t)
	ing := New(s)
	if _, err := ing.Ingest(context.Background(), root, "demo"); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	foo, err := s.FindNodesByName("demo", "Function", "foo")
	if err != nil || len(foo) != 1 {
		t.Fatalf("expected foo defined: %v %v", foo, err)
	}

	// Rename the function and rebuild: foo must vanish, not linger
	writeFile(t, root, "m.py", "def bar():\n    pass\n")
	if _, err := ing.Ingest(context.Background(), root, "demo"); err != nil {
		t.Fatalf("re-Ingest: %v", err)
	}

	foo, err = s.FindNodesByName("demo", "Function", "foo")
	if err != nil {
		t.Fatalf("FindNodesByName: %v", err)
	}
	if len(foo) != 0 {
		t.Errorf("stale foo survived rebuild: %+v", foo)
	}
	bar, err := s.FindNodesByName("demo", "Function", "bar")
	if err != nil || len(bar) != 1 {
		t.Fatalf("expected bar defined: %v %v", bar, err)
	}
}

func TestIngestIdempotent(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.py", "def f():\n    g()\n")
	writeFile(t, root, "b.py", "def g():\n    pass\n")

	s := newTestStore(t)
	ing := New(s)
	first, err := ing.Ingest(context.Background(), root, "demo")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	second, err := ing.Ingest(context.Background(), root, "demo")
	if err != nil {
		t.Fatalf("re-Ingest: %v", err)
	}

	if first.Nodes != second.Nodes || first.Edges != second.Edges {
		t.Errorf("rebuild changed counts: %+v then %+v", first, second)
	}
	if first.Fingerprint != second.Fingerprint {
		t.Errorf("fingerprint drifted: %q then %q", first.Fingerprint, second.Fingerprint)
	}
}

func TestIngestUnreadableFileSkipped(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "good.py", "def f():\n    pass\n")
	// A dangling symlink survives discovery but fails to read
	if err := os.Symlink(filepath.Join(root, "gone.py"), filepath.Join(root, "broken.py")); err != nil {
		t.Skipf("symlink: %v", err)
	}

	s := newTestStore(t)
	stats, err := New(s).Ingest(context.Background(), root, "demo")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if stats.Files != 1 {
		t.Errorf("files = %d, want 1", stats.Files)
	}
	if stats.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", stats.Skipped)
	}

	f, err := s.FindNodesByName("demo", "Function", "f")
	if err != nil || len(f) != 1 {
		t.Fatalf("good file not indexed: %v %v", f, err)
	}
}

func TestIngestSyntaxErrorTolerated(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "bad.py", "def broken(:\n")
	for i := 0; i < 4; i++ {
		writeFile(t, root, fmt.Sprintf("ok%d.py", i), fmt.Sprintf("def fn%d():\n    pass\n", i))
	}

	s := newTestStore(t)
	stats, err := New(s).Ingest(context.Background(), root, "demo")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	// The malformed file still counts and still gets its File node; it just
	// contributes no structural facts
	if stats.Files != 5 || stats.Skipped != 0 {
		t.Errorf("stats = %+v", stats)
	}

	labels, err := s.CountNodesByLabel("demo")
	if err != nil {
		t.Fatalf("CountNodesByLabel: %v", err)
	}
	if labels["File"] != 5 {
		t.Errorf("File count = %d, want 5", labels["File"])
	}
	if labels["Function"] != 4 {
		t.Errorf("Function count = %d, want 4", labels["Function"])
	}
	if bad, _ := s.FindNodesByFile("demo", "bad.py"); len(bad) != 1 || bad[0].Label != "File" {
		t.Errorf("bad.py nodes = %+v", bad)
	}
}

func TestIngestGhostInferred(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "m.py", "def f():\n    missing()\n")

	s := newTestStore(t)
	if _, err := New(s).Ingest(context.Background(), root, "demo"); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	ghosts, err := s.FindNodesByName("demo", "Function", "missing")
	if err != nil {
		t.Fatalf("FindNodesByName: %v", err)
	}
	if len(ghosts) != 1 {
		t.Fatalf("expected 1 ghost, got %d", len(ghosts))
	}
	if ghosts[0].Properties["inferred"] != true {
		t.Errorf("ghost missing inferred flag: %+v", ghosts[0].Properties)
	}
	if ghosts[0].FilePath != "" {
		t.Errorf("ghost has a file path: %q", ghosts[0].FilePath)
	}

	// Defined functions carry no inferred flag
	defined, err := s.FindNodesByName("demo", "Function", "f")
	if err != nil || len(defined) != 1 {
		t.Fatalf("FindNodesByName f: %v %v", defined, err)
	}
	if _, ok := defined[0].Properties["inferred"]; ok {
		t.Errorf("defined function flagged inferred: %+v", defined[0].Properties)
	}
}

func TestIngestCrossFileCallFanOut(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.py", "def shared():\n    pass\n")
	writeFile(t, root, "b.py", "def shared():\n    pass\n")
	writeFile(t, root, "c.py", "def caller():\n    shared()\n")

	s := newTestStore(t)
	if _, err := New(s).Ingest(context.Background(), root, "demo"); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	// Name-only resolution links the caller to every same-named definition
	callers, err := s.FindNodesByName("demo", "Function", "caller")
	if err != nil || len(callers) != 1 {
		t.Fatalf("FindNodesByName caller: %v %v", callers, err)
	}
	edges, err := s.FindEdgesBySourceAndType(callers[0].ID, "CALLS")
	if err != nil {
		t.Fatalf("FindEdgesBySourceAndType: %v", err)
	}
	if len(edges) != 2 {
		t.Errorf("expected CALLS fan-out to 2 definitions, got %d", len(edges))
	}

	shared, err := s.FindNodesByName("demo", "Function", "shared")
	if err != nil {
		t.Fatalf("FindNodesByName shared: %v", err)
	}
	if len(shared) != 2 {
		t.Errorf("expected 2 shared definitions, got %d", len(shared))
	}
	for _, n := range shared {
		if _, ok := n.Properties["inferred"]; ok {
			t.Errorf("defined node flagged inferred: %+v", n)
		}
	}
}

func TestIngestMixedTree(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "app.py", "def f():\n    pass\n")
	writeFile(t, root, "web/ui.js", "function g() { f(); }\n")
	writeFile(t, root, "svc/main.go", "package main\n\nfunc h() {}\n")
	writeFile(t, root, "node_modules/x/y.js", "function skip() {}\n")

	s := newTestStore(t)
	stats, err := New(s).Ingest(context.Background(), root, "demo")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if stats.Files != 3 {
		t.Errorf("files = %d, want 3", stats.Files)
	}

	for _, name := range []string{"f", "g", "h"} {
		nodes, findErr := s.FindNodesByName("demo", "Function", name)
		if findErr != nil || len(nodes) != 1 {
			t.Errorf("function %s: %v %v", name, nodes, findErr)
		}
	}
	if nodes, _ := s.FindNodesByName("demo", "Function", "skip"); len(nodes) != 0 {
		t.Errorf("node_modules leaked into the graph: %+v", nodes)
	}
}
