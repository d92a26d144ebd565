package graph

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/codegraph/codegraph/internal/ingest"
	"github.com/codegraph/codegraph/internal/store"
)

// buildCorpus indexes a small tree and returns the engine over it.
func buildCorpus(t *testing.T, files map[string]string) (*Engine, *store.Store) {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}

	s, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if _, err := ingest.New(s).Ingest(context.Background(), root, "demo"); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	return New(s), s
}

func TestDefinitionsOf(t *testing.T) {
	eng, _ := buildCorpus(t, map[string]string{
		"a.py": "def shared():\n    pass\n",
		"b.py": "def shared():\n    pass\n",
		"c.py": "def other():\n    pass\n",
	})
	ctx := context.Background()

	got := eng.DefinitionsOf(ctx, "demo", "shared")
	want := []string{"a.py", "b.py"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DefinitionsOf = %v, want %v", got, want)
	}

	if got := eng.DefinitionsOf(ctx, "demo", "nope"); len(got) != 0 {
		t.Errorf("expected empty result, got %v", got)
	}
}

func TestDefinitionsOfExcludesMethods(t *testing.T) {
	eng, _ := buildCorpus(t, map[string]string{
		"app.py": "class MyApp:\n    def run(self):\n        pass\n",
	})

	// Methods hang off their class, not the file
	if got := eng.DefinitionsOf(context.Background(), "demo", "run"); len(got) != 0 {
		t.Errorf("bare method name matched: %v", got)
	}
	if got := eng.DefinitionsOf(context.Background(), "demo", "MyApp.run"); len(got) != 0 {
		t.Errorf("qualified method matched file DEFINES: %v", got)
	}
}

func TestCallersOf(t *testing.T) {
	eng, _ := buildCorpus(t, map[string]string{
		"lib.py":  "def target():\n    pass\n",
		"one.py":  "def f():\n    target()\n",
		"two.py":  "def g():\n    target()\n",
		"noop.py": "def h():\n    pass\n",
	})
	ctx := context.Background()

	got := eng.CallersOf(ctx, "demo", "target")
	want := []string{"one.py", "two.py"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("CallersOf = %v, want %v", got, want)
	}
}

func TestCallersOfSharedNameUnion(t *testing.T) {
	// Two same-named functions in different files: callers of either are
	// reported for both. Resolution is by name, nothing finer.
	eng, _ := buildCorpus(t, map[string]string{
		"a.py": "def shared():\n    pass\n",
		"b.py": "def shared():\n    pass\n",
		"c.py": "def caller():\n    shared()\n",
	})

	got := eng.CallersOf(context.Background(), "demo", "shared")
	want := []string{"c.py"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("CallersOf = %v, want %v", got, want)
	}
}

func TestAttributeCallersOf(t *testing.T) {
	eng, _ := buildCorpus(t, map[string]string{
		"m.py": "def sync():\n    db.save()\n",
		"n.py": "def touch():\n    save()\n",
	})
	ctx := context.Background()

	got := eng.AttributeCallersOf(ctx, "demo", "save")
	want := []string{"m.py"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("AttributeCallersOf = %v, want %v", got, want)
	}

	// The bare call in n.py is CALLS, never CALLS_ATTR
	if got := eng.CallersOf(ctx, "demo", "save"); !reflect.DeepEqual(got, []string{"n.py"}) {
		t.Errorf("CallersOf = %v, want [n.py]", got)
	}
}

func TestDependentsOf(t *testing.T) {
	// views.py imports a module whose name matches the User class defined in
	// models.py, so the name-only IMPORTS resolution links the two. jobs.py
	// calls a function models.py defines. other.py touches neither.
	eng, _ := buildCorpus(t, map[string]string{
		"models.py": "class User:\n    pass\n\ndef validate():\n    pass\n",
		"views.py":  "import User\n\ndef render():\n    pass\n",
		"jobs.py":   "def cleanup():\n    validate()\n",
		"other.py":  "def misc():\n    pass\n",
	})

	got := eng.DependentsOf(context.Background(), "demo", "models.py")
	want := []string{"jobs.py", "views.py"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DependentsOf = %v, want %v", got, want)
	}
}

func TestDependentsOfImportNameMismatch(t *testing.T) {
	// from models import User records an IMPORTS edge to "models", which no
	// class defines, so the importer is not reported as a dependent.
	eng, _ := buildCorpus(t, map[string]string{
		"models.py": "class User:\n    pass\n",
		"views.py":  "from models import User\n\ndef render():\n    pass\n",
	})

	if got := eng.DependentsOf(context.Background(), "demo", "models.py"); len(got) != 0 {
		t.Errorf("DependentsOf = %v, want empty", got)
	}
}

func TestDependentsOfUnknownFile(t *testing.T) {
	eng, _ := buildCorpus(t, map[string]string{
		"a.py": "def f():\n    pass\n",
	})
	if got := eng.DependentsOf(context.Background(), "demo", "ghost.py"); len(got) != 0 {
		t.Errorf("expected empty result, got %v", got)
	}
}

func TestQueriesFailOpen(t *testing.T) {
	eng, s := buildCorpus(t, map[string]string{
		"a.py": "def f():\n    pass\n",
	})
	s.Close()

	// A broken store yields empty results, never a panic or error
	ctx := context.Background()
	if got := eng.DefinitionsOf(ctx, "demo", "f"); got != nil {
		t.Errorf("DefinitionsOf after close = %v", got)
	}
	if got := eng.CallersOf(ctx, "demo", "f"); got != nil {
		t.Errorf("CallersOf after close = %v", got)
	}
	if got := eng.AttributeCallersOf(ctx, "demo", "f"); got != nil {
		t.Errorf("AttributeCallersOf after close = %v", got)
	}
	if got := eng.DependentsOf(ctx, "demo", "a.py"); got != nil {
		t.Errorf("DependentsOf after close = %v", got)
	}
}
