package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Corpus != "default" {
		t.Errorf("corpus = %q, want default", cfg.Corpus)
	}
	if cfg.WatchInterval != time.Second {
		t.Errorf("watch interval = %v, want 1s", cfg.WatchInterval)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "codegraph.yaml")
	data := "db_path: /tmp/g.db\ncorpus: myrepo\nworkers: 4\nwatch_interval: 5s\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPath != "/tmp/g.db" || cfg.Corpus != "myrepo" || cfg.Workers != 4 {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.WatchInterval != 5*time.Second {
		t.Errorf("watch interval = %v, want 5s", cfg.WatchInterval)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CODEGRAPH_DB", "/tmp/env.db")
	t.Setenv("CODEGRAPH_CORPUS", "envcorpus")
	t.Setenv("CODEGRAPH_WORKERS", "8")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPath != "/tmp/env.db" {
		t.Errorf("db = %q", cfg.DBPath)
	}
	if cfg.Corpus != "envcorpus" {
		t.Errorf("corpus = %q", cfg.Corpus)
	}
	if cfg.Workers != 8 {
		t.Errorf("workers = %d", cfg.Workers)
	}
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte(":\n\t- nope"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}
