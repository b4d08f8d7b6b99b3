package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "quenito.yaml"))
	if err != nil {
		t.Fatalf("Load returned error for missing file: %v", err)
	}

	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("missing file should yield defaults (-want +got):\n%s", diff)
	}
}

func TestLoadMergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "quenito.yaml")
	content := `
browser:
  headless: true
  navigation_timeout: 10s
automation:
  max_iterations: 50
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if !cfg.Browser.Headless {
		t.Error("headless override not applied")
	}
	if cfg.Automation.MaxIterations != 50 {
		t.Errorf("max_iterations = %d, want 50", cfg.Automation.MaxIterations)
	}
	// Untouched fields keep defaults.
	if cfg.Knowledge.Path != "data/knowledge_base.json" {
		t.Errorf("knowledge path = %q, want default", cfg.Knowledge.Path)
	}
	if got := cfg.GetNavigationTimeout(); got != 10*time.Second {
		t.Errorf("navigation timeout = %v, want 10s", got)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quenito.yaml")
	if err := os.WriteFile(path, []byte("browser: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("QUENITO_KNOWLEDGE", "/tmp/kb.json")
	t.Setenv("QUENITO_HEADLESS", "true")

	cfg, err := Load(filepath.Join(t.TempDir(), "quenito.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Knowledge.Path != "/tmp/kb.json" {
		t.Errorf("knowledge path = %q, want env override", cfg.Knowledge.Path)
	}
	if !cfg.Browser.Headless {
		t.Error("QUENITO_HEADLESS override not applied")
	}
}

func TestLoadFromWorkspaceFindsParentConfig(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "quenito.yaml"), []byte("name: custom\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromWorkspace(nested)
	if err != nil {
		t.Fatalf("LoadFromWorkspace failed: %v", err)
	}
	if cfg.Name != "custom" {
		t.Errorf("name = %q, want config discovered from parent", cfg.Name)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "quenito.yaml")

	want := DefaultConfig()
	want.Automation.MaxIterations = 42
	if err := want.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}
