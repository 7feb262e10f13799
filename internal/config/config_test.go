package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultFlags(t *testing.T) {
	f := DefaultFlags()
	if f.CollapseExternalContext || f.CollapseIndirectContext || f.DropAtSinks {
		t.Fatal("DefaultFlags should have every bool flag false")
	}
	if f.ParallelWorkers != 0 {
		t.Fatal("DefaultFlags should leave ParallelWorkers at 0 (solver picks)")
	}
}

func TestLoadFlagsYAMLMissingFileReturnsDefaults(t *testing.T) {
	f, err := LoadFlagsYAML(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("LoadFlagsYAML on a missing file returned an error: %v", err)
	}
	if f != DefaultFlags() {
		t.Fatalf("LoadFlagsYAML on a missing file = %+v, want defaults", f)
	}
}

func TestLoadFlagsYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "infoflow.yaml")
	doc := "drop_at_sinks: true\nparallel_workers: 8\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	f, err := LoadFlagsYAML(path)
	if err != nil {
		t.Fatalf("LoadFlagsYAML: %v", err)
	}
	if !f.DropAtSinks {
		t.Fatal("DropAtSinks should be true after loading the override file")
	}
	if f.ParallelWorkers != 8 {
		t.Fatalf("ParallelWorkers = %d, want 8", f.ParallelWorkers)
	}
	if f.CollapseExternalContext {
		t.Fatal("CollapseExternalContext was not set in the file and should remain false")
	}
}
