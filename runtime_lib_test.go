package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/golfvision/golfball-detection-service/config"
)

func TestResolveRuntimeLib(t *testing.T) {
	dir := t.TempDir()
	lib := filepath.Join(dir, config.DefaultRuntimeLib())
	if err := os.WriteFile(lib, []byte("stub"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Run("directory", func(t *testing.T) {
		got, err := resolveRuntimeLib(dir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != lib {
			t.Errorf("got %q, want %q", got, lib)
		}
	})

	t.Run("file", func(t *testing.T) {
		got, err := resolveRuntimeLib(lib)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != lib {
			t.Errorf("got %q, want %q", got, lib)
		}
	})

	t.Run("bare name", func(t *testing.T) {
		got, err := resolveRuntimeLib("libonnxruntime-missing.so")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "libonnxruntime-missing.so" {
			t.Errorf("bare names go to the loader search path, got %q", got)
		}
	})

	t.Run("empty directory", func(t *testing.T) {
		if _, err := resolveRuntimeLib(t.TempDir()); err == nil {
			t.Error("expected an error for a directory without the library")
		}
	})

	t.Run("missing path", func(t *testing.T) {
		if _, err := resolveRuntimeLib(filepath.Join(dir, "nope", "lib.so")); err == nil {
			t.Error("expected an error for a missing path")
		}
	})
}

func TestResolveRuntimeLib_DefaultInEmptyDir(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(wd) }()

	def := config.DefaultRuntimeLib()
	got, err := resolveRuntimeLib(def)
	if err != nil {
		t.Fatalf("default %q must be left to the loader search path: %v", def, err)
	}
	if got != def {
		t.Errorf("got %q, want %q", got, def)
	}
}
