package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{EnvWeights, EnvMetadata, EnvORTLib, EnvInterp, EnvViewer, EnvLogLevel} {
		t.Setenv(k, "")
	}

	c := FromEnv()
	if c.WeightsPath != "protein.onnx" {
		t.Errorf("WeightsPath = %q", c.WeightsPath)
	}
	if c.Interp != "nearest" || c.LogLevel != "warn" {
		t.Errorf("got %+v", c)
	}
	if c.MetadataPath != "" || c.ORTLibrary != "" || c.Viewer != "" {
		t.Errorf("optional paths should be empty: %+v", c)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv(EnvWeights, "/models/vgg.onnx")
	t.Setenv(EnvInterp, "lanczos3")
	t.Setenv(EnvViewer, "feh")

	c := FromEnv()
	if c.WeightsPath != "/models/vgg.onnx" || c.Interp != "lanczos3" || c.Viewer != "feh" {
		t.Errorf("got %+v", c)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("CRYSTAL_METADATA=meta.json\nCRYSTAL_LOG_LEVEL=debug\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	chdir(t, dir)
	t.Setenv(EnvMetadata, "")
	os.Unsetenv(EnvMetadata)
	t.Setenv(EnvLogLevel, "error")

	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.MetadataPath != "meta.json" {
		t.Errorf("MetadataPath = %q, want value from .env", c.MetadataPath)
	}
	if c.LogLevel != "error" {
		t.Errorf("LogLevel = %q, environment should win over .env", c.LogLevel)
	}
}

func TestLoadWithoutDotEnv(t *testing.T) {
	chdir(t, t.TempDir())
	if _, err := Load(); err != nil {
		t.Fatalf("Load without .env: %v", err)
	}
}

// chdir changes the working directory for the duration of the test
// (equivalent to testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(old) })
}
