package main

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Brownie44l1/crystal-classifier/internal/classify"
	"github.com/Brownie44l1/crystal-classifier/internal/config"
	"github.com/Brownie44l1/crystal-classifier/internal/model"
	"github.com/nfnt/resize"
	"go.uber.org/zap"
)

type fakePredictor struct {
	out []float32
	err error
}

func (f *fakePredictor) Predict([]float32) (*model.Prediction, error) {
	if f.err != nil {
		return nil, f.err
	}
	return model.NewPrediction(f.out, model.DefaultMetadata().Classes)
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewGray(image.Rect(0, 0, 8, 8))); err != nil {
		t.Fatal(err)
	}
}

func testConfig() *config.Config {
	return &config.Config{WeightsPath: "protein.onnx", Interp: "nearest", LogLevel: "error"}
}

func TestVersionFlag(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd(testConfig())
	root.SetOut(&out)
	root.SetArgs([]string{"--version"})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != Version {
		t.Errorf("version output = %q, want %q", got, Version)
	}
}

func TestRootRejectsBadFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"log level", []string{"--log-level", "chatty"}, "invalid log level"},
		{"interpolation", []string{"--interp", "cubic-spline", "--no-display"}, "unknown interpolation"},
		{"positional args", []string{"image.png"}, "unknown command"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := newRootCmd(testConfig())
			root.SetOut(io.Discard)
			root.SetErr(io.Discard)
			root.SetIn(strings.NewReader(""))
			root.SetArgs(tt.args)

			err := root.Execute()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Execute() = %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestCollectPaths(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "b.png"))
	writePNG(t, filepath.Join(dir, "a.jpg"))
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644)
	os.Mkdir(filepath.Join(dir, "nested.png"), 0o755)

	got, err := collectPaths([]string{dir, "/nonexistent/file.png"})
	if err != nil {
		t.Fatalf("collectPaths: %v", err)
	}
	want := []string{
		filepath.Join(dir, "a.jpg"),
		filepath.Join(dir, "b.png"),
		"/nonexistent/file.png",
	}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("collectPaths = %v, want %v", got, want)
	}
}

func TestRunBatch(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "crystal_01.png")
	writePNG(t, good)

	pipe := classify.New(&fakePredictor{out: []float32{0.93, 0.07}}, model.DefaultMetadata(), resize.NearestNeighbor, zap.NewNop())

	var out bytes.Buffer
	summary, err := runBatch(context.Background(), pipe, []string{good, "/nonexistent/file.png", good}, &out, io.Discard, zap.NewNop())
	if err != nil {
		t.Fatalf("runBatch: %v", err)
	}
	if summary.Classified != 2 || summary.Skipped != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if summary.Counts[model.LabelGotCrystal] != 2 {
		t.Errorf("counts = %v", summary.Counts)
	}

	line := good + "\tgotcrystal\t0.93"
	if got := out.String(); got != line+"\n"+line+"\n" {
		t.Errorf("output = %q", got)
	}
}

func TestRunBatchStopsOnPredictError(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "a.png")
	writePNG(t, good)

	boom := errors.New("inference failed")
	pipe := classify.New(&fakePredictor{err: boom}, model.DefaultMetadata(), resize.NearestNeighbor, zap.NewNop())

	_, err := runBatch(context.Background(), pipe, []string{good, good}, io.Discard, io.Discard, zap.NewNop())
	if !errors.Is(err, boom) {
		t.Errorf("runBatch() = %v, want %v", err, boom)
	}
}

func TestRunBatchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pipe := classify.New(&fakePredictor{out: []float32{1, 0}}, model.DefaultMetadata(), resize.NearestNeighbor, zap.NewNop())
	summary, err := runBatch(ctx, pipe, []string{"a.png", "b.png"}, io.Discard, io.Discard, zap.NewNop())
	if err != nil {
		t.Errorf("runBatch() = %v, want a clean stop", err)
	}
	if !summary.Interrupted {
		t.Error("summary not marked interrupted")
	}
	if summary.Classified != 0 {
		t.Errorf("classified %d images after cancel", summary.Classified)
	}
}
