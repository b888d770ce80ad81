package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"watermark/internal/faults"
	"watermark/internal/testsupport"
)

var gray = color.NRGBA{R: 90, G: 90, B: 90, A: 255}

func TestRunWatermarksInputFolder(t *testing.T) {
	env := setupCLITestEnv(t)
	for _, name := range []string{"a.png", "b.jpg"} {
		testsupport.WriteImage(t, filepath.Join(env.cfg.Paths.InputDir, name), 200, 150, gray)
	}

	out, _, err := runCLI(t, nil, env.configPath)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	requireContains(t, out, "[OK] 2 images watermarked")
	requireContains(t, out, "Sequential")
	for _, name := range []string{"a_mk.png", "b_mk.jpg"} {
		if _, err := os.Stat(filepath.Join(env.cfg.Paths.OutputDir, name)); err != nil {
			t.Fatalf("expected output %s: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(env.cfg.Paths.OutputDir, ".watermark.lock")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("lock file should be released, stat err=%v", err)
	}
}

func TestRunRecursiveWithOutputInsideInput(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.WriteImage(t, filepath.Join(env.cfg.Paths.InputDir, "a.png"), 120, 90, gray)
	testsupport.WriteImage(t, filepath.Join(env.cfg.Paths.InputDir, "nested", "b.png"), 120, 90, gray)
	output := filepath.Join(env.cfg.Paths.InputDir, "zz_out")

	out, _, err := runCLI(t, []string{"--recursive", "--output-folder", output}, env.configPath)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	requireContains(t, out, "[OK] 2 images watermarked")
	if n := testsupport.CountFiles(t, output); n != 2 {
		t.Fatalf("expected 2 outputs, found %d", n)
	}
	if _, err := os.Stat(filepath.Join(output, "nested", "b_mk.png")); err != nil {
		t.Fatalf("expected mirrored output: %v", err)
	}
}

func TestRunParallelFlagUsesUniqueNames(t *testing.T) {
	env := setupCLITestEnv(t)
	for _, name := range []string{"a.png", "b.png", "c.png"} {
		testsupport.WriteImage(t, filepath.Join(env.cfg.Paths.InputDir, name), 120, 90, gray)
	}

	out, _, err := runCLI(t, []string{"--enable-parallel", "--workers", "2", "--uuid-length", "8"}, env.configPath)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	requireContains(t, out, "Shared Memory Pool")
	entries, err := os.ReadDir(env.cfg.Paths.OutputDir)
	if err != nil {
		t.Fatal(err)
	}
	count := 0
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		count++
		// name_mk_ + 8 hex + .png
		if !strings.Contains(e.Name(), "_mk_") || len(e.Name()) != len("a_mk_")+8+len(".png") {
			t.Fatalf("unexpected output name %q", e.Name())
		}
	}
	if count != 3 {
		t.Fatalf("expected 3 outputs, got %d", count)
	}
}

func TestRunStopsOnFirstFailure(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.WriteImage(t, filepath.Join(env.cfg.Paths.InputDir, "a.png"), 64, 48, gray)
	testsupport.WriteCorrupt(t, filepath.Join(env.cfg.Paths.InputDir, "b.png"))
	testsupport.WriteImage(t, filepath.Join(env.cfg.Paths.InputDir, "c.png"), 64, 48, gray)

	out, _, err := runCLI(t, nil, env.configPath)
	if !errors.Is(err, faults.ErrDecode) {
		t.Fatalf("expected decode failure, got %v", err)
	}
	requireContains(t, err.Error(), "terminated after job for path")
	requireContains(t, out, "[ERROR] stopped at job #2")
	if n := testsupport.CountFiles(t, env.cfg.Paths.OutputDir); n != 1 {
		t.Fatalf("expected 1 output before the failure, got %d", n)
	}
}

func TestRunRejectsInvalidFlagBeforeDispatch(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.WriteImage(t, filepath.Join(env.cfg.Paths.InputDir, "a.png"), 64, 48, gray)

	_, _, err := runCLI(t, []string{"--opacity", "1.5"}, env.configPath)
	if !errors.Is(err, faults.ErrInvalidParameter) {
		t.Fatalf("expected invalid parameter, got %v", err)
	}
	if n := testsupport.CountFiles(t, env.cfg.Paths.OutputDir); n != 0 {
		t.Fatalf("no job may run after a validation failure, found %d outputs", n)
	}
}

func TestRunMissingWatermark(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.Remove(env.cfg.Watermark.Path); err != nil {
		t.Fatal(err)
	}
	_, _, err := runCLI(t, nil, env.configPath)
	if !errors.Is(err, faults.ErrInvalidParameter) {
		t.Fatalf("expected invalid parameter, got %v", err)
	}
	requireContains(t, err.Error(), "Watermark file")
}

func TestRunRecordsJournalAndHistory(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Journal.Enabled = true
	writeTestConfig(t, env.configPath, env.cfg)
	testsupport.WriteImage(t, filepath.Join(env.cfg.Paths.InputDir, "a.png"), 64, 48, gray)

	if _, _, err := runCLI(t, nil, env.configPath); err != nil {
		t.Fatalf("run: %v", err)
	}
	out, _, err := runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "completed")
	requireContains(t, out, "sequential")
}

func TestHistoryEmpty(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "No runs recorded")
}

func TestWorkerCommandReportsStartupFailure(t *testing.T) {
	env := setupCLITestEnv(t)
	cfg := *env.cfg
	cfg.Watermark.Path = filepath.Join(env.baseDir, "missing.png")
	init, err := json.Marshal(map[string]any{"worker": 1, "config": cfg})
	if err != nil {
		t.Fatal(err)
	}

	cmd := newRootCommand()
	var stdout bytes.Buffer
	cmd.SetIn(bytes.NewReader(append(init, '\n')))
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{"worker"})
	if err := cmd.Execute(); !errors.Is(err, faults.ErrInvalidInput) {
		t.Fatalf("expected invalid input from worker, got %v", err)
	}
	requireContains(t, stdout.String(), `"error_kind":"invalid_input"`)
}
