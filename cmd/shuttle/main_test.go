package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tidwall/gjson"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun_DynamicModeSucceeds(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "shuttle.yaml", `
riders: 20
vehicles: 0
mean_rider_interval_ms: 1
mean_vehicle_interval_ms: 5
capacity: 8
seed: 7
dwell_ms: 1
dwell_jitter_ms: 0
output: json
log:
  format: json
  level: INFO
thresholds:
  stranded:
    max: 0
`)
	logPath := filepath.Join(dir, "run.log")

	var stdout, stderr bytes.Buffer
	code := execute([]string{"run", "-c", cfg, "--quiet", "--log-file", logPath}, &stdout, &stderr)
	if code != ExitSuccess {
		t.Fatalf("expected exit %d, got %d (stderr: %s)", ExitSuccess, code, stderr.String())
	}

	out := stdout.String()
	if got := gjson.Get(out, "boarded").Int(); got != 20 {
		t.Errorf("expected 20 boarded, got %d", got)
	}
	if got := gjson.Get(out, "stranded").Int(); got != 0 {
		t.Errorf("expected 0 stranded, got %d", got)
	}
	if !gjson.Get(out, "thresholds.passed").Bool() {
		t.Errorf("expected thresholds to pass: %s", out)
	}

	var vout, verr bytes.Buffer
	code = execute([]string{"verify", logPath, "--capacity", "8"}, &vout, &verr)
	if code != ExitSuccess {
		t.Fatalf("expected clean verify, got exit %d: %s%s", code, vout.String(), verr.String())
	}
	if !strings.Contains(vout.String(), "no violations") {
		t.Errorf("expected no violations in report, got:\n%s", vout.String())
	}
}

func TestRun_ThresholdFailureExitsOne(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "shuttle.yaml", `
riders: 5
vehicles: 1
mean_rider_interval_ms: 0
mean_vehicle_interval_ms: 20
capacity: 2
seed: 1
dwell_ms: 0
dwell_jitter_ms: 0
thresholds:
  stranded:
    max: 0
`)

	var stdout, stderr bytes.Buffer
	code := execute([]string{"run", "-c", cfg, "--quiet", "--log-file", filepath.Join(dir, "run.log")}, &stdout, &stderr)
	if code != ExitThresholdFailed {
		t.Fatalf("expected exit %d, got %d (stderr: %s)", ExitThresholdFailed, code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "Shuttle - Simulation Results") {
		t.Errorf("expected text summary, got:\n%s", stdout.String())
	}
	if !strings.Contains(stdout.String(), "stranded.max") {
		t.Errorf("expected stranded threshold in summary, got:\n%s", stdout.String())
	}
	if !strings.Contains(stderr.String(), "Threshold check failed!") {
		t.Errorf("expected failure message on stderr, got %q", stderr.String())
	}
}

func TestRun_FlagsOverrideConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "shuttle.yaml", `
riders: 1000
vehicles: 0
mean_rider_interval_ms: 1
mean_vehicle_interval_ms: 1
capacity: 5
dwell_ms: 0
`)

	var stdout, stderr bytes.Buffer
	code := execute([]string{
		"run", "-c", cfg, "--quiet",
		"--riders", "3",
		"--output", "json",
		"--log-file", filepath.Join(dir, "run.log"),
	}, &stdout, &stderr)
	if code != ExitSuccess {
		t.Fatalf("expected exit %d, got %d (stderr: %s)", ExitSuccess, code, stderr.String())
	}
	if got := gjson.Get(stdout.String(), "spawned").Int(); got != 3 {
		t.Errorf("expected --riders to win over the file, got %d spawned", got)
	}
}

func TestRun_FractionalIntervalFlags(t *testing.T) {
	dir := t.TempDir()

	var stdout, stderr bytes.Buffer
	code := execute([]string{
		"run", "--quiet",
		"--riders", "5",
		"--vehicles", "0",
		"--capacity", "2",
		"--seed", "3",
		"--dwell-ms", "0",
		"--mean-rider-interval-ms", "0.5",
		"--mean-vehicle-interval-ms", "2.5",
		"--output", "json",
		"--log-file", filepath.Join(dir, "run.log"),
	}, &stdout, &stderr)
	if code != ExitSuccess {
		t.Fatalf("expected exit %d, got %d (stderr: %s)", ExitSuccess, code, stderr.String())
	}
	if got := gjson.Get(stdout.String(), "boarded").Int(); got != 5 {
		t.Errorf("expected 5 boarded, got %d", got)
	}
}

func TestRun_EnvOverride(t *testing.T) {
	t.Setenv("SHUTTLE_CAPACITY", "0")

	var stdout, stderr bytes.Buffer
	code := execute([]string{"run", "--quiet", "--riders", "1"}, &stdout, &stderr)
	if code != ExitError {
		t.Fatalf("expected exit %d for capacity 0 from env, got %d", ExitError, code)
	}
	if !strings.Contains(stderr.String(), "capacity must be at least 1") {
		t.Errorf("expected capacity error, got %q", stderr.String())
	}
}

func TestRun_InvalidInputExitsTwo(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, dir, "bad.yaml", "riders: [oops\n")

	tests := []struct {
		name string
		args []string
	}{
		{"unknown flag", []string{"run", "--no-such-flag"}},
		{"invalid output", []string{"run", "--quiet", "--output", "xml"}},
		{"missing config", []string{"run", "-c", filepath.Join(dir, "missing.yaml")}},
		{"unparseable config", []string{"run", "-c", bad}},
		{"missing schedule", []string{"run", "--quiet", "--schedule", filepath.Join(dir, "nope.csv")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if code := execute(tt.args, &stdout, &stderr); code != ExitError {
				t.Errorf("expected exit %d, got %d (stderr: %s)", ExitError, code, stderr.String())
			}
		})
	}
}

func TestVerify_ReportsViolations(t *testing.T) {
	dir := t.TempDir()
	log := writeFile(t, dir, "bad.log", `{"msg":"rider boards","actor":"rider-1","vehicle":1}`+"\n")

	var stdout, stderr bytes.Buffer
	code := execute([]string{"verify", log, "--output", "json"}, &stdout, &stderr)
	if code != ExitThresholdFailed {
		t.Fatalf("expected exit %d, got %d (stderr: %s)", ExitThresholdFailed, code, stderr.String())
	}
	if n := gjson.Get(stdout.String(), "violations.#").Int(); n == 0 {
		t.Errorf("expected violations in report, got %s", stdout.String())
	}
}

func TestVerify_MalformedOrMissingLog(t *testing.T) {
	dir := t.TempDir()
	garbage := writeFile(t, dir, "garbage.log", "not json at all\n")

	for _, path := range []string{garbage, filepath.Join(dir, "missing.log")} {
		var stdout, stderr bytes.Buffer
		if code := execute([]string{"verify", path}, &stdout, &stderr); code != ExitError {
			t.Errorf("%s: expected exit %d, got %d", filepath.Base(path), ExitError, code)
		}
	}
}

func TestVerify_RequiresOneArg(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := execute([]string{"verify"}, &stdout, &stderr); code != ExitError {
		t.Errorf("expected exit %d, got %d", ExitError, code)
	}
}
